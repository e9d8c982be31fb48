package question

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
)

// MemorySource serves packs from an in-process question bank. Less-used
// questions are preferred so consecutive games rotate through the bank.
type MemorySource struct {
	mutex     sync.Mutex
	questions []Question
	usage     map[string]int
	rng       *rand.Rand
}

func NewMemorySource(questions []Question, seed int64) (*MemorySource, error) {
	for _, q := range questions {
		if err := q.Validate(); err != nil {
			return nil, err
		}
	}
	return &MemorySource{
		questions: append([]Question(nil), questions...),
		usage:     make(map[string]int),
		rng:       rand.New(rand.NewSource(seed)),
	}, nil
}

// LoadPack reads a JSON array of questions from path.
func LoadPack(path string) ([]Question, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read question pack: %w", err)
	}
	var questions []Question
	if err := json.Unmarshal(data, &questions); err != nil {
		return nil, fmt.Errorf("decode question pack: %w", err)
	}
	return questions, nil
}

func LoadMemorySource(path string, seed int64) (*MemorySource, error) {
	questions, err := LoadPack(path)
	if err != nil {
		return nil, err
	}
	return NewMemorySource(questions, seed)
}

func (s *MemorySource) FetchPack(ctx context.Context, count int, mix TypeMix) ([]Question, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if len(s.questions) == 0 {
		return nil, ErrNotEnough
	}

	byKind := make(map[Kind][]Question)
	for _, q := range s.questions {
		byKind[q.Kind] = append(byKind[q.Kind], q)
	}
	for k := range byKind {
		s.orderByUsage(byKind[k])
	}

	quotas := Quotas(count, mix)
	taken := make(map[string]bool)
	pack := make([]Question, 0, count)
	for _, k := range Kinds {
		want := quotas[k]
		for _, q := range byKind[k] {
			if want == 0 {
				break
			}
			pack = append(pack, q)
			taken[q.ID] = true
			want--
		}
	}

	// Fill any shortfall from whatever is left, least used first.
	if len(pack) < count {
		rest := make([]Question, 0, len(s.questions))
		for _, q := range s.questions {
			if !taken[q.ID] {
				rest = append(rest, q)
			}
		}
		s.orderByUsage(rest)
		for _, q := range rest {
			if len(pack) == count {
				break
			}
			pack = append(pack, q)
		}
	}

	s.rng.Shuffle(len(pack), func(i, j int) { pack[i], pack[j] = pack[j], pack[i] })
	return pack, nil
}

func (s *MemorySource) MarkUsed(ctx context.Context, questionID string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.usage[questionID]++
	return nil
}

// Usage returns how many times a question was served.
func (s *MemorySource) Usage(questionID string) int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.usage[questionID]
}

// orderByUsage shuffles qs then stable-sorts by usage count.
func (s *MemorySource) orderByUsage(qs []Question) {
	s.rng.Shuffle(len(qs), func(i, j int) { qs[i], qs[j] = qs[j], qs[i] })
	sort.SliceStable(qs, func(i, j int) bool {
		return s.usage[qs[i].ID] < s.usage[qs[j].ID]
	})
}
