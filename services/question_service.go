// services/question_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wfunc/triviaserver/config"
	"github.com/wfunc/triviaserver/logger"
	"github.com/wfunc/triviaserver/models"
	"github.com/wfunc/triviaserver/question"
)

var ErrNoStore = errors.New("question store not configured")

// QuestionStore is the part of the database the learning job needs.
type QuestionStore interface {
	QuestionStats(ctx context.Context) ([]models.QuestionStats, error)
	DeactivateQuestions(ctx context.Context, questionIDs []string) (int64, error)
}

// RetirePolicy decides which questions leave rotation.
type RetirePolicy struct {
	// MinRounds is how often a question must have been played before it is
	// judged at all.
	MinRounds int `json:"min_rounds"`
	// Trivia questions outside [MinCorrectRate, MaxCorrectRate] are too hard
	// or too easy.
	MinCorrectRate float64 `json:"min_correct_rate"`
	MaxCorrectRate float64 `json:"max_correct_rate"`
}

func PolicyFrom(lc config.LearningConfig) RetirePolicy {
	return RetirePolicy{
		MinRounds:      lc.MinRounds,
		MinCorrectRate: lc.MinCorrectRate,
		MaxCorrectRate: lc.MaxCorrectRate,
	}
}

// RetireReport describes one retirement pass.
type RetireReport struct {
	Examined int               `json:"examined"`
	Retired  map[string]string `json:"retired"` // question id -> reason
	Affected int64             `json:"affected"`
}

type QuestionService struct {
	store QuestionStore
}

func NewQuestionService(store QuestionStore) *QuestionService {
	return &QuestionService{store: store}
}

// QuestionStats 获取题目统计
func (s *QuestionService) QuestionStats(ctx context.Context) ([]models.QuestionStats, error) {
	if s == nil || s.store == nil {
		return nil, ErrNoStore
	}
	return s.store.QuestionStats(ctx)
}

// RetirePoorQuestions 下架表现不佳的题目
func (s *QuestionService) RetirePoorQuestions(ctx context.Context, policy RetirePolicy) (RetireReport, error) {
	report, ids, err := s.plan(ctx, policy)
	if err != nil || len(ids) == 0 {
		return report, err
	}

	report.Affected, err = s.store.DeactivateQuestions(ctx, ids)
	if err != nil {
		return report, fmt.Errorf("deactivate questions: %w", err)
	}
	logger.Log.Infow("questions retired", "examined", report.Examined, "retired", report.Affected)
	return report, nil
}

// PreviewRetirement reports what RetirePoorQuestions would retire.
func (s *QuestionService) PreviewRetirement(ctx context.Context, policy RetirePolicy) (RetireReport, error) {
	report, _, err := s.plan(ctx, policy)
	return report, err
}

func (s *QuestionService) plan(ctx context.Context, policy RetirePolicy) (RetireReport, []string, error) {
	report := RetireReport{Retired: make(map[string]string)}
	stats, err := s.QuestionStats(ctx)
	if err != nil {
		return report, nil, err
	}
	report.Examined = len(stats)

	var ids []string
	for _, st := range stats {
		if retire, reason := shouldRetire(st, policy); retire {
			report.Retired[st.QuestionID] = reason
			ids = append(ids, st.QuestionID)
		}
	}
	return report, ids, nil
}

// Run retires questions every interval until ctx is done.
func (s *QuestionService) Run(ctx context.Context, interval time.Duration, policy RetirePolicy) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.RetirePoorQuestions(ctx, policy); err != nil {
				logger.Log.Errorw("question retirement failed", "error", err)
			}
		}
	}
}

// shouldRetire judges a question only once it was played MinRounds times.
// Trivia is judged on its correct rate, the party kinds on whether anybody
// ever found them funny.
func shouldRetire(st models.QuestionStats, policy RetirePolicy) (bool, string) {
	if st.Rounds < policy.MinRounds || st.Answered == 0 {
		return false, ""
	}
	if question.Kind(st.Kind) != question.KindTrivia {
		if st.FunnyVotes == 0 {
			return true, "never voted funny"
		}
		return false, ""
	}
	rate := st.CorrectRate()
	switch {
	case rate < policy.MinCorrectRate:
		return true, fmt.Sprintf("too hard: %.2f correct", rate)
	case rate > policy.MaxCorrectRate:
		return true, fmt.Sprintf("too easy: %.2f correct", rate)
	}
	return false, ""
}
