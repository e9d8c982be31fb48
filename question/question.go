package question

import (
	"context"
	"errors"
	"fmt"
)

// Kind is the flavour of a question.
type Kind string

const (
	KindTrivia    Kind = "trivia"
	KindWhoSaidIt Kind = "who-said-it"
	KindChaos     Kind = "chaos"
	KindRoast     Kind = "roast"
)

// Kinds lists every question kind.
var Kinds = []Kind{KindTrivia, KindWhoSaidIt, KindChaos, KindRoast}

// OptionCount is the number of choices every question carries.
const OptionCount = 4

var (
	ErrInvalidQuestion = errors.New("invalid question")
	ErrNotEnough       = errors.New("not enough questions")
)

// Question is immutable once loaded into a room.
type Question struct {
	ID           string              `json:"id"`
	Kind         Kind                `json:"kind"`
	Prompt       string              `json:"prompt"`
	Options      [OptionCount]string `json:"options"`
	CorrectIndex int                 `json:"correct_index"`
	Explanation  string              `json:"explanation,omitempty"`
	Category     string              `json:"category,omitempty"`
}

// Validate checks the structural rules of a question.
func (q Question) Validate() error {
	if q.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidQuestion)
	}
	if q.Prompt == "" {
		return fmt.Errorf("%w: %s has no prompt", ErrInvalidQuestion, q.ID)
	}
	if !ValidKind(q.Kind) {
		return fmt.Errorf("%w: %s has unknown kind %q", ErrInvalidQuestion, q.ID, q.Kind)
	}
	if q.CorrectIndex < 0 || q.CorrectIndex >= OptionCount {
		return fmt.Errorf("%w: %s correct index %d out of range", ErrInvalidQuestion, q.ID, q.CorrectIndex)
	}
	for i, opt := range q.Options {
		if opt == "" {
			return fmt.Errorf("%w: %s option %d is empty", ErrInvalidQuestion, q.ID, i)
		}
	}
	return nil
}

func ValidKind(k Kind) bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// PublicView is what players see while answering. It never carries the
// answer.
type PublicView struct {
	ID       string              `json:"id"`
	Kind     Kind                `json:"kind"`
	Prompt   string              `json:"prompt"`
	Options  [OptionCount]string `json:"options"`
	Category string              `json:"category,omitempty"`
}

// RevealedView is shown once answers are scored.
type RevealedView struct {
	PublicView
	CorrectIndex int    `json:"correct_index"`
	Explanation  string `json:"explanation,omitempty"`
}

// Sanitized returns the view with the answer stripped.
func (q Question) Sanitized() PublicView {
	return PublicView{
		ID:       q.ID,
		Kind:     q.Kind,
		Prompt:   q.Prompt,
		Options:  q.Options,
		Category: q.Category,
	}
}

// Revealed returns the view including the answer and explanation.
func (q Question) Revealed() RevealedView {
	return RevealedView{
		PublicView:   q.Sanitized(),
		CorrectIndex: q.CorrectIndex,
		Explanation:  q.Explanation,
	}
}

// TypeMix maps each kind to its share of a pack. Shares need not sum to 1.
type TypeMix map[Kind]float64

// Source supplies question packs to rooms.
type Source interface {
	// FetchPack returns up to count questions in play order.
	FetchPack(ctx context.Context, count int, mix TypeMix) ([]Question, error)
	// MarkUsed records that a question was served.
	MarkUsed(ctx context.Context, questionID string) error
}
