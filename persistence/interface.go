// persistence/interface.go
package persistence

import (
	"context"
	"fmt"
	"strconv"

	"github.com/wfunc/triviaserver/models"
	"github.com/wfunc/triviaserver/question"
)

// Database 数据库接口. It serves question packs to rooms, stores game
// results and feeds the question learning job.
type Database interface {
	// question.Source
	FetchPack(ctx context.Context, count int, mix question.TypeMix) ([]question.Question, error)
	MarkUsed(ctx context.Context, questionID string) error

	// room.ResultsSink
	CreateGame(ctx context.Context, playerCount, maxRounds int) (string, error)
	RecordRound(ctx context.Context, round models.RoundResult) error
	RecordPlayerAnswer(ctx context.Context, answer models.PlayerAnswer) error
	CompleteGame(ctx context.Context, summary models.GameSummary) error

	// SeedQuestions inserts questions whose ID is not stored yet and
	// returns how many were added.
	SeedQuestions(ctx context.Context, questions []question.Question) (int, error)
	// QuestionStats aggregates recorded rounds per active question.
	QuestionStats(ctx context.Context) ([]models.QuestionStats, error)
	// DeactivateQuestions takes questions out of rotation atomically.
	DeactivateQuestions(ctx context.Context, questionIDs []string) (int64, error)
	Close() error
}

// 错误定义
var (
	ErrRecordNotFound = fmt.Errorf("record not found")
	ErrInvalidGameID  = fmt.Errorf("invalid game id")
)

func parseGameID(id string) (uint, error) {
	n, err := strconv.ParseUint(id, 10, 64)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidGameID, id)
	}
	return uint(n), nil
}

func formatGameID(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
