package persistence

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/triviaserver/models"
	"github.com/wfunc/triviaserver/question"
	"github.com/wfunc/triviaserver/room"
)

var (
	_ Database         = (*GormPostgreSQL)(nil)
	_ Database         = (*PostgreSQL)(nil)
	_ room.ResultsSink = (Database)(nil)
	_ question.Source  = (Database)(nil)
)

func TestGameIDRoundTrip(t *testing.T) {
	id, err := parseGameID(formatGameID(42))
	require.NoError(t, err)
	assert.Equal(t, uint(42), id)

	for _, bad := range []string{"", "0", "-1", "abc", "game-1"} {
		_, err := parseGameID(bad)
		assert.ErrorIs(t, err, ErrInvalidGameID, bad)
	}
}

func TestQuestionConversion(t *testing.T) {
	q := question.Question{
		ID:           "t1",
		Kind:         question.KindWhoSaidIt,
		Prompt:       "Who said it?",
		Options:      [question.OptionCount]string{"a", "b", "c", "d"},
		CorrectIndex: 3,
		Explanation:  "d did",
		Category:     "office",
	}
	row := fromQuestion(q)
	assert.True(t, row.Active)
	assert.Equal(t, "d", row.Option3)
	assert.Equal(t, q, toQuestion(row))
}

func TestStatsFromRows(t *testing.T) {
	used := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	stats := statsFromRows([]questionStatsRow{
		{QuestionID: "a", Kind: "trivia", Rounds: 2, Answered: 10, Correct: 4, AvgAnswerMs: 1500, LastUsedAt: &used},
		{QuestionID: "b", Kind: "roast"},
	})
	require.Len(t, stats, 2)
	assert.Equal(t, used, stats[0].LastUsedAt)
	assert.InDelta(t, 0.4, stats[0].CorrectRate(), 1e-9)
	assert.True(t, stats[1].LastUsedAt.IsZero())
	assert.Equal(t, 0.0, stats[1].CorrectRate())
}

// postgresFromEnv returns connection settings for an integration database,
// skipping the test when none is configured.
func postgresFromEnv(t *testing.T) (host string, port int, user, password, dbname string) {
	t.Helper()
	host = os.Getenv("TRIVIA_TEST_PG_HOST")
	if host == "" {
		t.Skip("TRIVIA_TEST_PG_HOST not set")
	}
	port = 5432
	if p := os.Getenv("TRIVIA_TEST_PG_PORT"); p != "" {
		n, err := strconv.Atoi(p)
		require.NoError(t, err)
		port = n
	}
	return host, port, os.Getenv("TRIVIA_TEST_PG_USER"), os.Getenv("TRIVIA_TEST_PG_PASSWORD"), os.Getenv("TRIVIA_TEST_PG_DBNAME")
}

func exerciseDatabase(t *testing.T, db Database) {
	ctx := context.Background()
	prefix := strconv.FormatInt(time.Now().UnixNano(), 36) + "-"
	var qs []question.Question
	for i, kind := range question.Kinds {
		qs = append(qs, question.Question{
			ID:           prefix + string(kind),
			Kind:         kind,
			Prompt:       "prompt " + strconv.Itoa(i),
			Options:      [question.OptionCount]string{"a", "b", "c", "d"},
			CorrectIndex: i,
		})
	}

	added, err := db.SeedQuestions(ctx, qs)
	require.NoError(t, err)
	assert.Equal(t, len(qs), added)
	added, err = db.SeedQuestions(ctx, qs)
	require.NoError(t, err)
	assert.Zero(t, added, "seeding is idempotent")

	pack, err := db.FetchPack(ctx, 2, question.TypeMix{question.KindTrivia: 1})
	require.NoError(t, err)
	assert.Len(t, pack, 2)

	require.NoError(t, db.MarkUsed(ctx, qs[0].ID))
	assert.ErrorIs(t, db.MarkUsed(ctx, prefix+"missing"), ErrRecordNotFound)

	gameID, err := db.CreateGame(ctx, 3, 10)
	require.NoError(t, err)
	require.NoError(t, db.RecordRound(ctx, models.RoundResult{
		GameID: gameID, QuestionID: qs[0].ID, RoundNumber: 1, AnsweredCount: 3, CorrectCount: 1, AvgAnswerTimeMs: 900,
	}))
	require.NoError(t, db.RecordPlayerAnswer(ctx, models.PlayerAnswer{
		GameID: gameID, QuestionID: qs[0].ID, PlayerName: "Alice", ChoiceIndex: 0, IsCorrect: true, AnswerTimeMs: 900,
	}))
	require.NoError(t, db.CompleteGame(ctx, models.GameSummary{GameID: gameID, WinnerName: "Alice", WinnerScore: 100}))

	stats, err := db.QuestionStats(ctx)
	require.NoError(t, err)
	var found bool
	for _, s := range stats {
		if s.QuestionID == qs[0].ID {
			found = true
			assert.Equal(t, 1, s.Rounds)
			assert.Equal(t, 3, s.Answered)
			assert.Equal(t, 1, s.Correct)
			assert.False(t, s.LastUsedAt.IsZero())
		}
	}
	assert.True(t, found)

	n, err := db.DeactivateQuestions(ctx, []string{qs[0].ID, qs[1].ID})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	n, err = db.DeactivateQuestions(ctx, []string{qs[0].ID})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestGormPostgreSQL_Integration(t *testing.T) {
	host, port, user, password, dbname := postgresFromEnv(t)
	db, err := NewGormPostgreSQL(host, port, user, password, dbname)
	require.NoError(t, err)
	defer db.Close()
	exerciseDatabase(t, db)
}

func TestPostgreSQL_Integration(t *testing.T) {
	host, port, user, password, dbname := postgresFromEnv(t)
	if os.Getenv("TRIVIA_TEST_PG_RAW_DBNAME") == "" {
		t.Skip("raw SQL schema needs its own database: TRIVIA_TEST_PG_RAW_DBNAME not set")
	}
	dbname = os.Getenv("TRIVIA_TEST_PG_RAW_DBNAME")
	db, err := NewPostgreSQL(host, port, user, password, dbname)
	require.NoError(t, err)
	defer db.Close()
	exerciseDatabase(t, db)
}
