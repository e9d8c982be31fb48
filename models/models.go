// models/models.go
package models

import (
	"time"
)

// RoundResult summarises one served question.
type RoundResult struct {
	GameID          string `json:"game_id"`
	QuestionID      string `json:"question_id"`
	RoundNumber     int    `json:"round_number"`
	AnsweredCount   int    `json:"answered_count"`
	CorrectCount    int    `json:"correct_count"`
	AvgAnswerTimeMs int64  `json:"avg_answer_time_ms"`
	FunnyVoteCount  int    `json:"funny_vote_count"`
}

// PlayerAnswer is one player's answer to one question.
type PlayerAnswer struct {
	GameID       string `json:"game_id"`
	QuestionID   string `json:"question_id"`
	PlayerName   string `json:"player_name"`
	ChoiceIndex  int    `json:"choice_index"`
	IsCorrect    bool   `json:"is_correct"`
	AnswerTimeMs int64  `json:"answer_time_ms"`
	VotedFunny   bool   `json:"voted_funny"`
}

// GameSummary closes a game record.
type GameSummary struct {
	GameID          string `json:"game_id"`
	WinnerName      string `json:"winner_name,omitempty"`
	WinnerScore     int    `json:"winner_score"`
	DurationSeconds int    `json:"duration_seconds"`
}

// QuestionStats aggregates round results per question for the learning loop.
type QuestionStats struct {
	QuestionID  string    `json:"question_id"`
	Kind        string    `json:"kind"`
	Rounds      int       `json:"rounds"`
	Answered    int       `json:"answered"`
	Correct     int       `json:"correct"`
	FunnyVotes  int       `json:"funny_votes"`
	AvgAnswerMs float64   `json:"avg_answer_ms"`
	LastUsedAt  time.Time `json:"last_used_at"`
}

// CorrectRate is the share of answers that were right, 0 when nobody
// answered.
func (s QuestionStats) CorrectRate() float64 {
	if s.Answered == 0 {
		return 0
	}
	return float64(s.Correct) / float64(s.Answered)
}
