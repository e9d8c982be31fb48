package room

import (
	"sort"
	"time"

	"github.com/wfunc/triviaserver/logger"
	"github.com/wfunc/triviaserver/models"
)

type scoredAnswer struct {
	PlayerID     string
	ChoiceIndex  int
	IsCorrect    bool
	AnswerTimeMs int64
}

// roundOutcome is what REVEAL computed for the current question.
type roundOutcome struct {
	QuestionID string
	Round      int
	Answers    []scoredAnswer
	Correct    int
	Eliminated []string
}

// scoreAnswers applies the current question to every recorded answer of a
// player that is still in the game. Players without an answer are left
// alone.
func (r *Room) scoreAnswers() *roundOutcome {
	if r.current == nil {
		return nil
	}
	out := &roundOutcome{QuestionID: r.current.ID, Round: r.roundIndex}

	ids := make([]string, 0, len(r.answers))
	for id := range r.answers {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		if r.eliminated[id] {
			continue
		}
		a := r.answers[id]
		correct := a.ChoiceIndex == r.current.CorrectIndex
		if correct {
			r.scores[id] += r.config.PointsPerCorrect
			out.Correct++
		} else {
			r.lives[id]--
			if r.lives[id] <= 0 {
				r.lives[id] = 0
				r.eliminated[id] = true
				out.Eliminated = append(out.Eliminated, id)
			}
		}
		out.Answers = append(out.Answers, scoredAnswer{
			PlayerID:     id,
			ChoiceIndex:  a.ChoiceIndex,
			IsCorrect:    correct,
			AnswerTimeMs: a.SubmittedAt.Sub(r.askedAt).Milliseconds(),
		})
	}

	logger.Log.Infow("round scored",
		"room", r.ID,
		"round", out.Round,
		"answered", len(out.Answers),
		"correct", out.Correct,
		"eliminated", len(out.Eliminated),
	)
	return out
}

// recordRound hands the scored round to the results recorder.
func (r *Room) recordRound() {
	out := r.lastRound
	if out == nil || r.gameKey == "" {
		return
	}

	round := models.RoundResult{
		QuestionID:     out.QuestionID,
		RoundNumber:    out.Round,
		AnsweredCount:  len(out.Answers),
		CorrectCount:   out.Correct,
		FunnyVoteCount: len(r.funnyVotes),
	}
	var total int64
	answers := make([]models.PlayerAnswer, 0, len(out.Answers))
	for _, a := range out.Answers {
		total += a.AnswerTimeMs
		answers = append(answers, models.PlayerAnswer{
			QuestionID:   out.QuestionID,
			PlayerName:   r.names[a.PlayerID],
			ChoiceIndex:  a.ChoiceIndex,
			IsCorrect:    a.IsCorrect,
			AnswerTimeMs: a.AnswerTimeMs,
			VotedFunny:   r.funnyVotes[a.PlayerID],
		})
	}
	if len(out.Answers) > 0 {
		round.AvgAnswerTimeMs = total / int64(len(out.Answers))
	}
	r.recorder.recordRound(r.gameKey, round, answers)
}

// determineWinner picks the player with the strictly highest score among
// connected players, eliminated or not. A tie at the top has no winner.
func (r *Room) determineWinner() *PlayerView {
	var best *Player
	tied := false
	for _, p := range r.sortedPlayers() {
		switch {
		case best == nil || r.scores[p.ID] > r.scores[best.ID]:
			best = p
			tied = false
		case r.scores[p.ID] == r.scores[best.ID]:
			tied = true
		}
	}
	if best == nil || tied {
		return nil
	}
	v := r.playerView(best, false)
	return &v
}

func (r *Room) completeGame() {
	if r.gameKey == "" {
		return
	}
	summary := models.GameSummary{
		DurationSeconds: int(r.now().Sub(r.gameStartedAt) / time.Second),
	}
	if r.winner != nil {
		summary.WinnerName = r.winner.Name
		summary.WinnerScore = r.winner.Score
	}
	logger.Log.Infow("game over", "room", r.ID, "winner", summary.WinnerName, "score", summary.WinnerScore)
	r.recorder.completeGame(r.gameKey, summary)
	r.gameKey = ""
}
