package room

import (
	"sort"

	"github.com/wfunc/triviaserver/state"
)

// PlayerView is one row of the standings.
type PlayerView struct {
	ID                   string `json:"id"`
	Name                 string `json:"name"`
	Score                int    `json:"score"`
	Lives                int    `json:"lives"`
	IsEliminated         bool   `json:"isEliminated"`
	HasAnsweredThisRound *bool  `json:"hasAnsweredThisRound,omitempty"`
}

// Snapshot is the viewer state pushed after every change. Question holds a
// question.PublicView while answers are open and a question.RevealedView
// from REVEAL on.
type Snapshot struct {
	RoomID         string       `json:"roomId"`
	Phase          state.Phase  `json:"phase"`
	RoundNumber    int          `json:"roundNumber"`
	MaxRounds      int          `json:"maxRounds"`
	Players        []PlayerView `json:"players"`
	Question       any          `json:"question,omitempty"`
	AnsweredCount  *int         `json:"answeredCount,omitempty"`
	FunnyVoteCount *int         `json:"funnyVoteCount,omitempty"`
	Winner         *PlayerView  `json:"winner,omitempty"`
}

func (r *Room) snapshot() Snapshot {
	phase := r.machine.Phase()
	snap := Snapshot{
		RoomID:      r.ID,
		Phase:       phase,
		RoundNumber: r.roundIndex,
		MaxRounds:   r.config.MaxRounds,
	}

	inRound := false
	switch phase {
	case state.PhaseAsking, state.PhaseAnswersLocked:
		inRound = true
		if r.current != nil {
			snap.Question = r.current.Sanitized()
		}
	case state.PhaseReveal, state.PhaseRoundEnd:
		inRound = true
		if r.current != nil {
			snap.Question = r.current.Revealed()
		}
	case state.PhaseGameEnd:
		snap.Winner = r.winner
	}

	if inRound {
		answered := len(r.answers)
		votes := len(r.funnyVotes)
		snap.AnsweredCount = &answered
		snap.FunnyVoteCount = &votes
	}

	players := r.sortedPlayers()
	snap.Players = make([]PlayerView, 0, len(players))
	for _, p := range players {
		snap.Players = append(snap.Players, r.playerView(p, inRound))
	}
	return snap
}

func (r *Room) playerView(p *Player, inRound bool) PlayerView {
	v := PlayerView{
		ID:           p.ID,
		Name:         p.DisplayName,
		Score:        r.scores[p.ID],
		Lives:        r.lives[p.ID],
		IsEliminated: r.eliminated[p.ID],
	}
	if inRound {
		_, answered := r.answers[p.ID]
		v.HasAnsweredThisRound = &answered
	}
	return v
}

// sortedPlayers returns connected players in join order.
func (r *Room) sortedPlayers() []*Player {
	players := make([]*Player, 0, len(r.players))
	for _, p := range r.players {
		players = append(players, p)
	}
	sort.Slice(players, func(i, j int) bool {
		if players[i].JoinedAt.Equal(players[j].JoinedAt) {
			return players[i].ID < players[j].ID
		}
		return players[i].JoinedAt.Before(players[j].JoinedAt)
	})
	return players
}
