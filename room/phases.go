package room

import (
	"github.com/wfunc/triviaserver/logger"
	"github.com/wfunc/triviaserver/state"
)

// Each phase drives the next one with a timer, so a room never stalls even
// when nobody acts. A phase cancels its own timer when it is left.

func (r *Room) phaseStates() []state.State {
	return []state.State{
		&lobbyState{StateBase: state.StateBase{ID: state.PhaseLobby}},
		&askingState{StateBase: state.StateBase{ID: state.PhaseAsking}, room: r},
		&lockedState{StateBase: state.StateBase{ID: state.PhaseAnswersLocked}, room: r},
		&revealState{StateBase: state.StateBase{ID: state.PhaseReveal}, room: r},
		&roundEndState{StateBase: state.StateBase{ID: state.PhaseRoundEnd}, room: r},
		&gameEndState{StateBase: state.StateBase{ID: state.PhaseGameEnd}, room: r},
	}
}

type lobbyState struct {
	state.StateBase
}

type askingState struct {
	state.StateBase
	room *Room
}

func (s *askingState) OnEnter() {
	r := s.room
	r.askedAt = r.now()
	r.schedule(TimerAskingTimeout, r.config.AskingTimeout, func() {
		if r.machine.Phase() != state.PhaseAsking {
			return
		}
		logger.Log.Debugw("asking timed out", "room", r.ID, "answers", len(r.answers))
		r.transitionFromTimer(state.PhaseAnswersLocked)
	})
}

func (s *askingState) OnExit() {
	s.room.timers.Cancel(TimerAskingTimeout)
}

type lockedState struct {
	state.StateBase
	room *Room
}

func (s *lockedState) OnEnter() {
	r := s.room
	r.schedule(TimerReveal, r.config.RevealDelay, func() {
		r.transitionFromTimer(state.PhaseReveal)
	})
}

func (s *lockedState) OnExit() {
	s.room.timers.Cancel(TimerReveal)
}

type revealState struct {
	state.StateBase
	room *Room
}

func (s *revealState) OnEnter() {
	r := s.room
	r.lastRound = r.scoreAnswers()
	r.schedule(TimerRoundEnd, r.config.RoundEndDelay, func() {
		r.transitionFromTimer(state.PhaseRoundEnd)
	})
}

func (s *revealState) OnExit() {
	s.room.timers.Cancel(TimerRoundEnd)
}

type roundEndState struct {
	state.StateBase
	room *Room
}

func (s *roundEndState) OnEnter() {
	r := s.room
	r.recordRound()
	r.schedule(TimerNextRound, r.config.NextRoundDelay, r.nextRound)
}

func (s *roundEndState) OnExit() {
	s.room.timers.Cancel(TimerNextRound)
}

type gameEndState struct {
	state.StateBase
	room *Room
}

func (s *gameEndState) OnEnter() {
	r := s.room
	r.winner = r.determineWinner()
	r.completeGame()
	r.schedule(TimerAutoReset, r.config.AutoResetDelay, r.reset)
}

func (s *gameEndState) OnExit() {
	s.room.timers.Cancel(TimerAutoReset)
}

// nextRound ends the game when at most one player is left standing or the
// questions ran out, otherwise opens the next question.
func (r *Room) nextRound() {
	if r.activePlayers() <= 1 || r.roundIndex >= r.config.MaxRounds || !r.advanceQuestion() {
		r.transitionFromTimer(state.PhaseGameEnd)
		return
	}
	r.transitionFromTimer(state.PhaseAsking)
}
