package state

import (
	"errors"
	"fmt"
	"sync"
)

// Phase is one of the six stages a trivia room moves through.
type Phase string

const (
	PhaseLobby         Phase = "LOBBY"
	PhaseAsking        Phase = "ASKING"
	PhaseAnswersLocked Phase = "ANSWERS_LOCKED"
	PhaseReveal        Phase = "REVEAL"
	PhaseRoundEnd      Phase = "ROUND_END"
	PhaseGameEnd       Phase = "GAME_END"
)

// Phases lists every phase in game order.
var Phases = []Phase{
	PhaseLobby,
	PhaseAsking,
	PhaseAnswersLocked,
	PhaseReveal,
	PhaseRoundEnd,
	PhaseGameEnd,
}

// DefaultTransitions is the trivia round table. GAME_END only leaves through
// a reset.
var DefaultTransitions = map[Phase][]Phase{
	PhaseLobby:         {PhaseAsking},
	PhaseAsking:        {PhaseAnswersLocked},
	PhaseAnswersLocked: {PhaseReveal},
	PhaseReveal:        {PhaseRoundEnd},
	PhaseRoundEnd:      {PhaseAsking, PhaseGameEnd},
	PhaseGameEnd:       {PhaseLobby},
}

// 状态机接口
type StateMachine interface {
	ChangeState(to Phase) error
	Reset(to Phase)
	GetCurrentState() State
	Phase() Phase
	AddTransition(from, to Phase) error
}

// 状态接口
type State interface {
	OnEnter()
	OnExit()
	GetID() Phase
}

var (
	// ErrTransitionNotAllowed is returned when the target phase is not
	// reachable from the current one.
	ErrTransitionNotAllowed = errors.New("state transition not allowed")
	// ErrTransitionInFlight is returned when a phase hook tries to start a
	// second transition before the first one finished.
	ErrTransitionInFlight = errors.New("state transition already in flight")
	// ErrUnknownState is returned for a phase that has no registered State.
	ErrUnknownState = errors.New("unknown state")
)

// 基础状态机实现
type BaseStateMachine struct {
	currentState State
	states       map[Phase]State
	transitions  map[Phase]map[Phase]bool // fromState -> toState
	inFlight     bool
	mutex        sync.Mutex
}

// NewBaseStateMachine builds a machine over states and enters initial.
// Every State's GetID must be unique.
func NewBaseStateMachine(initial Phase, states ...State) (*BaseStateMachine, error) {
	machine := &BaseStateMachine{
		states:      make(map[Phase]State, len(states)),
		transitions: make(map[Phase]map[Phase]bool),
	}
	for _, s := range states {
		machine.states[s.GetID()] = s
	}

	initialState, ok := machine.states[initial]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownState, initial)
	}
	machine.currentState = initialState
	initialState.OnEnter()
	return machine, nil
}

// ChangeState runs OnExit of the current state and OnEnter of the target.
// Hooks run before ChangeState returns; a hook that calls back into
// ChangeState gets ErrTransitionInFlight.
func (sm *BaseStateMachine) ChangeState(to Phase) error {
	sm.mutex.Lock()
	if sm.inFlight {
		sm.mutex.Unlock()
		return ErrTransitionInFlight
	}

	from := sm.currentState.GetID()
	if !sm.transitions[from][to] {
		sm.mutex.Unlock()
		return fmt.Errorf("%w: %s -> %s", ErrTransitionNotAllowed, from, to)
	}
	next, ok := sm.states[to]
	if !ok {
		sm.mutex.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownState, to)
	}

	sm.inFlight = true
	current := sm.currentState
	sm.currentState = next
	sm.mutex.Unlock()

	current.OnExit()
	next.OnEnter()

	sm.mutex.Lock()
	sm.inFlight = false
	sm.mutex.Unlock()
	return nil
}

// Reset jumps to the given phase from anywhere, bypassing the transition
// table. The current state's OnExit runs; the target's OnEnter does not.
func (sm *BaseStateMachine) Reset(to Phase) {
	sm.mutex.Lock()
	current := sm.currentState
	next, ok := sm.states[to]
	if !ok {
		sm.mutex.Unlock()
		return
	}
	sm.currentState = next
	sm.inFlight = false
	sm.mutex.Unlock()

	if current != next {
		current.OnExit()
	}
}

func (sm *BaseStateMachine) GetCurrentState() State {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()
	return sm.currentState
}

// Phase returns the ID of the current state.
func (sm *BaseStateMachine) Phase() Phase {
	return sm.GetCurrentState().GetID()
}

// CanTransition reports whether to is reachable from the current phase.
func (sm *BaseStateMachine) CanTransition(to Phase) bool {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()
	return sm.transitions[sm.currentState.GetID()][to]
}

func (sm *BaseStateMachine) AddTransition(from, to Phase) error {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	if _, ok := sm.states[from]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownState, from)
	}
	if _, ok := sm.states[to]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownState, to)
	}

	if _, exists := sm.transitions[from]; !exists {
		sm.transitions[from] = make(map[Phase]bool)
	}
	sm.transitions[from][to] = true
	return nil
}

// AddTransitions registers every edge of table.
func (sm *BaseStateMachine) AddTransitions(table map[Phase][]Phase) error {
	for from, targets := range table {
		for _, to := range targets {
			if err := sm.AddTransition(from, to); err != nil {
				return err
			}
		}
	}
	return nil
}

// 房间状态基础结构
type StateBase struct {
	ID Phase
}

func (s *StateBase) GetID() Phase {
	return s.ID
}

func (s *StateBase) OnEnter() {
	// 默认实现
}

func (s *StateBase) OnExit() {
	// 默认实现
}
