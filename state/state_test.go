package state

import (
	"errors"
	"testing"
)

// MockState is a test double for the State interface.
// It helps us track which methods have been called.
type MockState struct {
	ID            Phase
	OnEnterCalled bool
	OnExitCalled  bool
	onEnter       func()
}

func (m *MockState) OnEnter() {
	m.OnEnterCalled = true
	if m.onEnter != nil {
		m.onEnter()
	}
}

func (m *MockState) OnExit() {
	m.OnExitCalled = true
}

func (m *MockState) GetID() Phase {
	return m.ID
}

// reset clears the call tracking flags.
func (m *MockState) reset() {
	m.OnEnterCalled = false
	m.OnExitCalled = false
}

func newMockStates() map[Phase]*MockState {
	states := make(map[Phase]*MockState, len(Phases))
	for _, p := range Phases {
		states[p] = &MockState{ID: p}
	}
	return states
}

func newMachine(t *testing.T, states map[Phase]*MockState) *BaseStateMachine {
	t.Helper()
	list := make([]State, 0, len(states))
	for _, p := range Phases {
		list = append(list, states[p])
	}
	sm, err := NewBaseStateMachine(PhaseLobby, list...)
	if err != nil {
		t.Fatalf("NewBaseStateMachine failed: %v", err)
	}
	if err := sm.AddTransitions(DefaultTransitions); err != nil {
		t.Fatalf("AddTransitions failed: %v", err)
	}
	return sm
}

func TestStateMachine_InitialState(t *testing.T) {
	states := newMockStates()
	sm := newMachine(t, states)

	if !states[PhaseLobby].OnEnterCalled {
		t.Error("Expected OnEnter to be called on the initial state")
	}
	if sm.Phase() != PhaseLobby {
		t.Errorf("Expected LOBBY, got %s", sm.Phase())
	}
}

func TestStateMachine_UnknownInitialState(t *testing.T) {
	_, err := NewBaseStateMachine(PhaseAsking, &MockState{ID: PhaseLobby})
	if !errors.Is(err, ErrUnknownState) {
		t.Errorf("Expected ErrUnknownState, got %v", err)
	}
}

func TestStateMachine_ChangeState(t *testing.T) {
	states := newMockStates()
	sm := newMachine(t, states)
	states[PhaseLobby].reset()

	if err := sm.ChangeState(PhaseAsking); err != nil {
		t.Fatalf("ChangeState should not return an error, but got: %v", err)
	}
	if !states[PhaseLobby].OnExitCalled {
		t.Error("Expected OnExit to be called on the old state")
	}
	if !states[PhaseAsking].OnEnterCalled {
		t.Error("Expected OnEnter to be called on the new state")
	}
	if sm.GetCurrentState() != states[PhaseAsking] {
		t.Error("GetCurrentState should return the new state")
	}
}

func TestStateMachine_FullRoundTable(t *testing.T) {
	sm := newMachine(t, newMockStates())

	path := []Phase{
		PhaseAsking, PhaseAnswersLocked, PhaseReveal, PhaseRoundEnd,
		PhaseAsking, PhaseAnswersLocked, PhaseReveal, PhaseRoundEnd,
		PhaseGameEnd, PhaseLobby,
	}
	for _, p := range path {
		if err := sm.ChangeState(p); err != nil {
			t.Fatalf("transition to %s failed: %v", p, err)
		}
	}
}

func TestStateMachine_BlockedTransition(t *testing.T) {
	states := newMockStates()
	sm := newMachine(t, states)
	states[PhaseLobby].reset()

	cases := []Phase{PhaseAnswersLocked, PhaseReveal, PhaseRoundEnd, PhaseGameEnd, PhaseLobby}
	for _, to := range cases {
		err := sm.ChangeState(to)
		if !errors.Is(err, ErrTransitionNotAllowed) {
			t.Errorf("LOBBY -> %s: expected ErrTransitionNotAllowed, got %v", to, err)
		}
	}
	if sm.Phase() != PhaseLobby {
		t.Errorf("Expected current state to remain LOBBY, got %s", sm.Phase())
	}
	if states[PhaseLobby].OnExitCalled {
		t.Error("OnExit should not be called on the current state if transition is blocked")
	}
}

func TestStateMachine_NestedTransitionRejected(t *testing.T) {
	states := newMockStates()
	sm := newMachine(t, states)

	var nested error
	states[PhaseAsking].onEnter = func() {
		nested = sm.ChangeState(PhaseAnswersLocked)
	}

	if err := sm.ChangeState(PhaseAsking); err != nil {
		t.Fatalf("outer transition failed: %v", err)
	}
	if !errors.Is(nested, ErrTransitionInFlight) {
		t.Errorf("Expected ErrTransitionInFlight from the hook, got %v", nested)
	}
	if sm.Phase() != PhaseAsking {
		t.Errorf("Expected ASKING, got %s", sm.Phase())
	}
}

func TestStateMachine_ResetFromAnyPhase(t *testing.T) {
	for _, p := range Phases {
		states := newMockStates()
		sm := newMachine(t, states)
		sm.currentState = states[p]

		sm.Reset(PhaseLobby)

		if sm.Phase() != PhaseLobby {
			t.Errorf("reset from %s: expected LOBBY, got %s", p, sm.Phase())
		}
		if p != PhaseLobby && !states[p].OnExitCalled {
			t.Errorf("reset from %s: expected OnExit on the left state", p)
		}
	}
}
