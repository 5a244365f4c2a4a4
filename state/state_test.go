package state

import (
	"testing"
)

func TestStateMachine_InitialState(t *testing.T) {
	sm := NewBaseStateMachine(Waiting)
	if sm.GetCurrentState() != Waiting {
		t.Errorf("Expected initial state waiting, got %s", sm.GetCurrentState())
	}
}

func TestStateMachine_UnregisteredTransition(t *testing.T) {
	sm := NewBaseStateMachine(Waiting)
	if err := sm.ChangeState(Result); err != ErrTransitionNotAllowed {
		t.Errorf("Expected ErrTransitionNotAllowed, got %v", err)
	}
	if sm.GetCurrentState() != Waiting {
		t.Errorf("State should not change after a rejected transition, got %s", sm.GetCurrentState())
	}
}

func TestStateMachine_AddAndUseTransition(t *testing.T) {
	sm := NewBaseStateMachine(Waiting)

	if err := sm.AddTransition(Waiting, Playing, func() bool { return true }); err != nil {
		t.Fatalf("AddTransition failed: %v", err)
	}
	if err := sm.AddTransition(Playing, Result, func() bool { return false }); err != nil {
		t.Fatalf("AddTransition failed: %v", err)
	}

	if err := sm.ChangeState(Playing); err != nil {
		t.Errorf("Expected transition from waiting to playing to be allowed, got %v", err)
	}

	if err := sm.ChangeState(Result); err != ErrTransitionNotAllowed {
		t.Errorf("Expected ErrTransitionNotAllowed, got %v", err)
	}
	if sm.GetCurrentState() != Playing {
		t.Errorf("Expected state to remain playing after a blocked transition, got %s", sm.GetCurrentState())
	}
}

func TestGameMachine_Flow(t *testing.T) {
	full := false
	sm := NewGameMachine(Waiting, func() bool { return full })

	if sm.CanTransition(Playing) {
		t.Fatal("Waiting room must not start before it is full")
	}
	if err := sm.ChangeState(Playing); err != ErrTransitionNotAllowed {
		t.Fatalf("Expected start to be blocked, got %v", err)
	}

	full = true
	steps := []Phase{Playing, Result, Playing, GameOver, Playing, Playing}
	for _, next := range steps {
		if err := sm.ChangeState(next); err != nil {
			t.Fatalf("Transition %s -> %s failed: %v", sm.GetCurrentState(), next, err)
		}
	}

	if err := sm.ChangeState(Waiting); err != ErrTransitionNotAllowed {
		t.Errorf("No phase may return to waiting, got %v", err)
	}
}

func TestStateMachine_OnTransition(t *testing.T) {
	sm := NewGameMachine(Playing, nil)

	var from, to Phase
	calls := 0
	sm.OnTransition(func(f, n Phase) {
		from, to = f, n
		calls++
	})

	if err := sm.ChangeState(Result); err != nil {
		t.Fatal(err)
	}
	if calls != 1 || from != Playing || to != Result {
		t.Errorf("Listener saw %d calls, last %s -> %s", calls, from, to)
	}

	sm.ChangeState(Waiting)
	if calls != 1 {
		t.Error("Listener must not run for rejected transitions")
	}
}

func TestParsePhase(t *testing.T) {
	for _, s := range []string{"waiting", "playing", "result", "gameover"} {
		if _, err := ParsePhase(s); err != nil {
			t.Errorf("ParsePhase(%q) failed: %v", s, err)
		}
	}
	if _, err := ParsePhase("lobby"); err == nil {
		t.Error("ParsePhase should reject unknown phases")
	}
}
