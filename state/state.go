package state

import (
	"errors"
	"fmt"
	"sync"
)

// Phase is a room's position in the game flow.
type Phase string

const (
	Waiting  Phase = "waiting"
	Playing  Phase = "playing"
	Result   Phase = "result"
	GameOver Phase = "gameover"
)

// ParsePhase validates a phase name.
func ParsePhase(s string) (Phase, error) {
	switch p := Phase(s); p {
	case Waiting, Playing, Result, GameOver:
		return p, nil
	}
	return "", fmt.Errorf("unknown phase %q", s)
}

// StateMachine is the phase tracker a room drives.
type StateMachine interface {
	ChangeState(to Phase) error
	GetCurrentState() Phase
	CanTransition(to Phase) bool
	AddTransition(from, to Phase, condition func() bool) error
	OnTransition(fn func(from, to Phase))
}

var _ StateMachine = (*BaseStateMachine)(nil)

// ErrTransitionNotAllowed is returned when a transition is not registered or
// its condition does not hold.
var ErrTransitionNotAllowed = errors.New("state transition not allowed")

// BaseStateMachine only permits registered transitions.
type BaseStateMachine struct {
	currentState Phase
	transitions  map[Phase]map[Phase]func() bool // from -> to -> condition
	listeners    []func(from, to Phase)
	mutex        sync.RWMutex
}

func NewBaseStateMachine(initial Phase) *BaseStateMachine {
	return &BaseStateMachine{
		currentState: initial,
		transitions:  make(map[Phase]map[Phase]func() bool),
	}
}

// NewGameMachine builds the room flow starting at initial. canStart gates
// every entry into Playing from Waiting.
func NewGameMachine(initial Phase, canStart func() bool) *BaseStateMachine {
	sm := NewBaseStateMachine(initial)
	sm.AddTransition(Waiting, Playing, canStart)
	sm.AddTransition(Playing, Result, nil)
	sm.AddTransition(Playing, GameOver, nil)
	sm.AddTransition(Playing, Playing, nil)
	sm.AddTransition(Result, Playing, nil)
	sm.AddTransition(GameOver, Playing, nil)
	return sm
}

func (sm *BaseStateMachine) ChangeState(to Phase) error {
	sm.mutex.Lock()
	from := sm.currentState

	conditions, exists := sm.transitions[from]
	if !exists {
		sm.mutex.Unlock()
		return ErrTransitionNotAllowed
	}
	condition, exists := conditions[to]
	if !exists || (condition != nil && !condition()) {
		sm.mutex.Unlock()
		return ErrTransitionNotAllowed
	}

	sm.currentState = to
	listeners := sm.listeners
	sm.mutex.Unlock()

	for _, fn := range listeners {
		fn(from, to)
	}
	return nil
}

func (sm *BaseStateMachine) GetCurrentState() Phase {
	sm.mutex.RLock()
	defer sm.mutex.RUnlock()
	return sm.currentState
}

// CanTransition reports whether ChangeState(to) would currently succeed.
func (sm *BaseStateMachine) CanTransition(to Phase) bool {
	sm.mutex.RLock()
	defer sm.mutex.RUnlock()
	condition, exists := sm.transitions[sm.currentState][to]
	return exists && (condition == nil || condition())
}

func (sm *BaseStateMachine) AddTransition(from, to Phase, condition func() bool) error {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	if _, exists := sm.transitions[from]; !exists {
		sm.transitions[from] = make(map[Phase]func() bool)
	}
	sm.transitions[from][to] = condition
	return nil
}

// OnTransition registers fn to run after every successful transition.
func (sm *BaseStateMachine) OnTransition(fn func(from, to Phase)) {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()
	sm.listeners = append(sm.listeners, fn)
}
