package workflow

import (
	"fmt"
	"time"
)

// RunState is the orchestrator lifecycle state.
type RunState int

const (
	StateIdle RunState = iota
	StateInitializing
	StateRunning
	StateDraining
	StateErroring
	StateStopped
)

func (s RunState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInitializing:
		return "initializing"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateErroring:
		return "erroring"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var allowedTransitions = map[RunState][]RunState{
	StateIdle:         {StateInitializing},
	StateInitializing: {StateRunning, StateErroring},
	StateRunning:      {StateDraining, StateErroring},
	StateDraining:     {StateStopped, StateErroring},
	StateErroring:     {StateStopped},
}

// CanTransition reports whether the state machine permits from -> to.
func CanTransition(from, to RunState) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition is one entry of the state history.
type Transition struct {
	From   RunState
	To     RunState
	At     time.Duration
	Wall   time.Time
	Reason string
}
