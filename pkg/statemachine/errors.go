package statemachine

import (
	"errors"
	"fmt"
)

var (
	// ErrNoTransition is returned when no transition is defined for the current state and event.
	ErrNoTransition = errors.New("statemachine: no transition available")
	// ErrTransitionRejected is returned when every candidate transition was vetoed by its guards.
	ErrTransitionRejected = errors.New("statemachine: transition rejected by guards")
)

// TransitionError carries the state and event of a failed Fire.
// It unwraps to ErrNoTransition or ErrTransitionRejected.
type TransitionError struct {
	State string
	Event string
	Err   error
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%v: state %q, event %q", e.Err, e.State, e.Event)
}

func (e *TransitionError) Unwrap() error { return e.Err }
