// Package statemachine implements a small generic finite state machine.
//
// States and events are any comparable types, usually string-based enums.
// Transitions are declared up front with options and may carry guards that
// veto them at runtime. Hooks observe completed transitions.
//
//	type state string
//	type event string
//
//	m := statemachine.New[state, event]("loading",
//		statemachine.WithTransition[state, event]("granted", "allow", []state{"loading"}),
//		statemachine.WithTransition[state, event]("loading", "reset", []state{"granted"}),
//	)
//	_ = m.Fire(ctx, "allow")
//
// Fire returns a *TransitionError that unwraps to ErrNoTransition or
// ErrTransitionRejected. All methods are safe for concurrent use.
package statemachine
