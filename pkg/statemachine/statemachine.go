package statemachine

import (
	"context"
	"fmt"
	"sync"
)

// Guard vetoes a transition when it returns false.
type Guard[S, E comparable] func(ctx context.Context, from S, event E) bool

// Hook observes a completed transition. It runs after the state has changed,
// outside of the machine's lock.
type Hook[S, E comparable] func(ctx context.Context, from, to S, event E)

type transition[S, E comparable] struct {
	to     S
	guards []Guard[S, E]
}

// Machine is a thread-safe finite state machine over comparable state and event types.
type Machine[S, E comparable] struct {
	mu      sync.RWMutex
	initial S
	current S
	table   map[S]map[E][]transition[S, E]
	hooks   []Hook[S, E]
}

// Option configures a Machine during construction.
type Option[S, E comparable] func(*Machine[S, E])

// WithTransition allows event to move the machine from each of froms to to.
// Several transitions may share a state and event; the first whose guards
// all pass wins.
func WithTransition[S, E comparable](to S, event E, froms []S, guards ...Guard[S, E]) Option[S, E] {
	return func(m *Machine[S, E]) {
		for _, from := range froms {
			if m.table[from] == nil {
				m.table[from] = make(map[E][]transition[S, E])
			}
			m.table[from][event] = append(m.table[from][event], transition[S, E]{to: to, guards: guards})
		}
	}
}

// WithHook registers a callback for every completed transition.
func WithHook[S, E comparable](h Hook[S, E]) Option[S, E] {
	return func(m *Machine[S, E]) {
		if h != nil {
			m.hooks = append(m.hooks, h)
		}
	}
}

// New creates a machine in the initial state.
func New[S, E comparable](initial S, opts ...Option[S, E]) *Machine[S, E] {
	m := &Machine[S, E]{
		initial: initial,
		current: initial,
		table:   make(map[S]map[E][]transition[S, E]),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Machine[S, E]) Current() S {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Fire applies event to the current state.
func (m *Machine[S, E]) Fire(ctx context.Context, event E) error {
	m.mu.Lock()
	from := m.current
	next, err := m.lookup(ctx, from, event)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	m.current = next
	hooks := m.hooks
	m.mu.Unlock()

	for _, h := range hooks {
		h(ctx, from, next, event)
	}
	return nil
}

// CanFire reports whether Fire would succeed right now.
func (m *Machine[S, E]) CanFire(ctx context.Context, event E) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, err := m.lookup(ctx, m.current, event)
	return err == nil
}

// Reset moves the machine back to its initial state without running hooks.
func (m *Machine[S, E]) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = m.initial
}

func (m *Machine[S, E]) lookup(ctx context.Context, from S, event E) (S, error) {
	candidates := m.table[from][event]
	if len(candidates) == 0 {
		return from, &TransitionError{State: fmt.Sprint(from), Event: fmt.Sprint(event), Err: ErrNoTransition}
	}
	for _, t := range candidates {
		if passes(ctx, t.guards, from, event) {
			return t.to, nil
		}
	}
	return from, &TransitionError{State: fmt.Sprint(from), Event: fmt.Sprint(event), Err: ErrTransitionRejected}
}

func passes[S, E comparable](ctx context.Context, guards []Guard[S, E], from S, event E) bool {
	for _, g := range guards {
		if g != nil && !g(ctx, from, event) {
			return false
		}
	}
	return true
}
