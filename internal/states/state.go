// Package states implements the viewer's state machine.
package states

import (
	"errors"
	"io"
)

// ErrDone is returned from Update by a state that finished the run. The
// viewer loop treats it as a clean exit.
var ErrDone = errors.New("viewer finished")

// State represents a viewer state (loading, viewing).
type State interface {
	// Enter is called when entering this state.
	Enter() error

	// Exit is called when leaving this state.
	Exit() error

	// Update is called every tick.
	Update(dt float64) error

	// Render writes a textual view of the state.
	Render(w io.Writer) error
}

// Manager manages state transitions.
type Manager struct {
	current State
	next    State
}

// NewManager creates a new state manager.
func NewManager() *Manager {
	return &Manager{}
}

// Current returns the current state.
func (m *Manager) Current() State {
	return m.current
}

// Change schedules a state change for the start of the next Update.
func (m *Manager) Change(next State) {
	m.next = next
}

// Update processes state changes and updates current state.
func (m *Manager) Update(dt float64) error {
	if m.next != nil {
		if m.current != nil {
			if err := m.current.Exit(); err != nil {
				return err
			}
		}
		m.current = m.next
		m.next = nil
		if err := m.current.Enter(); err != nil {
			return err
		}
	}

	if m.current != nil {
		return m.current.Update(dt)
	}
	return nil
}

// Render renders the current state.
func (m *Manager) Render(w io.Writer) error {
	if m.current != nil {
		return m.current.Render(w)
	}
	return nil
}

// Close exits the current state, if any.
func (m *Manager) Close() error {
	if m.current == nil {
		return nil
	}
	err := m.current.Exit()
	m.current = nil
	return err
}
