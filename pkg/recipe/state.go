// SPDX-License-Identifier: MPL-2.0

package recipe

import "fmt"

// State is the lifecycle state of one recipe build.
type State int

const (
	StateUnresolved State = iota
	StateSourceFetched
	StateConfigured
	StateBuilt
	StatePackaged
	StatePublished
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUnresolved:
		return "unresolved"
	case StateSourceFetched:
		return "source_fetched"
	case StateConfigured:
		return "configured"
	case StateBuilt:
		return "built"
	case StatePackaged:
		return "packaged"
	case StatePublished:
		return "published"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// IsTerminal reports whether no further transition is possible.
func (s State) IsTerminal() bool {
	return s == StatePublished || s == StateFailed
}

// Transition validates a state change. Builds move strictly forward; a cache
// hit moves Unresolved straight to Published; Failed is reachable from every
// non-terminal state. Nothing leaves a terminal state.
func Transition(from, to State) error {
	if !allowed(from, to) {
		return fmt.Errorf("invalid build state transition %s -> %s", from, to)
	}
	return nil
}

func allowed(from, to State) bool {
	if from.IsTerminal() {
		return false
	}
	if to == StateFailed {
		return true
	}
	if from == StateUnresolved && to == StatePublished {
		return true
	}
	return to == from+1
}

// Tracker records the state of one recipe build and rejects invalid moves.
// It is owned by a single builder goroutine.
type Tracker struct {
	state   State
	history []State
}

// NewTracker returns a tracker in StateUnresolved.
func NewTracker() *Tracker {
	return &Tracker{history: []State{StateUnresolved}}
}

// State returns the current state.
func (t *Tracker) State() State {
	return t.state
}

// History returns every state visited, starting with StateUnresolved.
func (t *Tracker) History() []State {
	return append([]State(nil), t.history...)
}

// Advance moves to the given state.
func (t *Tracker) Advance(to State) error {
	if err := Transition(t.state, to); err != nil {
		return err
	}
	t.state = to
	t.history = append(t.history, to)
	return nil
}

// Fail moves to StateFailed; it is a no-op when already terminal.
func (t *Tracker) Fail() {
	if t.state.IsTerminal() {
		return
	}
	t.state = StateFailed
	t.history = append(t.history, StateFailed)
}
