package workflow

import (
	"slices"
	"strings"
)

// Status is a snapshot of a workflow's lifecycle. An empty RunState means the
// server reported none.
type Status struct {
	State    string `json:"state"`
	RunState string `json:"runState,omitempty"`
}

// HasRunState reports whether the server reported a run state.
func (s Status) HasRunState() bool {
	return s.RunState != ""
}

func (s Status) String() string {
	runState := s.RunState
	if runState == "" {
		runState = "<none>"
	}
	return s.State + "/" + runState
}

// DefaultTerminalStates are the run states that end a wait unless overridden.
var DefaultTerminalStates = []string{"FINISHED", "SUCCESS", "FAILED", "ERROR", "STOPPED", "CANCELLED"}

// TerminalJobStates are the job states that end a job wait.
var TerminalJobStates = []string{"FINISHED", "FAILED", "NOT_SUPPORTED", "FAILED_INSUFFICIENT_FUNDS"}

// TerminalSet is an immutable set of terminal states stored upper-case and
// matched case-insensitively. The zero value contains nothing.
type TerminalSet struct {
	states map[string]struct{}
}

// NewTerminalSet builds a set from states; blank entries are ignored.
func NewTerminalSet(states ...string) TerminalSet {
	set := TerminalSet{states: make(map[string]struct{}, len(states))}
	for _, s := range states {
		canonical := canonicalState(s)
		if canonical == "" {
			continue
		}
		set.states[canonical] = struct{}{}
	}
	return set
}

// DefaultTerminalSet returns the set built from DefaultTerminalStates.
func DefaultTerminalSet() TerminalSet {
	return NewTerminalSet(DefaultTerminalStates...)
}

// Contains reports whether state is terminal. An empty state is never terminal.
func (t TerminalSet) Contains(state string) bool {
	canonical := canonicalState(state)
	if canonical == "" {
		return false
	}
	_, ok := t.states[canonical]
	return ok
}

// Len returns the number of states in the set.
func (t TerminalSet) Len() int {
	return len(t.states)
}

// States returns the canonical states sorted.
func (t TerminalSet) States() []string {
	out := make([]string, 0, len(t.states))
	for s := range t.states {
		out = append(out, s)
	}
	slices.Sort(out)
	return out
}

func canonicalState(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
