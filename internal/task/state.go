package task

import "fmt"

// State is the lifecycle value of a Task. The zero value is Pending.
type State int

const (
	Pending State = iota
	Running
	Success
	Failure
	Skipped
	Stopped
)

var stateNames = [...]string{
	Pending: "Pending",
	Running: "Running",
	Success: "Success",
	Failure: "Failure",
	Skipped: "Skipped",
	Stopped: "Stopped",
}

// String returns the canonical name of s.
func (s State) String() string {
	if int(s) < 0 || int(s) >= len(stateNames) {
		return "Unknown"
	}
	return stateNames[s]
}

// ParseState is the inverse of String; it returns an error for any value
// not produced by String, including "Unknown".
func ParseState(s string) (State, error) {
	for i, name := range stateNames {
		if name == s {
			return State(i), nil
		}
	}
	return 0, fmt.Errorf("task: invalid state %q", s)
}

// MarshalJSON renders the state as its string form.
func (s State) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// UnmarshalJSON parses the state from its string form.
func (s *State) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("task: invalid state JSON %s", data)
	}
	parsed, err := ParseState(string(data[1 : len(data)-1]))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Terminal reports whether s is one a task never leaves on its own: the
// scheduler may still dispatch a Skipped task on a later pass, but
// Success/Failure/Stopped only change when a new Run resets every task.
func (s State) Terminal() bool {
	return s == Success || s == Failure || s == Stopped
}
