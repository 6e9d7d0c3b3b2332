package runner

import (
	"errors"
	"fmt"
)

// ErrNoEngine is returned by Run when Options.Engine is nil.
var ErrNoEngine = errors.New("runner: no browser engine configured")

// TrialError reports the step that ended a session.
type TrialError struct {
	Worker int
	Trial  int    // 0 when the session failed before its first trial
	Op     string // "open context", "open page", "stagger", "pace", "trace headers", "load", "reset"
	Err    error
}

func (e *TrialError) Error() string {
	if e.Trial == 0 {
		return fmt.Sprintf("worker %d: %s: %v", e.Worker, e.Op, e.Err)
	}
	return fmt.Sprintf("worker %d trial %d: %s: %v", e.Worker, e.Trial, e.Op, e.Err)
}

func (e *TrialError) Unwrap() error {
	return e.Err
}
