package qproc

import (
	"fmt"
	"sync"

	"github.com/theapemachine/errnie"
)

/*
ProcessState is the lifecycle of a process. It moves between Building and
Submitting while instructions are recorded and flushed, and ends in either
Finished or Failed.
*/
type ProcessState int

const (
	StateBuilding   ProcessState = iota // Recording instructions
	StateSubmitting                     // A batch is with the executor
	StateFinished                       // Finalized, only readouts allowed
	StateFailed                         // Poisoned by an execution failure
)

func (s ProcessState) String() string {
	switch s {
	case StateBuilding:
		return "building"
	case StateSubmitting:
		return "submitting"
	case StateFinished:
		return "finished"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("ProcessState(%d)", int(s))
	}
}

/*
lifecycle guards the state transitions of one process. Once Failed, it keeps
the cause and every check returns it wrapped in ErrProcessPoisoned.
*/
type lifecycle struct {
	mu    sync.RWMutex
	state ProcessState
	cause error
}

func newLifecycle() *lifecycle {
	return &lifecycle{state: StateBuilding}
}

func (l *lifecycle) State() ProcessState {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// usable fails unless the process is still recording.
func (l *lifecycle) usable() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.checkLocked(true)
}

// readable fails only for a poisoned process.
func (l *lifecycle) readable() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.checkLocked(false)
}

func (l *lifecycle) checkLocked(recording bool) error {
	switch l.state {
	case StateFailed:
		return fmt.Errorf("%w: %w", ErrProcessPoisoned, l.cause)
	case StateFinished:
		if recording {
			return ErrProcessFinished
		}
	case StateSubmitting:
		if recording {
			return fmt.Errorf("process is %s", l.state)
		}
	}
	return nil
}

// begin moves Building to Submitting.
func (l *lifecycle) begin() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.checkLocked(true); err != nil {
		return err
	}
	l.state = StateSubmitting
	return nil
}

// settle returns a successful submission to Building.
func (l *lifecycle) settle() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state == StateSubmitting {
		l.state = StateBuilding
	}
}

func (l *lifecycle) finish() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state != StateFailed {
		l.state = StateFinished
		errnie.Debug("process finished")
	}
}

// poison moves to Failed for good and returns the error callers should see.
func (l *lifecycle) poison(cause error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state != StateFailed {
		l.state = StateFailed
		l.cause = cause
		errnie.Warn("process poisoned: %v", cause)
	}
	return fmt.Errorf("%w: %w", ErrProcessPoisoned, l.cause)
}
