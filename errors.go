package qproc

import (
	"errors"
	"fmt"
)

var (
	// ErrCapacityExceeded is returned when an allocation, or the ancilla demand
	// of a multi-controlled gate, would exceed the qubit limit of the backend.
	ErrCapacityExceeded = errors.New("qubit capacity exceeded")

	// ErrUseAfterConsume is returned when a measured or freed qubit receives an
	// operation it can no longer take.
	ErrUseAfterConsume = errors.New("use of consumed qubit")

	// ErrMalformedGate is returned for an invalid operand set: unknown or
	// foreign qubits, a qubit used twice, or wrong target arity.
	ErrMalformedGate = errors.New("malformed gate")

	// ErrResultNotReady is returned when a result is queried before the
	// instruction that produces it has been executed.
	ErrResultNotReady = errors.New("result not ready")

	// ErrExecutionFailed is matched by every *ExecutionError.
	ErrExecutionFailed = errors.New("execution failed")

	// ErrProcessPoisoned is returned by every call on a process after an
	// execution failure.
	ErrProcessPoisoned = errors.New("process poisoned")

	// ErrProcessFinished is returned when instructions are recorded after the
	// process has been finalized.
	ErrProcessFinished = errors.New("process finished")

	// ErrUnsupportedObservable is returned when an observable cannot be
	// evaluated against the kind of result it was given.
	ErrUnsupportedObservable = errors.New("unsupported observable")
)

/*
Fault separates failures raised by the backend itself from failures in the
conversation with the backend.
*/
type Fault int

const (
	FaultBackend  Fault = iota // The executor returned an error
	FaultProtocol              // The executor answered, but the answer broke the contract
)

func (f Fault) String() string {
	switch f {
	case FaultBackend:
		return "backend"
	case FaultProtocol:
		return "protocol"
	default:
		return "unknown"
	}
}

/*
ExecutionError is the failure surfaced by the coordinator when a submission
does not succeed. It carries the executor's error verbatim in Err.
*/
type ExecutionError struct {
	Fault  Fault
	Detail string
	Err    error
}

func (e *ExecutionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s fault: %s: %v", ErrExecutionFailed, e.Fault, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s fault: %s", ErrExecutionFailed, e.Fault, e.Detail)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrExecutionFailed) match any ExecutionError.
func (e *ExecutionError) Is(target error) bool {
	return target == ErrExecutionFailed
}

func backendFault(detail string, err error) *ExecutionError {
	return &ExecutionError{Fault: FaultBackend, Detail: detail, Err: err}
}

func protocolFault(format string, args ...any) *ExecutionError {
	return &ExecutionError{Fault: FaultProtocol, Detail: fmt.Sprintf(format, args...)}
}
