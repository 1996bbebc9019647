package qproc

import (
	"context"
)

/*
Executor is the backend that does the numerical work. A process hands it
each drained batch of primitive instructions exactly once, in program order,
and expects one Result per Measure and Dump in that batch.
*/
type Executor interface {
	Submit(ctx context.Context, batch []Instruction) ([]Result, error)
}

// Capabilities describes what an executor can take.
type Capabilities struct {
	// MaxQubits is the number of indices the backend can address, ancillas included.
	MaxQubits int
	// NativeMultiControl means logical gates may be submitted without decomposition.
	NativeMultiControl bool
}

// CapabilityReporter is implemented by executors that declare their limits.
type CapabilityReporter interface {
	Capabilities() Capabilities
}

/*
Result answers one result-producing instruction of a batch. ID is the ID of
the Measure or Dump it answers; Value is set for measurements and Snapshot
for dumps.
*/
type Result struct {
	ID       uint64
	Kind     InstructionKind
	Value    uint64
	Snapshot *Snapshot
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, batch []Instruction) ([]Result, error)

func (f ExecutorFunc) Submit(ctx context.Context, batch []Instruction) ([]Result, error) {
	return f(ctx, batch)
}

func capabilitiesOf(executor Executor) (Capabilities, bool) {
	reporter, ok := executor.(CapabilityReporter)
	if !ok {
		return Capabilities{}, false
	}
	return reporter.Capabilities(), true
}
