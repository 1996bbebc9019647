/*
Package qproc is a runtime for quantum processes. A host program allocates
qubits, applies gates, measures and dumps through a Process; the process
records everything in order, lowers it to single-qubit gates and CNOT, and
runs it on an injected Executor either at every measurement (live) or when
the program asks for a result (batch).
*/
package qproc

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/theapemachine/errnie"
)

/*
Process owns one quantum computation: its qubits, its instruction ledger,
its results and the executor they run on. It is driven by one caller at a
time.
*/
type Process struct {
	ctx    context.Context
	cancel context.CancelFunc

	id        uuid.UUID
	config    *Config
	native    bool
	allocator *allocator
	ledger    *Ledger
	coord     *coordinator
}

// Measurement refers to the result of one Measure call.
type Measurement struct {
	id      uint64
	process uuid.UUID
	width   int
}

func (m Measurement) ID() uint64 { return m.id }

// Width is the number of measured qubits packed into the value.
func (m Measurement) Width() int { return m.width }

// DumpHandle refers to the snapshot of one Dump call.
type DumpHandle struct {
	id      uint64
	process uuid.UUID
	kind    DumpKind
}

func (d DumpHandle) ID() uint64     { return d.id }
func (d DumpHandle) Kind() DumpKind { return d.kind }

/*
NewProcess creates a process bound to executor for its whole life.

The qubit capacity is the configured MaxQubits, lowered to the executor's
own limit when it reports one. Gates are passed through undecomposed when
the configuration or the executor asks for native gates.
*/
func NewProcess(ctx context.Context, executor Executor, opts ...ProcessOption) (*Process, error) {
	if executor == nil {
		return nil, errors.New("qproc: nil executor")
	}

	cfg := NewConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	capacity := cfg.MaxQubits
	native := cfg.NativeGates
	if caps, ok := capabilitiesOf(executor); ok {
		if caps.MaxQubits > 0 && caps.MaxQubits < capacity {
			capacity = caps.MaxQubits
		}
		native = native || caps.NativeMultiControl
	}
	if capacity < 1 {
		return nil, fmt.Errorf("%w: capacity %d", ErrCapacityExceeded, capacity)
	}

	ctx, cancel := context.WithCancel(ctx)
	id := uuid.New()
	alloc := newAllocator(id, capacity)
	ledger := NewLedger()

	p := &Process{
		ctx:       ctx,
		cancel:    cancel,
		id:        id,
		config:    cfg,
		native:    native,
		allocator: alloc,
		ledger:    ledger,
		coord:     newCoordinator(executor, ledger, alloc, NewDecomposer(native)),
	}

	errnie.Info("process %s created: %s mode, %d qubits, native=%v", id, cfg.Mode, capacity, native)
	return p, nil
}

func (p *Process) ID() uuid.UUID {
	return p.id
}

func (p *Process) Mode() Mode {
	return p.config.Mode
}

func (p *Process) State() ProcessState {
	return p.coord.lifecycle.State()
}

// Alloc returns a fresh qubit in |0⟩.
func (p *Process) Alloc() (Qubit, error) {
	if err := p.coord.lifecycle.usable(); err != nil {
		return Qubit{}, err
	}

	q, err := p.allocator.alloc()
	if err != nil {
		return Qubit{}, err
	}
	p.ledger.Record(allocInstruction(0, q.index, false))
	return q, nil
}

// AllocN allocates n qubits, all or none. n must be at least one.
func (p *Process) AllocN(n int) ([]Qubit, error) {
	if err := p.coord.lifecycle.usable(); err != nil {
		return nil, err
	}
	if n < 1 {
		return nil, fmt.Errorf("cannot allocate %d qubits", n)
	}
	if err := p.allocator.reserve(n); err != nil {
		return nil, err
	}

	out := make([]Qubit, n)
	for i := range out {
		q, err := p.Alloc()
		if err != nil {
			return nil, err
		}
		out[i] = q
	}
	return out, nil
}

/*
Free releases a qubit, measured or not. Its index may be handed out again;
the handle itself is dead from now on.
*/
func (p *Process) Free(q Qubit) error {
	if err := p.coord.lifecycle.usable(); err != nil {
		return err
	}
	if err := p.allocator.release(q); err != nil {
		return err
	}
	p.ledger.Record(freeInstruction(0, q.index, false))
	return nil
}

// Apply applies op to each target.
func (p *Process) Apply(op Op, targets ...Qubit) error {
	return p.Ctrl(nil, op, targets...)
}

// CNOT flips target when control is 1.
func (p *Process) CNOT(control, target Qubit) error {
	return p.Ctrl([]Qubit{control}, X(), target)
}

/*
Ctrl applies op to each target, conditioned on every control being 1.

Returns:
  - ErrMalformedGate for foreign or unknown qubits, a qubit used twice, or
    the wrong number of targets
  - ErrUseAfterConsume for a measured or freed operand
  - ErrCapacityExceeded when the ancillas the gate needs do not fit
*/
func (p *Process) Ctrl(controls []Qubit, op Op, targets ...Qubit) error {
	g, err := p.controlled(controls, op, targets)
	if err != nil {
		return err
	}
	p.ledger.Record(Instruction{Kind: OpGate, Gate: g})
	return nil
}

/*
CtrlOn applies op to each target when the controls hold the basis state
state, packed with the first control as the most significant bit. Controls
that must be 0 are flipped with X around the controlled gate.

Returns the errors of Ctrl, and ErrMalformedGate when state does not fit
the controls.
*/
func (p *Process) CtrlOn(controls []Qubit, state uint64, op Op, targets ...Qubit) error {
	n := len(controls)
	if n < 64 && state>>n != 0 {
		return fmt.Errorf("%w: state %d on %d controls", ErrMalformedGate, state, n)
	}

	g, err := p.controlled(controls, op, targets)
	if err != nil {
		return err
	}

	var zeros []int
	for i, c := range g.Controls {
		if state>>(n-1-i)&1 == 0 {
			zeros = append(zeros, c)
		}
	}

	flip := func() {
		for _, c := range zeros {
			p.ledger.Record(gateInstruction(0, X(), nil, c))
		}
	}

	flip()
	p.ledger.Record(Instruction{Kind: OpGate, Gate: g})
	flip()
	return nil
}

// controlled validates a controlled gate and reserves its ancillas.
func (p *Process) controlled(controls []Qubit, op Op, targets []Qubit) (Gate, error) {
	if err := p.coord.lifecycle.usable(); err != nil {
		return Gate{}, err
	}

	for _, q := range append(append([]Qubit(nil), controls...), targets...) {
		if err := p.allocator.requireLive(q); err != nil {
			return Gate{}, err
		}
	}

	g := Gate{Op: op, Controls: indicesOf(controls), Targets: indicesOf(targets)}
	if err := validateGate(g, operandView{p.allocator, p.ledger}); err != nil {
		return Gate{}, err
	}

	if !p.native {
		if err := p.allocator.reserve(ancillasFor(op, len(controls))); err != nil {
			return Gate{}, err
		}
	}

	return g.clone(), nil
}

// operandView answers gate validation from the allocator and the ledger.
type operandView struct {
	allocator *allocator
	ledger    *Ledger
}

func (v operandView) knows(index int) bool {
	return v.allocator.knows(index)
}

func (v operandView) consumed(index int) bool {
	return v.allocator.consumed(index) || v.ledger.Measured(index)
}

func (p *Process) distinct(qubits []Qubit) error {
	if len(qubits) == 0 {
		return fmt.Errorf("%w: no qubits", ErrMalformedGate)
	}
	seen := make(map[int]bool, len(qubits))
	for _, q := range qubits {
		if seen[q.index] {
			return fmt.Errorf("%w: %s appears twice", ErrMalformedGate, q)
		}
		seen[q.index] = true
	}
	return nil
}

/*
Measure collapses the qubits and consumes them. The value packs the outcomes
with the first qubit as the most significant bit. In live mode the call
returns after the executor has answered.
*/
func (p *Process) Measure(qubits ...Qubit) (Measurement, error) {
	if err := p.coord.lifecycle.usable(); err != nil {
		return Measurement{}, err
	}
	if err := p.distinct(qubits); err != nil {
		return Measurement{}, err
	}
	for _, q := range qubits {
		if err := p.allocator.requireLive(q); err != nil {
			return Measurement{}, err
		}
	}
	for _, q := range qubits {
		if err := p.allocator.markMeasured(q); err != nil {
			return Measurement{}, err
		}
	}

	in := p.ledger.Record(Instruction{Kind: OpMeasure, Qubits: indicesOf(qubits)})
	p.coord.results.expect(in.ID, OpMeasure)
	m := Measurement{id: in.ID, process: p.id, width: len(qubits)}

	if p.config.Mode == ModeLive {
		if err := p.coord.flush(p.ctx); err != nil {
			return Measurement{}, err
		}
	}
	return m, nil
}

/*
Dump asks the executor for the state of the qubits without collapsing it.
Measured qubits may be dumped; freed ones may not.
*/
func (p *Process) Dump(qubits []Qubit, kind DumpKind, opts ...DumpOption) (DumpHandle, error) {
	if err := p.coord.lifecycle.usable(); err != nil {
		return DumpHandle{}, err
	}
	if err := p.distinct(qubits); err != nil {
		return DumpHandle{}, err
	}
	for _, q := range qubits {
		if _, err := p.allocator.resolve(q); err != nil {
			return DumpHandle{}, err
		}
	}

	req := DumpRequest{Kind: kind, Shots: p.config.Shots, Seed: p.config.Seed}
	for _, opt := range opts {
		opt(&req)
	}
	if kind < DumpVector || kind > DumpShots {
		return DumpHandle{}, fmt.Errorf("%w: unknown dump kind %s", ErrMalformedGate, kind)
	}
	if kind == DumpShots && req.Shots < 1 {
		return DumpHandle{}, fmt.Errorf("%w: %d shots", ErrMalformedGate, req.Shots)
	}

	in := p.ledger.Record(Instruction{Kind: OpDump, Qubits: indicesOf(qubits), Dump: req})
	p.coord.results.expect(in.ID, OpDump)
	d := DumpHandle{id: in.ID, process: p.id, kind: kind}

	if p.config.Mode == ModeLive {
		if err := p.coord.flush(p.ctx); err != nil {
			return DumpHandle{}, err
		}
	}
	return d, nil
}

func (p *Process) owns(id uuid.UUID) error {
	if id != p.id {
		return fmt.Errorf("%w: result handle of process %s", ErrMalformedGate, id)
	}
	return nil
}

// MeasurementValue returns a stored measurement without submitting anything.
func (p *Process) MeasurementValue(m Measurement) (uint64, error) {
	if err := p.coord.lifecycle.readable(); err != nil {
		return 0, err
	}
	if err := p.owns(m.process); err != nil {
		return 0, err
	}
	return p.coord.results.Measurement(m.id)
}

// ReadMeasurement submits pending instructions if needed and returns the value.
func (p *Process) ReadMeasurement(m Measurement) (uint64, error) {
	if err := p.readout(m.process, m.id); err != nil {
		return 0, err
	}
	return p.coord.results.Measurement(m.id)
}

// Snapshot returns a stored snapshot without submitting anything.
func (p *Process) Snapshot(d DumpHandle) (*Snapshot, error) {
	if err := p.coord.lifecycle.readable(); err != nil {
		return nil, err
	}
	if err := p.owns(d.process); err != nil {
		return nil, err
	}
	return p.coord.results.Snapshot(d.id)
}

// ReadSnapshot submits pending instructions if needed and returns the snapshot.
func (p *Process) ReadSnapshot(d DumpHandle) (*Snapshot, error) {
	if err := p.readout(d.process, d.id); err != nil {
		return nil, err
	}
	return p.coord.results.Snapshot(d.id)
}

// readout flushes unless the result is already there or nothing can be flushed.
func (p *Process) readout(process uuid.UUID, id uint64) error {
	if err := p.coord.lifecycle.readable(); err != nil {
		return err
	}
	if err := p.owns(process); err != nil {
		return err
	}
	if p.coord.results.Ready(id) || p.State() == StateFinished {
		return nil
	}
	return p.coord.flush(p.ctx)
}

/*
ExpectedValue evaluates an observable on a stored snapshot. It never
submits: in batch mode it fails with ErrResultNotReady until the dump has
been executed.
*/
func (p *Process) ExpectedValue(obs Observable, d DumpHandle) (float64, error) {
	snap, err := p.Snapshot(d)
	if err != nil {
		return 0, err
	}
	return obs.Expectation(snap)
}

// ExpectedValueOf is the empirical mean of an observable over stored measurements.
func (p *Process) ExpectedValueOf(obs Observable, measurements ...Measurement) (float64, error) {
	values := make([]uint64, len(measurements))
	widths := make([]int, len(measurements))
	for i, m := range measurements {
		v, err := p.MeasurementValue(m)
		if err != nil {
			return 0, err
		}
		values[i] = v
		widths[i] = m.width
	}
	return obs.Mean(values, widths)
}

/*
Execute submits everything still pending and finalizes the process. Results
stay readable; recording anything afterwards fails with ErrProcessFinished.
*/
func (p *Process) Execute() error {
	errnie.Info("process %s: executing %d pending instructions", p.id, p.ledger.Len())
	return p.coord.finalize(p.ctx)
}

// Close finalizes an open process and releases its context.
func (p *Process) Close() error {
	defer p.cancel()

	if p.State() != StateBuilding {
		return nil
	}
	return p.coord.finalize(p.ctx)
}

// Instructions returns the logical instructions recorded but not yet submitted.
func (p *Process) Instructions() []Instruction {
	return p.ledger.Pending()
}

// Metadata describes the circuit recorded so far and its execution.
func (p *Process) Metadata() map[string]any {
	out := p.coord.metrics.ExportMetrics()

	out["process"] = p.id.String()
	out["mode"] = p.config.Mode.String()
	out["status"] = p.State().String()
	out["native"] = p.native
	out["capacity"] = p.allocator.capacity
	out["max_qubits"] = p.allocator.peak
	out["depth"] = p.ledger.Depth()
	out["gate_count"] = p.ledger.GateCount()
	out["instructions"] = p.ledger.Sequence()

	return out
}
