package qproc

import (
	"fmt"
	"math"
)

/*
operandChecker answers the two questions gate validation asks about a raw
qubit index.
*/
type operandChecker interface {
	knows(index int) bool
	consumed(index int) bool
}

/*
validateGate rejects a gate before it reaches the ledger.

Returns:
  - ErrMalformedGate for an unknown kind, wrong target arity, a non-finite
    angle, a non-unitary matrix, an unknown index or a qubit used twice.
  - ErrUseAfterConsume for an operand that was measured or freed.
*/
func validateGate(g Gate, operands operandChecker) error {
	if !g.Kind.valid() {
		return fmt.Errorf("%w: unknown gate kind %d", ErrMalformedGate, int(g.Kind))
	}

	if len(g.Targets) == 0 {
		return fmt.Errorf("%w: %s without targets", ErrMalformedGate, g.Kind)
	}
	if g.Kind.Arity() == 2 && len(g.Targets) != 2 {
		return fmt.Errorf("%w: %s takes 2 targets, got %d", ErrMalformedGate, g.Kind, len(g.Targets))
	}

	if g.Kind.Parametrized() && (math.IsNaN(g.Theta) || math.IsInf(g.Theta, 0)) {
		return fmt.Errorf("%w: %s angle %v", ErrMalformedGate, g.Kind, g.Theta)
	}
	if g.Kind == GateUnitary && !g.Matrix.IsUnitary() {
		return fmt.Errorf("%w: matrix %v is not unitary", ErrMalformedGate, g.Matrix)
	}

	seen := make(map[int]bool)
	for _, q := range g.Qubits() {
		if seen[q] {
			return fmt.Errorf("%w: qubit %d appears twice in %s", ErrMalformedGate, q, g)
		}
		seen[q] = true

		if !operands.knows(q) {
			return fmt.Errorf("%w: unknown qubit %d", ErrMalformedGate, q)
		}
		if operands.consumed(q) {
			return fmt.Errorf("%w: qubit %d in %s", ErrUseAfterConsume, q, g)
		}
	}

	return nil
}

/*
ancillasFor is the number of scratch qubits the decomposition of op under n
controls borrows. It is zero on a backend with native multi-control.
*/
func ancillasFor(op Op, controls int) int {
	if op.Kind == GateSwap {
		// The middle of a controlled swap is an X with one extra control.
		return ancillasFor(X(), controls+1)
	}
	switch {
	case controls < 2:
		return 0
	case op.Kind == GateX:
		return controls - 2
	default:
		return controls - 1
	}
}

/*
Decomposer lowers logical gates into single-qubit gates and CNOT.

It is pure: the same batch and index layout always produce the same
primitive sequence, with every primitive keeping the ID of the gate it came
from. Alloc, Measure, Dump and Free pass through untouched and in place.
*/
type Decomposer struct {
	native bool
}

func NewDecomposer(native bool) *Decomposer {
	return &Decomposer{native: native}
}

// Decomposition is the lowered form of one drained batch.
type Decomposition struct {
	Instructions []Instruction
	Ancillas     int
}

/*
Decompose lowers a batch recorded on top of the given index layout.

Parameters:
  - batch: drained instructions in program order
  - layout: occupied indices and high-water mark before the batch

Returns:
  - the primitive instructions and the number of ancillas borrowed
  - ErrMalformedGate if a gate refers to an index that is not allocated at
    that point of the program
*/
func (d *Decomposer) Decompose(batch []Instruction, layout indexLayout) (Decomposition, error) {
	arena := newAncillaArena(layout)
	out := make([]Instruction, 0, len(batch))

	for _, in := range batch {
		for _, q := range in.Touched() {
			if in.Kind != OpAlloc && !arena.occupied(q) {
				return Decomposition{}, fmt.Errorf(
					"%w: %s refers to unallocated qubit %d", ErrMalformedGate, in, q,
				)
			}
		}

		if in.Kind != OpGate {
			arena.replay(in)
			out = append(out, in)
			continue
		}

		if d.native {
			out = append(out, in)
			continue
		}

		lowered, err := d.gate(in.ID, in.Gate, arena)
		if err != nil {
			return Decomposition{}, err
		}
		out = append(out, lowered...)
	}

	return Decomposition{Instructions: out, Ancillas: arena.borrowed}, nil
}

// emitter collects the primitives of one logical gate.
type emitter struct {
	id    uint64
	out   []Instruction
	arena *ancillaArena
}

func (e *emitter) emit(op Op, controls []int, target int) {
	e.out = append(e.out, gateInstruction(e.id, op, controls, target))
}

func (e *emitter) cnot(control, target int) {
	e.emit(X(), []int{control}, target)
}

func (d *Decomposer) gate(id uint64, g Gate, arena *ancillaArena) ([]Instruction, error) {
	e := &emitter{id: id, arena: arena}

	if g.Kind == GateSwap {
		a, b := g.Targets[0], g.Targets[1]
		e.cnot(b, a)
		if err := e.controlled(X(), append(append([]int(nil), g.Controls...), a), b); err != nil {
			return nil, err
		}
		e.cnot(b, a)
		return e.out, nil
	}

	for _, t := range g.Targets {
		if err := e.controlled(g.Op, g.Controls, t); err != nil {
			return nil, err
		}
	}
	return e.out, nil
}

func (e *emitter) controlled(op Op, controls []int, target int) error {
	switch {
	case len(controls) == 0:
		return e.single(op, target)
	case len(controls) == 1:
		return e.singleControl(op, controls[0], target)
	case len(controls) == 2 && op.Kind == GateX:
		e.toffoli(controls[0], controls[1], target)
		return nil
	default:
		return e.multiControl(op, controls, target)
	}
}

func (e *emitter) single(op Op, target int) error {
	if op.Kind != GateUnitary {
		e.emit(op, nil, target)
		return nil
	}

	_, beta, gamma, delta := eulerZYZ(op.Matrix)
	e.rotation(RZ(delta), target)
	e.rotation(RY(gamma), target)
	e.rotation(RZ(beta), target)
	return nil
}

// rotation skips angles that are zero within tolerance.
func (e *emitter) rotation(op Op, target int) {
	if math.Abs(op.Theta) < tolerance {
		return
	}
	e.emit(op, nil, target)
}

/*
singleControl applies C-U with U = e^{iα}·A·X·B·X·C and A·B·C = I: the
target runs C, CNOT, B, CNOT, A and the control picks up Phase(α).
*/
func (e *emitter) singleControl(op Op, control, target int) error {
	switch op.Kind {
	case GateX:
		e.cnot(control, target)
		return nil
	case GateZ:
		e.emit(H(), nil, target)
		e.cnot(control, target)
		e.emit(H(), nil, target)
		return nil
	}

	m, err := op.SingleQubitMatrix()
	if err != nil {
		return err
	}
	alpha, beta, gamma, delta := eulerZYZ(m)

	e.rotation(RZ((delta-beta)/2), target)
	e.cnot(control, target)
	e.rotation(RZ(-(delta+beta)/2), target)
	e.rotation(RY(-gamma/2), target)
	e.cnot(control, target)
	e.rotation(RY(gamma/2), target)
	e.rotation(RZ(beta), target)
	e.rotation(Phase(alpha), control)
	return nil
}

// toffoli is the exact seven-T network for CCX.
func (e *emitter) toffoli(a, b, target int) {
	e.emit(H(), nil, target)
	e.cnot(b, target)
	e.emit(Tdg(), nil, target)
	e.cnot(a, target)
	e.emit(T(), nil, target)
	e.cnot(b, target)
	e.emit(Tdg(), nil, target)
	e.cnot(a, target)
	e.emit(T(), nil, b)
	e.emit(T(), nil, target)
	e.emit(H(), nil, target)
	e.cnot(a, b)
	e.emit(T(), nil, a)
	e.emit(Tdg(), nil, b)
	e.cnot(a, b)
}

/*
multiControl accumulates the AND of all controls into a chain of clean
ancillas with Toffolis, applies the gate from the last link and uncomputes
the chain. An X target is fed by the last ancilla and the last control
directly, so it needs one ancilla less.
*/
func (e *emitter) multiControl(op Op, controls []int, target int) error {
	n := len(controls)
	ancillas := e.arena.borrow(ancillasFor(op, n))
	defer e.arena.release(ancillas)

	for _, a := range ancillas {
		e.out = append(e.out, allocInstruction(e.id, a, true))
	}

	// chain[i] holds c0 ∧ ... ∧ c(i+1).
	compute := func() {
		prev := controls[0]
		for i, a := range ancillas {
			e.toffoli(prev, controls[i+1], a)
			prev = a
		}
	}
	uncompute := func() {
		for i := len(ancillas) - 1; i >= 0; i-- {
			prev := controls[0]
			if i > 0 {
				prev = ancillas[i-1]
			}
			e.toffoli(prev, controls[i+1], ancillas[i])
		}
	}

	compute()

	var err error
	if op.Kind == GateX {
		e.toffoli(ancillas[len(ancillas)-1], controls[n-1], target)
	} else {
		err = e.singleControl(op, ancillas[len(ancillas)-1], target)
	}

	uncompute()

	for _, a := range ancillas {
		e.out = append(e.out, freeInstruction(e.id, a, true))
	}
	return err
}
