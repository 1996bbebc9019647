package qproc

import (
	"sync"
)

/*
Ledger is the ordered, append-only record of a process's instructions.

Every recorded instruction receives the next sequence number as its ID.
Instructions stay buffered until the coordinator drains them; a drained
instruction is gone from the ledger for good, so nothing is ever submitted
twice.

Alongside the buffer the ledger keeps, per qubit index, the most recent
instruction that touched it with a unitary or a measurement. Gate validation
reads it to refuse operands that were already measured, and the metrics read
the per-qubit depth it maintains.
*/
type Ledger struct {
	mu       sync.Mutex
	sequence uint64
	pending  []Instruction

	lastTouch map[int]Touch
	depth     map[int]int
	maxDepth  int
	arity     map[int]int
}

// Touch is the last unitary or measurement recorded on a qubit index.
type Touch struct {
	ID       uint64
	Measured bool
}

func NewLedger() *Ledger {
	return &Ledger{
		pending:   make([]Instruction, 0),
		lastTouch: make(map[int]Touch),
		depth:     make(map[int]int),
		arity:     make(map[int]int),
	}
}

/*
Record appends the instruction in program order and returns it with its ID
filled in.
*/
func (l *Ledger) Record(in Instruction) Instruction {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.sequence++
	in.ID = l.sequence
	l.pending = append(l.pending, in)

	switch in.Kind {
	case OpGate:
		l.touch(in.ID, in.Gate.Qubits(), false)
		l.arity[len(in.Gate.Qubits())]++
	case OpMeasure:
		l.touch(in.ID, in.Qubits, true)
	case OpAlloc, OpFree:
		// A recycled index starts a fresh history.
		for _, q := range in.Qubits {
			delete(l.lastTouch, q)
		}
	}

	return in
}

func (l *Ledger) touch(id uint64, qubits []int, measured bool) {
	layer := 0
	for _, q := range qubits {
		layer = max(layer, l.depth[q])
	}
	layer++
	for _, q := range qubits {
		l.lastTouch[q] = Touch{ID: id, Measured: measured}
		l.depth[q] = layer
	}
	l.maxDepth = max(l.maxDepth, layer)
}

// Drain removes and returns every buffered instruction.
func (l *Ledger) Drain() []Instruction {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := l.pending
	l.pending = make([]Instruction, 0)
	return out
}

// Pending returns a copy of the buffered instructions without draining them.
func (l *Ledger) Pending() []Instruction {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Instruction, len(l.pending))
	copy(out, l.pending)
	return out
}

func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending)
}

// LastTouch returns the most recent unitary or measurement on index q.
func (l *Ledger) LastTouch(q int) (Touch, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, ok := l.lastTouch[q]
	return t, ok
}

// Measured reports whether the last touch of q was a measurement.
func (l *Ledger) Measured(q int) bool {
	t, ok := l.LastTouch(q)
	return ok && t.Measured
}

// Depth is the circuit depth of everything recorded so far.
func (l *Ledger) Depth() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.maxDepth
}

// GateCount returns the number of recorded gates keyed by how many qubits they touch.
func (l *Ledger) GateCount() map[int]int {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make(map[int]int, len(l.arity))
	for k, v := range l.arity {
		out[k] = v
	}
	return out
}

// Sequence is the ID of the last recorded instruction.
func (l *Ledger) Sequence() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sequence
}
