package qproc

import (
	"fmt"

	"github.com/google/uuid"
)

/*
Qubit is a handle to one qubit of one process. It is a plain value: copying
it copies the reference, never the quantum state behind it.

The generation tag changes every time an index is recycled, so a handle kept
past Free is recognised as stale even after its index is reused.
*/
type Qubit struct {
	process    uuid.UUID
	index      int
	generation uint32
}

// Index is the backend qubit index the handle refers to.
func (q Qubit) Index() int {
	return q.index
}

func (q Qubit) Generation() uint32 {
	return q.generation
}

// Process is the id of the owning process.
func (q Qubit) Process() uuid.UUID {
	return q.process
}

func (q Qubit) String() string {
	return fmt.Sprintf("q%d.%d", q.index, q.generation)
}

func indicesOf(qubits []Qubit) []int {
	out := make([]int, len(qubits))
	for i, q := range qubits {
		out[i] = q.index
	}
	return out
}
