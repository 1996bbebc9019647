package qproc

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
)

type qubitStatus int

const (
	statusFree qubitStatus = iota
	statusLive
	statusMeasured
)

type slot struct {
	status     qubitStatus
	generation uint32
}

/*
allocator hands out qubit indices for one process. An index is occupied from
Alloc until Free; measurement keeps it occupied but consumed. Freed indices
go to a pool and are reused lowest first, with a new generation.
*/
type allocator struct {
	process  uuid.UUID
	capacity int
	slots    []slot
	pool     []int
	occupied int
	peak     int
}

func newAllocator(process uuid.UUID, capacity int) *allocator {
	return &allocator{
		process:  process,
		capacity: capacity,
		slots:    make([]slot, 0, capacity),
		pool:     make([]int, 0),
	}
}

func (a *allocator) available() int {
	return a.capacity - a.occupied
}

// reserve checks that n more qubits fit without allocating them.
func (a *allocator) reserve(n int) error {
	if a.occupied+n > a.capacity {
		return fmt.Errorf(
			"%w: %d occupied, %d requested, capacity %d",
			ErrCapacityExceeded, a.occupied, n, a.capacity,
		)
	}
	return nil
}

func (a *allocator) alloc() (Qubit, error) {
	if err := a.reserve(1); err != nil {
		return Qubit{}, err
	}

	var index int
	if len(a.pool) > 0 {
		index = a.pool[0]
		a.pool = a.pool[1:]
	} else {
		index = len(a.slots)
		a.slots = append(a.slots, slot{})
	}

	s := &a.slots[index]
	s.status = statusLive
	s.generation++

	a.occupied++
	a.peak = max(a.peak, a.occupied)

	return Qubit{process: a.process, index: index, generation: s.generation}, nil
}

// resolve maps a handle to its slot, rejecting foreign, unknown and stale handles.
func (a *allocator) resolve(q Qubit) (*slot, error) {
	if q.process != a.process {
		return nil, fmt.Errorf("%w: %s belongs to process %s", ErrMalformedGate, q, q.process)
	}
	if q.index < 0 || q.index >= len(a.slots) {
		return nil, fmt.Errorf("%w: unknown qubit %s", ErrMalformedGate, q)
	}
	s := &a.slots[q.index]
	if s.generation != q.generation || s.status == statusFree {
		return nil, fmt.Errorf("%w: %s was freed", ErrUseAfterConsume, q)
	}
	return s, nil
}

// requireLive accepts only qubits that can still take unitaries.
func (a *allocator) requireLive(q Qubit) error {
	s, err := a.resolve(q)
	if err != nil {
		return err
	}
	if s.status == statusMeasured {
		return fmt.Errorf("%w: %s was measured", ErrUseAfterConsume, q)
	}
	return nil
}

func (a *allocator) markMeasured(q Qubit) error {
	if err := a.requireLive(q); err != nil {
		return err
	}
	a.slots[q.index].status = statusMeasured
	return nil
}

func (a *allocator) release(q Qubit) error {
	s, err := a.resolve(q)
	if err != nil {
		return err
	}
	s.status = statusFree
	a.occupied--

	a.pool = append(a.pool, q.index)
	sort.Ints(a.pool)
	return nil
}

// knows reports whether an index was ever handed out.
func (a *allocator) knows(index int) bool {
	return index >= 0 && index < len(a.slots)
}

// consumed reports whether an index can no longer take unitaries.
func (a *allocator) consumed(index int) bool {
	return !a.knows(index) || a.slots[index].status != statusLive
}

// layout returns the occupied indices and the high-water mark.
func (a *allocator) layout() indexLayout {
	occupied := make(map[int]bool, a.occupied)
	for i, s := range a.slots {
		if s.status != statusFree {
			occupied[i] = true
		}
	}
	return indexLayout{occupied: occupied, highWater: len(a.slots)}
}

/*
indexLayout is the allocation picture at one point of the program. The
decomposer replays a drained batch's Alloc and Free instructions over it to
know which indices are free at each gate.
*/
type indexLayout struct {
	occupied  map[int]bool
	highWater int
}

func (l indexLayout) clone() indexLayout {
	occupied := make(map[int]bool, len(l.occupied))
	for k, v := range l.occupied {
		occupied[k] = v
	}
	return indexLayout{occupied: occupied, highWater: l.highWater}
}

/*
ancillaArena lends scratch qubits to a single gate decomposition. Free
indices below the high-water mark are used first, lowest first; fresh ones
are taken above it. Everything borrowed goes back when the gate is done.
*/
type ancillaArena struct {
	layout   indexLayout
	borrowed int
}

func newAncillaArena(layout indexLayout) *ancillaArena {
	return &ancillaArena{layout: layout.clone()}
}

func (a *ancillaArena) borrow(n int) []int {
	out := make([]int, 0, n)
	for i := 0; i < a.layout.highWater && len(out) < n; i++ {
		if !a.layout.occupied[i] {
			out = append(out, i)
		}
	}
	for len(out) < n {
		out = append(out, a.layout.highWater)
		a.layout.highWater++
	}
	for _, i := range out {
		a.layout.occupied[i] = true
	}
	a.borrowed += n
	return out
}

func (a *ancillaArena) release(indices []int) {
	for _, i := range indices {
		delete(a.layout.occupied, i)
	}
}

// replay applies an instruction's effect on the allocation picture.
func (a *ancillaArena) replay(in Instruction) {
	switch in.Kind {
	case OpAlloc:
		for _, q := range in.Qubits {
			a.layout.occupied[q] = true
			a.layout.highWater = max(a.layout.highWater, q+1)
		}
	case OpFree:
		for _, q := range in.Qubits {
			delete(a.layout.occupied, q)
		}
	}
}

func (a *ancillaArena) occupied(index int) bool {
	return a.layout.occupied[index]
}
