package qproc

import (
	"fmt"
	"sync"
)

/*
ResultStore keeps the answers to Measure and Dump instructions, keyed by the
instruction ID. Each ID is written at most once.
*/
type ResultStore struct {
	mu      sync.RWMutex
	values  map[uint64]Result
	pending map[uint64]InstructionKind
}

func NewResultStore() *ResultStore {
	return &ResultStore{
		values:  make(map[uint64]Result),
		pending: make(map[uint64]InstructionKind),
	}
}

// expect registers an ID that a later submission must answer.
func (rs *ResultStore) expect(id uint64, kind InstructionKind) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.pending[id] = kind
}

/*
Store saves the answers of one submission. It checks them against the
result-producing instructions of the batch before writing anything, so a
bad answer leaves the store untouched.

Returns:
  - an *ExecutionError with FaultProtocol for a missing, duplicate, unknown
    or mis-shaped result
*/
func (rs *ResultStore) Store(batch []Instruction, results []Result) error {
	wanted := make(map[uint64]Instruction)
	for _, in := range batch {
		if in.ProducesResult() {
			wanted[in.ID] = in
		}
	}

	seen := make(map[uint64]bool, len(results))
	for _, r := range results {
		in, ok := wanted[r.ID]
		if !ok {
			return protocolFault("result for unknown instruction %d", r.ID)
		}
		if seen[r.ID] {
			return protocolFault("duplicate result for instruction %d", r.ID)
		}
		seen[r.ID] = true

		if r.Kind != in.Kind {
			return protocolFault("instruction %d is a %s, result is a %s", r.ID, in.Kind, r.Kind)
		}
		switch in.Kind {
		case OpMeasure:
			if len(in.Qubits) < 64 && r.Value>>len(in.Qubits) != 0 {
				return protocolFault("measurement %d of %d qubits returned %d", r.ID, len(in.Qubits), r.Value)
			}
		case OpDump:
			if err := r.Snapshot.validFor(in); err != nil {
				return protocolFault("dump %d: %v", r.ID, err)
			}
		}
	}

	for id := range wanted {
		if !seen[id] {
			return protocolFault("no result for instruction %d", id)
		}
	}

	rs.mu.Lock()
	defer rs.mu.Unlock()

	for _, r := range results {
		r.Snapshot = r.Snapshot.clone()
		rs.values[r.ID] = r
		delete(rs.pending, r.ID)
	}

	return nil
}

// Measurement returns the value of a measurement instruction.
func (rs *ResultStore) Measurement(id uint64) (uint64, error) {
	r, err := rs.lookup(id, OpMeasure)
	if err != nil {
		return 0, err
	}
	return r.Value, nil
}

// Snapshot returns the snapshot of a dump instruction.
func (rs *ResultStore) Snapshot(id uint64) (*Snapshot, error) {
	r, err := rs.lookup(id, OpDump)
	if err != nil {
		return nil, err
	}
	return r.Snapshot.clone(), nil
}

func (rs *ResultStore) lookup(id uint64, kind InstructionKind) (Result, error) {
	rs.mu.RLock()
	defer rs.mu.RUnlock()

	r, ok := rs.values[id]
	if !ok {
		return Result{}, fmt.Errorf("%w: %s #%d", ErrResultNotReady, kind, id)
	}
	if r.Kind != kind {
		return Result{}, fmt.Errorf("instruction #%d is a %s, not a %s", id, r.Kind, kind)
	}
	return r, nil
}

// Ready reports whether the instruction has been answered.
func (rs *ResultStore) Ready(id uint64) bool {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	_, ok := rs.values[id]
	return ok
}

// Pending is the number of registered results not yet answered.
func (rs *ResultStore) Pending() int {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return len(rs.pending)
}

func (rs *ResultStore) Len() int {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return len(rs.values)
}
