package qproc

import (
	"context"
	"fmt"
	"math"
	"math/cmplx"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/theapemachine/errnie"
	"gonum.org/v1/gonum/floats"
)

const maxSimulatorQubits = 24

// SimulatorOption configures a Simulator.
type SimulatorOption func(*Simulator)

// WithSeed fixes the random source used for measurement and sampling.
func WithSeed(seed int64) SimulatorOption {
	return func(s *Simulator) {
		s.rng = rand.New(rand.NewSource(seed))
	}
}

// WithNativeMultiControl makes the simulator accept logical gates directly.
func WithNativeMultiControl() SimulatorOption {
	return func(s *Simulator) {
		s.native = true
	}
}

// WithDefaultShots sets the sample count of shot dumps that do not name one.
func WithDefaultShots(shots int) SimulatorOption {
	return func(s *Simulator) {
		s.shots = shots
	}
}

/*
Simulator is a dense state-vector executor. Bit q of a basis index is the
state of qubit q. It applies any gate with any number of controls directly,
so it serves both as a CNOT-basis backend and as a native one.
*/
type Simulator struct {
	mu         sync.Mutex
	qubits     int
	amplitudes []complex128
	allocated  []bool
	rng        *rand.Rand
	native     bool
	shots      int
}

/*
NewSimulator returns a simulator of the given width with every qubit in |0⟩.

Parameters:
  - qubits: number of addressable indices, ancillas included
  - opts: seed, native gates, default shots
*/
func NewSimulator(qubits int, opts ...SimulatorOption) (*Simulator, error) {
	if qubits < 1 || qubits > maxSimulatorQubits {
		return nil, fmt.Errorf("simulator width must be in [1, %d], got %d", maxSimulatorQubits, qubits)
	}

	s := &Simulator{
		qubits:     qubits,
		amplitudes: make([]complex128, 1<<qubits),
		allocated:  make([]bool, qubits),
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		shots:      defaultShots,
	}
	s.amplitudes[0] = 1

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

func (s *Simulator) Capabilities() Capabilities {
	return Capabilities{MaxQubits: s.qubits, NativeMultiControl: s.native}
}

// StateVector returns a copy of the current amplitudes.
func (s *Simulator) StateVector() []complex128 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]complex128(nil), s.amplitudes...)
}

/*
Submit runs a batch in order and answers every Measure and Dump. A failing
instruction stops the batch; the state is left as the instructions before it
made it.
*/
func (s *Simulator) Submit(ctx context.Context, batch []Instruction) ([]Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	results := make([]Result, 0)

	for _, in := range batch {
		if err := s.check(in); err != nil {
			errnie.Warn("simulator rejected %s: %v", in, err)
			return nil, err
		}

		switch in.Kind {
		case OpAlloc:
			q := in.Qubits[0]
			if p := s.probabilityOne(q); p > tolerance {
				return nil, fmt.Errorf("qubit %d allocated in a non-zero state (p1=%g)", q, p)
			}
			s.allocated[q] = true
		case OpFree:
			q := in.Qubits[0]
			if s.measure(q) == 1 {
				s.applyMatrix(Matrix{{0, 1}, {1, 0}}, nil, q)
			}
			s.allocated[q] = false
		case OpGate:
			if err := s.apply(in.Gate); err != nil {
				return nil, err
			}
		case OpMeasure:
			var value uint64
			for _, q := range in.Qubits {
				value = value<<1 | uint64(s.measure(q))
			}
			results = append(results, Result{ID: in.ID, Kind: OpMeasure, Value: value})
		case OpDump:
			results = append(results, Result{ID: in.ID, Kind: OpDump, Snapshot: s.dump(in.Qubits, in.Dump)})
		default:
			return nil, fmt.Errorf("unknown instruction kind %s", in.Kind)
		}
	}

	return results, nil
}

func (s *Simulator) check(in Instruction) error {
	for _, q := range in.Touched() {
		if q < 0 || q >= s.qubits {
			return fmt.Errorf("qubit %d out of range [0, %d)", q, s.qubits)
		}
		if in.Kind == OpAlloc {
			if s.allocated[q] {
				return fmt.Errorf("qubit %d allocated twice", q)
			}
			continue
		}
		if !s.allocated[q] {
			return fmt.Errorf("qubit %d is not allocated", q)
		}
	}
	return nil
}

func (s *Simulator) apply(g Gate) error {
	if !g.Primitive() && !s.native {
		return fmt.Errorf("gate %s is not primitive", g)
	}

	if g.Kind == GateSwap {
		s.applySwap(g.Controls, g.Targets[0], g.Targets[1])
		return nil
	}

	m, err := g.SingleQubitMatrix()
	if err != nil {
		return err
	}
	for _, t := range g.Targets {
		s.applyMatrix(m, g.Controls, t)
	}
	return nil
}

func controlMask(controls []int) int {
	mask := 0
	for _, c := range controls {
		mask |= 1 << c
	}
	return mask
}

func (s *Simulator) applyMatrix(m Matrix, controls []int, target int) {
	bit := 1 << target
	mask := controlMask(controls)

	for i := range s.amplitudes {
		if i&bit != 0 || i&mask != mask {
			continue
		}
		a0, a1 := s.amplitudes[i], s.amplitudes[i|bit]
		s.amplitudes[i] = m[0][0]*a0 + m[0][1]*a1
		s.amplitudes[i|bit] = m[1][0]*a0 + m[1][1]*a1
	}
}

func (s *Simulator) applySwap(controls []int, a, b int) {
	abit, bbit := 1<<a, 1<<b
	mask := controlMask(controls)

	for i := range s.amplitudes {
		if i&abit == 0 || i&bbit != 0 || i&mask != mask {
			continue
		}
		j := i ^ abit ^ bbit
		s.amplitudes[i], s.amplitudes[j] = s.amplitudes[j], s.amplitudes[i]
	}
}

func (s *Simulator) probabilityOne(q int) float64 {
	bit := 1 << q
	p := 0.0
	for i, a := range s.amplitudes {
		if i&bit != 0 {
			m := cmplx.Abs(a)
			p += m * m
		}
	}
	return p
}

// measure collapses qubit q and returns the outcome.
func (s *Simulator) measure(q int) int {
	p1 := s.probabilityOne(q)

	outcome := 0
	if s.rng.Float64() < p1 {
		outcome = 1
	}

	norm := p1
	if outcome == 0 {
		norm = 1 - p1
	}
	scale := complex(1/math.Sqrt(norm), 0)

	bit := 1 << q
	for i := range s.amplitudes {
		if (i&bit != 0) == (outcome == 1) {
			s.amplitudes[i] *= scale
		} else {
			s.amplitudes[i] = 0
		}
	}

	return outcome
}

// label packs the bits of the given qubits, first qubit most significant.
func label(index int, qubits []int) uint64 {
	var out uint64
	for _, q := range qubits {
		out <<= 1
		if index&(1<<q) != 0 {
			out |= 1
		}
	}
	return out
}

func (s *Simulator) dump(qubits []int, req DumpRequest) *Snapshot {
	snap := &Snapshot{Kind: req.Kind, Width: len(qubits), Basis: make([]uint64, 0)}
	mask := controlMask(qubits)

	if req.Kind == DumpVector {
		snap.Amplitudes = make([]complex128, 0)
		snap.Environment = make([]uint64, 0)
		for i, a := range s.amplitudes {
			if cmplx.Abs(a) < 1e-15 {
				continue
			}
			snap.Basis = append(snap.Basis, label(i, qubits))
			snap.Amplitudes = append(snap.Amplitudes, a)
			snap.Environment = append(snap.Environment, uint64(i&^mask))
		}
		return snap
	}

	basis, probs := s.marginal(qubits)

	if req.Kind == DumpProbability {
		snap.Basis = basis
		snap.Probabilities = probs
		return snap
	}

	shots := req.Shots
	if shots <= 0 {
		shots = s.shots
	}
	rng := s.rng
	if req.Seed != 0 {
		rng = rand.New(rand.NewSource(req.Seed))
	}

	cumulative := floats.CumSum(make([]float64, len(probs)), probs)
	counts := make([]uint64, len(basis))
	for i := 0; i < shots; i++ {
		k := sort.SearchFloat64s(cumulative, rng.Float64()*cumulative[len(cumulative)-1])
		if k >= len(basis) {
			k = len(basis) - 1
		}
		counts[k]++
	}

	snap.Shots = shots
	snap.Counts = make([]uint64, 0)
	for k, c := range counts {
		if c > 0 {
			snap.Basis = append(snap.Basis, basis[k])
			snap.Counts = append(snap.Counts, c)
		}
	}
	return snap
}

// marginal is the distribution of the given qubits, sorted by label.
func (s *Simulator) marginal(qubits []int) ([]uint64, []float64) {
	table := make(map[uint64]float64)
	for i, a := range s.amplitudes {
		m := cmplx.Abs(a)
		if m < 1e-15 {
			continue
		}
		table[label(i, qubits)] += m * m
	}

	basis := make([]uint64, 0, len(table))
	for b := range table {
		basis = append(basis, b)
	}
	sort.Slice(basis, func(i, j int) bool { return basis[i] < basis[j] })

	probs := make([]float64, len(basis))
	for i, b := range basis {
		probs[i] = table[b]
	}
	return basis, probs
}
