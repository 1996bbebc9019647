package qproc

import (
	"fmt"
	"math"
	"math/cmplx"
	"math/rand"
	"sort"
	"strconv"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"gonum.org/v1/gonum/floats"
)

/*
State is one basis state of a snapshot with its amplitude and probability.
Amplitude is zero for probability and shots snapshots.
*/
type State struct {
	Basis       uint64
	Amplitude   complex128
	Probability float64
}

/*
Snapshot is the answer to a Dump: the state of the dumped qubits as the
executor reported it. Basis labels pack the dumped qubits with the first
qubit as the most significant bit, the same way measurement values do.

A vector snapshot has one entry per non-zero amplitude of the full register.
Qubits outside the dump are kept apart in Environment, so two entries may
share a basis label when the dumped qubits are entangled with the rest.
*/
type Snapshot struct {
	Kind  DumpKind
	Width int
	Basis []uint64

	Amplitudes  []complex128
	Environment []uint64

	Probabilities []float64

	Counts []uint64
	Shots  int
}

/*
Distribution returns the probability of every basis label of the dumped
qubits, sorted by label.
*/
func (s *Snapshot) Distribution() ([]uint64, []float64) {
	table := make(map[uint64]float64, len(s.Basis))

	switch s.Kind {
	case DumpVector:
		for i, b := range s.Basis {
			a := cmplx.Abs(s.Amplitudes[i])
			table[b] += a * a
		}
	case DumpProbability:
		for i, b := range s.Basis {
			table[b] += s.Probabilities[i]
		}
	case DumpShots:
		for i, b := range s.Basis {
			table[b] += float64(s.Counts[i])
		}
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

	if total := floats.Sum(probs); total > 0 {
		floats.Scale(1/total, probs)
	}

	return basis, probs
}

/*
States lists the snapshot entries sorted by basis label. Shots snapshots
report the observed frequency as the probability.
*/
func (s *Snapshot) States() []State {
	out := make([]State, len(s.Basis))

	for i, b := range s.Basis {
		out[i].Basis = b
		switch s.Kind {
		case DumpVector:
			out[i].Amplitude = s.Amplitudes[i]
			a := cmplx.Abs(s.Amplitudes[i])
			out[i].Probability = a * a
		case DumpProbability:
			out[i].Probability = s.Probabilities[i]
		case DumpShots:
			if s.Shots > 0 {
				out[i].Probability = float64(s.Counts[i]) / float64(s.Shots)
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Basis < out[j].Basis })
	return out
}

/*
Sample draws shots basis labels from the snapshot's distribution and
returns the histogram. The same seed always gives the same histogram.
*/
func (s *Snapshot) Sample(shots int, seed int64) map[uint64]uint64 {
	basis, probs := s.Distribution()
	histogram := make(map[uint64]uint64)
	if len(basis) == 0 || shots <= 0 {
		return histogram
	}

	cumulative := floats.CumSum(make([]float64, len(probs)), probs)
	rng := rand.New(rand.NewSource(seed))

	for i := 0; i < shots; i++ {
		k := sort.SearchFloat64s(cumulative, rng.Float64())
		if k >= len(basis) {
			k = len(basis) - 1
		}
		histogram[basis[k]]++
	}

	return histogram
}

type showSegment struct {
	base  byte
	begin int
	end   int
}

func parseShowFormat(format string, width int) ([]showSegment, error) {
	if format == "" {
		format = "b"
	}
	if format == "b" || format == "i" {
		format += strconv.Itoa(width)
	}

	segments := make([]showSegment, 0)
	count := 0
	for _, part := range strings.Split(format, ":") {
		if len(part) < 2 || (part[0] != 'b' && part[0] != 'i') {
			return nil, fmt.Errorf("bad show format %q", format)
		}
		size, err := strconv.Atoi(part[1:])
		if err != nil || size < 1 {
			return nil, fmt.Errorf("bad show format %q", format)
		}
		segments = append(segments, showSegment{base: part[0], begin: count, end: count + size})
		count += size
	}

	if count > width {
		return nil, fmt.Errorf("show format %q covers %d qubits, snapshot has %d", format, count, width)
	}
	if count < width {
		segments = append(segments, showSegment{base: 'b', begin: count, end: width})
	}

	return segments, nil
}

/*
Show renders the snapshot one basis state per line.

The format splits the dumped qubits into segments printed in binary (b) or
decimal (i): "b" and "i" print the whole label, "i4" prints the first four
qubits in decimal and the rest in binary, "b2:i3" prints two binary qubits,
then three decimal ones, then the rest in binary.
*/
func (s *Snapshot) Show(format string) (string, error) {
	segments, err := parseShowFormat(format, s.Width)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, st := range s.States() {
		bits := fmt.Sprintf("%0*b", s.Width, st.Basis)
		for _, seg := range segments {
			field := bits[seg.begin:seg.end]
			if seg.base == 'i' {
				v, _ := strconv.ParseUint(field, 2, 64)
				field = strconv.FormatUint(v, 10)
			}
			sb.WriteString("|" + field + "⟩")
		}
		fmt.Fprintf(&sb, "\t(%.2f%%)\n", 100*st.Probability)

		if s.Kind == DumpVector {
			fmt.Fprintf(&sb, "%9.6f%+.6fi\n", real(st.Amplitude), imag(st.Amplitude))
		}
	}

	return sb.String(), nil
}

// Dump is a full diagnostic rendering of the snapshot.
func (s *Snapshot) Dump() string {
	return spew.Sdump(s)
}

func (s *Snapshot) clone() *Snapshot {
	if s == nil {
		return nil
	}
	out := *s
	out.Basis = append([]uint64(nil), s.Basis...)
	out.Amplitudes = append([]complex128(nil), s.Amplitudes...)
	out.Environment = append([]uint64(nil), s.Environment...)
	out.Probabilities = append([]float64(nil), s.Probabilities...)
	out.Counts = append([]uint64(nil), s.Counts...)
	return &out
}

// validFor checks the snapshot against the dump that requested it.
func (s *Snapshot) validFor(in Instruction) error {
	if s == nil {
		return fmt.Errorf("missing snapshot")
	}
	if s.Kind != in.Dump.Kind {
		return fmt.Errorf("snapshot kind %s, requested %s", s.Kind, in.Dump.Kind)
	}
	if s.Width != len(in.Qubits) {
		return fmt.Errorf("snapshot width %d, requested %d qubits", s.Width, len(in.Qubits))
	}

	var n int
	switch s.Kind {
	case DumpVector:
		n = len(s.Amplitudes)
		if len(s.Environment) != len(s.Basis) {
			return fmt.Errorf("snapshot has %d environment labels for %d states", len(s.Environment), len(s.Basis))
		}
	case DumpProbability:
		n = len(s.Probabilities)
	case DumpShots:
		n = len(s.Counts)
	}
	if n != len(s.Basis) {
		return fmt.Errorf("snapshot has %d values for %d states", n, len(s.Basis))
	}

	for _, b := range s.Basis {
		if s.Width < 64 && b>>s.Width != 0 {
			return fmt.Errorf("basis label %d does not fit %d qubits", b, s.Width)
		}
	}

	switch s.Kind {
	case DumpVector:
		return s.validVector(uint64(controlMask(in.Qubits)))
	case DumpProbability:
		return s.validProbabilities()
	default:
		return s.validCounts()
	}
}

func (s *Snapshot) validVector(dumped uint64) error {
	type entry struct{ env, basis uint64 }
	seen := make(map[entry]bool, len(s.Basis))

	for i, b := range s.Basis {
		a := s.Amplitudes[i]
		if cmplx.IsNaN(a) || cmplx.IsInf(a) {
			return fmt.Errorf("amplitude %v of state %d is not finite", a, b)
		}
		env := s.Environment[i]
		if env&dumped != 0 {
			return fmt.Errorf("environment label %d overlaps the dumped qubits", env)
		}
		if seen[entry{env, b}] {
			return fmt.Errorf("state %d appears twice under environment %d", b, env)
		}
		seen[entry{env, b}] = true
	}
	return nil
}

func (s *Snapshot) validProbabilities() error {
	seen := make(map[uint64]bool, len(s.Basis))
	var total float64

	for i, b := range s.Basis {
		p := s.Probabilities[i]
		if math.IsNaN(p) || math.IsInf(p, 0) || p < 0 {
			return fmt.Errorf("probability %v of state %d is invalid", p, b)
		}
		if seen[b] {
			return fmt.Errorf("state %d appears twice", b)
		}
		seen[b] = true
		total += p
	}
	if total > 1+tolerance {
		return fmt.Errorf("probabilities sum to %v", total)
	}
	return nil
}

func (s *Snapshot) validCounts() error {
	seen := make(map[uint64]bool, len(s.Basis))
	var total uint64

	for i, b := range s.Basis {
		if seen[b] {
			return fmt.Errorf("state %d appears twice", b)
		}
		seen[b] = true
		total += s.Counts[i]
	}
	if s.Shots < 0 || total != uint64(s.Shots) {
		return fmt.Errorf("counts sum to %d over %d shots", total, s.Shots)
	}
	return nil
}
