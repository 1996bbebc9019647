package qproc

// Wire forms of the executor contract. Complex numbers travel as separate
// real and imaginary parts; both msgpack codecs in use read the same tags.

type WireGate struct {
	Kind     int       `msgpack:"kind" codec:"kind"`
	Theta    float64   `msgpack:"theta" codec:"theta"`
	Matrix   []float64 `msgpack:"matrix,omitempty" codec:"matrix,omitempty"`
	Targets  []int     `msgpack:"targets" codec:"targets"`
	Controls []int     `msgpack:"controls" codec:"controls"`
}

type WireInstruction struct {
	ID       uint64   `msgpack:"id" codec:"id"`
	Kind     int      `msgpack:"kind" codec:"kind"`
	Gate     WireGate `msgpack:"gate" codec:"gate"`
	Qubits   []int    `msgpack:"qubits" codec:"qubits"`
	DumpKind int      `msgpack:"dump_kind" codec:"dump_kind"`
	Shots    int      `msgpack:"shots" codec:"shots"`
	Seed     int64    `msgpack:"seed" codec:"seed"`
	Ancilla  bool     `msgpack:"ancilla" codec:"ancilla"`
}

type WireSnapshot struct {
	Kind          int       `msgpack:"kind" codec:"kind"`
	Width         int       `msgpack:"width" codec:"width"`
	Basis         []uint64  `msgpack:"basis" codec:"basis"`
	Real          []float64 `msgpack:"real" codec:"real"`
	Imag          []float64 `msgpack:"imag" codec:"imag"`
	Environment   []uint64  `msgpack:"environment" codec:"environment"`
	Probabilities []float64 `msgpack:"probabilities" codec:"probabilities"`
	Counts        []uint64  `msgpack:"counts" codec:"counts"`
	Shots         int       `msgpack:"shots" codec:"shots"`
}

type WireResult struct {
	ID       uint64        `msgpack:"id" codec:"id"`
	Kind     int           `msgpack:"kind" codec:"kind"`
	Value    uint64        `msgpack:"value" codec:"value"`
	Snapshot *WireSnapshot `msgpack:"snapshot,omitempty" codec:"snapshot,omitempty"`
}

type SubmitRequest struct {
	Batch []WireInstruction `msgpack:"batch" codec:"batch"`
}

type SubmitReply struct {
	Results []WireResult `msgpack:"results" codec:"results"`
}

type CapabilitiesRequest struct{}

type CapabilitiesReply struct {
	MaxQubits          int  `msgpack:"max_qubits" codec:"max_qubits"`
	NativeMultiControl bool `msgpack:"native_multi_control" codec:"native_multi_control"`
}

func encodeMatrix(m Matrix) []float64 {
	out := make([]float64, 0, 8)
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			out = append(out, real(m[i][j]), imag(m[i][j]))
		}
	}
	return out
}

func decodeMatrix(v []float64) Matrix {
	var m Matrix
	if len(v) != 8 {
		return m
	}
	for k := 0; k < 4; k++ {
		m[k/2][k%2] = complex(v[2*k], v[2*k+1])
	}
	return m
}

func EncodeInstructions(batch []Instruction) []WireInstruction {
	out := make([]WireInstruction, len(batch))
	for i, in := range batch {
		w := WireInstruction{
			ID:       in.ID,
			Kind:     int(in.Kind),
			Qubits:   in.Qubits,
			DumpKind: int(in.Dump.Kind),
			Shots:    in.Dump.Shots,
			Seed:     in.Dump.Seed,
			Ancilla:  in.Ancilla,
		}
		if in.Kind == OpGate {
			w.Gate = WireGate{
				Kind:     int(in.Gate.Kind),
				Theta:    in.Gate.Theta,
				Targets:  in.Gate.Targets,
				Controls: in.Gate.Controls,
			}
			if in.Gate.Kind == GateUnitary {
				w.Gate.Matrix = encodeMatrix(in.Gate.Matrix)
			}
		}
		out[i] = w
	}
	return out
}

func DecodeInstructions(batch []WireInstruction) []Instruction {
	out := make([]Instruction, len(batch))
	for i, w := range batch {
		in := Instruction{
			ID:      w.ID,
			Kind:    InstructionKind(w.Kind),
			Qubits:  w.Qubits,
			Dump:    DumpRequest{Kind: DumpKind(w.DumpKind), Shots: w.Shots, Seed: w.Seed},
			Ancilla: w.Ancilla,
		}
		if in.Kind == OpGate {
			in.Gate = Gate{
				Op: Op{
					Kind:   GateKind(w.Gate.Kind),
					Theta:  w.Gate.Theta,
					Matrix: decodeMatrix(w.Gate.Matrix),
				},
				Targets:  w.Gate.Targets,
				Controls: w.Gate.Controls,
			}
		}
		out[i] = in
	}
	return out
}

func encodeSnapshot(s *Snapshot) *WireSnapshot {
	if s == nil {
		return nil
	}
	w := &WireSnapshot{
		Kind:          int(s.Kind),
		Width:         s.Width,
		Basis:         s.Basis,
		Environment:   s.Environment,
		Probabilities: s.Probabilities,
		Counts:        s.Counts,
		Shots:         s.Shots,
	}
	if s.Amplitudes != nil {
		w.Real = make([]float64, len(s.Amplitudes))
		w.Imag = make([]float64, len(s.Amplitudes))
		for i, a := range s.Amplitudes {
			w.Real[i], w.Imag[i] = real(a), imag(a)
		}
	}
	return w
}

func decodeSnapshot(w *WireSnapshot) *Snapshot {
	if w == nil {
		return nil
	}
	s := &Snapshot{
		Kind:          DumpKind(w.Kind),
		Width:         w.Width,
		Basis:         w.Basis,
		Environment:   w.Environment,
		Probabilities: w.Probabilities,
		Counts:        w.Counts,
		Shots:         w.Shots,
	}
	if s.Basis == nil {
		s.Basis = make([]uint64, 0)
	}
	if s.Kind == DumpVector {
		n := min(len(w.Real), len(w.Imag))
		s.Amplitudes = make([]complex128, n)
		for i := 0; i < n; i++ {
			s.Amplitudes[i] = complex(w.Real[i], w.Imag[i])
		}
		if s.Environment == nil {
			s.Environment = make([]uint64, 0)
		}
	}
	return s
}

func EncodeResults(results []Result) []WireResult {
	out := make([]WireResult, len(results))
	for i, r := range results {
		out[i] = WireResult{
			ID:       r.ID,
			Kind:     int(r.Kind),
			Value:    r.Value,
			Snapshot: encodeSnapshot(r.Snapshot),
		}
	}
	return out
}

func DecodeResults(results []WireResult) []Result {
	out := make([]Result, len(results))
	for i, w := range results {
		out[i] = Result{
			ID:       w.ID,
			Kind:     InstructionKind(w.Kind),
			Value:    w.Value,
			Snapshot: decodeSnapshot(w.Snapshot),
		}
	}
	return out
}
