package qproc

import (
	"fmt"
	"strconv"
)

// InstructionKind tags the variant held by an Instruction.
type InstructionKind int

const (
	OpAlloc InstructionKind = iota
	OpGate
	OpMeasure
	OpDump
	OpFree
)

func (k InstructionKind) String() string {
	switch k {
	case OpAlloc:
		return "Alloc"
	case OpGate:
		return "Gate"
	case OpMeasure:
		return "Measure"
	case OpDump:
		return "Dump"
	case OpFree:
		return "Free"
	default:
		return "InstructionKind(" + strconv.Itoa(int(k)) + ")"
	}
}

// DumpKind is the representation requested by a dump.
type DumpKind int

const (
	DumpVector DumpKind = iota
	DumpProbability
	DumpShots
)

func (k DumpKind) String() string {
	switch k {
	case DumpVector:
		return "vector"
	case DumpProbability:
		return "probability"
	case DumpShots:
		return "shots"
	default:
		return "DumpKind(" + strconv.Itoa(int(k)) + ")"
	}
}

// DumpRequest describes what a dump should report.
type DumpRequest struct {
	Kind  DumpKind
	Shots int
	Seed  int64
}

// DumpOption adjusts a dump request.
type DumpOption func(*DumpRequest)

// WithDumpShots sets the sample count of a shots dump.
func WithDumpShots(shots int) DumpOption {
	return func(r *DumpRequest) {
		r.Shots = shots
	}
}

// WithDumpSeed fixes the sampling seed of a shots dump.
func WithDumpSeed(seed int64) DumpOption {
	return func(r *DumpRequest) {
		r.Seed = seed
	}
}

/*
Instruction is one entry of the process ledger. Which fields are meaningful
depends on Kind:

  - OpAlloc, OpFree: Qubits holds the single index
  - OpGate: Gate
  - OpMeasure: Qubits, most significant bit first
  - OpDump: Qubits and Dump

ID identifies the logical instruction. Primitive instructions produced by
decomposition keep the ID of the gate they came from, so measurement and
dump results can always be matched back to the call that requested them.
*/
type Instruction struct {
	ID      uint64
	Kind    InstructionKind
	Gate    Gate
	Qubits  []int
	Dump    DumpRequest
	Ancilla bool
}

// ProducesResult reports whether the executor must answer for this instruction.
func (in Instruction) ProducesResult() bool {
	return in.Kind == OpMeasure || in.Kind == OpDump
}

// Touched returns every qubit index the instruction refers to.
func (in Instruction) Touched() []int {
	if in.Kind == OpGate {
		return in.Gate.Qubits()
	}
	return in.Qubits
}

func (in Instruction) String() string {
	switch in.Kind {
	case OpGate:
		return fmt.Sprintf("#%d %s", in.ID, in.Gate)
	case OpDump:
		return fmt.Sprintf("#%d Dump(%s) %v", in.ID, in.Dump.Kind, in.Qubits)
	default:
		return fmt.Sprintf("#%d %s %v", in.ID, in.Kind, in.Qubits)
	}
}

func allocInstruction(id uint64, index int, ancilla bool) Instruction {
	return Instruction{ID: id, Kind: OpAlloc, Qubits: []int{index}, Ancilla: ancilla}
}

func freeInstruction(id uint64, index int, ancilla bool) Instruction {
	return Instruction{ID: id, Kind: OpFree, Qubits: []int{index}, Ancilla: ancilla}
}

func gateInstruction(id uint64, op Op, controls []int, targets ...int) Instruction {
	return Instruction{
		ID:   id,
		Kind: OpGate,
		Gate: Gate{
			Op:       op,
			Controls: append([]int(nil), controls...),
			Targets:  append([]int(nil), targets...),
		},
	}
}
