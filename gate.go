package qproc

import (
	"fmt"
	"math"
	"strconv"
)

// GateKind is the closed set of logical gates a process accepts.
type GateKind int

const (
	GateX GateKind = iota
	GateY
	GateZ
	GateH
	GateS
	GateSdg
	GateT
	GateTdg
	GateRX
	GateRY
	GateRZ
	GatePhase
	GateSwap
	GateUnitary
)

var gateNames = map[GateKind]string{
	GateX:       "X",
	GateY:       "Y",
	GateZ:       "Z",
	GateH:       "H",
	GateS:       "S",
	GateSdg:     "Sdg",
	GateT:       "T",
	GateTdg:     "Tdg",
	GateRX:      "RX",
	GateRY:      "RY",
	GateRZ:      "RZ",
	GatePhase:   "Phase",
	GateSwap:    "Swap",
	GateUnitary: "Unitary",
}

func (k GateKind) String() string {
	if name, ok := gateNames[k]; ok {
		return name
	}
	return "GateKind(" + strconv.Itoa(int(k)) + ")"
}

// Parametrized reports whether the kind takes an angle.
func (k GateKind) Parametrized() bool {
	switch k {
	case GateRX, GateRY, GateRZ, GatePhase:
		return true
	}
	return false
}

// Arity is the number of targets one application of the kind acts on.
func (k GateKind) Arity() int {
	if k == GateSwap {
		return 2
	}
	return 1
}

func (k GateKind) valid() bool {
	return k >= GateX && k <= GateUnitary
}

/*
Op is a gate without operands. Build one with the constructors below and hand
it to Process.Apply or Process.Ctrl.
*/
type Op struct {
	Kind   GateKind
	Theta  float64
	Matrix Matrix
}

func X() Op    { return Op{Kind: GateX} }
func Y() Op    { return Op{Kind: GateY} }
func Z() Op    { return Op{Kind: GateZ} }
func H() Op    { return Op{Kind: GateH} }
func S() Op    { return Op{Kind: GateS} }
func Sdg() Op  { return Op{Kind: GateSdg} }
func T() Op    { return Op{Kind: GateT} }
func Tdg() Op  { return Op{Kind: GateTdg} }
func Swap() Op { return Op{Kind: GateSwap} }

func RX(theta float64) Op     { return Op{Kind: GateRX, Theta: theta} }
func RY(theta float64) Op     { return Op{Kind: GateRY, Theta: theta} }
func RZ(theta float64) Op     { return Op{Kind: GateRZ, Theta: theta} }
func Phase(lambda float64) Op { return Op{Kind: GatePhase, Theta: lambda} }

// Unitary wraps an arbitrary single-qubit matrix. It is checked when applied.
func Unitary(m Matrix) Op { return Op{Kind: GateUnitary, Matrix: m} }

// Inverse returns the adjoint operation.
func (o Op) Inverse() Op {
	switch o.Kind {
	case GateS:
		return Sdg()
	case GateSdg:
		return S()
	case GateT:
		return Tdg()
	case GateTdg:
		return T()
	case GateRX, GateRY, GateRZ, GatePhase:
		return Op{Kind: o.Kind, Theta: -o.Theta}
	case GateUnitary:
		return Unitary(o.Matrix.Dagger())
	default:
		return o
	}
}

// SingleQubitMatrix returns the matrix of a one-target kind.
func (o Op) SingleQubitMatrix() (Matrix, error) {
	switch o.Kind {
	case GateX:
		return Matrix{{0, 1}, {1, 0}}, nil
	case GateY:
		return Matrix{{0, -1i}, {1i, 0}}, nil
	case GateZ:
		return Matrix{{1, 0}, {0, -1}}, nil
	case GateH:
		h := complex(1/math.Sqrt2, 0)
		return Matrix{{h, h}, {h, -h}}, nil
	case GateS:
		return phaseMatrix(math.Pi / 2), nil
	case GateSdg:
		return phaseMatrix(-math.Pi / 2), nil
	case GateT:
		return phaseMatrix(math.Pi / 4), nil
	case GateTdg:
		return phaseMatrix(-math.Pi / 4), nil
	case GateRX:
		return rxMatrix(o.Theta), nil
	case GateRY:
		return ryMatrix(o.Theta), nil
	case GateRZ:
		return rzMatrix(o.Theta), nil
	case GatePhase:
		return phaseMatrix(o.Theta), nil
	case GateUnitary:
		return o.Matrix, nil
	default:
		return Matrix{}, fmt.Errorf("%w: %s has no single-qubit matrix", ErrMalformedGate, o.Kind)
	}
}

func (o Op) String() string {
	if o.Kind.Parametrized() {
		return fmt.Sprintf("%s(%g)", o.Kind, o.Theta)
	}
	return o.Kind.String()
}

/*
Gate is an Op bound to backend qubit indices. Targets and Controls are
ordered; a single-qubit kind with several targets applies to each of them
under the same controls.
*/
type Gate struct {
	Op
	Targets  []int
	Controls []int
}

// Primitive reports whether the gate is already in the CNOT basis.
func (g Gate) Primitive() bool {
	switch {
	case g.Kind == GateSwap, g.Kind == GateUnitary, len(g.Targets) != 1:
		return false
	case len(g.Controls) == 0:
		return true
	case len(g.Controls) == 1 && g.Kind == GateX:
		return true
	}
	return false
}

// Qubits returns controls followed by targets.
func (g Gate) Qubits() []int {
	out := make([]int, 0, len(g.Controls)+len(g.Targets))
	out = append(out, g.Controls...)
	return append(out, g.Targets...)
}

func (g Gate) clone() Gate {
	out := g
	out.Targets = append([]int(nil), g.Targets...)
	out.Controls = append([]int(nil), g.Controls...)
	return out
}

func (g Gate) String() string {
	if len(g.Controls) == 0 {
		return fmt.Sprintf("%s %v", g.Op, g.Targets)
	}
	return fmt.Sprintf("ctrl%v %s %v", g.Controls, g.Op, g.Targets)
}
