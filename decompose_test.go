package qproc

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/cmplx"
	"testing"

	"github.com/davecgh/go-spew/spew"
	. "github.com/smartystreets/goconvey/convey"
)

func sampleUnitary() Matrix {
	return rzMatrix(0.3).Mul(ryMatrix(1.1)).Mul(rzMatrix(-0.8)).Scale(cmplx.Exp(0.5i))
}

func decompositionOps() []Op {
	return []Op{
		X(), Y(), Z(), H(), S(), Sdg(), T(), Tdg(),
		RX(0.7), RY(-1.3), RZ(2.1), Phase(0.4),
		Unitary(sampleUnitary()),
	}
}

func equalUpToGlobalPhase(a, b []complex128) bool {
	if len(a) != len(b) {
		return false
	}
	k, best := 0, 0.0
	for i := range b {
		if m := cmplx.Abs(b[i]); m > best {
			k, best = i, m
		}
	}
	if best < 1e-12 {
		return false
	}
	phase := a[k] / b[k]
	if math.Abs(cmplx.Abs(phase)-1) > 1e-7 {
		return false
	}
	for i := range a {
		if cmplx.Abs(a[i]-phase*b[i]) > 1e-7 {
			return false
		}
	}
	return true
}

func allocate(n int) []Instruction {
	out := make([]Instruction, n)
	for i := range out {
		out[i] = allocInstruction(uint64(i+1), i, false)
	}
	return out
}

func occupiedLayout(n int) indexLayout {
	layout := indexLayout{occupied: make(map[int]bool), highWater: n}
	for i := 0; i < n; i++ {
		layout.occupied[i] = true
	}
	return layout
}

/*
runBoth prepares the same input on a native and a CNOT-basis simulator,
applies the gate natively on one and decomposed on the other, and returns
both state vectors.
*/
func runBoth(n int, prepare []Instruction, g Gate) ([]complex128, []complex128, Decomposition) {
	width := n + 2

	native, err := NewSimulator(width, WithSeed(1), WithNativeMultiControl())
	So(err, ShouldBeNil)
	basis, err := NewSimulator(width, WithSeed(1))
	So(err, ShouldBeNil)

	setup := append(allocate(n), prepare...)
	_, err = native.Submit(context.Background(), setup)
	So(err, ShouldBeNil)
	_, err = basis.Submit(context.Background(), setup)
	So(err, ShouldBeNil)

	logical := Instruction{ID: 100, Kind: OpGate, Gate: g}
	_, err = native.Submit(context.Background(), []Instruction{logical})
	So(err, ShouldBeNil)

	lowered, err := NewDecomposer(false).Decompose([]Instruction{logical}, occupiedLayout(n))
	So(err, ShouldBeNil)
	_, err = basis.Submit(context.Background(), lowered.Instructions)
	So(err, ShouldBeNil)

	return native.StateVector(), basis.StateVector(), lowered
}

func basisPreparation(n, state int) []Instruction {
	out := make([]Instruction, 0)
	for q := 0; q < n; q++ {
		if state&(1<<q) != 0 {
			out = append(out, gateInstruction(50, X(), nil, q))
		}
	}
	return out
}

func superpositionPreparation(n int) []Instruction {
	out := make([]Instruction, 0)
	for q := 0; q < n; q++ {
		out = append(out,
			gateInstruction(50, RY(0.4+0.3*float64(q)), nil, q),
			gateInstruction(50, RZ(0.9-0.2*float64(q)), nil, q),
		)
	}
	return out
}

func TestDecompositionEquivalence(t *testing.T) {
	Convey("Given every gate kind under 0 to 3 controls", t, func() {
		for _, op := range decompositionOps() {
			for k := 0; k <= 3; k++ {
				n := k + 1
				controls := make([]int, k)
				for i := range controls {
					controls[i] = i + 1
				}
				g := Gate{Op: op, Controls: controls, Targets: []int{0}}

				Convey(fmt.Sprintf("%s with %d controls acts like the gate on every basis state", op, k), func() {
					for state := 0; state < 1<<n; state++ {
						native, lowered, _ := runBoth(n, basisPreparation(n, state), g)
						So(equalUpToGlobalPhase(lowered, native), ShouldBeTrue)
					}
				})

				Convey(fmt.Sprintf("%s with %d controls keeps relative phases", op, k), func() {
					native, lowered, _ := runBoth(n, superpositionPreparation(n), g)
					if !equalUpToGlobalPhase(lowered, native) {
						t.Log(spew.Sdump(native, lowered))
					}
					So(equalUpToGlobalPhase(lowered, native), ShouldBeTrue)
				})
			}
		}
	})

	Convey("Given a swap under 0 to 2 controls", t, func() {
		for k := 0; k <= 2; k++ {
			n := k + 2
			controls := make([]int, k)
			for i := range controls {
				controls[i] = i + 2
			}
			g := Gate{Op: Swap(), Controls: controls, Targets: []int{0, 1}}

			Convey(fmt.Sprintf("It matches a native swap with %d controls", k), func() {
				native, lowered, _ := runBoth(n, superpositionPreparation(n), g)
				So(equalUpToGlobalPhase(lowered, native), ShouldBeTrue)
			})
		}
	})

	Convey("Given a single-qubit gate on several targets", t, func() {
		g := Gate{Op: H(), Controls: []int{2}, Targets: []int{0, 1}}

		Convey("It applies to each target under the same controls", func() {
			native, lowered, _ := runBoth(3, superpositionPreparation(3), g)
			So(equalUpToGlobalPhase(lowered, native), ShouldBeTrue)
		})
	})
}

func TestDecompositionBasis(t *testing.T) {
	Convey("Given a decomposed multi-controlled gate", t, func() {
		g := Gate{Op: RY(0.5), Controls: []int{1, 2, 3}, Targets: []int{0}}
		lowered, err := NewDecomposer(false).Decompose(
			[]Instruction{{ID: 7, Kind: OpGate, Gate: g}}, occupiedLayout(4),
		)
		So(err, ShouldBeNil)

		Convey("Every gate is a single-qubit gate or a CNOT", func() {
			for _, in := range lowered.Instructions {
				if in.Kind == OpGate {
					So(in.Gate.Primitive(), ShouldBeTrue)
				}
			}
		})

		Convey("Every primitive keeps the ID of the logical gate", func() {
			for _, in := range lowered.Instructions {
				So(in.ID, ShouldEqual, 7)
			}
		})
	})
}

func TestAncillaBorrowing(t *testing.T) {
	Convey("Given a gate with three controls", t, func() {
		for _, op := range []Op{X(), Z(), Unitary(sampleUnitary())} {
			g := Gate{Op: op, Controls: []int{1, 2, 3}, Targets: []int{0}}
			lowered, err := NewDecomposer(false).Decompose(
				[]Instruction{{ID: 1, Kind: OpGate, Gate: g}}, occupiedLayout(4),
			)
			So(err, ShouldBeNil)

			Convey(fmt.Sprintf("%s borrows at most two ancillas and frees them all", op), func() {
				allocs := map[int]bool{}
				frees := map[int]bool{}
				for _, in := range lowered.Instructions {
					switch in.Kind {
					case OpAlloc:
						So(in.Ancilla, ShouldBeTrue)
						allocs[in.Qubits[0]] = true
					case OpFree:
						So(in.Ancilla, ShouldBeTrue)
						frees[in.Qubits[0]] = true
					}
				}
				So(len(allocs), ShouldBeLessThanOrEqualTo, 2)
				So(lowered.Ancillas, ShouldEqual, len(allocs))
				So(frees, ShouldResemble, allocs)

				for a := range allocs {
					So(a, ShouldBeGreaterThanOrEqualTo, 4)
				}

				last := lowered.Instructions[len(lowered.Instructions)-1]
				So(last.Kind, ShouldEqual, OpFree)
			})
		}
	})

	Convey("Given free indices below the high-water mark", t, func() {
		layout := indexLayout{occupied: map[int]bool{0: true, 2: true, 4: true, 5: true}, highWater: 6}
		g := Gate{Op: Z(), Controls: []int{2, 4, 5}, Targets: []int{0}}

		lowered, err := NewDecomposer(false).Decompose([]Instruction{{ID: 1, Kind: OpGate, Gate: g}}, layout)
		So(err, ShouldBeNil)

		Convey("Ancillas reuse them lowest first", func() {
			So(lowered.Instructions[0].Kind, ShouldEqual, OpAlloc)
			So(lowered.Instructions[0].Qubits, ShouldResemble, []int{1})
			So(lowered.Instructions[1].Qubits, ShouldResemble, []int{3})
		})
	})

	Convey("Given an Alloc and Free inside the batch", t, func() {
		batch := []Instruction{
			allocInstruction(1, 0, false),
			allocInstruction(2, 1, false),
			allocInstruction(3, 2, false),
			allocInstruction(4, 3, false),
			freeInstruction(5, 3, false),
			{ID: 6, Kind: OpGate, Gate: Gate{Op: RX(0.3), Controls: []int{1, 2}, Targets: []int{0}}},
		}

		lowered, err := NewDecomposer(false).Decompose(batch, indexLayout{occupied: map[int]bool{}})
		So(err, ShouldBeNil)

		Convey("The index freed earlier in the batch is borrowed", func() {
			var ancilla []int
			for _, in := range lowered.Instructions {
				if in.Kind == OpAlloc && in.Ancilla {
					ancilla = in.Qubits
				}
			}
			So(ancilla, ShouldResemble, []int{3})
		})
	})
}

func TestDecomposeNative(t *testing.T) {
	Convey("Given a native decomposer", t, func() {
		g := Gate{Op: Z(), Controls: []int{1, 2, 3}, Targets: []int{0}}
		lowered, err := NewDecomposer(true).Decompose(
			[]Instruction{{ID: 1, Kind: OpGate, Gate: g}}, occupiedLayout(4),
		)

		Convey("Logical gates pass through untouched", func() {
			So(err, ShouldBeNil)
			So(len(lowered.Instructions), ShouldEqual, 1)
			So(lowered.Instructions[0].Gate.Controls, ShouldResemble, []int{1, 2, 3})
			So(lowered.Ancillas, ShouldEqual, 0)
		})
	})
}

func TestDecomposeUnallocated(t *testing.T) {
	Convey("Given a gate on an index that is not allocated", t, func() {
		g := Gate{Op: X(), Controls: []int{0}, Targets: []int{5}}
		_, err := NewDecomposer(false).Decompose(
			[]Instruction{{ID: 1, Kind: OpGate, Gate: g}}, occupiedLayout(2),
		)

		Convey("It is a malformed gate", func() {
			So(errors.Is(err, ErrMalformedGate), ShouldBeTrue)
		})
	})
}

type fakeOperands struct {
	known map[int]bool
	spent map[int]bool
}

func (f fakeOperands) knows(i int) bool    { return f.known[i] }
func (f fakeOperands) consumed(i int) bool { return f.spent[i] }

func TestValidateGate(t *testing.T) {
	Convey("Given three known qubits, the last one measured", t, func() {
		ops := fakeOperands{
			known: map[int]bool{0: true, 1: true, 2: true},
			spent: map[int]bool{2: true},
		}

		Convey("A well-formed gate passes", func() {
			So(validateGate(Gate{Op: H(), Controls: []int{0}, Targets: []int{1}}, ops), ShouldBeNil)
		})

		Convey("A qubit used as control and target is malformed", func() {
			err := validateGate(Gate{Op: X(), Controls: []int{0}, Targets: []int{0}}, ops)
			So(errors.Is(err, ErrMalformedGate), ShouldBeTrue)
		})

		Convey("An unknown index is malformed", func() {
			err := validateGate(Gate{Op: X(), Targets: []int{9}}, ops)
			So(errors.Is(err, ErrMalformedGate), ShouldBeTrue)
		})

		Convey("A swap needs two targets", func() {
			err := validateGate(Gate{Op: Swap(), Targets: []int{0}}, ops)
			So(errors.Is(err, ErrMalformedGate), ShouldBeTrue)
		})

		Convey("A gate needs a target", func() {
			err := validateGate(Gate{Op: X(), Controls: []int{0}}, ops)
			So(errors.Is(err, ErrMalformedGate), ShouldBeTrue)
		})

		Convey("A non-finite angle is malformed", func() {
			err := validateGate(Gate{Op: RX(math.NaN()), Targets: []int{0}}, ops)
			So(errors.Is(err, ErrMalformedGate), ShouldBeTrue)
		})

		Convey("A non-unitary matrix is malformed", func() {
			err := validateGate(Gate{Op: Unitary(Matrix{{1, 1}, {0, 1}}), Targets: []int{0}}, ops)
			So(errors.Is(err, ErrMalformedGate), ShouldBeTrue)
		})

		Convey("A measured operand is consumed", func() {
			err := validateGate(Gate{Op: X(), Controls: []int{2}, Targets: []int{0}}, ops)
			So(errors.Is(err, ErrUseAfterConsume), ShouldBeTrue)
		})
	})
}

func TestAncillasFor(t *testing.T) {
	Convey("Given the ancilla demand of controlled gates", t, func() {
		So(ancillasFor(Z(), 0), ShouldEqual, 0)
		So(ancillasFor(Z(), 1), ShouldEqual, 0)
		So(ancillasFor(X(), 2), ShouldEqual, 0)
		So(ancillasFor(Z(), 2), ShouldEqual, 1)
		So(ancillasFor(X(), 3), ShouldEqual, 1)
		So(ancillasFor(Z(), 3), ShouldEqual, 2)
		So(ancillasFor(Swap(), 0), ShouldEqual, 0)
		So(ancillasFor(Swap(), 2), ShouldEqual, 1)
	})
}
