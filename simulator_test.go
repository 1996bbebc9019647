package qproc

import (
	"context"
	"math"
	"math/cmplx"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestNewSimulator(t *testing.T) {
	Convey("Given simulator widths", t, func() {
		Convey("Zero and oversized widths are refused", func() {
			_, err := NewSimulator(0)
			So(err, ShouldNotBeNil)
			_, err = NewSimulator(maxSimulatorQubits + 1)
			So(err, ShouldNotBeNil)
		})

		Convey("A valid simulator starts in |0...0⟩", func() {
			sim, err := NewSimulator(3, WithSeed(1))
			So(err, ShouldBeNil)
			state := sim.StateVector()
			So(len(state), ShouldEqual, 8)
			So(state[0], ShouldEqual, complex(1, 0))
			So(sim.Capabilities(), ShouldResemble, Capabilities{MaxQubits: 3})
		})
	})
}

func TestSimulatorSubmit(t *testing.T) {
	ctx := context.Background()

	Convey("Given a Bell pair on a seeded simulator", t, func() {
		sim, _ := NewSimulator(2, WithSeed(7))
		batch := append(allocate(2),
			gateInstruction(3, H(), nil, 0),
			gateInstruction(4, X(), []int{0}, 1),
		)
		_, err := sim.Submit(ctx, batch)
		So(err, ShouldBeNil)

		Convey("A vector dump reports both amplitudes without collapsing", func() {
			results, err := sim.Submit(ctx, []Instruction{
				{ID: 5, Kind: OpDump, Qubits: []int{0, 1}, Dump: DumpRequest{Kind: DumpVector}},
			})
			So(err, ShouldBeNil)
			So(len(results), ShouldEqual, 1)

			snap := results[0].Snapshot
			So(snap.Basis, ShouldResemble, []uint64{0, 3})
			So(cmplx.Abs(snap.Amplitudes[0]-complex(1/math.Sqrt2, 0)), ShouldBeLessThan, 1e-9)
			So(cmplx.Abs(sim.StateVector()[3]), ShouldAlmostEqual, 1/math.Sqrt2, 1e-9)
		})

		Convey("A probability dump of one qubit is its marginal", func() {
			results, err := sim.Submit(ctx, []Instruction{
				{ID: 5, Kind: OpDump, Qubits: []int{1}, Dump: DumpRequest{Kind: DumpProbability}},
			})
			So(err, ShouldBeNil)
			snap := results[0].Snapshot
			So(snap.Basis, ShouldResemble, []uint64{0, 1})
			So(snap.Probabilities[0], ShouldAlmostEqual, 0.5, 1e-9)
		})

		Convey("Measuring both qubits gives correlated bits", func() {
			results, err := sim.Submit(ctx, []Instruction{
				{ID: 5, Kind: OpMeasure, Qubits: []int{0, 1}},
			})
			So(err, ShouldBeNil)
			So(results[0].ID, ShouldEqual, 5)
			So(results[0].Value, ShouldBeIn, []uint64{0, 3})

			Convey("And the state collapses", func() {
				state := sim.StateVector()
				So(cmplx.Abs(state[results[0].Value]), ShouldAlmostEqual, 1, 1e-9)
			})
		})

		Convey("A shots dump with a seed is reproducible", func() {
			dump := Instruction{ID: 5, Kind: OpDump, Qubits: []int{0, 1}, Dump: DumpRequest{Kind: DumpShots, Shots: 500, Seed: 11}}
			first, err := sim.Submit(ctx, []Instruction{dump})
			So(err, ShouldBeNil)
			second, err := sim.Submit(ctx, []Instruction{dump})
			So(err, ShouldBeNil)
			So(first[0].Snapshot, ShouldResemble, second[0].Snapshot)
			So(first[0].Snapshot.Shots, ShouldEqual, 500)
		})
	})

	Convey("Given a simulator with a default shot count", t, func() {
		sim, _ := NewSimulator(1, WithSeed(2), WithDefaultShots(64))
		_, err := sim.Submit(ctx, append(allocate(1), gateInstruction(2, H(), nil, 0)))
		So(err, ShouldBeNil)

		Convey("A shots dump that names no count uses it", func() {
			results, err := sim.Submit(ctx, []Instruction{
				{ID: 3, Kind: OpDump, Qubits: []int{0}, Dump: DumpRequest{Kind: DumpShots}},
			})
			So(err, ShouldBeNil)

			snap := results[0].Snapshot
			So(snap.Shots, ShouldEqual, 64)
			total := uint64(0)
			for _, c := range snap.Counts {
				total += c
			}
			So(total, ShouldEqual, 64)
		})
	})

	Convey("Given bit ordering of packed results", t, func() {
		sim, _ := NewSimulator(3, WithSeed(1))
		batch := append(allocate(3), gateInstruction(4, X(), nil, 2))
		batch = append(batch, Instruction{ID: 5, Kind: OpMeasure, Qubits: []int{2, 0, 1}})

		Convey("The first measured qubit is the most significant bit", func() {
			results, err := sim.Submit(ctx, batch)
			So(err, ShouldBeNil)
			So(results[0].Value, ShouldEqual, 4)
		})
	})

	Convey("Given instructions the simulator cannot run", t, func() {
		sim, _ := NewSimulator(2, WithSeed(1))

		Convey("A gate on an unallocated qubit fails", func() {
			_, err := sim.Submit(ctx, []Instruction{gateInstruction(1, X(), nil, 0)})
			So(err, ShouldNotBeNil)
		})

		Convey("An out of range index fails", func() {
			_, err := sim.Submit(ctx, []Instruction{allocInstruction(1, 5, false)})
			So(err, ShouldNotBeNil)
		})

		Convey("A multi-controlled gate fails without native support", func() {
			batch := append(allocate(2), Instruction{ID: 3, Kind: OpGate, Gate: Gate{Op: H(), Controls: []int{0}, Targets: []int{1}}})
			_, err := sim.Submit(ctx, batch)
			So(err, ShouldNotBeNil)
		})

		Convey("A cancelled context fails before running anything", func() {
			cancelled, cancel := context.WithCancel(ctx)
			cancel()
			_, err := sim.Submit(cancelled, allocate(1))
			So(err, ShouldEqual, context.Canceled)
		})
	})

	Convey("Given a freed qubit left in |1⟩", t, func() {
		sim, _ := NewSimulator(1, WithSeed(1))
		_, err := sim.Submit(ctx, append(allocate(1), gateInstruction(2, X(), nil, 0), freeInstruction(3, 0, false)))
		So(err, ShouldBeNil)

		Convey("It is reset so it can be allocated again", func() {
			_, err := sim.Submit(ctx, allocate(1))
			So(err, ShouldBeNil)
			So(sim.StateVector()[0], ShouldEqual, complex(1, 0))
		})
	})
}
