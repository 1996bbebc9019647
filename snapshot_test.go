package qproc

import (
	"math"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func bellSnapshot() *Snapshot {
	h := complex(1/math.Sqrt2, 0)
	return &Snapshot{
		Kind:        DumpVector,
		Width:       2,
		Basis:       []uint64{0, 3},
		Amplitudes:  []complex128{h, h},
		Environment: []uint64{0, 0},
	}
}

func TestSnapshotDistribution(t *testing.T) {
	Convey("Given snapshots of every kind", t, func() {
		Convey("A vector snapshot folds amplitudes into probabilities", func() {
			basis, probs := bellSnapshot().Distribution()
			So(basis, ShouldResemble, []uint64{0, 3})
			So(probs[0], ShouldAlmostEqual, 0.5, 1e-9)
			So(probs[1], ShouldAlmostEqual, 0.5, 1e-9)
		})

		Convey("Entries sharing a label are summed", func() {
			snap := &Snapshot{
				Kind:        DumpVector,
				Width:       1,
				Basis:       []uint64{1, 1},
				Amplitudes:  []complex128{complex(1/math.Sqrt2, 0), complex(0, 1/math.Sqrt2)},
				Environment: []uint64{0, 2},
			}
			basis, probs := snap.Distribution()
			So(basis, ShouldResemble, []uint64{1})
			So(probs[0], ShouldAlmostEqual, 1, 1e-9)
		})

		Convey("A shots snapshot is normalised by its counts", func() {
			snap := &Snapshot{Kind: DumpShots, Width: 1, Basis: []uint64{0, 1}, Counts: []uint64{30, 10}, Shots: 40}
			_, probs := snap.Distribution()
			So(probs[0], ShouldAlmostEqual, 0.75, 1e-12)
			So(probs[1], ShouldAlmostEqual, 0.25, 1e-12)

			states := snap.States()
			So(states[1].Probability, ShouldEqual, 0.25)
		})
	})
}

func TestSnapshotSample(t *testing.T) {
	Convey("Given a Bell snapshot", t, func() {
		snap := bellSnapshot()

		Convey("Sampling only yields observed labels", func() {
			histogram := snap.Sample(1000, 3)
			total := uint64(0)
			for basis, n := range histogram {
				So(basis, ShouldBeIn, []uint64{0, 3})
				total += n
			}
			So(total, ShouldEqual, 1000)
		})

		Convey("The same seed gives the same histogram", func() {
			So(snap.Sample(200, 5), ShouldResemble, snap.Sample(200, 5))
		})

		Convey("No shots give an empty histogram", func() {
			So(len(snap.Sample(0, 1)), ShouldEqual, 0)
		})
	})
}

func TestSnapshotShow(t *testing.T) {
	Convey("Given a five-qubit snapshot of |10110⟩", t, func() {
		snap := &Snapshot{Kind: DumpProbability, Width: 5, Basis: []uint64{0b10110}, Probabilities: []float64{1}}

		Convey("b prints the label in binary", func() {
			out, err := snap.Show("b")
			So(err, ShouldBeNil)
			So(out, ShouldStartWith, "|10110⟩")
			So(out, ShouldContainSubstring, "(100.00%)")
		})

		Convey("i prints the label in decimal", func() {
			out, err := snap.Show("i")
			So(err, ShouldBeNil)
			So(out, ShouldStartWith, "|22⟩")
		})

		Convey("Segments split the label and the rest is binary", func() {
			out, err := snap.Show("b2:i2")
			So(err, ShouldBeNil)
			So(out, ShouldStartWith, "|10⟩|3⟩|0⟩")
		})

		Convey("A format wider than the snapshot is refused", func() {
			_, err := snap.Show("b6")
			So(err, ShouldNotBeNil)
		})

		Convey("A malformed format is refused", func() {
			_, err := snap.Show("x3")
			So(err, ShouldNotBeNil)
		})
	})

	Convey("Given a vector snapshot", t, func() {
		out, err := bellSnapshot().Show("")

		Convey("Amplitudes are printed under each state", func() {
			So(err, ShouldBeNil)
			So(strings.Count(out, "\n"), ShouldEqual, 4)
			So(out, ShouldContainSubstring, "0.707107")
		})

		Convey("Dump renders the whole structure", func() {
			So(bellSnapshot().Dump(), ShouldContainSubstring, "Amplitudes")
		})
	})
}
