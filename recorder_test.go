package qproc

import (
	"bytes"
	"context"
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestRecorder(t *testing.T) {
	ctx := context.Background()

	Convey("Given a batch process recording through a Recorder", t, func() {
		sim, _ := NewSimulator(3, WithSeed(21))
		var trace bytes.Buffer
		rec := NewRecorder(sim, &trace)

		proc, err := NewProcess(ctx, rec, WithMode(ModeBatch))
		So(err, ShouldBeNil)

		qs, _ := proc.AllocN(3)
		So(proc.Apply(H(), qs...), ShouldBeNil)
		So(proc.Ctrl(qs[:2], X(), qs[2]), ShouldBeNil)
		m, _ := proc.Measure(qs...)

		So(proc.Execute(), ShouldBeNil)
		value, err := proc.MeasurementValue(m)
		So(err, ShouldBeNil)

		Convey("The capabilities of the wrapped executor pass through", func() {
			So(rec.Capabilities(), ShouldResemble, sim.Capabilities())
		})

		Convey("The trace holds the lowered batch", func() {
			So(rec.Batches(), ShouldEqual, 1)

			batches, err := ReadTrace(bytes.NewReader(trace.Bytes()))
			So(err, ShouldBeNil)
			So(len(batches), ShouldEqual, 1)

			for _, in := range batches[0] {
				if in.Kind == OpGate {
					So(in.Gate.Primitive(), ShouldBeTrue)
				}
			}

			Convey("And replaying it on an identical simulator gives the same answer", func() {
				fresh, _ := NewSimulator(3, WithSeed(21))
				replayed, err := Replay(ctx, fresh, batches)
				So(err, ShouldBeNil)
				So(len(replayed), ShouldEqual, 1)
				So(replayed[0][0].ID, ShouldEqual, m.ID())
				So(replayed[0][0].Value, ShouldEqual, value)
			})
		})
	})

	Convey("Given a Recorder around a failing executor", t, func() {
		var trace bytes.Buffer
		rec := NewRecorder(ExecutorFunc(func(context.Context, []Instruction) ([]Result, error) {
			return nil, errors.New("rejected")
		}), &trace)

		Convey("Rejected batches are not written", func() {
			_, err := rec.Submit(ctx, allocate(1))
			So(err, ShouldNotBeNil)
			So(rec.Batches(), ShouldEqual, 0)
			So(trace.Len(), ShouldEqual, 0)

			batches, err := ReadTrace(&trace)
			So(err, ShouldBeNil)
			So(len(batches), ShouldEqual, 0)
		})

		Convey("Replay stops at the first failing batch", func() {
			_, err := Replay(ctx, rec, [][]Instruction{allocate(1)})
			So(err, ShouldNotBeNil)
		})
	})
}
