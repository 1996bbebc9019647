package qproc

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func bellProgram(p *Process) (any, error) {
	qs, err := p.AllocN(2)
	if err != nil {
		return nil, err
	}
	if err := p.Apply(H(), qs[0]); err != nil {
		return nil, err
	}
	if err := p.CNOT(qs[0], qs[1]); err != nil {
		return nil, err
	}
	m, err := p.Measure(qs...)
	if err != nil {
		return nil, err
	}
	return p.ReadMeasurement(m)
}

func TestPool(t *testing.T) {
	Convey("Given a pool of four workers with simulator executors", t, func() {
		var seed atomic.Int64
		pool := NewPool(context.Background(), 4, func() (Executor, error) {
			return NewSimulator(2, WithSeed(seed.Add(1)))
		}, WithMode(ModeBatch))
		defer pool.Close()

		Convey("Independent programs all complete with their own results", func() {
			outcomes := make([]<-chan Outcome, 16)
			for i := range outcomes {
				outcomes[i] = pool.Schedule(fmt.Sprintf("bell-%d", i), bellProgram)
			}

			for i, ch := range outcomes {
				out := <-ch
				So(out.ID, ShouldEqual, fmt.Sprintf("bell-%d", i))
				So(out.Err, ShouldBeNil)
				So(out.Value, ShouldBeIn, []any{uint64(0), uint64(3)})
				So(out.Metadata["status"], ShouldEqual, "finished")
				So(out.Metadata["mode"], ShouldEqual, "batch")
			}
		})

		Convey("A failing program reports its error", func() {
			out := <-pool.Schedule("broken", func(p *Process) (any, error) {
				_, err := p.AllocN(3)
				return nil, err
			})
			So(errors.Is(out.Err, ErrCapacityExceeded), ShouldBeTrue)
		})
	})

	Convey("Given a factory that cannot build executors", t, func() {
		pool := NewPool(context.Background(), 1, func() (Executor, error) {
			return nil, errors.New("no devices")
		})
		defer pool.Close()

		Convey("Programs fail without running", func() {
			ran := false
			out := <-pool.Schedule("never", func(*Process) (any, error) {
				ran = true
				return nil, nil
			})
			So(out.Err, ShouldNotBeNil)
			So(ran, ShouldBeFalse)
		})
	})
}

func TestPoolCancellation(t *testing.T) {
	Convey("Given a one-worker pool busy with a blocked program", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		pool := NewPool(ctx, 1, func() (Executor, error) {
			return NewSimulator(2, WithSeed(3))
		})
		defer pool.Close()

		started := make(chan struct{})
		release := make(chan struct{})
		first := pool.Schedule("blocked", func(*Process) (any, error) {
			close(started)
			<-release
			return "done", nil
		})

		select {
		case <-started:
		case <-time.After(5 * time.Second):
			t.Fatal("first program never started")
		}

		ran := false
		second := pool.Schedule("queued", func(*Process) (any, error) {
			ran = true
			return nil, nil
		})

		Convey("Cancelling still delivers an outcome for the queued program", func() {
			cancel()
			close(release)

			receive := func(ch <-chan Outcome) Outcome {
				select {
				case out := <-ch:
					return out
				case <-time.After(5 * time.Second):
					return Outcome{Err: errors.New("outcome never delivered")}
				}
			}

			out := receive(first)
			So(out.ID, ShouldEqual, "blocked")
			So(out.Value, ShouldEqual, "done")

			out = receive(second)
			So(out.ID, ShouldEqual, "queued")
			So(errors.Is(out.Err, context.Canceled), ShouldBeTrue)
			So(ran, ShouldBeFalse)
		})
	})
}
