package qproc

import (
	"context"
	"fmt"
	"sync"

	"github.com/theapemachine/errnie"
)

// Program is a host computation driven on a process of its own.
type Program func(p *Process) (any, error)

// ExecutorFactory returns a fresh executor for each program run by a Pool.
type ExecutorFactory func() (Executor, error)

// Outcome is what a scheduled program produced.
type Outcome struct {
	ID       string
	Value    any
	Err      error
	Metadata map[string]any
}

type job struct {
	id      string
	program Program
	done    chan Outcome
}

/*
Pool runs independent programs concurrently on a fixed set of workers. Each
program gets its own process and its own executor, so nothing is shared
between them but the pool's queue.
*/
type Pool struct {
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	jobs    chan job
	factory ExecutorFactory
	options []ProcessOption
	once    sync.Once
}

/*
NewPool starts workers goroutines that take programs from the queue.

Parameters:
  - workers: number of programs that may run at the same time
  - factory: builds the executor for each program
  - opts: applied to every process the pool creates
*/
func NewPool(ctx context.Context, workers int, factory ExecutorFactory, opts ...ProcessOption) *Pool {
	ctx, cancel := context.WithCancel(ctx)
	p := &Pool{
		ctx:     ctx,
		cancel:  cancel,
		jobs:    make(chan job, max(workers, 1)*4),
		factory: factory,
		options: opts,
	}

	for i := 0; i < max(workers, 1); i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.work()
		}()
	}

	return p
}

// Schedule queues a program. The channel receives exactly one Outcome.
// It must not be called after Close.
func (p *Pool) Schedule(id string, program Program) <-chan Outcome {
	done := make(chan Outcome, 1)

	select {
	case p.jobs <- job{id: id, program: program, done: done}:
	case <-p.ctx.Done():
		done <- Outcome{ID: id, Err: fmt.Errorf("schedule %s: %w", id, p.ctx.Err())}
	}

	return done
}

// work keeps taking jobs until Close, so a queued job is always answered,
// even after the context is cancelled.
func (p *Pool) work() {
	for j := range p.jobs {
		j.done <- p.run(j)
	}
}

func (p *Pool) run(j job) Outcome {
	out := Outcome{ID: j.id}

	if err := p.ctx.Err(); err != nil {
		out.Err = fmt.Errorf("program %s: %w", j.id, err)
		return out
	}

	executor, err := p.factory()
	if err != nil {
		out.Err = fmt.Errorf("executor for %s: %w", j.id, err)
		return out
	}

	proc, err := NewProcess(p.ctx, executor, p.options...)
	if err != nil {
		out.Err = err
		return out
	}

	out.Value, out.Err = j.program(proc)
	if err := proc.Close(); err != nil && out.Err == nil {
		out.Err = err
	}
	out.Metadata = proc.Metadata()

	if out.Err != nil {
		errnie.Warn("program %s failed: %v", j.id, out.Err)
	}
	return out
}

// Close stops accepting programs, lets queued ones finish and waits for the workers.
func (p *Pool) Close() {
	p.once.Do(func() {
		close(p.jobs)
		p.wg.Wait()
		p.cancel()
	})
}
