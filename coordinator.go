package qproc

import (
	"context"
	"time"

	"github.com/theapemachine/errnie"
)

/*
coordinator is the only caller of the executor. A flush drains the ledger,
lowers the batch, submits it, checks the answers and stores them. Any
failure on the way poisons the process.
*/
type coordinator struct {
	executor   Executor
	ledger     *Ledger
	allocator  *allocator
	decomposer *Decomposer
	results    *ResultStore
	metrics    *Metrics
	lifecycle  *lifecycle

	// layout is the allocation picture the next drained batch starts from.
	layout indexLayout
}

func newCoordinator(
	executor Executor,
	ledger *Ledger,
	alloc *allocator,
	decomposer *Decomposer,
) *coordinator {
	return &coordinator{
		executor:   executor,
		ledger:     ledger,
		allocator:  alloc,
		decomposer: decomposer,
		results:    NewResultStore(),
		metrics:    newMetrics(),
		lifecycle:  newLifecycle(),
		layout:     alloc.layout(),
	}
}

/*
flush submits everything recorded since the last flush. An empty ledger is
not submitted.

Returns:
  - ErrProcessPoisoned wrapping an *ExecutionError when the submission fails
  - ErrProcessFinished after finalize
*/
func (c *coordinator) flush(ctx context.Context) error {
	if err := c.lifecycle.begin(); err != nil {
		return err
	}

	batch := c.ledger.Drain()
	if len(batch) == 0 {
		c.lifecycle.settle()
		return nil
	}

	lowered, err := c.decomposer.Decompose(batch, c.layout)
	c.layout = c.allocator.layout()
	if err != nil {
		return c.lifecycle.poison(&ExecutionError{Fault: FaultProtocol, Detail: "decomposition", Err: err})
	}

	errnie.Debug(
		"flushing %d instructions as %d primitives (%d ancillas)",
		len(batch), len(lowered.Instructions), lowered.Ancillas,
	)

	start := time.Now()
	results, err := c.executor.Submit(ctx, lowered.Instructions)
	if err != nil {
		c.metrics.recordSubmission(start, len(lowered.Instructions), lowered.Ancillas, false)
		return c.lifecycle.poison(backendFault("submit", err))
	}

	if err := c.results.Store(batch, results); err != nil {
		c.metrics.recordSubmission(start, len(lowered.Instructions), lowered.Ancillas, false)
		return c.lifecycle.poison(err)
	}

	c.metrics.recordSubmission(start, len(lowered.Instructions), lowered.Ancillas, true)
	c.lifecycle.settle()
	return nil
}

// finalize flushes what is left and closes the process for recording.
func (c *coordinator) finalize(ctx context.Context) error {
	if err := c.flush(ctx); err != nil {
		return err
	}
	c.lifecycle.finish()
	return nil
}
