package qproc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/vmihailenco/msgpack/v5"
)

/*
Recorder is an Executor that writes every batch it forwards to a msgpack
stream before handing it on. Only batches the wrapped executor accepted are
kept, so a trace replays exactly what ran.
*/
type Recorder struct {
	mu       sync.Mutex
	executor Executor
	encoder  *msgpack.Encoder
	batches  int
}

func NewRecorder(executor Executor, w io.Writer) *Recorder {
	return &Recorder{
		executor: executor,
		encoder:  msgpack.NewEncoder(w),
	}
}

func (r *Recorder) Submit(ctx context.Context, batch []Instruction) ([]Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	results, err := r.executor.Submit(ctx, batch)
	if err != nil {
		return nil, err
	}

	if err := r.encoder.Encode(EncodeInstructions(batch)); err != nil {
		return nil, fmt.Errorf("record batch %d: %w", r.batches, err)
	}
	r.batches++

	return results, nil
}

// Capabilities passes through whatever the wrapped executor reports.
func (r *Recorder) Capabilities() Capabilities {
	caps, _ := capabilitiesOf(r.executor)
	return caps
}

// Batches is the number of batches written so far.
func (r *Recorder) Batches() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.batches
}

// ReadTrace decodes every batch of a recorded stream.
func ReadTrace(rd io.Reader) ([][]Instruction, error) {
	decoder := msgpack.NewDecoder(rd)
	out := make([][]Instruction, 0)

	for {
		var batch []WireInstruction
		if err := decoder.Decode(&batch); err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return nil, fmt.Errorf("read trace batch %d: %w", len(out), err)
		}
		out = append(out, DecodeInstructions(batch))
	}
}

// Replay submits a recorded trace to an executor, batch by batch.
func Replay(ctx context.Context, executor Executor, trace [][]Instruction) ([][]Result, error) {
	out := make([][]Result, 0, len(trace))
	for i, batch := range trace {
		results, err := executor.Submit(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("replay batch %d: %w", i, err)
		}
		out = append(out, results)
	}
	return out, nil
}
