package qproc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"sync"

	msgpackrpc "github.com/hashicorp/net-rpc-msgpackrpc"
	"github.com/theapemachine/errnie"
)

const executorServiceName = "Executor"

/*
executorService exposes an Executor over net/rpc. Each connection gets its
own msgpack codec; calls from all connections reach the same executor.
*/
type executorService struct {
	ctx      context.Context
	executor Executor
}

func (s *executorService) Submit(req *SubmitRequest, reply *SubmitReply) error {
	results, err := s.executor.Submit(s.ctx, DecodeInstructions(req.Batch))
	if err != nil {
		return err
	}
	reply.Results = EncodeResults(results)
	return nil
}

func (s *executorService) Capabilities(_ *CapabilitiesRequest, reply *CapabilitiesReply) error {
	caps, _ := capabilitiesOf(s.executor)
	reply.MaxQubits = caps.MaxQubits
	reply.NativeMultiControl = caps.NativeMultiControl
	return nil
}

/*
ServeExecutor accepts connections on listener and serves executor on each
of them until ctx is done. It closes the listener on return.
*/
func ServeExecutor(ctx context.Context, listener net.Listener, executor Executor) error {
	server := rpc.NewServer()
	if err := server.RegisterName(executorServiceName, &executorService{ctx: ctx, executor: executor}); err != nil {
		return fmt.Errorf("register executor service: %w", err)
	}

	errnie.Info("serving executor on %s", listener.Addr())

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
		case <-stop:
		}
		listener.Close()
	}()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				errnie.Info("executor server on %s stopped", listener.Addr())
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}

		errnie.Debug("executor client connected from %s", conn.RemoteAddr())

		wg.Add(1)
		go func() {
			defer wg.Done()
			server.ServeCodec(msgpackrpc.NewServerCodec(conn))
		}()

		go func() {
			<-ctx.Done()
			conn.Close()
		}()
	}
}

// DialOption configures DialExecutor.
type DialOption func(*dialConfig)

type dialConfig struct {
	retry  *RetryPolicy
	dialer net.Dialer
}

// WithRetry sets how many times, and how far apart, dialing is attempted.
func WithRetry(attempts int, strategy RetryStrategy) DialOption {
	return func(c *dialConfig) {
		c.retry = &RetryPolicy{MaxAttempts: attempts, Strategy: strategy}
	}
}

/*
RemoteExecutor runs batches on an executor served by ServeExecutor. It
reports the capabilities the server declared when the connection was made.
*/
type RemoteExecutor struct {
	addr   string
	client *rpc.Client
	caps   Capabilities
}

/*
DialExecutor connects to a served executor, retrying the connection with
exponential backoff.

Parameters:
  - ctx: bounds the dial, its retries and the capability query
  - addr: host:port of the server
*/
func DialExecutor(ctx context.Context, addr string, opts ...DialOption) (*RemoteExecutor, error) {
	cfg := &dialConfig{retry: defaultRetryPolicy()}
	for _, opt := range opts {
		opt(cfg)
	}

	var conn net.Conn
	err := cfg.retry.Do(ctx, func() error {
		var err error
		conn, err = cfg.dialer.DialContext(ctx, "tcp", addr)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("dial executor %s: %w", addr, err)
	}

	r := &RemoteExecutor{
		addr:   addr,
		client: rpc.NewClientWithCodec(msgpackrpc.NewClientCodec(conn)),
	}

	var reply CapabilitiesReply
	if err := r.call(ctx, "Capabilities", &CapabilitiesRequest{}, &reply); err != nil {
		r.client.Close()
		return nil, fmt.Errorf("query capabilities of %s: %w", addr, err)
	}
	r.caps = Capabilities{MaxQubits: reply.MaxQubits, NativeMultiControl: reply.NativeMultiControl}

	errnie.Info("connected to executor at %s (%d qubits)", addr, r.caps.MaxQubits)
	return r, nil
}

func (r *RemoteExecutor) call(ctx context.Context, method string, args, reply any) error {
	call := r.client.Go(executorServiceName+"."+method, args, reply, make(chan *rpc.Call, 1))

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-call.Done:
		return call.Error
	}
}

func (r *RemoteExecutor) Submit(ctx context.Context, batch []Instruction) ([]Result, error) {
	var reply SubmitReply
	if err := r.call(ctx, "Submit", &SubmitRequest{Batch: EncodeInstructions(batch)}, &reply); err != nil {
		return nil, fmt.Errorf("remote executor %s: %w", r.addr, err)
	}
	return DecodeResults(reply.Results), nil
}

func (r *RemoteExecutor) Capabilities() Capabilities {
	return r.caps
}

func (r *RemoteExecutor) Close() error {
	return r.client.Close()
}
