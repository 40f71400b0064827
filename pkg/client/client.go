// Package client implements the request-multiplexing protocol to a geometry
// kernel. Many requests may be outstanding on one connection at once; a
// single dispatcher goroutine correlates responses to pending calls by id,
// so settlement order is independent of issue order.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/chazu/mayhem/pkg/protocol"
	"go.uber.org/zap"
)

var (
	// ErrNotInitialized is returned for requests issued before Initialize.
	ErrNotInitialized = errors.New("kernel client not initialized")
	// ErrCancelled settles a call that was cancelled locally.
	ErrCancelled = errors.New("kernel request cancelled")
	// ErrConnectionLost settles calls still pending when the transport fails.
	ErrConnectionLost = errors.New("kernel connection lost")
	// ErrClientClosed is returned once Close has been called.
	ErrClientClosed = errors.New("kernel client closed")
)

// defaultFailure is used when the kernel reports failure without a message.
const defaultFailure = "kernel request failed"

// KernelError is an RPC-level failure reported by the kernel.
type KernelError struct {
	RequestID string
	Message   string
}

func (e *KernelError) Error() string {
	return "kernel: " + e.Message
}

// ProgressFunc receives intermediate progress (0-100) for a request.
type ProgressFunc func(progress float64)

// Call is an issued request. Done is closed exactly once, after Result or
// Err has been set.
type Call struct {
	ID     string
	Done   chan struct{}
	Result json.RawMessage
	Err    error

	once sync.Once
}

func newCall() *Call {
	return &Call{ID: protocol.NewRequestID(), Done: make(chan struct{})}
}

// settle records the outcome. Only the first settlement takes effect.
func (c *Call) settle(result json.RawMessage, err error) bool {
	settled := false
	c.once.Do(func() {
		c.Result, c.Err = result, err
		close(c.Done)
		settled = true
	})
	return settled
}

// Wait blocks until the call settles or ctx ends.
func (c *Call) Wait(ctx context.Context) (json.RawMessage, error) {
	select {
	case <-c.Done:
		return c.Result, c.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type pendingRequest struct {
	call       *Call
	onProgress ProgressFunc
	conn       protocol.Conn
}

type cancelRequest struct {
	target string
	conn   protocol.Conn
}

type initAttempt struct {
	done chan struct{}
	err  error
}

// Client is one session with a geometry kernel. It is safe for concurrent
// use. Construct with New; there is no package-level state.
type Client struct {
	dial   protocol.Dialer
	logger *zap.Logger

	ctx    context.Context // client lifetime
	cancel context.CancelFunc
	wg     sync.WaitGroup // best-effort cancel sends

	mu         sync.Mutex
	conn       protocol.Conn
	readerDone chan struct{}
	ready      bool
	closed     bool
	inflight   *initAttempt
	pending    map[string]*pendingRequest
	cancels    map[string]CancelState   // keyed by target request id
	cancelReqs map[string]cancelRequest // keyed by cancel request id
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the client's logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New returns a client that connects with dial on first Initialize.
func New(dial protocol.Dialer, opts ...Option) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		dial:       dial,
		logger:     zap.NewNop(),
		ctx:        ctx,
		cancel:     cancel,
		pending:    make(map[string]*pendingRequest),
		cancels:    make(map[string]CancelState),
		cancelReqs: make(map[string]cancelRequest),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.Named("kernel-client")
	return c
}

// Initialize opens the connection, starts the response dispatcher and
// performs the init handshake. It is idempotent: concurrent callers share
// a single in-flight attempt, and once ready further calls return at once.
// A failed attempt is forgotten so a later call may retry.
func (c *Client) Initialize(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClientClosed
	}
	if c.ready {
		c.mu.Unlock()
		return nil
	}
	if a := c.inflight; a != nil {
		c.mu.Unlock()
		select {
		case <-a.done:
			return a.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	a := &initAttempt{done: make(chan struct{})}
	c.inflight = a
	c.mu.Unlock()

	err := c.connect(ctx)

	c.mu.Lock()
	c.inflight = nil
	if err == nil {
		c.ready = true
	}
	c.mu.Unlock()

	a.err = err
	close(a.done)
	return err
}

func (c *Client) connect(ctx context.Context) error {
	conn, err := c.dial(ctx)
	if err != nil {
		return fmt.Errorf("connect to kernel: %w", err)
	}

	done := make(chan struct{})
	c.mu.Lock()
	c.conn = conn
	c.readerDone = done
	c.mu.Unlock()
	go c.readLoop(conn, done)

	if _, err := c.Go(ctx, protocol.TypeInit, nil, nil).Wait(ctx); err != nil {
		c.dropConn(conn)
		return fmt.Errorf("kernel init handshake: %w", err)
	}
	c.logger.Debug("kernel session ready")
	return nil
}

// dropConn closes conn if it is still the active connection.
func (c *Client) dropConn(conn protocol.Conn) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
		c.ready = false
	}
	c.mu.Unlock()
	_ = conn.Close()
}

// Ready reports whether the init handshake has completed.
func (c *Client) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ready
}

// Go issues a request and returns without waiting. The pending entry is
// registered before the request is sent, so a fast response cannot be
// missed.
func (c *Client) Go(ctx context.Context, typ protocol.RequestType, payload json.RawMessage, onProgress ProgressFunc) *Call {
	call := newCall()

	c.mu.Lock()
	conn := c.conn
	if c.closed {
		c.mu.Unlock()
		call.settle(nil, ErrClientClosed)
		return call
	}
	// Only the handshake itself may precede readiness.
	if conn == nil || (!c.ready && typ != protocol.TypeInit) {
		c.mu.Unlock()
		call.settle(nil, ErrNotInitialized)
		return call
	}
	c.pending[call.ID] = &pendingRequest{call: call, onProgress: onProgress, conn: conn}
	c.mu.Unlock()

	err := conn.Send(ctx, protocol.Request{ID: call.ID, Type: typ, Payload: payload})
	if err != nil {
		c.mu.Lock()
		delete(c.pending, call.ID)
		c.mu.Unlock()
		call.settle(nil, fmt.Errorf("send %s request: %w", typ, err))
	}
	return call
}

// Send issues a request and waits for its terminal response. If ctx ends
// first the request is cancelled and ctx's error returned.
func (c *Client) Send(ctx context.Context, typ protocol.RequestType, payload json.RawMessage, onProgress ProgressFunc) (json.RawMessage, error) {
	call := c.Go(ctx, typ, payload, onProgress)
	select {
	case <-call.Done:
		return call.Result, call.Err
	case <-ctx.Done():
		c.Cancel(call.ID)
		return nil, ctx.Err()
	}
}

// Compute runs one named kernel operation.
func (c *Client) Compute(ctx context.Context, op string, params any, onProgress ProgressFunc) (json.RawMessage, error) {
	payload, err := protocol.EncodeCompute(op, params)
	if err != nil {
		return nil, err
	}
	return c.Send(ctx, protocol.TypeCompute, payload, onProgress)
}

// Pending returns the number of calls awaiting a terminal response.
func (c *Client) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func (c *Client) readLoop(conn protocol.Conn, done chan struct{}) {
	defer close(done)
	for {
		resp, err := conn.Recv(c.ctx)
		if err != nil {
			cause := ErrConnectionLost
			if c.ctx.Err() != nil {
				cause = ErrClientClosed
				c.logger.Debug("kernel reader stopped")
			} else {
				c.logger.Error("kernel connection failed", zap.Error(err))
			}
			c.dropConn(conn)
			c.failPending(conn, fmt.Errorf("%w: %v", cause, err))
			return
		}
		c.dispatch(resp)
	}
}

// dispatch routes one inbound frame to its pending call.
func (c *Client) dispatch(resp protocol.Response) {
	c.mu.Lock()
	p, ok := c.pending[resp.ID]
	if !ok {
		if cr, isCancel := c.cancelReqs[resp.ID]; isCancel {
			delete(c.cancelReqs, resp.ID)
			if resp.Success {
				c.cancels[cr.target] = CancelKernelAcked
			} else {
				c.cancels[cr.target] = CancelUnknown
			}
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()
		c.logger.Debug("dropping response for unknown request", zap.String("id", resp.ID))
		return
	}
	if resp.IsProgress() {
		c.mu.Unlock()
		if p.onProgress != nil {
			p.onProgress(*resp.Progress)
		}
		return
	}
	delete(c.pending, resp.ID)
	c.mu.Unlock()

	if resp.Success {
		p.call.settle(resp.Payload, nil)
		return
	}
	msg := resp.Error
	if msg == "" {
		msg = defaultFailure
	}
	p.call.settle(nil, &KernelError{RequestID: resp.ID, Message: msg})
}

// failPending rejects every call pending on conn (all calls when conn is
// nil) with err. Cancellations still waiting for an acknowledgement become
// Unknown.
func (c *Client) failPending(conn protocol.Conn, err error) {
	c.mu.Lock()
	calls := make([]*Call, 0, len(c.pending))
	for id, p := range c.pending {
		if conn != nil && p.conn != conn {
			continue
		}
		calls = append(calls, p.call)
		delete(c.pending, id)
	}
	for id, cr := range c.cancelReqs {
		if conn != nil && cr.conn != conn {
			continue
		}
		c.cancels[cr.target] = CancelUnknown
		delete(c.cancelReqs, id)
	}
	c.mu.Unlock()

	for _, call := range calls {
		call.settle(nil, err)
	}
}

// Close stops the dispatcher, closes the connection and rejects every
// pending call with ErrClientClosed.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	conn, done := c.conn, c.readerDone
	c.conn = nil
	c.ready = false
	c.mu.Unlock()

	c.cancel()
	var err error
	if conn != nil {
		err = conn.Close()
		<-done
	}
	c.wg.Wait()
	c.failPending(nil, ErrClientClosed)
	return err
}
