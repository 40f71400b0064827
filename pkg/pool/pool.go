// Package pool runs tasks with bounded concurrency. The bound is a set of
// initialised kernel connections: a task runs only while it holds one.
// Tasks are not given the connection; all kernel traffic goes through the
// shared client session, and the connections serve as permits.
package pool

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/chazu/mayhem/pkg/protocol"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrPoolClosed is returned for tasks submitted to, or still queued in, a
// closed pool.
var ErrPoolClosed = errors.New("worker pool closed")

// Task is a unit of work.
type Task func(ctx context.Context) error

type job struct {
	ctx       context.Context
	task      Task
	onSuccess func()
	onFailure func(error)
}

// Pool is a semaphore-style executor over kernel connections.
type Pool struct {
	logger *zap.Logger
	conns  []protocol.Conn

	mu        sync.Mutex
	available []protocol.Conn
	queue     []*job
	closed    bool
	running   sync.WaitGroup
}

// New opens size connections with dial and performs the init handshake on
// each in parallel. size <= 0 selects runtime.NumCPU().
func New(ctx context.Context, dial protocol.Dialer, size int, logger *zap.Logger) (*Pool, error) {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Pool{logger: logger.Named("pool")}

	conns := make([]protocol.Conn, size)
	g, gctx := errgroup.WithContext(ctx)
	for i := range conns {
		g.Go(func() error {
			conn, err := dial(gctx)
			if err != nil {
				return fmt.Errorf("open connection %d: %w", i, err)
			}
			conns[i] = conn
			if err := handshake(gctx, conn); err != nil {
				return fmt.Errorf("connection %d: %w", i, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, c := range conns {
			if c != nil {
				_ = c.Close()
			}
		}
		return nil, err
	}

	p.conns = conns
	p.available = append([]protocol.Conn(nil), conns...)
	p.logger.Debug("pool ready", zap.Int("connections", size))
	return p, nil
}

// handshake sends init on conn and reads frames from that connection only
// until the matching response arrives. Frames for other ids are ignored.
func handshake(ctx context.Context, conn protocol.Conn) error {
	id := protocol.NewRequestID()
	if err := conn.Send(ctx, protocol.Request{ID: id, Type: protocol.TypeInit}); err != nil {
		return fmt.Errorf("send init: %w", err)
	}
	for {
		resp, err := conn.Recv(ctx)
		if err != nil {
			return fmt.Errorf("await init: %w", err)
		}
		if resp.ID != id || resp.IsProgress() {
			continue
		}
		if !resp.Success {
			msg := resp.Error
			if msg == "" {
				msg = "init rejected"
			}
			return fmt.Errorf("init: %s", msg)
		}
		return nil
	}
}

// Size returns the number of connections.
func (p *Pool) Size() int { return len(p.conns) }

// Available returns the number of idle connections.
func (p *Pool) Available() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.available)
}

// Execute queues task and waits for it to finish. If ctx ends while the
// task is still queued it is skipped and ctx's error returned.
func (p *Pool) Execute(ctx context.Context, task Task) error {
	done := make(chan error, 1)
	j := &job{
		ctx:       ctx,
		task:      task,
		onSuccess: func() { done <- nil },
		onFailure: func(err error) { done <- err },
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPoolClosed
	}
	p.queue = append(p.queue, j)
	p.mu.Unlock()

	p.processQueue()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// processQueue pairs idle connections with queued jobs and starts them.
func (p *Pool) processQueue() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.available) > 0 && len(p.queue) > 0 {
		conn := p.available[len(p.available)-1]
		p.available = p.available[:len(p.available)-1]
		j := p.queue[0]
		p.queue = p.queue[1:]

		p.running.Add(1)
		go p.run(conn, j)
	}
}

func (p *Pool) run(conn protocol.Conn, j *job) {
	defer func() {
		p.mu.Lock()
		if !p.closed {
			p.available = append(p.available, conn)
		}
		p.mu.Unlock()
		p.processQueue()
		p.running.Done()
	}()

	if err := j.ctx.Err(); err != nil {
		j.onFailure(err)
		return
	}
	if err := j.task(j.ctx); err != nil {
		j.onFailure(err)
		return
	}
	j.onSuccess()
}

// Close waits for running tasks, fails queued ones with ErrPoolClosed and
// closes every connection.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	queued := p.queue
	p.queue = nil
	p.available = nil
	p.mu.Unlock()

	for _, j := range queued {
		j.onFailure(ErrPoolClosed)
	}
	p.running.Wait()

	var errs []error
	for _, c := range p.conns {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Run executes task on p and returns its value.
func Run[T any](ctx context.Context, p *Pool, task func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := p.Execute(ctx, func(ctx context.Context) error {
		v, err := task(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

// Parallel runs every task on p and returns their results in task order.
// The first error cancels the remaining tasks and is returned.
func Parallel[T any](ctx context.Context, p *Pool, tasks []func(ctx context.Context) (T, error)) ([]T, error) {
	results := make([]T, len(tasks))
	g, gctx := errgroup.WithContext(ctx)
	for i, task := range tasks {
		g.Go(func() error {
			v, err := Run(gctx, p, task)
			if err != nil {
				return err
			}
			results[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
