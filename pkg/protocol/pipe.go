package protocol

import (
	"context"
	"sync"
)

// pipeBuffer is the number of frames each direction can hold before a
// sender blocks.
const pipeBuffer = 64

type pipe struct {
	reqs  chan Request
	resps chan Response
	done  chan struct{}
	once  sync.Once
}

func (p *pipe) close() error {
	p.once.Do(func() { close(p.done) })
	return nil
}

// Pipe returns the two ends of an in-memory connection. Closing either end
// closes both.
func Pipe() (Conn, ServerConn) {
	p := &pipe{
		reqs:  make(chan Request, pipeBuffer),
		resps: make(chan Response, pipeBuffer),
		done:  make(chan struct{}),
	}
	return &pipeClient{p}, &pipeServer{p}
}

type pipeClient struct{ p *pipe }

func (c *pipeClient) Send(ctx context.Context, req Request) error {
	select {
	case <-c.p.done:
		return ErrClosed
	default:
	}
	select {
	case c.p.reqs <- req:
		return nil
	case <-c.p.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *pipeClient) Recv(ctx context.Context) (Response, error) {
	select {
	case resp := <-c.p.resps:
		return resp, nil
	case <-c.p.done:
		return Response{}, ErrClosed
	case <-ctx.Done():
		return Response{}, ctx.Err()
	}
}

func (c *pipeClient) Close() error { return c.p.close() }

type pipeServer struct{ p *pipe }

func (s *pipeServer) Recv(ctx context.Context) (Request, error) {
	select {
	case req := <-s.p.reqs:
		return req, nil
	case <-s.p.done:
		return Request{}, ErrClosed
	case <-ctx.Done():
		return Request{}, ctx.Err()
	}
}

func (s *pipeServer) Send(ctx context.Context, resp Response) error {
	select {
	case <-s.p.done:
		return ErrClosed
	default:
	}
	select {
	case s.p.resps <- resp:
		return nil
	case <-s.p.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *pipeServer) Close() error { return s.p.close() }
