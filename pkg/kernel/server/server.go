// Package server exposes a kernel.Kernel over the kernel protocol. It owns
// the shape handles: every creating operation stores a new solid and
// returns its id, and handles are shared by every connection to the same
// Server.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"github.com/chazu/mayhem/pkg/kernel"
	"github.com/chazu/mayhem/pkg/protocol"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Version is reported in the init handshake.
const Version = "mayhem-kernel/1"

// Server serves kernel requests.
type Server struct {
	k         kernel.Kernel
	logger    *zap.Logger
	meshCells int

	mu     sync.RWMutex
	shapes map[string]kernel.Solid
	seq    uint64
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server's logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMeshCells sets the tessellation resolution used for mass properties
// and distance queries. Zero lets the backend choose.
func WithMeshCells(n int) Option {
	return func(s *Server) { s.meshCells = n }
}

// New returns a server backed by k.
func New(k kernel.Kernel, opts ...Option) *Server {
	s := &Server{
		k:      k,
		logger: zap.NewNop(),
		shapes: make(map[string]kernel.Solid),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("kernel-server")
	return s
}

// ShapeCount returns the number of live shape handles.
func (s *Server) ShapeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.shapes)
}

func (s *Server) store(solid kernel.Solid) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	id := "s" + strconv.FormatUint(s.seq, 10)
	s.shapes[id] = solid
	return id
}

func (s *Server) lookup(id string) (kernel.Solid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	solid, ok := s.shapes[id]
	if !ok {
		return nil, fmt.Errorf("unknown shape %q", id)
	}
	return solid, nil
}

func (s *Server) remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.shapes[id]; !ok {
		return fmt.Errorf("unknown shape %q", id)
	}
	delete(s.shapes, id)
	return nil
}

// session is the per-connection state: in-flight requests that a cancel
// may target.
type session struct {
	conn protocol.ServerConn

	mu       sync.Mutex
	inflight map[string]context.CancelFunc
}

func (ss *session) track(id string, cancel context.CancelFunc) {
	ss.mu.Lock()
	ss.inflight[id] = cancel
	ss.mu.Unlock()
}

func (ss *session) untrack(id string) {
	ss.mu.Lock()
	delete(ss.inflight, id)
	ss.mu.Unlock()
}

func (ss *session) cancel(id string) bool {
	ss.mu.Lock()
	cancel, ok := ss.inflight[id]
	ss.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// Serve handles requests on conn until it closes or ctx ends. Compute
// requests run concurrently; responses are sent as they complete.
func (s *Server) Serve(ctx context.Context, conn protocol.ServerConn) error {
	defer conn.Close()

	g, gctx := errgroup.WithContext(ctx)
	gctx, stop := context.WithCancel(gctx)
	defer stop()
	ss := &session{conn: conn, inflight: make(map[string]context.CancelFunc)}

	g.Go(func() error {
		// Unblocks Recv when the caller ends ctx.
		<-gctx.Done()
		_ = conn.Close()
		return nil
	})
	g.Go(func() error {
		defer stop()
		for {
			req, err := conn.Recv(gctx)
			if err != nil {
				if errors.Is(err, protocol.ErrClosed) || gctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("receive request: %w", err)
			}
			switch req.Type {
			case protocol.TypeInit:
				s.reply(gctx, conn, req.ID, map[string]string{"version": Version}, nil)
			case protocol.TypeCancel:
				s.handleCancel(gctx, ss, req)
			case protocol.TypeCompute:
				rctx, cancel := context.WithCancel(gctx)
				ss.track(req.ID, cancel)
				g.Go(func() error {
					defer cancel()
					defer ss.untrack(req.ID)
					s.handleCompute(rctx, gctx, ss, req)
					return nil
				})
			default:
				s.reply(gctx, conn, req.ID, nil, fmt.Errorf("unknown request type %q", req.Type))
			}
		}
	})

	err := g.Wait()
	if err != nil && !errors.Is(err, protocol.ErrClosed) {
		return err
	}
	return nil
}

func (s *Server) handleCancel(ctx context.Context, ss *session, req protocol.Request) {
	var body protocol.Cancel
	if err := json.Unmarshal(req.Payload, &body); err != nil {
		s.reply(ctx, ss.conn, req.ID, nil, fmt.Errorf("decode cancel: %w", err))
		return
	}
	if !ss.cancel(body.TargetID) {
		s.reply(ctx, ss.conn, req.ID, nil, fmt.Errorf("no in-flight request %q", body.TargetID))
		return
	}
	s.logger.Debug("request cancelled", zap.String("target", body.TargetID))
	s.reply(ctx, ss.conn, req.ID, nil, nil)
}

// handleCompute runs one compute request. rctx is cancelled by a matching
// cancel request; replies go out on the session context.
func (s *Server) handleCompute(rctx, sctx context.Context, ss *session, req protocol.Request) {
	var c protocol.Compute
	if err := json.Unmarshal(req.Payload, &c); err != nil {
		s.reply(sctx, ss.conn, req.ID, nil, fmt.Errorf("decode compute: %w", err))
		return
	}
	progress := func(p float64) {
		_ = ss.conn.Send(sctx, protocol.Response{ID: req.ID, Progress: &p})
	}
	result, err := s.Execute(rctx, c.Operation, c.Params, progress)
	if err == nil && rctx.Err() != nil {
		err = rctx.Err()
	}
	if err != nil {
		s.logger.Debug("operation failed", zap.String("op", c.Operation), zap.String("id", req.ID), zap.Error(err))
	}
	s.reply(sctx, ss.conn, req.ID, result, err)
}

func (s *Server) reply(ctx context.Context, conn protocol.ServerConn, id string, result any, opErr error) {
	resp := protocol.Response{ID: id, Success: opErr == nil}
	if opErr != nil {
		resp.Error = opErr.Error()
	} else if result != nil {
		b, err := json.Marshal(result)
		if err != nil {
			resp.Success = false
			resp.Error = fmt.Sprintf("encode result: %v", err)
		} else {
			resp.Payload = b
		}
	}
	if err := conn.Send(ctx, resp); err != nil && !errors.Is(err, protocol.ErrClosed) {
		s.logger.Warn("send response failed", zap.String("id", id), zap.Error(err))
	}
}

// Handler returns an http.Handler that upgrades to a websocket and serves
// the kernel protocol on it.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := protocol.AcceptWebsocket(w, r)
		if err != nil {
			s.logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}
		s.logger.Info("kernel client connected", zap.String("remote", r.RemoteAddr))
		if err := s.Serve(r.Context(), conn); err != nil {
			s.logger.Warn("kernel session ended", zap.Error(err))
		}
	})
}

// Dialer returns a protocol.Dialer connecting to s in memory. Each dial
// starts a session that ends when the client closes its end or ctx ends.
func (s *Server) Dialer(ctx context.Context, wg *sync.WaitGroup) protocol.Dialer {
	return func(context.Context) (protocol.Conn, error) {
		cli, srv := protocol.Pipe()
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.Serve(ctx, srv); err != nil {
				s.logger.Warn("in-memory session ended", zap.Error(err))
			}
		}()
		return cli, nil
	}
}
