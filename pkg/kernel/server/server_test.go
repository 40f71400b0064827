package server

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/chazu/mayhem/pkg/kernel/sdfx"
	"github.com/chazu/mayhem/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newServer() *Server {
	return New(sdfx.New(0))
}

func exec[T any](t *testing.T, s *Server, op string, params any) T {
	t.Helper()
	raw, err := json.Marshal(params)
	require.NoError(t, err)
	res, err := s.Execute(context.Background(), op, raw, nil)
	require.NoError(t, err, op)
	out, ok := res.(T)
	require.True(t, ok, "%s returned %T", op, res)
	return out
}

func box(t *testing.T, s *Server, x, y, z float64) string {
	t.Helper()
	return exec[protocol.ShapeResult](t, s, protocol.OpBox, protocol.BoxParams{X: x, Y: y, Z: z}).ShapeID
}

func translate(t *testing.T, s *Server, id string, x, y, z float64) string {
	t.Helper()
	return exec[protocol.ShapeResult](t, s, protocol.OpTranslate,
		protocol.TranslateParams{ShapeID: id, Offset: [3]float64{x, y, z}}).ShapeID
}

func TestCreateAndDelete(t *testing.T) {
	s := newServer()
	a := box(t, s, 10, 10, 10)
	b := box(t, s, 10, 10, 10)
	assert.NotEqual(t, a, b)
	assert.Equal(t, 2, s.ShapeCount())

	_, err := s.Execute(context.Background(), protocol.OpDelete, mustJSON(t, protocol.ShapeParams{ShapeID: a}), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, s.ShapeCount())

	_, err = s.Execute(context.Background(), protocol.OpDelete, mustJSON(t, protocol.ShapeParams{ShapeID: a}), nil)
	assert.ErrorContains(t, err, "unknown shape")
}

func TestUnknownOperation(t *testing.T) {
	s := newServer()
	_, err := s.Execute(context.Background(), "loft", nil, nil)
	assert.ErrorContains(t, err, "unknown operation")

	_, err = s.Execute(context.Background(), protocol.OpBox, nil, nil)
	assert.ErrorContains(t, err, "missing params")
}

func TestBoundingBoxAfterTranslate(t *testing.T) {
	s := newServer()
	id := translate(t, s, box(t, s, 100, 50, 25), 10, 20, 30)
	bb := exec[protocol.BoundsResult](t, s, protocol.OpBoundingBox, protocol.ShapeParams{ShapeID: id})
	assert.InDeltaSlice(t, []float64{10, 20, 30}, bb.Min[:], 0.01)
	assert.InDeltaSlice(t, []float64{110, 70, 55}, bb.Max[:], 0.01)
}

func TestMassProperties(t *testing.T) {
	s := newServer()
	id := box(t, s, 100, 100, 100)
	mp := exec[protocol.MassResult](t, s, protocol.OpMassProperties, protocol.ShapeParams{ShapeID: id})
	assert.InEpsilon(t, 1e6, mp.Volume, 0.05)
	assert.InEpsilon(t, 6e4, mp.SurfaceArea, 0.05)
	assert.InDeltaSlice(t, []float64{50, 50, 50}, mp.CenterOfMass[:], 1)
}

func TestIntersectDisjointFails(t *testing.T) {
	s := newServer()
	a := box(t, s, 10, 10, 10)
	b := translate(t, s, box(t, s, 10, 10, 10), 50, 0, 0)
	_, err := s.Execute(context.Background(), protocol.OpIntersect, mustJSON(t, protocol.BinaryParams{A: a, B: b}), nil)
	assert.ErrorIs(t, err, ErrEmptyIntersection)

	c := translate(t, s, box(t, s, 10, 10, 10), 5, 0, 0)
	res := exec[protocol.ShapeResult](t, s, protocol.OpIntersect, protocol.BinaryParams{A: a, B: c})
	assert.NotEmpty(t, res.ShapeID)
}

func TestMeasureDistance(t *testing.T) {
	tests := []struct {
		name   string
		offset float64
		want   float64
		tol    float64
	}{
		{"separated", 60, 50, 1},
		{"touching", 10, 0, 1},
		{"overlapping", 8, -2, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newServer()
			a := box(t, s, 10, 10, 10)
			b := translate(t, s, box(t, s, 10, 10, 10), tt.offset, 0, 0)
			d := exec[protocol.DistanceResult](t, s, protocol.OpMeasureDistance, protocol.BinaryParams{A: a, B: b})
			assert.InDelta(t, tt.want, d.Distance, tt.tol)
		})
	}
}

func TestMeasureDistancePoints(t *testing.T) {
	s := newServer()
	a := box(t, s, 10, 10, 10)
	b := translate(t, s, box(t, s, 10, 10, 10), 60, 0, 0)
	d := exec[protocol.DistanceResult](t, s, protocol.OpMeasureDistance, protocol.BinaryParams{A: a, B: b})
	assert.InDelta(t, 10, d.PointA[0], 1)
	assert.InDelta(t, 60, d.PointB[0], 1)
}

// ----------------------------------------------------------------------------
// Protocol sessions
// ----------------------------------------------------------------------------

func startSession(t *testing.T, s *Server) (protocol.Conn, func()) {
	t.Helper()
	cli, srv := protocol.Pipe()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, s.Serve(context.Background(), srv))
	}()
	return cli, func() {
		_ = cli.Close()
		wg.Wait()
	}
}

func recv(t *testing.T, c protocol.Conn) protocol.Response {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := c.Recv(ctx)
	require.NoError(t, err)
	return resp
}

func mustJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func TestServeInitAndCompute(t *testing.T) {
	s := newServer()
	cli, stop := startSession(t, s)
	defer stop()
	ctx := context.Background()

	require.NoError(t, cli.Send(ctx, protocol.Request{ID: "i", Type: protocol.TypeInit}))
	resp := recv(t, cli)
	assert.Equal(t, "i", resp.ID)
	assert.True(t, resp.Success)

	req, err := protocol.NewCompute("b", protocol.OpBox, protocol.BoxParams{X: 1, Y: 2, Z: 3})
	require.NoError(t, err)
	require.NoError(t, cli.Send(ctx, req))
	resp = recv(t, cli)
	assert.Equal(t, "b", resp.ID)
	require.True(t, resp.Success, resp.Error)
	var shape protocol.ShapeResult
	require.NoError(t, json.Unmarshal(resp.Payload, &shape))
	assert.NotEmpty(t, shape.ShapeID)
}

func TestServeReportsFailure(t *testing.T) {
	s := newServer()
	cli, stop := startSession(t, s)
	defer stop()

	req, err := protocol.NewCompute("x", protocol.OpBoundingBox, protocol.ShapeParams{ShapeID: "nope"})
	require.NoError(t, err)
	require.NoError(t, cli.Send(context.Background(), req))
	resp := recv(t, cli)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "unknown shape")
}

func TestServeSendsProgressBeforeResult(t *testing.T) {
	s := newServer()
	id := box(t, s, 20, 20, 20)
	cli, stop := startSession(t, s)
	defer stop()

	req, err := protocol.NewCompute("m", protocol.OpMassProperties, protocol.ShapeParams{ShapeID: id})
	require.NoError(t, err)
	require.NoError(t, cli.Send(context.Background(), req))

	var progress []float64
	for {
		resp := recv(t, cli)
		require.Equal(t, "m", resp.ID)
		if resp.IsProgress() {
			progress = append(progress, *resp.Progress)
			continue
		}
		require.True(t, resp.Success, resp.Error)
		break
	}
	assert.Equal(t, []float64{0, 80}, progress)
}

func TestServeCancelUnknownTarget(t *testing.T) {
	s := newServer()
	cli, stop := startSession(t, s)
	defer stop()

	require.NoError(t, cli.Send(context.Background(), protocol.Request{
		ID:      "c",
		Type:    protocol.TypeCancel,
		Payload: mustJSON(t, protocol.Cancel{TargetID: "gone"}),
	}))
	resp := recv(t, cli)
	assert.Equal(t, "c", resp.ID)
	assert.False(t, resp.Success)
}

func TestServeOverWebsocket(t *testing.T) {
	s := newServer()
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	cli, err := protocol.DialWebsocket(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"))
	require.NoError(t, err)

	require.NoError(t, cli.Send(ctx, protocol.Request{ID: "i", Type: protocol.TypeInit}))
	resp, err := cli.Recv(ctx)
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.JSONEq(t, `{"version":"`+Version+`"}`, string(resp.Payload))

	require.NoError(t, cli.Close())
}
