package protocol

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestNewRequestIDUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := NewRequestID()
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestNewCompute(t *testing.T) {
	req, err := NewCompute("r1", OpBox, map[string]float64{"x": 1, "y": 2, "z": 3})
	require.NoError(t, err)
	assert.Equal(t, "r1", req.ID)
	assert.Equal(t, TypeCompute, req.Type)

	var c Compute
	require.NoError(t, json.Unmarshal(req.Payload, &c))
	assert.Equal(t, OpBox, c.Operation)
	assert.JSONEq(t, `{"x":1,"y":2,"z":3}`, string(c.Params))
}

func TestNewComputeWithoutParams(t *testing.T) {
	req, err := NewCompute("r2", OpDelete, nil)
	require.NoError(t, err)

	var c Compute
	require.NoError(t, json.Unmarshal(req.Payload, &c))
	assert.Empty(t, c.Params)
}

func TestResponseIsProgress(t *testing.T) {
	p := 50.0
	assert.True(t, Response{ID: "a", Progress: &p}.IsProgress())
	assert.False(t, Response{ID: "a", Success: true}.IsProgress())

	// Progress survives the wire; its absence does too.
	b, err := json.Marshal(Response{ID: "a", Success: true})
	require.NoError(t, err)
	assert.NotContains(t, string(b), "progress")
}

func TestPipeRoundTrip(t *testing.T) {
	ctx := context.Background()
	client, server := Pipe()
	defer client.Close()

	require.NoError(t, client.Send(ctx, Request{ID: "1", Type: TypeInit}))
	req, err := server.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1", req.ID)

	require.NoError(t, server.Send(ctx, Response{ID: "1", Success: true}))
	resp, err := client.Recv(ctx)
	require.NoError(t, err)
	assert.True(t, resp.Success)
}

func TestPipeCloseUnblocksBothEnds(t *testing.T) {
	ctx := context.Background()
	client, server := Pipe()

	errs := make(chan error, 2)
	go func() {
		_, err := client.Recv(ctx)
		errs <- err
	}()
	go func() {
		_, err := server.Recv(ctx)
		errs <- err
	}()

	require.NoError(t, server.Close())
	for i := 0; i < 2; i++ {
		select {
		case err := <-errs:
			assert.ErrorIs(t, err, ErrClosed)
		case <-time.After(time.Second):
			t.Fatal("Recv did not unblock after Close")
		}
	}

	assert.ErrorIs(t, client.Send(ctx, Request{ID: "x"}), ErrClosed)
	assert.ErrorIs(t, server.Send(ctx, Response{ID: "x"}), ErrClosed)
	// Closing twice is harmless.
	assert.NoError(t, client.Close())
}

func TestPipeRecvHonoursContext(t *testing.T) {
	client, _ := Pipe()
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := client.Recv(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestWebsocketRoundTrip(t *testing.T) {
	done := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer close(done)
		conn, err := AcceptWebsocket(w, r)
		if err != nil {
			t.Errorf("accept: %v", err)
			return
		}
		defer conn.Close()
		ctx := context.Background()
		for {
			req, err := conn.Recv(ctx)
			if err != nil {
				return
			}
			if err := conn.Send(ctx, Response{ID: req.ID, Success: true, Payload: req.Payload}); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, err := WebsocketDialer(url)(ctx)
	require.NoError(t, err)

	req, err := NewCompute("ws-1", OpSphere, map[string]float64{"radius": 5})
	require.NoError(t, err)
	require.NoError(t, conn.Send(ctx, req))

	resp, err := conn.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ws-1", resp.ID)
	assert.True(t, resp.Success)
	assert.JSONEq(t, string(req.Payload), string(resp.Payload))

	require.NoError(t, conn.Close())
	<-done
}
