package protocol

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// wsConn carries JSON frames over a websocket. gorilla/websocket allows one
// concurrent writer, so writes are serialised.
type wsConn struct {
	c       *websocket.Conn
	writeMu sync.Mutex
}

func (w *wsConn) write(ctx context.Context, v any) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	if deadline, ok := ctx.Deadline(); ok {
		_ = w.c.SetWriteDeadline(deadline)
		defer w.c.SetWriteDeadline(time.Time{})
	}
	if err := w.c.WriteJSON(v); err != nil {
		return wrapWSErr(err)
	}
	return nil
}

func (w *wsConn) read(ctx context.Context, v any) error {
	if deadline, ok := ctx.Deadline(); ok {
		_ = w.c.SetReadDeadline(deadline)
		defer w.c.SetReadDeadline(time.Time{})
	}
	if err := w.c.ReadJSON(v); err != nil {
		return wrapWSErr(err)
	}
	return nil
}

func (w *wsConn) Close() error {
	w.writeMu.Lock()
	_ = w.c.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	w.writeMu.Unlock()
	return w.c.Close()
}

func wrapWSErr(err error) error {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) ||
		errors.Is(err, websocket.ErrCloseSent) || errors.Is(err, net.ErrClosed) {
		return ErrClosed
	}
	return err
}

type wsClient struct{ *wsConn }

func (c wsClient) Send(ctx context.Context, req Request) error { return c.write(ctx, req) }

func (c wsClient) Recv(ctx context.Context) (Response, error) {
	var resp Response
	err := c.read(ctx, &resp)
	return resp, err
}

type wsServer struct{ *wsConn }

func (s wsServer) Recv(ctx context.Context) (Request, error) {
	var req Request
	err := s.read(ctx, &req)
	return req, err
}

func (s wsServer) Send(ctx context.Context, resp Response) error { return s.write(ctx, resp) }

// DialWebsocket connects to a kernel served over a websocket at url.
func DialWebsocket(ctx context.Context, url string) (Conn, error) {
	c, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial kernel %s: %w", url, err)
	}
	return wsClient{&wsConn{c: c}}, nil
}

// WebsocketDialer returns a Dialer for url.
func WebsocketDialer(url string) Dialer {
	return func(ctx context.Context) (Conn, error) {
		return DialWebsocket(ctx, url)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 64 * 1024,
}

// AcceptWebsocket upgrades an HTTP request to a kernel server connection.
func AcceptWebsocket(w http.ResponseWriter, r *http.Request) (ServerConn, error) {
	c, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("upgrade kernel connection: %w", err)
	}
	return wsServer{&wsConn{c: c}}, nil
}
