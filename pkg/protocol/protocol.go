// Package protocol defines the wire messages exchanged with a geometry
// kernel and the transports that carry them. A client sends Requests and
// receives Responses over a single message channel; responses are
// correlated to requests by id only and may arrive in any order.
package protocol

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrClosed is returned by transports once either end has been closed.
var ErrClosed = errors.New("protocol: connection closed")

// RequestType selects how the kernel treats a request.
type RequestType string

const (
	TypeInit    RequestType = "init"
	TypeCompute RequestType = "compute"
	TypeCancel  RequestType = "cancel"
)

// Request is a client-to-kernel message.
type Request struct {
	ID      string          `json:"id"`
	Type    RequestType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Response is a kernel-to-client message. A response carrying Progress is
// never terminal.
type Response struct {
	ID       string          `json:"id"`
	Success  bool            `json:"success"`
	Payload  json.RawMessage `json:"payload,omitempty"`
	Error    string          `json:"error,omitempty"`
	Progress *float64        `json:"progress,omitempty"`
}

// IsProgress reports whether r is an intermediate progress frame.
func (r Response) IsProgress() bool {
	return r.Progress != nil
}

// Compute is the payload of a compute request.
type Compute struct {
	Operation string          `json:"operation"`
	Params    json.RawMessage `json:"params,omitempty"`
}

// Cancel is the payload of a cancel request.
type Cancel struct {
	TargetID string `json:"targetId"`
}

// Operation names understood by the kernel.
const (
	OpBox             = "box"
	OpCylinder        = "cylinder"
	OpSphere          = "sphere"
	OpUnion           = "booleanUnion"
	OpSubtract        = "booleanSubtract"
	OpIntersect       = "booleanIntersect"
	OpTranslate       = "translate"
	OpRotate          = "rotate"
	OpBoundingBox     = "boundingBox"
	OpMassProperties  = "massProperties"
	OpMeasureDistance = "measureDistance"
	OpMesh            = "mesh"
	OpDelete          = "delete"
)

// NewRequestID returns an id unique for the session: a nanosecond
// timestamp followed by a random suffix.
func NewRequestID() string {
	return fmt.Sprintf("%d-%s", time.Now().UnixNano(), uuid.NewString()[:8])
}

// EncodeCompute encodes a compute payload for op with params as JSON.
func EncodeCompute(op string, params any) (json.RawMessage, error) {
	var raw json.RawMessage
	if params != nil {
		b, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("encode %s params: %w", op, err)
		}
		raw = b
	}
	payload, err := json.Marshal(Compute{Operation: op, Params: raw})
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", op, err)
	}
	return payload, nil
}

// NewCompute builds a compute request for op.
func NewCompute(id, op string, params any) (Request, error) {
	payload, err := EncodeCompute(op, params)
	if err != nil {
		return Request{}, err
	}
	return Request{ID: id, Type: TypeCompute, Payload: payload}, nil
}

// Conn is the client end of a kernel connection.
type Conn interface {
	Send(ctx context.Context, req Request) error
	Recv(ctx context.Context) (Response, error)
	Close() error
}

// ServerConn is the kernel end of a connection.
type ServerConn interface {
	Recv(ctx context.Context) (Request, error)
	Send(ctx context.Context, resp Response) error
	Close() error
}

// Dialer opens a new client connection.
type Dialer func(ctx context.Context) (Conn, error)
