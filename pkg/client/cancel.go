package client

import (
	"encoding/json"

	"github.com/chazu/mayhem/pkg/protocol"
	"go.uber.org/zap"
)

// CancelState tracks how far a cancellation has progressed. Local
// cancellation is immediate; whether the kernel stopped working is only
// known once it acknowledges the cancel request.
type CancelState int

const (
	CancelNone CancelState = iota
	CancelLocal
	CancelKernelAcked
	CancelUnknown
)

func (s CancelState) String() string {
	switch s {
	case CancelNone:
		return "none"
	case CancelLocal:
		return "locally-cancelled"
	case CancelKernelAcked:
		return "kernel-acked"
	case CancelUnknown:
		return "unknown"
	default:
		return "invalid"
	}
}

// Cancel settles the pending call id with ErrCancelled and asks the kernel
// to stop working on it. It returns false if id is not pending. Only the
// named call is affected.
func (c *Client) Cancel(id string) bool {
	c.mu.Lock()
	p, ok := c.pending[id]
	if !ok {
		c.mu.Unlock()
		return false
	}
	delete(c.pending, id)
	c.cancels[id] = CancelLocal
	conn := c.conn
	closed := c.closed
	cancelID := protocol.NewRequestID()
	if conn != nil && !closed {
		c.cancelReqs[cancelID] = cancelRequest{target: id, conn: conn}
		c.wg.Add(1)
	}
	c.mu.Unlock()

	p.call.settle(nil, ErrCancelled)
	if conn == nil || closed {
		c.setCancelState(id, CancelUnknown)
		return true
	}

	go func() {
		defer c.wg.Done()
		payload, err := json.Marshal(protocol.Cancel{TargetID: id})
		if err == nil {
			err = conn.Send(c.ctx, protocol.Request{ID: cancelID, Type: protocol.TypeCancel, Payload: payload})
		}
		if err != nil {
			c.logger.Warn("cancel request not delivered", zap.String("id", id), zap.Error(err))
			c.mu.Lock()
			delete(c.cancelReqs, cancelID)
			c.cancels[id] = CancelUnknown
			c.mu.Unlock()
		}
	}()
	return true
}

// CancelState reports the cancellation state of request id.
func (c *Client) CancelState(id string) CancelState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancels[id]
}

func (c *Client) setCancelState(id string, s CancelState) {
	c.mu.Lock()
	c.cancels[id] = s
	c.mu.Unlock()
}
