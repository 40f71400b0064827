package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chazu/mayhem/pkg/geometry"
)

// EvalTimeout is the default hard limit for a single evaluation.
const EvalTimeout = 5 * time.Second

// ErrTimeout is returned when a script runs past its time limit.
var ErrTimeout = errors.New("evaluation timed out")

// evalResult carries an evaluation's outcome back to the caller.
type evalResult struct {
	design *geometry.Design
	errors []EvalError
	err    error
}

// await returns the result sent on ch, or the reason ctx ended first: a
// timeout wrapping ErrTimeout, or the caller's own cancellation.
//
// The interpreter cannot be interrupted. An abandoned evaluation runs to
// completion in the background and its result is dropped, so ch must be
// buffered.
func await(ctx context.Context, ch <-chan evalResult, timeout time.Duration) (*geometry.Design, []EvalError, error) {
	ctx, cancel := context.WithTimeoutCause(ctx, timeout, fmt.Errorf("%w after %s", ErrTimeout, timeout))
	defer cancel()

	select {
	case res := <-ch:
		return res.design, res.errors, res.err
	case <-ctx.Done():
		return nil, nil, context.Cause(ctx)
	}
}
