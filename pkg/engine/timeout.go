package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chazu/kerf/pkg/model"
)

// DefaultTimeout bounds an evaluation when Engine.Timeout is zero.
const DefaultTimeout = 5 * time.Second

// ErrTimeout is returned when an evaluation runs past its timeout.
var ErrTimeout = errors.New("evaluation timed out")

// outcome carries one interpreter run back to the waiting caller.
type outcome struct {
	desc *model.Description
	errs []EvalError
	err  error
}

// next starts a new generation and returns it.
func (e *Engine) next() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.generation++
	return e.generation
}

func (e *Engine) current() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.generation
}

func (e *Engine) timeout() time.Duration {
	if e.Timeout > 0 {
		return e.Timeout
	}
	return DefaultTimeout
}

// await blocks until ch delivers, ctx ends or the timeout fires. A result
// from generation gen is discarded with ErrSuperseded once a newer
// evaluation has started.
//
// An abandoned interpreter goroutine keeps running until its program ends;
// ch is buffered so it never blocks on send.
func (e *Engine) await(ctx context.Context, gen uint64, ch <-chan outcome) (*model.Description, []EvalError, error) {
	limit := e.timeout()
	timer := time.NewTimer(limit)
	defer timer.Stop()

	select {
	case o := <-ch:
		if gen != e.current() {
			return nil, nil, ErrSuperseded
		}
		return o.desc, o.errs, o.err
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	case <-timer.C:
		return nil, nil, fmt.Errorf("%w after %s", ErrTimeout, limit)
	}
}
