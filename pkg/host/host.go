// Package host runs model recomputation for an editor or CLI. A Session
// evaluates source into meshes, coalesces rapid submissions and drops
// results that a newer submission has superseded.
package host

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/google/uuid"

	"github.com/chazu/kerf/pkg/engine"
	"github.com/chazu/kerf/pkg/kernel"
	"github.com/chazu/kerf/pkg/model"
	"github.com/chazu/kerf/pkg/process"
)

// DefaultDelay is the quiet period Submit waits for before recomputing.
const DefaultDelay = 150 * time.Millisecond

// Result is the outcome of one recomputation.
type Result struct {
	ID         string                   `json:"id"`
	Generation uint64                   `json:"generation"`
	Shapes     []process.ProcessedShape `json:"shapes"`
	Errors     []engine.EvalError       `json:"errors"`
	Warnings   []engine.EvalWarning     `json:"warnings"`
}

// OK reports whether the source evaluated without errors.
func (r Result) OK() bool { return len(r.Errors) == 0 }

// Options configures a Session.
type Options struct {
	// Delay is the debounce period for Submit. Zero uses DefaultDelay.
	Delay time.Duration
	// Params are passed to every evaluation.
	Params model.Params
	// OnResult receives the results of Submit. Superseded results are
	// never delivered.
	OnResult func(Result, error)
	// Logger defaults to kernel.Logger().
	Logger *slog.Logger
}

// Session owns the evaluation state of one model.
type Session struct {
	eng      *engine.Engine
	proc     *process.Processor
	params   model.Params
	onResult func(Result, error)
	log      *slog.Logger

	debounced func(func())

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
	closed bool
}

// NewSession returns a session evaluating with eng and proc.
func NewSession(eng *engine.Engine, proc *process.Processor, opts Options) *Session {
	if opts.Delay <= 0 {
		opts.Delay = DefaultDelay
	}
	if opts.Logger == nil {
		opts.Logger = kernel.Logger()
	}
	return &Session{
		eng:       eng,
		proc:      proc,
		params:    opts.Params,
		onResult:  opts.OnResult,
		log:       opts.Logger,
		debounced: debounce.New(opts.Delay),
	}
}

// SetParams replaces the parameters used by later evaluations.
func (s *Session) SetParams(p model.Params) {
	s.mu.Lock()
	s.params = p
	s.mu.Unlock()
}

// Evaluate recomputes source now. Starting an evaluation cancels the one
// in flight; the older call then returns engine.ErrSuperseded.
func (s *Session) Evaluate(ctx context.Context, source string) (Result, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Result{}, errors.New("host: session closed")
	}
	s.gen++
	gen := s.gen
	if s.cancel != nil {
		s.cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	params := s.params
	s.mu.Unlock()
	defer cancel()

	res := Result{ID: uuid.NewString(), Generation: gen}
	log := s.log.With("id", res.ID, "generation", gen)

	start := time.Now()
	er, err := s.eng.RunContext(ctx, source, params)
	if s.stale(gen) {
		return res, engine.ErrSuperseded
	}
	if err != nil {
		return res, err
	}
	res.Errors, res.Warnings = er.Errors, er.Warnings
	if !er.OK() {
		log.Debug("host: evaluation failed", "errors", len(res.Errors))
		return res, nil
	}

	shapes, err := s.proc.Process(ctx, er.Description)
	if s.stale(gen) {
		return res, engine.ErrSuperseded
	}
	if err != nil {
		return res, err
	}
	res.Shapes = shapes
	log.Debug("host: recomputed", "shapes", len(shapes), "elapsed", time.Since(start))
	return res, nil
}

// Submit schedules source for evaluation once submissions pause for the
// debounce delay. Only the last of a burst is evaluated.
func (s *Session) Submit(source string) {
	s.debounced(func() {
		res, err := s.Evaluate(context.Background(), source)
		if errors.Is(err, engine.ErrSuperseded) || s.isClosed() {
			s.log.Debug("host: dropping superseded result", "generation", res.Generation)
			return
		}
		if s.onResult != nil {
			s.onResult(res, err)
		}
	})
}

// Close cancels the evaluation in flight and stops result delivery.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.gen++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *Session) stale(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return gen != s.gen
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
