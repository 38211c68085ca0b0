package host

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/chazu/kerf/pkg/engine"
	"github.com/chazu/kerf/pkg/kernel"
	"github.com/chazu/kerf/pkg/kernel/brep"
	"github.com/chazu/kerf/pkg/model"
	"github.com/chazu/kerf/pkg/process"
)

const box = `(sweep "box" (sketch (rect (param "w" 4) 2)) (vec3 0 0 1))`

func newSession(opts Options) *Session {
	return NewSession(engine.NewEngine(), process.New(brep.Factory, kernel.DefaultConfig(), nil), opts)
}

func TestEvaluate(t *testing.T) {
	s := newSession(Options{})
	defer s.Close()

	res, err := s.Evaluate(context.Background(), box)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !res.OK() || len(res.Shapes) != 1 {
		t.Fatalf("result = %d shapes, errors %v", len(res.Shapes), res.Errors)
	}
	if res.ID == "" || res.Generation != 1 {
		t.Errorf("id = %q, generation = %d", res.ID, res.Generation)
	}
	if x := res.Shapes[0].Bounds.Size().X; math.Abs(x-4) > 1e-9 {
		t.Errorf("width = %v, want 4", x)
	}

	s.SetParams(model.Params{"w": "6"})
	res, err = s.Evaluate(context.Background(), box)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if x := res.Shapes[0].Bounds.Size().X; math.Abs(x-6) > 1e-9 {
		t.Errorf("width after SetParams = %v, want 6", x)
	}
	if res.Generation != 2 {
		t.Errorf("generation = %d, want 2", res.Generation)
	}
}

func TestEvaluateReportsSourceErrors(t *testing.T) {
	s := newSession(Options{})
	defer s.Close()

	res, err := s.Evaluate(context.Background(), "(+ 1")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if res.OK() || len(res.Shapes) != 0 {
		t.Errorf("expected eval errors and no shapes, got %+v", res)
	}
}

func TestStaleGeneration(t *testing.T) {
	s := newSession(Options{})
	defer s.Close()

	if _, err := s.Evaluate(context.Background(), box); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if s.stale(1) {
		t.Error("latest generation reported stale")
	}
	s.mu.Lock()
	s.gen++
	s.mu.Unlock()
	if !s.stale(1) {
		t.Error("older generation not reported stale")
	}
}

func TestSubmitCoalesces(t *testing.T) {
	var mu sync.Mutex
	var results []Result
	done := make(chan struct{}, 8)

	s := newSession(Options{
		Delay: 20 * time.Millisecond,
		OnResult: func(r Result, err error) {
			if err != nil {
				t.Errorf("OnResult error: %v", err)
			}
			mu.Lock()
			results = append(results, r)
			mu.Unlock()
			done <- struct{}{}
		},
	})
	defer s.Close()

	for i := 0; i < 5; i++ {
		s.Submit(box)
	}

	select {
	case <-done:
	case <-time.After(resultWait):
		t.Fatal("no result delivered")
	}
	// Give a second, unexpected delivery a chance to arrive.
	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if len(results[0].Shapes) != 1 {
		t.Errorf("result has %d shapes, want 1", len(results[0].Shapes))
	}
}

func TestClosedSession(t *testing.T) {
	delivered := make(chan struct{}, 1)
	s := newSession(Options{
		Delay:    10 * time.Millisecond,
		OnResult: func(Result, error) { delivered <- struct{}{} },
	})
	s.Close()

	if _, err := s.Evaluate(context.Background(), box); err == nil {
		t.Error("expected an error from a closed session")
	}
	s.Submit(box)
	select {
	case <-delivered:
		t.Error("closed session delivered a result")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestCancelledContext(t *testing.T) {
	s := newSession(Options{})
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Evaluate(ctx, box)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

// resultWait bounds waits for debounced results.
var resultWait = engine.DefaultTimeout + 2*time.Second
