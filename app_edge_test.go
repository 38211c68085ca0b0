package main

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/chazu/kerf/pkg/kerrors"
	"github.com/chazu/kerf/pkg/kernel/brep"
)

// ---------------------------------------------------------------------------
// Empty and comment-only sources produce no meshes and no errors.
// ---------------------------------------------------------------------------

func TestE2ENoGeometry(t *testing.T) {
	for _, src := range []string{"", "   \n\t\n", ";; only a comment\n; and another", "(def w 10)"} {
		result := newApp(t, brep.Factory, nil).Evaluate(context.Background(), src)
		if len(result.Errors) != 0 || len(result.Meshes) != 0 || len(result.Warnings) != 0 {
			t.Errorf("%q: %d errors, %d meshes, %d warnings", src, len(result.Errors), len(result.Meshes), len(result.Warnings))
		}
		// JSON should serialize as [] not null.
		if result.Meshes == nil || result.Errors == nil || result.Warnings == nil {
			t.Errorf("%q: result slices should be non-nil", src)
		}
	}
}

// ---------------------------------------------------------------------------
// Source errors carry a message and, where zygomys reports one, a line.
// ---------------------------------------------------------------------------

func TestE2ESyntaxErrorWithLineInfo(t *testing.T) {
	result := newApp(t, brep.Factory, nil).Evaluate(context.Background(), "(+ 1 2)\n(sketch \"test\"")
	if len(result.Errors) == 0 {
		t.Fatal("expected at least one eval error for unmatched parens")
	}
	e := result.Errors[0]
	if e.Message == "" {
		t.Error("syntax error should have a non-empty message")
	}
	if e.Line > 0 {
		t.Logf("extracted line info: line=%d, message=%q", e.Line, e.Message)
	}
}

func TestE2EUndefinedReference(t *testing.T) {
	result := newApp(t, brep.Factory, nil).Evaluate(context.Background(), `(sweep (ref "nonexistent") (vec3 0 0 1))`)
	if len(result.Errors) == 0 {
		t.Fatal("expected an error for an undefined reference")
	}
	if !strings.Contains(result.Errors[0].Message, "nonexistent") {
		t.Errorf("error should name the missing node, got %q", result.Errors[0].Message)
	}
}

// ---------------------------------------------------------------------------
// Kernel failures surface with their kind.
// ---------------------------------------------------------------------------

func TestE2EKernelErrorKinds(t *testing.T) {
	tests := []struct {
		name string
		src  string
		kind kerrors.Kind
	}{
		{"open profile", `(sweep (sketch (chain (line (vec2 0 0) (vec2 1 0)) (line (vec2 1 0) (vec2 1 1)))) (vec3 0 0 1))`, kerrors.InvalidProfile},
		{"self difference", `(def c (sweep (sketch (rect 2 2)) (vec3 0 0 2))) (difference c c)`, kerrors.CsgDegenerate},
		{"zero-size model", `(sketch (rect 0 0))`, kerrors.InvalidTolerance},
		{"in-plane sweep", `(sweep (sketch (rect 2 2)) (vec3 1 0 0))`, kerrors.InvalidSweep},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := newApp(t, brep.Factory, nil).Evaluate(context.Background(), tt.src)
			if len(result.Errors) == 0 {
				t.Fatal("expected an error")
			}
			if got := result.Errors[len(result.Errors)-1].Kind; got != string(tt.kind) {
				t.Errorf("kind = %q, want %q (%v)", got, tt.kind, result.Errors)
			}
			if len(result.Meshes) != 0 {
				t.Errorf("expected no meshes, got %d", len(result.Meshes))
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Validation warnings reach the result.
// ---------------------------------------------------------------------------

func TestE2EProfileRootWarns(t *testing.T) {
	result := newApp(t, brep.Factory, nil).Evaluate(context.Background(), `(sketch "flat" (rect 2 1))`)
	if len(result.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
	if len(result.Meshes) != 1 || len(result.Warnings) == 0 {
		t.Errorf("expected one flat mesh and a warning, got %d meshes, %d warnings", len(result.Meshes), len(result.Warnings))
	}
}

// ---------------------------------------------------------------------------
// Rapid evaluation: no panics, no data races. Run with `go test -race`.
// ---------------------------------------------------------------------------

func TestE2ERapidEvaluation(t *testing.T) {
	app := newApp(t, brep.Factory, nil)
	sources := []string{
		`(sweep (sketch (rect 2 2)) (vec3 0 0 1))`,
		`(sweep (sketch (circle 1)) (vec3 0 0 2))`,
		`(+ 1`,
	}

	var wg sync.WaitGroup
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func(src string) {
			defer wg.Done()
			result := app.Evaluate(context.Background(), src)
			for _, e := range result.Errors {
				if e.Message == "" {
					t.Error("error without a message")
				}
			}
		}(sources[i%len(sources)])
	}
	wg.Wait()

	// After the burst, a lone evaluation succeeds.
	result := app.Evaluate(context.Background(), sources[0])
	if len(result.Errors) != 0 || len(result.Meshes) != 1 {
		t.Errorf("final evaluation: %d errors, %d meshes", len(result.Errors), len(result.Meshes))
	}
}

func TestE2EColorPaletteWrapping(t *testing.T) {
	var b strings.Builder
	b.WriteString(`(group "row"`)
	for i := 0; i < len(colorPalette)+2; i++ {
		fmt.Fprintf(&b, ` (translate (sweep (sketch (rect 1 1)) (vec3 0 0 1)) (vec3 %d 0 0))`, 2*i)
	}
	b.WriteString(`)`)

	result := newApp(t, brep.Factory, nil).Evaluate(context.Background(), b.String())
	if len(result.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
	n := len(colorPalette) + 2
	if len(result.Meshes) != n {
		t.Fatalf("expected %d meshes, got %d", n, len(result.Meshes))
	}
	if result.Meshes[0].Color != result.Meshes[len(colorPalette)].Color {
		t.Error("palette should wrap around")
	}
}
