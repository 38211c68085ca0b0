// Package engine provides the Lisp evaluation engine for kerf models.
// It wraps zygomys in a sandboxed environment and produces a model
// description from user source code.
package engine

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	zygo "github.com/glycerine/zygomys/zygo"

	"github.com/chazu/kerf/pkg/model"
)

// ErrSuperseded is returned by an evaluation that finished after a newer
// one was started.
var ErrSuperseded = errors.New("evaluation superseded by newer request")

// EvalError represents a non-fatal error encountered during evaluation,
// such as a parse error or a runtime error in user code.
type EvalError struct {
	Line    int
	Col     int
	Message string
}

func (e EvalError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

// EvalWarning represents a non-fatal warning produced during evaluation.
type EvalWarning struct {
	Line    int
	Col     int
	Message string
	NodeID  model.NodeID
}

// EvalResult bundles the full output of an evaluation: the description,
// evaluation and validation errors, and validation warnings.
type EvalResult struct {
	Description *model.Description
	Errors      []EvalError
	Warnings    []EvalWarning
}

// OK reports whether the description can be handed to a kernel.
func (r EvalResult) OK() bool { return r.Description != nil && len(r.Errors) == 0 }

// Engine wraps the zygomys interpreter for model evaluation.
// It is safe for concurrent use; each evaluation runs in a fresh
// sandboxed environment. Only the most recently started evaluation
// delivers a result.
type Engine struct {
	// Timeout bounds one evaluation. Zero means DefaultTimeout.
	Timeout time.Duration

	mu         sync.Mutex
	generation uint64
}

// NewEngine creates a new Engine instance.
func NewEngine() *Engine {
	return &Engine{}
}

// Evaluate is EvaluateContext with a background context.
func (e *Engine) Evaluate(source string, params model.Params) (*model.Description, []EvalError, error) {
	return e.EvaluateContext(context.Background(), source, params)
}

// EvaluateContext takes Lisp source code and produces a new description.
// params are readable from the source with (param "key" default).
//
// Return semantics:
//   - On success: returns description + nil errors + nil error
//   - On parse/eval failure: returns nil description + eval errors + nil error
//   - On fatal failure (timeout, panic, superseded, ctx done): returns nil + nil + error
func (e *Engine) EvaluateContext(ctx context.Context, source string, params model.Params) (*model.Description, []EvalError, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	gen := e.next()

	ch := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- outcome{err: fmt.Errorf("panic during evaluation: %v", r)}
			}
		}()
		d, evalErrs, err := e.evaluate(source, params)
		ch <- outcome{desc: d, errs: evalErrs, err: err}
	}()

	return e.await(ctx, gen, ch)
}

// Run is RunContext with a background context.
func (e *Engine) Run(source string, params model.Params) (EvalResult, error) {
	return e.RunContext(context.Background(), source, params)
}

// RunContext evaluates source and validates the resulting graph.
// Structural and geometric validation errors are reported alongside
// evaluation errors.
func (e *Engine) RunContext(ctx context.Context, source string, params model.Params) (EvalResult, error) {
	d, evalErrs, err := e.EvaluateContext(ctx, source, params)
	if err != nil {
		return EvalResult{}, err
	}
	if len(evalErrs) > 0 {
		return EvalResult{Errors: evalErrs}, nil
	}
	res := EvalResult{Description: d}
	v := model.ValidateAll(d.Graph)
	for _, ve := range v.Errors {
		res.Errors = append(res.Errors, EvalError{Message: ve.Error()})
	}
	for _, w := range v.Warnings {
		res.Warnings = append(res.Warnings, EvalWarning{Message: w.Message, NodeID: w.NodeID})
	}
	return res, nil
}

// evaluate performs the actual zygomys evaluation in a fresh sandbox.
func (e *Engine) evaluate(source string, params model.Params) (*model.Description, []EvalError, error) {
	b := newBuilder(params)

	// Empty source is a valid program that produces an empty graph.
	if strings.TrimSpace(source) == "" {
		return b.description(), nil, nil
	}

	// Sandbox mode prevents user code from accessing the filesystem or syscalls.
	env := zygo.NewZlispSandbox()
	defer env.Stop()
	registerBuiltins(env, b)

	err := env.LoadString(preprocessSource(source))
	if err != nil {
		return nil, parseZygomysError(err), nil
	}

	_, err = env.Run()
	if err != nil {
		return nil, parseZygomysError(err), nil
	}

	return b.description(), nil, nil
}

// linePattern matches the "Error on line N: ..." and "line N: ..." forms
// zygomys uses for parse and runtime errors.
var linePattern = regexp.MustCompile(`(?i)(?:^|error )on line (\d+):\s*(.*)|^line (\d+):\s*(.*)`)

// parseZygomysError converts a zygomys error into EvalError values,
// keeping the line number when the message carries one. Only the first
// line of a multi-line message is kept.
func parseZygomysError(err error) []EvalError {
	msg := strings.TrimSpace(err.Error())
	m := linePattern.FindStringSubmatch(msg)
	if m == nil {
		return []EvalError{{Message: firstLine(msg)}}
	}
	num, text := m[1], m[2]
	if num == "" {
		num, text = m[3], m[4]
	}
	line, _ := strconv.Atoi(num)
	return []EvalError{{Line: line, Message: firstLine(strings.TrimSpace(text))}}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}
