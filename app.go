package main

import (
	"context"
	"log"

	"github.com/chazu/kerf/pkg/engine"
	"github.com/chazu/kerf/pkg/geom"
	"github.com/chazu/kerf/pkg/host"
	"github.com/chazu/kerf/pkg/kerrors"
	"github.com/chazu/kerf/pkg/kernel"
	"github.com/chazu/kerf/pkg/model"
	"github.com/chazu/kerf/pkg/process"
)

// colorPalette is a default palette used to assign distinct colors to parts.
var colorPalette = []string{
	"#4A90D9", "#E67E22", "#2ECC71", "#9B59B6",
	"#E74C3C", "#1ABC9C", "#F39C12", "#3498DB",
}

// App connects the description engine to a kernel through a host session.
type App struct {
	session *host.Session
}

// MeshData is the JSON mesh format written by the CLI.
type MeshData struct {
	Vertices []float32      `json:"vertices"`
	Normals  []float32      `json:"normals"`
	Indices  []uint32       `json:"indices"`
	Groups   []kernel.Group `json:"groups,omitempty"`
	PartName string         `json:"partName"`
	Color    string         `json:"color"`
	Min      [3]float64     `json:"aabbMin"`
	Max      [3]float64     `json:"aabbMax"`
}

// EvalErrorData is a JSON-serializable error or warning.
type EvalErrorData struct {
	Line    int    `json:"line"`
	Col     int    `json:"col"`
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message"`
}

// EvalResult is the full result of one evaluation.
type EvalResult struct {
	Meshes   []MeshData      `json:"meshes"`
	Errors   []EvalErrorData `json:"errors"`
	Warnings []EvalErrorData `json:"warnings"`
}

// NewApp creates an App evaluating with factory and cfg.
func NewApp(factory kernel.Factory, cfg kernel.Config, params model.Params) *App {
	proc := process.New(factory, cfg, nil)
	return &App{
		session: host.NewSession(engine.NewEngine(), proc, host.Options{Params: params}),
	}
}

// Close releases the session.
func (a *App) Close() { a.session.Close() }

// Evaluate takes model source and returns mesh data and errors.
func (a *App) Evaluate(ctx context.Context, source string) EvalResult {
	result := EvalResult{
		Meshes:   []MeshData{},
		Errors:   []EvalErrorData{},
		Warnings: []EvalErrorData{},
	}

	res, err := a.session.Evaluate(ctx, source)
	for _, e := range res.Errors {
		result.Errors = append(result.Errors, EvalErrorData{Line: e.Line, Col: e.Col, Message: e.Message})
	}
	for _, w := range res.Warnings {
		result.Warnings = append(result.Warnings, EvalErrorData{Line: w.Line, Col: w.Col, Message: w.Message})
	}
	if err != nil {
		// Fatal (timeout, panic) or kernel failure.
		log.Printf("Evaluate error: %v", err)
		data := EvalErrorData{Message: err.Error()}
		if k := kerrors.KindOf(err); k != kerrors.KindUnknown {
			data.Kind = string(k)
		}
		result.Errors = append(result.Errors, data)
		return result
	}

	for i, s := range res.Shapes {
		result.Meshes = append(result.Meshes, MeshData{
			Vertices: s.Mesh.Vertices,
			Normals:  s.Mesh.Normals,
			Indices:  s.Mesh.Indices,
			Groups:   s.Mesh.Groups,
			PartName: s.Name,
			Color:    colorPalette[i%len(colorPalette)],
			Min:      vecArray(s.Bounds.Min),
			Max:      vecArray(s.Bounds.Max),
		})
	}
	return result
}

func vecArray(v geom.Vec3) [3]float64 { return [3]float64{v.X, v.Y, v.Z} }
