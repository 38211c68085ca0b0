// Package process walks a model description and produces one triangle
// mesh per output shape using a geometry kernel. The processor is
// read-only and never mutates the description.
package process

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/chazu/kerf/pkg/geom"
	"github.com/chazu/kerf/pkg/kerrors"
	"github.com/chazu/kerf/pkg/kernel"
	"github.com/chazu/kerf/pkg/model"
)

// toleranceDivisor relates a derived tessellation tolerance to the
// smallest model extent.
const toleranceDivisor = 1000

// ProcessedShape is one meshed output of a description.
type ProcessedShape struct {
	Name   string       `json:"name"`
	Bounds geom.AABB    `json:"aabb"`
	Mesh   *kernel.Mesh `json:"mesh"`
}

// Processor evaluates descriptions with a fresh kernel per call.
type Processor struct {
	factory kernel.Factory
	cfg     kernel.Config
	log     *slog.Logger
}

// New returns a processor building kernels with factory and cfg. A nil
// logger uses kernel.Logger().
func New(factory kernel.Factory, cfg kernel.Config, log *slog.Logger) *Processor {
	if log == nil {
		log = kernel.Logger()
	}
	return &Processor{factory: factory, cfg: cfg, log: log}
}

// part is one output: a root, or one member of a root group.
type part struct {
	name string
	node *model.Node
}

// Process validates d, builds every root with a new kernel and meshes it.
// Group roots contribute one shape per member. Cancelling ctx stops the
// walk between nodes.
func (p *Processor) Process(ctx context.Context, d *model.Description) ([]ProcessedShape, error) {
	if d == nil || d.Graph == nil {
		return nil, kerrors.New(kerrors.InvalidDescription, "no description")
	}
	g := d.Graph
	if err := model.Check(g); err != nil {
		return nil, err
	}

	log := p.log.With("invocation", uuid.NewString())

	parts := lo.FlatMap(g.Roots, func(id model.NodeID, _ int) []part {
		n := g.Get(id)
		if n.Kind != model.NodeGroup {
			return []part{{name: n.Label(), node: n}}
		}
		return lo.Map(g.Children(n), func(c *model.Node, _ int) part {
			return part{name: n.Label() + "/" + c.Label(), node: c}
		})
	})
	if len(parts) == 0 {
		return nil, nil
	}

	tol, err := p.tolerance(g, parts)
	if err != nil {
		return nil, err
	}

	k, err := p.factory(p.cfg)
	if err != nil {
		return nil, fmt.Errorf("process: creating kernel: %w", err)
	}
	log = log.With("kernel", k.Name())

	w := &walker{ctx: ctx, g: g, k: k, memo: make(map[model.NodeID]kernel.Shape)}
	out := make([]ProcessedShape, 0, len(parts))
	for _, pt := range parts {
		s, err := w.walkNode(pt.node)
		if err != nil {
			return nil, fmt.Errorf("process: error building %s: %w", pt.name, err)
		}
		mesh, err := k.ToMesh(s, tol)
		if err != nil {
			return nil, fmt.Errorf("process: ToMesh failed for %s: %w", pt.name, err)
		}
		mesh.PartName = pt.name
		out = append(out, ProcessedShape{Name: pt.name, Bounds: s.Bounds(), Mesh: mesh})
	}

	log.Debug("process: done",
		"shapes", len(out), "nodes", len(w.memo), "tolerance", tol.Float(),
		"triangles", lo.SumBy(out, func(s ProcessedShape) int { return s.Mesh.TriangleCount() }))
	return out, nil
}

// tolerance returns the configured tessellation tolerance, or derives one
// from the smallest non-zero extent of the parts.
func (p *Processor) tolerance(g *model.Graph, parts []part) (geom.Tolerance, error) {
	if p.cfg.TessellationTolerance > 0 {
		return p.cfg.TessellationTolerance, nil
	}
	var b geom.AABB
	for _, pt := range parts {
		b = b.Union(g.Bounds(pt.node.ID))
	}
	ext := b.MinExtent()
	if ext == 0 {
		return 0, kerrors.Newf(kerrors.InvalidTolerance, "cannot derive a tessellation tolerance from a zero-size model").
			With("parts", len(parts))
	}
	return geom.Tolerance(ext / toleranceDivisor), nil
}

// walker builds kernel shapes for description nodes. Shared nodes are
// built once.
type walker struct {
	ctx  context.Context
	g    *model.Graph
	k    kernel.Kernel
	memo map[model.NodeID]kernel.Shape
}

// walkNode builds n and everything below it.
func (w *walker) walkNode(n *model.Node) (kernel.Shape, error) {
	if s, ok := w.memo[n.ID]; ok {
		return s, nil
	}
	if err := w.ctx.Err(); err != nil {
		return nil, err
	}

	var s kernel.Shape
	var err error
	switch n.Kind {
	case model.NodeSketch:
		s, err = w.handleSketch(n)
	case model.NodeDifference2D:
		s, err = w.fold(n, w.k.Difference2D)
	case model.NodeSweep:
		s, err = w.handleSweep(n)
	case model.NodeTransform:
		s, err = w.handleTransform(n)
	case model.NodeUnion:
		s, err = w.fold(n, w.k.Union)
	case model.NodeDifference:
		s, err = w.fold(n, w.k.Difference)
	case model.NodeIntersection:
		s, err = w.fold(n, w.k.Intersection)
	case model.NodeGroup:
		// Nested groups merge their members.
		s, err = w.fold(n, w.k.Union)
	default:
		return nil, fmt.Errorf("unknown node kind: %v", n.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", n.Kind, n.Label(), err)
	}
	w.memo[n.ID] = s
	return s, nil
}

func (w *walker) handleSketch(n *model.Node) (kernel.Shape, error) {
	sd, ok := n.Data.(model.SketchData)
	if !ok {
		return nil, fmt.Errorf("unexpected data type %T", n.Data)
	}
	return w.k.Sketch(sd)
}

func (w *walker) handleSweep(n *model.Node) (kernel.Shape, error) {
	sd, ok := n.Data.(model.SweepData)
	if !ok {
		return nil, fmt.Errorf("unexpected data type %T", n.Data)
	}
	prof, err := w.walkNode(w.g.Get(n.Children[0]))
	if err != nil {
		return nil, err
	}
	return w.k.Sweep(prof, sd.Path)
}

func (w *walker) handleTransform(n *model.Node) (kernel.Shape, error) {
	td, ok := n.Data.(model.TransformData)
	if !ok {
		return nil, fmt.Errorf("unexpected data type %T", n.Data)
	}
	child, err := w.walkNode(w.g.Get(n.Children[0]))
	if err != nil {
		return nil, err
	}
	return w.k.Transform(child, td.Transform())
}

// fold combines the children of n left to right with op.
func (w *walker) fold(n *model.Node, op func(a, b kernel.Shape) (kernel.Shape, error)) (kernel.Shape, error) {
	var acc kernel.Shape
	for i, c := range w.g.Children(n) {
		s, err := w.walkNode(c)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			acc = s
			continue
		}
		if acc, err = op(acc, s); err != nil {
			return nil, err
		}
	}
	if acc == nil {
		return nil, kerrors.New(kerrors.InvalidDescription, "%s has no operands", n.Kind)
	}
	return acc, nil
}
