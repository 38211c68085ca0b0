// Package csg combines closed solids with boolean operations.
//
// Faces keep their exact surfaces. Edges crossing faces of the other
// operand are split, faces are cut along the exact curves their surfaces
// share, and the resulting regions are classified by ray casting and
// reassembled into closed shells. Faces the other operand never reaches
// are reused as they are. Contacts that are not clean crossings fail with
// CsgDegenerate. Failures leave the graph unchanged.
package csg

import (
	"log/slog"
	"math"
	"runtime"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/chazu/kerf/pkg/geom"
	"github.com/chazu/kerf/pkg/kerrors"
	"github.com/chazu/kerf/pkg/kernel"
	"github.com/chazu/kerf/pkg/topo"
)

// Op selects a boolean operation.
type Op int

const (
	OpUnion Op = iota
	OpDifference
	OpIntersection
)

func (o Op) String() string {
	switch o {
	case OpUnion:
		return "union"
	case OpDifference:
		return "difference"
	case OpIntersection:
		return "intersection"
	default:
		return "unknown"
	}
}

// Options tunes Apply.
type Options struct {
	// SampleTolerance is the chord deviation used to sample face
	// boundaries for point-in-face tests. It never limits the accuracy of
	// the result. Zero derives it from the operand bounds.
	SampleTolerance geom.Tolerance
	// Parallelism bounds concurrent per-face work; zero uses GOMAXPROCS.
	Parallelism int
	// Logger receives per-operation statistics. Nil uses kernel.Logger().
	Logger *slog.Logger
}

// Union returns a ∪ b.
func Union(g *topo.Graph, a, b topo.SolidID, opts Options) (topo.SolidID, error) {
	return Apply(g, OpUnion, a, b, opts)
}

// Difference returns a ∖ b.
func Difference(g *topo.Graph, a, b topo.SolidID, opts Options) (topo.SolidID, error) {
	return Apply(g, OpDifference, a, b, opts)
}

// Intersection returns a ∩ b.
func Intersection(g *topo.Graph, a, b topo.SolidID, opts Options) (topo.SolidID, error) {
	return Apply(g, OpIntersection, a, b, opts)
}

// Apply combines solids a and b with op and returns the validated result.
// Faces that coincide or touch within tolerance fail with CsgDegenerate,
// surfaces the kernel cannot intersect exactly fail with Unsupported, and
// a result with no material fails with EmptyResult.
func Apply(g *topo.Graph, op Op, a, b topo.SolidID, opts Options) (topo.SolidID, error) {
	if op < OpUnion || op > OpIntersection {
		return 0, kerrors.New(kerrors.InvalidTopology, "unknown boolean operation %d", int(op))
	}
	bld := newBuilder(g, a, b, opts)
	m := g.Mark()
	out, err := bld.run(op)
	if err != nil {
		g.Rollback(m)
		return 0, err
	}
	return out, nil
}

// builder carries the state of one boolean operation.
type builder struct {
	g           *topo.Graph
	tol         geom.Tolerance
	sampleTol   geom.Tolerance
	parallelism int
	log         *slog.Logger

	solids [2]topo.SolidID
	bounds [2]geom.AABB
	faces  [2][]topo.FaceID
	dom    map[topo.FaceID]*faceDomain
	// active holds the faces of each operand whose boxes meet the other.
	active [2][]topo.FaceID

	crossings map[edgeFace][]*crossing
	split     map[topo.EdgeID][]topo.HalfEdge
	cuts      [2]map[topo.FaceID][]topo.EdgeID
	cutEdges  map[topo.EdgeID]bool

	pairs, ncross, reused int
}

func newBuilder(g *topo.Graph, a, b topo.SolidID, opts Options) *builder {
	bld := &builder{
		g:           g,
		tol:         g.Tolerance(),
		parallelism: opts.Parallelism,
		log:         opts.Logger,
		solids:      [2]topo.SolidID{a, b},
		bounds:      [2]geom.AABB{g.SolidBounds(a), g.SolidBounds(b)},
		dom:         make(map[topo.FaceID]*faceDomain),
		crossings:   make(map[edgeFace][]*crossing),
		split:       make(map[topo.EdgeID][]topo.HalfEdge),
		cuts:        [2]map[topo.FaceID][]topo.EdgeID{make(map[topo.FaceID][]topo.EdgeID), make(map[topo.FaceID][]topo.EdgeID)},
		cutEdges:    make(map[topo.EdgeID]bool),
	}
	if bld.parallelism <= 0 {
		bld.parallelism = runtime.GOMAXPROCS(0)
	}
	if bld.log == nil {
		bld.log = kernel.Logger()
	}
	bld.sampleTol = opts.SampleTolerance
	if bld.sampleTol <= 0 {
		diag := bld.bounds[0].Union(bld.bounds[1]).Diagonal()
		bld.sampleTol = geom.Tolerance(math.Max(diag*1e-4, 10*bld.tol.Float()))
	}
	return bld
}

// wholeShell is an operand shell no face of which is touched by the other
// operand.
type wholeShell struct {
	id   topo.ShellID
	side int
}

func (b *builder) run(op Op) (topo.SolidID, error) {
	if err := b.sampleTol.Validate(); err != nil {
		return 0, err
	}
	if err := b.buildDomains(); err != nil {
		return 0, err
	}
	for s := 0; s < 2; s++ {
		for _, f := range b.faces[s] {
			if b.dom[f].bounds.Overlaps(b.bounds[1-s], b.tol) {
				b.active[s] = append(b.active[s], f)
			}
		}
	}
	if err := b.findCrossings(); err != nil {
		return 0, err
	}
	if err := b.splitEdges(); err != nil {
		return 0, err
	}
	if err := b.trimAll(); err != nil {
		return 0, err
	}

	// Shells with a touched face are split face by face; the others are
	// classified whole.
	type slot struct {
		side int
		face topo.FaceID
		work int
	}
	var whole []wholeShell
	var slots []slot
	var work [][2]int
	for s, solid := range b.solids {
		for _, sh := range b.g.Solid(solid).Shells {
			fs := b.g.Shell(sh).Faces
			if !lo.SomeBy(fs, b.touched) {
				whole = append(whole, wholeShell{id: sh, side: s})
				continue
			}
			for _, f := range fs {
				sl := slot{side: s, face: f, work: -1}
				if b.touched(f) {
					sl.work = len(work)
					work = append(work, [2]int{s, int(f)})
				}
				slots = append(slots, sl)
			}
		}
	}
	split, err := b.splitAll(work)
	if err != nil {
		return 0, err
	}
	var regions [2][]*region
	for _, sl := range slots {
		if sl.work >= 0 {
			regions[sl.side] = append(regions[sl.side], split[sl.work]...)
			continue
		}
		regions[sl.side] = append(regions[sl.side], b.wholeRegion(sl.side, sl.face))
	}

	var keep []kept
	nregions := 0
	for s := 0; s < 2; s++ {
		nregions += len(regions[s])
		groups := b.patches(regions[s])
		samples := make([]geom.Vec3, len(groups))
		against := make([]int, len(groups))
		for i, grp := range groups {
			samples[i], against[i] = representative(grp).sample, 1-s
		}
		in, err := b.classifyAll(samples, against)
		if err != nil {
			return 0, err
		}
		for i, grp := range groups {
			ok, rev := keepRule(op, s, in[i])
			if !ok {
				continue
			}
			for _, r := range grp {
				keep = append(keep, kept{region: r, reverse: rev})
			}
		}
	}

	wholeInside, err := b.classifyShells(whole)
	if err != nil {
		return 0, err
	}
	var result []topo.ShellID
	for i, w := range whole {
		ok, rev := keepRule(op, w.side, wholeInside[i])
		switch {
		case !ok:
		case rev:
			sh, err := b.reverseShell(w.id)
			if err != nil {
				return 0, err
			}
			result = append(result, sh)
		default:
			result = append(result, w.id)
		}
	}
	built, err := b.assemble(keep)
	if err != nil {
		return 0, err
	}
	result = append(result, built...)
	if len(result) == 0 {
		return 0, kerrors.New(kerrors.EmptyResult, "%s of %v and %v is empty", op, b.solids[0], b.solids[1])
	}
	solid, err := b.g.CreateSolid(result...)
	if err != nil {
		return 0, err
	}
	b.log.Debug("csg: boolean done",
		"op", op.String(), "solid", solid,
		"faces", len(b.dom), "pairs", b.pairs, "crossings", b.ncross, "cuts", len(b.cutEdges),
		"regions", nregions, "kept", len(keep), "reused", b.reused, "shells", len(result))
	return solid, nil
}

// buildDomains prepares point-in-face queries for every face of both
// operands.
func (b *builder) buildDomains() error {
	var all []topo.FaceID
	for s, solid := range b.solids {
		b.faces[s] = b.g.SolidFaces(solid)
		all = append(all, b.faces[s]...)
	}
	res := make([]*faceDomain, len(all))
	var eg errgroup.Group
	eg.SetLimit(b.parallelism)
	for i, f := range all {
		eg.Go(func() error {
			d, err := b.newDomain(f)
			res[i] = d
			return err
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}
	for i, f := range all {
		b.dom[f] = res[i]
	}
	return nil
}

// touched reports whether the other operand cuts face f or splits one of
// its edges.
func (b *builder) touched(f topo.FaceID) bool {
	if len(b.cuts[0][f]) > 0 || len(b.cuts[1][f]) > 0 {
		return true
	}
	return lo.SomeBy(b.g.FaceEdges(f), func(e topo.EdgeID) bool {
		_, ok := b.split[e]
		return ok
	})
}

// wholeRegion wraps an untouched face of a touched shell.
func (b *builder) wholeRegion(s int, f topo.FaceID) *region {
	d := b.dom[f]
	r := &region{side: s, face: f, whole: true, sample: d.sample, weight: d.weight}
	for _, c := range b.g.Face(f).Cycles() {
		r.cycles = append(r.cycles, b.g.Cycle(c).HalfEdges)
	}
	return r
}

// keepRule decides whether a region of operand s survives op, and whether
// it must be reversed. inside reports containment in the other operand.
func keepRule(op Op, s int, inside bool) (keep, reverse bool) {
	switch op {
	case OpUnion:
		return !inside, false
	case OpIntersection:
		return inside, false
	default:
		if s == 0 {
			return !inside, false
		}
		return inside, true
	}
}
