// Package tessellate converts B-rep faces into triangle meshes whose chords
// deviate from the exact geometry by at most a requested tolerance.
package tessellate

import (
	"fmt"
	"log/slog"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/chazu/kerf/pkg/geom"
	"github.com/chazu/kerf/pkg/geometry"
	"github.com/chazu/kerf/pkg/kerrors"
	"github.com/chazu/kerf/pkg/kernel"
	"github.com/chazu/kerf/pkg/topo"
)

// Options controls tessellation.
type Options struct {
	// Tolerance is the maximum chord deviation. It must be positive.
	Tolerance geom.Tolerance
	// MaxDepth bounds curve approximation; zero uses the default.
	MaxDepth int
	// Parallelism bounds the number of faces tessellated at once; zero
	// uses GOMAXPROCS.
	Parallelism int
	// Logger receives triangle counts. Nil uses kernel.Logger().
	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.Parallelism <= 0 {
		o.Parallelism = runtime.GOMAXPROCS(0)
	}
	if o.Logger == nil {
		o.Logger = kernel.Logger()
	}
	return o
}

// Solid tessellates every face of a solid. The mesh has one group per
// shell, named after the solid and shell IDs.
func Solid(g *topo.Graph, id topo.SolidID, opts Options) (*kernel.Mesh, error) {
	if err := opts.Tolerance.Validate(); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()
	out := &kernel.Mesh{}
	for _, sh := range g.Solid(id).Shells {
		m, err := faces(g, g.Shell(sh).Faces, opts)
		if err != nil {
			return nil, fmt.Errorf("tessellate: %v: %w", sh, err)
		}
		out.Append(m, id.String()+"/"+sh.String())
	}
	opts.Logger.Debug("tessellate: solid done",
		"solid", id, "tolerance", opts.Tolerance.Float(),
		"vertices", out.VertexCount(), "triangles", out.TriangleCount())
	return out, nil
}

// Face tessellates a single face.
func Face(g *topo.Graph, id topo.FaceID, opts Options) (*kernel.Mesh, error) {
	if err := opts.Tolerance.Validate(); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()
	m, err := faces(g, []topo.FaceID{id}, opts)
	if err != nil {
		return nil, fmt.Errorf("tessellate: %w", err)
	}
	m.Groups = []kernel.Group{{Name: id.String(), Count: m.TriangleCount()}}
	return m, nil
}

// faces approximates the edges of fs once, then tessellates the faces in
// parallel and concatenates them in order.
func faces(g *topo.Graph, fs []topo.FaceID, opts Options) (*kernel.Mesh, error) {
	edges, err := approximateEdges(g, fs, opts)
	if err != nil {
		return nil, err
	}
	parts := make([]*patch, len(fs))
	var eg errgroup.Group
	eg.SetLimit(opts.Parallelism)
	for i, f := range fs {
		eg.Go(func() error {
			p, err := tessellateFace(g, f, edges, opts)
			if err != nil {
				return err
			}
			parts[i] = p
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	out := &kernel.Mesh{}
	for _, p := range parts {
		p.appendTo(out)
	}
	return out, nil
}

// approximateEdges samples every edge of fs in its forward direction. Both
// faces of an edge read the same samples, so the mesh has no cracks. On a
// curved face no chord may turn further around the surface than
// turnStep allows, so edges are bisected until every adjacent face is
// satisfied.
func approximateEdges(g *topo.Graph, fs []topo.FaceID, opts Options) (map[topo.EdgeID][]geom.Vec3, error) {
	out := make(map[topo.EdgeID][]geom.Vec3)
	uses := g.EdgeUses(fs)
	for _, f := range fs {
		for _, id := range g.FaceEdges(f) {
			if _, ok := out[id]; ok {
				continue
			}
			e := g.Edge(id)
			pl, err := geometry.ApproximateCurve(e.Curve, e.Range[0], e.Range[1], opts.Tolerance, opts.MaxDepth)
			if err != nil {
				return nil, fmt.Errorf("edge %v: %w", id, err)
			}
			for _, use := range uses[id] {
				s := g.Face(use.Face).Surface
				if !s.Periodic() {
					continue
				}
				if pl, err = fitTurns(e.Curve, pl, s, turnStep(s.Curve.Radius(), opts.Tolerance.Float()), opts.MaxDepth); err != nil {
					return nil, fmt.Errorf("edge %v: %w", id, err)
				}
			}
			pts := pl.Points
			pts[0], pts[len(pts)-1] = g.Point(e.Start), g.Point(e.End)
			out[id] = pts
		}
	}
	return out, nil
}

// fitTurns bisects the chords of pl whose ends lie more than step apart
// around periodic surface s.
func fitTurns(c geometry.Curve, pl geometry.Polyline, s geometry.Surface, step float64, maxDepth int) (geometry.Polyline, error) {
	if maxDepth <= 0 {
		maxDepth = geometry.DefaultMaxDepth
	}
	out := geometry.Polyline{Params: pl.Params[:1:1], Points: pl.Points[:1:1]}
	var fit func(t0, t1 float64, p0, p1 geom.Vec3, depth int) error
	fit = func(t0, t1 float64, p0, p1 geom.Vec3, depth int) error {
		u0, _ := s.Project(p0)
		u1, _ := s.Project(p1)
		if math.Abs(geometry.NearestTurn(u1-u0, 0)) <= step {
			out.Params = append(out.Params, t1)
			out.Points = append(out.Points, p1)
			return nil
		}
		if depth >= maxDepth {
			return kerrors.Newf(kerrors.ToleranceExceeded, "chord still turns more than %g after %d bisections", step, depth)
		}
		tm := (t0 + t1) / 2
		pm := c.PointAt(tm)
		if err := fit(t0, tm, p0, pm, depth+1); err != nil {
			return err
		}
		return fit(tm, t1, pm, p1, depth+1)
	}
	for i := 0; i+1 < len(pl.Params); i++ {
		if err := fit(pl.Params[i], pl.Params[i+1], pl.Points[i], pl.Points[i+1], 0); err != nil {
			return geometry.Polyline{}, err
		}
	}
	return out, nil
}

func halfEdgePoints(edges map[topo.EdgeID][]geom.Vec3, h topo.HalfEdge) []geom.Vec3 {
	pts := edges[h.Edge]
	if !h.Reversed {
		return pts
	}
	rev := make([]geom.Vec3, len(pts))
	for i, p := range pts {
		rev[len(pts)-1-i] = p
	}
	return rev
}

func cyclePoints(g *topo.Graph, edges map[topo.EdgeID][]geom.Vec3, c topo.CycleID) []geom.Vec3 {
	var out []geom.Vec3
	for _, h := range g.Cycle(c).HalfEdges {
		pts := halfEdgePoints(edges, h)
		out = append(out, pts[:len(pts)-1]...)
	}
	return out
}

// patch is the triangulation of one face.
type patch struct {
	points  []geom.Vec3
	normals []geom.Vec3
	tris    [][3]int
}

func (p *patch) appendTo(m *kernel.Mesh) {
	base := uint32(m.VertexCount())
	for i, q := range p.points {
		n := p.normals[i]
		m.Vertices = append(m.Vertices, float32(q.X), float32(q.Y), float32(q.Z))
		m.Normals = append(m.Normals, float32(n.X), float32(n.Y), float32(n.Z))
	}
	for _, t := range p.tris {
		m.Indices = append(m.Indices, base+uint32(t[0]), base+uint32(t[1]), base+uint32(t[2]))
	}
}

func tessellateFace(g *topo.Graph, id topo.FaceID, edges map[topo.EdgeID][]geom.Vec3, opts Options) (*patch, error) {
	face := g.Face(id)
	if origin, x, y, n, ok := face.Surface.Frame(); ok {
		return planarPatch(g, face, edges, origin, x, y, n, id)
	}
	switch {
	case face.Surface.Periodic():
		return curvedPatch(g, face, edges, id, opts.Tolerance.Float())
	default:
		return nil, kerrors.Newf(kerrors.InvalidTopology, "cannot tessellate %v surface", face.Surface.Kind).With("face", id)
	}
}

// planarPatch ear-clips the face's cycles in plane coordinates.
func planarPatch(g *topo.Graph, face topo.Face, edges map[topo.EdgeID][]geom.Vec3, origin, x, y, n geom.Vec3, id topo.FaceID) (*patch, error) {
	to2 := func(p geom.Vec3) geom.Vec2 {
		d := p.Sub(origin)
		return geom.Vec2{X: d.Dot(x), Y: d.Dot(y)}
	}
	p := &patch{}
	var rings [][]geom.Vec2
	for _, c := range face.Cycles() {
		pts := cyclePoints(g, edges, c)
		ring := make([]geom.Vec2, len(pts))
		for i, q := range pts {
			ring[i] = to2(q)
		}
		p.points = append(p.points, pts...)
		rings = append(rings, ring)
	}
	tris, err := geom.Triangulate(rings[0], rings[1:]...)
	if err != nil {
		return nil, kerrors.Wrap(err, kerrors.InvalidTopology, "triangulate face %v", id)
	}
	p.tris = tris
	p.normals = make([]geom.Vec3, len(p.points))
	for i := range p.normals {
		p.normals[i] = n
	}
	return p, nil
}
