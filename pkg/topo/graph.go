package topo

import (
	"fmt"
	"log/slog"

	"github.com/dhconnelly/rtreego"

	"github.com/chazu/kerf/pkg/geom"
	"github.com/chazu/kerf/pkg/geometry"
	"github.com/chazu/kerf/pkg/kerrors"
	"github.com/chazu/kerf/pkg/kernel"
)

// R-tree branching factors for the vertex index.
const (
	indexMinChildren = 25
	indexMaxChildren = 50
)

// Graph is the arena owning every entity of one kernel invocation.
type Graph struct {
	tol geom.Tolerance
	log *slog.Logger

	vertices []Vertex
	edges    []Edge
	cycles   []Cycle
	faces    []Face
	shells   []Shell
	solids   []Solid

	index   *rtreego.Rtree
	entries []*vertexEntry
	lines   map[[2]VertexID]EdgeID

	merges int
}

// vertexEntry is the R-tree record of one vertex.
type vertexEntry struct {
	id   VertexID
	rect rtreego.Rect
}

func (e *vertexEntry) Bounds() rtreego.Rect { return e.rect }

// New creates an empty graph whose vertices are deduplicated at tol.
func New(tol geom.Tolerance) (*Graph, error) {
	if err := tol.Validate(); err != nil {
		return nil, fmt.Errorf("topo: %w", err)
	}
	return &Graph{
		tol:   tol,
		log:   kernel.Logger(),
		index: rtreego.NewTree(3, indexMinChildren, indexMaxChildren),
		lines: make(map[[2]VertexID]EdgeID),
	}, nil
}

// MustNew is like New but panics on an invalid tolerance.
func MustNew(tol geom.Tolerance) *Graph {
	g, err := New(tol)
	if err != nil {
		panic(err)
	}
	return g
}

// Tolerance returns the graph's vertex merge tolerance.
func (g *Graph) Tolerance() geom.Tolerance { return g.tol }

// Counts returns the number of entities of each kind.
func (g *Graph) Counts() Counts {
	return Counts{
		Vertices: len(g.vertices),
		Edges:    len(g.edges),
		Cycles:   len(g.cycles),
		Faces:    len(g.faces),
		Shells:   len(g.shells),
		Solids:   len(g.solids),
	}
}

// Merges returns how many CreateVertex calls resolved to an existing
// vertex.
func (g *Graph) Merges() int { return g.merges }

func (g *Graph) Vertex(id VertexID) Vertex { return g.vertices[id] }
func (g *Graph) Edge(id EdgeID) Edge       { return g.edges[id] }
func (g *Graph) Cycle(id CycleID) Cycle    { return g.cycles[id] }
func (g *Graph) Face(id FaceID) Face       { return g.faces[id] }
func (g *Graph) Shell(id ShellID) Shell    { return g.shells[id] }
func (g *Graph) Solid(id SolidID) Solid    { return g.solids[id] }

// Point is shorthand for Vertex(id).Point.
func (g *Graph) Point(id VertexID) geom.Vec3 { return g.vertices[id].Point }

// ---------------------------------------------------------------------------
// Rollback
// ---------------------------------------------------------------------------

// Mark is a snapshot of the arena sizes.
type Mark Counts

// Mark returns the current arena sizes for a later Rollback.
func (g *Graph) Mark() Mark { return Mark(g.Counts()) }

// Rollback discards every entity created after m. Operations use it so a
// failed construction leaves no partial geometry behind.
func (g *Graph) Rollback(m Mark) {
	for i := len(g.vertices) - 1; i >= m.Vertices; i-- {
		g.index.Delete(g.entries[i])
	}
	g.vertices = g.vertices[:m.Vertices]
	g.entries = g.entries[:m.Vertices]
	for key, id := range g.lines {
		if int(id) >= m.Edges {
			delete(g.lines, key)
		}
	}
	g.edges = g.edges[:m.Edges]
	g.cycles = g.cycles[:m.Cycles]
	g.faces = g.faces[:m.Faces]
	g.shells = g.shells[:m.Shells]
	g.solids = g.solids[:m.Solids]
}

// ---------------------------------------------------------------------------
// Vertices
// ---------------------------------------------------------------------------

// CreateVertex returns the vertex for p. If existing vertices lie within
// tolerance of p the nearest is reused, and among equally near ones the
// first created wins. Merging is not transitive: p is compared against
// canonical points only.
func (g *Graph) CreateVertex(p geom.Vec3) VertexID {
	if id, ok := g.FindVertex(p); ok {
		g.merges++
		return id
	}
	id := VertexID(len(g.vertices))
	g.vertices = append(g.vertices, Vertex{Point: p, Bucket: g.tol.Cell(p)})
	e := &vertexEntry{id: id, rect: geom.AABBFromPoints(p).Rect(g.tol.Float())}
	g.entries = append(g.entries, e)
	g.index.Insert(e)
	return id
}

// FindVertex returns the existing vertex CreateVertex(p) would reuse.
func (g *Graph) FindVertex(p geom.Vec3) (VertexID, bool) {
	query := geom.AABBFromPoints(p).Rect(g.tol.Float())
	best, bestDist := VertexID(-1), 0.0
	for _, s := range g.index.SearchIntersect(query) {
		e := s.(*vertexEntry)
		d := g.vertices[e.id].Point.Dist(p)
		if d > g.tol.Float() {
			continue
		}
		if best < 0 || d < bestDist || (d == bestDist && e.id < best) {
			best, bestDist = e.id, d
		}
	}
	return best, best >= 0
}

// ---------------------------------------------------------------------------
// Edges
// ---------------------------------------------------------------------------

// endpointSlack is how far, in tolerances, a curve end may sit from its
// vertex. A vertex can be up to one tolerance from the point it was
// requested for.
const endpointSlack = 2

// CreateEdge creates the edge of curve over [t0, t1] from v0 to v1.
// v0 == v1 is allowed only for a full period of a periodic curve.
func (g *Graph) CreateEdge(curve geometry.Curve, v0, v1 VertexID, t0, t1 float64) (EdgeID, error) {
	if err := g.checkVertex(v0); err != nil {
		return 0, err
	}
	if err := g.checkVertex(v1); err != nil {
		return 0, err
	}
	if !(t0 < t1) {
		return 0, kerrors.New(kerrors.InvalidTopology, "edge range [%g, %g] is empty", t0, t1)
	}
	full := curve.IsFullPeriod(t0, t1)
	switch {
	case full && v0 != v1:
		return 0, kerrors.New(kerrors.InvalidTopology, "closed curve edge needs a single vertex, got %v and %v", v0, v1)
	case !full && v0 == v1:
		return 0, kerrors.New(kerrors.InvalidTopology, "open edge %v..%v starts and ends at the same vertex", v0, v1)
	}
	if l := curve.Length(t0, t1); l <= g.tol.Float() {
		return 0, kerrors.New(kerrors.InvalidTopology, "edge length %g is below tolerance", l)
	}
	slack := endpointSlack * g.tol.Float()
	if d := curve.PointAt(t0).Dist(g.Point(v0)); d > slack {
		return 0, kerrors.Newf(kerrors.InvalidTopology, "edge start is %g from its vertex", d).With("vertex", v0)
	}
	if d := curve.PointAt(t1).Dist(g.Point(v1)); d > slack {
		return 0, kerrors.Newf(kerrors.InvalidTopology, "edge end is %g from its vertex", d).With("vertex", v1)
	}
	id := EdgeID(len(g.edges))
	g.edges = append(g.edges, Edge{Curve: curve, Start: v0, End: v1, Range: [2]float64{t0, t1}})
	return id, nil
}

// LineEdge returns a half-edge running straight from v0 to v1, reusing the
// line edge between the two vertices if one exists.
func (g *Graph) LineEdge(v0, v1 VertexID) (HalfEdge, error) {
	key, reversed := [2]VertexID{v0, v1}, false
	if v1 < v0 {
		key, reversed = [2]VertexID{v1, v0}, true
	}
	if id, ok := g.lines[key]; ok {
		return HalfEdge{Edge: id, Reversed: reversed}, nil
	}
	a, b := g.Point(key[0]), g.Point(key[1])
	id, err := g.CreateEdge(geometry.LineThrough(a, b), key[0], key[1], 0, 1)
	if err != nil {
		return HalfEdge{}, err
	}
	g.lines[key] = id
	return HalfEdge{Edge: id, Reversed: reversed}, nil
}

// Start returns the vertex a half-edge leaves from.
func (g *Graph) Start(h HalfEdge) VertexID {
	e := g.edges[h.Edge]
	if h.Reversed {
		return e.End
	}
	return e.Start
}

// End returns the vertex a half-edge arrives at.
func (g *Graph) End(h HalfEdge) VertexID {
	e := g.edges[h.Edge]
	if h.Reversed {
		return e.Start
	}
	return e.End
}

// OrientedCurve returns the half-edge's curve parameterised in traversal
// direction together with its range.
func (g *Graph) OrientedCurve(h HalfEdge) (geometry.Curve, float64, float64) {
	e := g.edges[h.Edge]
	if h.Reversed {
		return e.Curve.Reverse(), -e.Range[1], -e.Range[0]
	}
	return e.Curve, e.Range[0], e.Range[1]
}

// ---------------------------------------------------------------------------
// Cycles
// ---------------------------------------------------------------------------

// CreateCycle creates a closed cycle. Consecutive half-edges must meet and
// the last must return to the first; a closed-curve edge must be alone.
func (g *Graph) CreateCycle(hes []HalfEdge) (CycleID, error) {
	if len(hes) == 0 {
		return 0, kerrors.New(kerrors.InvalidTopology, "cycle has no edges")
	}
	seen := make(map[EdgeID]bool, len(hes))
	for i, h := range hes {
		if h.Edge < 0 || int(h.Edge) >= len(g.edges) {
			return 0, kerrors.New(kerrors.InvalidTopology, "cycle references unknown edge %v", h.Edge)
		}
		if seen[h.Edge] {
			return 0, kerrors.Newf(kerrors.InvalidTopology, "cycle uses edge twice").With("edge", h.Edge)
		}
		seen[h.Edge] = true
		if g.edges[h.Edge].Closed() && len(hes) != 1 {
			return 0, kerrors.Newf(kerrors.InvalidTopology, "closed edge must form a cycle on its own").With("edge", h.Edge)
		}
		next := hes[(i+1)%len(hes)]
		if g.End(h) != g.Start(next) {
			return 0, kerrors.Newf(kerrors.InvalidTopology, "cycle is open: %v ends at %v, %v starts at %v",
				h, g.End(h), next, g.Start(next)).With("position", i)
		}
	}
	id := CycleID(len(g.cycles))
	g.cycles = append(g.cycles, Cycle{HalfEdges: append([]HalfEdge(nil), hes...)})
	return id, nil
}

// ---------------------------------------------------------------------------
// Faces, shells, solids
// ---------------------------------------------------------------------------

// CreateFace creates a face on surface bounded by exterior and interiors.
// Every cycle must lie on the surface; on surfaces where the boundary can be
// unwrapped into the parameter plane, cycles must not self-intersect, the
// exterior must wind counter-clockwise around a non-zero area and holes
// must wind clockwise inside it.
func (g *Graph) CreateFace(surface geometry.Surface, exterior CycleID, interiors ...CycleID) (FaceID, error) {
	f := Face{Surface: surface, Exterior: exterior, Interiors: append([]CycleID(nil), interiors...)}
	for _, c := range f.Cycles() {
		if c < 0 || int(c) >= len(g.cycles) {
			return 0, kerrors.New(kerrors.InvalidTopology, "face references unknown cycle %v", c)
		}
	}
	if err := g.checkFace(f); err != nil {
		return 0, err
	}
	id := FaceID(len(g.faces))
	g.faces = append(g.faces, f)
	return id, nil
}

// CreateShell creates a shell. A closed shell is validated for manifoldness.
func (g *Graph) CreateShell(faces []FaceID, closed bool) (ShellID, error) {
	if len(faces) == 0 {
		return 0, kerrors.New(kerrors.InvalidTopology, "shell has no faces")
	}
	for _, f := range faces {
		if f < 0 || int(f) >= len(g.faces) {
			return 0, kerrors.New(kerrors.InvalidTopology, "shell references unknown face %v", f)
		}
	}
	s := Shell{Faces: append([]FaceID(nil), faces...), Closed: closed}
	if closed {
		if err := g.validateShell(s); err != nil {
			return 0, err
		}
	}
	id := ShellID(len(g.shells))
	g.shells = append(g.shells, s)
	return id, nil
}

// CreateSolid creates a solid from closed shells that share no edges.
func (g *Graph) CreateSolid(shells ...ShellID) (SolidID, error) {
	if len(shells) == 0 {
		return 0, kerrors.New(kerrors.InvalidTopology, "solid has no shells")
	}
	owner := make(map[EdgeID]ShellID)
	for _, sh := range shells {
		if sh < 0 || int(sh) >= len(g.shells) {
			return 0, kerrors.New(kerrors.InvalidTopology, "solid references unknown shell %v", sh)
		}
		if !g.shells[sh].Closed {
			return 0, kerrors.Newf(kerrors.NonManifoldResult, "solid shell is not closed").With("shell", sh)
		}
		for _, f := range g.shells[sh].Faces {
			for _, e := range g.FaceEdges(f) {
				if other, ok := owner[e]; ok && other != sh {
					return 0, kerrors.Newf(kerrors.InvalidTopology, "shells %v and %v share an edge", other, sh).With("edge", e)
				}
				owner[e] = sh
			}
		}
	}
	id := SolidID(len(g.solids))
	g.solids = append(g.solids, Solid{Shells: append([]ShellID(nil), shells...)})
	g.log.Debug("topo: solid created", "solid", id, "shells", len(shells), "vertices", len(g.vertices), "merges", g.merges)
	return id, nil
}

func (g *Graph) checkVertex(v VertexID) error {
	if v < 0 || int(v) >= len(g.vertices) {
		return kerrors.New(kerrors.InvalidTopology, "unknown vertex %v", v)
	}
	return nil
}
