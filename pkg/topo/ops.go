package topo

import (
	"math"

	"github.com/samber/lo"

	"github.com/chazu/kerf/pkg/geom"
	"github.com/chazu/kerf/pkg/geometry"
	"github.com/chazu/kerf/pkg/kerrors"
)

// ReverseFace creates the face with the opposite orientation: reversed
// surface and every cycle traversed backwards. Edges and vertices are
// shared with the original.
func (g *Graph) ReverseFace(id FaceID) (FaceID, error) {
	f := g.faces[id]
	ext, err := g.reverseCycle(f.Exterior)
	if err != nil {
		return 0, err
	}
	holes := make([]CycleID, len(f.Interiors))
	for i, c := range f.Interiors {
		if holes[i], err = g.reverseCycle(c); err != nil {
			return 0, err
		}
	}
	return g.CreateFace(f.Surface.Reverse(), ext, holes...)
}

func (g *Graph) reverseCycle(id CycleID) (CycleID, error) {
	src := g.cycles[id].HalfEdges
	hes := make([]HalfEdge, len(src))
	for i, h := range src {
		hes[len(src)-1-i] = h.Flip()
	}
	return g.CreateCycle(hes)
}

// TransformSolid creates a copy of a solid with tf applied to all of its
// geometry. Orientation-reversing transforms are rejected.
func (g *Graph) TransformSolid(id SolidID, tf geom.Transform) (SolidID, error) {
	if tf.Flips() {
		return 0, kerrors.New(kerrors.InvalidTopology, "mirroring transforms are not supported")
	}
	m := g.Mark()
	out, err := g.transformSolid(id, tf)
	if err != nil {
		g.Rollback(m)
		return 0, err
	}
	return out, nil
}

func (g *Graph) transformSolid(id SolidID, tf geom.Transform) (SolidID, error) {
	verts := make(map[VertexID]VertexID)
	edges := make(map[EdgeID]EdgeID)
	vertex := func(v VertexID) VertexID {
		if nv, ok := verts[v]; ok {
			return nv
		}
		nv := g.CreateVertex(tf.Point(g.Point(v)))
		verts[v] = nv
		return nv
	}
	edge := func(e EdgeID) (EdgeID, error) {
		if ne, ok := edges[e]; ok {
			return ne, nil
		}
		src := g.edges[e]
		ne, err := g.CreateEdge(src.Curve.Transform(tf), vertex(src.Start), vertex(src.End), src.Range[0], src.Range[1])
		if err != nil {
			return 0, err
		}
		edges[e] = ne
		return ne, nil
	}
	cycle := func(c CycleID) (CycleID, error) {
		src := g.cycles[c].HalfEdges
		hes := make([]HalfEdge, len(src))
		for i, h := range src {
			ne, err := edge(h.Edge)
			if err != nil {
				return 0, err
			}
			hes[i] = HalfEdge{Edge: ne, Reversed: h.Reversed}
		}
		return g.CreateCycle(hes)
	}

	var shells []ShellID
	for _, sh := range g.solids[id].Shells {
		var faces []FaceID
		for _, fid := range g.shells[sh].Faces {
			f := g.faces[fid]
			ext, err := cycle(f.Exterior)
			if err != nil {
				return 0, err
			}
			holes := make([]CycleID, len(f.Interiors))
			for i, c := range f.Interiors {
				if holes[i], err = cycle(c); err != nil {
					return 0, err
				}
			}
			nf, err := g.CreateFace(f.Surface.Transform(tf), ext, holes...)
			if err != nil {
				return 0, err
			}
			faces = append(faces, nf)
		}
		ns, err := g.CreateShell(faces, true)
		if err != nil {
			return 0, err
		}
		shells = append(shells, ns)
	}
	return g.CreateSolid(shells...)
}

// ---------------------------------------------------------------------------
// Iteration
// ---------------------------------------------------------------------------

// SolidFaces returns every face of a solid in shell order.
func (g *Graph) SolidFaces(id SolidID) []FaceID {
	return lo.FlatMap(g.solids[id].Shells, func(sh ShellID, _ int) []FaceID {
		return g.shells[sh].Faces
	})
}

// FaceEdges returns the distinct edges bounding a face in cycle order.
func (g *Graph) FaceEdges(id FaceID) []EdgeID {
	var out []EdgeID
	for _, c := range g.faces[id].Cycles() {
		for _, h := range g.cycles[c].HalfEdges {
			out = append(out, h.Edge)
		}
	}
	return lo.Uniq(out)
}

// FaceVertices returns the distinct vertices of a face in cycle order.
func (g *Graph) FaceVertices(id FaceID) []VertexID {
	var out []VertexID
	for _, c := range g.faces[id].Cycles() {
		for _, h := range g.cycles[c].HalfEdges {
			out = append(out, g.Start(h))
		}
	}
	return lo.Uniq(out)
}

// ShellEdges returns the distinct edges of a shell.
func (g *Graph) ShellEdges(id ShellID) []EdgeID {
	return lo.Uniq(lo.FlatMap(g.shells[id].Faces, func(f FaceID, _ int) []EdgeID {
		return g.FaceEdges(f)
	}))
}

// EdgeBounds returns a box containing an edge. Arcs use the bounds of
// their full circle.
func (g *Graph) EdgeBounds(id EdgeID) geom.AABB {
	e := g.edges[id]
	b := geom.AABBFromPoints(g.Point(e.Start), g.Point(e.End))
	if e.Curve.Kind == geometry.CurveCircle {
		n := e.Curve.Normal()
		r := e.Curve.Radius()
		ext := geom.Vec3{
			X: r * math.Sqrt(math.Max(0, 1-n.X*n.X)),
			Y: r * math.Sqrt(math.Max(0, 1-n.Y*n.Y)),
			Z: r * math.Sqrt(math.Max(0, 1-n.Z*n.Z)),
		}
		b = b.Union(geom.NewAABB(e.Curve.Origin.Sub(ext), e.Curve.Origin.Add(ext)))
	}
	return b
}

// FaceBounds returns a box containing a face's boundary. For the surfaces
// of this kernel the boundary box also contains the face.
func (g *Graph) FaceBounds(id FaceID) geom.AABB {
	var b geom.AABB
	for _, e := range g.FaceEdges(id) {
		b = b.Union(g.EdgeBounds(e))
	}
	return b
}

// ShellBounds returns a box containing a shell.
func (g *Graph) ShellBounds(id ShellID) geom.AABB {
	var b geom.AABB
	for _, f := range g.shells[id].Faces {
		b = b.Union(g.FaceBounds(f))
	}
	return b
}

// SolidBounds returns a box containing a solid.
func (g *Graph) SolidBounds(id SolidID) geom.AABB {
	var b geom.AABB
	for _, sh := range g.solids[id].Shells {
		b = b.Union(g.ShellBounds(sh))
	}
	return b
}

// Components partitions faces into groups connected through shared edges.
// Groups are ordered by their lowest face and faces keep input order.
func (g *Graph) Components(faces []FaceID) [][]FaceID {
	parent := make([]int, len(faces))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}
	byEdge := make(map[EdgeID]int)
	for i, f := range faces {
		for _, e := range g.FaceEdges(f) {
			if j, ok := byEdge[e]; ok {
				a, b := find(i), find(j)
				if a != b {
					if a < b {
						parent[b] = a
					} else {
						parent[a] = b
					}
				}
				continue
			}
			byEdge[e] = i
		}
	}
	groups := make(map[int][]FaceID)
	var roots []int
	for i, f := range faces {
		r := find(i)
		if _, ok := groups[r]; !ok {
			roots = append(roots, r)
		}
		groups[r] = append(groups[r], f)
	}
	return lo.Map(roots, func(r int, _ int) []FaceID { return groups[r] })
}
