package model

import "github.com/chazu/kerf/pkg/geom"

// Bounds returns a box containing everything node id evaluates to. It is
// computed from the description alone, before any geometry is built, and
// may be loose for arcs and rotated or intersected shapes.
func (g *Graph) Bounds(id NodeID) geom.AABB {
	return g.bounds(id, make(map[NodeID]geom.AABB))
}

func (g *Graph) bounds(id NodeID, memo map[NodeID]geom.AABB) geom.AABB {
	if b, ok := memo[id]; ok {
		return b
	}
	n := g.Nodes[id]
	if n == nil {
		return geom.AABB{}
	}
	// Guard against cycles; a well-formed graph never hits this entry.
	memo[id] = geom.AABB{}
	var b geom.AABB
	switch n.Kind {
	case NodeSketch:
		if sd, ok := n.Data.(SketchData); ok {
			b = sketchBounds(sd)
		}
	case NodeDifference2D, NodeDifference:
		if len(n.Children) > 0 {
			b = g.bounds(n.Children[0], memo)
		}
	case NodeSweep:
		if sd, ok := n.Data.(SweepData); ok && len(n.Children) == 1 {
			p := g.bounds(n.Children[0], memo)
			b = p.Union(p.Transform(geom.Translation(sd.Path)))
		}
	case NodeTransform:
		if td, ok := n.Data.(TransformData); ok && len(n.Children) == 1 {
			b = g.bounds(n.Children[0], memo).Transform(td.Transform())
		}
	case NodeUnion, NodeGroup:
		for _, c := range n.Children {
			b = b.Union(g.bounds(c, memo))
		}
	case NodeIntersection:
		for i, c := range n.Children {
			if i == 0 {
				b = g.bounds(c, memo)
			} else {
				b = b.Intersect(g.bounds(c, memo))
			}
		}
	}
	memo[id] = b
	return b
}

// sketchBounds maps the 2D box of the exterior loop into space.
func sketchBounds(sd SketchData) geom.AABB {
	var lo, hi geom.Vec2
	first := true
	extend := func(p geom.Vec2) {
		if first {
			lo, hi, first = p, p, false
			return
		}
		lo = geom.Vec2{X: min(lo.X, p.X), Y: min(lo.Y, p.Y)}
		hi = geom.Vec2{X: max(hi.X, p.X), Y: max(hi.Y, p.Y)}
	}
	for _, s := range sd.Exterior {
		switch s.Kind {
		case SegmentLine:
			extend(s.From)
			extend(s.To)
		default:
			r := geom.Vec2{X: s.Radius, Y: s.Radius}
			extend(s.Center.Sub(r))
			extend(s.Center.Add(r))
		}
	}
	if first {
		return geom.AABB{}
	}
	return geom.AABBFromPoints(
		sd.Plane.Point(lo), sd.Plane.Point(geom.Vec2{X: hi.X, Y: lo.Y}),
		sd.Plane.Point(hi), sd.Plane.Point(geom.Vec2{X: lo.X, Y: hi.Y}))
}
