package geom

// SignedArea returns the signed area of the closed polygon pts (the
// closing edge is implied). Counter-clockwise polygons are positive.
func SignedArea(pts []Vec2) float64 {
	var a float64
	for i := range pts {
		j := (i + 1) % len(pts)
		a += pts[i].Cross(pts[j])
	}
	return a / 2
}

// SelfIntersection finds two non-adjacent edges of the closed polygon pts
// that touch or cross. Non-adjacent edges meeting only at a shared vertex
// position (a pinch) are allowed, as are adjacent edges meeting at their
// common vertex. Adjacent edges that fold back over each other are
// reported. ok is false when the polygon is simple.
func SelfIntersection(pts []Vec2, tol Tolerance) (i, j int, ok bool) {
	n := len(pts)
	if n < 3 {
		return 0, 0, false
	}
	boxes := make([]AABB2, n)
	for k := 0; k < n; k++ {
		boxes[k] = AABB2FromPoints(pts[k], pts[(k+1)%n])
	}
	for i := 0; i < n; i++ {
		a0, a1 := pts[i], pts[(i+1)%n]
		for j := i + 1; j < n; j++ {
			if !boxes[i].Overlaps(boxes[j], tol) {
				continue
			}
			b0, b1 := pts[j], pts[(j+1)%n]
			hit := IntersectSegments(a0, a1, b0, b1, tol)
			if !hit.Hit() {
				continue
			}
			adjacent := j == i+1 || (i == 0 && j == n-1)
			if hit.Kind != Coincident {
				if adjacent {
					continue
				}
				if tol.PointsEq2(a0, b0) || tol.PointsEq2(a0, b1) || tol.PointsEq2(a1, b0) || tol.PointsEq2(a1, b1) {
					continue
				}
			}
			return i, j, true
		}
	}
	return 0, 0, false
}

// SegmentsCross reports whether any edge of closed polygon a touches any
// edge of closed polygon b.
func SegmentsCross(a, b []Vec2, tol Tolerance) bool {
	bb := AABB2FromPoints(b...)
	for i := range a {
		a0, a1 := a[i], a[(i+1)%len(a)]
		if !AABB2FromPoints(a0, a1).Overlaps(bb, tol) {
			continue
		}
		for j := range b {
			if IntersectSegments(a0, a1, b[j], b[(j+1)%len(b)], tol).Hit() {
				return true
			}
		}
	}
	return false
}
