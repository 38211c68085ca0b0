package sketch

import (
	"math"

	"github.com/paulmach/orb"

	"github.com/chazu/kerf/pkg/geom"
	"github.com/chazu/kerf/pkg/kerrors"
)

// Loop is an ordered closed sequence of segments.
type Loop []Segment

// Polygon returns the closed loop of straight segments through pts.
func Polygon(pts ...geom.Vec2) Loop {
	l := make(Loop, len(pts))
	for i := range pts {
		l[i] = Line(pts[i], pts[(i+1)%len(pts)])
	}
	return l
}

// Rect returns the counter-clockwise w×h rectangle centred on the origin.
func Rect(w, h float64) Loop {
	x, y := w/2, h/2
	return Polygon(geom.Vec2{X: -x, Y: -y}, geom.Vec2{X: x, Y: -y}, geom.Vec2{X: x, Y: y}, geom.Vec2{X: -x, Y: y})
}

// CircleLoop returns the loop made of a single circle.
func CircleLoop(center geom.Vec2, radius float64) Loop { return Loop{Circle(center, radius)} }

// Reverse returns the loop traversed in the opposite direction.
func (l Loop) Reverse() Loop {
	out := make(Loop, len(l))
	for i, s := range l {
		out[len(l)-1-i] = s.Reverse()
	}
	return out
}

// Check verifies the loop is closed: each segment starts where the previous
// one ends, circles stand alone and no segment is degenerate.
func (l Loop) Check(tol geom.Tolerance) error {
	if len(l) == 0 {
		return kerrors.New(kerrors.InvalidProfile, "loop has no segments")
	}
	for i, s := range l {
		if s.Kind != SegmentLine && s.Radius <= tol.Float() {
			return kerrors.Newf(kerrors.InvalidProfile, "%v radius is below tolerance", s.Kind).With("segment", i)
		}
		if s.Length() <= tol.Float() {
			return kerrors.Newf(kerrors.InvalidProfile, "%v has zero length", s.Kind).With("segment", i)
		}
		if s.Closed() {
			if len(l) != 1 {
				return kerrors.Newf(kerrors.InvalidProfile, "circle must be a loop on its own").With("segment", i)
			}
			continue
		}
		if s.Kind == SegmentArc && s.Length() >= 2*math.Pi*s.Radius {
			return kerrors.Newf(kerrors.InvalidProfile, "arc spans a full turn; use a circle").With("segment", i)
		}
		next := l[(i+1)%len(l)]
		if !tol.PointsEq2(s.EndPoint(), next.StartPoint()) {
			return kerrors.Newf(kerrors.InvalidProfile, "loop is open: segment ends at %v, next starts at %v",
				s.EndPoint(), next.StartPoint()).With("segment", i)
		}
	}
	if len(l) == 1 && !l[0].Closed() {
		return kerrors.New(kerrors.InvalidProfile, "a single %v cannot close a loop", l[0].Kind)
	}
	return nil
}

// Approximate samples the loop as a closed polygon (no repeated closing
// point) within tol.
func (l Loop) Approximate(tol geom.Tolerance) ([]geom.Vec2, error) {
	var out []geom.Vec2
	for _, s := range l {
		pts, err := s.Approximate(tol)
		if err != nil {
			return nil, err
		}
		out = append(out, pts[:len(pts)-1]...)
	}
	return out, nil
}

// Profile is a bounded 2D region: one exterior loop minus holes.
type Profile struct {
	Exterior Loop
	Holes    []Loop
}

// NewProfile returns the profile bounded by exterior with no holes.
func NewProfile(exterior Loop) Profile { return Profile{Exterior: exterior} }

// Difference returns a with b's exterior cut out as a hole. Holes of b are
// dropped; a hole inside a hole is not a region of a.
func Difference(a, b Profile) Profile {
	holes := make([]Loop, 0, len(a.Holes)+1)
	holes = append(holes, a.Holes...)
	holes = append(holes, b.Exterior)
	return Profile{Exterior: a.Exterior, Holes: holes}
}

// Loops returns the exterior followed by the holes.
func (p Profile) Loops() []Loop {
	return append([]Loop{p.Exterior}, p.Holes...)
}

// Bounds returns the 2D bounding box of the exterior loop.
func (p Profile) Bounds() geom.AABB2 {
	var b geom.AABB2
	for _, s := range p.Exterior {
		switch s.Kind {
		case SegmentLine:
			b = b.Extend(s.From).Extend(s.To)
		default:
			r := geom.Vec2{X: s.Radius, Y: s.Radius}
			b = b.Extend(s.Center.Sub(r)).Extend(s.Center.Add(r))
		}
	}
	return b
}

// ring converts a closed polygon into a closed orb ring.
func ring(pts []geom.Vec2) orb.Ring {
	r := make(orb.Ring, 0, len(pts)+1)
	for _, p := range pts {
		r = append(r, orb.Point{p.X, p.Y})
	}
	return append(r, r[0])
}
