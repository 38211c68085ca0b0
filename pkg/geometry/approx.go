package geometry

import (
	"github.com/chazu/kerf/pkg/geom"
	"github.com/chazu/kerf/pkg/kerrors"
)

// DefaultMaxDepth bounds the bisection depth of adaptive approximation.
// 2^20 segments per initial interval is far beyond any useful tolerance.
const DefaultMaxDepth = 20

// Polyline is an approximation of a curve over a parameter range: the
// sampled parameters and their points, in increasing parameter order.
type Polyline struct {
	Params []float64
	Points []geom.Vec3
}

// Segments returns the number of chords.
func (p Polyline) Segments() int { return len(p.Points) - 1 }

// ApproximateCurve samples c over [t0, t1] so that the deviation between
// every chord and the curve, measured at the chord's parameter midpoint, is
// at most tol. Lines return their two endpoints. A full period of a
// periodic curve starts from four intervals. If an interval would need
// more than maxDepth bisections the call fails with ToleranceExceeded.
func ApproximateCurve(c Curve, t0, t1 float64, tol geom.Tolerance, maxDepth int) (Polyline, error) {
	if err := tol.Validate(); err != nil {
		return Polyline{}, err
	}
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	switch c.Kind {
	case CurveLine:
		return Polyline{
			Params: []float64{t0, t1},
			Points: []geom.Vec3{c.PointAt(t0), c.PointAt(t1)},
		}, nil
	case CurveCircle:
	default:
		panic("geometry: unknown curve kind " + c.Kind.String())
	}

	initial := 1
	if c.IsFullPeriod(t0, t1) {
		initial = 4
	}
	a := approximator{curve: c, tol: tol.Float(), maxDepth: maxDepth}
	a.out.Params = append(a.out.Params, t0)
	a.out.Points = append(a.out.Points, c.PointAt(t0))
	step := (t1 - t0) / float64(initial)
	for i := 0; i < initial; i++ {
		lo := t0 + step*float64(i)
		hi := t0 + step*float64(i+1)
		if i == initial-1 {
			hi = t1
		}
		if err := a.bisect(lo, c.PointAt(lo), hi, c.PointAt(hi), 0); err != nil {
			return Polyline{}, err
		}
	}
	return a.out, nil
}

type approximator struct {
	curve    Curve
	tol      float64
	maxDepth int
	out      Polyline
}

// bisect appends the samples of (lo, hi] to the output.
func (a *approximator) bisect(lo float64, plo geom.Vec3, hi float64, phi geom.Vec3, depth int) error {
	mid := (lo + hi) / 2
	pmid := a.curve.PointAt(mid)
	if pmid.Dist(plo.Lerp(phi, 0.5)) <= a.tol {
		a.out.Params = append(a.out.Params, hi)
		a.out.Points = append(a.out.Points, phi)
		return nil
	}
	if depth >= a.maxDepth {
		return kerrors.Newf(kerrors.ToleranceExceeded,
			"deviation still above %g after %d bisections", a.tol, depth).
			With("curve", a.curve.Kind).With("param", mid)
	}
	if err := a.bisect(lo, plo, mid, pmid, depth+1); err != nil {
		return err
	}
	return a.bisect(mid, pmid, hi, phi, depth+1)
}

// Deviation returns the largest midpoint chord deviation of p from c.
func (p Polyline) Deviation(c Curve) float64 {
	var worst float64
	for i := 0; i+1 < len(p.Params); i++ {
		mid := c.PointAt((p.Params[i] + p.Params[i+1]) / 2)
		if d := mid.Dist(p.Points[i].Lerp(p.Points[i+1], 0.5)); d > worst {
			worst = d
		}
	}
	return worst
}
