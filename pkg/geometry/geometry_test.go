package geometry

import (
	"math"
	"testing"

	"github.com/chazu/kerf/pkg/geom"
	"github.com/chazu/kerf/pkg/kerrors"
)

const eps = 1e-9

func near(a, b geom.Vec3) bool { return a.Dist(b) < eps }

func unitCircle() Curve { return CircleInPlane(geom.Vec3{}, geom.XAxis, geom.YAxis, 1) }

func TestCurveEvaluation(t *testing.T) {
	l := LineThrough(geom.Vec3{X: 1, Y: 0, Z: 0}, geom.Vec3{X: 3, Y: 2, Z: 0})
	if got := l.PointAt(0.5); !near(got, geom.Vec3{X: 2, Y: 1, Z: 0}) {
		t.Errorf("line PointAt(0.5) = %v", got)
	}
	if got := l.Project(geom.Vec3{X: 3, Y: 2, Z: 5}); math.Abs(got-1) > eps {
		t.Errorf("line Project = %v, want 1", got)
	}

	c := unitCircle()
	if got := c.PointAt(math.Pi / 2); !near(got, geom.Vec3{X: 0, Y: 1, Z: 0}) {
		t.Errorf("circle PointAt(π/2) = %v", got)
	}
	if got := c.TangentAt(0); !near(got, geom.Vec3{X: 0, Y: 1, Z: 0}) {
		t.Errorf("circle TangentAt(0) = %v", got)
	}
	if got := c.Project(geom.Vec3{X: 0, Y: -3, Z: 0}); math.Abs(got+math.Pi/2) > eps {
		t.Errorf("circle Project = %v, want -π/2", got)
	}
	if !c.Periodic() || l.Periodic() {
		t.Error("Periodic() wrong")
	}
	if !near(c.Normal(), geom.ZAxis) {
		t.Errorf("circle Normal = %v", c.Normal())
	}
}

func TestCircleNoDrift(t *testing.T) {
	c := CircleInPlane(geom.Vec3{}, geom.XAxis, geom.YAxis, 1e3)
	for i := 0; i < 100000; i++ {
		tt := float64(i) * 2 * math.Pi / 100000
		if d := math.Abs(c.PointAt(tt).Length() - 1e3); d > 1e-9 {
			t.Fatalf("radius drift %g at step %d", d, i)
		}
	}
}

func TestCurveReverse(t *testing.T) {
	for _, c := range []Curve{LineThrough(geom.Vec3{}, geom.Vec3{X: 1, Y: 2, Z: 3}), unitCircle()} {
		r := c.Reverse()
		for _, tt := range []float64{-1, 0, 0.3, 2} {
			if !near(r.PointAt(-tt), c.PointAt(tt)) {
				t.Errorf("%v: Reverse().PointAt(%v) mismatch", c.Kind, -tt)
			}
			if !near(r.TangentAt(-tt), c.TangentAt(tt).Neg()) {
				t.Errorf("%v: reversed tangent not negated", c.Kind)
			}
		}
	}
}

func TestCurveTransform(t *testing.T) {
	tf := geom.Rotation(geom.XAxis, math.Pi/2).Then(geom.Translation(geom.Vec3{X: 0, Y: 0, Z: 5}))
	c := unitCircle().Transform(tf)
	if !near(c.Origin, geom.Vec3{X: 0, Y: 0, Z: 5}) {
		t.Errorf("transformed center = %v", c.Origin)
	}
	if !near(c.PointAt(math.Pi/2), tf.Point(geom.Vec3{X: 0, Y: 1, Z: 0})) {
		t.Error("transformed circle point mismatch")
	}
}

func TestSurfaces(t *testing.T) {
	p := Plane(geom.Vec3{X: 0, Y: 0, Z: 1}, geom.XAxis, geom.YAxis)
	if !near(p.PointAt(2, 3), geom.Vec3{X: 2, Y: 3, Z: 1}) {
		t.Errorf("plane PointAt = %v", p.PointAt(2, 3))
	}
	if !near(p.NormalAt(0, 0), geom.ZAxis) || !near(p.Reverse().NormalAt(0, 0), geom.ZAxis.Neg()) {
		t.Error("plane normals wrong")
	}
	if u, v := p.Project(geom.Vec3{X: 4, Y: -1, Z: 7}); math.Abs(u-4) > eps || math.Abs(v+1) > eps {
		t.Errorf("plane Project = (%v, %v)", u, v)
	}

	cyl := Swept(unitCircle(), geom.Vec3{X: 0, Y: 0, Z: 2})
	if !near(cyl.PointAt(0, 0.5), geom.Vec3{X: 1, Y: 0, Z: 1}) {
		t.Errorf("swept PointAt = %v", cyl.PointAt(0, 0.5))
	}
	// Counter-clockwise circle swept up: tangent × path points outward.
	if !near(cyl.NormalAt(0, 0), geom.XAxis) {
		t.Errorf("swept NormalAt(0,0) = %v, want +X", cyl.NormalAt(0, 0))
	}
	if !near(cyl.Reverse().NormalAt(0, 0), geom.XAxis.Neg()) {
		t.Error("reversed swept normal not flipped")
	}
	u, v := cyl.Project(geom.Vec3{X: 0, Y: 2, Z: 1.5})
	if math.Abs(u-math.Pi/2) > eps || math.Abs(v-0.75) > eps {
		t.Errorf("swept Project = (%v, %v)", u, v)
	}
	if cyl.Planar() || !Swept(LineThrough(geom.Vec3{}, geom.XAxis), geom.ZAxis).Planar() {
		t.Error("Planar() wrong")
	}

	_, x, y, n, ok := Swept(LineThrough(geom.Vec3{}, geom.XAxis), geom.ZAxis).Frame()
	if !ok || !near(x, geom.XAxis) || !near(y, geom.ZAxis) || !near(n, geom.YAxis.Neg()) {
		t.Errorf("Frame = %v %v %v %v", x, y, n, ok)
	}
}

func TestApproximateCircleSegments(t *testing.T) {
	tests := []struct {
		radius float64
		tol    geom.Tolerance
		want   int
	}{
		{1, 0.1, 8},
		{1, 0.01, 32},
		{1, 0.001, 128},
		{0.5, 0.01, 16},
	}
	for _, tt := range tests {
		c := CircleInPlane(geom.Vec3{}, geom.XAxis, geom.YAxis, tt.radius)
		pl, err := ApproximateCurve(c, 0, 2*math.Pi, tt.tol, 0)
		if err != nil {
			t.Fatalf("ApproximateCurve(r=%v, tol=%v): %v", tt.radius, tt.tol, err)
		}
		if pl.Segments() != tt.want {
			t.Errorf("r=%v tol=%v: %d segments, want %d", tt.radius, tt.tol, pl.Segments(), tt.want)
		}
		if d := pl.Deviation(c); d > float64(tt.tol) {
			t.Errorf("deviation %v exceeds %v", d, tt.tol)
		}
		if !near(pl.Points[0], pl.Points[len(pl.Points)-1]) {
			t.Error("full circle approximation is not closed")
		}
	}
}

func TestApproximateArcAndLine(t *testing.T) {
	c := unitCircle()
	pl, err := ApproximateCurve(c, 0, math.Pi/2, 0.01, 0)
	if err != nil {
		t.Fatalf("ApproximateCurve: %v", err)
	}
	if pl.Params[0] != 0 || pl.Params[len(pl.Params)-1] != math.Pi/2 {
		t.Errorf("arc params = %v", pl.Params)
	}
	for i := 1; i < len(pl.Params); i++ {
		if pl.Params[i] <= pl.Params[i-1] {
			t.Fatalf("params not increasing: %v", pl.Params)
		}
	}

	l, err := ApproximateCurve(LineThrough(geom.Vec3{}, geom.XAxis), 0, 1, 0.01, 0)
	if err != nil || l.Segments() != 1 {
		t.Errorf("line approximation = %d segments, %v", l.Segments(), err)
	}
}

func TestApproximateErrors(t *testing.T) {
	c := unitCircle()
	if _, err := ApproximateCurve(c, 0, 2*math.Pi, 0, 0); !kerrors.Is(err, kerrors.InvalidTolerance) {
		t.Errorf("zero tolerance: got %v, want INVALID_TOLERANCE", err)
	}
	if _, err := ApproximateCurve(c, 0, 2*math.Pi, 1e-12, 3); !kerrors.Is(err, kerrors.ToleranceExceeded) {
		t.Errorf("tiny tolerance with depth 3: got %v, want TOLERANCE_EXCEEDED", err)
	}
}
