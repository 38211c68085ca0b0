package geom

import (
	"math"

	"github.com/chazu/kerf/pkg/kerrors"
)

// DefaultTolerance is the distance below which two points are the same
// point, in model units (mm).
const DefaultTolerance Tolerance = 1e-6

// Tolerance is the maximum distance at which two geometric values are
// treated as equal. It is always passed explicitly; there is no
// process-wide default.
type Tolerance float64

// Validate reports an InvalidTolerance error unless t is positive and finite.
func (t Tolerance) Validate() error {
	f := float64(t)
	if !(f > 0) || math.IsInf(f, 0) || math.IsNaN(f) {
		return kerrors.New(kerrors.InvalidTolerance, "tolerance must be positive and finite, got %g", f)
	}
	return nil
}

// Float returns t as a float64.
func (t Tolerance) Float() float64 { return float64(t) }

// Zero reports whether |x| <= t.
func (t Tolerance) Zero(x float64) bool { return math.Abs(x) <= float64(t) }

// Eq reports whether a and b differ by at most t.
func (t Tolerance) Eq(a, b float64) bool { return math.Abs(a-b) <= float64(t) }

// Less reports whether a < b by more than t.
func (t Tolerance) Less(a, b float64) bool { return a < b-float64(t) }

// Sign returns -1, 0 or 1, treating values within t of zero as zero.
func (t Tolerance) Sign(x float64) int {
	switch {
	case x > float64(t):
		return 1
	case x < -float64(t):
		return -1
	default:
		return 0
	}
}

// PointsEq2 reports whether a and b are within t of each other.
func (t Tolerance) PointsEq2(a, b Vec2) bool { return a.Dist(b) <= float64(t) }

// PointsEq3 reports whether a and b are within t of each other.
func (t Tolerance) PointsEq3(a, b Vec3) bool { return a.Dist(b) <= float64(t) }

// Within reports whether x lies in [lo-t, hi+t].
func (t Tolerance) Within(x, lo, hi float64) bool {
	return x >= lo-float64(t) && x <= hi+float64(t)
}

// Cell returns the integer tolerance cell containing p.
func (t Tolerance) Cell(p Vec3) Cell {
	f := float64(t)
	return Cell{
		X: int64(math.Floor(p.X / f)),
		Y: int64(math.Floor(p.Y / f)),
		Z: int64(math.Floor(p.Z / f)),
	}
}

// Cell identifies a cube of side Tolerance in a regular grid.
type Cell struct {
	X, Y, Z int64
}
