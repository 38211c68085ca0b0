package tessellate

import (
	"math"
	"testing"

	"github.com/chazu/kerf/pkg/geom"
)

// ring returns n points around one turn at height v, running forwards or
// backwards in u.
func ring(n int, v float64, forward bool) unrolled {
	c := unrolled{turns: 1}
	if !forward {
		c.turns = -1
	}
	for k := 0; k < n; k++ {
		u := turn * float64(k) / float64(n)
		if !forward {
			u = turn - u
		}
		c.uv = append(c.uv, geom.Vec2{X: u, Y: v})
		c.xyz = append(c.xyz, geom.Vec3{X: math.Cos(u), Y: math.Sin(u), Z: v})
	}
	return c
}

func TestTurnStep(t *testing.T) {
	for _, tt := range []struct {
		r, tol float64
		want   float64
	}{
		{1, 1e-3, 2 * math.Acos(1-1e-3)},
		{0.5, 1e-5, 2 * math.Acos(1-2e-5)},
		{1, 0.5, math.Pi / 2},
		{1, 2, math.Pi / 2},
	} {
		if got := turnStep(tt.r, tt.tol); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("turnStep(%g, %g) = %g, want %g", tt.r, tt.tol, got, tt.want)
		}
		// A chord turning by the step never strays further than tol.
		step := turnStep(tt.r, tt.tol)
		if sag := tt.r * (1 - math.Cos(step/2)); sag > tt.tol+1e-12 {
			t.Errorf("turnStep(%g, %g): sagitta %g exceeds tolerance", tt.r, tt.tol, sag)
		}
	}
}

func TestCutBand(t *testing.T) {
	lower, upper := ring(12, 0, true), ring(9, 1, false)
	hole := unrolled{uv: []geom.Vec2{{X: 3, Y: 0.4}, {X: 3.2, Y: 0.4}, {X: 3.2, Y: 0.6}, {X: 3, Y: 0.6}}}
	hole.xyz = make([]geom.Vec3, len(hole.uv))
	poly, holes, ok := cutBand([]unrolled{lower, upper, hole.shifted(-1)}, 1e-3)
	if !ok {
		t.Fatal("cutBand found no seam")
	}
	if n := len(poly.uv); n != 12+1+9+1 {
		t.Errorf("polygon has %d points, want %d", n, 23)
	}
	if a := geom.SignedArea(poly.uv); math.Abs(a-turn) > 1e-9 {
		t.Errorf("polygon area = %g, want %g", a, turn)
	}
	if _, _, bad := geom.SelfIntersection(poly.uv, 1e-9); bad {
		t.Error("polygon intersects itself")
	}
	lo, hi := poly.uv[0].X, poly.uv[0].X+turn
	for _, q := range holes[0].uv {
		if q.X <= lo || q.X >= hi {
			t.Errorf("hole point %v outside the cut band [%g, %g]", q, lo, hi)
		}
	}
}

func TestCutBandRejectsUnpairedCycles(t *testing.T) {
	for name, cycles := range map[string][]unrolled{
		"two lower":    {ring(8, 0, true), ring(8, 1, true)},
		"lower only":   {ring(8, 0, true)},
		"double winds": {{uv: ring(8, 0, true).uv, xyz: ring(8, 0, true).xyz, turns: 2}, ring(8, 1, false)},
	} {
		if _, _, ok := cutBand(cycles, 1e-3); ok {
			t.Errorf("%s: cutBand succeeded", name)
		}
	}
}
