package model

import (
	"github.com/chazu/kerf/pkg/geom"
)

// ---------------------------------------------------------------------------
// Sketch
// ---------------------------------------------------------------------------

// SegmentKind distinguishes the pieces of a sketch loop.
type SegmentKind int

const (
	SegmentLine   SegmentKind = iota // straight segment From -> To
	SegmentArc                       // arc of a circle from Start to End (radians)
	SegmentCircle                    // full circle
)

func (k SegmentKind) String() string {
	switch k {
	case SegmentLine:
		return "line"
	case SegmentArc:
		return "arc"
	case SegmentCircle:
		return "circle"
	default:
		return "unknown"
	}
}

// Segment is one piece of a sketch loop in plane coordinates. Arcs run
// counter-clockwise when End > Start.
type Segment struct {
	Kind   SegmentKind `json:"kind"`
	From   geom.Vec2   `json:"from"`
	To     geom.Vec2   `json:"to"`
	Center geom.Vec2   `json:"center"`
	Radius float64     `json:"radius,omitempty"`
	Start  float64     `json:"start,omitempty"`
	End    float64     `json:"end,omitempty"`
}

// Loop is a closed chain of segments.
type Loop []Segment

// Plane places a sketch in space. The zero Plane is the XY plane.
type Plane struct {
	Origin geom.Vec3 `json:"origin"`
	U      geom.Vec3 `json:"u"`
	V      geom.Vec3 `json:"v"`
}

// XYPlane returns the plane z = 0 with the usual axes.
func XYPlane() Plane { return Plane{U: geom.XAxis, V: geom.YAxis} }

// OrDefault returns p, or the XY plane when p has no axes.
func (p Plane) OrDefault() Plane {
	if p.U == (geom.Vec3{}) && p.V == (geom.Vec3{}) {
		return Plane{Origin: p.Origin, U: geom.XAxis, V: geom.YAxis}
	}
	return p
}

// Point maps plane coordinates to space.
func (p Plane) Point(q geom.Vec2) geom.Vec3 {
	p = p.OrDefault()
	return p.Origin.Add(p.U.Scale(q.X)).Add(p.V.Scale(q.Y))
}

// Normal returns the unit plane normal.
func (p Plane) Normal() geom.Vec3 {
	p = p.OrDefault()
	return p.U.Cross(p.V).Normalize()
}

// SketchData is a closed profile: one exterior loop and any holes.
type SketchData struct {
	Exterior Loop   `json:"exterior"`
	Holes    []Loop `json:"holes,omitempty"`
	Plane    Plane  `json:"plane"`
}

func (SketchData) nodeData() {}

// Difference2DData subtracts the second and later child profiles from the
// first. The children must lie on the same plane.
type Difference2DData struct{}

func (Difference2DData) nodeData() {}

// ---------------------------------------------------------------------------
// Sweep
// ---------------------------------------------------------------------------

// SweepData sweeps its single child profile along Path.
type SweepData struct {
	Path geom.Vec3 `json:"path"`
}

func (SweepData) nodeData() {}

// ---------------------------------------------------------------------------
// Transform
// ---------------------------------------------------------------------------

// TransformData represents a rigid motion applied to a child node.
// Rotation is applied before translation.
type TransformData struct {
	Translation *geom.Vec3 `json:"translation,omitempty"`
	Rotation    *geom.Vec3 `json:"rotation,omitempty"` // Euler angles in degrees
}

func (TransformData) nodeData() {}

// Transform returns the motion as a geom.Transform.
func (d TransformData) Transform() geom.Transform {
	tf := geom.Identity()
	if d.Rotation != nil {
		tf = tf.Then(geom.RotationEuler(d.Rotation.X, d.Rotation.Y, d.Rotation.Z))
	}
	if d.Translation != nil {
		tf = tf.Then(geom.Translation(*d.Translation))
	}
	return tf
}

// ---------------------------------------------------------------------------
// Booleans and groups
// ---------------------------------------------------------------------------

// BooleanData marks union, difference and intersection nodes. The node
// kind selects the operation; children are folded left to right.
type BooleanData struct{}

func (BooleanData) nodeData() {}

// GroupData represents a logical grouping. Each child is meshed on its
// own.
type GroupData struct {
	Description string `json:"description,omitempty"`
}

func (GroupData) nodeData() {}
