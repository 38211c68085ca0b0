// Package kernel defines the abstract geometry kernel interface.
// Implementations (brep, sdfx) evaluate the operations of a model
// description behind this interface, so the processor can swap backends
// without changing the rest of the system.
package kernel

import (
	"github.com/chazu/kerf/pkg/geom"
	"github.com/chazu/kerf/pkg/model"
)

// Shape is an opaque handle to a profile or solid built by a kernel.
// Implementations wrap their internal representation.
type Shape interface {
	// Bounds returns the axis-aligned bounding box.
	Bounds() geom.AABB
	// Dim returns 2 for profiles and 3 for solids.
	Dim() int
}

// Kernel is the abstract geometry kernel interface. Shapes are only valid
// with the kernel that created them. A Kernel is not safe for concurrent
// use; each evaluation owns its kernel.
type Kernel interface {
	// Name identifies the backend in logs and output.
	Name() string

	// Profiles
	Sketch(d model.SketchData) (Shape, error)
	Difference2D(a, b Shape) (Shape, error)

	// Solids
	Sweep(profile Shape, path geom.Vec3) (Shape, error)

	// Boolean operations
	Union(a, b Shape) (Shape, error)
	Difference(a, b Shape) (Shape, error)
	Intersection(a, b Shape) (Shape, error)

	// Transforms
	Transform(s Shape, tf geom.Transform) (Shape, error)

	// Mesh output
	ToMesh(s Shape, tol geom.Tolerance) (*Mesh, error)
}

// Factory creates a fresh kernel for one evaluation.
type Factory func(cfg Config) (Kernel, error)
