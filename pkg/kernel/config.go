package kernel

import (
	"runtime"

	"github.com/chazu/kerf/pkg/geom"
	"github.com/chazu/kerf/pkg/kerrors"
)

// Config bundles the numeric settings threaded through one evaluation.
// Nothing in the kernel reads process-wide defaults; callers start from
// DefaultConfig and override fields.
type Config struct {
	// Tolerance is the distance below which two points are identical.
	Tolerance geom.Tolerance `json:"tolerance"`
	// TessellationTolerance is the maximum chord deviation of output
	// meshes. Zero derives it from the model bounds.
	TessellationTolerance geom.Tolerance `json:"tessellationTolerance,omitempty"`
	// MaxDepth bounds adaptive curve approximation.
	MaxDepth int `json:"maxDepth"`
	// FacetTolerance is the chord deviation used to polygonise curved
	// loops for the SDF backend and to sample face boundaries for boolean
	// point-in-face tests. It never limits output accuracy. Zero derives
	// it from the operand bounds.
	FacetTolerance geom.Tolerance `json:"facetTolerance,omitempty"`
	// Parallelism bounds concurrent per-face work.
	Parallelism int `json:"parallelism"`
}

// DefaultConfig returns the default settings.
func DefaultConfig() Config {
	return Config{
		Tolerance:   geom.DefaultTolerance,
		MaxDepth:    20,
		Parallelism: runtime.GOMAXPROCS(0),
	}
}

// Validate checks the settings. Zero derived tolerances are allowed.
func (c Config) Validate() error {
	if err := c.Tolerance.Validate(); err != nil {
		return kerrors.Wrap(err, kerrors.InvalidTolerance, "tolerance")
	}
	if c.TessellationTolerance != 0 {
		if err := c.TessellationTolerance.Validate(); err != nil {
			return kerrors.Wrap(err, kerrors.InvalidTolerance, "tessellation tolerance")
		}
	}
	if c.FacetTolerance != 0 {
		if err := c.FacetTolerance.Validate(); err != nil {
			return kerrors.Wrap(err, kerrors.InvalidTolerance, "facet tolerance")
		}
	}
	if c.MaxDepth < 0 || c.Parallelism < 0 {
		return kerrors.New(kerrors.InvalidDescription, "max depth %d and parallelism %d must not be negative", c.MaxDepth, c.Parallelism)
	}
	return nil
}
