package main

import (
	"fmt"

	"github.com/caarlos0/env/v11"

	"github.com/chazu/kerf/pkg/geom"
	"github.com/chazu/kerf/pkg/kernel"
	"github.com/chazu/kerf/pkg/kernel/brep"
	"github.com/chazu/kerf/pkg/kernel/sdfx"
)

// Config holds the settings read from the environment. Flags override
// them.
type Config struct {
	Tolerance     float64 `env:"KERF_TOLERANCE"`
	TessTolerance float64 `env:"KERF_TESS_TOLERANCE"`
	MaxDepth      int     `env:"KERF_MAX_DEPTH"`
	Backend       string  `env:"KERF_BACKEND" envDefault:"brep"`
	Debug         bool    `env:"KERF_DEBUG"`
}

// loadConfig parses the KERF_* environment variables.
func loadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// kernelConfig merges cfg over the kernel defaults.
func (c Config) kernelConfig() (kernel.Config, error) {
	kc := kernel.DefaultConfig()
	if c.Tolerance != 0 {
		kc.Tolerance = geom.Tolerance(c.Tolerance)
	}
	if c.TessTolerance != 0 {
		kc.TessellationTolerance = geom.Tolerance(c.TessTolerance)
	}
	if c.MaxDepth != 0 {
		kc.MaxDepth = c.MaxDepth
	}
	if err := kc.Validate(); err != nil {
		return kernel.Config{}, err
	}
	return kc, nil
}

// factory returns the kernel backend named by cfg.
func (c Config) factory() (kernel.Factory, error) {
	switch c.Backend {
	case "", brep.Name:
		return brep.Factory, nil
	case sdfx.Name:
		return sdfx.Factory, nil
	default:
		return nil, fmt.Errorf("unknown backend %q (want %s or %s)", c.Backend, brep.Name, sdfx.Name)
	}
}
