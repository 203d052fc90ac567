// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package flip

// Option configures a Dispatcher during creation.
//
// Example:
//
//	// Default: 8x8 workgroups, edge variant, discard out-of-bounds stores
//	d := flip.NewCPUDispatcher()
//
//	// Corrected mirror on 16x16 workgroups, failing on any stray store
//	d := flip.NewCPUDispatcher(
//	    flip.WithVariant(flip.VariantMirror),
//	    flip.WithWorkgroupSize(flip.WorkgroupSize{X: 16, Y: 16, Z: 1}),
//	    flip.WithBoundsPolicy(flip.BoundsStrict),
//	)
type Option func(*Config)

// DefaultMaxViolations is the number of violations a Report keeps by default.
const DefaultMaxViolations = 64

// Config holds dispatcher configuration. GPU dispatcher packages read it
// through NewConfig.
type Config struct {
	// Workgroup is the local workgroup size.
	Workgroup WorkgroupSize

	// Kernel selects variant and axes.
	Kernel Kernel

	// Workers is the number of CPU workers; 0 means GOMAXPROCS.
	Workers int

	// Bounds is the out-of-bounds store policy of the CPU dispatcher.
	Bounds BoundsPolicy

	// MaxViolations caps Report.Violations; negative means unlimited.
	MaxViolations int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Workgroup:     DefaultWorkgroupSize,
		MaxViolations: DefaultMaxViolations,
	}
}

// NewConfig applies opts to the default configuration.
func NewConfig(opts ...Option) Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// WithWorkgroupSize sets the local workgroup size. It is validated at
// dispatch time.
func WithWorkgroupSize(size WorkgroupSize) Option {
	return func(c *Config) {
		c.Workgroup = size
	}
}

// WithWorkers sets the number of CPU worker goroutines.
func WithWorkers(n int) Option {
	return func(c *Config) {
		c.Workers = n
	}
}

// WithBoundsPolicy sets the out-of-bounds store policy.
func WithBoundsPolicy(p BoundsPolicy) Option {
	return func(c *Config) {
		c.Bounds = p
	}
}

// WithMaxViolations caps the violations kept in a Report.
func WithMaxViolations(n int) Option {
	return func(c *Config) {
		c.MaxViolations = n
	}
}

// WithVariant selects the destination arithmetic.
func WithVariant(v Variant) Option {
	return func(c *Config) {
		c.Kernel.Variant = v
	}
}

// WithAxes selects which axes are flipped.
func WithAxes(a Axes) Option {
	return func(c *Config) {
		c.Kernel.Axes = a
	}
}
