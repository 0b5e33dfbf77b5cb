// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/gogpu/isosurface"
	"github.com/gogpu/isosurface/field"
)

// Config is the demo configuration, read from TOML.
type Config struct {
	Grid    GridConfig    `toml:"grid"`
	Extract ExtractConfig `toml:"extract"`
	Noise   NoiseConfig   `toml:"noise"`
	Run     RunConfig     `toml:"run"`
}

// GridConfig sets the voxel lattice.
type GridConfig struct {
	Dims  [3]int  `toml:"dims"`
	Scale float32 `toml:"scale"`
}

// ExtractConfig sets the extractor.
type ExtractConfig struct {
	Budget       int     `toml:"budget"`
	Isovalue     float32 `toml:"isovalue"`
	ClearThreads int     `toml:"clear_threads"`
}

// NoiseConfig sets the animated noise field.
type NoiseConfig struct {
	Seed        uint32     `toml:"seed"`
	Frequency   float32    `toml:"frequency"`
	Octaves     int        `toml:"octaves"`
	Persistence float32    `toml:"persistence"`
	Lacunarity  float32    `toml:"lacunarity"`
	Velocity    [3]float32 `toml:"velocity"`
}

// RunConfig sets the frame loop.
type RunConfig struct {
	Device     string  `toml:"device"` // "software" or "gpu"
	Workers    int     `toml:"workers"`
	Frames     int     `toml:"frames"`
	FPS        float64 `toml:"fps"`
	Realtime   bool    `toml:"realtime"`
	ReportEach int     `toml:"report_each"`
}

// DefaultConfig matches the noise field visualizer: a 64x32x64 grid four
// units wide with a budget of 65536 triangles.
func DefaultConfig() Config {
	n := field.DefaultNoise()
	return Config{
		Grid: GridConfig{Dims: [3]int{64, 32, 64}, Scale: 4.0 / 64},
		Extract: ExtractConfig{
			Budget:       65536,
			Isovalue:     0,
			ClearThreads: isosurface.DefaultClearThreads,
		},
		Noise: NoiseConfig{
			Seed:        n.Seed,
			Frequency:   n.Frequency,
			Octaves:     n.Octaves,
			Persistence: n.Persistence,
			Lacunarity:  n.Lacunarity,
			Velocity:    n.Velocity,
		},
		Run: RunConfig{
			Device:     "software",
			Frames:     120,
			FPS:        60,
			ReportEach: 30,
		},
	}
}

// LoadConfig reads path over the defaults. Keys missing from the file keep
// their default values.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("mcdemo: read config: %w", err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("mcdemo: parse %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate checks the values the library does not check itself.
func (c Config) Validate() error {
	switch c.Run.Device {
	case "software", "gpu":
	default:
		return fmt.Errorf("mcdemo: unknown device %q", c.Run.Device)
	}
	if c.Run.FPS <= 0 {
		return fmt.Errorf("mcdemo: fps must be positive, got %v", c.Run.FPS)
	}
	if c.Noise.Octaves <= 0 {
		return fmt.Errorf("mcdemo: octaves must be positive, got %d", c.Noise.Octaves)
	}
	return c.Dims().Validate()
}

// Dims returns the lattice extent.
func (c Config) Dims() isosurface.Dims {
	return isosurface.Dims{X: c.Grid.Dims[0], Y: c.Grid.Dims[1], Z: c.Grid.Dims[2]}
}

// NoiseField returns the configured noise field.
func (c Config) NoiseField() field.Noise {
	return field.Noise{
		Seed:        c.Noise.Seed,
		Scale:       c.Grid.Scale,
		Frequency:   c.Noise.Frequency,
		Octaves:     c.Noise.Octaves,
		Persistence: c.Noise.Persistence,
		Lacunarity:  c.Noise.Lacunarity,
		Velocity:    c.Noise.Velocity,
	}
}
