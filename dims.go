// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package isosurface

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Dims is the extent of a voxel lattice.
type Dims struct {
	X, Y, Z int
}

// Voxels returns the number of lattice points.
func (d Dims) Voxels() int {
	return d.X * d.Y * d.Z
}

// Cells returns the number of cubes between lattice points.
func (d Dims) Cells() int {
	return max(d.X-1, 0) * max(d.Y-1, 0) * max(d.Z-1, 0)
}

// Index linearizes (x, y, z) as x + y*X + z*X*Y.
func (d Dims) Index(x, y, z int) int {
	return x + y*d.X + z*d.X*d.Y
}

// Vec3 returns the dimensions as a float vector.
func (d Dims) Vec3() mgl32.Vec3 {
	return mgl32.Vec3{float32(d.X), float32(d.Y), float32(d.Z)}
}

func (d Dims) String() string {
	return fmt.Sprintf("%dx%dx%d", d.X, d.Y, d.Z)
}

// Validate checks that every dimension is positive and that the lattice
// is addressable with 32-bit indices.
func (d Dims) Validate() error {
	for _, c := range []struct {
		name string
		v    int
	}{{"dims.X", d.X}, {"dims.Y", d.Y}, {"dims.Z", d.Z}} {
		if c.v <= 0 {
			return &ConfigError{Field: c.name, Value: c.v, Reason: "must be positive"}
		}
	}
	if uint64(d.X)*uint64(d.Y)*uint64(d.Z) > math.MaxUint32 {
		return &ConfigError{Field: "dims", Value: d, Reason: "too many voxels for 32-bit indexing"}
	}
	return nil
}

func (d Dims) uint32s() [3]uint32 {
	return [3]uint32{uint32(d.X), uint32(d.Y), uint32(d.Z)} //nolint:gosec // validated positive
}
