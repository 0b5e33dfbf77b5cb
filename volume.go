// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package isosurface

import (
	"fmt"
	"sync/atomic"
)

// Volume is a scalar voxel field of Dims().Voxels() float32 values,
// linearized as x + y*X + z*X*Y. It is written by a field generator and
// only read by extractors.
type Volume interface {
	Dims() Dims
	Device() Device

	// Write replaces the whole field.
	Write(values []float32) error

	// Release frees the volume. Extractors reject released volumes.
	Release() error

	isReleased() bool
}

// HostVolume is a volume in host memory, read by the software device.
type HostVolume struct {
	dev      *SoftwareDevice
	dims     Dims
	values   []float32
	released atomic.Bool
}

// Dims returns the lattice extent.
func (v *HostVolume) Dims() Dims { return v.dims }

// Device returns the owning device.
func (v *HostVolume) Device() Device { return v.dev }

// Values returns the backing slice for in-place generation.
func (v *HostVolume) Values() []float32 { return v.values }

// At returns the value at (x, y, z).
func (v *HostVolume) At(x, y, z int) float32 {
	return v.values[v.dims.Index(x, y, z)]
}

// Set stores the value at (x, y, z).
func (v *HostVolume) Set(x, y, z int, value float32) {
	v.values[v.dims.Index(x, y, z)] = value
}

// Write copies values into the volume.
func (v *HostVolume) Write(values []float32) error {
	if v.released.Load() {
		return ErrReleased
	}
	if len(values) != len(v.values) {
		return fmt.Errorf("%w: %d values for %s", ErrVolumeMismatch, len(values), v.dims)
	}
	copy(v.values, values)
	return nil
}

// Fill evaluates fn at every lattice point. Z slices are filled in
// parallel on the device's worker pool, so fn must be safe for concurrent
// use.
func (v *HostVolume) Fill(fn func(x, y, z int) float32) error {
	if v.released.Load() {
		return ErrReleased
	}
	d := v.dims
	err := v.dev.pool.Dispatch(d.Z, func(z int) {
		for y := range d.Y {
			row := v.values[d.Index(0, y, z):]
			for x := range d.X {
				row[x] = fn(x, y, z)
			}
		}
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrReleased, err)
	}
	return nil
}

// Release drops the backing storage.
func (v *HostVolume) Release() error {
	if v.released.Swap(true) {
		return nil
	}
	v.values = nil
	return nil
}

func (v *HostVolume) isReleased() bool { return v.released.Load() }
