// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package field generates scalar voxel fields for isosurface extraction.
//
// Generators evaluate a value per lattice point and time. Update writes a
// whole frame into a volume: host volumes are filled in place on the
// software device's worker pool, other volumes receive one upload.
package field

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/isosurface"
	"github.com/gogpu/isosurface/table"
)

// Func evaluates a field at lattice point (x, y, z) at time t.
type Func func(x, y, z int, t float32) float32

// Update writes the field at time t into vol. Volumes that are not filled
// in place get a fresh staging slice; use a Generator to reuse one across
// frames.
func (f Func) Update(vol isosurface.Volume, t float64) error {
	return NewGenerator(f).Update(vol, t)
}

// Generator writes a field into a volume frame after frame. The staging
// slice for uploads is kept between calls.
type Generator struct {
	fn      Func
	staging []float32
}

// NewGenerator returns a generator for fn.
func NewGenerator(fn Func) *Generator {
	return &Generator{fn: fn}
}

// Update writes the field at time t into vol.
func (g *Generator) Update(vol isosurface.Volume, t float64) error {
	f, tf := g.fn, float32(t)
	if hv, ok := vol.(*isosurface.HostVolume); ok {
		return hv.Fill(func(x, y, z int) float32 { return f(x, y, z, tf) })
	}
	d := vol.Dims()
	n := d.Voxels()
	if cap(g.staging) < n {
		g.staging = make([]float32, n)
	}
	values := g.staging[:n]
	for z := range d.Z {
		for y := range d.Y {
			row := values[d.Index(0, y, z):]
			for x := range d.X {
				row[x] = f(x, y, z, tf)
			}
		}
	}
	return vol.Write(values)
}

// Constant is v everywhere.
func Constant(v float32) Func {
	return func(_, _, _ int, _ float32) float32 { return v }
}

// Sphere is radius minus the distance to center, in lattice units. It is
// positive inside.
func Sphere(center mgl32.Vec3, radius float32) Func {
	return func(x, y, z int, _ float32) float32 {
		p := mgl32.Vec3{float32(x), float32(y), float32(z)}
		return radius - p.Sub(center).Len()
	}
}

// Plane is the signed height above y = level.
func Plane(level float32) Func {
	return func(_, y, _ int, _ float32) float32 { return float32(y) - level }
}

// SingleCell is 1 at the corners of the cell at the origin whose bit is set
// in mask and 0 everywhere else. With isovalue 0.5, the origin cell has
// exactly mask as its configuration.
func SingleCell(mask uint8) Func {
	return func(x, y, z int, _ float32) float32 {
		for i, off := range table.CornerOffsets {
			if mask&(1<<i) != 0 && int(off[0]) == x && int(off[1]) == y && int(off[2]) == z {
				return 1
			}
		}
		return 0
	}
}
