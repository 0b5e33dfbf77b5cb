// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package kernel is the host implementation of the isosurface compute
// kernels. Build and Clear follow build.wgsl and clear.wgsl statement for
// statement, so the software device and the GPU produce the same vertices
// for the same slot assignment.
package kernel

import (
	"sync/atomic"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/isosurface/table"
)

// Vertex layout: position.xyz followed by normal.xyz.
const (
	FloatsPerVertex     = 6
	VerticesPerTriangle = 3
	FloatsPerTriangle   = FloatsPerVertex * VerticesPerTriangle
)

// Buffers are the storage bindings of both kernels.
type Buffers struct {
	Table    *[table.Entries]uint64
	Voxels   []float32
	Vertices []float32
	Indices  []uint32
	Counter  *atomic.Uint32
}

func (b *Buffers) sample(p *Params, x, y, z uint32) float32 {
	return b.Voxels[x+y*p.Dims[0]+z*p.Dims[0]*p.Dims[1]]
}

// gradient is the central difference at a lattice point, one-sided on the
// border.
func (b *Buffers) gradient(p *Params, x, y, z uint32) mgl32.Vec3 {
	xm, ym, zm := x-min(x, 1), y-min(y, 1), z-min(z, 1)
	xp, yp, zp := min(x+1, p.Dims[0]-1), min(y+1, p.Dims[1]-1), min(z+1, p.Dims[2]-1)
	return mgl32.Vec3{
		b.sample(p, xp, y, z) - b.sample(p, xm, y, z),
		b.sample(p, x, yp, z) - b.sample(p, x, ym, z),
		b.sample(p, x, y, zp) - b.sample(p, x, y, zm),
	}
}

func safeNormalize(v mgl32.Vec3) mgl32.Vec3 {
	l := math32.Sqrt(v.Dot(v))
	if l == 0 {
		return mgl32.Vec3{}
	}
	return v.Mul(1 / l)
}

// Build runs one build thread for the cell whose lowest corner is (x, y, z).
func Build(b *Buffers, p *Params, x, y, z uint32) {
	if x+1 >= p.Dims[0] || y+1 >= p.Dims[1] || z+1 >= p.Dims[2] {
		return
	}

	var (
		values [8]float32
		points [8][3]uint32
		mask   uint32
	)
	for i := range 8 {
		o := table.CornerOffsets[i]
		points[i] = [3]uint32{x + o[0], y + o[1], z + o[2]}
		values[i] = b.sample(p, points[i][0], points[i][1], points[i][2])
		if values[i] >= p.Isovalue {
			mask |= 1 << i
		}
	}
	if mask == 0 || mask == 0xFF {
		return
	}

	entry := b.Table[mask]
	var count uint32
	for count < table.MaxTriangles && entry>>(12*count)&0xF != table.Terminator {
		count++
	}

	first := b.Counter.Add(count) - count
	center := mgl32.Vec3{
		float32(p.Dims[0]-1) * 0.5,
		float32(p.Dims[1]-1) * 0.5,
		float32(p.Dims[2]-1) * 0.5,
	}

	for tri := range count {
		slot := first + tri
		if slot >= p.MaxTriangle {
			return
		}
		for k := range uint32(VerticesPerTriangle) {
			e := entry >> (4 * (3*tri + k)) & 0xF
			c := table.EdgeCorners[e]
			a, bc := points[c[0]], points[c[1]]
			va, vb := values[c[0]], values[c[1]]
			t := (p.Isovalue - va) / (vb - va)

			pa := mgl32.Vec3{float32(a[0]), float32(a[1]), float32(a[2])}
			pb := mgl32.Vec3{float32(bc[0]), float32(bc[1]), float32(bc[2])}
			pos := pa.Add(pb.Sub(pa).Mul(t)).Sub(center).Mul(p.Scale)

			ga := b.gradient(p, a[0], a[1], a[2])
			gb := b.gradient(p, bc[0], bc[1], bc[2])
			n := safeNormalize(ga.Add(gb.Sub(ga).Mul(t)).Mul(-1))

			v := slot*VerticesPerTriangle + k
			out := b.Vertices[v*FloatsPerVertex : (v+1)*FloatsPerVertex]
			out[0], out[1], out[2] = pos[0], pos[1], pos[2]
			out[3], out[4], out[5] = n[0], n[1], n[2]
			b.Indices[v] = v
		}
	}
}

// Clear runs one clear thread. Thread id zeroes every triangle slot from
// the live count upward in steps of the grid stride.
func Clear(b *Buffers, p *Params, id uint32) {
	if id >= p.ClearStride {
		return
	}
	live := min(b.Counter.Load(), p.MaxTriangle)
	for tri := live + id; tri < p.MaxTriangle; tri += p.ClearStride {
		clear(b.Vertices[tri*FloatsPerTriangle : (tri+1)*FloatsPerTriangle])
		clear(b.Indices[tri*VerticesPerTriangle : (tri+1)*VerticesPerTriangle])
	}
}

// BuildGroup runs all threads of one build workgroup. group is the
// flattened workgroup id over groups.
func BuildGroup(b *Buffers, p *Params, groups [3]uint32, group int) {
	g := uint32(group)
	gx := g % groups[0]
	gy := g / groups[0] % groups[1]
	gz := g / (groups[0] * groups[1])
	for lz := range uint32(BuildWorkgroupSize) {
		for ly := range uint32(BuildWorkgroupSize) {
			for lx := range uint32(BuildWorkgroupSize) {
				Build(b, p,
					gx*BuildWorkgroupSize+lx,
					gy*BuildWorkgroupSize+ly,
					gz*BuildWorkgroupSize+lz)
			}
		}
	}
}

// ClearGroup runs all threads of one clear workgroup.
func ClearGroup(b *Buffers, p *Params, group int) {
	base := uint32(group) * ClearWorkgroupSize
	for l := range uint32(ClearWorkgroupSize) {
		Clear(b, p, base+l)
	}
}
