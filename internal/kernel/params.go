// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package kernel

import (
	"encoding/binary"
	"math"
)

// Workgroup sizes. They match @workgroup_size in build.wgsl and clear.wgsl.
const (
	BuildWorkgroupSize = 4
	ClearWorkgroupSize = 64
)

// ParamsSize is the byte size of the Params uniform block.
const ParamsSize = 32

// Params holds the per-pass constants shared by both kernels.
//
// The layout matches the WGSL Params struct:
//
//	dims: vec3<u32>      offset 0
//	max_triangle: u32    offset 12
//	isovalue: f32        offset 16
//	scale: f32           offset 20
//	clear_stride: u32    offset 24
//	_pad: u32            offset 28
type Params struct {
	Dims        [3]uint32
	MaxTriangle uint32
	Isovalue    float32
	Scale       float32
	ClearStride uint32
}

// Bytes serializes the parameters in little-endian uniform layout.
func (p Params) Bytes() []byte {
	buf := make([]byte, ParamsSize)
	le := binary.LittleEndian
	le.PutUint32(buf[0:4], p.Dims[0])
	le.PutUint32(buf[4:8], p.Dims[1])
	le.PutUint32(buf[8:12], p.Dims[2])
	le.PutUint32(buf[12:16], p.MaxTriangle)
	le.PutUint32(buf[16:20], math.Float32bits(p.Isovalue))
	le.PutUint32(buf[20:24], math.Float32bits(p.Scale))
	le.PutUint32(buf[24:28], p.ClearStride)
	return buf
}

// BuildGroups returns the build dispatch size. Threads cover every lattice
// point; those on the last layer of an axis have no cell and exit.
func BuildGroups(dims [3]uint32) [3]uint32 {
	var g [3]uint32
	for i, d := range dims {
		g[i] = (d + BuildWorkgroupSize - 1) / BuildWorkgroupSize
	}
	return g
}

// ClearGroups returns the clear dispatch size for a grid stride.
func ClearGroups(stride uint32) uint32 {
	return (stride + ClearWorkgroupSize - 1) / ClearWorkgroupSize
}
