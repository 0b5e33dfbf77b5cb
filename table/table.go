// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package table provides the Marching Cubes triangle table.
//
// The table has one entry per corner configuration of a cube cell. A
// configuration is an 8-bit mask where bit i is set when corner i is inside
// the surface (its value is greater than or equal to the isovalue). Each
// entry packs up to 15 edge indices (five triangles) as 4-bit nibbles, low
// nibble first, terminated by 0xF.
//
// Corner numbering (x, y, z offsets from the cell origin):
//
//	0 (0,0,0)  1 (1,0,0)  2 (1,1,0)  3 (0,1,0)
//	4 (0,0,1)  5 (1,0,1)  6 (1,1,1)  7 (0,1,1)
//
// Edge e joins EdgeCorners[e][0] and EdgeCorners[e][1]; the first corner is
// always the one closer to the lattice origin, so two cells sharing an edge
// interpolate it in the same direction.
//
// Triangles wind counter-clockwise when seen from the outside, the side where
// the field is below the isovalue.
package table

import "encoding/binary"

const (
	// Entries is the number of table entries, one per corner mask.
	Entries = 256

	// MaxTriangles is the largest number of triangles a single cell emits.
	MaxTriangles = 5

	// Terminator marks the end of an entry's edge list.
	Terminator = 0xF

	// EntrySize is the size of one packed entry in bytes.
	EntrySize = 8
)

// CornerOffsets holds the lattice offset of each cube corner.
var CornerOffsets = [8][3]uint32{
	{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0},
	{0, 0, 1}, {1, 0, 1}, {1, 1, 1}, {0, 1, 1},
}

// EdgeCorners holds the two corners joined by each cube edge, ordered from
// the lower lattice point to the higher one.
var EdgeCorners = [12][2]uint8{
	{0, 1}, {1, 2}, {3, 2}, {0, 3},
	{4, 5}, {5, 6}, {7, 6}, {4, 7},
	{0, 4}, {1, 5}, {2, 6}, {3, 7},
}

var triangles = generate()

// Triangles returns a copy of the packed table.
func Triangles() [Entries]uint64 {
	return triangles
}

// Entry returns the packed entry for a corner mask.
func Entry(mask uint8) uint64 {
	return triangles[mask]
}

// Edges returns the edge list for a corner mask, three edges per triangle.
func Edges(mask uint8) []uint8 {
	entry := triangles[mask]
	edges := make([]uint8, 0, 3*MaxTriangles)
	for i := range 3 * MaxTriangles {
		e := uint8(entry >> (4 * i) & 0xF)
		if e == Terminator {
			break
		}
		edges = append(edges, e)
	}
	return edges
}

// TriangleCount returns the number of triangles emitted for a corner mask.
func TriangleCount(mask uint8) int {
	entry := triangles[mask]
	n := 0
	for i := 0; i < 3*MaxTriangles; i += 3 {
		if entry>>(4*i)&0xF == Terminator {
			break
		}
		n++
	}
	return n
}

// Bytes returns the table serialized for GPU upload: 256 little-endian
// uint64 values, readable in WGSL as array<vec2<u32>> (low word first).
func Bytes() []byte {
	buf := make([]byte, Entries*EntrySize)
	for i, entry := range triangles {
		binary.LittleEndian.PutUint64(buf[i*EntrySize:], entry)
	}
	return buf
}
