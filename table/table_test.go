// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package table

import (
	"encoding/binary"
	"testing"
)

func crossing(mask uint8, e uint8) bool {
	c := EdgeCorners[e]
	return inside(mask, c[0]) != inside(mask, c[1])
}

func TestTableTrivialMasks(t *testing.T) {
	for _, mask := range []uint8{0x00, 0xFF} {
		if n := TriangleCount(mask); n != 0 {
			t.Errorf("mask %#02x: got %d triangles, want 0", mask, n)
		}
		if Entry(mask) != ^uint64(0) {
			t.Errorf("mask %#02x: entry %#016x, want all terminators", mask, Entry(mask))
		}
	}
}

func TestTableEdgesAreCrossing(t *testing.T) {
	for m := range Entries {
		mask := uint8(m)
		edges := Edges(mask)
		if len(edges)%3 != 0 {
			t.Fatalf("mask %#02x: %d edges is not a multiple of 3", mask, len(edges))
		}
		if len(edges)/3 != TriangleCount(mask) {
			t.Errorf("mask %#02x: Edges and TriangleCount disagree", mask)
		}
		if TriangleCount(mask) > MaxTriangles {
			t.Errorf("mask %#02x: %d triangles exceeds %d", mask, TriangleCount(mask), MaxTriangles)
		}

		used := make(map[uint8]bool)
		for _, e := range edges {
			if e >= 12 {
				t.Fatalf("mask %#02x: edge %d out of range", mask, e)
			}
			if !crossing(mask, e) {
				t.Errorf("mask %#02x: edge %d does not cross the surface", mask, e)
			}
			used[e] = true
		}
		for e := range uint8(12) {
			if crossing(mask, e) && !used[e] {
				t.Errorf("mask %#02x: crossing edge %d unused", mask, e)
			}
		}
	}
}

func TestTableComplementSharesEdges(t *testing.T) {
	for m := range Entries {
		mask := uint8(m)
		a := make(map[uint8]bool)
		for _, e := range Edges(mask) {
			a[e] = true
		}
		b := make(map[uint8]bool)
		for _, e := range Edges(^mask) {
			b[e] = true
		}
		if len(a) != len(b) {
			t.Errorf("mask %#02x: %d edges, complement uses %d", mask, len(a), len(b))
			continue
		}
		for e := range a {
			if !b[e] {
				t.Errorf("mask %#02x: edge %d missing from complement", mask, e)
			}
		}
	}
}

// Every segment inside the cell is shared by two triangles with opposite
// orientation; segments used once lie on a cube face.
func TestTableClosedWithinCell(t *testing.T) {
	type seg struct{ a, b uint8 }
	for m := range Entries {
		mask := uint8(m)
		edges := Edges(mask)
		count := make(map[seg]int)
		for i := 0; i < len(edges); i += 3 {
			tri := edges[i : i+3]
			for k := range 3 {
				count[seg{tri[k], tri[(k+1)%3]}]++
			}
		}
		for s, n := range count {
			rev := count[seg{s.b, s.a}]
			switch {
			case n > 1:
				t.Errorf("mask %#02x: segment %v used %d times in one direction", mask, s, n)
			case rev == 0 && !onFace(s.a, s.b):
				t.Errorf("mask %#02x: open segment %v is not on a face", mask, s)
			}
		}
	}
}

// A segment two triangles of one cell share must cross the cell's interior.
// On a face it would meet the neighbor cell's triangles there as well.
func TestTableDiagonalsOffFaces(t *testing.T) {
	type seg struct{ a, b uint8 }
	for m := range Entries {
		mask := uint8(m)
		edges := Edges(mask)
		count := make(map[seg]int)
		for i := 0; i < len(edges); i += 3 {
			tri := edges[i : i+3]
			for k := range 3 {
				a, b := tri[k], tri[(k+1)%3]
				if a > b {
					a, b = b, a
				}
				count[seg{a, b}]++
			}
		}
		for s, n := range count {
			if n == 2 && onFace(s.a, s.b) {
				t.Errorf("mask %08b: diagonal %v lies on a cube face", mask, [2]uint8{s.a, s.b})
			}
		}
	}
}

func TestTriangulateKeepsLoopWinding(t *testing.T) {
	loop := []uint8{0, 1, 2, 3, 4, 5, 6}
	tris := triangulate(loop)
	if len(tris) != len(loop)-2 {
		t.Fatalf("got %d triangles, want %d", len(tris), len(loop)-2)
	}
	for _, tri := range tris {
		if !(tri[0] < tri[1] && tri[1] < tri[2]) {
			t.Errorf("triangle %v does not follow the loop order", tri)
		}
	}
}

func TestTableWinding(t *testing.T) {
	mid := func(e uint8) [3]float32 {
		c := EdgeCorners[e]
		a, b := CornerOffsets[c[0]], CornerOffsets[c[1]]
		return [3]float32{
			float32(a[0]+b[0]) / 2,
			float32(a[1]+b[1]) / 2,
			float32(a[2]+b[2]) / 2,
		}
	}
	sub := func(a, b [3]float32) [3]float32 { return [3]float32{a[0] - b[0], a[1] - b[1], a[2] - b[2]} }
	cross := func(a, b [3]float32) [3]float32 {
		return [3]float32{a[1]*b[2] - a[2]*b[1], a[2]*b[0] - a[0]*b[2], a[0]*b[1] - a[1]*b[0]}
	}
	dot := func(a, b [3]float32) float32 { return a[0]*b[0] + a[1]*b[1] + a[2]*b[2] }

	for corner := range uint8(8) {
		single := uint8(1) << corner
		for _, mask := range []uint8{single, ^single} {
			edges := Edges(mask)
			if len(edges) != 3 {
				t.Fatalf("mask %#02x: got %d edges, want 3", mask, len(edges))
			}
			p0, p1, p2 := mid(edges[0]), mid(edges[1]), mid(edges[2])
			n := cross(sub(p1, p0), sub(p2, p0))

			o := CornerOffsets[corner]
			toCorner := sub([3]float32{float32(o[0]), float32(o[1]), float32(o[2])}, p0)
			d := dot(n, toCorner)
			if mask == single && d >= 0 {
				t.Errorf("mask %#02x: normal points at the inside corner", mask)
			}
			if mask != single && d <= 0 {
				t.Errorf("mask %#02x: normal points away from the outside corner", mask)
			}
		}
	}
}

func TestTableKnownCounts(t *testing.T) {
	tests := []struct {
		name string
		mask uint8
		want int
	}{
		{"single corner", 0x01, 1},
		{"edge pair", 0x03, 2},
		{"face", 0x0F, 2},
		{"face diagonal", 0x05, 2},
		{"body diagonal", 0x41, 2},
		{"three on a face", 0x07, 3},
		{"all but one", 0xFE, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TriangleCount(tt.mask); got != tt.want {
				t.Errorf("TriangleCount(%#02x) = %d, want %d", tt.mask, got, tt.want)
			}
		})
	}
}

func TestBytesLayout(t *testing.T) {
	b := Bytes()
	if len(b) != Entries*EntrySize {
		t.Fatalf("len(Bytes()) = %d, want %d", len(b), Entries*EntrySize)
	}
	tri := Triangles()
	for i := range Entries {
		lo := binary.LittleEndian.Uint32(b[i*8:])
		hi := binary.LittleEndian.Uint32(b[i*8+4:])
		if uint64(lo)|uint64(hi)<<32 != tri[i] {
			t.Fatalf("entry %d: words (%#x, %#x) do not match %#x", i, lo, hi, tri[i])
		}
	}
}

func TestTrianglesIsCopy(t *testing.T) {
	tri := Triangles()
	tri[1] = 0
	if Entry(1) == 0 {
		t.Error("mutating the returned array changed the table")
	}
}
