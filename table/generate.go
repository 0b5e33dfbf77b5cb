// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package table

// faces lists the corners of each cube face counter-clockwise as seen from
// outside the cube.
var faces = [6][4]uint8{
	{0, 3, 2, 1}, // z = 0
	{4, 5, 6, 7}, // z = 1
	{0, 1, 5, 4}, // y = 0
	{3, 7, 6, 2}, // y = 1
	{0, 4, 7, 3}, // x = 0
	{1, 2, 6, 5}, // x = 1
}

// edgeBetween returns the edge joining corners a and b, or -1.
func edgeBetween(a, b uint8) int {
	for e, c := range EdgeCorners {
		if (c[0] == a && c[1] == b) || (c[0] == b && c[1] == a) {
			return e
		}
	}
	return -1
}

// generate builds the table from the cube topology.
//
// On every face, walking the boundary counter-clockwise, each edge that
// enters the inside region is linked to the next edge that leaves it. The
// links form closed loops of crossing edges and each loop is split into
// triangles. Linking an entering edge to the nearest exit always cuts inside
// corners apart on faces with two diagonal inside corners, and the neighbor
// cell sharing that face makes the same cut.
//
// The only triangle edges that may lie on a face are the loop segments the
// neighbor cell also produces. Diagonals are kept off the faces, otherwise
// two cells would both place a triangle edge across the same face.
func generate() [Entries]uint64 {
	var out [Entries]uint64
	for mask := range Entries {
		out[mask] = pack(loops(uint8(mask)))
	}
	return out
}

func inside(mask, corner uint8) bool {
	return mask&(1<<corner) != 0
}

// loops returns the closed contours of crossing edges for a mask.
func loops(mask uint8) [][]uint8 {
	var next [12]int
	for i := range next {
		next[i] = -1
	}

	for _, f := range faces {
		for k := range 4 {
			a, b := f[k], f[(k+1)%4]
			if inside(mask, a) || !inside(mask, b) {
				continue
			}
			enter := edgeBetween(a, b)
			for j := 1; j < 4; j++ {
				c, d := f[(k+j)%4], f[(k+j+1)%4]
				if inside(mask, c) && !inside(mask, d) {
					next[enter] = edgeBetween(c, d)
					break
				}
			}
		}
	}

	var (
		result  [][]uint8
		visited [12]bool
	)
	for start := range 12 {
		if next[start] < 0 || visited[start] {
			continue
		}
		var loop []uint8
		for e := start; !visited[e]; e = next[e] {
			visited[e] = true
			loop = append(loop, uint8(e))
		}
		result = append(result, loop)
	}
	return result
}

// onFace reports whether edges a and b lie on a common cube face.
func onFace(a, b uint8) bool {
	for _, f := range faces {
		if faceHasEdge(f, a) && faceHasEdge(f, b) {
			return true
		}
	}
	return false
}

func faceHasEdge(f [4]uint8, e uint8) bool {
	c := EdgeCorners[e]
	for k := range 4 {
		a, b := f[k], f[(k+1)%4]
		if (a == c[0] && b == c[1]) || (a == c[1] && b == c[0]) {
			return true
		}
	}
	return false
}

// triangulate splits a loop into len(loop)-2 triangles that keep the loop's
// winding, choosing the split with the fewest diagonals on a cube face.
func triangulate(loop []uint8) [][3]uint8 {
	_, tris := split(loop, 0, len(loop)-1)
	return tris
}

// split triangulates the sub-polygon loop[i..j] closed by the segment (i, j)
// and returns the number of on-face diagonals it uses.
func split(loop []uint8, i, j int) (int, [][3]uint8) {
	if j-i < 2 {
		return 0, nil
	}
	best := -1
	var tris [][3]uint8
	for k := i + 1; k < j; k++ {
		cost := 0
		if k-i > 1 && onFace(loop[i], loop[k]) {
			cost++
		}
		if j-k > 1 && onFace(loop[k], loop[j]) {
			cost++
		}
		lc, lt := split(loop, i, k)
		rc, rt := split(loop, k, j)
		cost += lc + rc
		if best >= 0 && cost >= best {
			continue
		}
		best = cost
		tris = append(append(append([][3]uint8(nil), lt...), [3]uint8{loop[i], loop[k], loop[j]}), rt...)
	}
	return best, tris
}

// pack triangulates each loop and packs the edges into nibbles.
func pack(loops [][]uint8) uint64 {
	entry := ^uint64(0)
	n := 0
	put := func(e uint8) {
		shift := 4 * n
		entry &^= 0xF << shift
		entry |= uint64(e) << shift
		n++
	}
	for _, loop := range loops {
		for _, tri := range triangulate(loop) {
			put(tri[0])
			put(tri[1])
			put(tri[2])
		}
	}
	return entry
}
