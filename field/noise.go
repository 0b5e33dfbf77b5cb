// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package field

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/isosurface"
)

// Noise is an animated fractal value-noise field.
//
// Lattice points are mapped to world space centered on the grid:
// p = (id - (dims-1)/2) * Scale. The domain drifts by Velocity per second,
// so the surface flows through the grid over time.
type Noise struct {
	Seed        uint32
	Scale       float32 // world units per lattice step
	Frequency   float32 // noise cycles per world unit
	Octaves     int
	Persistence float32
	Lacunarity  float32
	Velocity    mgl32.Vec3
}

// DefaultNoise returns the field the demo host animates.
func DefaultNoise() Noise {
	return Noise{
		Seed:        1,
		Scale:       4.0 / 64,
		Frequency:   1.5,
		Octaves:     3,
		Persistence: 0.5,
		Lacunarity:  2,
		Velocity:    mgl32.Vec3{0, 0.3, 0.15},
	}
}

// At evaluates the noise at world position p and time t. The result lies
// in [-1, 1].
func (n Noise) At(p mgl32.Vec3, t float32) float32 {
	q := p.Add(n.Velocity.Mul(t)).Mul(n.Frequency)
	var sum, norm float32
	amp := float32(1)
	for o := range max(n.Octaves, 1) {
		sum += amp * valueNoise(q, n.Seed+uint32(o)*0x9E3779B9) //nolint:gosec // octave count is small
		norm += amp
		amp *= n.Persistence
		q = q.Mul(n.Lacunarity)
	}
	if norm == 0 {
		return 0
	}
	return sum / norm
}

// Func binds the noise to a lattice of dims.
func (n Noise) Func(dims isosurface.Dims) Func {
	center := mgl32.Vec3{float32(dims.X-1) / 2, float32(dims.Y-1) / 2, float32(dims.Z-1) / 2}
	return func(x, y, z int, t float32) float32 {
		p := mgl32.Vec3{float32(x), float32(y), float32(z)}.Sub(center).Mul(n.Scale)
		return n.At(p, t)
	}
}

// Update writes the noise at time t into vol.
func (n Noise) Update(vol isosurface.Volume, t float64) error {
	return n.Func(vol.Dims()).Update(vol, t)
}

// valueNoise interpolates hashed lattice values in [-1, 1] with a quintic
// fade.
func valueNoise(p mgl32.Vec3, seed uint32) float32 {
	fx, fy, fz := math32.Floor(p[0]), math32.Floor(p[1]), math32.Floor(p[2])
	ix, iy, iz := int32(fx), int32(fy), int32(fz)
	u, v, w := fade(p[0]-fx), fade(p[1]-fy), fade(p[2]-fz)

	c := func(dx, dy, dz int32) float32 {
		return lattice(ix+dx, iy+dy, iz+dz, seed)
	}
	x00 := lerp(c(0, 0, 0), c(1, 0, 0), u)
	x10 := lerp(c(0, 1, 0), c(1, 1, 0), u)
	x01 := lerp(c(0, 0, 1), c(1, 0, 1), u)
	x11 := lerp(c(0, 1, 1), c(1, 1, 1), u)
	return lerp(lerp(x00, x10, v), lerp(x01, x11, v), w)
}

func lattice(x, y, z int32, seed uint32) float32 {
	h := seed
	h ^= uint32(x) * 0x8DA6B343 //nolint:gosec // wrapping hash
	h ^= uint32(y) * 0xD8163841 //nolint:gosec // wrapping hash
	h ^= uint32(z) * 0xCB1AB31F //nolint:gosec // wrapping hash
	h ^= h >> 16
	h *= 0x7FEB352D
	h ^= h >> 15
	h *= 0x846CA68B
	h ^= h >> 16
	return float32(h)/float32(1<<31) - 1
}

func fade(t float32) float32 {
	return t * t * t * (t*(t*6-15) + 10)
}

func lerp(a, b, t float32) float32 {
	return a + (b-a)*t
}
