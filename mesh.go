// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package isosurface

import (
	"sync"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/isosurface/internal/kernel"
)

// VertexStride is the size of one interleaved vertex in bytes.
const VertexStride = kernel.FloatsPerVertex * 4

// Vertex is one decoded mesh vertex.
type Vertex struct {
	Position mgl32.Vec3
	Normal   mgl32.Vec3
}

// SubMesh describes the index range drawn as triangles.
type SubMesh struct {
	IndexStart int
	IndexCount int

	// RecalculateBounds is always false: bounds are set by the extractor,
	// never derived from vertex data.
	RecalculateBounds bool
}

// Bounds is an axis-aligned box given by center and full size.
type Bounds struct {
	Center mgl32.Vec3
	Size   mgl32.Vec3
}

// Extents returns the half size.
func (b Bounds) Extents() mgl32.Vec3 { return b.Size.Mul(0.5) }

// Min returns the lower corner.
func (b Bounds) Min() mgl32.Vec3 { return b.Center.Sub(b.Extents()) }

// Max returns the upper corner.
func (b Bounds) Max() mgl32.Vec3 { return b.Center.Add(b.Extents()) }

// Contains reports whether p lies inside b, boundary included.
func (b Bounds) Contains(p mgl32.Vec3) bool {
	lo, hi := b.Min(), b.Max()
	for i := range 3 {
		if p[i] < lo[i] || p[i] > hi[i] {
			return false
		}
	}
	return true
}

// IndexFormat is the element type of the index buffer.
type IndexFormat uint8

// IndexFormatUint32 is the only format the extractor writes.
const IndexFormatUint32 IndexFormat = 1

// String returns the format name.
func (f IndexFormat) String() string {
	if f == IndexFormatUint32 {
		return "uint32"
	}
	return "unknown"
}

// Mesh is the output of an Extractor: a vertex buffer of interleaved
// position and normal, a uint32 index buffer, one submesh spanning the full
// capacity and manually set bounds. Slots past the live triangle count hold
// zeros, which render as degenerate triangles.
//
// The mesh is owned by its Extractor and shared with the renderer by
// reference. Its buffers are rewritten on every Extract.
type Mesh struct {
	// mu is the owning extractor's lock. Extract and Close hold it while
	// they touch the mesh.
	mu *sync.Mutex

	eng      engine
	vertices Buffer
	indices  Buffer
	capacity int
	submesh  SubMesh
	bounds   Bounds
}

func allocateMesh(eng engine, vertexCapacity int, mu *sync.Mutex) *Mesh {
	return &Mesh{
		mu:       mu,
		eng:      eng,
		vertices: eng.vertexBuffer(),
		indices:  eng.indexBuffer(),
		capacity: vertexCapacity,
		submesh:  SubMesh{IndexStart: 0, IndexCount: vertexCapacity},
	}
}

func (m *Mesh) release() error {
	if m == nil || m.eng == nil {
		return nil
	}
	err := m.eng.release()
	m.eng = nil
	m.vertices = nil
	m.indices = nil
	return err
}

func (m *Mesh) released() bool { return m.eng == nil }

// VertexBuffer returns the vertex buffer, a *HALBuffer or *HostBuffer
// depending on the device. It is nil after the extractor is closed.
func (m *Mesh) VertexBuffer() Buffer {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.vertices
}

// IndexBuffer returns the index buffer.
func (m *Mesh) IndexBuffer() Buffer {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.indices
}

// SubMesh returns the single submesh.
func (m *Mesh) SubMesh() SubMesh { return m.submesh }

// Bounds returns the bounds set by the last Extract.
func (m *Mesh) Bounds() Bounds {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bounds
}

// Capacity returns the vertex capacity, three times the triangle budget.
func (m *Mesh) Capacity() int { return m.capacity }

// IndexFormat returns IndexFormatUint32.
func (m *Mesh) IndexFormat() IndexFormat { return IndexFormatUint32 }

// VertexLayout returns the vertex buffer layout for a render pipeline:
// position at location 0 and normal at location 1.
func (m *Mesh) VertexLayout() gputypes.VertexBufferLayout {
	return gputypes.VertexBufferLayout{
		ArrayStride: VertexStride,
		StepMode:    gputypes.VertexStepModeVertex,
		Attributes: []gputypes.VertexAttribute{
			{Format: gputypes.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},
			{Format: gputypes.VertexFormatFloat32x3, Offset: 12, ShaderLocation: 1},
		},
	}
}

// ReadVertices reads the whole vertex buffer back, including the zeroed
// tail. It blocks until the last pass has completed and waits for an
// Extract in progress.
func (m *Mesh) ReadVertices() ([]Vertex, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.released() {
		return nil, ErrReleased
	}
	raw, err := m.eng.readVertices()
	if err != nil {
		return nil, wrapDevice("read vertices", err)
	}
	out := make([]Vertex, len(raw)/kernel.FloatsPerVertex)
	for i := range out {
		f := raw[i*kernel.FloatsPerVertex:]
		out[i] = Vertex{
			Position: mgl32.Vec3{f[0], f[1], f[2]},
			Normal:   mgl32.Vec3{f[3], f[4], f[5]},
		}
	}
	return out, nil
}

// ReadIndices reads the whole index buffer back.
func (m *Mesh) ReadIndices() ([]uint32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.released() {
		return nil, ErrReleased
	}
	idx, err := m.eng.readIndices()
	if err != nil {
		return nil, wrapDevice("read indices", err)
	}
	return idx, nil
}
