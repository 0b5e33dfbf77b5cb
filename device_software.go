// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package isosurface

import (
	"fmt"
	"sync/atomic"

	"github.com/gogpu/isosurface/internal/kernel"
	"github.com/gogpu/isosurface/internal/parallel"
	"github.com/gogpu/isosurface/table"
)

// SoftwareDevice runs the kernels on a goroutine pool against host memory.
// It produces the same geometry as the GPU kernels and serves headless
// hosts and tests. With one worker, extraction is fully deterministic.
type SoftwareDevice struct {
	pool   *parallel.Pool
	closed atomic.Bool
}

// NewSoftwareDevice creates a software device with the given number of
// workers. Zero or negative uses GOMAXPROCS.
func NewSoftwareDevice(workers int) *SoftwareDevice {
	d := &SoftwareDevice{pool: parallel.New(workers)}
	Logger().Info("isosurface: software device created", "workers", d.pool.Workers())
	return d
}

// Name describes the device.
func (d *SoftwareDevice) Name() string {
	return fmt.Sprintf("software (%d workers)", d.pool.Workers())
}

// Workers returns the pool size.
func (d *SoftwareDevice) Workers() int { return d.pool.Workers() }

// NewVolume allocates a zeroed HostVolume.
func (d *SoftwareDevice) NewVolume(dims Dims) (Volume, error) {
	return d.NewHostVolume(dims)
}

// NewHostVolume allocates a zeroed HostVolume.
func (d *SoftwareDevice) NewHostVolume(dims Dims) (*HostVolume, error) {
	if d.closed.Load() {
		return nil, ErrReleased
	}
	if err := dims.Validate(); err != nil {
		return nil, err
	}
	return &HostVolume{dev: d, dims: dims, values: make([]float32, dims.Voxels())}, nil
}

// Close stops the worker pool. It is safe to call more than once.
func (d *SoftwareDevice) Close() error {
	if d.closed.Swap(true) {
		return nil
	}
	d.pool.Close()
	return nil
}

// HostBuffer is a Buffer in host memory. Vertex buffers hold float32
// data, index buffers uint32 data.
type HostBuffer struct {
	label  string
	floats []float32
	uints  []uint32
}

// Label returns the debug label.
func (b *HostBuffer) Label() string { return b.label }

// Size returns the size in bytes.
func (b *HostBuffer) Size() uint64 { return uint64(len(b.floats)+len(b.uints)) * 4 }

// Float32s returns the vertex data, or nil for an index buffer.
func (b *HostBuffer) Float32s() []float32 { return b.floats }

// Uint32s returns the index data, or nil for a vertex buffer.
func (b *HostBuffer) Uint32s() []uint32 { return b.uints }

type softwareEngine struct {
	dev      *SoftwareDevice
	table    [table.Entries]uint64
	counter  atomic.Uint32
	vertices *HostBuffer
	indices  *HostBuffer
}

func (d *SoftwareDevice) newEngine(cfg engineConfig) (engine, error) {
	if d.closed.Load() {
		return nil, ErrReleased
	}
	e := &softwareEngine{
		dev:   d,
		table: table.Triangles(),
		vertices: &HostBuffer{
			label:  cfg.label + "_vertices",
			floats: make([]float32, int(cfg.budget)*kernel.FloatsPerTriangle),
		},
		indices: &HostBuffer{
			label: cfg.label + "_indices",
			uints: make([]uint32, int(cfg.budget)*kernel.VerticesPerTriangle),
		},
	}
	return e, nil
}

func (e *softwareEngine) vertexBuffer() Buffer { return e.vertices }
func (e *softwareEngine) indexBuffer() Buffer  { return e.indices }

func (e *softwareEngine) buffers(voxels []float32) *kernel.Buffers {
	return &kernel.Buffers{
		Table:    &e.table,
		Voxels:   voxels,
		Vertices: e.vertices.floats,
		Indices:  e.indices.uints,
		Counter:  &e.counter,
	}
}

func (e *softwareEngine) begin(p kernel.Params) (stream, error) {
	if e.dev.closed.Load() {
		return nil, ErrReleased
	}
	return &softwareStream{e: e, params: p}, nil
}

func (e *softwareEngine) readCounter() (uint32, error) {
	return e.counter.Load(), nil
}

func (e *softwareEngine) readVertices() ([]float32, error) {
	return append([]float32(nil), e.vertices.floats...), nil
}

func (e *softwareEngine) readIndices() ([]uint32, error) {
	return append([]uint32(nil), e.indices.uints...), nil
}

func (e *softwareEngine) release() error {
	e.vertices.floats = nil
	e.indices.uints = nil
	return nil
}

// softwareStream records commands and runs them in order on submit. Each
// dispatch joins before the next command starts.
type softwareStream struct {
	e        *softwareEngine
	params   kernel.Params
	commands []func() error
}

func (s *softwareStream) resetCounter() error {
	s.commands = append(s.commands, func() error {
		s.e.counter.Store(0)
		return nil
	})
	return nil
}

func (s *softwareStream) dispatchBuild(vol Volume) error {
	hv, ok := vol.(*HostVolume)
	if !ok {
		return fmt.Errorf("%w: %T", ErrForeignVolume, vol)
	}
	s.commands = append(s.commands, func() error {
		b := s.e.buffers(hv.values)
		groups := kernel.BuildGroups(s.params.Dims)
		n := int(groups[0]) * int(groups[1]) * int(groups[2])
		return s.e.dev.pool.Dispatch(n, func(g int) {
			kernel.BuildGroup(b, &s.params, groups, g)
		})
	})
	return nil
}

func (s *softwareStream) dispatchClear() error {
	s.commands = append(s.commands, func() error {
		b := s.e.buffers(nil)
		n := int(kernel.ClearGroups(s.params.ClearStride))
		return s.e.dev.pool.Dispatch(n, func(g int) {
			kernel.ClearGroup(b, &s.params, g)
		})
	})
	return nil
}

func (s *softwareStream) submit() error {
	for _, cmd := range s.commands {
		if err := cmd(); err != nil {
			return err
		}
	}
	s.commands = nil
	return nil
}

func (s *softwareStream) discard() {
	s.commands = nil
}
