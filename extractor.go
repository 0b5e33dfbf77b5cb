// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package isosurface

import (
	"fmt"
	"math"
	"sync"

	"github.com/gogpu/isosurface/internal/kernel"
)

// MaxBudget is the largest triangle budget whose vertex storage stays
// addressable with 32-bit float offsets.
const MaxBudget = math.MaxUint32 / kernel.FloatsPerTriangle

// Extractor turns a scalar volume into a triangle mesh once per frame.
//
// Each Extract resets the emission counter, runs the build kernel over every
// cell and the clear kernel over the unused tail of the buffers, all as one
// ordered submission. The host never waits for completion inside Extract.
//
// An Extractor is meant to be driven from a single goroutine. Concurrent
// calls are serialized.
type Extractor struct {
	mu sync.Mutex

	dev          Device
	dims         Dims
	budget       int
	clearThreads int
	label        string

	eng        engine
	mesh       *Mesh
	frames     uint64
	terminated error
	closed     bool
}

// New allocates the lookup table, counter, vertex and index buffers for a
// lattice of dims and a budget of triangles per pass.
func New(dev Device, dims Dims, budget int, opts ...Option) (*Extractor, error) {
	if dev == nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, ErrNilDevice)
	}
	if err := dims.Validate(); err != nil {
		return nil, err
	}
	if budget <= 0 {
		return nil, &ConfigError{Field: "budget", Value: budget, Reason: "must be positive"}
	}
	if budget > MaxBudget {
		return nil, &ConfigError{Field: "budget", Value: budget, Reason: fmt.Sprintf("exceeds %d", MaxBudget)}
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.validate(); err != nil {
		return nil, err
	}
	clearThreads := min(o.clearThreads, budget)

	eng, err := dev.newEngine(engineConfig{
		budget:       uint32(budget), //nolint:gosec // bounded by MaxBudget
		fenceTimeout: o.fenceTimeout,
		label:        o.label,
	})
	if err != nil {
		return nil, err
	}

	e := &Extractor{
		dev:          dev,
		dims:         dims,
		budget:       budget,
		clearThreads: clearThreads,
		label:        o.label,
		eng:          eng,
	}
	e.mesh = allocateMesh(eng, budget*kernel.VerticesPerTriangle, &e.mu)
	Logger().Info("isosurface: extractor created",
		"device", dev.Name(), "dims", dims.String(), "budget", budget, "clear_threads", clearThreads)
	return e, nil
}

// Extract builds the isosurface of vol at isovalue into the mesh and sets
// its bounds to a box of size dims*scale centered at the origin. It returns
// the same *Mesh on every call.
//
// Triangles beyond the budget are dropped silently. A device failure
// returns ErrDeviceFailure and terminates the extractor; later calls return
// ErrSessionTerminated.
func (e *Extractor) Extract(vol Volume, isovalue, scale float32) (*Mesh, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, ErrReleased
	}
	if e.terminated != nil {
		return nil, fmt.Errorf("%w: %w", ErrSessionTerminated, e.terminated)
	}
	if err := e.checkVolume(vol); err != nil {
		return nil, err
	}
	if !finite(isovalue) {
		return nil, &ConfigError{Field: "isovalue", Value: isovalue, Reason: "must be finite"}
	}
	if !finite(scale) {
		return nil, &ConfigError{Field: "scale", Value: scale, Reason: "must be finite"}
	}

	if err := e.run(vol, isovalue, scale); err != nil {
		e.terminated = err
		Logger().Warn("isosurface: extraction session terminated",
			"label", e.label, "frame", e.frames, "err", err)
		return nil, err
	}

	e.mesh.bounds = Bounds{Size: e.dims.Vec3().Mul(scale)}
	e.frames++
	return e.mesh, nil
}

func (e *Extractor) checkVolume(vol Volume) error {
	if vol == nil {
		return ErrNilVolume
	}
	if vol.Device() != e.dev {
		return ErrForeignVolume
	}
	if vol.Dims() != e.dims {
		return fmt.Errorf("%w: volume %s, extractor %s", ErrVolumeMismatch, vol.Dims(), e.dims)
	}
	if vol.isReleased() {
		return fmt.Errorf("%w: volume", ErrReleased)
	}
	return nil
}

func (e *Extractor) run(vol Volume, isovalue, scale float32) error {
	s, err := e.eng.begin(kernel.Params{
		Dims:        e.dims.uint32s(),
		MaxTriangle: uint32(e.budget), //nolint:gosec // bounded by MaxBudget
		Isovalue:    isovalue,
		Scale:       scale,
		ClearStride: uint32(e.clearThreads), //nolint:gosec // bounded by budget
	})
	if err != nil {
		return wrapDevice("begin pass", err)
	}
	steps := []struct {
		op string
		fn func() error
	}{
		{"reset counter", s.resetCounter},
		{"dispatch build", func() error { return s.dispatchBuild(vol) }},
		{"dispatch clear", s.dispatchClear},
		{"submit", s.submit},
	}
	for _, step := range steps {
		if err := step.fn(); err != nil {
			s.discard()
			return wrapDevice(step.op, err)
		}
	}
	return nil
}

func finite(f float32) bool {
	return !math.IsNaN(float64(f)) && !math.IsInf(float64(f), 0)
}

// Mesh returns the output mesh, or nil after Close.
func (e *Extractor) Mesh() *Mesh {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	return e.mesh
}

// Dims returns the lattice extent.
func (e *Extractor) Dims() Dims { return e.dims }

// Budget returns the triangle budget.
func (e *Extractor) Budget() int { return e.budget }

// ClearThreads returns the thread count of the clear pass.
func (e *Extractor) ClearThreads() int { return e.clearThreads }

// Frame returns the number of successful extractions.
func (e *Extractor) Frame() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.frames
}

// Counter reads back the raw emission counter of the last pass. It may
// exceed the budget. The call blocks until the pass has completed.
func (e *Extractor) Counter() (uint32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return 0, ErrReleased
	}
	n, err := e.eng.readCounter()
	if err != nil {
		return 0, wrapDevice("read counter", err)
	}
	return n, nil
}

// LiveTriangles returns min(counter, budget), the number of triangles the
// mesh holds after the last pass.
func (e *Extractor) LiveTriangles() (int, error) {
	n, err := e.Counter()
	if err != nil {
		return 0, err
	}
	return min(int(n), e.budget), nil
}

// Close releases the table, counter, vertex and index buffers. The mesh
// becomes unusable. It is safe to call more than once.
func (e *Extractor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	err := e.mesh.release()
	if err != nil {
		Logger().Warn("isosurface: release failed", "label", e.label, "err", err)
	}
	Logger().Debug("isosurface: extractor closed", "label", e.label, "frames", e.frames)
	return err
}
