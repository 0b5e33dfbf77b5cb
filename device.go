// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package isosurface

import (
	"time"

	"github.com/gogpu/isosurface/internal/kernel"
)

// Device executes the build and clear kernels and owns the buffers they
// write. Two implementations exist: the GPU device (OpenGPUDevice,
// NewGPUDevice, NewGPUDeviceFromProvider) and the software device
// (NewSoftwareDevice). Neither falls back to the other.
type Device interface {
	// Name describes the device for logs.
	Name() string

	// NewVolume allocates a voxel volume the device's extractors can read.
	NewVolume(dims Dims) (Volume, error)

	// Close releases the device. Extractors and volumes created from it
	// must be closed first.
	Close() error

	newEngine(cfg engineConfig) (engine, error)
}

// Buffer is a device buffer exposed to the renderer.
type Buffer interface {
	Label() string
	Size() uint64
}

type engineConfig struct {
	budget       uint32
	fenceTimeout time.Duration
	label        string
}

// engine is the per-extractor device state: table, counter, vertex and
// index storage.
type engine interface {
	vertexBuffer() Buffer
	indexBuffer() Buffer

	// begin opens the ordered command stream of one pass.
	begin(p kernel.Params) (stream, error)

	readCounter() (uint32, error)
	readVertices() ([]float32, error)
	readIndices() ([]uint32, error)

	release() error
}

// stream records one extraction pass. Commands execute in recording order;
// submit does not wait for completion.
type stream interface {
	resetCounter() error
	dispatchBuild(vol Volume) error
	dispatchClear() error
	submit() error
	discard()
}
