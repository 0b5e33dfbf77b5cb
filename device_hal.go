// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

//go:build !nogpu

package isosurface

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/isosurface/internal/gpu"
	"github.com/gogpu/isosurface/internal/kernel"
)

func init() {
	registerLoggerHook(gpu.SetLogger)
}

// MemoryStats reports the buffer memory of a GPUDevice.
type MemoryStats = gpu.MemoryStats

// ErrMemoryBudgetExceeded is returned, wrapped in ErrDeviceFailure, when an
// allocation would exceed the budget set with SetMemoryBudget.
var ErrMemoryBudgetExceeded = gpu.ErrMemoryBudgetExceeded

// GPUDevice runs the kernels as WGSL compute pipelines on a gogpu/wgpu HAL
// device.
type GPUDevice struct {
	mu         sync.Mutex
	dispatcher *gpu.Dispatcher
	opened     *gpu.OpenedDevice // nil for a caller-owned device
	name       string
	closed     bool
}

// OpenGPUDevice opens a Vulkan adapter and compiles the kernels on it.
// It fails when no adapter is available; there is no software fallback.
func OpenGPUDevice() (*GPUDevice, error) {
	opened, err := gpu.OpenDevice()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDeviceFailure, err)
	}
	d, err := newGPUDevice(opened.Device, opened.Queue, opened.Name)
	if err != nil {
		opened.Close()
		return nil, err
	}
	d.opened = opened
	return d, nil
}

// NewGPUDevice compiles the kernels on a caller-owned device and queue.
// Close releases the pipelines but not the device.
func NewGPUDevice(device hal.Device, queue hal.Queue) (*GPUDevice, error) {
	if device == nil || queue == nil {
		return nil, ErrNilDevice
	}
	return newGPUDevice(device, queue, "hal")
}

// NewGPUDeviceFromProvider shares the device of a host application, such
// as a gogpu window. The provider must expose HalDevice and HalQueue.
func NewGPUDeviceFromProvider(provider gpucontext.DeviceProvider) (*GPUDevice, error) {
	if provider == nil {
		return nil, ErrNilDevice
	}
	device, queue, err := gpu.HALFromProvider(provider)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNilDevice, err)
	}
	return newGPUDevice(device, queue, "provider")
}

func newGPUDevice(device hal.Device, queue hal.Queue, name string) (*GPUDevice, error) {
	d := gpu.NewDispatcher(device, queue)
	if err := d.Init(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDeviceFailure, err)
	}
	Logger().Info("isosurface: gpu device ready", "name", name)
	return &GPUDevice{dispatcher: d, name: name}, nil
}

// Name describes the device.
func (d *GPUDevice) Name() string { return "gpu (" + d.name + ")" }

// HAL returns the underlying device and queue.
func (d *GPUDevice) HAL() (hal.Device, hal.Queue) {
	return d.dispatcher.Device(), d.dispatcher.Queue()
}

// NewVolume allocates a GPUVolume.
func (d *GPUDevice) NewVolume(dims Dims) (Volume, error) {
	return d.NewGPUVolume(dims)
}

// NewGPUVolume allocates a storage buffer for dims.Voxels() float32 values.
// Its contents are undefined until written.
func (d *GPUDevice) NewGPUVolume(dims Dims) (*GPUVolume, error) {
	if err := dims.Validate(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrReleased
	}
	size := uint64(dims.Voxels()) * 4
	buf, err := d.dispatcher.CreateStorageBuffer("isosurface_voxels", size)
	if err != nil {
		return nil, fmt.Errorf("%w: create volume: %w", ErrDeviceFailure, err)
	}
	return &GPUVolume{dev: d, dims: dims, buf: buf, size: size}, nil
}

// SetMemoryBudget limits the bytes of buffers the device allocates for
// volumes and extractors. Zero removes the limit.
func (d *GPUDevice) SetMemoryBudget(bytes uint64) {
	d.dispatcher.SetMemoryBudget(bytes)
}

// MemoryStats returns the buffer memory in use.
func (d *GPUDevice) MemoryStats() MemoryStats {
	return d.dispatcher.MemoryStats()
}

// Close releases the pipelines, and the device if OpenGPUDevice opened it.
func (d *GPUDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	d.dispatcher.Close()
	if d.opened != nil {
		d.opened.Close()
	}
	return nil
}

func (d *GPUDevice) newEngine(cfg engineConfig) (engine, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrReleased
	}
	s, err := d.dispatcher.NewSession(cfg.budget, cfg.label, cfg.fenceTimeout)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDeviceFailure, err)
	}
	bufs := s.Buffers()
	return &gpuEngine{
		session:  s,
		vertices: &HALBuffer{label: cfg.label + "_vertices", size: uint64(cfg.budget) * kernel.FloatsPerTriangle * 4, buf: bufs.Vertices},
		indices:  &HALBuffer{label: cfg.label + "_indices", size: uint64(cfg.budget) * kernel.VerticesPerTriangle * 4, buf: bufs.Indices},
	}, nil
}

// HALBuffer is a Buffer backed by a HAL buffer that a renderer can bind as
// vertex or index buffer.
type HALBuffer struct {
	label string
	size  uint64
	buf   hal.Buffer
}

// Label returns the debug label.
func (b *HALBuffer) Label() string { return b.label }

// Size returns the size in bytes.
func (b *HALBuffer) Size() uint64 { return b.size }

// HAL returns the underlying buffer, or nil after release.
func (b *HALBuffer) HAL() hal.Buffer { return b.buf }

// GPUVolume is a voxel storage buffer on a GPUDevice. An external compute
// pass may write Buffer() directly.
type GPUVolume struct {
	dev  *GPUDevice
	dims Dims

	mu      sync.Mutex
	buf     hal.Buffer
	size    uint64
	staging []byte
}

// Dims returns the lattice extent.
func (v *GPUVolume) Dims() Dims { return v.dims }

// Device returns the owning device.
func (v *GPUVolume) Device() Device { return v.dev }

// Buffer returns the storage buffer, or nil after release.
func (v *GPUVolume) Buffer() hal.Buffer {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.buf
}

// Write uploads values through the queue.
func (v *GPUVolume) Write(values []float32) error {
	return v.Upload(values)
}

// Upload uploads values through the queue.
func (v *GPUVolume) Upload(values []float32) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.buf == nil {
		return ErrReleased
	}
	if len(values) != v.dims.Voxels() {
		return fmt.Errorf("%w: %d values for %s", ErrVolumeMismatch, len(values), v.dims)
	}
	if len(v.staging) != len(values)*4 {
		v.staging = make([]byte, len(values)*4)
	}
	data := v.staging
	for i, f := range values {
		binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(f))
	}
	_, queue := v.dev.HAL()
	if err := queue.WriteBuffer(v.buf, 0, data); err != nil {
		return fmt.Errorf("%w: upload volume: %w", ErrDeviceFailure, err)
	}
	return nil
}

// Release destroys the storage buffer.
func (v *GPUVolume) Release() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.buf == nil {
		return nil
	}
	v.dev.dispatcher.DestroyBuffer(v.buf, v.size)
	v.buf = nil
	v.staging = nil
	return nil
}

func (v *GPUVolume) isReleased() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.buf == nil
}

type gpuEngine struct {
	session  *gpu.Session
	vertices *HALBuffer
	indices  *HALBuffer
}

func (e *gpuEngine) vertexBuffer() Buffer { return e.vertices }
func (e *gpuEngine) indexBuffer() Buffer  { return e.indices }

func (e *gpuEngine) begin(p kernel.Params) (stream, error) {
	pass, err := e.session.Begin(p)
	if err != nil {
		return nil, err
	}
	return &gpuStream{pass: pass}, nil
}

func (e *gpuEngine) readCounter() (uint32, error) {
	return e.session.ReadCounter()
}

func (e *gpuEngine) readVertices() ([]float32, error) {
	data, err := e.session.Read(e.vertices.buf, e.vertices.size)
	if err != nil {
		return nil, err
	}
	out := make([]float32, len(data)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return out, nil
}

func (e *gpuEngine) readIndices() ([]uint32, error) {
	data, err := e.session.Read(e.indices.buf, e.indices.size)
	if err != nil {
		return nil, err
	}
	out := make([]uint32, len(data)/4)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(data[i*4:])
	}
	return out, nil
}

func (e *gpuEngine) release() error {
	err := e.session.Destroy()
	e.vertices.buf = nil
	e.indices.buf = nil
	return err
}

type gpuStream struct {
	pass *gpu.Pass
}

func (s *gpuStream) resetCounter() error { return s.pass.ResetCounter() }

func (s *gpuStream) dispatchBuild(vol Volume) error {
	gv, ok := vol.(*GPUVolume)
	if !ok {
		return fmt.Errorf("%w: %T", ErrForeignVolume, vol)
	}
	buf := gv.Buffer()
	if buf == nil {
		return ErrReleased
	}
	return s.pass.Build(buf)
}

func (s *gpuStream) dispatchClear() error { return s.pass.Clear() }
func (s *gpuStream) submit() error        { return s.pass.Submit() }
func (s *gpuStream) discard()             { s.pass.Discard() }
