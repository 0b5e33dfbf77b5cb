// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

//go:build !nogpu

package isosurface

import (
	"errors"
	"testing"
	"time"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
)

func createNoopDevice(t *testing.T) (hal.Device, hal.Queue, func()) {
	t.Helper()
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		t.Fatalf("Open failed: %v", err)
	}
	cleanup := func() {
		openDev.Device.Destroy()
		instance.Destroy()
	}
	return openDev.Device, openDev.Queue, cleanup
}

func newTestGPUDevice(t *testing.T) *GPUDevice {
	t.Helper()
	device, queue, cleanup := createNoopDevice(t)
	dev, err := NewGPUDevice(device, queue)
	if err != nil {
		cleanup()
		t.Fatalf("NewGPUDevice: %v", err)
	}
	t.Cleanup(func() {
		_ = dev.Close()
		cleanup()
	})
	return dev
}

func TestNewGPUDeviceNil(t *testing.T) {
	if _, err := NewGPUDevice(nil, nil); !errors.Is(err, ErrNilDevice) {
		t.Errorf("NewGPUDevice(nil, nil) = %v, want ErrNilDevice", err)
	}
	if _, err := NewGPUDeviceFromProvider(nil); !errors.Is(err, ErrNilDevice) {
		t.Errorf("NewGPUDeviceFromProvider(nil) = %v, want ErrNilDevice", err)
	}
}

// halProvider is a gpucontext.DeviceProvider that also exposes HAL handles,
// like a gogpu window.
type halProvider struct {
	device, queue any
}

func (p halProvider) Device() gpucontext.Device             { return nil }
func (p halProvider) Queue() gpucontext.Queue               { return nil }
func (p halProvider) Adapter() gpucontext.Adapter           { return nil }
func (p halProvider) SurfaceFormat() gputypes.TextureFormat { return gputypes.TextureFormatBGRA8Unorm }
func (p halProvider) HalDevice() any                        { return p.device }
func (p halProvider) HalQueue() any                         { return p.queue }

func TestNewGPUDeviceFromProvider(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()

	dev, err := NewGPUDeviceFromProvider(halProvider{device, queue})
	if err != nil {
		t.Fatalf("NewGPUDeviceFromProvider: %v", err)
	}
	defer dev.Close()
	if got, _ := dev.HAL(); got != device {
		t.Error("HAL() does not return the provider's device")
	}

	if _, err := NewGPUDeviceFromProvider(halProvider{}); !errors.Is(err, ErrNilDevice) {
		t.Errorf("provider without HAL handles: %v, want ErrNilDevice", err)
	}
}

func TestGPUVolume(t *testing.T) {
	dev := newTestGPUDevice(t)
	dims := Dims{4, 4, 4}

	vol, err := dev.NewGPUVolume(dims)
	if err != nil {
		t.Fatalf("NewGPUVolume: %v", err)
	}
	if vol.Buffer() == nil {
		t.Fatal("Buffer() is nil")
	}
	if vol.Device() != Device(dev) || vol.Dims() != dims {
		t.Error("volume reports wrong device or dims")
	}
	if err := vol.Upload(make([]float32, dims.Voxels())); err != nil {
		t.Errorf("Upload: %v", err)
	}
	if err := vol.Write(make([]float32, 3)); !errors.Is(err, ErrVolumeMismatch) {
		t.Errorf("short Write: %v, want ErrVolumeMismatch", err)
	}
	if err := vol.Release(); err != nil {
		t.Errorf("Release: %v", err)
	}
	if err := vol.Release(); err != nil {
		t.Errorf("second Release: %v", err)
	}
	if !vol.isReleased() || vol.Buffer() != nil {
		t.Error("volume not released")
	}
	if err := vol.Upload(make([]float32, dims.Voxels())); !errors.Is(err, ErrReleased) {
		t.Errorf("Upload after Release: %v", err)
	}

	if _, err := dev.NewGPUVolume(Dims{0, 1, 1}); !errors.Is(err, ErrConfiguration) {
		t.Errorf("invalid dims: %v", err)
	}
}

func TestGPUExtractorLifecycle(t *testing.T) {
	dev := newTestGPUDevice(t)
	dims := Dims{8, 8, 8}
	const budget = 256

	ex, err := New(dev, dims, budget, WithLabel("noop"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	m := ex.Mesh()
	vb, ok := m.VertexBuffer().(*HALBuffer)
	if !ok || vb.HAL() == nil {
		t.Fatalf("VertexBuffer() = %T", m.VertexBuffer())
	}
	if vb.Size() != budget*3*VertexStride || vb.Label() != "noop_vertices" {
		t.Errorf("vertex buffer %q size %d", vb.Label(), vb.Size())
	}
	ib := m.IndexBuffer().(*HALBuffer)
	if ib.Size() != budget*3*4 {
		t.Errorf("index buffer size %d", ib.Size())
	}

	vol, err := dev.NewVolume(dims)
	if err != nil {
		t.Fatalf("NewVolume: %v", err)
	}
	defer vol.Release()
	values := make([]float32, dims.Voxels())
	for i := range values {
		values[i] = float32(i%7) - 3
	}
	if err := vol.Write(values); err != nil {
		t.Fatalf("Write: %v", err)
	}

	for frame := range 3 {
		got, err := ex.Extract(vol, 0, 0.5)
		if err != nil {
			t.Fatalf("frame %d: Extract: %v", frame, err)
		}
		if got != m {
			t.Fatalf("frame %d: Extract returned a different mesh", frame)
		}
	}
	if ex.Frame() != 3 {
		t.Errorf("Frame() = %d, want 3", ex.Frame())
	}
	if b := m.Bounds(); b.Size[0] != 4 {
		t.Errorf("Bounds().Size = %v, want 4 per axis", b.Size)
	}

	// The noop device does not execute kernels; only the readback path is
	// exercised here.
	if _, err := ex.Counter(); err != nil {
		t.Errorf("Counter: %v", err)
	}
	verts, err := m.ReadVertices()
	if err != nil {
		t.Fatalf("ReadVertices: %v", err)
	}
	if len(verts) != budget*3 {
		t.Errorf("ReadVertices() = %d vertices, want %d", len(verts), budget*3)
	}
	idx, err := m.ReadIndices()
	if err != nil {
		t.Fatalf("ReadIndices: %v", err)
	}
	if len(idx) != budget*3 {
		t.Errorf("ReadIndices() = %d, want %d", len(idx), budget*3)
	}

	if err := ex.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if vb.HAL() != nil {
		t.Error("vertex buffer survives Close")
	}
}

func TestGPUExtractRejectsHostVolume(t *testing.T) {
	dev := newTestGPUDevice(t)
	sw := newTestSoftwareDevice(t, 1)
	dims := Dims{4, 4, 4}
	ex := newTestExtractor(t, dev, dims, 16)
	vol := newTestVolume(t, sw, dims, nil)

	if _, err := ex.Extract(vol, 0, 1); !errors.Is(err, ErrForeignVolume) {
		t.Errorf("Extract(host volume) = %v, want ErrForeignVolume", err)
	}
}

func TestGPUDeviceClose(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()
	dev, err := NewGPUDevice(device, queue)
	if err != nil {
		t.Fatal(err)
	}
	if err := dev.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := dev.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if _, err := dev.NewVolume(Dims{2, 2, 2}); !errors.Is(err, ErrReleased) {
		t.Errorf("NewVolume after Close: %v", err)
	}
	if _, err := New(dev, Dims{2, 2, 2}, 4); !errors.Is(err, ErrReleased) {
		t.Errorf("New after Close: %v", err)
	}
}

func TestGPUDeviceMemoryBudget(t *testing.T) {
	dev := newTestGPUDevice(t)
	dims := Dims{8, 8, 8}

	vol, err := dev.NewGPUVolume(dims)
	if err != nil {
		t.Fatal(err)
	}
	if got := dev.MemoryStats().UsedBytes; got != uint64(dims.Voxels())*4 {
		t.Errorf("UsedBytes after volume = %d, want %d", got, dims.Voxels()*4)
	}
	_ = vol.Release()
	if got := dev.MemoryStats(); got.UsedBytes != 0 || got.Buffers != 0 {
		t.Errorf("stats after release = %+v", got)
	}

	dev.SetMemoryBudget(1024)
	_, err = New(dev, dims, 4096)
	if !errors.Is(err, ErrDeviceFailure) || !errors.Is(err, ErrMemoryBudgetExceeded) {
		t.Errorf("New over budget = %v, want ErrMemoryBudgetExceeded", err)
	}
	if got := dev.MemoryStats().UsedBytes; got != 0 {
		t.Errorf("failed New left %d bytes allocated", got)
	}

	dev.SetMemoryBudget(0)
	ex, err := New(dev, dims, 4096)
	if err != nil {
		t.Fatalf("New without budget: %v", err)
	}
	if dev.MemoryStats().UsedBytes == 0 {
		t.Error("extractor buffers are not accounted")
	}
	_ = ex.Close()
	if got := dev.MemoryStats().UsedBytes; got != 0 {
		t.Errorf("UsedBytes after Close = %d, want 0", got)
	}
}

func TestGPUExtractorTimeoutsAreIndependent(t *testing.T) {
	dev := newTestGPUDevice(t)
	dims := Dims{4, 4, 4}
	short := newTestExtractor(t, dev, dims, 16, WithFenceTimeout(time.Millisecond))
	long := newTestExtractor(t, dev, dims, 16, WithFenceTimeout(time.Minute))

	if got := short.eng.(*gpuEngine).session.Timeout(); got != time.Millisecond {
		t.Errorf("short extractor timeout = %v, want 1ms", got)
	}
	if got := long.eng.(*gpuEngine).session.Timeout(); got != time.Minute {
		t.Errorf("long extractor timeout = %v, want 1m", got)
	}
}

var errSubmitRejected = errors.New("submit rejected")

type rejectingQueue struct {
	hal.Queue
	reject bool
}

func (q *rejectingQueue) Submit(cbs []hal.CommandBuffer) (uint64, error) {
	if q.reject {
		return 0, errSubmitRejected
	}
	return q.Queue.Submit(cbs)
}

func TestGPUExtractSubmitFailureTerminates(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()
	q := &rejectingQueue{Queue: queue}
	dev, err := NewGPUDevice(device, q)
	if err != nil {
		t.Fatalf("NewGPUDevice: %v", err)
	}
	defer dev.Close()

	dims := Dims{4, 4, 4}
	ex := newTestExtractor(t, dev, dims, 16)
	vol, err := dev.NewGPUVolume(dims)
	if err != nil {
		t.Fatal(err)
	}
	defer vol.Release()

	if _, err := ex.Extract(vol, 0, 1); err != nil {
		t.Fatalf("first Extract: %v", err)
	}

	q.reject = true
	_, err = ex.Extract(vol, 0, 1)
	if !errors.Is(err, ErrDeviceFailure) || !errors.Is(err, errSubmitRejected) {
		t.Fatalf("Extract with rejected submit = %v, want ErrDeviceFailure", err)
	}
	q.reject = false
	if _, err := ex.Extract(vol, 0, 1); !errors.Is(err, ErrSessionTerminated) {
		t.Errorf("Extract after failure = %v, want ErrSessionTerminated", err)
	}
	if err := ex.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}
