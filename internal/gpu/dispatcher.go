// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

//go:build !nogpu

package gpu

import (
	_ "embed"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

//go:embed shaders/build.wgsl
var shaderBuild string

//go:embed shaders/clear.wgsl
var shaderClear string

// DefaultWaitTimeout bounds waits on a session's GPU work unless the
// session sets its own.
const DefaultWaitTimeout = 5 * time.Second

// ErrNotInitialized is returned when pipelines are used before Init.
var ErrNotInitialized = errors.New("isosurface gpu: dispatcher not initialized")

// Stage identifies one of the two compute kernels.
type Stage int

const (
	// StageBuild classifies cells and emits triangles.
	StageBuild Stage = iota

	// StageClear zeroes the unused tail of the output buffers.
	StageClear

	// StageCount is the number of stages.
	StageCount
)

// String returns the kernel name of the stage.
func (s Stage) String() string {
	switch s {
	case StageBuild:
		return "build"
	case StageClear:
		return "clear"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// stageBindGroupLayoutEntries returns the layout entries matching the
// @group(0) @binding(N) declarations of each shader.
func stageBindGroupLayoutEntries(stage Stage) []gputypes.BindGroupLayoutEntry {
	params := gputypes.BindGroupLayoutEntry{
		Binding:    0,
		Visibility: gputypes.ShaderStageCompute,
		Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
	}
	storageRO := func(binding uint32) gputypes.BindGroupLayoutEntry {
		return gputypes.BindGroupLayoutEntry{
			Binding:    binding,
			Visibility: gputypes.ShaderStageCompute,
			Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage},
		}
	}
	storageRW := func(binding uint32) gputypes.BindGroupLayoutEntry {
		return gputypes.BindGroupLayoutEntry{
			Binding:    binding,
			Visibility: gputypes.ShaderStageCompute,
			Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage},
		}
	}

	switch stage {
	case StageBuild:
		// @binding(0) uniform params
		// @binding(1) storage(read) triangle_table
		// @binding(2) storage(read) voxels
		// @binding(3) storage(read_write) vertices
		// @binding(4) storage(read_write) indices
		// @binding(5) storage(read_write) counter
		return []gputypes.BindGroupLayoutEntry{
			params, storageRO(1), storageRO(2),
			storageRW(3), storageRW(4), storageRW(5),
		}

	case StageClear:
		// @binding(0) uniform params
		// @binding(1) storage(read_write) vertices
		// @binding(2) storage(read_write) indices
		// @binding(3) storage(read_write) counter
		return []gputypes.BindGroupLayoutEntry{
			params, storageRW(1), storageRW(2), storageRW(3),
		}

	default:
		return nil
	}
}

// Dispatcher owns the compiled build and clear pipelines of one device.
// Sessions created from it share the pipelines.
type Dispatcher struct {
	mu sync.RWMutex

	device hal.Device
	queue  hal.Queue

	pipelines       [StageCount]hal.ComputePipeline
	pipelineLayouts [StageCount]hal.PipelineLayout
	bgLayouts       [StageCount]hal.BindGroupLayout
	shaderModules   [StageCount]hal.ShaderModule
	shaderSources   [StageCount]string

	initialized bool

	memory memoryTracker
}

// NewDispatcher creates a dispatcher on the given device and queue.
// Init must be called before creating sessions.
func NewDispatcher(device hal.Device, queue hal.Queue) *Dispatcher {
	return &Dispatcher{
		device: device,
		queue:  queue,
		shaderSources: [StageCount]string{
			StageBuild: shaderBuild,
			StageClear: shaderClear,
		},
	}
}

// Device returns the HAL device.
func (d *Dispatcher) Device() hal.Device { return d.device }

// Queue returns the HAL queue.
func (d *Dispatcher) Queue() hal.Queue { return d.queue }

// Init compiles both shaders and creates their pipelines. Calling Init on
// an initialized dispatcher does nothing.
func (d *Dispatcher) Init() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.initialized {
		return nil
	}

	for i := Stage(0); i < StageCount; i++ {
		src := d.shaderSources[i]
		if src == "" {
			return fmt.Errorf("isosurface gpu: missing shader source for stage %s", i)
		}
		name := "isosurface_" + i.String()

		module, err := d.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
			Label:  name,
			Source: hal.ShaderSource{WGSL: src},
		})
		if err != nil {
			d.destroyPartialInit(i)
			return fmt.Errorf("isosurface gpu: create shader module for %s: %w", i, err)
		}
		d.shaderModules[i] = module

		entries := stageBindGroupLayoutEntries(i)
		bgLayout, err := d.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
			Label:   name + "_bgl",
			Entries: entries,
		})
		if err != nil {
			d.destroyPartialInit(i + 1)
			return fmt.Errorf("isosurface gpu: create bind group layout for %s: %w", i, err)
		}
		d.bgLayouts[i] = bgLayout

		pipelineLayout, err := d.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
			Label:            name + "_pl",
			BindGroupLayouts: []hal.BindGroupLayout{bgLayout},
		})
		if err != nil {
			d.destroyPartialInit(i + 1)
			return fmt.Errorf("isosurface gpu: create pipeline layout for %s: %w", i, err)
		}
		d.pipelineLayouts[i] = pipelineLayout

		pipeline, err := d.device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
			Label:  name,
			Layout: pipelineLayout,
			Compute: hal.ComputeState{
				Module:     module,
				EntryPoint: "main",
			},
		})
		if err != nil {
			d.destroyPartialInit(i + 1)
			return fmt.Errorf("isosurface gpu: create compute pipeline for %s: %w", i, err)
		}
		d.pipelines[i] = pipeline

		slogger().Debug("isosurface gpu: pipeline created",
			"stage", i.String(),
			"bindings", len(entries),
			"shader_bytes", len(src))
	}

	d.initialized = true
	return nil
}

// destroyPartialInit releases stages [0, upTo) after a failed Init.
func (d *Dispatcher) destroyPartialInit(upTo Stage) {
	for j := Stage(0); j < upTo; j++ {
		d.destroyStage(j)
	}
}

func (d *Dispatcher) destroyStage(s Stage) {
	if d.pipelines[s] != nil {
		d.device.DestroyComputePipeline(d.pipelines[s])
		d.pipelines[s] = nil
	}
	if d.pipelineLayouts[s] != nil {
		d.device.DestroyPipelineLayout(d.pipelineLayouts[s])
		d.pipelineLayouts[s] = nil
	}
	if d.bgLayouts[s] != nil {
		d.device.DestroyBindGroupLayout(d.bgLayouts[s])
		d.bgLayouts[s] = nil
	}
	if d.shaderModules[s] != nil {
		d.device.DestroyShaderModule(d.shaderModules[s])
		d.shaderModules[s] = nil
	}
}

// Close releases the pipelines. Sessions must be destroyed first.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i := Stage(0); i < StageCount; i++ {
		d.destroyStage(i)
	}
	d.initialized = false
}

// CreateStorageBuffer creates a storage buffer the kernels can read, for
// voxel data produced by the host or by another compute pass.
func (d *Dispatcher) CreateStorageBuffer(label string, size uint64) (hal.Buffer, error) {
	return d.createBuffer(label, size,
		gputypes.BufferUsageStorage|gputypes.BufferUsageCopyDst|gputypes.BufferUsageCopySrc)
}

// DestroyBuffer destroys a buffer created by CreateStorageBuffer. size must
// be the size it was created with.
func (d *Dispatcher) DestroyBuffer(buf hal.Buffer, size uint64) {
	if buf == nil {
		return
	}
	d.device.DestroyBuffer(buf)
	d.memory.release(bufferSize(size))
}

// SetMemoryBudget limits the bytes of live buffers. Zero removes the limit.
// Buffers already allocated are not affected.
func (d *Dispatcher) SetMemoryBudget(bytes uint64) {
	d.memory.setBudget(bytes)
}

// MemoryStats returns the buffer memory usage.
func (d *Dispatcher) MemoryStats() MemoryStats {
	return d.memory.stats()
}

func bufferSize(size uint64) uint64 {
	const minBufSize = 4
	return max(size, minBufSize)
}

// createBuffer creates a buffer of at least 4 bytes and accounts it
// against the memory budget.
func (d *Dispatcher) createBuffer(label string, size uint64, usage gputypes.BufferUsage) (hal.Buffer, error) {
	size = bufferSize(size)
	if err := d.memory.reserve(size); err != nil {
		return nil, fmt.Errorf("%s: %w", label, err)
	}
	buf, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: usage,
	})
	if err != nil {
		d.memory.release(size)
		return nil, err
	}
	return buf, nil
}
