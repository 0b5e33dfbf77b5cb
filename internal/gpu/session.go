// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

//go:build !nogpu

package gpu

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
	"unsafe"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/isosurface/internal/kernel"
	"github.com/gogpu/isosurface/table"
)

// ErrPassFinished is returned when a pass is submitted twice.
var ErrPassFinished = errors.New("isosurface gpu: pass already finished")

// Buffers are the GPU resources of one session. Vertices and Indices are
// both storage and vertex/index buffers so the renderer draws what the
// kernels write.
type Buffers struct {
	Params   hal.Buffer
	Table    hal.Buffer
	Counter  hal.Buffer
	Vertices hal.Buffer
	Indices  hal.Buffer
}

// Session holds the buffers of one extractor and tracks the frame in
// flight. At most one frame is in flight: Begin waits for the previous
// submission before touching shared buffers.
type Session struct {
	d       *Dispatcher
	bufs    Buffers
	budget  uint32
	label   string
	sizes   [5]uint64
	timeout time.Duration

	// submitted is the queue submission index of the last frame.
	submitted uint64
	inflight  *dispatchResources
}

// dispatchResources tracks the per-frame resources released once the
// frame's submission has completed.
type dispatchResources struct {
	device     hal.Device
	bindGroups []hal.BindGroup
	cmdBuf     hal.CommandBuffer
}

// cleanup releases the tracked resources. Calling it again is a no-op.
func (r *dispatchResources) cleanup() {
	if r == nil {
		return
	}
	if r.cmdBuf != nil {
		r.device.FreeCommandBuffer(r.cmdBuf)
		r.cmdBuf = nil
	}
	for _, g := range r.bindGroups {
		r.device.DestroyBindGroup(g)
	}
	r.bindGroups = nil
}

// NewSession allocates the output buffers for budget triangles and uploads
// the triangle table. Waits on the session's work give up after timeout;
// non-positive values mean DefaultWaitTimeout. On failure nothing stays
// allocated.
func (d *Dispatcher) NewSession(budget uint32, label string, timeout time.Duration) (*Session, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if !d.initialized {
		return nil, ErrNotInitialized
	}
	if timeout <= 0 {
		timeout = DefaultWaitTimeout
	}

	s := &Session{d: d, budget: budget, label: label, timeout: timeout}
	vertexBytes := uint64(budget) * kernel.FloatsPerTriangle * 4
	indexBytes := uint64(budget) * kernel.VerticesPerTriangle * 4

	type bufSpec struct {
		target *hal.Buffer
		name   string
		size   uint64
		usage  gputypes.BufferUsage
	}
	specs := []bufSpec{
		{&s.bufs.Params, "params", kernel.ParamsSize,
			gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst},
		{&s.bufs.Table, "triangle_table", table.Entries * table.EntrySize,
			gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst},
		{&s.bufs.Counter, "counter", 4,
			gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst | gputypes.BufferUsageCopySrc},
		{&s.bufs.Vertices, "vertices", vertexBytes,
			gputypes.BufferUsageStorage | gputypes.BufferUsageVertex | gputypes.BufferUsageCopySrc | gputypes.BufferUsageCopyDst},
		{&s.bufs.Indices, "indices", indexBytes,
			gputypes.BufferUsageStorage | gputypes.BufferUsageIndex | gputypes.BufferUsageCopySrc | gputypes.BufferUsageCopyDst},
	}
	for i, spec := range specs {
		buf, err := d.createBuffer(label+"_"+spec.name, spec.size, spec.usage)
		if err != nil {
			s.destroyBuffers()
			return nil, fmt.Errorf("isosurface gpu: create %s buffer: %w", spec.name, err)
		}
		*spec.target = buf
		s.sizes[i] = spec.size
	}

	// Storage contents are undefined until the first pass clears them.
	uploads := []struct {
		buf  hal.Buffer
		data []byte
	}{
		{s.bufs.Table, table.Bytes()},
		{s.bufs.Vertices, make([]byte, vertexBytes)},
		{s.bufs.Indices, make([]byte, indexBytes)},
	}
	for _, u := range uploads {
		if err := d.queue.WriteBuffer(u.buf, 0, u.data); err != nil {
			s.destroyBuffers()
			return nil, fmt.Errorf("isosurface gpu: initialize buffers: %w", err)
		}
	}

	slogger().Debug("isosurface gpu: session allocated",
		"label", label,
		"budget", budget,
		"vertex_bytes", vertexBytes,
		"index_bytes", indexBytes,
		"memory", d.memory.stats().String())
	return s, nil
}

// Buffers returns the session's GPU buffers.
func (s *Session) Buffers() Buffers { return s.bufs }

// Budget returns the triangle capacity.
func (s *Session) Budget() uint32 { return s.budget }

func (s *Session) destroyBuffers() {
	for i, b := range []hal.Buffer{s.bufs.Params, s.bufs.Table, s.bufs.Counter, s.bufs.Vertices, s.bufs.Indices} {
		s.d.DestroyBuffer(b, s.sizes[i])
	}
	s.bufs = Buffers{}
	s.sizes = [5]uint64{}
}

// waitInterval is the polling period while a submission is outstanding.
const waitInterval = 50 * time.Microsecond

// Wait blocks until the last submitted frame has completed and releases the
// resources of the frame in flight.
func (s *Session) Wait() error {
	deadline := time.Now().Add(s.timeout)
	for s.submitted > 0 && s.d.queue.PollCompleted() < s.submitted {
		if time.Now().After(deadline) {
			return fmt.Errorf("isosurface gpu: submission %d timed out after %v", s.submitted, s.timeout)
		}
		time.Sleep(waitInterval)
	}
	s.inflight.cleanup()
	s.inflight = nil
	return nil
}

// Timeout returns the bound on waits for the session's work.
func (s *Session) Timeout() time.Duration { return s.timeout }

// Destroy waits for outstanding work and releases every resource of the
// session. The wait error, if any, is returned after the release.
func (s *Session) Destroy() error {
	err := s.Wait()
	if err != nil {
		slogger().Warn("isosurface gpu: destroying session with work in flight",
			"label", s.label, "err", err)
	}
	s.inflight.cleanup()
	s.inflight = nil
	s.destroyBuffers()
	return err
}

// Pass records one extraction: counter reset, build, clear. Both dispatches
// go into a single command buffer so the clear observes the final counter.
type Pass struct {
	s       *Session
	params  kernel.Params
	encoder hal.CommandEncoder
	res     *dispatchResources
	done    bool
}

// Begin waits for the previous frame, uploads params and opens a command
// encoder.
func (s *Session) Begin(params kernel.Params) (*Pass, error) {
	if err := s.Wait(); err != nil {
		return nil, err
	}

	s.d.mu.RLock()
	defer s.d.mu.RUnlock()
	if !s.d.initialized {
		return nil, ErrNotInitialized
	}

	if err := s.d.queue.WriteBuffer(s.bufs.Params, 0, params.Bytes()); err != nil {
		return nil, fmt.Errorf("isosurface gpu: write params: %w", err)
	}

	encoder, err := s.d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: s.label + "_pass",
	})
	if err != nil {
		return nil, fmt.Errorf("isosurface gpu: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding(s.label + "_pass"); err != nil {
		encoder.Destroy()
		return nil, fmt.Errorf("isosurface gpu: begin encoding: %w", err)
	}
	return &Pass{
		s:       s,
		params:  params,
		encoder: encoder,
		res:     &dispatchResources{device: s.d.device},
	}, nil
}

// ResetCounter zeroes the emission counter. The queue write is ordered
// before the pass's command buffer.
func (p *Pass) ResetCounter() error {
	var zero [4]byte
	if err := p.s.d.queue.WriteBuffer(p.s.bufs.Counter, 0, zero[:]); err != nil {
		return fmt.Errorf("isosurface gpu: reset counter: %w", err)
	}
	return nil
}

func (p *Pass) bindGroup(stage Stage, entries []gputypes.BindGroupEntry) (hal.BindGroup, error) {
	p.s.d.mu.RLock()
	layout := p.s.d.bgLayouts[stage]
	p.s.d.mu.RUnlock()

	bg, err := p.s.d.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   fmt.Sprintf("%s_%s_bg", p.s.label, stage),
		Layout:  layout,
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("isosurface gpu: create bind group for %s: %w", stage, err)
	}
	p.res.bindGroups = append(p.res.bindGroups, bg)
	return bg, nil
}

func entry(binding uint32, buf hal.Buffer) gputypes.BindGroupEntry {
	return gputypes.BindGroupEntry{
		Binding: binding,
		Resource: gputypes.BufferBinding{
			Buffer: buf.NativeHandle(),
			Offset: 0,
			Size:   0, // whole buffer
		},
	}
}

func (p *Pass) dispatch(stage Stage, bg hal.BindGroup, x, y, z uint32) {
	p.s.d.mu.RLock()
	pipeline := p.s.d.pipelines[stage]
	p.s.d.mu.RUnlock()

	pass := p.encoder.BeginComputePass(&hal.ComputePassDescriptor{
		Label: fmt.Sprintf("%s_%s", p.s.label, stage),
	})
	pass.SetPipeline(pipeline)
	pass.SetBindGroup(0, bg, nil)
	pass.Dispatch(x, y, z)
	pass.End()

	slogger().Debug("isosurface gpu: dispatched stage",
		"stage", stage.String(),
		"workgroups", [3]uint32{x, y, z})
}

// Build records the build dispatch over the voxel buffer.
func (p *Pass) Build(voxels hal.Buffer) error {
	b := p.s.bufs
	bg, err := p.bindGroup(StageBuild, []gputypes.BindGroupEntry{
		entry(0, b.Params),
		entry(1, b.Table),
		entry(2, voxels),
		entry(3, b.Vertices),
		entry(4, b.Indices),
		entry(5, b.Counter),
	})
	if err != nil {
		return err
	}
	g := kernel.BuildGroups(p.params.Dims)
	p.dispatch(StageBuild, bg, g[0], g[1], g[2])
	return nil
}

// Clear records the clear dispatch.
func (p *Pass) Clear() error {
	b := p.s.bufs
	bg, err := p.bindGroup(StageClear, []gputypes.BindGroupEntry{
		entry(0, b.Params),
		entry(1, b.Vertices),
		entry(2, b.Indices),
		entry(3, b.Counter),
	})
	if err != nil {
		return err
	}
	p.dispatch(StageClear, bg, kernel.ClearGroups(p.params.ClearStride), 1, 1)
	return nil
}

// Submit ends encoding and submits the command buffer without waiting.
// The pass is finished afterwards whether or not Submit succeeded; its
// resources are released here on failure and by the next Wait otherwise.
func (p *Pass) Submit() error {
	if p.done {
		return ErrPassFinished
	}
	p.done = true

	cmdBuf, err := p.encoder.EndEncoding()
	if err != nil {
		p.res.cleanup()
		return fmt.Errorf("isosurface gpu: end encoding: %w", err)
	}
	p.res.cmdBuf = cmdBuf

	s := p.s
	index, err := s.d.queue.Submit([]hal.CommandBuffer{cmdBuf})
	if err != nil {
		p.res.cleanup()
		return fmt.Errorf("isosurface gpu: submit: %w", err)
	}
	s.submitted = index
	s.inflight = p.res
	return nil
}

// Discard abandons the recorded commands. It does nothing once the pass
// was submitted.
func (p *Pass) Discard() {
	if p.done {
		return
	}
	p.done = true
	p.encoder.DiscardEncoding()
	p.res.cleanup()
}

// Read copies size bytes of src into host memory through a staging buffer.
// It waits for the frame in flight first.
func (s *Session) Read(src hal.Buffer, size uint64) ([]byte, error) {
	if err := s.Wait(); err != nil {
		return nil, err
	}

	staging, err := s.d.createBuffer(s.label+"_readback", size,
		gputypes.BufferUsageMapRead|gputypes.BufferUsageCopyDst)
	if err != nil {
		return nil, fmt.Errorf("isosurface gpu: create staging buffer: %w", err)
	}
	defer s.d.DestroyBuffer(staging, size)

	encoder, err := s.d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: s.label + "_readback"})
	if err != nil {
		return nil, fmt.Errorf("isosurface gpu: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding(s.label + "_readback"); err != nil {
		encoder.Destroy()
		return nil, fmt.Errorf("isosurface gpu: begin encoding: %w", err)
	}
	encoder.CopyBufferToBuffer(src, staging, []hal.BufferCopy{
		{SrcOffset: 0, DstOffset: 0, Size: size},
	})
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return nil, fmt.Errorf("isosurface gpu: end encoding: %w", err)
	}

	index, err := s.d.queue.Submit([]hal.CommandBuffer{cmdBuf})
	if err != nil {
		s.d.device.FreeCommandBuffer(cmdBuf)
		return nil, fmt.Errorf("isosurface gpu: submit readback: %w", err)
	}
	s.submitted = index
	s.inflight = &dispatchResources{device: s.d.device, cmdBuf: cmdBuf}
	if err := s.Wait(); err != nil {
		return nil, err
	}

	mapping, err := s.d.device.MapBuffer(staging, 0, size)
	if err != nil {
		return nil, fmt.Errorf("isosurface gpu: map staging buffer: %w", err)
	}
	data := make([]byte, size)
	copy(data, unsafe.Slice((*byte)(mapping.Ptr), size))
	if err := s.d.device.UnmapBuffer(staging); err != nil {
		return nil, fmt.Errorf("isosurface gpu: unmap staging buffer: %w", err)
	}
	return data, nil
}

// ReadCounter returns the raw emission counter of the last completed pass.
func (s *Session) ReadCounter() (uint32, error) {
	data, err := s.Read(s.bufs.Counter, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(data), nil
}
