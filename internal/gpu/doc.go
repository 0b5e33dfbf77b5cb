// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

//go:build !nogpu

// Package gpu runs the isosurface kernels on a gogpu/wgpu HAL device.
//
// A Dispatcher compiles build.wgsl and clear.wgsl once per device. Each
// extractor owns a Session: the params uniform, the triangle table, the
// emission counter and the vertex/index buffers, plus the queue submission
// index of its last frame. Waits poll the queue until that index completes
// or the session's timeout passes.
//
// A frame is recorded as a Pass:
//
//	pass, _ := session.Begin(params) // waits for the previous frame
//	pass.ResetCounter()              // queue write, ordered before the pass
//	pass.Build(voxels)
//	pass.Clear()
//	pass.Submit()                    // no wait
//
// The host only blocks in Begin (previous frame), in Read (diagnostics) and
// in Destroy.
package gpu
