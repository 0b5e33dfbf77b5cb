// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package isosurface extracts triangle meshes from scalar voxel fields with
// Marching Cubes, once per frame, entirely on the device.
//
// # Overview
//
// An Extractor owns a fixed-capacity vertex and index buffer. Every call to
// Extract resets an atomic emission counter, runs a build kernel over every
// cell of the lattice and a clear kernel over the unused tail of the buffers.
// The resulting Mesh can be drawn directly: one submesh spans the whole
// capacity and unused slots are zero, which renders as degenerate triangles.
// The host never waits for the GPU during a frame.
//
// # Quick Start
//
//	dev := isosurface.NewSoftwareDevice(0)
//	defer dev.Close()
//
//	dims := isosurface.Dims{X: 64, Y: 32, Z: 64}
//	vol, _ := dev.NewHostVolume(dims)
//	vol.Fill(func(x, y, z int) float32 { return float32(y) - 16 })
//
//	ex, _ := isosurface.New(dev, dims, 65536)
//	defer ex.Close()
//
//	mesh, _ := ex.Extract(vol, 0, 4.0/64)
//
// # Devices
//
// Two devices run the same kernels:
//   - GPU: OpenGPUDevice, NewGPUDevice or NewGPUDeviceFromProvider compile
//     WGSL compute pipelines on a gogpu/wgpu HAL device.
//   - Software: NewSoftwareDevice runs the kernels on a goroutine pool.
//
// A device never falls back to the other. Build with -tags nogpu to drop
// the GPU device.
//
// # Capacity
//
// The budget bounds the number of triangles per pass. Triangles beyond it
// are dropped without error; Counter reports the uncapped demand.
//
// # Logging
//
// The package logs through log/slog and is silent by default. See SetLogger.
package isosurface
