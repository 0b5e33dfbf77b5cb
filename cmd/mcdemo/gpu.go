// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

//go:build !nogpu

package main

import "github.com/gogpu/isosurface"

func openGPU() (isosurface.Device, error) {
	return isosurface.OpenGPUDevice()
}

func memoryStats(dev isosurface.Device) string {
	if g, ok := dev.(*isosurface.GPUDevice); ok {
		return g.MemoryStats().String()
	}
	return "host"
}
