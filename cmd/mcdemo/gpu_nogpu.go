// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

//go:build nogpu

package main

import (
	"errors"

	"github.com/gogpu/isosurface"
)

func openGPU() (isosurface.Device, error) {
	return nil, errors.New("mcdemo: built with nogpu")
}

func memoryStats(isosurface.Device) string { return "host" }
