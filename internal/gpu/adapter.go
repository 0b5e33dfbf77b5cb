// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

//go:build !nogpu

package gpu

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	_ "github.com/gogpu/wgpu/hal/vulkan"
)

// ErrNoAdapter is returned when no GPU adapter can be opened.
var ErrNoAdapter = errors.New("isosurface gpu: no GPU adapter found")

// OpenedDevice is a device opened by this package, together with the
// instance that must outlive it.
type OpenedDevice struct {
	Device hal.Device
	Queue  hal.Queue
	Name   string

	instance hal.Instance
}

// OpenDevice opens a Vulkan adapter, preferring discrete and integrated
// GPUs over software rasterizers.
func OpenDevice() (*OpenedDevice, error) {
	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil, fmt.Errorf("%w: vulkan backend not available", ErrNoAdapter)
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("isosurface gpu: create instance: %w", err)
	}

	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, ErrNoAdapter
	}
	var selected *hal.ExposedAdapter
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	if selected == nil {
		selected = &adapters[0]
	}

	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("isosurface gpu: open device: %w", err)
	}

	slogger().Info("isosurface gpu: adapter selected",
		"name", selected.Info.Name,
		"type", selected.Info.DeviceType)

	return &OpenedDevice{
		Device:   openDev.Device,
		Queue:    openDev.Queue,
		Name:     selected.Info.Name,
		instance: instance,
	}, nil
}

// Close destroys the device and its instance.
func (o *OpenedDevice) Close() {
	if o.Device != nil {
		o.Device.Destroy()
		o.Device = nil
	}
	if o.instance != nil {
		o.instance.Destroy()
		o.instance = nil
	}
}

// HALFromProvider extracts the HAL device and queue from a provider that
// exposes HalDevice and HalQueue, such as a gogpu window.
func HALFromProvider(provider any) (hal.Device, hal.Queue, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, nil, fmt.Errorf("isosurface gpu: provider does not expose HAL types")
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, nil, fmt.Errorf("isosurface gpu: provider HalDevice is not hal.Device")
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, nil, fmt.Errorf("isosurface gpu: provider HalQueue is not hal.Queue")
	}
	return device, queue, nil
}
