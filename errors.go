// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package isosurface

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration is returned for invalid construction or call
	// parameters. Errors carrying details are *ConfigError values.
	ErrConfiguration = errors.New("isosurface: invalid configuration")

	// ErrDeviceFailure is returned when a dispatch, submission or completion
	// wait fails. The extraction session is terminated.
	ErrDeviceFailure = errors.New("isosurface: device failure")

	// ErrSessionTerminated is returned by Extract after a device failure.
	ErrSessionTerminated = errors.New("isosurface: extraction session terminated")

	// ErrReleased is returned when a closed extractor, device or volume is used.
	ErrReleased = errors.New("isosurface: resource released")

	// ErrNilVolume is returned by Extract for a nil volume.
	ErrNilVolume = errors.New("isosurface: nil volume")

	// ErrForeignVolume is returned when a volume belongs to another device.
	ErrForeignVolume = errors.New("isosurface: volume belongs to a different device")

	// ErrVolumeMismatch is returned when volume and extractor dimensions differ.
	ErrVolumeMismatch = errors.New("isosurface: volume dimensions do not match")

	// ErrNilDevice is returned when a nil device is supplied.
	ErrNilDevice = errors.New("isosurface: nil device")
)

// ConfigError describes an invalid parameter. It matches ErrConfiguration
// with errors.Is.
type ConfigError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("isosurface: invalid %s %v: %s", e.Field, e.Value, e.Reason)
}

// Is reports whether target is ErrConfiguration.
func (e *ConfigError) Is(target error) bool {
	return target == ErrConfiguration
}

func wrapDevice(op string, err error) error {
	if errors.Is(err, ErrDeviceFailure) || errors.Is(err, ErrReleased) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrDeviceFailure, op, err)
}
