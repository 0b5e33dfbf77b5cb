// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package isosurface

import "time"

// Defaults for extractor options.
const (
	DefaultClearThreads = 1024
	DefaultFenceTimeout = 5 * time.Second
	DefaultLabel        = "isosurface"
)

// Option configures an Extractor during creation.
//
// Example:
//
//	ex, err := isosurface.New(dev, dims, 65536,
//	    isosurface.WithClearThreads(4096),
//	    isosurface.WithLabel("terrain"))
type Option func(*options)

type options struct {
	clearThreads int
	fenceTimeout time.Duration
	label        string
}

func defaultOptions() options {
	return options{
		clearThreads: DefaultClearThreads,
		fenceTimeout: DefaultFenceTimeout,
		label:        DefaultLabel,
	}
}

// WithClearThreads sets the number of threads of the clear pass. Each thread
// strides over the tail of the buffers, so any positive count clears the
// whole capacity. The count is capped at the triangle budget.
func WithClearThreads(n int) Option {
	return func(o *options) {
		o.clearThreads = n
	}
}

// WithFenceTimeout bounds waits on GPU completion. A timeout is reported
// as a device failure.
func WithFenceTimeout(d time.Duration) Option {
	return func(o *options) {
		o.fenceTimeout = d
	}
}

// WithLabel sets the debug label prefix of the extractor's GPU resources.
func WithLabel(label string) Option {
	return func(o *options) {
		o.label = label
	}
}

func (o options) validate() error {
	if o.clearThreads <= 0 {
		return &ConfigError{Field: "clear threads", Value: o.clearThreads, Reason: "must be positive"}
	}
	if o.fenceTimeout <= 0 {
		return &ConfigError{Field: "fence timeout", Value: o.fenceTimeout, Reason: "must be positive"}
	}
	if o.label == "" {
		return &ConfigError{Field: "label", Value: `""`, Reason: "must not be empty"}
	}
	return nil
}
