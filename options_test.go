// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package isosurface

import (
	"errors"
	"testing"
	"time"
)

func TestDefaultOptions(t *testing.T) {
	o := defaultOptions()
	if o.clearThreads != DefaultClearThreads {
		t.Errorf("clearThreads = %d, want %d", o.clearThreads, DefaultClearThreads)
	}
	if o.fenceTimeout != DefaultFenceTimeout {
		t.Errorf("fenceTimeout = %v, want %v", o.fenceTimeout, DefaultFenceTimeout)
	}
	if o.label != DefaultLabel {
		t.Errorf("label = %q, want %q", o.label, DefaultLabel)
	}
	if err := o.validate(); err != nil {
		t.Errorf("default options invalid: %v", err)
	}
}

func TestOptionsApply(t *testing.T) {
	o := defaultOptions()
	for _, opt := range []Option{
		WithClearThreads(64),
		WithFenceTimeout(time.Second),
		WithLabel("terrain"),
	} {
		opt(&o)
	}
	if o.clearThreads != 64 || o.fenceTimeout != time.Second || o.label != "terrain" {
		t.Errorf("options = %+v", o)
	}
}

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name  string
		opt   Option
		field string
	}{
		{"zero clear threads", WithClearThreads(0), "clear threads"},
		{"negative clear threads", WithClearThreads(-1), "clear threads"},
		{"zero fence timeout", WithFenceTimeout(0), "fence timeout"},
		{"empty label", WithLabel(""), "label"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := defaultOptions()
			tt.opt(&o)
			err := o.validate()
			if !errors.Is(err, ErrConfiguration) {
				t.Fatalf("validate() = %v, want ErrConfiguration", err)
			}
			var ce *ConfigError
			if !errors.As(err, &ce) {
				t.Fatalf("validate() = %T, want *ConfigError", err)
			}
			if ce.Field != tt.field {
				t.Errorf("Field = %q, want %q", ce.Field, tt.field)
			}
		})
	}
}
