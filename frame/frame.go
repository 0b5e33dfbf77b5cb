// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package frame drives the per-frame loop of a host: update the field,
// extract the isosurface, hand the mesh to the renderer.
package frame

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gogpu/isosurface"
)

// Field writes a scalar field at time t into a volume.
type Field interface {
	Update(vol isosurface.Volume, t float64) error
}

// Renderer receives the mesh after every extraction. The mesh is the same
// object every frame; its buffers are rewritten in place.
type Renderer interface {
	SetMesh(mesh *isosurface.Mesh)
}

// ErrIncomplete is returned when an Orchestrator is missing a component.
var ErrIncomplete = errors.New("frame: orchestrator is missing a component")

// Orchestrator runs one field update and one extraction per frame.
type Orchestrator struct {
	Field     Field
	Volume    isosurface.Volume
	Extractor *isosurface.Extractor
	Renderer  Renderer // optional

	Isovalue float32
	Scale    float32

	// Interval paces Run in wall-clock time. Zero runs frames back to back.
	Interval time.Duration
}

func (o *Orchestrator) check() error {
	switch {
	case o.Field == nil:
		return fmt.Errorf("%w: field", ErrIncomplete)
	case o.Volume == nil:
		return fmt.Errorf("%w: volume", ErrIncomplete)
	case o.Extractor == nil:
		return fmt.Errorf("%w: extractor", ErrIncomplete)
	}
	return nil
}

// Step renders the frame at time t.
func (o *Orchestrator) Step(t float64) (*isosurface.Mesh, error) {
	if err := o.check(); err != nil {
		return nil, err
	}
	if err := o.Field.Update(o.Volume, t); err != nil {
		return nil, fmt.Errorf("frame: update field: %w", err)
	}
	mesh, err := o.Extractor.Extract(o.Volume, o.Isovalue, o.Scale)
	if err != nil {
		return nil, fmt.Errorf("frame: extract: %w", err)
	}
	if o.Renderer != nil {
		o.Renderer.SetMesh(mesh)
	}
	return mesh, nil
}

// Run steps frames times, advancing time by dt per frame, and returns the
// number of frames completed. frames <= 0 runs until ctx is done. A
// cancelled context ends the loop without error.
func (o *Orchestrator) Run(ctx context.Context, frames int, dt float64) (int, error) {
	if err := o.check(); err != nil {
		return 0, err
	}
	var tick <-chan time.Time
	if o.Interval > 0 {
		ticker := time.NewTicker(o.Interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	log := isosurface.Logger()
	start := time.Now()
	n := 0
	for frames <= 0 || n < frames {
		select {
		case <-ctx.Done():
			log.Info("frame: run cancelled", "frames", n)
			return n, nil
		default:
		}
		if _, err := o.Step(float64(n) * dt); err != nil {
			return n, err
		}
		n++
		log.Debug("frame: step", "frame", n)

		if tick != nil {
			select {
			case <-ctx.Done():
				log.Info("frame: run cancelled", "frames", n)
				return n, nil
			case <-tick:
			}
		}
	}
	log.Info("frame: run complete", "frames", n, "elapsed", time.Since(start))
	return n, nil
}
