// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package frame

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/isosurface"
	"github.com/gogpu/isosurface/field"
)

type recordingRenderer struct {
	meshes []*isosurface.Mesh
}

func (r *recordingRenderer) SetMesh(m *isosurface.Mesh) { r.meshes = append(r.meshes, m) }

type recordingField struct {
	times []float64
	err   error
}

func (f *recordingField) Update(vol isosurface.Volume, t float64) error {
	f.times = append(f.times, t)
	if f.err != nil {
		return f.err
	}
	return field.Sphere(mgl32.Vec3{3.5, 3.5, 3.5}, float32(1+t)).Update(vol, t)
}

func newOrchestrator(t *testing.T, f Field, r Renderer) *Orchestrator {
	t.Helper()
	dev := isosurface.NewSoftwareDevice(2)
	t.Cleanup(func() { _ = dev.Close() })
	dims := isosurface.Dims{X: 8, Y: 8, Z: 8}
	vol, err := dev.NewVolume(dims)
	if err != nil {
		t.Fatal(err)
	}
	ex, err := isosurface.New(dev, dims, 1024)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = ex.Close() })
	return &Orchestrator{
		Field:     f,
		Volume:    vol,
		Extractor: ex,
		Renderer:  r,
		Isovalue:  0,
		Scale:     0.5,
	}
}

func TestStep(t *testing.T) {
	f := &recordingField{}
	r := &recordingRenderer{}
	o := newOrchestrator(t, f, r)

	mesh, err := o.Step(1)
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if len(r.meshes) != 1 || r.meshes[0] != mesh {
		t.Fatal("renderer did not receive the mesh")
	}
	if mesh.Bounds().Size != (mgl32.Vec3{4, 4, 4}) {
		t.Errorf("Bounds().Size = %v", mesh.Bounds().Size)
	}
	if n, _ := o.Extractor.LiveTriangles(); n == 0 {
		t.Error("no triangles extracted")
	}
}

func TestStepFieldError(t *testing.T) {
	boom := errors.New("boom")
	o := newOrchestrator(t, &recordingField{err: boom}, nil)
	if _, err := o.Step(0); !errors.Is(err, boom) {
		t.Errorf("Step() = %v, want wrapped field error", err)
	}
	if o.Extractor.Frame() != 0 {
		t.Error("extraction ran after a field error")
	}
}

func TestStepIncomplete(t *testing.T) {
	o := &Orchestrator{}
	if _, err := o.Step(0); !errors.Is(err, ErrIncomplete) {
		t.Errorf("Step() = %v, want ErrIncomplete", err)
	}
	if _, err := o.Run(context.Background(), 1, 0); !errors.Is(err, ErrIncomplete) {
		t.Errorf("Run() = %v, want ErrIncomplete", err)
	}
}

func TestRunFrames(t *testing.T) {
	f := &recordingField{}
	r := &recordingRenderer{}
	o := newOrchestrator(t, f, r)

	n, err := o.Run(context.Background(), 4, 0.25)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if n != 4 || len(r.meshes) != 4 {
		t.Fatalf("frames = %d, meshes = %d, want 4", n, len(r.meshes))
	}
	want := []float64{0, 0.25, 0.5, 0.75}
	for i, tt := range f.times {
		if tt != want[i] {
			t.Errorf("frame %d time = %v, want %v", i, tt, want[i])
		}
	}
	if o.Extractor.Frame() != 4 {
		t.Errorf("Extractor.Frame() = %d, want 4", o.Extractor.Frame())
	}
}

func TestRunCancelled(t *testing.T) {
	o := newOrchestrator(t, &recordingField{}, nil)
	o.Interval = time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	n, err := o.Run(ctx, 0, 0.01)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if n == 0 {
		t.Error("no frames before cancellation")
	}
}

func TestRunStopsOnError(t *testing.T) {
	o := newOrchestrator(t, &recordingField{}, nil)
	_ = o.Extractor.Close()
	n, err := o.Run(context.Background(), 3, 0.1)
	if !errors.Is(err, isosurface.ErrReleased) || n != 0 {
		t.Errorf("Run() = %d, %v, want 0, ErrReleased", n, err)
	}
}
