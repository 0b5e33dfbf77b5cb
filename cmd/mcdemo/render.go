// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package main

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/gogpu/isosurface"
)

// logRenderer stands in for a draw call. Every few frames it reads the
// triangle count back and logs it.
type logRenderer struct {
	ex    *isosurface.Extractor
	log   *slog.Logger
	every int
	frame int
}

func (r *logRenderer) SetMesh(m *isosurface.Mesh) {
	r.frame++
	if r.every <= 0 || r.frame%r.every != 0 {
		return
	}
	n, err := r.ex.Counter()
	if err != nil {
		r.log.Warn("mcdemo: read counter", "err", err)
		return
	}
	b := m.Bounds()
	r.log.Info("mcdemo: frame",
		"frame", r.frame,
		"triangles", min(int(n), r.ex.Budget()),
		"demand", n,
		"capacity", m.Capacity()/3,
		"bounds", b.Size)
}

func writeOBJFile(path string, ex *isosurface.Extractor) error {
	f, err := os.Create(path) //nolint:gosec // path comes from the command line
	if err != nil {
		return err
	}
	if err := writeOBJ(f, ex); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// writeOBJ writes the live triangles of the last frame with per-vertex
// normals.
func writeOBJ(w io.Writer, ex *isosurface.Extractor) error {
	live, err := ex.LiveTriangles()
	if err != nil {
		return err
	}
	verts, err := ex.Mesh().ReadVertices()
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "# mcdemo isosurface, %d triangles\n", live)
	for _, v := range verts[:live*3] {
		fmt.Fprintf(bw, "v %g %g %g\n", v.Position[0], v.Position[1], v.Position[2])
	}
	for _, v := range verts[:live*3] {
		fmt.Fprintf(bw, "vn %g %g %g\n", v.Normal[0], v.Normal[1], v.Normal[2])
	}
	for i := range live {
		a, b, c := i*3+1, i*3+2, i*3+3
		fmt.Fprintf(bw, "f %d//%d %d//%d %d//%d\n", a, a, b, b, c, c)
	}
	return bw.Flush()
}
