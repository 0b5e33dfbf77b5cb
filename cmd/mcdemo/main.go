// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Command mcdemo animates a noise field and extracts its isosurface every
// frame, headless. It reports triangle counts and can write the last frame
// as a Wavefront OBJ file.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/gogpu/isosurface"
	"github.com/gogpu/isosurface/field"
	"github.com/gogpu/isosurface/frame"
)

func main() {
	var (
		configPath = flag.String("config", "", "TOML config file (defaults are built in)")
		device     = flag.String("device", "", "override run.device: software or gpu")
		frames     = flag.Int("frames", -1, "override run.frames; 0 runs until interrupted")
		workers    = flag.Int("workers", -1, "override run.workers for the software device")
		objPath    = flag.String("obj", "", "write the last frame to this OBJ file")
		verbose    = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	isosurface.SetLogger(logger)

	cfg := DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = LoadConfig(*configPath); err != nil {
			log.Fatal(err)
		}
	}
	if *device != "" {
		cfg.Run.Device = *device
	}
	if *frames >= 0 {
		cfg.Run.Frames = *frames
	}
	if *workers >= 0 {
		cfg.Run.Workers = *workers
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	if err := run(cfg, logger, *objPath); err != nil {
		log.Fatal(err)
	}
}

func run(cfg Config, logger *slog.Logger, objPath string) error {
	dev, err := openDevice(cfg.Run)
	if err != nil {
		return err
	}
	defer dev.Close()

	dims := cfg.Dims()
	vol, err := dev.NewVolume(dims)
	if err != nil {
		return err
	}
	defer vol.Release()

	ex, err := isosurface.New(dev, dims, cfg.Extract.Budget,
		isosurface.WithClearThreads(cfg.Extract.ClearThreads),
		isosurface.WithLabel("mcdemo"))
	if err != nil {
		return err
	}
	defer ex.Close()

	o := &frame.Orchestrator{
		Field:     field.NewGenerator(cfg.NoiseField().Func(cfg.Dims())),
		Volume:    vol,
		Extractor: ex,
		Renderer:  &logRenderer{ex: ex, log: logger, every: cfg.Run.ReportEach},
		Isovalue:  cfg.Extract.Isovalue,
		Scale:     cfg.Grid.Scale,
	}
	dt := 1 / cfg.Run.FPS
	if cfg.Run.Realtime {
		o.Interval = time.Duration(dt * float64(time.Second))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	start := time.Now()
	n, err := o.Run(ctx, cfg.Run.Frames, dt)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)
	logger.Info("mcdemo: done", "device", dev.Name(), "frames", n, "elapsed", elapsed,
		"ms_per_frame", float64(elapsed.Milliseconds())/float64(max(n, 1)),
		"memory", memoryStats(dev))

	if objPath != "" && n > 0 {
		return writeOBJFile(objPath, ex)
	}
	return nil
}

func openDevice(cfg RunConfig) (isosurface.Device, error) {
	if cfg.Device == "gpu" {
		return openGPU()
	}
	return isosurface.NewSoftwareDevice(cfg.Workers), nil
}
