// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

//go:build !nogpu

package gpu

import (
	"errors"
	"fmt"
	"sync"
)

// ErrMemoryBudgetExceeded is returned when a buffer allocation would exceed
// the dispatcher's memory budget.
var ErrMemoryBudgetExceeded = errors.New("isosurface gpu: memory budget exceeded")

// MemoryStats contains buffer memory usage of a dispatcher.
type MemoryStats struct {
	// BudgetBytes is the allocation limit. Zero means unlimited.
	BudgetBytes uint64

	// UsedBytes is the memory held by live buffers.
	UsedBytes uint64

	// PeakBytes is the highest UsedBytes observed.
	PeakBytes uint64

	// Buffers is the number of live buffers.
	Buffers int

	// Utilization is UsedBytes/BudgetBytes, or 0 without a budget.
	Utilization float64
}

// String returns a human-readable string of memory stats.
func (s MemoryStats) String() string {
	if s.BudgetBytes == 0 {
		return fmt.Sprintf("Memory[%d KB used, %d KB peak, %d buffers]",
			s.UsedBytes/1024, s.PeakBytes/1024, s.Buffers)
	}
	return fmt.Sprintf("Memory[%.1f%% used, %d/%d KB, %d buffers]",
		s.Utilization*100, s.UsedBytes/1024, s.BudgetBytes/1024, s.Buffers)
}

// memoryTracker accounts buffer bytes against an optional budget. Buffers
// in use by a session cannot be evicted, so an allocation over budget
// fails instead.
type memoryTracker struct {
	mu      sync.Mutex
	budget  uint64
	used    uint64
	peak    uint64
	buffers int
}

func (m *memoryTracker) reserve(size uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.budget > 0 && m.used+size > m.budget {
		return fmt.Errorf("%w: %d bytes requested, %d of %d in use",
			ErrMemoryBudgetExceeded, size, m.used, m.budget)
	}
	m.used += size
	m.peak = max(m.peak, m.used)
	m.buffers++
	return nil
}

func (m *memoryTracker) release(size uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.used -= min(size, m.used)
	if m.buffers > 0 {
		m.buffers--
	}
}

func (m *memoryTracker) setBudget(bytes uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.budget = bytes
}

func (m *memoryTracker) stats() MemoryStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := MemoryStats{
		BudgetBytes: m.budget,
		UsedBytes:   m.used,
		PeakBytes:   m.peak,
		Buffers:     m.buffers,
	}
	if m.budget > 0 {
		s.Utilization = float64(m.used) / float64(m.budget)
	}
	return s
}
