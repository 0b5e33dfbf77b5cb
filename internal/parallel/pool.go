// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package parallel runs compute workgroups on a pool of goroutines.
package parallel

import (
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
)

// ErrClosed is returned by Dispatch after Close.
var ErrClosed = errors.New("parallel: pool closed")

// tasksPerWorker controls how finely a dispatch is split. More chunks than
// workers lets idle workers steal the tail of a slow dispatch.
const tasksPerWorker = 4

// Pool is a fixed set of worker goroutines executing workgroup ranges.
//
// Each worker owns a queue and steals from the other queues when its own is
// empty. With a single worker, chunks and the groups inside them run in
// ascending order, which makes dispatches deterministic.
//
// Pool is safe for concurrent use.
type Pool struct {
	workers int

	// queues holds per-worker work queues.
	queues []chan func()

	done    chan struct{}
	wg      sync.WaitGroup
	running atomic.Bool
}

// New creates a pool with the given number of workers.
// If workers is 0 or negative, GOMAXPROCS is used.
func New(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	queueSize := max(workers*tasksPerWorker, 8)

	p := &Pool{
		workers: workers,
		queues:  make([]chan func(), workers),
		done:    make(chan struct{}),
	}
	for i := range workers {
		p.queues[i] = make(chan func(), queueSize)
	}

	p.running.Store(true)

	p.wg.Add(workers)
	for i := range workers {
		go p.worker(i)
	}
	return p
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	own := p.queues[id]
	for {
		select {
		case <-p.done:
			p.drain(own)
			return
		case work := <-own:
			work()
		default:
			if stolen := p.steal(id); stolen != nil {
				stolen()
				continue
			}
			select {
			case <-p.done:
				p.drain(own)
				return
			case work := <-own:
				work()
			}
		}
	}
}

// drain runs whatever is left in a queue.
func (p *Pool) drain(queue chan func()) {
	for {
		select {
		case work := <-queue:
			work()
		default:
			return
		}
	}
}

// steal takes one item from another worker's queue, or returns nil.
func (p *Pool) steal(self int) func() {
	for i := range p.workers {
		if i == self {
			continue
		}
		select {
		case work := <-p.queues[i]:
			return work
		default:
		}
	}
	return nil
}

// Dispatch calls fn once for every group in [0, groups) and returns when
// all calls have finished. Groups are split into contiguous chunks spread
// round-robin over the workers.
func (p *Pool) Dispatch(groups int, fn func(group int)) error {
	if !p.running.Load() {
		return ErrClosed
	}
	if groups <= 0 {
		return nil
	}

	chunks := min(groups, p.workers*tasksPerWorker)
	size := (groups + chunks - 1) / chunks

	var wg sync.WaitGroup
	for c, start := 0, 0; start < groups; c, start = c+1, start+size {
		end := min(start+size, groups)
		wg.Add(1)
		work := func() {
			defer wg.Done()
			for g := start; g < end; g++ {
				fn(g)
			}
		}
		select {
		case p.queues[c%p.workers] <- work:
		case <-p.done:
			wg.Done()
		}
	}
	wg.Wait()

	if !p.running.Load() {
		return ErrClosed
	}
	return nil
}

// Close stops the workers after the queued work has run.
// Close is safe to call multiple times.
func (p *Pool) Close() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}
	close(p.done)
	p.wg.Wait()
}

// Workers returns the number of workers in the pool.
func (p *Pool) Workers() int {
	return p.workers
}

// IsRunning reports whether the pool accepts work.
func (p *Pool) IsRunning() bool {
	return p.running.Load()
}
