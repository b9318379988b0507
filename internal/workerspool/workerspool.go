// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package workerspool implements a bounded pool of goroutines: at most MaxParallelism tasks
// run at the same time, and submitting more blocks until a running task finishes.
package workerspool

import (
	"runtime"
	"sync"
)

type Pool struct {
	// maxParallelism is the hard limit of tasks running at the same time.
	maxParallelism int
	mu             sync.Mutex
	cond           sync.Cond // Broadcast whenever numRunning is decreased.
	numRunning     int
}

// New returns a new Pool with the given parallelism.
//
// If maxParallelism is 0, it defaults to runtime.NumCPU().
// If maxParallelism is negative, parallelism is unlimited.
func New(maxParallelism int) *Pool {
	w := &Pool{}
	if maxParallelism == 0 {
		maxParallelism = runtime.NumCPU()
	}
	w.maxParallelism = maxParallelism
	w.cond = sync.Cond{L: &w.mu}
	return w
}

// IsUnlimited returns whether parallelism is unlimited (maxParallelism < 0).
func (w *Pool) IsUnlimited() bool {
	return w.maxParallelism < 0
}

// MaxParallelism is the limit of tasks running at the same time. It is negative if unlimited.
func (w *Pool) MaxParallelism() int {
	return w.maxParallelism
}

// NumRunning returns the number of tasks currently running.
func (w *Pool) NumRunning() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.numRunning
}

// lockedIsFull returns whether all available workers are in use.
//
// It must be called with Pool.mu acquired.
func (w *Pool) lockedIsFull() bool {
	if w.maxParallelism < 0 {
		return false
	}
	return w.numRunning >= w.maxParallelism
}

// WaitToStart waits until there is a worker available and runs the task in a new goroutine.
//
// If cancel is not nil and it is closed while waiting, the task is not started and WaitToStart returns false.
func (w *Pool) WaitToStart(cancel <-chan struct{}, task func()) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	for w.lockedIsFull() {
		if isClosed(cancel) {
			return false
		}
		w.cond.Wait()
	}
	if isClosed(cancel) {
		return false
	}
	w.lockedRunTaskInGoroutine(task)
	return true
}

// Wake wakes up any goroutine blocked in WaitToStart, so it can re-check its cancel channel.
func (w *Pool) Wake() {
	w.mu.Lock()
	w.cond.Broadcast()
	w.mu.Unlock()
}

// Wait blocks until all running tasks have finished.
func (w *Pool) Wait() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for w.numRunning > 0 {
		w.cond.Wait()
	}
}

// lockedRunTaskInGoroutine and keep tabs on Pool.numRunning.
//
// It must be called with Pool.mu acquired.
func (w *Pool) lockedRunTaskInGoroutine(task func()) {
	w.numRunning++
	go func() {
		defer func() {
			w.mu.Lock()
			w.numRunning--
			w.cond.Broadcast()
			w.mu.Unlock()
		}()
		task()
	}()
}

func isClosed(c <-chan struct{}) bool {
	if c == nil {
		return false
	}
	select {
	case <-c:
		return true
	default:
		return false
	}
}
