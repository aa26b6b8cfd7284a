// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package workerspool implements the fork-join parallelism used by the iterator: a soft limit on the number of
// goroutines doing work, and a parallel-for that splits a range into chunks.
//
// The default parallelism is runtime.NumCPU(), and it can be changed with the environment variable
// TENSORITER_MAX_PARALLELISM: 0 disables parallelism, -1 makes it unlimited.
package workerspool

import (
	"os"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/tensoriter/pkg/support/xsync"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// EnvMaxParallelism is the environment variable that overrides the default parallelism.
const EnvMaxParallelism = "TENSORITER_MAX_PARALLELISM"

type Pool struct {
	// maxParallelism is a soft target on the limit of parallel work to do.
	// The actual number of goroutines is higher than that -- because of waits and such.
	maxParallelism int
	mu             sync.Mutex
	numRunning     int

	// extraParallelism is temporarily increased when a worker goes to sleep.
	extraParallelism atomic.Int32
}

// New returns a new Pool of workers with the default parallelism: runtime.NumCPU(), or the value of
// TENSORITER_MAX_PARALLELISM if it is set.
func New() *Pool {
	w := &Pool{}
	w.maxParallelism = runtime.NumCPU()
	if value, found := os.LookupEnv(EnvMaxParallelism); found {
		parallelism, err := strconv.Atoi(value)
		if err != nil {
			klog.Warningf("ignoring invalid %s=%q: %v", EnvMaxParallelism, value, err)
		} else {
			w.maxParallelism = parallelism
		}
	}
	return w
}

var (
	defaultPool     *Pool
	defaultPoolOnce sync.Once
)

// Default returns the Pool shared by all iterators, created on first use.
func Default() *Pool {
	defaultPoolOnce.Do(func() { defaultPool = New() })
	return defaultPool
}

// IsEnabled returns whether parallelism is enabled (maxParallelism is != 0)
func (w *Pool) IsEnabled() bool {
	return w.maxParallelism != 0
}

// IsUnlimited returns whether parallelism is unlimited (maxParallelism < 0)
func (w *Pool) IsUnlimited() bool {
	return w.maxParallelism < 0
}

// MaxParallelism is a soft-target for parallelism (the limit of goroutines is higher that this).
// If set to 0 parallelism is disabled.
// If set to -1 parallelism is unlimited.
func (w *Pool) MaxParallelism() int {
	return w.maxParallelism
}

// SetMaxParallelism sets the maxParallelism.
//
// You should only change the parallelism before any workers start running. If changed during the execution
// the behavior is undefined.
func (w *Pool) SetMaxParallelism(maxParallelism int) {
	w.maxParallelism = maxParallelism
}

// NumWorkers is the number of chunks ParallelFor splits work into: 1 if parallelism is disabled,
// runtime.NumCPU() if it is unlimited.
func (w *Pool) NumWorkers() int {
	switch {
	case w.maxParallelism == 0:
		return 1
	case w.maxParallelism < 0:
		return runtime.NumCPU()
	}
	return w.maxParallelism
}

const goroutineToParallelismRatio = 2

// lockedIsFull returns whether all available workers are in use.
//
// It must be called with workerPool.mu acquired.
func (w *Pool) lockedIsFull() bool {
	if w.maxParallelism == 0 {
		return true
	} else if w.maxParallelism < 0 {
		return false
	}
	return w.numRunning >= goroutineToParallelismRatio*w.maxParallelism+int(w.extraParallelism.Load())
}

// lockedRunTaskInGoroutine runs task in a new goroutine, and keeps tabs on w.numRunning.
//
// It must be called with workerPool.mu acquired.
func (w *Pool) lockedRunTaskInGoroutine(task func()) {
	w.numRunning++
	go func() {
		task()
		w.mu.Lock()
		w.numRunning--
		w.mu.Unlock()
	}()
}

// StartIfAvailable runs the task in a separate goroutine, if there are enough workers left.
// It returns true if it found workers to run the function, false otherwise.
//
// It's up to the client to synchronize the end of the function execution.
func (w *Pool) StartIfAvailable(task func()) bool {
	if w.IsUnlimited() {
		go task()
		return true
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.lockedIsFull() {
		return false
	}
	w.lockedRunTaskInGoroutine(task)
	return true
}

// WorkerIsAsleep indicates the worker (the one that called the method) is going to sleep waiting
// for other workers, and temporarily increases the available number of workers.
//
// Call WorkerRestarted when the worker is ready to run again.
func (w *Pool) WorkerIsAsleep() {
	w.extraParallelism.Add(1)
}

// WorkerRestarted indicates the worker (the one that called the method) is ready to run again.
// It should only be called after WorkerIsAsleep.
func (w *Pool) WorkerRestarted() {
	w.extraParallelism.Add(-1)
}

// NumChunks returns the number of chunks ParallelFor splits a range of n elements into: at most NumWorkers(),
// each with at least grainSize elements (except if n < grainSize).
func (w *Pool) NumChunks(n, grainSize int) int {
	if n <= 0 {
		return 0
	}
	grainSize = max(grainSize, 1)
	return max(min(w.NumWorkers(), (n+grainSize-1)/grainSize), 1)
}

// ParallelFor splits the range [begin, end) into NumChunks(end-begin, grainSize) contiguous chunks, and calls fn
// on each chunk, concurrently. It blocks until all chunks are finished.
//
// A panic in fn is recovered and converted to an error. ParallelFor returns the first error returned by
// any of the chunks.
func (w *Pool) ParallelFor(begin, end, grainSize int, fn func(begin, end int) error) error {
	return w.ParallelForChunks(begin, end, grainSize, func(_, begin, end int) error {
		return fn(begin, end)
	})
}

// ParallelForChunks is like ParallelFor, but fn also receives the index of the chunk, in [0, NumChunks).
//
// Chunk 0 runs in the caller's goroutine. The other chunks run in new goroutines while the pool has workers
// available, and inline otherwise: a ParallelFor called from within a chunk of another one won't start more
// goroutines than the pool allows.
func (w *Pool) ParallelForChunks(begin, end, grainSize int, fn func(chunk, begin, end int) error) error {
	numChunks := w.NumChunks(end-begin, grainSize)
	if numChunks == 0 {
		return nil
	}
	if numChunks == 1 {
		return runChunk(fn, 0, begin, end)
	}
	chunkSize := (end - begin + numChunks - 1) / numChunks
	errs := make([]error, numChunks)
	var inline []int
	wg := xsync.NewDynamicWaitGroup()
	for chunk := 1; chunk < numChunks; chunk++ {
		chunkBegin := begin + chunk*chunkSize
		chunkEnd := min(chunkBegin+chunkSize, end)
		if chunkBegin >= chunkEnd {
			break
		}
		wg.Add(1)
		started := w.StartIfAvailable(func() {
			defer wg.Done()
			errs[chunk] = runChunk(fn, chunk, chunkBegin, chunkEnd)
		})
		if !started {
			wg.Done()
			inline = append(inline, chunk)
		}
	}
	errs[0] = runChunk(fn, 0, begin, min(begin+chunkSize, end))
	for _, chunk := range inline {
		chunkBegin := begin + chunk*chunkSize
		errs[chunk] = runChunk(fn, chunk, chunkBegin, min(chunkBegin+chunkSize, end))
	}
	w.WorkerIsAsleep()
	wg.Wait()
	w.WorkerRestarted()
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// runChunk calls fn converting a panic to an error.
func runChunk(fn func(chunk, begin, end int) error, chunk, begin, end int) (err error) {
	exception := exceptions.Try(func() { err = fn(chunk, begin, end) })
	if exception == nil {
		return err
	}
	if e, ok := exception.(error); ok {
		return errors.WithMessagef(e, "panic in parallel chunk [%d, %d)", begin, end)
	}
	return errors.Errorf("panic in parallel chunk [%d, %d): %v", begin, end, exception)
}
