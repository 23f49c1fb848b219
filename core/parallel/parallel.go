// Package parallel provides chunked fan-out helpers used by CPU-bound training code.
package parallel

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// maxWorkers caps the number of goroutines; 0 means runtime.NumCPU().
var maxWorkers atomic.Int64

// SetMaxWorkers caps the worker count used by Parallelize. n <= 0 restores the default.
func SetMaxWorkers(n int) {
	if n < 0 {
		n = 0
	}
	maxWorkers.Store(int64(n))
}

// Workers returns the number of workers Parallelize would use for items.
func Workers(items int) int {
	n := int(maxWorkers.Load())
	if n == 0 {
		n = runtime.NumCPU()
	}
	if n > items {
		n = items
	}
	if n < 1 {
		n = 1
	}
	return n
}

// Parallelize divides items into contiguous ranges, one per worker, and runs fn
// on each range concurrently. It returns once every range is processed.
func Parallelize(items int, fn func(start, end int)) {
	if items <= 0 {
		return
	}

	numWorkers := Workers(items)
	chunkSize := (items + numWorkers - 1) / numWorkers

	var wg sync.WaitGroup
	for start := 0; start < items; start += chunkSize {
		end := start + chunkSize
		if end > items {
			end = items
		}
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}
	wg.Wait()
}

// ParallelizeWithThreshold runs fn sequentially over the whole range when items
// does not exceed threshold, and in parallel otherwise.
func ParallelizeWithThreshold(items int, threshold int, fn func(start, end int)) {
	if items <= 0 {
		return
	}
	if items <= threshold {
		fn(0, items)
		return
	}
	Parallelize(items, fn)
}
