// Package parallel runs independent units of work across goroutines.
//
// pllay uses it for the per-sample persistence loop and for per-row KNN and
// DTM evaluation. Every caller passes work that touches disjoint output
// ranges and only reads shared inputs.
package parallel

import (
	"runtime"
	"sync"
)

// Config controls parallel execution behavior.
type Config struct {
	Enabled      bool // Whether parallel execution is enabled.
	NumWorkers   int  // Number of worker goroutines to use.
	MinChunkSize int  // Minimum items per goroutine to avoid overhead.
}

// DefaultConfig returns sensible defaults based on CPU count.
func DefaultConfig() Config {
	n := runtime.NumCPU()
	return Config{
		Enabled:      n > 1,
		NumWorkers:   n,
		MinChunkSize: 64, // Typical cache line aware chunk.
	}
}

// Serial returns a configuration that always runs in the calling goroutine.
func Serial() Config {
	return Config{}
}

// PerItem returns a configuration for coarse work where every item is
// expensive on its own (one persistence computation per sample).
func PerItem(workers int) Config {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return Config{
		Enabled:      workers > 1,
		NumWorkers:   workers,
		MinChunkSize: 1,
	}
}

// Coarse returns c adjusted for coarse items: the same worker count with a
// minimum chunk of one item. A disabled config stays disabled.
func (c Config) Coarse() Config {
	if !c.Enabled {
		return Serial()
	}
	return PerItem(c.NumWorkers)
}

// For executes f(i) for i in [0, n) with optional parallelism.
// Falls back to sequential execution if parallelism is disabled or n is too small.
func For(n int, f func(i int), cfg Config) {
	_ = ForErr(n, func(i int) error {
		f(i)
		return nil
	}, cfg)
}

// ForErr executes f(i) for i in [0, n) and returns the error of the lowest
// index that failed. All items are attempted even if one fails.
func ForErr(n int, f func(i int) error, cfg Config) error {
	if n <= 0 {
		return nil
	}
	workers := cfg.NumWorkers
	if workers <= 0 {
		workers = 1
	}
	if !cfg.Enabled || workers == 1 || n < cfg.MinChunkSize || n == 1 {
		// Sequential fallback.
		var first error
		for i := 0; i < n; i++ {
			if err := f(i); err != nil && first == nil {
				first = err
			}
		}
		return first
	}

	errs := make([]error, n)
	var wg sync.WaitGroup
	chunkSize := max((n+workers-1)/workers, cfg.MinChunkSize, 1)

	for start := 0; start < n; start += chunkSize {
		end := min(start+chunkSize, n)
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			for i := s; i < e; i++ {
				errs[i] = f(i)
			}
		}(start, end)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
