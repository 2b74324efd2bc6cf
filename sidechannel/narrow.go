package sidechannel

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
)

// NarrowOptions configures NarrowCandidates
type NarrowOptions struct {
	// NumWorkers controls parallelization (0 = GOMAXPROCS)
	NumWorkers int

	// OnProgress, if set, is called after each candidate is decided.
	// It may be called concurrently.
	OnProgress func(done, total int)
}

// DefaultNarrowOptions returns options with auto-detected parallelism
func DefaultNarrowOptions() *NarrowOptions {
	return &NarrowOptions{}
}

// Matches reports whether a candidate secret reproduces every observed
// iteration count. It stops at the first mismatch.
func Matches(oracle IterationOracle, candidate []byte, observations []Observation) (bool, error) {
	for _, obs := range observations {
		n, err := oracle.Iterations(candidate, obs.IDs)
		if err != nil {
			return false, err
		}
		if n != obs.Iterations {
			return false, nil
		}
	}
	return true, nil
}

// NarrowCandidates keeps the candidate secrets whose iteration counts match
// all observations. Survivors are returned in input order. With no
// observations every candidate survives.
//
// The oracle must recompute counts the way the observed exchanges produced
// them; ReferenceOracle is the only faithful model of an attacker. An oracle
// backed by GeneratePEFixed reports KMin for every input and narrows nothing.
func NarrowCandidates(ctx context.Context, oracle IterationOracle, observations []Observation, candidates [][]byte, opts *NarrowOptions) ([][]byte, error) {
	if opts == nil {
		opts = DefaultNarrowOptions()
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	numWorkers := opts.NumWorkers
	if numWorkers <= 0 {
		numWorkers = runtime.GOMAXPROCS(0)
	}
	if numWorkers > len(candidates) {
		numWorkers = len(candidates)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Each index is written by exactly one worker
	matched := make([]bool, len(candidates))
	errChan := make(chan error, 1)
	workChan := make(chan int, numWorkers*4)
	var done int64

	// Generate work
	go func() {
		defer close(workChan)
		for i := range candidates {
			select {
			case <-ctx.Done():
				return
			case workChan <- i:
			}
		}
	}()

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case i, ok := <-workChan:
					if !ok {
						return
					}
					match, err := Matches(oracle, candidates[i], observations)
					if err != nil {
						select {
						case errChan <- fmt.Errorf("candidate %d: %w", i, err):
						default:
						}
						cancel()
						return
					}
					matched[i] = match

					n := atomic.AddInt64(&done, 1)
					if opts.OnProgress != nil {
						opts.OnProgress(int(n), len(candidates))
					}
				}
			}
		}()
	}
	wg.Wait()

	select {
	case err := <-errChan:
		return nil, err
	default:
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var survivors [][]byte
	for i, ok := range matched {
		if ok {
			survivors = append(survivors, candidates[i])
		}
	}
	return survivors, nil
}
