// Package knn provides exhaustive k-nearest-neighbor search over dataset
// input vectors using Minkowski distances, plus an on-disk cache for the
// all-pairs neighbor lists the weighting pipeline consumes.
package knn

import (
	"errors"
	"fmt"
	"log"
	"math"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// defaultK is the neighbor count used when Searcher.K is unset.
	defaultK = 10

	// defaultExponent selects Euclidean distance when Searcher.Exponent is unset.
	defaultExponent = 2.0

	// progressIntervalSeconds controls how often All logs progress while
	// computing neighbor lists.
	progressIntervalSeconds = 10
)

// Dataset is the subset of dataset behavior the searcher needs. Using an
// interface here avoids importing the concrete dataset package.
type Dataset interface {
	Len() int
	Example(i int) (input []float64, target float64, err error)
}

// Neighbor is a single search result: the dataset index of a neighboring
// example and its Minkowski distance from the query point.
type Neighbor struct {
	Index    int
	Distance float64
}

// Searcher performs exhaustive nearest-neighbor search over a dataset's
// input vectors. Search answers one query; All computes the neighbor list
// of every example at once and memoizes the result so it can be written to
// or restored from an on-disk cache.
type Searcher struct {
	// DS is the dataset whose input vectors are searched.
	DS Dataset

	// K is the number of neighbors returned per query. Defaults to 10.
	K int

	// Exponent is the Minkowski distance exponent. Defaults to 2 (Euclidean).
	Exponent float64

	// Workers bounds the number of concurrent goroutines used by Search and
	// All. Defaults to runtime.NumCPU().
	Workers int

	// memoized output of All (or an adopted cache).
	neighbors [][]Neighbor
	computed  bool
}

// NewSearcher creates a Searcher over ds. k must be >= 1.
//
// The returned Searcher defaults to Euclidean distance and one worker per
// CPU. Callers can override either through the exported fields before the
// first query.
func NewSearcher(ds Dataset, k int) (*Searcher, error) {
	if ds == nil {
		return nil, errors.New("dataset cannot be nil")
	}
	if k < 1 {
		return nil, fmt.Errorf("k must be >= 1, got %d", k)
	}
	return &Searcher{
		DS:       ds,
		K:        k,
		Exponent: defaultExponent,
		Workers:  runtime.NumCPU(),
	}, nil
}

// Search performs a linear scan of the dataset and returns up to K nearest
// neighbors of query, sorted by increasing distance. exclude is a dataset
// index to omit from the results, normally the query's own index; pass a
// negative value to consider every example.
func (s *Searcher) Search(query []float64, exclude int) ([]Neighbor, error) {
	if s.DS == nil {
		return nil, errors.New("dataset cannot be nil")
	}
	n := s.DS.Len()
	if n == 0 {
		return nil, fmt.Errorf("search dataset is empty")
	}
	z := s.exponent()

	// Use a worker pool to compute distances concurrently.
	jobs := make(chan int, n)
	resultsCh := make(chan Neighbor, n)

	workerCount := s.workerCount()
	if workerCount > n {
		workerCount = n
	}

	var wg sync.WaitGroup
	wg.Add(workerCount)
	for w := 0; w < workerCount; w++ {
		go func() {
			defer wg.Done()
			for i := range jobs {
				if i == exclude {
					continue
				}
				inp, _, err := s.DS.Example(i)
				if err != nil {
					// skip entries we can't read
					continue
				}
				if len(inp) != len(query) {
					continue
				}
				resultsCh <- Neighbor{
					Index:    i,
					Distance: math.Pow(minkowskiSum(query, inp, z), 1/z),
				}
			}
		}()
	}

	// enqueue jobs
	for i := 0; i < n; i++ {
		jobs <- i
	}
	close(jobs)

	// wait for workers to finish and then close results
	go func() {
		wg.Wait()
		close(resultsCh)
	}()

	// collect candidates from channel
	candidates := make([]Neighbor, 0, n)
	for nb := range resultsCh {
		candidates = append(candidates, nb)
	}

	if len(candidates) == 0 {
		return nil, fmt.Errorf("no readable examples in dataset")
	}

	rankNeighbors(candidates)

	k := s.K
	if k <= 0 {
		k = defaultK
	}
	if k > len(candidates) {
		k = len(candidates)
	}
	return candidates[:k], nil
}

// All computes the neighbor list of every example in the dataset, with each
// example excluded from its own list. The result is memoized on the
// Searcher so a following SaveCache call does not recompute it.
//
// The implementation runs a small worker pool to parallelize per-example
// scans and logs progress periodically, since the full pairwise search is
// quadratic in the dataset size.
func (s *Searcher) All() ([][]Neighbor, error) {
	if s.computed {
		return s.neighbors, nil
	}
	if s.DS == nil {
		return nil, errors.New("dataset cannot be nil")
	}

	n := s.DS.Len()
	out := make([][]Neighbor, n)
	if n == 0 {
		s.neighbors = out
		s.computed = true
		return out, nil
	}

	z := s.exponent()
	k := s.K
	if k <= 0 {
		k = defaultK
	}

	workers := s.workerCount()
	if workers > n {
		workers = n
	}

	jobs := make(chan int, n)
	errCh := make(chan error, workers)

	var wg sync.WaitGroup
	wg.Add(workers)

	// atomic counter for progress
	var done int64

	// progress ticker: logs periodically until all examples are processed
	ticker := time.NewTicker(time.Duration(progressIntervalSeconds) * time.Second)
	stopProgress := make(chan struct{})
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				d := atomic.LoadInt64(&done)
				percent := (float64(d) / float64(n)) * 100.0
				log.Printf("[knn] progress: %d/%d (%.1f%%)", d, n, percent)
			case <-stopProgress:
				return
			}
		}
	}()

	// worker goroutines: each worker scans the whole dataset sequentially
	// for its assigned queries, so workers never nest pools.
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range jobs {
				query, _, err := s.DS.Example(i)
				if err != nil {
					// report error and exit worker
					errCh <- fmt.Errorf("read example %d: %w", i, err)
					return
				}
				out[i] = s.nearest(query, i, z, k)
				atomic.AddInt64(&done, 1)
			}
		}()
	}

	// enqueue jobs
	for i := 0; i < n; i++ {
		jobs <- i
	}
	close(jobs)

	// wait for workers to finish
	wg.Wait()

	close(stopProgress)
	close(errCh)

	// If any worker reported an error, return the first one.
	select {
	case e := <-errCh:
		return nil, e
	default:
	}

	s.neighbors = out
	s.computed = true
	return out, nil
}

// nearest is the sequential scan used by All's workers. It returns up to k
// neighbors of query sorted by increasing distance, skipping exclude.
func (s *Searcher) nearest(query []float64, exclude int, z float64, k int) []Neighbor {
	n := s.DS.Len()
	candidates := make([]Neighbor, 0, n)
	for i := 0; i < n; i++ {
		if i == exclude {
			continue
		}
		inp, _, err := s.DS.Example(i)
		if err != nil {
			// skip entries we can't read
			continue
		}
		if len(inp) != len(query) {
			continue
		}
		candidates = append(candidates, Neighbor{
			Index:    i,
			Distance: math.Pow(minkowskiSum(query, inp, z), 1/z),
		})
	}
	rankNeighbors(candidates)
	if k > len(candidates) {
		k = len(candidates)
	}
	return candidates[:k]
}

// rankNeighbors sorts candidates by increasing distance. Ties break toward
// the lower index so repeated runs produce identical neighbor lists.
func rankNeighbors(candidates []Neighbor) {
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Distance != candidates[j].Distance {
			return candidates[i].Distance < candidates[j].Distance
		}
		return candidates[i].Index < candidates[j].Index
	})
}

// minkowskiSum computes the pre-root Minkowski sum between two equal-length
// float64 slices. Callers take the z-th root to obtain the distance.
func minkowskiSum(a, b []float64, z float64) float64 {
	sum := 0.0
	for i := 0; i < len(a) && i < len(b); i++ {
		sum += math.Pow(math.Abs(a[i]-b[i]), z)
	}
	return sum
}

// exponent returns the configured Minkowski exponent, falling back to
// Euclidean when the field was not set.
func (s *Searcher) exponent() float64 {
	if s.Exponent > 0 {
		return s.Exponent
	}
	return defaultExponent
}

// workerCount returns the concurrency bound for search loops.
func (s *Searcher) workerCount() int {
	if s.Workers > 0 {
		return s.Workers
	}
	w := runtime.NumCPU()
	if w < 1 {
		w = 1
	}
	return w
}
