// Package experiment orchestrates the full weighting pipeline: neighbor
// search (cached or fresh), instance materialization, parallel weighting
// with composite-scheme resolution, normalization, instance selection, and
// an optional downstream-model evaluation of the selected subset.
package experiment

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"math/rand"
	"runtime"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mkbrgr/weighbor/dataset"
	"github.com/mkbrgr/weighbor/knn"
	"github.com/mkbrgr/weighbor/mlp"
	"github.com/mkbrgr/weighbor/regress"
	"github.com/mkbrgr/weighbor/selection"
	"github.com/mkbrgr/weighbor/weighting"
)

// Selection methods accepted by Experiment.SelectMethod.
const (
	SelectNone      = "none"
	SelectFraction  = "fraction"
	SelectThreshold = "threshold"
)

const defaultHoldout = 0.2

// Experiment drives one weighting run over a dataset. Required inputs go
// through NewExperiment; the exported fields tune the optional stages and
// fall back to sensible defaults when left at their zero values.
type Experiment struct {
	// DS is the dataset whose instances are weighed.
	DS dataset.Dataset

	// Scheme is the weighting scheme, possibly a composite remoteness form.
	Scheme weighting.Scheme

	// Exponent is the Minkowski exponent handed to the estimators.
	Exponent float64

	// K is the neighborhood size. Defaults to 10.
	K int

	// KNNExponent is the Minkowski exponent for neighbor search. Defaults
	// to Exponent, so neighborhoods are found under the same metric that
	// weighs them.
	KNNExponent float64

	// CachePath, when set, loads the neighbor cache from this path if it is
	// valid and writes a fresh one otherwise.
	CachePath string

	// Workers bounds parallelism for search and weighting. Defaults to
	// runtime.NumCPU().
	Workers int

	// Policy resolves composite schemes per instance. Defaults to RoundRobin.
	Policy AlternationPolicy

	// Regressor backs the nonlinearity scheme. Defaults to regress.OLS.
	Regressor weighting.Regressor

	// SkipFailures turns per-instance rank-deficient or degenerate fits
	// into weight 0 plus an entry in Result.Failed instead of aborting the
	// run. Configuration errors still abort.
	SkipFailures bool

	// SelectMethod chooses the selection step: SelectFraction,
	// SelectThreshold, or SelectNone (empty string means none).
	SelectMethod string

	// SelectFraction keeps the top fraction of instances by weight.
	SelectFraction float64

	// SelectThreshold keeps instances with normalized weight >= threshold.
	SelectThreshold float64

	// Train enables the downstream-model evaluation of the selection.
	Train bool

	// TrainConfig configures the evaluation model. InputDim defaults to
	// the dataset's Dim and Seed to the experiment Seed.
	TrainConfig mlp.Config

	// Holdout is the fraction of examples held out of training for the
	// RMSE evaluation. Defaults to 0.2.
	Holdout float64

	// Seed drives the holdout shuffle and, when TrainConfig.Seed is unset,
	// the model initialization. Zero means time-based.
	Seed int64
}

// Result is the outcome of one experiment run.
type Result struct {
	Scheme   weighting.Scheme
	Exponent float64
	K        int

	// Weights are the raw per-instance weights; Normalized is the same
	// vector scaled into [0, 1].
	Weights    []float64
	Normalized []float64

	// Mask holds the selected indices, nil when selection was disabled.
	Mask *selection.Mask

	// Failed lists instances zeroed under SkipFailures, ascending.
	Failed []int

	// RMSEFull and RMSESelected are holdout errors of models trained on
	// all vs selected instances; NaN when training was disabled.
	RMSEFull     float64
	RMSESelected float64

	// Instances is the dataset size; Selected the kept count (equal to
	// Instances when selection was disabled).
	Instances int
	Selected  int

	Elapsed time.Duration
}

// NewExperiment creates an Experiment over ds with the given scheme and
// exponent, validated up front, and defaults for every optional stage.
func NewExperiment(ds dataset.Dataset, scheme weighting.Scheme, exponent float64) (*Experiment, error) {
	if ds == nil {
		return nil, errors.New("dataset cannot be nil")
	}
	cfg := weighting.Config{Scheme: scheme, Exponent: exponent}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Experiment{
		DS:          ds,
		Scheme:      scheme,
		Exponent:    exponent,
		K:           10,
		KNNExponent: exponent,
		Workers:     runtime.NumCPU(),
		Policy:      RoundRobin{},
		Regressor:   regress.OLS{},
		Holdout:     defaultHoldout,
	}, nil
}

// Run executes the pipeline and returns its Result. The run is
// deterministic for fixed inputs, seeds, and policy.
func (e *Experiment) Run(ctx context.Context) (*Result, error) {
	start := time.Now()

	if e.DS == nil {
		return nil, errors.New("dataset cannot be nil")
	}
	cfg := weighting.Config{Scheme: e.Scheme, Exponent: e.Exponent}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	n := e.DS.Len()
	if n == 0 {
		return nil, fmt.Errorf("dataset %s is empty", e.DS.Name())
	}

	k := e.K
	if k <= 0 {
		k = 10
	}
	workers := e.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	log.Printf("[experiment] dataset %s: %d instances, dim %d", e.DS.Name(), n, e.DS.Dim())

	neighbors, err := e.searchNeighbors(k, workers)
	if err != nil {
		return nil, err
	}

	instances, err := MaterializeInstances(e.DS, neighbors)
	if err != nil {
		return nil, err
	}

	// Resolve composite schemes up front, in index order, so stateful
	// policies stay deterministic under the parallel weighting below.
	policy := e.Policy
	if policy == nil {
		policy = RoundRobin{}
	}
	configs := make([]weighting.Config, n)
	for i := range configs {
		s := e.Scheme
		if s.Composite() {
			s = policy.Resolve(i, s)
		}
		configs[i] = weighting.Config{Scheme: s, Exponent: e.Exponent}
	}

	reg := e.Regressor
	if reg == nil {
		reg = regress.OLS{}
	}
	weigher := weighting.NewWeigher(reg)

	log.Printf("[experiment] weighing %d instances with %s (z=%g, workers=%d)", n, e.Scheme, e.Exponent, workers)

	weights := make([]float64, n)
	var failedMu sync.Mutex
	var failed []int

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range instances {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			w, err := weigher.Weigh(instances[i], configs[i])
			if err != nil {
				if e.SkipFailures && (errors.Is(err, weighting.ErrRankDeficient) || errors.Is(err, weighting.ErrDegenerateFit)) {
					failedMu.Lock()
					failed = append(failed, i)
					failedMu.Unlock()
					return nil
				}
				return fmt.Errorf("weigh instance %d: %w", i, err)
			}
			weights[i] = w
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	sort.Ints(failed)
	if len(failed) > 0 {
		log.Printf("warning: %d instances failed to weigh and were zeroed", len(failed))
	}

	normalized, err := selection.Normalize(weights)
	if err != nil {
		return nil, fmt.Errorf("normalize weights: %w", err)
	}

	mask, err := e.selectInstances(normalized)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Scheme:       e.Scheme,
		Exponent:     e.Exponent,
		K:            k,
		Weights:      weights,
		Normalized:   normalized,
		Mask:         mask,
		Failed:       failed,
		RMSEFull:     math.NaN(),
		RMSESelected: math.NaN(),
		Instances:    n,
		Selected:     n,
	}
	if mask != nil {
		res.Selected = mask.Count()
		log.Printf("[experiment] selected %d/%d instances", res.Selected, n)
	}

	if e.Train {
		full, sel, err := e.evaluateTraining(mask)
		if err != nil {
			return nil, fmt.Errorf("training evaluation: %w", err)
		}
		res.RMSEFull = full
		res.RMSESelected = sel
		log.Printf("[experiment] evaluation: rmse full=%.6f selected=%.6f", full, sel)
	}

	res.Elapsed = time.Since(start)
	return res, nil
}

// MaterializeInstances builds core instances for every dataset example and
// wires their neighbor lists from the search results. Neighbor entries are
// borrowed references into the returned slice.
func MaterializeInstances(ds dataset.Dataset, neighbors [][]knn.Neighbor) ([]*weighting.Instance, error) {
	if ds == nil {
		return nil, errors.New("dataset cannot be nil")
	}
	n := ds.Len()
	if len(neighbors) != n {
		return nil, fmt.Errorf("neighbor lists cover %d instances, dataset has %d", len(neighbors), n)
	}

	instances := make([]*weighting.Instance, n)
	for i := 0; i < n; i++ {
		input, target, err := ds.Example(i)
		if err != nil {
			return nil, fmt.Errorf("read example %d: %w", i, err)
		}
		instances[i] = weighting.NewInstance(input, target)
	}
	for i, list := range neighbors {
		wired := make([]*weighting.Instance, len(list))
		for j, nb := range list {
			if nb.Index < 0 || nb.Index >= n {
				return nil, fmt.Errorf("neighbor index %d out of range for instance %d", nb.Index, i)
			}
			wired[j] = instances[nb.Index]
		}
		instances[i].Neighbors = wired
	}
	return instances, nil
}

// searchNeighbors produces the all-pairs neighbor lists, preferring a valid
// cache when one is configured.
func (e *Experiment) searchNeighbors(k, workers int) ([][]knn.Neighbor, error) {
	searcher, err := knn.NewSearcher(e.DS, k)
	if err != nil {
		return nil, err
	}
	if e.KNNExponent > 0 {
		searcher.Exponent = e.KNNExponent
	} else if e.Exponent > 0 {
		searcher.Exponent = e.Exponent
	}
	searcher.Workers = workers

	log.Printf("[experiment] neighbors: k=%d, z=%g", k, searcher.Exponent)
	if e.CachePath != "" {
		if err := searcher.LoadCache(e.CachePath); err != nil {
			log.Printf("[experiment] neighbor cache unavailable (%v); recomputing", err)
			// SaveCache computes the lists before writing them.
			if serr := searcher.SaveCache(e.CachePath); serr != nil {
				log.Printf("warning: save neighbor cache: %v", serr)
			}
		} else {
			log.Printf("[experiment] neighbor cache loaded from %s", e.CachePath)
		}
	}
	return searcher.All()
}

// selectInstances applies the configured selection to the normalized
// weights. A nil mask means selection is disabled.
func (e *Experiment) selectInstances(normalized []float64) (*selection.Mask, error) {
	switch e.SelectMethod {
	case "", SelectNone:
		return nil, nil
	case SelectFraction:
		return selection.TopFraction(normalized, e.SelectFraction)
	case SelectThreshold:
		return selection.Threshold(normalized, e.SelectThreshold)
	default:
		return nil, fmt.Errorf("unknown selection method %q", e.SelectMethod)
	}
}

// evaluateTraining trains one model on all training instances and one on
// the selected subset, then reports both holdout RMSEs. The selected RMSE
// is NaN when there is no mask or the mask leaves no training instances.
func (e *Experiment) evaluateTraining(mask *selection.Mask) (float64, float64, error) {
	n := e.DS.Len()
	if n < 2 {
		return math.NaN(), math.NaN(), fmt.Errorf("training evaluation needs at least 2 examples, have %d", n)
	}

	holdout := e.Holdout
	if holdout <= 0 || holdout >= 1 {
		holdout = defaultHoldout
	}
	seed := e.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	rng := rand.New(rand.NewSource(seed))
	perm := rng.Perm(n)
	evalN := int(math.Round(holdout * float64(n)))
	if evalN < 1 {
		evalN = 1
	}
	if evalN > n-1 {
		evalN = n - 1
	}
	evalIdx := perm[:evalN]
	trainIdx := perm[evalN:]

	cfg := e.TrainConfig
	if cfg.InputDim == 0 {
		cfg.InputDim = e.DS.Dim()
	}
	if cfg.Seed == 0 {
		cfg.Seed = seed
	}

	evalDS, err := mlp.NewSubset(e.DS, evalIdx)
	if err != nil {
		return math.NaN(), math.NaN(), err
	}
	fullTrain, err := mlp.NewSubset(e.DS, trainIdx)
	if err != nil {
		return math.NaN(), math.NaN(), err
	}

	full, err := mlp.NewModel(cfg)
	if err != nil {
		return math.NaN(), math.NaN(), err
	}
	if err := full.TrainWithDataset(fullTrain); err != nil {
		return math.NaN(), math.NaN(), fmt.Errorf("train full model: %w", err)
	}
	rmseFull, err := full.RMSE(evalDS)
	if err != nil {
		return math.NaN(), math.NaN(), err
	}

	rmseSel := math.NaN()
	if mask != nil {
		selIdx := make([]int, 0, len(trainIdx))
		for _, idx := range trainIdx {
			if mask.Contains(idx) {
				selIdx = append(selIdx, idx)
			}
		}
		if len(selIdx) == 0 {
			log.Printf("warning: selection left no training instances; skipping selected-model evaluation")
			return rmseFull, rmseSel, nil
		}

		selTrain, err := mlp.NewSubset(e.DS, selIdx)
		if err != nil {
			return rmseFull, math.NaN(), err
		}
		selModel, err := mlp.NewModel(cfg)
		if err != nil {
			return rmseFull, math.NaN(), err
		}
		if err := selModel.TrainWithDataset(selTrain); err != nil {
			return rmseFull, math.NaN(), fmt.Errorf("train selected model: %w", err)
		}
		rmseSel, err = selModel.RMSE(evalDS)
		if err != nil {
			return rmseFull, math.NaN(), err
		}
	}
	return rmseFull, rmseSel, nil
}
