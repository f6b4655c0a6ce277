// Package config loads experiment parameter files. Parameters live in a
// YAML document mirroring the pipeline stages (dataset, knn, weighting,
// remoteness, selection, training, output); Load starts from the defaults
// and lets the file override them, so a file only needs the keys it wants
// to change. Validation happens before any parameter reaches an estimator.
package config

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mkbrgr/weighbor/weighting"
)

// Params holds every tunable of a weighting run.
type Params struct {
	Dataset    DatasetParams    `yaml:"dataset"`
	KNN        KNNParams        `yaml:"knn"`
	Weighting  WeightingParams  `yaml:"weighting"`
	Remoteness RemotenessParams `yaml:"remoteness"`
	Selection  SelectionParams  `yaml:"selection"`
	Training   TrainingParams   `yaml:"training"`
	Output     OutputParams     `yaml:"output"`

	// Workers bounds the weighing and neighbor-search pools; 0 means one
	// worker per CPU.
	Workers int `yaml:"workers"`
}

// DatasetParams selects the CSV files and columns to load. Pattern may be
// left empty in the file and supplied on the command line instead.
type DatasetParams struct {
	Pattern   string   `yaml:"pattern"`
	InputCols []string `yaml:"input_cols"`
	TargetCol string   `yaml:"target_col"`
	Name      string   `yaml:"name"`
}

// KNNParams controls the neighbor search. Exponent 0 means "use the
// weighting exponent"; Cache names an optional neighbor cache file.
type KNNParams struct {
	K        int     `yaml:"k"`
	Exponent float64 `yaml:"exponent"`
	Cache    string  `yaml:"cache"`
}

// WeightingParams names the scheme and the Minkowski exponent.
// SkipFailures keeps a run going when an instance's local fit is rank
// deficient or degenerate; the instance gets weight 0 and is reported.
type WeightingParams struct {
	Scheme       string  `yaml:"scheme"`
	Exponent     float64 `yaml:"exponent"`
	SkipFailures bool    `yaml:"skip_failures"`
}

// RemotenessParams picks how composite remoteness schemes alternate
// between their proximity and surrounding variants.
type RemotenessParams struct {
	Policy string `yaml:"policy"`
	Seed   int64  `yaml:"seed"`
}

// SelectionParams controls which instances the normalized weights keep.
type SelectionParams struct {
	Method    string  `yaml:"method"`
	Fraction  float64 `yaml:"fraction"`
	Threshold float64 `yaml:"threshold"`
}

// TrainingParams configures the optional model evaluation step.
type TrainingParams struct {
	Enabled      bool    `yaml:"enabled"`
	Hidden       []int   `yaml:"hidden"`
	LearningRate float64 `yaml:"learning_rate"`
	Epochs       int     `yaml:"epochs"`
	BatchSize    int     `yaml:"batch_size"`
	Seed         int64   `yaml:"seed"`
	Holdout      float64 `yaml:"holdout"`
}

// OutputParams names where results go. Empty fields disable the sink.
type OutputParams struct {
	DB   string `yaml:"db"`
	CSV  string `yaml:"csv"`
	Plot string `yaml:"plot"`
}

// Policy identifiers accepted by RemotenessParams.
const (
	PolicyRoundRobin = "round-robin"
	PolicyRandom     = "random"
)

// Selection method identifiers accepted by SelectionParams.
const (
	MethodNone      = "none"
	MethodFraction  = "fraction"
	MethodThreshold = "threshold"
)

// Default returns the parameters a run uses when no file overrides them.
func Default() *Params {
	return &Params{
		KNN: KNNParams{
			K: 10,
		},
		Weighting: WeightingParams{
			Scheme:   "proximity-x",
			Exponent: 2,
		},
		Remoteness: RemotenessParams{
			Policy: PolicyRoundRobin,
		},
		Selection: SelectionParams{
			Method:    MethodNone,
			Fraction:  0.5,
			Threshold: 0.5,
		},
		Training: TrainingParams{
			Enabled:      true,
			Hidden:       []int{64},
			LearningRate: 0.001,
			Epochs:       10,
			BatchSize:    8,
			Holdout:      0.2,
		},
	}
}

// Load reads parameters from the YAML file at path, layered over the
// defaults, and validates the result. An empty path returns the validated
// defaults, so commands work without any file at all.
func Load(path string) (*Params, error) {
	p := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, p); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate checks every parameter that later stages would otherwise trip
// over. It checks coherence, not completeness: the dataset pattern may
// still be empty here because commands can supply it through flags.
func (p *Params) Validate() error {
	sch, err := weighting.ParseScheme(p.Weighting.Scheme)
	if err != nil {
		return fmt.Errorf("config: weighting: %w", err)
	}
	wc := weighting.Config{Scheme: sch, Exponent: p.Weighting.Exponent}
	if err := wc.Validate(); err != nil {
		return fmt.Errorf("config: weighting: %w", err)
	}

	if p.KNN.K < 1 {
		return fmt.Errorf("config: knn: k must be >= 1, got %d", p.KNN.K)
	}
	if z := p.KNN.Exponent; z != 0 && (math.IsNaN(z) || math.IsInf(z, 0) || z <= 0) {
		return fmt.Errorf("config: knn: exponent must be a finite positive number or 0, got %v", z)
	}

	switch p.Remoteness.Policy {
	case "", PolicyRoundRobin, PolicyRandom:
	default:
		return fmt.Errorf("config: remoteness: unknown policy %q", p.Remoteness.Policy)
	}

	switch p.Selection.Method {
	case "", MethodNone:
	case MethodFraction:
		if f := p.Selection.Fraction; math.IsNaN(f) || f <= 0 || f > 1 {
			return fmt.Errorf("config: selection: fraction must be in (0, 1], got %v", f)
		}
	case MethodThreshold:
		if math.IsNaN(p.Selection.Threshold) {
			return fmt.Errorf("config: selection: threshold must be a number")
		}
	default:
		return fmt.Errorf("config: selection: unknown method %q", p.Selection.Method)
	}

	if p.Training.Enabled {
		if err := p.validateTraining(); err != nil {
			return err
		}
	}

	if p.Workers < 0 {
		return fmt.Errorf("config: workers must be >= 0, got %d", p.Workers)
	}
	return nil
}

func (p *Params) validateTraining() error {
	t := p.Training
	for i, h := range t.Hidden {
		if h < 1 {
			return fmt.Errorf("config: training: hidden layer %d size must be >= 1, got %d", i, h)
		}
	}
	if t.LearningRate <= 0 || math.IsNaN(t.LearningRate) || math.IsInf(t.LearningRate, 0) {
		return fmt.Errorf("config: training: learning_rate must be a finite positive number, got %v", t.LearningRate)
	}
	if t.Epochs < 1 {
		return fmt.Errorf("config: training: epochs must be >= 1, got %d", t.Epochs)
	}
	if t.BatchSize < 1 {
		return fmt.Errorf("config: training: batch_size must be >= 1, got %d", t.BatchSize)
	}
	if h := t.Holdout; math.IsNaN(h) || h <= 0 || h >= 1 {
		return fmt.Errorf("config: training: holdout must be in (0, 1), got %v", h)
	}
	return nil
}

// Scheme returns the parsed weighting scheme. Call Validate first; on an
// unvalidated Params this can return an error for an unknown identifier.
func (p *Params) Scheme() (weighting.Scheme, error) {
	return weighting.ParseScheme(p.Weighting.Scheme)
}
