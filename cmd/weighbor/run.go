package main

import (
	"encoding/csv"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mkbrgr/weighbor/config"
	"github.com/mkbrgr/weighbor/dataset"
	"github.com/mkbrgr/weighbor/experiment"
	"github.com/mkbrgr/weighbor/mlp"
	"github.com/mkbrgr/weighbor/store"
)

// addPipelineFlags registers the flags shared by every command that runs
// the weighting pipeline. Flag values override the parameter file only
// when the user sets them explicitly; otherwise the file (or the built-in
// default) wins.
func addPipelineFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("data", "", "glob pattern for dataset CSV files")
	f.StringSlice("input-cols", nil, "input column names, in order")
	f.String("target-col", "", "target column name")
	f.String("name", "", "dataset name recorded with the run")
	f.String("scheme", "", "weighting scheme (see 'weighbor --help' for the list)")
	f.Float64("exponent", 0, "Minkowski distance exponent z")
	f.Int("k", 0, "number of nearest neighbors")
	f.Float64("knn-exponent", 0, "distance exponent for the neighbor search (default: same as --exponent)")
	f.String("cache", "", "neighbor cache file to load or create")
	f.Int("workers", 0, "worker pool size (0 = one per CPU)")
}

// addOutputFlags registers the result sinks.
func addOutputFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("out-csv", "", "write the weights CSV to this path")
	f.String("db", "", "record the run in this SQLite database")
	f.String("plot", "", "write plots into this directory")
}

// loadParams layers the parameter file over the defaults, applies any
// explicitly-set flags on top, and validates the merged result.
func loadParams(cmd *cobra.Command) (*config.Params, error) {
	params, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	applyFlags(cmd, params)
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return params, nil
}

// applyFlags copies every explicitly-set flag into params. Flags a command
// does not register are never reported as changed, so one merge routine
// serves all commands.
func applyFlags(cmd *cobra.Command, p *config.Params) {
	f := cmd.Flags()
	if f.Changed("data") {
		p.Dataset.Pattern, _ = f.GetString("data")
	}
	if f.Changed("input-cols") {
		p.Dataset.InputCols, _ = f.GetStringSlice("input-cols")
	}
	if f.Changed("target-col") {
		p.Dataset.TargetCol, _ = f.GetString("target-col")
	}
	if f.Changed("name") {
		p.Dataset.Name, _ = f.GetString("name")
	}
	if f.Changed("scheme") {
		p.Weighting.Scheme, _ = f.GetString("scheme")
	}
	if f.Changed("exponent") {
		p.Weighting.Exponent, _ = f.GetFloat64("exponent")
	}
	if f.Changed("skip-failures") {
		p.Weighting.SkipFailures, _ = f.GetBool("skip-failures")
	}
	if f.Changed("k") {
		p.KNN.K, _ = f.GetInt("k")
	}
	if f.Changed("knn-exponent") {
		p.KNN.Exponent, _ = f.GetFloat64("knn-exponent")
	}
	if f.Changed("cache") {
		p.KNN.Cache, _ = f.GetString("cache")
	}
	if f.Changed("workers") {
		p.Workers, _ = f.GetInt("workers")
	}
	if f.Changed("select-method") {
		p.Selection.Method, _ = f.GetString("select-method")
	}
	if f.Changed("select-fraction") {
		p.Selection.Fraction, _ = f.GetFloat64("select-fraction")
	}
	if f.Changed("select-threshold") {
		p.Selection.Threshold, _ = f.GetFloat64("select-threshold")
	}
	if f.Changed("policy") {
		p.Remoteness.Policy, _ = f.GetString("policy")
	}
	if f.Changed("seed") {
		seed, _ := f.GetInt64("seed")
		p.Remoteness.Seed = seed
		p.Training.Seed = seed
	}
	if f.Changed("train") {
		p.Training.Enabled, _ = f.GetBool("train")
	}
	if f.Changed("out-csv") {
		p.Output.CSV, _ = f.GetString("out-csv")
	}
	if f.Changed("db") {
		p.Output.DB, _ = f.GetString("db")
	}
	if f.Changed("plot") {
		p.Output.Plot, _ = f.GetString("plot")
	}
}

// requireDataset checks that the merged parameters name a loadable dataset.
func requireDataset(p *config.Params) error {
	if p.Dataset.Pattern == "" {
		return fmt.Errorf("no dataset pattern: set dataset.pattern in the config file or pass --data")
	}
	if len(p.Dataset.InputCols) == 0 {
		return fmt.Errorf("no input columns: set dataset.input_cols in the config file or pass --input-cols")
	}
	if p.Dataset.TargetCol == "" {
		return fmt.Errorf("no target column: set dataset.target_col in the config file or pass --target-col")
	}
	return nil
}

// openDataset loads the CSV dataset the parameters describe.
func openDataset(p *config.Params) (*dataset.CSVDataset, error) {
	paths, _ := filepath.Glob(p.Dataset.Pattern)
	log.Printf("Using CSV pattern: %s (found %d files)", p.Dataset.Pattern, len(paths))

	ds, err := dataset.NewCSVDataset(p.Dataset.Pattern, p.Dataset.InputCols, p.Dataset.TargetCol)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	log.Printf("Dataset loaded: %s (%d instances, %d inputs)", ds.Name(), ds.Len(), ds.Dim())
	return ds, nil
}

// buildExperiment maps the merged parameters onto an experiment.
func buildExperiment(p *config.Params, ds dataset.Dataset) (*experiment.Experiment, error) {
	sch, err := p.Scheme()
	if err != nil {
		return nil, err
	}
	e, err := experiment.NewExperiment(ds, sch, p.Weighting.Exponent)
	if err != nil {
		return nil, err
	}
	e.K = p.KNN.K
	e.KNNExponent = p.KNN.Exponent
	e.CachePath = p.KNN.Cache
	e.Workers = p.Workers
	e.SkipFailures = p.Weighting.SkipFailures
	e.Policy = policyFromParams(p)
	e.SelectMethod = p.Selection.Method
	e.SelectFraction = p.Selection.Fraction
	e.SelectThreshold = p.Selection.Threshold
	e.Train = p.Training.Enabled
	e.TrainConfig = mlp.Config{
		HiddenSizes:  p.Training.Hidden,
		LearningRate: p.Training.LearningRate,
		Epochs:       p.Training.Epochs,
		BatchSize:    p.Training.BatchSize,
		Seed:         p.Training.Seed,
	}
	e.Holdout = p.Training.Holdout
	e.Seed = p.Training.Seed
	return e, nil
}

func policyFromParams(p *config.Params) experiment.AlternationPolicy {
	if p.Remoteness.Policy == config.PolicyRandom {
		return experiment.NewRandom(p.Remoteness.Seed)
	}
	return experiment.RoundRobin{}
}

// printEffectiveParams dumps the merged configuration in verbose mode.
func printEffectiveParams(p *config.Params) {
	verbosef("Effective configuration:\n")
	verbosef("  dataset: pattern=%s inputs=%v target=%s\n",
		p.Dataset.Pattern, p.Dataset.InputCols, p.Dataset.TargetCol)
	verbosef("  weighting: scheme=%s z=%g skip_failures=%v\n",
		p.Weighting.Scheme, p.Weighting.Exponent, p.Weighting.SkipFailures)
	verbosef("  knn: k=%d z=%g cache=%s\n", p.KNN.K, p.KNN.Exponent, p.KNN.Cache)
	verbosef("  remoteness: policy=%s seed=%d\n", p.Remoteness.Policy, p.Remoteness.Seed)
	verbosef("  selection: method=%s fraction=%g threshold=%g\n",
		p.Selection.Method, p.Selection.Fraction, p.Selection.Threshold)
	verbosef("  training: enabled=%v hidden=%v lr=%g epochs=%d batch=%d holdout=%g\n",
		p.Training.Enabled, p.Training.Hidden, p.Training.LearningRate,
		p.Training.Epochs, p.Training.BatchSize, p.Training.Holdout)
	verbosef("  workers: %d\n", p.Workers)
}

// saveOutputs sends the result to every configured sink.
func saveOutputs(p *config.Params, ds dataset.Dataset, res *experiment.Result) error {
	if p.Output.DB != "" {
		st, err := store.Open(p.Output.DB)
		if err != nil {
			return err
		}
		id, serr := st.SaveRun(runRecord(p, ds, res))
		st.Close()
		if serr != nil {
			return fmt.Errorf("save run: %w", serr)
		}
		log.Printf("Run %s recorded in %s", id, p.Output.DB)
	}

	if p.Output.CSV != "" {
		if err := writeWeightsCSV(p.Output.CSV, res); err != nil {
			return err
		}
		log.Printf("Weights written to %s", p.Output.CSV)
	}

	if p.Output.Plot != "" {
		if err := plotWeights(p.Output.Plot, res.Normalized); err != nil {
			return fmt.Errorf("plot weights: %w", err)
		}
		if !math.IsNaN(res.RMSEFull) && !math.IsNaN(res.RMSESelected) {
			if err := plotRMSECompare(p.Output.Plot, res.RMSEFull, res.RMSESelected); err != nil {
				return fmt.Errorf("plot rmse comparison: %w", err)
			}
		}
		log.Printf("Plots written to %s", p.Output.Plot)
	}
	return nil
}

// runRecord shapes an experiment result for the store.
func runRecord(p *config.Params, ds dataset.Dataset, res *experiment.Result) *store.Record {
	name := p.Dataset.Name
	if name == "" {
		name = ds.Name()
	}
	rec := &store.Record{
		Dataset:      name,
		Scheme:       res.Scheme.String(),
		Exponent:     res.Exponent,
		K:            res.K,
		Elapsed:      res.Elapsed,
		RMSEFull:     res.RMSEFull,
		RMSESelected: res.RMSESelected,
		Raw:          res.Weights,
		Normalized:   res.Normalized,
	}
	if res.Mask != nil {
		rec.Selected = res.Mask.Indices()
	}
	return rec
}

// writeWeightsCSV writes the weights in the same format ExportCSV uses, so
// file and database exports stay interchangeable.
func writeWeightsCSV(path string, res *experiment.Result) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create weights CSV: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"index", "raw", "normalized", "selected"}); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for i := range res.Weights {
		sel := "1"
		if res.Mask != nil && !res.Mask.Contains(i) {
			sel = "0"
		}
		rec := []string{
			strconv.Itoa(i),
			strconv.FormatFloat(res.Weights[i], 'g', -1, 64),
			strconv.FormatFloat(res.Normalized[i], 'g', -1, 64),
			sel,
		}
		if err := w.Write(rec); err != nil {
			return fmt.Errorf("write csv row %d: %w", i, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}
