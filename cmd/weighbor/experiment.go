package main

import (
	"fmt"
	"math"
	"time"

	"github.com/spf13/cobra"
)

var experimentCmd = &cobra.Command{
	Use:   "experiment",
	Short: "Weigh, select, and evaluate with a model comparison",
	Long: `Run the full pipeline: weigh every instance, keep the most informative
ones per the selection settings, then train one model on all instances
and one on the kept subset and report both holdout RMSEs.

Examples:
  weighbor experiment --config params.yaml
  weighbor experiment --config params.yaml --scheme remoteness-x --policy random --seed 7
  weighbor experiment --config params.yaml --select-method fraction --select-fraction 0.5 --plot plots`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runExperiment(cmd)
	},
}

func init() {
	addPipelineFlags(experimentCmd)
	addOutputFlags(experimentCmd)
	f := experimentCmd.Flags()
	f.Bool("skip-failures", false, "zero the weight of instances whose local fit fails instead of aborting")
	f.String("select-method", "", "instance selection method (none, fraction, or threshold)")
	f.Float64("select-fraction", 0, "fraction of instances to keep when selecting by fraction")
	f.Float64("select-threshold", 0, "minimum normalized weight to keep when selecting by threshold")
	f.String("policy", "", "remoteness alternation policy (round-robin or random)")
	f.Int64("seed", 0, "random seed for alternation and training")
	f.Bool("train", true, "train and compare models on the full and selected sets")
	rootCmd.AddCommand(experimentCmd)
}

func runExperiment(cmd *cobra.Command) error {
	start := time.Now()

	params, err := loadParams(cmd)
	if err != nil {
		return err
	}
	if err := requireDataset(params); err != nil {
		return err
	}
	printEffectiveParams(params)

	ds, err := openDataset(params)
	if err != nil {
		return err
	}
	e, err := buildExperiment(params, ds)
	if err != nil {
		return err
	}
	res, err := e.Run(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Printf("Scheme %s (z=%g, k=%d): %d/%d instances selected\n",
		res.Scheme, res.Exponent, res.K, res.Selected, res.Instances)
	if len(res.Failed) > 0 {
		fmt.Printf("Failed instances (weight zeroed): %d\n", len(res.Failed))
	}
	if !math.IsNaN(res.RMSEFull) {
		fmt.Printf("Holdout RMSE: full = %f, selected = %f\n", res.RMSEFull, res.RMSESelected)
	}

	if err := saveOutputs(params, ds, res); err != nil {
		return err
	}

	fmt.Printf("Elapsed time: %d seconds.\n", int64(time.Since(start)/time.Second))
	return nil
}
