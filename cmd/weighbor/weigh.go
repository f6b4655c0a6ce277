package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mkbrgr/weighbor/config"
)

var weighCmd = &cobra.Command{
	Use:   "weigh",
	Short: "Compute and export instance weights",
	Long: `Compute one weight per dataset instance from the geometry of its K
nearest neighbors and write the results to the configured sinks.

Selection and training settings are ignored here; use the experiment
command to reduce the dataset and compare models.

Examples:
  weighbor weigh --data 'data/*.csv' --input-cols x,y --target-col t
  weighbor weigh --config params.yaml --scheme surrounding-xy --out-csv weights.csv
  weighbor weigh --config params.yaml --db runs.db --plot plots`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWeigh(cmd)
	},
}

func init() {
	addPipelineFlags(weighCmd)
	addOutputFlags(weighCmd)
	f := weighCmd.Flags()
	f.Bool("skip-failures", false, "zero the weight of instances whose local fit fails instead of aborting")
	f.Int64("seed", 0, "random seed for the remoteness alternation policy")
	f.String("policy", "", "remoteness alternation policy (round-robin or random)")
	rootCmd.AddCommand(weighCmd)
}

func runWeigh(cmd *cobra.Command) error {
	params, err := loadParams(cmd)
	if err != nil {
		return err
	}
	params.Selection.Method = config.MethodNone
	params.Training.Enabled = false
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

	if len(res.Failed) > 0 {
		fmt.Printf("Weighed %d instances with %s (z=%g, k=%d); %d failed and were zeroed\n",
			res.Instances, res.Scheme, res.Exponent, res.K, len(res.Failed))
	} else {
		fmt.Printf("Weighed %d instances with %s (z=%g, k=%d)\n",
			res.Instances, res.Scheme, res.Exponent, res.K)
	}
	return saveOutputs(params, ds, res)
}
