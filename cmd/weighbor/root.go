package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "weighbor",
	Short: "Instance weighting from nearest-neighbor geometry",
	Long: `weighbor computes a weight for every instance of a regression dataset
from the geometry of its K nearest neighbors, then optionally keeps only
the most informative instances and compares models trained on the full
and the reduced set.

Weighting schemes:
  proximity-x/-xy      sum of distances to the K nearest neighbors
  surrounding-x/-xy    magnitude of the neighbor displacement resultant
  nonlinearity         deviation from the local least-squares hyperplane
  remoteness-x/-xy     alternates proximity and surrounding per instance

Core Commands:
  weigh        Compute and export instance weights
  experiment   Weigh, select, and evaluate with a model comparison
  cache        Precompute and save the neighbor cache
  version      Show version information

Parameters come from a YAML file (--config) and can be overridden by
flags; a flag only wins when it is set explicitly.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML parameter file (optional)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
}

// verbosef prints only when verbose mode is enabled.
func verbosef(format string, args ...any) {
	if verbose {
		fmt.Printf(format, args...)
	}
}
