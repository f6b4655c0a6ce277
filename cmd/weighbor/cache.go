package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mkbrgr/weighbor/knn"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Precompute and save the neighbor cache",
	Long: `Run the K-nearest-neighbor search for every instance of a dataset and
save the neighbor lists to a cache file, so later weighing runs skip the
search entirely. The cache records K and the distance exponent; a run
with different parameters rejects it and recomputes.

Examples:
  weighbor cache --data 'data/*.csv' --input-cols x,y --target-col t --cache neighbors.bin
  weighbor cache --config params.yaml --k 16`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCache(cmd)
	},
}

func init() {
	addPipelineFlags(cacheCmd)
	rootCmd.AddCommand(cacheCmd)
}

func runCache(cmd *cobra.Command) error {
	params, err := loadParams(cmd)
	if err != nil {
		return err
	}
	if err := requireDataset(params); err != nil {
		return err
	}
	if params.KNN.Cache == "" {
		return fmt.Errorf("no cache path: set knn.cache in the config file or pass --cache")
	}
	printEffectiveParams(params)

	ds, err := openDataset(params)
	if err != nil {
		return err
	}

	searcher, err := knn.NewSearcher(ds, params.KNN.K)
	if err != nil {
		return err
	}
	if params.KNN.Exponent != 0 {
		searcher.Exponent = params.KNN.Exponent
	} else {
		searcher.Exponent = params.Weighting.Exponent
	}
	searcher.Workers = params.Workers

	if err := searcher.SaveCache(params.KNN.Cache); err != nil {
		return err
	}
	fmt.Printf("Neighbor cache written to %s (%d instances, k=%d, z=%g)\n",
		params.KNN.Cache, ds.Len(), params.KNN.K, searcher.Exponent)
	return nil
}
