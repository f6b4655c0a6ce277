package main

// Example command that walks the weighting pipeline end to end on a small
// synthetic dataset: build an in-memory dataset, find each instance's
// nearest neighbors, and compute weights under a few different schemes.
// It also shows converting a batch into gomlx tensors with the helpers
// provided in the dataset package.
//
// Usage:
//   go run ./example
//
// Everything is generated in memory, so the example needs no data files.

import (
	"fmt"
	"log"

	"github.com/mkbrgr/weighbor/dataset"
	"github.com/mkbrgr/weighbor/experiment"
	"github.com/mkbrgr/weighbor/knn"
	"github.com/mkbrgr/weighbor/regress"
	"github.com/mkbrgr/weighbor/weighting"
)

func main() {
	// Build a 4x3 grid of instances with a perfectly planar target, so the
	// geometric schemes have something regular to measure.
	var inputs [][]float64
	var targets []float64
	for x := 0; x < 4; x++ {
		for y := 0; y < 3; y++ {
			inputs = append(inputs, []float64{float64(x), float64(y)})
			targets = append(targets, 2*float64(x)+float64(y))
		}
	}

	ds, err := dataset.NewMemoryDataset("grid", inputs, targets)
	if err != nil {
		log.Fatalf("failed to build dataset: %v", err)
	}
	fmt.Printf("Dataset: %s (%d instances, %d inputs, target = 2x + y)\n", ds.Name(), ds.Len(), ds.Dim())

	// Find every instance's 4 nearest neighbors under Euclidean distance.
	searcher, err := knn.NewSearcher(ds, 4)
	if err != nil {
		log.Fatalf("failed to create searcher: %v", err)
	}
	neighbors, err := searcher.All()
	if err != nil {
		log.Fatalf("neighbor search failed: %v", err)
	}
	fmt.Printf("Neighbors found: k=%d for %d instances\n", searcher.K, len(neighbors))

	instances, err := experiment.MaterializeInstances(ds, neighbors)
	if err != nil {
		log.Fatalf("failed to materialize instances: %v", err)
	}

	// Weigh every instance under three schemes. Proximity rewards instances
	// whose neighbors sit far away (the grid's corners); surrounding rewards
	// one-sided neighborhoods (the grid's rim); nonlinearity measures how far
	// the instance sits from the local least-squares plane, which is ~0
	// everywhere because the target is exactly planar.
	weigher := weighting.NewWeigher(regress.OLS{})
	schemes := []weighting.Scheme{
		weighting.SchemeProximityX,
		weighting.SchemeSurroundingX,
		weighting.SchemeNonlinearity,
	}

	for _, sch := range schemes {
		cfg := weighting.Config{Scheme: sch, Exponent: 2}
		fmt.Printf("\n%s weights:\n", sch)
		for i, inst := range instances {
			w, err := weigher.Weigh(inst, cfg)
			if err != nil {
				log.Fatalf("weigh instance %d with %s: %v", i, sch, err)
			}
			in, _, _ := ds.Example(i)
			fmt.Printf("  instance %2d at (%g, %g): %.4f\n", i, in[0], in[1], w)
		}
	}

	// Finally, show the gomlx bridge: flatten a batch and convert it to
	// tensors the way a training loop would consume it.
	indices := []int{0, 1, 2, 3}
	batchIn, batchTgt, err := ds.Batch(indices)
	if err != nil {
		log.Fatalf("failed to build batch: %v", err)
	}
	flat, err := dataset.MakeRegressionBatchFlat(batchIn, batchTgt)
	if err != nil {
		log.Fatalf("failed to flatten batch: %v", err)
	}
	inT, tgtT, err := flat.ToGomlxTensors()
	if err != nil {
		log.Fatalf("failed to convert batch to gomlx tensors: %v", err)
	}
	fmt.Printf("\nCreated tensors: input=%T target=%T\n", inT, tgtT)
	fmt.Printf("  Input shape: [%d, %d]\n", flat.BatchSize, flat.InputDim)
	fmt.Printf("  Target shape: [%d, 1]\n", flat.BatchSize)

	fmt.Println("\nExample completed successfully!")
}
