package dataset

import (
	"fmt"

	"github.com/gomlx/gomlx/pkg/core/tensors"
)

// This file defines the dataset abstraction the weighting pipeline works
// against, plus the flat-batch helpers shared by the implementations.
//
// Two implementations are provided:
//
// CSVDataset
//   - Stores paths to CSV files matching a glob pattern and reads rows
//     on demand, so large files never sit fully in memory.
//   - The input columns and the target column are configured by name and
//     resolved against the header of the first file.
//
// MemoryDataset
//   - Holds rows in memory; used for synthetic experiments and tests.
//
// Notes on gomlx tensors:
//   - The Go-side API works in float64, the precision the weighting
//     estimators need. Tensor conversion downcasts to float32, the usual
//     training precision, inside ToGomlxTensors.
//   - Yield/Restart/Name let either implementation drive a gomlx training
//     loop directly as a train.Dataset.

// Dataset is a labeled regression dataset: a fixed-dimension feature vector
// and one scalar target per example.
type Dataset interface {
	// Len returns the number of examples.
	Len() int

	// Dim returns the number of input features per example.
	Dim() int

	// Example returns the input vector and target for the example at the
	// given global index.
	Example(i int) (input []float64, target float64, err error)

	// Batch reads multiple examples by their indices.
	Batch(indices []int) (inputs [][]float64, targets []float64, err error)

	// Name identifies the dataset in logs and stored results.
	Name() string

	// To implement gomlx's train.Dataset interface
	Yield() (any, []*tensors.Tensor, []*tensors.Tensor, error)
}

// RegressionBatchFlat stores a batch in flat contiguous buffers.
type RegressionBatchFlat struct {
	Inputs    []float64
	Targets   []float64
	BatchSize int
	InputDim  int
}

// MakeRegressionBatchFlat flattens a batch into contiguous buffers.
func MakeRegressionBatchFlat(inputs [][]float64, targets []float64) (*RegressionBatchFlat, error) {
	if len(inputs) != len(targets) {
		return nil, fmt.Errorf("inputs and targets batch sizes don't match: %d != %d", len(inputs), len(targets))
	}
	if len(inputs) == 0 {
		return &RegressionBatchFlat{}, nil
	}

	batchSize := len(inputs)
	inputDim := len(inputs[0])

	flatInputs := make([]float64, batchSize*inputDim)
	flatTargets := make([]float64, batchSize)

	for i := range batchSize {
		if len(inputs[i]) != inputDim {
			return nil, fmt.Errorf("inconsistent input dimensions at example %d: expected %d, got %d",
				i, inputDim, len(inputs[i]))
		}
		copy(flatInputs[i*inputDim:], inputs[i])
		flatTargets[i] = targets[i]
	}

	return &RegressionBatchFlat{
		Inputs:    flatInputs,
		Targets:   flatTargets,
		BatchSize: batchSize,
		InputDim:  inputDim,
	}, nil
}

// ToGomlxTensors converts the flat batch to gomlx tensors: inputs of shape
// [BatchSize, InputDim] and targets of shape [BatchSize, 1], both float32.
func (b *RegressionBatchFlat) ToGomlxTensors() (*tensors.Tensor, *tensors.Tensor, error) {
	// handle empty batch gracefully
	if b.BatchSize == 0 || b.InputDim == 0 {
		emptyInputs := make([][]float32, 0)
		emptyTargets := make([][]float32, 0)
		return tensors.FromAnyValue(emptyInputs), tensors.FromAnyValue(emptyTargets), nil
	}

	inputs := make([][]float32, b.BatchSize)
	targets := make([][]float32, b.BatchSize)
	for i := range b.BatchSize {
		row := make([]float32, b.InputDim)
		for j, v := range b.Inputs[i*b.InputDim : (i+1)*b.InputDim] {
			row[j] = float32(v)
		}
		inputs[i] = row
		targets[i] = []float32{float32(b.Targets[i])}
	}
	return tensors.FromAnyValue(inputs), tensors.FromAnyValue(targets), nil
}

// yieldIndices returns the next batch worth of sequential indices for a
// cursor-based Yield, or nil when the epoch is exhausted.
func yieldIndices(cursor *int, total, batchSize int) []int {
	if *cursor >= total {
		return nil
	}
	end := *cursor + batchSize
	if end > total {
		end = total
	}
	indices := make([]int, 0, end-*cursor)
	for i := *cursor; i < end; i++ {
		indices = append(indices, i)
	}
	*cursor = end
	return indices
}
