package dataset

import (
	"fmt"
	"io"

	"github.com/gomlx/gomlx/pkg/core/tensors"
)

// MemoryDataset holds all examples in memory. It backs synthetic
// experiments and tests, and anything small enough that lazy file reads
// would just add overhead.
type MemoryDataset struct {
	// BatchSize used by Yield when driving a gomlx training loop.
	BatchSize int

	name    string
	inputs  [][]float64
	targets []float64
	dim     int

	cursor int
}

// NewMemoryDataset wraps in-memory rows as a Dataset. The slices are
// borrowed, not copied; callers must not mutate them while the dataset is
// in use. Every input row must have the same dimension.
func NewMemoryDataset(name string, inputs [][]float64, targets []float64) (*MemoryDataset, error) {
	if len(inputs) != len(targets) {
		return nil, fmt.Errorf("inputs and targets sizes don't match: %d != %d", len(inputs), len(targets))
	}
	if len(inputs) == 0 {
		return nil, fmt.Errorf("dataset cannot be empty")
	}

	dim := len(inputs[0])
	if dim == 0 {
		return nil, fmt.Errorf("input rows cannot be empty")
	}
	for i, row := range inputs {
		if len(row) != dim {
			return nil, fmt.Errorf("inconsistent input dimensions at example %d: expected %d, got %d", i, dim, len(row))
		}
	}

	if name == "" {
		name = "memory"
	}
	return &MemoryDataset{
		BatchSize: 32,
		name:      name,
		inputs:    inputs,
		targets:   targets,
		dim:       dim,
	}, nil
}

// Len returns the number of examples.
func (d *MemoryDataset) Len() int {
	return len(d.inputs)
}

// Dim returns the number of input features per example.
func (d *MemoryDataset) Dim() int {
	return d.dim
}

// Name identifies the dataset.
func (d *MemoryDataset) Name() string {
	return d.name
}

// Example returns the example at the given index. The returned slice is the
// dataset's own row; callers must not modify it.
func (d *MemoryDataset) Example(i int) ([]float64, float64, error) {
	if i < 0 || i >= len(d.inputs) {
		return nil, 0, fmt.Errorf("index %d out of range [0, %d)", i, len(d.inputs))
	}
	return d.inputs[i], d.targets[i], nil
}

// Batch reads multiple examples by their indices.
func (d *MemoryDataset) Batch(indices []int) ([][]float64, []float64, error) {
	inputs := make([][]float64, len(indices))
	targets := make([]float64, len(indices))
	for pos, idx := range indices {
		in, tgt, err := d.Example(idx)
		if err != nil {
			return nil, nil, err
		}
		inputs[pos] = in
		targets[pos] = tgt
	}
	return inputs, targets, nil
}

// Tensors reads a batch of examples and returns them as gomlx tensors.
func (d *MemoryDataset) Tensors(indices []int) (*tensors.Tensor, *tensors.Tensor, error) {
	inData, tgtData, err := d.Batch(indices)
	if err != nil {
		return nil, nil, err
	}

	flat, err := MakeRegressionBatchFlat(inData, tgtData)
	if err != nil {
		return nil, nil, err
	}

	return flat.ToGomlxTensors()
}

// Yield returns the next sequential batch for the gomlx Dataset interface;
// io.EOF signals the end of the epoch.
func (d *MemoryDataset) Yield() (spec any, inputs []*tensors.Tensor, labels []*tensors.Tensor, err error) {
	indices := yieldIndices(&d.cursor, len(d.inputs), d.BatchSize)
	if indices == nil {
		return nil, nil, nil, io.EOF
	}
	in, tgt, err := d.Tensors(indices)
	if err != nil {
		return nil, nil, nil, err
	}
	return nil, []*tensors.Tensor{in}, []*tensors.Tensor{tgt}, nil
}

// Restart resets the dataset for a new epoch.
func (d *MemoryDataset) Restart() error {
	d.cursor = 0
	return nil
}
