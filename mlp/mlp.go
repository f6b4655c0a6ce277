// Package mlp provides a small configurable MLP regressor used to measure
// how instance selection affects downstream model quality. The trainer is
// lightweight and self-contained (pure Go, no external deep-learning
// dependencies) so experiments run quickly and deterministically.
package mlp

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// Config holds configurable hyperparameters for the MLP model and training.
type Config struct {
	// HiddenSizes is the list of hidden layer sizes. Example: []int{64, 32}
	// If empty, a single hidden layer of size 64 will be used.
	HiddenSizes []int

	// InputDim is the dimensionality of the input feature vector. Required;
	// NewModel rejects a non-positive value.
	InputDim int

	// LearningRate used by the SGD optimizer (default if 0: 0.001).
	LearningRate float64

	// Epochs to train for (default if 0 will be set by NewModel to 10).
	Epochs int

	// BatchSize for mini-batch updates (default if 0 will be set by NewModel to 8).
	BatchSize int

	// Seed controls RNG for weight init and shuffling. If zero, time-based seed is used.
	Seed int64
}

// Dataset is the minimal interface this package requires from a regression
// dataset. This keeps mlp decoupled from the concrete dataset package while
// allowing callers to pass any of the repository's datasets (they match
// these methods).
type Dataset interface {
	Len() int
	// Batch returns inputs and scalar targets for the provided indices.
	Batch(indices []int) ([][]float64, []float64, error)
}

// Model is a small MLP mapping an input feature vector to a single scalar
// output, trained with mini-batch SGD under a mean-squared-error loss.
type Model struct {
	// Config used for training / initialization.
	Config Config

	// layerSizes includes input size, hidden sizes, then output size.
	layerSizes []int

	// weights[l] is a matrix of shape [out][in] for layer l -> l+1
	weights [][][]float64

	// biases[l] is a vector of length out for layer l -> l+1
	biases [][]float64

	// rng used for weight initialization and shuffling
	rng *rand.Rand
}

// NewModel creates a new Model instance with the provided configuration.
// It initializes weights (small random values) and is ready to train.
func NewModel(cfg Config) (*Model, error) {
	if cfg.InputDim <= 0 {
		return nil, fmt.Errorf("input dimension must be >= 1, got %d", cfg.InputDim)
	}

	// defaults
	if len(cfg.HiddenSizes) == 0 {
		cfg.HiddenSizes = []int{64}
	}
	if cfg.LearningRate == 0 {
		cfg.LearningRate = 0.001
	}
	if cfg.Epochs == 0 {
		cfg.Epochs = 10
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 8
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}

	m := &Model{
		Config: cfg,
		rng:    rand.New(rand.NewSource(cfg.Seed)),
	}

	// scalar regression target
	const outputDim = 1

	// build layer sizes
	sizes := make([]int, 0, 2+len(cfg.HiddenSizes))
	sizes = append(sizes, cfg.InputDim)
	sizes = append(sizes, cfg.HiddenSizes...)
	sizes = append(sizes, outputDim)
	m.layerSizes = sizes

	// allocate weights and biases
	L := len(sizes) - 1
	m.weights = make([][][]float64, L)
	m.biases = make([][]float64, L)
	for l := 0; l < L; l++ {
		in := sizes[l]
		out := sizes[l+1]
		mat := make([][]float64, out)
		for j := 0; j < out; j++ {
			row := make([]float64, in)
			for i := 0; i < in; i++ {
				// Xavier/Glorot uniform initialization heuristic
				limit := math.Sqrt(6.0 / float64(in+out))
				row[i] = (m.rng.Float64()*2.0 - 1.0) * limit * 0.5
			}
			mat[j] = row
		}
		m.weights[l] = mat
		m.biases[l] = make([]float64, out)
	}

	return m, nil
}

// activationReLU applies ReLU in-place over the slice.
func activationReLU(x []float64) {
	for i := range x {
		if x[i] < 0 {
			x[i] = 0
		}
	}
}

// activationReLUDeriv returns elementwise derivative of ReLU applied to preact.
// derivative is 1 where preact>0, else 0.
func activationReLUDeriv(preact []float64) []float64 {
	d := make([]float64, len(preact))
	for i := range preact {
		if preact[i] > 0 {
			d[i] = 1.0
		}
	}
	return d
}

// forwardSingle performs a forward pass for a single input vector, returning:
// - preActivations: list of pre-activation vectors per layer (len = L)
// - activations: list of activation vectors per layer (len = L+1, activations[0] = input)
// Note: L is number of layers (hidden+output)
func (m *Model) forwardSingle(input []float64) (preActs [][]float64, acts [][]float64, err error) {
	if len(input) != m.layerSizes[0] {
		return nil, nil, errors.New("input has incorrect dimension")
	}
	L := len(m.weights)
	acts = make([][]float64, L+1)
	acts[0] = make([]float64, len(input))
	copy(acts[0], input)

	preActs = make([][]float64, L)
	for l := 0; l < L; l++ {
		inVec := acts[l]
		outDim := len(m.biases[l])
		inDim := len(inVec)
		pre := make([]float64, outDim)
		W := m.weights[l]
		b := m.biases[l]
		for j := 0; j < outDim; j++ {
			sum := 0.0
			row := W[j]
			for i := 0; i < inDim; i++ {
				sum += row[i] * inVec[i]
			}
			sum += b[j]
			pre[j] = sum
		}
		preActs[l] = pre

		// Activation: ReLU for hidden, linear for last layer
		act := make([]float64, outDim)
		copy(act, pre)
		if l < L-1 {
			activationReLU(act)
		}
		acts[l+1] = act
	}
	return preActs, acts, nil
}

// PredictBatch returns model predictions for a batch of inputs. It does a
// purely forward pass (no training); one scalar per input.
func (m *Model) PredictBatch(inputs [][]float64) ([]float64, error) {
	out := make([]float64, len(inputs))
	for i, in := range inputs {
		_, acts, err := m.forwardSingle(in)
		if err != nil {
			return nil, err
		}
		// last activation is the scalar output
		last := acts[len(acts)-1]
		out[i] = last[0]
	}
	return out, nil
}

// TrainWithDataset trains the model using a small in-package SGD trainer.
// This trainer is intentionally simple: it runs mini-batch SGD with ReLU
// activations and a mean-squared-error loss, averaging gradients over each
// minibatch before applying the update.
func (m *Model) TrainWithDataset(ds Dataset) error {
	if ds == nil {
		return errors.New("dataset is nil")
	}
	n := ds.Len()
	if n == 0 {
		return errors.New("dataset has no examples")
	}

	epochs := m.Config.Epochs
	if epochs <= 0 {
		epochs = 10
	}
	batchSize := m.Config.BatchSize
	if batchSize <= 0 {
		batchSize = 8
	}
	lr := m.Config.LearningRate
	if lr <= 0 {
		lr = 0.001
	}

	// Build initial index slice
	indices := make([]int, n)
	for i := 0; i < n; i++ {
		indices[i] = i
	}

	// training loop
	for ep := 0; ep < epochs; ep++ {
		// shuffle indices
		m.rng.Shuffle(len(indices), func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})

		// iterate minibatches, accumulating gradients over the minibatch and
		// applying an averaged SGD update
		for bstart := 0; bstart < n; bstart += batchSize {
			bend := bstart + batchSize
			if bend > n {
				bend = n
			}
			batchIdx := indices[bstart:bend]

			// fetch the whole minibatch in one call
			inputs, targets, err := ds.Batch(batchIdx)
			if err != nil {
				return err
			}
			batchN := len(inputs)
			if batchN == 0 {
				continue
			}

			// Initialize gradient accumulators (same shape as weights / biases)
			L := len(m.weights)
			gradW := make([][][]float64, L)
			gradB := make([][]float64, L)
			for l := 0; l < L; l++ {
				outDim := len(m.biases[l])
				inDim := len(m.weights[l][0])
				gradW[l] = make([][]float64, outDim)
				for j := 0; j < outDim; j++ {
					gradW[l][j] = make([]float64, inDim)
				}
				gradB[l] = make([]float64, outDim)
			}

			// Accumulate gradients for each example in the batch
			for ex := 0; ex < batchN; ex++ {
				in := inputs[ex]
				target := targets[ex]

				preacts, acts, err := m.forwardSingle(in)
				if err != nil {
					return err
				}

				// dLoss/dOutput = 2*(pred - target), scalar output
				outAct := acts[len(acts)-1]
				delta := []float64{2.0 * (outAct[0] - target)}

				// Backprop to compute gradients, accumulate into gradW/gradB
				for l := len(m.weights) - 1; l >= 0; l-- {
					inAct := acts[l]
					outDim := len(delta)
					inDim := len(inAct)

					// accumulate bias gradients and weight gradients
					for j := 0; j < outDim; j++ {
						gradB[l][j] += delta[j]
						for i := 0; i < inDim; i++ {
							gradW[l][j][i] += delta[j] * inAct[i]
						}
					}

					// propagate delta to previous layer if needed
					if l > 0 {
						prevLen := len(m.weights[l][0])
						newDelta := make([]float64, prevLen)
						for i := 0; i < prevLen; i++ {
							sum := 0.0
							for j := 0; j < outDim; j++ {
								sum += m.weights[l][j][i] * delta[j]
							}
							newDelta[i] = sum
						}
						deriv := activationReLUDeriv(preacts[l-1])
						for i := 0; i < prevLen; i++ {
							newDelta[i] *= deriv[i]
						}
						delta = newDelta
					}
				}
			}

			// Apply averaged gradients (SGD) over the minibatch
			bInv := 1.0 / float64(batchN)
			for l := 0; l < L; l++ {
				outDim := len(m.biases[l])
				inDim := len(m.weights[l][0])
				for j := 0; j < outDim; j++ {
					db := gradB[l][j] * bInv
					m.biases[l][j] -= lr * db
					for i := 0; i < inDim; i++ {
						dw := gradW[l][j][i] * bInv
						m.weights[l][j][i] -= lr * dw
					}
				}
			}
		} // end batches
	} // end epochs

	return nil
}

// RMSE evaluates the model over every example of ds and returns the root
// mean squared error of its predictions.
func (m *Model) RMSE(ds Dataset) (float64, error) {
	if ds == nil {
		return 0, errors.New("dataset is nil")
	}
	n := ds.Len()
	if n == 0 {
		return 0, errors.New("dataset has no examples")
	}

	batchSize := m.Config.BatchSize
	if batchSize <= 0 {
		batchSize = 8
	}

	var sumSq float64
	for bstart := 0; bstart < n; bstart += batchSize {
		bend := bstart + batchSize
		if bend > n {
			bend = n
		}
		idxs := make([]int, 0, bend-bstart)
		for i := bstart; i < bend; i++ {
			idxs = append(idxs, i)
		}

		inputs, targets, err := ds.Batch(idxs)
		if err != nil {
			return 0, err
		}
		preds, err := m.PredictBatch(inputs)
		if err != nil {
			return 0, err
		}
		for i := range preds {
			d := preds[i] - targets[i]
			sumSq += d * d
		}
	}
	return math.Sqrt(sumSq / float64(n)), nil
}

// Subset exposes a fixed subset of a dataset's examples under the same
// Dataset interface, so a model can train or evaluate on selected instances
// only. Indices passed to Batch are positions within the subset.
type Subset struct {
	base    Dataset
	indices []int
}

// NewSubset creates a Subset over the given positions of base.
func NewSubset(base Dataset, indices []int) (*Subset, error) {
	if base == nil {
		return nil, errors.New("base dataset is nil")
	}
	if len(indices) == 0 {
		return nil, errors.New("subset has no indices")
	}
	n := base.Len()
	for _, idx := range indices {
		if idx < 0 || idx >= n {
			return nil, fmt.Errorf("subset index %d out of range [0, %d)", idx, n)
		}
	}
	out := make([]int, len(indices))
	copy(out, indices)
	return &Subset{base: base, indices: out}, nil
}

// Len returns the number of examples in the subset.
func (s *Subset) Len() int { return len(s.indices) }

// Batch maps subset positions to base indices and fetches from the base.
func (s *Subset) Batch(indices []int) ([][]float64, []float64, error) {
	globals := make([]int, len(indices))
	for i, idx := range indices {
		if idx < 0 || idx >= len(s.indices) {
			return nil, nil, fmt.Errorf("batch index %d out of range", idx)
		}
		globals[i] = s.indices[idx]
	}
	return s.base.Batch(globals)
}
