package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gomlx/gomlx/pkg/core/tensors"
)

// CSVDataset lazily loads examples from CSV files matching a glob pattern.
// The input columns and the target column are selected by header name, so
// the same loader serves any tabular regression file. Files are read on
// demand; only row counts and the column mapping are held in memory.
type CSVDataset struct {
	// Pattern used to find CSV files (e.g., "assets/*.csv")
	Pattern string

	// InputCols names the feature columns, in order; TargetCol names the
	// response column.
	InputCols []string
	TargetCol string

	// BatchSize used by Yield when driving a gomlx training loop.
	BatchSize int

	csvPaths []string

	// Column indices resolved from the header of the first file.
	colIndex map[string]int

	// Per-file row counts and cumulative counts for global index mapping.
	rowCounts map[int]int
	cumCounts []int

	totalExamples int

	// cursor is the next global index Yield will serve.
	cursor int
}

// NewCSVDataset creates a dataset over all CSV files matching pattern.
// inputCols and targetCol are matched case-insensitively against the header
// of the first file; every named column must exist.
func NewCSVDataset(pattern string, inputCols []string, targetCol string) (*CSVDataset, error) {
	if len(inputCols) == 0 {
		return nil, fmt.Errorf("at least one input column is required")
	}
	if targetCol == "" {
		return nil, fmt.Errorf("target column is required")
	}

	csvPaths, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to glob pattern %s: %w", pattern, err)
	}
	if len(csvPaths) == 0 {
		return nil, fmt.Errorf("no CSV files found matching pattern: %s", pattern)
	}

	ds := &CSVDataset{
		Pattern:   pattern,
		InputCols: inputCols,
		TargetCol: targetCol,
		BatchSize: 32,
		csvPaths:  csvPaths,
		rowCounts: make(map[int]int),
	}

	if err := ds.initializeColumns(); err != nil {
		return nil, err
	}
	if err := ds.buildIndex(); err != nil {
		return nil, err
	}

	return ds, nil
}

// initializeColumns reads the first CSV to determine column indices
func (d *CSVDataset) initializeColumns() error {
	file, err := os.Open(d.csvPaths[0])
	if err != nil {
		return fmt.Errorf("failed to open first CSV %s: %w", d.csvPaths[0], err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		return fmt.Errorf("failed to read header: %w", err)
	}

	d.colIndex = make(map[string]int)
	for i, col := range header {
		d.colIndex[strings.TrimSpace(strings.ToLower(col))] = i
	}

	// Verify required columns exist
	for _, col := range append(append([]string{}, d.InputCols...), d.TargetCol) {
		if _, ok := d.colIndex[strings.ToLower(col)]; !ok {
			return fmt.Errorf("required column %q not found in CSV", col)
		}
	}

	return nil
}

// buildIndex counts rows in all files and builds cumulative counts
func (d *CSVDataset) buildIndex() error {
	d.cumCounts = make([]int, len(d.csvPaths)+1)
	d.cumCounts[0] = 0

	for i, path := range d.csvPaths {
		count, err := countCSVRows(path)
		if err != nil {
			return fmt.Errorf("failed to count rows in %s: %w", path, err)
		}
		d.rowCounts[i] = count
		d.cumCounts[i+1] = d.cumCounts[i] + count
	}

	d.totalExamples = d.cumCounts[len(d.csvPaths)]
	return nil
}

// Len returns the total number of examples across all CSV files
func (d *CSVDataset) Len() int {
	return d.totalExamples
}

// Dim returns the number of input features per example.
func (d *CSVDataset) Dim() int {
	return len(d.InputCols)
}

// Name identifies the dataset by its glob pattern.
func (d *CSVDataset) Name() string {
	return "csv:" + d.Pattern
}

// Example reads a single example by global index
func (d *CSVDataset) Example(idx int) ([]float64, float64, error) {
	if idx < 0 || idx >= d.totalExamples {
		return nil, 0, fmt.Errorf("index %d out of range [0, %d)", idx, d.totalExamples)
	}

	fileIdx, localIdx := d.mapGlobalIndex(idx)
	return d.readExample(fileIdx, localIdx)
}

// mapGlobalIndex maps a global index to (file index, row index within file)
func (d *CSVDataset) mapGlobalIndex(globalIdx int) (fileIdx, localIdx int) {
	for i := range len(d.csvPaths) {
		if globalIdx < d.cumCounts[i+1] {
			return i, globalIdx - d.cumCounts[i]
		}
	}
	// Should never reach here if globalIdx is valid
	return len(d.csvPaths) - 1, d.rowCounts[len(d.csvPaths)-1] - 1
}

// parseRow extracts the configured input and target fields from one record.
func (d *CSVDataset) parseRow(record []string) ([]float64, float64, error) {
	input := make([]float64, len(d.InputCols))
	for i, col := range d.InputCols {
		val, err := parseFloat(record[d.colIndex[strings.ToLower(col)]])
		if err != nil {
			return nil, 0, fmt.Errorf("failed to parse %s: %w", col, err)
		}
		input[i] = val
	}

	target, err := parseFloat(record[d.colIndex[strings.ToLower(d.TargetCol)]])
	if err != nil {
		return nil, 0, fmt.Errorf("failed to parse %s: %w", d.TargetCol, err)
	}
	return input, target, nil
}

// readExample reads a specific example from a file
func (d *CSVDataset) readExample(fileIdx, rowIdx int) ([]float64, float64, error) {
	file, err := os.Open(d.csvPaths[fileIdx])
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open CSV: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)

	// Skip header
	if _, err := reader.Read(); err != nil {
		return nil, 0, fmt.Errorf("failed to read header: %w", err)
	}

	// Skip to the desired row
	for range rowIdx {
		if _, err := reader.Read(); err != nil {
			return nil, 0, fmt.Errorf("failed to skip to row %d: %w", rowIdx, err)
		}
	}

	record, err := reader.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read row %d: %w", rowIdx, err)
	}

	return d.parseRow(record)
}

// Batch reads multiple examples by their indices
func (d *CSVDataset) Batch(indices []int) ([][]float64, []float64, error) {
	inputs := make([][]float64, len(indices))
	targets := make([]float64, len(indices))

	// Group indices by file so each file is scanned once per batch.
	fileGroups := make(map[int][]struct{ globalIdx, batchPos int })
	for batchPos, idx := range indices {
		if idx < 0 || idx >= d.totalExamples {
			return nil, nil, fmt.Errorf("index %d out of range [0, %d)", idx, d.totalExamples)
		}
		fileIdx, _ := d.mapGlobalIndex(idx)
		fileGroups[fileIdx] = append(fileGroups[fileIdx], struct{ globalIdx, batchPos int }{idx, batchPos})
	}

	for fileIdx, group := range fileGroups {
		if err := d.readBatchFromFile(fileIdx, group, inputs, targets); err != nil {
			return nil, nil, err
		}
	}

	return inputs, targets, nil
}

// readBatchFromFile reads multiple examples from a single file
func (d *CSVDataset) readBatchFromFile(fileIdx int, indices []struct{ globalIdx, batchPos int },
	inputs [][]float64, targets []float64) error {

	file, err := os.Open(d.csvPaths[fileIdx])
	if err != nil {
		return fmt.Errorf("failed to open CSV: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)

	// Skip header
	if _, err := reader.Read(); err != nil {
		return fmt.Errorf("failed to read header: %w", err)
	}

	// Map local row indices to batch positions
	localMap := make(map[int][]int)
	for _, item := range indices {
		_, localIdx := d.mapGlobalIndex(item.globalIdx)
		localMap[localIdx] = append(localMap[localIdx], item.batchPos)
	}

	rowIdx := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read row: %w", err)
		}

		if positions, ok := localMap[rowIdx]; ok {
			input, target, perr := d.parseRow(record)
			if perr != nil {
				return perr
			}
			for _, batchPos := range positions {
				inputs[batchPos] = input
				targets[batchPos] = target
			}
		}

		rowIdx++
	}

	return nil
}

// Tensors reads a batch of examples and returns them as gomlx tensors
func (d *CSVDataset) Tensors(indices []int) (*tensors.Tensor, *tensors.Tensor, error) {
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

// Yield returns the next sequential batch for the gomlx Dataset interface.
// Batch size is determined by the BatchSize field; io.EOF signals the end of
// the epoch.
func (d *CSVDataset) Yield() (spec any, inputs []*tensors.Tensor, labels []*tensors.Tensor, err error) {
	indices := yieldIndices(&d.cursor, d.totalExamples, d.BatchSize)
	if indices == nil {
		return nil, nil, nil, io.EOF
	}
	in, tgt, err := d.Tensors(indices)
	if err != nil {
		return nil, nil, nil, err
	}
	return nil, []*tensors.Tensor{in}, []*tensors.Tensor{tgt}, nil
}

// Restart resets the dataset for a new epoch
func (d *CSVDataset) Restart() error {
	d.cursor = 0
	return nil
}
