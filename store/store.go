// Package store persists experiment runs and their per-instance weights to
// a SQLite database so results can be compared across schemes and exported
// for plotting or spreadsheet analysis. The database is a plain file opened
// through the pure-Go modernc.org/sqlite driver, so reading and writing it
// needs no cgo toolchain.
package store

import (
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // register pure-Go SQLite driver
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    created_at INTEGER NOT NULL,
    dataset TEXT NOT NULL,
    scheme TEXT NOT NULL,
    exponent REAL NOT NULL,
    k INTEGER NOT NULL,
    instances INTEGER NOT NULL,
    selected INTEGER NOT NULL,
    elapsed_ms INTEGER NOT NULL,
    rmse_full REAL,
    rmse_selected REAL
);

CREATE TABLE IF NOT EXISTS weights (
    run_id TEXT NOT NULL,
    idx INTEGER NOT NULL,
    raw REAL NOT NULL,
    normalized REAL NOT NULL,
    selected INTEGER NOT NULL,
    PRIMARY KEY (run_id, idx)
);
`

const runColumns = `id, created_at, dataset, scheme, exponent, k,
	instances, selected, elapsed_ms, rmse_full, rmse_selected`

// Record is the result of one weighting run in the form the store accepts.
// Raw and Normalized must have the same length; Selected lists the indices
// kept by the selection step and may be nil when no selection ran, in which
// case every instance counts as kept. RMSE fields may be NaN when the run
// skipped model evaluation; NaN is stored as SQL NULL and read back as NaN.
type Record struct {
	Dataset      string
	Scheme       string
	Exponent     float64
	K            int
	Elapsed      time.Duration
	RMSEFull     float64
	RMSESelected float64
	Raw          []float64
	Normalized   []float64
	Selected     []int
}

// Run is a persisted run row. Instances and Selected are counts; the
// per-instance weights live in their own table and are read with Weights.
type Run struct {
	ID           string
	CreatedAt    time.Time
	Dataset      string
	Scheme       string
	Exponent     float64
	K            int
	Instances    int
	Selected     int
	Elapsed      time.Duration
	RMSEFull     float64
	RMSESelected float64
}

// Weight is one persisted per-instance weight row.
type Weight struct {
	Index      int
	Raw        float64
	Normalized float64
	Selected   bool
}

// Store wraps a SQLite database holding runs and weights.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the SQLite database at path and makes
// sure the runs and weights tables exist. Parent directories are created
// when the path has any. Pass ":memory:" for a throwaway in-memory store.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("store: database path is empty")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := EnsureSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// EnsureSchema creates the runs and weights tables in the provided database
// if they do not already exist. It is safe to call on every open.
func EnsureSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun persists one run and its weights inside a single transaction and
// returns the generated run ID. The steps are:
//
//  1. Validate the record: weights present, matching lengths, selection
//     indices in range.
//  2. Insert the run row with a fresh UUID and the current timestamp.
//  3. Insert one weights row per instance, flagging the selected ones.
//
// Either everything lands or nothing does.
func (s *Store) SaveRun(rec *Record) (string, error) {
	if rec == nil {
		return "", errors.New("store: record is nil")
	}
	n := len(rec.Raw)
	if n == 0 {
		return "", errors.New("store: record has no weights")
	}
	if len(rec.Normalized) != n {
		return "", fmt.Errorf("store: normalized length %d does not match raw length %d", len(rec.Normalized), n)
	}
	picked := make(map[int]bool, len(rec.Selected))
	for _, idx := range rec.Selected {
		if idx < 0 || idx >= n {
			return "", fmt.Errorf("store: selected index %d out of range [0, %d)", idx, n)
		}
		picked[idx] = true
	}
	selectedCount := n
	if rec.Selected != nil {
		selectedCount = len(picked)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	id := uuid.NewString()
	_, err = tx.Exec(`INSERT INTO runs(`+runColumns+`) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, time.Now().UnixMilli(), rec.Dataset, rec.Scheme, rec.Exponent, rec.K,
		n, selectedCount, rec.Elapsed.Milliseconds(),
		nullableFloat(rec.RMSEFull), nullableFloat(rec.RMSESelected))
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO weights(run_id, idx, raw, normalized, selected) VALUES(?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("prepare weight insert: %w", err)
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		sel := 0
		if rec.Selected == nil || picked[i] {
			sel = 1
		}
		if _, err := stmt.Exec(id, i, rec.Raw[i], rec.Normalized[i], sel); err != nil {
			return "", fmt.Errorf("insert weight %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit run: %w", err)
	}
	return id, nil
}

// Run reads a single run row by ID.
func (s *Store) Run(id string) (*Run, error) {
	row := s.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("store: run %q not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("read run: %w", err)
	}
	return r, nil
}

// Runs lists all persisted runs, most recent first.
func (s *Store) Runs() ([]*Run, error) {
	rows, err := s.db.Query(`SELECT ` + runColumns + ` FROM runs ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return out, nil
}

// Weights reads the per-instance weights of a run ordered by index.
func (s *Store) Weights(runID string) ([]Weight, error) {
	rows, err := s.db.Query(`SELECT idx, raw, normalized, selected FROM weights WHERE run_id = ? ORDER BY idx`, runID)
	if err != nil {
		return nil, fmt.Errorf("read weights: %w", err)
	}
	defer rows.Close()

	var out []Weight
	for rows.Next() {
		var w Weight
		var sel int
		if err := rows.Scan(&w.Index, &w.Raw, &w.Normalized, &sel); err != nil {
			return nil, fmt.Errorf("scan weight: %w", err)
		}
		w.Selected = sel != 0
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read weights: %w", err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("store: run %q not found", runID)
	}
	return out, nil
}

// ExportCSV writes the weights of a run to w as CSV with the header
// index,raw,normalized,selected. Selected is written as 1 or 0.
func (s *Store) ExportCSV(runID string, w io.Writer) error {
	weights, err := s.Weights(runID)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"index", "raw", "normalized", "selected"}); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, wt := range weights {
		sel := "0"
		if wt.Selected {
			sel = "1"
		}
		rec := []string{
			strconv.Itoa(wt.Index),
			strconv.FormatFloat(wt.Raw, 'g', -1, 64),
			strconv.FormatFloat(wt.Normalized, 'g', -1, 64),
			sel,
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write csv row %d: %w", wt.Index, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanRun decodes one runs row. NULL RMSE columns come back as NaN so
// callers see the same "not evaluated" marker the experiment produced.
func scanRun(row rowScanner) (*Run, error) {
	var (
		r         Run
		createdAt int64
		elapsedMS int64
		full, sel sql.NullFloat64
	)
	err := row.Scan(&r.ID, &createdAt, &r.Dataset, &r.Scheme, &r.Exponent, &r.K,
		&r.Instances, &r.Selected, &elapsedMS, &full, &sel)
	if err != nil {
		return nil, err
	}
	r.CreatedAt = time.UnixMilli(createdAt)
	r.Elapsed = time.Duration(elapsedMS) * time.Millisecond
	r.RMSEFull = math.NaN()
	if full.Valid {
		r.RMSEFull = full.Float64
	}
	r.RMSESelected = math.NaN()
	if sel.Valid {
		r.RMSESelected = sel.Float64
	}
	return &r, nil
}

// nullableFloat maps NaN to SQL NULL so the REAL columns stay well-formed.
func nullableFloat(v float64) any {
	if math.IsNaN(v) {
		return nil
	}
	return v
}
