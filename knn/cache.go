package knn

import (
	"encoding/gob"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"
)

// cacheVersion is bumped whenever cacheFormat changes incompatibly.
const cacheVersion = 1

// cacheFormat is the on-disk representation of precomputed neighbor lists.
// It includes metadata to validate cache integrity before reuse.
type cacheFormat struct {
	Version   int     // format version
	K         int     // neighbor count used when the cache was built
	Exponent  float64 // Minkowski exponent used when the cache was built
	N         int     // dataset length covered by the cache
	CreatedAt int64   // unix timestamp when cache was created
	Neighbors [][]Neighbor
}

// SaveCache writes the all-pairs neighbor lists to path as a zstd-compressed
// gob stream. It performs an atomic write (create temp file then rename).
// If the lists have not been computed yet, SaveCache calls All first.
func (s *Searcher) SaveCache(path string) error {
	if path == "" {
		return fmt.Errorf("empty cache path")
	}
	if !s.computed {
		if _, err := s.All(); err != nil {
			return fmt.Errorf("compute neighbors before save: %w", err)
		}
	}

	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}

	// create a temp file in the same directory for atomicity
	tmpFile, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("create temp cache file: %w", err)
	}
	tmpName := tmpFile.Name()
	// ensure cleanup on error
	defer func() {
		tmpFile.Close()
		// if the temp file still exists because something failed, remove it.
		_ = os.Remove(tmpName)
	}()

	zw, err := zstd.NewWriter(tmpFile)
	if err != nil {
		return fmt.Errorf("create cache compressor: %w", err)
	}

	k := s.K
	if k <= 0 {
		k = defaultK
	}

	enc := gob.NewEncoder(zw)
	pc := cacheFormat{
		Version:   cacheVersion,
		K:         k,
		Exponent:  s.exponent(),
		N:         len(s.neighbors),
		CreatedAt: time.Now().Unix(),
		Neighbors: s.neighbors,
	}
	if err := enc.Encode(&pc); err != nil {
		return fmt.Errorf("encode cache to temp file: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("flush cache compressor: %w", err)
	}
	// ensure data is flushed to disk
	if err := tmpFile.Sync(); err != nil {
		// non-fatal but warn
		log.Printf("warning: sync temp cache file: %v", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp cache file: %w", err)
	}
	// atomic rename to target path
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename temp cache to target: %w", err)
	}
	return nil
}

// LoadCache reads precomputed neighbor lists from path and adopts them. The
// function validates the stored metadata (version, K, exponent, dataset
// length) against the Searcher's configuration so a stale cache is rejected
// rather than silently reused. On success, later All calls serve the cached
// lists without recomputing.
func (s *Searcher) LoadCache(path string) error {
	if path == "" {
		return fmt.Errorf("empty cache path")
	}
	fh, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open cache file %s: %w", path, err)
	}
	defer fh.Close()

	zr, err := zstd.NewReader(fh)
	if err != nil {
		return fmt.Errorf("create cache decompressor: %w", err)
	}
	defer zr.Close()

	dec := gob.NewDecoder(zr)
	var pc cacheFormat
	if err := dec.Decode(&pc); err != nil {
		return fmt.Errorf("decode cache %s: %w", path, err)
	}
	// validate format version
	if pc.Version != cacheVersion {
		return fmt.Errorf("cache version mismatch: cache=%d expected=%d", pc.Version, cacheVersion)
	}
	// validate K
	k := s.K
	if k <= 0 {
		k = defaultK
	}
	if pc.K != k {
		return fmt.Errorf("cache K mismatch: cache=%d expected=%d", pc.K, k)
	}
	// validate exponent
	if pc.Exponent != s.exponent() {
		return fmt.Errorf("cache exponent mismatch: cache=%g expected=%g", pc.Exponent, s.exponent())
	}
	// validate dataset length
	if s.DS == nil {
		return fmt.Errorf("dataset cannot be nil")
	}
	if pc.N != s.DS.Len() {
		return fmt.Errorf("cache length mismatch: cache=%d expected=%d", pc.N, s.DS.Len())
	}
	if len(pc.Neighbors) != pc.N {
		return fmt.Errorf("cache size mismatch: neighbors=%d expected=%d", len(pc.Neighbors), pc.N)
	}
	// adopt cached lists
	s.neighbors = pc.Neighbors
	s.computed = true
	return nil
}
