package knn

import (
	"encoding/gob"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zstd"
)

func TestCacheRoundTrip(t *testing.T) {
	ds := lineDS(5)
	path := filepath.Join(t.TempDir(), "neighbors.cache")

	s1, err := NewSearcher(ds, 2)
	if err != nil {
		t.Fatalf("NewSearcher: %v", err)
	}
	want, err := s1.All()
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if err := s1.SaveCache(path); err != nil {
		t.Fatalf("SaveCache: %v", err)
	}

	s2, err := NewSearcher(ds, 2)
	if err != nil {
		t.Fatalf("NewSearcher: %v", err)
	}
	if err := s2.LoadCache(path); err != nil {
		t.Fatalf("LoadCache: %v", err)
	}
	got, err := s2.All()
	if err != nil {
		t.Fatalf("All after load: %v", err)
	}

	if len(got) != len(want) {
		t.Fatalf("loaded %d lists, want %d", len(got), len(want))
	}
	for i := range want {
		if len(got[i]) != len(want[i]) {
			t.Fatalf("example %d: loaded %d neighbors, want %d", i, len(got[i]), len(want[i]))
		}
		for j := range want[i] {
			if got[i][j] != want[i][j] {
				t.Errorf("example %d rank %d: %+v != %+v", i, j, got[i][j], want[i][j])
			}
		}
	}
}

func TestSaveCacheComputesWhenNeeded(t *testing.T) {
	ds := lineDS(4)
	path := filepath.Join(t.TempDir(), "neighbors.cache")

	s1, err := NewSearcher(ds, 2)
	if err != nil {
		t.Fatalf("NewSearcher: %v", err)
	}
	// no All call first; SaveCache must compute the lists itself.
	if err := s1.SaveCache(path); err != nil {
		t.Fatalf("SaveCache: %v", err)
	}

	s2, err := NewSearcher(ds, 2)
	if err != nil {
		t.Fatalf("NewSearcher: %v", err)
	}
	if err := s2.LoadCache(path); err != nil {
		t.Fatalf("LoadCache: %v", err)
	}

	s3, err := NewSearcher(ds, 2)
	if err != nil {
		t.Fatalf("NewSearcher: %v", err)
	}
	want, err := s3.All()
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	got, _ := s2.All()
	for i := range want {
		for j := range want[i] {
			if got[i][j] != want[i][j] {
				t.Fatalf("example %d rank %d: %+v != %+v", i, j, got[i][j], want[i][j])
			}
		}
	}
}

func TestLoadCacheKMismatch(t *testing.T) {
	ds := lineDS(5)
	path := filepath.Join(t.TempDir(), "neighbors.cache")

	s1, _ := NewSearcher(ds, 2)
	if err := s1.SaveCache(path); err != nil {
		t.Fatalf("SaveCache: %v", err)
	}

	s2, _ := NewSearcher(ds, 3)
	err := s2.LoadCache(path)
	if err == nil {
		t.Fatalf("expected K mismatch error")
	}
	if !strings.Contains(err.Error(), "K mismatch") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadCacheExponentMismatch(t *testing.T) {
	ds := lineDS(5)
	path := filepath.Join(t.TempDir(), "neighbors.cache")

	s1, _ := NewSearcher(ds, 2)
	if err := s1.SaveCache(path); err != nil {
		t.Fatalf("SaveCache: %v", err)
	}

	s2, _ := NewSearcher(ds, 2)
	s2.Exponent = 1
	err := s2.LoadCache(path)
	if err == nil {
		t.Fatalf("expected exponent mismatch error")
	}
	if !strings.Contains(err.Error(), "exponent mismatch") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadCacheLengthMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "neighbors.cache")

	s1, _ := NewSearcher(lineDS(5), 2)
	if err := s1.SaveCache(path); err != nil {
		t.Fatalf("SaveCache: %v", err)
	}

	s2, _ := NewSearcher(lineDS(4), 2)
	err := s2.LoadCache(path)
	if err == nil {
		t.Fatalf("expected length mismatch error")
	}
	if !strings.Contains(err.Error(), "length mismatch") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadCacheVersionMismatch(t *testing.T) {
	ds := lineDS(3)
	path := filepath.Join(t.TempDir(), "neighbors.cache")

	// Hand-write a cache with a future format version.
	fh, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	zw, err := zstd.NewWriter(fh)
	if err != nil {
		t.Fatalf("zstd writer: %v", err)
	}
	pc := cacheFormat{
		Version:   cacheVersion + 1,
		K:         2,
		Exponent:  2,
		N:         ds.Len(),
		Neighbors: make([][]Neighbor, ds.Len()),
	}
	if err := gob.NewEncoder(zw).Encode(&pc); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close compressor: %v", err)
	}
	if err := fh.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s, _ := NewSearcher(ds, 2)
	err = s.LoadCache(path)
	if err == nil {
		t.Fatalf("expected version mismatch error")
	}
	if !strings.Contains(err.Error(), "version mismatch") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadCacheMissingFile(t *testing.T) {
	s, _ := NewSearcher(lineDS(3), 2)
	if err := s.LoadCache(filepath.Join(t.TempDir(), "nope.cache")); err == nil {
		t.Fatalf("expected error for missing cache file")
	}
}

func TestCacheEmptyPath(t *testing.T) {
	s, _ := NewSearcher(lineDS(3), 2)
	if err := s.SaveCache(""); err == nil {
		t.Fatalf("expected error for empty save path")
	}
	if err := s.LoadCache(""); err == nil {
		t.Fatalf("expected error for empty load path")
	}
}
