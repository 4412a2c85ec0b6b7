// Package vector provides the persistent passage store with brute-force
// cosine similarity search.
package vector

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/pkg/utils"
)

// ErrDimensionMismatch is returned when an embedding's length differs from the
// store's declared dimension, or when a snapshot was written with a different one.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// ErrInvalidK is returned when a search asks for a non-positive number of results.
var ErrInvalidK = errors.New("k must be positive")

// Entry pairs a passage with its embedding. Entries are appended, never
// mutated, and removed only by Clear.
type Entry struct {
	Passage models.Passage
	Vector  []float32
}

// Result is a single search hit.
type Result struct {
	Passage models.Passage
	Score   float64 // cosine similarity
}

// Store is an ordered collection of (passage, embedding) entries bound to a
// durable location. Search is an exact linear scan: correct, simple, and
// adequate at the scale of a single organization's document corpus. Vectors
// are L2-normalized on the way in so the dot product is cosine similarity.
type Store struct {
	mu         sync.RWMutex
	dimensions int
	path       string
	persisted  bool // once true, every Add writes through before returning
	entries    []Entry
}

// New creates a fresh empty store bound to path with the given dimension.
// Nothing is written to disk until the first Persist.
func New(path string, dimensions int) (*Store, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive, got %d", dimensions)
	}
	return &Store{dimensions: dimensions, path: path, entries: make([]Entry, 0)}, nil
}

// LoadOrCreate loads the snapshot at path if one exists, validating its
// recorded dimension against dimensions, or creates a fresh empty store bound
// to path. A loaded store is already persisted, so subsequent adds write through.
func LoadOrCreate(path string, dimensions int) (*Store, error) {
	s, err := New(path, dimensions)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("stat store: %w", err)
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	s.persisted = true
	return s, nil
}

// Add appends all entries, or none of them. Every vector must match the
// store's dimension; the batch is validated before anything is applied. When
// the store is persisted, the new state is written durably before Add returns.
func (s *Store) Add(entries []Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range entries {
		if len(e.Vector) != s.dimensions {
			return fmt.Errorf("%w: entry %d has %d, store expects %d", ErrDimensionMismatch, i, len(e.Vector), s.dimensions)
		}
	}
	prev := len(s.entries)
	for _, e := range entries {
		vec := make([]float32, s.dimensions)
		copy(vec, e.Vector)
		utils.NormalizeL2(vec)
		s.entries = append(s.entries, Entry{Passage: e.Passage, Vector: vec})
	}
	if s.persisted {
		if err := s.save(); err != nil {
			s.entries = s.entries[:prev]
			return fmt.Errorf("write-through: %w", err)
		}
	}
	return nil
}

// Search returns the top k entries by cosine similarity to query, ordered by
// descending score with ties broken by insertion order. An empty store yields
// an empty result, not an error.
func (s *Store) Search(query []float32, k int) ([]Result, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidK, k)
	}
	if len(query) != s.dimensions {
		return nil, fmt.Errorf("%w: query has %d, store expects %d", ErrDimensionMismatch, len(query), s.dimensions)
	}
	q := make([]float32, s.dimensions)
	copy(q, query)
	utils.NormalizeL2(q)

	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.entries) == 0 {
		return []Result{}, nil
	}
	results := make([]Result, len(s.entries))
	for i, e := range s.entries {
		results[i] = Result{Passage: e.Passage, Score: utils.Dot(q, e.Vector)}
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if k > len(results) {
		k = len(results)
	}
	return results[:k], nil
}

// Persist flushes the current state to the durable location. Idempotent; once
// it has succeeded, later adds write through automatically.
func (s *Store) Persist() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.save(); err != nil {
		return err
	}
	s.persisted = true
	return nil
}

// Clear discards all entries and erases the durable state at the store's
// location, returning the store to the uninitialized condition.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = s.entries[:0]
	s.persisted = false
	if s.path == "" {
		return nil
	}
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("erase store: %w", err)
	}
	return nil
}

// Size returns the number of entries.
func (s *Store) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Dimensions returns the store's declared embedding dimension.
func (s *Store) Dimensions() int {
	return s.dimensions
}

// Persisted reports whether the store has a durable backing.
func (s *Store) Persisted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.persisted
}

// Path returns the durable location this store is bound to.
func (s *Store) Path() string {
	return s.path
}
