// Package lifecycle owns the process-wide handle to the active vector store.
package lifecycle

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/hyperjump/kotae/internal/vector"
)

// ErrResetting is returned when an operation races with a reset in progress.
var ErrResetting = errors.New("store is resetting")

// Manager is the only component that constructs vector stores. The handle is
// lazily loaded from the configured location on first use, and Reset returns
// it to the unset state after erasing durable state. The manager's lock
// serializes reset against ingestion; search-vs-mutation exclusion is handled
// by the store's own read/write lock.
type Manager struct {
	path       string
	dimensions int

	mu     sync.RWMutex
	active *vector.Store
}

// NewManager creates a manager bound to the persisted location and dimension.
func NewManager(path string, dimensions int) *Manager {
	return &Manager{path: path, dimensions: dimensions}
}

// Store returns the active store, loading it from the persisted location (or
// creating a fresh one) on first use.
func (m *Manager) Store() (*vector.Store, error) {
	m.mu.RLock()
	if s := m.active; s != nil {
		m.mu.RUnlock()
		return s, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		s, err := vector.LoadOrCreate(m.path, m.dimensions)
		if err != nil {
			return nil, fmt.Errorf("load store at %s: %w", m.path, err)
		}
		m.active = s
	}
	return m.active, nil
}

// Search retrieves the top k entries for the query vector. Concurrent
// searches run under the store's shared lock.
func (m *Manager) Search(query []float32, k int) ([]vector.Result, error) {
	s, err := m.Store()
	if err != nil {
		return nil, err
	}
	return s.Search(query, k)
}

// Append adds already-embedded entries and makes them durable. Embeddings
// must be computed before calling so no lock is held while waiting on the
// embedding capability. Append is mutually exclusive with Reset.
func (m *Manager) Append(entries []vector.Entry) error {
	if _, err := m.Store(); err != nil {
		return err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := m.active
	if s == nil {
		return ErrResetting
	}
	if err := s.Add(entries); err != nil {
		return err
	}
	if !s.Persisted() {
		return s.Persist()
	}
	return nil
}

// Reset discards the active store and erases its durable state. It takes the
// exclusive lock, so it waits for in-flight appends to drain, and the store's
// own write lock drains in-flight searches before the entries are dropped.
func (m *Manager) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.active
	if s == nil {
		var err error
		s, err = vector.LoadOrCreate(m.path, m.dimensions)
		if err != nil {
			// Unloadable (e.g. dimension changed between deployments):
			// erasing the snapshot is exactly what reset is for.
			if rmErr := os.Remove(m.path); rmErr != nil && !os.IsNotExist(rmErr) {
				return fmt.Errorf("erase store at %s: %w", m.path, rmErr)
			}
			return nil
		}
	}
	if err := s.Clear(); err != nil {
		return err
	}
	m.active = nil
	return nil
}

// Loaded reports whether a store is currently held.
func (m *Manager) Loaded() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active != nil
}

// Dimensions returns the embedding dimension the manager binds stores to.
func (m *Manager) Dimensions() int {
	return m.dimensions
}

// Path returns the persisted location.
func (m *Manager) Path() string {
	return m.path
}
