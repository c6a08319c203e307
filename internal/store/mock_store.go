// ABOUTME: In-memory Backend implementation for testing
// ABOUTME: Allows tests to run without files and to inject load/save failures

package store

import (
	"context"
	"errors"
	"sync"
)

// MemoryBackend is an in-memory Backend for testing.
type MemoryBackend struct {
	mu      sync.Mutex
	doc     *Document
	loadErr error
	saveErr error
	saves   int
	onSave  func(*Document)
}

// NewMemoryBackend creates a MemoryBackend holding the empty document.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{doc: EmptyDocument()}
}

// Load returns a copy of the held document, or the injected error.
func (m *MemoryBackend) Load(_ context.Context) (*Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.loadErr != nil {
		return nil, m.loadErr
	}
	if m.doc == nil {
		return nil, errors.New("document not found")
	}
	return m.doc.clone(), nil
}

// Save replaces the held document with a copy, or returns the injected error.
func (m *MemoryBackend) Save(_ context.Context, doc *Document) error {
	m.mu.Lock()
	hook := m.onSave
	if m.saveErr != nil {
		err := m.saveErr
		m.mu.Unlock()
		return err
	}
	m.doc = doc.clone()
	m.doc.normalize()
	m.saves++
	m.mu.Unlock()

	if hook != nil {
		hook(doc)
	}
	return nil
}

// Close is a no-op.
func (m *MemoryBackend) Close() error {
	return nil
}

// SetLoadError makes subsequent Loads fail with err (nil clears it).
func (m *MemoryBackend) SetLoadError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadErr = err
}

// SetSaveError makes subsequent Saves fail with err (nil clears it).
func (m *MemoryBackend) SetSaveError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveErr = err
}

// OnSave registers a hook called after each successful Save, outside the lock.
func (m *MemoryBackend) OnSave(fn func(*Document)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onSave = fn
}

// Drop forgets the held document, as if the backing file had been deleted.
func (m *MemoryBackend) Drop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.doc = nil
}

// Saves reports how many Saves succeeded.
func (m *MemoryBackend) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
