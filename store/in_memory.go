// Package store provides RecordStore implementations: a volatile in-memory
// store for tests and ephemeral runs, and a file-backed store layering a
// write cache over JSON documents on disk. A SQLite-backed store lives in
// the sqlite subpackage to keep the cgo dependency out of minimal builds.
package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/issuemesh/core"
)

// InMemoryStore is a volatile RecordStore keeping records in a process local
// map. It is safe for concurrent access and best suited for tests. Each
// record is cloned on read and write to prevent external mutation of
// internal state.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string]map[string]*core.Record // sessionID -> key -> record
}

// NewInMemoryStore constructs an empty in-memory record store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[string]map[string]*core.Record)}
}

// Get returns a clone of the stored record or ErrSessionNotFound.
func (s *InMemoryStore) Get(_ context.Context, sessionID, key string) (*core.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if keys, ok := s.records[sessionID]; ok {
		if rec, ok := keys[key]; ok {
			return rec.Clone(), nil
		}
	}
	return nil, fmt.Errorf("%w: %s/%s", core.ErrSessionNotFound, sessionID, key)
}

// Set stores a clone of the record, overwriting any previous document.
func (s *InMemoryStore) Set(_ context.Context, sessionID, key string, record *core.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys, ok := s.records[sessionID]
	if !ok {
		keys = make(map[string]*core.Record)
		s.records[sessionID] = keys
	}
	keys[key] = record.Clone()
	return nil
}

var _ core.RecordStore = (*InMemoryStore)(nil)
