package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/hupe1980/issuemesh/core"
)

// FileStore is a two-tier RecordStore: an in-memory cache in front of one
// JSON document per session/key pair on disk. By default every Set writes
// through to disk; with deferred writes enabled, Set only marks the cache
// entry dirty and Flush performs the disk writes. Correctness therefore
// never depends on process continuity as long as Flush runs before exit.
type FileStore struct {
	mu       sync.Mutex
	dir      string
	deferred bool
	cache    map[string]*core.Record // cacheKey -> record
	dirty    map[string]bool
}

// FileStoreOptions configures a FileStore.
type FileStoreOptions struct {
	// DeferredWrites delays disk writes until Flush is called.
	DeferredWrites bool
}

// NewFileStore creates the base directory if needed and returns a store
// persisting records beneath it.
func NewFileStore(dir string, optFns ...func(o *FileStoreOptions)) (*FileStore, error) {
	opts := FileStoreOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	return &FileStore{
		dir:      dir,
		deferred: opts.DeferredWrites,
		cache:    make(map[string]*core.Record),
		dirty:    make(map[string]bool),
	}, nil
}

func cacheKey(sessionID, key string) string { return sessionID + "/" + key }

func (s *FileStore) path(sessionID, key string) string {
	return filepath.Join(s.dir, sessionID+"."+key+".json")
}

// Get returns the cached record or loads it from disk. A missing document
// fails with ErrSessionNotFound.
func (s *FileStore) Get(_ context.Context, sessionID, key string) (*core.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok := s.cache[cacheKey(sessionID, key)]; ok {
		return rec.Clone(), nil
	}

	data, err := os.ReadFile(s.path(sessionID, key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s/%s", core.ErrSessionNotFound, sessionID, key)
		}
		return nil, fmt.Errorf("read record: %w", err)
	}

	var rec core.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode record %s/%s: %w", sessionID, key, err)
	}
	s.cache[cacheKey(sessionID, key)] = rec.Clone()
	return &rec, nil
}

// Set stores the record in the cache and, unless deferred writes are
// enabled, writes the document to disk immediately.
func (s *FileStore) Set(_ context.Context, sessionID, key string, record *core.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ck := cacheKey(sessionID, key)
	s.cache[ck] = record.Clone()
	if s.deferred {
		s.dirty[ck] = true
		return nil
	}
	return s.writeLocked(sessionID, key, record)
}

// Flush writes all dirty cache entries to disk. It is a no-op for
// write-through stores.
func (s *FileStore) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for ck := range s.dirty {
		rec := s.cache[ck]
		var sessionID, key string
		for i := 0; i < len(ck); i++ {
			if ck[i] == '/' {
				sessionID, key = ck[:i], ck[i+1:]
				break
			}
		}
		if err := s.writeLocked(sessionID, key, rec); err != nil {
			return err
		}
		delete(s.dirty, ck)
	}
	return nil
}

// writeLocked writes one document atomically via a temp file rename.
func (s *FileStore) writeLocked(sessionID, key string, record *core.Record) error {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("encode record %s/%s: %w", sessionID, key, err)
	}
	path := s.path(sessionID, key)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("commit record: %w", err)
	}
	return nil
}

var _ core.RecordStore = (*FileStore)(nil)
