// Package pruner implements the Dynamic Pruner: delta-debug-style shrinkage
// that removes pairs one at a time from a trace known to replay
// successfully, keeping only the removals that still satisfy the oracle
// under replay.
package pruner

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"

	bolt "go.etcd.io/bbolt"
)

// Checkpoint is the resumable state of one shrink run: which original-trace
// indices have already been committed to the minimal prefix, and which
// remain to be probed.
type Checkpoint struct {
	PrefixIndexes []int `json:"prefix_indexes"`
	RestIndexes   []int `json:"rest_indexes"`
}

// Store is the cross-restart checkpoint store for dynamic-pruning runs,
// keyed by an opaque run ID. A long shrink run against a rate-limited server
// can take hours; Store lets it resume after a crash instead of restarting
// from the full trace.
type Store interface {
	Get(runID string) (Checkpoint, bool)
	Set(runID string, cp Checkpoint)
	Close() error
}

// NewMemoryStore returns a Store that keeps checkpoints only for the
// lifetime of the process. Used in tests and when no persistence path is
// configured.
func NewMemoryStore() Store {
	return &memoryStore{store: make(map[string]Checkpoint)}
}

type memoryStore struct {
	mu    sync.RWMutex
	store map[string]Checkpoint
}

func (s *memoryStore) Get(runID string) (Checkpoint, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp, ok := s.store[runID]
	return cp, ok
}

func (s *memoryStore) Set(runID string, cp Checkpoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store[runID] = cp
}

func (s *memoryStore) Close() error { return nil }

const bboltBucket = "pruning_checkpoints"

// bboltStore is a Store backed by an embedded bbolt database, so a shrink
// run's progress survives a process restart.
type bboltStore struct {
	db *bolt.DB
}

// NewBboltStore opens (or creates) the bbolt database at path and ensures
// the checkpoint bucket exists.
func NewBboltStore(path string) (Store, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("open bbolt checkpoint store %q: %w", path, err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bboltBucket))
		return err
	}); err != nil {
		db.Close() //nolint:errcheck
		return nil, fmt.Errorf("create bbolt bucket: %w", err)
	}

	log.Printf("[PRUNER] checkpoint store opened at %s", path)
	return &bboltStore{db: db}, nil
}

func (s *bboltStore) Get(runID string) (Checkpoint, bool) {
	var cp Checkpoint
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bboltBucket))
		if b == nil {
			return nil
		}
		v := b.Get([]byte(runID))
		if v == nil {
			return nil
		}
		found = true
		return json.Unmarshal(v, &cp)
	})
	if err != nil {
		log.Printf("[PRUNER] bbolt Get error: %v", err)
		return Checkpoint{}, false
	}
	return cp, found
}

func (s *bboltStore) Set(runID string, cp Checkpoint) {
	data, err := json.Marshal(cp)
	if err != nil {
		log.Printf("[PRUNER] checkpoint marshal error: %v", err)
		return
	}
	if err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bboltBucket))
		if b == nil {
			return fmt.Errorf("bucket %q not found", bboltBucket)
		}
		return b.Put([]byte(runID), data)
	}); err != nil {
		log.Printf("[PRUNER] bbolt Set error: %v", err)
	}
}

func (s *bboltStore) Close() error {
	return s.db.Close()
}
