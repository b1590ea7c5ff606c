package main

import (
	"fmt"

	"github.com/cockroachdb/pebble"
)

// pebbleStore adapts *pebble.DB to engine, over raw byte-string keys so
// the comparison against the B-tree's variable-length-key model is
// apples to apples.
type pebbleStore struct {
	db *pebble.DB
}

func openPebble(dir string) (*pebbleStore, error) {
	opts := &pebble.Options{
		MemTableSize:                16 << 20,
		MemTableStopWritesThreshold: 4,
		L0CompactionThreshold:       4,
		L0StopWritesThreshold:       12,
	}
	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, fmt.Errorf("kvbench: pebble open: %w", err)
	}
	return &pebbleStore{db: db}, nil
}

func (p *pebbleStore) Close() error { return p.db.Close() }

func (p *pebbleStore) Insert(key, value []byte) error {
	return p.db.Set(key, value, pebble.NoSync)
}

func (p *pebbleStore) Search(key []byte) ([]byte, bool, error) {
	val, closer, err := p.db.Get(key)
	if err == pebble.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("kvbench: pebble get: %w", err)
	}
	out := make([]byte, len(val))
	copy(out, val)
	closer.Close()
	return out, true, nil
}

func (p *pebbleStore) Delete(key []byte) error {
	if err := p.db.Delete(key, pebble.NoSync); err != nil {
		return fmt.Errorf("kvbench: pebble delete: %w", err)
	}
	return nil
}
