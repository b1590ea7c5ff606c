// Package kvdb implements an embedded, single-writer, persistent
// key-value store backed by a disk-resident B-tree. Store is the only
// public surface: callers (a CLI, a REPL, a record codec) drive the
// database through Insert/Search/Delete alone, never by reaching into
// internal/pager or internal/page directly.
package kvdb

import (
	"errors"
	"fmt"

	"kvdb/internal/btree"
	"kvdb/internal/page"
	"kvdb/internal/pager"
)

// DefaultCachePages bounds the pager's in-memory LRU cache when callers
// don't need to tune it.
const DefaultCachePages = 256

// ErrKeyTooLarge and ErrValueTooLarge report an entry that could never fit
// a single page cell, independent of current tree shape.
var (
	ErrKeyTooLarge   = errors.New("kvdb: key too large for a single page")
	ErrValueTooLarge = errors.New("kvdb: value too large for a single page")
	ErrEmptyKey      = errors.New("kvdb: key must not be empty")
)

// Store is a single open *.kvdb file and the B-tree over it. Not safe for
// concurrent use from multiple goroutines, and never from multiple
// processes — Open takes an advisory exclusive lock on the file but that
// only detects misuse, it does not arbitrate it.
type Store struct {
	pg *pager.Pager
	t  *btree.Tree
}

// Open opens path, creating it if it does not exist, and returns a ready
// Store. cachePages bounds the pager's page cache; pass DefaultCachePages
// if you have no opinion.
func Open(path string, cachePages int) (*Store, error) {
	pg, err := pager.Open(path, cachePages)
	if err != nil {
		return nil, fmt.Errorf("kvdb: open %s: %w", path, err)
	}
	t, err := btree.Open(pg)
	if err != nil {
		pg.Close()
		return nil, fmt.Errorf("kvdb: open %s: %w", path, err)
	}
	return &Store{pg: pg, t: t}, nil
}

// Close flushes and closes the underlying file.
func (s *Store) Close() error {
	return s.pg.Close()
}

// Search returns the value stored under key, and whether key was found.
func (s *Store) Search(key []byte) ([]byte, bool, error) {
	if len(key) == 0 {
		return nil, false, ErrEmptyKey
	}
	v, ok, err := s.t.Search(key)
	if err != nil {
		return nil, false, fmt.Errorf("kvdb: search: %w", err)
	}
	return v, ok, nil
}

// Insert adds key/value, overwriting any existing value for key.
func (s *Store) Insert(key, value []byte) error {
	if len(key) == 0 {
		return ErrEmptyKey
	}
	if len(key) > page.MaxCellSize() {
		return fmt.Errorf("%w: %d bytes", ErrKeyTooLarge, len(key))
	}
	if len(key)+len(value) > page.MaxCellSize() {
		return fmt.Errorf("%w: %d bytes", ErrValueTooLarge, len(value))
	}
	if err := s.t.Insert(key, value); err != nil {
		return fmt.Errorf("kvdb: insert: %w", err)
	}
	return nil
}

// Delete removes key. Deleting an absent key is a no-op, not an error.
func (s *Store) Delete(key []byte) error {
	if len(key) == 0 {
		return ErrEmptyKey
	}
	if err := s.t.Delete(key); err != nil {
		return fmt.Errorf("kvdb: delete: %w", err)
	}
	return nil
}

// Validate walks the whole tree and checks its structural invariants. It
// is a diagnostic, not part of the hot path.
func (s *Store) Validate() (*btree.ValidationReport, error) {
	return s.t.Validate()
}

// AllocatedPages reports how many pages the backing file currently holds,
// including dead pages left behind by the append-only write discipline —
// the store never reclaims them.
func (s *Store) AllocatedPages() int64 {
	return s.pg.AllocatedPages()
}
