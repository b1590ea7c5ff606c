package kvdb

import (
	"bytes"
	"path/filepath"
	"testing"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.kvdb")
	s, err := Open(path, DefaultCachePages)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStoreInsertSearchDelete(t *testing.T) {
	s := openStore(t)

	if err := s.Insert([]byte("alpha"), []byte("1")); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	v, found, err := s.Search([]byte("alpha"))
	if err != nil || !found || !bytes.Equal(v, []byte("1")) {
		t.Fatalf("Search: v=%q found=%v err=%v", v, found, err)
	}

	if err := s.Delete([]byte("alpha")); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	_, found, err = s.Search([]byte("alpha"))
	if err != nil {
		t.Fatalf("Search after delete: %v", err)
	}
	if found {
		t.Fatalf("Search after delete still finds key")
	}
}

func TestStoreRejectsEmptyKey(t *testing.T) {
	s := openStore(t)
	if err := s.Insert(nil, []byte("v")); err == nil {
		t.Fatalf("Insert with empty key: want error, got nil")
	}
	if _, _, err := s.Search(nil); err == nil {
		t.Fatalf("Search with empty key: want error, got nil")
	}
	if err := s.Delete(nil); err == nil {
		t.Fatalf("Delete with empty key: want error, got nil")
	}
}

func TestStoreRejectsOversizedEntries(t *testing.T) {
	s := openStore(t)
	huge := bytes.Repeat([]byte("x"), 1<<20)
	if err := s.Insert(huge, []byte("v")); err == nil {
		t.Fatalf("Insert with oversized key: want error, got nil")
	}
	if err := s.Insert([]byte("k"), huge); err == nil {
		t.Fatalf("Insert with oversized value: want error, got nil")
	}
}

func TestStoreReopenPersistsAcrossProcesses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.kvdb")
	s, err := Open(path, DefaultCachePages)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	for i := 0; i < 100; i++ {
		k := []byte{byte(i), byte(i >> 8)}
		if err := s.Insert(k, k); err != nil {
			t.Fatalf("Insert %d: %v", i, err)
		}
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s2, err := Open(path, DefaultCachePages)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	for i := 0; i < 100; i++ {
		k := []byte{byte(i), byte(i >> 8)}
		v, found, err := s2.Search(k)
		if err != nil || !found || !bytes.Equal(v, k) {
			t.Fatalf("Search %d after reopen: v=%v found=%v err=%v", i, v, found, err)
		}
	}
	report, err := s2.Validate()
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if report.KeyCount != 100 {
		t.Fatalf("KeyCount = %d, want 100", report.KeyCount)
	}
}

func TestStoreAllocatedPagesGrows(t *testing.T) {
	s := openStore(t)
	before := s.AllocatedPages()
	for i := 0; i < 200; i++ {
		k := []byte{byte(i), byte(i >> 8)}
		if err := s.Insert(k, k); err != nil {
			t.Fatalf("Insert %d: %v", i, err)
		}
	}
	after := s.AllocatedPages()
	if after <= before {
		t.Fatalf("AllocatedPages did not grow: before=%d after=%d", before, after)
	}
}
