package pager

import (
	"path/filepath"
	"testing"
)

func TestOpenCreatesHeaderPage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.kvdb")
	p, err := Open(path, 16)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer p.Close()

	root, err := p.ReadRoot()
	if err != nil {
		t.Fatalf("ReadRoot: %v", err)
	}
	if root != 0 {
		t.Fatalf("fresh file root = %d, want 0", root)
	}
	if got := p.AllocatedPages(); got != 1 {
		t.Fatalf("AllocatedPages = %d, want 1 (header only)", got)
	}
}

func TestAppendReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.kvdb")
	p, err := Open(path, 16)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer p.Close()

	var pg Page
	copy(pg[:], "hello page")
	off, err := p.Append(&pg)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if off != firstNodeOffset {
		t.Fatalf("first append offset = %d, want %d", off, firstNodeOffset)
	}

	got, err := p.Read(off)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got[:10]) != "hello page" {
		t.Fatalf("Read returned %q", got[:10])
	}

	var pg2 Page
	copy(pg2[:], "second page")
	off2, err := p.Append(&pg2)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if off2 != off+PageSize {
		t.Fatalf("second append offset = %d, want %d", off2, off+PageSize)
	}
}

func TestWriteRootPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.kvdb")
	p, err := Open(path, 16)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	var pg Page
	off, err := p.Append(&pg)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := p.WriteRoot(off); err != nil {
		t.Fatalf("WriteRoot: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	p2, err := Open(path, 16)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer p2.Close()
	root, err := p2.ReadRoot()
	if err != nil {
		t.Fatalf("ReadRoot: %v", err)
	}
	if root != off {
		t.Fatalf("reopened root = %d, want %d", root, off)
	}
}

func TestCacheEvictionStillReadsFromDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.kvdb")
	p, err := Open(path, 2) // tiny cache forces eviction
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer p.Close()

	var offsets []int64
	for i := 0; i < 10; i++ {
		var pg Page
		pg[0] = byte(i)
		off, err := p.Append(&pg)
		if err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
		offsets = append(offsets, off)
	}

	for i, off := range offsets {
		got, err := p.Read(off)
		if err != nil {
			t.Fatalf("Read %d: %v", i, err)
		}
		if got[0] != byte(i) {
			t.Fatalf("page %d byte0 = %d, want %d", i, got[0], i)
		}
	}
}
