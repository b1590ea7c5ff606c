package btree

import (
	"bytes"
	"fmt"
	"math/rand"
	"path/filepath"
	"testing"

	"kvdb/internal/pager"
)

func openTree(t *testing.T) *Tree {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.kvdb")
	pg, err := pager.Open(path, 64)
	if err != nil {
		t.Fatalf("pager.Open: %v", err)
	}
	t.Cleanup(func() { pg.Close() })
	tr, err := Open(pg)
	if err != nil {
		t.Fatalf("btree.Open: %v", err)
	}
	return tr
}

func key(i int) []byte { return []byte(fmt.Sprintf("key-%06d", i)) }
func val(i int) []byte { return []byte(fmt.Sprintf("val-%06d", i)) }

func TestSearchEmptyTree(t *testing.T) {
	tr := openTree(t)
	_, found, err := tr.Search([]byte("anything"))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if found {
		t.Fatalf("Search in empty tree found a key")
	}
}

func TestInsertSearchSingle(t *testing.T) {
	tr := openTree(t)
	if err := tr.Insert([]byte("a"), []byte("1")); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	v, found, err := tr.Search([]byte("a"))
	if err != nil || !found {
		t.Fatalf("Search: v=%q found=%v err=%v", v, found, err)
	}
	if string(v) != "1" {
		t.Fatalf("Search value = %q, want 1", v)
	}
}

func TestInsertOverwriteIsUpdate(t *testing.T) {
	tr := openTree(t)
	if err := tr.Insert([]byte("a"), []byte("1")); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := tr.Insert([]byte("a"), []byte("2")); err != nil {
		t.Fatalf("Insert overwrite: %v", err)
	}
	v, found, err := tr.Search([]byte("a"))
	if err != nil || !found {
		t.Fatalf("Search: %v %v", found, err)
	}
	if string(v) != "2" {
		t.Fatalf("Search value = %q, want 2 (overwrite should win)", v)
	}
	report, err := tr.Validate()
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if report.KeyCount != 1 {
		t.Fatalf("KeyCount = %d, want 1 (overwrite must not duplicate)", report.KeyCount)
	}
}

func TestInsertForcesSplits(t *testing.T) {
	tr := openTree(t)
	const n = 500
	for i := 0; i < n; i++ {
		if err := tr.Insert(key(i), val(i)); err != nil {
			t.Fatalf("Insert %d: %v", i, err)
		}
	}
	report, err := tr.Validate()
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if report.KeyCount != n {
		t.Fatalf("KeyCount = %d, want %d", report.KeyCount, n)
	}
	if report.Height < 2 {
		t.Fatalf("Height = %d, want a multi-level tree for %d keys", report.Height, n)
	}
	for i := 0; i < n; i++ {
		v, found, err := tr.Search(key(i))
		if err != nil || !found {
			t.Fatalf("Search(%d): found=%v err=%v", i, found, err)
		}
		if !bytes.Equal(v, val(i)) {
			t.Fatalf("Search(%d) = %q, want %q", i, v, val(i))
		}
	}
}

func TestInsertOutOfOrderStillSorted(t *testing.T) {
	tr := openTree(t)
	order := rand.New(rand.NewSource(1)).Perm(300)
	for _, i := range order {
		if err := tr.Insert(key(i), val(i)); err != nil {
			t.Fatalf("Insert %d: %v", i, err)
		}
	}
	if _, err := tr.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	for _, i := range order {
		v, found, err := tr.Search(key(i))
		if err != nil || !found || !bytes.Equal(v, val(i)) {
			t.Fatalf("Search(%d): v=%q found=%v err=%v", i, v, found, err)
		}
	}
}

func TestDeleteAbsentKeyIsNoop(t *testing.T) {
	tr := openTree(t)
	for i := 0; i < 50; i++ {
		if err := tr.Insert(key(i), val(i)); err != nil {
			t.Fatalf("Insert %d: %v", i, err)
		}
	}
	if err := tr.Delete([]byte("not-present")); err != nil {
		t.Fatalf("Delete absent key: %v", err)
	}
	report, err := tr.Validate()
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if report.KeyCount != 50 {
		t.Fatalf("KeyCount = %d, want 50 unchanged", report.KeyCount)
	}
}

func TestDeleteAllKeysEmptiesTree(t *testing.T) {
	tr := openTree(t)
	const n = 400
	for i := 0; i < n; i++ {
		if err := tr.Insert(key(i), val(i)); err != nil {
			t.Fatalf("Insert %d: %v", i, err)
		}
	}
	for i := 0; i < n; i++ {
		if err := tr.Delete(key(i)); err != nil {
			t.Fatalf("Delete %d: %v", i, err)
		}
		if i%50 == 0 {
			if _, err := tr.Validate(); err != nil {
				t.Fatalf("Validate after deleting %d: %v", i, err)
			}
		}
	}
	if tr.Root() != 0 {
		t.Fatalf("Root = %d, want 0 after deleting every key", tr.Root())
	}
	for i := 0; i < n; i++ {
		_, found, err := tr.Search(key(i))
		if err != nil {
			t.Fatalf("Search %d: %v", i, err)
		}
		if found {
			t.Fatalf("Search(%d) found a deleted key", i)
		}
	}
}

func TestDeleteReverseOrderTriggersMergesAndBorrows(t *testing.T) {
	tr := openTree(t)
	const n = 300
	for i := 0; i < n; i++ {
		if err := tr.Insert(key(i), val(i)); err != nil {
			t.Fatalf("Insert %d: %v", i, err)
		}
	}
	for i := n - 1; i >= 0; i-- {
		if err := tr.Delete(key(i)); err != nil {
			t.Fatalf("Delete %d: %v", i, err)
		}
	}
	report, err := tr.Validate()
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if report.KeyCount != 0 {
		t.Fatalf("KeyCount = %d, want 0", report.KeyCount)
	}
}

func TestRandomInsertDeleteMaintainsInvariants(t *testing.T) {
	tr := openTree(t)
	rng := rand.New(rand.NewSource(42))
	present := map[int]bool{}
	const universe = 1000

	for step := 0; step < 5000; step++ {
		i := rng.Intn(universe)
		if present[i] {
			if err := tr.Delete(key(i)); err != nil {
				t.Fatalf("Delete %d: %v", i, err)
			}
			delete(present, i)
		} else {
			if err := tr.Insert(key(i), val(i)); err != nil {
				t.Fatalf("Insert %d: %v", i, err)
			}
			present[i] = true
		}
		if step%200 == 0 {
			report, err := tr.Validate()
			if err != nil {
				t.Fatalf("Validate at step %d: %v", step, err)
			}
			if report.KeyCount != len(present) {
				t.Fatalf("step %d: KeyCount = %d, want %d", step, report.KeyCount, len(present))
			}
		}
	}

	for i := 0; i < universe; i++ {
		v, found, err := tr.Search(key(i))
		if err != nil {
			t.Fatalf("Search %d: %v", i, err)
		}
		if found != present[i] {
			t.Fatalf("Search(%d) found=%v, want %v", i, found, present[i])
		}
		if found && !bytes.Equal(v, val(i)) {
			t.Fatalf("Search(%d) = %q, want %q", i, v, val(i))
		}
	}
}

func TestReopenPersistsTree(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.kvdb")
	pg, err := pager.Open(path, 64)
	if err != nil {
		t.Fatalf("pager.Open: %v", err)
	}
	tr, err := Open(pg)
	if err != nil {
		t.Fatalf("btree.Open: %v", err)
	}
	const n = 200
	for i := 0; i < n; i++ {
		if err := tr.Insert(key(i), val(i)); err != nil {
			t.Fatalf("Insert %d: %v", i, err)
		}
	}
	if err := pg.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	pg2, err := pager.Open(path, 64)
	if err != nil {
		t.Fatalf("reopen pager: %v", err)
	}
	defer pg2.Close()
	tr2, err := Open(pg2)
	if err != nil {
		t.Fatalf("reopen btree: %v", err)
	}
	for i := 0; i < n; i++ {
		v, found, err := tr2.Search(key(i))
		if err != nil || !found || !bytes.Equal(v, val(i)) {
			t.Fatalf("Search(%d) after reopen: v=%q found=%v err=%v", i, v, found, err)
		}
	}
}
