// Package btree implements a disk-resident B-tree: recursive search,
// pre-emptive-split insert, and pre-emptive-fill delete over nodes
// identified by file offsets, materialized through a pager.Pager and the
// page codec.
//
// Every mutator in this file follows the same rewriting discipline: it
// writes the node it mutated at a fresh offset (the pager is append-only)
// and returns that offset so its caller can patch its own Children slice
// and rewrite itself in turn. The top-level Insert/Delete finish by
// committing the new root offset to the pager's header.
package btree

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	"kvdb/internal/page"
	"kvdb/internal/pager"
)

const (
	// T is the B-tree's minimum degree.
	T = 3

	// MinKeys is the minimum key count for any non-root node.
	MinKeys = T - 1

	// MaxKeys is the maximum key count for any node, including the root.
	MaxKeys = 2*T - 1
)

// ErrInvariant reports an impossible internal state — a bug in the tree
// logic itself — rather than an I/O or corruption failure.
var ErrInvariant = errors.New("btree: invariant violation")

// Tree is a disk-resident B-tree. It is not safe for concurrent use.
type Tree struct {
	pg   *pager.Pager
	root int64 // 0 means empty tree
}

// Open constructs a Tree over an already-open pager, reading the current
// root offset from its header.
func Open(pg *pager.Pager) (*Tree, error) {
	root, err := pg.ReadRoot()
	if err != nil {
		return nil, err
	}
	return &Tree{pg: pg, root: root}, nil
}

// Root returns the current root offset, or 0 for an empty tree.
func (t *Tree) Root() int64 { return t.root }

// ─── node I/O ───────────────────────────────────────────────────────────────

func (t *Tree) loadNode(offset int64) (*page.Node, error) {
	pg, err := t.pg.Read(offset)
	if err != nil {
		return nil, err
	}
	n, err := page.Decode(pg)
	if err != nil {
		return nil, fmt.Errorf("btree: decode node at %d: %w", offset, err)
	}
	return n, nil
}

func (t *Tree) writeNode(n *page.Node) (int64, error) {
	pg, err := page.Encode(n)
	if err != nil {
		return 0, fmt.Errorf("btree: encode node: %w", err)
	}
	return t.pg.Append(pg)
}

// rank returns the number of keys in keys strictly less than key — the
// index at which key belongs if absent, or where it sits if present.
func rank(keys [][]byte, key []byte) int {
	return sort.Search(len(keys), func(i int) bool {
		return bytes.Compare(keys[i], key) >= 0
	})
}

// ─── Search ─────────────────────────────────────────────────────────────────

// Search returns the value associated with key, and whether it was found.
func (t *Tree) Search(key []byte) ([]byte, bool, error) {
	if t.root == 0 {
		return nil, false, nil
	}
	offset := t.root
	for {
		n, err := t.loadNode(offset)
		if err != nil {
			return nil, false, err
		}
		idx := rank(n.Keys, key)
		if idx < len(n.Keys) && bytes.Equal(n.Keys[idx], key) {
			return n.Values[idx], true, nil
		}
		if n.Leaf {
			return nil, false, nil
		}
		offset = n.Children[idx]
	}
}

// ─── Insert (pre-emptive splitting) ────────────────────────────────────────

// Insert adds key/value, overwriting the existing value if key is already
// present anywhere in the tree (I7).
func (t *Tree) Insert(key, value []byte) error {
	key = append([]byte(nil), key...)
	value = append([]byte(nil), value...)

	if t.root == 0 {
		leaf := &page.Node{Leaf: true, Keys: [][]byte{key}, Values: [][]byte{value}}
		off, err := t.writeNode(leaf)
		if err != nil {
			return err
		}
		t.root = off
		return t.pg.WriteRoot(t.root)
	}

	root, err := t.loadNode(t.root)
	if err != nil {
		return err
	}

	var newRootOff int64
	if len(root.Keys) == MaxKeys {
		newRootOff, err = t.splitRootAndInsert(root, key, value)
	} else {
		newRootOff, err = t.insertNonFull(root, key, value)
	}
	if err != nil {
		return err
	}
	t.root = newRootOff
	return t.pg.WriteRoot(t.root)
}

// splitRootAndInsert builds a fresh root over the two halves of the
// (full) current root, then inserts key/value into whichever half it
// belongs.
func (t *Tree) splitRootAndInsert(oldRoot *page.Node, key, value []byte) (int64, error) {
	leftOff, rightOff, medKey, medVal, err := t.splitFullNode(oldRoot)
	if err != nil {
		return 0, err
	}
	newRoot := &page.Node{
		Leaf:     false,
		Keys:     [][]byte{medKey},
		Values:   [][]byte{medVal},
		Children: []int64{leftOff, rightOff},
	}
	return t.insertNonFull(newRoot, key, value)
}

// splitFullNode splits a full node (exactly MaxKeys keys) into a left and
// right half, writing both at fresh offsets, and returns the promoted
// median key/value alongside the two new offsets.
func (t *Tree) splitFullNode(full *page.Node) (leftOff, rightOff int64, medKey, medVal []byte, err error) {
	if len(full.Keys) != MaxKeys {
		return 0, 0, nil, nil, fmt.Errorf("%w: splitFullNode called on node with %d keys", ErrInvariant, len(full.Keys))
	}
	mid := T - 1
	medKey, medVal = full.Keys[mid], full.Values[mid]

	left := &page.Node{
		Leaf:   full.Leaf,
		Keys:   append([][]byte(nil), full.Keys[:mid]...),
		Values: append([][]byte(nil), full.Values[:mid]...),
	}
	right := &page.Node{
		Leaf:   full.Leaf,
		Keys:   append([][]byte(nil), full.Keys[mid+1:]...),
		Values: append([][]byte(nil), full.Values[mid+1:]...),
	}
	if !full.Leaf {
		left.Children = append([]int64(nil), full.Children[:mid+1]...)
		right.Children = append([]int64(nil), full.Children[mid+1:]...)
	}

	leftOff, err = t.writeNode(left)
	if err != nil {
		return 0, 0, nil, nil, err
	}
	rightOff, err = t.writeNode(right)
	if err != nil {
		return 0, 0, nil, nil, err
	}
	return leftOff, rightOff, medKey, medVal, nil
}

// insertNonFull inserts key/value into the subtree rooted at node, which
// must not itself be full, and returns the offset of the rewritten node.
// Any full child encountered on the way down is split first so the split
// never has to propagate back up past this call.
func (t *Tree) insertNonFull(node *page.Node, key, value []byte) (int64, error) {
	idx := rank(node.Keys, key)

	if idx < len(node.Keys) && bytes.Equal(node.Keys[idx], key) {
		node.Values[idx] = value
		return t.writeNode(node)
	}

	if node.Leaf {
		node.Keys = insertBytesAt(node.Keys, idx, key)
		node.Values = insertBytesAt(node.Values, idx, value)
		return t.writeNode(node)
	}

	childOff := node.Children[idx]
	child, err := t.loadNode(childOff)
	if err != nil {
		return 0, err
	}

	if len(child.Keys) != MaxKeys {
		newChildOff, err := t.insertNonFull(child, key, value)
		if err != nil {
			return 0, err
		}
		node.Children[idx] = newChildOff
		return t.writeNode(node)
	}

	// Pre-emptive split: child is full, split it before descending.
	leftOff, rightOff, medKey, medVal, err := t.splitFullNode(child)
	if err != nil {
		return 0, err
	}
	node.Keys = insertBytesAt(node.Keys, idx, medKey)
	node.Values = insertBytesAt(node.Values, idx, medVal)
	node.Children[idx] = leftOff
	node.Children = insertInt64At(node.Children, idx+1, rightOff)

	switch {
	case bytes.Equal(key, medKey):
		node.Values[idx] = value
	case bytes.Compare(key, medKey) < 0:
		left, err := t.loadNode(leftOff)
		if err != nil {
			return 0, err
		}
		newLeftOff, err := t.insertNonFull(left, key, value)
		if err != nil {
			return 0, err
		}
		node.Children[idx] = newLeftOff
	default:
		right, err := t.loadNode(rightOff)
		if err != nil {
			return 0, err
		}
		newRightOff, err := t.insertNonFull(right, key, value)
		if err != nil {
			return 0, err
		}
		node.Children[idx+1] = newRightOff
	}
	return t.writeNode(node)
}

// ─── Delete (pre-emptive filling) ──────────────────────────────────────────

// Delete removes key. Absent keys are a no-op, never an error.
func (t *Tree) Delete(key []byte) error {
	if t.root == 0 {
		return nil
	}
	newRootOff, found, err := t.deleteNode(t.root, key)
	if err != nil || !found {
		return err
	}

	root, err := t.loadNode(newRootOff)
	if err != nil {
		return err
	}
	switch {
	case len(root.Keys) > 0:
		t.root = newRootOff
	case root.Leaf:
		t.root = 0
	default:
		t.root = root.Children[0]
	}
	return t.pg.WriteRoot(t.root)
}

// deleteNode removes key from the subtree at offset, returning the new
// offset of what it rewrote (or the unchanged offset if nothing changed),
// and whether key was actually present and removed.
func (t *Tree) deleteNode(offset int64, key []byte) (int64, bool, error) {
	node, err := t.loadNode(offset)
	if err != nil {
		return 0, false, err
	}
	idx := rank(node.Keys, key)
	exact := idx < len(node.Keys) && bytes.Equal(node.Keys[idx], key)

	if node.Leaf {
		if !exact {
			return offset, false, nil
		}
		node.Keys = removeBytesAt(node.Keys, idx)
		node.Values = removeBytesAt(node.Values, idx)
		newOff, err := t.writeNode(node)
		return newOff, true, err
	}

	if exact {
		newOff, err := t.deleteFromInternal(node, idx, key)
		return newOff, true, err
	}

	// Key not in this node: descend into Children[idx], filling first if
	// that child is at minimum occupancy so the recursive delete below
	// cannot underflow it past the rebalancing threshold.
	childOff := node.Children[idx]
	child, err := t.loadNode(childOff)
	if err != nil {
		return 0, false, err
	}

	filled := false
	if len(child.Keys) == MinKeys {
		newIdx, err := t.fillAt(node, idx)
		if err != nil {
			return 0, false, err
		}
		idx = newIdx
		filled = true
	}
	childOff = node.Children[idx]

	newChildOff, found, err := t.deleteNode(childOff, key)
	if err != nil {
		return 0, false, err
	}
	if !found && !filled {
		return offset, false, nil
	}
	node.Children[idx] = newChildOff
	newOff, err := t.writeNode(node)
	return newOff, found, err
}

// deleteFromInternal handles the case where key is node.Keys[idx] of an
// internal node: it must be replaced by its predecessor or successor (or,
// if neither child can spare a key, the two children are merged around it
// and the delete continues into the merged node).
func (t *Tree) deleteFromInternal(node *page.Node, idx int, key []byte) (int64, error) {
	leftOff := node.Children[idx]
	left, err := t.loadNode(leftOff)
	if err != nil {
		return 0, err
	}
	if len(left.Keys) >= T {
		// B1: predecessor from the left subtree.
		predKey, predVal, err := t.maxEntry(leftOff)
		if err != nil {
			return 0, err
		}
		newLeftOff, _, err := t.deleteNode(leftOff, predKey)
		if err != nil {
			return 0, err
		}
		node.Keys[idx], node.Values[idx] = predKey, predVal
		node.Children[idx] = newLeftOff
		return t.writeNode(node)
	}

	rightOff := node.Children[idx+1]
	right, err := t.loadNode(rightOff)
	if err != nil {
		return 0, err
	}
	if len(right.Keys) >= T {
		// B2: successor from the right subtree.
		succKey, succVal, err := t.minEntry(rightOff)
		if err != nil {
			return 0, err
		}
		newRightOff, _, err := t.deleteNode(rightOff, succKey)
		if err != nil {
			return 0, err
		}
		node.Keys[idx], node.Values[idx] = succKey, succVal
		node.Children[idx+1] = newRightOff
		return t.writeNode(node)
	}

	// B3: both children are at minimum occupancy — merge them around the
	// median and delete key from the merged child.
	mergedOff, err := t.mergeAt(node, idx)
	if err != nil {
		return 0, err
	}
	newMergedOff, _, err := t.deleteNode(mergedOff, key)
	if err != nil {
		return 0, err
	}
	node.Children[idx] = newMergedOff
	return t.writeNode(node)
}

// maxEntry returns the in-order last key/value of the subtree at offset,
// without mutating anything (used to find a B1 predecessor).
func (t *Tree) maxEntry(offset int64) ([]byte, []byte, error) {
	n, err := t.loadNode(offset)
	if err != nil {
		return nil, nil, err
	}
	last := len(n.Keys) - 1
	if n.Leaf {
		return n.Keys[last], n.Values[last], nil
	}
	return t.maxEntry(n.Children[len(n.Children)-1])
}

// minEntry returns the in-order first key/value of the subtree at offset
// (used to find a B2 successor).
func (t *Tree) minEntry(offset int64) ([]byte, []byte, error) {
	n, err := t.loadNode(offset)
	if err != nil {
		return nil, nil, err
	}
	if n.Leaf {
		return n.Keys[0], n.Values[0], nil
	}
	return t.minEntry(n.Children[0])
}

// fillAt ensures node.Children[idx] has at least T keys, by borrowing from
// a sibling with surplus keys or merging with one. It mutates node in
// place and returns the index to continue descending
// into — unchanged for a borrow, but shifted left by one when a merge
// consumed the left sibling instead of the right.
func (t *Tree) fillAt(node *page.Node, idx int) (int, error) {
	n := len(node.Keys)

	if idx > 0 {
		leftSib, err := t.loadNode(node.Children[idx-1])
		if err != nil {
			return 0, err
		}
		if len(leftSib.Keys) >= T {
			return idx, t.borrowFromPrev(node, idx)
		}
	}
	if idx < n {
		rightSib, err := t.loadNode(node.Children[idx+1])
		if err != nil {
			return 0, err
		}
		if len(rightSib.Keys) >= T {
			return idx, t.borrowFromNext(node, idx)
		}
	}

	if idx < n {
		if _, err := t.mergeAt(node, idx); err != nil {
			return 0, err
		}
		return idx, nil
	}
	if _, err := t.mergeAt(node, idx-1); err != nil {
		return 0, err
	}
	return idx - 1, nil
}

// borrowFromPrev rotates one key/value (and, if internal, one child) from
// the left sibling through the parent into Children[idx].
func (t *Tree) borrowFromPrev(node *page.Node, idx int) error {
	child, err := t.loadNode(node.Children[idx])
	if err != nil {
		return err
	}
	left, err := t.loadNode(node.Children[idx-1])
	if err != nil {
		return err
	}

	lastIdx := len(left.Keys) - 1
	popKey, popVal := left.Keys[lastIdx], left.Values[lastIdx]
	left.Keys = left.Keys[:lastIdx]
	left.Values = left.Values[:lastIdx]

	sepKey, sepVal := node.Keys[idx-1], node.Values[idx-1]
	child.Keys = insertBytesAt(child.Keys, 0, sepKey)
	child.Values = insertBytesAt(child.Values, 0, sepVal)

	if !child.Leaf {
		lastChild := left.Children[len(left.Children)-1]
		left.Children = left.Children[:len(left.Children)-1]
		child.Children = insertInt64At(child.Children, 0, lastChild)
	}

	node.Keys[idx-1], node.Values[idx-1] = popKey, popVal

	newLeftOff, err := t.writeNode(left)
	if err != nil {
		return err
	}
	newChildOff, err := t.writeNode(child)
	if err != nil {
		return err
	}
	node.Children[idx-1] = newLeftOff
	node.Children[idx] = newChildOff
	return nil
}

// borrowFromNext rotates one key/value (and, if internal, one child) from
// the right sibling through the parent into Children[idx].
func (t *Tree) borrowFromNext(node *page.Node, idx int) error {
	child, err := t.loadNode(node.Children[idx])
	if err != nil {
		return err
	}
	right, err := t.loadNode(node.Children[idx+1])
	if err != nil {
		return err
	}

	popKey, popVal := right.Keys[0], right.Values[0]
	right.Keys = removeBytesAt(right.Keys, 0)
	right.Values = removeBytesAt(right.Values, 0)

	sepKey, sepVal := node.Keys[idx], node.Values[idx]
	child.Keys = append(child.Keys, sepKey)
	child.Values = append(child.Values, sepVal)

	if !child.Leaf {
		firstChild := right.Children[0]
		right.Children = removeInt64At(right.Children, 0)
		child.Children = append(child.Children, firstChild)
	}

	node.Keys[idx], node.Values[idx] = popKey, popVal

	newRightOff, err := t.writeNode(right)
	if err != nil {
		return err
	}
	newChildOff, err := t.writeNode(child)
	if err != nil {
		return err
	}
	node.Children[idx+1] = newRightOff
	node.Children[idx] = newChildOff
	return nil
}

// mergeAt merges Children[idx], the separator node.Keys[idx]/Values[idx],
// and Children[idx+1] into a single new node, writes it, and patches node
// (removing the separator and the right child pointer, and repointing
// Children[idx] at the merged node). Returns the merged node's offset.
func (t *Tree) mergeAt(node *page.Node, idx int) (int64, error) {
	left, err := t.loadNode(node.Children[idx])
	if err != nil {
		return 0, err
	}
	right, err := t.loadNode(node.Children[idx+1])
	if err != nil {
		return 0, err
	}

	merged := &page.Node{
		Leaf:   left.Leaf,
		Keys:   append(append(append([][]byte(nil), left.Keys...), node.Keys[idx]), right.Keys...),
		Values: append(append(append([][]byte(nil), left.Values...), node.Values[idx]), right.Values...),
	}
	if !left.Leaf {
		merged.Children = append(append([]int64(nil), left.Children...), right.Children...)
	}

	mergedOff, err := t.writeNode(merged)
	if err != nil {
		return 0, err
	}

	node.Keys = removeBytesAt(node.Keys, idx)
	node.Values = removeBytesAt(node.Values, idx)
	node.Children = removeInt64At(node.Children, idx+1)
	node.Children[idx] = mergedOff
	return mergedOff, nil
}

// ─── slice helpers ──────────────────────────────────────────────────────────

func insertBytesAt(s [][]byte, i int, v []byte) [][]byte {
	s = append(s, nil)
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}

func removeBytesAt(s [][]byte, i int) [][]byte {
	copy(s[i:], s[i+1:])
	return s[:len(s)-1]
}

func insertInt64At(s []int64, i int, v int64) []int64 {
	s = append(s, 0)
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}

func removeInt64At(s []int64, i int) []int64 {
	copy(s[i:], s[i+1:])
	return s[:len(s)-1]
}
