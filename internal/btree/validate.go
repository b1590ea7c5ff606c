package btree

import (
	"bytes"
	"fmt"
)

// ValidationReport summarizes the whole-tree checks: key ordering,
// fan-out bounds, and uniform leaf depth.
type ValidationReport struct {
	KeyCount int
	Height   int
}

// Validate walks the entire tree from the root and checks every
// structural invariant: strictly ascending keys within a node, key
// counts within [T-1, 2T-1] for non-root nodes, child counts of
// keyCount+1 for internal nodes, and uniform leaf depth. It is meant for
// tests and the cmd/kvdb "inspect" diagnostic, not the hot path.
func (t *Tree) Validate() (*ValidationReport, error) {
	if t.root == 0 {
		return &ValidationReport{}, nil
	}
	keyCount, leafDepth, err := t.validateNode(t.root, true, nil, nil, 0)
	if err != nil {
		return nil, err
	}
	return &ValidationReport{KeyCount: keyCount, Height: leafDepth + 1}, nil
}

// validateNode returns the number of keys found in this subtree and the
// depth of its leaves counted from the root (depth is this node's own
// depth), checking bounds passed down
// from ancestors (lo/hi are exclusive, nil meaning unbounded).
func (t *Tree) validateNode(offset int64, isRoot bool, lo, hi []byte, depth int) (int, int, error) {
	n, err := t.loadNode(offset)
	if err != nil {
		return 0, 0, err
	}

	k := len(n.Keys)
	if !isRoot && (k < MinKeys || k > MaxKeys) {
		return 0, 0, fmt.Errorf("%w: node at %d has %d keys, want [%d,%d]", ErrInvariant, offset, k, MinKeys, MaxKeys)
	}
	if isRoot && k > MaxKeys {
		return 0, 0, fmt.Errorf("%w: root at %d has %d keys, want <=%d", ErrInvariant, offset, k, MaxKeys)
	}
	if !n.Leaf && len(n.Children) != k+1 {
		return 0, 0, fmt.Errorf("%w: internal node at %d has %d keys but %d children", ErrInvariant, offset, k, len(n.Children))
	}

	for i := 0; i < k; i++ {
		if lo != nil && bytes.Compare(n.Keys[i], lo) <= 0 {
			return 0, 0, fmt.Errorf("%w: key %d at %d violates lower bound", ErrInvariant, i, offset)
		}
		if hi != nil && bytes.Compare(n.Keys[i], hi) >= 0 {
			return 0, 0, fmt.Errorf("%w: key %d at %d violates upper bound", ErrInvariant, i, offset)
		}
		if i > 0 && bytes.Compare(n.Keys[i-1], n.Keys[i]) >= 0 {
			return 0, 0, fmt.Errorf("%w: keys out of order at %d", ErrInvariant, offset)
		}
	}

	if n.Leaf {
		return k, depth, nil
	}

	total := k
	childDepth := -1
	for i, childOff := range n.Children {
		var childLo, childHi []byte
		if i > 0 {
			childLo = n.Keys[i-1]
		} else {
			childLo = lo
		}
		if i < k {
			childHi = n.Keys[i]
		} else {
			childHi = hi
		}
		cnt, d, err := t.validateNode(childOff, false, childLo, childHi, depth+1)
		if err != nil {
			return 0, 0, err
		}
		if childDepth == -1 {
			childDepth = d
		} else if d != childDepth {
			return 0, 0, fmt.Errorf("%w: uneven leaf depth under %d", ErrInvariant, offset)
		}
		total += cnt
	}
	return total, childDepth, nil
}
