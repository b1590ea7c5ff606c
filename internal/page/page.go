// Package page implements the on-disk node codec: encoding and decoding a
// B-tree node to and from one fixed-size pager.Page, using a slotted-page
// layout so keys and values of arbitrary length fit the same cell format.
//
// Page layout:
//
//	[0]       1 byte   node type: TypeInternal or TypeLeaf
//	[1:3]     uint16   key count k
//	[3:5]     uint16   cell content start — top of the free area, shrinks
//	                    as cells are appended from the bottom up
//	[5:9]     uint32   CRC32 checksum over everything from offset 9 to the
//	                    end of the page (first child, cell pointers, cells)
//	[9:17]    int64    first-child offset (internal nodes only; 0 for leaf)
//	[17:...]  k cell pointers, uint16 each, one per key in key order
//	...free space...
//	cell content area, growing upward from the bottom of the page
//
// A leaf cell is: keyLen uint16, key bytes, valLen uint16, value bytes.
// An internal cell is: keyLen uint16, key bytes, valLen uint16, value
// bytes, rightChild int64 — the offset of the child holding keys greater
// than this cell's key.
package page

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"

	"kvdb/internal/pager"
)

const (
	TypeInternal = byte(0)
	TypeLeaf     = byte(1)

	offType         = 0
	offNumKeys      = 1
	offCellContent  = 3
	offChecksum     = 5
	offFirstChild   = 9
	offCellPtrs     = 17
	cellPtrSize     = 2
	leafCellFixed   = 2 + 2     // keyLen + valLen
	internalCellFix = 2 + 2 + 8 // keyLen + valLen + child offset
)

// ErrCorrupt is returned when a page's bytes fail to parse or its checksum
// does not match its content.
var ErrCorrupt = errors.New("page: corrupt node")

// ErrTooLarge is returned by Encode when a node's cells would not fit in a
// single page.
var ErrTooLarge = errors.New("page: node too large for one page")

// Node is the decoded, in-memory form of one B-tree node.
type Node struct {
	Leaf     bool
	Keys     [][]byte
	Values   [][]byte // len(Values) == len(Keys), leaf and internal
	Children []int64  // len(Children) == len(Keys)+1, internal only
}

// KeyCount returns the node's key count k.
func (n *Node) KeyCount() int { return len(n.Keys) }

// Encode serializes n into a fresh pager.Page, zero-padded to PageSize.
func Encode(n *Node) (*pager.Page, error) {
	if len(n.Values) != len(n.Keys) {
		return nil, fmt.Errorf("page: node has %d keys but %d values", len(n.Keys), len(n.Values))
	}
	if !n.Leaf && len(n.Children) != len(n.Keys)+1 {
		return nil, fmt.Errorf("page: internal node has %d keys but %d children", len(n.Keys), len(n.Children))
	}

	pg := new(pager.Page)
	k := len(n.Keys)

	nodeType := TypeLeaf
	if !n.Leaf {
		nodeType = TypeInternal
	}
	pg[offType] = nodeType
	binary.BigEndian.PutUint16(pg[offNumKeys:], uint16(k))

	if !n.Leaf {
		binary.BigEndian.PutUint64(pg[offFirstChild:], uint64(n.Children[0]))
	}

	cellContent := pager.PageSize
	for i := 0; i < k; i++ {
		key := n.Keys[i]
		var size int
		if n.Leaf {
			size = leafCellFixed + len(key) + len(n.Values[i])
		} else {
			size = internalCellFix + len(key) + len(n.Values[i])
		}
		cellContent -= size
		ptrOff := offCellPtrs + i*cellPtrSize
		if cellContent < ptrOff+cellPtrSize {
			return nil, fmt.Errorf("%w: key %d of %d", ErrTooLarge, i, k)
		}
		binary.BigEndian.PutUint16(pg[ptrOff:], uint16(cellContent))

		off := cellContent
		binary.BigEndian.PutUint16(pg[off:], uint16(len(key)))
		off += 2
		copy(pg[off:], key)
		off += len(key)
		val := n.Values[i]
		binary.BigEndian.PutUint16(pg[off:], uint16(len(val)))
		off += 2
		copy(pg[off:], val)
		if !n.Leaf {
			off += len(val)
			binary.BigEndian.PutUint64(pg[off:], uint64(n.Children[i+1]))
		}
	}
	binary.BigEndian.PutUint16(pg[offCellContent:], uint16(cellContent))

	sum := crc32.ChecksumIEEE(pg[offFirstChild:])
	binary.BigEndian.PutUint32(pg[offChecksum:], sum)

	return pg, nil
}

// Decode deserializes a Node from pg, rejecting truncated or inconsistent
// payloads (including a checksum mismatch) with ErrCorrupt.
func Decode(pg *pager.Page) (*Node, error) {
	nodeType := pg[offType]
	if nodeType != TypeInternal && nodeType != TypeLeaf {
		return nil, fmt.Errorf("%w: bad node type %d", ErrCorrupt, nodeType)
	}
	leaf := nodeType == TypeLeaf
	k := int(binary.BigEndian.Uint16(pg[offNumKeys:]))
	cellContent := int(binary.BigEndian.Uint16(pg[offCellContent:]))
	wantChecksum := binary.BigEndian.Uint32(pg[offChecksum:])

	if cellContent < offCellPtrs+k*cellPtrSize || cellContent > pager.PageSize {
		return nil, fmt.Errorf("%w: cell content start %d inconsistent with %d keys", ErrCorrupt, cellContent, k)
	}
	if gotChecksum := crc32.ChecksumIEEE(pg[offFirstChild:]); gotChecksum != wantChecksum {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCorrupt)
	}

	n := &Node{Leaf: leaf, Keys: make([][]byte, k), Values: make([][]byte, k)}
	if !leaf {
		n.Children = make([]int64, k+1)
		n.Children[0] = int64(binary.BigEndian.Uint64(pg[offFirstChild:]))
	}

	for i := 0; i < k; i++ {
		ptrOff := offCellPtrs + i*cellPtrSize
		off := int(binary.BigEndian.Uint16(pg[ptrOff:]))
		if off < cellContent || off >= pager.PageSize {
			return nil, fmt.Errorf("%w: cell pointer %d out of range", ErrCorrupt, i)
		}
		keyLen := int(binary.BigEndian.Uint16(pg[off:]))
		off += 2
		if off+keyLen > pager.PageSize {
			return nil, fmt.Errorf("%w: key %d overruns page", ErrCorrupt, i)
		}
		key := make([]byte, keyLen)
		copy(key, pg[off:off+keyLen])
		n.Keys[i] = key
		off += keyLen

		valLen := int(binary.BigEndian.Uint16(pg[off:]))
		off += 2
		if off+valLen > pager.PageSize {
			return nil, fmt.Errorf("%w: value %d overruns page", ErrCorrupt, i)
		}
		val := make([]byte, valLen)
		copy(val, pg[off:off+valLen])
		n.Values[i] = val
		if !leaf {
			off += valLen
			if off+8 > pager.PageSize {
				return nil, fmt.Errorf("%w: child pointer %d overruns page", ErrCorrupt, i)
			}
			n.Children[i+1] = int64(binary.BigEndian.Uint64(pg[off:]))
		}
	}

	if i := 1; k > 1 {
		for ; i < k; i++ {
			if compareBytes(n.Keys[i-1], n.Keys[i]) >= 0 {
				return nil, fmt.Errorf("%w: keys out of order at %d", ErrCorrupt, i)
			}
		}
	}

	return n, nil
}

func compareBytes(a, b []byte) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return int(a[i]) - int(b[i])
		}
	}
	return len(a) - len(b)
}

// MaxCellSize returns the largest a single cell of this shape may be before
// a lone-key node could fail to fit a page — used by callers that want to
// reject oversized entries early with a clearer error than ErrTooLarge.
func MaxCellSize() int {
	return pager.PageSize - offCellPtrs - cellPtrSize
}
