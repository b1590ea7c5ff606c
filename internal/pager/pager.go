// Package pager owns the single open file backing a store and exposes a
// byte-offset-addressed read/write/append abstraction, plus the one header
// slot a B-tree needs to anchor its root across sessions.
//
// File layout:
//
//	[0, PageSize)   header page — byte 0 holds the big-endian root offset,
//	                the rest is reserved and zero.
//	[PageSize, EOF) node pages, each exactly PageSize bytes, appended
//	                one at a time and never reused.
package pager

import (
	"encoding/binary"
	"fmt"
	"os"
)

const (
	// PageSize is the fixed page size in bytes — the engine's I/O quantum.
	PageSize = 4096

	// headerPage is the byte offset of the reserved header page.
	headerPage = 0

	// firstNodeOffset is where the first node is appended. A full page is
	// reserved for the header so every node read/write is page-aligned.
	firstNodeOffset = PageSize
)

// Page is one raw page's worth of bytes.
type Page [PageSize]byte

// Pager manages a file of fixed-size pages, one page-aligned header, and an
// LRU cache of recently touched pages. A Pager assumes a single writer; it
// acquires an advisory exclusive lock on Open to detect misuse.
type Pager struct {
	file   *os.File
	cache  *lruCache
	append int64 // next offset a page will be appended at
	locked bool
}

// Open opens (or creates) a pager backed by path. cachePages bounds the
// number of pages kept in the in-memory LRU cache.
func Open(path string, cachePages int) (*Pager, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("pager: open %s: %w", path, err)
	}

	if err := lockExclusive(f); err != nil {
		f.Close()
		return nil, fmt.Errorf("pager: lock %s: %w", path, err)
	}

	p := &Pager{
		file:   f,
		cache:  newLRUCache(cachePages),
		locked: true,
	}

	info, err := f.Stat()
	if err != nil {
		p.Close()
		return nil, err
	}

	if info.Size() == 0 {
		var hdr Page
		if err := p.writePageToDisk(headerPage, &hdr); err != nil {
			p.Close()
			return nil, err
		}
		p.append = firstNodeOffset
	} else {
		p.append = info.Size()
	}

	return p, nil
}

// Append writes pg (padded with zeros if necessary, though Page is always
// full-sized) at the current end of file and returns its new offset — the
// node's identity for as long as it remains live.
func (p *Pager) Append(pg *Page) (int64, error) {
	off := p.append
	if err := p.writePageToDisk(off, pg); err != nil {
		return 0, err
	}
	p.cache.put(off, pg)
	p.append = off + PageSize
	return off, nil
}

// Read returns the page at offset, from cache or disk.
func (p *Pager) Read(offset int64) (*Page, error) {
	if pg := p.cache.get(offset); pg != nil {
		return pg, nil
	}
	pg, err := p.readPageFromDisk(offset)
	if err != nil {
		return nil, err
	}
	p.cache.put(offset, pg)
	return pg, nil
}

// writeInPlace overwrites an already-appended page in place. Used only for
// the header page; node pages are append-only and must never be rewritten
// at their old offset.
func (p *Pager) writeInPlace(offset int64, pg *Page) error {
	p.cache.put(offset, pg)
	return p.writePageToDisk(offset, pg)
}

// WriteRoot durably records offset as the tree's root. A zero offset means
// an empty tree.
func (p *Pager) WriteRoot(offset int64) error {
	hdr, err := p.Read(headerPage)
	if err != nil {
		return err
	}
	var cp Page = *hdr
	binary.BigEndian.PutUint64(cp[0:8], uint64(offset))
	return p.writeInPlace(headerPage, &cp)
}

// ReadRoot returns the currently committed root offset, or 0 for an empty
// tree.
func (p *Pager) ReadRoot() (int64, error) {
	hdr, err := p.Read(headerPage)
	if err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(hdr[0:8])), nil
}

// AllocatedPages reports how many pages (including the header) the file
// currently holds. Diagnostic only — the engine never reclaims dead pages.
func (p *Pager) AllocatedPages() int64 {
	return p.append / PageSize
}

// Close flushes and closes the underlying file, releasing the advisory
// lock.
func (p *Pager) Close() error {
	if p.locked {
		unlock(p.file)
	}
	return p.file.Close()
}

// --- internal helpers ---

func (p *Pager) readPageFromDisk(offset int64) (*Page, error) {
	pg := new(Page)
	n, err := p.file.ReadAt(pg[:], offset)
	if n == PageSize {
		return pg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("pager: read page at %d: %w", offset, err)
	}
	return nil, fmt.Errorf("pager: short read at %d: got %d bytes", offset, n)
}

func (p *Pager) writePageToDisk(offset int64, pg *Page) error {
	if _, err := p.file.WriteAt(pg[:], offset); err != nil {
		return fmt.Errorf("pager: write page at %d: %w", offset, err)
	}
	return nil
}

// ─── LRU page cache ─────────────────────────────────────────────────────────

type lruEntry struct {
	offset int64
	page   *Page
	prev   *lruEntry
	next   *lruEntry
}

type lruCache struct {
	cap   int
	items map[int64]*lruEntry
	head  *lruEntry // most recently used
	tail  *lruEntry // least recently used
}

func newLRUCache(cap int) *lruCache {
	if cap < 1 {
		cap = 1
	}
	return &lruCache{cap: cap, items: make(map[int64]*lruEntry, cap)}
}

func (c *lruCache) get(offset int64) *Page {
	e, ok := c.items[offset]
	if !ok {
		return nil
	}
	c.moveToFront(e)
	return e.page
}

func (c *lruCache) put(offset int64, pg *Page) {
	if e, ok := c.items[offset]; ok {
		e.page = pg
		c.moveToFront(e)
		return
	}
	e := &lruEntry{offset: offset, page: pg}
	c.items[offset] = e
	c.pushFront(e)
	if len(c.items) > c.cap {
		c.evict()
	}
}

func (c *lruCache) pushFront(e *lruEntry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache) moveToFront(e *lruEntry) {
	if c.head == e {
		return
	}
	if e.prev != nil {
		e.prev.next = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	}
	if c.tail == e {
		c.tail = e.prev
	}
	e.prev = nil
	e.next = c.head
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
}

func (c *lruCache) evict() {
	if c.tail == nil {
		return
	}
	delete(c.items, c.tail.offset)
	if c.tail.prev != nil {
		c.tail.prev.next = nil
	}
	c.tail = c.tail.prev
	if c.tail == nil {
		c.head = nil
	}
}
