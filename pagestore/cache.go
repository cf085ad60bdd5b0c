package pagestore

import "github.com/a4vg/disk-based-bptree/internal/clockx"

// cache is a small write-through read cache in front of the backing file.
// Tree descent re-reads the same upper-level pages on almost every insert
// and find, so caching a handful of recently touched pages turns most of
// that traffic into memory copies. It never hides a write: Save always
// goes to disk, and only then updates the cache entry.
type cache struct {
	clock    *clockx.Clock
	pageSize int
	ids      []uint64
	bufs     [][]byte
	index    map[uint64]int
}

func newCache(capacity, pageSize int) *cache {
	if capacity <= 0 {
		capacity = 1
	}
	return &cache{
		clock:    clockx.New(capacity),
		pageSize: pageSize,
		ids:      make([]uint64, capacity),
		bufs:     make([][]byte, capacity),
		index:    make(map[uint64]int, capacity),
	}
}

// get copies the cached page into dst and returns true on a hit.
func (c *cache) get(pageID uint64, dst []byte) bool {
	slot, ok := c.index[pageID]
	if !ok {
		return false
	}
	c.clock.Touch(slot)
	copy(dst, c.bufs[slot])
	return true
}

// put stores (or refreshes) the page, evicting an older entry if the cache
// is full.
func (c *cache) put(pageID uint64, value []byte) {
	if slot, ok := c.index[pageID]; ok {
		copy(c.bufs[slot], value)
		c.clock.Touch(slot)
		return
	}

	slot := c.firstFreeSlot()
	if slot < 0 {
		var evictOK bool
		slot, evictOK = c.clock.Evict()
		if !evictOK {
			// The clock had no occupied slot to evict; skip caching
			// this page.
			return
		}
		delete(c.index, c.ids[slot])
	}

	if c.bufs[slot] == nil {
		c.bufs[slot] = make([]byte, c.pageSize)
	}
	copy(c.bufs[slot], value)
	c.ids[slot] = pageID
	c.index[pageID] = slot
	c.clock.Touch(slot)
}

func (c *cache) firstFreeSlot() int {
	if len(c.index) >= len(c.bufs) {
		return -1
	}
	for i, b := range c.bufs {
		if b == nil {
			return i
		}
	}
	return -1
}
