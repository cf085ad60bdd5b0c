// Package pagestore implements fixed-size page I/O over a single backing
// file: the paged storage manager that the tree engine and the record file
// both sit on top of.
package pagestore

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
)

// ErrClosed is returned by any operation on a Manager after Close.
var ErrClosed = errors.New("pagestore: manager is closed")

// ErrWrongSize is returned when a caller hands save/recover a buffer whose
// length does not equal the manager's page size.
var ErrWrongSize = errors.New("pagestore: value is not exactly one page")

const defaultCacheCapacity = 64

// Manager owns one backing file of fixed-size pages, addressed by a 64-bit
// page id (page_id * pageSize == file offset). It is the only component in
// this module that reads or writes index pages.
type Manager struct {
	mu       sync.Mutex
	file     *os.File
	path     string
	pageSize int
	empty    bool
	cache    *cache
	closed   atomic.Bool
}

// Open opens an existing file of pages, or creates a new empty one.
//
// truncate forces the file to be created/cleared unconditionally, matching
// what a fresh index build needs. Without it, an existing file is reopened
// read/write and an absent or zero-length file is treated as freshly
// created; IsEmpty reports which case happened so the tree can choose
// between bootstrap and recovery.
func Open(path string, pageSize int, truncate bool) (*Manager, error) {
	if pageSize <= 0 {
		return nil, fmt.Errorf("pagestore: invalid page size %d", pageSize)
	}

	flags := os.O_RDWR | os.O_CREATE
	if truncate {
		flags |= os.O_TRUNC
	}

	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("pagestore: open %s: %w", path, err)
	}

	empty := truncate
	if !truncate {
		info, statErr := f.Stat()
		if statErr != nil {
			_ = f.Close()
			return nil, fmt.Errorf("pagestore: stat %s: %w", path, statErr)
		}
		empty = info.Size() == 0
	}

	m := &Manager{
		file:     f,
		path:     path,
		pageSize: pageSize,
		empty:    empty,
		cache:    newCache(defaultCacheCapacity, pageSize),
	}

	slog.Debug("pagestore.Open", "path", path, "pageSize", pageSize, "empty", empty, "truncate", truncate)
	return m, nil
}

// PageSize returns the fixed page size this manager was opened with.
func (m *Manager) PageSize() int { return m.pageSize }

// IsEmpty reports whether this Open created a brand-new (or freshly
// truncated) file, as opposed to reopening one with existing content.
func (m *Manager) IsEmpty() bool { return m.empty }

// Save writes exactly PageSize bytes at offset page_id*PageSize. Writing
// past the current end of file extends it.
func (m *Manager) Save(pageID uint64, value []byte) error {
	if len(value) != m.pageSize {
		return fmt.Errorf("%w: got %d want %d", ErrWrongSize, len(value), m.pageSize)
	}
	if m.closed.Load() {
		return ErrClosed
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	off := int64(pageID) * int64(m.pageSize)
	n, err := m.file.WriteAt(value, off)
	if err != nil {
		return fmt.Errorf("pagestore: save page %d: %w", pageID, err)
	}
	if n != m.pageSize {
		return fmt.Errorf("pagestore: save page %d: %w", pageID, io.ErrShortWrite)
	}

	m.cache.put(pageID, value)
	slog.Debug("pagestore.Save", "pageID", pageID)
	return nil
}

// Recover reads exactly PageSize bytes at offset page_id*PageSize into out.
// Reading past end of file is a failure, not a zero-filled page.
func (m *Manager) Recover(pageID uint64, out []byte) error {
	if len(out) != m.pageSize {
		return fmt.Errorf("%w: got %d want %d", ErrWrongSize, len(out), m.pageSize)
	}
	if m.closed.Load() {
		return ErrClosed
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cache.get(pageID, out) {
		slog.Debug("pagestore.Recover.cacheHit", "pageID", pageID)
		return nil
	}

	off := int64(pageID) * int64(m.pageSize)
	if _, err := io.ReadFull(io.NewSectionReader(m.file, off, int64(m.pageSize)), out); err != nil {
		return fmt.Errorf("pagestore: recover page %d: %w", pageID, err)
	}

	m.cache.put(pageID, out)
	slog.Debug("pagestore.Recover.diskRead", "pageID", pageID)
	return nil
}

// Erase overwrites a page with a zeroed image. The tree engine calls this
// on the pre-split page during an interior split; this manager does not
// maintain a free list, and bptree's newNode never reissues the page id.
func (m *Manager) Erase(pageID uint64) error {
	zero := make([]byte, m.pageSize)
	if err := m.Save(pageID, zero); err != nil {
		return err
	}
	slog.Debug("pagestore.Erase", "pageID", pageID)
	return nil
}

// Close releases the backing file. Safe to call more than once.
func (m *Manager) Close() error {
	if m.closed.Swap(true) {
		return nil
	}
	slog.Debug("pagestore.Close", "path", m.path)
	return m.file.Close()
}
