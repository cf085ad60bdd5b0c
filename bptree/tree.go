// Package bptree implements the B+-tree index engine on top of pagestore:
// recursive insert with bottom-up split propagation, point/range lookup
// through a leaf-chain iterator, and the page-0 metadata record that lets a
// tree recover its root across a close/reopen.
package bptree

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/a4vg/disk-based-bptree/pagestore"
)

// Tree is a disk-backed B+-tree keyed by signed 64-bit integers with a
// generic, fixed-size payload. It is not safe for concurrent use: the
// contract (matching the single-threaded model this engine was built for)
// is that no Insert runs while any Iterator obtained from this Tree is
// still live.
type Tree[T any] struct {
	pm    *pagestore.Manager
	order int
	codec Codec[T]

	pageSize int
	rootID   uint64
	// nodeCount is the page-allocation counter persisted in the page-0
	// metadata record; it is not the number of keys in the tree.
	nodeCount int64

	closed atomic.Bool
}

// Open constructs a tree over pm. If pm was newly created, it bootstraps a
// metadata page and a blank root leaf at page 1; otherwise it recovers the
// metadata page written by a previous Open.
func Open[T any](pm *pagestore.Manager, order int, codec Codec[T]) (*Tree[T], error) {
	pageSize := pm.PageSize()
	if order < 1 || nodeSizeFor(order, codec) > pageSize {
		return nil, fmt.Errorf("%w: order=%d pageSize=%d nodeSize=%d", ErrInvalidOrder, order, pageSize, nodeSizeFor(order, codec))
	}

	t := &Tree[T]{pm: pm, order: order, codec: codec, pageSize: pageSize}

	if pm.IsEmpty() {
		t.rootID = 1
		t.nodeCount = 1
		if err := t.writeMetadata(); err != nil {
			return nil, err
		}
		root := newNode[T](1, order, codec)
		if err := t.writeNode(root); err != nil {
			return nil, err
		}
		slog.Debug("bptree.Open.bootstrap", "order", order, "pageSize", pageSize)
	} else {
		if err := t.readMetadata(); err != nil {
			return nil, err
		}
		slog.Debug("bptree.Open.recover", "rootID", t.rootID, "nodeCount", t.nodeCount)
	}

	return t, nil
}

// Close marks the tree closed. It does not close the underlying
// pagestore.Manager, which the caller may still need (e.g. to close it
// explicitly, or to share it with another tree).
func (t *Tree[T]) Close() error {
	t.closed.Store(true)
	return nil
}

func (t *Tree[T]) ensureOpen() error {
	if t.closed.Load() {
		return ErrClosed
	}
	return nil
}

func (t *Tree[T]) readMetadata() error {
	buf := make([]byte, t.pageSize)
	if err := t.pm.Recover(0, buf); err != nil {
		return fmt.Errorf("bptree: read metadata: %w", err)
	}
	t.rootID = binary.LittleEndian.Uint64(buf[0:8])
	t.nodeCount = int64(binary.LittleEndian.Uint64(buf[8:16]))
	return nil
}

func (t *Tree[T]) writeMetadata() error {
	buf := make([]byte, t.pageSize)
	binary.LittleEndian.PutUint64(buf[0:8], t.rootID)
	binary.LittleEndian.PutUint64(buf[8:16], uint64(t.nodeCount))
	if err := t.pm.Save(0, buf); err != nil {
		return fmt.Errorf("bptree: write metadata: %w", err)
	}
	return nil
}

// newNode allocates a fresh page id and persists the metadata counter
// immediately, matching the source's always-write-on-allocate behavior so a
// crash right after allocation never reuses a page id on reopen.
func (t *Tree[T]) newNode() (*node[T], error) {
	t.nodeCount++
	n := newNode[T](uint64(t.nodeCount), t.order, t.codec)
	if err := t.writeMetadata(); err != nil {
		return nil, err
	}
	return n, nil
}

func (t *Tree[T]) readNode(pageID uint64) (*node[T], error) {
	buf := make([]byte, t.pageSize)
	if err := t.pm.Recover(pageID, buf); err != nil {
		return nil, fmt.Errorf("bptree: read node %d: %w", pageID, err)
	}
	n := newNode[T](pageID, t.order, t.codec)
	n.decode(buf)
	return n, nil
}

func (t *Tree[T]) writeNode(n *node[T]) error {
	buf := make([]byte, t.pageSize)
	n.encode(buf)
	if err := t.pm.Save(n.pageID, buf); err != nil {
		return fmt.Errorf("bptree: write node %d: %w", n.pageID, err)
	}
	return nil
}

func (t *Tree[T]) erase(pageID uint64) error {
	if err := t.pm.Erase(pageID); err != nil {
		return fmt.Errorf("bptree: erase node %d: %w", pageID, err)
	}
	return nil
}

// findPos computes pos = min{ i : i == count || keys[i] >= target }. Used
// by both insert and find: navigation always compares against the key,
// never the payload.
func findPos[T any](n *node[T], target int64) int {
	pos := 0
	for pos < int(n.count) && n.keys[pos] < target {
		pos++
	}
	return pos
}

func indexOfChild[T any](n *node[T], childID uint64) int {
	for i := 0; i <= int(n.count); i++ {
		if n.children[i] == childID {
			return i
		}
	}
	return -1
}

// Insert adds (key, value) to the tree, splitting bottom-up as needed.
func (t *Tree[T]) Insert(key int64, value T) error {
	if err := t.ensureOpen(); err != nil {
		return err
	}
	overflow, err := t.insert(t.rootID, nil, key, value)
	if err != nil {
		return err
	}
	if overflow {
		if err := t.splitRoot(); err != nil {
			return err
		}
	}
	slog.Debug("bptree.Insert", "key", key)
	return nil
}

// insert descends to the target leaf, inserting (key, value) there, and
// propagates split/promote operations back up. ancestors holds the page ids
// from the root down to (but not including) pageID, needed by split to walk
// arbitrarily far up the ancestor chain when relinking leaf siblings.
func (t *Tree[T]) insert(pageID uint64, ancestors []uint64, key int64, value T) (bool, error) {
	n, err := t.readNode(pageID)
	if err != nil {
		return false, err
	}

	pos := findPos(n, key)
	if n.children[pos] != 0 {
		childAncestors := append(append([]uint64{}, ancestors...), pageID)
		childOverflow, err := t.insert(n.children[pos], childAncestors, key, value)
		if err != nil {
			return false, err
		}
		if childOverflow {
			if err := t.split(n, pos, ancestors); err != nil {
				return false, err
			}
		}
	} else {
		n.insertInNode(pos, key, value, true)
		if err := t.writeNode(n); err != nil {
			return false, err
		}
	}

	return n.isOverflow(), nil
}

// split splits parent.children[pos] into two new sibling pages and promotes
// a separator key into parent. parentAncestors holds the page ids from the
// root down to (but not including) parent.
func (t *Tree[T]) split(parent *node[T], pos int, parentAncestors []uint64) error {
	c, err := t.readNode(parent.children[pos])
	if err != nil {
		return err
	}
	left, err := t.newNode()
	if err != nil {
		return err
	}
	right, err := t.newNode()
	if err != nil {
		return err
	}

	leaf := c.isLeaf()
	half := t.order / 2

	iter, i := 0, 0
	for ; iter < half; i++ {
		left.children[i] = c.children[iter]
		left.keys[i] = c.keys[iter]
		if leaf {
			left.data[i] = c.data[iter]
		}
		left.count++
		iter++
	}
	left.children[i] = c.children[iter]

	promotedKey := c.keys[iter]
	var promotedValue T
	if leaf {
		promotedValue = c.data[iter]
	}
	// Internal parents store only the key: is_leaf=false below.
	parent.insertInNode(pos, promotedKey, promotedValue, false)

	if !leaf {
		iter++ // the middle element moves up and out of both halves
	}

	i = 0
	for ; iter < t.order+1; i++ {
		right.children[i] = c.children[iter]
		right.keys[i] = c.keys[iter]
		if leaf {
			right.data[i] = c.data[iter]
		}
		right.count++
		iter++
	}
	right.children[i] = c.children[iter]

	parent.children[pos] = left.pageID
	parent.children[pos+1] = right.pageID

	if leaf {
		left.next = right.pageID
		right.next = c.next

		if pos > 0 {
			if err := t.relinkPredecessor(parent.children[pos-1], left.pageID); err != nil {
				return err
			}
		} else if err := t.relinkAcrossAncestors(parentAncestors, parent.pageID, left.pageID); err != nil {
			return err
		}
	}

	if err := t.erase(c.pageID); err != nil {
		return err
	}
	if err := t.writeNode(parent); err != nil {
		return err
	}
	if err := t.writeNode(left); err != nil {
		return err
	}
	return t.writeNode(right)
}

// relinkAcrossAncestors handles the case where the split happened at
// position 0 of parent, so no left sibling lives under parent itself. It
// walks the full ancestor stack (not just one grandparent level) until it
// finds an ancestor that is not itself the first child of its own parent,
// then relinks that ancestor's left sibling's rightmost leaf.
func (t *Tree[T]) relinkAcrossAncestors(parentAncestors []uint64, parentID, newNext uint64) error {
	stack := append(append([]uint64{}, parentAncestors...), parentID)
	for idx := len(stack) - 1; idx > 0; idx-- {
		anc, err := t.readNode(stack[idx-1])
		if err != nil {
			return err
		}
		childPos := indexOfChild(anc, stack[idx])
		if childPos > 0 {
			return t.relinkPredecessor(anc.children[childPos-1], newNext)
		}
	}
	// Every ancestor up to the root sits at position 0: this is the
	// leftmost leaf in the whole tree, nothing precedes it.
	return nil
}

func (t *Tree[T]) relinkPredecessor(subtreeRoot, newNext uint64) error {
	leaf, err := t.rightmostLeaf(subtreeRoot)
	if err != nil {
		return err
	}
	leaf.next = newNext
	return t.writeNode(leaf)
}

func (t *Tree[T]) rightmostLeaf(pageID uint64) (*node[T], error) {
	n, err := t.readNode(pageID)
	if err != nil {
		return nil, err
	}
	for !n.isLeaf() {
		n, err = t.readNode(n.children[n.count])
		if err != nil {
			return nil, err
		}
	}
	return n, nil
}

// splitRoot handles an overflowing root. The root page id never changes:
// its content is rewritten in place as a fresh internal node over two new
// leaf/internal pages holding its old content.
func (t *Tree[T]) splitRoot() error {
	root, err := t.readNode(t.rootID)
	if err != nil {
		return err
	}
	left, err := t.newNode()
	if err != nil {
		return err
	}
	right, err := t.newNode()
	if err != nil {
		return err
	}

	leaf := root.isLeaf()
	half := t.order / 2

	iter, i := 0, 0
	for ; iter < half; i++ {
		left.children[i] = root.children[iter]
		left.keys[i] = root.keys[iter]
		if leaf {
			left.data[i] = root.data[iter]
		}
		left.count++
		iter++
	}
	left.children[i] = root.children[iter]

	if !leaf {
		iter++
	}

	i = 0
	for ; iter < t.order+1; i++ {
		right.children[i] = root.children[iter]
		right.keys[i] = root.keys[iter]
		if leaf {
			right.data[i] = root.data[iter]
		}
		right.count++
		iter++
	}
	right.children[i] = root.children[iter]

	if leaf {
		left.next = right.pageID
		right.next = 0
	}

	root.children[0] = left.pageID
	root.keys[0] = root.keys[half]
	root.children[1] = right.pageID
	root.count = 1
	root.next = 0

	if err := t.writeNode(root); err != nil {
		return err
	}
	if err := t.writeNode(left); err != nil {
		return err
	}
	return t.writeNode(right)
}

// Find returns whether key exists, plus a cursor positioned at the first
// slot with keys[slot] >= key in the leaf the descent bottoms out at (or
// slot 0 of the next leaf, or end() at the rightmost leaf).
func (t *Tree[T]) Find(key int64) (bool, *Iterator[T], error) {
	if err := t.ensureOpen(); err != nil {
		return false, nil, err
	}
	found, c, err := t.find(t.rootID, key)
	if err != nil {
		return false, nil, err
	}
	return found, &Iterator[T]{tree: t, cur: c}, nil
}

func (t *Tree[T]) find(pageID uint64, key int64) (bool, cursor, error) {
	n, err := t.readNode(pageID)
	if err != nil {
		return false, cursor{}, err
	}

	pos := findPos(n, key)
	if n.children[pos] != 0 {
		return t.find(n.children[pos], key)
	}

	i := 0
	for i < int(n.count) && n.keys[i] < key {
		i++
	}
	if i < int(n.count) {
		return n.keys[i] == key, cursor{page: n.pageID, slot: i}, nil
	}

	// Every key in this leaf is below the target. The next slot in key
	// order is slot 0 of the right sibling, where a key equal to the
	// separator that routed us left would live; at the rightmost leaf the
	// cursor collapses to the end sentinel.
	if n.next == 0 {
		return false, cursor{page: 0, slot: 0}, nil
	}
	sib, err := t.readNode(n.next)
	if err != nil {
		return false, cursor{}, err
	}
	return sib.count > 0 && sib.keys[0] == key, cursor{page: n.next, slot: 0}, nil
}

// RangeSearch returns an iterator over the half-open range [low, high).
func (t *Tree[T]) RangeSearch(low, high int64) (*Iterator[T], error) {
	if err := t.ensureOpen(); err != nil {
		return nil, err
	}
	_, begin, err := t.find(t.rootID, low)
	if err != nil {
		return nil, err
	}
	_, end, err := t.find(t.rootID, high)
	if err != nil {
		return nil, err
	}
	return &Iterator[T]{tree: t, cur: begin, limit: end}, nil
}

// Begin descends leftmost from the root to the first leaf.
func (t *Tree[T]) Begin() (*Iterator[T], error) {
	if err := t.ensureOpen(); err != nil {
		return nil, err
	}
	n, err := t.readNode(t.rootID)
	if err != nil {
		return nil, err
	}
	for !n.isLeaf() {
		n, err = t.readNode(n.children[0])
		if err != nil {
			return nil, err
		}
	}
	if n.count == 0 {
		return &Iterator[T]{tree: t, cur: cursor{page: 0, slot: 0}}, nil
	}
	return &Iterator[T]{tree: t, cur: cursor{page: n.pageID, slot: 0}}, nil
}

// End returns the sentinel cursor with page id 0.
func (t *Tree[T]) End() *Iterator[T] {
	return &Iterator[T]{tree: t, cur: cursor{page: 0, slot: 0}}
}

// DumpLeaves walks the full leaf chain from Begin to End and returns every
// payload in leaf order: the leaf-chain traversal the testable properties
// and round-trip scenarios describe.
func (t *Tree[T]) DumpLeaves() ([]T, error) {
	it, err := t.Begin()
	if err != nil {
		return nil, err
	}
	var out []T
	for !it.Done() {
		v, err := it.Value()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
		if err := it.Next(); err != nil {
			return nil, err
		}
	}
	return out, nil
}
