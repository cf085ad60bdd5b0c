package bptree

import "encoding/binary"

// node is one page's worth of B+-tree structure: ORDER+1 keys, ORDER+1
// payload slots, and ORDER+2 child pointers, plus a leaf-chain pointer.
// children[0] == 0 marks the node as a leaf, since page 0 is reserved for
// the tree's metadata page and can never be a real child.
type node[T any] struct {
	pageID   uint64
	count    int64
	keys     []int64
	data     []T
	children []uint64
	next     uint64

	order int
	codec Codec[T]
}

func newNode[T any](pageID uint64, order int, codec Codec[T]) *node[T] {
	keys := make([]int64, order+1)
	for i := range keys {
		keys[i] = -1
	}
	return &node[T]{
		pageID:   pageID,
		keys:     keys,
		data:     make([]T, order+1),
		children: make([]uint64, order+2),
		order:    order,
		codec:    codec,
	}
}

func (n *node[T]) isLeaf() bool { return n.children[0] == 0 }

func (n *node[T]) isOverflow() bool { return int(n.count) > n.order }

// nodeSizeFor returns the exact encoded byte size of a node for the given
// order and codec: page_id, count, keys, payloads, children, next.
func nodeSizeFor[T any](order int, codec Codec[T]) int {
	return 8 + 8 + (order+1)*8 + (order+1)*codec.Size() + (order+2)*8 + 8
}

// encode marshals the node into buf, which must be exactly nodeSizeFor(n.order, n.codec) bytes.
func (n *node[T]) encode(buf []byte) {
	off := 0
	binary.LittleEndian.PutUint64(buf[off:], n.pageID)
	off += 8
	binary.LittleEndian.PutUint64(buf[off:], uint64(n.count))
	off += 8
	for _, k := range n.keys {
		binary.LittleEndian.PutUint64(buf[off:], uint64(k))
		off += 8
	}
	sz := n.codec.Size()
	for _, v := range n.data {
		n.codec.Encode(buf[off:off+sz], v)
		off += sz
	}
	for _, c := range n.children {
		binary.LittleEndian.PutUint64(buf[off:], c)
		off += 8
	}
	binary.LittleEndian.PutUint64(buf[off:], n.next)
}

// decode unmarshals buf into n, which must already be sized for n.order/n.codec.
func (n *node[T]) decode(buf []byte) {
	off := 0
	n.pageID = binary.LittleEndian.Uint64(buf[off:])
	off += 8
	n.count = int64(binary.LittleEndian.Uint64(buf[off:]))
	off += 8
	for i := range n.keys {
		n.keys[i] = int64(binary.LittleEndian.Uint64(buf[off:]))
		off += 8
	}
	sz := n.codec.Size()
	for i := range n.data {
		n.data[i] = n.codec.Decode(buf[off : off+sz])
		off += sz
	}
	for i := range n.children {
		n.children[i] = binary.LittleEndian.Uint64(buf[off:])
		off += 8
	}
	n.next = binary.LittleEndian.Uint64(buf[off:])
}

// insertInNode shifts keys[pos:count], data[pos:count] and
// children[pos+1:count+1] one slot right, places key/value at pos (value
// only when leaf is true), and increments count. It never touches
// children[pos] or children[pos+1] beyond that shift: a split promotion
// always overwrites both explicitly right after calling this, so the
// right-child slot here simply inherits the old children[pos], a harmless
// artifact of shifting before the caller rewires both child pointers.
func (n *node[T]) insertInNode(pos int, key int64, value T, leaf bool) {
	j := int(n.count)
	for j > pos {
		n.data[j] = n.data[j-1]
		n.keys[j] = n.keys[j-1]
		n.children[j+1] = n.children[j]
		j--
	}
	n.keys[j] = key
	if leaf {
		n.data[j] = value
	}
	n.children[j+1] = n.children[j]
	n.count++
}
