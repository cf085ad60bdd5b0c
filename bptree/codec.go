package bptree

import "encoding/binary"

// Codec gives the tree a fixed-size, trivially-copyable serialization for
// the payload type T. The original template relied on raw struct memcpy of
// T; a language without that requires an explicit codec instead.
type Codec[T any] interface {
	// Size is the fixed number of bytes Encode always writes and Decode
	// always reads.
	Size() int
	Encode(dst []byte, v T)
	Decode(src []byte) T
}

// Int64Codec stores 64-bit signed payloads (the "long" test payload).
type Int64Codec struct{}

func (Int64Codec) Size() int                  { return 8 }
func (Int64Codec) Encode(dst []byte, v int64) { binary.LittleEndian.PutUint64(dst, uint64(v)) }
func (Int64Codec) Decode(src []byte) int64    { return int64(binary.LittleEndian.Uint64(src)) }

// Int32Codec stores 32-bit signed payloads (the "int" test payload).
type Int32Codec struct{}

func (Int32Codec) Size() int                  { return 4 }
func (Int32Codec) Encode(dst []byte, v int32) { binary.LittleEndian.PutUint32(dst, uint32(v)) }
func (Int32Codec) Decode(src []byte) int32    { return int32(binary.LittleEndian.Uint32(src)) }

// ByteCodec stores single-byte payloads (the "char" test payload).
type ByteCodec struct{}

func (ByteCodec) Size() int                 { return 1 }
func (ByteCodec) Encode(dst []byte, v byte) { dst[0] = v }
func (ByteCodec) Decode(src []byte) byte    { return src[0] }

// EstimateOrder reproduces the sizing formula the original C++ template
// used to pick ORDER from a page size:
//
//	ORDER = (pageSize - (4*sizeof(long) + sizeof(int))) / (sizeof(int) + sizeof(long))
//
// with sizeof(long)=8 and sizeof(int)=4. It is kept as a reference/
// compatibility helper for callers that want the same two pinned
// configurations the original test suite used (page_size=64 -> ORDER=2,
// page_size=1024 -> ORDER=82); this module's own packing is computed
// directly from the chosen order and Codec via nodeSizeFor, since the
// formula above does not account for the payload type at all.
func EstimateOrder(pageSize int) int {
	const longSize, intSize = 8, 4
	return (pageSize - (4*longSize + intSize)) / (intSize + longSize)
}
