package bptree

import "errors"

var (
	// ErrClosed is returned by any Tree operation after Close.
	ErrClosed = errors.New("bptree: tree is closed")

	// ErrIteratorOutOfRange is returned by Value when the cursor is already
	// at the end sentinel or at its upper bound, and by Next when the cursor
	// is at the end sentinel.
	ErrIteratorOutOfRange = errors.New("bptree: iterator is out of range")

	// ErrInvalidOrder is returned when order is too small to hold even a
	// single entry, or the codec does not fit the requested page size.
	ErrInvalidOrder = errors.New("bptree: order must be >= 1 and fit the page size")
)
