// Package pages provides the raw memory pages that byte-backed allocators carve
// storage blocks from.
package pages

import "errors"

// ErrSize indicates a page request of zero or negative length.
var ErrSize = errors.New("pages: size must be positive")

// Source hands out zeroed pages and takes them back.
//
// A page returned by Get must be passed to Put unmodified (same slice header),
// since mapped sources identify the mapping by its first byte and length.
type Source interface {
	Get(size int) ([]byte, error)
	Put(page []byte) error
}

// DefaultPageSize is the page granularity used when a caller does not specify one.
const DefaultPageSize = 4096

// wordSize is the granularity of heap pages.
const wordSize = 8

// RoundUp rounds n up to the next multiple of align. align must be a power of two.
func RoundUp(n, align int) int {
	return (n + align - 1) &^ (align - 1)
}

// Heap is a Source backed by ordinary Go slices. Put is a no-op; the GC reclaims
// pages once the allocator drops them.
var Heap Source = heapSource{}

type heapSource struct{}

func (heapSource) Get(size int) ([]byte, error) {
	if size <= 0 {
		return nil, ErrSize
	}
	return make([]byte, RoundUp(size, wordSize)), nil
}

func (heapSource) Put([]byte) error { return nil }
