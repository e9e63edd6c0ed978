package alloc

import (
	"fmt"
	"unsafe"

	"github.com/joshuapare/valuekit/internal/logger"
	"github.com/joshuapare/valuekit/internal/pages"
)

// BumpOptions configures a BumpAllocator.
type BumpOptions struct {
	// Pages is where memory comes from. Default: HeapPages().
	Pages PageSource

	// PageSize is the minimum size of each page request. Default: 4096.
	PageSize int
}

// BumpAllocator is an append-only arena allocator. It uses a simple bump-pointer
// approach for O(1) allocation.
//
// Key characteristics:
//   - O(1) allocation: Pure bump pointer, no free lists
//   - Free() never makes space reusable (only flips the header sign)
//   - Growth requests a new page; the tail of the previous page is abandoned
//
// This allocator suits short-lived batches of values that are released together with
// Close.
type BumpAllocator struct {
	src      PageSource
	pageSize int
	pages    []page

	// endBlocks is the bump pointer: the offset in the last page where the next cell
	// starts.
	endBlocks int

	closed bool
	stats  Stats
}

// NewBump creates a new BumpAllocator. No page is requested until the first Alloc.
func NewBump(opts BumpOptions) (*BumpAllocator, error) {
	src, size, err := pageConfig(opts.Pages, opts.PageSize)
	if err != nil {
		return nil, err
	}
	return &BumpAllocator{src: src, pageSize: size}, nil
}

func pageConfig(src PageSource, size int) (PageSource, int, error) {
	if src == nil {
		src = HeapPages()
	}
	if size == 0 {
		size = pages.DefaultPageSize
	}
	if size < minCellSize {
		return nil, 0, fmt.Errorf("alloc: page size %d below minimum %d", size, minCellSize)
	}
	return src, pages.RoundUp(size, cellAlign), nil
}

// Alloc carves the next cell off the current page.
func (ba *BumpAllocator) Alloc(l Layout) (unsafe.Pointer, error) {
	if ba.closed {
		return nil, ErrClosed
	}
	need, err := cellSize(l)
	if err != nil {
		return nil, err
	}

	if len(ba.pages) == 0 || ba.endBlocks+need > len(ba.pages[len(ba.pages)-1].data) {
		if err := ba.grow(need); err != nil {
			return nil, err
		}
	}

	cur := ba.pages[len(ba.pages)-1]
	cellOff := ba.endBlocks
	ba.endBlocks += need

	// Negative size marks the cell allocated.
	putI64(cur.data, cellOff, -int64(need))

	ba.stats.Allocs++
	ba.stats.InUse += int64(need)
	return payloadPtr(cur.data, cellOff), nil
}

// Free marks a cell dead by flipping its size to positive. The space is not reused.
// Freeing an already-free cell is a no-op.
func (ba *BumpAllocator) Free(p unsafe.Pointer, l Layout) error {
	if ba.closed {
		return ErrClosed
	}
	idx, off, err := locate(ba.pages, p)
	if err != nil {
		logger.Debug("bump: rejected free", "layout", l.String(), "error", err)
		return err
	}
	data := ba.pages[idx].data

	sz := getI64(data, off)
	if sz >= 0 {
		return nil
	}
	need, err := cellSize(l)
	if err != nil {
		return err
	}
	if int64(need) != -sz {
		return fmt.Errorf("%w: cell is %d bytes, %s needs %d", ErrLayoutMismatch, -sz, l, need)
	}

	putI64(data, off, -sz)
	clear(data[off+cellHeaderSize : off+need])

	ba.stats.Frees++
	ba.stats.InUse -= int64(need)
	return nil
}

// grow requests a page large enough for a cell of need bytes.
func (ba *BumpAllocator) grow(need int) error {
	size, err := pageSpan(need, ba.pageSize)
	if err != nil {
		return err
	}
	data, err := ba.src.Get(size)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNoSpace, err)
	}
	if len(ba.pages) > 0 {
		ba.stats.Grows++
	}
	ba.pages = append(ba.pages, newPage(data))
	ba.endBlocks = 0
	ba.stats.Pages++
	ba.stats.Capacity += int64(len(data))
	logger.Debug("bump: grow", "need", need, "page", len(data), "pages", len(ba.pages))
	return nil
}

// Stats returns a snapshot of the allocator's accounting.
func (ba *BumpAllocator) Stats() Stats { return ba.stats }

// Close returns every page to its source. All blocks become invalid.
func (ba *BumpAllocator) Close() error {
	if ba.closed {
		return nil
	}
	ba.closed = true
	return releasePages(ba.src, ba.pages)
}

func releasePages(src PageSource, pgs []page) error {
	var firstErr error
	for _, pg := range pgs {
		if err := src.Put(pg.data); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Compile-time interface check
var _ Allocator = (*BumpAllocator)(nil)
