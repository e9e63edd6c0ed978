package alloc

import (
	"container/heap"
	"fmt"
	"unsafe"

	"github.com/joshuapare/valuekit/internal/logger"
)

// minSplit is the smallest remainder worth turning into its own free cell.
const minSplit = minCellSize

// FastOptions configures a FastAllocator.
type FastOptions struct {
	// Pages is where memory comes from. Default: HeapPages().
	Pages PageSource

	// PageSize is the minimum size of each page request. Default: 4096.
	PageSize int

	// SizeClasses selects the free-list layout. Default: DefaultConfig.
	SizeClasses *SizeClassConfig
}

// FastAllocator is a free-list allocator using min-heaps per size class.
//   - Freed cells go back on the heap for their size class
//   - Allocation takes the best fit from the request's class, else the smallest cell
//     of any larger class, else carves from the current page
//   - Cells larger than the last class live on a first-fit linked list
//
// Adjacent free cells are not coalesced.
type FastAllocator struct {
	src      PageSource
	pageSize int

	// Size class configuration and lookup table
	classes *classTable

	// Segregated free lists by size class
	freeLists []freeList

	// Cells beyond the last size class
	largeFree *largeBlock

	pages     []page
	endBlocks int

	closed bool
	stats  Stats
}

type freeList struct {
	heap  freeCellHeap
	count int
}

type freeCell struct {
	page      int
	off       int
	size      int
	heapIndex int
}

// freeCellHeap orders cells by size, then page, then offset, so the top is the best
// fit for any request it can satisfy.
type freeCellHeap []*freeCell

func (h *freeCellHeap) Len() int { return len(*h) }

func (h *freeCellHeap) Less(i, j int) bool {
	a, b := (*h)[i], (*h)[j]
	if a.size != b.size {
		return a.size < b.size
	}
	if a.page != b.page {
		return a.page < b.page
	}
	return a.off < b.off
}

func (h *freeCellHeap) Swap(i, j int) {
	(*h)[i], (*h)[j] = (*h)[j], (*h)[i]
	(*h)[i].heapIndex = i
	(*h)[j].heapIndex = j
}

func (h *freeCellHeap) Push(x any) {
	cell := x.(*freeCell)
	cell.heapIndex = len(*h)
	*h = append(*h, cell)
}

func (h *freeCellHeap) Pop() any {
	old := *h
	n := len(old)
	cell := old[n-1]
	old[n-1] = nil
	cell.heapIndex = -1
	*h = old[:n-1]
	return cell
}

type largeBlock struct {
	page int
	off  int
	size int
	next *largeBlock
}

// NewFast creates a new FastAllocator. No page is requested until the first Alloc.
func NewFast(opts FastOptions) (*FastAllocator, error) {
	src, size, err := pageConfig(opts.Pages, opts.PageSize)
	if err != nil {
		return nil, err
	}
	config := DefaultConfig
	if opts.SizeClasses != nil {
		config = *opts.SizeClasses
	}
	if !config.validate() {
		return nil, fmt.Errorf("alloc: invalid size class config %q", config.Name)
	}
	table := newClassTable(config)
	return &FastAllocator{
		src:       src,
		pageSize:  size,
		classes:   table,
		freeLists: make([]freeList, table.classes()),
	}, nil
}

// Alloc returns a zeroed cell for l, reusing a free cell when one fits.
func (fa *FastAllocator) Alloc(l Layout) (unsafe.Pointer, error) {
	if fa.closed {
		return nil, ErrClosed
	}
	need, err := cellSize(l)
	if err != nil {
		return nil, err
	}

	pg, off, size, ok := fa.takeFree(need)
	if ok {
		fa.stats.Reused++
		if rest := size - need; rest >= minSplit {
			fa.insertFreeCell(pg, off+need, rest)
			size = need
		}
	} else {
		if len(fa.pages) == 0 || fa.endBlocks+need > len(fa.pages[len(fa.pages)-1].data) {
			if err := fa.grow(need); err != nil {
				return nil, err
			}
		}
		pg, off, size = len(fa.pages)-1, fa.endBlocks, need
		fa.endBlocks += need
	}

	data := fa.pages[pg].data
	putI64(data, off, -int64(size))
	clear(data[off+cellHeaderSize : off+size])

	fa.stats.Allocs++
	fa.stats.InUse += int64(size)
	return payloadPtr(data, off), nil
}

// Free puts the cell back on its size class. Freeing an already-free cell is a no-op.
func (fa *FastAllocator) Free(p unsafe.Pointer, l Layout) error {
	if fa.closed {
		return ErrClosed
	}
	pg, off, err := locate(fa.pages, p)
	if err != nil {
		logger.Debug("fast: rejected free", "layout", l.String(), "error", err)
		return err
	}
	data := fa.pages[pg].data

	sz := getI64(data, off)
	if sz >= 0 {
		return nil
	}
	need, err := cellSize(l)
	if err != nil {
		return err
	}
	size := int(-sz)
	// Unsplit cells can be larger than the request, never smaller.
	if size < need || size-need >= minSplit {
		return fmt.Errorf("%w: cell is %d bytes, %s needs %d", ErrLayoutMismatch, size, l, need)
	}

	fa.insertFreeCell(pg, off, size)

	fa.stats.Frees++
	fa.stats.InUse -= int64(size)
	return nil
}

// takeFree removes and returns the best free cell for need bytes.
func (fa *FastAllocator) takeFree(need int) (pg, off, size int, ok bool) {
	sc := fa.classes.classOf(need)

	for c := sc; c < len(fa.freeLists); c++ {
		fl := &fa.freeLists[c]
		if fl.count == 0 {
			continue
		}
		idx := 0
		if c == sc {
			// Cells in the request's own class may be smaller than need.
			idx = -1
			for i, cell := range fl.heap {
				if cell.size >= need && (idx < 0 || cell.size < fl.heap[idx].size) {
					idx = i
				}
			}
			if idx < 0 {
				continue
			}
		}
		cell := heap.Remove(&fl.heap, idx).(*freeCell)
		fl.count--
		return cell.page, cell.off, cell.size, true
	}

	var prev *largeBlock
	for curr := fa.largeFree; curr != nil; prev, curr = curr, curr.next {
		if curr.size < need {
			continue
		}
		if prev == nil {
			fa.largeFree = curr.next
		} else {
			prev.next = curr.next
		}
		return curr.page, curr.off, curr.size, true
	}
	return 0, 0, 0, false
}

// insertFreeCell writes a free header and files the cell under its size class.
func (fa *FastAllocator) insertFreeCell(pg, off, size int) {
	putI64(fa.pages[pg].data, off, int64(size))

	sc := fa.classes.classOf(size)
	if sc < len(fa.freeLists) {
		heap.Push(&fa.freeLists[sc].heap, &freeCell{page: pg, off: off, size: size})
		fa.freeLists[sc].count++
		return
	}
	fa.largeFree = &largeBlock{page: pg, off: off, size: size, next: fa.largeFree}
}

// grow requests a page large enough for a cell of need bytes. The unused tail of the
// previous page is filed as a free cell.
func (fa *FastAllocator) grow(need int) error {
	size, err := pageSpan(need, fa.pageSize)
	if err != nil {
		return err
	}
	data, err := fa.src.Get(size)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNoSpace, err)
	}
	if n := len(fa.pages); n > 0 {
		if rest := len(fa.pages[n-1].data) - fa.endBlocks; rest >= minSplit {
			fa.insertFreeCell(n-1, fa.endBlocks, rest)
		}
		fa.stats.Grows++
	}
	fa.pages = append(fa.pages, newPage(data))
	fa.endBlocks = 0
	fa.stats.Pages++
	fa.stats.Capacity += int64(len(data))
	logger.Debug("fast: grow", "need", need, "page", len(data), "pages", len(fa.pages),
		"classes", fa.classes.name)
	return nil
}

// FreeCells returns the number of cells currently on free lists.
func (fa *FastAllocator) FreeCells() int {
	n := 0
	for i := range fa.freeLists {
		n += fa.freeLists[i].count
	}
	for lb := fa.largeFree; lb != nil; lb = lb.next {
		n++
	}
	return n
}

// Stats returns a snapshot of the allocator's accounting.
func (fa *FastAllocator) Stats() Stats { return fa.stats }

// Close returns every page to its source. All blocks become invalid.
func (fa *FastAllocator) Close() error {
	if fa.closed {
		return nil
	}
	fa.closed = true
	fa.freeLists = nil
	fa.largeFree = nil
	return releasePages(fa.src, fa.pages)
}

// Compile-time interface check
var _ Allocator = (*FastAllocator)(nil)
