package alloc

import (
	"fmt"
	"unsafe"

	"github.com/joshuapare/valuekit/internal/buf"
	"github.com/joshuapare/valuekit/internal/pages"
)

const (
	// cellHeaderSize is the size of the signed length prefix in front of every cell payload.
	cellHeaderSize = 8

	// cellAlign is the alignment of every cell and therefore of every payload.
	cellAlign = 8

	// minCellSize is the smallest cell, header plus one aligned word. Zero-sized
	// layouts still get a distinct address.
	minCellSize = cellHeaderSize + cellAlign
)

// PageSource supplies the pages that BumpAllocator and FastAllocator carve cells from.
type PageSource = pages.Source

// HeapPages returns a PageSource backed by Go byte slices.
func HeapPages() PageSource { return pages.Heap }

// MmapPages returns a PageSource backed by anonymous memory mappings where the platform
// supports them, and by heap pages elsewhere.
func MmapPages() PageSource { return pages.Mmap() }

// page is one chunk of memory obtained from a PageSource.
type page struct {
	data []byte
	base uintptr
}

func newPage(data []byte) page {
	return page{data: data, base: uintptr(unsafe.Pointer(unsafe.SliceData(data)))}
}

// contains reports whether addr lies inside the page.
func (pg page) contains(addr uintptr) bool {
	return addr >= pg.base && addr < pg.base+uintptr(len(pg.data))
}

// cellSize returns the total cell size (header included) a layout needs on a
// page-backed allocator.
func cellSize(l Layout) (int, error) {
	if err := l.Validate(); err != nil {
		return 0, err
	}
	if l.Align > cellAlign {
		return 0, fmt.Errorf("%w: alignment %d exceeds cell alignment %d", ErrBadLayout, l.Align, cellAlign)
	}
	if !l.PointerFree() {
		return 0, fmt.Errorf("%w: %s", ErrPointers, l.Type)
	}
	n, ok := buf.AddOverflowSafe(cellHeaderSize+cellAlign, int(l.Size))
	if !ok || int(l.Size) < 0 {
		return 0, fmt.Errorf("%w: size %d overflows a cell", ErrBadLayout, l.Size)
	}
	need := pages.RoundUp(n-cellAlign, cellAlign)
	return max(need, minCellSize), nil
}

// pageSpan returns the smallest multiple of pageSize that fits a cell of need bytes.
func pageSpan(need, pageSize int) (int, error) {
	size, ok := buf.RoundUpMultiple(need, pageSize)
	if !ok {
		return 0, fmt.Errorf("%w: cell of %d bytes", ErrNoSpace, need)
	}
	return size, nil
}

// locate maps a payload pointer to the page index and cell offset within that page.
func locate(pgs []page, p unsafe.Pointer) (int, int, error) {
	if p == nil {
		return 0, 0, ErrBadBlock
	}
	addr := uintptr(p)
	for i, pg := range pgs {
		if !pg.contains(addr) {
			continue
		}
		off := int(addr-pg.base) - cellHeaderSize
		if off < 0 || off%cellAlign != 0 {
			return 0, 0, ErrBadBlock
		}
		return i, off, nil
	}
	return 0, 0, ErrForeignBlock
}

func getI64(data []byte, off int) int64 { return buf.I64LE(data, off) }

func putI64(data []byte, off int, v int64) {
	if !buf.PutI64LE(data, off, v) {
		panic(fmt.Sprintf("alloc: cell header at %d outside page of %d bytes", off, len(data)))
	}
}

// payloadPtr returns the address of the payload of the cell at off.
func payloadPtr(data []byte, off int) unsafe.Pointer {
	return unsafe.Pointer(&data[off+cellHeaderSize])
}

// Stats is a snapshot of a page-backed allocator's accounting.
type Stats struct {
	Pages    int   // Pages obtained from the source
	Capacity int64 // Bytes held in pages
	InUse    int64 // Bytes in allocated cells, headers included
	Allocs   int64 // Successful Alloc calls
	Frees    int64 // Successful Free calls that released a cell
	Grows    int64 // Pages requested after the first
	Reused   int64 // Allocations served from a free list
}
