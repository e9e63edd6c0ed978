// Package alloc provides the pluggable storage allocators used by valueptr containers.
//
// # Overview
//
// A container never calls new or make for its storage block directly. It describes the
// block with a Layout (size, alignment, Go type) and hands it to an Allocator. The same
// Allocator value travels with the container through every clone, move and swap, so a
// block is always returned to the allocator that produced it.
//
// # Allocator Interface
//
//   - Alloc(layout): Allocate one zeroed block for the layout
//   - Free(ptr, layout): Return a block; layout must match the one used to allocate it
//
// # Implementations
//
// HeapAllocator: Default allocator backed by the Go garbage collector
//
//   - Allocates with reflect.New, so any type (pointers included) is safe
//   - Free is bookkeeping only; the GC reclaims the block
//
// BumpAllocator: Append-only arena over pages
//
//   - O(1) allocation, no reuse of freed cells
//   - Free flips the cell header to mark it dead
//
// FastAllocator: Segregated free-list allocator over pages
//
//   - Tunable size classes (see SizeClassConfig)
//   - Freed cells are reused by later allocations of the same class
//   - Oversized free cells are split
//
// CountingAllocator and MetricsAllocator wrap any Allocator and record every call,
// either in memory (for tests and fidelity checks) or as Prometheus metrics.
//
// # Cells
//
// Page-backed allocators prefix every block with an 8-byte cell header holding the
// total cell size. A negative size marks an allocated cell, a positive size a free one:
//
//	| size (int64) | payload ... | padding |
//	^ cell offset  ^ pointer returned by Alloc
//
// Cells are 8-byte aligned, which covers the alignment of every Go type on supported
// platforms. Layouts asking for more fail with ErrBadLayout.
//
// # Pointer-Free Payloads
//
// Page memory is opaque to the garbage collector (and, for MmapPages, lives outside the
// Go heap entirely). Page-backed allocators therefore reject layouts whose type contains
// pointers, strings, slices, maps, channels, functions or interfaces with ErrPointers.
//
// # Usage Example
//
//	ba, err := alloc.NewBump(alloc.BumpOptions{Pages: alloc.MmapPages()})
//	if err != nil {
//	    return err
//	}
//	defer ba.Close()
//
//	p, err := valueptr.New(Point{X: 1, Y: 2}, valueptr.WithAllocator(ba))
//
// # Thread Safety
//
// HeapAllocator, CountingAllocator and MetricsAllocator are safe for concurrent use
// when the allocator they wrap is. BumpAllocator and FastAllocator are not thread-safe;
// callers must synchronize access externally.
package alloc
