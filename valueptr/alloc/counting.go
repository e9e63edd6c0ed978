package alloc

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/joshuapare/valuekit/internal/logger"
)

// CountingAllocator wraps another Allocator and records every block it hands out.
// Freeing a block it did not allocate, or with a different layout, fails without
// reaching the wrapped allocator.
type CountingAllocator struct {
	next Allocator

	mu        sync.Mutex
	live      map[unsafe.Pointer]Layout
	allocs    int64
	frees     int64
	liveBytes int64
	rejected  int64
}

// NewCounting wraps next. A nil next wraps Default.
func NewCounting(next Allocator) *CountingAllocator {
	if next == nil {
		next = Default
	}
	return &CountingAllocator{next: next, live: make(map[unsafe.Pointer]Layout)}
}

// Alloc allocates through the wrapped allocator and records the block.
func (ca *CountingAllocator) Alloc(l Layout) (unsafe.Pointer, error) {
	p, err := ca.next.Alloc(l)
	if err != nil {
		return nil, err
	}

	ca.mu.Lock()
	defer ca.mu.Unlock()
	ca.live[p] = l
	ca.allocs++
	ca.liveBytes += int64(l.Size)
	return p, nil
}

// Free checks the block against the record before freeing it through the wrapped
// allocator.
func (ca *CountingAllocator) Free(p unsafe.Pointer, l Layout) error {
	ca.mu.Lock()
	recorded, ok := ca.live[p]
	switch {
	case !ok:
		ca.rejected++
		ca.mu.Unlock()
		logger.Debug("counting: foreign free", "layout", l.String())
		return ErrForeignBlock
	case recorded != l:
		ca.rejected++
		ca.mu.Unlock()
		return fmt.Errorf("%w: allocated as %s, freed as %s", ErrLayoutMismatch, recorded, l)
	}
	delete(ca.live, p)
	ca.frees++
	ca.liveBytes -= int64(l.Size)
	ca.mu.Unlock()

	return ca.next.Free(p, l)
}

// Allocs returns the number of successful allocations.
func (ca *CountingAllocator) Allocs() int64 {
	ca.mu.Lock()
	defer ca.mu.Unlock()
	return ca.allocs
}

// Frees returns the number of successful frees.
func (ca *CountingAllocator) Frees() int64 {
	ca.mu.Lock()
	defer ca.mu.Unlock()
	return ca.frees
}

// Live returns the number of blocks allocated and not yet freed.
func (ca *CountingAllocator) Live() int {
	ca.mu.Lock()
	defer ca.mu.Unlock()
	return len(ca.live)
}

// LiveBytes returns the payload bytes of all live blocks.
func (ca *CountingAllocator) LiveBytes() int64 {
	ca.mu.Lock()
	defer ca.mu.Unlock()
	return ca.liveBytes
}

// Rejected returns the number of frees refused as foreign or mismatched.
func (ca *CountingAllocator) Rejected() int64 {
	ca.mu.Lock()
	defer ca.mu.Unlock()
	return ca.rejected
}

// Owns reports whether p is a live block of this allocator.
func (ca *CountingAllocator) Owns(p unsafe.Pointer) bool {
	ca.mu.Lock()
	defer ca.mu.Unlock()
	_, ok := ca.live[p]
	return ok
}

// Compile-time interface check
var _ Allocator = (*CountingAllocator)(nil)
