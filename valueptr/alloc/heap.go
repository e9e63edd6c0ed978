package alloc

import (
	"reflect"
	"unsafe"
)

// HeapAllocator allocates blocks on the Go heap. It is the zero-configuration default:
// every type is accepted and Free leaves reclamation to the garbage collector.
type HeapAllocator struct{}

// Default is the allocator used by containers constructed without one.
var Default Allocator = HeapAllocator{}

// Alloc allocates a zeroed value of l.Type. Zero-size types get a one-byte block so
// that every live block has its own address.
func (HeapAllocator) Alloc(l Layout) (unsafe.Pointer, error) {
	if err := l.Validate(); err != nil {
		return nil, err
	}
	if l.Size == 0 {
		return unsafe.Pointer(new(byte)), nil
	}
	return reflect.New(l.Type).UnsafePointer(), nil
}

// Free accepts any non-nil block.
func (HeapAllocator) Free(p unsafe.Pointer, l Layout) error {
	if p == nil {
		return ErrBadBlock
	}
	return nil
}

// Compile-time interface check
var _ Allocator = HeapAllocator{}
