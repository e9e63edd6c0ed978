package alloc

import (
	"fmt"
	"reflect"
	"sync"
	"unsafe"
)

// Layout describes one storage block: its size, its alignment and the Go type that
// occupies it.
type Layout struct {
	Size  uintptr
	Align uintptr
	Type  reflect.Type
}

// LayoutFor returns the layout of T.
func LayoutFor[T any]() Layout {
	return LayoutOf(reflect.TypeFor[T]())
}

// LayoutOf returns the layout of t.
func LayoutOf(t reflect.Type) Layout {
	return Layout{Size: t.Size(), Align: uintptr(t.Align()), Type: t}
}

// Validate reports ErrBadLayout if the layout is not self-consistent.
func (l Layout) Validate() error {
	if l.Type == nil {
		return fmt.Errorf("%w: missing type", ErrBadLayout)
	}
	if l.Size != l.Type.Size() || l.Align != uintptr(l.Type.Align()) {
		return fmt.Errorf("%w: %s is %d bytes aligned to %d, layout says %d/%d",
			ErrBadLayout, l.Type, l.Type.Size(), l.Type.Align(), l.Size, l.Align)
	}
	return nil
}

// PointerFree reports whether values of the layout's type hold no pointers the
// garbage collector must see.
func (l Layout) PointerFree() bool {
	if l.Type == nil {
		return false
	}
	return pointerFree(l.Type)
}

func (l Layout) String() string {
	return fmt.Sprintf("%v(size=%d align=%d)", l.Type, l.Size, l.Align)
}

// Allocator allocates and frees storage blocks.
//
// Implementations:
//   - HeapAllocator: GC-backed default
//   - BumpAllocator: append-only arena over pages
//   - FastAllocator: size-class free lists over pages
//   - CountingAllocator, MetricsAllocator: instrumenting wrappers
type Allocator interface {
	// Alloc returns a zeroed block large enough and aligned for l.
	Alloc(l Layout) (unsafe.Pointer, error)

	// Free returns a block obtained from Alloc with the same layout.
	Free(p unsafe.Pointer, l Layout) error
}

var pointerFreeCache sync.Map // reflect.Type -> bool

func pointerFree(t reflect.Type) bool {
	if v, ok := pointerFreeCache.Load(t); ok {
		return v.(bool)
	}
	free := computePointerFree(t)
	pointerFreeCache.Store(t, free)
	return free
}

func computePointerFree(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return true
	case reflect.Array:
		return t.Len() == 0 || computePointerFree(t.Elem())
	case reflect.Struct:
		for i := range t.NumField() {
			if !computePointerFree(t.Field(i).Type) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
