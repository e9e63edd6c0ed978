package alloc

import "errors"

var (
	// ErrNoSpace indicates that the page source could not provide more memory.
	ErrNoSpace = errors.New("alloc: no space for allocation")

	// ErrBadBlock indicates a nil pointer or one that does not address a cell.
	ErrBadBlock = errors.New("alloc: bad block pointer")

	// ErrBadLayout indicates a layout without a type, with a size that disagrees with
	// its type, or with an alignment the allocator cannot honor.
	ErrBadLayout = errors.New("alloc: bad layout")

	// ErrPointers indicates a pointerful type was offered to a page-backed allocator.
	ErrPointers = errors.New("alloc: type contains pointers")

	// ErrForeignBlock indicates a block was freed through an allocator that did not allocate it.
	ErrForeignBlock = errors.New("alloc: block not owned by this allocator")

	// ErrLayoutMismatch indicates a block was freed with a layout other than the one it was allocated with.
	ErrLayoutMismatch = errors.New("alloc: layout does not match allocation")

	// ErrClosed indicates use of an allocator after Close.
	ErrClosed = errors.New("alloc: allocator closed")
)
