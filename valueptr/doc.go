// Package valueptr provides Ptr, a container that owns exactly one value behind an
// element type and gives it value semantics: copies are deep and independent, moves
// transfer ownership, and assignment either reuses the existing storage or swaps in a
// freshly built block.
//
// # Static and Dynamic Containers
//
// The element type decides how a container stores its payload:
//
//   - Concrete T (a struct, float64, ...): the block holds the T and nothing else.
//     Clone and Release are resolved directly against T.
//   - Interface T: the block holds a dispatch token followed by the concrete payload.
//     The token selects the clone/destroy/view operations registered for that
//     concrete type, so the concrete type can change across assignments.
//
// Concrete types are registered against an interface with Register, or implicitly by
// Make and SetAs:
//
//	type Shape interface{ Area() float64 }
//
//	p, err := valueptr.Make[Shape](Rect{W: 2.5, H: 2})
//	if err != nil {
//	    return err
//	}
//	defer p.Release()
//
//	p.Get().Area() // 5
//
//	// Switch the concrete type; a block sized for Circle replaces the Rect block.
//	err = valueptr.SetAs[Shape](p, Circle{R: 2})
//
// # Allocators
//
// Storage comes from the container's alloc.Allocator (alloc.Default unless
// WithAllocator is given). The allocator travels with the block: clones allocate from
// the source's allocator, and Assign/AssignMove adopt the allocator of the container
// they copy or move from. Release always frees through the allocator that produced
// the block.
//
// # Copies
//
// Clone copies payloads with a plain Go assignment unless the payload implements
// Cloner, in which case its Clone method supplies the copy. Payloads holding slices,
// maps or pointers should implement Cloner to keep copies independent. Payloads
// implementing Destroyer are told when their container drops them.
//
// # Contract Violations
//
// Get and Ref on an empty container panic with ErrEmpty. A container must not be
// copied with a Go assignment (go vet reports it); use Clone or Move.
//
// # Thread Safety
//
// A container is not safe for concurrent use. Registration is safe for concurrent use.
package valueptr
