package valueptr

import (
	"fmt"
	"reflect"
	"unsafe"

	"github.com/joshuapare/valuekit/valueptr/alloc"
)

// noCopy makes go vet's copylocks check flag shallow copies of a Ptr.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// Ptr owns at most one payload of element type T, stored in a block obtained from
// its allocator. The zero value is an empty container using alloc.Default.
//
// A Ptr must not be copied; use Clone for an independent copy and Move to transfer
// ownership.
type Ptr[T any] struct {
	_     noCopy
	block unsafe.Pointer
	alloc alloc.Allocator
}

// Empty returns an empty container.
func Empty[T any](opts ...Option) *Ptr[T] {
	o := buildOptions(opts)
	return &Ptr[T]{alloc: o.allocator}
}

// New returns a container holding a copy of v. Payloads implementing Cloner are
// copied with Clone, so the container never shares state with the caller's value.
//
// When T is an interface, the dynamic type of v must have been registered for T
// (see Register, Make and SetAs).
func New[T any](v T, opts ...Option) (*Ptr[T], error) {
	p := Empty[T](opts...)
	blk, err := construct(v, p.allocator())
	if err != nil {
		return nil, err
	}
	p.block = blk
	return p, nil
}

// Make returns a container over interface I holding the concrete value c.
func Make[I, C any](c C, opts ...Option) (*Ptr[I], error) {
	p := Empty[I](opts...)
	if err := SetAs(p, c); err != nil {
		return nil, err
	}
	return p, nil
}

// Register records C as an implementation of interface I so that values of dynamic
// type C can be passed to New and Set. Registering the same pair twice is a no-op.
func Register[I, C any]() error {
	_, err := register[I, C]()
	return err
}

// SetAs assigns the concrete value c to p. For an interface element type the stored
// concrete type may change; C is registered on first use.
func SetAs[I, C any](p *Ptr[I], c C) error {
	if !isDynamic[I]() {
		v, ok := any(c).(I)
		if !ok {
			return fmt.Errorf("%w: %s is not %s", ErrNotImplemented, reflect.TypeFor[C](), reflect.TypeFor[I]())
		}
		return p.Set(v)
	}
	ops, err := register[I, C]()
	if err != nil {
		return err
	}
	return p.setDynamic(ops, c)
}

// Set assigns v to the container.
//
// For a concrete T an existing payload is overwritten in place and nothing is
// allocated. For an interface T the payload is overwritten in place only when v has
// the same concrete type; otherwise a block sized for v's type is allocated from the
// same allocator and the old block is freed. v is copied as in New. On error p is
// unchanged.
func (p *Ptr[T]) Set(v T) error {
	if !isDynamic[T]() {
		if p.block != nil {
			*(*T)(p.block) = copyPayload(&v)
			return nil
		}
		blk, err := allocStatic(copyPayload(&v), p.allocator())
		if err != nil {
			return err
		}
		p.block = blk
		return nil
	}
	ops, err := lookupValue(v)
	if err != nil {
		return err
	}
	return p.setDynamic(ops, any(v))
}

func (p *Ptr[T]) setDynamic(ops *memops, v any) error {
	if p.block != nil && opsOf(p.block) == ops {
		ops.assign(p.block, v)
		return nil
	}
	blk, err := ops.store(v, p.allocator())
	if err != nil {
		return err
	}
	tmp := &Ptr[T]{block: blk, alloc: p.alloc}
	p.Swap(tmp)
	return tmp.Release()
}

// Get returns the payload. For a concrete T it is a copy; for an interface T it is a
// view over the stored payload, so pointer methods called on it modify the
// container's value.
//
// Get panics with ErrEmpty if the container is empty.
func (p *Ptr[T]) Get() T {
	if p.block == nil {
		panic(ErrEmpty)
	}
	if !isDynamic[T]() {
		return *(*T)(p.block)
	}
	ops := opsOf(p.block)
	return ops.view(unsafe.Add(p.block, ops.offset)).(T)
}

// Ref returns the address of the payload for in-place reads and writes. The pointer
// is valid until the container is released, moved from or reassigned.
//
// Ref panics with ErrEmpty if the container is empty and with ErrDynamic if T is an
// interface.
func (p *Ptr[T]) Ref() *T {
	if isDynamic[T]() {
		panic(ErrDynamic)
	}
	if p.block == nil {
		panic(ErrEmpty)
	}
	return (*T)(p.block)
}

// Clone returns an independent copy holding the same concrete type, allocated from
// (and carrying) p's allocator.
func (p *Ptr[T]) Clone() (*Ptr[T], error) {
	if p.block == nil {
		return nil, ErrEmpty
	}
	blk, err := cloneBlock[T](p.block, p.allocator())
	if err != nil {
		return nil, err
	}
	return &Ptr[T]{block: blk, alloc: p.alloc}, nil
}

// Move transfers p's block and allocator to a new container and leaves p empty.
// p keeps its allocator for later assignments.
func (p *Ptr[T]) Move() *Ptr[T] {
	q := &Ptr[T]{block: p.block, alloc: p.alloc}
	p.block = nil
	return q
}

// Assign makes p an independent copy of o, adopting o's allocator. The copy is built
// before p is touched, so on error p is unchanged. Assigning from an empty container
// fails with ErrEmpty; use AssignMove to take over a possibly empty container.
func (p *Ptr[T]) Assign(o *Ptr[T]) error {
	if p == o {
		return nil
	}
	tmp, err := o.Clone()
	if err != nil {
		return err
	}
	p.Swap(tmp)
	return tmp.Release()
}

// AssignMove moves o into p, adopting o's allocator, and frees p's old payload.
// o is left empty.
func (p *Ptr[T]) AssignMove(o *Ptr[T]) error {
	if p == o {
		return nil
	}
	tmp := o.Move()
	p.Swap(tmp)
	return tmp.Release()
}

// Swap exchanges the contents and allocators of p and o.
func (p *Ptr[T]) Swap(o *Ptr[T]) {
	p.block, o.block = o.block, p.block
	p.alloc, o.alloc = o.alloc, p.alloc
}

// Release destroys the payload and returns its block to the allocator. The container
// is empty afterwards; releasing an empty container is a no-op.
func (p *Ptr[T]) Release() error {
	blk := p.block
	if blk == nil {
		return nil
	}
	p.block = nil
	return destroyBlock[T](blk, p.allocator())
}

// IsEmpty reports whether the container holds no payload.
func (p *Ptr[T]) IsEmpty() bool { return p.block == nil }

// Dynamic reports whether the container stores a dispatch token, i.e. whether T is an
// interface type.
func (p *Ptr[T]) Dynamic() bool { return isDynamic[T]() }

// Allocator returns the allocator the container allocates and frees through.
func (p *Ptr[T]) Allocator() alloc.Allocator { return p.allocator() }

// Layout returns the layout of the held block, or the zero Layout when empty.
func (p *Ptr[T]) Layout() alloc.Layout {
	if p.block == nil {
		return alloc.Layout{}
	}
	return blockLayout[T](p.block)
}

// Size returns the size in bytes of the held block, descriptor included, or 0 when
// empty.
func (p *Ptr[T]) Size() uintptr { return p.Layout().Size }

// ConcreteType returns the type of the stored payload, or nil when empty.
func (p *Ptr[T]) ConcreteType() reflect.Type {
	if p.block == nil {
		return nil
	}
	if !isDynamic[T]() {
		return reflect.TypeFor[T]()
	}
	return opsOf(p.block).concrete
}

// Pointer returns the address of the payload, or nil when empty.
func (p *Ptr[T]) Pointer() unsafe.Pointer {
	if p.block == nil {
		return nil
	}
	return payloadOf[T](p.block)
}

func (p *Ptr[T]) allocator() alloc.Allocator {
	if p.alloc == nil {
		return alloc.Default
	}
	return p.alloc
}
