package valueptr

import (
	"fmt"
	"reflect"
	"slices"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/joshuapare/valuekit/valueptr/alloc"
)

// Cloner is implemented by payloads whose plain Go copy would share state (slices,
// maps, pointers). Clone must return a value independent of the receiver.
type Cloner[C any] interface {
	Clone() C
}

// Destroyer is implemented by payloads that must release something when their
// container drops them. Destroy is called on the payload's address just before its
// block is freed.
type Destroyer interface {
	Destroy()
}

// token is a dispatch token: the index of a payload's memops in the registry table.
// Zero is never issued. Tokens are plain integers so a dynamic block stays
// pointer-free whenever its payload is.
type token uint32

// dynBlock is the storage block of a dynamic container.
type dynBlock[C any] struct {
	tag token
	val C
}

// memops is the operation descriptor for one concrete type stored behind one
// interface.
type memops struct {
	tok      token
	iface    reflect.Type
	concrete reflect.Type
	layout   alloc.Layout
	offset   uintptr

	store   func(v any, a alloc.Allocator) (unsafe.Pointer, error)
	assign  func(blk unsafe.Pointer, v any)
	clone   func(blk unsafe.Pointer, a alloc.Allocator) (unsafe.Pointer, error)
	destroy func(blk unsafe.Pointer, a alloc.Allocator) error
	view    func(payload unsafe.Pointer) any
}

type regKey struct {
	iface, concrete reflect.Type
}

var registry struct {
	mu    sync.RWMutex
	byKey map[regKey]*memops

	// table is replaced wholesale on registration so lookups by token need no lock.
	table atomic.Pointer[[]*memops]
}

// isDynamic reports whether containers of T store a dispatch token.
func isDynamic[T any]() bool {
	return reflect.TypeFor[T]().Kind() == reflect.Interface
}

func register[I, C any]() (*memops, error) {
	iface := reflect.TypeFor[I]()
	if iface.Kind() != reflect.Interface {
		return nil, fmt.Errorf("%w: %s", ErrNotInterface, iface)
	}
	key := regKey{iface: iface, concrete: reflect.TypeFor[C]()}

	registry.mu.RLock()
	ops := registry.byKey[key]
	registry.mu.RUnlock()
	if ops != nil {
		return ops, nil
	}

	view, err := viewFor[C](iface)
	if err != nil {
		return nil, err
	}

	registry.mu.Lock()
	defer registry.mu.Unlock()
	if ops := registry.byKey[key]; ops != nil {
		return ops, nil
	}
	if registry.byKey == nil {
		registry.byKey = make(map[regKey]*memops)
	}

	tbl := []*memops{nil}
	if cur := registry.table.Load(); cur != nil {
		tbl = *cur
	}
	ops = newDynamicOps[C](token(len(tbl)), iface, view)
	next := append(slices.Clip(tbl), ops)
	registry.table.Store(&next)
	registry.byKey[key] = ops
	return ops, nil
}

// viewFor picks how a stored C is exposed as iface: through its address when *C
// implements iface, so pointer methods mutate the stored payload, otherwise by value.
func viewFor[C any](iface reflect.Type) (func(unsafe.Pointer) any, error) {
	concrete := reflect.TypeFor[C]()
	switch {
	case concrete.Kind() == reflect.Interface:
		return nil, fmt.Errorf("%w: %s is an interface, not a concrete type", ErrNotImplemented, concrete)
	case reflect.PointerTo(concrete).Implements(iface):
		return func(p unsafe.Pointer) any { return (*C)(p) }, nil
	case concrete.Implements(iface):
		return func(p unsafe.Pointer) any { return *(*C)(p) }, nil
	default:
		return nil, fmt.Errorf("%w: %s does not implement %s", ErrNotImplemented, concrete, iface)
	}
}

func newDynamicOps[C any](tok token, iface reflect.Type, view func(unsafe.Pointer) any) *memops {
	var blk dynBlock[C]
	ops := &memops{
		tok:      tok,
		iface:    iface,
		concrete: reflect.TypeFor[C](),
		layout:   alloc.LayoutFor[dynBlock[C]](),
		offset:   unsafe.Offsetof(blk.val),
		view:     view,
	}
	ops.store = func(v any, a alloc.Allocator) (unsafe.Pointer, error) {
		c := v.(C)
		return allocDynamic(copyPayload(&c), ops.tok, ops.layout, a)
	}
	ops.assign = func(blk unsafe.Pointer, v any) {
		c := v.(C)
		(*dynBlock[C])(blk).val = copyPayload(&c)
	}
	ops.clone = func(blk unsafe.Pointer, a alloc.Allocator) (unsafe.Pointer, error) {
		// The copy is tagged with this descriptor's token, the same one the source
		// was stored with.
		return allocDynamic(copyPayload(&(*dynBlock[C])(blk).val), ops.tok, ops.layout, a)
	}
	ops.destroy = func(blk unsafe.Pointer, a alloc.Allocator) error {
		b := (*dynBlock[C])(blk)
		runDestroy(&b.val)
		*b = dynBlock[C]{}
		return free(blk, ops.layout, a)
	}
	return ops
}

// lookup finds the descriptor registered for concrete behind iface.
func lookup(iface, concrete reflect.Type) (*memops, error) {
	registry.mu.RLock()
	ops := registry.byKey[regKey{iface: iface, concrete: concrete}]
	registry.mu.RUnlock()
	if ops == nil {
		return nil, fmt.Errorf("%w: %s as %s", ErrUnregistered, concrete, iface)
	}
	return ops, nil
}

// lookupValue finds the descriptor for the dynamic type of v.
func lookupValue[T any](v T) (*memops, error) {
	boxed := any(v)
	if boxed == nil {
		return nil, ErrNilValue
	}
	return lookup(reflect.TypeFor[T](), reflect.TypeOf(boxed))
}

// opsOf reads the dispatch token at the start of a dynamic block.
func opsOf(blk unsafe.Pointer) *memops {
	return (*registry.table.Load())[*(*token)(blk)]
}

func allocDynamic[C any](v C, tok token, l alloc.Layout, a alloc.Allocator) (unsafe.Pointer, error) {
	p, err := a.Alloc(l)
	if err != nil {
		return nil, fmt.Errorf("valueptr: allocate %s: %w", l.Type, err)
	}
	b := (*dynBlock[C])(p)
	b.tag = tok
	b.val = v
	return p, nil
}

func allocStatic[T any](v T, a alloc.Allocator) (unsafe.Pointer, error) {
	l := alloc.LayoutFor[T]()
	p, err := a.Alloc(l)
	if err != nil {
		return nil, fmt.Errorf("valueptr: allocate %s: %w", l.Type, err)
	}
	*(*T)(p) = v
	return p, nil
}

func free(blk unsafe.Pointer, l alloc.Layout, a alloc.Allocator) error {
	if err := a.Free(blk, l); err != nil {
		return fmt.Errorf("valueptr: free %s: %w", l.Type, err)
	}
	return nil
}

// copyPayload copies *src, deeply when the payload knows how.
func copyPayload[C any](src *C) C {
	if c, ok := any(src).(Cloner[C]); ok {
		return c.Clone()
	}
	if c, ok := any(*src).(Cloner[C]); ok {
		return c.Clone()
	}
	return *src
}

func runDestroy[C any](p *C) {
	if d, ok := any(p).(Destroyer); ok {
		d.Destroy()
	}
}

// construct allocates a block holding v.
func construct[T any](v T, a alloc.Allocator) (unsafe.Pointer, error) {
	if !isDynamic[T]() {
		return allocStatic(copyPayload(&v), a)
	}
	ops, err := lookupValue(v)
	if err != nil {
		return nil, err
	}
	return ops.store(any(v), a)
}

// cloneBlock allocates a copy of blk.
func cloneBlock[T any](blk unsafe.Pointer, a alloc.Allocator) (unsafe.Pointer, error) {
	if !isDynamic[T]() {
		return allocStatic(copyPayload((*T)(blk)), a)
	}
	return opsOf(blk).clone(blk, a)
}

// destroyBlock destroys the payload of blk and frees it.
func destroyBlock[T any](blk unsafe.Pointer, a alloc.Allocator) error {
	if isDynamic[T]() {
		return opsOf(blk).destroy(blk, a)
	}
	runDestroy((*T)(blk))
	var zero T
	*(*T)(blk) = zero
	return free(blk, alloc.LayoutFor[T](), a)
}

// payloadOf returns the address of the payload in blk.
func payloadOf[T any](blk unsafe.Pointer) unsafe.Pointer {
	if !isDynamic[T]() {
		return blk
	}
	return unsafe.Add(blk, opsOf(blk).offset)
}

// blockLayout returns the layout blk was allocated with.
func blockLayout[T any](blk unsafe.Pointer) alloc.Layout {
	if !isDynamic[T]() {
		return alloc.LayoutFor[T]()
	}
	return opsOf(blk).layout
}
