package valueptr

import (
	"errors"
	"math"
	"reflect"
	"testing"
	"unsafe"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/valuekit/pkg/shapes"
	"github.com/joshuapare/valuekit/valueptr/alloc"
)

type (
	Shape    = shapes.Shape[float64]
	Rect     = shapes.Rectangle[float64]
	Circle   = shapes.Circle[float64]
	Triangle = shapes.Triangle[float64]
	Polygon  = shapes.Polygon[float64]
	Vertex   = shapes.Point[float64]
)

var errOutOfMemory = errors.New("test: out of memory")

// failingAllocator fails every Alloc while fail is set.
type failingAllocator struct {
	alloc.Allocator
	fail bool
}

func (f *failingAllocator) Alloc(l alloc.Layout) (unsafe.Pointer, error) {
	if f.fail {
		return nil, errOutOfMemory
	}
	return f.Allocator.Alloc(l)
}

// tracked counts how often it is destroyed.
type tracked struct {
	ID        int
	destroyed *int
}

func (t *tracked) Destroy() { *t.destroyed++ }

func makeShape[C any](t *testing.T, c C, opts ...Option) *Ptr[Shape] {
	t.Helper()
	p, err := Make[Shape](c, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Release() })
	return p
}

func TestPtr_ZeroValueIsEmpty(t *testing.T) {
	var p Ptr[float64]

	assert.True(t, p.IsEmpty())
	assert.Zero(t, p.Size())
	assert.Nil(t, p.ConcreteType())
	assert.Nil(t, p.Pointer())
	assert.Equal(t, alloc.Default, p.Allocator())
	require.NoError(t, p.Release(), "releasing an empty container is a no-op")

	_, err := p.Clone()
	require.ErrorIs(t, err, ErrEmpty)

	assert.PanicsWithValue(t, ErrEmpty, func() { p.Get() })
	assert.PanicsWithValue(t, ErrEmpty, func() { p.Ref() })
}

func TestPtr_StaticScalar(t *testing.T) {
	ca := alloc.NewCounting(nil)

	d, err := New(2.0, WithAllocator(ca))
	require.NoError(t, err)
	assert.False(t, d.Dynamic())
	assert.Equal(t, 2.0, d.Get())

	require.NoError(t, d.Set(4))
	assert.Equal(t, 4.0, d.Get())

	*d.Ref() += 1
	assert.Equal(t, 5.0, d.Get())

	assert.Equal(t, int64(1), ca.Allocs(), "Set on a concrete element type reuses the block")
	assert.Equal(t, unsafe.Sizeof(float64(0)), d.Size())

	require.NoError(t, d.Release())
	assert.True(t, d.IsEmpty())
	assert.Equal(t, int64(1), ca.Frees())
}

func TestPtr_StaticSetOnEmptyAllocates(t *testing.T) {
	ca := alloc.NewCounting(nil)
	p := Empty[Rect](WithAllocator(ca))

	require.NoError(t, p.Set(Rect{Len: 1, Breadth: 2}))
	assert.Equal(t, int64(1), ca.Allocs())
	require.NoError(t, p.Set(Rect{Len: 3, Breadth: 4}))
	assert.Equal(t, int64(1), ca.Allocs())
	assert.Equal(t, 12.0, p.Get().Area())
	require.NoError(t, p.Release())
}

func TestPtr_StaticValueIndependence(t *testing.T) {
	p, err := New(Rect{Len: 2.5, Breadth: 2})
	require.NoError(t, err)
	c, err := p.Clone()
	require.NoError(t, err)

	c.Ref().Scale(2)

	assert.InDelta(t, 5.0, p.Get().Area(), 1e-9)
	assert.InDelta(t, 20.0, c.Get().Area(), 1e-9)
}

func TestPtr_DynamicValueIndependence(t *testing.T) {
	p := makeShape(t, Rect{Len: 2.5, Breadth: 2})
	c, err := p.Clone()
	require.NoError(t, err)
	defer c.Release()

	c.Get().Scale(2)

	assert.InDelta(t, 5.0, p.Get().Area(), 1e-9)
	assert.InDelta(t, 20.0, c.Get().Area(), 1e-9)
}

func TestPtr_DynamicGetWritesThrough(t *testing.T) {
	p := makeShape(t, Circle{Radius: 1})
	p.Get().Scale(3)
	assert.InDelta(t, 9*math.Pi, p.Get().Area(), 1e-9)
}

func TestPtr_ClonerMakesDeepCopies(t *testing.T) {
	square := Polygon{Vertices: []Vertex{{X: 0, Y: 0}, {X: 2, Y: 0}, {X: 2, Y: 2}, {X: 0, Y: 2}}}
	p := makeShape(t, square)

	c, err := p.Clone()
	require.NoError(t, err)
	defer c.Release()
	c.Get().Scale(3)

	assert.InDelta(t, 4.0, p.Get().Area(), 1e-9)
	assert.InDelta(t, 36.0, c.Get().Area(), 1e-9)

	want := Polygon{Vertices: []Vertex{{X: 0, Y: 0}, {X: 2, Y: 0}, {X: 2, Y: 2}, {X: 0, Y: 2}}}
	got := *(*Polygon)(p.Pointer())
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("original polygon changed (-want +got):\n%s", diff)
	}
}

func TestPtr_ClonePreservesType(t *testing.T) {
	p := makeShape(t, Triangle{Base: 3, Height: 4})

	c, err := p.Clone()
	require.NoError(t, err)
	defer c.Release()

	assert.Equal(t, reflect.TypeFor[Triangle](), c.ConcreteType())
	assert.Equal(t, p.Layout(), c.Layout())
	assert.Equal(t, "triangle", c.Get().Name())
	assert.InDelta(t, p.Get().Area(), c.Get().Area(), 1e-9)

	// And across generations.
	g, err := c.Clone()
	require.NoError(t, err)
	defer g.Release()
	assert.Equal(t, reflect.TypeFor[Triangle](), g.ConcreteType())
	assert.Equal(t, *(*token)(p.block), *(*token)(g.block))
}

func TestPtr_MoveLeavesSourceEmpty(t *testing.T) {
	ca := alloc.NewCounting(nil)
	p, err := Make[Shape](Rect{Len: 2.5, Breadth: 2}, WithAllocator(ca))
	require.NoError(t, err)

	q := p.Move()
	assert.True(t, p.IsEmpty())
	assert.InDelta(t, 5.0, q.Get().Area(), 1e-9)
	assert.Same(t, ca, q.Allocator())

	require.NoError(t, p.Release(), "destroying a moved-from container is a no-op")
	assert.Zero(t, ca.Frees())

	// A moved-from container can be reassigned.
	require.NoError(t, SetAs[Shape](p, Circle{Radius: 1}))
	assert.InDelta(t, math.Pi, p.Get().Area(), 1e-9)

	require.NoError(t, q.Release())
	require.NoError(t, p.Release())
	assert.Equal(t, int64(2), ca.Frees())
	assert.Zero(t, ca.Live())
	assert.Zero(t, ca.Rejected())
}

func TestPtr_ReassignmentChangesConcreteType(t *testing.T) {
	ca := alloc.NewCounting(nil)
	p, err := Make[Shape](Rect{Len: 1, Breadth: 1}, WithAllocator(ca))
	require.NoError(t, err)
	defer p.Release()

	assert.Equal(t, alloc.LayoutFor[dynBlock[Rect]]().Size, p.Size())

	require.NoError(t, SetAs[Shape](p, Circle{Radius: 2}))

	assert.Equal(t, reflect.TypeFor[Circle](), p.ConcreteType())
	assert.Equal(t, alloc.LayoutFor[dynBlock[Circle]]().Size, p.Size())
	assert.Less(t, p.Size(), alloc.LayoutFor[dynBlock[Rect]]().Size)
	assert.InDelta(t, 4*math.Pi, p.Get().Area(), 1e-9)

	assert.Equal(t, int64(2), ca.Allocs())
	assert.Equal(t, int64(1), ca.Frees(), "the rectangle block is freed")
	assert.Equal(t, 1, ca.Live())
}

func TestPtr_DynamicSetSameTypeReusesBlock(t *testing.T) {
	require.NoError(t, Register[Shape, *Rect]())

	ca := alloc.NewCounting(nil)
	p, err := Make[Shape](Rect{Len: 1, Breadth: 1}, WithAllocator(ca))
	require.NoError(t, err)
	defer p.Release()
	before := p.Pointer()

	require.NoError(t, SetAs[Shape](p, Rect{Len: 3, Breadth: 3}))
	assert.Equal(t, before, p.Pointer())
	assert.Equal(t, int64(1), ca.Allocs())

	// *Rect is a different concrete type from Rect.
	require.NoError(t, p.Set(&Rect{Len: 4, Breadth: 4}))
	assert.Equal(t, reflect.TypeFor[*Rect](), p.ConcreteType())

	require.NoError(t, p.Set(&Rect{Len: 5, Breadth: 5}))
	after := p.Pointer()
	require.NoError(t, p.Set(&Rect{Len: 6, Breadth: 6}))

	assert.NotEqual(t, before, after)
	assert.Equal(t, after, p.Pointer(), "same concrete type is assigned in place")
	assert.InDelta(t, 36.0, p.Get().Area(), 1e-9)
	assert.Equal(t, int64(2), ca.Allocs())
}

func TestPtr_RoundTripScenario(t *testing.T) {
	p, err := Make[Shape](Rect{Len: 2.5, Breadth: 2.0})
	require.NoError(t, err)
	assert.InDelta(t, 5.0, p.Get().Area(), 1e-9)

	require.NoError(t, SetAs[Shape](p, Circle{Radius: 2.0}))
	circleArea := math.Pi * 2.0 * 2.0
	assert.InDelta(t, circleArea, p.Get().Area(), 1e-9)

	c, err := p.Clone()
	require.NoError(t, err)
	assert.InDelta(t, circleArea, c.Get().Area(), 1e-9)

	require.NoError(t, p.Release())
	assert.InDelta(t, circleArea, c.Get().Area(), 1e-9, "copy outlives the original")
	require.NoError(t, c.Release())
}

func TestPtr_AllocatorFidelity(t *testing.T) {
	a := alloc.NewCounting(nil)
	b := alloc.NewCounting(nil)

	p, err := Make[Shape](Rect{Len: 1, Breadth: 2}, WithAllocator(a))
	require.NoError(t, err)

	// Copy: allocates from the source's allocator.
	c, err := p.Clone()
	require.NoError(t, err)
	assert.Same(t, a, c.Allocator())
	assert.Equal(t, int64(2), a.Allocs())

	// Plain assign: the target adopts the source's allocator; its old block goes
	// back to b.
	q, err := Make[Shape](Circle{Radius: 1}, WithAllocator(b))
	require.NoError(t, err)
	require.NoError(t, q.Assign(p))
	assert.Same(t, a, q.Allocator())
	assert.Equal(t, int64(1), b.Frees())
	assert.Equal(t, int64(3), a.Allocs())

	// Move-assign: the block and its allocator move together.
	r, err := Make[Shape](Triangle{Base: 1, Height: 1}, WithAllocator(b))
	require.NoError(t, err)
	require.NoError(t, r.AssignMove(q))
	assert.True(t, q.IsEmpty())
	assert.Same(t, a, r.Allocator())
	assert.Equal(t, int64(2), b.Frees())

	// Value assign keeps the container's allocator.
	require.NoError(t, SetAs[Shape](r, Circle{Radius: 3}))
	assert.Equal(t, int64(4), a.Allocs())

	for _, x := range []*Ptr[Shape]{p, c, q, r} {
		require.NoError(t, x.Release())
	}
	assert.Zero(t, a.Live())
	assert.Zero(t, b.Live())
	assert.Zero(t, a.Rejected())
	assert.Zero(t, b.Rejected())
	assert.Equal(t, a.Allocs(), a.Frees())
	assert.Equal(t, b.Allocs(), b.Frees())
}

func TestPtr_AssignIsAtomicOnFailure(t *testing.T) {
	f := &failingAllocator{Allocator: alloc.Default}
	src := makeShape(t, Rect{Len: 2, Breadth: 2}, WithAllocator(f))
	dst := makeShape(t, Circle{Radius: 1})

	f.fail = true
	err := dst.Assign(src)
	require.ErrorIs(t, err, errOutOfMemory)
	assert.Equal(t, reflect.TypeFor[Circle](), dst.ConcreteType(), "target unchanged")
	assert.InDelta(t, math.Pi, dst.Get().Area(), 1e-9)
	assert.Equal(t, alloc.Default, dst.Allocator())

	err = SetAs[Shape](src, Triangle{Base: 1, Height: 1})
	require.ErrorIs(t, err, errOutOfMemory)
	assert.InDelta(t, 4.0, src.Get().Area(), 1e-9, "Set failure leaves the old payload")

	_, err = src.Clone()
	require.ErrorIs(t, err, errOutOfMemory)

	_, err = New(1.0, WithAllocator(f))
	require.ErrorIs(t, err, errOutOfMemory)
}

func TestPtr_AssignEmptyAndSelf(t *testing.T) {
	ca := alloc.NewCounting(nil)
	p := makeShape(t, Rect{Len: 1, Breadth: 1}, WithAllocator(ca))

	require.NoError(t, p.Assign(p))
	require.NoError(t, p.AssignMove(p))
	assert.False(t, p.IsEmpty())

	err := p.Assign(Empty[Shape]())
	require.ErrorIs(t, err, ErrEmpty)
	assert.False(t, p.IsEmpty(), "failed assign leaves the target untouched")
	assert.Equal(t, "rectangle", p.Get().Name())
	assert.Same(t, ca, p.Allocator())
	assert.Zero(t, ca.Frees())

	// Taking over a moved-from container is allowed and empties the target.
	src := makeShape(t, Circle{Radius: 1})
	_ = src.Move().Release()
	require.NoError(t, p.AssignMove(src))
	assert.True(t, p.IsEmpty())
	assert.Equal(t, int64(1), ca.Frees())
	assert.Equal(t, alloc.Default, p.Allocator(), "adopted the moved-from source's allocator")
}

func TestPtr_ValuesAreCopiedOnStore(t *testing.T) {
	square := Polygon{Vertices: []Vertex{{X: 0, Y: 0}, {X: 2, Y: 0}, {X: 2, Y: 2}, {X: 0, Y: 2}}}

	p := makeShape(t, square)
	square.Vertices[2] = Vertex{X: 5, Y: 5}
	assert.InDelta(t, 4.0, p.Get().Area(), 1e-9, "dynamic store does not alias the argument")

	require.NoError(t, SetAs[Shape](p, square))
	square.Vertices[2] = Vertex{X: 2, Y: 2}
	assert.InDelta(t, 10.0, p.Get().Area(), 1e-9, "same-type reassignment copies too")

	s, err := New(square)
	require.NoError(t, err)
	defer s.Release()
	square.Vertices[0] = Vertex{X: -2, Y: 0}
	if diff := cmp.Diff([]Vertex{{X: 0, Y: 0}, {X: 2, Y: 0}, {X: 2, Y: 2}, {X: 0, Y: 2}}, s.Get().Vertices); diff != "" {
		t.Errorf("static payload aliases the argument (-want +got):\n%s", diff)
	}

	require.NoError(t, s.Set(square))
	square.Vertices[0] = Vertex{X: 0, Y: 0}
	assert.Equal(t, Vertex{X: -2, Y: 0}, s.Get().Vertices[0])
}

type marker struct{}

func TestPtr_ZeroSizePayloadsAreDistinctBlocks(t *testing.T) {
	ca := alloc.NewCounting(nil)
	p, err := New(marker{}, WithAllocator(ca))
	require.NoError(t, err)
	q, err := New(marker{}, WithAllocator(ca))
	require.NoError(t, err)

	assert.NotEqual(t, p.Pointer(), q.Pointer())
	assert.Equal(t, 2, ca.Live())

	require.NoError(t, p.Release())
	require.NoError(t, q.Release())
	assert.Zero(t, ca.Live())
	assert.Zero(t, ca.Rejected())
}

func TestPtr_Swap(t *testing.T) {
	a := alloc.NewCounting(nil)
	p := makeShape(t, Rect{Len: 1, Breadth: 1}, WithAllocator(a))
	q := makeShape(t, Circle{Radius: 1})

	p.Swap(q)
	assert.Equal(t, "circle", p.Get().Name())
	assert.Equal(t, "rectangle", q.Get().Name())
	assert.Same(t, a, q.Allocator())
	assert.Equal(t, alloc.Default, p.Allocator())
}

type unregisteredShape struct{ Rect }

func TestPtr_Errors(t *testing.T) {
	_, err := New[Shape](nil)
	require.ErrorIs(t, err, ErrNilValue)

	_, err = New[Shape](&unregisteredShape{})
	require.ErrorIs(t, err, ErrUnregistered)

	require.ErrorIs(t, Register[Shape, int](), ErrNotImplemented)
	require.ErrorIs(t, Register[Shape, Shape](), ErrNotImplemented)
	require.ErrorIs(t, Register[float64, Rect](), ErrNotInterface)

	_, err = Make[Shape](42)
	require.ErrorIs(t, err, ErrNotImplemented)

	fp := Empty[float64]()
	require.ErrorIs(t, SetAs(fp, "four"), ErrNotImplemented)
	require.NoError(t, SetAs(fp, 4.0))
	assert.Equal(t, 4.0, fp.Get())

	p := makeShape(t, Rect{Len: 1, Breadth: 1})
	assert.PanicsWithValue(t, ErrDynamic, func() { p.Ref() })
	assert.PanicsWithValue(t, ErrEmpty, func() { Empty[Shape]().Get() })
}

func TestPtr_NewWithRegisteredDynamicType(t *testing.T) {
	require.NoError(t, Register[Shape, *Triangle]())
	require.NoError(t, Register[Shape, *Triangle](), "registration is idempotent")

	p, err := New[Shape](&Triangle{Base: 3, Height: 4})
	require.NoError(t, err)
	defer p.Release()

	assert.True(t, p.Dynamic())
	assert.Equal(t, reflect.TypeFor[*Triangle](), p.ConcreteType())
	assert.InDelta(t, 6.0, p.Get().Area(), 1e-9)
}

func TestPtr_DestroyerRunsOnRelease(t *testing.T) {
	destroyed := 0
	p, err := New(tracked{ID: 1, destroyed: &destroyed})
	require.NoError(t, err)

	c, err := p.Clone()
	require.NoError(t, err)

	require.NoError(t, p.Set(tracked{ID: 2, destroyed: &destroyed}))
	assert.Zero(t, destroyed, "in-place assignment does not destroy")

	require.NoError(t, p.Release())
	assert.Equal(t, 1, destroyed)
	require.NoError(t, c.Release())
	assert.Equal(t, 2, destroyed)
	require.NoError(t, c.Release())
	assert.Equal(t, 2, destroyed, "second release is a no-op")
}

func TestPtr_BumpArena(t *testing.T) {
	ba, err := alloc.NewBump(alloc.BumpOptions{Pages: alloc.MmapPages()})
	require.NoError(t, err)
	defer ba.Close()

	p, err := Make[Shape](Rect{Len: 2.5, Breadth: 2}, WithAllocator(ba))
	require.NoError(t, err)
	c, err := p.Clone()
	require.NoError(t, err)
	require.NoError(t, SetAs[Shape](p, Circle{Radius: 2}))

	assert.InDelta(t, 4*math.Pi, p.Get().Area(), 1e-9)
	assert.InDelta(t, 5.0, c.Get().Area(), 1e-9)
	require.NoError(t, p.Release())
	require.NoError(t, c.Release())
	assert.Zero(t, ba.Stats().InUse)

	_, err = Make[Shape](Polygon{}, WithAllocator(ba))
	require.ErrorIs(t, err, alloc.ErrPointers)
	_, err = New("text", WithAllocator(ba))
	require.ErrorIs(t, err, alloc.ErrPointers)
}

func TestPtr_FastArenaReusesFreedBlocks(t *testing.T) {
	fa, err := alloc.NewFast(alloc.FastOptions{})
	require.NoError(t, err)
	defer fa.Close()

	p, err := Make[Shape](Rect{Len: 1, Breadth: 1}, WithAllocator(fa))
	require.NoError(t, err)
	rect := p.Pointer()

	require.NoError(t, SetAs[Shape](p, Circle{Radius: 1}))
	assert.Equal(t, 1, fa.FreeCells(), "rectangle block returned to the free list")

	q, err := Make[Shape](Rect{Len: 2, Breadth: 2}, WithAllocator(fa))
	require.NoError(t, err)
	assert.Equal(t, rect, q.Pointer())
	assert.Equal(t, int64(1), fa.Stats().Reused)

	require.NoError(t, p.Release())
	require.NoError(t, q.Release())
	assert.Zero(t, fa.Stats().InUse)
}

func TestPtr_ReleaseThroughWrongAllocatorIsReported(t *testing.T) {
	a := alloc.NewCounting(nil)
	b := alloc.NewCounting(nil)
	p, err := Make[Shape](Rect{Len: 1, Breadth: 1}, WithAllocator(a))
	require.NoError(t, err)

	// Simulate a block/allocator mismatch.
	p.alloc = b
	err = p.Release()
	require.ErrorIs(t, err, alloc.ErrForeignBlock)
	assert.Equal(t, 1, a.Live())
	assert.Equal(t, int64(1), b.Rejected())
}
