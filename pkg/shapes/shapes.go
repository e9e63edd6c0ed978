// Package shapes provides small area-computing types used to exercise valueptr
// containers in tests, benchmarks and the valuectl demo.
package shapes

import (
	"fmt"
	"math"
	"slices"
)

// Numeric is the set of scalar types shapes can be measured in.
type Numeric interface {
	~float32 | ~float64
}

// Shape is anything with an area that can be scaled in place.
type Shape[N Numeric] interface {
	Area() N
	Scale(k N)
	Name() string
}

// Rectangle is an axis-aligned rectangle.
type Rectangle[N Numeric] struct {
	Len, Breadth N
}

func (r Rectangle[N]) Area() N        { return r.Len * r.Breadth }
func (r *Rectangle[N]) Scale(k N)     { r.Len *= k; r.Breadth *= k }
func (r Rectangle[N]) Name() string   { return "rectangle" }
func (r Rectangle[N]) String() string { return fmt.Sprintf("rectangle(%v x %v)", r.Len, r.Breadth) }

// Circle is a circle of the given radius.
type Circle[N Numeric] struct {
	Radius N
}

func (c Circle[N]) Area() N        { return N(math.Pi) * c.Radius * c.Radius }
func (c *Circle[N]) Scale(k N)     { c.Radius *= k }
func (c Circle[N]) Name() string   { return "circle" }
func (c Circle[N]) String() string { return fmt.Sprintf("circle(r=%v)", c.Radius) }

// Triangle is a triangle given by base and height.
type Triangle[N Numeric] struct {
	Base, Height N
}

func (t Triangle[N]) Area() N        { return t.Base * t.Height / 2 }
func (t *Triangle[N]) Scale(k N)     { t.Base *= k; t.Height *= k }
func (t Triangle[N]) Name() string   { return "triangle" }
func (t Triangle[N]) String() string { return fmt.Sprintf("triangle(%v, %v)", t.Base, t.Height) }

// Point is a vertex of a Polygon.
type Point[N Numeric] struct {
	X, Y N
}

// Polygon is a simple polygon. Its vertices live in a slice, so copies must go
// through Clone to stay independent.
type Polygon[N Numeric] struct {
	Vertices []Point[N]
}

// Area uses the shoelace formula.
func (p Polygon[N]) Area() N {
	var sum N
	for i, a := range p.Vertices {
		b := p.Vertices[(i+1)%len(p.Vertices)]
		sum += a.X*b.Y - b.X*a.Y
	}
	if sum < 0 {
		sum = -sum
	}
	return sum / 2
}

func (p *Polygon[N]) Scale(k N) {
	for i := range p.Vertices {
		p.Vertices[i].X *= k
		p.Vertices[i].Y *= k
	}
}

func (p Polygon[N]) Name() string { return "polygon" }

// Clone returns a polygon with its own vertex slice.
func (p Polygon[N]) Clone() Polygon[N] {
	return Polygon[N]{Vertices: slices.Clone(p.Vertices)}
}
