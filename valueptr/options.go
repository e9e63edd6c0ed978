package valueptr

import "github.com/joshuapare/valuekit/valueptr/alloc"

// Option configures a container at construction.
type Option func(*options)

type options struct {
	allocator alloc.Allocator
}

// WithAllocator makes the container allocate, clone and free its storage through a.
// A nil allocator selects alloc.Default.
func WithAllocator(a alloc.Allocator) Option {
	return func(o *options) { o.allocator = a }
}

func buildOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
