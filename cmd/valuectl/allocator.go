package main

import (
	"fmt"
	"strings"

	"github.com/joshuapare/valuekit/valueptr/alloc"
)

// allocatorNames lists the values accepted by --allocator.
var allocatorNames = []string{"heap", "bump", "fast", "mmap"}

// arena is implemented by the page-backed allocators.
type arena interface {
	alloc.Allocator
	Stats() alloc.Stats
	Close() error
}

// openAllocator builds the allocator selected by name. The returned arena is nil
// for the heap allocator.
func openAllocator(name string, pageSize int) (alloc.Allocator, arena, error) {
	switch strings.ToLower(name) {
	case "heap", "":
		return alloc.Default, nil, nil
	case "bump":
		ba, err := alloc.NewBump(alloc.BumpOptions{PageSize: pageSize})
		if err != nil {
			return nil, nil, err
		}
		return ba, ba, nil
	case "fast":
		fa, err := alloc.NewFast(alloc.FastOptions{PageSize: pageSize})
		if err != nil {
			return nil, nil, err
		}
		return fa, fa, nil
	case "mmap":
		fa, err := alloc.NewFast(alloc.FastOptions{Pages: alloc.MmapPages(), PageSize: pageSize})
		if err != nil {
			return nil, nil, err
		}
		return fa, fa, nil
	default:
		return nil, nil, fmt.Errorf(
			"unknown allocator %q (want one of %s)", name, strings.Join(allocatorNames, ", "))
	}
}
