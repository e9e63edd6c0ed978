//go:build linux || darwin || freebsd

package pages

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

type mmapSource struct{}

// Mmap returns a Source that maps anonymous private memory outside the Go heap.
// The GC never scans these pages, so only pointer-free values may live in them.
func Mmap() Source { return mmapSource{} }

func (mmapSource) Get(size int) ([]byte, error) {
	if size <= 0 {
		return nil, ErrSize
	}
	size = RoundUp(size, unix.Getpagesize())
	page, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("pages: mmap %d bytes: %w", size, err)
	}
	return page, nil
}

func (mmapSource) Put(page []byte) error {
	if len(page) == 0 {
		return nil
	}
	err := unix.Munmap(page)
	if errors.Is(err, unix.EINVAL) {
		// Treat double-unmap as no-op for callers.
		return nil
	}
	return err
}

// Mapped reports whether Mmap returns real mappings on this platform.
const Mapped = true
