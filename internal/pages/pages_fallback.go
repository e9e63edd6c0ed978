//go:build !(linux || darwin || freebsd)

package pages

// Mmap falls back to heap pages where anonymous mappings are not wired up.
func Mmap() Source { return Heap }

// Mapped reports whether Mmap returns real mappings on this platform.
const Mapped = false
