package tlsf

import "fmt"
import "unsafe"

import "github.com/LiemDQ/tlsf-pmr/api"
import "github.com/LiemDQ/tlsf-pmr/lib"

// heapUpstream services regions from the go heap, the default provider.
// Backing slices are pinned in a map until released, so the collector
// keeps every outstanding region alive.
type heapUpstream struct {
	regions map[uintptr][]byte
}

// NewHeapUpstream create an upstream provider over the go heap.
func NewHeapUpstream() api.Upstream {
	return &heapUpstream{regions: make(map[uintptr][]byte)}
}

// Allocate implement api.Upstream{} interface.
func (up *heapUpstream) Allocate(n, align int64) (unsafe.Pointer, error) {
	if n <= 0 || align <= 0 || align&(align-1) != 0 {
		return nil, fmt.Errorf("heap upstream: bad request %v bytes, %v align", n, align)
	}
	// the region starts a full stride into the slice, never at its
	// base: a pool places its primary block header one word below
	// the region, which must stay inside the backing array.
	buf := make([]byte, n+align)
	base := uintptr(unsafe.Pointer(&buf[0]))
	off := lib.Alignup(base+1, uintptr(align)) - base
	ptr := unsafe.Pointer(&buf[off])
	up.regions[uintptr(ptr)] = buf
	return ptr, nil
}

// Release implement api.Upstream{} interface.
func (up *heapUpstream) Release(ptr unsafe.Pointer, n, align int64) {
	delete(up.regions, uintptr(ptr))
}

// newupstream pick a region provider by name, the default is the go
// heap.
func newupstream(kind string) api.Upstream {
	switch kind {
	case "mmap":
		return NewMmapUpstream()
	default:
		return NewHeapUpstream()
	}
}
