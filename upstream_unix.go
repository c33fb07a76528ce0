//go:build unix

package tlsf

import "fmt"
import "unsafe"

import "github.com/LiemDQ/tlsf-pmr/api"
import "golang.org/x/sys/unix"

// mmapUpstream services regions from anonymous memory maps, keeping the
// pool outside the go heap. Regions are page aligned, which satisfies
// any alignment up to the page size.
type mmapUpstream struct {
	regions map[uintptr][]byte
}

// NewMmapUpstream create an upstream provider over anonymous mmap.
func NewMmapUpstream() api.Upstream {
	return &mmapUpstream{regions: make(map[uintptr][]byte)}
}

// Allocate implement api.Upstream{} interface.
func (up *mmapUpstream) Allocate(n, align int64) (unsafe.Pointer, error) {
	if n <= 0 || align <= 0 || align&(align-1) != 0 {
		return nil, fmt.Errorf("mmap upstream: bad request %v bytes, %v align", n, align)
	}
	buf, err := unix.Mmap(
		-1, 0, int(n), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("mmap upstream: %w", err)
	}
	ptr := unsafe.Pointer(&buf[0])
	up.regions[uintptr(ptr)] = buf
	return ptr, nil
}

// Release implement api.Upstream{} interface.
func (up *mmapUpstream) Release(ptr unsafe.Pointer, n, align int64) {
	if buf, ok := up.regions[uintptr(ptr)]; ok {
		delete(up.regions, uintptr(ptr))
		unix.Munmap(buf)
	}
}
