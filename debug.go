//go:build debug

package tlsf

import "unsafe"

import "github.com/LiemDQ/tlsf-pmr/lib"

// debug builds arm the internal assertions and scribble over freed
// payloads so stale readers trip fast.
const debugAsserts = true

var poolblkinit = make([]byte, 1024)

func init() {
	for i := 0; i < len(poolblkinit); i++ {
		poolblkinit[i] = 0xde
	}
}

func poisonblock(ptr unsafe.Pointer, size uintptr) {
	for size > 0 {
		n := uintptr(len(poolblkinit))
		if size < n {
			n = size
		}
		lib.Memcpy(ptr, unsafe.Pointer(&poolblkinit[0]), int(n))
		ptr = unsafe.Add(ptr, n)
		size -= n
	}
}
