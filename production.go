//go:build !debug

package tlsf

import "unsafe"

// production builds keep the hot path free of hidden work: no
// assertions, no poisoning, no zeroing.
const debugAsserts = false

func poisonblock(ptr unsafe.Pointer, size uintptr) {
}
