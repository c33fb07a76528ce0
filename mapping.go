package tlsf

import "github.com/LiemDQ/tlsf-pmr/lib"

// flssize scan a size word, promoting to 64 bits so sizes above 2^32
// scan correctly on 64-bit targets.
func flssize(size uintptr) int {
	return lib.Bit64(size).Findlastset()
}

// mappinginsert compute the exact (fl, sl) class of a block size.
func mappinginsert(size uintptr) (int, int) {
	if size < smallBlockSize {
		return 0, int(size / (smallBlockSize / slIndexCount))
	}
	t := flssize(size)
	sl := int(size>>(uint(t)-slIndexCountLog2)) ^ slIndexCount
	fl := t - int(flIndexShift-1)
	return fl, sl
}

// mappingsearch round size up to the width of its second-level class
// before mapping, so that any block found on the resulting list is
// guaranteed to satisfy the request.
func mappingsearch(size uintptr) (int, int) {
	if size >= smallBlockSize {
		round := (uintptr(1) << (uint(flssize(size)) - slIndexCountLog2)) - 1
		size += round
	}
	return mappinginsert(size)
}
