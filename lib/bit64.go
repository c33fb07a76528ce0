package lib

import "math/bits"

// Bit64 alias for uint64, provides bit twiddling methods on 64-bit number.
// Size words of any width promote to Bit64 before scanning.
type Bit64 uint64

// Findfirstset return the index of the least significant set bit,
// -1 when no bit is set.
func (b Bit64) Findfirstset() int {
	if b == 0 {
		return -1
	}
	return bits.TrailingZeros64(uint64(b))
}

// Findlastset return the index of the most significant set bit,
// -1 when no bit is set.
func (b Bit64) Findlastset() int {
	return 63 - bits.LeadingZeros64(uint64(b))
}

func (b Bit64) Ones() int8 {
	return int8(bits.OnesCount64(uint64(b)))
}
