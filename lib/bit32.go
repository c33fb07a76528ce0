package lib

import "math/bits"

// Bit32 alias for uint32, provides bit twiddling methods on 32-bit number.
type Bit32 uint32

// Findfirstset return the index of the least significant set bit,
// -1 when no bit is set.
func (b Bit32) Findfirstset() int {
	if b == 0 {
		return -1
	}
	return bits.TrailingZeros32(uint32(b))
}

// Findlastset return the index of the most significant set bit,
// -1 when no bit is set.
func (b Bit32) Findlastset() int {
	return 31 - bits.LeadingZeros32(uint32(b))
}

// Setbit return a copy of b with the nth bit set.
func (b Bit32) Setbit(n uint) Bit32 {
	return b | (1 << n)
}

// Clearbit return a copy of b with the nth bit cleared.
func (b Bit32) Clearbit(n uint) Bit32 {
	return b &^ (1 << n)
}

func (b Bit32) Ones() int8 {
	return int8(bits.OnesCount32(uint32(b)))
}

func (b Bit32) Zeros() int8 {
	return 32 - b.Ones()
}
