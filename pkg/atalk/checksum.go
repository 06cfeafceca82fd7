package atalk

import "math/bits"

// Checksum computes the DDP checksum: a running sum rotated left by one
// bit after each byte is folded in. A result of zero is reserved to mean
// "unchecked", so it is reported as 0xFFFF instead — callers must never
// store a literal zero for a checksum that was actually computed.
func Checksum(data []byte) uint16 {
	var sum uint16
	for _, b := range data {
		sum = bits.RotateLeft16(sum+uint16(b), 1)
	}
	if sum == 0 {
		return 0xFFFF
	}
	return sum
}
