/*
Package bitint provides the power-of-two helpers used to size STFT frames
and hops. Frame sizes and overlap factors are configured as orders
(exponents), so most callers convert between an order and its size.

Design Principles:
- Zero Allocations: All operations use stack memory only
- Predictable Performance: O(1) constant time operations
- Real-Time Safe: No locks, syscalls, or blocking operations

Usage:

	frameSize := bitint.FromOrder(11)     // 2048
	order, ok := bitint.Order(frameSize)  // 11, true
	hop := bitint.FromOrder(11 - 2)       // 512 for 4x overlap

----------------------------------------------------------------------

What this code does:

	Order reads the exponent straight off the single set bit of a
	power of two:

	- For input 2048: 1000_0000_0000, bits.TrailingZeros = 11
	- For input 2047: more than one bit set, rejected by IsPowerOfTwo
*/
package bitint

import "math/bits"

// IsPowerOfTwo checks if n is a power of 2 using bit manipulation.
// The expression (n & (n-1)) == 0 works because powers of 2 have exactly
// one bit set.
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}

// FromOrder returns 2^order. Negative orders return 0.
func FromOrder(order int) int {
	if order < 0 || order >= bits.UintSize-1 {
		return 0
	}
	return 1 << order
}

// Order returns log2(n) for an exact power of two. The second result is
// false when n is not a positive power of two.
func Order(n int) (int, bool) {
	if !IsPowerOfTwo(n) {
		return 0, false
	}
	return bits.TrailingZeros(uint(n)), true
}
