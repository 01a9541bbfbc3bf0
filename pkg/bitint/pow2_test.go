// SPDX-License-Identifier: MIT
package bitint

import (
	"fmt"
	"testing"
)

func TestIsPowerOfTwo(t *testing.T) {
	tests := []struct {
		n        int
		expected bool
	}{
		{-2, false},     // Negative number
		{0, false},      // Zero
		{1, true},       // One
		{8, true},       // Power of two
		{10, false},     // Not power of two
		{1 << 20, true}, // Large power of two
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d→%t", tt.n, tt.expected), func(t *testing.T) {
			result := IsPowerOfTwo(tt.n)
			if result != tt.expected {
				t.Errorf("IsPowerOfTwo(%d) = %v, expected %v", tt.n, result, tt.expected)
			}
		})
	}
}

func TestFromOrder(t *testing.T) {
	tests := []struct {
		order    int
		expected int
	}{
		{-1, 0},
		{0, 1},
		{2, 4},
		{8, 256},
		{12, 4096},
		{16, 65536},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d→%d", tt.order, tt.expected), func(t *testing.T) {
			if got := FromOrder(tt.order); got != tt.expected {
				t.Errorf("FromOrder(%d) = %d, expected %d", tt.order, got, tt.expected)
			}
		})
	}
}

func TestOrder(t *testing.T) {
	tests := []struct {
		n     int
		order int
		ok    bool
	}{
		{1, 0, true},
		{2, 1, true},
		{1024, 10, true},
		{4096, 12, true},
		{0, 0, false},
		{-4, 0, false},
		{1000, 0, false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d", tt.n), func(t *testing.T) {
			order, ok := Order(tt.n)
			if ok != tt.ok || order != tt.order {
				t.Errorf("Order(%d) = (%d, %v), expected (%d, %v)", tt.n, order, ok, tt.order, tt.ok)
			}
		})
	}

	// Round trip over every supported frame order.
	for order := 0; order <= 16; order++ {
		got, ok := Order(FromOrder(order))
		if !ok || got != order {
			t.Errorf("Order(FromOrder(%d)) = (%d, %v)", order, got, ok)
		}
	}
}

func BenchmarkOrder(b *testing.B) {
	var i int
	b.ReportAllocs()
	for b.Loop() {
		Order(1 << (i % 16))
		i++
	}
}
