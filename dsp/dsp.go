// Package dsp provides the signal processing stages that turn a raw radar frame into a range.
package dsp

import (
	"golang.org/x/exp/constraints"
)

type Number interface {
	constraints.Integer | constraints.Float
}

// Block represents a block of samples that are processed as one unit.
type Block[T Number] []T

// Size returns the blocksize.
func (b Block[T]) Size() int {
	return len(b)
}

// Sum of all values in this block.
func (b Block[T]) Sum() T {
	var sum T
	for _, v := range b {
		sum += v
	}
	return sum
}

// ZeroFrom sets all values from the given index on to zero.
func (b Block[T]) ZeroFrom(from int) {
	if from < 0 {
		from = 0
	}
	if from >= len(b) {
		return
	}
	clear(b[from:])
}

// Mode returns the most frequent value of the given values. If several values are equally frequent,
// the one that was encountered first wins. Mode returns false for an empty slice.
func Mode[T comparable](values []T) (T, bool) {
	var result T
	if len(values) == 0 {
		return result, false
	}

	counts := make(map[T]int, len(values))
	maxCount := 0
	for _, v := range values {
		counts[v]++
	}
	for _, v := range values {
		if counts[v] > maxCount {
			maxCount = counts[v]
			result = v
		}
	}
	return result, true
}
