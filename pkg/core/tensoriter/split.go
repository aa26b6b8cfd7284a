// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package tensoriter

import (
	"iter"
	"math"

	"k8s.io/klog/v2"
)

// CanUse32BitIndexing returns whether the number of elements, and the largest byte offset reached in
// every operand, fit in a signed 32-bit integer.
func (it *Iterator) CanUse32BitIndexing() bool {
	if it.Numel() > math.MaxInt32 {
		return false
	}
	for _, op := range it.operands {
		maxOffset := 1
		for dim, size := range it.shape {
			stride := op.StrideBytes[dim]
			if stride < 0 {
				stride = -stride
			}
			maxOffset += (size - 1) * stride
		}
		if maxOffset > math.MaxInt32 {
			return false
		}
	}
	return true
}

// GetDimToSplit returns the dimension that spans the largest byte range in any of the operands. Dimensions
// with less than 2 elements are never selected.
func (it *Iterator) GetDimToSplit() int {
	if it.Numel() < 2 {
		invalidQueryf("can't split an iteration over %d elements", it.Numel())
	}
	best, maxExtent := -1, -1
	for dim := len(it.shape) - 1; dim >= 0; dim-- {
		size := it.shape[dim]
		if size < 2 {
			continue
		}
		for _, op := range it.operands {
			stride := op.StrideBytes[dim]
			if stride < 0 {
				stride = -stride
			}
			if extent := (size - 1) * stride; extent > maxExtent {
				best, maxExtent = dim, extent
			}
		}
	}
	return best
}

// Split the iteration along dim in two halves: the first one is returned, and the iterator is narrowed to
// the second one.
//
// If dim is reduced, the first half doesn't produce the final value of the outputs, and the second one
// accumulates on the partial results of the first: the returned iterator must run first.
func (it *Iterator) Split(dim int) *Iterator {
	it.checkDim(dim)
	size := it.shape[dim]
	if size < 2 {
		invalidQueryf("can't split dimension %d of size %d", dim, size)
	}
	reduced := it.IsDimReduced(dim)
	first := it.Clone()
	copySize := size / 2
	first.Narrow(dim, 0, copySize)
	first.finalOutput = first.finalOutput && !reduced
	it.Narrow(dim, copySize, size-copySize)
	it.accumulate = it.accumulate || reduced
	return first
}

// With32BitIndexing returns a sequence of sub-iterators that together cover the iteration exactly once,
// each satisfying CanUse32BitIndexing. If the iterator itself satisfies it, it is the only one yielded.
//
// The iterator is not modified: the sub-iterators are narrowed clones. For reductions the sub-iterators
// over the same outputs are yielded in order, so they must be run sequentially.
func (it *Iterator) With32BitIndexing() iter.Seq[*Iterator] {
	return func(yield func(*Iterator) bool) {
		stack := []*Iterator{it.Clone()}
		for len(stack) > 0 {
			top := stack[len(stack)-1]
			if top.CanUse32BitIndexing() {
				stack = stack[:len(stack)-1]
				if !yield(top) {
					return
				}
				continue
			}
			dim := top.GetDimToSplit()
			klog.V(2).Infof("tensoriter: splitting dimension %d of shape %v for 32-bit indexing", dim, top.shape)
			stack = append(stack, top.Split(dim))
		}
	}
}
