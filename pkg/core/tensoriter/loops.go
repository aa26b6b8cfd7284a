// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package tensoriter

import (
	"slices"

	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
)

// Loop1D is a kernel over a 1D strip of n elements. data holds one pointer per operand, and strides the
// byte stride of each operand along the strip.
type Loop1D func(data []Pointer, strides []int, n int)

// Loop2D is a kernel over a 2D block of size1 strips of size0 elements. data holds one pointer per operand.
// strides holds the byte strides of each operand along the strip (first NTensors() values), followed by
// the byte strides of each operand from one strip to the next.
type Loop2D func(data []Pointer, strides []int, size0, size1 int)

// Loop2DFrom1D adapts a Loop1D kernel to be called as a Loop2D, calling it once per strip.
func Loop2DFrom1D(loop Loop1D) Loop2D {
	return func(data []Pointer, strides []int, size0, size1 int) {
		ntensors := len(data)
		ptrs := slices.Clone(data)
		outer := strides[ntensors : 2*ntensors]
		for i := range size1 {
			if i > 0 {
				for arg := range ptrs {
					ptrs[arg] = ptrs[arg].Add(outer[arg])
				}
			}
			loop(ptrs, strides[:ntensors], size0)
		}
	}
}

// LoopStrides returns the byte strides of all operands, from the fastest dimension to the slowest: for each
// dimension the stride of every operand. It holds at least the two dimensions a Loop2D needs, padded with zeros.
func (it *Iterator) LoopStrides() []int {
	ntensors := len(it.operands)
	strides := make([]int, 0, max(len(it.shape), 2)*ntensors)
	for dim := len(it.shape) - 1; dim >= 0; dim-- {
		for _, op := range it.operands {
			strides = append(strides, op.StrideBytes[dim])
		}
	}
	for len(strides) < 2*ntensors {
		strides = append(strides, 0)
	}
	return strides
}

// BasePtrs returns the pointer to the first element of each operand in the current view.
func (it *Iterator) BasePtrs() []Pointer {
	ptrs := make([]Pointer, len(it.operands))
	for arg, op := range it.operands {
		ptrs[arg] = op.Data
	}
	return ptrs
}

// DataPtrs returns base moved to the position given by indices, in iteration order.
// If there are fewer indices than dimensions, the missing ones are taken as 0.
func (it *Iterator) DataPtrs(base []Pointer, indices []int) []Pointer {
	ptrs := slices.Clone(base)
	for arg := range ptrs {
		strides := it.operands[arg].StrideBytes
		offset := 0
		for dim, index := range indices {
			offset += index * strides[dim]
		}
		ptrs[arg] = ptrs[arg].Add(offset)
	}
	return ptrs
}

// SerialForEach calls loop over the linear range [begin, end) of the iteration, in the current goroutine.
func (it *Iterator) SerialForEach(loop Loop2D, begin, end int) {
	if end <= begin {
		return
	}
	base := it.BasePtrs()
	strides := it.LoopStrides()
	if len(it.shape) <= 1 {
		var indices []int
		if len(it.shape) == 1 {
			indices = []int{begin}
		}
		loop(it.DataPtrs(base, indices), strides, end-begin, 1)
		return
	}
	counter := NewDimCounter(it.shape, begin, end)
	for !counter.IsDone() {
		step0, step1 := counter.Max2DStep()
		loop(it.DataPtrs(base, counter.Values()), strides, step0, step1)
		counter.Increment(step0, step1)
	}
}

// ForEach calls loop over all the elements of the iteration, in parallel chunks of at least grainSize elements
// if there is more than one worker available. Use GrainSize as the default.
//
// A panic in loop is returned as an error.
func (it *Iterator) ForEach(loop Loop2D, grainSize int) error {
	numel := it.Numel()
	if numel == 0 {
		return nil
	}
	if numel < grainSize || it.pool.NumWorkers() == 1 {
		return tryCall(func() { it.SerialForEach(loop, 0, numel) })
	}
	return it.pool.ParallelFor(0, numel, grainSize, func(begin, end int) error {
		it.SerialForEach(loop, begin, end)
		return nil
	})
}

// ForEach1D is like ForEach, for a Loop1D kernel.
func (it *Iterator) ForEach1D(loop Loop1D, grainSize int) error {
	return it.ForEach(Loop2DFrom1D(loop), grainSize)
}

// tryCall runs fn and returns a panic as an error.
func tryCall(fn func()) error {
	exception := exceptions.Try(fn)
	if exception == nil {
		return nil
	}
	if err, ok := exception.(error); ok {
		return err
	}
	return errors.Errorf("%v", exception)
}
