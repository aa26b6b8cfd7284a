// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package tensoriter

import (
	"testing"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/tensoriter/pkg/core/devices"
	"github.com/gomlx/tensoriter/pkg/core/dtypes"
	"github.com/gomlx/tensoriter/pkg/core/tensors"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit(t *testing.T) {
	it := broadcastIterator(t)
	assert.True(t, it.CanUse32BitIndexing())
	dim := it.GetDimToSplit()
	assert.Equal(t, 0, dim)

	first := it.Split(dim)
	assert.Equal(t, []int{1, 4}, first.Shape())
	assert.Equal(t, []int{0, 0}, first.ViewOffsets())
	assert.Equal(t, []int{2, 4}, it.Shape())
	assert.Equal(t, []int{1, 0}, it.ViewOffsets())
	assert.Equal(t, 16, it.DataPtr(0).Offset)
	assert.True(t, first.IsFinalOutput())
	assert.False(t, it.ShouldAccumulate())

	err := exceptions.TryCatch[error](func() {
		one := first.Clone()
		one.Narrow(1, 0, 1)
		one.GetDimToSplit()
	})
	require.ErrorIs(t, err, ErrInvalidQuery)
}

// TestSplitCoversAll splits an iteration recursively down to single elements, and checks every element
// is visited exactly once.
func TestSplitCoversAll(t *testing.T) {
	it := broadcastIterator(t)
	visits := make([][]int, 3)
	for i := range visits {
		visits[i] = make([]int, 4)
	}
	stack := []*Iterator{it}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if top.Numel() == 1 {
			offsets := top.ViewOffsets()
			visits[offsets[0]][offsets[1]]++
			// The data pointers follow the view offsets.
			assert.Equal(t, offsets[0]*16+offsets[1]*4, top.DataPtr(0).Offset)
			continue
		}
		first := top.Split(top.GetDimToSplit())
		stack = append(stack, first, top)
	}
	for row := range visits {
		assert.Equal(t, []int{1, 1, 1, 1}, visits[row])
	}
}

func TestSplitReduction(t *testing.T) {
	a := tensors.FromFlat(iota32(20), 4, 5)
	out := tensors.Empty(dtypes.Float32, devices.Host, 4, 1)
	it := must.M1(ReduceOp(out, a))

	// Splitting a non-reduced dimension keeps the flags.
	other := it.Clone()
	first := other.Split(0)
	assert.True(t, first.IsFinalOutput())
	assert.False(t, first.ShouldAccumulate())
	assert.True(t, other.IsFinalOutput())
	assert.False(t, other.ShouldAccumulate())

	// Splitting the reduced dimension: the first part isn't final, and the second accumulates on it.
	first = it.Split(1)
	assert.False(t, first.IsFinalOutput())
	assert.False(t, first.ShouldAccumulate())
	assert.True(t, it.IsFinalOutput())
	assert.True(t, it.ShouldAccumulate())
	first.SerialForEach(sumFloat32, 0, first.Numel())
	it.SerialForEach(sumFloat32, 0, it.Numel())
	assert.Equal(t, []float32{10, 35, 60, 85}, tensors.ToFlat[float32](out))
}

func TestWith32BitIndexing(t *testing.T) {
	// Small iterations are yielded as is.
	it := broadcastIterator(t)
	count := 0
	for sub := range it.With32BitIndexing() {
		count++
		assert.Equal(t, it.Shape(), sub.Shape())
	}
	assert.Equal(t, 1, count)

	// A broadcast scalar over 2^32 elements: no memory is addressed, but the number of elements
	// doesn't fit 32 bits.
	const side = 1 << 16
	huge := tensors.Scalar[float32](1).Unsqueeze(0).Unsqueeze(0).Expand(side, side)
	it = must.M1(NewBuilder().AddInput(huge).Build())
	assert.Equal(t, []int{side * side}, it.Shape())
	assert.False(t, it.CanUse32BitIndexing())

	var offsets, sizes []int
	for sub := range it.With32BitIndexing() {
		require.True(t, sub.CanUse32BitIndexing())
		offsets = append(offsets, sub.ViewOffsets()[0])
		sizes = append(sizes, sub.Numel())
	}
	quarter := side * side / 4
	assert.Equal(t, []int{0, quarter, 2 * quarter, 3 * quarter}, offsets)
	assert.Equal(t, []int{quarter, quarter, quarter, quarter}, sizes)
	assert.Equal(t, []int{side * side}, it.Shape(), "the iterator itself is not changed")

	// Stopping early.
	count = 0
	for range it.With32BitIndexing() {
		count++
		break
	}
	assert.Equal(t, 1, count)
}
