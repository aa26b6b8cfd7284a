// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package tensoriter

import (
	"strings"
	"sync/atomic"
	"testing"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/tensoriter/pkg/core/dtypes"
	"github.com/gomlx/tensoriter/pkg/core/tensors"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
)

// broadcastIterator returns an iterator for out(3, 4) = a(3, 1) + b(1, 4), which can't be coalesced.
func broadcastIterator(t *testing.T) *Iterator {
	a := tensors.FromFlat([]float32{1, 2, 3}, 3, 1)
	b := tensors.FromFlat([]float32{10, 20, 30, 40}, 1, 4)
	it, err := BinaryOp(nil, a, b, false)
	require.NoError(t, err)
	return it
}

func TestDimCounter(t *testing.T) {
	c := NewDimCounter([]int{2, 3, 4}, 5, 24)
	assert.Equal(t, []int{0, 1, 1}, c.Values())
	step0, step1 := c.Max2DStep()
	assert.Equal(t, []int{3, 1}, []int{step0, step1})
	c.Increment(step0, step1)
	assert.Equal(t, []int{0, 2, 0}, c.Values())
	assert.Equal(t, 8, c.Offset())

	step0, step1 = c.Max2DStep()
	assert.Equal(t, []int{4, 1}, []int{step0, step1})
	c.Increment(step0, step1)
	assert.Equal(t, []int{1, 0, 0}, c.Values())

	// At the start of a row, it takes full rows.
	step0, step1 = c.Max2DStep()
	assert.Equal(t, []int{4, 3}, []int{step0, step1})
	c.Increment(step0, step1)
	assert.True(t, c.IsDone())

	// Steps cover every position exactly once.
	shape := []int{3, 5, 7}
	for _, r := range [][2]int{{0, 105}, {4, 60}, {33, 34}, {13, 99}} {
		c = NewDimCounter(shape, r[0], r[1])
		visited := 0
		for !c.IsDone() {
			values := c.Values()
			assert.Equal(t, r[0]+visited, values[0]*35+values[1]*7+values[2])
			step0, step1 = c.Max2DStep()
			require.Positive(t, step0*step1)
			visited += step0 * step1
			c.Increment(step0, step1)
		}
		assert.Equal(t, r[1]-r[0], visited)
	}

	// Scalars.
	c = NewDimCounter(nil, 0, 1)
	step0, step1 = c.Max2DStep()
	assert.Equal(t, []int{1, 1}, []int{step0, step1})
	c.Increment(step0, step1)
	assert.True(t, c.IsDone())
}

func TestSerialForEachRange(t *testing.T) {
	it := broadcastIterator(t)
	it.SerialForEach(addFloat32, 5, 11)
	assert.Equal(t, []float32{0, 0, 0, 0, 0, 22, 32, 42, 13, 23, 33, 0}, tensors.ToFlat[float32](it.Output(0)))
}

func TestLoopStrides(t *testing.T) {
	it := broadcastIterator(t)
	// Fastest dimension first.
	assert.Equal(t, []int{4, 0, 4, 16, 4, 0}, it.LoopStrides())
	ptrs := it.DataPtrs(it.BasePtrs(), []int{2, 1})
	assert.Equal(t, 2*16+4, ptrs[0].Offset)
	assert.Equal(t, 2*4, ptrs[1].Offset)
	assert.Equal(t, 4, ptrs[2].Offset)

	// 1D iterations are padded.
	a := tensors.FromFlat(iota32(5), 5)
	it = must.M1(UnaryOp(nil, a, false))
	assert.Equal(t, []int{4, 4, 0, 0}, it.LoopStrides())
}

func TestForEachParallel(t *testing.T) {
	const n = 1000
	a := tensors.FromFlat(iota32(n), 10, n/10)
	b := tensors.FromFlat(iota32(n/10), n/10)
	it := must.M1(NewBuilder().WithPool(poolWith(4)).AddOutput(nil).AddInput(a).AddInput(b).Build())
	var calls atomic.Int32
	require.NoError(t, it.ForEach(func(data []Pointer, strides []int, size0, size1 int) {
		calls.Add(1)
		addFloat32(data, strides, size0, size1)
	}, 7))
	assert.Greater(t, calls.Load(), int32(1))
	got := tensors.ToFlat[float32](it.Output(0))
	want := make([]float32, n)
	for i := range want {
		want[i] = float32(i + i%(n/10))
	}
	assert.True(t, floats.EqualApprox(toFloat64(want), toFloat64(got), 1e-6))

	// Panics in the kernel are returned as errors, both in parallel and serially.
	boom := func(data []Pointer, strides []int, size0, size1 int) { panic("boom") }
	require.ErrorContains(t, it.ForEach(boom, 7), "boom")
	require.ErrorContains(t, it.ForEach(boom, GrainSize), "boom")

	// Loop1D kernels.
	c := tensors.FromFlat(iota32(n), n)
	it = must.M1(NewBuilder().WithPool(poolWith(3)).AddOutput(nil).AddInput(c).Build())
	require.NoError(t, it.ForEach1D(negFloat32, 100))
	assert.Equal(t, float32(-999), tensors.At[float32](it.Output(0), 999))
}

func TestAccessors(t *testing.T) {
	it := broadcastIterator(t)
	assert.Equal(t, 2, it.NDim())
	assert.Equal(t, 3, it.NTensors())
	assert.Equal(t, 1, it.NOutputs())
	assert.Equal(t, 2, it.NInputs())
	assert.Equal(t, []int{0, 0}, it.ViewOffsets())
	assert.Equal(t, 4, it.ElementSize(1))
	assert.Equal(t, dtypes.Float32, it.DType(2))
	assert.False(t, it.IsContiguous())
	assert.False(t, it.HasContiguousInnerDim())
	assert.False(t, it.IsReduction())
	assert.Equal(t, 12, it.NumOutputElements())
	assert.Equal(t, []int{8, 2}, it.CompatibleStride(2))
	assert.Equal(t, "output", it.Role(0))
	assert.Equal(t, "input", it.Role(1))
	assert.True(t, strings.HasPrefix(it.String(), "Iterator{shape=[3 4], 12 elements, 1 outputs, 2 inputs"), it.String())

	// Out of range queries panic.
	err := exceptions.TryCatch[error](func() { it.Strides(3) })
	require.ErrorIs(t, err, ErrInvalidQuery)
	err = exceptions.TryCatch[error](func() { it.Input(2) })
	require.ErrorIs(t, err, ErrInvalidQuery)
	err = exceptions.TryCatch[error](func() { ScalarValue[int32](it, 1) })
	require.ErrorIs(t, err, ErrInvalidQuery)

	// Permutation helpers can't be used after coalescing.
	err = exceptions.TryCatch[error](func() { it.InvertPerm([]int{1, 2}) })
	require.ErrorIs(t, err, ErrInvalidQuery)
}

func TestNarrowAndClone(t *testing.T) {
	it := broadcastIterator(t)
	sub := it.Clone()
	sub.Narrow(0, 1, 2)
	assert.Equal(t, []int{2, 4}, sub.Shape())
	assert.Equal(t, []int{1, 0}, sub.ViewOffsets())
	assert.Equal(t, 16, sub.DataPtr(0).Offset)
	assert.Equal(t, 4, sub.DataPtr(1).Offset)
	assert.Equal(t, 0, sub.DataPtr(2).Offset)

	// The original is unchanged.
	assert.Equal(t, []int{3, 4}, it.Shape())
	assert.Equal(t, []int{0, 0}, it.ViewOffsets())
	assert.Equal(t, 0, it.DataPtr(0).Offset)

	require.NoError(t, sub.ForEach(addFloat32, GrainSize))
	assert.Equal(t, []float32{0, 0, 0, 0, 12, 22, 32, 42, 13, 23, 33, 43}, tensors.ToFlat[float32](it.Output(0)))

	err := exceptions.TryCatch[error](func() { sub.Narrow(0, 1, 2) })
	require.ErrorIs(t, err, ErrInvalidQuery)
	err = exceptions.TryCatch[error](func() { sub.Narrow(1, 0, 0) })
	require.ErrorIs(t, err, ErrInvalidQuery)

	// Select a single row and column.
	sub = it.Clone()
	sub.SelectAllKeepingDim(2, []int{2, 3})
	assert.Equal(t, []int{1, 1}, sub.Shape())
	assert.Equal(t, []int{2, 3}, sub.ViewOffsets())
	assert.Equal(t, float32(43), Load[float32](sub.DataPtr(0)))
	assert.Equal(t, float32(3), Load[float32](sub.DataPtr(1)))
	assert.Equal(t, float32(40), Load[float32](sub.DataPtr(2)))

	// Removing dimensions and operands.
	sub.RemoveDimension(0)
	assert.Equal(t, []int{1}, sub.Shape())
	assert.Equal(t, []int{3}, sub.ViewOffsets())
	assert.Equal(t, []int{4}, sub.Strides(0))
	sub.RemoveOperand(0)
	assert.Equal(t, 0, sub.NOutputs())
	assert.Equal(t, 2, sub.NTensors())
	sub.UnsafeReplaceOperand(1, it.DataPtr(2))
	assert.Equal(t, float32(10), Load[float32](sub.DataPtr(1)))
	assert.Equal(t, 3, it.NTensors())
}
