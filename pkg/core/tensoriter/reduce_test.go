// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package tensoriter

import (
	"sync/atomic"
	"testing"

	"github.com/gomlx/tensoriter/pkg/core/devices"
	"github.com/gomlx/tensoriter/pkg/core/dtypes"
	"github.com/gomlx/tensoriter/pkg/core/tensors"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// reduction builds a reduction iterator of a into out using a pool with the given number of workers.
func reduction(t *testing.T, out, a *tensors.Tensor, workers int) *Iterator {
	it, err := NewBuilder().
		Set(ResizeOutputs, false).
		Set(IsReduction, true).
		WithPool(poolWith(workers)).
		AddOutput(out).
		AddInput(a).
		Build()
	require.NoError(t, err)
	return it
}

func TestReduceOp(t *testing.T) {
	a := tensors.FromFlat(iota32(20), 4, 5)
	out := tensors.Empty(dtypes.Float32, devices.Host, 4, 1)
	it := must.M1(ReduceOp(out, a))
	assert.True(t, it.IsReduction())
	assert.Equal(t, []int{4, 5}, it.Shape())
	assert.Equal(t, 1, it.NumReduceDims())
	assert.True(t, it.IsDimReduced(1))
	assert.False(t, it.IsDimReduced(0))
	assert.Equal(t, 4, it.NumOutputElements())
	require.NoError(t, it.ParallelReduce(sumFloat32))
	assert.Equal(t, []float32{10, 35, 60, 85}, tensors.ToFlat[float32](out))

	// Reducing the outer dimension: the reduced dimension is still iterated innermost.
	out = tensors.Empty(dtypes.Float32, devices.Host, 1, 5)
	it = must.M1(ReduceOp(out, a))
	assert.Equal(t, []int{1, 0}, it.Permutation())
	assert.Equal(t, []int{5, 4}, it.Shape())
	require.NoError(t, it.ParallelReduce(sumFloat32))
	assert.Equal(t, []float32{30, 34, 38, 42, 46}, tensors.ToFlat[float32](out))

	_, err := ReduceOp(nil, a)
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestReduceOp2(t *testing.T) {
	a := tensors.FromFlat(iota32(6), 2, 3)
	values := tensors.Empty(dtypes.Float32, devices.Host, 2, 1)
	indices := tensors.Empty(dtypes.Int64, devices.Host, 2, 1)
	it := must.M1(ReduceOp2(values, indices, a))
	assert.Equal(t, 2, it.NOutputs())
	assert.Equal(t, dtypes.Int64, it.DType(1))

	// ParallelReduce only takes one output.
	require.ErrorIs(t, it.ParallelReduce(sumFloat32), ErrInvalidArgument)

	_, err := ReduceOp2(values, tensors.Empty(dtypes.Int64, devices.Host, 1, 2), a)
	require.ErrorIs(t, err, ErrInvalidArgument)
	_, err = ReduceOp2(values, tensors.Empty(dtypes.Int64, devices.Host, 2, 1).Expand(2, 1), a)
	require.NoError(t, err)
	_, err = ReduceOp2(values, tensors.Empty(dtypes.Int64, devices.Host, 2, 2).Narrow(1, 0, 1), a)
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestParallelReduceTwoPass(t *testing.T) {
	const rows, cols = 300, 300
	a := tensors.Empty(dtypes.Float32, devices.Host, rows, cols)
	tensors.Fill[float32](a, 1)
	out := tensors.Empty(dtypes.Float32, devices.Host, 1, 1)
	it := reduction(t, out, a, 4)
	require.NoError(t, it.ParallelReduce(sumFloat32))
	assert.Equal(t, float32(rows*cols), tensors.At[float32](out, 0, 0))
}

func TestParallelReduceColumns(t *testing.T) {
	const rows, cols = 64, 1024
	flat := make([]float32, rows*cols)
	for i := range flat {
		flat[i] = float32(i / cols)
	}
	a := tensors.FromFlat(flat, rows, cols)

	// Sum each row.
	out := tensors.Empty(dtypes.Float32, devices.Host, rows, 1)
	it := reduction(t, out, a, 4)
	require.NoError(t, it.ParallelReduce(sumFloat32))
	for row := range rows {
		require.Equal(t, float32(cols*row), tensors.At[float32](out, row, 0))
	}

	// Sum each column: adjacent columns are contiguous in memory, and they are split among the workers in
	// groups of 128 bytes.
	columnValues := make([]float32, rows*cols)
	for i := range columnValues {
		columnValues[i] = float32(i % rows)
	}
	b := tensors.FromFlat(columnValues, cols, rows)
	sums := tensors.Empty(dtypes.Float32, devices.Host, 1, rows)
	it = reduction(t, sums, b, 4)
	assert.Equal(t, []int{rows, cols}, it.Shape())
	assert.Equal(t, 4, it.Strides(1)[0])
	require.NoError(t, it.ParallelReduce(sumFloat32))
	for column := range rows {
		require.Equal(t, float32(cols*column), tensors.At[float32](sums, 0, column))
	}
}

func TestForEachReducedElt(t *testing.T) {
	a := tensors.FromFlat(iota32(20), 4, 5)
	out := tensors.Empty(dtypes.Float32, devices.Host, 4, 1)
	it := must.M1(ReduceOp(out, a))
	var calls atomic.Int32
	require.NoError(t, it.ForEachReducedElt(func(sub *Iterator) error {
		calls.Add(1)
		assert.Equal(t, 5, sub.Numel())
		sub.SerialForEach(sumFloat32, 0, sub.Numel())
		return nil
	}, true))
	assert.Equal(t, int32(4), calls.Load())
	assert.Equal(t, []float32{10, 35, 60, 85}, tensors.ToFlat[float32](out))

	// Single output element: called once with the whole iteration.
	total := tensors.Empty(dtypes.Float32, devices.Host, 1, 1)
	it = must.M1(ReduceOp(total, a))
	calls.Store(0)
	require.NoError(t, it.ForEachReducedElt(func(sub *Iterator) error {
		calls.Add(1)
		assert.Equal(t, 20, sub.Numel())
		return nil
	}, false))
	assert.Equal(t, int32(1), calls.Load())

	// Parallel, one call per output element.
	const rows, cols = 64, 1024
	big := tensors.Empty(dtypes.Float32, devices.Host, rows, cols)
	tensors.Fill[float32](big, 0.5)
	rowSums := tensors.Empty(dtypes.Float32, devices.Host, rows, 1)
	it = reduction(t, rowSums, big, 4)
	calls.Store(0)
	require.NoError(t, it.ForEachReducedElt(func(sub *Iterator) error {
		calls.Add(1)
		sub.SerialForEach(sumFloat32, 0, sub.Numel())
		return nil
	}, true))
	assert.Equal(t, int32(rows), calls.Load())
	for row := range rows {
		require.Equal(t, float32(cols/2), tensors.At[float32](rowSums, row, 0))
	}

	// Errors and panics are returned.
	err := it.ForEachReducedElt(func(sub *Iterator) error {
		if sub.ViewOffsets()[0] == 7 {
			return ErrInvalidArgument
		}
		return nil
	}, true)
	require.ErrorIs(t, err, ErrInvalidArgument)
	err = it.ForEachReducedElt(func(sub *Iterator) error { panic("reduced boom") }, false)
	require.ErrorContains(t, err, "reduced boom")

	// Requires a single input.
	it = must.M1(BinaryOp(nil, a, a, false))
	require.ErrorIs(t, it.ForEachReducedElt(func(*Iterator) error { return nil }, false), ErrInvalidArgument)
}
