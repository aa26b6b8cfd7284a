// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package tensors

import (
	"testing"

	"github.com/gomlx/tensoriter/pkg/core/devices"
	"github.com/gomlx/tensoriter/pkg/core/dtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func iota32(n int) []float32 {
	flat := make([]float32, n)
	for i := range flat {
		flat[i] = float32(i)
	}
	return flat
}

func TestEmpty(t *testing.T) {
	x := Empty(dtypes.Float32, devices.Host, 2, 3, 4)
	assert.Equal(t, []int{2, 3, 4}, x.Dims())
	assert.Equal(t, []int{12, 4, 1}, x.Strides())
	assert.Equal(t, 24, x.Size())
	assert.Equal(t, 24*4, x.Storage().Len())
	assert.True(t, x.IsContiguous())
	assert.True(t, x.IsNonOverlappingAndDense())

	scalar := Empty(dtypes.Int64, devices.Host)
	assert.Equal(t, 0, scalar.Rank())
	assert.Equal(t, 1, scalar.Size())
	assert.True(t, scalar.IsScalar())

	require.Panics(t, func() { Empty(dtypes.InvalidDType, devices.Host, 2) })
	require.Panics(t, func() { Empty(dtypes.Float32, devices.Host, -1) })

	var undefined *Tensor
	assert.False(t, undefined.Defined())
	assert.Equal(t, dtypes.InvalidDType, undefined.DType())
	assert.Equal(t, "<undefined>", undefined.String())
}

func TestEmptyStridedAndLike(t *testing.T) {
	x := EmptyStrided(dtypes.Int16, devices.Host, []int{2, 3}, []int{1, 2})
	assert.Equal(t, 6*2, x.Storage().Len())
	assert.False(t, x.IsContiguous())
	assert.True(t, x.IsNonOverlappingAndDense())

	like := EmptyLike(x, dtypes.Float64)
	assert.Equal(t, []int{1, 2}, like.Strides())
	assert.Equal(t, dtypes.Float64, like.DType())

	expanded := FromFlat([]float32{1, 2, 3}, 3).Expand(2, 3)
	like = EmptyLike(expanded, dtypes.Float32)
	assert.Equal(t, []int{3, 1}, like.Strides())

	channelsLast := EmptyStrided(dtypes.Float32, devices.Host, []int{2, 3, 4, 5}, ChannelsLastStrides([]int{2, 3, 4, 5}))
	assert.Equal(t, []int{60, 1, 15, 3}, channelsLast.Strides())
	assert.True(t, channelsLast.IsChannelsLast())
	assert.False(t, channelsLast.IsContiguous())
	assert.False(t, Empty(dtypes.Float32, devices.Host, 2, 3, 4, 5).IsChannelsLast())
}

func TestFromFlatAndAccess(t *testing.T) {
	x := FromFlat(iota32(6), 2, 3)
	assert.Equal(t, float32(4), At[float32](x, 1, 1))
	SetAt(x, float32(-1), 0, 2)
	assert.Equal(t, []float32{0, 1, -1, 3, 4, 5}, ToFlat[float32](x))
	require.Panics(t, func() { At[float64](x, 0, 0) })
	require.Panics(t, func() { At[float32](x, 2, 0) })
	require.Panics(t, func() { FromFlat([]int32{1, 2, 3}, 2, 2) })

	s := Scalar(int8(7))
	assert.Equal(t, int8(7), At[int8](s))
}

func TestViews(t *testing.T) {
	x := FromFlat(iota32(24), 2, 3, 4)

	p := x.Permute(2, 0, 1)
	assert.Equal(t, []int{4, 2, 3}, p.Dims())
	assert.Equal(t, []int{1, 12, 4}, p.Strides())
	assert.Equal(t, At[float32](x, 1, 2, 3), At[float32](p, 3, 1, 2))
	assert.False(t, p.IsContiguous())
	assert.True(t, p.IsNonOverlappingAndDense())

	tr := x.Transpose(0, -1)
	assert.Equal(t, []int{4, 3, 2}, tr.Dims())

	n := x.Narrow(1, 1, 2)
	assert.Equal(t, []int{2, 2, 4}, n.Dims())
	assert.Equal(t, 4, n.StorageOffset())
	assert.Equal(t, float32(4), At[float32](n, 0, 0, 0))
	assert.False(t, n.IsContiguous())
	require.Panics(t, func() { x.Narrow(1, 2, 2) })

	u := x.Unsqueeze(1)
	assert.Equal(t, []int{2, 1, 3, 4}, u.Dims())
	assert.True(t, u.IsContiguous())

	e := FromFlat([]float32{1, 2, 3}, 3, 1).Expand(2, 3, 4)
	assert.Equal(t, []int{0, 1, 0}, e.Strides())
	assert.Equal(t, float32(3), At[float32](e, 1, 2, 3))
	assert.Equal(t, OverlapYes, InternalOverlap(e))
	require.Panics(t, func() { x.Expand(2, 5, 4) })

	// Views share memory.
	SetAt(n, float32(100), 1, 1, 1)
	assert.Equal(t, float32(100), At[float32](x, 1, 2, 1))

	a := x.AsStrided([]int{3, 2}, []int{2, 1}, 1)
	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6}, ToFlat[float32](a))
	require.Panics(t, func() { x.AsStrided([]int{30}, []int{1}, 0) })

	sparse := x.WithLayout(LayoutSparse)
	assert.Equal(t, LayoutSparse, sparse.Layout())
	assert.Equal(t, "sparse", sparse.Layout().String())
}

func TestResize(t *testing.T) {
	x := FromFlat(iota32(4), 4)
	x.Resize(2, 2)
	assert.Equal(t, []float32{0, 1, 2, 3}, ToFlat[float32](x))
	x.Resize(3, 3)
	assert.Equal(t, []int{3, 1}, x.Strides())
	assert.Equal(t, 9*4, x.Storage().Len())
	assert.Equal(t, float32(3), At[float32](x, 1, 0))
	assert.Equal(t, float32(0), At[float32](x, 2, 2))
}

func TestResizeStrided(t *testing.T) {
	x := FromFlat(iota32(3), 3)
	x.ResizeStrided([]int{4, 6}, []int{1, 4})
	assert.Equal(t, []int{4, 6}, x.Dims())
	assert.Equal(t, []int{1, 4}, x.Strides())
	assert.Equal(t, 24*4, x.Storage().Len())
	assert.True(t, x.IsNonOverlappingAndDense())
	assert.False(t, x.IsContiguous())
	assert.Equal(t, float32(2), At[float32](x, 2, 0))

	x.ResizeStrided([]int{0, 5}, []int{5, 1})
	assert.Equal(t, 0, x.Size())
	assert.Panics(t, func() { x.ResizeStrided([]int{2}, []int{-1}) })
	assert.Panics(t, func() { x.ResizeStrided([]int{2}, []int{1, 1}) })
}

func TestMemoryRange(t *testing.T) {
	x := FromFlat(iota32(12), 3, 4)
	begin, end := x.MemoryRange()
	assert.Equal(t, 0, begin)
	assert.Equal(t, 48, end)

	n := x.Narrow(0, 1, 1)
	begin, end = n.MemoryRange()
	assert.Equal(t, 16, begin)
	assert.Equal(t, 32, end)

	flipped := x.AsStrided([]int{4}, []int{-1}, 3)
	begin, end = flipped.MemoryRange()
	assert.Equal(t, 0, begin)
	assert.Equal(t, 16, end)
	assert.Equal(t, []float32{3, 2, 1, 0}, ToFlat[float32](flipped))
}

func TestOverlapStatus(t *testing.T) {
	x := FromFlat(iota32(12), 12)
	assert.Equal(t, OverlapStatusFull, GetOverlapStatus(x, x))
	assert.Equal(t, OverlapStatusFull, GetOverlapStatus(x, x.AsStrided([]int{3, 4}, []int{4, 1}, 0)))
	assert.Equal(t, OverlapStatusPartial, GetOverlapStatus(x.Narrow(0, 0, 6), x.Narrow(0, 3, 6)))
	assert.Equal(t, OverlapStatusNo, GetOverlapStatus(x.Narrow(0, 0, 6), x.Narrow(0, 6, 6)))
	assert.Equal(t, OverlapStatusNo, GetOverlapStatus(x, FromFlat(iota32(12), 12)))

	m := x.AsStrided([]int{3, 4}, []int{4, 1}, 0)
	assert.Equal(t, OverlapStatusTooHard, GetOverlapStatus(m.Transpose(0, 1), m))
	assert.Equal(t, OverlapNo, InternalOverlap(m.Transpose(0, 1)))
	assert.Equal(t, OverlapTooHard, InternalOverlap(x.AsStrided([]int{3, 3}, []int{2, 1}, 0)))
}

func TestNames(t *testing.T) {
	x := Empty(dtypes.Float32, devices.Host, 2, 3)
	assert.Nil(t, x.Names())
	x.SetNames([]string{"batch", ""})
	assert.Equal(t, []string{"", "batch"}, x.Transpose(0, 1).Names())
	assert.Equal(t, []string{"batch", "", ""}, x.Unsqueeze(2).Names())
	require.Panics(t, func() { x.SetNames([]string{"a"}) })
}

func TestLayoutString(t *testing.T) {
	layout, err := LayoutString("Opaque")
	require.NoError(t, err)
	assert.Equal(t, LayoutOpaque, layout)
	_, err = LayoutString("mkldnn")
	require.Error(t, err)
}
