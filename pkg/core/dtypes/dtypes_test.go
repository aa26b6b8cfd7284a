// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package dtypes

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes/bfloat16"
	"github.com/gomlx/tensoriter/internal/rawmem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"
)

func TestMapOfNames(t *testing.T) {
	for _, name := range []string{"Float16", "float16", "F16", "f16"} {
		assert.Equal(t, Float16, MapOfNames[name], "name %q", name)
	}
	dtype, err := Parse("BF16")
	require.NoError(t, err)
	require.Equal(t, BFloat16, dtype)
	dtype, err = Parse("INT32")
	require.NoError(t, err)
	require.Equal(t, Int32, dtype)
	_, err = Parse("float8")
	require.Error(t, err)
}

func TestSizes(t *testing.T) {
	for dtype := Bool; dtype <= Complex128; dtype++ {
		require.Equal(t, int(dtype.GoType().Size()), dtype.Size(), "dtype %s", dtype)
	}
	require.Equal(t, 0, InvalidDType.Size())
	require.Equal(t, Float32, FromGenericsType[float32]())
	require.Equal(t, BFloat16, FromGenericsType[bfloat16.BFloat16]())
	require.Equal(t, "DType(99)", DType(99).String())
}

func TestPromote(t *testing.T) {
	testCases := []struct {
		a, b, want DType
	}{
		{Int32, Float32, Float32},
		{Int64, Float16, Float16},
		{Bool, Uint8, Uint8},
		{Uint8, Int8, Int16},
		{Uint16, Int32, Int32},
		{Uint32, Int8, Int64},
		{Uint64, Int64, Int64},
		{Uint8, Uint32, Uint32},
		{Float16, BFloat16, Float32},
		{Float32, Float64, Float64},
		{Complex64, Float64, Complex128},
		{Complex64, Float16, Complex64},
		{Complex64, Int64, Complex64},
		{InvalidDType, Int8, Int8},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.want, Promote(tc.a, tc.b), "Promote(%s, %s)", tc.a, tc.b)
		assert.Equal(t, tc.want, Promote(tc.b, tc.a), "Promote(%s, %s)", tc.b, tc.a)
	}
}

func TestPromoteIsOrderIndependent(t *testing.T) {
	all := []DType{Bool, Int8, Int16, Int32, Int64, Uint8, Uint16, Uint32, Uint64,
		Float16, BFloat16, Float32, Float64, Complex64, Complex128}
	for _, a := range all {
		for _, b := range all {
			for _, c := range all {
				left := Promote(Promote(a, b), c)
				right := Promote(a, Promote(b, c))
				require.Equal(t, left, right, "(%s, %s, %s)", a, b, c)
				require.Equal(t, left, PromoteAll(c, b, a))
			}
		}
	}
}

func TestResultTypeState(t *testing.T) {
	var state ResultTypeState
	state.Update(Float32, false)
	state.Update(Float64, true)
	require.Equal(t, Float32, state.Result())

	state = ResultTypeState{}
	state.Update(Int32, false)
	state.Update(Float64, true)
	require.Equal(t, Float64, state.Result())

	state = ResultTypeState{}
	state.Update(Uint8, false)
	state.Update(Int64, true)
	require.Equal(t, Uint8, state.Result())

	state = ResultTypeState{}
	state.Update(Int16, true)
	require.Equal(t, Int16, state.Result())

	// Complex scalars make float arrays complex, keeping the arrays' precision.
	for _, tc := range []struct{ array, scalar, want DType }{
		{Float32, Complex128, Complex64},
		{Float64, Complex64, Complex128},
		{Float16, Complex128, Complex64},
		{Int32, Complex64, Complex64},
	} {
		state = ResultTypeState{}
		state.Update(tc.array, false)
		state.Update(tc.scalar, true)
		require.Equalf(t, tc.want, state.Result(), "%s array with %s scalar", tc.array, tc.scalar)
	}
}

func TestCanCast(t *testing.T) {
	require.True(t, CanCast(Int32, Float32))
	require.True(t, CanCast(Float64, Float32))
	require.True(t, CanCast(Bool, Int8))
	require.False(t, CanCast(Float32, Int32))
	require.False(t, CanCast(Complex64, Float64))
	require.False(t, CanCast(Int8, Bool))
}

func TestConvertFunc(t *testing.T) {
	// Strided read with a negative stride: reverses the input.
	src := rawmem.Bytes([]int32{1, -2, 3})
	dst := rawmem.Alloc(3 * 4)
	fn, err := ConvertFunc(Int32, Float32)
	require.NoError(t, err)
	fn(dst, 0, 4, src, 8, -4, 3)
	for i, want := range []float32{3, -2, 1} {
		require.Equal(t, want, rawmem.Load[float32](dst, 4*i))
	}

	// Broadcast (stride 0) into bool.
	dst = rawmem.Alloc(4)
	fn, err = ConvertFunc(Int32, Bool)
	require.NoError(t, err)
	fn(dst, 0, 1, src, 4, 0, 4)
	for i := range 4 {
		require.True(t, rawmem.Load[bool](dst, i))
	}

	// Half precision round trip.
	half := rawmem.Alloc(2 * 2)
	fn, err = ConvertFunc(Float64, Float16)
	require.NoError(t, err)
	fn(half, 0, 2, rawmem.Bytes([]float64{0.5, -1.25}), 0, 8, 2)
	require.Equal(t, float16.Fromfloat32(-1.25), rawmem.Load[float16.Float16](half, 2))
	bf := rawmem.Alloc(2 * 2)
	fn, err = ConvertFunc(Float16, BFloat16)
	require.NoError(t, err)
	fn(bf, 0, 2, half, 0, 2, 2)
	require.Equal(t, float32(0.5), rawmem.Load[bfloat16.BFloat16](bf, 0).Float32())

	// Complex to real keeps the real part; real to complex has zero imaginary part.
	c := rawmem.Bytes([]complex128{complex(2, 3)})
	out := rawmem.Alloc(8)
	fn, err = ConvertFunc(Complex128, Int64)
	require.NoError(t, err)
	fn(out, 0, 8, c, 0, 16, 1)
	require.Equal(t, int64(2), rawmem.Load[int64](out, 0))
	fn, err = ConvertFunc(Complex128, Complex64)
	require.NoError(t, err)
	fn(out, 0, 8, c, 0, 16, 1)
	require.Equal(t, complex64(complex(2, 3)), rawmem.Load[complex64](out, 0))

	_, err = ConvertFunc(InvalidDType, Float32)
	require.Error(t, err)
}
