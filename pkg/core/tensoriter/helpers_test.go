// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package tensoriter

import (
	"github.com/gomlx/tensoriter/internal/workerspool"
)

// iota32 returns [0, 1, ..., n-1] as float32.
func iota32(n int) []float32 {
	values := make([]float32, n)
	for i := range values {
		values[i] = float32(i)
	}
	return values
}

func toFloat64(values []float32) []float64 {
	result := make([]float64, len(values))
	for i, v := range values {
		result[i] = float64(v)
	}
	return result
}

// addFloat32 is a Loop2D kernel for out = a + b.
func addFloat32(data []Pointer, strides []int, size0, size1 int) {
	ntensors := len(data)
	out, a, b := data[0], data[1], data[2]
	for range size1 {
		o, x, y := out, a, b
		for range size0 {
			Store(o, Load[float32](x)+Load[float32](y))
			o = o.Add(strides[0])
			x = x.Add(strides[1])
			y = y.Add(strides[2])
		}
		out = out.Add(strides[ntensors])
		a = a.Add(strides[ntensors+1])
		b = b.Add(strides[ntensors+2])
	}
}

// sumFloat32 is a Loop2D reduction kernel for out += a.
func sumFloat32(data []Pointer, strides []int, size0, size1 int) {
	out, in := data[0], data[1]
	for range size1 {
		o, x := out, in
		for range size0 {
			Store(o, Load[float32](o)+Load[float32](x))
			o = o.Add(strides[0])
			x = x.Add(strides[1])
		}
		out = out.Add(strides[2])
		in = in.Add(strides[3])
	}
}

// negFloat32 is a Loop1D kernel for out = -a.
func negFloat32(data []Pointer, strides []int, n int) {
	out, a := data[0], data[1]
	for range n {
		Store(out, -Load[float32](a))
		out = out.Add(strides[0])
		a = a.Add(strides[1])
	}
}

func poolWith(workers int) *workerspool.Pool {
	pool := workerspool.New()
	pool.SetMaxParallelism(workers)
	return pool
}
