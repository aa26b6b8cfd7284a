// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package tensors

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/tensoriter/internal/rawmem"
	"github.com/gomlx/tensoriter/pkg/core/dtypes"
)

// ElementOffset returns the byte offset within Bytes() of the element at the given indices.
// It panics if the indices are out of range.
func (t *Tensor) ElementOffset(indices ...int) int {
	if len(indices) != len(t.dims) {
		exceptions.Panicf("got %d indices for tensor of rank %d", len(indices), len(t.dims))
	}
	offset := t.offset
	for axis, index := range indices {
		if index < 0 || index >= t.dims[axis] {
			exceptions.Panicf("index %d out of range for axis %d of dimension %d", index, axis, t.dims[axis])
		}
		offset += index * t.strides[axis]
	}
	return offset * t.ElementSize()
}

func checkGoType[T dtypes.Supported](t *Tensor) {
	if dtype := dtypes.FromGenericsType[T](); dtype != t.DType() {
		exceptions.Panicf("cannot access tensor of dtype %s as %s", t.DType(), dtype)
	}
}

// At returns the element at the given indices. T must match the tensor's dtype.
func At[T dtypes.Supported](t *Tensor, indices ...int) T {
	checkGoType[T](t)
	return rawmem.Load[T](t.storage.data, t.ElementOffset(indices...))
}

// SetAt sets the element at the given indices. T must match the tensor's dtype.
func SetAt[T dtypes.Supported](t *Tensor, value T, indices ...int) {
	checkGoType[T](t)
	rawmem.Store(t.storage.data, t.ElementOffset(indices...), value)
}

// ToFlat returns a copy of the tensor elements, in row-major order of its (logical) indices.
func ToFlat[T dtypes.Supported](t *Tensor) []T {
	checkGoType[T](t)
	flat := make([]T, 0, t.Size())
	t.walk(func(offset int) {
		flat = append(flat, rawmem.Load[T](t.storage.data, offset))
	})
	return flat
}

// Fill sets all elements of the tensor to value. T must match the tensor's dtype.
func Fill[T dtypes.Supported](t *Tensor, value T) {
	checkGoType[T](t)
	t.walk(func(offset int) {
		rawmem.Store(t.storage.data, offset, value)
	})
}

// walk calls fn with the byte offset of every element, in row-major order of the logical indices.
func (t *Tensor) walk(fn func(offset int)) {
	if t.Size() == 0 {
		return
	}
	elementSize := t.ElementSize()
	rank := len(t.dims)
	indices := make([]int, rank)
	offset := t.offset * elementSize
	for {
		fn(offset)
		axis := rank - 1
		for ; axis >= 0; axis-- {
			indices[axis]++
			offset += t.strides[axis] * elementSize
			if indices[axis] < t.dims[axis] {
				break
			}
			offset -= indices[axis] * t.strides[axis] * elementSize
			indices[axis] = 0
		}
		if axis < 0 {
			return
		}
	}
}
