// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package tensors

import (
	"slices"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/tensoriter/internal/rawmem"
)

// view returns a shallow copy of t sharing the storage, without names.
func (t *Tensor) view(dims, strides []int, offset int) *Tensor {
	return &Tensor{
		storage: t.storage,
		offset:  offset,
		dims:    dims,
		strides: strides,
		dtype:   t.dtype,
		device:  t.device,
		layout:  t.layout,
	}
}

// AsStrided returns a view of the same storage with the given dimensions, strides and storage offset (all in
// elements). It panics if the view would address memory outside the storage.
func (t *Tensor) AsStrided(dims, strides []int, offset int) *Tensor {
	checkDims(dims)
	if len(dims) != len(strides) {
		exceptions.Panicf("AsStrided got %d dimensions but %d strides", len(dims), len(strides))
	}
	v := t.view(slices.Clone(dims), slices.Clone(strides), offset)
	if v.Size() > 0 {
		begin, end := v.MemoryRange()
		if begin < 0 || end > t.storage.Len() {
			exceptions.Panicf("AsStrided(%v, %v, %d) addresses bytes [%d, %d) out of a storage of %d bytes",
				dims, strides, offset, begin, end, t.storage.Len())
		}
	}
	return v
}

// Permute returns a view with the axes reordered: axis i of the view is axis permutation[i] of t.
func (t *Tensor) Permute(permutation ...int) *Tensor {
	rank := len(t.dims)
	if len(permutation) != rank {
		exceptions.Panicf("Permute got %d axes for tensor of rank %d", len(permutation), rank)
	}
	seen := make([]bool, rank)
	dims := make([]int, rank)
	strides := make([]int, rank)
	var names []string
	if t.names != nil {
		names = make([]string, rank)
	}
	for i, axis := range permutation {
		axis = t.adjustAxis(axis)
		if seen[axis] {
			exceptions.Panicf("Permute got repeated axis %d in %v", axis, permutation)
		}
		seen[axis] = true
		dims[i] = t.dims[axis]
		strides[i] = t.strides[axis]
		if names != nil {
			names[i] = t.names[axis]
		}
	}
	v := t.view(dims, strides, t.offset)
	v.names = names
	return v
}

// Transpose returns a view with axes a and b swapped.
func (t *Tensor) Transpose(a, b int) *Tensor {
	permutation := make([]int, len(t.dims))
	for i := range permutation {
		permutation[i] = i
	}
	a, b = t.adjustAxis(a), t.adjustAxis(b)
	permutation[a], permutation[b] = b, a
	return t.Permute(permutation...)
}

// Narrow returns a view restricted to the range [start, start+length) of the given axis.
func (t *Tensor) Narrow(axis, start, length int) *Tensor {
	axis = t.adjustAxis(axis)
	if start < 0 || length < 0 || start+length > t.dims[axis] {
		exceptions.Panicf("Narrow(axis=%d, start=%d, length=%d) out of range for dimension %d",
			axis, start, length, t.dims[axis])
	}
	dims := slices.Clone(t.dims)
	dims[axis] = length
	v := t.view(dims, slices.Clone(t.strides), t.offset+start*t.strides[axis])
	v.names = slices.Clone(t.names)
	return v
}

// Unsqueeze returns a view with a new axis of dimension 1 inserted at position axis (0 <= axis <= rank).
func (t *Tensor) Unsqueeze(axis int) *Tensor {
	rank := len(t.dims)
	if axis < 0 {
		axis += rank + 1
	}
	if axis < 0 || axis > rank {
		exceptions.Panicf("Unsqueeze axis %d out of range for tensor of rank %d", axis, rank)
	}
	stride := 1
	if axis < rank {
		stride = t.strides[axis] * max(t.dims[axis], 1)
	}
	v := t.view(slices.Insert(slices.Clone(t.dims), axis, 1), slices.Insert(slices.Clone(t.strides), axis, stride), t.offset)
	if t.names != nil {
		v.names = slices.Insert(slices.Clone(t.names), axis, "")
	}
	return v
}

// Expand returns a broadcast view of t with the given dimensions: axes of dimension 1 in t (and new leading axes)
// are repeated with stride 0. Trailing axes are aligned, as in broadcasting.
func (t *Tensor) Expand(dims ...int) *Tensor {
	checkDims(dims)
	rank := len(t.dims)
	if len(dims) < rank {
		exceptions.Panicf("Expand to %v has fewer axes than tensor dimensions %v", dims, t.dims)
	}
	strides := make([]int, len(dims))
	lead := len(dims) - rank
	for axis := range dims {
		if axis < lead {
			continue
		}
		dim := t.dims[axis-lead]
		switch {
		case dim == dims[axis]:
			strides[axis] = t.strides[axis-lead]
		case dim == 1:
			strides[axis] = 0
		default:
			exceptions.Panicf("cannot Expand dimensions %v to %v", t.dims, dims)
		}
	}
	return t.view(slices.Clone(dims), strides, t.offset)
}

// WithLayout returns a view of t tagged with a different layout.
func (t *Tensor) WithLayout(layout Layout) *Tensor {
	v := t.view(slices.Clone(t.dims), slices.Clone(t.strides), t.offset)
	v.layout = layout
	v.names = slices.Clone(t.names)
	return v
}

// Resize changes the dimensions of t in place, making it row-major contiguous from its current storage offset.
//
// The storage is grown if needed, the new memory is zero. Views of t keep seeing the old memory if the storage
// had to be reallocated. Names are dropped if the rank changes.
func (t *Tensor) Resize(dims ...int) {
	t.ResizeStrided(dims, ContiguousStrides(dims))
}

// ResizeStrided is like Resize, but t takes the given (non-negative) strides, in elements.
func (t *Tensor) ResizeStrided(dims, strides []int) {
	checkDims(dims)
	if len(dims) != len(strides) {
		exceptions.Panicf("ResizeStrided got %d dimensions but %d strides", len(dims), len(strides))
	}
	if len(dims) != len(t.dims) {
		t.names = nil
	}
	t.dims = slices.Clone(dims)
	t.strides = slices.Clone(strides)
	required := (t.offset + stridedSpan(dims, strides)) * t.ElementSize()
	if required > t.storage.Len() {
		data := rawmem.Alloc(required)
		copy(data, t.storage.data)
		t.storage = &Storage{data: data}
	}
}
