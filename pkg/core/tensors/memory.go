// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package tensors

import (
	"slices"
	"sort"
)

// IsContiguous returns whether the tensor is row-major contiguous. Axes of dimension 1 are ignored, and so is
// everything about empty tensors.
func (t *Tensor) IsContiguous() bool {
	if t == nil || t.Size() == 0 {
		return true
	}
	expected := 1
	for axis := len(t.dims) - 1; axis >= 0; axis-- {
		if t.dims[axis] == 1 {
			continue
		}
		if t.strides[axis] != expected {
			return false
		}
		expected *= t.dims[axis]
	}
	return true
}

// IsChannelsLast returns whether a rank-4 tensor, with axes in NCHW order, is contiguous in NHWC memory order.
// Axes of dimension 1 are ignored.
func (t *Tensor) IsChannelsLast() bool {
	if t == nil || len(t.dims) != 4 {
		return false
	}
	expected := 1
	for _, axis := range [4]int{1, 3, 2, 0} {
		if t.dims[axis] == 1 {
			continue
		}
		if t.strides[axis] != expected {
			return false
		}
		expected *= t.dims[axis]
	}
	return true
}

// IsNonOverlappingAndDense returns whether the tensor elements occupy exactly one contiguous block of memory,
// each element at a different address, in any axes order.
func (t *Tensor) IsNonOverlappingAndDense() bool {
	if t == nil {
		return true
	}
	rank := len(t.dims)
	if rank == 1 {
		return t.dims[0] < 2 || t.strides[0] == 1
	}
	// Sort axes by stride, moving axes of dimension 0 or 1 to the end.
	perm := make([]int, rank)
	for i := range perm {
		perm[i] = i
	}
	sort.SliceStable(perm, func(i, j int) bool {
		a, b := perm[i], perm[j]
		if t.dims[a] < 2 {
			return false
		}
		if t.dims[b] < 2 {
			return true
		}
		return t.strides[a] < t.strides[b]
	})
	required := 1
	for _, axis := range perm {
		if t.dims[axis] < 2 {
			return true
		}
		if t.strides[axis] != required {
			return false
		}
		required *= t.dims[axis]
	}
	return true
}

// MemoryRange returns the range of bytes [begin, end) of the storage addressed by the tensor.
// For an empty tensor it returns an empty range at the data offset.
func (t *Tensor) MemoryRange() (begin, end int) {
	if t == nil {
		return 0, 0
	}
	elementSize := t.ElementSize()
	lo, hi := t.offset, t.offset
	if t.Size() == 0 {
		return lo * elementSize, lo * elementSize
	}
	for axis, dim := range t.dims {
		extent := (dim - 1) * t.strides[axis]
		if extent < 0 {
			lo += extent
		} else {
			hi += extent
		}
	}
	return lo * elementSize, (hi + 1) * elementSize
}

// SameStorage returns whether a and b are views of the same storage.
func SameStorage(a, b *Tensor) bool {
	return a != nil && b != nil && a.storage == b.storage
}

// Overlap describes whether a tensor has elements sharing the same memory.
type Overlap int

const (
	// OverlapNo means every element has its own address.
	OverlapNo Overlap = iota
	// OverlapYes means at least two elements share an address.
	OverlapYes
	// OverlapTooHard means it couldn't be determined cheaply.
	OverlapTooHard
)

// InternalOverlap checks whether elements of t share memory.
func InternalOverlap(t *Tensor) Overlap {
	if t.IsNonOverlappingAndDense() {
		return OverlapNo
	}
	for axis, stride := range t.strides {
		if stride == 0 && t.dims[axis] > 1 {
			return OverlapYes
		}
	}
	return OverlapTooHard
}

// OverlapStatus describes how the memory of two tensors relates.
type OverlapStatus int

const (
	// OverlapStatusNo means the tensors don't share memory.
	OverlapStatusNo OverlapStatus = iota
	// OverlapStatusFull means the tensors address exactly the same memory, element by element.
	OverlapStatusFull
	// OverlapStatusPartial means the tensors share some of the memory.
	OverlapStatusPartial
	// OverlapStatusTooHard means it couldn't be determined cheaply.
	OverlapStatusTooHard
)

// GetOverlapStatus checks how the memory of a and b relates.
func GetOverlapStatus(a, b *Tensor) OverlapStatus {
	if a == b {
		return OverlapStatusFull
	}
	if a.Size() == 0 || b.Size() == 0 || !SameStorage(a, b) {
		return OverlapStatusNo
	}
	aBegin, aEnd := a.MemoryRange()
	bBegin, bEnd := b.MemoryRange()
	if aBegin >= bEnd || bBegin >= aEnd {
		return OverlapStatusNo
	}
	if !a.IsContiguous() || !b.IsContiguous() {
		if aBegin == bBegin && a.dtype == b.dtype && slices.Equal(a.dims, b.dims) && slices.Equal(a.strides, b.strides) {
			return OverlapStatusFull
		}
		return OverlapStatusTooHard
	}
	if aBegin == bBegin && aEnd == bEnd {
		return OverlapStatusFull
	}
	return OverlapStatusPartial
}
