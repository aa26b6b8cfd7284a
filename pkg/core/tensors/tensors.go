// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package tensors implements a strided `Tensor`: a view over a shared byte Storage, described by a storage
// offset, its dimensions and per-dimension strides (in elements), a data type, a device and a layout.
//
// Tensors are the operands of the iterator in package tensoriter: the iterator reads their layout to decide how
// to walk memory, and allocates (or resizes) output tensors when asked to.
//
// There are various ways to construct a Tensor:
//
//   - Empty(dtype, device, dimensions...): a zero-initialized, row-major contiguous tensor.
//
//   - EmptyStrided(dtype, device, dimensions, strides): a zero-initialized tensor with the given strides
//     (in elements), backed by exactly the storage the strides address.
//
//   - EmptyLike(t, dtype): a tensor with the same dimensions as t, and the same strides if t is
//     non-overlapping and dense.
//
//   - FromFlat[T dtypes.Supported](flat []T, dimensions ...int): a row-major tensor holding a copy of the flat values.
//     Example:
//
//     t := FromFlat([]int8{1, 2, 3, 4}, 2, 2}) // Tensor with [[1,2], [3,4]]
//
// Views (AsStrided, Permute, Transpose, Narrow, Unsqueeze, Expand) share the storage of the tensor they are
// created from: writing through one is visible through the other.
//
// A nil *Tensor represents an undefined tensor: its accessors return zero values and Defined() returns false.
package tensors

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/tensoriter/internal/rawmem"
	"github.com/gomlx/tensoriter/pkg/core/devices"
	"github.com/gomlx/tensoriter/pkg/core/dtypes"
)

// Layout of a Tensor's memory.
//
// Only Strided tensors can be iterated, the other layouts exist so callers can represent handles to memory
// the iterator doesn't know how to address.
type Layout int

//go:generate go tool enumer -type=Layout -trimprefix=Layout -transform=lower -output=layout_enumer.go tensors.go

const (
	LayoutStrided Layout = iota
	LayoutSparse
	LayoutOpaque
)

// Storage is the memory shared by a Tensor and all of its views.
type Storage struct {
	data []byte
}

// Bytes returns the underlying memory. It is not a copy.
func (s *Storage) Bytes() []byte {
	if s == nil {
		return nil
	}
	return s.data
}

// Len returns the size of the storage in bytes.
func (s *Storage) Len() int {
	if s == nil {
		return 0
	}
	return len(s.data)
}

// Tensor is a strided view over a Storage.
//
// Dimensions, strides and the storage offset are measured in elements.
type Tensor struct {
	storage *Storage
	offset  int
	dims    []int
	strides []int
	dtype   dtypes.DType
	device  devices.Device
	layout  Layout
	names   []string
}

func checkDType(dtype dtypes.DType) {
	if !dtype.IsValid() {
		exceptions.Panicf("invalid dtype %s for tensor", dtype)
	}
}

func checkDims(dims []int) {
	for axis, dim := range dims {
		if dim < 0 {
			exceptions.Panicf("invalid negative dimension %d for axis %d in %v", dim, axis, dims)
		}
	}
}

// ContiguousStrides returns the row-major strides (in elements) for the given dimensions.
func ContiguousStrides(dims []int) []int {
	strides := make([]int, len(dims))
	stride := 1
	for axis := len(dims) - 1; axis >= 0; axis-- {
		strides[axis] = stride
		stride *= max(dims[axis], 1)
	}
	return strides
}

// ChannelsLastStrides returns the NHWC strides (in elements) for dimensions given in NCHW order.
// It panics if dims doesn't have rank 4.
func ChannelsLastStrides(dims []int) []int {
	if len(dims) != 4 {
		exceptions.Panicf("channels-last strides require rank 4 dimensions, got %v", dims)
	}
	strides := make([]int, 4)
	stride := 1
	for _, axis := range [4]int{1, 3, 2, 0} {
		strides[axis] = stride
		stride *= max(dims[axis], 1)
	}
	return strides
}

// numElements of a strided view.
func numElements(dims []int) int {
	n := 1
	for _, dim := range dims {
		n *= dim
	}
	return n
}

// stridedSpan returns the number of elements of storage needed to address every element of a view with the
// given dimensions and non-negative strides. It panics on negative strides.
func stridedSpan(dims, strides []int) int {
	span := 1
	for axis, stride := range strides {
		if stride < 0 {
			exceptions.Panicf("allocation requires non-negative strides, got %v", strides)
		}
		if dims[axis] == 0 {
			return 0
		}
		span += (dims[axis] - 1) * stride
	}
	return span
}

// Empty returns a new zero-initialized row-major contiguous tensor.
func Empty(dtype dtypes.DType, device devices.Device, dims ...int) *Tensor {
	checkDType(dtype)
	checkDims(dims)
	return &Tensor{
		storage: &Storage{data: rawmem.Alloc(numElements(dims) * dtype.Size())},
		dims:    slices.Clone(dims),
		strides: ContiguousStrides(dims),
		dtype:   dtype,
		device:  device,
	}
}

// EmptyStrided returns a new zero-initialized tensor with the given dimensions and strides (in elements).
//
// Strides must be non-negative: the storage allocated is the minimum required to address every element.
func EmptyStrided(dtype dtypes.DType, device devices.Device, dims, strides []int) *Tensor {
	checkDType(dtype)
	checkDims(dims)
	if len(dims) != len(strides) {
		exceptions.Panicf("EmptyStrided got %d dimensions but %d strides", len(dims), len(strides))
	}
	return &Tensor{
		storage: &Storage{data: rawmem.Alloc(stridedSpan(dims, strides) * dtype.Size())},
		dims:    slices.Clone(dims),
		strides: slices.Clone(strides),
		dtype:   dtype,
		device:  device,
	}
}

// EmptyLike returns a new zero-initialized tensor with the dimensions and device of t, and the given dtype.
//
// If t is non-overlapping and dense, the new tensor uses the same strides, so it can be iterated in the same
// memory order as t. Otherwise, it is row-major contiguous.
func EmptyLike(t *Tensor, dtype dtypes.DType) *Tensor {
	if !t.Defined() {
		exceptions.Panicf("EmptyLike of an undefined tensor")
	}
	if t.IsNonOverlappingAndDense() {
		return EmptyStrided(dtype, t.device, t.dims, t.strides)
	}
	return Empty(dtype, t.device, t.dims...)
}

// FromFlat returns a new row-major CPU tensor holding a copy of flat.
// The number of elements in flat must match the dimensions.
func FromFlat[T dtypes.Supported](flat []T, dims ...int) *Tensor {
	checkDims(dims)
	if len(flat) != numElements(dims) {
		exceptions.Panicf("FromFlat got %d values for dimensions %v (%d elements)", len(flat), dims, numElements(dims))
	}
	t := Empty(dtypes.FromGenericsType[T](), devices.Host, dims...)
	copy(t.storage.data, rawmem.Bytes(flat))
	return t
}

// Scalar returns a new rank-0 CPU tensor holding value.
func Scalar[T dtypes.Supported](value T) *Tensor {
	return FromFlat([]T{value})
}

// Defined returns whether the tensor is not nil.
func (t *Tensor) Defined() bool {
	return t != nil
}

// DType of the elements.
func (t *Tensor) DType() dtypes.DType {
	if t == nil {
		return dtypes.InvalidDType
	}
	return t.dtype
}

// Device where the storage lives.
func (t *Tensor) Device() devices.Device {
	if t == nil {
		return devices.Host
	}
	return t.device
}

// Layout of the tensor.
func (t *Tensor) Layout() Layout {
	if t == nil {
		return LayoutStrided
	}
	return t.layout
}

// Rank is the number of dimensions.
func (t *Tensor) Rank() int {
	if t == nil {
		return 0
	}
	return len(t.dims)
}

// Dims returns a copy of the dimensions.
func (t *Tensor) Dims() []int {
	if t == nil {
		return nil
	}
	return slices.Clone(t.dims)
}

// Dim returns the dimension of the given axis. Negative axes count from the end.
func (t *Tensor) Dim(axis int) int {
	return t.dims[t.adjustAxis(axis)]
}

// Strides returns a copy of the strides, in elements.
func (t *Tensor) Strides() []int {
	if t == nil {
		return nil
	}
	return slices.Clone(t.strides)
}

// Stride returns the stride in elements of the given axis. Negative axes count from the end.
func (t *Tensor) Stride(axis int) int {
	return t.strides[t.adjustAxis(axis)]
}

// Size returns the number of elements.
func (t *Tensor) Size() int {
	if t == nil {
		return 0
	}
	return numElements(t.dims)
}

// ElementSize is the size in bytes of one element.
func (t *Tensor) ElementSize() int {
	return t.DType().Size()
}

// StorageOffset is the offset, in elements, of the first element within the storage.
func (t *Tensor) StorageOffset() int {
	if t == nil {
		return 0
	}
	return t.offset
}

// Storage shared by the tensor and its views.
func (t *Tensor) Storage() *Storage {
	if t == nil {
		return nil
	}
	return t.storage
}

// Bytes returns the storage memory. The first element of the tensor is at DataOffset().
func (t *Tensor) Bytes() []byte {
	return t.Storage().Bytes()
}

// DataOffset is the offset, in bytes, of the first element within Bytes().
func (t *Tensor) DataOffset() int {
	return t.StorageOffset() * t.ElementSize()
}

// Names returns the dimension names, or nil if the tensor has no names.
// Unnamed axes have an empty name.
func (t *Tensor) Names() []string {
	if t == nil {
		return nil
	}
	return slices.Clone(t.names)
}

// SetNames sets the names of the dimensions. Passing nil removes the names.
func (t *Tensor) SetNames(names []string) {
	if names != nil && len(names) != len(t.dims) {
		exceptions.Panicf("SetNames got %d names for a tensor of rank %d", len(names), len(t.dims))
	}
	t.names = slices.Clone(names)
}

// IsScalar returns whether the tensor holds exactly one element, irrespective of its rank.
func (t *Tensor) IsScalar() bool {
	return t.Defined() && t.Size() == 1
}

// adjustAxis converts negative axes and panics on out of range axis.
func (t *Tensor) adjustAxis(axis int) int {
	rank := len(t.dims)
	adjusted := axis
	if adjusted < 0 {
		adjusted += rank
	}
	if adjusted < 0 || adjusted >= rank {
		exceptions.Panicf("axis %d out of range for tensor of rank %d", axis, rank)
	}
	return adjusted
}

// String returns a short description of the tensor: dtype, dimensions, strides, device and, if not strided, layout.
func (t *Tensor) String() string {
	if t == nil {
		return "<undefined>"
	}
	var sb strings.Builder
	_, _ = fmt.Fprintf(&sb, "(%s)%v strides=%v", t.dtype, t.dims, t.strides)
	if t.offset != 0 {
		_, _ = fmt.Fprintf(&sb, " offset=%d", t.offset)
	}
	if t.device != devices.Host {
		_, _ = fmt.Fprintf(&sb, " %s", t.device)
	}
	if t.layout != LayoutStrided {
		_, _ = fmt.Fprintf(&sb, " layout=%s", t.layout)
	}
	return sb.String()
}
