// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package tensoriter

import (
	"fmt"
	"slices"

	"github.com/gomlx/tensoriter/internal/rawmem"
	"github.com/gomlx/tensoriter/pkg/core/devices"
	"github.com/gomlx/tensoriter/pkg/core/dtypes"
	"github.com/gomlx/tensoriter/pkg/core/tensors"
)

// Pointer addresses an element of an operand: the buffer it is borrowed from, and the byte offset of
// the element in the buffer.
//
// The iterator never owns the buffers: they belong to the operands' storage.
type Pointer struct {
	Buf    []byte
	Offset int
}

// Add returns the pointer moved by the given number of bytes (which can be negative).
func (p Pointer) Add(bytes int) Pointer {
	p.Offset += bytes
	return p
}

// String implements fmt.Stringer.
func (p Pointer) String() string {
	return fmt.Sprintf("+%d/%d", p.Offset, len(p.Buf))
}

// Load the value of type T pointed by p. T must match the operand's dtype.
func Load[T dtypes.Supported](p Pointer) T {
	return rawmem.Load[T](p.Buf, p.Offset)
}

// Store value at the position pointed by p. T must match the operand's dtype.
func Store[T dtypes.Supported](p Pointer, value T) {
	rawmem.Store(p.Buf, p.Offset, value)
}

// OperandInfo holds the information about one operand of the iterator.
type OperandInfo struct {
	// Tensor is the operand. It may be undefined (nil) for outputs not yet allocated, and it is replaced by a
	// temporary copy if the operand requires casting.
	Tensor *tensors.Tensor

	// OriginalTensor is the operand as given by the caller, when Tensor was replaced by a temporary cast copy.
	OriginalTensor *tensors.Tensor

	// Device where the operand is (or, for undefined outputs, will be allocated).
	Device devices.Device

	// TargetDType is the dtype the operand should have, and CurrentDType is the dtype it currently has.
	// TargetDType may be set for undefined outputs, to drive their allocation.
	TargetDType, CurrentDType dtypes.DType

	// StrideBytes are the strides of the operand in bytes, one per iteration dimension, after broadcasting and
	// reordering.
	StrideBytes []int

	// Data points to the first element of the operand in the iterator's current view. It differs from
	// the tensor's own data offset after narrowing or splitting.
	Data Pointer

	// IsOutput is set for outputs, and IsReadWrite for outputs that are also given as inputs.
	IsOutput, IsReadWrite bool

	// willResize marks outputs of the wrong shape, resized when the outputs are allocated.
	willResize bool
}

func newOperand(t *tensors.Tensor) OperandInfo {
	op := OperandInfo{Tensor: t}
	if t.Defined() {
		op.Device = t.Device()
		op.TargetDType = t.DType()
		op.CurrentDType = t.DType()
	}
	return op
}

func newOperandWithTarget(t *tensors.Tensor, device devices.Device, dtype dtypes.DType) OperandInfo {
	op := OperandInfo{
		Tensor:       t,
		Device:       device,
		TargetDType:  dtype,
		CurrentDType: t.DType(),
	}
	if dtype == dtypes.InvalidDType {
		op.TargetDType = op.CurrentDType
	}
	return op
}

// IsTypeDefined returns whether the target dtype of the operand is known.
func (op *OperandInfo) IsTypeDefined() bool {
	return op.TargetDType != dtypes.InvalidDType
}

// needsAllocation returns whether the operand is an output still to be allocated or resized.
func (op *OperandInfo) needsAllocation() bool {
	return !op.Tensor.Defined() || op.willResize
}

// allocate sets the operand to a tensor with the given dimensions and strides (in elements): undefined outputs
// are created, and outputs of the wrong shape are resized, together with their original tensor if it was
// replaced by a temporary.
func (op *OperandInfo) allocate(dims, strides []int) {
	if !op.Tensor.Defined() {
		op.Tensor = tensors.EmptyStrided(op.TargetDType, op.Device, dims, strides)
		op.CurrentDType = op.TargetDType
		return
	}
	op.Tensor.ResizeStrided(dims, strides)
	if op.OriginalTensor.Defined() {
		op.OriginalTensor.ResizeStrided(dims, strides)
	}
	op.willResize = false
}

// clone returns a copy that doesn't share the stride slice.
func (op OperandInfo) clone() OperandInfo {
	op.StrideBytes = slices.Clone(op.StrideBytes)
	return op
}
