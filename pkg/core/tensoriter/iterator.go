// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package tensoriter implements an iterator over the elements of strided multi-dimensional tensors, used to
// write element-wise kernels (unary, binary, comparisons) and reductions.
//
// An Iterator is created with a Builder: it broadcasts the operands to a common shape, resolves their
// common dtype and device, allocates the undefined outputs, and then reorders and coalesces the dimensions
// so that kernels run over the fewest and densest loops possible.
//
// Kernels are given as Loop1D or Loop2D functions, called by ForEach (or SerialForEach) with the data pointers
// and byte strides of each operand. Reductions use ParallelReduce or ForEachReducedElt.
//
// Dimensions of the iterator are numbered in the iteration order: the last dimension is the one that moves
// fastest. The Permutation maps them back to the dimensions of the operands.
package tensoriter

import (
	"slices"

	"github.com/gomlx/tensoriter/internal/workerspool"
	"github.com/gomlx/tensoriter/pkg/core/devices"
	"github.com/gomlx/tensoriter/pkg/core/dtypes"
	"github.com/gomlx/tensoriter/pkg/core/tensors"
)

// GrainSize is the minimum number of elements processed by each parallel task.
const GrainSize = 32768

// Iterator over the elements of its operands. The first NOutputs operands are the outputs, followed by the inputs.
//
// Build it with NewBuilder. An Iterator is not safe for concurrent use, but its Clone (or the sub-iterators
// created by Split and Narrow on clones) can be used concurrently.
type Iterator struct {
	operands   []OperandInfo
	numOutputs int

	shape       []int
	perm        []int
	viewOffsets []int
	names       []string

	commonDType            dtypes.DType
	hasCoalescedDimensions bool
	allOpsSameShape        bool
	fastSetup              FastSetupType

	isReduction bool
	accumulate  bool
	finalOutput bool

	pool *workerspool.Pool
}

// checkArg panics if arg is not a valid operand index.
func (it *Iterator) checkArg(arg int) *OperandInfo {
	if arg < 0 || arg >= len(it.operands) {
		invalidQueryf("operand %d out of range, iterator has %d operands", arg, len(it.operands))
	}
	return &it.operands[arg]
}

func (it *Iterator) checkDim(dim int) {
	if dim < 0 || dim >= len(it.shape) {
		invalidQueryf("dimension %d out of range, iterator has %d dimensions", dim, len(it.shape))
	}
}

// NDim returns the number of iteration dimensions, after coalescing.
func (it *Iterator) NDim() int { return len(it.shape) }

// Shape returns the iteration shape, in iteration order. It must not be changed.
func (it *Iterator) Shape() []int { return it.shape }

// Numel returns the number of elements iterated.
func (it *Iterator) Numel() int {
	numel := 1
	for _, dim := range it.shape {
		numel *= dim
	}
	return numel
}

// NTensors returns the number of operands.
func (it *Iterator) NTensors() int { return len(it.operands) }

// NOutputs returns the number of outputs.
func (it *Iterator) NOutputs() int { return it.numOutputs }

// NInputs returns the number of inputs.
func (it *Iterator) NInputs() int { return len(it.operands) - it.numOutputs }

// ViewOffsets returns, for each iteration dimension, the index where the current view starts. They are zero
// unless the iterator was narrowed or split.
func (it *Iterator) ViewOffsets() []int { return it.viewOffsets }

// Names returns the dimension names inferred for the outputs, or nil if no operand is named.
func (it *Iterator) Names() []string { return it.names }

// Pool returns the workers pool used for parallel iterations.
func (it *Iterator) Pool() *workerspool.Pool { return it.pool }

// FastSetup returns the layout used by the fast setup, or FastSetupNone if the general setup was used.
func (it *Iterator) FastSetup() FastSetupType { return it.fastSetup }

// IsReduction returns whether the iterator was built for a reduction.
func (it *Iterator) IsReduction() bool { return it.isReduction }

// ShouldAccumulate returns whether the outputs already hold a partial result that the kernel must accumulate
// on, as opposed to overwriting. It is set on sub-iterators created by Split on a reduced dimension.
func (it *Iterator) ShouldAccumulate() bool { return it.accumulate }

// IsFinalOutput returns whether the kernel is writing the final value of the outputs. It is false on the
// sub-iterators created by Split on a reduced dimension, except for the one that finishes the reduction.
func (it *Iterator) IsFinalOutput() bool { return it.finalOutput }

// HasCoalescedDimensions returns whether dimensions were merged during the build. After that the iteration
// dimensions no longer map to the operands' dimensions.
func (it *Iterator) HasCoalescedDimensions() bool { return it.hasCoalescedDimensions }

// Permutation returns, for each iteration dimension, the operand dimension it comes from.
func (it *Iterator) Permutation() []int { return it.perm }

// Operand returns the information of the operand arg. It must not be changed.
func (it *Iterator) Operand(arg int) *OperandInfo { return it.checkArg(arg) }

// Strides returns the byte strides of the operand arg, in iteration order.
func (it *Iterator) Strides(arg int) []int { return it.checkArg(arg).StrideBytes }

// DataPtr returns the pointer to the first element of the operand arg in the current view.
func (it *Iterator) DataPtr(arg int) Pointer { return it.checkArg(arg).Data }

// DType returns the current dtype of the operand arg.
func (it *Iterator) DType(arg int) dtypes.DType { return it.checkArg(arg).CurrentDType }

// InputDType returns the current dtype of the input arg (counted from the first input).
func (it *Iterator) InputDType(arg int) dtypes.DType { return it.checkArg(it.numOutputs + arg).CurrentDType }

// Device returns the device of the operand arg.
func (it *Iterator) Device(arg int) devices.Device { return it.checkArg(arg).Device }

// ElementSize returns the size in bytes of one element of the operand arg.
func (it *Iterator) ElementSize(arg int) int { return it.checkArg(arg).CurrentDType.Size() }

// IsScalar returns whether the operand arg has a single element, in which case its strides are all zero.
func (it *Iterator) IsScalar(arg int) bool {
	for dim, stride := range it.checkArg(arg).StrideBytes {
		if stride != 0 && it.shape[dim] != 1 {
			return false
		}
	}
	return true
}

// IsCPUScalar returns whether the operand arg is a scalar living in the CPU.
func (it *Iterator) IsCPUScalar(arg int) bool {
	return it.IsScalar(arg) && it.operands[arg].Device.IsCPU()
}

// Tensor returns the operand arg, which may be a temporary cast copy of the one given to the Builder.
func (it *Iterator) Tensor(arg int) *tensors.Tensor { return it.checkArg(arg).Tensor }

// Output returns the output arg.
func (it *Iterator) Output(arg int) *tensors.Tensor {
	if arg < 0 || arg >= it.numOutputs {
		invalidQueryf("output %d out of range, iterator has %d outputs", arg, it.numOutputs)
	}
	return it.operands[arg].Tensor
}

// Input returns the input arg (counted from the first input).
func (it *Iterator) Input(arg int) *tensors.Tensor {
	if arg < 0 || arg >= it.NInputs() {
		invalidQueryf("input %d out of range, iterator has %d inputs", arg, it.NInputs())
	}
	return it.operands[it.numOutputs+arg].Tensor
}

// CommonDType returns the dtype resolved for the computation. It fails with ErrInvalidQuery if the inputs
// have different dtypes and no promotion was configured.
func (it *Iterator) CommonDType() (dtypes.DType, error) {
	if it.commonDType == dtypes.InvalidDType {
		return dtypes.InvalidDType, newInvalidQuery("common dtype is undefined, enable %s to compute it",
			PromoteInputsToCommonDType)
	}
	return it.commonDType, nil
}

// IsTrivial1D returns whether the iteration has exactly one dimension.
func (it *Iterator) IsTrivial1D() bool { return len(it.shape) == 1 }

// IsContiguous returns whether the iteration is over a single element, or over one dimension where all
// operands are contiguous.
func (it *Iterator) IsContiguous() bool {
	if it.Numel() == 1 {
		return true
	}
	if len(it.shape) != 1 {
		return false
	}
	return it.HasContiguousInnerDim()
}

// HasContiguousInnerDim returns whether every operand has stride equal to its element size along the
// fastest dimension.
func (it *Iterator) HasContiguousInnerDim() bool {
	if len(it.shape) == 0 {
		return true
	}
	inner := len(it.shape) - 1
	for _, op := range it.operands {
		if op.StrideBytes[inner] != op.CurrentDType.Size() {
			return false
		}
	}
	return true
}

// IsDimReduced returns whether dim is reduced: the first output doesn't move along it, but the iteration does.
func (it *Iterator) IsDimReduced(dim int) bool {
	it.checkDim(dim)
	for _, op := range it.operands[:it.numOutputs] {
		if op.StrideBytes[dim] == 0 && it.shape[dim] > 1 {
			return true
		}
	}
	return false
}

// NumReduceDims returns the number of reduced dimensions. Reordering moves them to the end of the shape.
func (it *Iterator) NumReduceDims() int {
	count := 0
	for dim := range it.shape {
		if it.operands[0].StrideBytes[dim] == 0 {
			count++
		}
	}
	return count
}

// NumOutputElements returns the number of elements of the first output covered by the iteration.
func (it *Iterator) NumOutputElements() int {
	numel := 1
	for dim, size := range it.shape {
		if it.operands[0].StrideBytes[dim] != 0 || size == 0 {
			numel *= size
		}
	}
	return numel
}

// CompatibleStride returns the contiguous byte strides, in iteration order, for an operand with elements of
// the given size.
func (it *Iterator) CompatibleStride(elementSize int) []int {
	strides := make([]int, len(it.shape))
	next := elementSize
	for dim := len(it.shape) - 1; dim >= 0; dim-- {
		strides[dim] = next
		next *= it.shape[dim]
	}
	return strides
}

// InvertPerm maps values given in iteration order back to the operands' dimension order.
// It panics after dimensions have been coalesced.
func (it *Iterator) InvertPerm(input []int) []int {
	if it.hasCoalescedDimensions {
		invalidQueryf("InvertPerm can't be used after coalescing dimensions")
	}
	if len(input) != len(it.perm) {
		invalidQueryf("InvertPerm got %d values for %d dimensions", len(input), len(it.perm))
	}
	result := make([]int, len(input))
	for dim, axis := range it.perm {
		result[axis] = input[dim]
	}
	return result
}

// ApplyPermAndMul maps values given in the operands' dimension order to iteration order, multiplying them by mul.
// It panics after dimensions have been coalesced.
func (it *Iterator) ApplyPermAndMul(input []int, mul int) []int {
	if it.hasCoalescedDimensions {
		invalidQueryf("ApplyPermAndMul can't be used after coalescing dimensions")
	}
	if len(input) != len(it.perm) {
		invalidQueryf("ApplyPermAndMul got %d values for %d dimensions", len(input), len(it.perm))
	}
	result := make([]int, len(input))
	for dim, axis := range it.perm {
		result[dim] = input[axis] * mul
	}
	return result
}

// ScalarValue returns the value of the first element of the operand arg. T must match its dtype.
func ScalarValue[T dtypes.Supported](it *Iterator, arg int) T {
	op := it.checkArg(arg)
	if dtype := dtypes.FromGenericsType[T](); dtype != op.CurrentDType {
		invalidQueryf("operand %d has dtype %s, it can't be read as %s", arg, op.CurrentDType, dtype)
	}
	return Load[T](op.Data)
}

// Clone returns a deep copy of the iterator: it shares the operands' storage, but narrowing, splitting or
// removing operands from one doesn't affect the other.
func (it *Iterator) Clone() *Iterator {
	c := *it
	c.operands = make([]OperandInfo, len(it.operands))
	for i, op := range it.operands {
		c.operands[i] = op.clone()
	}
	c.shape = slices.Clone(it.shape)
	c.perm = slices.Clone(it.perm)
	c.viewOffsets = slices.Clone(it.viewOffsets)
	c.names = slices.Clone(it.names)
	return &c
}

// RemoveOperand removes the operand arg from the iterator.
func (it *Iterator) RemoveOperand(arg int) {
	it.checkArg(arg)
	if arg < it.numOutputs {
		it.numOutputs--
	}
	it.operands = slices.Delete(it.operands, arg, arg+1)
}

// UnsafeReplaceOperand points the operand arg to data instead. The caller must guarantee data is valid for
// the operand's strides over the whole iteration.
func (it *Iterator) UnsafeReplaceOperand(arg int, data Pointer) {
	it.checkArg(arg).Data = data
}

// RemoveDimension removes dim from the iteration. It must have size 1 (or be otherwise handled by the caller).
func (it *Iterator) RemoveDimension(dim int) {
	it.checkDim(dim)
	it.shape = slices.Delete(it.shape, dim, dim+1)
	for i := range it.operands {
		op := &it.operands[i]
		op.StrideBytes = slices.Delete(op.StrideBytes, dim, dim+1)
	}
	if len(it.viewOffsets) > 1 {
		it.viewOffsets = slices.Delete(it.viewOffsets, dim, dim+1)
	}
}

// Narrow restricts the iteration along dim to the range [start, start+size).
// The dimensions are not coalesced again afterwards.
func (it *Iterator) Narrow(dim, start, size int) {
	it.checkDim(dim)
	if start < 0 || size < 1 || start+size > it.shape[dim] {
		invalidQueryf("can't narrow dimension %d of size %d to [%d, %d)", dim, it.shape[dim], start, start+size)
	}
	it.viewOffsets[dim] += start
	for i := range it.operands {
		op := &it.operands[i]
		op.Data = op.Data.Add(op.StrideBytes[dim] * start)
	}
	it.shape[dim] = size
}

// SelectAllKeepingDim narrows each dimension in [0, endDim) to the single index given in indices, keeping it
// with size 1.
func (it *Iterator) SelectAllKeepingDim(endDim int, indices []int) {
	if endDim < 0 || endDim > len(it.shape) || len(indices) < endDim {
		invalidQueryf("SelectAllKeepingDim(%d) with %d indices for %d dimensions", endDim, len(indices), len(it.shape))
	}
	for dim := range endDim {
		it.Narrow(dim, indices[dim], 1)
	}
}

// CastOutputs copies the outputs written to temporaries back to the original tensors, converting their dtypes.
// It must be called after the kernel, when the iteration was built with CastCommonDTypeToOutputs.
func (it *Iterator) CastOutputs() error {
	for i := range it.numOutputs {
		op := &it.operands[i]
		if !op.OriginalTensor.Defined() || op.OriginalTensor.DType() == op.Tensor.DType() {
			continue
		}
		if err := Copy(op.OriginalTensor, op.Tensor); err != nil {
			return err
		}
		op.Tensor = op.OriginalTensor
		op.OriginalTensor = nil
		op.CurrentDType = op.Tensor.DType()
	}
	return nil
}
