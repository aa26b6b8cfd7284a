// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package tensoriter

import (
	"slices"

	"github.com/gomlx/tensoriter/pkg/core/dtypes"
	"github.com/gomlx/tensoriter/pkg/core/tensors"
	"github.com/pkg/errors"
)

// BinaryOp builds the iterator of an element-wise binary operation out = f(a, b).
//
// The inputs are promoted to a common dtype, out is allocated if nil, and if out has a different dtype the
// result is written into a temporary: call Iterator.CastOutputs after the kernel. One of the inputs may be
// a CPU scalar when the others are on an accelerator.
func BinaryOp(out, a, b *tensors.Tensor, checkMemOverlap bool) (*Iterator, error) {
	return NewBuilder().
		Set(CheckMemOverlap, checkMemOverlap).
		Set(AllowCPUScalars, true).
		Set(PromoteInputsToCommonDType, true).
		Set(CastCommonDTypeToOutputs, true).
		Set(EnforceSafeCastingToOutput, true).
		AddOutput(out).
		AddInput(a).
		AddInput(b).
		Build()
}

// ComparisonOp builds the iterator of an element-wise comparison out = f(a, b).
//
// The inputs are promoted to a common dtype. If out is nil it is allocated as Bool, otherwise it's written
// as is, whatever its dtype.
func ComparisonOp(out, a, b *tensors.Tensor, checkMemOverlap bool) (*Iterator, error) {
	builder := NewBuilder().
		Set(CheckMemOverlap, checkMemOverlap).
		Set(AllowCPUScalars, true).
		Set(PromoteInputsToCommonDType, true)
	if out.Defined() {
		builder.AddOutput(out)
	} else {
		builder.AddOutputWithTarget(nil, a.Device(), dtypes.Bool)
	}
	return builder.AddInput(a).AddInput(b).Build()
}

// UnaryOp builds the iterator of an element-wise unary operation out = f(a). Both must have the same dtype.
func UnaryOp(out, a *tensors.Tensor, checkMemOverlap bool) (*Iterator, error) {
	return NewBuilder().
		Set(CheckMemOverlap, checkMemOverlap).
		AddOutput(out).
		AddInput(a).
		Build()
}

// NullaryOp builds the iterator of an operation that only writes out, like filling it. out is not resized.
func NullaryOp(out *tensors.Tensor) (*Iterator, error) {
	return NewBuilder().
		Set(CheckAllSameDType, false).
		Set(ResizeOutputs, false).
		AddOutput(out).
		Build()
}

// ReduceOp builds the iterator of a reduction of a into out.
//
// out must be defined, with the rank of a: reduced dimensions have size 1. Use Iterator.ParallelReduce or
// Iterator.ForEachReducedElt to run the kernel.
func ReduceOp(out, a *tensors.Tensor) (*Iterator, error) {
	if !out.Defined() {
		return nil, errors.Wrap(ErrInvalidArgument, "the output of a reduction must be defined")
	}
	return NewBuilder().
		Set(CheckMemOverlap, false).
		Set(ResizeOutputs, false).
		Set(IsReduction, true).
		Set(PromoteInputsToCommonDType, true).
		AddOutput(out).
		AddInput(a).
		Build()
}

// ReduceOp2 builds the iterator of a reduction of a into two outputs, like the values and indices of a
// max reduction. Both outputs must be defined, with the same dimensions and strides.
func ReduceOp2(out1, out2, a *tensors.Tensor) (*Iterator, error) {
	if !out1.Defined() || !out2.Defined() {
		return nil, errors.Wrap(ErrInvalidArgument, "the outputs of a reduction must be defined")
	}
	if !slices.Equal(out1.Dims(), out2.Dims()) {
		return nil, errors.Wrapf(ErrInvalidArgument, "reduction outputs have different dimensions %v and %v",
			out1.Dims(), out2.Dims())
	}
	if !slices.Equal(out1.Strides(), out2.Strides()) {
		return nil, errors.Wrapf(ErrInvalidArgument, "reduction outputs have different strides %v and %v",
			out1.Strides(), out2.Strides())
	}
	return NewBuilder().
		Set(CheckAllSameDType, false).
		Set(ResizeOutputs, false).
		Set(IsReduction, true).
		AddOutput(out1).
		AddOutput(out2).
		AddInput(a).
		Build()
}
