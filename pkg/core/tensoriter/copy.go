// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package tensoriter

import (
	"github.com/gomlx/tensoriter/pkg/core/dtypes"
	"github.com/gomlx/tensoriter/pkg/core/tensors"
	"github.com/pkg/errors"
)

// Copy the elements of src into dst, converting them to the dtype of dst. src is broadcast to the shape of dst.
//
// Both tensors must live in the same device, and dst must not partially overlap with src.
func Copy(dst, src *tensors.Tensor) error {
	if !dst.Defined() || !src.Defined() {
		return errors.Wrapf(ErrInvalidArgument, "can't copy from %s to %s", src, dst)
	}
	if dst.Device() != src.Device() {
		return errors.Wrapf(ErrDeviceMismatch, "can't copy from %s to %s", src.Device(), dst.Device())
	}
	convert, err := dtypes.ConvertFunc(src.DType(), dst.DType())
	if err != nil {
		return errors.Wrapf(ErrInvalidArgument, "copy: %v", err)
	}
	it, err := NewBuilder().
		Set(CheckAllSameDType, false).
		Set(ResizeOutputs, false).
		Set(CheckMemOverlap, true).
		AddOutput(dst).
		AddInput(src).
		Build()
	if err != nil {
		return errors.WithMessagef(err, "copy from %s to %s", src, dst)
	}
	return it.ForEach(func(data []Pointer, strides []int, size0, size1 int) {
		dstPtr, srcPtr := data[0], data[1]
		for range size1 {
			convert(dstPtr.Buf, dstPtr.Offset, strides[0], srcPtr.Buf, srcPtr.Offset, strides[1], size0)
			dstPtr = dstPtr.Add(strides[2])
			srcPtr = srcPtr.Add(strides[3])
		}
	}, GrainSize)
}
