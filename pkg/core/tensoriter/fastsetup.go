// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package tensoriter

import (
	"slices"

	"github.com/gomlx/tensoriter/pkg/core/tensors"
	"k8s.io/klog/v2"
)

// FastSetupType is a memory layout shared by all operands that allows iterating them as flat 1D arrays.
type FastSetupType int

//go:generate go tool enumer -type=FastSetupType -trimprefix=FastSetup -transform=snake -output=fastsetuptype_enumer.go fastsetup.go

const (
	// FastSetupNone means the operands require the general setup.
	FastSetupNone FastSetupType = iota

	// FastSetupContiguous means all operands are row-major contiguous.
	FastSetupContiguous

	// FastSetupChannelsLast means all operands are rank-4 NCHW arrays laid out as NHWC.
	FastSetupChannelsLast

	// FastSetupNonOverlappingDense means all operands have the same strides and are dense.
	FastSetupNonOverlappingDense
)

// computeFastSetupType checks whether all defined operands share one of the dense layouts.
// Reductions and broadcasting always use the general setup.
func (it *Iterator) computeFastSetupType() FastSetupType {
	if it.isReduction || !it.allOpsSameShape {
		return FastSetupNone
	}
	isContiguous, isChannelsLast, isNonOverlappingAndDense := true, true, true
	for _, op := range it.operands {
		if op.needsAllocation() {
			continue
		}
		isContiguous = isContiguous && op.Tensor.IsContiguous()
		isChannelsLast = isChannelsLast && op.Tensor.IsChannelsLast()
		isNonOverlappingAndDense = isNonOverlappingAndDense && op.Tensor.IsNonOverlappingAndDense()
	}
	switch {
	case isContiguous:
		return FastSetupContiguous
	case isChannelsLast:
		return FastSetupChannelsLast
	case isNonOverlappingAndDense:
		// All defined operands must also have the same strides: inputs are checked first.
		var prev *tensors.Tensor
		for arg := len(it.operands) - 1; arg >= 0; arg-- {
			if it.operands[arg].needsAllocation() {
				continue
			}
			t := it.operands[arg].Tensor
			if prev != nil && !slices.Equal(prev.Strides(), t.Strides()) {
				return FastSetupNone
			}
			prev = t
		}
		return FastSetupNonOverlappingDense
	}
	return FastSetupNone
}

// fastSetUp allocates the outputs and sets the iteration over a flat 1D view of all operands, if they share a
// dense layout. It returns false if the general setup is needed.
func (it *Iterator) fastSetUp() bool {
	it.fastSetup = it.computeFastSetupType()
	if it.fastSetup == FastSetupNone {
		return false
	}
	var layoutSource *tensors.Tensor
	if it.fastSetup == FastSetupNonOverlappingDense {
		for arg := len(it.operands) - 1; arg >= 0; arg-- {
			if !it.operands[arg].needsAllocation() {
				layoutSource = it.operands[arg].Tensor
				break
			}
		}
	}
	for i := range it.numOutputs {
		op := &it.operands[i]
		if !op.needsAllocation() {
			continue
		}
		switch it.fastSetup {
		case FastSetupContiguous:
			op.allocate(it.shape, tensors.ContiguousStrides(it.shape))
		case FastSetupChannelsLast:
			op.allocate(it.shape, tensors.ChannelsLastStrides(it.shape))
		case FastSetupNonOverlappingDense:
			op.allocate(it.shape, layoutSource.Strides())
		default:
		}
	}

	ndim := len(it.shape)
	if ndim > 1 {
		it.hasCoalescedDimensions = true
	}
	if ndim >= 1 {
		it.shape = []int{it.Numel()}
	}
	it.perm = make([]int, len(it.shape))
	for i := range it.operands {
		op := &it.operands[i]
		op.StrideBytes = make([]int, len(it.shape))
		if len(it.shape) > 0 {
			op.StrideBytes[0] = op.Tensor.ElementSize()
		}
	}
	klog.V(2).Infof("tensoriter: fast setup %s for %d dimensions", it.fastSetup, ndim)
	return true
}
