// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package tensoriter

import (
	"github.com/gomlx/tensoriter/pkg/core/devices"
	"github.com/gomlx/tensoriter/pkg/core/dtypes"
	"github.com/gomlx/tensoriter/pkg/core/names"
	"github.com/gomlx/tensoriter/pkg/core/tensors"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// computeTypes computes the common dtype and device, checks the operands agree with them as configured, and
// replaces operands that need casting by temporary copies.
//
// The common dtype is computed from the inputs only: it is their dtype if they all agree, or their promoted
// dtype if PromoteInputsToCommonDType is set. Otherwise, it is left undefined.
func (it *Iterator) computeTypes(config Config) error {
	commonDevice := devices.Host
	it.commonDType = dtypes.InvalidDType
	outputDType := dtypes.InvalidDType
	var hasDifferentInputDTypes, hasDifferentOutputDTypes, hasUndefinedOutputs bool

	for _, op := range it.operands {
		if !op.IsTypeDefined() {
			hasUndefinedOutputs = true
			continue
		}
		if !op.Tensor.Defined() {
			continue
		}
		if commonDevice.IsCPU() && !op.Device.IsCPU() {
			commonDevice = op.Device
		}
		if !op.IsOutput {
			if op.TargetDType != it.commonDType {
				if it.commonDType == dtypes.InvalidDType {
					it.commonDType = op.TargetDType
				} else {
					hasDifferentInputDTypes = true
				}
			}
		} else if op.TargetDType != outputDType {
			if outputDType == dtypes.InvalidDType {
				outputDType = op.TargetDType
			} else {
				hasDifferentOutputDTypes = true
			}
		}
	}

	if config.Is(CheckAllSameDType) && (hasDifferentInputDTypes || hasDifferentOutputDTypes ||
		(it.commonDType != dtypes.InvalidDType && outputDType != dtypes.InvalidDType && it.commonDType != outputDType)) {
		expected := it.commonDType
		if expected == dtypes.InvalidDType {
			expected = outputDType
		}
		for arg, op := range it.operands {
			if op.Tensor.Defined() && op.TargetDType != expected {
				return errors.Wrapf(ErrDTypeMismatch, "found dtype %s for operand %d, but expected %s (enable %s to promote)",
					op.TargetDType, arg, expected, PromoteInputsToCommonDType)
			}
		}
	}
	if hasDifferentInputDTypes && !config.Is(PromoteInputsToCommonDType) &&
		(hasUndefinedOutputs || config.Is(EnforceSafeCastingToOutput) || config.Is(CastCommonDTypeToOutputs)) {
		return errors.Wrapf(ErrDTypeMismatch, "inputs have different dtypes, a common dtype requires %s",
			PromoteInputsToCommonDType)
	}

	if !hasUndefinedOutputs && !config.Is(CheckAllSameDevice) && !config.Is(PromoteInputsToCommonDType) &&
		!config.Is(CastCommonDTypeToOutputs) && !config.Is(EnforceSafeCastingToOutput) {
		if hasDifferentInputDTypes {
			it.commonDType = dtypes.InvalidDType
		}
		return it.castInputsToTarget(commonDevice)
	}

	if hasDifferentInputDTypes {
		if config.Is(PromoteInputsToCommonDType) {
			it.commonDType = it.computeCommonDType()
			klog.V(2).Infof("tensoriter: promoted inputs to common dtype %s", it.commonDType)
		} else {
			it.commonDType = dtypes.InvalidDType
		}
	}

	if config.Is(EnforceSafeCastingToOutput) && it.commonDType == dtypes.InvalidDType {
		return errors.Wrapf(ErrDTypeMismatch, "%s requires a common dtype, but there are no inputs to compute it from",
			EnforceSafeCastingToOutput)
	}

	maxCPUScalars := 0
	if config.Is(AllowCPUScalars) {
		maxCPUScalars = 1
	}
	numCPUScalars := 0
	for arg := range it.operands {
		op := &it.operands[arg]
		if !op.IsTypeDefined() {
			if it.commonDType == dtypes.InvalidDType {
				return errors.Wrapf(ErrInvalidArgument, "can't infer the dtype of output %d: there are no inputs", arg)
			}
			op.TargetDType = it.commonDType
			op.Device = commonDevice
			continue
		}
		if !op.Tensor.Defined() {
			continue
		}

		if config.Is(CheckAllSameDevice) {
			if !commonDevice.IsCPU() && config.Is(AllowCPUScalars) && !op.IsOutput &&
				op.Tensor.Rank() == 0 && op.Device.IsCPU() {
				if numCPUScalars >= maxCPUScalars {
					return errors.Wrapf(ErrDeviceMismatch, "too many CPU scalars for an iteration on %s", commonDevice)
				}
				numCPUScalars++
			} else if op.Device != commonDevice {
				return errors.Wrapf(ErrDeviceMismatch,
					"expected all operands to be on the same device, found at least two devices, %s and %s (operand %d)",
					commonDevice, op.Device, arg)
			}
		}

		if it.commonDType == dtypes.InvalidDType {
			continue
		}
		if config.Is(EnforceSafeCastingToOutput) && op.IsOutput && op.CurrentDType != it.commonDType &&
			!dtypes.CanCast(it.commonDType, op.CurrentDType) {
			return errors.Wrapf(ErrUnsafeCast, "result dtype %s can't be cast to the dtype %s of output %d",
				it.commonDType, op.CurrentDType, arg)
		}

		if commonDevice.IsCPU() {
			if config.Is(CastCommonDTypeToOutputs) && op.IsOutput && op.CurrentDType != it.commonDType {
				op.OriginalTensor = op.Tensor
				op.Tensor = tensors.EmptyLike(op.Tensor, it.commonDType)
				op.CurrentDType = it.commonDType
				klog.V(2).Infof("tensoriter: output %d written to a %s temporary", arg, it.commonDType)
			}
			if config.Is(PromoteInputsToCommonDType) && !op.IsOutput && op.CurrentDType != it.commonDType {
				op.TargetDType = it.commonDType
			}
		}
	}
	return it.castInputsToTarget(commonDevice)
}

// castInputsToTarget replaces inputs whose target dtype differs from their current dtype by cast copies.
// Casting is only done in the CPU.
func (it *Iterator) castInputsToTarget(commonDevice devices.Device) error {
	for arg := it.numOutputs; arg < len(it.operands); arg++ {
		op := &it.operands[arg]
		if op.CurrentDType == op.TargetDType {
			continue
		}
		if !commonDevice.IsCPU() || !op.Device.IsCPU() {
			return errors.Wrapf(ErrDTypeMismatch, "can't cast input %d from %s to %s on device %s",
				arg-it.numOutputs, op.CurrentDType, op.TargetDType, op.Device)
		}
		tmp := tensors.EmptyLike(op.Tensor, op.TargetDType)
		if err := Copy(tmp, op.Tensor); err != nil {
			return errors.WithMessagef(err, "casting input %d from %s to %s", arg-it.numOutputs, op.CurrentDType, op.TargetDType)
		}
		if op.OriginalTensor == nil {
			op.OriginalTensor = op.Tensor
		}
		op.Tensor = tmp
		op.CurrentDType = op.TargetDType
		klog.V(2).Infof("tensoriter: input %d read through a %s copy", arg-it.numOutputs, op.TargetDType)
	}
	return nil
}

// computeCommonDType promotes the dtypes of the inputs. Zero-dimensional inputs only participate if they are
// of a higher category.
func (it *Iterator) computeCommonDType() dtypes.DType {
	var state dtypes.ResultTypeState
	for _, op := range it.operands[it.numOutputs:] {
		state.Update(op.TargetDType, op.Tensor.Rank() == 0)
	}
	return state.Result()
}

// computeNames unifies the dimension names of the operands, if any of them is named.
func (it *Iterator) computeNames(config Config) error {
	var operandNames [][]string
	var ranks []int
	anyNamed := false
	for _, op := range it.operands {
		if !op.Tensor.Defined() || (config.Is(ResizeOutputs) && op.IsOutput) {
			continue
		}
		dimNames := op.Tensor.Names()
		anyNamed = anyNamed || names.HasNames(dimNames)
		operandNames = append(operandNames, dimNames)
		ranks = append(ranks, op.Tensor.Rank())
	}
	if !anyNamed {
		return nil
	}
	var err error
	it.names, err = names.Infer(operandNames, ranks)
	if err != nil {
		return errors.Wrapf(ErrInvalidArgument, "dimension names of operands don't match: %v", err)
	}
	return nil
}

// propagateNames sets the inferred dimension names on the outputs.
func (it *Iterator) propagateNames() {
	if it.names == nil {
		return
	}
	for i := range it.numOutputs {
		op := &it.operands[i]
		for _, t := range []*tensors.Tensor{op.Tensor, op.OriginalTensor} {
			if t.Defined() && t.Rank() == len(it.names) {
				t.SetNames(it.names)
			}
		}
	}
}
