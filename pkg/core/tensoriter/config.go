// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package tensoriter

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Option is a boolean setting of the iterator's Config.
type Option int

//go:generate go tool enumer -type=Option -linecomment -output=option_enumer.go config.go

const (
	// CheckAllSameDType requires every defined operand to have the same dtype. Default true.
	CheckAllSameDType Option = iota // check_all_same_dtype

	// CheckAllSameDevice requires every operand to live in the same device, except CPU scalars when
	// AllowCPUScalars is set. Default true.
	CheckAllSameDevice // check_all_same_device

	// EnforceSafeCastingToOutput requires the common dtype to be safely castable to every output. Default false.
	EnforceSafeCastingToOutput // enforce_safe_casting_to_output

	// PromoteInputsToCommonDType computes the common dtype by promotion, and reads inputs of other dtypes
	// through cast copies. Default false.
	PromoteInputsToCommonDType // promote_inputs_to_common_dtype

	// CastCommonDTypeToOutputs writes outputs of a dtype different from the common dtype into temporaries,
	// copied back by Iterator.CastOutputs. Default false.
	CastCommonDTypeToOutputs // cast_common_dtype_to_outputs

	// ResizeOutputs allocates undefined outputs and resizes outputs of the wrong shape to the broadcast shape.
	// If disabled, outputs take part in broadcasting and must match the broadcast shape. Default true.
	ResizeOutputs // resize_outputs

	// CheckMemOverlap fails the build if an output overlaps with itself or partially with an input.
	// Default false.
	CheckMemOverlap // check_mem_overlap

	// IsReduction marks the iterator as a reduction: outputs have dimensions of size 1 (stride 0) where inputs
	// are reduced. Default false.
	IsReduction // is_reduction

	// AllowCPUScalars exempts one zero-dimensional CPU input from the same-device check, when the other
	// operands are on an accelerator. Default false.
	AllowCPUScalars // allow_cpu_scalars
)

const numOptions = int(AllowCPUScalars) + 1

// Config holds the build-time settings of an iterator. It is a value: the With* methods return a modified copy.
type Config struct {
	values, explicit [numOptions]bool

	hasStaticShape bool
	staticShape    []int
	squashDim      int
}

// DefaultConfig returns the default configuration: CheckAllSameDType, CheckAllSameDevice and ResizeOutputs are
// enabled, everything else is disabled.
func DefaultConfig() Config {
	var c Config
	c.values[CheckAllSameDType] = true
	c.values[CheckAllSameDevice] = true
	c.values[ResizeOutputs] = true
	c.squashDim = -1
	return c
}

// Is returns whether the option is enabled.
func (c Config) Is(option Option) bool {
	return c.values[option]
}

// With returns a copy of the configuration with the option set to value.
func (c Config) With(option Option, value bool) Config {
	if !option.IsAOption() {
		klog.Errorf("ignoring invalid tensoriter option %d", int(option))
		return c
	}
	c.values[option] = value
	c.explicit[option] = true
	return c
}

// WithStaticShape returns a copy of the configuration that declares the iteration shape, skipping the
// broadcasting of the operands: every operand must have the rank of shape, and each of its dimensions
// is iterated with the extent given by shape.
//
// If squashDim is given, that dimension of the shape is set to 1.
//
// ResizeOutputs must be disabled when a static shape is declared, or Validate fails.
func (c Config) WithStaticShape(shape []int, squashDim ...int) Config {
	c.hasStaticShape = true
	c.staticShape = slices.Clone(shape)
	c.squashDim = -1
	if len(squashDim) > 0 {
		c.squashDim = squashDim[0]
	}
	return c
}

// StaticShape returns the declared static shape, after squashing, and whether one was declared.
func (c Config) StaticShape() ([]int, bool) {
	if !c.hasStaticShape {
		return nil, false
	}
	shape := slices.Clone(c.staticShape)
	if c.squashDim >= 0 && c.squashDim < len(shape) {
		shape[c.squashDim] = 1
	}
	return shape, true
}

// Validate checks the configuration and returns its effective version.
//
// Promoting inputs or casting to outputs implies operands may have different dtypes, so either of them disables
// CheckAllSameDType.
func (c Config) Validate() (Config, error) {
	if c.Is(PromoteInputsToCommonDType) || c.Is(CastCommonDTypeToOutputs) {
		if c.Is(CheckAllSameDType) && c.explicit[CheckAllSameDType] {
			klog.Warningf("tensoriter: %s disabled because %s or %s is enabled",
				CheckAllSameDType, PromoteInputsToCommonDType, CastCommonDTypeToOutputs)
		}
		c.values[CheckAllSameDType] = false
	}
	if c.hasStaticShape {
		if c.Is(ResizeOutputs) {
			return c, errors.Wrapf(ErrInvalidArgument,
				"%s must be disabled before declaring a static shape", ResizeOutputs)
		}
		for axis, dim := range c.staticShape {
			if dim < 0 {
				return c, errors.Wrapf(ErrInvalidArgument, "static shape %v has negative dimension at axis %d",
					c.staticShape, axis)
			}
		}
		if len(c.staticShape) > 0 && (c.squashDim < -1 || c.squashDim >= len(c.staticShape)) {
			return c, errors.Wrapf(ErrInvalidArgument, "squash dimension %d must be in [0, %d)",
				c.squashDim, len(c.staticShape))
		}
	}
	return c, nil
}

// ParseConfig parses a comma-separated list of options applied over DefaultConfig.
// An option name enables it, "-name" or "name=false" disables it. Example:
//
//	"promote_inputs_to_common_dtype,-resize_outputs,check_mem_overlap=true"
func ParseConfig(s string) (Config, error) {
	c := DefaultConfig()
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		value := true
		if rest, found := strings.CutPrefix(part, "-"); found {
			value = false
			part = rest
		} else if name, valueStr, found := strings.Cut(part, "="); found {
			var err error
			value, err = strconv.ParseBool(valueStr)
			if err != nil {
				return c, errors.Wrapf(ErrInvalidArgument, "invalid value for option %q: %v", name, err)
			}
			part = name
		}
		option, err := OptionString(part)
		if err != nil {
			return c, errors.Wrapf(ErrInvalidArgument, "unknown option %q, valid options are %v", part, OptionStrings())
		}
		c = c.With(option, value)
	}
	return c, nil
}

// String lists the enabled options, and the static shape if one was declared.
func (c Config) String() string {
	var parts []string
	for _, option := range OptionValues() {
		if c.Is(option) {
			parts = append(parts, option.String())
		}
	}
	if shape, ok := c.StaticShape(); ok {
		parts = append(parts, fmt.Sprintf("static_shape=%v", shape))
	}
	return strings.Join(parts, ",")
}
