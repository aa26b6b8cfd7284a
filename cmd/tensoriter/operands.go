// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"slices"
	"strconv"
	"strings"

	"github.com/gomlx/tensoriter/pkg/core/devices"
	"github.com/gomlx/tensoriter/pkg/core/dtypes"
	"github.com/gomlx/tensoriter/pkg/core/tensoriter"
	"github.com/gomlx/tensoriter/pkg/core/tensors"
	"github.com/pkg/errors"
)

// AutoOperand is the operand description of an output allocated by the iterator.
const AutoOperand = "auto"

// Memory layouts of the operands created from the command line.
const (
	LayoutContiguous   = "contiguous"
	LayoutTransposed   = "transposed"
	LayoutChannelsLast = "channels_last"
)

// operandSpec describes an operand given in the command line as "<dtype>[<dims>][:<layout>][@<device>]", e.g.
// "float32[3,1]", "int8[]" (a scalar) or "float16[2,3,4,5]:channels_last@cuda:0".
type operandSpec struct {
	auto   bool
	dtype  dtypes.DType
	dims   []int
	layout string
	device devices.Device
}

func parseOperand(s string) (spec operandSpec, err error) {
	s = strings.TrimSpace(s)
	if s == AutoOperand {
		spec.auto = true
		return
	}
	spec.layout = LayoutContiguous
	spec.device = devices.Host
	if rest, deviceStr, found := strings.Cut(s, "@"); found {
		spec.device, err = devices.Parse(deviceStr)
		if err != nil {
			return
		}
		s = rest
	}
	dtypeStr, rest, found := strings.Cut(s, "[")
	if !found {
		err = errors.Errorf("operand %q is missing the dimensions, e.g. \"float32[2,3]\"", s)
		return
	}
	spec.dtype, err = dtypes.Parse(dtypeStr)
	if err != nil {
		err = errors.WithMessagef(err, "operand %q", s)
		return
	}
	dimsStr, rest, found := strings.Cut(rest, "]")
	if !found {
		err = errors.Errorf("operand %q is missing the closing \"]\"", s)
		return
	}
	spec.dims = []int{}
	if strings.TrimSpace(dimsStr) != "" {
		for _, dimStr := range strings.Split(dimsStr, ",") {
			var dim int
			dim, err = strconv.Atoi(strings.TrimSpace(dimStr))
			if err != nil || dim < 0 {
				err = errors.Errorf("invalid dimension %q in operand %q", dimStr, s)
				return
			}
			spec.dims = append(spec.dims, dim)
		}
	}
	if rest != "" {
		layout, found := strings.CutPrefix(rest, ":")
		if !found || !slices.Contains([]string{LayoutContiguous, LayoutTransposed, LayoutChannelsLast}, layout) {
			err = errors.Errorf("invalid layout %q in operand %q, valid layouts are %q, %q and %q",
				rest, s, LayoutContiguous, LayoutTransposed, LayoutChannelsLast)
			return
		}
		spec.layout = layout
	}
	if spec.layout == LayoutChannelsLast && len(spec.dims) != 4 {
		err = errors.Errorf("operand %q: channels_last layout requires 4 dimensions", s)
	}
	return
}

// newTensor allocates the operand with its layout. Operands in the host are filled with 0, 1, 2, ... in
// row-major order (converted to the dtype).
func (spec operandSpec) newTensor() (*tensors.Tensor, error) {
	if spec.auto {
		return nil, nil
	}
	var t *tensors.Tensor
	switch spec.layout {
	case LayoutTransposed:
		rank := len(spec.dims)
		reversed := slices.Clone(spec.dims)
		slices.Reverse(reversed)
		permutation := make([]int, rank)
		for axis := range permutation {
			permutation[axis] = rank - 1 - axis
		}
		t = tensors.Empty(spec.dtype, spec.device, reversed...).Permute(permutation...)
	case LayoutChannelsLast:
		t = tensors.EmptyStrided(spec.dtype, spec.device, spec.dims, tensors.ChannelsLastStrides(spec.dims))
	default:
		t = tensors.Empty(spec.dtype, spec.device, spec.dims...)
	}
	if !spec.device.IsCPU() {
		return t, nil
	}
	values := make([]float64, t.Size())
	for i := range values {
		values[i] = float64(i)
	}
	if err := tensoriter.Copy(t, tensors.FromFlat(values, spec.dims...)); err != nil {
		return nil, errors.WithMessagef(err, "initializing operand %s", t)
	}
	return t, nil
}

// operandsFlag collects the repeated operand flags.
type operandsFlag []string

// String implements flag.Value.
func (f *operandsFlag) String() string { return strings.Join(*f, " ") }

// Set implements flag.Value.
func (f *operandsFlag) Set(value string) error {
	if _, err := parseOperand(value); err != nil {
		return err
	}
	*f = append(*f, value)
	return nil
}

// parseDims parses a comma-separated list of dimensions, like "2,3,4".
func parseDims(s string) ([]int, error) {
	dims := []int{}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		dim, err := strconv.Atoi(part)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid dimension %q", part)
		}
		dims = append(dims, dim)
	}
	return dims, nil
}
