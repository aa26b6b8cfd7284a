// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package names infers the dimension names of the result of a broadcasting operation.
//
// A name list has one entry per dimension; an empty string is a wildcard that matches any
// name. A nil list means the array has no names at all.
package names

import (
	"slices"

	"github.com/pkg/errors"
)

// HasNames returns whether any dimension of the list is named.
func HasNames(dimNames []string) bool {
	return slices.ContainsFunc(dimNames, func(name string) bool { return name != "" })
}

// Unify merges two name lists aligned at their trailing dimension, as in broadcasting.
//
// The result has the length of the longest list. Each position takes the non-wildcard name
// of either side; two different non-wildcard names at the same position is an error, and so is
// the same name appearing at two different positions of the result.
func Unify(a, b []string) ([]string, error) {
	if len(a) < len(b) {
		a, b = b, a
	}
	result := slices.Clone(a)
	offset := len(a) - len(b)
	for i, name := range b {
		if name == "" {
			continue
		}
		current := result[offset+i]
		if current != "" && current != name {
			return nil, errors.Errorf("dimension names %q and %q don't match at position %d from the end (names %q and %q)",
				current, name, len(b)-i, a, b)
		}
		result[offset+i] = name
	}
	if err := checkUnique(result); err != nil {
		return nil, err
	}
	return result, nil
}

// Infer unifies the names of all operands. rank lists the rank of each operand, used for operands
// without names. It returns nil if no operand is named.
func Infer(operandNames [][]string, ranks []int) ([]string, error) {
	var result []string
	named := false
	for i, dimNames := range operandNames {
		if !HasNames(dimNames) {
			dimNames = make([]string, ranks[i])
		} else {
			named = true
		}
		var err error
		result, err = Unify(result, dimNames)
		if err != nil {
			return nil, errors.WithMessagef(err, "operand #%d", i)
		}
	}
	if !named {
		return nil, nil
	}
	return result, nil
}

func checkUnique(dimNames []string) error {
	for i, name := range dimNames {
		if name == "" {
			continue
		}
		if j := slices.Index(dimNames[i+1:], name); j >= 0 {
			return errors.Errorf("dimension name %q is used twice, at positions %d and %d of %q", name, i, i+1+j, dimNames)
		}
	}
	return nil
}
