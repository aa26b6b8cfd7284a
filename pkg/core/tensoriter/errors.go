// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package tensoriter

import (
	"github.com/pkg/errors"
)

// Kinds of errors returned (or panicked, for accessors) by the iterator.
// Every error is wrapped with context, use errors.Is to test for its kind.
var (
	// ErrInvalidArgument is a malformed configuration: unsupported layout, bad dimension index, etc.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrShapeMismatch is a broadcast incompatibility, or an output with the wrong shape when resizing is disabled.
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrDTypeMismatch is raised when operands disagree on the dtype and they are required to be the same.
	ErrDTypeMismatch = errors.New("dtype mismatch")

	// ErrDeviceMismatch is raised when operands live in different devices.
	ErrDeviceMismatch = errors.New("device mismatch")

	// ErrUnsafeCast is raised when the common dtype can't be safely cast to an output's dtype.
	ErrUnsafeCast = errors.New("unsafe cast")

	// ErrMemoryOverlap is raised when an output shares memory with itself or with an input in an unsafe way.
	ErrMemoryOverlap = errors.New("memory overlap")

	// ErrInvalidQuery is a query for something that wasn't computed, or an out-of-range operand or dimension.
	ErrInvalidQuery = errors.New("invalid query")
)

// invalidQueryf panics with an ErrInvalidQuery error: out-of-range accessors are bugs in the caller, like
// an out-of-range slice index.
func invalidQueryf(format string, args ...any) {
	panic(newInvalidQuery(format, args...))
}

func newInvalidQuery(format string, args ...any) error {
	return errors.Wrapf(ErrInvalidQuery, format, args...)
}
