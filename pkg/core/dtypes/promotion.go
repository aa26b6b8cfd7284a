// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package dtypes

// Category groups dtypes by kind: a value of a higher category can represent the "kind" of
// values of a lower category, but not necessarily their range or precision.
type Category int

const (
	CategoryInvalid Category = iota
	CategoryBool
	CategoryInt
	CategoryFloat
	CategoryComplex
)

// Category returns the kind of the dtype.
func (dtype DType) Category() Category {
	switch {
	case dtype == Bool:
		return CategoryBool
	case dtype.IsInt():
		return CategoryInt
	case dtype.IsFloat():
		return CategoryFloat
	case dtype.IsComplex():
		return CategoryComplex
	}
	return CategoryInvalid
}

func signedIntOfBits(bits int) DType {
	switch {
	case bits <= 8:
		return Int8
	case bits <= 16:
		return Int16
	case bits <= 32:
		return Int32
	}
	return Int64
}

// promoteInts promotes two integer types: the result is signed if either is signed, and wide
// enough to hold every value of a signed operand and twice the width of an unsigned one,
// capped at 64 bits.
func promoteInts(a, b DType) DType {
	if a.IsUnsigned() && b.IsUnsigned() {
		return max(a, b)
	}
	bits := 0
	for _, dtype := range [2]DType{a, b} {
		if dtype.IsUnsigned() {
			bits = max(bits, 2*dtype.Bits())
		} else {
			bits = max(bits, dtype.Bits())
		}
	}
	return signedIntOfBits(bits)
}

// promoteFloats returns the wider of two floats. Float16 and BFloat16 can't represent each
// other, so mixing them requires Float32.
func promoteFloats(a, b DType) DType {
	if a == b {
		return a
	}
	if a.IsFloat16() && b.IsFloat16() {
		return Float32
	}
	if a.Bits() >= b.Bits() {
		return a
	}
	return b
}

// Promote returns the smallest dtype to which both a and b can be promoted without changing
// category.
//
// The rules form a lattice: Bool < integers < floats < complex. Across categories the higher
// category wins (an integer promoted with Float16 is Float16). Within a category the widest type
// wins, with signed/unsigned integer mixes widened to a signed type, and Float16 mixed with BFloat16
// becoming Float32. Complex numbers use the real width of both sides.
//
// Promote is commutative and associative, so promoting a list in any order yields the same result.
// InvalidDType is the identity element.
func Promote(a, b DType) DType {
	if a == InvalidDType {
		return b
	}
	if b == InvalidDType || a == b {
		return a
	}
	catA, catB := a.Category(), b.Category()
	if catA < catB {
		a, b = b, a
		catA, catB = catB, catA
	}
	switch catA {
	case CategoryBool:
		return Bool
	case CategoryInt:
		if catB == CategoryBool {
			return a
		}
		return promoteInts(a, b)
	case CategoryFloat:
		if catB == CategoryFloat {
			return promoteFloats(a, b)
		}
		return a
	case CategoryComplex:
		realB := b.RealDType()
		if realB == InvalidDType {
			return a
		}
		if promoteFloats(a.RealDType(), realB).Bits() > 32 {
			return Complex128
		}
		return Complex64
	}
	return InvalidDType
}

// PromoteAll promotes all given dtypes. It returns InvalidDType for an empty list.
func PromoteAll(dtypes ...DType) DType {
	result := InvalidDType
	for _, dtype := range dtypes {
		result = Promote(result, dtype)
	}
	return result
}

// ResultTypeState accumulates the operands participating in a computation and returns their
// common dtype.
//
// Operands are split in two priority classes: arrays with at least one dimension and
// zero-dimensional arrays (scalars). A scalar only affects the result if it belongs to a higher
// category than all the dimensioned arrays -- so an Int32 array added to a Float64 scalar yields a
// float result, but a Float32 array added to a Float64 scalar stays Float32.
type ResultTypeState struct {
	dimResult, zeroResult DType
}

// Update includes a new operand. isZeroDim should be true for rank-0 operands.
func (s *ResultTypeState) Update(dtype DType, isZeroDim bool) {
	if isZeroDim {
		s.zeroResult = Promote(s.zeroResult, dtype)
	} else {
		s.dimResult = Promote(s.dimResult, dtype)
	}
}

// Result returns the common dtype of the operands seen so far.
func (s *ResultTypeState) Result() DType {
	return combineCategories(s.dimResult, s.zeroResult)
}

func combineCategories(higher, lower DType) DType {
	if higher.IsComplex() {
		return higher
	}
	if higher.IsFloat() {
		if !lower.IsComplex() {
			return higher
		}
		// A complex scalar only brings its category: the precision is the one of the arrays.
		if higher == Float64 {
			return Complex128
		}
		return Complex64
	}
	if higher == Bool || lower.IsFloat() || lower.IsComplex() {
		return Promote(higher, lower)
	}
	if higher != InvalidDType {
		return higher
	}
	return lower
}

// CanCast returns whether values of dtype from can be written to an array of dtype to without
// changing category downwards: complex can't become real, floats can't become integers, and
// nothing but Bool becomes Bool. Narrowing within a category is allowed.
func CanCast(from, to DType) bool {
	if from.IsComplex() && !to.IsComplex() {
		return false
	}
	if from.IsFloat() && (to.IsInt() || to == Bool) {
		return false
	}
	if from != Bool && to == Bool {
		return false
	}
	return true
}
