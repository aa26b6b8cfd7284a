// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package dtypes

import "strconv"

// DType is an enum representing the element type of an array.
//
// The numbering follows the XLA/PJRT buffer types, so values can be exchanged with
// github.com/gomlx/gopjrt/dtypes without translation.
type DType int32

const (
	// InvalidDType is the zero value: an operand whose type is not yet known.
	InvalidDType DType = 0

	// Bool is a two-state boolean stored in one byte.
	Bool DType = 1

	Int8  DType = 2
	Int16 DType = 3
	Int32 DType = 4
	Int64 DType = 5

	Uint8  DType = 6
	Uint16 DType = 7
	Uint32 DType = 8
	Uint64 DType = 9

	// Float16 is the IEEE 754 half precision float, see github.com/x448/float16.
	Float16 DType = 10
	Float32 DType = 11
	Float64 DType = 12

	// BFloat16 is the "brain float" with 8 bits of exponent and 7 bits of mantissa.
	BFloat16 DType = 13

	// Complex64 is a pair of float32 (real, imag).
	Complex64 DType = 14

	// Complex128 is a pair of float64 (real, imag).
	Complex128 DType = 15
)

// Short aliases, following XLA naming.
const (
	PRED = Bool
	S8   = Int8
	S16  = Int16
	S32  = Int32
	S64  = Int64
	U8   = Uint8
	U16  = Uint16
	U32  = Uint32
	U64  = Uint64
	F16  = Float16
	F32  = Float32
	F64  = Float64
	BF16 = BFloat16
	C64  = Complex64
	C128 = Complex128
)

var dtypeNames = [...]string{
	InvalidDType: "InvalidDType",
	Bool:         "Bool",
	Int8:         "Int8",
	Int16:        "Int16",
	Int32:        "Int32",
	Int64:        "Int64",
	Uint8:        "Uint8",
	Uint16:       "Uint16",
	Uint32:       "Uint32",
	Uint64:       "Uint64",
	Float16:      "Float16",
	Float32:      "Float32",
	Float64:      "Float64",
	BFloat16:     "BFloat16",
	Complex64:    "Complex64",
	Complex128:   "Complex128",
}

// String implements fmt.Stringer.
func (dtype DType) String() string {
	if dtype < 0 || int(dtype) >= len(dtypeNames) {
		return "DType(" + strconv.Itoa(int(dtype)) + ")"
	}
	return dtypeNames[dtype]
}

// MapOfNames maps names (and XLA aliases, and their lower-case versions) to DTypes.
// Used when parsing command line flags.
var MapOfNames = map[string]DType{
	"PRED": Bool,
	"S8":   Int8,
	"S16":  Int16,
	"S32":  Int32,
	"S64":  Int64,
	"U8":   Uint8,
	"U16":  Uint16,
	"U32":  Uint32,
	"U64":  Uint64,
	"F16":  Float16,
	"F32":  Float32,
	"F64":  Float64,
	"BF16": BFloat16,
	"C64":  Complex64,
	"C128": Complex128,
}
