// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package dtypes

import (
	"github.com/gomlx/gopjrt/dtypes/bfloat16"
	"github.com/gomlx/tensoriter/internal/rawmem"
	"github.com/pkg/errors"
	"github.com/x448/float16"
)

// ConvertFn converts n strided elements from src to dst. Offsets and strides are in bytes,
// strides may be zero (broadcast) or negative.
type ConvertFn func(dst []byte, dstOffset, dstStride int, src []byte, srcOffset, srcStride int, n int)

// ConvertFunc returns the function that converts elements of dtype from into elements of dtype to.
//
// Conversion between numeric types follows Go conversion semantics. Bool converts to 0 or 1 and
// any non-zero value converts to true. Complex values converted to real types keep only the real
// part. Float16 and BFloat16 are converted through float32.
func ConvertFunc(from, to DType) (ConvertFn, error) {
	if !from.IsValid() || !to.IsValid() {
		return nil, errors.Errorf("cannot convert from %s to %s", from, to)
	}
	if from == to {
		size := from.Size()
		return func(dst []byte, dstOffset, dstStride int, src []byte, srcOffset, srcStride int, n int) {
			for range n {
				copy(dst[dstOffset:dstOffset+size], src[srcOffset:srcOffset+size])
				dstOffset += dstStride
				srcOffset += srcStride
			}
		}, nil
	}
	switch from {
	case Bool:
		return convertVia(func(v bool) uint8 {
			if v {
				return 1
			}
			return 0
		}, to), nil
	case Int8:
		return convertVia(identity[int8], to), nil
	case Int16:
		return convertVia(identity[int16], to), nil
	case Int32:
		return convertVia(identity[int32], to), nil
	case Int64:
		return convertVia(identity[int64], to), nil
	case Uint8:
		return convertVia(identity[uint8], to), nil
	case Uint16:
		return convertVia(identity[uint16], to), nil
	case Uint32:
		return convertVia(identity[uint32], to), nil
	case Uint64:
		return convertVia(identity[uint64], to), nil
	case Float32:
		return convertVia(identity[float32], to), nil
	case Float64:
		return convertVia(identity[float64], to), nil
	case Float16:
		return convertVia(func(v float16.Float16) float32 { return v.Float32() }, to), nil
	case BFloat16:
		return convertVia(func(v bfloat16.BFloat16) float32 { return v.Float32() }, to), nil
	case Complex64:
		if to.IsComplex() {
			return convertComplex[complex64](to), nil
		}
		return convertVia(func(v complex64) float32 { return real(v) }, to), nil
	case Complex128:
		if to.IsComplex() {
			return convertComplex[complex128](to), nil
		}
		return convertVia(func(v complex128) float64 { return real(v) }, to), nil
	}
	return nil, errors.Errorf("cannot convert from %s to %s", from, to)
}

func identity[T any](v T) T { return v }

// convertVia reads elements of type S, maps them to a real number R and stores R as dtype to.
func convertVia[S any, R RealNumber](read func(S) R, to DType) ConvertFn {
	store := storerFor[R](to)
	return func(dst []byte, dstOffset, dstStride int, src []byte, srcOffset, srcStride int, n int) {
		for range n {
			store(dst, dstOffset, read(rawmem.Load[S](src, srcOffset)))
			dstOffset += dstStride
			srcOffset += srcStride
		}
	}
}

type storeFn[R RealNumber] func(buf []byte, offset int, value R)

func storerFor[R RealNumber](to DType) storeFn[R] {
	switch to {
	case Bool:
		return func(buf []byte, offset int, value R) { rawmem.Store(buf, offset, value != 0) }
	case Int8:
		return func(buf []byte, offset int, value R) { rawmem.Store(buf, offset, int8(value)) }
	case Int16:
		return func(buf []byte, offset int, value R) { rawmem.Store(buf, offset, int16(value)) }
	case Int32:
		return func(buf []byte, offset int, value R) { rawmem.Store(buf, offset, int32(value)) }
	case Int64:
		return func(buf []byte, offset int, value R) { rawmem.Store(buf, offset, int64(value)) }
	case Uint8:
		return func(buf []byte, offset int, value R) { rawmem.Store(buf, offset, uint8(value)) }
	case Uint16:
		return func(buf []byte, offset int, value R) { rawmem.Store(buf, offset, uint16(value)) }
	case Uint32:
		return func(buf []byte, offset int, value R) { rawmem.Store(buf, offset, uint32(value)) }
	case Uint64:
		return func(buf []byte, offset int, value R) { rawmem.Store(buf, offset, uint64(value)) }
	case Float32:
		return func(buf []byte, offset int, value R) { rawmem.Store(buf, offset, float32(value)) }
	case Float64:
		return func(buf []byte, offset int, value R) { rawmem.Store(buf, offset, float64(value)) }
	case Float16:
		return func(buf []byte, offset int, value R) {
			rawmem.Store(buf, offset, float16.Fromfloat32(float32(value)))
		}
	case BFloat16:
		return func(buf []byte, offset int, value R) {
			rawmem.Store(buf, offset, bfloat16.FromFloat32(float32(value)))
		}
	case Complex64:
		return func(buf []byte, offset int, value R) { rawmem.Store(buf, offset, complex(float32(value), 0)) }
	case Complex128:
		return func(buf []byte, offset int, value R) { rawmem.Store(buf, offset, complex(float64(value), 0)) }
	}
	panicf("unsupported conversion target dtype %s", to)
	return nil
}

func convertComplex[S complex64 | complex128](to DType) ConvertFn {
	return func(dst []byte, dstOffset, dstStride int, src []byte, srcOffset, srcStride int, n int) {
		for range n {
			value := complex128(rawmem.Load[S](src, srcOffset))
			if to == Complex64 {
				rawmem.Store(dst, dstOffset, complex64(value))
			} else {
				rawmem.Store(dst, dstOffset, value)
			}
			dstOffset += dstStride
			srcOffset += srcStride
		}
	}
}
