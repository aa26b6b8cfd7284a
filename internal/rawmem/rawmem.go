// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package rawmem reads and writes fixed-size values stored in byte buffers.
//
// Buffers are always indexed with bounds checks: an out-of-range offset panics like
// any other slice access.
package rawmem

import "unsafe"

// SizeOf returns the size in bytes of T.
func SizeOf[T any]() int {
	var zero T
	return int(unsafe.Sizeof(zero))
}

// Load returns the value of type T stored at buf[offset:].
func Load[T any](buf []byte, offset int) T {
	b := buf[offset : offset+SizeOf[T]()]
	return *(*T)(unsafe.Pointer(unsafe.SliceData(b)))
}

// Store writes value at buf[offset:].
func Store[T any](buf []byte, offset int, value T) {
	b := buf[offset : offset+SizeOf[T]()]
	*(*T)(unsafe.Pointer(unsafe.SliceData(b))) = value
}

// Bytes returns the raw byte view of a flat slice. The returned slice shares memory with flat.
func Bytes[T any](flat []T) []byte {
	if len(flat) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(flat))), len(flat)*SizeOf[T]())
}

// Alloc returns a zeroed byte buffer of the given size, aligned to 16 bytes so any
// element type can be loaded in place.
func Alloc(numBytes int) []byte {
	if numBytes <= 0 {
		return nil
	}
	words := make([]complex128, (numBytes+15)/16)
	return Bytes(words)[:numBytes]
}
