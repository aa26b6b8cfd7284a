// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package devices identifies where an array's memory lives.
//
// The iterator never moves memory across devices: it only uses the Device to check that
// operands agree, and to decide whether host-side temporaries can be created.
package devices

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// DeviceType is the kind of device holding an array.
type DeviceType int

//go:generate go tool enumer -type=DeviceType -transform=lower -output=devicetype_enumer.go devices.go

const (
	CPU DeviceType = iota
	CUDA
	Metal
	WebGPU
)

// Device is a device type plus the ordinal of the device among those of the same type.
//
// The zero value is the (first) CPU.
type Device struct {
	Type    DeviceType
	Ordinal int
}

// Host is the CPU device.
var Host = Device{Type: CPU}

// New returns the device of the given type and ordinal.
func New(deviceType DeviceType, ordinal int) Device {
	return Device{Type: deviceType, Ordinal: ordinal}
}

// IsCPU returns whether the device is host memory.
func (d Device) IsCPU() bool { return d.Type == CPU }

// String returns "cpu" for the host and "<type>:<ordinal>" for other devices.
func (d Device) String() string {
	if d.Type == CPU && d.Ordinal == 0 {
		return d.Type.String()
	}
	return d.Type.String() + ":" + strconv.Itoa(d.Ordinal)
}

// Parse converts strings like "cpu", "cuda:1" or "metal" into a Device.
func Parse(s string) (Device, error) {
	name, ordinalStr, hasOrdinal := strings.Cut(strings.TrimSpace(s), ":")
	deviceType, err := DeviceTypeString(name)
	if err != nil {
		return Device{}, errors.Wrapf(err, "invalid device %q", s)
	}
	d := Device{Type: deviceType}
	if hasOrdinal {
		d.Ordinal, err = strconv.Atoi(ordinalStr)
		if err != nil || d.Ordinal < 0 {
			return Device{}, errors.Errorf("invalid device ordinal in %q", s)
		}
	}
	return d, nil
}
