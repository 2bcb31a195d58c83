// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package backends

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Device identifies where backend data lives: a device type (e.g. "CPU", "CUDA") and the ordinal of
// the device among those of the same type.
type Device struct {
	Type    string
	Ordinal int
}

// String returns "<Type>:<Ordinal>", e.g. "CPU:0".
func (d Device) String() string {
	return fmt.Sprintf("%s:%d", d.Type, d.Ordinal)
}

// ParseDevice parses the format returned by Device.String.
// If the ordinal is omitted, it defaults to 0.
func ParseDevice(s string) (Device, error) {
	deviceType, ordinalStr, hasOrdinal := strings.Cut(s, ":")
	if deviceType == "" {
		return Device{}, errors.Errorf("invalid device %q: missing device type", s)
	}
	d := Device{Type: strings.ToUpper(deviceType)}
	if !hasOrdinal {
		return d, nil
	}
	ordinal, err := strconv.Atoi(ordinalStr)
	if err != nil {
		return Device{}, errors.Wrapf(err, "invalid device %q: ordinal must be an integer", s)
	}
	if ordinal < 0 {
		return Device{}, errors.Errorf("invalid device %q: negative ordinal", s)
	}
	d.Ordinal = ordinal
	return d, nil
}
