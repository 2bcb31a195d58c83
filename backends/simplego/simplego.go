// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package simplego implements a simple, and very portable, host backend that holds tensor data in Go slices.
//
// It doesn't execute anything: it only provides the backends.Data handles the lazy IR wraps in its
// DeviceData leaf nodes.
package simplego

import (
	"sync"

	"github.com/gomlx/lazyir/backends"
)

// BackendName to be used in GOMLX_LAZY_BACKEND to specify this backend.
const BackendName = "go"

// DeviceType of the only device of this backend.
const DeviceType = "CPU"

// Registers New() as the default constructor for "go" backend.
func init() {
	backends.Register(BackendName, New)
}

// New constructs a new SimpleGo Backend.
// There are no configurations, the string is simply ignored.
func New(_ string) (backends.Backend, error) {
	return newBackend(), nil
}

func newBackend() *Backend {
	return &Backend{}
}

// Backend implements the backends.Backend interface.
type Backend struct {
	// flatPools are a map to pools of flat slices that can be reused.
	// The underlying type is map[flatPoolKey]*sync.Pool.
	flatPools sync.Map
}

// Compile-time check that simplego.Backend implements backends.Backend.
var _ backends.Backend = &Backend{}

// Name returns the short name of the backend.
func (b *Backend) Name() string {
	return BackendName
}

// String implements fmt.Stringer.
func (b *Backend) String() string { return BackendName }

// Description is a longer description of the Backend that can be used to pretty-print.
func (b *Backend) Description() string {
	return "Simple Go Portable Backend"
}

// NumDevices return the number of devices available for this Backend.
func (b *Backend) NumDevices() int {
	return 1
}

// DefaultDevice returns the only device, "CPU:0".
func (b *Backend) DefaultDevice() backends.Device {
	return backends.Device{Type: DeviceType}
}

// Finalize releases all the associated resources immediately, and makes the backend invalid.
func (b *Backend) Finalize() {
	b.flatPools.Clear()
}
