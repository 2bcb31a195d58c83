// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package backends

import "github.com/gomlx/lazyir/pkg/core/shapes"

// Handle identifies one allocation of backend data.
//
// Two Data values with the same Handle refer to the same storage; different live allocations always
// have different handles, even if they have the same shape and device.
type Handle uint64

// InvalidHandle is never returned by a backend for valid data.
const InvalidHandle Handle = 0

// Data represents actual data (a tensor) stored in the backend that is going to be used by the graph.
//
// It's shared: the backend that created it and any lazy IR nodes referring to it hold references to the
// same value. Only the backend releases the storage (see DataInterface.DataFinalize); the lazy IR never does.
type Data interface {
	// Shape of the data.
	Shape() shapes.Shape

	// Device where the data is stored.
	Device() Device

	// Handle is the identity of the storage.
	Handle() Handle

	// HasValue returns false if the storage has already been finalized.
	HasValue() bool
}

// DataInterface is the Backend's subinterface that defines the API to transfer Data to/from the backend.
type DataInterface interface {
	// DataFromFlat transfers data from Go given as a flat slice (of the type corresponding to the shape DType)
	// to the device, and returns the corresponding Data.
	DataFromFlat(device Device, flat any, shape shapes.Shape) (Data, error)

	// DataToFlat transfers the flat values of data to the Go flat slice.
	// The slice flat must have the exact number of elements required to store the Data shape.
	DataToFlat(data Data, flat any) error

	// DataFinalize allows the client to inform backend that data is no longer needed and associated resources can be
	// freed immediately -- as opposed to waiting for a GC.
	//
	// Finalized data should never be used again. Its shape, device and handle remain readable though.
	DataFinalize(data Data) error
}
