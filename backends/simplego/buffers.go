// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package simplego

import (
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/lazyir/backends"
	"github.com/gomlx/lazyir/pkg/core/shapes"
	"github.com/pkg/errors"
)

// Compile-time check:
var (
	_ backends.DataInterface = (*Backend)(nil)
	_ backends.Data          = (*Buffer)(nil)
)

// lastHandle is shared by all SimpleGo backends, so handles are unique in the process.
var lastHandle atomic.Uint64

// Buffer for SimpleGo backend holds a shape and a reference to the flat data.
//
// Every allocation gets a new Buffer with a new handle, even when the flat storage is recycled
// from the backend pool. After finalization the shape, device and handle remain readable, only the
// storage is gone.
type Buffer struct {
	shape  shapes.Shape
	handle backends.Handle

	mu sync.RWMutex
	// flat is always a slice of the underlying data type (shape.DType), or nil if finalized.
	flat any
}

// Shape implements backends.Data.
func (buf *Buffer) Shape() shapes.Shape { return buf.shape }

// Device implements backends.Data. It is always "CPU:0".
func (buf *Buffer) Device() backends.Device { return backends.Device{Type: DeviceType} }

// Handle implements backends.Data.
func (buf *Buffer) Handle() backends.Handle { return buf.handle }

// HasValue implements backends.Data.
func (buf *Buffer) HasValue() bool {
	buf.mu.RLock()
	defer buf.mu.RUnlock()
	return buf.flat != nil
}

// Flat returns the flat slice holding the buffer storage, or nil if the buffer was finalized.
//
// The returned slice is shared with the buffer: mutating it changes the buffer contents, but not its identity.
func (buf *Buffer) Flat() any {
	buf.mu.RLock()
	defer buf.mu.RUnlock()
	return buf.flat
}

type flatPoolKey struct {
	dtype  dtypes.DType
	length int
}

// getFlatPool for given dtype/length.
func (b *Backend) getFlatPool(dtype dtypes.DType, length int) *sync.Pool {
	key := flatPoolKey{dtype: dtype, length: length}
	poolInterface, ok := b.flatPools.Load(key)
	if !ok {
		poolInterface, _ = b.flatPools.LoadOrStore(key, &sync.Pool{
			New: func() interface{} {
				return reflect.MakeSlice(reflect.SliceOf(dtype.GoType()), length, length).Interface()
			},
		})
	}
	return poolInterface.(*sync.Pool)
}

// NewBuffer creates a buffer with flat storage taken from the backend pool, and a new handle.
// The contents of a recycled storage are not zeroed.
func (b *Backend) NewBuffer(shape shapes.Shape) *Buffer {
	if !shape.Ok() {
		exceptions.Panicf("simplego.NewBuffer(): invalid shape %s", shape)
	}
	return &Buffer{
		shape:  shape.Clone(),
		handle: backends.Handle(lastHandle.Add(1)),
		flat:   b.getFlatPool(shape.DType, shape.Size()).Get(),
	}
}

// FromFlat is a convenience wrapper around DataFromFlat on the default device, returning the concrete *Buffer.
func (b *Backend) FromFlat(flat any, dimensions ...int) (*Buffer, error) {
	flatType := reflect.TypeOf(flat)
	if flatType == nil || flatType.Kind() != reflect.Slice {
		return nil, errors.Errorf("flat data should be a slice, got %T", flat)
	}
	dtype := dtypes.FromGoType(flatType.Elem())
	if dtype == dtypes.InvalidDType {
		return nil, errors.Errorf("flat is a slice of %s, not a supported data type", flatType.Elem())
	}
	data, err := b.DataFromFlat(b.DefaultDevice(), flat, shapes.Make(dtype, dimensions...))
	if err != nil {
		return nil, err
	}
	return data.(*Buffer), nil
}

// DataFromFlat implements backends.DataInterface.
func (b *Backend) DataFromFlat(device backends.Device, flat any, shape shapes.Shape) (backends.Data, error) {
	if device != b.DefaultDevice() {
		return nil, errors.Errorf("backend %q only supports device %s, cannot create data on device %s (shape=%s)",
			b.Name(), b.DefaultDevice(), device, shape)
	}
	flatValue := reflect.ValueOf(flat)
	if flatValue.Kind() != reflect.Slice {
		return nil, errors.Errorf("flat data should be a slice, got %T", flat)
	}
	if dtypes.FromGoType(flatValue.Type().Elem()) != shape.DType {
		return nil, errors.Errorf("flat data type (%s) does not match shape DType (%s)",
			flatValue.Type().Elem(), shape.DType)
	}
	if flatValue.Len() != shape.Size() {
		return nil, errors.Errorf("flat data has %d elements, but shape %s requires %d",
			flatValue.Len(), shape, shape.Size())
	}
	buffer := b.NewBuffer(shape)
	reflect.Copy(reflect.ValueOf(buffer.flat), flatValue)
	return buffer, nil
}

// DataToFlat implements backends.DataInterface.
func (b *Backend) DataToFlat(data backends.Data, flat any) error {
	buf, ok := data.(*Buffer)
	if !ok {
		return errors.Errorf("data is not a %q backend buffer, got %T", BackendName, data)
	}
	buf.mu.RLock()
	defer buf.mu.RUnlock()
	if buf.flat == nil {
		return errors.Errorf("DataToFlat(handle=%d): buffer was already finalized", buf.handle)
	}
	flatValue := reflect.ValueOf(flat)
	if flatValue.Kind() != reflect.Slice || flatValue.Type() != reflect.TypeOf(buf.flat) {
		return errors.Errorf("DataToFlat(handle=%d): flat must be a %s, got %T", buf.handle, reflect.TypeOf(buf.flat), flat)
	}
	if flatValue.Len() != buf.shape.Size() {
		return errors.Errorf("DataToFlat(handle=%d): flat has %d elements, but shape %s requires %d",
			buf.handle, flatValue.Len(), buf.shape, buf.shape.Size())
	}
	reflect.Copy(flatValue, reflect.ValueOf(buf.flat))
	return nil
}

// DataFinalize implements backends.DataInterface: the storage goes back to the pool, and the
// buffer is left without value.
func (b *Backend) DataFinalize(data backends.Data) error {
	buf, ok := data.(*Buffer)
	if !ok || buf == nil {
		return errors.Errorf("data is not a %q backend buffer, got %T", BackendName, data)
	}
	buf.mu.Lock()
	defer buf.mu.Unlock()
	if buf.flat == nil {
		return errors.Errorf("DataFinalize(handle=%d): buffer was already finalized", buf.handle)
	}
	b.getFlatPool(buf.shape.DType, buf.shape.Size()).Put(buf.flat)
	buf.flat = nil
	return nil
}
