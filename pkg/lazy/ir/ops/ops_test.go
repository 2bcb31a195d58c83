// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ops

import (
	"math"
	"runtime"
	"strings"
	"testing"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/lazyir/backends"
	"github.com/gomlx/lazyir/backends/simplego"
	"github.com/gomlx/lazyir/pkg/core/shapes"
	"github.com/gomlx/lazyir/pkg/lazy/ir"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/klog/v2"
)

func init() {
	klog.InitFlags(nil)
}

// fakeData is a backends.Data whose identity is fully controlled by the test.
type fakeData struct {
	shape   shapes.Shape
	device  backends.Device
	handle  backends.Handle
	invalid bool
}

func (d *fakeData) Shape() shapes.Shape { return d.shape }
func (d *fakeData) Device() backends.Device { return d.device }
func (d *fakeData) Handle() backends.Handle { return d.handle }
func (d *fakeData) HasValue() bool { return !d.invalid }

var (
	testShape  = shapes.Make(dtypes.Float32, 3, 2)
	testDevice = backends.Device{Type: "TPU", Ordinal: 3}
	opAdd      = ir.NewOpKind("test::add")
	opSub      = ir.NewOpKind("test::sub")
)

func withReuse(t *testing.T, enabled bool) {
	previous := ir.SetReuseIR(enabled)
	t.Cleanup(func() { ir.SetReuseIR(previous) })
}

func newBackend(t *testing.T) *simplego.Backend {
	backend := must.M1(simplego.New("")).(*simplego.Backend)
	t.Cleanup(backend.Finalize)
	return backend
}

func TestDeviceDataReuse(t *testing.T) {
	withReuse(t, true)
	ctx := ir.NewContext()
	backend := newBackend(t)
	bufA := must.M1(backend.FromFlat([]float32{1, 2, 3, 4, 5, 6}, 3, 2))
	bufB := must.M1(backend.FromFlat([]float32{1, 2, 3, 4, 5, 6}, 3, 2))

	a := CreateDeviceData(ctx, bufA)
	assert.Same(t, a, CreateDeviceData(ctx, bufA), "same handle must reuse")
	b := CreateDeviceData(ctx, bufB)
	assert.NotSame(t, a, b, "different handles, same shape/device/contents, must not reuse")
	assert.NotEqual(t, a.Hash(), b.Hash())

	assert.Equal(t, ir.OpKindDeviceData, a.Op())
	assert.Equal(t, 0, a.NumInputs())
	assert.Equal(t, 1, a.NumOutputs())
	assert.True(t, testShape.Equal(a.Shape()))

	// Mutating the storage doesn't change the identity of the buffer, so the node is still the same.
	bufA.Flat().([]float32)[0] = 100
	assert.Same(t, a, CreateDeviceData(ctx, bufA))
	runtime.KeepAlive(b)
}

func TestDeviceDataDistinctHandles(t *testing.T) {
	withReuse(t, true)
	ctx := ir.NewContext()
	d1 := &fakeData{shape: testShape, device: testDevice, handle: 1}
	d2 := &fakeData{shape: testShape, device: testDevice, handle: 2}
	d1Alias := &fakeData{shape: testShape, device: testDevice, handle: 1}

	n1 := CreateDeviceData(ctx, d1)
	n2 := CreateDeviceData(ctx, d2)
	assert.NotSame(t, n1, n2)
	assert.Same(t, n1, CreateDeviceData(ctx, d1Alias), "same handle is the same storage")

	// Same handle on a different device is a different storage.
	other := &fakeData{shape: testShape, device: backends.Device{Type: "TPU", Ordinal: 4}, handle: 1}
	assert.NotSame(t, n1, CreateDeviceData(ctx, other))
	runtime.KeepAlive(n2)
}

func TestDeviceDataReuseDisabled(t *testing.T) {
	withReuse(t, false)
	ctx := ir.NewContext()
	d := &fakeData{shape: testShape, device: testDevice, handle: 1}
	n1, n2 := CreateDeviceData(ctx, d), CreateDeviceData(ctx, d)
	assert.NotSame(t, n1, n2)
	assert.Equal(t, n1.Hash(), n2.Hash())
}

func TestDeviceDataSeed(t *testing.T) {
	ctx := ir.NewContext().WithSeeds(ir.NewSeedRegistry())
	d := &fakeData{shape: testShape, device: testDevice, handle: 9}
	n := CreateDeviceData(ctx, d)
	want := ir.NewNode(ir.OpKindDeviceData, nil, []shapes.Shape{testShape}, ir.DeviceDataSeed, &deviceDataParams{data: d})
	assert.Equal(t, want.Hash(), n.Hash())
}

func TestDeviceDataString(t *testing.T) {
	ctx := ir.NewContext()
	n := CreateDeviceData(ctx, &fakeData{shape: testShape, device: testDevice, handle: 1})
	assert.Equal(t, "(Float32)[3 2] lazy::device_data, device=TPU:3", n.String())

	backend := newBackend(t)
	n = CreateDeviceData(ctx, must.M1(backend.FromFlat([]int32{1}, 1)))
	assert.True(t, strings.HasSuffix(n.String(), ", device="+backend.DefaultDevice().String()))
	assert.Contains(t, n.String(), "device=CPU:0")
}

func TestDeviceDataInvalid(t *testing.T) {
	ctx := ir.NewContext()
	var nilBuffer *simplego.Buffer
	backend := newBackend(t)
	finalized := must.M1(backend.FromFlat([]float32{1}, 1))
	must.M(backend.DataFinalize(finalized))

	for name, data := range map[string]backends.Data{
		"nil":            nil,
		"nil pointer":    nilBuffer,
		"invalid handle": &fakeData{shape: testShape, device: testDevice},
		"finalized":      finalized,
		"invalid shape":  &fakeData{shape: shapes.Invalid(), device: testDevice, handle: 1},
	} {
		err := exceptions.TryCatch[error](func() { CreateDeviceData(ctx, data) })
		require.Errorf(t, err, "CreateDeviceData(%s) should panic", name)
	}
	assert.Equal(t, 0, ctx.Cache().Len())
}

func TestCastDeviceData(t *testing.T) {
	ctx := ir.NewContext()
	d := &fakeData{shape: testShape, device: testDevice, handle: 1}
	n := CreateDeviceData(ctx, d)
	dd, ok := CastDeviceData(n)
	require.True(t, ok)
	assert.Same(t, n, dd.Node)
	assert.Same(t, d, dd.Data())
	assert.Equal(t, "TPU:3", dd.Data().Device().String())

	scalar := CreateScalar(ctx, 1, dtypes.Float32)
	add := CreateGeneric(ctx, opAdd, ir.Outputs(n, n), []shapes.Shape{testShape}, 0)
	for _, node := range []*ir.Node{scalar, add, nil} {
		dd, ok = CastDeviceData(node)
		assert.False(t, ok)
		assert.Nil(t, dd)
	}
}

func TestScalar(t *testing.T) {
	withReuse(t, true)
	ctx := ir.NewContext()
	one := CreateScalar(ctx, 1, dtypes.Float32)
	assert.Same(t, one, CreateScalar(ctx, 1, dtypes.Float32))
	assert.NotSame(t, one, CreateScalar(ctx, 1, dtypes.Float64), "dtype is a parameter")
	assert.NotSame(t, one, CreateScalar(ctx, 2, dtypes.Float32), "value is a parameter")
	zero := CreateScalar(ctx, 0, dtypes.Float32)
	assert.NotSame(t, zero, CreateScalar(ctx, math.Copysign(0, -1), dtypes.Float32))
	nan := CreateScalar(ctx, math.NaN(), dtypes.Float32)
	assert.Same(t, nan, CreateScalar(ctx, math.NaN(), dtypes.Float32))

	assert.True(t, one.Shape().IsScalar())
	assert.Equal(t, "(Float32) lazy::scalar, value=1", one.String())
	s, ok := CastScalar(one)
	require.True(t, ok)
	assert.Equal(t, 1.0, s.Value())
	_, ok = CastScalar(CreateDeviceData(ctx, &fakeData{shape: testShape, device: testDevice, handle: 1}))
	assert.False(t, ok)

	require.Error(t, exceptions.TryCatch[error](func() { CreateScalar(ctx, 1, dtypes.InvalidDType) }))
}

func TestGeneric(t *testing.T) {
	withReuse(t, true)
	ctx := ir.NewContext()
	x := CreateDeviceData(ctx, &fakeData{shape: testShape, device: testDevice, handle: 1})
	y := CreateDeviceData(ctx, &fakeData{shape: testShape, device: testDevice, handle: 2})

	xy := CreateGeneric(ctx, opSub, ir.Outputs(x, y), []shapes.Shape{testShape}, 0)
	assert.Same(t, xy, CreateGeneric(ctx, opSub, ir.Outputs(x, y), []shapes.Shape{testShape}, 0))
	yx := CreateGeneric(ctx, opSub, ir.Outputs(y, x), []shapes.Shape{testShape}, 0)
	assert.NotSame(t, xy, yx)
	assert.NotEqual(t, xy.Hash(), yx.Hash(), "swapping inputs changes the hash")

	assert.NotSame(t, xy, CreateGeneric(ctx, opAdd, ir.Outputs(x, y), []shapes.Shape{testShape}, 0))
	assert.NotSame(t, xy, CreateGeneric(ctx, opSub, ir.Outputs(x, y), []shapes.Shape{testShape}, 1),
		"hash seed is a parameter")
	assert.NotSame(t, xy, CreateGeneric(ctx, opSub, ir.Outputs(x, y), []shapes.Shape{shapes.Make(dtypes.Float64, 3, 2)}, 0),
		"output shapes are a parameter")

	require.Error(t, exceptions.TryCatch[error](func() {
		CreateGeneric(ctx, opAdd, ir.Outputs(x), nil, 0)
	}), "a node needs at least one output")
}
