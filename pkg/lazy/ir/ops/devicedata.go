// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package ops implements the concrete variants of lazy IR nodes.
//
// Each variant is an ir.OpKind plus an ir.NodeData payload with its literal parameters, a Create function
// that goes through the ir.Context factory (so equivalent nodes are reused), and a Cast function that returns
// a typed view of a node if it is of that variant.
package ops

import (
	"reflect"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/lazyir/backends"
	"github.com/gomlx/lazyir/pkg/core/shapes"
	"github.com/gomlx/lazyir/pkg/lazy/ir"
)

// DeviceData is the view of a leaf node that wraps backend data: a tensor already stored in a backend,
// given as input to the lazy graph.
//
// The node only holds a reference to the data: it never finalizes it.
type DeviceData struct {
	*ir.Node
	params *deviceDataParams
}

// deviceDataParams is the ir.NodeData of DeviceData nodes.
//
// Nodes are keyed by the identity of the data (handle and device), not by its shape: two different
// allocations with the same shape are never conflated.
type deviceDataParams struct {
	data backends.Data
}

// Hash implements ir.NodeData.
func (p *deviceDataParams) Hash() ir.Hash {
	return ir.HashCombine(ir.Hash(p.data.Handle()), ir.HashString(p.data.Device().String()))
}

// Equal implements ir.NodeData.
func (p *deviceDataParams) Equal(other ir.NodeData) bool {
	o := other.(*deviceDataParams)
	return p.data.Handle() == o.data.Handle() && p.data.Device() == o.data.Device()
}

// String implements fmt.Stringer, and is appended to the node description.
func (p *deviceDataParams) String() string {
	return "device=" + p.data.Device().String()
}

// CreateDeviceData returns a leaf node wrapping data.
//
// If reuse is enabled, calling it again with the same data (the same handle) returns the same node,
// while data with a different handle always gets a different node.
//
// It panics if data is nil, has an invalid handle or was already finalized.
func CreateDeviceData(ctx *ir.Context, data backends.Data) *ir.Node {
	if isNil(data) {
		exceptions.Panicf("ops.CreateDeviceData(): nil data")
	}
	if data.Handle() == backends.InvalidHandle {
		exceptions.Panicf("ops.CreateDeviceData(): data with invalid handle (shape=%s, device=%s)", data.Shape(), data.Device())
	}
	if !data.HasValue() {
		exceptions.Panicf("ops.CreateDeviceData(): data (handle=%d) was already finalized", data.Handle())
	}
	shape := data.Shape()
	if !shape.Ok() {
		exceptions.Panicf("ops.CreateDeviceData(): data (handle=%d) has invalid shape", data.Handle())
	}
	params := &deviceDataParams{data: data}
	return ctx.Create(ir.OpKindDeviceData, nil, params, func() *ir.Node {
		return ir.NewNode(ir.OpKindDeviceData, nil, []shapes.Shape{shape}, ctx.Seed(ir.OpKindDeviceData), params)
	})
}

// CastDeviceData returns the DeviceData view of node, if it is a DeviceData node.
// Otherwise, it returns (nil, false).
func CastDeviceData(node *ir.Node) (*DeviceData, bool) {
	params, ok := ir.NodeCast[*deviceDataParams](node, ir.OpKindDeviceData)
	if !ok {
		return nil, false
	}
	return &DeviceData{Node: node, params: params}, true
}

// Data returns the backend data wrapped by the node.
func (d *DeviceData) Data() backends.Data {
	return d.params.data
}

// isNil returns whether the interface is nil or holds a nil pointer.
func isNil(data backends.Data) bool {
	if data == nil {
		return true
	}
	v := reflect.ValueOf(data)
	return v.Kind() == reflect.Pointer && v.IsNil()
}
