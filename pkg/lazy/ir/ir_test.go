// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"fmt"
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/lazyir/pkg/core/shapes"
	"k8s.io/klog/v2"
)

func init() {
	klog.InitFlags(nil)
}

var (
	testOpLeaf  = NewOpKind("test::leaf")
	testOpAdd   = NewOpKind("test::add")
	testOpSub   = NewOpKind("test::sub")
	testOpSplit = NewOpKind("test::split")
)

var testShape = shapes.Make(dtypes.Float32, 2)

// testParams is a NodeData with a controllable hash, so tests can force collisions.
type testParams struct {
	value int
	hash  Hash
}

func newTestParams(value int) *testParams {
	return &testParams{value: value, hash: HashInts(value)}
}

func (p *testParams) Hash() Hash { return p.hash }

func (p *testParams) Equal(other NodeData) bool { return p.value == other.(*testParams).value }

func (p *testParams) String() string { return fmt.Sprintf("value=%d", p.value) }

// otherParams has the same hash as testParams for the same value, but is a different type.
type otherParams struct{ value int }

func (p otherParams) Hash() Hash { return HashInts(p.value) }

func (p otherParams) Equal(other NodeData) bool { return p.value == other.(otherParams).value }

func newLeafWithData(ctx *Context, data NodeData) *Node {
	return ctx.Create(testOpLeaf, nil, data, func() *Node {
		return NewNode(testOpLeaf, nil, []shapes.Shape{testShape}, ctx.Seed(testOpLeaf), data)
	})
}

func newLeaf(ctx *Context, value int) *Node {
	return newLeafWithData(ctx, newTestParams(value))
}

func newBinary(ctx *Context, op OpKind, lhs, rhs Output) *Node {
	inputs := []Output{lhs, rhs}
	return ctx.Create(op, inputs, nil, func() *Node {
		return NewNode(op, inputs, []shapes.Shape{testShape}, ctx.Seed(op), nil)
	})
}

func newSplit(ctx *Context, x *Node) *Node {
	inputs := Outputs(x)
	return ctx.Create(testOpSplit, inputs, nil, func() *Node {
		return NewNode(testOpSplit, inputs, []shapes.Shape{testShape, shapes.Scalar(dtypes.Int32)}, ctx.Seed(testOpSplit), nil)
	})
}

// withReuse sets the reuse flag for the duration of the test.
func withReuse(t *testing.T, enabled bool) {
	previous := SetReuseIR(enabled)
	t.Cleanup(func() { SetReuseIR(previous) })
}
