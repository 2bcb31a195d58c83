// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ops

import (
	"fmt"
	"math"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/lazyir/pkg/core/shapes"
	"github.com/gomlx/lazyir/pkg/lazy/ir"
)

// Scalar is the view of a leaf node holding a literal scalar value.
type Scalar struct {
	*ir.Node
	params *scalarParams
}

type scalarParams struct {
	value float64
	dtype dtypes.DType
}

// Hash implements ir.NodeData.
func (p *scalarParams) Hash() ir.Hash {
	return ir.HashCombine(ir.HashFloat64(p.value), ir.Hash(p.dtype))
}

// Equal implements ir.NodeData. Values are compared by their bits: 0.0 and -0.0 differ, and equal NaNs match.
func (p *scalarParams) Equal(other ir.NodeData) bool {
	o := other.(*scalarParams)
	return math.Float64bits(p.value) == math.Float64bits(o.value) && p.dtype == o.dtype
}

// String implements fmt.Stringer.
func (p *scalarParams) String() string {
	return fmt.Sprintf("value=%g", p.value)
}

// CreateScalar returns a leaf node with a scalar value of the given dtype.
func CreateScalar(ctx *ir.Context, value float64, dtype dtypes.DType) *ir.Node {
	if dtype == dtypes.InvalidDType {
		exceptions.Panicf("ops.CreateScalar(%g): invalid dtype", value)
	}
	params := &scalarParams{value: value, dtype: dtype}
	return ctx.Create(ir.OpKindScalar, nil, params, func() *ir.Node {
		return ir.NewNode(ir.OpKindScalar, nil, []shapes.Shape{shapes.Scalar(dtype)}, ctx.Seed(ir.OpKindScalar), params)
	})
}

// CastScalar returns the Scalar view of node, if it is a Scalar node.
func CastScalar(node *ir.Node) (*Scalar, bool) {
	params, ok := ir.NodeCast[*scalarParams](node, ir.OpKindScalar)
	if !ok {
		return nil, false
	}
	return &Scalar{Node: node, params: params}, true
}

// Value of the scalar.
func (s *Scalar) Value() float64 { return s.params.value }
