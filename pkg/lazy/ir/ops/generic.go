// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ops

import (
	"slices"

	"github.com/gomlx/lazyir/pkg/core/shapes"
	"github.com/gomlx/lazyir/pkg/lazy/ir"
)

// genericParams are the literal parameters of Generic nodes: the output shapes (they are not inferred)
// and an extra hash seed that callers can use to distinguish attributes not captured by the inputs.
type genericParams struct {
	shapes   []shapes.Shape
	hashSeed uint32
}

// Hash implements ir.NodeData.
func (p *genericParams) Hash() ir.Hash {
	h := ir.HashCombine(ir.Hash(p.hashSeed), ir.Hash(len(p.shapes)))
	for _, shape := range p.shapes {
		h = ir.HashCombine(h, ir.HashCombine(ir.Hash(shape.DType), ir.HashInts(shape.Dimensions...)))
	}
	return h
}

// Equal implements ir.NodeData.
func (p *genericParams) Equal(other ir.NodeData) bool {
	o := other.(*genericParams)
	return p.hashSeed == o.hashSeed && shapes.EqualAll(p.shapes, o.shapes)
}

// CreateGeneric returns a node of any op kind, with the given inputs and output shapes.
//
// It is used for operations that don't need a specialized variant: their identity is fully defined by the
// op kind, the inputs (in order), the output shapes and hashSeed.
func CreateGeneric(ctx *ir.Context, op ir.OpKind, inputs []ir.Output, outputShapes []shapes.Shape, hashSeed uint32) *ir.Node {
	params := &genericParams{shapes: slices.Clone(outputShapes), hashSeed: hashSeed}
	return ctx.Create(op, inputs, params, func() *ir.Node {
		return ir.NewNode(op, inputs, outputShapes, ctx.Seed(op), params)
	})
}
