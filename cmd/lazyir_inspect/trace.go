// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"slices"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/lazyir/backends"
	"github.com/gomlx/lazyir/pkg/core/shapes"
	"github.com/gomlx/lazyir/pkg/lazy/ir"
	"github.com/gomlx/lazyir/pkg/lazy/ir/ops"
	"github.com/pkg/errors"
)

// Op kinds of the synthetic training step.
var (
	opMatMul    = ir.NewOpKind("lazyir_inspect::matmul")
	opAdd       = ir.NewOpKind("lazyir_inspect::add")
	opMul       = ir.NewOpKind("lazyir_inspect::mul")
	opSub       = ir.NewOpKind("lazyir_inspect::sub")
	opRelu      = ir.NewOpKind("lazyir_inspect::relu")
	opReduceSum = ir.NewOpKind("lazyir_inspect::reduce_sum")
	opGrad      = ir.NewOpKind("lazyir_inspect::grad")
)

// model holds the parameters of a dense network, stored in the backend.
//
// While the parameters are not replaced, they keep their handles, so the DeviceData nodes wrapping them,
// and every node that only depends on them, are reused from one step to the next.
type model struct {
	backend backends.Backend
	dims    []int
	weights []backends.Data
	biases  []backends.Data
}

// newModel allocates the parameters of a network with the given layer dimensions: dims[0] is the input
// dimension, and there is one layer per following dimension.
func newModel(backend backends.Backend, dims []int) (*model, error) {
	if len(dims) < 2 {
		return nil, errors.Errorf("model requires at least 2 dimensions (input and one layer), got %v", dims)
	}
	m := &model{backend: backend, dims: dims}
	if err := m.allocate(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *model) allocate() error {
	numLayers := len(m.dims) - 1
	m.weights = make([]backends.Data, numLayers)
	m.biases = make([]backends.Data, numLayers)
	for layer := range numLayers {
		var err error
		m.weights[layer], err = m.newData(0.01, m.dims[layer], m.dims[layer+1])
		if err != nil {
			return errors.WithMessagef(err, "allocating weights of layer #%d", layer)
		}
		m.biases[layer], err = m.newData(0, m.dims[layer+1])
		if err != nil {
			return errors.WithMessagef(err, "allocating biases of layer #%d", layer)
		}
	}
	return nil
}

// newData allocates a Float32 tensor filled with value.
func (m *model) newData(value float32, dimensions ...int) (backends.Data, error) {
	shape := shapes.Make(dtypes.Float32, dimensions...)
	flat := make([]float32, shape.Size())
	for ii := range flat {
		flat[ii] = value
	}
	return m.backend.DataFromFlat(m.backend.DefaultDevice(), flat, shape)
}

// replace the parameters by new ones, as an optimizer materializing its updates would do.
// The old parameters are finalized.
func (m *model) replace() error {
	old := slices.Concat(m.weights, m.biases)
	if err := m.allocate(); err != nil {
		return err
	}
	return m.finalizeAll(old)
}

// finalize all the parameters of the model.
func (m *model) finalize() error {
	return m.finalizeAll(slices.Concat(m.weights, m.biases))
}

func (m *model) finalizeAll(all []backends.Data) error {
	for _, data := range all {
		if err := m.backend.DataFinalize(data); err != nil {
			return err
		}
	}
	return nil
}

// stepTrace is the outcome of tracing one step.
type stepTrace struct {
	// roots of the traced graph: the loss followed by the updated weights.
	roots []*ir.Node

	// numNodes reachable from the roots.
	numNodes int
}

// traceStep traces one training step of m over a new batch of the given size.
//
// The batch buffer is new at every step, so nodes depending on it are always created. Nodes depending only on
// the parameters (the L2 regularization) and the constants are reused if reuse is enabled.
// The batch is finalized once traced: nodes never own the data they wrap.
func traceStep(ctx *ir.Context, m *model, batchSize int, learningRate float64) (*stepTrace, error) {
	batch, err := m.newData(1, batchSize, m.dims[0])
	if err != nil {
		return nil, errors.WithMessage(err, "allocating batch")
	}
	defer func() { _ = m.backend.DataFinalize(batch) }()

	lr := ops.CreateScalar(ctx, learningRate, dtypes.Float32)
	scalarShape := []shapes.Shape{shapes.Scalar(dtypes.Float32)}
	x := ops.CreateDeviceData(ctx, batch)
	weights := make([]*ir.Node, len(m.weights))
	var l2 *ir.Node
	for layer := range m.weights {
		w := ops.CreateDeviceData(ctx, m.weights[layer])
		b := ops.CreateDeviceData(ctx, m.biases[layer])
		weights[layer] = w
		outShape := []shapes.Shape{shapes.Make(dtypes.Float32, batchSize, m.dims[layer+1])}
		x = ops.CreateGeneric(ctx, opMatMul, ir.Outputs(x, w), outShape, 0)
		x = ops.CreateGeneric(ctx, opAdd, ir.Outputs(x, b), outShape, 0)
		x = ops.CreateGeneric(ctx, opRelu, ir.Outputs(x), outShape, 0)

		wSquared := ops.CreateGeneric(ctx, opMul, ir.Outputs(w, w), w.Shapes(), 0)
		wNorm := ops.CreateGeneric(ctx, opReduceSum, ir.Outputs(wSquared), scalarShape, 0)
		if l2 == nil {
			l2 = wNorm
		} else {
			l2 = ops.CreateGeneric(ctx, opAdd, ir.Outputs(l2, wNorm), scalarShape, 0)
		}
	}
	loss := ops.CreateGeneric(ctx, opReduceSum, ir.Outputs(x), scalarShape, 0)
	loss = ops.CreateGeneric(ctx, opAdd, ir.Outputs(loss, l2), scalarShape, 0)

	roots := []*ir.Node{loss}
	for _, w := range weights {
		grad := ops.CreateGeneric(ctx, opGrad, ir.Outputs(loss, w), w.Shapes(), 0)
		update := ops.CreateGeneric(ctx, opMul, ir.Outputs(lr, grad), w.Shapes(), 0)
		roots = append(roots, ops.CreateGeneric(ctx, opSub, ir.Outputs(w, update), w.Shapes(), 0))
	}
	return &stepTrace{roots: roots, numNodes: len(ir.PostOrder(roots...))}, nil
}
