// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package ir implements the nodes of the lazy tensor IR graph, and their identity: structural
// hashing and reuse (hash-consing) of equivalent nodes.
//
// Operations on lazy tensors are not executed immediately: they are recorded as Node objects in a graph,
// that is later compiled and executed by a backend. Nodes are immutable and shared by all the graph edges
// (see Output) that refer to them.
//
// Nodes should be created through a Context, which owns (or shares) a ReuseCache. If reuse is enabled
// (see SetReuseIR), two requests for a node with the same OpKind, the same inputs (in order) and equal
// literal parameters (NodeData) return the very same *Node.
//
// Concrete node variants (the leaf DeviceData, Scalar, etc.) are implemented in package ops: a variant is an
// OpKind plus a NodeData payload, and a typed "cast" function that checks the OpKind (see NodeCast).
package ir

import (
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/lazyir/pkg/core/shapes"
)

// NodeData holds the operator-specific literal parameters of a node, those not captured by its inputs.
//
// Hash is mixed into the node structural hash, and Equal is used to decide whether a cached node can be reused.
// Optionally, NodeData can implement fmt.Stringer, and it will be included in the node description.
type NodeData interface {
	// Hash of the parameters.
	Hash() Hash

	// Equal returns true if this data is semantically equivalent to other.
	// The other parameter is guaranteed to be the same concrete type.
	Equal(other NodeData) bool
}

// Node of the lazy IR graph. It is immutable after creation.
//
// Use a Context (Context.Create) to create nodes, so they can be reused.
type Node struct {
	op     OpKind
	inputs []Output

	// shapes of the outputs, one per output.
	shapes []shapes.Shape

	hash Hash

	// data for the specific node type, or nil.
	data NodeData
}

// Output refers to one of the outputs of a Node: it is an edge of the graph.
type Output struct {
	Node  *Node
	Index int
}

// Hash of the output: the node hash mixed with the output index.
func (o Output) Hash() Hash {
	return HashCombine(o.Node.hash, Hash(o.Index))
}

// Shape of the output.
func (o Output) Shape() shapes.Shape {
	return o.Node.shapes[o.Index]
}

// String implements fmt.Stringer.
func (o Output) String() string {
	if o.Node == nil {
		return "Output(nil)"
	}
	return fmt.Sprintf("%s.%d", o.Node.op, o.Index)
}

// Outputs returns the first output of each of the nodes given: a convenience to build the inputs
// of a new node from single-output nodes.
func Outputs(nodes ...*Node) []Output {
	outputs := make([]Output, len(nodes))
	for ii, node := range nodes {
		outputs[ii] = Output{Node: node}
	}
	return outputs
}

// NewNode constructs a node of the given op, with the given inputs, one output per shape in outputShapes,
// and optional literal parameters in data (it can be nil).
//
// The structural hash is computed here, starting from seed (usually the seed of op in the SeedRegistry, see
// Context.Seed), mixing the op kind, the hashes of the inputs in order, and the data hash.
//
// This always creates a new node: variants should call it from the constructor given to Context.Create,
// so equivalent nodes are reused.
//
// It panics (see package github.com/gomlx/exceptions) if op is invalid, if there are no outputs,
// or if an input is invalid.
func NewNode(op OpKind, inputs []Output, outputShapes []shapes.Shape, seed uint32, data NodeData) *Node {
	if !op.IsValid() {
		exceptions.Panicf("ir.NewNode(): invalid op kind %d", op)
	}
	if len(outputShapes) == 0 {
		exceptions.Panicf("ir.NewNode(%s): a node must have at least one output", op)
	}
	for ii, input := range inputs {
		if input.Node == nil {
			exceptions.Panicf("ir.NewNode(%s): input #%d is nil", op, ii)
		}
		if input.Index < 0 || input.Index >= input.Node.NumOutputs() {
			exceptions.Panicf("ir.NewNode(%s): input #%d refers to output %d of a node (%s) with %d outputs",
				op, ii, input.Index, input.Node.op, input.Node.NumOutputs())
		}
	}
	n := &Node{
		op:     op,
		inputs: slices.Clone(inputs),
		shapes: slices.Clone(outputShapes),
		data:   data,
	}
	n.hash = computeHash(op, n.inputs, seed, data)
	return n
}

// computeHash of a node: it is a pure function of the arguments.
func computeHash(op OpKind, inputs []Output, seed uint32, data NodeData) Hash {
	h := HashCombine(Hash(seed), op.Hash())
	for _, input := range inputs {
		h = HashCombine(h, input.Hash())
	}
	if data != nil {
		h = HashCombine(h, data.Hash())
	}
	return h
}

// Op returns the kind of operation of the node.
func (n *Node) Op() OpKind { return n.op }

// Hash returns the structural hash of the node.
func (n *Node) Hash() Hash { return n.hash }

// Shape returns the shape of the first output. Most nodes have only one.
func (n *Node) Shape() shapes.Shape { return n.shapes[0] }

// Shapes returns the shapes of all outputs. The returned slice must not be changed.
func (n *Node) Shapes() []shapes.Shape { return n.shapes }

// NumOutputs returns the number of outputs of the node.
func (n *Node) NumOutputs() int { return len(n.shapes) }

// Output returns the edge to output i of the node.
func (n *Node) Output(i int) Output {
	if i < 0 || i >= len(n.shapes) {
		exceptions.Panicf("Node.Output(%d) out-of-bounds for node %s with %d outputs", i, n.op, len(n.shapes))
	}
	return Output{Node: n, Index: i}
}

// Inputs returns the inputs of the node. The returned slice must not be changed.
func (n *Node) Inputs() []Output { return n.inputs }

// NumInputs returns the number of inputs, 0 for leaf nodes.
func (n *Node) NumInputs() int { return len(n.inputs) }

// Input returns the i-th input.
func (n *Node) Input(i int) Output { return n.inputs[i] }

// Data returns the operator-specific literal parameters of the node, or nil.
func (n *Node) Data() NodeData { return n.data }

// String returns a human-readable description of the node: shape and op kind, number of outputs
// (if more than one), and the data description if the data implements fmt.Stringer.
func (n *Node) String() string {
	if n == nil {
		return "Node(nil)"
	}
	var sb strings.Builder
	for ii, shape := range n.shapes {
		if ii > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(shape.String())
	}
	sb.WriteString(" ")
	sb.WriteString(n.op.String())
	if len(n.shapes) > 1 {
		_, _ = fmt.Fprintf(&sb, ", num_outputs=%d", len(n.shapes))
	}
	if stringer, ok := n.data.(fmt.Stringer); ok {
		sb.WriteString(", ")
		sb.WriteString(stringer.String())
	}
	return sb.String()
}

// Matches returns whether the node is equivalent to a node that would be constructed for
// the given op, inputs and data: same op, same inputs (same nodes and output indices, in order)
// and equal data.
//
// It doesn't rely on the hash: structurally different nodes never match, even if their hashes collide.
func (n *Node) Matches(op OpKind, inputs []Output, data NodeData) bool {
	if n.op != op || !slices.Equal(n.inputs, inputs) {
		return false
	}
	return dataEqual(n.data, data)
}

// dataEqual compares node data for equality.
func dataEqual(a, b NodeData) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}

	// Both must be the same concrete type
	if reflect.TypeOf(a) != reflect.TypeOf(b) {
		return false
	}
	return a.Equal(b)
}
