// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

// NodeCast returns the data of node as a T, if node is of the given op kind.
//
// It is the building block of the typed casts of the node variants: the match is decided by the op kind,
// the type assertion only converts the data. It never panics: a nil node or a different kind
// returns ok == false.
func NodeCast[T NodeData](node *Node, op OpKind) (data T, ok bool) {
	if node == nil || node.op != op {
		return
	}
	data, ok = node.data.(T)
	return
}
