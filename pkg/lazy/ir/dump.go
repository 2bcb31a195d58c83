// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
)

// PostOrder returns all nodes reachable from roots, each once, with every node after all its inputs.
// Nil roots are ignored.
func PostOrder(roots ...*Node) []*Node {
	var order []*Node
	emitted := make(map[*Node]bool)
	type frame struct {
		node      *Node
		nextInput int
	}
	var stack []frame
	for _, root := range roots {
		if root == nil || emitted[root] {
			continue
		}
		stack = append(stack[:0], frame{node: root})
		onStack := map[*Node]bool{root: true}
		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			if top.nextInput < len(top.node.inputs) {
				input := top.node.inputs[top.nextInput].Node
				top.nextInput++
				if !emitted[input] && !onStack[input] {
					onStack[input] = true
					stack = append(stack, frame{node: input})
				}
				continue
			}
			emitted[top.node] = true
			order = append(order, top.node)
			stack = stack[:len(stack)-1]
		}
	}
	return order
}

// nodeIds numbers the nodes in post-order.
func nodeIds(order []*Node) map[*Node]int {
	ids := make(map[*Node]int, len(order))
	for ii, node := range order {
		ids[node] = ii
	}
	return ids
}

func outputRef(ids map[*Node]int, output Output) string {
	if output.Node.NumOutputs() == 1 {
		return fmt.Sprintf("%%%d", ids[output.Node])
	}
	return fmt.Sprintf("%%%d.%d", ids[output.Node], output.Index)
}

func outputsMemory(node *Node) uint64 {
	var total uintptr
	for _, shape := range node.shapes {
		total += shape.Memory()
	}
	return uint64(total)
}

// DumpText returns a textual representation of the graph reachable from roots, one node per line in post-order:
//
//	%2 = aten::add(%0, %1) -> (Float32)[2 3], hash=0x..., 24 B, ROOT=0
func DumpText(roots ...*Node) string {
	order := PostOrder(roots...)
	ids := nodeIds(order)
	rootIdx := make(map[*Node][]int)
	for ii, root := range roots {
		if root != nil {
			rootIdx[root] = append(rootIdx[root], ii)
		}
	}

	var sb strings.Builder
	sb.WriteString("IR {\n")
	for ii, node := range order {
		inputs := make([]string, len(node.inputs))
		for jj, input := range node.inputs {
			inputs[jj] = outputRef(ids, input)
		}
		shapeStrs := make([]string, len(node.shapes))
		for jj, shape := range node.shapes {
			shapeStrs[jj] = shape.String()
		}
		_, _ = fmt.Fprintf(&sb, "  %%%d = %s(%s) -> %s", ii, node.op, strings.Join(inputs, ", "),
			strings.Join(shapeStrs, ", "))
		if stringer, ok := node.data.(fmt.Stringer); ok {
			_, _ = fmt.Fprintf(&sb, ", %s", stringer)
		}
		_, _ = fmt.Fprintf(&sb, ", hash=%s, %s", node.hash, humanize.Bytes(outputsMemory(node)))
		for _, idx := range rootIdx[node] {
			_, _ = fmt.Fprintf(&sb, ", ROOT=%d", idx)
		}
		sb.WriteString("\n")
	}
	sb.WriteString("}\n")
	return sb.String()
}

// DumpDot returns the graph reachable from roots in the graphviz "dot" format.
func DumpDot(roots ...*Node) string {
	order := PostOrder(roots...)
	ids := nodeIds(order)
	isRoot := make(map[*Node]bool, len(roots))
	for _, root := range roots {
		isRoot[root] = true
	}

	var sb strings.Builder
	sb.WriteString("digraph G {\n")
	for ii, node := range order {
		attrs := fmt.Sprintf("label=%s", strconv.Quote(node.String()))
		if isRoot[node] {
			attrs += ", style=filled, fillcolor=lightgrey"
		}
		_, _ = fmt.Fprintf(&sb, "  node%d [%s]\n", ii, attrs)
	}
	for ii, node := range order {
		for jj, input := range node.inputs {
			label := strconv.Itoa(jj)
			if input.Node.NumOutputs() > 1 {
				label = fmt.Sprintf("%d:%d", input.Index, jj)
			}
			_, _ = fmt.Fprintf(&sb, "  node%d -> node%d [label=%s]\n", ids[input.Node], ii, strconv.Quote(label))
		}
	}
	sb.WriteString("}\n")
	return sb.String()
}
