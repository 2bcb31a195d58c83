// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostOrder(t *testing.T) {
	withReuse(t, true)
	ctx := NewContext()
	a, b := newLeaf(ctx, 1), newLeaf(ctx, 2)
	ab := newBinary(ctx, testOpAdd, a.Output(0), b.Output(0))
	aab := newBinary(ctx, testOpSub, a.Output(0), ab.Output(0))

	order := PostOrder(aab, ab, nil)
	require.Equal(t, []*Node{a, b, ab, aab}, order)
	assert.Empty(t, PostOrder())

	// Every node appears after its inputs, even with shared sub-graphs.
	split := newSplit(ctx, aab)
	top := newBinary(ctx, testOpAdd, split.Output(1), split.Output(0))
	order = PostOrder(top, a)
	position := make(map[*Node]int)
	for ii, node := range order {
		position[node] = ii
	}
	require.Len(t, order, 6)
	for _, node := range order {
		for _, input := range node.Inputs() {
			assert.Less(t, position[input.Node], position[node])
		}
	}
}

func TestDumpText(t *testing.T) {
	withReuse(t, true)
	ctx := NewContext()
	a := newLeaf(ctx, 1)
	split := newSplit(ctx, a)
	top := newBinary(ctx, testOpAdd, split.Output(0), split.Output(1))
	text := DumpText(top, a)
	fmt.Println(text)
	lines := strings.Split(strings.TrimSpace(text), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "IR {", lines[0])
	assert.Equal(t, fmt.Sprintf("  %%0 = test::leaf() -> (Float32)[2], value=1, hash=%s, 8 B, ROOT=1", a.Hash()), lines[1])
	assert.Equal(t, fmt.Sprintf("  %%1 = test::split(%%0) -> (Float32)[2], (Int32), hash=%s, 12 B", split.Hash()), lines[2])
	assert.Equal(t, fmt.Sprintf("  %%2 = test::add(%%1.0, %%1.1) -> (Float32)[2], hash=%s, 8 B, ROOT=0", top.Hash()), lines[3])
	assert.Equal(t, "}", lines[4])
}

func TestDumpDot(t *testing.T) {
	withReuse(t, true)
	ctx := NewContext()
	a := newLeaf(ctx, 1)
	split := newSplit(ctx, a)
	top := newBinary(ctx, testOpAdd, split.Output(0), split.Output(1))
	dot := DumpDot(top)
	assert.True(t, strings.HasPrefix(dot, "digraph G {\n"))
	assert.Contains(t, dot, `node0 [label="(Float32)[2] test::leaf, value=1"]`)
	assert.Contains(t, dot, `node2 [label="(Float32)[2] test::add", style=filled, fillcolor=lightgrey]`)
	assert.Contains(t, dot, `node0 -> node1 [label="0"]`)
	assert.Contains(t, dot, `node1 -> node2 [label="1:1"]`)
}
