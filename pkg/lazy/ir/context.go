// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"fmt"

	"github.com/gomlx/exceptions"
	"github.com/google/uuid"
	"k8s.io/klog/v2"
)

// Context is the node factory of a graph-building context: every node variant is created through
// Context.Create, which reuses equivalent nodes from the context ReuseCache.
//
// Contexts are explicit, there is no global cache: isolated contexts don't share nodes, and contexts
// that should share nodes (e.g. concurrent tracers of the same program) can be configured with
// the same cache (see WithCache).
//
// A Context is meant to be used by one graph-building thread at a time, but the ReuseCache and
// SeedRegistry it uses can be shared with other concurrent contexts.
type Context struct {
	id    uuid.UUID
	name  string
	cache *ReuseCache
	seeds *SeedRegistry
}

// NewContext creates a new Context with its own ReuseCache, using DefaultSeeds.
func NewContext() *Context {
	return &Context{
		id:    uuid.New(),
		name:  "lazy",
		cache: NewReuseCache(),
		seeds: DefaultSeeds,
	}
}

// WithName sets the name of the context, used in logs. It returns the context itself, so calls can be chained.
func (c *Context) WithName(name string) *Context {
	c.name = name
	return c
}

// WithCache sets the ReuseCache of the context, usually to share it with other contexts.
// It returns the context itself, so calls can be chained.
func (c *Context) WithCache(cache *ReuseCache) *Context {
	if cache == nil {
		exceptions.Panicf("Context.WithCache(nil) for context %q", c.name)
	}
	c.cache = cache
	return c
}

// WithSeeds sets the SeedRegistry of the context. It returns the context itself, so calls can be chained.
func (c *Context) WithSeeds(seeds *SeedRegistry) *Context {
	if seeds == nil {
		exceptions.Panicf("Context.WithSeeds(nil) for context %q", c.name)
	}
	c.seeds = seeds
	return c
}

// ID is a unique identifier of the context.
func (c *Context) ID() uuid.UUID { return c.id }

// Name of the context.
func (c *Context) Name() string { return c.name }

// String implements fmt.Stringer.
func (c *Context) String() string {
	return fmt.Sprintf("%s[%s]", c.name, c.id)
}

// Cache used by the context.
func (c *Context) Cache() *ReuseCache { return c.cache }

// Seeds used by the context.
func (c *Context) Seeds() *SeedRegistry { return c.seeds }

// Seed returns the hash seed of op, see SeedRegistry.Seed.
func (c *Context) Seed(op OpKind) uint32 { return c.seeds.Seed(op) }

// Create returns a node for the given op, inputs and data.
//
// If reuse is enabled (see ReuseIREnabled) and an equivalent node is live in the cache, it is returned.
// Otherwise, construct is called to build a new node -- usually a closure calling NewNode -- which is inserted
// in the cache if reuse is enabled.
//
// construct must build a node that matches op, inputs and data (see Node.Matches), or Create panics.
func (c *Context) Create(op OpKind, inputs []Output, data NodeData, construct func() *Node) *Node {
	if !ReuseIREnabled() {
		return c.construct(op, inputs, data, construct)
	}
	if node, found := c.cache.TryReuse(op, inputs, data); found {
		if klog.V(3).Enabled() {
			klog.Infof("%s: reused node %s (hash=%s)", c, node, node.Hash())
		}
		return node
	}
	node := c.construct(op, inputs, data, construct)
	cached := c.cache.Insert(node)
	if cached != node && klog.V(3).Enabled() {
		klog.Infof("%s: node %s (hash=%s) was concurrently inserted, reusing it", c, node, node.Hash())
	}
	return cached
}

func (c *Context) construct(op OpKind, inputs []Output, data NodeData, construct func() *Node) *Node {
	node := construct()
	if node == nil {
		exceptions.Panicf("%s: constructor for %s returned a nil node", c, op)
	}
	if !node.Matches(op, inputs, data) {
		exceptions.Panicf("%s: constructor for %s built a node that doesn't match the request: %s", c, op, node)
	}
	return node
}
