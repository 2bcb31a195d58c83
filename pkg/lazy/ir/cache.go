// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"runtime"
	"slices"
	"sync"
	"sync/atomic"
	"weak"

	"k8s.io/klog/v2"
)

// ReuseCache implements hash-consing of nodes: it indexes live nodes by their structure, so that an
// equivalent construction request returns the existing node, instead of creating a new one.
//
// It is organized as a trie per OpKind: the first level is keyed by the number of inputs, then one level
// per input keyed by the input hash (in order), and the last level by the hash of the node data.
// The terminal level holds the candidate nodes, which are compared in full (see Node.Matches)
// before being reused, so hash collisions never cause a wrong reuse.
//
// Entries are weak: the cache doesn't keep a node alive once all graph references to it are gone.
// Dead entries are pruned after the garbage collector reclaims the node, and on insertion.
//
// It is safe for concurrent use: lookups share a read lock, insertions and pruning are exclusive.
type ReuseCache struct {
	mu    sync.RWMutex
	roots map[OpKind]*trieNode

	lookups, hits, misses, inserts, pruned atomic.Int64
}

type trieNode struct {
	children map[Hash]*trieNode

	// entries of the terminal level.
	entries []weak.Pointer[Node]
}

// CacheStats are counters of the ReuseCache activity, since creation or since the last Reset.
type CacheStats struct {
	Lookups, Hits, Misses, Inserts, Pruned int64

	// Entries is the number of live nodes in the cache.
	Entries int
}

// HitRate returns Hits/Lookups, or 0 if there were no lookups.
func (s CacheStats) HitRate() float64 {
	if s.Lookups == 0 {
		return 0
	}
	return float64(s.Hits) / float64(s.Lookups)
}

// NewReuseCache creates an empty cache.
func NewReuseCache() *ReuseCache {
	return &ReuseCache{roots: make(map[OpKind]*trieNode)}
}

// cachePath returns the keys of the trie levels for a node with the given inputs and data.
func cachePath(inputs []Output, data NodeData) []Hash {
	path := make([]Hash, 0, len(inputs)+2)
	path = append(path, Hash(len(inputs)))
	for _, input := range inputs {
		path = append(path, input.Hash())
	}
	var dataHash Hash
	if data != nil {
		dataHash = data.Hash()
	}
	return append(path, dataHash)
}

// walk the trie along path, without creating nodes. Returns nil if the path doesn't exist.
func (c *ReuseCache) walk(op OpKind, path []Hash) *trieNode {
	current := c.roots[op]
	for _, key := range path {
		if current == nil {
			return nil
		}
		current = current.children[key]
	}
	return current
}

// TryReuse returns a live node equivalent to a node built with the given op, inputs and data, if
// there is one in the cache.
func (c *ReuseCache) TryReuse(op OpKind, inputs []Output, data NodeData) (*Node, bool) {
	c.lookups.Add(1)
	path := cachePath(inputs, data)
	c.mu.RLock()
	defer c.mu.RUnlock()
	if terminal := c.walk(op, path); terminal != nil {
		for _, entry := range terminal.entries {
			if node := entry.Value(); node != nil && node.Matches(op, inputs, data) {
				c.hits.Add(1)
				return node, true
			}
		}
	}
	c.misses.Add(1)
	return nil, false
}

// Insert node in the cache, and return it.
//
// If an equivalent live node is already in the cache (e.g.: inserted concurrently after a TryReuse miss),
// that node is returned instead, and node is not inserted. So there is at most one live node per key.
func (c *ReuseCache) Insert(node *Node) *Node {
	path := cachePath(node.inputs, node.data)
	c.mu.Lock()
	defer c.mu.Unlock()

	current := c.roots[node.op]
	if current == nil {
		current = &trieNode{}
		c.roots[node.op] = current
	}
	for _, key := range path {
		next := current.children[key]
		if next == nil {
			if current.children == nil {
				current.children = make(map[Hash]*trieNode)
			}
			next = &trieNode{}
			current.children[key] = next
		}
		current = next
	}

	numDead := 0
	for _, entry := range current.entries {
		existing := entry.Value()
		if existing == nil {
			numDead++
			continue
		}
		if existing.Matches(node.op, node.inputs, node.data) {
			return existing
		}
	}
	if numDead > 0 {
		current.entries = slices.DeleteFunc(current.entries, isDead)
		c.pruned.Add(int64(numDead))
	}
	current.entries = append(current.entries, weak.Make(node))
	c.inserts.Add(1)
	runtime.AddCleanup(node, c.cleanup, cleanupKey{op: node.op, path: path})
	return node
}

func isDead(entry weak.Pointer[Node]) bool {
	return entry.Value() == nil
}

type cleanupKey struct {
	op   OpKind
	path []Hash
}

// cleanup is called after a cached node has been garbage collected: it prunes the dead entries of its
// terminal and any trie levels left empty.
func (c *ReuseCache) cleanup(key cleanupKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	root := c.roots[key.op]
	if root == nil {
		// Cache was reset.
		return
	}
	levels := make([]*trieNode, 0, len(key.path)+1)
	current := root
	levels = append(levels, current)
	for _, k := range key.path {
		current = current.children[k]
		if current == nil {
			return
		}
		levels = append(levels, current)
	}
	before := len(current.entries)
	current.entries = slices.DeleteFunc(current.entries, isDead)
	if numPruned := before - len(current.entries); numPruned > 0 {
		c.pruned.Add(int64(numPruned))
		if klog.V(3).Enabled() {
			klog.Infof("ReuseCache: pruned %d dead %s nodes", numPruned, key.op)
		}
	}

	// Remove empty levels, bottom-up.
	for ii := len(levels) - 1; ii > 0; ii-- {
		level := levels[ii]
		if len(level.entries) > 0 || len(level.children) > 0 {
			return
		}
		delete(levels[ii-1].children, key.path[ii-1])
	}
	if len(root.entries) == 0 && len(root.children) == 0 {
		delete(c.roots, key.op)
	}
}

// Len returns the number of live nodes in the cache.
func (c *ReuseCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	count := 0
	var countLive func(t *trieNode)
	countLive = func(t *trieNode) {
		for _, entry := range t.entries {
			if entry.Value() != nil {
				count++
			}
		}
		for _, child := range t.children {
			countLive(child)
		}
	}
	for _, root := range c.roots {
		countLive(root)
	}
	return count
}

// Stats returns a snapshot of the cache counters.
func (c *ReuseCache) Stats() CacheStats {
	return CacheStats{
		Lookups: c.lookups.Load(),
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Inserts: c.inserts.Load(),
		Pruned:  c.pruned.Load(),
		Entries: c.Len(),
	}
}

// Reset drops all entries and zeroes the counters. Nodes already returned are not affected.
func (c *ReuseCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roots = make(map[OpKind]*trieNode)
	c.lookups.Store(0)
	c.hits.Store(0)
	c.misses.Store(0)
	c.inserts.Store(0)
	c.pruned.Store(0)
}
