// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"sync"

	"github.com/gomlx/exceptions"
)

// OpKind identifies the operation of a node. It is an interned symbol: NewOpKind returns the
// same value for the same name, for the lifetime of the process.
//
// The set of kinds is open: packages implementing new node variants declare their own kinds,
// usually as package variables, e.g.:
//
//	var OpKindAdd = ir.NewOpKind("aten::add")
type OpKind int32

// OpKindInvalid is the zero value, it is never a valid node operation.
const OpKindInvalid OpKind = 0

// Predeclared kinds of the leaf nodes built into this package.
var (
	// OpKindDeviceData is the kind of the leaf nodes that wrap backend data.
	OpKindDeviceData = NewOpKind("lazy::device_data")

	// OpKindScalar is the kind of the leaf nodes holding a literal scalar.
	OpKindScalar = NewOpKind("lazy::scalar")
)

var opKindsTable = struct {
	mu     sync.RWMutex
	names  []string
	hashes []Hash
	byName map[string]OpKind
}{
	names:  []string{"invalid"},
	hashes: []Hash{0},
	byName: make(map[string]OpKind),
}

// NewOpKind returns the OpKind interned for name, creating it on the first call.
//
// It is safe for concurrent use. It panics if name is empty.
func NewOpKind(name string) OpKind {
	if name == "" {
		exceptions.Panicf("ir.NewOpKind(): empty op kind name")
	}
	t := &opKindsTable
	t.mu.RLock()
	kind, found := t.byName[name]
	t.mu.RUnlock()
	if found {
		return kind
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if kind, found = t.byName[name]; found {
		return kind
	}
	kind = OpKind(len(t.names))
	t.names = append(t.names, name)
	t.hashes = append(t.hashes, HashString(name))
	t.byName[name] = kind
	return kind
}

// LookupOpKind returns the OpKind interned for name, if one was created.
func LookupOpKind(name string) (OpKind, bool) {
	t := &opKindsTable
	t.mu.RLock()
	defer t.mu.RUnlock()
	kind, found := t.byName[name]
	return kind, found
}

// IsValid returns whether k was returned by NewOpKind.
func (k OpKind) IsValid() bool {
	t := &opKindsTable
	t.mu.RLock()
	defer t.mu.RUnlock()
	return k > OpKindInvalid && int(k) < len(t.names)
}

// String returns the name of the op kind.
func (k OpKind) String() string {
	t := &opKindsTable
	t.mu.RLock()
	defer t.mu.RUnlock()
	if k < 0 || int(k) >= len(t.names) {
		return "unknown"
	}
	return t.names[k]
}

// Hash of the op kind name: stable across processes, unlike the OpKind value itself, which depends
// on the order of creation.
func (k OpKind) Hash() Hash {
	t := &opKindsTable
	t.mu.RLock()
	defer t.mu.RUnlock()
	if k < 0 || int(k) >= len(t.hashes) {
		return 0
	}
	return t.hashes[k]
}
