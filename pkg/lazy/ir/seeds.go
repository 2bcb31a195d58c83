// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"maps"
	"sync"

	"github.com/pkg/errors"
)

// Seeds of the predeclared leaf kinds.
const (
	DeviceDataSeed uint32 = 101
	ScalarSeed     uint32 = 102
)

// FirstDynamicSeed is the first seed allocated to op kinds that were not pinned.
// Pinned seeds must be lower than this, so the two never collide.
const FirstDynamicSeed uint32 = 1 << 16

// builtinSeeds are pinned in every new SeedRegistry.
var builtinSeeds = map[OpKind]uint32{
	OpKindDeviceData: DeviceDataSeed,
	OpKindScalar:     ScalarSeed,
}

// SeedRegistry maps each OpKind to the seed used to bootstrap the structural hash of its nodes.
//
// A seed, once assigned, never changes. Queries of already assigned seeds can run concurrently,
// only assignments are serialized.
type SeedRegistry struct {
	mu     sync.RWMutex
	seeds  map[OpKind]uint32
	owners map[uint32]OpKind
	next   uint32
}

// NewSeedRegistry creates a registry with the seeds of the predeclared kinds already pinned.
func NewSeedRegistry() *SeedRegistry {
	r := &SeedRegistry{
		seeds:  maps.Clone(builtinSeeds),
		owners: make(map[uint32]OpKind, len(builtinSeeds)),
		next:   FirstDynamicSeed,
	}
	for op, seed := range builtinSeeds {
		r.owners[seed] = op
	}
	return r
}

// DefaultSeeds is the process-wide registry, used by contexts not configured otherwise.
var DefaultSeeds = NewSeedRegistry()

// RegisterSeed returns the seed of op in DefaultSeeds, allocating it on first use.
func RegisterSeed(op OpKind) uint32 {
	return DefaultSeeds.Seed(op)
}

// PinSeed pins the seed of op in DefaultSeeds. See SeedRegistry.Pin.
func PinSeed(op OpKind, seed uint32) error {
	return DefaultSeeds.Pin(op, seed)
}

// Seed returns the seed assigned to op, allocating a new one the first time op is seen.
// It never fails.
func (r *SeedRegistry) Seed(op OpKind) uint32 {
	r.mu.RLock()
	seed, found := r.seeds[op]
	r.mu.RUnlock()
	if found {
		return seed
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if seed, found = r.seeds[op]; found {
		return seed
	}
	seed = r.next
	r.next++
	r.seeds[op] = seed
	r.owners[seed] = op
	return seed
}

// Pin assigns a fixed seed to op.
//
// It is a no-op if op is already pinned to the same seed. It fails if op already has a different seed,
// if seed belongs to another op, or if seed >= FirstDynamicSeed.
func (r *SeedRegistry) Pin(op OpKind, seed uint32) error {
	if seed >= FirstDynamicSeed {
		return errors.Errorf("cannot pin seed %d for %q: pinned seeds must be < %d", seed, op, FirstDynamicSeed)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, found := r.seeds[op]; found {
		if current == seed {
			return nil
		}
		return errors.Errorf("cannot pin seed %d for %q: it already has seed %d", seed, op, current)
	}
	if owner, found := r.owners[seed]; found {
		return errors.Errorf("cannot pin seed %d for %q: seed already used by %q", seed, op, owner)
	}
	r.seeds[op] = seed
	r.owners[seed] = op
	return nil
}

// Len returns the number of op kinds with a seed.
func (r *SeedRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.seeds)
}
