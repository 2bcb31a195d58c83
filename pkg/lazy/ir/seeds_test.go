// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedRegistry(t *testing.T) {
	r := NewSeedRegistry()
	assert.Equal(t, DeviceDataSeed, r.Seed(OpKindDeviceData))
	assert.Equal(t, ScalarSeed, r.Seed(OpKindScalar))

	addSeed := r.Seed(testOpAdd)
	assert.GreaterOrEqual(t, addSeed, FirstDynamicSeed)
	assert.Equal(t, addSeed, r.Seed(testOpAdd), "seeds are stable")
	assert.NotEqual(t, addSeed, r.Seed(testOpSub), "seeds are unique")
	assert.Equal(t, 4, r.Len())

	// Pinning.
	op := NewOpKind("test::pinned")
	require.NoError(t, r.Pin(op, 7))
	require.NoError(t, r.Pin(op, 7), "re-pinning to the same seed is a no-op")
	assert.Equal(t, uint32(7), r.Seed(op))
	require.Error(t, r.Pin(op, 8), "op already has a seed")
	require.Error(t, r.Pin(NewOpKind("test::pinned2"), 7), "seed already taken")
	require.Error(t, r.Pin(NewOpKind("test::pinned3"), FirstDynamicSeed), "seed in dynamic range")
	require.Error(t, r.Pin(testOpAdd, 9), "op already has a dynamic seed")
}

func TestDefaultSeeds(t *testing.T) {
	assert.Equal(t, DeviceDataSeed, RegisterSeed(OpKindDeviceData))
	require.NoError(t, PinSeed(OpKindDeviceData, DeviceDataSeed))
	require.Error(t, PinSeed(OpKindDeviceData, 1))
	assert.Equal(t, RegisterSeed(testOpLeaf), DefaultSeeds.Seed(testOpLeaf))
}

func TestSeedRegistryConcurrent(t *testing.T) {
	r := NewSeedRegistry()
	ops := make([]OpKind, 20)
	for ii := range ops {
		ops[ii] = NewOpKind(fmt.Sprintf("test::seed_%d", ii))
	}
	const numGoroutines = 8
	results := make([][]uint32, numGoroutines)
	var wg sync.WaitGroup
	for g := range numGoroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, op := range ops {
				results[g] = append(results[g], r.Seed(op))
			}
		}()
	}
	wg.Wait()
	seen := make(map[uint32]bool)
	for _, seed := range results[0] {
		require.False(t, seen[seed], "duplicate seed %d", seed)
		seen[seed] = true
	}
	for g := 1; g < numGoroutines; g++ {
		require.Equal(t, results[0], results[g])
	}
}
