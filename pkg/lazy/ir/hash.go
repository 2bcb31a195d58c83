// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"fmt"
	"hash/fnv"
	"math"
)

// Hash is the 64-bit structural hash of a node, or of any of the values mixed into it.
type Hash uint64

// String implements fmt.Stringer, printing the hash in hexadecimal.
func (h Hash) String() string {
	return fmt.Sprintf("0x%016x", uint64(h))
}

// HashCombine mixes b into a.
//
// It is not commutative: HashCombine(HashCombine(s, x), y) != HashCombine(HashCombine(s, y), x) for x != y,
// so input order is part of a node's identity.
func HashCombine(a, b Hash) Hash {
	// Hash128to64 from CityHash, with a as the high and b as the low word.
	const kMul = 0x9ddfea08eb382d69
	x := (uint64(b) ^ uint64(a)) * kMul
	x ^= x >> 47
	y := (uint64(a) ^ x) * kMul
	y ^= y >> 47
	return Hash(y * kMul)
}

// HashValues combines the hashes of the given values, in order, starting from seed.
func HashValues(seed Hash, values ...Hash) Hash {
	h := seed
	for _, v := range values {
		h = HashCombine(h, v)
	}
	return h
}

// HashString returns a stable (across processes and architectures) hash of s.
func HashString(s string) Hash {
	hasher := fnv.New64a()
	_, _ = hasher.Write([]byte(s))
	return Hash(hasher.Sum64())
}

// HashFloat64 hashes the bits of v. -0.0 and 0.0 hash differently, NaNs with the same bits hash equally.
func HashFloat64(v float64) Hash {
	return HashCombine(0, Hash(math.Float64bits(v)))
}

// HashInts combines a list of ints, including its length so that prefixes hash differently.
func HashInts(values ...int) Hash {
	h := Hash(len(values))
	for _, v := range values {
		h = HashCombine(h, Hash(v))
	}
	return h
}
