// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package xorshift is a lock-free xorshift64 pseudo-random source used by
// cpq to draw skip-list tower heights. Grounded on the xorshift64 CAS-retry
// generator used for cache-eviction sampling in the pack's other example
// sources (an atomic.Uint64 state advanced via load/CAS instead of a lock),
// generalized into its own small package rather than inlined into cpq so it
// has no circular need to protect its own state with one of cpq's own
// primitives.
package xorshift

import "sync/atomic"

// Source is a concurrency-safe xorshift64 generator. The zero value is not
// usable; construct with New.
type Source struct {
	state atomic.Uint64
}

// New returns a Source seeded with seed. A zero seed is remapped to a fixed
// non-zero constant, since xorshift64 started at zero never leaves zero.
func New(seed uint64) *Source {
	if seed == 0 {
		seed = 0x9e3779b97f4a7c15
	}
	s := &Source{}
	s.state.Store(seed)
	return s
}

// Uint64 returns the next pseudo-random value. Safe for concurrent use:
// contending callers retry via CompareAndSwap rather than blocking, the
// same CAS-retry shape used throughout this module's hot paths.
func (s *Source) Uint64() uint64 {
	for {
		old := s.state.Load()
		x := old
		x ^= x << 13
		x ^= x >> 7
		x ^= x << 17
		if s.state.CompareAndSwap(old, x) {
			return x
		}
	}
}
