// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package asp provides an atomic shared pointer: lock-free shared
// ownership of a heap object with acquire/release load, store, exchange
// and versioned compare-and-swap.
//
// A control block tracks a strong use-count for the managed object.
// AtomicSharedPtr holds a packed (pointer, version, local-reference-count)
// word that can be loaded, stored or CAS'd in a single atomic operation.
// Every load amortizes the strong-count update by draining a per-word
// local-reference lane instead of incrementing the control block on every
// call; the lane refills with a batched CAS once it runs low.
//
// Versions exist to let compare-and-swap reject a stale snapshot even
// when the same control-block slot has since been reused by an unrelated
// allocation (the classic ABA hazard for lock-free pointer CAS). Versions
// wrap modulo MaxVersion and treat zero as "never stored", so they never
// need resetting.
//
//	var cell asp.AtomicSharedPtr[Config]
//	cell.Store(asp.MakeShared(Config{Retries: 3}))
//
//	cur := cell.Load()
//	defer cur.Release()
//	fmt.Println(cur.Get().Retries)
//
//	next := asp.MakeShared(Config{Retries: 5})
//	expected := cell.RawPtr()
//	if !cell.CompareAndSwapStrong(&expected, next) {
//	    // expected now holds the observed value; retry or give up
//	}
package asp
