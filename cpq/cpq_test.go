// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package cpq_test

import (
	"math/rand/v2"
	"sort"
	"sync"
	"sync/atomic"
	"testing"

	"code.hybscloud.com/lfx/cpq"
	"code.hybscloud.com/lfx/internal/racetag"
)

func intLess(a, b int) bool { return a < b }

// TestPushPopOrder mirrors Testers/concurrent_priority_queue/main.cpp's
// scrambled-push/sorted-pop sequence: six keys pushed out of order (with
// duplicates) must drain strictly non-decreasing. (CPQ-S1)
func TestPushPopOrder(t *testing.T) {
	q := cpq.New[int, float64](cpq.WithLess[int, float64](intLess))

	for _, k := range []int{2, 6, 3, 4, 1, 5, 5, 5, 5, 5} {
		q.Push(k, 1.0)
	}

	var got []int
	for {
		k, _, ok := q.TryPop()
		if !ok {
			break
		}
		got = append(got, k)
	}

	if len(got) != 10 {
		t.Fatalf("popped %d items, want 10", len(got))
	}
	if !sort.IntsAreSorted(got) {
		t.Fatalf("pop order not sorted: %v", got)
	}

	if _, _, ok := q.TryPop(); ok {
		t.Fatalf("TryPop on empty queue reported ok")
	}
}

// TestEmptyAndClear exercises Empty/Clear the way main.cpp's smoke test
// does for each strategy.
func TestEmptyAndClear(t *testing.T) {
	q := cpq.New[int, string](cpq.WithLess[int, string](intLess))
	if !q.Empty() {
		t.Fatalf("fresh queue reported non-empty")
	}
	q.Push(1, "a")
	q.Push(2, "b")
	if q.Empty() {
		t.Fatalf("queue with elements reported empty")
	}
	q.Clear()
	if !q.Empty() {
		t.Fatalf("queue not empty after Clear")
	}
	if _, _, ok := q.TryPop(); ok {
		t.Fatalf("TryPop succeeded after Clear")
	}
}

// TestScratchStrategyResetPool exercises the Scratch strategy's bump
// allocator and UnsafeResetScratchPool, matching main.cpp's
// cpq_allocation_strategy_scratch smoke test.
func TestScratchStrategyResetPool(t *testing.T) {
	q := cpq.New[int, string](
		cpq.WithLess[int, string](intLess),
		cpq.WithStrategy[int, string](cpq.Scratch),
		cpq.WithCapacity[int, string](512),
	)
	q.Push(1, "one")
	if _, _, ok := q.TryPop(); !ok {
		t.Fatalf("TryPop failed on freshly pushed node")
	}
	q.UnsafeReset()
	q.UnsafeResetScratchPool()
	q.Clear()
	if !q.Empty() {
		t.Fatalf("queue not empty after reset+clear")
	}
}

// TestExternalStrategyPushNode exercises the External strategy's
// caller-owned node path, matching main.cpp's cpq_allocation_strategy_external
// smoke test ("n.m_kv = one; test2.push(&n)").
func TestExternalStrategyPushNode(t *testing.T) {
	q := cpq.New[int, string](
		cpq.WithLess[int, string](intLess),
		cpq.WithStrategy[int, string](cpq.External),
	)

	n := cpq.NewNode(1, "one")
	q.PushNode(n)

	got, ok := q.TryPopNode()
	if !ok {
		t.Fatalf("TryPopNode reported empty")
	}
	if got.Key != 1 || got.Value != "one" {
		t.Fatalf("got (%v,%v), want (1,one)", got.Key, got.Value)
	}

	q.Clear()
	if !q.Empty() {
		t.Fatalf("queue not empty after Clear")
	}
}

// TestExternalStrategyPushPanics documents that Push is unusable without
// an allocator behind it.
func TestExternalStrategyPushPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("Push did not panic under the External strategy")
		}
	}()
	q := cpq.New[int, string](
		cpq.WithLess[int, string](intLess),
		cpq.WithStrategy[int, string](cpq.External),
	)
	q.Push(1, "one")
}

// TestConcurrentPushPopConservation hammers one queue from many producer
// and consumer goroutines and checks every pushed value is popped exactly
// once — no loss, no duplication — matching
// Testers/queue_tester/tester.h's multiset-conservation shape applied to
// CPQ, and spec.md's properties 6/7 (ordering is not checked here since
// concurrent poppers race for the front; TestPushPopOrder above covers
// single-threaded order).
func TestConcurrentPushPopConservation(t *testing.T) {
	if racetag.Enabled {
		t.Skip("skip under -race: acquire/release link orderings the race detector cannot observe")
	}

	const producers = 8
	const perProducer = 2000
	const total = producers * perProducer
	const consumers = 4

	q := cpq.New[int, int](cpq.WithLess[int, int](intLess), cpq.WithStrategy[int, int](cpq.Pool), cpq.WithCapacity[int, int](total))

	var seen [total]atomic.Int32
	var wg sync.WaitGroup

	wg.Add(producers)
	for p := 0; p < producers; p++ {
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				key := p*perProducer + i
				q.Push(key, key)
			}
		}(p)
	}
	wg.Wait()

	var popped atomic.Int64
	var cwg sync.WaitGroup
	cwg.Add(consumers)
	for c := 0; c < consumers; c++ {
		go func() {
			defer cwg.Done()
			for popped.Load() < total {
				k, v, ok := q.TryPop()
				if !ok {
					continue
				}
				if k != v {
					t.Errorf("key/value mismatch: %d vs %d", k, v)
				}
				if !seen[k].CompareAndSwap(0, 1) {
					t.Errorf("key %d popped more than once", k)
				}
				popped.Add(1)
			}
		}()
	}
	cwg.Wait()

	for k := 0; k < total; k++ {
		if seen[k].Load() != 1 {
			t.Errorf("key %d never popped", k)
		}
	}
	if !q.Empty() {
		t.Fatalf("queue not empty after draining every pushed key")
	}
}

// TestPoolStrategyPushPopBeyondCapacity pushes and pops well beyond the
// configured slab capacity and checks the queue still drains to empty.
// It does not observe whether nodes came from the slab or from the heap
// fallback. (CPQ-S2)
func TestPoolStrategyPushPopBeyondCapacity(t *testing.T) {
	q := cpq.New[int, int](
		cpq.WithLess[int, int](intLess),
		cpq.WithStrategy[int, int](cpq.Pool),
		cpq.WithCapacity[int, int](8),
	)
	for round := 0; round < 100; round++ {
		q.Push(round, round)
		if round >= 2 {
			q.TryPop()
			q.TryPop()
		}
	}
	for {
		if _, _, ok := q.TryPop(); !ok {
			break
		}
	}
	if !q.Empty() {
		t.Fatalf("queue not drained")
	}
}

// TestManyRandomKeysDrainSorted exercises CPQ-S3: after pushing many
// entries in random order, with whatever tower heights were drawn, the
// queue drains every entry in sorted order.
func TestManyRandomKeysDrainSorted(t *testing.T) {
	q := cpq.New[int, struct{}](cpq.WithLess[int, struct{}](intLess))
	const n = 5000
	order := rand.Perm(n)
	for _, k := range order {
		q.Push(k, struct{}{})
	}
	prev := -1
	count := 0
	for {
		k, _, ok := q.TryPop()
		if !ok {
			break
		}
		if k < prev {
			t.Fatalf("out of order pop: %d after %d", k, prev)
		}
		prev = k
		count++
	}
	if count != n {
		t.Fatalf("popped %d items, want %d", count, n)
	}
}
