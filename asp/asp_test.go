// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package asp_test

import (
	"sync"
	"sync/atomic"
	"testing"

	"code.hybscloud.com/lfx/asp"
	"code.hybscloud.com/lfx/internal/racetag"
)

// TestMakeSharedLoadStore exercises the basic load/store/exchange path
// and checks the managed value round-trips.
func TestMakeSharedLoadStore(t *testing.T) {
	var cell asp.AtomicSharedPtr[int]
	cell.Store(asp.MakeShared(5))

	got := cell.Load()
	defer got.Release()
	if *got.Get() != 5 {
		t.Fatalf("Load: got %d, want 5", *got.Get())
	}

	old := cell.Exchange(asp.MakeShared(6))
	if *old.Get() != 5 {
		t.Fatalf("Exchange returned %d, want 5", *old.Get())
	}
	old.Release()

	got2 := cell.Load()
	defer got2.Release()
	if *got2.Get() != 6 {
		t.Fatalf("Load after exchange: got %d, want 6", *got2.Get())
	}
}

// TestCountConservation is property 1 from spec.md §8: for a schedule of
// make_shared/load/store/exchange on a single cell, the destructor runs
// exactly once after all handles are dropped.
func TestCountConservation(t *testing.T) {
	if racetag.Enabled {
		t.Skip("skip under -race: acquire/release refcount orderings the race detector cannot observe")
	}

	var destroyed atomic.Int64

	type obj struct{ id int }
	var cell asp.AtomicSharedPtr[obj]

	v := asp.ClaimWithDeleter(&obj{id: 1}, func(*obj) { destroyed.Add(1) })
	cell.Store(v)

	var wg sync.WaitGroup
	handles := make([]asp.SharedPtr[obj], 64)
	for i := range handles {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			handles[i] = cell.Load()
		}(i)
	}
	wg.Wait()

	final := cell.Exchange(asp.SharedPtr[obj]{})
	final.Release()

	for i := range handles {
		handles[i].Release()
	}

	if got := destroyed.Load(); got != 1 {
		t.Fatalf("destructor ran %d times, want 1", got)
	}
}

// TestCompareAndSwapABAWindow is ASP-S1 from spec.md §8: two threads each
// run iterations of compare_exchange_strong(expected=raw_ptr(null),
// desired=make_shared(6)) against a cell holding make_shared(5). Every
// CAS must fail; the cell must still hold 5 afterward.
func TestCompareAndSwapABAWindow(t *testing.T) {
	if racetag.Enabled {
		t.Skip("skip under -race: acquire/release CAS orderings the race detector cannot observe")
	}

	var cell asp.AtomicSharedPtr[int]
	cell.Store(asp.MakeShared(5))

	const iterations = 5000
	var wg sync.WaitGroup
	var unexpectedSuccess atomic.Bool

	for g := 0; g < 2; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				expected := asp.RawPtr[int]{} // zero value: nil control block, version 0
				desired := asp.MakeShared(6)
				if cell.CompareAndSwapStrong(&expected, desired) {
					unexpectedSuccess.Store(true)
				} else {
					desired.Release()
				}
			}
		}()
	}
	wg.Wait()

	if unexpectedSuccess.Load() {
		t.Fatal("CAS against a non-empty cell with a nil expected pointer unexpectedly succeeded")
	}

	got := cell.Load()
	defer got.Release()
	if *got.Get() != 5 {
		t.Fatalf("cell holds %d, want 5", *got.Get())
	}
}

// TestVersionAdvancesOnMutation checks that every Store bumps the cell's
// version, never leaving it unchanged, never landing on the reserved zero
// sentinel.
func TestVersionAdvancesOnMutation(t *testing.T) {
	var cell asp.AtomicSharedPtr[int]
	prev := cell.Version()
	for i := 0; i < 10; i++ {
		cell.Store(asp.MakeShared(i))
		v := cell.Version()
		if v == 0 {
			t.Fatalf("version landed on reserved zero after store %d", i)
		}
		if v == prev {
			t.Fatalf("version did not advance after store %d", i)
		}
		prev = v
	}
	cell.Load().Release()
}

// TestCloneIndependentRelease checks Clone produces a handle that can be
// released independently without disturbing the original.
func TestCloneIndependentRelease(t *testing.T) {
	var destroyed atomic.Int64
	v := asp.ClaimWithDeleter(new(int), func(*int) { destroyed.Add(1) })
	clone := v.Clone()

	clone.Release()
	if destroyed.Load() != 0 {
		t.Fatal("destructor ran before the last handle was released")
	}
	v.Release()
	if destroyed.Load() != 1 {
		t.Fatal("destructor did not run after the last handle was released")
	}
}
