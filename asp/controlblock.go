// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package asp

import "code.hybscloud.com/atomix"

// controlBlock is the heap-allocated header shared by every owner of a
// managed value. strong is the authoritative use-count; local-reference
// lanes in packedWords owe their batches back to it. destroy, set only by
// Claim/ClaimWithDeleter, runs exactly once, when strong reaches zero;
// alloc records the Allocator an AllocateShared* call consulted and is
// not used afterwards.
type controlBlock[T any] struct {
	strong    atomix.Int64
	value     T
	arr       []T
	ptr       *T
	itemCount int
	destroy   func(*controlBlock[T])
	alloc     Allocator
}

func newControlBlock[T any](v T) *controlBlock[T] {
	cb := &controlBlock[T]{value: v, itemCount: 1}
	cb.strong.StoreRelaxed(0)
	return cb
}

func newArrayControlBlock[T any](n int) *controlBlock[T] {
	cb := &controlBlock[T]{arr: make([]T, n), itemCount: n}
	cb.strong.StoreRelaxed(0)
	return cb
}

// get returns the managed object. A claimed control block returns the
// original *T handed to Claim/ClaimWithDeleter, not a copy, so mutations
// through any other alias of that pointer stay visible. Array control
// blocks return the first element's address to satisfy the single-object
// access pattern; callers wanting the full array use Slice.
func (cb *controlBlock[T]) get() *T {
	if cb.ptr != nil {
		return cb.ptr
	}
	if cb.arr != nil {
		return &cb.arr[0]
	}
	return &cb.value
}

// addStrong adds n (n>0) use-count units, refilling a local-reference
// lane that is about to be handed out.
func (cb *controlBlock[T]) addStrong(n int64) {
	cb.strong.AddAcqRel(n)
}

// release subtracts n use-count units and runs destroy exactly once when
// the count reaches zero. Safe to call from multiple goroutines
// concurrently releasing disjoint local-reference batches.
func (cb *controlBlock[T]) release(n int64) {
	if cb.strong.AddAcqRel(-n) == 0 {
		if cb.destroy != nil {
			cb.destroy(cb)
		}
	}
}
