// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package cpq

import (
	"time"

	"code.hybscloud.com/atomix"
)

var seedCounter atomix.Uint64

func nextSeed() uint64 {
	return uint64(time.Now().UnixNano()) ^ (seedCounter.AddAcqRel(1) * 0x9e3779b97f4a7c15)
}

// Queue is a lock-free priority queue over a concurrent skip-list,
// grounded on original_source/.../concurrent_priority_queue.h. Pop always
// returns the minimum key under the configured less. The zero value is
// not usable; construct with New.
type Queue[K, V any] struct {
	strategy Strategy
	alloc    allocator[K, V]
	list     *skiplist[K, V]

	scratch *scratchAllocator[K, V]
	pool    *poolAllocator[K, V]
}

// New constructs a Queue. WithLess is effectively required: without a
// comparator every key compares equal and Push degenerates to stack-like
// LIFO-at-head ordering, which is never useful for a priority queue.
func New[K, V any](opts ...Option[K, V]) *Queue[K, V] {
	cfg := defaultConfig[K, V]()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.less == nil {
		cfg.less = func(a, b K) bool { return false }
	}

	q := &Queue[K, V]{
		strategy: cfg.strategy,
		list:     newSkiplist[K, V](cfg.less, nextSeed()),
	}
	switch cfg.strategy {
	case Scratch:
		q.scratch = newScratchAllocator[K, V](cfg.capacity, cfg.towerHint)
		q.alloc = q.scratch
	case External:
		q.alloc = externalAllocator[K, V]{}
	default:
		q.pool = newPoolAllocator[K, V](cfg.capacity, cfg.towerHint)
		q.alloc = q.pool
	}
	return q
}

// Push inserts key/value. Panics if the Queue was constructed with
// External, since there is nothing for Push to allocate from — use
// PushNode instead.
func (q *Queue[K, V]) Push(key K, val V) {
	if q.strategy == External {
		panic("cpq: Push is unusable with the External strategy, use PushNode")
	}
	height := int(q.list.newHeight())
	n := q.alloc.newNode(key, val, height)
	q.list.insert(n)
}

// PushNode inserts a caller-owned node. Only valid when the Queue was
// constructed with External; n's tower is (re)sized here to a freshly
// drawn height, overwriting whatever height it had before.
func (q *Queue[K, V]) PushNode(n *Node[K, V]) {
	if q.strategy != External {
		panic("cpq: PushNode is only valid with the External strategy")
	}
	height := int(q.list.newHeight())
	n.height = height
	resizeTower(n, height)
	n.deleted.StoreRelease(false)
	q.list.insert(n)
}

// TryPop removes and returns the minimum key/value pair, or reports false
// if the queue was empty. The popped node is returned to the configured
// Strategy's allocator (Pool recycles it behind the epoch guard, Scratch
// and External do nothing).
func (q *Queue[K, V]) TryPop() (K, V, bool) {
	n, ok := q.list.tryPopFront()
	if q.pool != nil {
		q.pool.tick()
	}
	if !ok {
		var zk K
		var zv V
		return zk, zv, false
	}
	key, val := n.Key, n.Value
	q.alloc.retire(n)
	return key, val, true
}

// TryPopNode is TryPop's External-strategy counterpart: it returns
// the removed node itself instead of copying out its key/value, so the
// caller can reclaim or reuse the allocation. Only valid when the Queue
// was constructed with External.
func (q *Queue[K, V]) TryPopNode() (*Node[K, V], bool) {
	if q.strategy != External {
		panic("cpq: TryPopNode is only valid with the External strategy")
	}
	return q.list.tryPopFront()
}

// Empty reports whether the queue currently holds no elements. Racy under
// concurrent Push/TryPop the same way every MPMC Empty() is; true at the
// instant observed, possibly stale by the time the caller acts on it.
func (q *Queue[K, V]) Empty() bool {
	n, ok := q.list.peek()
	return !ok || n == nil
}

// Len returns a best-effort, momentarily-stale element count.
func (q *Queue[K, V]) Len() int {
	return q.list.len()
}

// Clear concurrently drains the queue to empty. Safe to call alongside
// other goroutines' Push/TryPop.
func (q *Queue[K, V]) Clear() {
	q.list.clear(q.alloc.retire)
}

// UnsafeReset discards every element without retiring them through the
// configured Strategy and rewires the head tower to empty. Single-
// threaded use only: it does not coordinate with concurrent Push/TryPop,
// mirroring fifo.Queue.UnsafeReset's single-threaded contract.
func (q *Queue[K, V]) UnsafeReset() {
	q.list.unsafeReset()
}

// UnsafeResetScratchPool rewinds the Scratch strategy's bump cursor back
// to zero, making every slab slot eligible for reuse again. Only valid
// when the Queue was constructed with Scratch; panics otherwise. Callers
// must ensure no node still referenced from a live traversal is about to
// be silently overwritten — this is exactly as unsafe as its name says.
func (q *Queue[K, V]) UnsafeResetScratchPool() {
	if q.strategy != Scratch {
		panic("cpq: UnsafeResetScratchPool is only valid with the Scratch strategy")
	}
	q.scratch.reset()
}
