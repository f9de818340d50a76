// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fifo

import (
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/lfx/asp"
)

// ConsumerForceRelocationPopCount is how many consecutive successful
// pops a Consumer takes from the same bound buffer before it forces a
// relocation check, so one producer's backlog can't starve the others.
// Empirical, per spec.md §9 — kept as a tunable constant rather than a
// constructor option.
const ConsumerForceRelocationPopCount = 24

// Queue is an unbounded multi-producer multi-consumer FIFO. The zero
// value is not usable; construct with New.
type Queue[T any] struct {
	cfg config[T]

	// active/swap are the producer slot registry's current and
	// in-progress-next generation, grown per spec.md §4.2.5 instead of
	// guarded by a mutex: push/pop and registration alike only ever CAS,
	// never lock. See slots.go.
	active asp.AtomicSharedPtr[slotArray[T]]
	swap   asp.AtomicSharedPtr[slotArray[T]]

	reservation     atomix.Int64 // next producer index to hand out
	postReservation atomix.Int64 // completed registrations, for the visibility rule
	producerCount   atomix.Int64 // slots visible to consumers

	// relocationIndex is the global cursor spec.md §4.2.3 requires
	// Consumer.relocate fetch-add from, so consumers fan out across
	// producer slots together instead of each re-walking from its own
	// private cursor.
	relocationIndex atomix.Int64
}

// New constructs an empty Queue.
func New[T any](opts ...Option[T]) *Queue[T] {
	q := &Queue[T]{cfg: defaultConfig[T]()}
	for _, opt := range opts {
		opt(&q.cfg)
	}
	return q
}

// NewProducer binds a new Producer handle to this queue, backed by a
// freshly allocated ring and a newly registered slot. Call once per
// goroutine that will push (Go has no thread-local storage; this handle
// is the explicit replacement — see the package doc comment).
func (q *Queue[T]) NewProducer() *Producer[T] {
	first := newProducerBuffer[T](q.cfg.initialCapacity)
	idx, shared := q.registerSlot(first)
	return &Producer[T]{q: q, slotIdx: idx, cur: shared}
}

// NewConsumer binds a new Consumer handle to this queue. Call once per
// goroutine that will pop.
func (q *Queue[T]) NewConsumer() *Consumer[T] {
	return &Consumer[T]{q: q, slotIdx: -1}
}

// Reserve is a hint that n items are about to be pushed; it has no
// effect beyond documentation intent since producer rings grow lazily
// on demand and reservation across independent producer rings cannot be
// attributed to a single caller.
func (q *Queue[T]) Reserve(n int) {}

// Size returns a best-effort, momentarily-stale count of items queued
// across every producer's chain. Never exact under concurrent access;
// intended for metrics and tests, not control flow.
func (q *Queue[T]) Size() int {
	total := 0
	q.forEachSlot(func(shared asp.SharedPtr[producerBuffer[T]]) {
		buf := shared.Get()
		for buf != nil {
			w := buf.written.LoadAcquire()
			d := buf.depleted.LoadAcquire()
			if w > d {
				total += int(w - d)
			}
			next := buf.next.Load()
			shared.Release()
			shared = next
			buf = shared.Get()
		}
		shared.Release()
	})
	return total
}

// UnsafeSize is an alias for Size kept for API parity with callers
// porting code that distinguishes a "cheap is fine since I already know
// I'm the only writer" query from a general one; both are equally
// best-effort here.
func (q *Queue[T]) UnsafeSize() int {
	return q.Size()
}

// UnsafeClear drains every producer's chain down to empty rings. Not
// safe to call concurrently with Push/TryPop.
func (q *Queue[T]) UnsafeClear() {
	q.forEachSlot(func(shared asp.SharedPtr[producerBuffer[T]]) {
		for {
			buf := shared.Get()
			if buf == nil {
				shared.Release()
				return
			}
			_, ok := buf.tryPop()
			if ok {
				continue
			}
			if !buf.capped() {
				shared.Release()
				return
			}
			next := buf.next.Load()
			shared.Release()
			if !next.Valid() {
				next.Release()
				return
			}
			shared = next
		}
	})
}

// UnsafeReset discards every producer's chain and every registered slot.
// Single-threaded use only: it does not coordinate with in-flight
// Producer/Consumer handles from other goroutines, matching spec.md's
// resolution of the concurrency Open Question for this operation (the
// CPQ analogue, Clear, stays concurrent-safe; Reset does not).
func (q *Queue[T]) UnsafeReset() {
	q.active.Store(asp.SharedPtr[slotArray[T]]{})
	q.swap.Store(asp.SharedPtr[slotArray[T]]{})
	q.reservation.StoreRelease(0)
	q.postReservation.StoreRelease(0)
	q.producerCount.StoreRelease(0)
	q.relocationIndex.StoreRelease(0)
}
