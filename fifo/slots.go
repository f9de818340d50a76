// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fifo

import (
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/lfx/asp"
	"code.hybscloud.com/spin"
)

// slotArray is one generation of the producer slot registry: a flat
// array of write-once, read-many cells, one per registered producer.
// Grounded on spec.md §4.2.5's producer-slot array growth: growing the
// registry never mutates a slotArray in place, it installs a bigger one
// and CASes every already-registered cell across, then swings the
// active pointer over. frozen/migratedTo exist only for the narrow
// window where a producer is still installing into a generation that a
// concurrent grow has just finished copying forward — see
// Queue.installSlot.
type slotArray[T any] struct {
	cells      []asp.AtomicSharedPtr[producerBuffer[T]]
	frozen     atomix.Bool
	migratedTo asp.AtomicSharedPtr[slotArray[T]]
}

func newSlotArray[T any](n int) slotArray[T] {
	return slotArray[T]{cells: make([]asp.AtomicSharedPtr[producerBuffer[T]], n)}
}

// nextSlotArrayCapacity applies the same 1.4x growth ratio growth.go
// uses for ring buffers (spec.md §4.2.5's "⌈capacity × 1.4⌉"), clamped
// so the result always covers required.
func nextSlotArrayCapacity(current, required int) int {
	grown := (current*producerSlotGrowthNumerator + producerSlotGrowthDenominator - 1) / producerSlotGrowthDenominator
	if grown < required {
		grown = required
	}
	if grown <= current {
		grown = current + 1
	}
	return grown
}

// ensureCapacity returns an owning handle to the active slot array,
// growing the registry first if it is smaller than required. The
// caller must Release the returned handle.
func (q *Queue[T]) ensureCapacity(required int) asp.SharedPtr[slotArray[T]] {
	sw := spin.Wait{}
	for {
		activeShared := q.active.Load()
		active := activeShared.Get()
		if active != nil && len(active.cells) >= required {
			return activeShared
		}

		current := 0
		if active != nil {
			current = len(active.cells)
		}

		swapShared := q.swap.Load()
		swapArr := swapShared.Get()
		if swapArr == nil || len(swapArr.cells) < required {
			candidate := newSlotArray[T](nextSlotArrayCapacity(current, required))
			candidateShared := asp.MakeShared(candidate)
			expected := q.swap.RawPtr()
			if q.swap.CompareAndSwapStrong(&expected, candidateShared.Clone()) {
				swapShared.Release()
				swapShared = candidateShared
			} else {
				candidateShared.Release()
			}
			swapArr = swapShared.Get()
		}

		if swapArr != nil && len(swapArr.cells) >= required {
			if active != nil {
				for i := range active.cells {
					v := active.cells[i].Load()
					if v.Valid() {
						dstExpected := swapArr.cells[i].RawPtr()
						if !dstExpected.Valid() {
							swapArr.cells[i].CompareAndSwapStrong(&dstExpected, v.Clone())
						}
					}
					v.Release()
				}
				active.migratedTo.Store(swapShared.Clone())
				active.frozen.StoreRelease(true)
			}

			activeExpected := q.active.RawPtr()
			q.active.CompareAndSwapStrong(&activeExpected, swapShared.Clone())
		}

		activeShared.Release()
		swapShared.Release()
		sw.Once()
	}
}

// installSlot CASes buf into the registry's idx'th cell, following the
// frozen/migratedTo trail forward if a concurrent grow finishes copying
// the registry to a new generation in the narrow window between this
// call's ensureCapacity and its CAS — without this, a write landing on
// a generation that has already been fully copied-and-abandoned would
// never become visible through the new active pointer.
func (q *Queue[T]) installSlot(idx int, buf asp.SharedPtr[producerBuffer[T]]) {
	arrShared := q.ensureCapacity(idx + 1)
	for {
		arr := arrShared.Get()
		expected := arr.cells[idx].RawPtr()
		if !expected.Valid() {
			arr.cells[idx].CompareAndSwapStrong(&expected, buf.Clone())
		}
		if !arr.frozen.LoadAcquire() {
			break
		}
		migrated := arr.migratedTo.Load()
		arrShared.Release()
		arrShared = migrated
	}
	buf.Release()
	arrShared.Release()
}

// loadSlot returns an owning handle to the producer buffer registered
// at idx, or an empty handle if idx is unregistered or out of range.
func (q *Queue[T]) loadSlot(idx int) asp.SharedPtr[producerBuffer[T]] {
	arrShared := q.active.Load()
	defer arrShared.Release()
	arr := arrShared.Get()
	if arr == nil || idx < 0 || idx >= len(arr.cells) {
		return asp.SharedPtr[producerBuffer[T]]{}
	}
	return arr.cells[idx].Load()
}

// producerSlotCount returns the number of producer slots currently
// visible to consumers — the monotonically-advanced producerCount from
// spec.md §4.2.5, not the registry array's (possibly larger) physical
// capacity.
func (q *Queue[T]) producerSlotCount() int {
	return int(q.producerCount.LoadAcquire())
}

// forEachSlot visits every currently-visible producer slot's buffer
// handle. fn must Release the handle it is given.
func (q *Queue[T]) forEachSlot(fn func(asp.SharedPtr[producerBuffer[T]])) {
	n := q.producerSlotCount()
	for i := 0; i < n; i++ {
		fn(q.loadSlot(i))
	}
}

// swingSlot attempts to advance the registry's idx'th cell to desired,
// so the next consumer to look there skips a prefix this one already
// proved is exhausted. desired is consumed either way: installed on
// success, released on a lost race or a stale/unregistered idx.
func (q *Queue[T]) swingSlot(idx int, desired asp.SharedPtr[producerBuffer[T]]) {
	arrShared := q.active.Load()
	defer arrShared.Release()
	arr := arrShared.Get()
	if arr == nil || idx < 0 || idx >= len(arr.cells) {
		desired.Release()
		return
	}
	expected := arr.cells[idx].RawPtr()
	if !expected.Valid() {
		desired.Release()
		return
	}
	if !arr.cells[idx].CompareAndSwapStrong(&expected, desired) {
		desired.Release()
	}
}

// registerSlot reserves the next producer index and publishes first as
// its initial buffer, advancing producerCount once every reservation up
// to and including this one has finished installing — spec.md §4.2.5's
// "post-reservation equals reservation" visibility rule, giving
// consumers a contiguous prefix of slots to scan instead of racing
// ahead of in-flight registrations.
func (q *Queue[T]) registerSlot(first producerBuffer[T]) (int, asp.SharedPtr[producerBuffer[T]]) {
	idx := int(q.reservation.AddAcqRel(1) - 1)
	shared := asp.MakeShared(first)
	q.installSlot(idx, shared.Clone())

	post := q.postReservation.AddAcqRel(1)
	sw := spin.Wait{}
	for {
		reserved := q.reservation.LoadAcquire()
		if post != reserved {
			break
		}
		cur := q.producerCount.LoadAcquire()
		if cur >= reserved {
			break
		}
		if q.producerCount.CompareAndSwapAcqRel(cur, reserved) {
			break
		}
		sw.Once()
	}

	return idx, shared
}
