// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fifo

import "code.hybscloud.com/lfx/asp"

// Consumer is a per-goroutine handle that pops from a Queue, roaming
// across every registered producer's chain. Only the goroutine holding
// a Consumer may call its methods.
type Consumer[T any] struct {
	q        *Queue[T]
	slotIdx  int
	cur      asp.SharedPtr[producerBuffer[T]]
	popCount int
}

// TryPop removes and returns the next item the consumer can find across
// the queue's producer chains, or (zero, false) if none is available
// right now.
func (c *Consumer[T]) TryPop() (v T, ok bool) {
	maxHops := c.q.producerSlotCount()*2 + 4
	if maxHops == 0 {
		return v, false
	}
	for hop := 0; hop < maxHops; hop++ {
		if c.cur.Valid() && c.popCount < ConsumerForceRelocationPopCount {
			if v, ok = c.cur.Get().tryPop(); ok {
				c.popCount++
				return v, true
			}
		}
		if !c.relocate() {
			return v, false
		}
		c.popCount = 0
	}
	return v, false
}

// bufferHasItems reports whether buf has a published item a consumer
// has not yet claimed a ticket for.
func bufferHasItems[T any](buf *producerBuffer[T]) bool {
	pr := buf.preRead.LoadAcquire()
	w := buf.written.LoadAcquire()
	return pr < w
}

// resolveSlot walks forward from shared along its successor chain and
// returns an owning handle to the first buffer worth binding a consumer
// to, per spec.md §4.2.3: bind immediately to a buffer that still has
// items; walk past one that is inactive (capped and fully drained,
// find_back's case) looking for a later buffer with items; otherwise —
// a live buffer that currently reports empty — there is nothing to walk
// to, so report an invalid handle and let the caller skip this slot.
func resolveSlot[T any](shared asp.SharedPtr[producerBuffer[T]]) asp.SharedPtr[producerBuffer[T]] {
	for {
		buf := shared.Get()
		if buf == nil {
			return shared
		}
		if bufferHasItems(buf) {
			return shared
		}
		if !(buf.capped() && buf.drained()) {
			shared.Release()
			return asp.SharedPtr[producerBuffer[T]]{}
		}
		next := buf.next.Load()
		shared.Release()
		shared = next
	}
}

// relocate advances the consumer's binding: first by following the
// currently bound buffer's successor chain if it is inactive
// (opportunistically swinging the shared slot forward so other
// consumers skip the dead prefix too), otherwise by scanning producer
// slots starting from a position drawn off the queue's global
// relocation_index, per spec.md §4.2.3, so concurrent consumers fan out
// across slots instead of each re-walking from its own private cursor.
// Reports false if there is nowhere left to go right now.
func (c *Consumer[T]) relocate() bool {
	n := c.q.producerSlotCount()
	if n == 0 {
		return false
	}

	if c.cur.Valid() {
		buf := c.cur.Get()
		if buf.capped() && buf.drained() {
			resolved := resolveSlot(buf.next.Load())
			if resolved.Valid() {
				if c.slotIdx >= 0 {
					c.q.swingSlot(c.slotIdx, resolved.Clone())
				}
				c.cur.Release()
				c.cur = resolved
				return true
			}
			resolved.Release()
		}
	}

	start := int(c.q.relocationIndex.AddAcqRel(1) - 1)
	for i := 0; i < n; i++ {
		idx := (start%n + i) % n
		if idx < 0 {
			idx += n
		}
		resolved := resolveSlot(c.q.loadSlot(idx))
		if !resolved.Valid() {
			continue
		}
		if c.cur.Valid() {
			c.cur.Release()
		}
		c.cur = resolved
		c.slotIdx = idx
		return true
	}
	return false
}
