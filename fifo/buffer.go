// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fifo

import (
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/lfx/asp"
)

const (
	cellEmpty int32 = 0
	cellValid int32 = 1 << 0
	// cellFailed marks a cell whose TryPopRecover clone panicked; the
	// slot is vacated without ever being reused for a value.
	cellFailed int32 = 1 << 1
	// cellDummy completes the state set; no code in this package stores
	// it into a cell.
	cellDummy int32 = 1 << 2
)

type cell[T any] struct {
	state atomix.Int32
	value T
}

// producerBuffer is one producer's ring segment. Capacity is a power of
// two. Exactly one goroutine — the Producer that owns this chain — ever
// calls tryPush; tryPop may be called by any number of consumers,
// including ones relocated here from an exhausted predecessor.
type producerBuffer[T any] struct {
	cells    []cell[T]
	mask     uint64
	capacity uint64

	preRead  atomix.Uint64 // next consumer reservation ticket
	written  atomix.Uint64 // boundary up to which cells are published
	depleted atomix.Uint64 // count of claimed cells consumers have finished with (Empty, Failed or skipped)

	writeSlot uint64 // producer-owned; next index to publish into

	next asp.AtomicSharedPtr[producerBuffer[T]]
}

func newProducerBuffer[T any](capacity uint64) producerBuffer[T] {
	return producerBuffer[T]{
		cells:    make([]cell[T], capacity),
		mask:     capacity - 1,
		capacity: capacity,
	}
}

// tryPush publishes v into the next free cell. It reports false when the
// ring has no room left for the producer to advance into; the caller
// grows and relocates to a successor.
func (b *producerBuffer[T]) tryPush(v T) bool {
	if b.writeSlot-b.depleted.LoadAcquire() >= b.capacity {
		return false
	}
	idx := b.writeSlot & b.mask
	c := &b.cells[idx]
	if c.state.LoadAcquire() != cellEmpty {
		return false
	}
	c.value = v
	c.state.StoreRelease(cellValid)
	b.writeSlot++
	b.written.StoreRelease(b.writeSlot)
	return true
}

// capped reports whether the producer has moved on to a successor and
// will never publish past this buffer's capacity.
func (b *producerBuffer[T]) capped() bool {
	return b.next.RawPtr().Valid()
}

// drained reports whether every value published so far has already been
// claimed by a consumer ticket (not necessarily yet vacated — see
// depleted). Once capped, written no longer moves, so capped && drained
// means the buffer is fully drained.
func (b *producerBuffer[T]) drained() bool {
	return b.preRead.LoadAcquire() >= b.written.LoadAcquire()
}

// tryPop claims and returns the next published value, if any is ready.
func (b *producerBuffer[T]) tryPop() (v T, ok bool) {
	for {
		pr := b.preRead.LoadAcquire()
		w := b.written.LoadAcquire()
		if pr >= w {
			return v, false
		}
		if !b.preRead.CompareAndSwapAcqRel(pr, pr+1) {
			continue
		}
		idx := pr & b.mask
		c := &b.cells[idx]
		if c.state.LoadAcquire()&cellValid == 0 {
			b.depleted.AddAcqRel(1)
			continue
		}
		v = c.value
		var zero T
		c.value = zero
		c.state.StoreRelease(cellEmpty)
		b.depleted.AddAcqRel(1)
		return v, true
	}
}

// tryPopRecover is tryPop, but the value is extracted through clone
// instead of a plain assignment; a panicking clone marks the cell
// Failed and returns ErrRecovered instead of propagating the panic.
func (b *producerBuffer[T]) tryPopRecover(clone CloneFunc[T]) (v T, err error) {
	for {
		pr := b.preRead.LoadAcquire()
		w := b.written.LoadAcquire()
		if pr >= w {
			return v, ErrWouldBlock
		}
		if !b.preRead.CompareAndSwapAcqRel(pr, pr+1) {
			continue
		}
		idx := pr & b.mask
		c := &b.cells[idx]
		if c.state.LoadAcquire()&cellValid == 0 {
			b.depleted.AddAcqRel(1)
			continue
		}
		v, err = recoverClone(clone, &c.value)
		var zero T
		c.value = zero
		if err != nil {
			c.state.StoreRelease(cellFailed)
		} else {
			c.state.StoreRelease(cellEmpty)
		}
		b.depleted.AddAcqRel(1)
		return v, err
	}
}

func recoverClone[T any](clone CloneFunc[T], src *T) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero T
			v = zero
			err = ErrRecovered
		}
	}()
	return clone(src), nil
}
