// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fifo

import "code.hybscloud.com/lfx/asp"

// Producer is a per-goroutine handle bound to one ring chain within a
// Queue. Only the goroutine holding a Producer may call its methods;
// sharing a Producer across goroutines reintroduces the single-writer
// race the per-producer ring design exists to avoid.
type Producer[T any] struct {
	q       *Queue[T]
	slotIdx int
	cur     asp.SharedPtr[producerBuffer[T]]
}

// Push appends v to this producer's chain, growing a new successor ring
// whenever the current one is full.
func (p *Producer[T]) Push(v T) {
	buf := p.cur.Get()
	for !buf.tryPush(v) {
		buf = p.advance(buf)
	}
}

// PushPtr is Push taking the value by pointer, for large T the caller
// would rather not copy twice.
func (p *Producer[T]) PushPtr(v *T) {
	p.Push(*v)
}

// advance grows buf's successor (or follows one already installed by a
// retry of this same call) and rebinds the producer's current handle to
// it.
func (p *Producer[T]) advance(buf *producerBuffer[T]) *producerBuffer[T] {
	if !buf.next.RawPtr().Valid() {
		next := growSuccessor(buf)
		p.cur.Release()
		p.cur = next
		return next.Get()
	}
	next := buf.next.Load()
	p.cur.Release()
	p.cur = next
	return next.Get()
}
