// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package cpq

import (
	"unsafe"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

// Strategy selects how a Queue obtains and reclaims *Node[K, V] storage.
type Strategy int

const (
	// Pool preallocates a bounded slab and recycles popped nodes back
	// onto a free-index ring once an epoch guard clears them.
	Pool Strategy = iota
	// Scratch preallocates a bounded slab and bump-allocates from it
	// without ever recycling; UnsafeResetScratchPool rewinds it.
	Scratch
	// External performs no allocation at all; every node pushed through
	// a Queue configured with External must arrive via PushNode.
	External
)

// allocator is the seam between Queue and the three Strategy values.
// Grounded on hayabusa-cloud-iobuf's BoundedPool[T] (bounded slab,
// free-index ring, power-of-two capacity), generalized to a skip-list
// node shape.
type allocator[K, V any] interface {
	newNode(key K, value V, height int) *Node[K, V]
	retire(n *Node[K, V])
}

// externalAllocator backs the External strategy. Queue.Push is unusable
// with this allocator (there is nothing to allocate from); only PushNode
// is, so newNode exists purely to satisfy the interface and is never
// actually called by Queue.
type externalAllocator[K, V any] struct{}

func (externalAllocator[K, V]) newNode(key K, value V, height int) *Node[K, V] {
	return newNode(key, value, height)
}
func (externalAllocator[K, V]) retire(*Node[K, V]) {}

// scratchAllocator is a bump allocator over a bounded slab: newNode claims
// the next never-reused index via FAA, and indices past capacity spill to
// the Go heap. reset rewinds the cursor; no individual node is ever freed
// early, matching the "scratch" naming from
// original_source/.../cpq_allocation_strategy_scratch.
type scratchAllocator[K, V any] struct {
	slab   []Node[K, V]
	cursor atomix.Uint64
}

func newScratchAllocator[K, V any](capacity, towerHint int) *scratchAllocator[K, V] {
	slab := make([]Node[K, V], capacity)
	for i := range slab {
		slab[i].next = make([]linkWord[K, V], towerHint)
	}
	return &scratchAllocator[K, V]{slab: slab}
}

func (s *scratchAllocator[K, V]) newNode(key K, value V, height int) *Node[K, V] {
	idx := s.cursor.AddAcqRel(1) - 1
	if int(idx) >= len(s.slab) {
		return newNode(key, value, height)
	}
	n := &s.slab[idx]
	n.Key, n.Value, n.height = key, value, height
	resizeTower(n, height)
	n.deleted.StoreRelease(false)
	return n
}

func (s *scratchAllocator[K, V]) retire(*Node[K, V]) {}

func (s *scratchAllocator[K, V]) reset() { s.cursor.StoreRelease(0) }

// poolAllocator is a bounded slab with a free-index ring, adapted from
// hayabusa-cloud-iobuf's BoundedPool[T], plus an epoch guard: retire does
// not return a node's index to the free ring immediately, it stamps the
// node with the epoch at retirement and only recycles indices whose
// stamped epoch is at least two ticks behind the current one, giving any
// in-flight search that already loaded the old pointer a chance to notice
// the node's deleted flag and back off before the slot is reused. No pack
// example implements epoch-based reclamation; the epoch counter is built
// on the same atomic/channel idioms as the rest of this file rather than
// pulling in a dedicated EBR library, since none appears anywhere in the
// pack (see DESIGN.md).
type poolAllocator[K, V any] struct {
	slab      []Node[K, V]
	free      chan uint32
	epoch     atomix.Uint64
	retiredAt []atomix.Uint64
	pending   chan uint32
}

func newPoolAllocator[K, V any](capacity, towerHint int) *poolAllocator[K, V] {
	p := &poolAllocator[K, V]{
		slab:      make([]Node[K, V], capacity),
		free:      make(chan uint32, capacity),
		retiredAt: make([]atomix.Uint64, capacity),
		pending:   make(chan uint32, capacity),
	}
	for i := range p.slab {
		p.slab[i].next = make([]linkWord[K, V], towerHint)
		p.free <- uint32(i)
	}
	return p
}

// tick advances the epoch and recycles any node retired at least two
// epochs ago back onto the free ring. Called from Queue.TryPop so the
// guard makes progress on the same thread doing the popping, with no
// dedicated reclaimer goroutine.
func (p *poolAllocator[K, V]) tick() {
	cur := p.epoch.AddAcqRel(1)
	for {
		select {
		case idx := <-p.pending:
			if cur-p.retiredAt[idx].LoadAcquire() >= 2 {
				p.free <- idx
			} else {
				p.pending <- idx
				return
			}
		default:
			return
		}
	}
}

func (p *poolAllocator[K, V]) newNode(key K, value V, height int) *Node[K, V] {
	sw := spin.Wait{}
	for attempt := 0; attempt < 4; attempt++ {
		select {
		case idx := <-p.free:
			n := &p.slab[idx]
			n.Key, n.Value, n.height = key, value, height
			resizeTower(n, height)
			n.deleted.StoreRelease(false)
			return n
		default:
			sw.Once()
		}
	}
	return newNode(key, value, height)
}

func (p *poolAllocator[K, V]) retire(n *Node[K, V]) {
	idx := p.indexOf(n)
	if idx < 0 {
		return
	}
	p.retiredAt[idx].StoreRelease(p.epoch.LoadAcquire())
	p.pending <- uint32(idx)
}

func (p *poolAllocator[K, V]) indexOf(n *Node[K, V]) int {
	if len(p.slab) == 0 {
		return -1
	}
	base := uintptr(unsafe.Pointer(&p.slab[0]))
	addr := uintptr(unsafe.Pointer(n))
	if addr < base {
		return -1
	}
	stride := unsafe.Sizeof(p.slab[0])
	idx := (addr - base) / stride
	if idx >= uintptr(len(p.slab)) {
		return -1
	}
	return int(idx)
}

// resizeTower replaces n.next with a fresh array of height links if it is
// too short, else truncates and clears it in place, reusing its backing
// array.
func resizeTower[K, V any](n *Node[K, V], height int) {
	if len(n.next) < height {
		n.next = make([]linkWord[K, V], height)
		return
	}
	n.next = n.next[:height]
	clear(n.next)
}
