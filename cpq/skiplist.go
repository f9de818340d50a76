// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package cpq

import (
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/lfx/internal/xorshift"
	"code.hybscloud.com/spin"
)

// skiplist is the lock-free ordered forward-link structure backing Queue.
// Grounded throughout on
// original_source/.../concurrent_priority_queue.h: head is an always-
// present, never-deleted sentinel with a full-height tower (the source's
// head node), insert links bottom-up level by level (push/push_internal),
// and pop only ever removes the frontmost node (try_pop/try_pop_internal)
// since this is a priority queue, not a general ordered map — there is no
// delete-by-key.
type skiplist[K, V any] struct {
	less func(a, b K) bool
	head *Node[K, V]
	rng  *xorshift.Source
	size atomix.Int64
}

func (l *skiplist[K, V]) newHeight() uint8 {
	return randomHeight(l.rng)
}

func newSkiplist[K, V any](less func(a, b K) bool, seed uint64) *skiplist[K, V] {
	var zeroK K
	var zeroV V
	return &skiplist[K, V]{
		less: less,
		head: newNode[K, V](zeroK, zeroV, MaxTowerHeight),
		rng:  xorshift.New(seed),
	}
}

// versionLagWindow stands in for concurrent_priority_queue.h's
// to_expected_list_size(LinkTowerHeight): the C++ source derives that
// window from the queue's expected element count (a template parameter),
// which governs both its tower height and the period at which base-layer
// versions lap the upper layers. This package fixes the window to a
// single constant instead of threading an expected-size parameter through
// every skip-list method; see DESIGN.md for the tradeoff.
const versionLagWindow = 512

// insert links n into every level below n.height, bottom-up, per the
// source's push_internal/link_to_head/link_to_node. Level 0 is linked
// first, exactly: an exact-match CAS if n is joining mid-list, or — when
// n becomes the new front — an exact-match CAS against head preceded by
// counteractVersionLag, since head's base-layer version is the one
// counter in the whole structure that advances on every front insert
// and every delink. Upper layers are then linked the same way counteractVersionLag
// just protected: windowed against head (linkUpperAtHead) when n is the
// new front, ordinary exact-match CAS against an interior predecessor
// otherwise, with failures there silently tolerated per spec.md §4.3.3
// step 5 (a lost race above level 0 only shortens n's visible tower).
func (l *skiplist[K, V]) insert(n *Node[K, V]) {
	height := n.height
	preds := make([]*Node[K, V], height)
	succs := make([]*Node[K, V], height)
	versions := make([]uint32, height)

	sw := spin.Wait{}
	for {
		l.search(n.Key, height, preds, succs, versions)

		for level := 0; level < height; level++ {
			n.next[level].storeRelease(succs[level], 0)
		}

		if preds[0] == l.head {
			versionBase := versions[0]
			l.counteractVersionLag(height, versionBase, 1)
			nextVersionBase := versionAddOne(versionBase)
			if !preds[0].next[0].compareAndSwapAcqRel(succs[0], versionBase, n, nextVersionBase) {
				sw.Once()
				continue
			}
			l.linkUpperAtHead(height, n, succs, nextVersionBase)
		} else {
			if !preds[0].next[0].compareAndSwapAcqRel(succs[0], 0, n, 0) {
				sw.Once()
				continue
			}
			l.linkUpperAtNode(height, n, preds, succs, versions)
		}
		break
	}

	l.size.AddAcqRel(1)
}

// linkUpperAtHead links n into head's upper-layer links once n is known
// to be the new front, grounded on link_to_head_upper: every layer above
// 0 shares the same just-bumped version, applied through the windowed
// exchangeHeadLink rather than an exact-match CAS since these links
// advance far less often than the base layer and may already be stale.
// Stops at the first out-of-range layer, matching the source's early
// break — layers above that one are left for a future counteractVersionLag
// to repair rather than chased here.
func (l *skiplist[K, V]) linkUpperAtHead(height int, n *Node[K, V], succs []*Node[K, V], version uint32) {
	for level := 1; level < height; level++ {
		if l.head.next[level].exchangeHeadLink(succs[level], n, version) == exchangeOutOfRange {
			break
		}
	}
}

// linkUpperAtNode links n into an interior predecessor's upper-layer
// links, grounded on link_to_node_upper: a single exact-match CAS per
// layer preserving the version already observed there (non-head links
// carry no version policy of their own), never retried.
func (l *skiplist[K, V]) linkUpperAtNode(height int, n *Node[K, V], preds, succs []*Node[K, V], versions []uint32) {
	for level := 1; level < height; level++ {
		preds[level].next[level].compareAndSwapAcqRel(succs[level], versions[level], n, versions[level])
	}
}

// counteractVersionLag drags a lagging upper-layer head link back toward
// head's current base-layer version, grounded on counteract_version_lag:
// once versionBase has advanced versionStep past a versionLagWindow
// boundary, every layer at or above aboveLayer (the layers the node this
// mutation is linking/delinking does not itself reach) is checked, and
// any in-range link whose recorded version has strayed more than a
// window's width behind versionBase is dragged to one step behind
// versionBase so it never falls permanently out of the in-range window
// described in spec.md §4.3.7.
func (l *skiplist[K, V]) counteractVersionLag(aboveLayer int, versionBase, versionStep uint32) {
	versionPart := versionBase % versionLagWindow
	if versionPart+versionStep < versionLagWindow {
		return
	}
	for level := aboveLayer; level < MaxTowerHeight; level++ {
		n, v := l.head.next[level].loadRelaxed()
		if !inRange(v, versionBase) {
			continue
		}
		if versionDelta(v, versionBase) > versionLagWindow {
			l.head.next[level].compareAndSwapAcqRel(n, v, n, versionSubOne(versionBase))
		}
	}
}

// search collects, for every level below height, the predecessor and
// successor around key plus the version the predecessor's link carried at
// observation time.
func (l *skiplist[K, V]) search(key K, height int, preds, succs []*Node[K, V], versions []uint32) {
	pred := l.head
	for level := MaxTowerHeight - 1; level >= 0; level-- {
		for {
			succ, v := pred.next[level].loadAcquire()
			if succ != nil && !succ.deleted.LoadAcquire() && l.less(succ.Key, key) {
				pred = succ
				continue
			}
			if level < height {
				preds[level] = pred
				succs[level] = succ
				versions[level] = v
			}
			break
		}
	}
}

// front returns the first non-deleted node, helping unlink any deleted
// nodes it steps over along the way (delink_front's "help as you go").
func (l *skiplist[K, V]) front() *Node[K, V] {
	sw := spin.Wait{}
	for {
		n, _ := l.head.next[0].loadAcquire()
		if n == nil {
			return nil
		}
		if !n.deleted.LoadAcquire() {
			return n
		}
		l.delinkFront(n)
		sw.Once()
	}
}

// tryPopFront logically then physically removes the frontmost node and
// returns it, or reports false if the list was empty.
func (l *skiplist[K, V]) tryPopFront() (*Node[K, V], bool) {
	sw := spin.Wait{}
	for {
		n, _ := l.head.next[0].loadAcquire()
		if n == nil {
			return nil, false
		}
		if n.deleted.LoadAcquire() {
			l.delinkFront(n)
			sw.Once()
			continue
		}
		if !n.deleted.CompareAndSwapAcqRel(false, true) {
			// another popper won the flag race on this node; help
			// unlink it and look again.
			l.delinkFront(n)
			sw.Once()
			continue
		}
		l.delinkFront(n)
		l.size.AddAcqRel(-1)
		return n, true
	}
}

// delinkFront physically unlinks a logically-deleted node n from head's
// tower in a single attempt, matching delink_front's shape: upper layers
// are unlinked top-down through the windowed exchangeHeadLink, aborting
// the whole call the moment one reports out-of-range (spec.md §4.3.4 step
// 4 — "retry from step 1", which here means the caller's own retry loop
// calls delinkFront again with a fresh read of n); counteractVersionLag
// then protects any layers above n's own tower before the base layer is
// delinked with one exact-match CAS. Each upper layer is exchanged from
// whatever head.next[level] held when this call read it (not checked
// against n) to n's successor at that layer. A helper that reads after
// another helper's exchange finds the desired version already installed
// (exchangeOtherLink) and changes nothing, and one that arrives after the
// base-layer delink finds head.next[0] no longer equal to n and returns.
func (l *skiplist[K, V]) delinkFront(n *Node[K, V]) {
	height := n.height
	expected := make([]*Node[K, V], height)
	next := make([]*Node[K, V], height)

	curHead, baseVersion := l.head.next[0].loadAcquire()
	if curHead != n {
		return
	}
	expected[0] = curHead
	for level := 1; level < height; level++ {
		expected[level], _ = l.head.next[level].loadAcquire()
	}
	for level := 0; level < height; level++ {
		next[level], _ = n.next[level].loadAcquire()
	}

	nextVersionUpper := versionAddOne(baseVersion)
	for level := height - 1; level >= 1; level-- {
		if l.head.next[level].exchangeHeadLink(expected[level], next[level], nextVersionUpper) == exchangeOutOfRange {
			return
		}
	}

	l.counteractVersionLag(height, baseVersion, 1)

	l.head.next[0].compareAndSwapAcqRel(n, baseVersion, next[0], versionAddOne(baseVersion))
}

func (l *skiplist[K, V]) peek() (*Node[K, V], bool) {
	n := l.front()
	if n == nil {
		return nil, false
	}
	return n, true
}

func (l *skiplist[K, V]) len() int {
	n := int(l.size.LoadAcquire())
	if n < 0 {
		return 0
	}
	return n
}

// clear concurrently drains the list down to empty. Safe to call while
// other goroutines Push/TryPop, per spec.md's Open Question resolution
// that Clear (unlike UnsafeReset) stays concurrency-safe.
func (l *skiplist[K, V]) clear(retire func(*Node[K, V])) {
	for {
		n, ok := l.tryPopFront()
		if !ok {
			return
		}
		retire(n)
	}
}

// unsafeReset rewires head back to an empty tower and zeros size.
// Single-threaded use only.
func (l *skiplist[K, V]) unsafeReset() {
	for level := 0; level < MaxTowerHeight; level++ {
		l.head.next[level].storeRelease(nil, 0)
	}
	l.size.StoreRelease(0)
}
