// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package cpq

import (
	"unsafe"

	"code.hybscloud.com/atomix"
)

// MaxVersion and InRangeDelta bound the version counter each tower slot
// carries. Grounded on
// original_source/.../concurrent_priority_queue.h's Max_Version/
// In_Range_Delta (`Max_Version = (1<<11)-1`), matching spec.md §6.4's
// constants table exactly — the same value asp.MaxVersion uses, per the
// Design Note on centralizing the ABA-at-version-zero edge in one
// constant pair per package.
const (
	MaxVersion   = (1 << 11) - 1
	InRangeDelta = MaxVersion / 2
)

func versionAddOne(v uint32) uint32 {
	if v == MaxVersion {
		return 1
	}
	return v + 1
}

func versionDelta(a, b uint32) uint32 {
	if b >= a {
		return b - a
	}
	return MaxVersion - a + b + 1
}

// versionSubOne steps v back by one, wrapping modulo MaxVersion and
// skipping zero, matching concurrent_priority_queue.h's version_sub_one.
// Used only by counteractVersionLag to drag a lagging upper-layer head
// link one step behind the base layer's version.
func versionSubOne(v uint32) uint32 {
	if v <= 1 {
		return MaxVersion
	}
	return v - 1
}

// inRange reports whether reference lies within InRangeDelta forward of
// observed in the wraparound metric, or whether observed is the zero
// sentinel, matching concurrent_priority_queue.h's in_range(version,
// inRangeOf) one-direction check (`version_delta(version, inRangeOf) <
// In_Range_Delta`) exactly, including its strict `<`.
func inRange(observed, reference uint32) bool {
	if observed == 0 {
		return true
	}
	return versionDelta(observed, reference) < InRangeDelta
}

// exchangeResult reports how a windowed head-link exchange resolved.
type exchangeResult int

const (
	exchangeSuccess exchangeResult = iota
	// exchangeOtherLink means the link already carried exactly
	// desiredVersion (someone else completed this exchange) or no longer
	// pointed at the node this exchange expected — either way there is
	// nothing left for this call to do.
	exchangeOtherLink
	// exchangeOutOfRange means the observed version had drifted beyond
	// InRangeDelta of desiredVersion: too stale to trust, per spec.md
	// §4.3.5. The caller aborts rather than risk a false acceptance.
	exchangeOutOfRange
)

// linkWord is one slot in a node's tower: a pointer to the next node at
// that level plus a version, packed the same way asp/word.go packs
// (pointer, version, local-refs) — here without a local-ref lane, since
// tower slots are never reference-counted the way AtomicSharedPtr cells
// are; node lifetime is governed by the allocation Strategy instead.
type linkWord[K, V any] struct {
	w atomix.Uint128
}

func linkPtrToLane[K, V any](n *Node[K, V]) uint64 {
	return uint64(uintptr(unsafe.Pointer(n)))
}

func linkLaneToPtr[K, V any](lo uint64) *Node[K, V] {
	return (*Node[K, V])(unsafe.Pointer(uintptr(lo)))
}

func (l *linkWord[K, V]) loadAcquire() (n *Node[K, V], version uint32) {
	lo, hi := l.w.LoadAcquire()
	return linkLaneToPtr[K, V](lo), uint32(hi)
}

func (l *linkWord[K, V]) loadRelaxed() (n *Node[K, V], version uint32) {
	lo, hi := l.w.LoadRelaxed()
	return linkLaneToPtr[K, V](lo), uint32(hi)
}

func (l *linkWord[K, V]) storeRelease(n *Node[K, V], version uint32) {
	l.w.StoreRelease(linkPtrToLane(n), uint64(version))
}

func (l *linkWord[K, V]) compareAndSwapAcqRel(oldN *Node[K, V], oldVersion uint32, newN *Node[K, V], newVersion uint32) bool {
	return l.w.CompareAndSwapAcqRel(linkPtrToLane(oldN), uint64(oldVersion), linkPtrToLane(newN), uint64(newVersion))
}

// exchangeHeadLink performs the windowed head-link CAS retry loop spec.md
// §4.3.3/§4.3.4 reserve for upper-layer links out of the sentinel head
// node, grounded on concurrent_priority_queue.h's exchange_head_link:
// unlike an ordinary node link, a head link above the base layer is
// updated far less often than the base layer advances underneath it, so
// the desired version is accepted across a window rather than matched
// exactly. Retries the CAS until it observes expectedN has moved on,
// the desired version is already installed, the observed version has
// drifted out of range, or the CAS itself succeeds.
func (l *linkWord[K, V]) exchangeHeadLink(expectedN, desiredN *Node[K, V], desiredVersion uint32) exchangeResult {
	for {
		curN, curVersion := l.loadAcquire()
		if curN != expectedN {
			return exchangeOtherLink
		}
		if curVersion == desiredVersion {
			return exchangeOtherLink
		}
		if !inRange(curVersion, desiredVersion) {
			return exchangeOutOfRange
		}
		if l.compareAndSwapAcqRel(curN, curVersion, desiredN, desiredVersion) {
			return exchangeSuccess
		}
	}
}
