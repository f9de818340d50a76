// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package asp

import (
	"unsafe"

	"code.hybscloud.com/spin"
)

// AtomicSharedPtr is a lock-free cell holding a shared pointer. Load,
// Store and Exchange are CAS-retry loops (Load additionally runs the
// local-reference refill CAS described in the package doc comment), so
// they are lock-free, not wait-free.
type AtomicSharedPtr[T any] struct {
	word packedWord
}

// Load returns a new owning handle to the cell's current value. The
// caller must Release it.
func (p *AtomicSharedPtr[T]) Load() SharedPtr[T] {
	sw := spin.Wait{}
	for {
		ptr, version, localRefs := p.word.loadAcquire()
		if ptr == nil {
			return SharedPtr[T]{}
		}
		if localRefs == 0 {
			p.refill(ptr, version)
			sw.Once()
			continue
		}
		if p.word.compareAndSwapAcqRel(ptr, version, localRefs, ptr, version, localRefs-1) {
			if localRefs-1 < LocalRefFillBoundary {
				p.refill(ptr, version)
			}
			return SharedPtr[T]{cb: (*controlBlock[T])(ptr), localRefs: 1}
		}
		sw.Once()
	}
}

// refill tops a lane that has dropped below LocalRefFillBoundary back up
// to DefaultLocalRefs, adding the difference to the control block's
// strong count first so the count is never under-counted if the CAS
// loses the race.
func (p *AtomicSharedPtr[T]) refill(ptr unsafe.Pointer, version uint16) {
	cb := (*controlBlock[T])(ptr)
	sw := spin.Wait{}
	for {
		curPtr, curVersion, curLocalRefs := p.word.loadAcquire()
		if curPtr != ptr || curVersion != version || curLocalRefs >= DefaultLocalRefs {
			return
		}
		batch := int64(DefaultLocalRefs - curLocalRefs)
		cb.addStrong(batch)
		if p.word.compareAndSwapAcqRel(curPtr, curVersion, curLocalRefs, curPtr, curVersion, DefaultLocalRefs) {
			return
		}
		cb.release(batch)
		sw.Once()
	}
}

// Store installs v into the cell, releasing whatever was there before.
// v is consumed; the caller must not use it afterward.
func (p *AtomicSharedPtr[T]) Store(v SharedPtr[T]) {
	old := p.exchange(v)
	old.Release()
}

// Exchange installs v into the cell and returns the prior value as an
// owning handle the caller must Release. v is consumed.
func (p *AtomicSharedPtr[T]) Exchange(v SharedPtr[T]) SharedPtr[T] {
	return p.exchange(v)
}

func (p *AtomicSharedPtr[T]) exchange(v SharedPtr[T]) SharedPtr[T] {
	newPtr, newLocalRefs := p.stageDesired(v)
	sw := spin.Wait{}
	for {
		oldPtr, oldVersion, oldLocalRefs := p.word.loadAcquire()
		newVersion := versionAddOne(oldVersion)
		if p.word.compareAndSwapAcqRel(oldPtr, oldVersion, oldLocalRefs, newPtr, newVersion, newLocalRefs) {
			if oldPtr == nil {
				return SharedPtr[T]{}
			}
			return SharedPtr[T]{cb: (*controlBlock[T])(oldPtr), localRefs: oldLocalRefs}
		}
		sw.Once()
	}
}

// stageDesired tops v's ownership up to a full DefaultLocalRefs lane (or
// returns the empty word) before it is spliced into the cell, so the
// word always publishes a full lane on success.
func (p *AtomicSharedPtr[T]) stageDesired(v SharedPtr[T]) (ptr unsafe.Pointer, localRefs uint8) {
	if v.cb == nil {
		return nil, 0
	}
	if v.localRefs < DefaultLocalRefs {
		v.cb.addStrong(int64(DefaultLocalRefs - v.localRefs))
	} else if v.localRefs > DefaultLocalRefs {
		v.cb.release(int64(v.localRefs - DefaultLocalRefs))
	}
	return unsafe.Pointer(v.cb), DefaultLocalRefs
}

// unstageDesired undoes stageDesired's strong-count adjustment when a CAS
// attempt loses the race and must retry with the original value intact.
func (p *AtomicSharedPtr[T]) unstageDesired(v SharedPtr[T]) {
	if v.cb == nil {
		return
	}
	if v.localRefs < DefaultLocalRefs {
		v.cb.release(int64(DefaultLocalRefs - v.localRefs))
	} else if v.localRefs > DefaultLocalRefs {
		v.cb.addStrong(int64(v.localRefs - DefaultLocalRefs))
	}
}

// CompareAndSwapStrong atomically replaces the cell's value with desired
// if the cell still holds expected's exact control block and version. On
// success, desired is consumed and the prior value is released. On
// failure, expected is refreshed to the cell's current snapshot and
// desired's staged ownership is rolled back.
func (p *AtomicSharedPtr[T]) CompareAndSwapStrong(expected *RawPtr[T], desired SharedPtr[T]) bool {
	return p.cas(expected, desired)
}

// CompareAndSwapWeak is an alias for CompareAndSwapStrong. atomix's CAS
// is never an LL/SC pair under the hood here, so there is no spurious-
// failure mode for "weak" to trade away; the distinction is kept only
// for API parity with callers porting CAS-retry-loop code.
func (p *AtomicSharedPtr[T]) CompareAndSwapWeak(expected *RawPtr[T], desired SharedPtr[T]) bool {
	return p.cas(expected, desired)
}

func (p *AtomicSharedPtr[T]) cas(expected *RawPtr[T], desired SharedPtr[T]) bool {
	curPtr, curVersion, curLocalRefs := p.word.loadAcquire()
	expPtr := unsafe.Pointer(expected.cb)

	if curPtr != expPtr || curVersion != expected.version {
		*expected = RawPtr[T]{cb: (*controlBlock[T])(curPtr), version: curVersion}
		return false
	}

	newPtr, newLocalRefs := p.stageDesired(desired)
	newVersion := versionAddOne(curVersion)

	if p.word.compareAndSwapAcqRel(curPtr, curVersion, curLocalRefs, newPtr, newVersion, newLocalRefs) {
		if curPtr != nil {
			(*controlBlock[T])(curPtr).release(int64(curLocalRefs))
		}
		return true
	}

	p.unstageDesired(desired)
	curPtr, curVersion, _ = p.word.loadAcquire()
	*expected = RawPtr[T]{cb: (*controlBlock[T])(curPtr), version: curVersion}
	return false
}

// Version returns the cell's current version.
func (p *AtomicSharedPtr[T]) Version() uint16 {
	_, version, _ := p.word.loadAcquire()
	return version
}

// UnsafeSetVersion overwrites the cell's version without touching its
// pointer or local-ref lane. Not safe under concurrent access; intended
// for single-threaded setup code only.
func (p *AtomicSharedPtr[T]) UnsafeSetVersion(v uint16) {
	ptr, _, localRefs := p.word.loadRelaxed()
	p.word.storeRelaxed(ptr, v, localRefs)
}

// RawPtr returns a non-owning snapshot of the cell's current value.
func (p *AtomicSharedPtr[T]) RawPtr() RawPtr[T] {
	ptr, version, _ := p.word.loadAcquire()
	return RawPtr[T]{cb: (*controlBlock[T])(ptr), version: version}
}
