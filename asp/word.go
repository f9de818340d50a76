// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package asp

import (
	"unsafe"

	"code.hybscloud.com/atomix"
)

// DefaultLocalRefs is the local-reference lane's initial fill on store.
// LocalRefFillBoundary is the threshold below which load refills the lane.
const (
	DefaultLocalRefs     = 255
	LocalRefFillBoundary = 112
)

// packedWord is the only place that manipulates the (pointer, version,
// local-refs) layout. Everywhere else deals in *controlBlock[T], uint16
// versions and uint8 local-ref counts.
//
// This plays the role the original's 64-bit bit-stolen pointer word
// plays, but spends a full atomix.Uint128 on it instead of stealing
// alignment bits out of a real address: the low lane carries the control
// block pointer, the high lane carries version<<8|localRefs. This is the
// same "two-lane packed entry" idiom code.hybscloud.com/lfq's _128 ring
// variants use for [lo=cycle|hi=value] slots, applied here to
// [lo=ptr|hi=version|localRefs] instead.
type packedWord struct {
	w atomix.Uint128
}

func packHi(version uint16, localRefs uint8) uint64 {
	return uint64(version)<<8 | uint64(localRefs)
}

func unpackHi(hi uint64) (version uint16, localRefs uint8) {
	return uint16(hi >> 8), uint8(hi)
}

func ptrToLane(p unsafe.Pointer) uint64 {
	return uint64(uintptr(p))
}

func laneToPtr(lo uint64) unsafe.Pointer {
	return unsafe.Pointer(uintptr(lo))
}

func (w *packedWord) loadAcquire() (ptr unsafe.Pointer, version uint16, localRefs uint8) {
	lo, hi := w.w.LoadAcquire()
	ptr = laneToPtr(lo)
	version, localRefs = unpackHi(hi)
	return
}

func (w *packedWord) loadRelaxed() (ptr unsafe.Pointer, version uint16, localRefs uint8) {
	lo, hi := w.w.LoadRelaxed()
	ptr = laneToPtr(lo)
	version, localRefs = unpackHi(hi)
	return
}

func (w *packedWord) storeRelease(ptr unsafe.Pointer, version uint16, localRefs uint8) {
	w.w.StoreRelease(ptrToLane(ptr), packHi(version, localRefs))
}

func (w *packedWord) storeRelaxed(ptr unsafe.Pointer, version uint16, localRefs uint8) {
	w.w.StoreRelaxed(ptrToLane(ptr), packHi(version, localRefs))
}

func (w *packedWord) compareAndSwapAcqRel(oldPtr unsafe.Pointer, oldVersion uint16, oldLocalRefs uint8, newPtr unsafe.Pointer, newVersion uint16, newLocalRefs uint8) bool {
	return w.w.CompareAndSwapAcqRel(ptrToLane(oldPtr), packHi(oldVersion, oldLocalRefs), ptrToLane(newPtr), packHi(newVersion, newLocalRefs))
}

func (w *packedWord) compareAndSwapRelaxed(oldPtr unsafe.Pointer, oldVersion uint16, oldLocalRefs uint8, newPtr unsafe.Pointer, newVersion uint16, newLocalRefs uint8) bool {
	return w.w.CompareAndSwapRelaxed(ptrToLane(oldPtr), packHi(oldVersion, oldLocalRefs), ptrToLane(newPtr), packHi(newVersion, newLocalRefs))
}
