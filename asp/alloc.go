// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package asp

import (
	"fmt"
	"unsafe"
)

// Allocator is consulted by AllocateShared/AllocateSharedArray before a
// control block is built: Alloc is asked for the block's size, and an
// error it returns is propagated to the caller. The storage Alloc returns
// is not used; the control block is always allocated on the Go heap, and
// the allocator is not called again when the block is destroyed.
//
// Go has no placement-new, so the "single allocation" layout described
// for make_shared in the source collapses to ordinary struct embedding
// (controlBlock[T] already embeds its value field).
type Allocator interface {
	Alloc(size uintptr) (unsafe.Pointer, error)
}

// DefaultAllocator allocates from the Go heap.
var DefaultAllocator Allocator = goAllocator{}

type goAllocator struct{}

func (goAllocator) Alloc(size uintptr) (unsafe.Pointer, error) {
	b := make([]byte, size)
	return unsafe.Pointer(&b[0]), nil
}

// MakeShared constructs a new control block embedding v and returns an
// owning handle with one strong-count unit.
func MakeShared[T any](v T) SharedPtr[T] {
	cb := newControlBlock(v)
	cb.strong.StoreRelaxed(1)
	return SharedPtr[T]{cb: cb, localRefs: 1}
}

// MakeSharedArray constructs a control block embedding an array of n
// zero-valued T, destroyed together as one allocation.
func MakeSharedArray[T any](n int) SharedPtr[T] {
	cb := newArrayControlBlock[T](n)
	cb.strong.StoreRelaxed(1)
	return SharedPtr[T]{cb: cb, localRefs: 1}
}

// AllocateShared is MakeShared using a caller-supplied Allocator. ctor
// builds the value; if alloc.Alloc fails, ctor's result (if already
// built) is never retained — the error propagates and nothing leaks.
func AllocateShared[T any](alloc Allocator, ctor func() T) (SharedPtr[T], error) {
	if _, err := alloc.Alloc(unsafe.Sizeof(controlBlock[T]{})); err != nil {
		return SharedPtr[T]{}, fmt.Errorf("lfx/asp: allocate control block: %w", err)
	}
	cb := newControlBlock(ctor())
	cb.alloc = alloc
	cb.strong.StoreRelaxed(1)
	return SharedPtr[T]{cb: cb, localRefs: 1}, nil
}

// AllocateSharedArray is MakeSharedArray using a caller-supplied
// Allocator.
func AllocateSharedArray[T any](alloc Allocator, n int) (SharedPtr[T], error) {
	if _, err := alloc.Alloc(unsafe.Sizeof(controlBlock[T]{}) + uintptr(n)*unsafe.Sizeof(*new(T))); err != nil {
		return SharedPtr[T]{}, fmt.Errorf("lfx/asp: allocate control block: %w", err)
	}
	cb := newArrayControlBlock[T](n)
	cb.alloc = alloc
	cb.strong.StoreRelaxed(1)
	return SharedPtr[T]{cb: cb, localRefs: 1}, nil
}

// Claim takes ownership of an existing *T, deleting it (dropping the Go
// reference so the GC can collect it) when the last strong-count unit is
// released.
func Claim[T any](p *T) SharedPtr[T] {
	cb := &controlBlock[T]{itemCount: 1, ptr: p}
	cb.destroy = func(cb *controlBlock[T]) {}
	cb.strong.StoreRelaxed(1)
	return SharedPtr[T]{cb: cb, localRefs: 1}
}

// ClaimWithDeleter is Claim, but del runs (once) instead of the default
// teardown when the last strong-count unit is released.
func ClaimWithDeleter[T any](p *T, del func(*T)) SharedPtr[T] {
	cb := &controlBlock[T]{itemCount: 1, ptr: p}
	cb.destroy = func(cb *controlBlock[T]) {
		del(p)
	}
	cb.strong.StoreRelaxed(1)
	return SharedPtr[T]{cb: cb, localRefs: 1}
}

// AllocateSharedSize returns the storage size an AllocateShared[T] call
// will request from its Allocator. A capacity-planning hint for callers
// that pre-size an arena; there is no placement-new arithmetic to hide
// behind it in Go.
func AllocateSharedSize[T any]() uintptr {
	return unsafe.Sizeof(controlBlock[T]{})
}

// ClaimSize returns the storage size a Claim[T] call's control block
// occupies.
func ClaimSize[T any]() uintptr {
	return unsafe.Sizeof(controlBlock[T]{})
}

// ClaimSizeCustomDelete returns the storage size a ClaimWithDeleter[T]
// call's control block occupies, including the deleter closure pointer.
func ClaimSizeCustomDelete[T any, Del any]() uintptr {
	return unsafe.Sizeof(controlBlock[T]{}) + unsafe.Sizeof(*new(Del))
}
