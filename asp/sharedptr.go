// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package asp

// SharedPtr is an owning handle: it holds a control block and the count
// of strong-count units this particular handle currently owns
// (localRefs). Call Release when done; forgetting to do so leaks the
// units it owns (the control block is never destroyed, just like a
// forgotten std::shared_ptr).
type SharedPtr[T any] struct {
	cb        *controlBlock[T]
	localRefs uint8
}

// Valid reports whether the handle manages an object.
func (s SharedPtr[T]) Valid() bool {
	return s.cb != nil
}

// Get returns the managed object, or nil for an empty handle.
func (s SharedPtr[T]) Get() *T {
	if s.cb == nil {
		return nil
	}
	return s.cb.get()
}

// Slice returns the managed array for handles created with
// MakeSharedArray/AllocateSharedArray, nil otherwise.
func (s SharedPtr[T]) Slice() []T {
	if s.cb == nil {
		return nil
	}
	return s.cb.arr
}

// ItemCount returns 1 for scalar handles and n for array handles.
func (s SharedPtr[T]) ItemCount() int {
	if s.cb == nil {
		return 0
	}
	return s.cb.itemCount
}

// UseCountLocal returns how many strong-count units this specific handle
// currently owns (not the control block's total strong count, which is
// never cheap to observe without racing every other owner).
func (s SharedPtr[T]) UseCountLocal() uint8 {
	return s.localRefs
}

// Clone returns a new owning handle to the same object, adding one unit
// to the control block's strong count.
func (s SharedPtr[T]) Clone() SharedPtr[T] {
	if s.cb == nil {
		return SharedPtr[T]{}
	}
	s.cb.addStrong(1)
	return SharedPtr[T]{cb: s.cb, localRefs: 1}
}

// Release returns this handle's owned units to the control block,
// running the destructor if it was the last owner. s is left empty.
func (s *SharedPtr[T]) Release() {
	if s.cb == nil {
		return
	}
	s.cb.release(int64(s.localRefs))
	s.cb = nil
	s.localRefs = 0
}

// RawPtr is a non-owning snapshot of an AtomicSharedPtr's word: a
// control-block address and the version it was observed at. It never
// participates in reference counting and must not outlive the
// possibility that its control block has already been destroyed —
// dereferencing is only safe immediately after a successful CAS or Load
// against the same cell.
type RawPtr[T any] struct {
	cb      *controlBlock[T]
	version uint16
}

// Valid reports whether the snapshot observed a non-empty cell.
func (r RawPtr[T]) Valid() bool {
	return r.cb != nil
}

// Version returns the version the snapshot observed.
func (r RawPtr[T]) Version() uint16 {
	return r.version
}
