// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package cpq implements a lock-free concurrent priority queue over a
// version-tagged skip-list, grounded on
// original_source/.../concurrent_priority_queue.h. Push inserts a
// key/value pair in sorted order; TryPop always removes the current
// minimum key under the configured comparator.
//
// Three allocation strategies govern how *Node[K, V] storage is obtained
// and reclaimed:
//
//   - Pool preallocates a bounded slab and recycles popped nodes back onto
//     a free-index ring once an epoch guard clears them of any in-flight
//     reader.
//   - Scratch preallocates a bounded slab and bump-allocates from it,
//     never recycling individual nodes; UnsafeResetScratchPool rewinds
//     the whole slab at once.
//   - External performs no allocation: callers build *Node[K, V] values
//     themselves (NewNode) and push/pop them with PushNode/TryPopNode.
//
// Example:
//
//	q := cpq.New[int, string](cpq.WithLess[int, string](func(a, b int) bool { return a < b }))
//	q.Push(3, "c")
//	q.Push(1, "a")
//	q.Push(2, "b")
//	k, v, ok := q.TryPop() // k==1, v=="a", ok==true
package cpq
