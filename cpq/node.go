// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package cpq

import "code.hybscloud.com/atomix"

// Node is one skip-list entry. Grounded on
// original_source/.../concurrent_priority_queue.h's node_view_set/tower
// shape: a key/value pair plus a tower of forward links, one per level the
// node participates in. Key and Value are exported so an External-strategy
// caller can build one directly and hand it to Queue.PushNode without going
// through an allocator at all.
//
// deleted is this package's stand-in for the source's pointer-tag "flag"
// bit: the source steals a bit out of the bottom-level link's pointer
// value to announce a node is being removed before it is physically
// unlinked. Stealing bits out of a real Go pointer is the kind of trick
// asp/word.go deliberately avoids for GC safety; a dedicated field costs
// one word per node and keeps every pointer in this package a real,
// GC-visible pointer.
type Node[K, V any] struct {
	Key   K
	Value V

	height int
	next   []linkWord[K, V]

	deleted atomix.Bool
}

// NewNode constructs a bare Node for use with the External strategy.
// Queue.PushNode fills in its tower on push; callers never size next
// themselves.
func NewNode[K, V any](key K, value V) *Node[K, V] {
	return &Node[K, V]{Key: key, Value: value}
}

func newNode[K, V any](key K, value V, height int) *Node[K, V] {
	return &Node[K, V]{
		Key:    key,
		Value:  value,
		height: height,
		next:   make([]linkWord[K, V], height),
	}
}
