// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package cpq

// DefaultCapacity is the number of nodes a Pool or Scratch strategy
// preallocates when no WithCapacity option is given.
const DefaultCapacity = 512

// Option configures a Queue at construction time. Grounded on the
// teacher's own Builder/options.go fluent-option shape, generalized to a
// generic functional-option slice the way fifo.Option already is.
type Option[K, V any] func(*config[K, V])

type config[K, V any] struct {
	strategy  Strategy
	capacity  int
	towerHint int
	less      func(a, b K) bool
}

func defaultConfig[K, V any]() config[K, V] {
	return config[K, V]{
		strategy:  Pool,
		capacity:  DefaultCapacity,
		towerHint: 4,
	}
}

// WithStrategy selects the node allocation Strategy. Defaults to Pool.
func WithStrategy[K, V any](s Strategy) Option[K, V] {
	return func(c *config[K, V]) { c.strategy = s }
}

// WithCapacity sets the slab size for Pool and Scratch strategies.
// Ignored by External.
func WithCapacity[K, V any](n int) Option[K, V] {
	return func(c *config[K, V]) {
		if n > 0 {
			c.capacity = n
		}
	}
}

// WithTowerHint sets the initial per-node tower capacity a Pool or
// Scratch slab preallocates, to avoid a reallocation for most nodes
// (spec.md's geometric(p=1/4) height distribution rarely exceeds 4-5
// levels in practice).
func WithTowerHint[K, V any](n int) Option[K, V] {
	return func(c *config[K, V]) {
		if n > 0 {
			c.towerHint = n
		}
	}
}

// WithLess supplies the ordering comparator: Queue pops keys in
// ascending order under less. K is unconstrained (any), not cmp.Ordered,
// so there is no natural order to fall back on: without WithLess, New
// uses a comparator under which every key compares equal (see New).
func WithLess[K, V any](less func(a, b K) bool) Option[K, V] {
	return func(c *config[K, V]) { c.less = less }
}
