// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fifo

// CloneFunc copies the value at src out of its cell. Used by
// TryPopRecover instead of a plain assignment so a panicking copy
// (e.g. a user type with a buggy custom Clone) can be recovered instead
// of corrupting the consumer's goroutine.
type CloneFunc[T any] func(src *T) T

// Option configures a Queue at construction time. Grounded on the
// teacher's Builder/functional-option shape (options.go), generalized
// from a single bounded-queue selector into one seam per Queue concern.
type Option[T any] func(*config[T])

type config[T any] struct {
	initialCapacity uint64
	clone           CloneFunc[T]
}

func defaultConfig[T any]() config[T] {
	return config[T]{initialCapacity: InitialBufferCapacity}
}

// WithInitialCapacity sets the first ring's capacity for every producer
// registered on the queue (rounded up to a power of two).
func WithInitialCapacity[T any](n int) Option[T] {
	return func(c *config[T]) {
		if n > 0 {
			c.initialCapacity = roundToPow2(uint64(n))
		}
	}
}

// WithRecoverablePop enables Consumer.TryPopRecover, using clone to copy
// values out of cells so a panic during the copy can be turned into
// ErrRecovered instead of crashing the consumer's goroutine.
func WithRecoverablePop[T any](clone CloneFunc[T]) Option[T] {
	return func(c *config[T]) {
		c.clone = clone
	}
}
