// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package fifo implements an unbounded multi-producer multi-consumer
// FIFO queue built from per-producer ring buffers.
//
// Each producer writes only to its own ring (obtained once via
// Queue.NewProducer and reused for that goroutine's lifetime — Go has
// no thread-local storage, so the binding is an explicit handle rather
// than an implicit per-thread slot). When a producer's ring fills it
// allocates a larger successor ring and links it in; the producer slot
// array holds one atomic shared pointer per producer, each the current
// head of that producer's ring chain.
//
// Consumers (obtained via Queue.NewConsumer) round-robin across the
// producer slots. A consumer that finds its current producer's ring
// fully drained and capped with a successor relocates: it walks the
// successor chain to the first ring with unread data and, opportunistically,
// swaps the shared slot forward so other consumers skip the now-dead
// prefix too.
//
//	q := fifo.New[int]()
//	p := q.NewProducer()
//	p.Push(1)
//	c := q.NewConsumer()
//	v, ok := c.TryPop()
package fifo
