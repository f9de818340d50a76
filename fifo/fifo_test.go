// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fifo_test

import (
	"sync"
	"sync/atomic"
	"testing"

	"code.hybscloud.com/lfx/fifo"
	"code.hybscloud.com/lfx/internal/racetag"
)

// TestSingleProducerFIFOOrder is FIFO-S1 from spec.md §8: a single
// producer's pushes are observed by a single consumer in the order they
// were pushed, including across a ring-growth boundary.
func TestSingleProducerFIFOOrder(t *testing.T) {
	q := fifo.New[int](fifo.WithInitialCapacity[int](4))
	p := q.NewProducer()
	c := q.NewConsumer()

	const n = 500
	for i := 0; i < n; i++ {
		p.Push(i)
	}

	for i := 0; i < n; i++ {
		v, ok := c.TryPop()
		if !ok {
			t.Fatalf("pop %d: unexpectedly empty", i)
		}
		if v != i {
			t.Fatalf("pop %d: got %d, want %d", i, v, i)
		}
	}
	if _, ok := c.TryPop(); ok {
		t.Fatal("queue should be empty after draining every push")
	}
}

// TestMultiProducerSingleConsumerOrder checks that with several
// producers pushing concurrently, a single draining consumer still
// observes each producer's own items in the order that producer pushed
// them (FIFO-S2 from spec.md §8). Completion order across racing
// consumer goroutines is not itself ordered by this queue — only a
// single consumer's observations can be checked against push order.
func TestMultiProducerSingleConsumerOrder(t *testing.T) {
	const producers = 8
	const perProducer = 2000

	q := fifo.New[[2]int]() // [producerID, sequence]

	var wg sync.WaitGroup
	for pid := 0; pid < producers; pid++ {
		wg.Add(1)
		go func(pid int) {
			defer wg.Done()
			p := q.NewProducer()
			for seq := 0; seq < perProducer; seq++ {
				p.Push([2]int{pid, seq})
			}
		}(pid)
	}
	wg.Wait()

	c := q.NewConsumer()
	lastSeq := make([]int, producers)
	for i := range lastSeq {
		lastSeq[i] = -1
	}
	count := 0
	for count < producers*perProducer {
		v, ok := c.TryPop()
		if !ok {
			continue
		}
		count++
		if v[1] <= lastSeq[v[0]] {
			t.Fatalf("producer %d: out-of-order sequence %d after %d", v[0], v[1], lastSeq[v[0]])
		}
		lastSeq[v[0]] = v[1]
	}
	for i, last := range lastSeq {
		if last != perProducer-1 {
			t.Fatalf("producer %d: last observed sequence %d, want %d", i, last, perProducer-1)
		}
	}
}

// TestMultiProducerMultiConsumerConservation is property 3/4 from
// spec.md §8: with P producers each pushing N items and C consumers
// draining concurrently, every pushed item is observed exactly once —
// no loss, no duplication.
func TestMultiProducerMultiConsumerConservation(t *testing.T) {
	if racetag.Enabled {
		t.Skip("skip under -race: acquire/release cell-state orderings the race detector cannot observe")
	}

	const producers = 8
	const perProducer = 2000
	const consumers = 4

	q := fifo.New[[2]int]() // [producerID, sequence]

	var wg sync.WaitGroup
	for pid := 0; pid < producers; pid++ {
		wg.Add(1)
		go func(pid int) {
			defer wg.Done()
			p := q.NewProducer()
			for seq := 0; seq < perProducer; seq++ {
				p.Push([2]int{pid, seq})
			}
		}(pid)
	}

	wg.Wait() // all items are pushed and visible before any consumer starts

	const total = producers * perProducer
	results := make(chan [2]int, total)
	var received atomic.Int64
	stop := make(chan struct{})
	var stopOnce sync.Once

	var consumeWG sync.WaitGroup
	for i := 0; i < consumers; i++ {
		consumeWG.Add(1)
		go func() {
			defer consumeWG.Done()
			c := q.NewConsumer()
			for {
				if v, ok := c.TryPop(); ok {
					results <- v
					if received.Add(1) == total {
						stopOnce.Do(func() { close(stop) })
					}
					continue
				}
				select {
				case <-stop:
					return
				default:
				}
			}
		}()
	}
	consumeWG.Wait()
	close(results)

	seen := make(map[[2]int]int)
	count := 0
	for v := range results {
		count++
		seen[v]++
	}
	if count != total {
		t.Fatalf("observed %d items, want %d", count, total)
	}
	for pid := 0; pid < producers; pid++ {
		for seq := 0; seq < perProducer; seq++ {
			if n := seen[[2]int{pid, seq}]; n != 1 {
				t.Fatalf("item (producer %d, seq %d) observed %d times, want 1", pid, seq, n)
			}
		}
	}
}

// TestRecoverablePopMarksFailedCell is FIFO-S3 from spec.md §8: a clone
// function that panics returns ErrRecovered instead of crashing the
// consumer, and the consumer can continue past it.
func TestRecoverablePopMarksFailedCell(t *testing.T) {
	var shouldPanic = true
	clone := func(src *int) int {
		if shouldPanic {
			shouldPanic = false
			panic("boom")
		}
		return *src
	}

	q := fifo.New[int](fifo.WithRecoverablePop(clone))
	p := q.NewProducer()
	c := q.NewConsumer()

	p.Push(1)
	p.Push(2)

	_, err := c.TryPopRecover()
	if err == nil {
		t.Fatal("expected ErrRecovered from the panicking clone")
	}

	v, err := c.TryPopRecover()
	if err != nil {
		t.Fatalf("second pop: unexpected error %v", err)
	}
	if v != 2 {
		t.Fatalf("second pop: got %d, want 2", v)
	}
}

// TestTryPopRecoverWithoutOption checks the configuration guard fires
// when WithRecoverablePop was never supplied.
func TestTryPopRecoverWithoutOption(t *testing.T) {
	q := fifo.New[int]()
	c := q.NewConsumer()
	if _, err := c.TryPopRecover(); err == nil {
		t.Fatal("expected an error when no CloneFunc was configured")
	}
}

// TestUnsafeClearDrainsQueue checks UnsafeClear empties every producer's
// chain.
func TestUnsafeClearDrainsQueue(t *testing.T) {
	q := fifo.New[int](fifo.WithInitialCapacity[int](4))
	p := q.NewProducer()
	for i := 0; i < 50; i++ {
		p.Push(i)
	}
	q.UnsafeClear()

	c := q.NewConsumer()
	if _, ok := c.TryPop(); ok {
		t.Fatal("queue should be empty after UnsafeClear")
	}
}
