// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fifo

import "code.hybscloud.com/lfx/asp"

const (
	// InitialBufferCapacity is the capacity of a producer's first ring.
	InitialBufferCapacity = 8
	// MaxBufferCapacity bounds how large a single ring may grow; beyond
	// this, successive successors all allocate at this capacity.
	MaxBufferCapacity = 1 << 59

	// producerSlotGrowthNumerator/Denominator is the ring growth ratio
	// (7/5 = 1.4), the Open Question from spec.md §9 resolved in favor
	// of the originally empirical constant.
	producerSlotGrowthNumerator   = 7
	producerSlotGrowthDenominator = 5
)

func nextBufferCapacity(current uint64) uint64 {
	if current >= MaxBufferCapacity {
		return MaxBufferCapacity
	}
	grown := current * producerSlotGrowthNumerator / producerSlotGrowthDenominator
	if grown <= current {
		grown = current + 1
	}
	return roundToPow2(grown)
}

func roundToPow2(n uint64) uint64 {
	if n <= 1 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return n + 1
}

// growSuccessor allocates buf's successor at the next capacity tier,
// installs it as buf.next, and returns the producer's own owning handle
// to it. Only the owning Producer ever calls this, so no CAS race is
// possible on the link itself — Store is sufficient.
func growSuccessor[T any](buf *producerBuffer[T]) asp.SharedPtr[producerBuffer[T]] {
	successor := newProducerBuffer[T](nextBufferCapacity(buf.capacity))
	shared := asp.MakeShared(successor)
	buf.next.Store(shared.Clone())
	return shared
}
