// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fifo

import "errors"

// errNoCloneConfigured is returned by TryPopRecover when the queue was
// not constructed with WithRecoverablePop.
var errNoCloneConfigured = errors.New("fifo: TryPopRecover requires WithRecoverablePop")

// TryPopRecover is TryPop, but the value is extracted from its cell
// through the queue's configured CloneFunc instead of a plain Go
// assignment. If that clone panics — e.g. a user-defined Clone method
// with a bug — the panic is recovered, the cell is marked Failed, and
// ErrRecovered is returned instead of crashing the consumer's goroutine.
// Mirrors a C++ move-assignment throwing mid-dequeue (spec.md §4.2.6);
// Go's analogue of "exception during extraction" is a recovered panic.
func (c *Consumer[T]) TryPopRecover() (v T, err error) {
	if c.q.cfg.clone == nil {
		return v, errNoCloneConfigured
	}
	maxHops := c.q.producerSlotCount()*2 + 4
	if maxHops == 0 {
		return v, ErrWouldBlock
	}
	for hop := 0; hop < maxHops; hop++ {
		if c.cur.Valid() && c.popCount < ConsumerForceRelocationPopCount {
			v, err = c.cur.Get().tryPopRecover(c.q.cfg.clone)
			if err == nil {
				c.popCount++
				return v, nil
			}
			if !errors.Is(err, ErrWouldBlock) {
				return v, err
			}
		}
		if !c.relocate() {
			return v, ErrWouldBlock
		}
		c.popCount = 0
	}
	return v, ErrWouldBlock
}
