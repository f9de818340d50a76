// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fifo

import (
	"errors"

	"code.hybscloud.com/iox"
)

// ErrWouldBlock is returned by Consumer.TryPopRecover when no item is
// available right now. Re-exported from iox for ecosystem consistency
// with the teacher's bounded queues.
var ErrWouldBlock = iox.ErrWouldBlock

// IsWouldBlock reports whether err indicates an operation would block.
// Delegates to [iox.IsWouldBlock] for wrapped error support.
func IsWouldBlock(err error) bool {
	return iox.IsWouldBlock(err)
}

// ErrRecovered is returned by Consumer.TryPopRecover when the clone
// function supplied to WithRecoverablePop panicked while copying the
// popped value out of its cell; the cell's contents are assumed
// corrupted and the value is not returned.
var ErrRecovered = errors.New("fifo: recovered from clone panic")
