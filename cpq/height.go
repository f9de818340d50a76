// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package cpq

import "code.hybscloud.com/lfx/internal/xorshift"

// MaxTowerHeight bounds how tall any single node's link tower can grow.
// A geometric(p=1/4) height distribution essentially never needs more
// than this many levels even for lists with billions of entries.
const MaxTowerHeight = 24

// randomHeight draws a tower height in [1, MaxTowerHeight] from a
// geometric distribution with p=1/4: each additional level above 1 has a
// 1-in-4 chance of being included. Backed by the package's own lock-free
// xorshift64 source rather than math/rand, so drawing a height is never
// itself a source of lock contention on a shared *rand.Rand.
func randomHeight(rng *xorshift.Source) uint8 {
	height := uint8(1)
	for height < MaxTowerHeight && rng.Uint64()&3 == 0 {
		height++
	}
	return height
}
