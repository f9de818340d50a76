// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package racetag exposes a build-tag constant shared by asp, fifo, and
// cpq tests so concurrent lock-free scenarios can skip under the race
// detector without duplicating the flag per package.
package racetag
