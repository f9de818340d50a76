// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package asp

// Version constants. Version is an 11-bit field (2^11-1 = 2047 states);
// zero is reserved to mean "never stored" and compares in-range of every
// other version.
const (
	MaxVersion   = (1 << 11) - 1
	InRangeDelta = MaxVersion / 2
)

// versionAddOne advances v by one, wrapping modulo MaxVersion and
// skipping zero.
func versionAddOne(v uint16) uint16 {
	v++
	if v > MaxVersion {
		v = 1
	}
	return v
}

// versionDelta returns the forward wraparound distance from a to b.
func versionDelta(a, b uint16) uint16 {
	if b >= a {
		return b - a
	}
	return (MaxVersion - a) + b + 1
}

// inRange reports whether reference lies within InRangeDelta forward of
// observed in the wraparound metric, or whether observed is the zero
// sentinel. Directional, not symmetric: swapping the arguments is not
// equivalent.
func inRange(observed, reference uint16) bool {
	if observed == 0 {
		return true
	}
	return versionDelta(observed, reference) < InRangeDelta
}
