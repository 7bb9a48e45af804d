// Package fixpoint provides the integer fixed-point scalar and vector
// primitives used by the match engine. All positions are expressed in
// fixed-point units with an implicit scale of 100 units per logical meter;
// there is no floating point anywhere in the transition path.
package fixpoint

import (
	"math"
	"math/bits"
)

// UnitsPerMeter is the fixed-point scale factor.
const UnitsPerMeter = 100

// Vec2 is a 2-component fixed-point position vector.
type Vec2 struct {
	X int64 `json:"x"`
	Y int64 `json:"y"`
}

// Translate returns v displaced by (dx, dy) with saturating arithmetic.
// Saturation (rather than wrap) keeps a hostile oversized displacement from
// teleporting a piece across the map via overflow.
func (v Vec2) Translate(dx, dy int64) Vec2 {
	return Vec2{X: satAdd64(v.X, dx), Y: satAdd64(v.Y, dy)}
}

// DistSqExceeds reports whether x^2 + y^2 > radius^2. Squares are
// accumulated in 128 bits so the comparison is exact for the full int64
// coordinate range; overflow of the naive 64-bit square can never flip the
// boundary test.
func (v Vec2) DistSqExceeds(radius uint64) bool {
	xhi, xlo := bits.Mul64(abs64(v.X), abs64(v.X))
	yhi, ylo := bits.Mul64(abs64(v.Y), abs64(v.Y))

	lo, carry := bits.Add64(xlo, ylo, 0)
	hi := xhi + yhi + carry

	rhi, rlo := bits.Mul64(radius, radius)

	if hi != rhi {
		return hi > rhi
	}
	return lo > rlo
}

func abs64(x int64) uint64 {
	if x < 0 {
		// Safe for math.MinInt64: negation in uint64 space.
		return uint64(-(x + 1)) + 1
	}
	return uint64(x)
}

func satAdd64(a, b int64) int64 {
	sum := a + b
	if (a > 0 && b > 0 && sum < 0) || (a < 0 && b < 0 && sum >= 0) {
		if a > 0 {
			return math.MaxInt64
		}
		return math.MinInt64
	}
	return sum
}
