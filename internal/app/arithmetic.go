package app

import (
	"fmt"
	"math/bits"

	sdkmath "cosmossdk.io/math"
)

func mulU64Checked(a, b uint64, what string) (uint64, error) {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return 0, fmt.Errorf("%s overflows: %d * %d", what, a, b)
	}
	return lo, nil
}

// feeSplit divides the pot into a basis-point house fee (rounded down) and
// the winner's payout. fee + payout == total always holds.
func feeSplit(total uint64, feeBps int64) (fee, payout uint64) {
	t := sdkmath.NewIntFromUint64(total)
	f := t.MulRaw(feeBps).QuoRaw(10000)
	fee = f.Uint64()
	payout = total - fee
	return fee, payout
}
