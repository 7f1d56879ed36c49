package voting

import (
	"math/big"

	"github.com/holiman/uint256"
)

// VoteCmp selects the comparison used by CompareVoteCount.
type VoteCmp uint8

const (
	Greater VoteCmp = iota
	Geq
)

// CompareVoteCount compares votes with totalPower * percent exactly.
//
// Both sides are scaled to integers before comparing: votes by 10^18 and
// totalPower by the percentage's 18 decimal atomics. The products are
// formed in 256 bits, which always suffices for power bounded by MaxPower;
// anything wider is compared with big.Int. Nothing is rounded, so for any
// p the pass check against p and the fail check against 1-p can never
// both hold for the same tally.
func CompareVoteCount(votes Uint, cmp VoteCmp, totalPower Uint, percent PercentageThreshold) bool {
	a, err := percent.atomics()
	if err != nil {
		// Unvalidated percentages never reach a comparison.
		panic(err)
	}
	c := cmpProducts(votes, percentPrecision, totalPower, a)
	if cmp == Greater {
		return c > 0
	}
	return c >= 0
}

// cmpProducts returns the sign of x*xs - y*ys.
func cmpProducts(x Uint, xs *uint256.Int, y Uint, ys *uint256.Int) int {
	var l, r uint256.Int
	_, lo := l.MulOverflow(&x.v, xs)
	_, ro := r.MulOverflow(&y.v, ys)
	if !lo && !ro {
		return l.Cmp(&r)
	}
	lb := new(big.Int).Mul(x.v.ToBig(), xs.ToBig())
	rb := new(big.Int).Mul(y.v.ToBig(), ys.ToBig())
	return lb.Cmp(rb)
}

// complement returns 1 - percent, expressed in atomics.
func complement(percent PercentageThreshold) *uint256.Int {
	a, err := percent.atomics()
	if err != nil {
		panic(err)
	}
	if a.Gt(percentPrecision) {
		return new(uint256.Int)
	}
	return new(uint256.Int).Sub(percentPrecision, a)
}

// DoesVoteCountPass reports whether weight passes percent of options.
// An empty denominator (e.g. an all-abstain tally) never passes.
func DoesVoteCountPass(weight, options Uint, percent PercentageThreshold) bool {
	if options.IsZero() {
		return false
	}
	if percent.majority {
		// weight * 2 > options
		return cmpProducts(weight, uint256.NewInt(2), options, uint256.NewInt(1)) > 0
	}
	return CompareVoteCount(weight, Geq, options, percent)
}

// DoesVoteCountFail reports whether no votes make percent of options
// unreachable. An empty denominator always fails.
func DoesVoteCountFail(no, options Uint, percent PercentageThreshold) bool {
	if options.IsZero() {
		return true
	}
	if percent.majority {
		// no * 2 >= options
		return cmpProducts(no, uint256.NewInt(2), options, uint256.NewInt(1)) >= 0
	}
	return cmpProducts(no, percentPrecision, options, complement(percent)) > 0
}
