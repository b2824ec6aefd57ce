// Package level implements the leveling curve used by the upstream leaderboard.
//
// The curve is the well-known mee6 polynomial: the total experience required to
// *complete* level l (i.e. to reach level l+1 from zero) is
//
//	xp(l) = 5/6 · l · (2l² + 27l + 91)
//
// which is the closed form of summing 5k² + 50k + 100 over k = 0..l-1.
// The product l·(2l²+27l+91) is always divisible by 6, so integer arithmetic
// below is exact — no floating point drift between components that must agree
// (reconciler, handlers, card renderer all derive levels through this package).
package level

import "math"

// maxLevel is the largest level whose curve value still fits in uint64:
// at maxLevel+1 the product 5·l·(2l²+27l+91) exceeds 2⁶⁴−1 and would wrap,
// breaking monotonicity. Experience values are upstream-supplied u64s, so the
// curve must stay well-defined across the whole range, not just plausible xp.
const maxLevel = 1226417

// ForLevel returns the cumulative experience required to reach the given level.
// ForLevel(0) == 0, ForLevel(1) == 100, ForLevel(5) == 1150.
//
// Levels past maxLevel saturate to MaxUint64 — no representable experience
// value reaches them, and saturating keeps the function monotone.
func ForLevel(l uint64) uint64 {
	if l > maxLevel {
		return math.MaxUint64
	}
	return 5 * l * (2*l*l + 27*l + 91) / 6
}

// FromXP returns the level for the given cumulative experience: the greatest l
// with ForLevel(l) <= xp, capped at maxLevel. Monotone and deterministic — the
// notification logic relies on both. The cap also bounds the loop: without it,
// xp == MaxUint64 would chase the saturated curve forever.
func FromXP(xp uint64) uint64 {
	var l uint64
	for l < maxLevel && ForLevel(l+1) <= xp {
		l++
	}
	return l
}

// Progress returns how far into the current level the given experience is, as a
// fraction in [0, 1). Used by the profile page and the rank card's progress bar.
func Progress(xp uint64) float64 {
	l := FromXP(xp)
	floor := ForLevel(l)
	ceil := ForLevel(l + 1)
	return float64(xp-floor) / float64(ceil-floor)
}
