package database

import (
	"math"
	"math/bits"
)

// nextDifficulty applies the retarget rule to the current tip. A fixed
// difficulty network ignores history. Otherwise the base difficulty holds
// for the first interval, each interval boundary retargets from the span of
// the last interval, and every other height keeps the tip's computed
// difficulty. The difficulty a block declares never feeds back into the
// rule, so a block accepted with a lower declared value does not lower the
// work asked of the blocks after it.
func (db *Database) nextDifficulty() uint64 {
	return db.difficultyAfter(db.tip(), db.difficulty)
}

// difficultyAfter returns the difficulty of the block following tip, where
// current is the difficulty the rule computed for tip itself.
func (db *Database) difficultyAfter(tip Block, current uint64) uint64 {
	gen := db.genesis
	if gen.FixedDifficulty != 0 {
		return gen.FixedDifficulty
	}

	next := tip.Header.Height + 1
	n := gen.AdjustmentInterval

	switch {
	case next < n:
		return gen.BaseDifficulty
	case next%n != 0:
		return current
	}

	first, err := db.store.Block(next - n)
	if err != nil {
		return current
	}

	var actual uint64 = 1
	if tip.Header.Timestamp > first.Header.Timestamp {
		actual = tip.Header.Timestamp - first.Header.Timestamp
	}

	return AdjustDifficulty(current, n*gen.TargetBlockTime, actual, gen.ClampPercent)
}

// AdjustDifficulty computes current * expected / actual and clamps the
// result to within clampPercent of current. The result is never below 1.
func AdjustDifficulty(current, expected, actual, clampPercent uint64) uint64 {
	if current == 0 {
		current = 1
	}
	if actual == 0 {
		actual = 1
	}

	next := mulDiv(current, expected, actual)

	delta := mulDiv(current, clampPercent, 100)
	lower := current - delta
	upper := current + delta
	if upper < current {
		upper = math.MaxUint64
	}

	switch {
	case next < lower:
		next = lower
	case next > upper:
		next = upper
	}

	if next < 1 {
		next = 1
	}

	return next
}

// mulDiv returns a*b/c with a 128 bit intermediate, saturating at the
// maximum uint64 value.
func mulDiv(a, b, c uint64) uint64 {
	hi, lo := bits.Mul64(a, b)
	if hi >= c {
		return math.MaxUint64
	}

	q, _ := bits.Div64(hi, lo, c)
	return q
}
