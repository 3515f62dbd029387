package randomx

import (
	"fmt"
	"math"

	"golang.org/x/crypto/blake2b"
)

// Limits of the structural heuristics. An honest hash passes each of them
// with overwhelming probability.
const (
	maxTailZeros         = 6
	minHashEntropy       = 3.0
	maxPatternMatches    = 8
	patternLength        = 16
	minScratchpadEntropy = 7.0
	maxScratchpadDrift   = 0.5
)

// entropy returns the Shannon entropy of the byte distribution in bits.
func entropy(data []byte) float64 {
	if len(data) == 0 {
		return 0
	}

	var counts [256]int
	for _, b := range data {
		counts[b]++
	}

	n := float64(len(data))
	var e float64
	for _, c := range counts {
		if c == 0 {
			continue
		}
		p := float64(c) / n
		e -= p * math.Log2(p)
	}

	return e
}

// checkHeuristics returns the reason the computation looks shortcut, or an
// empty string when it passes.
func checkHeuristics(hash [32]byte, input []byte, r computation) string {
	var zeros int
	for _, b := range hash[8:] {
		if b == 0 {
			zeros++
		}
	}
	if zeros > maxTailZeros {
		return fmt.Sprintf("hash has too many zero bytes (%d)", zeros)
	}

	if e := entropy(hash[:]); e < minHashEntropy {
		return fmt.Sprintf("hash entropy too low (%.2f bits)", e)
	}

	if m := patternMatches(hash, input); m > maxPatternMatches {
		return fmt.Sprintf("hash follows the header access pattern (%d/%d)", m, patternLength)
	}

	if r.entropyAfter < minScratchpadEntropy {
		return fmt.Sprintf("scratchpad entropy too low (%.2f bits)", r.entropyAfter)
	}

	if d := math.Abs(r.entropyAfter - r.entropyBefore); d > maxScratchpadDrift {
		return fmt.Sprintf("scratchpad entropy changed by %.2f bits", d)
	}

	return ""
}

// patternMatches compares the memory access pattern the header predicts
// with the one the hash implies.
func patternMatches(hash [32]byte, input []byte) int {
	expected := blake2b.Sum256(input)

	var matches int
	for i := 0; i < patternLength; i++ {
		if expected[i]%patternLength == hash[16+i]%patternLength {
			matches++
		}
	}
	return matches
}
