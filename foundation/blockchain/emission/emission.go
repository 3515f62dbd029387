// Package emission implements the coinbase reward schedule for the chain.
package emission

// maxEras is the number of halvings after which any reward has shifted to 0.
const maxEras = 64

// Schedule describes how new coins enter circulation.
type Schedule struct {
	GenesisReward   uint64 `json:"genesis_reward"`
	HalvingInterval uint64 `json:"halving_interval"`
	SupplyCap       uint64 `json:"supply_cap"`
}

// BlockReward returns the coinbase reward for a block at the specified height.
// The reward halves once per halving interval and floors at zero. A reward is
// clipped so the cumulative emission never crosses the supply cap.
func (s Schedule) BlockReward(height uint64) uint64 {
	if s.HalvingInterval == 0 {
		return 0
	}

	// No era pays anything this far out.
	if height == ^uint64(0) {
		return 0
	}

	return s.Minted(height+1) - s.Minted(height)
}

// Minted returns the total amount emitted by all blocks below the
// specified height, capped at the supply cap.
func (s Schedule) Minted(height uint64) uint64 {
	if s.HalvingInterval == 0 {
		return 0
	}

	var total uint64
	era := height / s.HalvingInterval

	for e := uint64(0); e < era && e < maxEras; e++ {
		total = satAdd(total, satMul(s.HalvingInterval, s.GenesisReward>>e))
		if total >= s.SupplyCap {
			return s.SupplyCap
		}
	}

	if era < maxEras {
		into := height - era*s.HalvingInterval
		total = satAdd(total, satMul(into, s.GenesisReward>>era))
	}

	if total > s.SupplyCap {
		return s.SupplyCap
	}

	return total
}

// ZeroHeight returns the first height at which the reward becomes zero and
// stays zero for every later height.
func (s Schedule) ZeroHeight() uint64 {
	if s.HalvingInterval == 0 || s.GenesisReward == 0 {
		return 0
	}

	// Eras stop paying once the shifted reward reaches zero.
	var era uint64
	for era < maxEras && s.GenesisReward>>era != 0 {
		era++
	}
	end := era * s.HalvingInterval

	// The cap may be reached before the eras run out.
	if s.Minted(end) < s.SupplyCap {
		return end
	}

	lo, hi := uint64(0), end
	for lo < hi {
		mid := lo + (hi-lo)/2
		if s.Minted(mid) >= s.SupplyCap {
			hi = mid
			continue
		}
		lo = mid + 1
	}

	return lo
}

// =============================================================================

func satAdd(a, b uint64) uint64 {
	if c := a + b; c >= a {
		return c
	}
	return ^uint64(0)
}

func satMul(a, b uint64) uint64 {
	if a == 0 || b == 0 {
		return 0
	}
	if c := a * b; c/b == a {
		return c
	}
	return ^uint64(0)
}
