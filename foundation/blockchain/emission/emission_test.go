package emission_test

import (
	"testing"

	"github.com/blacksilk/node/foundation/blockchain/emission"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func mainSchedule() emission.Schedule {
	return emission.Schedule{
		GenesisReward:   86_000_000,
		HalvingInterval: 125_000,
		SupplyCap:       21_000_000_000_000,
	}
}

func TestHalving(t *testing.T) {
	s := mainSchedule()

	require.Equal(t, s.GenesisReward, s.BlockReward(0))
	require.Equal(t, s.GenesisReward, s.BlockReward(s.HalvingInterval-1))
	require.Equal(t, s.GenesisReward/2, s.BlockReward(s.HalvingInterval))
	require.Equal(t, s.GenesisReward/4, s.BlockReward(2*s.HalvingInterval))
}

func TestSupplyCap(t *testing.T) {
	s := mainSchedule()

	zero := s.ZeroHeight()
	require.NotZero(t, zero)
	require.Zero(t, s.BlockReward(zero))
	require.NotZero(t, s.BlockReward(zero-1))

	// Walk every era boundary and sum the rewards era by era.
	var total uint64
	for h := uint64(0); h < zero; h += s.HalvingInterval {
		end := h + s.HalvingInterval
		if end > zero {
			end = zero
		}
		total += s.Minted(end) - s.Minted(h)
	}

	require.LessOrEqual(t, total, s.SupplyCap)
	require.Equal(t, s.Minted(zero), total)
}

func TestCapClipsReward(t *testing.T) {
	s := emission.Schedule{
		GenesisReward:   100,
		HalvingInterval: 10,
		SupplyCap:       1_050,
	}

	// The first era mints 1000, the second pays 50 per block until the cap.
	require.Equal(t, uint64(50), s.BlockReward(10))
	require.Equal(t, uint64(0), s.BlockReward(11))
	require.Equal(t, uint64(11), s.ZeroHeight())
	require.Equal(t, s.SupplyCap, s.Minted(1_000))
}

func TestZeroInterval(t *testing.T) {
	var s emission.Schedule
	require.Zero(t, s.BlockReward(10))
	require.Zero(t, s.Minted(10))
	require.Zero(t, s.ZeroHeight())
}

func TestRewardProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := emission.Schedule{
			GenesisReward:   rapid.Uint64Range(1, 1<<40).Draw(t, "reward"),
			HalvingInterval: rapid.Uint64Range(1, 1<<20).Draw(t, "interval"),
			SupplyCap:       rapid.Uint64Range(1, 1<<62).Draw(t, "cap"),
		}
		h := rapid.Uint64Range(0, 1<<30).Draw(t, "height")

		if s.BlockReward(h+1) > s.BlockReward(h) {
			t.Fatalf("reward increased at height %d", h)
		}
		if s.Minted(h) > s.SupplyCap {
			t.Fatalf("minted %d exceeds cap %d", s.Minted(h), s.SupplyCap)
		}
		if s.BlockReward(s.ZeroHeight()) != 0 {
			t.Fatalf("reward at zero height %d is not zero", s.ZeroHeight())
		}
	})
}
