// Package genesis maintains the network profiles the node can run against.
package genesis

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/blacksilk/node/foundation/blockchain/emission"
)

// Set of network names the node understands.
const (
	NetworkMainnet = "mainnet"
	NetworkTestnet = "testnet"
)

// Coin is the number of atomic units in one BLK.
const Coin = 1_000_000

// Genesis represents the parameters fixed by a network: identity, ports,
// the genesis block timestamp, emission and difficulty rules.
type Genesis struct {
	Network            string `json:"network"`
	Magic              uint32 `json:"magic"`                // Identifies the network in the peer handshake.
	P2PPort            uint16 `json:"p2p_port"`             // Default peer protocol port.
	HTTPPort           uint16 `json:"http_port"`            // Default public API port.
	TorPort            uint16 `json:"tor_port"`             // Default privacy transport port.
	GenesisTimestamp   uint64 `json:"genesis_timestamp"`    // Unix seconds of block 0.
	TargetBlockTime    uint64 `json:"target_block_time"`    // Seconds between blocks.
	AdjustmentInterval uint64 `json:"adjustment_interval"`  // Blocks between difficulty adjustments.
	BaseDifficulty     uint64 `json:"base_difficulty"`      // Difficulty before the first adjustment.
	FixedDifficulty    uint64 `json:"fixed_difficulty"`     // When not zero, difficulty never changes.
	ClampPercent       uint64 `json:"clamp_percent"`        // Max change of a single adjustment.
	TransPerBlock      uint16 `json:"trans_per_block"`      // The maximum number of transactions in a template.

	emission.Schedule
}

// Mainnet returns the production network profile.
func Mainnet() Genesis {
	return Genesis{
		Network:            NetworkMainnet,
		Magic:              0xB1A5C0DE,
		P2PPort:            1777,
		HTTPPort:           9777,
		TorPort:            9778,
		GenesisTimestamp:   1_716_150_000,
		TargetBlockTime:    120,
		AdjustmentInterval: 720,
		BaseDifficulty:     4096,
		ClampPercent:       25,
		TransPerBlock:      500,
		Schedule:           schedule(),
	}
}

// Testnet returns the test network profile. Difficulty is pinned.
func Testnet() Genesis {
	return Genesis{
		Network:            NetworkTestnet,
		Magic:              0x1D670,
		P2PPort:            1776,
		HTTPPort:           9333,
		TorPort:            9334,
		GenesisTimestamp:   1_716_150_000,
		TargetBlockTime:    120,
		AdjustmentInterval: 720,
		BaseDifficulty:     1,
		FixedDifficulty:    1,
		ClampPercent:       25,
		TransPerBlock:      500,
		Schedule:           schedule(),
	}
}

// ForNetwork returns the profile for the named network.
func ForNetwork(name string) (Genesis, error) {
	switch name {
	case NetworkMainnet:
		return Mainnet(), nil
	case NetworkTestnet:
		return Testnet(), nil
	}

	return Genesis{}, fmt.Errorf("unknown network %q", name)
}

// Load opens the JSON file at path and applies its values over the
// specified profile. Fields missing from the file keep the profile values.
func Load(path string, base Genesis) (Genesis, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Genesis{}, err
	}

	gen := base
	if err := json.Unmarshal(content, &gen); err != nil {
		return Genesis{}, fmt.Errorf("decoding %s: %w", path, err)
	}

	if err := gen.Validate(); err != nil {
		return Genesis{}, err
	}

	return gen, nil
}

// Validate checks the profile can drive a chain.
func (g Genesis) Validate() error {
	switch {
	case g.Network == "":
		return fmt.Errorf("network name is required")
	case g.HalvingInterval == 0:
		return fmt.Errorf("halving interval must be positive")
	case g.TargetBlockTime == 0:
		return fmt.Errorf("target block time must be positive")
	case g.FixedDifficulty == 0 && (g.AdjustmentInterval == 0 || g.BaseDifficulty == 0):
		return fmt.Errorf("adjustable difficulty needs an interval and a base difficulty")
	case g.ClampPercent == 0 || g.ClampPercent >= 100:
		return fmt.Errorf("clamp percent must be between 1 and 99")
	}

	return nil
}

// Date returns the genesis timestamp as a time value.
func (g Genesis) Date() time.Time {
	return time.Unix(int64(g.GenesisTimestamp), 0).UTC()
}

// BlockReward returns the coinbase reward for the specified height. It is
// the same schedule the chain uses.
func (g Genesis) BlockReward(height uint64) uint64 {
	return g.Schedule.BlockReward(height)
}

// IsTestnet reports whether difficulty is pinned for this network.
func (g Genesis) IsTestnet() bool {
	return g.FixedDifficulty != 0
}

// =============================================================================

func schedule() emission.Schedule {
	return emission.Schedule{
		GenesisReward:   86 * Coin,
		HalvingInterval: 125_000,
		SupplyCap:       21_000_000 * Coin,
	}
}
