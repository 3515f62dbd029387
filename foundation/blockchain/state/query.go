package state

import (
	"github.com/blacksilk/node/foundation/blockchain/contract"
	"github.com/blacksilk/node/foundation/blockchain/database"
	"github.com/blacksilk/node/foundation/blockchain/p2p"
	"github.com/blacksilk/node/foundation/blockchain/peer"
	"github.com/blacksilk/node/foundation/blockchain/randomx"
)

// QueryLatest represents to query the latest block in the chain.
const QueryLatest = ^uint64(0) >> 1

// Info is the public summary of the node.
type Info struct {
	Version    string `json:"version"`
	Network    string `json:"network"`
	Height     uint64 `json:"height"`
	Peers      int    `json:"peers"`
	Difficulty uint64 `json:"difficulty"`
}

// =============================================================================

// Height returns the height of the chain tip.
func (s *State) Height() uint64 {
	return s.db.Height()
}

// Info returns the public summary of the node.
func (s *State) Info() Info {
	return Info{
		Version:    s.nodeVersion,
		Network:    s.genesis.Network,
		Height:     s.db.Height(),
		Peers:      len(s.Worker.Peers()),
		Difficulty: s.db.CalculateNextDifficulty(),
	}
}

// Status returns what the node reports about itself to operators.
func (s *State) Status() peer.Status {
	return peer.Status{
		Network:     s.genesis.Network,
		NodeID:      s.nodeID,
		Height:      s.db.Height(),
		TipHash:     s.db.Tip().Hash().String(),
		KnownPeers:  s.RetrieveKnownPeers(),
		Connected:   len(s.Worker.Peers()),
		MempoolSize: s.mempool.Count(),
	}
}

// ConnectedPeers returns the live peer connections.
func (s *State) ConnectedPeers() []p2p.PeerInfo {
	return s.Worker.Peers()
}

// QueryMempoolLength returns the current length of the mempool.
func (s *State) QueryMempoolLength() int {
	return s.mempool.Count()
}

// QueryBlocksFrom returns every block at or above the specified height.
func (s *State) QueryBlocksFrom(height uint64) []database.Block {
	return s.db.QueryBlocksFrom(height)
}

// QueryBlocksByNumber returns the set of blocks based on block numbers.
func (s *State) QueryBlocksByNumber(from uint64, to uint64) []database.Block {
	latest := s.db.Height()
	if from == QueryLatest {
		from = latest
		to = from
	}
	if to == QueryLatest || to > latest {
		to = latest
	}

	var out []database.Block
	for i := from; i <= to; i++ {
		block, err := s.db.QueryBlock(i)
		if err != nil {
			s.evHandler("state: QueryBlocksByNumber: ERROR: %s", err)
			return nil
		}
		out = append(out, block)
	}

	return out
}

// PoWStats returns the counters of the proof of work verifier.
func (s *State) PoWStats() (randomx.Stats, bool) {
	if s.pow == nil {
		return randomx.Stats{}, false
	}
	return s.pow.Stats(), true
}

// PoWPeerScore returns the proof of work score of a peer.
func (s *State) PoWPeerScore(peerID string) (randomx.PeerScore, bool) {
	if s.pow == nil {
		return randomx.PeerScore{}, false
	}
	return s.pow.PeerScore(peerID)
}

// QueryContracts returns the deployed contracts.
func (s *State) QueryContracts() []contract.Contract {
	if s.contracts == nil {
		return nil
	}
	return s.contracts.Contracts()
}
