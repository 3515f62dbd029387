package state

import (
	"github.com/blacksilk/node/foundation/blockchain/database"
	"github.com/blacksilk/node/foundation/blockchain/genesis"
	"github.com/blacksilk/node/foundation/blockchain/peer"
)

// RetrieveHost returns a copy of host information.
func (s *State) RetrieveHost() string {
	return s.host
}

// RetrieveNodeID returns the identity the node signs its handshakes with.
func (s *State) RetrieveNodeID() string {
	return s.nodeID
}

// RetrieveGenesis returns a copy of the genesis information.
func (s *State) RetrieveGenesis() genesis.Genesis {
	return s.genesis
}

// RetrieveLatestBlock returns a copy the current latest block.
func (s *State) RetrieveLatestBlock() database.Block {
	return s.db.Tip()
}

// RetrieveMempool returns a copy of the mempool in arrival order.
func (s *State) RetrieveMempool() []database.Tx {
	return s.mempool.Copy()
}

// RetrieveKnownPeers retrieves a copy of the known peer list.
func (s *State) RetrieveKnownPeers() []peer.Peer {
	return s.knownPeers.Copy(s.host)
}

// AddKnownPeers records the hosts in the peer book and returns how many
// were new.
func (s *State) AddKnownPeers(hosts []string) int {
	n := s.knownPeers.AddHosts(hosts, s.host)
	if n > 0 {
		s.evHandler("state: AddKnownPeers: added[%d]: known[%d]", n, s.knownPeers.Len())
	}
	return n
}

// RemoveKnownPeer removes the peer from the peer book.
func (s *State) RemoveKnownPeer(pr peer.Peer) {
	s.knownPeers.Remove(pr)
}
