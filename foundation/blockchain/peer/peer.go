// Package peer maintains the address book of peers the node has learned
// about, whether or not it is currently connected to them.
package peer

import (
	"net"
	"sort"
	"sync"
)

// Peer represents information about a Node in the network.
type Peer struct {
	Host string `json:"host"`
}

// New contructs a new info value.
func New(host string) Peer {
	return Peer{
		Host: host,
	}
}

// Match validates if the specified host matches this node.
func (p Peer) Match(host string) bool {
	return p.Host == host
}

// Valid reports whether the host is a dialable host:port pair.
func (p Peer) Valid() bool {
	host, port, err := net.SplitHostPort(p.Host)
	return err == nil && host != "" && port != ""
}

// =============================================================================

// Status represents what a node reports about itself to operators.
type Status struct {
	Network     string `json:"network"`
	NodeID      string `json:"node_id"`
	Height      uint64 `json:"height"`
	TipHash     string `json:"tip_hash"`
	KnownPeers  []Peer `json:"known_peers"`
	Connected   int    `json:"connected"`
	MempoolSize int    `json:"mempool_size"`
}

// =============================================================================

// PeerSet represents the data representation to maintain a set of known peers.
type PeerSet struct {
	mu  sync.RWMutex
	set map[Peer]struct{}
}

// NewPeerSet constructs a new info set to manage node peer information.
func NewPeerSet() *PeerSet {
	return &PeerSet{
		set: make(map[Peer]struct{}),
	}
}

// Add adds a new node to the set. Hosts that can't be dialed are ignored.
func (ps *PeerSet) Add(peer Peer) bool {
	if !peer.Valid() {
		return false
	}

	ps.mu.Lock()
	defer ps.mu.Unlock()

	_, exists := ps.set[peer]
	if !exists {
		ps.set[peer] = struct{}{}
		return true
	}

	return false
}

// AddHosts records the hosts a peer list carried, skipping this node's own
// host. It returns how many were new.
func (ps *PeerSet) AddHosts(hosts []string, self string) int {
	var added int
	for _, host := range hosts {
		if host == self {
			continue
		}
		if ps.Add(New(host)) {
			added++
		}
	}
	return added
}

// Remove removes a node from the set.
func (ps *PeerSet) Remove(peer Peer) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	delete(ps.set, peer)
}

// Len returns the number of known peers.
func (ps *PeerSet) Len() int {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	return len(ps.set)
}

// Copy returns a list of the known peers sorted by host, leaving out the
// specified host.
func (ps *PeerSet) Copy(host string) []Peer {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	var peers []Peer
	for peer := range ps.set {
		if !peer.Match(host) {
			peers = append(peers, peer)
		}
	}

	sort.Slice(peers, func(i, j int) bool {
		return peers[i].Host < peers[j].Host
	})

	return peers
}

// Hosts returns the hosts of the known peers, leaving out the specified host.
func (ps *PeerSet) Hosts(host string) []string {
	peers := ps.Copy(host)

	hosts := make([]string, len(peers))
	for i, peer := range peers {
		hosts[i] = peer.Host
	}
	return hosts
}
