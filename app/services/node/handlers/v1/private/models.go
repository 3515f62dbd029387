package private

import (
	"github.com/blacksilk/node/foundation/blockchain/p2p"
	"github.com/blacksilk/node/foundation/blockchain/peer"
)

type connectedPeer struct {
	p2p.PeerInfo
	Name string `json:"name"`
}

type peersResponse struct {
	Connected []connectedPeer `json:"connected"`
	Known     []peer.Peer     `json:"known"`
}
