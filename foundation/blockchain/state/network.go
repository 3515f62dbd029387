package state

import (
	"errors"
	"fmt"

	"github.com/blacksilk/node/foundation/blockchain/database"
	"github.com/blacksilk/node/foundation/blockchain/p2p"
)

// maxBlocksPerMessage bounds the blocks returned for a single GetBlocks
// request. The answer is cut shorter when the blocks would not fit in one
// message. The requesting node asks again from its new tip until it gets
// an empty answer.
const maxBlocksPerMessage = 500

// PeerHosts implements p2p.Handler. It returns the peer book to announce
// in a PeerList.
func (s *State) PeerHosts() []string {
	return s.knownPeers.Hosts(s.host)
}

// HandleMessage implements p2p.Handler. It is called from the read loop of
// every ready connection.
func (s *State) HandleMessage(c *p2p.Conn, msg p2p.Message) error {
	peerID := c.Remote().NodeID

	switch msg.Type {
	case p2p.TypeVersion:
		return s.netVersion(c)

	case p2p.TypePing, p2p.TypePong:
		return nil

	case p2p.TypeBlock:
		var block database.Block
		if err := msg.Decode(&block); err != nil {
			return err
		}
		return s.netBlock(c, block, peerID)

	case p2p.TypeBlocks:
		var blocks []database.Block
		if err := msg.Decode(&blocks); err != nil {
			return err
		}
		if len(blocks) == 0 {
			return nil
		}
		if _, err := s.ProcessBlocks(blocks, peerID); err != nil {
			return err
		}
		return c.SendPayload(p2p.TypeGetBlocks, p2p.GetBlocks{FromHeight: s.db.Height() + 1})

	case p2p.TypeTransaction:
		var tx database.Tx
		if err := msg.Decode(&tx); err != nil {
			return err
		}
		added, err := s.UpsertMempool(tx)
		if err != nil {
			return err
		}
		if added {
			s.Worker.SignalShareTx(tx)
		}
		return nil

	case p2p.TypeMempool:
		var txs []database.Tx
		if err := msg.Decode(&txs); err != nil {
			return err
		}
		var added int
		for _, tx := range txs {
			ok, err := s.UpsertMempool(tx)
			if err != nil {
				s.evHandler("state: HandleMessage: mempool: %s: tx[%s]: ERROR: %s", c.Addr(), tx.ID(), err)
				continue
			}
			if ok {
				added++
			}
		}
		s.evHandler("state: HandleMessage: mempool: %s: received[%d]: added[%d]", c.Addr(), len(txs), added)
		return nil

	case p2p.TypePeerList:
		var hosts []string
		if err := msg.Decode(&hosts); err != nil {
			return err
		}
		s.AddKnownPeers(hosts)
		return nil

	case p2p.TypeGetBlocks:
		var req p2p.GetBlocks
		if err := msg.Decode(&req); err != nil {
			return err
		}
		blocks := s.db.QueryBlocksFrom(req.FromHeight)
		if len(blocks) > maxBlocksPerMessage {
			blocks = blocks[:maxBlocksPerMessage]
		}
		blocks, err := p2p.Batch(blocks)
		if err != nil {
			return err
		}
		return c.SendPayload(p2p.TypeBlocks, blocks)

	case p2p.TypeGetMempool:
		txs, err := p2p.Batch(s.mempool.Copy())
		if err != nil {
			return err
		}
		return c.SendPayload(p2p.TypeMempool, txs)
	}

	return fmt.Errorf("unknown message type %q", msg.Type)
}

// =============================================================================

// netVersion records the listen address of a peer that completed the
// handshake and starts syncing when it is ahead.
func (s *State) netVersion(c *p2p.Conn) error {
	remote := c.Remote()

	if remote.ListenAddr != "" {
		s.AddKnownPeers([]string{remote.ListenAddr})
	}

	height := s.db.Height()
	if remote.Height <= height {
		return nil
	}

	s.evHandler("state: HandleMessage: version: %s: peer height[%d] local height[%d]: requesting blocks", c.Addr(), remote.Height, height)

	return c.SendPayload(p2p.TypeGetBlocks, p2p.GetBlocks{FromHeight: height + 1})
}

// netBlock processes a block announced by a peer. A block ahead of the
// next height means this node fell behind, so it asks for the gap.
func (s *State) netBlock(c *p2p.Conn, block database.Block, peerID string) error {
	err := s.ProcessProposedBlock(block, peerID)
	switch {
	case err == nil, errors.Is(err, ErrKnownBlock):
		return nil

	case errors.Is(err, database.ErrChainForked):
		height := s.db.Height()
		if block.Header.Height > height+1 {
			return c.SendPayload(p2p.TypeGetBlocks, p2p.GetBlocks{FromHeight: height + 1})
		}
		return err
	}

	return err
}
