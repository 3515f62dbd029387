package worker

import (
	"context"
	"errors"

	"github.com/blacksilk/node/foundation/blockchain/p2p"
)

// peerOperations handles finding new peers and keeping this node in sync
// with them. The first pass runs immediately.
func (w *Worker) peerOperations() {
	w.evHandler("worker: peerOperations: G started")
	defer w.evHandler("worker: peerOperations: G completed")

	w.runPeersOperation()

	for {
		select {
		case <-w.clock.TickAfter(w.interval):
			if !w.isShutdown() {
				w.runPeersOperation()
			}
		case <-w.shut:
			w.evHandler("worker: peerOperations: received shut signal")
			return
		}
	}
}

// runPeersOperation dials the known peers this node is not connected to
// and asks every connected peer for what this node may be missing.
func (w *Worker) runPeersOperation() {
	w.evHandler("worker: runPeersOperation: started")
	defer w.evHandler("worker: runPeersOperation: completed")

	for _, pr := range w.state.RetrieveKnownPeers() {
		if w.isShutdown() {
			return
		}

		if w.server.Connected(pr.Host) {
			continue
		}

		if err := w.connect(pr.Host); err != nil {
			switch {
			case errors.Is(err, p2p.ErrMaxPeers):
				w.evHandler("worker: runPeersOperation: connect: %s: %s", pr.Host, err)
				return

			case errors.Is(err, p2p.ErrAlreadyConnected):

			default:
				w.evHandler("worker: runPeersOperation: connect: %s: ERROR: %s", pr.Host, err)
				w.state.RemoveKnownPeer(pr)
			}
		}
	}

	w.requestSync()
}

// connect dials the peer, giving up when the node shuts down.
func (w *Worker) connect(host string) error {
	ctx, cancel := context.WithTimeout(context.Background(), w.dialTO)
	defer cancel()

	go func() {
		select {
		case <-w.shut:
			cancel()
		case <-ctx.Done():
		}
	}()

	_, err := w.server.Connect(ctx, host)
	return err
}

// requestSync asks every connected peer for the blocks above the local
// tip and for its mempool, and shares the local peer book.
func (w *Worker) requestSync() {
	from := w.state.Height() + 1

	msgs := []struct {
		typ     string
		payload any
	}{
		{p2p.TypeGetBlocks, p2p.GetBlocks{FromHeight: from}},
		{p2p.TypeGetMempool, nil},
		{p2p.TypePeerList, w.state.PeerHosts()},
	}

	for _, m := range msgs {
		msg, err := p2p.NewMessage(m.typ, m.payload)
		if err != nil {
			w.evHandler("worker: requestSync: %s: ERROR: %s", m.typ, err)
			continue
		}

		n := w.server.Broadcast(msg)
		w.evHandler("worker: requestSync: %s: sent to peers[%d]", m.typ, n)
	}
}
