package worker

import "github.com/blacksilk/node/foundation/blockchain/p2p"

// shareOperations handles sharing new blocks and transactions.
func (w *Worker) shareOperations() {
	w.evHandler("worker: shareOperations: G started")
	defer w.evHandler("worker: shareOperations: G completed")

	for {
		select {
		case msg := <-w.sharing:
			if !w.isShutdown() {
				w.runShareOperation(msg)
			}
		case <-w.shut:
			w.evHandler("worker: shareOperations: received shut signal")
			return
		}
	}
}

// runShareOperation sends the message to every connected peer.
func (w *Worker) runShareOperation(msg p2p.Message) {
	n := w.server.Broadcast(msg)
	w.evHandler("worker: runShareOperation: %s: sent to peers[%d]", msg.Type, n)
}
