// Package worker implements peer updates and block and transaction sharing
// for the blockchain.
package worker

import (
	"errors"
	"sync"
	"time"

	"github.com/lightningnetwork/lnd/clock"

	"github.com/blacksilk/node/foundation/blockchain/database"
	"github.com/blacksilk/node/foundation/blockchain/p2p"
	"github.com/blacksilk/node/foundation/blockchain/state"
)

// peerUpdateInterval represents the interval of finding new peer nodes
// and requesting missing blocks and transactions.
const peerUpdateInterval = time.Minute

// maxShareRequests represents the max number of pending block and tx share
// requests that can be outstanding before share requests are dropped. To
// keep this simple, a buffered channel of this arbitrary number is being
// used. If the channel does become full, requests for new blocks and
// transactions to be shared will not be accepted.
const maxShareRequests = 100

// =============================================================================

// Config represents the collaborators and settings of the worker.
type Config struct {
	Server       *p2p.Server
	Clock        clock.Clock
	PeerInterval time.Duration
	DialTimeout  time.Duration
	EvHandler    state.EventHandler
}

// Worker manages the peer workflows for the blockchain.
type Worker struct {
	state     *state.State
	server    *p2p.Server
	clock     clock.Clock
	interval  time.Duration
	dialTO    time.Duration
	wg        sync.WaitGroup
	shut      chan struct{}
	sharing   chan p2p.Message
	evHandler state.EventHandler
}

// Run creates a worker, registers the worker with the state package, and
// starts up all the background processes.
func Run(st *state.State, cfg Config) (*Worker, error) {
	if cfg.Server == nil {
		return nil, errors.New("worker: a peer server is required")
	}

	ev := cfg.EvHandler
	if ev == nil {
		ev = func(v string, args ...any) {}
	}

	clk := cfg.Clock
	if clk == nil {
		clk = clock.NewDefaultClock()
	}

	interval := cfg.PeerInterval
	if interval <= 0 {
		interval = peerUpdateInterval
	}

	dialTO := cfg.DialTimeout
	if dialTO <= 0 {
		dialTO = 30 * time.Second
	}

	w := Worker{
		state:     st,
		server:    cfg.Server,
		clock:     clk,
		interval:  interval,
		dialTO:    dialTO,
		shut:      make(chan struct{}),
		sharing:   make(chan p2p.Message, maxShareRequests),
		evHandler: ev,
	}

	// Register this worker with the state package.
	st.Worker = &w

	// Load the set of operations we need to run.
	operations := []func(){
		w.peerOperations,
		w.shareOperations,
	}

	// Set waitgroup to match the number of G's we need for the set
	// of operations we have.
	g := len(operations)
	w.wg.Add(g)

	// We don't want to return until we know all the G's are up and running.
	hasStarted := make(chan bool)

	// Start all the operational G's.
	for _, op := range operations {
		go func(op func()) {
			defer w.wg.Done()
			hasStarted <- true
			op()
		}(op)
	}

	// Wait for the G's to report they are running.
	for i := 0; i < g; i++ {
		<-hasStarted
	}

	return &w, nil
}

// =============================================================================
// These methods implement the state.Worker interface.

// Shutdown terminates the goroutines performing work and closes every peer
// connection.
func (w *Worker) Shutdown() {
	w.evHandler("worker: shutdown: started")
	defer w.evHandler("worker: shutdown: completed")

	w.evHandler("worker: shutdown: terminate goroutines")
	close(w.shut)
	w.wg.Wait()

	w.evHandler("worker: shutdown: close peer connections")
	w.server.Shutdown()
}

// SignalShareBlock queues a block to be broadcast to the connected peers.
func (w *Worker) SignalShareBlock(block database.Block) {
	msg, err := p2p.NewMessage(p2p.TypeBlock, block)
	if err != nil {
		w.evHandler("worker: SignalShareBlock: ERROR: %s", err)
		return
	}
	w.signalShare(msg)
}

// SignalShareTx queues a transaction to be broadcast to the connected peers.
func (w *Worker) SignalShareTx(tx database.Tx) {
	msg, err := p2p.NewMessage(p2p.TypeTransaction, tx)
	if err != nil {
		w.evHandler("worker: SignalShareTx: ERROR: %s", err)
		return
	}
	w.signalShare(msg)
}

// Peers returns the live peer connections.
func (w *Worker) Peers() []p2p.PeerInfo {
	return w.server.Peers()
}

// =============================================================================

// signalShare queues the message unless maxShareRequests messages are
// already pending.
func (w *Worker) signalShare(msg p2p.Message) {
	select {
	case w.sharing <- msg:
		w.evHandler("worker: signalShare: share %s signaled", msg.Type)
	default:
		w.evHandler("worker: signalShare: queue full, %s won't be shared.", msg.Type)
	}
}

// isShutdown is used to test if a shutdown has been signaled.
func (w *Worker) isShutdown() bool {
	select {
	case <-w.shut:
		return true
	default:
		return false
	}
}
