// Package state is the core API for the blockchain and implements all the
// business rules and processing.
package state

import (
	"errors"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/lightningnetwork/lnd/clock"

	"github.com/blacksilk/node/foundation/blockchain/contract"
	"github.com/blacksilk/node/foundation/blockchain/database"
	"github.com/blacksilk/node/foundation/blockchain/genesis"
	"github.com/blacksilk/node/foundation/blockchain/mempool"
	"github.com/blacksilk/node/foundation/blockchain/metrics"
	"github.com/blacksilk/node/foundation/blockchain/p2p"
	"github.com/blacksilk/node/foundation/blockchain/peer"
	"github.com/blacksilk/node/foundation/blockchain/randomx"
	"github.com/blacksilk/node/foundation/blockchain/validator"
)

// defaultTemplateCache is the number of outstanding block templates
// remembered for mining submissions.
const defaultTemplateCache = 64

// =============================================================================

// EventHandler defines a function that is called when events
// occur in the processing of persisting blocks.
type EventHandler func(v string, args ...any)

// Worker interface represents the behavior required to be implemented by any
// package providing support for peer updates and block and transaction
// sharing.
type Worker interface {
	Shutdown()
	SignalShareBlock(block database.Block)
	SignalShareTx(tx database.Tx)
	Peers() []p2p.PeerInfo
}

// =============================================================================

// Config represents the configuration required to start
// the blockchain node.
type Config struct {
	Genesis       genesis.Genesis
	Host          string
	NodeID        string
	NodeVersion   string
	Storage       database.ChainStore
	ForkChoice    database.ForkChoice
	Mempool       mempool.Config
	KnownPeers    *peer.PeerSet
	PoW           *randomx.Verifier
	Contracts     *contract.Registry
	Metrics       *metrics.Metrics
	Clock         clock.Clock
	TemplateCache int
	EvHandler     EventHandler
}

// State manages the blockchain database.
type State struct {
	host        string
	nodeID      string
	nodeVersion string
	evHandler   EventHandler
	clock       clock.Clock
	mu          sync.Mutex

	genesis    genesis.Genesis
	knownPeers *peer.PeerSet
	db         *database.Database
	mempool    *mempool.Mempool
	pow        *randomx.Verifier
	validator  *validator.Validator
	contracts  *contract.Registry
	metrics    *metrics.Metrics
	templates  *lru.Cache[string, database.Block]

	Worker Worker
}

// New constructs a new blockchain for data management.
func New(cfg Config) (*State, error) {

	// Build a safe event handler function for use.
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	if cfg.Storage == nil {
		return nil, errors.New("state: a chain store is required")
	}

	if err := cfg.Genesis.Validate(); err != nil {
		return nil, err
	}

	// Access the database for the blockchain, seeding the genesis block
	// when the store is empty.
	db, err := database.New(cfg.Genesis, cfg.Storage, cfg.ForkChoice, ev)
	if err != nil {
		return nil, err
	}

	// Construct a mempool with the specified selection and dedup policies.
	mp, err := mempool.NewWithConfig(cfg.Mempool)
	if err != nil {
		return nil, err
	}

	size := cfg.TemplateCache
	if size <= 0 {
		size = defaultTemplateCache
	}
	templates, err := lru.New[string, database.Block](size)
	if err != nil {
		return nil, err
	}

	knownPeers := cfg.KnownPeers
	if knownPeers == nil {
		knownPeers = peer.NewPeerSet()
	}

	clk := cfg.Clock
	if clk == nil {
		clk = clock.NewDefaultClock()
	}

	vcfg := validator.Config{
		EvHandler: ev,
	}
	if cfg.PoW != nil {
		vcfg.PoW = cfg.PoW
	}
	if cfg.Contracts != nil {
		vcfg.Contracts = cfg.Contracts
	}

	state := State{
		host:        cfg.Host,
		nodeID:      cfg.NodeID,
		nodeVersion: cfg.NodeVersion,
		evHandler:   ev,
		clock:       clk,

		genesis:    cfg.Genesis,
		knownPeers: knownPeers,
		db:         db,
		mempool:    mp,
		pow:        cfg.PoW,
		validator:  validator.New(vcfg),
		contracts:  cfg.Contracts,
		metrics:    cfg.Metrics,
		templates:  templates,

		// The call to worker.Run will replace this worker with one that
		// talks to the network.
		Worker: noWorker{},
	}

	state.metrics.SetHeight(db.Height())

	return &state, nil
}

// Shutdown cleanly brings the node down.
func (s *State) Shutdown() error {
	s.evHandler("state: shutdown: started")
	defer s.evHandler("state: shutdown: completed")

	// Stop all network activity.
	s.Worker.Shutdown()

	return nil
}

// Truncate clears the mempool and the outstanding block templates.
func (s *State) Truncate() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.mempool.Truncate()
	s.templates.Purge()
	s.metrics.SetMempoolSize(0)
}

// =============================================================================

// noWorker is registered until a real worker takes over.
type noWorker struct{}

func (noWorker) Shutdown()                       {}
func (noWorker) SignalShareBlock(database.Block) {}
func (noWorker) SignalShareTx(database.Tx)       {}
func (noWorker) Peers() []p2p.PeerInfo           { return nil }
