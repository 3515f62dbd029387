package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/ardanlabs/conf/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/blacksilk/node/app/services/node/handlers"
	"github.com/blacksilk/node/foundation/blockchain/contract"
	"github.com/blacksilk/node/foundation/blockchain/database/storage/memory"
	"github.com/blacksilk/node/foundation/blockchain/genesis"
	"github.com/blacksilk/node/foundation/blockchain/mempool"
	"github.com/blacksilk/node/foundation/blockchain/metrics"
	"github.com/blacksilk/node/foundation/blockchain/p2p"
	"github.com/blacksilk/node/foundation/blockchain/peer"
	"github.com/blacksilk/node/foundation/blockchain/randomx"
	"github.com/blacksilk/node/foundation/blockchain/signature"
	"github.com/blacksilk/node/foundation/blockchain/state"
	"github.com/blacksilk/node/foundation/blockchain/worker"
	"github.com/blacksilk/node/foundation/events"
	"github.com/blacksilk/node/foundation/logger"
	"github.com/blacksilk/node/foundation/nameservice"
)

// build is the git version of this program. It is set using build flags in the makefile.
var build = "develop"

func main() {

	// Construct the application logger.
	log, err := logger.New("NODE")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer log.Sync()

	// Perform the startup and shutdown sequence.
	if err := run(log); err != nil {
		log.Errorw("startup", "ERROR", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(log *zap.SugaredLogger) error {

	// =========================================================================
	// Configuration

	// This is all the configuration for the application and the default values.
	// Empty hosts are filled in from the network profile.
	cfg := struct {
		conf.Version
		Network string `conf:"default:testnet"`
		Web     struct {
			ReadTimeout     time.Duration `conf:"default:5s"`
			WriteTimeout    time.Duration `conf:"default:10s"`
			IdleTimeout     time.Duration `conf:"default:120s"`
			ShutdownTimeout time.Duration `conf:"default:20s"`
			DebugHost       string        `conf:"default:0.0.0.0:7080"`
			PublicHost      string
			PrivateHost     string        `conf:"default:0.0.0.0:9080"`
		}
		P2P struct {
			Host        string
			ListenAddr  string
			KnownPeers  []string
			MaxPeers    int           `conf:"default:50"`
			DialRetries int           `conf:"default:3"`
			DialBackoff time.Duration `conf:"default:2s"`
			DialTimeout time.Duration `conf:"default:30s"`
			ReadTimeout time.Duration `conf:"default:0s"`
			PeerUpdate  time.Duration `conf:"default:1m"`
			TorProxy    string
		}
		State struct {
			SelectStrategy string `conf:"default:fee"`
			Dedup          string `conf:"default:none"`
			NodeKey        string `conf:"default:zblock/node/node.ecdsa"`
			GenesisPath    string
			TemplateCache  int `conf:"default:64"`
		}
		PoW struct {
			Secure       bool   `conf:"default:true"`
			Mode         string `conf:"default:auto"`
			CacheEntries int    `conf:"default:2"`
		}
		NameService struct {
			Folder string `conf:"default:zblock/node/"`
		}
	}{
		Version: conf.Version{
			Build: build,
			Desc:  "BlackSilk privacy proof of work node",
		},
	}

	// Parse will set the defaults and then look for any overriding values
	// in environment variables and command line flags.
	const prefix = "BLACKSILK"
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	// The network profile fixes the magic, ports and difficulty rules.
	gen, err := genesis.ForNetwork(cfg.Network)
	if err != nil {
		return fmt.Errorf("selecting network: %w", err)
	}
	if cfg.State.GenesisPath != "" {
		if gen, err = genesis.Load(cfg.State.GenesisPath, gen); err != nil {
			return fmt.Errorf("loading genesis: %w", err)
		}
	}

	if cfg.Web.PublicHost == "" {
		cfg.Web.PublicHost = anyHost(gen.HTTPPort)
	}
	if cfg.P2P.Host == "" {
		cfg.P2P.Host = anyHost(gen.P2PPort)
	}

	// =========================================================================
	// App Starting

	fmt.Println(`  ____  _            _     ____  _ _ _    `)
	fmt.Println(` | __ )| | __ _  ___| | __/ ___|(_) | | __`)
	fmt.Println(` |  _ \| |/ _' |/ __| |/ /\___ \| | | |/ /`)
	fmt.Println(` | |_) | | (_| | (__|   <  ___) | | |   < `)
	fmt.Println(` |____/|_|\__,_|\___|_|\_\|____/|_|_|_|\_\`)
	fmt.Print("\n")

	log.Infow("starting service", "version", build, "network", gen.Network)
	defer log.Infow("shutdown complete")

	// Display the current configuration to the logs.
	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Infow("startup", "config", out)

	// =========================================================================
	// Name Service Support

	// The nameservice package provides names for the node ids peers announce.
	// The names come from the key file names in the configured folder.
	ns, err := nameservice.New(cfg.NameService.Folder)
	if err != nil {
		return fmt.Errorf("unable to load node name service: %w", err)
	}

	// Logging the nodes for documentation in the logs.
	for nodeID, name := range ns.Copy() {
		log.Infow("startup", "status", "nameservice", "name", name, "node", nodeID)
	}

	// =========================================================================
	// Blockchain Support

	// The node key signs the handshake so peers can identify this node.
	privateKey, err := signature.LoadOrGenerate(cfg.State.NodeKey)
	if err != nil {
		return fmt.Errorf("unable to load private key for node: %w", err)
	}
	nodeID := signature.NodeID(privateKey)

	// A peer set is a collection of known nodes in the network so transactions
	// and blocks can be shared.
	peerSet := peer.NewPeerSet()
	peerSet.AddHosts(cfg.P2P.KnownPeers, cfg.P2P.Host)

	// The blockchain packages accept a function of this signature to allow the
	// application to log. These raw messages are also sent to any websocket
	// client that is connected into the system through the events package.
	evts := events.New()
	ev := func(v string, args ...any) {
		s := fmt.Sprintf(v, args...)
		log.Infow(s, "traceid", "00000000-0000-0000-0000-000000000000")
		evts.Send(s)
	}

	m := metrics.New()

	mode, err := randomx.ParseMode(cfg.PoW.Mode)
	if err != nil {
		return err
	}

	var pow *randomx.Verifier
	pow, err = randomx.NewVerifier(randomx.Config{
		Mode:         mode,
		Secure:       cfg.PoW.Secure,
		CacheEntries: cfg.PoW.CacheEntries,
		EvHandler:    ev,
		OnVerdict: func(v randomx.Verdict) {
			m.PoWVerified(string(v.Class), v.Elapsed)
			m.SetBlacklisted(pow.Stats().BlacklistedPeers)
		},
	})
	if err != nil {
		return fmt.Errorf("constructing randomx verifier: %w", err)
	}
	log.Infow("startup", "status", "randomx", "mode", pow.Hasher().Mode(), "insecure", pow.Insecure())

	contracts := contract.New(context.Background(), ev)
	defer contracts.Close(context.Background())

	// The state value represents the blockchain node and manages the blockchain
	// database and provides an API for application support.
	st, err := state.New(state.Config{
		Genesis:     gen,
		Host:        cfg.P2P.Host,
		NodeID:      nodeID,
		NodeVersion: build,
		Storage:     memory.New(),
		Mempool: mempool.Config{
			Strategy: cfg.State.SelectStrategy,
			Dedup:    cfg.State.Dedup,
		},
		KnownPeers:    peerSet,
		PoW:           pow,
		Contracts:     contracts,
		Metrics:       m,
		TemplateCache: cfg.State.TemplateCache,
		EvHandler:     ev,
	})
	if err != nil {
		return err
	}
	defer st.Shutdown()

	// The peer protocol server. Outbound connections go through Tor when a
	// SOCKS proxy is configured.
	dialer := p2p.DirectDialer(cfg.P2P.DialTimeout)
	if cfg.P2P.TorProxy != "" {
		if dialer, err = p2p.TorDialer(cfg.P2P.TorProxy, cfg.P2P.DialTimeout); err != nil {
			return fmt.Errorf("constructing tor dialer: %w", err)
		}
		log.Infow("startup", "status", "tor dialer", "proxy", cfg.P2P.TorProxy)
	}

	server, err := p2p.New(p2p.Config{
		Host:        cfg.P2P.Host,
		ListenAddr:  cfg.P2P.ListenAddr,
		Network:     gen.Network,
		Magic:       gen.Magic,
		NodeVersion: build,
		MaxPeers:    cfg.P2P.MaxPeers,
		DialRetries: cfg.P2P.DialRetries,
		DialBackoff: cfg.P2P.DialBackoff,
		ReadTimeout: cfg.P2P.ReadTimeout,
		PrivateKey:  privateKey,
		Dialer:      dialer,
		Handler:     st,
		OnPeers:     m.SetPeers,
		EvHandler:   ev,
	})
	if err != nil {
		return fmt.Errorf("constructing p2p server: %w", err)
	}

	if err := server.Listen(); err != nil {
		return fmt.Errorf("p2p listen: %w", err)
	}
	log.Infow("startup", "status", "p2p started", "host", server.Addr(), "node", nodeID)

	// The worker package implements the peer and sharing workflows. The
	// worker registers itself with the state and owns the p2p server.
	if _, err := worker.Run(st, worker.Config{
		Server:       server,
		PeerInterval: cfg.P2P.PeerUpdate,
		DialTimeout:  cfg.P2P.DialTimeout,
		EvHandler:    ev,
	}); err != nil {
		server.Shutdown()
		return fmt.Errorf("starting worker: %w", err)
	}

	// =========================================================================
	// Start Debug Service

	log.Infow("startup", "status", "debug v1 router started", "host", cfg.Web.DebugHost)

	// The Debug function returns a mux to listen and serve on for all the debug
	// related endpoints. This includes the standard library endpoints.

	// Construct the mux for the debug calls.
	debugMux := handlers.DebugMux(build, log, st, m)

	// Start the service listening for debug requests.
	// Not concerned with shutting this down with load shedding.
	go func() {
		if err := http.ListenAndServe(cfg.Web.DebugHost, debugMux); err != nil {
			log.Errorw("shutdown", "status", "debug v1 router closed", "host", cfg.Web.DebugHost, "ERROR", err)
		}
	}()

	// =========================================================================
	// Service Start/Stop Support

	// Make a channel to listen for an interrupt or terminate signal from the OS.
	// Use a buffered channel because the signal package requires it.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	// Make a channel to listen for errors coming from the listener. Use a
	// buffered channel so the goroutine can exit if we don't collect this error.
	serverErrors := make(chan error, 2)

	muxCfg := handlers.MuxConfig{
		Shutdown: shutdown,
		Log:      log,
		State:    st,
		NS:       ns,
		Evts:     evts,
		Metrics:  m,
	}

	// =========================================================================
	// Start Public Service

	log.Infow("startup", "status", "initializing public API support")

	// Construct a server to service the requests against the mux.
	public := http.Server{
		Addr:         cfg.Web.PublicHost,
		Handler:      handlers.PublicMux(muxCfg),
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     zap.NewStdLog(log.Desugar()),
	}

	// Start the service listening for api requests.
	go func() {
		log.Infow("startup", "status", "public api router started", "host", public.Addr)
		serverErrors <- public.ListenAndServe()
	}()

	// =========================================================================
	// Start Private Service

	log.Infow("startup", "status", "initializing V1 private API support")

	// Construct a server to service the requests against the mux.
	private := http.Server{
		Addr:         cfg.Web.PrivateHost,
		Handler:      handlers.PrivateMux(muxCfg),
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     zap.NewStdLog(log.Desugar()),
	}

	// Start the service listening for api requests.
	go func() {
		log.Infow("startup", "status", "private api router started", "host", private.Addr)
		serverErrors <- private.ListenAndServe()
	}()

	// =========================================================================
	// Shutdown

	// Blocking main and waiting for shutdown.
	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		log.Infow("shutdown", "status", "shutdown started", "signal", sig)
		defer log.Infow("shutdown", "status", "shutdown complete", "signal", sig)

		// Release any web sockets that are currently active.
		log.Infow("shutdown", "status", "shutdown web socket channels")
		evts.Shutdown()

		// Give outstanding requests a deadline for completion.
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancel()

		// Asking both listeners to shut down and shed load at the same time.
		var g errgroup.Group
		for _, srv := range []*http.Server{&private, &public} {
			g.Go(func() error {
				log.Infow("shutdown", "status", "shutdown API started", "host", srv.Addr)
				if err := srv.Shutdown(ctx); err != nil {
					srv.Close()
					return fmt.Errorf("could not stop service %s gracefully: %w", srv.Addr, err)
				}
				return nil
			})
		}

		if err := g.Wait(); err != nil {
			return err
		}
	}

	return nil
}

// anyHost returns the wildcard listen address for the port.
func anyHost(port uint16) string {
	return net.JoinHostPort("0.0.0.0", strconv.Itoa(int(port)))
}
