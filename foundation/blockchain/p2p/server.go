package p2p

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/blacksilk/node/foundation/blockchain/signature"
)

// Set of errors returned when connecting to a peer.
var (
	ErrMaxPeers         = errors.New("max peers reached")
	ErrAlreadyConnected = errors.New("already connected")
	ErrShutdown         = errors.New("server is shutting down")
)

// Handler receives every message a ready connection reads, including the
// Version that completed the handshake.
type Handler interface {
	HandleMessage(c *Conn, msg Message) error
	Height() uint64
	PeerHosts() []string
}

// Config represents the settings and collaborators of a server.
type Config struct {
	Host        string
	ListenAddr  string
	Network     string
	Magic       uint32
	NodeVersion string
	MaxPeers    int
	DialRetries int
	DialBackoff time.Duration
	ReadTimeout time.Duration
	PrivateKey  *ecdsa.PrivateKey
	Dialer      Dialer
	Handler     Handler
	OnPeers     func(n int)
	EvHandler   func(v string, args ...any)
}

// PeerInfo describes a registered connection.
type PeerInfo struct {
	Addr       string `json:"addr"`
	NodeID     string `json:"node_id"`
	ListenAddr string `json:"listen_addr"`
	Node       string `json:"node"`
	Height     uint64 `json:"height"`
	Outbound   bool   `json:"outbound"`
	State      string `json:"state"`
}

// Server accepts and dials peer connections. The number of live
// connections, inbound and outbound together, is bounded by a semaphore
// and every connection runs its own read loop.
type Server struct {
	cfg       Config
	nodeID    string
	sem       *semaphore.Weighted
	evHandler func(v string, args ...any)

	mu       sync.RWMutex
	listener net.Listener
	conns    map[*Conn]struct{}
	shut     bool

	wg sync.WaitGroup
}

// New constructs a server. Missing retry, backoff and dialer settings take
// the defaults of the protocol: 3 attempts 2 seconds apart over TCP.
func New(cfg Config) (*Server, error) {
	if cfg.Handler == nil {
		return nil, errors.New("p2p: a handler is required")
	}
	if cfg.PrivateKey == nil {
		return nil, errors.New("p2p: a node key is required")
	}

	if cfg.MaxPeers <= 0 {
		cfg.MaxPeers = 32
	}
	if cfg.DialRetries <= 0 {
		cfg.DialRetries = 3
	}
	if cfg.DialBackoff <= 0 {
		cfg.DialBackoff = 2 * time.Second
	}
	if cfg.Dialer == nil {
		cfg.Dialer = DirectDialer(10 * time.Second)
	}

	ev := cfg.EvHandler
	if ev == nil {
		ev = func(v string, args ...any) {}
	}

	s := Server{
		cfg:       cfg,
		nodeID:    signature.NodeID(cfg.PrivateKey),
		sem:       semaphore.NewWeighted(int64(cfg.MaxPeers)),
		evHandler: ev,
		conns:     make(map[*Conn]struct{}),
	}

	return &s, nil
}

// Listen binds the configured host and runs the accept loop in the
// background until Shutdown is called.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.cfg.Host)
	if err != nil {
		return fmt.Errorf("p2p listen %s: %w", s.cfg.Host, err)
	}

	s.mu.Lock()
	if s.shut {
		s.mu.Unlock()
		ln.Close()
		return ErrShutdown
	}
	s.listener = ln
	s.mu.Unlock()

	s.evHandler("p2p: Listen: listening on %s", ln.Addr())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.acceptLoop(ln)
	}()

	return nil
}

// NodeID returns the identity this node announces.
func (s *Server) NodeID() string {
	return s.nodeID
}

// Addr returns the address the server is bound to, or an empty string
// before Listen.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Connect dials the peer, retrying with a fixed backoff, and starts the
// handshake on success.
func (s *Server) Connect(ctx context.Context, addr string) (*Conn, error) {
	if s.Connected(addr) {
		return nil, fmt.Errorf("%s: %w", addr, ErrAlreadyConnected)
	}

	if !s.sem.TryAcquire(1) {
		return nil, fmt.Errorf("%s: %w", addr, ErrMaxPeers)
	}

	var (
		nc  net.Conn
		err error
	)

	for attempt := 1; attempt <= s.cfg.DialRetries; attempt++ {
		nc, err = s.cfg.Dialer.DialContext(ctx, "tcp", addr)
		if err == nil {
			break
		}

		s.evHandler("p2p: Connect: %s: attempt %d/%d: ERROR: %s", addr, attempt, s.cfg.DialRetries, err)
		if attempt == s.cfg.DialRetries {
			break
		}

		select {
		case <-ctx.Done():
			s.sem.Release(1)
			return nil, ctx.Err()
		case <-time.After(s.cfg.DialBackoff):
		}
	}

	if err != nil {
		s.sem.Release(1)
		return nil, fmt.Errorf("connect %s after %d attempts: %w", addr, s.cfg.DialRetries, err)
	}

	c := newConn(nc, addr, true, s.cfg.ReadTimeout)
	if err := s.sendVersion(c); err != nil {
		c.Close()
		s.sem.Release(1)
		return nil, err
	}

	if err := s.start(c); err != nil {
		return nil, err
	}

	return c, nil
}

// Connected reports whether a connection exists to the address, either
// as dialed or as the listen address the peer announced.
func (s *Server) Connected(addr string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for c := range s.conns {
		if c.Addr() == addr || c.Remote().ListenAddr == addr {
			return true
		}
	}
	return false
}

// Broadcast sends the message to every ready peer, one after the other,
// and returns how many peers it was delivered to.
func (s *Server) Broadcast(msg Message) int {
	var sent int
	for _, c := range s.ready() {
		if err := c.Send(msg); err != nil {
			s.evHandler("p2p: Broadcast: %s: ERROR: %s", c.Addr(), err)
			continue
		}
		sent++
	}
	return sent
}

// Peers returns the registered connections sorted by address.
func (s *Server) Peers() []PeerInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	peers := make([]PeerInfo, 0, len(s.conns))
	for c := range s.conns {
		v := c.Remote()
		peers = append(peers, PeerInfo{
			Addr:       c.Addr(),
			NodeID:     v.NodeID,
			ListenAddr: v.ListenAddr,
			Node:       v.Node,
			Height:     v.Height,
			Outbound:   c.Outbound(),
			State:      c.State().String(),
		})
	}

	sort.Slice(peers, func(i, j int) bool {
		return peers[i].Addr < peers[j].Addr
	})

	return peers
}

// Shutdown stops accepting, closes every connection and waits for the
// read loops to finish.
func (s *Server) Shutdown() {
	s.mu.Lock()
	s.shut = true
	if s.listener != nil {
		s.listener.Close()
	}
	for c := range s.conns {
		c.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
}

// =============================================================================

func (s *Server) acceptLoop(ln net.Listener) {
	for {
		nc, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.evHandler("p2p: accept: ERROR: %s", err)
			continue
		}

		if !s.sem.TryAcquire(1) {
			s.evHandler("p2p: accept: %s: %s", nc.RemoteAddr(), ErrMaxPeers)
			nc.Close()
			continue
		}

		c := newConn(nc, nc.RemoteAddr().String(), false, s.cfg.ReadTimeout)
		if err := s.start(c); err != nil {
			continue
		}

		if err := s.sendVersion(c); err != nil {
			c.Close()
			continue
		}

		if err := c.SendPayload(TypePeerList, s.cfg.Handler.PeerHosts()); err != nil {
			c.Close()
		}
	}
}

// start registers the connection and runs its read loop. The semaphore
// slot acquired by the caller is released when the loop ends.
func (s *Server) start(c *Conn) error {
	s.mu.Lock()
	if s.shut {
		s.mu.Unlock()
		c.Close()
		s.sem.Release(1)
		return ErrShutdown
	}
	s.conns[c] = struct{}{}
	n := len(s.conns)
	s.mu.Unlock()

	s.evHandler("p2p: peer connected: %s: outbound[%v]", c.Addr(), c.Outbound())
	s.onPeers(n)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.readLoop(c)
	}()

	return nil
}

func (s *Server) remove(c *Conn) {
	s.mu.Lock()
	delete(s.conns, c)
	n := len(s.conns)
	s.mu.Unlock()

	c.Close()
	s.sem.Release(1)
	s.onPeers(n)
}

func (s *Server) onPeers(n int) {
	if s.cfg.OnPeers != nil {
		s.cfg.OnPeers(n)
	}
}

func (s *Server) ready() []*Conn {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conns := make([]*Conn, 0, len(s.conns))
	for c := range s.conns {
		if c.State() == StateReady {
			conns = append(conns, c)
		}
	}
	return conns
}

func (s *Server) sendVersion(c *Conn) error {
	v := Version{
		Version:    ProtocolVersion,
		Node:       s.cfg.NodeVersion,
		Magic:      s.cfg.Magic,
		Height:     s.cfg.Handler.Height(),
		ListenAddr: s.cfg.ListenAddr,
		Timestamp:  time.Now().Unix(),
	}

	if err := v.Sign(s.cfg.PrivateKey); err != nil {
		return err
	}

	return c.SendPayload(TypeVersion, v)
}

// readLoop drives the connection state machine until the peer goes away.
// In handshake only Version and Ping are processed.
func (s *Server) readLoop(c *Conn) {
	defer s.remove(c)

	for {
		line, err := c.read()
		if err != nil {
			switch {
			case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
				s.evHandler("p2p: peer disconnected: %s", c.Addr())
			default:
				s.evHandler("p2p: read: %s: ERROR: %s", c.Addr(), err)
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(line, &msg); err != nil {
			s.evHandler("p2p: read: %s: dropping malformed message: %s", c.Addr(), err)
			continue
		}

		if msg.Type == TypePing {
			if err := c.Send(Message{Type: TypePong}); err != nil {
				s.evHandler("p2p: pong: %s: ERROR: %s", c.Addr(), err)
				return
			}
		}

		switch c.State() {
		case StateHandshake:
			switch msg.Type {
			case TypeVersion:
				if err := s.handshake(c, msg); err != nil {
					s.evHandler("p2p: handshake: %s: ERROR: %s", c.Addr(), err)
					return
				}

			case TypePing:

			default:
				s.evHandler("p2p: handshake: %s: dropping %s before version", c.Addr(), msg.Type)
				continue
			}

		case StateReady:
			if msg.Type == TypeVersion {
				continue
			}

		default:
			return
		}

		if c.State() != StateReady {
			continue
		}

		if err := s.cfg.Handler.HandleMessage(c, msg); err != nil {
			s.evHandler("p2p: handle %s: %s: ERROR: %s", msg.Type, c.Addr(), err)
		}
	}
}

func (s *Server) handshake(c *Conn, msg Message) error {
	var v Version
	if err := msg.Decode(&v); err != nil {
		return err
	}

	if err := v.Verify(s.cfg.Magic); err != nil {
		return err
	}

	if strings.EqualFold(v.NodeID, s.nodeID) {
		return ErrSelf
	}

	c.ready(v)
	s.evHandler("p2p: handshake: %s: node[%s]: version[%d]: height[%d]", c.Addr(), v.NodeID, v.Version, v.Height)

	return nil
}
