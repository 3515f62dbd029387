package p2p

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// MaxMessageSize bounds a single line on the wire.
const MaxMessageSize = 32 << 20

// envelopeOverhead covers the type field, the braces and the newline a
// payload is framed with.
const envelopeOverhead = 64

const writeTimeout = 10 * time.Second

// State is where a connection is in its lifecycle.
type State int32

// Set of connection states. A connection only moves forward.
const (
	StateHandshake State = iota
	StateReady
	StateClosing
)

// String implements the fmt.Stringer interface.
func (s State) String() string {
	switch s {
	case StateHandshake:
		return "handshake"
	case StateReady:
		return "ready"
	}
	return "closing"
}

// Conn is a live connection to a peer.
type Conn struct {
	conn        net.Conn
	addr        string
	outbound    bool
	readTimeout time.Duration
	scanner     *bufio.Scanner

	state atomic.Int32

	wmu sync.Mutex

	mu     sync.RWMutex
	remote Version
}

func newConn(conn net.Conn, addr string, outbound bool, readTimeout time.Duration) *Conn {
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64<<10), MaxMessageSize)

	return &Conn{
		conn:        conn,
		addr:        addr,
		outbound:    outbound,
		readTimeout: readTimeout,
		scanner:     scanner,
	}
}

// Addr returns the address of the peer. For outbound connections it is
// the address that was dialed.
func (c *Conn) Addr() string {
	return c.addr
}

// Outbound reports whether this node dialed the connection.
func (c *Conn) Outbound() bool {
	return c.outbound
}

// State returns the current state of the connection.
func (c *Conn) State() State {
	return State(c.state.Load())
}

// Remote returns the version the peer announced. It is empty until the
// handshake completes.
func (c *Conn) Remote() Version {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.remote
}

// Send writes the message as a single line.
func (c *Conn) Send(msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	if len(data) > MaxMessageSize {
		return fmt.Errorf("send %s to %s: %d bytes: %w", msg.Type, c.addr, len(data), ErrMessageSize)
	}

	c.wmu.Lock()
	defer c.wmu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}

	if _, err := c.conn.Write(data); err != nil {
		return fmt.Errorf("send %s to %s: %w", msg.Type, c.addr, err)
	}

	return nil
}

// SendPayload encodes the payload into a message and sends it.
func (c *Conn) SendPayload(typ string, payload any) error {
	msg, err := NewMessage(typ, payload)
	if err != nil {
		return err
	}
	return c.Send(msg)
}

// Close moves the connection to closing and closes the socket.
func (c *Conn) Close() error {
	c.state.Store(int32(StateClosing))
	return c.conn.Close()
}

// read blocks for the next line. The returned bytes are only valid until
// the next call.
func (c *Conn) read() ([]byte, error) {
	if c.readTimeout > 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.readTimeout)); err != nil {
			return nil, err
		}
	}

	if !c.scanner.Scan() {
		if err := c.scanner.Err(); err != nil {
			return nil, err
		}
		return nil, io.EOF
	}

	return c.scanner.Bytes(), nil
}

func (c *Conn) ready(v Version) {
	c.mu.Lock()
	c.remote = v
	c.mu.Unlock()

	c.state.CompareAndSwap(int32(StateHandshake), int32(StateReady))
}
