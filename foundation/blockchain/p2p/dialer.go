package p2p

import (
	"context"
	"fmt"
	"net"
	"time"

	"golang.org/x/net/proxy"
)

// Dialer represents anything that can open an outbound connection.
type Dialer interface {
	DialContext(ctx context.Context, network, addr string) (net.Conn, error)
}

// DirectDialer dials peers over plain TCP.
func DirectDialer(timeout time.Duration) Dialer {
	return &net.Dialer{Timeout: timeout}
}

// TorDialer dials peers through the SOCKS5 proxy a Tor daemon exposes.
func TorDialer(proxyAddr string, timeout time.Duration) (Dialer, error) {
	d, err := proxy.SOCKS5("tcp", proxyAddr, nil, &net.Dialer{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("socks5 proxy %s: %w", proxyAddr, err)
	}

	cd, ok := d.(proxy.ContextDialer)
	if !ok {
		return nil, fmt.Errorf("socks5 proxy %s: dialer does not support contexts", proxyAddr)
	}

	return cd, nil
}
