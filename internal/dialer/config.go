package dialer

import (
	"net"
	"time"
)

type Config struct {
	// DialTimeout bounds each outbound TCP connect and each name lookup.
	DialTimeout time.Duration

	// NegotiationTimeout bounds the SOCKS5 handshake with each hop.
	NegotiationTimeout time.Duration

	KeepAlive net.KeepAliveConfig
}
