package proxy

import (
	"time"

	"github.com/die-net/chainsocks/internal/dialer"
	"github.com/die-net/chainsocks/internal/socks5"
)

type Config struct {
	// NegotiationTimeout bounds the client handshake, from accept until the
	// reply is written. Zero disables it.
	NegotiationTimeout time.Duration

	// Auth is the single credential pair clients must present.
	Auth socks5.Auth

	// Dialer reaches targets, either directly or through a hop chain.
	Dialer dialer.Dialer

	// Resolver, if set, turns domain-name targets into IPv4 addresses before
	// Dialer is called. Leave it nil to hand names to Dialer unresolved.
	Resolver dialer.Resolver

	// Passthrough skips reading the client request: the Dialer (which must
	// implement dialer.Tunneler) builds its chain without a final CONNECT and
	// the client's request is relayed to the last hop as-is.
	Passthrough bool

	// MaxConns limits concurrent sessions. Zero means unlimited.
	MaxConns int
}
