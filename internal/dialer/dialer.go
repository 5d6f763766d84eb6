package dialer

import (
	"context"
	"net"
)

// Dialer mirrors the net.Dialer interface.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Tunneler is implemented by dialers that can hand back a connection to
// their last upstream hop without requesting any target from it.
type Tunneler interface {
	Tunnel(ctx context.Context) (net.Conn, error)
}

// New returns a direct dialer when hops is empty and a chain dialer through
// hops otherwise.
func New(cfg Config, hops []Hop) (Dialer, error) {
	if len(hops) == 0 {
		return NewDirectDialer(cfg), nil
	}
	return NewChainDialer(cfg, hops)
}
