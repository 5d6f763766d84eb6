package dialer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/die-net/chainsocks/internal/socks5"
)

// ErrChainSetup wraps every failure to build a chain.
var ErrChainSetup = errors.New("chain setup")

// ChainDialer tunnels outbound TCP connections through an ordered list of
// SOCKS5 hops.
//
// Each dial opens a fresh TCP connection to the first hop and then extends
// the tunnel one hop at a time: hop i is asked to CONNECT to hop i+1, and the
// last hop is asked to CONNECT to the requested target. The first failure
// aborts the whole chain.
type ChainDialer struct {
	cfg    Config
	hops   []Hop
	direct Dialer
}

// NewChainDialer constructs a chain dialer over hops.
func NewChainDialer(cfg Config, hops []Hop) (*ChainDialer, error) {
	if len(hops) == 0 {
		return nil, errors.New("chain dialer: no hops")
	}
	for i, h := range hops {
		if err := h.Validate(); err != nil {
			return nil, fmt.Errorf("chain dialer: hop %d: %w", i, err)
		}
	}

	return &ChainDialer{
		cfg:    cfg,
		hops:   append([]Hop(nil), hops...),
		direct: NewDirectDialer(cfg),
	}, nil
}

// Hops returns a copy of the configured hops.
func (d *ChainDialer) Hops() []Hop {
	return append([]Hop(nil), d.hops...)
}

// DialContext returns a connection tunneled end-to-end to address.
//
// Canceling ctx while the chain is being built closes the tunnel; once
// DialContext returns, ctx no longer affects the connection.
func (d *ChainDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	if !strings.HasPrefix(network, "tcp") {
		return nil, fmt.Errorf("chain dial %s %s: unsupported network", network, address)
	}
	if address == "" {
		return nil, fmt.Errorf("chain dial %s: missing address", network)
	}
	return d.build(ctx, address)
}

// Tunnel returns a connection that has negotiated with every hop but has not
// sent a CONNECT request to the last one. The caller speaks the request
// phase of SOCKS5 with the last hop directly.
func (d *ChainDialer) Tunnel(ctx context.Context) (net.Conn, error) {
	return d.build(ctx, "")
}

func (d *ChainDialer) build(ctx context.Context, target string) (net.Conn, error) {
	first := d.hops[0]
	conn, err := d.direct.DialContext(ctx, "tcp", first.Address())
	if err != nil {
		return nil, fmt.Errorf("%w: hop 0 (%s): %w", ErrChainSetup, first, err)
	}

	stop := context.AfterFunc(ctx, func() {
		_ = conn.Close()
	})

	for i, hop := range d.hops {
		next := target
		if i < len(d.hops)-1 {
			next = d.hops[i+1].Address()
		}

		if d.cfg.NegotiationTimeout > 0 {
			_ = conn.SetDeadline(time.Now().Add(d.cfg.NegotiationTimeout))
		}

		if err := connectHop(conn, hop, next); err != nil {
			stop()
			_ = conn.Close()
			if ctxErr := ctx.Err(); ctxErr != nil {
				err = ctxErr
			}
			return nil, fmt.Errorf("%w: hop %d (%s): %w", ErrChainSetup, i, hop, err)
		}
	}

	if !stop() {
		// ctx fired and the conn is already closed.
		_ = conn.Close()
		return nil, fmt.Errorf("%w: %w", ErrChainSetup, context.Cause(ctx))
	}

	if d.cfg.NegotiationTimeout > 0 {
		_ = conn.SetDeadline(time.Time{})
	}
	return conn, nil
}

// connectHop authenticates with hop over conn and, when next is non-empty,
// asks it to CONNECT onward to next.
func connectHop(conn net.Conn, hop Hop, next string) error {
	if err := socks5.ClientNegotiate(conn, hop.Auth()); err != nil {
		return err
	}
	if next == "" {
		return nil
	}
	return socks5.ClientConnect(conn, next)
}
