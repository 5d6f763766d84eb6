package dialer

import (
	"context"
	"fmt"
	"net"
)

// directDialer connects straight to the target. It is also the transport
// to the first hop of a chain.
type directDialer struct {
	nd net.Dialer
}

// NewDirectDialer returns a Dialer bounded by cfg.DialTimeout whose
// connections carry cfg.KeepAlive.
func NewDirectDialer(cfg Config) Dialer {
	d := &directDialer{nd: net.Dialer{Timeout: cfg.DialTimeout, KeepAliveConfig: cfg.KeepAlive}}
	if !cfg.KeepAlive.Enable {
		d.nd.KeepAlive = -1
	}
	return d
}

func (d *directDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	conn, err := d.nd.DialContext(ctx, network, address)
	if err != nil {
		return nil, fmt.Errorf("dial %s %s: %w", network, address, err)
	}
	return conn, nil
}
