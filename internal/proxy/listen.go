package proxy

import (
	"context"
	"fmt"
	"net"
)

// ListenTCP opens the client-facing listener. Every accepted connection gets
// ka applied; a disabled ka turns keepalives off rather than leaving the
// platform default.
func ListenTCP(ctx context.Context, network, addr string, ka net.KeepAliveConfig) (net.Listener, error) {
	lc := net.ListenConfig{KeepAliveConfig: ka}
	if !ka.Enable {
		lc.KeepAlive = -1
	}

	ln, err := lc.Listen(ctx, network, addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s %s: %w", network, addr, err)
	}
	return ln, nil
}
