package testutil

import (
	"context"
	"net"
	"sync"
	"testing"
)

// listenLoopback opens a TCP listener on an ephemeral 127.0.0.1 port.
func listenLoopback(t *testing.T, ctx context.Context) net.Listener {
	t.Helper()

	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	return ln
}

// StartSingleAcceptServer accepts one connection and runs handler on it,
// closing the connection afterwards. The returned wait closes the listener
// and blocks until handler returns; it also runs at test cleanup.
func StartSingleAcceptServer(t *testing.T, ctx context.Context, handler func(net.Conn)) (net.Listener, func()) {
	t.Helper()

	ln := listenLoopback(t, ctx)

	done := make(chan struct{})
	go func() {
		defer close(done)
		c, err := ln.Accept()
		if err != nil {
			return
		}
		defer c.Close()
		handler(c)
	}()

	var once sync.Once
	wait := func() {
		once.Do(func() {
			_ = ln.Close()
			<-done
		})
	}
	t.Cleanup(wait)

	return ln, wait
}
