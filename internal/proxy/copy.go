package proxy

import (
	"context"
	"io"
	"net"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// RelayStats counts the bytes forwarded in each direction.
type RelayStats struct {
	Up   int64 // client to upstream
	Down int64 // upstream to client
}

// Relay copies bytes between client and upstream until either direction
// ends, then closes both connections. TCP pairs are copied by the kernel
// where the platform allows it; anything else goes through pooled buffers.
//
// The error is the one that ended the first direction to finish; a clean EOF
// yields nil. Canceling ctx closes both sides and returns ctx's error.
func Relay(ctx context.Context, client, upstream net.Conn) (RelayStats, error) {
	var closeOnce sync.Once
	closeBoth := func() {
		closeOnce.Do(func() {
			_ = client.Close()
			_ = upstream.Close()
		})
	}
	defer closeBoth()

	// done is set by whoever tears the pair down first; errors seen after
	// that are a consequence of the close.
	var done atomic.Bool

	stop := context.AfterFunc(ctx, func() {
		done.Store(true)
		closeBoth()
	})
	defer stop()

	var stats RelayStats
	pump := func(dst, src net.Conn, n *int64) func() error {
		return func() error {
			buf := getRelayBuffer()
			defer putRelayBuffer(buf)

			var err error
			*n, err = io.CopyBuffer(dst, src, buf[:])
			if !done.CompareAndSwap(false, true) {
				return nil
			}
			closeBoth()
			return err
		}
	}

	g := errgroup.Group{}
	g.Go(pump(upstream, client, &stats.Up))
	g.Go(pump(client, upstream, &stats.Down))
	err := g.Wait()

	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	return stats, err
}
