package proxy

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/die-net/chainsocks/internal/testutil"
)

type relayResult struct {
	stats RelayStats
	err   error
}

func startRelay(ctx context.Context) (client, upstream net.Conn, done <-chan relayResult) {
	clientSide, relayClient := net.Pipe()
	relayUpstream, upstreamSide := net.Pipe()

	ch := make(chan relayResult, 1)
	go func() {
		stats, err := Relay(ctx, relayClient, relayUpstream)
		ch <- relayResult{stats: stats, err: err}
	}()
	return clientSide, upstreamSide, ch
}

func waitRelay(t *testing.T, done <-chan relayResult) relayResult {
	t.Helper()
	select {
	case r := <-done:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not terminate")
		return relayResult{}
	}
}

func TestRelayBothDirections(t *testing.T) {
	client, upstream, done := startRelay(context.Background())

	testutil.AssertEcho(t, client, upstream, []byte("ping"))
	testutil.AssertEcho(t, upstream, client, []byte("pong!"))

	_ = client.Close()

	r := waitRelay(t, done)
	if r.err != nil {
		t.Fatal(r.err)
	}
	if r.stats.Up != 4 || r.stats.Down != 5 {
		t.Fatalf("stats %+v", r.stats)
	}

	// The upstream side is closed together with the client.
	if _, err := upstream.Read(make([]byte, 1)); err == nil {
		t.Fatal("expected upstream to be closed")
	}
}

func TestRelayPreservesOrder(t *testing.T) {
	client, upstream, done := startRelay(context.Background())

	payload := make([]byte, 256*1024)
	if _, err := rand.Read(payload); err != nil {
		t.Fatal(err)
	}

	g := errgroup.Group{}
	g.Go(func() error {
		_, err := client.Write(payload)
		return err
	})

	got := make([]byte, len(payload))
	if _, err := io.ReadFull(upstream, got); err != nil {
		t.Fatal(err)
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatal("payload corrupted in transit")
	}

	_ = upstream.Close()

	r := waitRelay(t, done)
	if r.err != nil {
		t.Fatal(r.err)
	}
	if r.stats.Up != int64(len(payload)) {
		t.Fatalf("up %d want %d", r.stats.Up, len(payload))
	}
	if _, err := client.Read(make([]byte, 1)); err == nil {
		t.Fatal("expected client to be closed")
	}
}

func TestRelayContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	client, upstream, done := startRelay(ctx)
	defer client.Close()
	defer upstream.Close()

	cancel()

	r := waitRelay(t, done)
	if !errors.Is(r.err, context.Canceled) {
		t.Fatalf("got %v want context.Canceled", r.err)
	}
}

// tcpPair returns both ends of a loopback TCP connection.
func tcpPair(t *testing.T) (net.Conn, net.Conn) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err != nil {
			close(accepted)
			return
		}
		accepted <- c
	}()

	dialed, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	c, ok := <-accepted
	if !ok {
		t.Fatal("accept failed")
	}
	return dialed, c
}

func TestRelayTCP(t *testing.T) {
	client, relayClient := tcpPair(t)
	relayUpstream, upstream := tcpPair(t)
	defer client.Close()
	defer upstream.Close()

	done := make(chan relayResult, 1)
	go func() {
		stats, err := Relay(context.Background(), relayClient, relayUpstream)
		done <- relayResult{stats: stats, err: err}
	}()

	payload := make([]byte, 3*relayBufferSize+17)
	if _, err := rand.Read(payload); err != nil {
		t.Fatal(err)
	}

	g := errgroup.Group{}
	g.Go(func() error {
		_, err := client.Write(payload)
		return err
	})
	got := make([]byte, len(payload))
	if _, err := io.ReadFull(upstream, got); err != nil {
		t.Fatal(err)
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatal("payload corrupted in transit")
	}

	testutil.AssertEcho(t, upstream, client, []byte("back"))

	_ = client.Close()

	r := waitRelay(t, done)
	if r.err != nil {
		t.Fatal(r.err)
	}
	if r.stats.Up != int64(len(payload)) || r.stats.Down != 4 {
		t.Fatalf("stats %+v", r.stats)
	}
	if _, err := upstream.Read(make([]byte, 1)); err == nil {
		t.Fatal("expected upstream to be closed")
	}
}

func TestRelayBufferSize(t *testing.T) {
	b := getRelayBuffer()
	defer putRelayBuffer(b)
	if len(b[:]) != relayBufferSize {
		t.Fatalf("buffer length %d want %d", len(b[:]), relayBufferSize)
	}
}
