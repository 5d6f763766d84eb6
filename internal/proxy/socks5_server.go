package proxy

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"

	"golang.org/x/sync/semaphore"

	"github.com/die-net/chainsocks/internal/dialer"
	"github.com/die-net/chainsocks/internal/metrics"
)

// SOCKS5Server accepts SOCKS5 clients and runs one session per connection.
type SOCKS5Server struct {
	ctx      context.Context
	cfg      Config
	verbose  bool
	tunneler dialer.Tunneler
	sem      *semaphore.Weighted
}

// NewSOCKS5Server constructs a server from cfg. Canceling ctx stops Serve
// and closes every open session.
func NewSOCKS5Server(ctx context.Context, cfg Config, verbose bool) (*SOCKS5Server, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.Dialer == nil {
		return nil, errors.New("socks5 server: missing dialer")
	}
	if cfg.Auth.Username == "" {
		return nil, errors.New("socks5 server: missing username")
	}
	if cfg.MaxConns < 0 {
		return nil, fmt.Errorf("socks5 server: invalid max conns %d", cfg.MaxConns)
	}

	s := &SOCKS5Server{ctx: ctx, cfg: cfg, verbose: verbose}

	if cfg.Passthrough {
		t, ok := cfg.Dialer.(dialer.Tunneler)
		if !ok {
			return nil, errors.New("socks5 server: passthrough requires a hop chain")
		}
		s.tunneler = t
	}

	if cfg.MaxConns > 0 {
		s.sem = semaphore.NewWeighted(int64(cfg.MaxConns))
	}
	return s, nil
}

// Serve accepts connections on ln until ln is closed or the server context
// is canceled; the latter is a clean shutdown and returns nil.
//
// With MaxConns set, a slot is reserved before Accept so that clients past
// the limit wait in the listen backlog.
func (s *SOCKS5Server) Serve(ln net.Listener) error {
	for {
		if s.sem != nil {
			if err := s.sem.Acquire(s.ctx, 1); err != nil {
				return nil
			}
		}

		c, err := ln.Accept()
		if err != nil {
			s.release()
			if s.ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}

		go func() {
			defer s.release()
			s.handle(c)
		}()
	}
}

func (s *SOCKS5Server) release() {
	if s.sem != nil {
		s.sem.Release(1)
	}
}

func (s *SOCKS5Server) handle(conn net.Conn) {
	metrics.SessionStarted()
	defer metrics.SessionEnded()

	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	sess := newSession(s, conn)
	if err := sess.run(ctx); err != nil && s.verbose {
		log.Printf("socks5: %s: %s: %v", conn.RemoteAddr(), sess.state, err)
	}
}
