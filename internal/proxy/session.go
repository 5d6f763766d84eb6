package proxy

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/die-net/chainsocks/internal/dialer"
	"github.com/die-net/chainsocks/internal/metrics"
	"github.com/die-net/chainsocks/internal/socks5"
)

type sessionState int

const (
	stateGreeting sessionState = iota
	stateMethodSelected
	stateAuthenticating
	stateAuthenticated
	stateEstablishing
	stateRelaying
	stateClosed
	stateRejected
)

func (st sessionState) String() string {
	switch st {
	case stateGreeting:
		return "greeting"
	case stateMethodSelected:
		return "method-selected"
	case stateAuthenticating:
		return "authenticating"
	case stateAuthenticated:
		return "authenticated"
	case stateEstablishing:
		return "establishing"
	case stateRelaying:
		return "relaying"
	case stateClosed:
		return "closed"
	case stateRejected:
		return "rejected"
	default:
		return "state(" + strconv.Itoa(int(st)) + ")"
	}
}

// session is one accepted client connection. It is owned by a single
// goroutine for its whole lifetime.
type session struct {
	srv  *SOCKS5Server
	conn net.Conn

	state         sessionState
	method        byte
	authenticated bool

	// upstream is assigned once, by either dial or the tunnel build, and
	// only after authentication.
	upstream net.Conn
	reply    byte
}

func newSession(srv *SOCKS5Server, conn net.Conn) *session {
	return &session{srv: srv, conn: conn, state: stateGreeting}
}

func (ss *session) run(ctx context.Context) error {
	defer ss.close()

	// Unblock any pending handshake read when the server shuts down.
	stop := context.AfterFunc(ctx, func() {
		_ = ss.conn.Close()
	})
	defer stop()

	if t := ss.srv.cfg.NegotiationTimeout; t > 0 {
		_ = ss.conn.SetDeadline(time.Now().Add(t))
	}

	if err := socks5.ServerNegotiate(ss.conn); err != nil {
		ss.state = stateRejected
		metrics.Rejected()
		return err
	}
	ss.method = socks5.MethodUsernamePassword
	ss.state = stateMethodSelected

	ss.state = stateAuthenticating
	if err := socks5.ServerAuthenticate(ss.conn, ss.srv.cfg.Auth); err != nil {
		ss.state = stateRejected
		if errors.Is(err, socks5.ErrAuthFailure) {
			metrics.AuthFailure()
		} else {
			metrics.Rejected()
		}
		return err
	}
	ss.authenticated = true
	ss.state = stateAuthenticated

	if ss.srv.tunneler != nil {
		return ss.tunnel(ctx)
	}
	return ss.connect(ctx)
}

// connect reads the client request, reaches the target and answers with
// exactly one reply.
func (ss *session) connect(ctx context.Context) error {
	req, err := socks5.ReadRequest(ss.conn)
	if err != nil {
		ss.state = stateRejected
		if errors.Is(err, socks5.ErrUnsupportedCommand) {
			metrics.UnsupportedCommand()
		} else {
			metrics.Rejected()
		}
		return err
	}

	ss.state = stateEstablishing
	up, err := ss.dial(ctx, req)
	if err != nil {
		if errors.Is(err, dialer.ErrChainSetup) {
			metrics.ChainFailure()
		} else {
			metrics.ConnectFailure()
		}
		ss.reply = socks5.RepGeneralFailure
		ss.state = stateClosed
		return errors.Join(fmt.Errorf("connect %s: %w", req.Address(), err), socks5.WriteFailureReply(ss.conn, req.Atyp))
	}
	ss.upstream = up

	if err := socks5.WriteSuccessReply(ss.conn, up.LocalAddr()); err != nil {
		ss.state = stateClosed
		return err
	}
	ss.reply = socks5.RepSuccess

	return ss.relay(ctx)
}

func (ss *session) dial(ctx context.Context, req *socks5.Request) (net.Conn, error) {
	target := req.Address()
	if req.Atyp == socks5.ATYPDomain && ss.srv.cfg.Resolver != nil {
		ip, err := ss.srv.cfg.Resolver.LookupIPv4(ctx, req.Host)
		if err != nil {
			return nil, err
		}
		target = net.JoinHostPort(ip.String(), strconv.Itoa(int(req.Port)))
	}
	return ss.srv.cfg.Dialer.DialContext(ctx, "tcp", target)
}

// tunnel builds the hop chain without a final CONNECT and starts relaying at
// once; the client's request and the last hop's reply pass through.
func (ss *session) tunnel(ctx context.Context) error {
	ss.state = stateEstablishing
	up, err := ss.srv.tunneler.Tunnel(ctx)
	if err != nil {
		metrics.ChainFailure()
		ss.state = stateClosed
		return err
	}
	ss.upstream = up

	return ss.relay(ctx)
}

func (ss *session) relay(ctx context.Context) error {
	if ss.srv.cfg.NegotiationTimeout > 0 {
		_ = ss.conn.SetDeadline(time.Time{})
	}

	ss.state = stateRelaying
	stats, err := Relay(ctx, ss.conn, ss.upstream)
	metrics.Relayed(stats.Up, stats.Down)
	ss.state = stateClosed

	if err != nil {
		return fmt.Errorf("relay: %w", err)
	}
	return nil
}

func (ss *session) close() {
	_ = ss.conn.Close()
	if ss.upstream != nil {
		_ = ss.upstream.Close()
	}
}
