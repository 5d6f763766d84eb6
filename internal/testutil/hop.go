package testutil

import (
	"context"
	"io"
	"net"
	"testing"

	"github.com/txthinking/socks5"
)

// SOCKS5Hop is a minimal upstream SOCKS5 server for chain tests.
//
// With Username set it insists on username/password authentication;
// otherwise it selects no-auth. A non-zero Reply is sent in answer to
// CONNECT instead of dialing the target.
type SOCKS5Hop struct {
	Username string
	Password string
	Reply    byte

	// Requests, if set, receives the target address of every CONNECT.
	Requests chan<- string
}

// StartSOCKS5Hop serves h on a single-accept listener.
func StartSOCKS5Hop(t *testing.T, ctx context.Context, h SOCKS5Hop) (net.Listener, func()) {
	t.Helper()
	return StartSingleAcceptServer(t, ctx, func(c net.Conn) {
		_ = h.Serve(ctx, c)
	})
}

// Serve runs one SOCKS5 session on c and relays to the target until either
// side closes.
func (h SOCKS5Hop) Serve(ctx context.Context, c net.Conn) error {
	if _, err := socks5.NewNegotiationRequestFrom(c); err != nil {
		return err
	}

	if h.Username == "" {
		if _, err := socks5.NewNegotiationReply(socks5.MethodNone).WriteTo(c); err != nil {
			return err
		}
	} else {
		if _, err := socks5.NewNegotiationReply(socks5.MethodUsernamePassword).WriteTo(c); err != nil {
			return err
		}

		urq, err := socks5.NewUserPassNegotiationRequestFrom(c)
		if err != nil {
			return err
		}
		if string(urq.Uname) != h.Username || string(urq.Passwd) != h.Password {
			_, _ = socks5.NewUserPassNegotiationReply(socks5.UserPassStatusFailure).WriteTo(c)
			return nil
		}
		if _, err := socks5.NewUserPassNegotiationReply(socks5.UserPassStatusSuccess).WriteTo(c); err != nil {
			return err
		}
	}

	req, err := socks5.NewRequestFrom(c)
	if err != nil {
		return err
	}
	if h.Requests != nil {
		h.Requests <- req.Address()
	}
	if req.Cmd != socks5.CmdConnect {
		_, _ = zeroReply(socks5.RepCommandNotSupported).WriteTo(c)
		return nil
	}
	if h.Reply != socks5.RepSuccess {
		_, _ = zeroReply(h.Reply).WriteTo(c)
		return nil
	}

	d := net.Dialer{}
	dst, err := d.DialContext(ctx, "tcp", req.Address())
	if err != nil {
		_, _ = zeroReply(socks5.RepHostUnreachable).WriteTo(c)
		return nil
	}
	defer dst.Close()

	a, addr, port, err := socks5.ParseAddress(dst.LocalAddr().String())
	if err != nil {
		return err
	}
	if a == socks5.ATYPDomain {
		addr = addr[1:]
	}
	if _, err := socks5.NewReply(socks5.RepSuccess, a, addr, port).WriteTo(c); err != nil {
		return err
	}

	go func() {
		_, _ = io.Copy(dst, c)
		_ = dst.Close()
	}()
	_, _ = io.Copy(c, dst)

	return nil
}

func zeroReply(rep byte) *socks5.Reply {
	return socks5.NewReply(rep, socks5.ATYPIPv4, []byte{0x00, 0x00, 0x00, 0x00}, []byte{0x00, 0x00})
}
