package socks5

import (
	"errors"
	"fmt"
	"net"

	txsocks5 "github.com/txthinking/socks5"
)

// ErrHopAuthRequired is returned when an upstream server selects
// username/password but no credentials are configured for it.
var ErrHopAuthRequired = errors.New("upstream requires username/password")

// ReplyError is a CONNECT reply from an upstream server that was not a
// success.
type ReplyError struct {
	Address string
	Ver     byte
	Rep     byte
}

func (e *ReplyError) Error() string {
	if e.Ver != txsocks5.Ver {
		return fmt.Sprintf("connect %s: reply version %d", e.Address, e.Ver)
	}
	if text, ok := replyText[e.Rep]; ok {
		return fmt.Sprintf("connect %s: %s", e.Address, text)
	}
	return fmt.Sprintf("connect %s: reply code %d", e.Address, e.Rep)
}

var replyText = map[byte]string{
	0x01: "general server failure",
	0x02: "connection not allowed by ruleset",
	0x03: "network unreachable",
	0x04: "host unreachable",
	0x05: "connection refused",
	0x06: "TTL expired",
	0x07: "command not supported",
	0x08: "address type not supported",
}

// ClientDial runs a whole client handshake on conn: negotiation,
// authentication if selected, and a CONNECT to address.
func ClientDial(conn net.Conn, auth Auth, address string) error {
	if err := ClientNegotiate(conn, auth); err != nil {
		return err
	}
	return ClientConnect(conn, address)
}

// ClientNegotiate offers no-auth, plus username/password when auth carries a
// username, and completes whichever method the server selects.
func ClientNegotiate(conn net.Conn, auth Auth) error {
	methods := []byte{txsocks5.MethodNone}
	if auth.Username != "" {
		methods = append(methods, MethodUsernamePassword)
	}

	if _, err := txsocks5.NewNegotiationRequest(methods).WriteTo(conn); err != nil {
		return fmt.Errorf("send greeting: %w", err)
	}
	sel, err := txsocks5.NewNegotiationReplyFrom(conn)
	if err != nil {
		return fmt.Errorf("read method selection: %w", err)
	}
	if sel.Ver != txsocks5.Ver {
		return fmt.Errorf("method selection version %d", sel.Ver)
	}

	switch sel.Method {
	case txsocks5.MethodNone:
		return nil
	case MethodUsernamePassword:
		if auth.Username == "" {
			return ErrHopAuthRequired
		}
		return clientAuthenticate(conn, auth)
	default:
		return fmt.Errorf("upstream selected method %#x", sel.Method)
	}
}

func clientAuthenticate(conn net.Conn, auth Auth) error {
	req := txsocks5.NewUserPassNegotiationRequest([]byte(auth.Username), []byte(auth.Password))
	if _, err := req.WriteTo(conn); err != nil {
		return fmt.Errorf("send credentials: %w", err)
	}

	rep, err := txsocks5.NewUserPassNegotiationReplyFrom(conn)
	if err != nil {
		return fmt.Errorf("read auth status: %w", err)
	}
	if rep.Status != txsocks5.UserPassStatusSuccess {
		return fmt.Errorf("upstream rejected user %q: status %#x", auth.Username, rep.Status)
	}
	return nil
}

// ClientConnect asks the server on conn to CONNECT to address, an IPv4
// literal or a domain name with a port. A reply other than success is
// returned as a *ReplyError.
func ClientConnect(conn net.Conn, address string) error {
	atyp, host, port, err := txsocks5.ParseAddress(address)
	if err != nil {
		return fmt.Errorf("parse address %q: %w", address, err)
	}
	if atyp == ATYPDomain {
		// ParseAddress keeps the length prefix; NewRequest adds its own.
		host = host[1:]
	}

	if _, err := txsocks5.NewRequest(CmdConnect, atyp, host, port).WriteTo(conn); err != nil {
		return fmt.Errorf("send connect: %w", err)
	}

	rep, err := txsocks5.NewReplyFrom(conn)
	if err != nil {
		return fmt.Errorf("read connect reply: %w", err)
	}
	if rep.Ver != txsocks5.Ver || rep.Rep != RepSuccess {
		return &ReplyError{Address: address, Ver: rep.Ver, Rep: rep.Rep}
	}
	return nil
}
