package socks5

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"strconv"

	txsocks5 "github.com/txthinking/socks5"
)

const (
	userPassStatusSuccess = 0x00
	userPassStatusFailure = 0xff
)

// ServerNegotiate reads the client greeting and selects username/password
// authentication.
//
// If the client does not offer username/password, nothing is written and
// ErrNoAcceptableMethod is returned; the caller is expected to close conn.
func ServerNegotiate(conn net.Conn) error {
	neg, err := txsocks5.NewNegotiationRequestFrom(conn)
	if err != nil {
		return fmt.Errorf("%w: greeting: %w", ErrProtocolViolation, err)
	}
	if neg.Ver != txsocks5.Ver || len(neg.Methods) == 0 {
		return fmt.Errorf("%w: greeting version %d with %d methods", ErrProtocolViolation, neg.Ver, len(neg.Methods))
	}

	if !containsMethod(neg.Methods, txsocks5.MethodUsernamePassword) {
		return ErrNoAcceptableMethod
	}

	if _, err := txsocks5.NewNegotiationReply(txsocks5.MethodUsernamePassword).WriteTo(conn); err != nil {
		return fmt.Errorf("negotiation reply: %w", err)
	}
	return nil
}

// ServerAuthenticate runs the username/password sub-negotiation and compares
// the offered pair against auth.
//
// On mismatch a failure status is written and ErrAuthFailure is returned.
// Empty fields are read and compared like any other value.
func ServerAuthenticate(conn net.Conn, auth Auth) error {
	hdr := make([]byte, 2)
	if _, err := io.ReadFull(conn, hdr); err != nil {
		return fmt.Errorf("%w: userpass header: %w", ErrProtocolViolation, err)
	}
	if hdr[0] != txsocks5.UserPassVer {
		return fmt.Errorf("%w: userpass version %d", ErrProtocolViolation, hdr[0])
	}

	uname := make([]byte, int(hdr[1]))
	if _, err := io.ReadFull(conn, uname); err != nil {
		return fmt.Errorf("%w: username: %w", ErrProtocolViolation, err)
	}

	plen := make([]byte, 1)
	if _, err := io.ReadFull(conn, plen); err != nil {
		return fmt.Errorf("%w: password length: %w", ErrProtocolViolation, err)
	}
	passwd := make([]byte, int(plen[0]))
	if _, err := io.ReadFull(conn, passwd); err != nil {
		return fmt.Errorf("%w: password: %w", ErrProtocolViolation, err)
	}

	if string(uname) != auth.Username || string(passwd) != auth.Password {
		_, _ = txsocks5.NewUserPassNegotiationReply(userPassStatusFailure).WriteTo(conn)
		return ErrAuthFailure
	}

	if _, err := txsocks5.NewUserPassNegotiationReply(userPassStatusSuccess).WriteTo(conn); err != nil {
		return fmt.Errorf("write userpass: %w", err)
	}
	return nil
}

// Request is a decoded client request.
//
// Host holds a dotted-decimal IPv4 address for ATYPIPv4 and the raw name for
// ATYPDomain.
type Request struct {
	Cmd  byte
	Atyp byte
	Host string
	Port uint16
}

// Address returns the request target as host:port.
func (r *Request) Address() string {
	return net.JoinHostPort(r.Host, strconv.Itoa(int(r.Port)))
}

// ReadRequest reads a request header, address and port.
//
// Only IPv4 and domain targets are accepted; an IPv6 target or an empty
// domain name is a protocol violation. The whole request is consumed before
// the command is checked, so a non-CONNECT request yields both the decoded
// Request and ErrUnsupportedCommand.
func ReadRequest(conn net.Conn) (*Request, error) {
	r, err := txsocks5.NewRequestFrom(conn)
	if err != nil {
		return nil, fmt.Errorf("%w: request: %w", ErrProtocolViolation, err)
	}

	req := &Request{Cmd: r.Cmd, Atyp: r.Atyp, Port: binary.BigEndian.Uint16(r.DstPort)}
	switch r.Atyp {
	case ATYPIPv4:
		req.Host = net.IP(r.DstAddr).String()
	case ATYPDomain:
		// DstAddr keeps the length prefix.
		req.Host = string(r.DstAddr[1:])
	default:
		return nil, fmt.Errorf("%w: address type %d", ErrProtocolViolation, r.Atyp)
	}

	if req.Cmd != CmdConnect {
		return req, fmt.Errorf("%w: %d", ErrUnsupportedCommand, req.Cmd)
	}
	return req, nil
}

func containsMethod(methods []byte, want byte) bool {
	for _, m := range methods {
		if m == want {
			return true
		}
	}
	return false
}
