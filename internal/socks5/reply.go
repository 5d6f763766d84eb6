package socks5

import (
	"fmt"
	"net"

	txsocks5 "github.com/txthinking/socks5"
)

const (
	// CmdConnect is the SOCKS5 CONNECT command value.
	CmdConnect = txsocks5.CmdConnect

	// MethodUsernamePassword is the only method the server selects.
	MethodUsernamePassword = txsocks5.MethodUsernamePassword

	// ATYPIPv4 and ATYPDomain are the address types accepted in requests.
	ATYPIPv4   = txsocks5.ATYPIPv4
	ATYPDomain = txsocks5.ATYPDomain

	// RepSuccess is the reply code for an established connection.
	RepSuccess = txsocks5.RepSuccess

	// RepGeneralFailure is the reply code sent when the target could not be
	// resolved or reached. RFC 1928 names code 5 "connection refused".
	RepGeneralFailure = txsocks5.RepConnectionRefused
)

// Auth configures username/password authentication for SOCKS5 negotiation.
// An empty Username means no credentials.
type Auth struct {
	Username string
	Password string
}

// WriteSuccessReply writes a SOCKS5 success reply using localAddr as the bound
// address.
func WriteSuccessReply(conn net.Conn, localAddr net.Addr) error {
	a, addr, port, err := txsocks5.ParseAddress(localAddr.String())
	if err != nil {
		return fmt.Errorf("parse local address %q: %w", localAddr.String(), err)
	}
	if a == txsocks5.ATYPDomain {
		addr = addr[1:]
	}
	if _, err := txsocks5.NewReply(txsocks5.RepSuccess, a, addr, port).WriteTo(conn); err != nil {
		return fmt.Errorf("success reply: %w", err)
	}
	return nil
}

// WriteFailureReply writes a general failure reply carrying the address type
// of the request it answers, with an all-zero address and port.
func WriteFailureReply(conn net.Conn, atyp byte) error {
	if _, err := newZeroAddrReply(RepGeneralFailure, atyp).WriteTo(conn); err != nil {
		return fmt.Errorf("failure reply: %w", err)
	}
	return nil
}

func newZeroAddrReply(rep, atyp byte) *txsocks5.Reply {
	if atyp == txsocks5.ATYPDomain {
		// Zero-length name; NewReply adds the length prefix.
		return txsocks5.NewReply(rep, txsocks5.ATYPDomain, []byte{}, []byte{0x00, 0x00})
	}
	return txsocks5.NewReply(rep, txsocks5.ATYPIPv4, []byte{0x00, 0x00, 0x00, 0x00}, []byte{0x00, 0x00})
}
