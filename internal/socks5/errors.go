package socks5

import "errors"

var (
	// ErrProtocolViolation marks an unexpected version or field value, a
	// truncated message, or an expired negotiation deadline. The session is
	// closed without a reply.
	ErrProtocolViolation = errors.New("socks5: protocol violation")

	// ErrNoAcceptableMethod is returned when a client does not offer
	// username/password authentication. No reply is written.
	ErrNoAcceptableMethod = errors.New("socks5: username/password method not offered")

	// ErrAuthFailure is returned after a failure status has been written for
	// a credential mismatch.
	ErrAuthFailure = errors.New("socks5: authentication failed")

	// ErrUnsupportedCommand is returned for any request other than CONNECT.
	ErrUnsupportedCommand = errors.New("socks5: unsupported command")
)
