// Package socks5 implements the SOCKS5 wire steps used by chainsocks.
//
// The server side covers method negotiation (username/password only), the
// RFC 1929 sub-negotiation, CONNECT request decoding and reply encoding. The
// client side covers the handshake chainsocks runs against each upstream hop.
//
// Framing is delegated to github.com/txthinking/socks5 where its types match
// the behavior chainsocks needs; the remaining steps are decoded by hand so
// that every failure maps onto one of the error sentinels below.
package socks5
