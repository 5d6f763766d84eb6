// Package dialer provides the outbound side of chainsocks.
//
// Dialers implement a small interface (DialContext) and are used by the
// SOCKS5 server to reach a target either directly or through an ordered
// chain of upstream SOCKS5 hops. The package also holds the hop descriptor
// type and the IPv4 name resolver used on the direct path.
package dialer
