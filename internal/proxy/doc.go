// Package proxy implements the chainsocks SOCKS5 listener.
//
// It contains the accept loop, the per-connection session state machine and
// shared connection plumbing such as keepalive listeners and the
// bidirectional relay.
package proxy
