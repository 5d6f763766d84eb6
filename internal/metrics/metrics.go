// Package metrics publishes process-wide SOCKS5 session counters through
// expvar. They are served at /debug/vars on the debug listener.
package metrics

import "expvar"

var (
	sessionsTotal  = expvar.NewInt("socks5_sessions_total")
	sessionsActive = expvar.NewInt("socks5_sessions_active")

	rejected            = expvar.NewInt("socks5_rejected_total")
	authFailures        = expvar.NewInt("socks5_auth_failures_total")
	unsupportedCommands = expvar.NewInt("socks5_unsupported_commands_total")
	connectFailures     = expvar.NewInt("socks5_connect_failures_total")
	chainFailures       = expvar.NewInt("socks5_chain_failures_total")

	bytesUpstream   = expvar.NewInt("socks5_bytes_upstream_total")
	bytesDownstream = expvar.NewInt("socks5_bytes_downstream_total")
)

func SessionStarted() {
	sessionsTotal.Add(1)
	sessionsActive.Add(1)
}

func SessionEnded() {
	sessionsActive.Add(-1)
}

// Rejected counts sessions closed for a protocol violation or a missing
// username/password method.
func Rejected() {
	rejected.Add(1)
}

func AuthFailure() {
	authFailures.Add(1)
}

func UnsupportedCommand() {
	unsupportedCommands.Add(1)
}

func ConnectFailure() {
	connectFailures.Add(1)
}

func ChainFailure() {
	chainFailures.Add(1)
}

// Relayed records bytes forwarded client to upstream (up) and upstream to
// client (down).
func Relayed(up, down int64) {
	bytesUpstream.Add(up)
	bytesDownstream.Add(down)
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	SessionsTotal       int64
	SessionsActive      int64
	Rejected            int64
	AuthFailures        int64
	UnsupportedCommands int64
	ConnectFailures     int64
	ChainFailures       int64
	BytesUpstream       int64
	BytesDownstream     int64
}

func Read() Snapshot {
	return Snapshot{
		SessionsTotal:       sessionsTotal.Value(),
		SessionsActive:      sessionsActive.Value(),
		Rejected:            rejected.Value(),
		AuthFailures:        authFailures.Value(),
		UnsupportedCommands: unsupportedCommands.Value(),
		ConnectFailures:     connectFailures.Value(),
		ChainFailures:       chainFailures.Value(),
		BytesUpstream:       bytesUpstream.Value(),
		BytesDownstream:     bytesDownstream.Value(),
	}
}
