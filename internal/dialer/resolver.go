package dialer

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrResolve wraps every name resolution failure.
var ErrResolve = errors.New("resolve")

// Resolver turns a host name into an IPv4 address.
type Resolver interface {
	LookupIPv4(ctx context.Context, host string) (net.IP, error)
}

type netResolver struct {
	cfg      Config
	resolver *net.Resolver
}

// NewResolver returns a Resolver backed by the system resolver. Each lookup
// is a single attempt bounded by cfg.DialTimeout; results are not cached.
func NewResolver(cfg Config) Resolver {
	return &netResolver{cfg: cfg, resolver: net.DefaultResolver}
}

// LookupIPv4 returns the first IPv4 address for host.
func (r *netResolver) LookupIPv4(ctx context.Context, host string) (net.IP, error) {
	if r.cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.DialTimeout)
		defer cancel()
	}

	ips, err := r.resolver.LookupIP(ctx, "ip4", host)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrResolve, host, err)
	}
	for _, ip := range ips {
		if ip4 := ip.To4(); ip4 != nil {
			return ip4, nil
		}
	}
	return nil, fmt.Errorf("%w %s: no ipv4 address", ErrResolve, host)
}
