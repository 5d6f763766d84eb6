package dialer

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/die-net/chainsocks/internal/socks5"
)

const defaultHopPort = 1080

// Hop describes one upstream SOCKS5 proxy in a chain.
type Hop struct {
	Host     string
	Port     int
	Username string
	Password string
}

// ParseHop parses socks5://[user:pass@]host[:port].
//
// The scheme is case-insensitive and the port defaults to 1080.
func ParseHop(s string) (Hop, error) {
	u, err := url.Parse(s)
	if err != nil {
		return Hop{}, fmt.Errorf("invalid url: %w", err)
	}

	switch strings.ToLower(u.Scheme) {
	case "socks5":
	case "":
		return Hop{}, errors.New("invalid url: missing scheme")
	default:
		return Hop{}, fmt.Errorf("invalid url scheme: %q", u.Scheme)
	}

	if u.Path != "" && u.Path != "/" {
		return Hop{}, errors.New("invalid url: path should be empty")
	}

	h := Hop{Host: u.Hostname(), Port: defaultHopPort}
	if p := u.Port(); p != "" {
		h.Port, err = strconv.Atoi(p)
		if err != nil {
			return Hop{}, fmt.Errorf("invalid port %q: %w", p, err)
		}
	}
	if u.User != nil {
		h.Username = u.User.Username()
		h.Password, _ = u.User.Password()
	}

	if err := h.Validate(); err != nil {
		return Hop{}, err
	}
	return h, nil
}

// Validate checks that the hop can be dialed and, if credentials are set,
// that they fit the one-byte RFC 1929 length fields.
func (h Hop) Validate() error {
	if h.Host == "" {
		return errors.New("hop: missing host")
	}
	if h.Port <= 0 || h.Port > 65535 {
		return fmt.Errorf("hop %s: port out of range", h.Host)
	}
	if h.Username == "" && h.Password != "" {
		return fmt.Errorf("hop %s: password without username", h.Host)
	}
	if len(h.Username) > 255 || len(h.Password) > 255 {
		return fmt.Errorf("hop %s: credentials longer than 255 bytes", h.Host)
	}
	return nil
}

// Address returns host:port.
func (h Hop) Address() string {
	return net.JoinHostPort(h.Host, strconv.Itoa(h.Port))
}

// Auth returns the credentials to offer the hop.
func (h Hop) Auth() socks5.Auth {
	return socks5.Auth{Username: h.Username, Password: h.Password}
}

// String returns the hop as a URL with the password omitted.
func (h Hop) String() string {
	u := url.URL{Scheme: "socks5", Host: h.Address()}
	if h.Username != "" {
		u.User = url.User(h.Username)
	}
	return u.String()
}
