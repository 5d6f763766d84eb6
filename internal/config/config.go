// Package config loads chainsocks settings from flags, environment variables
// and an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/die-net/chainsocks/internal/dialer"
)

// HopConfig is one entry of the YAML chain list.
type HopConfig struct {
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port,omitempty"`
	Username string `mapstructure:"username" yaml:"username,omitempty"`
	Password string `mapstructure:"password" yaml:"password,omitempty"`
}

// Config is the merged chainsocks configuration. Keys match flag names.
type Config struct {
	Listen   string `mapstructure:"listen" yaml:"listen"`
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password"`

	// Hops holds --hop URLs. When non-empty they replace Chain.
	Hops  []string    `mapstructure:"hop" yaml:"-"`
	Chain []HopConfig `mapstructure:"chain" yaml:"chain,omitempty"`

	ChainPassthrough bool `mapstructure:"chain-passthrough" yaml:"chain-passthrough"`
	MaxConns         int  `mapstructure:"max-conns" yaml:"max-conns"`

	DialTimeout        time.Duration `mapstructure:"dial-timeout" yaml:"dial-timeout"`
	NegotiationTimeout time.Duration `mapstructure:"negotiation-timeout" yaml:"negotiation-timeout"`
	TCPKeepAlive       string        `mapstructure:"tcp-keepalive" yaml:"tcp-keepalive"`

	DebugListen string `mapstructure:"debug-listen" yaml:"debug-listen,omitempty"`
	Verbose     bool   `mapstructure:"verbose" yaml:"verbose"`
}

// Validate reports the first problem that would stop the server from
// starting.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return errors.New("listen address is required")
	}
	if c.Username == "" {
		return errors.New("username is required")
	}
	if len(c.Username) > 255 || len(c.Password) > 255 {
		return errors.New("username and password must be at most 255 bytes")
	}
	if c.MaxConns < 0 {
		return fmt.Errorf("max-conns must be >= 0, got %d", c.MaxConns)
	}
	if c.DialTimeout < 0 || c.NegotiationTimeout < 0 {
		return errors.New("timeouts must be >= 0")
	}
	if _, err := c.KeepAlive(); err != nil {
		return fmt.Errorf("invalid tcp-keepalive: %w", err)
	}

	hops, err := c.ChainHops()
	if err != nil {
		return err
	}
	if c.ChainPassthrough && len(hops) == 0 {
		return errors.New("chain-passthrough requires at least one hop")
	}
	return nil
}

// ChainHops returns the configured chain, from --hop URLs if any were given
// and from the file's chain list otherwise.
func (c *Config) ChainHops() ([]dialer.Hop, error) {
	var hops []dialer.Hop

	urls := nonEmpty(c.Hops)
	if len(urls) > 0 {
		for i, s := range urls {
			h, err := dialer.ParseHop(s)
			if err != nil {
				return nil, fmt.Errorf("hop %d: %w", i, err)
			}
			hops = append(hops, h)
		}
		return hops, nil
	}

	for i, hc := range c.Chain {
		h := dialer.Hop{Host: hc.Host, Port: hc.Port, Username: hc.Username, Password: hc.Password}
		if h.Port == 0 {
			h.Port = 1080
		}
		if err := h.Validate(); err != nil {
			return nil, fmt.Errorf("chain entry %d: %w", i, err)
		}
		hops = append(hops, h)
	}
	return hops, nil
}

// KeepAlive parses TCPKeepAlive: on|off|keepidle:keepintvl:keepcnt.
func (c *Config) KeepAlive() (net.KeepAliveConfig, error) {
	s := strings.TrimSpace(strings.ToLower(c.TCPKeepAlive))
	if s == "" {
		return net.KeepAliveConfig{}, errors.New("empty")
	}
	if s == "on" {
		return net.KeepAliveConfig{Enable: true}, nil
	}
	if s == "off" {
		return net.KeepAliveConfig{Enable: false}, nil
	}

	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return net.KeepAliveConfig{}, errors.New("expected on|off|keepidle:keepintvl:keepcnt")
	}
	keepIdle, err := parsePositiveInt(parts[0])
	if err != nil {
		return net.KeepAliveConfig{}, fmt.Errorf("keepidle: %w", err)
	}
	keepIntvl, err := parsePositiveInt(parts[1])
	if err != nil {
		return net.KeepAliveConfig{}, fmt.Errorf("keepintvl: %w", err)
	}
	keepCnt, err := parsePositiveInt(parts[2])
	if err != nil {
		return net.KeepAliveConfig{}, fmt.Errorf("keepcnt: %w", err)
	}

	return net.KeepAliveConfig{
		Enable:   true,
		Idle:     time.Duration(keepIdle) * time.Second,
		Interval: time.Duration(keepIntvl) * time.Second,
		Count:    keepCnt,
	}, nil
}

// Redacted returns a copy with every password replaced.
func (c *Config) Redacted() *Config {
	r := *c
	r.Password = redact(r.Password)
	r.Hops = nil
	r.Chain = nil

	hops, err := c.ChainHops()
	if err != nil {
		r.Chain = append([]HopConfig(nil), c.Chain...)
		for i := range r.Chain {
			r.Chain[i].Password = redact(r.Chain[i].Password)
		}
		return &r
	}
	for _, h := range hops {
		r.Chain = append(r.Chain, HopConfig{Host: h.Host, Port: h.Port, Username: h.Username, Password: redact(h.Password)})
	}
	return &r
}

// WriteYAML writes the redacted configuration to w.
func (c *Config) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c.Redacted()); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return enc.Close()
}

func redact(s string) string {
	if s == "" {
		return ""
	}
	return "REDACTED"
}

func nonEmpty(ss []string) []string {
	var out []string
	for _, s := range ss {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func parsePositiveInt(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, errors.New("must be > 0")
	}
	return n, nil
}
