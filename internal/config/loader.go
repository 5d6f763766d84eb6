package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. CHAINSOCKS_PASSWORD or
// CHAINSOCKS_DIAL_TIMEOUT.
const EnvPrefix = "CHAINSOCKS"

// NewFlagSet defines every chainsocks flag with its default.
func NewFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SortFlags = false

	fs.String("config", "", "Path to a YAML configuration file. Flags and environment override its values.")
	fs.String("listen", "127.0.0.1:1080", "SOCKS5 listen address")
	fs.String("username", "", "Username clients must authenticate with")
	fs.String("password", "", "Password clients must authenticate with")
	fs.StringArray("hop", nil, "Upstream hop socks5://[user:pass@]host[:port]; repeat in chain order. Replaces the file's chain list.")
	fs.Bool("chain-passthrough", false, "Skip reading client requests and relay them to the last hop unmodified")
	fs.Int("max-conns", 0, "Maximum concurrent sessions (0 = unlimited)")
	fs.Duration("dial-timeout", 10*time.Second, "Timeout for outbound DNS lookup and TCP connect")
	fs.Duration("negotiation-timeout", 10*time.Second, "Timeout for each SOCKS5 handshake, inbound and per hop")
	fs.String("tcp-keepalive", "45:45:3", "TCP keepalive: on|off|keepidle:keepintvl:keepcnt")
	fs.String("debug-listen", "", "Debug HTTP listen address exposing /debug/pprof and /debug/vars (e.g. 127.0.0.1:6060). Empty disables.")
	fs.Bool("verbose", false, "Enable per-connection error logging")
	fs.Bool("print-config", false, "Print the effective configuration as YAML and exit")

	return fs
}

// Load merges fs (already parsed), CHAINSOCKS_* environment variables and
// the file named by --config. A changed flag wins over the environment,
// which wins over the file, which wins over flag defaults.
func Load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("bind flags: %w", err)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}
