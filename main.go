package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // Intentionally exposed on debug port.
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/die-net/chainsocks/internal/config"
	"github.com/die-net/chainsocks/internal/dialer"
	"github.com/die-net/chainsocks/internal/proxy"
	"github.com/die-net/chainsocks/internal/socks5"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	fs := config.NewFlagSet(os.Args[0])
	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := config.Load(fs)
	if err != nil {
		return err
	}

	if printConfig, _ := fs.GetBool("print-config"); printConfig {
		return cfg.WriteYAML(os.Stdout)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Validate already checked both of these.
	ka, _ := cfg.KeepAlive()
	hops, _ := cfg.ChainHops()

	dialCfg := dialer.Config{
		DialTimeout:        cfg.DialTimeout,
		NegotiationTimeout: cfg.NegotiationTimeout,
		KeepAlive:          ka,
	}

	pcfg := proxy.Config{
		NegotiationTimeout: cfg.NegotiationTimeout,
		Auth:               socks5.Auth{Username: cfg.Username, Password: cfg.Password},
		Passthrough:        cfg.ChainPassthrough,
		MaxConns:           cfg.MaxConns,
	}

	pcfg.Dialer, err = dialer.New(dialCfg, hops)
	if err != nil {
		return fmt.Errorf("invalid chain: %w", err)
	}

	// Chained sessions hand domain names to the last hop unresolved.
	if len(hops) == 0 {
		pcfg.Resolver = dialer.NewResolver(dialCfg)
	}

	g, ctx := errgroup.WithContext(context.Background())

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.DebugListen != "" {
		debugSrv := &http.Server{Handler: http.DefaultServeMux} //nolint:gosec // Not concerned about timeouts on debug port.
		lc := net.ListenConfig{KeepAliveConfig: ka}
		debugLn, err := lc.Listen(ctx, "tcp", cfg.DebugListen)
		if err != nil {
			return fmt.Errorf("debug listen: %w", err)
		}
		context.AfterFunc(ctx, func() {
			_ = debugSrv.Close()
			_ = debugLn.Close()
		})

		g.Go(func() error {
			if err := debugSrv.Serve(debugLn); err != nil {
				return fmt.Errorf("debug serve: %w", err)
			}
			return nil
		})
		log.Printf("debug listening on %s", cfg.DebugListen)
	}

	s5, err := proxy.NewSOCKS5Server(ctx, pcfg, cfg.Verbose)
	if err != nil {
		return err
	}

	ln, err := proxy.ListenTCP(ctx, "tcp", cfg.Listen, ka)
	if err != nil {
		return fmt.Errorf("socks5 listen: %w", err)
	}
	context.AfterFunc(ctx, func() {
		_ = ln.Close()
	})

	g.Go(func() error {
		if err := s5.Serve(ln); err != nil {
			return fmt.Errorf("socks5 serve: %w", err)
		}
		return nil
	})

	log.Printf("socks5 proxy listening on %s (%s)", cfg.Listen, describeChain(hops, cfg.ChainPassthrough))

	err = g.Wait()
	if errors.Is(err, http.ErrServerClosed) {
		err = nil
	}

	log.Print("shutting down")
	return err
}

func describeChain(hops []dialer.Hop, passthrough bool) string {
	if len(hops) == 0 {
		return "direct"
	}

	names := make([]string, len(hops))
	for i, h := range hops {
		names[i] = h.String()
	}

	mode := "chain"
	if passthrough {
		mode = "passthrough chain"
	}
	return mode + " " + strings.Join(names, " -> ")
}
