package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	nhttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/subcommands"

	"orbitfolio/config"
	"orbitfolio/http"
	"orbitfolio/pricing"
)

// serveCmd runs the HTTP API with a periodically refreshed rate cache
type serveCmd struct {
	holdings string
}

func (*serveCmd) Name() string     { return "serve" }
func (*serveCmd) Synopsis() string { return "serve the portfolio API" }
func (*serveCmd) Usage() string {
	return `serve [-holdings <file>]

  Serves the holdings and valuation API. Rates are fetched at startup and
  then on every refresh period.
`
}

func (c *serveCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.holdings, "holdings", "", "TOML file of holdings to start with")
}

func (c *serveCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		return subcommands.ExitUsageError
	}
	logger := newLogger(os.Stderr, cfg.Logging.Level)

	holdings := newLedger(pricing.NewSimulator(cfg.Simulator.Jitter), logger)
	if c.holdings != "" {
		if err := loadHoldings(c.holdings, holdings); err != nil {
			level.Error(logger).Log("msg", "loading holdings", "err", err)
			return subcommands.ExitFailure
		}
	}

	cache := newRateCache(cfg, logger)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cache.Start(ctx)
	defer cache.Stop()

	handler := http.NewServer(holdings, cache, log.With(logger, "component", "http"))
	server := &nhttp.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		level.Info(logger).Log("msg", "listening", "addr", cfg.Server.Addr)
		errc <- server.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, nhttp.ErrServerClosed) {
			level.Error(logger).Log("msg", "server stopped", "err", err)
			return subcommands.ExitFailure
		}
	case <-ctx.Done():
		level.Info(logger).Log("msg", "shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			level.Error(logger).Log("msg", "shutdown", "err", err)
			return subcommands.ExitFailure
		}
	}
	return subcommands.ExitSuccess
}
