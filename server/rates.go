package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/google/subcommands"

	"orbitfolio/config"
	"orbitfolio/domain"
	"orbitfolio/fxrates"
)

// ratesCmd fetches the conversion factors once
type ratesCmd struct{}

func (*ratesCmd) Name() string     { return "rates" }
func (*ratesCmd) Synopsis() string { return "fetch and print the current conversion factors" }
func (*ratesCmd) Usage() string {
	return `rates

  Fetches the latest rates once and prints how many units of the reporting
  currency one unit of each native currency is worth.
`
}

func (*ratesCmd) SetFlags(*flag.FlagSet) {}

func (*ratesCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		return subcommands.ExitUsageError
	}
	cache := newRateCache(cfg, newLogger(os.Stderr, cfg.Logging.Level))
	if err := cache.Refresh(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error fetching rates: %v\n", err)
		return subcommands.ExitFailure
	}
	printRates(os.Stdout, cache.Snapshot())
	return subcommands.ExitSuccess
}

func printRates(w io.Writer, s fxrates.Snapshot) {
	if s.Table == nil {
		fmt.Fprintf(w, "no rates (%s)\n", s.Status)
		return
	}
	for _, c := range domain.ConvertedCurrencies() {
		f, _ := s.Table.Factor(c)
		fmt.Fprintf(w, "1 %s = %.6f %s\n", c, f, domain.ReportingCurrency)
	}
}
