package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/go-kit/log"
	"github.com/google/subcommands"

	"orbitfolio/config"
	"orbitfolio/display"
	"orbitfolio/domain"
	"orbitfolio/fxrates"
	"orbitfolio/pricing"
	"orbitfolio/valuation"
)

// valueCmd values a holdings file once
type valueCmd struct {
	holdings string
	fixed    bool
	render   bool
}

func (*valueCmd) Name() string     { return "value" }
func (*valueCmd) Synopsis() string { return "value a holdings file in the reporting currency" }
func (*valueCmd) Usage() string {
	return `value -holdings <file> [-fixed] [-render]

  Loads the holdings, fetches rates once and prints a markdown report.
  Totals are shown as n/a when rates cannot be fetched.
`
}

func (c *valueCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.holdings, "holdings", "holdings.toml", "TOML file of holdings")
	f.BoolVar(&c.fixed, "fixed", false, "use the cost basis as current price instead of simulating one")
	f.BoolVar(&c.render, "render", false, "render the markdown report for the terminal")
}

func (c *valueCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		return subcommands.ExitUsageError
	}
	logger := newLogger(os.Stderr, cfg.Logging.Level)

	var prices pricing.Source = pricing.NewSimulator(cfg.Simulator.Jitter)
	if c.fixed {
		prices = pricing.Fixed{}
	}
	holdings := newLedger(prices, log.NewNopLogger())
	if err := loadHoldings(c.holdings, holdings); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading holdings: %v\n", err)
		return subcommands.ExitFailure
	}

	cache := newRateCache(cfg, logger)
	// a failed fetch still yields a report, with totals unavailable
	_ = cache.Refresh(ctx)
	snapshot := cache.Snapshot()

	var rates valuation.Rates
	if snapshot.Table != nil {
		rates = snapshot.Table
	}
	md := reportMarkdown(valuation.Value(holdings.Holdings(), rates), snapshot)

	if c.render {
		out, err := glamour.Render(md, "dark")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error rendering report: %v\n", err)
			return subcommands.ExitFailure
		}
		md = out
	}
	fmt.Fprint(os.Stdout, md)
	return subcommands.ExitSuccess
}

// reportMarkdown lays the report out as markdown tables
func reportMarkdown(r valuation.Report, s fxrates.Snapshot) string {
	var b strings.Builder
	rc := domain.ReportingCurrency

	fmt.Fprintf(&b, "# Portfolio\n\n")
	fmt.Fprintf(&b, "Rates: %s", s.Status)
	if s.Stale {
		fmt.Fprint(&b, " (stale)")
	}
	fmt.Fprint(&b, "\n\n")

	fmt.Fprintf(&b, "| Total | %s |\n|---|---:|\n", rc)
	fmt.Fprintf(&b, "| Invested | %s |\n", display.Amount(r.Totals.Invested, rc))
	fmt.Fprintf(&b, "| Value | %s |\n", display.Amount(r.Totals.Value, rc))
	fmt.Fprintf(&b, "| P&L | %s (%s) |\n\n", display.Amount(r.Totals.PnL, rc), display.Percent(r.Totals.PnLPercent))

	fmt.Fprint(&b, "## Holdings\n\n")
	fmt.Fprint(&b, "| # | Asset | Type | Market | Quantity | Avg Buy | Current | Invested | Value | P&L |\n")
	fmt.Fprint(&b, "|---|---|---|---|---:|---:|---:|---:|---:|---:|\n")
	for _, p := range r.Positions {
		h, c := p.Holding, p.Holding.Currency()
		fmt.Fprintf(&b, "| %d | %s | %s | %s | %g | %s | %s | %s | %s | %s (%s) |\n",
			h.ID, h.Label, h.Class, h.Zone, h.Quantity,
			display.Amount(h.AvgPrice, c),
			display.Amount(h.CurrentPrice, c),
			display.Amount(p.Native.Invested, c),
			display.Amount(p.Native.Value, c),
			display.Amount(p.Native.PnL, c),
			display.Percent(p.Native.PnLPercent),
		)
	}
	if len(r.Positions) == 0 {
		fmt.Fprint(&b, "\nNo holdings yet.\n")
	}

	if r.Totals.Available() && len(r.Positions) > 0 {
		fmt.Fprintf(&b, "\n## By market (%s)\n\n| Market | Invested | Value | P&L |\n|---|---:|---:|---:|\n", rc)
		for _, z := range domain.Zones {
			if f, ok := r.ByZone[z]; ok {
				writeGroupRow(&b, string(z), f)
			}
		}
		fmt.Fprintf(&b, "\n## By type (%s)\n\n| Type | Invested | Value | P&L |\n|---|---:|---:|---:|\n", rc)
		for _, c := range domain.AssetClasses {
			if f, ok := r.ByClass[c]; ok {
				writeGroupRow(&b, string(c), f)
			}
		}
	}
	return b.String()
}

func writeGroupRow(w io.Writer, name string, f valuation.Figures) {
	rc := domain.ReportingCurrency
	fmt.Fprintf(w, "| %s | %s | %s | %s |\n", name,
		display.Amount(f.Invested, rc), display.Amount(f.Value, rc), display.Amount(f.PnL, rc))
}
