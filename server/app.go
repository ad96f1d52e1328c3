package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	toml "github.com/pelletier/go-toml/v2"

	"orbitfolio/config"
	"orbitfolio/domain"
	"orbitfolio/fxrates"
	"orbitfolio/ledger"
	"orbitfolio/pricing"
)

// newLogger returns a logfmt logger filtered at the configured level
func newLogger(w io.Writer, lvl string) log.Logger {
	logger := log.NewLogfmtLogger(log.NewSyncWriter(w))
	logger = log.With(logger, "ts", log.DefaultTimestampUTC, "caller", log.DefaultCaller)

	var option level.Option
	switch strings.ToLower(lvl) {
	case "debug":
		option = level.AllowDebug()
	case "warn":
		option = level.AllowWarn()
	case "error":
		option = level.AllowError()
	default:
		option = level.AllowInfo()
	}
	return level.NewFilter(logger, option)
}

// newRateCache wires the provider client, its logging and the cache
func newRateCache(cfg *config.Config, logger log.Logger) *fxrates.Cache {
	provider := fxrates.NewService(cfg.Rates.APIKey,
		fxrates.WithBaseURL(cfg.Rates.BaseURL),
		fxrates.WithTimeout(cfg.Rates.GetTimeout()),
		fxrates.WithRateLimit(cfg.Rates.RateLimit),
	)
	provider = fxrates.NewLoggingService(level.Debug(log.With(logger, "component", "rates_rest")), provider)

	return fxrates.NewCache(provider, cfg.Rates.GetPeriod(),
		fxrates.WithMaxAge(cfg.Rates.GetMaxAge()),
		fxrates.WithLogger(log.With(logger, "component", "rates_cache")),
	)
}

// newLedger wires the ledger with a price source and logging
func newLedger(prices pricing.Source, logger log.Logger) ledger.Service {
	l := ledger.NewService(prices)
	return ledger.NewLoggingService(level.Info(log.With(logger, "component", "ledger")), l)
}

// holdingsFile the TOML layout of a holdings file:
//
//	[[holding]]
//	label = "TCS"
//	class = "equity"
//	zone = "india"
//	quantity = 10
//	avg_price = 3450.5
type holdingsFile struct {
	Holdings []struct {
		Label    string  `toml:"label"`
		Class    string  `toml:"class"`
		Zone     string  `toml:"zone"`
		Quantity float64 `toml:"quantity"`
		AvgPrice float64 `toml:"avg_price"`
	} `toml:"holding"`
}

// loadHoldings adds every holding of the file at path to l, in file order.
func loadHoldings(path string, l ledger.Service) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading holdings: %w", err)
	}
	var file holdingsFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("decoding holdings %s: %w", path, err)
	}
	for i, h := range file.Holdings {
		draft := ledger.Draft{
			Label:    h.Label,
			Class:    domain.AssetClass(h.Class),
			Zone:     domain.Zone(h.Zone),
			Quantity: h.Quantity,
			AvgPrice: h.AvgPrice,
		}
		if _, err := l.Add(draft); err != nil {
			return fmt.Errorf("holding %d (%s): %w", i+1, h.Label, err)
		}
	}
	return nil
}
