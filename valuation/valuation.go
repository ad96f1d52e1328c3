// Package valuation derives per-holding and aggregate figures from holdings
// and a conversion table. Everything here is pure.
package valuation

import (
	"math"

	"orbitfolio/domain"
)

// Rates the conversion factors valuation needs. A nil Rates means no
// table is available.
type Rates interface {
	Factor(c domain.Currency) (domain.Rate, bool)
}

// Figures invested, market value and P&L in one currency
type Figures struct {
	Invested   float64 `json:"invested"`
	Value      float64 `json:"value"`
	PnL        float64 `json:"pnl"`
	PnLPercent float64 `json:"pnl_percent"`
}

func figures(invested, value float64) Figures {
	f := Figures{Invested: invested, Value: value, PnL: value - invested}
	if invested != 0 {
		f.PnLPercent = f.PnL / invested * 100
	}
	return f
}

func (f Figures) add(g Figures) Figures {
	return figures(f.Invested+g.Invested, f.Value+g.Value)
}

func (f Figures) scale(r domain.Rate) Figures {
	return figures(f.Invested*float64(r), f.Value*float64(r))
}

// Available reports whether the figures are defined and finite.
func (f Figures) Available() bool {
	for _, v := range []float64{f.Invested, f.Value, f.PnL, f.PnLPercent} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Unavailable is the marker for totals that cannot be computed.
func Unavailable() Figures {
	nan := math.NaN()
	return Figures{Invested: nan, Value: nan, PnL: nan, PnLPercent: nan}
}

// Position one holding valued in its native currency and, when rates are
// available, in the reporting currency.
type Position struct {
	Holding   domain.Holding
	Native    Figures
	Reporting *Figures
}

// Report the valuation of a whole ledger
type Report struct {
	Positions []Position
	Totals    Figures
	ByZone    map[domain.Zone]Figures
	ByClass   map[domain.AssetClass]Figures
}

// Native values h in its own currency. It never needs rates.
func Native(h domain.Holding) Figures {
	return figures(h.Quantity*h.AvgPrice, h.Quantity*h.CurrentPrice)
}

// Convert expresses native figures of currency c in the reporting
// currency. ok is false when rates has no factor for c.
func Convert(f Figures, c domain.Currency, rates Rates) (Figures, bool) {
	if c == domain.ReportingCurrency {
		return f, true
	}
	if rates == nil {
		return Figures{}, false
	}
	r, ok := rates.Factor(c)
	if !ok {
		return Figures{}, false
	}
	return f.scale(r), true
}

// hasRates is false for a nil Rates and for a typed nil table.
func hasRates(r Rates) bool {
	if r == nil {
		return false
	}
	_, ok := r.Factor(domain.ReportingCurrency)
	return ok
}

// Value derives the report for holdings. When rates is absent, or lacks a
// factor some holding needs, every aggregate is Unavailable while native
// figures are still filled in. This holds even for a ledger holding only
// reporting-currency positions, or none at all.
func Value(holdings []domain.Holding, rates Rates) Report {
	report := Report{
		Positions: make([]Position, 0, len(holdings)),
		ByZone:    map[domain.Zone]Figures{},
		ByClass:   map[domain.AssetClass]Figures{},
	}

	complete := hasRates(rates)
	for _, h := range holdings {
		p := Position{Holding: h, Native: Native(h)}
		if complete {
			if conv, ok := Convert(p.Native, h.Currency(), rates); ok {
				p.Reporting = &conv
				report.Totals = report.Totals.add(conv)
				report.ByZone[h.Zone] = report.ByZone[h.Zone].add(conv)
				report.ByClass[h.Class] = report.ByClass[h.Class].add(conv)
			} else {
				complete = false
			}
		}
		report.Positions = append(report.Positions, p)
	}

	if !complete {
		report.Totals = Unavailable()
		for i := range report.Positions {
			report.Positions[i].Reporting = nil
		}
		for _, z := range domain.Zones {
			report.ByZone[z] = Unavailable()
		}
		for _, c := range domain.AssetClasses {
			report.ByClass[c] = Unavailable()
		}
	}
	return report
}
