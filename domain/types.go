package domain

import (
	"fmt"
	"strings"
)

// Currency a currency code
type Currency string

const (
	INR Currency = "INR"
	USD Currency = "USD"
	CAD Currency = "CAD"
)

// ReportingCurrency the currency totals are expressed in
const ReportingCurrency = USD

// Rate units of reporting currency per one unit of a native currency
type Rate float64

// Rates conversion factors keyed by native currency
type Rates map[Currency]Rate

// Zone a currency zone a holding trades in
type Zone string

const (
	India  Zone = "india"
	US     Zone = "us"
	Canada Zone = "canada"
)

// ReportingZone is the zone whose currency is the reporting currency.
const ReportingZone = US

// Zones lists every supported zone in display order.
var Zones = []Zone{India, US, Canada}

// Currency returns the native currency of the zone, or "" for an unknown
// zone so that it can never be converted.
func (z Zone) Currency() Currency {
	switch z {
	case India:
		return INR
	case US:
		return USD
	case Canada:
		return CAD
	default:
		return ""
	}
}

// ConvertedCurrencies are the native currencies that need a conversion factor.
func ConvertedCurrencies() []Currency {
	var cs []Currency
	for _, z := range Zones {
		if z != ReportingZone {
			cs = append(cs, z.Currency())
		}
	}
	return cs
}

// ParseZone accepts a zone name in any case.
func ParseZone(s string) (Zone, error) {
	z := Zone(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Zones {
		if z == known {
			return z, nil
		}
	}
	return "", fmt.Errorf("unknown zone: %q", s)
}

// AssetClass kind of asset held
type AssetClass string

const (
	Equity AssetClass = "equity"
	Fund   AssetClass = "fund"
	Crypto AssetClass = "crypto"
)

// AssetClasses lists every supported asset class in display order.
var AssetClasses = []AssetClass{Equity, Fund, Crypto}

// ParseAssetClass accepts an asset class name in any case.
func ParseAssetClass(s string) (AssetClass, error) {
	c := AssetClass(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AssetClasses {
		if c == known {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown asset class: %q", s)
}

// Holding one position. Prices are in the zone's native currency.
type Holding struct {
	ID           int64      `json:"id"`
	Label        string     `json:"label"`
	Class        AssetClass `json:"class"`
	Zone         Zone       `json:"zone"`
	Quantity     float64    `json:"quantity"`
	AvgPrice     float64    `json:"avg_price"`
	CurrentPrice float64    `json:"current_price"`
}

// Currency returns the holding's native currency.
func (h Holding) Currency() Currency {
	return h.Zone.Currency()
}
