// Package display formats amounts for people.
package display

import (
	"fmt"
	"math"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"

	"orbitfolio/domain"
)

// NotAvailable is shown in place of an amount that cannot be computed.
const NotAvailable = "n/a"

// Amount formats v in currency c, e.g. "₹1,000.00" or "$12.05".
func Amount(v float64, c domain.Currency) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return NotAvailable
	}
	cur := money.GetCurrency(string(c))
	if cur == nil {
		return fmt.Sprintf("%.2f %s", v, c)
	}
	factor, _ := decimal.NewFromInt(10).PowInt32(int32(cur.Fraction))
	minor := decimal.NewFromFloat(v).Mul(factor).Round(0).IntPart()
	return money.New(minor, string(c)).Display()
}

// Percent formats p with two decimals and a sign, e.g. "+1.25%".
func Percent(p float64) string {
	if math.IsNaN(p) || math.IsInf(p, 0) {
		return NotAvailable
	}
	return fmt.Sprintf("%+.2f%%", p)
}
