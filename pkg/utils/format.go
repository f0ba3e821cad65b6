package utils

import (
	"github.com/shopspring/decimal"
)

// NotAvailable is printed for metrics the provider did not report.
const NotAvailable = "N/A"

var (
	trillion = decimal.New(1, 12)
	billion  = decimal.New(1, 9)
	million  = decimal.New(1, 6)
	hundred  = decimal.New(1, 2)
)

// FormatPrice formats a price with exactly 2 decimal places.
// e.g., 420.5 → "420.50"
func FormatPrice(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// FormatUSD formats a price with a dollar sign and 2 decimal places.
// e.g., 420.55 → "$420.55", -3.1 → "-$3.10"
func FormatUSD(d decimal.Decimal) string {
	if d.IsNegative() {
		return "-$" + d.Abs().StringFixed(2)
	}
	return "$" + d.StringFixed(2)
}

// FormatCompactUSD formats a market capitalisation in compact form.
// e.g., 3.12e12 → "$3.12T", 812.4e9 → "$812.40B", 950e6 → "$950.00M".
// Zero or negative values are reported as N/A.
func FormatCompactUSD(d decimal.Decimal) string {
	switch {
	case !d.IsPositive():
		return NotAvailable
	case d.GreaterThanOrEqual(trillion):
		return "$" + d.Div(trillion).StringFixed(2) + "T"
	case d.GreaterThanOrEqual(billion):
		return "$" + d.Div(billion).StringFixed(2) + "B"
	case d.GreaterThanOrEqual(million):
		return "$" + d.Div(million).StringFixed(2) + "M"
	default:
		return "$" + d.StringFixed(2)
	}
}

// FormatPE formats a price/earnings ratio with one decimal place.
// e.g., 34.19 → "34.2"; nil → "N/A"
func FormatPE(pe *decimal.Decimal) string {
	if pe == nil {
		return NotAvailable
	}
	return pe.StringFixed(1)
}

// FormatGrowth formats a growth ratio as a percentage with one decimal place.
// e.g., 0.123 → "12.3%", -0.045 → "-4.5%"; nil → "N/A"
func FormatGrowth(ratio *decimal.Decimal) string {
	if ratio == nil {
		return NotAvailable
	}
	return ratio.Mul(hundred).StringFixed(1) + "%"
}

// FormatPct formats a percentage value with sign and suffix.
// e.g., 2.45 → "+2.45%", -1.23 → "-1.23%"
func FormatPct(pct decimal.Decimal) string {
	if pct.IsNegative() {
		return pct.StringFixed(2) + "%"
	}
	return "+" + pct.StringFixed(2) + "%"
}
