// Package models defines the core data structures used throughout investreport.
package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/seenimoa/investreport/pkg/utils"
)

// Ticker is an exchange-listed symbol, e.g. "MSFT", "RELIANCE.NS", "^GSPC".
type Ticker string

// NewTicker normalizes a user supplied symbol (see utils.NormalizeTicker).
func NewTicker(s string) Ticker {
	return Ticker(utils.NormalizeTicker(s))
}

// String returns the symbol.
func (t Ticker) String() string { return string(t) }

// IsZero reports whether the ticker is empty.
func (t Ticker) IsZero() bool { return t == "" }

// MarketSnapshot is the set of market metrics fetched once per invocation.
// Values are kept at provider precision; formatting belongs to the report layer.
type MarketSnapshot struct {
	Ticker       Ticker          `json:"ticker"`
	CompanyName  string          `json:"company_name"`
	Currency     string          `json:"currency,omitempty"`
	Sector       string          `json:"sector,omitempty"`
	CurrentPrice decimal.Decimal `json:"current_price"`
	MarketCap    decimal.Decimal `json:"market_cap"` // raw currency units, zero when unknown

	PERatio       *decimal.Decimal `json:"pe_ratio,omitempty"`
	RevenueGrowth *decimal.Decimal `json:"revenue_growth,omitempty"` // ratio: 0.123 = 12.3%
	AnalystTarget *decimal.Decimal `json:"analyst_target,omitempty"` // mean analyst target price

	FetchedAt time.Time `json:"fetched_at"`
}

// ReferenceTarget is the target handed to the analyst as a starting point:
// the mean analyst target when known, otherwise price plus 5%.
func (s MarketSnapshot) ReferenceTarget() decimal.Decimal {
	if s.AnalystTarget != nil && s.AnalystTarget.IsPositive() {
		return s.AnalystTarget.Round(2)
	}
	return s.CurrentPrice.Mul(decimal.RequireFromString("1.05")).Round(2)
}

// DecimalPtr returns a pointer to d. Handy for optional snapshot fields.
func DecimalPtr(d decimal.Decimal) *decimal.Decimal {
	return &d
}
