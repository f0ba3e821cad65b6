package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Recommendation is the analyst's call on a stock.
type Recommendation string

const (
	Buy  Recommendation = "BUY"
	Hold Recommendation = "HOLD"
	Sell Recommendation = "SELL"
)

// Recommendations lists the accepted values in display order.
func Recommendations() []Recommendation {
	return []Recommendation{Buy, Hold, Sell}
}

// Valid reports whether r is one of BUY, HOLD or SELL.
func (r Recommendation) Valid() bool {
	switch r {
	case Buy, Hold, Sell:
		return true
	}
	return false
}

// ParseRecommendation accepts exactly BUY, HOLD or SELL.
func ParseRecommendation(s string) (Recommendation, error) {
	r := Recommendation(s)
	if !r.Valid() {
		return "", fmt.Errorf("invalid recommendation %q (want BUY, HOLD or SELL)", s)
	}
	return r, nil
}

// RiskLevel grades the investment risk.
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// RiskLevels lists the accepted values in display order.
func RiskLevels() []RiskLevel {
	return []RiskLevel{RiskLow, RiskMedium, RiskHigh}
}

// Valid reports whether l is one of LOW, MEDIUM or HIGH.
func (l RiskLevel) Valid() bool {
	switch l {
	case RiskLow, RiskMedium, RiskHigh:
		return true
	}
	return false
}

// ParseRiskLevel accepts exactly LOW, MEDIUM or HIGH.
func ParseRiskLevel(s string) (RiskLevel, error) {
	l := RiskLevel(s)
	if !l.Valid() {
		return "", fmt.Errorf("invalid risk level %q (want LOW, MEDIUM or HIGH)", s)
	}
	return l, nil
}

// AnalysisResult is the qualitative output of the analyst agent.
type AnalysisResult struct {
	TargetPrice    decimal.Decimal `json:"target_price"`
	Recommendation Recommendation  `json:"recommendation"`
	RiskLevel      RiskLevel       `json:"risk_level"`
	Strengths      []string        `json:"key_strengths"`
	Risks          []string        `json:"key_risks"`
	Narrative      string          `json:"analysis_summary"`

	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
}

// Validate checks the invariants every rendered result must hold.
func (a AnalysisResult) Validate() error {
	if !a.TargetPrice.IsPositive() {
		return fmt.Errorf("target price must be positive, got %s", a.TargetPrice)
	}
	if !a.Recommendation.Valid() {
		return fmt.Errorf("invalid recommendation %q", a.Recommendation)
	}
	if !a.RiskLevel.Valid() {
		return fmt.Errorf("invalid risk level %q", a.RiskLevel)
	}
	if len(a.Strengths) == 0 {
		return fmt.Errorf("no key strengths")
	}
	if len(a.Risks) == 0 {
		return fmt.Errorf("no key risks")
	}
	if strings.TrimSpace(a.Narrative) == "" {
		return fmt.Errorf("empty analysis summary")
	}
	return nil
}

// Report joins the fetched snapshot with the analysis for rendering.
type Report struct {
	Ticker      Ticker
	Snapshot    MarketSnapshot
	Analysis    AnalysisResult
	GeneratedAt time.Time
	Attribution string // e.g. "investreport (openai/gpt-4o)"
}
