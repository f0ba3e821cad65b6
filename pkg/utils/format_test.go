package utils

import (
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decp(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func TestFormatPrice(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"420.55", "420.55"},
		{"420.5", "420.50"},
		{"441.575", "441.58"},
		{"0", "0.00"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := FormatPrice(dec(tt.input)); got != tt.expected {
				t.Errorf("FormatPrice(%s) = %s, want %s", tt.input, got, tt.expected)
			}
		})
	}
}

func TestFormatUSD(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"420.55", "$420.55"},
		{"1", "$1.00"},
		{"-3.1", "-$3.10"},
	}
	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := FormatUSD(dec(tt.input)); got != tt.expected {
				t.Errorf("FormatUSD(%s) = %s, want %s", tt.input, got, tt.expected)
			}
		})
	}
}

func TestFormatCompactUSD(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"3120000000000", "$3.12T"},
		{"3118000000000", "$3.12T"},
		{"812400000000", "$812.40B"},
		{"1000000000", "$1.00B"},
		{"950000000", "$950.00M"},
		{"12345", "$12345.00"},
		{"0", "N/A"},
		{"-5", "N/A"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := FormatCompactUSD(dec(tt.input)); got != tt.expected {
				t.Errorf("FormatCompactUSD(%s) = %s, want %s", tt.input, got, tt.expected)
			}
		})
	}
}

func TestFormatPE(t *testing.T) {
	if got := FormatPE(decp("34.19")); got != "34.2" {
		t.Errorf("FormatPE(34.19) = %s, want 34.2", got)
	}
	if got := FormatPE(decp("34.2")); got != "34.2" {
		t.Errorf("FormatPE(34.2) = %s, want 34.2", got)
	}
	if got := FormatPE(nil); got != "N/A" {
		t.Errorf("FormatPE(nil) = %s, want N/A", got)
	}
}

func TestFormatGrowth(t *testing.T) {
	tests := []struct {
		input    *decimal.Decimal
		expected string
	}{
		{decp("0.123"), "12.3%"},
		{decp("-0.045"), "-4.5%"},
		{decp("0"), "0.0%"},
		{nil, "N/A"},
	}
	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := FormatGrowth(tt.input); got != tt.expected {
				t.Errorf("FormatGrowth = %s, want %s", got, tt.expected)
			}
		})
	}
}

func TestFormatPct(t *testing.T) {
	if got := FormatPct(dec("2.45")); got != "+2.45%" {
		t.Errorf("FormatPct(2.45) = %s", got)
	}
	if got := FormatPct(dec("-1.23")); got != "-1.23%" {
		t.Errorf("FormatPct(-1.23) = %s", got)
	}
}
