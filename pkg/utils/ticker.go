package utils

import (
	"net/url"
	"strings"
)

// NormalizeTicker normalizes user input to the symbol sent to the market data provider.
// It only uppercases, trims whitespace and drops a leading "$"; the provider
// decides whether the symbol exists. Exchange suffixes (".NS", "-USD") and
// index carets are kept as typed.
func NormalizeTicker(ticker string) string {
	ticker = strings.TrimSpace(strings.ToUpper(ticker))

	// Remove $ prefix if present (common in chat)
	return strings.TrimSpace(strings.TrimPrefix(ticker, "$"))
}

// IsIndex reports whether the normalized ticker is a market index.
func IsIndex(ticker string) bool {
	return strings.HasPrefix(NormalizeTicker(ticker), "^")
}

// PathEscapeTicker escapes a symbol for use in a URL path segment ("^GSPC" → "%5EGSPC").
func PathEscapeTicker(ticker string) string {
	return url.PathEscape(ticker)
}

// TickerKeywords returns lower-case words likely to appear in headlines
// about the company, used to filter broad news feeds.
func TickerKeywords(ticker, companyName string) []string {
	t := strings.ToLower(ticker)
	keywords := []string{t}
	if base, _, ok := strings.Cut(t, "."); ok && base != "" {
		keywords = append(keywords, base)
	}

	name := strings.ToLower(companyName)
	for _, suffix := range []string{" corporation", " corp.", " corp", " incorporated", " inc.", " inc", " limited", " ltd.", " ltd", " plc", " co.", ","} {
		name = strings.TrimSuffix(strings.TrimSpace(name), suffix)
	}
	name = strings.TrimSpace(name)
	if name != "" && name != t {
		keywords = append(keywords, name)
	}
	return keywords
}

// MatchesAny reports whether text contains any of the keywords (case-insensitive).
func MatchesAny(text string, keywords []string) bool {
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if kw != "" && strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
