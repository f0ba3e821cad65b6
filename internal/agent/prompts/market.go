package prompts

import (
	"fmt"

	"github.com/seenimoa/investreport/pkg/utils"
)

// ── Market Context & Formatting ──

// MarketContext gives the analyst the conventions behind the market data feed.
const MarketContext = `
## Market Context
- Data source: Yahoo Finance quote summary, fetched seconds before this request
- Prices are in the stock's trading currency; US listings trade in USD
- Exchange suffixes identify non-US listings: .NS (NSE India), .L (London), .TO (Toronto), .HK (Hong Kong)
- Symbols starting with ^ are indices; "-USD" pairs are crypto assets
- The reference target is the mean analyst target when available, otherwise current price + 5%
`

// NumberFormat describes how numbers appear in the task and should appear in the answer.
const NumberFormat = `
## Number Formatting Rules
- Prices: two decimals, no currency symbol inside JSON numbers: 441.58
- Market capitalization: $3.12T, $812.40B, $950.00M
- P/E ratio: one decimal: 34.2
- Growth: percent with one decimal: 12.3%
- Missing values are written N/A in the task; never guess them
`

// MarketPromptSuffix returns the market context and formatting rules.
// Append this to the analyst's system prompt.
func MarketPromptSuffix() string {
	return MarketContext + NumberFormat
}

// SearchQuery builds the research query for a company.
func SearchQuery(ticker, companyName string) string {
	if utils.IsIndex(ticker) {
		return fmt.Sprintf("%s index outlook analyst", companyName)
	}
	name := companyName
	if name == "" {
		name = ticker
	}
	return fmt.Sprintf("%s %s stock analyst outlook", name, ticker)
}
