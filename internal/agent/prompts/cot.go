package prompts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/seenimoa/investreport/pkg/models"
	"github.com/seenimoa/investreport/pkg/utils"
)

// ── Chain-of-Thought Templates ──
//
// These templates guide the analyst through the research note step by step
// and pin down the JSON answer it must end with.

// CoTInvestment builds the task prompt for one ticker from its market snapshot.
func CoTInvestment(s models.MarketSnapshot) string {
	ticker := s.Ticker.String()
	price := utils.FormatPrice(s.CurrentPrice)
	target := utils.FormatPrice(s.ReferenceTarget())
	marketCap := utils.FormatCompactUSD(s.MarketCap)
	pe := utils.FormatPE(s.PERatio)
	growth := utils.FormatGrowth(s.RevenueGrowth)
	sector := s.Sector
	if sector == "" {
		sector = utils.NotAvailable
	}

	upside := utils.NotAvailable
	if s.CurrentPrice.IsPositive() {
		upside = utils.FormatPct(s.ReferenceTarget().Sub(s.CurrentPrice).Div(s.CurrentPrice).Mul(decimal.NewFromInt(100)))
	}

	// pe_ratio is a JSON number; use null when the feed has none.
	peJSON := pe
	if s.PERatio == nil {
		peJSON = "null"
	}

	return fmt.Sprintf(`You are a professional investment analyst analyzing %[1]s.

REAL FINANCIAL DATA (use these exact numbers):
- Company: %[2]s
- Current Price: $%[3]s
- Target Price (reference): $%[4]s
- Market Cap: %[5]s
- P/E Ratio: %[6]s
- Revenue Growth: %[7]s
- Sector: %[8]s
- Implied Upside: %[15]s

Think step-by-step:

**Step 1 — Research**
- Use %[9]s to find recent news, analyst opinions, and market trends for %[2]s
- Use %[10]s for the latest %[1]s headlines if the context below is thin

**Step 2 — Valuation**
- Is the P/E reasonable for the sector and the growth rate?
- How far is the reference target from the current price?

**Step 3 — Strengths & Risks**
- List the most important strengths and risks, each backed by the data or a source

**Step 4 — Verdict**
- Choose BUY, HOLD, or SELL and a risk level of LOW, MEDIUM, or HIGH
- Set a target price; stay near $%[4]s unless the evidence argues otherwise

Return ONLY this JSON format:
`+"```json"+`
{
  "ticker": %[16]s,
  "company_name": %[11]s,
  "current_price": %[3]s,
  "target_price": %[4]s,
  "recommendation": "BUY/HOLD/SELL",
  "risk_level": "LOW/MEDIUM/HIGH",
  "market_cap": %[12]s,
  "pe_ratio": %[13]s,
  "revenue_growth": %[14]s,
  "key_strengths": ["strength1", "strength2"],
  "key_risks": ["risk1", "risk2"],
  "analysis_summary": "Your analysis here"
}
`+"```",
		ticker, s.CompanyName, price, target, marketCap, pe, growth, sector,
		ToolWebSearch, ToolCompanyNews,
		jsonString(s.CompanyName), jsonString(marketCap), peJSON, jsonString(growth),
		upside, jsonString(ticker))
}

// jsonString encodes v as a JSON string literal without HTML escaping.
func jsonString(v string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return `""`
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

// ResearchContext renders prefetched headlines and search results as a
// context block appended to the task. It returns "" when there is nothing.
func ResearchContext(news []models.NewsArticle, results []models.SearchResult) string {
	if len(news) == 0 && len(results) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n\n## Research Context (gathered just now)\n")
	if len(news) > 0 {
		b.WriteString("\n### Recent Headlines\n")
		for _, a := range news {
			b.WriteString("- ")
			if !a.PublishedAt.IsZero() {
				b.WriteString(a.PublishedAt.Format("2006-01-02") + ": ")
			}
			b.WriteString(a.Title)
			if a.Summary != "" {
				b.WriteString(": " + truncate(a.Summary, 240))
			}
			b.WriteString("\n")
		}
	}
	if len(results) > 0 {
		b.WriteString("\n### Web Search\n")
		for _, r := range results {
			b.WriteString("- " + r.Title)
			if r.Snippet != "" {
				b.WriteString(": " + truncate(r.Snippet, 240))
			}
			if r.URL != "" {
				b.WriteString(" (" + r.URL + ")")
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

func truncate(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n]) + "..."
}
