package prompts

import (
	"encoding/json"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/seenimoa/investreport/pkg/models"
)

func msftSnapshot() models.MarketSnapshot {
	return models.MarketSnapshot{
		Ticker:        "MSFT",
		CompanyName:   "Microsoft Corporation",
		Sector:        "Technology",
		CurrentPrice:  decimal.RequireFromString("420.55"),
		MarketCap:     decimal.RequireFromString("3120000000000"),
		PERatio:       models.DecimalPtr(decimal.RequireFromString("34.2")),
		RevenueGrowth: models.DecimalPtr(decimal.RequireFromString("0.123")),
		AnalystTarget: models.DecimalPtr(decimal.RequireFromString("441.58")),
	}
}

// ── Names ──

func TestNameConstants(t *testing.T) {
	for label, name := range map[string]string{
		"AgentAnalyst":    AgentAnalyst,
		"ToolWebSearch":   ToolWebSearch,
		"ToolCompanyNews": ToolCompanyNews,
	} {
		if name == "" || strings.Contains(name, " ") {
			t.Errorf("%s: bad identifier %q", label, name)
		}
	}
}

// ── System Prompt ──

func TestAnalystSystemPrompt(t *testing.T) {
	for _, kw := range []string{"BUY", "HOLD", "SELL", "LOW", "MEDIUM", "HIGH", ToolWebSearch, ToolCompanyNews, "```json"} {
		if !strings.Contains(AnalystSystemPrompt, kw) {
			t.Errorf("system prompt missing %q", kw)
		}
	}
}

func TestMarketPromptSuffix(t *testing.T) {
	s := MarketPromptSuffix()
	if !strings.Contains(s, "Market Context") || !strings.Contains(s, "Number Formatting Rules") {
		t.Fatalf("suffix missing sections: %s", s)
	}
	if !strings.Contains(s, "$3.12T") {
		t.Fatal("suffix should show the market cap convention")
	}
}

// ── Task Prompt ──

func TestCoTInvestmentUsesExactNumbers(t *testing.T) {
	p := CoTInvestment(msftSnapshot())
	for _, want := range []string{
		"analyzing MSFT",
		"use these exact numbers",
		"Company: Microsoft Corporation",
		"Current Price: $420.55",
		"Target Price (reference): $441.58",
		"Market Cap: $3.12T",
		"P/E Ratio: 34.2",
		"Revenue Growth: 12.3%",
		"Sector: Technology",
		"Implied Upside: +5.00%",
	} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestCoTInvestmentJSONShapeIsValid(t *testing.T) {
	p := CoTInvestment(msftSnapshot())
	block := regexp.MustCompile("(?s)```json\n(.*?)\n```").FindStringSubmatch(p)
	if block == nil {
		t.Fatal("no json block in prompt")
	}
	var shape map[string]any
	if err := json.Unmarshal([]byte(block[1]), &shape); err != nil {
		t.Fatalf("json shape does not parse: %v\n%s", err, block[1])
	}
	if shape["target_price"] != 441.58 || shape["pe_ratio"] != 34.2 {
		t.Fatalf("unexpected numbers: %v", shape)
	}
	for _, key := range []string{"recommendation", "risk_level", "key_strengths", "key_risks", "analysis_summary"} {
		if _, ok := shape[key]; !ok {
			t.Errorf("shape missing %q", key)
		}
	}
}

func TestCoTInvestmentMissingValues(t *testing.T) {
	s := models.MarketSnapshot{
		Ticker:       "TINY",
		CompanyName:  `Tiny "Quoted" Co`,
		CurrentPrice: decimal.RequireFromString("12.5"),
	}
	p := CoTInvestment(s)
	for _, want := range []string{
		"Market Cap: N/A",
		"P/E Ratio: N/A",
		"Revenue Growth: N/A",
		"Sector: N/A",
		"Target Price (reference): $13.13",
		"Implied Upside: +5.04%",
	} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q", want)
		}
	}

	block := regexp.MustCompile("(?s)```json\n(.*?)\n```").FindStringSubmatch(p)
	var shape map[string]any
	if err := json.Unmarshal([]byte(block[1]), &shape); err != nil {
		t.Fatalf("json shape with missing values does not parse: %v", err)
	}
	if shape["pe_ratio"] != nil || shape["company_name"] != `Tiny "Quoted" Co` {
		t.Fatalf("unexpected shape: %v", shape)
	}
}

func TestCoTInvestmentEscapesJSONStrings(t *testing.T) {
	s := msftSnapshot()
	s.Ticker = `BAD"TICK`
	s.CompanyName = "Tab\tand\x01ctl & <Co>"
	p := CoTInvestment(s)

	block := regexp.MustCompile("(?s)```json\n(.*?)\n```").FindStringSubmatch(p)
	if block == nil {
		t.Fatal("no json block in prompt")
	}
	if strings.Contains(block[1], `\x01`) {
		t.Errorf("control character rendered with a Go escape:\n%s", block[1])
	}
	var shape map[string]any
	if err := json.Unmarshal([]byte(block[1]), &shape); err != nil {
		t.Fatalf("json shape does not parse: %v\n%s", err, block[1])
	}
	if shape["ticker"] != `BAD"TICK` || shape["company_name"] != "Tab\tand\x01ctl & <Co>" {
		t.Fatalf("strings did not round-trip: %v", shape)
	}
}

func TestCoTInvestmentZeroPrice(t *testing.T) {
	p := CoTInvestment(models.MarketSnapshot{Ticker: "ZERO"})
	if !strings.Contains(p, "Implied Upside: N/A") {
		t.Errorf("zero price should leave upside unavailable")
	}
}

// ── Research Context ──

func TestResearchContextEmpty(t *testing.T) {
	if got := ResearchContext(nil, nil); got != "" {
		t.Fatalf("expected empty context, got %q", got)
	}
}

func TestResearchContext(t *testing.T) {
	news := []models.NewsArticle{{
		Title:       "Microsoft beats estimates",
		Summary:     "Azure up 30%",
		PublishedAt: time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC),
	}}
	results := []models.SearchResult{{
		Title:   "MSFT analyst targets",
		URL:     "https://example.com/msft",
		Snippet: strings.Repeat("x", 300),
	}}
	got := ResearchContext(news, results)

	if !strings.Contains(got, "- 2025-03-12: Microsoft beats estimates: Azure up 30%") {
		t.Errorf("headline line missing:\n%s", got)
	}
	if !strings.Contains(got, "- MSFT analyst targets: "+strings.Repeat("x", 240)+"... (https://example.com/msft)") {
		t.Errorf("search line missing or not truncated:\n%s", got)
	}
}

// ── Helpers ──

func TestSearchQuery(t *testing.T) {
	if got := SearchQuery("MSFT", "Microsoft Corporation"); got != "Microsoft Corporation MSFT stock analyst outlook" {
		t.Errorf("got %q", got)
	}
	if got := SearchQuery("^GSPC", "S&P 500"); got != "S&P 500 index outlook analyst" {
		t.Errorf("got %q", got)
	}
	if got := SearchQuery("ZZZ", ""); got != "ZZZ ZZZ stock analyst outlook" {
		t.Errorf("got %q", got)
	}
}
