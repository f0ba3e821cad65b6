package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/seenimoa/investreport/internal/agent/prompts"
	"github.com/seenimoa/investreport/internal/llm"
	"github.com/seenimoa/investreport/pkg/models"
)

type webSearchArgs struct {
	Query string `json:"query" jsonschema:"description=Search query such as 'Microsoft Azure growth analyst outlook'"`
	Limit int    `json:"limit,omitempty" jsonschema:"description=Maximum number of results (default 5)"`
}

type companyNewsArgs struct {
	Ticker string `json:"ticker,omitempty" jsonschema:"description=Ticker symbol; defaults to the stock under analysis"`
	Limit  int    `json:"limit,omitempty" jsonschema:"description=Maximum number of headlines (default 5)"`
}

// buildTools returns the research tools available for this snapshot.
func (a *Analyst) buildTools(s *models.MarketSnapshot) ([]llm.Tool, error) {
	var tools []llm.Tool
	if a.searcher != nil {
		params, err := llm.SchemaFor(&webSearchArgs{})
		if err != nil {
			return nil, err
		}
		tools = append(tools, llm.Tool{
			Name:        prompts.ToolWebSearch,
			Description: "Search the web for recent news, analyst opinions, and market trends. Returns titles, URLs and snippets.",
			Parameters:  params,
			Handler:     a.handleWebSearch,
		})
	}
	if a.news != nil {
		params, err := llm.SchemaFor(&companyNewsArgs{})
		if err != nil {
			return nil, err
		}
		tools = append(tools, llm.Tool{
			Name:        prompts.ToolCompanyNews,
			Description: "Fetch the latest Yahoo Finance headlines for a ticker, newest first.",
			Parameters:  params,
			Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
				return a.handleCompanyNews(ctx, s.Ticker, args)
			},
		})
	}
	return tools, nil
}

// ── Tool Handlers ──

func (a *Analyst) handleWebSearch(ctx context.Context, args json.RawMessage) (string, error) {
	var params webSearchArgs
	if err := json.Unmarshal(args, &params); err != nil {
		return "", fmt.Errorf("parse args: %w", err)
	}
	if strings.TrimSpace(params.Query) == "" {
		return "", fmt.Errorf("query is required")
	}
	limit := a.clampLimit(params.Limit)

	results, err := a.cachedSearch(ctx, params.Query, limit)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return "No results found.", nil
	}
	data, err := json.Marshal(results)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (a *Analyst) handleCompanyNews(ctx context.Context, defaultTicker models.Ticker, args json.RawMessage) (string, error) {
	var params companyNewsArgs
	if len(args) > 0 {
		if err := json.Unmarshal(args, &params); err != nil {
			return "", fmt.Errorf("parse args: %w", err)
		}
	}
	ticker := defaultTicker
	if t := models.NewTicker(params.Ticker); !t.IsZero() {
		ticker = t
	}
	limit := a.clampLimit(params.Limit)

	articles, err := a.cachedNews(ctx, ticker, limit)
	if err != nil {
		return "", err
	}
	if len(articles) == 0 {
		return fmt.Sprintf("No recent headlines for %s.", ticker), nil
	}
	data, err := json.Marshal(articles)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// clampLimit keeps model-chosen limits between 1 and twice the configured size.
func (a *Analyst) clampLimit(n int) int {
	if n <= 0 {
		return a.cfg.MaxResults
	}
	if ceiling := 2 * a.cfg.MaxResults; n > ceiling {
		return ceiling
	}
	return n
}

// ── Cached Fetches ──

func (a *Analyst) cachedSearch(ctx context.Context, query string, limit int) ([]models.SearchResult, error) {
	key := fmt.Sprintf("search:%s:%d", strings.ToLower(strings.TrimSpace(query)), limit)
	if v, ok := a.cache.Get(key); ok {
		return v.([]models.SearchResult), nil
	}
	results, err := a.searcher.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	a.cache.Set(key, results)
	return results, nil
}

func (a *Analyst) cachedNews(ctx context.Context, ticker models.Ticker, limit int) ([]models.NewsArticle, error) {
	key := fmt.Sprintf("news:%s:%d", ticker, limit)
	if v, ok := a.cache.Get(key); ok {
		return v.([]models.NewsArticle), nil
	}
	articles, err := a.news.TickerNews(ctx, ticker, limit)
	if err != nil {
		return nil, err
	}
	a.cache.Set(key, articles)
	return articles, nil
}
