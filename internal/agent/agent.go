// Package agent implements the investment analyst agent: it turns a market
// snapshot into a structured recommendation by prompting an LLM, optionally
// backed by web research and research tools.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/seenimoa/investreport/internal/agent/prompts"
	"github.com/seenimoa/investreport/internal/config"
	"github.com/seenimoa/investreport/internal/infra"
	"github.com/seenimoa/investreport/internal/llm"
	"github.com/seenimoa/investreport/pkg/models"
	"github.com/seenimoa/investreport/pkg/utils"
)

// ErrAnalysisFailed marks every failure of the analysis step: provider
// errors (missing credential, rate limit, model error) and unusable output.
var ErrAnalysisFailed = errors.New("analysis failed")

// Searcher runs a web search.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]models.SearchResult, error)
}

// NewsSource returns recent headlines for a ticker.
type NewsSource interface {
	TickerNews(ctx context.Context, ticker models.Ticker, limit int) ([]models.NewsArticle, error)
}

// Config tunes the analyst.
type Config struct {
	Temperature       float64
	MaxTokens         int
	MaxToolIterations int
	Research          bool // prefetch research and offer research tools
	MaxResults        int  // per search or news request
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		Temperature:       0.2,
		MaxTokens:         2048,
		MaxToolIterations: 6,
		Research:          true,
		MaxResults:        5,
	}
}

// ConfigFrom maps the loaded application config onto the analyst's settings.
func ConfigFrom(c *config.Config) Config {
	cfg := DefaultConfig()
	if c == nil {
		return cfg
	}
	cfg.Temperature = c.LLM.Temperature
	if c.LLM.MaxTokens > 0 {
		cfg.MaxTokens = c.LLM.MaxTokens
	}
	if c.LLM.MaxToolIterations > 0 {
		cfg.MaxToolIterations = c.LLM.MaxToolIterations
	}
	cfg.Research = c.Search.Enabled
	if c.Search.MaxResults > 0 {
		cfg.MaxResults = c.Search.MaxResults
	}
	return cfg
}

// Option configures an Analyst.
type Option func(*Analyst)

// WithSearcher sets the web search backend.
func WithSearcher(s Searcher) Option {
	return func(a *Analyst) { a.searcher = s }
}

// WithNews sets the headline source.
func WithNews(n NewsSource) Option {
	return func(a *Analyst) { a.news = n }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *Analyst) { a.logger = l }
}

// WithCache sets the cache that dedupes research requests within a run.
func WithCache(c *infra.Cache) Option {
	return func(a *Analyst) { a.cache = c }
}

// Analyst produces an AnalysisResult for a market snapshot.
type Analyst struct {
	provider llm.LLMProvider
	cfg      Config
	searcher Searcher
	news     NewsSource
	cache    *infra.Cache
	logger   *zap.Logger
}

// NewAnalyst creates an analyst on the given provider.
func NewAnalyst(provider llm.LLMProvider, cfg Config, opts ...Option) *Analyst {
	if cfg.MaxToolIterations <= 0 {
		cfg.MaxToolIterations = 6
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 5
	}
	a := &Analyst{
		provider: provider,
		cfg:      cfg,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.cache == nil {
		a.cache = infra.NewCache(10 * time.Minute)
	}
	return a
}

// Name returns the agent's identifier.
func (a *Analyst) Name() string { return prompts.AgentAnalyst }

// SystemPrompt returns the full system prompt.
func (a *Analyst) SystemPrompt() string {
	return prompts.AnalystSystemPrompt + prompts.MarketPromptSuffix()
}

// Analyze runs the analysis for one snapshot. Any failure wraps ErrAnalysisFailed.
func (a *Analyst) Analyze(ctx context.Context, snapshot *models.MarketSnapshot) (*models.AnalysisResult, error) {
	if snapshot == nil || snapshot.Ticker.IsZero() {
		return nil, fmt.Errorf("%w: no market snapshot", ErrAnalysisFailed)
	}
	if a.provider == nil {
		return nil, fmt.Errorf("%w: no LLM provider", ErrAnalysisFailed)
	}
	start := time.Now()
	log := a.logger.With(
		zap.String("ticker", snapshot.Ticker.String()),
		zap.String("provider", a.provider.Name()),
		zap.String("model", a.provider.Model()),
	)

	task := prompts.CoTInvestment(*snapshot)
	if a.researchEnabled() {
		news, results := a.prefetch(ctx, snapshot, log)
		task += prompts.ResearchContext(news, results)
	}
	messages := []llm.Message{
		llm.SystemMessage(a.SystemPrompt()),
		llm.UserMessage(task),
	}

	registry := llm.NewToolRegistry()
	registry.SetLogger(log)
	if a.researchEnabled() {
		built, err := a.buildTools(snapshot)
		if err != nil {
			return nil, fmt.Errorf("%w: build tools: %w", ErrAnalysisFailed, err)
		}
		for _, t := range built {
			registry.Register(t)
		}
	}
	tools := registry.List()
	log.Debug("analysis request", zap.Int("tools", registry.Count()), zap.Int("prompt_bytes", len(task)))

	opts := &llm.ChatOptions{Temperature: a.cfg.Temperature, MaxTokens: a.cfg.MaxTokens}
	resp, finalMsgs, err := llm.RunToolLoop(ctx, a.provider, registry, messages, tools, opts, a.cfg.MaxToolIterations)
	if err != nil {
		log.Warn("analysis model call failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrAnalysisFailed, err)
	}

	toolCalls := 0
	for _, m := range finalMsgs {
		toolCalls += len(m.ToolCalls)
	}
	log.Info("analysis response",
		zap.Stringer("response", resp),
		zap.Int("tool_calls", toolCalls),
		zap.Duration("latency", time.Since(start)))

	result, err := ExtractAnalysis(resp.Content)
	if err != nil {
		log.Warn("unusable analysis output", zap.Error(err), zap.String("content", truncateLog(resp.Content)))
		return nil, err
	}
	result.Provider = a.provider.Name()
	result.Model = a.provider.Model()
	return result, nil
}

func (a *Analyst) researchEnabled() bool {
	return a.cfg.Research && (a.searcher != nil || a.news != nil)
}

// prefetch gathers headlines and one web search concurrently. Failures are
// logged and leave that half empty.
func (a *Analyst) prefetch(ctx context.Context, s *models.MarketSnapshot, log *zap.Logger) ([]models.NewsArticle, []models.SearchResult) {
	var (
		news    []models.NewsArticle
		results []models.SearchResult
	)
	g, gctx := errgroup.WithContext(ctx)
	if a.news != nil {
		g.Go(func() error {
			articles, err := a.cachedNews(gctx, s.Ticker, a.cfg.MaxResults)
			if err != nil {
				log.Warn("headline prefetch failed", zap.Error(err))
				return nil
			}
			news = articles
			return nil
		})
	}
	if a.searcher != nil {
		g.Go(func() error {
			found, err := a.cachedSearch(gctx, prompts.SearchQuery(s.Ticker.String(), s.CompanyName), a.cfg.MaxResults)
			if err != nil {
				log.Warn("search prefetch failed", zap.Error(err))
				return nil
			}
			results = rankByRelevance(found, utils.TickerKeywords(s.Ticker.String(), s.CompanyName))
			return nil
		})
	}
	_ = g.Wait()
	log.Debug("research prefetched", zap.Int("headlines", len(news)), zap.Int("results", len(results)))
	return news, results
}

// rankByRelevance moves results mentioning the company to the front,
// keeping the search engine's order otherwise.
func rankByRelevance(results []models.SearchResult, keywords []string) []models.SearchResult {
	ranked := make([]models.SearchResult, 0, len(results))
	var rest []models.SearchResult
	for _, r := range results {
		if utils.MatchesAny(r.Title+" "+r.Snippet, keywords) {
			ranked = append(ranked, r)
		} else {
			rest = append(rest, r)
		}
	}
	return append(ranked, rest...)
}

func truncateLog(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 500 {
		return s[:500] + "..."
	}
	return s
}
