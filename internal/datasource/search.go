package datasource

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	pkgerrors "github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/seenimoa/investreport/internal/infra"
	"github.com/seenimoa/investreport/pkg/models"
)

// DefaultSearchURL is DuckDuckGo's JavaScript-free results page.
const DefaultSearchURL = "https://html.duckduckgo.com/html/"

// Search runs web searches by scraping DuckDuckGo's HTML endpoint.
type Search struct {
	client  *http.Client
	baseURL string
	limiter *infra.RateLimiter
	logger  *zap.Logger
}

// ResearchOption configures Search and News.
type ResearchOption func(*researchConfig)

type researchConfig struct {
	client  *http.Client
	baseURL string
	limiter *infra.RateLimiter
	logger  *zap.Logger
}

// WithResearchBaseURL overrides the endpoint a research client talks to.
func WithResearchBaseURL(u string) ResearchOption {
	return func(c *researchConfig) { c.baseURL = u }
}

// WithResearchHTTPClient sets the HTTP client.
func WithResearchHTTPClient(hc *http.Client) ResearchOption {
	return func(c *researchConfig) { c.client = hc }
}

// WithRateLimiter shares a limiter between research clients.
func WithRateLimiter(l *infra.RateLimiter) ResearchOption {
	return func(c *researchConfig) { c.limiter = l }
}

// WithResearchLogger sets the logger.
func WithResearchLogger(l *zap.Logger) ResearchOption {
	return func(c *researchConfig) { c.logger = l }
}

func buildResearchConfig(defaultURL string, opts []ResearchOption) researchConfig {
	c := researchConfig{baseURL: defaultURL, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&c)
	}
	if c.client == nil {
		c.client = NewHTTPClient(DefaultTimeout)
	}
	return c
}

// NewSearch creates a DuckDuckGo search client.
func NewSearch(opts ...ResearchOption) *Search {
	c := buildResearchConfig(DefaultSearchURL, opts)
	return &Search{
		client:  c.client,
		baseURL: c.baseURL,
		limiter: c.limiter,
		logger:  c.logger,
	}
}

// Name returns the data source name.
func (s *Search) Name() string { return "DuckDuckGo" }

// Search returns up to limit organic results for query. Ads are skipped.
func (s *Search) Search(ctx context.Context, query string, limit int) ([]models.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("empty search query")
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	endpoint := s.baseURL + "?" + url.Values{"q": {query}}.Encode()
	body, _, err := doGet(ctx, s.client, endpoint, map[string]string{
		"Accept": "text/html",
	})
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "search %q", query)
	}
	defer body.Close()

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "parse search results")
	}

	results := parseSearchResults(doc, limit)
	s.logger.Debug("web search",
		zap.String("query", query),
		zap.Int("results", len(results)))
	return results, nil
}

// parseSearchResults extracts result blocks from a DuckDuckGo HTML page.
func parseSearchResults(doc *goquery.Document, limit int) []models.SearchResult {
	var results []models.SearchResult
	doc.Find("div.result").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if sel.HasClass("result--ad") {
			return true
		}
		link := sel.Find("a.result__a").First()
		title := strings.TrimSpace(link.Text())
		href, _ := link.Attr("href")
		if title == "" || href == "" {
			return true
		}
		results = append(results, models.SearchResult{
			Title:   title,
			URL:     unwrapRedirect(href),
			Snippet: strings.TrimSpace(sel.Find(".result__snippet").First().Text()),
		})
		return limit <= 0 || len(results) < limit
	})
	return results
}

// unwrapRedirect turns DuckDuckGo's "//duckduckgo.com/l/?uddg=<target>" links
// into the target URL.
func unwrapRedirect(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	if u.Scheme == "" && strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	return href
}
