package datasource

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	pkgerrors "github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/seenimoa/investreport/internal/infra"
	"github.com/seenimoa/investreport/pkg/models"
)

// DefaultNewsURL is Yahoo Finance's per-symbol headline RSS feed.
const DefaultNewsURL = "https://feeds.finance.yahoo.com/rss/2.0/headline"

// News fetches recent company headlines from an RSS feed.
type News struct {
	feedURL string
	parser  *gofeed.Parser
	limiter *infra.RateLimiter
	logger  *zap.Logger
}

// NewNews creates a headline source backed by the Yahoo Finance RSS feed.
func NewNews(opts ...ResearchOption) *News {
	c := buildResearchConfig(DefaultNewsURL, opts)
	parser := gofeed.NewParser()
	parser.Client = c.client
	parser.UserAgent = DefaultUserAgent
	return &News{
		feedURL: c.baseURL,
		parser:  parser,
		limiter: c.limiter,
		logger:  c.logger,
	}
}

// Name returns the data source name.
func (n *News) Name() string { return "Yahoo Finance News" }

// TickerNews returns up to limit headlines for ticker, newest first.
func (n *News) TickerNews(ctx context.Context, ticker models.Ticker, limit int) ([]models.NewsArticle, error) {
	if ticker.IsZero() {
		return nil, fmt.Errorf("empty ticker")
	}
	if err := n.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("s", ticker.String())
	q.Set("region", "US")
	q.Set("lang", "en-US")
	feedURL := n.feedURL + "?" + q.Encode()

	feed, err := n.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "parse RSS for %s", ticker)
	}

	source := feed.Title
	if source == "" {
		source = n.Name()
	}

	articles := make([]models.NewsArticle, 0, len(feed.Items))
	for _, item := range feed.Items {
		title := strings.TrimSpace(item.Title)
		if title == "" {
			continue
		}
		a := models.NewsArticle{
			Title:   title,
			URL:     item.Link,
			Source:  source,
			Summary: cleanHTML(item.Description),
		}
		if item.PublishedParsed != nil {
			a.PublishedAt = *item.PublishedParsed
		}
		articles = append(articles, a)
	}

	sortArticlesByDate(articles)
	if limit > 0 && len(articles) > limit {
		articles = articles[:limit]
	}

	n.logger.Debug("headlines fetched",
		zap.String("ticker", ticker.String()),
		zap.Int("articles", len(articles)))
	return articles, nil
}

// cleanHTML strips HTML tags from a string using goquery.
func cleanHTML(s string) string {
	if s == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<body>" + s + "</body>"))
	if err != nil {
		return s
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

// sortArticlesByDate sorts articles by published date (newest first).
func sortArticlesByDate(articles []models.NewsArticle) {
	sort.SliceStable(articles, func(i, j int) bool {
		return articles[i].PublishedAt.After(articles[j].PublishedAt)
	})
}
