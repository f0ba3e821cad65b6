package datasource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/seenimoa/investreport/pkg/models"
	"github.com/seenimoa/investreport/pkg/utils"
)

// Default Yahoo Finance endpoints.
const (
	DefaultYahooBaseURL   = "https://query2.finance.yahoo.com"
	DefaultYahooCookieURL = "https://fc.yahoo.com"
)

// snapshotModules are the quoteSummary modules a MarketSnapshot is built from.
const snapshotModules = "price,summaryDetail,financialData,defaultKeyStatistics,assetProfile"

// YFinance fetches market snapshots from the Yahoo Finance quoteSummary API.
type YFinance struct {
	client    *http.Client
	baseURL   string
	cookieURL string
	logger    *zap.Logger

	mu    sync.Mutex
	crumb string
}

// YFinanceOption configures a YFinance client.
type YFinanceOption func(*YFinance)

// WithBaseURL overrides the quoteSummary host (tests point this at httptest).
func WithBaseURL(u string) YFinanceOption {
	return func(y *YFinance) { y.baseURL = strings.TrimRight(u, "/") }
}

// WithCookieURL overrides the URL that hands out the session cookie.
func WithCookieURL(u string) YFinanceOption {
	return func(y *YFinance) { y.cookieURL = u }
}

// WithHTTPClient sets the HTTP client. A cookie jar is added when missing.
func WithHTTPClient(c *http.Client) YFinanceOption {
	return func(y *YFinance) { y.client = c }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) YFinanceOption {
	return func(y *YFinance) { y.logger = l }
}

// NewYFinance creates a new Yahoo Finance data source.
func NewYFinance(opts ...YFinanceOption) *YFinance {
	y := &YFinance{
		baseURL:   DefaultYahooBaseURL,
		cookieURL: DefaultYahooCookieURL,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(y)
	}
	if y.client == nil {
		y.client = NewHTTPClient(DefaultTimeout)
	}
	if y.client.Jar == nil {
		jar, _ := cookiejar.New(nil)
		c := *y.client
		c.Jar = jar
		y.client = &c
	}
	return y
}

// Name returns the data source name.
func (y *YFinance) Name() string { return "Yahoo Finance" }

// --- Yahoo Finance v10 quoteSummary types ---

type yfSummaryResponse struct {
	QuoteSummary struct {
		Result []yfSummaryResult `json:"result"`
		Error  *yfError          `json:"error"`
	} `json:"quoteSummary"`
}

type yfSummaryResult struct {
	Price                *yfPrice                `json:"price"`
	SummaryDetail        *yfSummaryDetail        `json:"summaryDetail"`
	FinancialData        *yfFinancialData        `json:"financialData"`
	DefaultKeyStatistics *yfDefaultKeyStatistics `json:"defaultKeyStatistics"`
	AssetProfile         *yfAssetProfile         `json:"assetProfile"`
}

// yfNum is Yahoo's {"raw": 1.23, "fmt": "1.23"} wrapper. Missing values arrive as {}.
type yfNum struct {
	Raw *float64 `json:"raw"`
	Fmt string   `json:"fmt"`
}

type yfPrice struct {
	Symbol             string `json:"symbol"`
	LongName           string `json:"longName"`
	ShortName          string `json:"shortName"`
	Currency           string `json:"currency"`
	RegularMarketPrice *yfNum `json:"regularMarketPrice"`
	MarketCap          *yfNum `json:"marketCap"`
}

type yfSummaryDetail struct {
	TrailingPE *yfNum `json:"trailingPE"`
	ForwardPE  *yfNum `json:"forwardPE"`
	MarketCap  *yfNum `json:"marketCap"`
}

type yfFinancialData struct {
	CurrentPrice    *yfNum `json:"currentPrice"`
	TargetMeanPrice *yfNum `json:"targetMeanPrice"`
	RevenueGrowth   *yfNum `json:"revenueGrowth"`
}

type yfDefaultKeyStatistics struct {
	ForwardPE *yfNum `json:"forwardPE"`
}

type yfAssetProfile struct {
	Sector   string `json:"sector"`
	Industry string `json:"industry"`
}

type yfError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// --- Public methods ---

// Snapshot fetches the market metrics for ticker in one quoteSummary request.
func (y *YFinance) Snapshot(ctx context.Context, ticker models.Ticker) (*models.MarketSnapshot, error) {
	if ticker.IsZero() {
		return nil, pkgerrors.Wrap(ErrTickerNotFound, "empty ticker")
	}
	start := time.Now()
	log := y.logger.With(zap.String("ticker", ticker.String()))

	crumb := y.ensureCrumb(ctx)

	q := url.Values{}
	q.Set("modules", snapshotModules)
	q.Set("formatted", "true")
	if crumb != "" {
		q.Set("crumb", crumb)
	}
	endpoint := fmt.Sprintf("%s/v10/finance/quoteSummary/%s?%s",
		y.baseURL, utils.PathEscapeTicker(ticker.String()), q.Encode())

	body, _, err := doGet(ctx, y.client, endpoint, map[string]string{
		"Accept": "application/json",
	})
	if err != nil {
		var httpErr *ErrHTTP
		if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusNotFound {
			return nil, pkgerrors.Wrapf(ErrTickerNotFound, "yfinance %s", ticker)
		}
		return nil, pkgerrors.Wrapf(fmt.Errorf("%w: %w", ErrDataUnavailable, err), "yfinance %s", ticker)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, pkgerrors.Wrapf(fmt.Errorf("%w: read response: %w", ErrDataUnavailable, err), "yfinance %s", ticker)
	}

	var resp yfSummaryResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, pkgerrors.Wrapf(fmt.Errorf("%w: parse quoteSummary: %w", ErrDataUnavailable, err), "yfinance %s", ticker)
	}

	if e := resp.QuoteSummary.Error; e != nil {
		if strings.EqualFold(e.Code, "Not Found") {
			return nil, pkgerrors.Wrapf(ErrTickerNotFound, "yfinance %s: %s", ticker, e.Description)
		}
		return nil, pkgerrors.Wrapf(ErrDataUnavailable, "yfinance %s: %s: %s", ticker, e.Code, e.Description)
	}
	if len(resp.QuoteSummary.Result) == 0 {
		return nil, pkgerrors.Wrapf(ErrTickerNotFound, "yfinance %s", ticker)
	}

	snap := buildSnapshot(ticker, resp.QuoteSummary.Result[0])
	if !snap.CurrentPrice.IsPositive() {
		return nil, pkgerrors.Wrapf(ErrDataUnavailable, "yfinance %s: no current price", ticker)
	}
	snap.FetchedAt = time.Now()

	log.Debug("market snapshot fetched",
		zap.String("price", snap.CurrentPrice.String()),
		zap.String("company", snap.CompanyName),
		zap.Duration("latency", time.Since(start)))
	return snap, nil
}

// --- Helpers ---

// ensureCrumb performs the cookie + crumb handshake once per client.
// Failures are logged and the request goes out without a crumb.
func (y *YFinance) ensureCrumb(ctx context.Context) string {
	y.mu.Lock()
	defer y.mu.Unlock()
	if y.crumb != "" {
		return y.crumb
	}

	crumb, err := y.fetchCrumb(ctx)
	if err != nil {
		y.logger.Warn("yahoo crumb handshake failed", zap.Error(err))
		return ""
	}
	y.crumb = crumb
	return crumb
}

func (y *YFinance) fetchCrumb(ctx context.Context) (string, error) {
	// The cookie endpoint answers 404 but still sets the session cookie.
	if y.cookieURL != "" {
		body, _, err := doGet(ctx, y.client, y.cookieURL, nil)
		var httpErr *ErrHTTP
		switch {
		case err == nil:
			body.Close()
		case !errors.As(err, &httpErr):
			return "", pkgerrors.Wrap(err, "fetch session cookie")
		}
	}

	body, _, err := doGet(ctx, y.client, y.baseURL+"/v1/test/getcrumb", map[string]string{
		"Accept": "text/plain",
	})
	if err != nil {
		return "", pkgerrors.Wrap(err, "fetch crumb")
	}
	defer body.Close()

	data, err := io.ReadAll(io.LimitReader(body, 256))
	if err != nil {
		return "", pkgerrors.Wrap(err, "read crumb")
	}
	crumb := strings.TrimSpace(string(data))
	if crumb == "" || strings.ContainsAny(crumb, "<{ ") {
		return "", fmt.Errorf("unexpected crumb response %q", crumb)
	}
	return crumb, nil
}

// buildSnapshot resolves each metric from the first module that reports it.
func buildSnapshot(ticker models.Ticker, r yfSummaryResult) *models.MarketSnapshot {
	price := valueOrEmpty(r.Price)
	detail := valueOrEmpty(r.SummaryDetail)
	fin := valueOrEmpty(r.FinancialData)
	stats := valueOrEmpty(r.DefaultKeyStatistics)
	profile := valueOrEmpty(r.AssetProfile)

	snap := &models.MarketSnapshot{
		Ticker:      ticker,
		CompanyName: coalesce(strings.TrimSpace(price.LongName), strings.TrimSpace(price.ShortName), ticker.String()+" Corporation"),
		Currency:    price.Currency,
		Sector:      profile.Sector,
	}

	if p := firstNonZero(fin.CurrentPrice, price.RegularMarketPrice); p != nil {
		snap.CurrentPrice = *p
	}
	if mc := firstNonZero(price.MarketCap, detail.MarketCap); mc != nil {
		snap.MarketCap = *mc
	}
	snap.PERatio = firstNonZero(detail.TrailingPE, detail.ForwardPE, stats.ForwardPE)
	snap.RevenueGrowth = firstNonZero(fin.RevenueGrowth)
	if t := firstNonZero(fin.TargetMeanPrice); t != nil && t.IsPositive() {
		snap.AnalystTarget = t
	}
	return snap
}

// firstNonZero returns the first reported, non-zero value.
func firstNonZero(values ...*yfNum) *decimal.Decimal {
	for _, v := range values {
		if v == nil || v.Raw == nil || *v.Raw == 0 {
			continue
		}
		d := decimal.NewFromFloat(*v.Raw)
		return &d
	}
	return nil
}

func valueOrEmpty[T any](p *T) T {
	if p == nil {
		var zero T
		return zero
	}
	return *p
}
