package datasource

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seenimoa/investreport/pkg/models"
)

const msftSummary = `{
  "quoteSummary": {
    "result": [{
      "price": {
        "symbol": "MSFT",
        "longName": "Microsoft Corporation",
        "shortName": "Microsoft Corp",
        "currency": "USD",
        "regularMarketPrice": {"raw": 420.1, "fmt": "420.10"},
        "marketCap": {"raw": 3120000000000, "fmt": "3.12T"}
      },
      "summaryDetail": {
        "trailingPE": {"raw": 34.2, "fmt": "34.20"},
        "forwardPE": {"raw": 30.1, "fmt": "30.10"}
      },
      "financialData": {
        "currentPrice": {"raw": 420.55, "fmt": "420.55"},
        "targetMeanPrice": {"raw": 495.3, "fmt": "495.30"},
        "revenueGrowth": {"raw": 0.123, "fmt": "12.30%"}
      },
      "defaultKeyStatistics": {"forwardPE": {"raw": 30.1}},
      "assetProfile": {"sector": "Technology", "industry": "Software—Infrastructure"}
    }],
    "error": null
  }
}`

// newYahooServer serves the crumb handshake and the given quoteSummary handler.
func newYahooServer(t *testing.T, summary http.HandlerFunc) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var summaryCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/cookie", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "A3", Value: "session", Path: "/"})
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/v1/test/getcrumb", func(w http.ResponseWriter, r *http.Request) {
		if _, err := r.Cookie("A3"); err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte("abcCRUMB123"))
	})
	mux.HandleFunc("/v10/finance/quoteSummary/", func(w http.ResponseWriter, r *http.Request) {
		summaryCalls.Add(1)
		summary(w, r)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &summaryCalls
}

func newTestYFinance(srv *httptest.Server) *YFinance {
	return NewYFinance(
		WithBaseURL(srv.URL),
		WithCookieURL(srv.URL+"/cookie"),
		WithHTTPClient(srv.Client()),
	)
}

func TestSnapshot(t *testing.T) {
	var gotCrumb, gotModules, gotPath string
	srv, calls := newYahooServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotCrumb = r.URL.Query().Get("crumb")
		gotModules = r.URL.Query().Get("modules")
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(msftSummary))
	})

	snap, err := newTestYFinance(srv).Snapshot(context.Background(), "MSFT")
	require.NoError(t, err)

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, "/v10/finance/quoteSummary/MSFT", gotPath)
	assert.Equal(t, "abcCRUMB123", gotCrumb)
	assert.Equal(t, snapshotModules, gotModules)

	assert.Equal(t, models.Ticker("MSFT"), snap.Ticker)
	assert.Equal(t, "Microsoft Corporation", snap.CompanyName)
	assert.Equal(t, "USD", snap.Currency)
	assert.Equal(t, "Technology", snap.Sector)
	// financialData.currentPrice wins over price.regularMarketPrice.
	assert.Equal(t, "420.55", snap.CurrentPrice.StringFixed(2))
	assert.Equal(t, "3120000000000", snap.MarketCap.String())
	require.NotNil(t, snap.PERatio)
	assert.Equal(t, "34.2", snap.PERatio.String())
	require.NotNil(t, snap.RevenueGrowth)
	assert.Equal(t, "0.123", snap.RevenueGrowth.String())
	require.NotNil(t, snap.AnalystTarget)
	assert.Equal(t, "495.3", snap.AnalystTarget.String())
	assert.False(t, snap.FetchedAt.IsZero())
}

func TestSnapshotFallbacks(t *testing.T) {
	srv, _ := newYahooServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"quoteSummary":{"result":[{
			"price": {"shortName": "Tiny Co", "regularMarketPrice": {"raw": 12.5}},
			"summaryDetail": {"trailingPE": {}, "forwardPE": {"raw": 18.04}, "marketCap": {"raw": 950000000}},
			"financialData": {"currentPrice": {}, "targetMeanPrice": {}, "revenueGrowth": {}}
		}],"error":null}}`))
	})

	snap, err := newTestYFinance(srv).Snapshot(context.Background(), "TINY")
	require.NoError(t, err)

	assert.Equal(t, "Tiny Co", snap.CompanyName)
	assert.Equal(t, "12.5", snap.CurrentPrice.String())
	assert.Equal(t, "950000000", snap.MarketCap.String())
	require.NotNil(t, snap.PERatio)
	assert.Equal(t, "18.04", snap.PERatio.String())
	assert.Nil(t, snap.RevenueGrowth)
	assert.Nil(t, snap.AnalystTarget)
	assert.Empty(t, snap.Sector)
	// Reference target falls back to price + 5%.
	assert.Equal(t, "13.13", snap.ReferenceTarget().StringFixed(2))
}

func TestSnapshotCompanyNameDefault(t *testing.T) {
	srv, _ := newYahooServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"quoteSummary":{"result":[{"price":{"regularMarketPrice":{"raw":5}}}],"error":null}}`))
	})

	snap, err := newTestYFinance(srv).Snapshot(context.Background(), "ZZZ")
	require.NoError(t, err)
	assert.Equal(t, "ZZZ Corporation", snap.CompanyName)
	assert.True(t, snap.MarketCap.IsZero())
	assert.Nil(t, snap.PERatio)
}

func TestSnapshotIndexTickerIsEscaped(t *testing.T) {
	var gotPath string
	srv, _ := newYahooServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		w.Write([]byte(`{"quoteSummary":{"result":[{"price":{"shortName":"S&P 500","regularMarketPrice":{"raw":5000}}}],"error":null}}`))
	})

	_, err := newTestYFinance(srv).Snapshot(context.Background(), "^GSPC")
	require.NoError(t, err)
	assert.Equal(t, "/v10/finance/quoteSummary/%5EGSPC", gotPath)
}

func TestSnapshotNotFound(t *testing.T) {
	srv, _ := newYahooServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"quoteSummary":{"result":null,"error":{"code":"Not Found","description":"Quote not found for symbol: XXXX"}}}`))
	})

	_, err := newTestYFinance(srv).Snapshot(context.Background(), "XXXX")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTickerNotFound))
	assert.True(t, errors.Is(err, ErrDataUnavailable))
}

func TestSnapshotErrorObject(t *testing.T) {
	srv, _ := newYahooServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"quoteSummary":{"result":null,"error":{"code":"Not Found","description":"No data found"}}}`))
	})

	_, err := newTestYFinance(srv).Snapshot(context.Background(), "XXXX")
	assert.ErrorIs(t, err, ErrTickerNotFound)
}

func TestSnapshotEmptyResult(t *testing.T) {
	srv, _ := newYahooServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"quoteSummary":{"result":[],"error":null}}`))
	})

	_, err := newTestYFinance(srv).Snapshot(context.Background(), "XXXX")
	assert.ErrorIs(t, err, ErrTickerNotFound)
}

func TestSnapshotServerError(t *testing.T) {
	srv, _ := newYahooServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := newTestYFinance(srv).Snapshot(context.Background(), "MSFT")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDataUnavailable)
	assert.NotErrorIs(t, err, ErrTickerNotFound)

	var httpErr *ErrHTTP
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusInternalServerError, httpErr.StatusCode)
}

func TestSnapshotMalformedJSON(t *testing.T) {
	srv, _ := newYahooServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>oops</html>`))
	})

	_, err := newTestYFinance(srv).Snapshot(context.Background(), "MSFT")
	assert.ErrorIs(t, err, ErrDataUnavailable)
}

func TestSnapshotNoPrice(t *testing.T) {
	srv, _ := newYahooServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"quoteSummary":{"result":[{"price":{"longName":"Delisted Inc"}}],"error":null}}`))
	})

	_, err := newTestYFinance(srv).Snapshot(context.Background(), "DLST")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDataUnavailable)
}

func TestSnapshotWithoutCrumb(t *testing.T) {
	var gotCrumb = "unset"
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/test/getcrumb", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	mux.HandleFunc("/v10/finance/quoteSummary/", func(w http.ResponseWriter, r *http.Request) {
		gotCrumb = r.URL.Query().Get("crumb")
		w.Write([]byte(msftSummary))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	y := NewYFinance(WithBaseURL(srv.URL), WithCookieURL(""), WithHTTPClient(srv.Client()))
	snap, err := y.Snapshot(context.Background(), "MSFT")
	require.NoError(t, err)
	assert.Equal(t, "", gotCrumb)
	assert.Equal(t, "Microsoft Corporation", snap.CompanyName)
}

func TestSnapshotEmptyTicker(t *testing.T) {
	_, err := NewYFinance().Snapshot(context.Background(), "")
	assert.ErrorIs(t, err, ErrTickerNotFound)
}

func TestSnapshotCancelledContext(t *testing.T) {
	srv, _ := newYahooServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(msftSummary))
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestYFinance(srv).Snapshot(ctx, "MSFT")
	assert.ErrorIs(t, err, ErrDataUnavailable)
}
