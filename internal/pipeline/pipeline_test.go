package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seenimoa/investreport/internal/agent"
	"github.com/seenimoa/investreport/internal/config"
	"github.com/seenimoa/investreport/internal/datasource"
	"github.com/seenimoa/investreport/internal/llm"
	"github.com/seenimoa/investreport/internal/report"
	"github.com/seenimoa/investreport/pkg/models"
)

type fakeFetcher struct {
	snapshot *models.MarketSnapshot
	err      error
	calls    int
	got      models.Ticker
}

func (f *fakeFetcher) Snapshot(ctx context.Context, ticker models.Ticker) (*models.MarketSnapshot, error) {
	f.calls++
	f.got = ticker
	return f.snapshot, f.err
}

type fakeAnalyzer struct {
	result *models.AnalysisResult
	err    error
	calls  int
	onCall func()
}

func (a *fakeAnalyzer) Analyze(ctx context.Context, snapshot *models.MarketSnapshot) (*models.AnalysisResult, error) {
	a.calls++
	if a.onCall != nil {
		a.onCall()
	}
	return a.result, a.err
}

func msftSnapshot() *models.MarketSnapshot {
	return &models.MarketSnapshot{
		Ticker:        "MSFT",
		CompanyName:   "Microsoft Corporation",
		CurrentPrice:  decimal.RequireFromString("420.55"),
		MarketCap:     decimal.RequireFromString("3120000000000"),
		PERatio:       models.DecimalPtr(decimal.RequireFromString("34.2")),
		RevenueGrowth: models.DecimalPtr(decimal.RequireFromString("0.123")),
	}
}

func msftAnalysis() *models.AnalysisResult {
	return &models.AnalysisResult{
		TargetPrice:    decimal.RequireFromString("441.58"),
		Recommendation: models.Buy,
		RiskLevel:      models.RiskMedium,
		Strengths:      []string{"Strong cloud computing growth"},
		Risks:          []string{"Competitive pressure"},
		Narrative:      "Microsoft demonstrates strong fundamentals...",
		Provider:       "openai",
		Model:          "gpt-4o",
	}
}

func newTestPipeline(f Fetcher, a Analyzer) (*Pipeline, *bytes.Buffer) {
	var buf bytes.Buffer
	r := lipgloss.NewRenderer(&buf)
	r.SetColorProfile(termenv.Ascii)
	clock := time.Date(2025, 3, 12, 14, 5, 9, 0, time.UTC)
	p := New(f, a, report.NewConsoleWithRenderer(&buf, r), WithClock(func() time.Time { return clock }))
	return p, &buf
}

func states(history []Transition) []State {
	out := make([]State, len(history))
	for i, t := range history {
		out[i] = t.To
	}
	return out
}

func TestRunSuccessWritesFile(t *testing.T) {
	fetcher := &fakeFetcher{snapshot: msftSnapshot()}
	analyzer := &fakeAnalyzer{result: msftAnalysis()}
	p, buf := newTestPipeline(fetcher, analyzer)
	path := filepath.Join(t.TempDir(), "msft.txt")

	result, err := p.Run(context.Background(), Request{Ticker: " msft ", Output: path})
	require.NoError(t, err)

	assert.Equal(t, models.Ticker("MSFT"), fetcher.got)
	assert.Equal(t, path, result.Path)
	assert.Equal(t, StateDone, p.State())
	assert.Equal(t, []State{StateFetching, StateAnalyzing, StateComposing, StateDone}, states(p.History()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, report.RenderFile(result.Report), string(data))
	assert.Contains(t, string(data), "Generated using investreport (openai/gpt-4o)")
	assert.Contains(t, buf.String(), "💾 Saved to: "+path)
}

func TestRunReportsElapsed(t *testing.T) {
	now := time.Date(2025, 3, 12, 14, 5, 9, 0, time.UTC)
	analyzer := &fakeAnalyzer{result: msftAnalysis(), onCall: func() { now = now.Add(42 * time.Second) }}

	var buf bytes.Buffer
	r := lipgloss.NewRenderer(&buf)
	r.SetColorProfile(termenv.Ascii)
	p := New(&fakeFetcher{snapshot: msftSnapshot()}, analyzer, report.NewConsoleWithRenderer(&buf, r),
		WithClock(func() time.Time { return now }))

	result, err := p.Run(context.Background(), Request{Ticker: "MSFT"})
	require.NoError(t, err)
	assert.Equal(t, 42*time.Second, result.Elapsed)
	assert.Contains(t, buf.String(), "⏰ Started: 14:05:09")
	assert.Contains(t, buf.String(), "⏰ Completed: 14:05:51")
}

func TestRunPassesListedSymbolsThrough(t *testing.T) {
	for input, want := range map[string]models.Ticker{
		"DOW":   "DOW",
		"twtr":  "TWTR",
		"DAX":   "DAX",
		"$TATA": "TATA",
	} {
		fetcher := &fakeFetcher{snapshot: msftSnapshot()}
		p, buf := newTestPipeline(fetcher, &fakeAnalyzer{result: msftAnalysis()})
		_, err := p.Run(context.Background(), Request{Ticker: input})
		require.NoError(t, err, input)
		assert.Equal(t, want, fetcher.got, input)
		assert.Contains(t, buf.String(), "Analyzing "+string(want), input)
	}
}

func TestRunWithoutOutputWritesNothing(t *testing.T) {
	p, buf := newTestPipeline(&fakeFetcher{snapshot: msftSnapshot()}, &fakeAnalyzer{result: msftAnalysis()})
	result, err := p.Run(context.Background(), Request{Ticker: "MSFT"})
	require.NoError(t, err)
	assert.Empty(t, result.Path)
	assert.NotContains(t, buf.String(), "Saved to")
	assert.Contains(t, buf.String(), "📈 ANALYSIS COMPLETE!")
}

func TestRunFetchFailureSkipsAnalysis(t *testing.T) {
	fetcher := &fakeFetcher{err: fmt.Errorf("%w: ZZZZ", datasource.ErrTickerNotFound)}
	analyzer := &fakeAnalyzer{result: msftAnalysis()}
	p, buf := newTestPipeline(fetcher, analyzer)
	path := filepath.Join(t.TempDir(), "out.txt")

	_, err := p.Run(context.Background(), Request{Ticker: "ZZZZ", Output: path})
	require.Error(t, err)
	assert.ErrorIs(t, err, datasource.ErrDataUnavailable)
	assert.Equal(t, 0, analyzer.calls)
	assert.Equal(t, StateFailed, p.State())
	assert.Equal(t, []State{StateFetching, StateFailed}, states(p.History()))
	assert.NotContains(t, buf.String(), "Current price")
	assert.NoFileExists(t, path)
}

func TestRunAnalysisFailureWritesNoFile(t *testing.T) {
	analyzer := &fakeAnalyzer{err: fmt.Errorf("%w: %w", agent.ErrAnalysisFailed, llm.ErrRateLimit)}
	p, buf := newTestPipeline(&fakeFetcher{snapshot: msftSnapshot()}, analyzer)
	path := filepath.Join(t.TempDir(), "out.txt")

	_, err := p.Run(context.Background(), Request{Ticker: "MSFT", Output: path})
	assert.ErrorIs(t, err, agent.ErrAnalysisFailed)
	assert.Equal(t, []State{StateFetching, StateAnalyzing, StateFailed}, states(p.History()))
	assert.NoFileExists(t, path)
	assert.Contains(t, buf.String(), "📊 Current price: $420.55")
	assert.NotContains(t, buf.String(), "ANALYSIS COMPLETE")
}

func TestRunWriteFailureAfterConsole(t *testing.T) {
	p, buf := newTestPipeline(&fakeFetcher{snapshot: msftSnapshot()}, &fakeAnalyzer{result: msftAnalysis()})
	path := filepath.Join(t.TempDir(), "missing", "out.txt")

	_, err := p.Run(context.Background(), Request{Ticker: "MSFT", Output: path})
	assert.ErrorIs(t, err, report.ErrWriteFailed)
	assert.Equal(t, StateFailed, p.State())
	assert.Contains(t, buf.String(), "📈 ANALYSIS COMPLETE!")
}

func TestRunEmptyTicker(t *testing.T) {
	fetcher := &fakeFetcher{snapshot: msftSnapshot()}
	p, _ := newTestPipeline(fetcher, &fakeAnalyzer{})
	_, err := p.Run(context.Background(), Request{Ticker: "  "})
	assert.ErrorIs(t, err, ErrInvalidTicker)
	assert.Equal(t, 0, fetcher.calls)
	assert.Equal(t, []State{StateFailed}, states(p.History()))
}

func TestRunTwiceFails(t *testing.T) {
	p, _ := newTestPipeline(&fakeFetcher{snapshot: msftSnapshot()}, &fakeAnalyzer{result: msftAnalysis()})
	_, err := p.Run(context.Background(), Request{Ticker: "MSFT"})
	require.NoError(t, err)
	_, err = p.Run(context.Background(), Request{Ticker: "MSFT"})
	assert.Error(t, err)
	assert.Len(t, p.History(), 4)
}

func TestAdvanceRejectsBackwardMoves(t *testing.T) {
	p, _ := newTestPipeline(nil, nil)
	require.NoError(t, p.advance(StateFetching))
	require.NoError(t, p.advance(StateAnalyzing))
	assert.Error(t, p.advance(StateFetching))
	assert.Error(t, p.advance(StateAnalyzing))
	require.NoError(t, p.advance(StateComposing))
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("%w: set OPENAI_API_KEY", config.ErrMissingCredential), "API key not found: set OPENAI_API_KEY"},
		{fmt.Errorf("%w: ZZZZ", datasource.ErrTickerNotFound), "Invalid ticker or data unavailable: ticker not found: ZZZZ"},
		{fmt.Errorf("%w: %w", agent.ErrAnalysisFailed, llm.ErrRateLimit), "Analysis failed: " + llm.ErrRateLimit.Error()},
		{fmt.Errorf("%w: disk full", report.ErrWriteFailed), "Save failed: disk full"},
		{context.Canceled, "Interrupted"},
		{errors.New("boom"), "boom"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Describe(tt.err))
	}
	assert.Empty(t, Describe(nil))
}
