// Package pipeline drives one report run: parse the ticker, fetch market
// data, analyze it, then print and optionally save the report.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/seenimoa/investreport/internal/agent"
	"github.com/seenimoa/investreport/internal/config"
	"github.com/seenimoa/investreport/internal/datasource"
	"github.com/seenimoa/investreport/internal/report"
	"github.com/seenimoa/investreport/pkg/models"
)

// State is a pipeline stage.
type State string

const (
	StateParsing   State = "parsing"
	StateFetching  State = "fetching"
	StateAnalyzing State = "analyzing"
	StateComposing State = "composing"
	StateDone      State = "done"
	StateFailed    State = "failed"
)

// order ranks the forward path. Failed may follow any non-terminal state.
var order = map[State]int{
	StateParsing:   0,
	StateFetching:  1,
	StateAnalyzing: 2,
	StateComposing: 3,
	StateDone:      4,
}

// Terminal reports whether no further transitions are allowed.
func (s State) Terminal() bool { return s == StateDone || s == StateFailed }

// ErrInvalidTicker is returned when the ticker argument is empty.
var ErrInvalidTicker = errors.New("invalid ticker")

// Fetcher returns the market snapshot for a ticker.
type Fetcher interface {
	Snapshot(ctx context.Context, ticker models.Ticker) (*models.MarketSnapshot, error)
}

// Analyzer turns a snapshot into an analysis.
type Analyzer interface {
	Analyze(ctx context.Context, snapshot *models.MarketSnapshot) (*models.AnalysisResult, error)
}

// Transition records one state change.
type Transition struct {
	From State
	To   State
	At   time.Time
	Err  error
}

// Request is one invocation.
type Request struct {
	Ticker string
	Output string // file path; empty means console only
}

// Result is what a successful run produced.
type Result struct {
	Report  *models.Report
	Path    string // saved file, empty when not requested
	Elapsed time.Duration
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// Pipeline runs a single report from ticker to file. It is not reusable: a
// second Run on the same Pipeline fails.
type Pipeline struct {
	fetcher  Fetcher
	analyzer Analyzer
	console  *report.Console
	logger   *zap.Logger
	now      func() time.Time

	mu      sync.Mutex
	state   State
	history []Transition
}

// New creates a pipeline.
func New(fetcher Fetcher, analyzer Analyzer, console *report.Console, opts ...Option) *Pipeline {
	p := &Pipeline{
		fetcher:  fetcher,
		analyzer: analyzer,
		console:  console,
		logger:   zap.NewNop(),
		now:      time.Now,
		state:    StateParsing,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// State returns the current state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// History returns the transitions so far, oldest first.
func (p *Pipeline) History() []Transition {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Transition, len(p.history))
	copy(out, p.history)
	return out
}

func (p *Pipeline) advance(to State) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	from := p.state
	if from.Terminal() || order[to] <= order[from] {
		return fmt.Errorf("pipeline: illegal transition %s -> %s", from, to)
	}
	p.record(from, to, nil)
	return nil
}

func (p *Pipeline) fail(err error) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.state.Terminal() {
		p.record(p.state, StateFailed, err)
	}
	return err
}

func (p *Pipeline) record(from, to State, err error) {
	p.state = to
	p.history = append(p.history, Transition{From: from, To: to, At: p.now(), Err: err})
	if err != nil {
		p.logger.Warn("pipeline failed", zap.String("state", string(from)), zap.Error(err))
		return
	}
	p.logger.Debug("pipeline transition", zap.String("from", string(from)), zap.String("state", string(to)))
}

// Run executes the pipeline. The console receives the transcript as it
// happens; the file is written only after a complete analysis.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	if p.State() != StateParsing || len(p.History()) > 0 {
		return nil, fmt.Errorf("pipeline: already run")
	}

	begun := p.now()

	// Parsing
	ticker := models.NewTicker(req.Ticker)
	if ticker.IsZero() {
		return nil, p.fail(fmt.Errorf("%w: %q", ErrInvalidTicker, req.Ticker))
	}
	log := p.logger.With(zap.String("ticker", ticker.String()))
	p.console.Analyzing(ticker)
	p.console.Started(p.now())

	// Fetching
	if err := p.advance(StateFetching); err != nil {
		return nil, p.fail(err)
	}
	start := p.now()
	snapshot, err := p.fetcher.Snapshot(ctx, ticker)
	if err != nil {
		return nil, p.fail(err)
	}
	log.Info("market data fetched", zap.Duration("latency", p.now().Sub(start)))
	p.console.CurrentPrice(*snapshot)

	// Analyzing
	if err := p.advance(StateAnalyzing); err != nil {
		return nil, p.fail(err)
	}
	start = p.now()
	analysis, err := p.analyzer.Analyze(ctx, snapshot)
	if err != nil {
		return nil, p.fail(err)
	}
	log.Info("analysis complete",
		zap.String("recommendation", string(analysis.Recommendation)),
		zap.Duration("latency", p.now().Sub(start)))

	// Composing
	if err := p.advance(StateComposing); err != nil {
		return nil, p.fail(err)
	}
	r := report.New(*snapshot, *analysis, p.now())
	p.console.Complete(r)

	result := &Result{Report: r}
	if req.Output != "" {
		if err := report.WriteFile(req.Output, report.RenderFile(r)); err != nil {
			return nil, p.fail(err)
		}
		result.Path = req.Output
		p.console.Saved(req.Output)
		log.Info("report saved", zap.String("path", req.Output))
	}
	finished := p.now()
	p.console.Completed(finished)

	if err := p.advance(StateDone); err != nil {
		return nil, p.fail(err)
	}
	result.Elapsed = finished.Sub(begun)
	log.Info("report complete", zap.String("elapsed", report.FormatDuration(result.Elapsed)))
	return result, nil
}

// Describe turns a run error into the single line shown to the user.
func Describe(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, config.ErrMissingCredential):
		return err.Error()
	case errors.Is(err, ErrInvalidTicker), errors.Is(err, datasource.ErrDataUnavailable):
		return "Invalid ticker or data unavailable: " + detail(err, datasource.ErrDataUnavailable)
	case errors.Is(err, agent.ErrAnalysisFailed):
		return "Analysis failed: " + detail(err, agent.ErrAnalysisFailed)
	case errors.Is(err, report.ErrWriteFailed):
		return "Save failed: " + detail(err, report.ErrWriteFailed)
	case errors.Is(err, context.Canceled):
		return "Interrupted"
	default:
		return err.Error()
	}
}

// detail strips the sentinel's own text from the front of the message.
func detail(err, sentinel error) string {
	msg := err.Error()
	if rest, ok := strings.CutPrefix(msg, sentinel.Error()+": "); ok {
		return rest
	}
	return msg
}
