package main

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/seenimoa/investreport/internal/agent"
	"github.com/seenimoa/investreport/internal/config"
	"github.com/seenimoa/investreport/internal/datasource"
	"github.com/seenimoa/investreport/internal/infra"
	"github.com/seenimoa/investreport/internal/llm"
	"github.com/seenimoa/investreport/internal/pipeline"
	"github.com/seenimoa/investreport/internal/report"
)

type runOptions struct {
	Ticker   string
	Model    string
	Output   string
	NoSearch bool
}

// credentialVars names the variable to set for each provider's key.
var credentialVars = map[string]string{
	config.ProviderOpenAI:    "OPENAI_API_KEY",
	config.ProviderAnthropic: "ANTHROPIC_API_KEY",
	config.ProviderGemini:    "GEMINI_API_KEY",
}

func runReport(ctx context.Context, out io.Writer, opts runOptions) error {
	console := report.NewConsole(out)
	console.Banner()

	logger, err := newLogger(cfg.Logging)
	if err != nil {
		console.Failure(err.Error())
		return errReported
	}
	defer func() { _ = logger.Sync() }()
	logger = logger.With(zap.String("run_id", uuid.NewString()))

	provider, spec, err := llm.NewProviderFromConfig(ctx, cfg, opts.Model, logger)
	if spec.Provider != "" {
		if verr := cfg.Validate(spec.Provider); verr != nil {
			console.Failure(pipeline.Describe(verr))
			if env, ok := credentialVars[spec.Provider]; ok && errors.Is(verr, config.ErrMissingCredential) {
				console.Hint("Create .env file with: " + env + "=your-key-here")
			}
			return errReported
		}
	}
	if err != nil {
		console.Failure(err.Error())
		return errReported
	}
	logger = logger.With(zap.String("provider", spec.Provider), zap.String("model", spec.Model))

	market := datasource.NewYFinance(
		datasource.WithBaseURL(cfg.Market.BaseURL),
		datasource.WithCookieURL(cfg.Market.CookieURL),
		datasource.WithHTTPClient(datasource.NewHTTPClient(cfg.Market.Timeout())),
		datasource.WithLogger(logger),
	)

	analystCfg := agent.ConfigFrom(cfg)
	analystOpts := []agent.Option{agent.WithLogger(logger)}
	if opts.NoSearch {
		analystCfg.Research = false
	}
	if analystCfg.Research {
		limiter := infra.NewRateLimiter(cfg.Search.RatePerSecond, cfg.Search.Burst)
		common := []datasource.ResearchOption{
			datasource.WithResearchHTTPClient(datasource.NewHTTPClient(cfg.Search.Timeout())),
			datasource.WithRateLimiter(limiter),
			datasource.WithResearchLogger(logger),
		}
		search := datasource.NewSearch(append(common, datasource.WithResearchBaseURL(cfg.Search.BaseURL))...)
		news := datasource.NewNews(append(common, datasource.WithResearchBaseURL(cfg.Search.NewsURL))...)
		analystOpts = append(analystOpts, agent.WithSearcher(search), agent.WithNews(news))
	}
	analyst := agent.NewAnalyst(provider, analystCfg, analystOpts...)

	p := pipeline.New(market, analyst, console, pipeline.WithLogger(logger))
	if _, err := p.Run(ctx, pipeline.Request{Ticker: opts.Ticker, Output: opts.Output}); err != nil {
		console.Failure(pipeline.Describe(err))
		return errReported
	}
	return nil
}

// newLogger builds the stderr logger from the logging section.
func newLogger(c config.LoggingConfig) (*zap.Logger, error) {
	level := zapcore.WarnLevel
	if c.Level != "" {
		parsed, err := zapcore.ParseLevel(strings.ToLower(c.Level))
		if err != nil {
			return nil, err
		}
		level = parsed
	}

	zc := zap.NewProductionConfig()
	if c.Format != "json" {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		if fi, err := os.Stderr.Stat(); err != nil || fi.Mode()&os.ModeCharDevice == 0 {
			zc.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		}
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}
	zc.DisableStacktrace = level > zapcore.DebugLevel
	return zc.Build()
}
