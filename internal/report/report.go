// Package report renders a finished analysis for the terminal and for the
// saved text file.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/seenimoa/investreport/pkg/models"
	"github.com/seenimoa/investreport/pkg/utils"
)

// ErrWriteFailed marks a failure to save the report file.
var ErrWriteFailed = errors.New("save failed")

// AppName is the program name used in the report attribution.
const AppName = "investreport"

// Attribution returns the footer credit, e.g. "investreport (openai/gpt-4o)".
func Attribution(provider, model string) string {
	switch {
	case provider != "" && model != "":
		return fmt.Sprintf("%s (%s/%s)", AppName, provider, model)
	case model != "":
		return fmt.Sprintf("%s (%s)", AppName, model)
	default:
		return AppName
	}
}

// New joins a snapshot and its analysis into a Report stamped with at.
func New(snapshot models.MarketSnapshot, analysis models.AnalysisResult, at time.Time) *models.Report {
	return &models.Report{
		Ticker:      snapshot.Ticker,
		Snapshot:    snapshot,
		Analysis:    analysis,
		GeneratedAt: at,
		Attribution: Attribution(analysis.Provider, analysis.Model),
	}
}

// ════════════════════════════════════════════════════════════════════
// File rendering
// ════════════════════════════════════════════════════════════════════

const (
	fileRule   = "=================================================="
	footerRule = "--------------------------------------------------"
)

// RenderFile returns the saved-report text for r. The output depends only on
// r, so rendering the same report twice yields identical bytes.
func RenderFile(r *models.Report) string {
	s, a := r.Snapshot, r.Analysis

	var sb strings.Builder
	sb.WriteString("INVESTMENT ANALYSIS REPORT\n")
	sb.WriteString(fileRule + "\n")
	fmt.Fprintf(&sb, "Generated: %s\n", utils.FormatTimestamp(r.GeneratedAt))
	fmt.Fprintf(&sb, "Ticker: %s\n\n", r.Ticker)

	fmt.Fprintf(&sb, "Company Name: %s\n", orNA(s.CompanyName))
	fmt.Fprintf(&sb, "Current Price: %s\n", utils.FormatPrice(s.CurrentPrice))
	fmt.Fprintf(&sb, "Target Price: %s\n", utils.FormatPrice(a.TargetPrice))
	fmt.Fprintf(&sb, "Recommendation: %s\n", a.Recommendation)
	fmt.Fprintf(&sb, "Risk Level: %s\n", a.RiskLevel)
	fmt.Fprintf(&sb, "Market Cap: %s\n", utils.FormatCompactUSD(s.MarketCap))
	fmt.Fprintf(&sb, "Pe Ratio: %s\n", utils.FormatPE(s.PERatio))
	fmt.Fprintf(&sb, "Revenue Growth: %s\n\n", utils.FormatGrowth(s.RevenueGrowth))

	writeList(&sb, "Key Strengths", a.Strengths)
	writeList(&sb, "Key Risks", a.Risks)

	sb.WriteString("Analysis Summary:\n")
	sb.WriteString(strings.TrimSpace(a.Narrative) + "\n")

	sb.WriteString("\n" + footerRule + "\n")
	attribution := r.Attribution
	if attribution == "" {
		attribution = Attribution(a.Provider, a.Model)
	}
	fmt.Fprintf(&sb, "Generated using %s\n", attribution)
	return sb.String()
}

func writeList(sb *strings.Builder, title string, items []string) {
	sb.WriteString(title + ":\n")
	for _, item := range items {
		fmt.Fprintf(sb, "  • %s\n", item)
	}
	sb.WriteString("\n")
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return utils.NotAvailable
	}
	return s
}

// ════════════════════════════════════════════════════════════════════
// File writer
// ════════════════════════════════════════════════════════════════════

// WriteFile saves content at path, replacing any existing file. The content
// goes to a temporary file in the same directory first and is renamed into
// place, so a failed write never leaves a partial report behind.
func WriteFile(path, content string) error {
	if strings.TrimSpace(path) == "" {
		return errors.Wrap(ErrWriteFailed, "empty output path")
	}
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("%w: write %s: %w", ErrWriteFailed, path, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("%w: close %s: %w", ErrWriteFailed, path, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	return nil
}

// FormatDuration formats a duration for display.
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%.1fm", d.Minutes())
	}
	return fmt.Sprintf("%.1fh", d.Hours())
}
