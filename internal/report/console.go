package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/seenimoa/investreport/pkg/models"
	"github.com/seenimoa/investreport/pkg/utils"
)

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#8A8A8A", Dark: "#6C6C6C"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	positive  = lipgloss.AdaptiveColor{Light: "#1E8E3E", Dark: "#73F59F"}
	caution   = lipgloss.AdaptiveColor{Light: "#B06000", Dark: "#F5C451"}
	negative  = lipgloss.AdaptiveColor{Light: "#C5221F", Dark: "#F27878"}
)

type consoleStyles struct {
	title   lipgloss.Style
	heading lipgloss.Style
	muted   lipgloss.Style
	value   lipgloss.Style
	good    lipgloss.Style
	warn    lipgloss.Style
	bad     lipgloss.Style
}

func newConsoleStyles(r *lipgloss.Renderer) consoleStyles {
	return consoleStyles{
		title:   r.NewStyle().Foreground(highlight).Bold(true),
		heading: r.NewStyle().Bold(true),
		muted:   r.NewStyle().Foreground(subtle),
		value:   r.NewStyle().Bold(true),
		good:    r.NewStyle().Foreground(positive).Bold(true),
		warn:    r.NewStyle().Foreground(caution).Bold(true),
		bad:     r.NewStyle().Foreground(negative).Bold(true),
	}
}

// Console writes the run transcript. Colors depend on the renderer, so a
// non-terminal writer gets plain text.
type Console struct {
	w      io.Writer
	styles consoleStyles
}

// NewConsole returns a Console that styles output for w.
func NewConsole(w io.Writer) *Console {
	return NewConsoleWithRenderer(w, lipgloss.NewRenderer(w))
}

// NewConsoleWithRenderer returns a Console using an explicit renderer.
func NewConsoleWithRenderer(w io.Writer, r *lipgloss.Renderer) *Console {
	return &Console{w: w, styles: newConsoleStyles(r)}
}

func (c *Console) println(s string) {
	fmt.Fprintln(c.w, s)
}

// Banner prints the program header.
func (c *Console) Banner() {
	c.println(c.styles.title.Render("🚀 Investment Report Generator"))
	c.println(strings.Repeat("=", 50))
}

// Analyzing announces the ticker being analyzed.
func (c *Console) Analyzing(ticker models.Ticker) {
	c.println(fmt.Sprintf("🔍 Analyzing %s...", c.styles.value.Render(ticker.String())))
}

// Started prints the start time.
func (c *Console) Started(t time.Time) {
	c.println(c.styles.muted.Render("⏰ Started: " + utils.FormatClock(t)))
}

// CurrentPrice prints the fetched price.
func (c *Console) CurrentPrice(s models.MarketSnapshot) {
	c.println(fmt.Sprintf("📊 Current price: %s", utils.FormatUSD(s.CurrentPrice)))
}

// Complete prints the finished analysis block.
func (c *Console) Complete(r *models.Report) {
	s, a := r.Snapshot, r.Analysis

	c.println("")
	c.println(c.styles.heading.Render("📈 ANALYSIS COMPLETE!"))
	c.println(strings.Repeat("=", 40))
	c.println(fmt.Sprintf("🏢 %s (%s)", orNA(s.CompanyName), r.Ticker))
	c.println(fmt.Sprintf("💰 Price: %s", utils.FormatUSD(s.CurrentPrice)))
	c.println(fmt.Sprintf("🎯 Target: %s", c.styles.value.Render(utils.FormatUSD(a.TargetPrice))))
	c.println(fmt.Sprintf("📊 Recommendation: %s", c.recommendation(a.Recommendation)))
	c.println(fmt.Sprintf("⚠️  Risk: %s", c.risk(a.RiskLevel)))
	c.println(fmt.Sprintf("🏭 Market Cap: %s", utils.FormatCompactUSD(s.MarketCap)))
	c.println(fmt.Sprintf("📊 P/E: %s", utils.FormatPE(s.PERatio)))
	c.println(fmt.Sprintf("📈 Growth: %s", utils.FormatGrowth(s.RevenueGrowth)))

	c.println("")
	c.println(c.styles.good.Render("✅ KEY STRENGTHS:"))
	for _, item := range a.Strengths {
		c.println("   • " + item)
	}
	c.println("")
	c.println(c.styles.bad.Render("❌ KEY RISKS:"))
	for _, item := range a.Risks {
		c.println("   • " + item)
	}

	c.println("")
	c.println(c.styles.heading.Render("📝 ANALYSIS:"))
	c.println(strings.Repeat("-", 30))
	c.println(strings.TrimSpace(a.Narrative))
}

// Saved reports where the file was written.
func (c *Console) Saved(path string) {
	c.println(fmt.Sprintf("💾 Saved to: %s", path))
}

// Completed prints the completion time.
func (c *Console) Completed(t time.Time) {
	c.println("")
	c.println(c.styles.muted.Render("⏰ Completed: " + utils.FormatClock(t)))
}

// Failure prints a single error line.
func (c *Console) Failure(msg string) {
	c.println(c.styles.bad.Render("❌ " + msg))
}

// Hint prints a follow-up suggestion under a failure.
func (c *Console) Hint(msg string) {
	c.println(c.styles.muted.Render("💡 " + msg))
}

func (c *Console) recommendation(r models.Recommendation) string {
	switch r {
	case models.Buy:
		return c.styles.good.Render(string(r))
	case models.Sell:
		return c.styles.bad.Render(string(r))
	default:
		return c.styles.warn.Render(string(r))
	}
}

func (c *Console) risk(l models.RiskLevel) string {
	switch l {
	case models.RiskLow:
		return c.styles.good.Render(string(l))
	case models.RiskHigh:
		return c.styles.bad.Render(string(l))
	default:
		return c.styles.warn.Render(string(l))
	}
}
