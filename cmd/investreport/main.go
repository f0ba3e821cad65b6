// investreport: AI-generated investment reports for a single ticker.
//
// Main CLI entrypoint using cobra command framework.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/seenimoa/investreport/internal/config"
	"github.com/seenimoa/investreport/internal/llm"
	"github.com/seenimoa/investreport/pkg/utils"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Global config
var cfg *config.Config

// errReported means the failure was already shown to the user.
var errReported = errors.New("reported")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintln(os.Stderr, "❌", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "investreport <TICKER>",
	Short: "investreport: AI investment analysis for a stock ticker",
	Long: `investreport fetches current market data for a ticker, asks an LLM
analyst for a recommendation backed by live web research, prints the
report and optionally saves it to a text file.

Examples:
  investreport MSFT
  investreport AAPL --model anthropic/claude-sonnet-4-20250514
  investreport TSLA --output tsla_report.txt`,
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadDotEnv(); err != nil {
			return err
		}
		var err error
		configFile, _ := cmd.Flags().GetString("config")
		if configFile != "" {
			cfg, err = config.LoadFromFile(configFile)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if level, _ := cmd.Flags().GetString("log-level"); level != "" {
			cfg.Logging.Level = level
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := runOptions{Ticker: args[0]}
		opts.Model, _ = cmd.Flags().GetString("model")
		opts.Output, _ = cmd.Flags().GetString("output")
		opts.NoSearch, _ = cmd.Flags().GetBool("no-search")
		return runReport(cmd.Context(), cmd.OutOrStdout(), opts)
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")

	rootCmd.Flags().StringP("model", "m", "", "LLM model as provider/model (default: openai/gpt-4o)")
	rootCmd.Flags().StringP("output", "o", "", "save the report to this file")
	rootCmd.Flags().Bool("no-search", false, "analyze without web research")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(configCmd)
}

// --- Version Command ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "investreport %s\n", version)
		fmt.Fprintf(out, "  commit:  %s\n", commit)
		fmt.Fprintf(out, "  built:   %s\n", date)
	},
}

// --- Status Command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration and API key status",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		spec, specErr := llm.ResolveModel(cfg, "")

		fmt.Fprintln(out, "═══════════════════════════════════════")
		fmt.Fprintln(out, "  investreport: System Status")
		fmt.Fprintln(out, "═══════════════════════════════════════")
		fmt.Fprintf(out, "  Version:       %s (%s)\n", version, commit)
		fmt.Fprintf(out, "  Time:          %s\n", utils.FormatTimestamp(utils.Now()))
		fmt.Fprintln(out)

		fmt.Fprintln(out, "  Configuration:")
		if specErr != nil {
			fmt.Fprintf(out, "    Model:         ❌ %v\n", specErr)
		} else {
			fmt.Fprintf(out, "    Model:         %s\n", spec)
		}
		fmt.Fprintf(out, "    Market Data:   %s\n", cfg.Market.BaseURL)
		research := "disabled"
		if cfg.Search.Enabled {
			research = fmt.Sprintf("enabled (%d results)", cfg.Search.MaxResults)
		}
		fmt.Fprintf(out, "    Web Research:  %s\n", research)
		fmt.Fprintln(out)

		fmt.Fprintln(out, "  API Keys:")
		for _, k := range config.CheckAPIKeys(cfg) {
			status := "❌ not set"
			if k.IsSet {
				status = fmt.Sprintf("✅ set (%s: %s)", k.Source, k.Masked)
			}
			fmt.Fprintf(out, "    %-25s %s\n", k.Name+":", status)
		}
		if specErr == nil {
			ready := "✅ ready"
			if err := cfg.Validate(spec.Provider); err != nil {
				ready = "❌ " + err.Error()
			}
			fmt.Fprintf(out, "    %-25s %s\n", spec.Provider+" (selected):", ready)
		}

		fmt.Fprintln(out, "═══════════════════════════════════════")
		return nil
	},
}

// --- Config Command ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration (keys masked)",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := cfg.YAML()
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}
