// Package cli provides the command-line interface for the binary options engine.
package cli

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"updown-core/internal/config"
	"updown-core/internal/ledger"
	"updown-core/internal/logging"
)

// Version information
const (
	Version = "0.1.0"
)

// App holds the application dependencies.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	Ledger ledger.Ledger
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app := &App{
		Config: cfg,
		Logger: logger,
		Ledger: ledger.NewHTTPLedger(ledger.HTTPConfig{
			BaseURL:   cfg.Ledger.BaseURL,
			AuthToken: cfg.Ledger.AuthToken,
			Timeout:   cfg.Ledger.Timeout,
		}, logger),
	}

	rootCmd := &cobra.Command{
		Use:   "updown",
		Short: "Short-duration binary options pricing and settlement engine",
		Long: `updown ingests a streaming asset quote, derives strike prices at
trade open, settles expired positions against a static payout table,
and records results against the external ledger exactly once.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if debug, _ := cmd.Flags().GetBool("debug"); debug {
			logging.SetDebugLevel()
		}
		cmd.SetContext(logging.WithLogger(cmd.Context(), app.Logger))
	}

	rootCmd.AddCommand(
		newStreamCmd(app),
		newSettleCmd(app),
		newRetryCmd(app),
		newMetricsCmd(app),
		newOffsetsCmd(),
		newHistoryCmd(app),
		newVersionCmd(),
	)

	return rootCmd
}

// Execute loads configuration, builds the logger, and runs the root command.
func Execute() error {
	cfg, err := config.Load("")
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := logging.NewLoggerWithConfig(logging.LogConfig{
		Level:      cfg.Logging.Level,
		Console:    cfg.Logging.Console,
		File:       cfg.Logging.File,
		FilePath:   cfg.Logging.Path,
		MaxSize:    100,
		MaxBackups: 7,
		MaxAge:     30,
	})

	return NewRootCmd(cfg, logger).Execute()
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("updown-core %s\n", Version)
		},
	}
}
