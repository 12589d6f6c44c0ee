package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/sigrun/config"
)

var rootCmd = &cobra.Command{
	Use:   "sigrun",
	Short: "A signal lifecycle engine for strategy backtesting and live execution",
	Long: `Sigrun drives trading strategies through a crash-safe signal lifecycle:
proposals are validated, risk-gated, scheduled or opened, tracked through
breakeven and partial milestones, and closed on take-profit, stop-loss or
expiry.

It provides tools for:
  - Backtesting strategies against recorded candle feeds
  - Walking a parameter grid and ranking variants by realized return
  - Running a live loop with durable crash recovery
  - Journaling every closed signal to CSV or SQLite`,
}

var (
	cfgPath  string
	logLevel string
	logJSON  bool
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (YAML or JSON); defaults apply when omitted")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "emit JSON logs instead of console output")
}

func newLogger() (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("parse log level: %w", err)
	}

	var log zerolog.Logger
	if logJSON {
		log = zerolog.New(os.Stderr)
	} else {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	return log.Level(level).With().Timestamp().Logger(), nil
}

func loadConfig() (*config.Config, error) {
	if cfgPath == "" {
		return config.Default(), nil
	}
	return config.LoadFromFile(cfgPath)
}
