package main

import (
	"errors"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	verbose bool
	output  string
	cfgFile string

	logger zerolog.Logger
)

// exitError carries a specific process exit code (spec.md §6 CLI
// surface: 0 success, 128+signal on signal death, 2 on config error, 1
// on generic failure).
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func configError(err error) error { return &exitError{code: 2, err: err} }
func signalError(sig os.Signal) error {
	return &exitError{code: 128 + signalNumber(sig), err: errors.New("terminated by " + sig.String())}
}

var rootCmd = &cobra.Command{
	Use:   "autopilotd",
	Short: "Supervises an autonomous coding worker and its compute marketplace jobs",
	Long: `autopilotd supervises a single autonomous coding worker process:
restart-with-backoff, a bounded agent pool, a sats budget ledger, a
trajectory tracker, and a NIP-90 compute marketplace client.

Subcommands:
  run      spawn and supervise the worker
  status   emit the current metrics snapshot as JSON
  resume   resume from a trajectory log
  metrics  dump Prometheus text-format metrics`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		syncConfigFlagToEnv()

		level := zerolog.InfoLevel
		if verbose {
			level = zerolog.DebugLevel
		}
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
			Level(level).
			With().Timestamp().Logger()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "json", "output format (json, table)")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file read in place of ./.autopilotd/config.yaml")
}

// Execute runs the root command and translates any exitError into a
// process exit code.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		var ee *exitError
		if errors.As(err, &ee) {
			logger.Error().Err(ee.err).Msg("autopilotd exiting")
			os.Exit(ee.code)
		}
		logger.Error().Err(err).Msg("autopilotd exiting")
		os.Exit(1)
	}
}

func syncConfigFlagToEnv() {
	path := strings.TrimSpace(cfgFile)
	if path == "" {
		return
	}
	_ = os.Setenv("AUTOPILOTD_CONFIG", path)
}
