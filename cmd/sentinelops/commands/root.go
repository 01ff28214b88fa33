package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/adityaviki/sentinelops/internal/logging"
)

const version = "0.1.0"

var (
	logLevel   string
	configPath string
)

var rootCmd = &cobra.Command{
	Use:     "sentinelops",
	Short:   "SentinelOps - detection-to-incident response pipeline",
	Long:    `SentinelOps ingests logs and metrics, detects anomalies, correlates cross-service events, matches runbooks, calls a language model for analysis, and emits deduplicated incidents to notification channels.`,
	Version: version,
}

// Execute runs the root command and returns the process exit code: 0 for a
// clean shutdown, 1 for an unrecoverable configuration error, 2 for a
// startup connectivity failure to the observability backend.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		if code, ok := err.(exitCoder); ok {
			return code.ExitCode()
		}
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error, fatal)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to sentinelops.yaml; empty uses built-in defaults")

	rootCmd.AddCommand(serveCmd)
}

func setupLogging() error {
	return logging.Initialize(logLevel)
}

// exitCoder is implemented by errors that carry an explicit process exit
// code, distinguishing a fatal configuration error (1) from a startup
// connectivity failure (2).
type exitCoder interface {
	error
	ExitCode() int
}

type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) ExitCode() int { return e.code }
func (e *exitError) Unwrap() error { return e.err }
