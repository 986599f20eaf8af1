package main

import (
	"fmt"
	"os"

	"github.com/ErronZrz/rank-poll/internal/telemetry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Global flags
	verbose  bool
	logLevel string

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "poll",
	Short: "Ranked-choice poll server and ballot submitter",
	Long: `poll runs a ranked-choice poll. Voters order items on a ballot page;
everything above the delimiter is their ranking, and the best item is elected
by instant-runoff voting.

Configuration is read from POLL_* environment variables and an optional .env file.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		logger, err = telemetry.NewLogger(logLevel, verbose)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (overrides POLL_LOG_LEVEL)")

	rootCmd.AddCommand(serveCmd, submitCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
