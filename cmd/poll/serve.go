package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/ErronZrz/rank-poll/internal/app"
	"github.com/ErronZrz/rank-poll/internal/config"
	"github.com/ErronZrz/rank-poll/internal/telemetry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var envFiles []string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the poll HTTP server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringSliceVar(&envFiles, "env-file", nil, "dotenv files to load (default .env)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(envFiles...)
	if err != nil {
		return err
	}
	// POLL_LOG_LEVEL applies when no flag set the level
	if logLevel == "" && !verbose && cfg.LogLevel != "" {
		if logger, err = telemetry.NewLogger(cfg.LogLevel, false); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.NewApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	logger.Info("poll starting", zap.String("addr", cfg.Addr), zap.String("store", cfg.Store))
	if err := a.Run(ctx, nil); err != nil {
		return err
	}
	logger.Info("bye")
	return nil
}
