// Package cmd implements the techwatch command-line interface.
package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nmoreaux/techwatch/internal/app"
	"github.com/nmoreaux/techwatch/internal/config"
	"github.com/nmoreaux/techwatch/internal/logging"
)

var (
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   "techwatch",
		Short: "Aggregate tech-watch articles from curated sources",
		Long: `techwatch crawls a fixed set of tech news sources for a date
window, merges the results into a deduplicated JSON dataset and keeps
per-source health history.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
)

// Execute runs the root command.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML)")

	rootCmd.AddCommand(generateCommand())
	rootCmd.AddCommand(sourcesCommand())
	rootCmd.AddCommand(showCommand())
	rootCmd.AddCommand(serveCommand())
}

// buildApp loads configuration and wires the application. The caller
// owns the returned App and must Close it.
func buildApp(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, err
	}
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("application wiring failed", zap.Error(err))
		return nil, err
	}
	return a, nil
}
