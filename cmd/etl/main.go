package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/David-Botos/orders-etl/pkg/config"
	"github.com/David-Botos/orders-etl/pkg/pipeline"
)

var rootFlags struct {
	rawDir    string
	outDir    string
	config    string
	envFile   string
	logLevel  string
	logFormat string
}

func newRootCmd() *cobra.Command {
	defaults := config.Default()

	cmd := &cobra.Command{
		Use:   "etl",
		Short: "Clean, join and enrich the orders and users extracts",
		Long: `Reads orders.csv and users.csv from the raw directory, cleans and joins
them, derives time features and IQR outlier flags, and writes
orders_clean, users and analytics_table as Parquet together with
_run_meta.json in the output directory.

Paths can also be set with ETL_RAW_DIR and ETL_OUT_DIR. Flags win over
the environment, which wins over the config file.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runETL,
	}

	cmd.Flags().StringVar(&rootFlags.rawDir, "raw-dir", defaults.RawDir, "Directory holding the raw extracts")
	cmd.Flags().StringVar(&rootFlags.outDir, "out-dir", defaults.ProcessedDir, "Directory for processed outputs")
	cmd.Flags().StringVarP(&rootFlags.config, "config", "c", "", "Optional YAML config file")
	cmd.Flags().StringVar(&rootFlags.envFile, "env-file", ".env", "Optional .env file with path overrides")
	cmd.Flags().StringVar(&rootFlags.logLevel, "log-level", defaults.LogLevel, "Log level (debug, info, warn, error)")
	cmd.Flags().StringVar(&rootFlags.logFormat, "log-format", defaults.LogFormat, "Log format (console, json)")
	return cmd
}

func runETL(cmd *cobra.Command, _ []string) error {
	if err := config.LoadEnvFile(rootFlags.envFile); err != nil {
		return err
	}

	cfg, err := config.LoadConfig(rootFlags.config)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("raw-dir") {
		cfg.RawDir = rootFlags.rawDir
	}
	if flags.Changed("out-dir") {
		cfg.ProcessedDir = rootFlags.outDir
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = rootFlags.logLevel
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = rootFlags.logFormat
	}

	logger, err := pipeline.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	p, err := pipeline.New(cfg, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := p.Run(ctx)
	if err != nil {
		logger.Error("ETL run failed",
			zap.String("category", pipeline.CategorizeError(err).String()),
			zap.Error(err))
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "run %s complete: metadata written to %s\n", result.RunID, result.MetadataPath)
	return nil
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
