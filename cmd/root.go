package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pable/go-curling-metrics/internal/config"
	"github.com/pable/go-curling-metrics/internal/logger"
	"github.com/pable/go-curling-metrics/internal/metrics"
)

var (
	dbPath     string
	configPath string
	logLevel   string
	metricsOut string

	cfg *config.Config
	mgr *metrics.Manager
)

var rootCmd = &cobra.Command{
	Use:   "curlmetrics",
	Short: "Curling power play and shot metrics tool",
	Long: `Build feature tables from curling end and stone data (Ends.csv, Stones.csv,
Teams.csv), store them as runs in SQLite, and print power play, timing, traffic,
execution and benchmarking analyses.`,
	SilenceUsage:       true,
	PersistentPreRunE:  setup,
	PersistentPostRunE: flushMetrics,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "path to SQLite database (default from config, ~/.curlmetrics/metrics.db)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (default $CURLMETRICS_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error (default from config)")
	rootCmd.PersistentFlags().StringVar(&metricsOut, "metrics-out", "", "write Prometheus textfile metrics to this path")

	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(summaryCmd)
	rootCmd.AddCommand(dropCmd)
	rootCmd.AddCommand(sqlCmd)
	rootCmd.AddCommand(endsCmd)
	rootCmd.AddCommand(trendCmd)
	rootCmd.AddCommand(powerPlayCmd)
	rootCmd.AddCommand(timingCmd)
	rootCmd.AddCommand(trafficCmd)
	rootCmd.AddCommand(executionCmd)
	rootCmd.AddCommand(firstStrikeCmd)
	rootCmd.AddCommand(scriptsCmd)
	rootCmd.AddCommand(sideCmd)
	rootCmd.AddCommand(evCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(shellCmd)
}

// setup loads configuration and installs the logger before any subcommand runs.
func setup(cmd *cobra.Command, _ []string) error {
	loaded, err := config.Load(cmd.Context(), configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg = loaded
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if err := logger.Init(os.Stderr, cfg.LogLevel); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if dbPath == "" {
		dbPath = cfg.DBPath
	}
	mgr = metrics.NewManager(metrics.WithMetricsEnabled(metricsOut != ""))
	return nil
}

func flushMetrics(cmd *cobra.Command, _ []string) error {
	if metricsOut == "" {
		return nil
	}
	if err := mgr.WriteTextfile(metricsOut); err != nil {
		return err
	}
	logger.Named("cli").Info(cmd.Context(), "metrics written", logger.String("path", metricsOut))
	return nil
}
