package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/pable/go-curling-metrics/internal/features"
	"github.com/pable/go-curling-metrics/internal/ingest"
	"github.com/pable/go-curling-metrics/internal/logger"
	"github.com/pable/go-curling-metrics/internal/report"
	"github.com/pable/go-curling-metrics/internal/storage"
)

var (
	buildTiming    string
	buildCSI       string
	buildStateShot int
	buildWorkers   int
	buildDryRun    bool
)

var buildCmd = &cobra.Command{
	Use:   "build [data-dir]",
	Short: "Ingest a data directory, compute feature tables and store them as a run",
	Long: `Read Ends.csv, Stones.csv and (optionally) Teams.csv from data-dir, reconstruct
the score context of every game, classify every stone layout and store the
resulting feature tables as a new run. Games whose end rows are inconsistent are
excluded and listed.

data-dir defaults to the data_dir config key.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBuild,
}

func init() {
	buildCmd.Flags().StringVar(&buildTiming, "timing", "", "timing preset (thirds, quarters); overrides config")
	buildCmd.Flags().StringVar(&buildCSI, "csi", "", "CSI weight profile (full, corridor_guard); overrides config")
	buildCmd.Flags().IntVar(&buildStateShot, "state-shot", 0, "shot rank used as the power play state; overrides config")
	buildCmd.Flags().IntVar(&buildWorkers, "workers", 0, "worker goroutines; overrides config")
	buildCmd.Flags().BoolVar(&buildDryRun, "dry-run", false, "compute and print the summary without storing the run")
}

func runBuild(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	log := logger.Named("build")

	dir := cfg.DataDir
	if len(args) == 1 {
		dir = args[0]
	}
	if buildTiming != "" {
		cfg.Timing.Preset = buildTiming
		cfg.Timing.Buckets = nil
	}
	if buildCSI != "" {
		cfg.Indices.CSIProfile = buildCSI
	}
	if buildStateShot > 0 {
		cfg.StateShot = buildStateShot
	}
	if buildWorkers > 0 {
		cfg.Workers = buildWorkers
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	start := time.Now()
	ds, err := ingest.LoadDir(dir)
	if err != nil {
		return fmt.Errorf("ingest %s: %w", dir, err)
	}
	mgr.ObserveStage("ingest", start)
	log.Info(ctx, "data loaded",
		logger.String("dir", dir),
		logger.Int("ends", len(ds.Ends)),
		logger.Int("shots", len(ds.Shots)),
		logger.Int("teams", len(ds.Teams)))

	p, err := features.NewPipeline(cfg, features.WithMetrics(mgr))
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}
	res, err := p.Run(ctx, ds)
	if err != nil {
		return fmt.Errorf("run pipeline: %w", err)
	}

	run := storage.NewRun(ds, res, timingLabel(), cfg.Indices.CSIProfile, cfg.StateShot)
	if !buildDryRun {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return fmt.Errorf("create db dir: %w", err)
		}
		db, err := storage.Open(dbPath)
		if err != nil {
			return fmt.Errorf("open storage: %w", err)
		}
		defer db.Close()

		start = time.Now()
		if err := db.InsertRun(run, res); err != nil {
			return fmt.Errorf("store run: %w", err)
		}
		mgr.ObserveStage("store", start)
	}

	report.PrintRunHeader(os.Stdout, run)
	report.PrintDiagnostics(os.Stdout, res.Diagnostics)
	if buildDryRun {
		fmt.Fprintln(os.Stdout, "\nDry run: nothing stored.")
	}
	return nil
}

// timingLabel names the timing scheme recorded with a run.
func timingLabel() string {
	if len(cfg.Timing.Buckets) > 0 {
		return "custom"
	}
	return cfg.Timing.Preset
}
