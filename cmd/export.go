package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pable/go-curling-metrics/internal/aggregator"
	"github.com/pable/go-curling-metrics/internal/features"
	"github.com/pable/go-curling-metrics/internal/report"
	"github.com/pable/go-curling-metrics/internal/storage"
)

var (
	exportTargets string
	exportOut     string
	exportFormat  string
)

// dashboard is the top-level JSON schema of the benchmarking export.
type dashboard struct {
	RunID        string         `json:"run_id"`
	GeneratedAt  string         `json:"generated_at"`
	DataDir      string         `json:"data_dir"`
	TimingPreset string         `json:"timing_preset"`
	CSIProfile   string         `json:"csi_profile"`
	StateShot    int            `json:"state_shot"`
	Teams        []nocDashboard `json:"teams"`
}

// nocDashboard is one target NOC's power play profile.
type nocDashboard struct {
	NOC              string             `json:"noc"`
	PowerPlayEnds    int                `json:"power_play_ends"`
	AvgPoints        float64            `json:"avg_points"`
	P0               float64            `json:"p0"`
	P1               float64            `json:"p1"`
	P2Plus           float64            `json:"p2_plus"`
	P3Plus           float64            `json:"p3_plus"`
	StealRate        float64            `json:"steal_rate"`
	OpeningExecution *float64           `json:"opening_execution,omitempty"`
	Timing           map[string]float64 `json:"timing"`
	TaskMix          map[string]float64 `json:"task_mix"`
	Sample           string             `json:"sample"`
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a power play benchmarking dashboard per target NOC",
	Long: `Build a benchmarking dashboard for each target NOC from a stored run: scoring
profile of its power play ends, when it deploys the power play and the task mix
of the shots it plays in them.

Targets default to the groups.targets config key.

Example:
  curlmetrics export --targets USA,CAN --out dashboard.json
  curlmetrics export --format table`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

func init() {
	addRunFlag(exportCmd)
	exportCmd.Flags().StringVar(&exportTargets, "targets", "", "comma-separated NOCs (default from config)")
	exportCmd.Flags().StringVar(&exportOut, "out", "", "output file path (default: stdout)")
	exportCmd.Flags().StringVar(&exportFormat, "format", "json", "json or table")
}

func runExport(_ *cobra.Command, _ []string) error {
	if exportFormat != "json" && exportFormat != "table" {
		return fmt.Errorf("unknown format %q: want json or table", exportFormat)
	}
	targets := exportTargetList()
	if len(targets) == 0 {
		return fmt.Errorf("no target NOCs: use --targets or set groups.targets")
	}

	db, err := storage.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer db.Close()

	a, err := loadAnalysis(db, runPrefix)
	if err != nil {
		return err
	}
	bench, err := db.PowerPlayBenchmarks(a.run.ID, targets)
	if err != nil {
		return fmt.Errorf("query benchmarks: %w", err)
	}
	mix, err := db.PowerPlayTaskMix(a.run.ID, targets)
	if err != nil {
		return fmt.Errorf("query task mix: %w", err)
	}

	w := io.Writer(os.Stdout)
	if exportOut != "" {
		f, err := os.Create(exportOut)
		if err != nil {
			return fmt.Errorf("create %s: %w", exportOut, err)
		}
		defer f.Close()
		w = f
	}

	if exportFormat == "table" {
		report.PrintRunHeader(w, a.run)
		report.PrintBenchmarks(w, bench)
		report.PrintTaskMix(w, mix)
		return nil
	}

	d := buildDashboard(a, bench, mix)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(d); err != nil {
		return fmt.Errorf("encode dashboard: %w", err)
	}
	if exportOut != "" {
		fmt.Fprintf(os.Stderr, "Wrote %d team(s) to %s\n", len(d.Teams), exportOut)
	}
	return nil
}

func exportTargetList() []string {
	if exportTargets != "" {
		return targetNOCs(strings.Split(exportTargets, ","))
	}
	return targetNOCs(cfg.Groups.Targets)
}

// targetNOCs normalises NOC codes the way the group resolver stores them.
func targetNOCs(src []string) []string {
	var out []string
	for _, t := range src {
		if t = strings.ToUpper(strings.TrimSpace(t)); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// buildDashboard assembles one entry per benchmarked NOC, in benchmark order.
func buildDashboard(a *analysis, bench []storage.PowerPlayBenchmark, mix []storage.TaskCount) dashboard {
	d := dashboard{
		RunID:        a.run.ID,
		GeneratedAt:  time.Now().UTC().Format(time.RFC3339),
		DataDir:      a.run.DataDir,
		TimingPreset: a.run.TimingPreset,
		CSIProfile:   a.run.CSIProfile,
		StateShot:    a.run.StateShot,
	}

	taskTotals := make(map[string]int)
	for _, m := range mix {
		taskTotals[m.NOC] += m.Count
	}

	pp := features.PowerPlayRecords(a.res.EndFeatures)
	timing := a.dim(features.KeyTiming, pp)
	for _, b := range bench {
		n := nocDashboard{
			NOC:           b.NOC,
			PowerPlayEnds: b.Ends,
			AvgPoints:     b.AvgPoints,
			P0:            b.P0,
			P1:            b.P1,
			P2Plus:        b.P2Plus,
			P3Plus:        b.P3Plus,
			StealRate:     b.Steals,
			Timing:        make(map[string]float64),
			TaskMix:       make(map[string]float64),
			Sample:        report.SampleFlag(b.Ends),
		}
		if b.OpeningScored > 0 {
			exec := b.OpeningExecution
			n.OpeningExecution = &exec
		}
		for _, s := range aggregator.Distribution(features.Where(pp, features.KeyNOC, b.NOC), timing) {
			if s.Share.OK {
				n.Timing[s.Level] = s.Share.Value
			}
		}
		for _, m := range mix {
			if m.NOC == b.NOC && taskTotals[b.NOC] > 0 {
				n.TaskMix[m.Task] = float64(m.Count) / float64(taskTotals[b.NOC])
			}
		}
		d.Teams = append(d.Teams, n)
	}
	return d
}
