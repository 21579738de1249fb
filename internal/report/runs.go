package report

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/pable/go-curling-metrics/internal/features"
	"github.com/pable/go-curling-metrics/internal/gamestate"
	"github.com/pable/go-curling-metrics/internal/storage"
)

// PrintRunHeader prints a one-line summary of a stored run.
func PrintRunHeader(w io.Writer, r storage.Run) {
	fmt.Fprintf(w, "\nRun: %s  |  Built: %s  |  Data: %s  |  Timing: %s  |  CSI: %s  |  State shot: %d\n",
		r.ShortID(), r.CreatedAt.Local().Format("2006-01-02 15:04"), r.DataDir, r.TimingPreset, r.CSIProfile, r.StateShot)
	fmt.Fprintf(w, "Games: %d  |  Ends: %d  |  Shots: %d  |  Power plays: %d  |  Malformed: %d\n\n",
		r.Games, r.Ends, r.Shots, r.PowerPlays, r.Malformed)
}

// PrintRunList prints one line per stored run.
func PrintRunList(w io.Writer, runs []storage.Run) {
	fmt.Fprintf(w, "%-8s  %-16s  %-7s  %-5s  %6s  %6s  %4s  %3s  %s\n",
		"RUN", "BUILT", "TIMING", "CSI", "ENDS", "SHOTS", "PP", "BAD", "DATA")
	fmt.Fprintf(w, "%-8s  %-16s  %-7s  %-5s  %6s  %6s  %4s  %3s  %s\n",
		"────────", "────────────────", "───────", "─────", "──────", "──────", "────", "───", "────")
	for _, r := range runs {
		fmt.Fprintf(w, "%-8s  %-16s  %-7s  %-5s  %6d  %6d  %4d  %3d  %s\n",
			r.ShortID(), r.CreatedAt.Local().Format("2006-01-02 15:04"), r.TimingPreset, abbrev(r.CSIProfile, 5),
			r.Ends, r.Shots, r.PowerPlays, r.Malformed, r.DataDir)
	}
}

func abbrev(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// PrintOverview prints store-wide totals.
func PrintOverview(w io.Writer, ov storage.Overview) {
	fmt.Fprintf(w, "\n=== Database Summary ===\n\n")
	fmt.Fprintf(w, "  Runs stored   : %d\n", ov.Runs)
	fmt.Fprintf(w, "  Built         : %s → %s\n", ov.EarliestRun, ov.LatestRun)
	fmt.Fprintf(w, "  Data sets     : %d\n", ov.DataSets)
	fmt.Fprintf(w, "  Latest run    : %d ends, %d shots, %d power plays, %d malformed games\n",
		ov.Ends, ov.Shots, ov.PowerPlays, ov.Malformed)
}

// PrintNOCCounts prints end and power play counts per NOC.
func PrintNOCCounts(w io.Writer, counts []storage.NOCCount) {
	PrintTitle(w, "Most Active NOCs")
	table := newTable(w)
	table.Header("NOC", "ENDS", "PP ENDS")
	for _, c := range counts {
		table.Append(c.NOC, strconv.Itoa(c.Ends), strconv.Itoa(c.PowerPlays))
	}
	table.Render()
}

// PrintDiagnostics lists the games a run excluded.
func PrintDiagnostics(w io.Writer, diags []gamestate.Diagnostic) {
	if len(diags) == 0 {
		return
	}
	PrintTitle(w, "Excluded Games")
	table := newTable(w)
	table.Header("GAME", "REASON")
	for _, d := range diags {
		table.Append(d.Game.String(), d.Reason())
	}
	table.Render()
}

// PrintBenchmarks prints the power play scoring profile per NOC.
func PrintBenchmarks(w io.Writer, bench []storage.PowerPlayBenchmark) {
	PrintTitle(w, "Power Play Benchmarking")
	table := newTable(w)
	table.Header("NOC", "N", "AVG", "P(0)", "P(1)", "2+", "3+", "STEAL", "OPEN EXEC", "SAMPLE")
	for _, b := range bench {
		exec := NoData
		if b.OpeningScored > 0 {
			exec = fmt.Sprintf("%.2f", b.OpeningExecution)
		}
		table.Append(
			b.NOC,
			strconv.Itoa(b.Ends),
			fmt.Sprintf("%.2f", b.AvgPoints),
			pct(b.P0),
			pct(b.P1),
			pct(b.P2Plus),
			pct(b.P3Plus),
			pct(b.Steals),
			exec,
			SampleFlag(b.Ends),
		)
	}
	table.Render()
}

// PrintTaskMix prints each NOC's task shares in its power play ends, one
// column per task seen.
func PrintTaskMix(w io.Writer, mix []storage.TaskCount) {
	PrintTitle(w, "Power Play Task Mix")

	var nocs, tasks []string
	seenTask := make(map[string]bool)
	counts := make(map[string]map[string]int)
	totals := make(map[string]int)
	for _, m := range mix {
		if counts[m.NOC] == nil {
			counts[m.NOC] = make(map[string]int)
			nocs = append(nocs, m.NOC)
		}
		counts[m.NOC][m.Task] += m.Count
		totals[m.NOC] += m.Count
		if !seenTask[m.Task] {
			seenTask[m.Task] = true
			tasks = append(tasks, m.Task)
		}
	}
	sort.Strings(tasks)

	header := []any{"NOC", "SHOTS"}
	for _, t := range tasks {
		header = append(header, t)
	}
	table := newTable(w)
	table.Header(header...)
	for _, n := range nocs {
		row := []any{n, strconv.Itoa(totals[n])}
		for _, t := range tasks {
			row = append(row, pct(float64(counts[n][t])/float64(totals[n])))
		}
		table.Append(row...)
	}
	table.Render()
}

func pct(v float64) string {
	return fmt.Sprintf("%.0f%%", 100*v)
}

// PrintEndDetailTable prints one row per end and team of a game, with the
// score each team carried into the end.
func PrintEndDetailTable(w io.Writer, game string, ends []features.EndFeature) {
	PrintTitle(w, "Game "+game)
	table := newTable(w)
	table.Header("END", "TEAM", "NOC", "SCORE", "DIFF", "TIMING", "CONTEXT", "RESULT", "NET", "PP", "WON")
	for _, e := range ends {
		pp := ""
		if e.PowerPlayCalled {
			pp = "*"
		}
		won := ""
		if e.Won {
			won = "W"
		}
		table.Append(
			strconv.Itoa(e.EndID),
			strconv.Itoa(e.TeamID),
			e.NOC,
			fmt.Sprintf("%d-%d", e.MyScore, e.OppScore),
			fmt.Sprintf("%+d", e.Diff),
			e.Timing,
			e.ContextBucket,
			strconv.Itoa(e.Result),
			fmt.Sprintf("%+d", e.Signed),
			pp,
			won,
		)
	}
	table.Render()
}

// PrintBenchmarkTrend prints one NOC's power play profile across runs.
func PrintBenchmarkTrend(w io.Writer, noc string, runs []storage.Run, bench []*storage.PowerPlayBenchmark) {
	PrintTitle(w, "Power Play Trend: "+noc)
	table := newTable(w)
	table.Header("RUN", "BUILT", "DATA", "N", "AVG", "2+", "STEAL", "OPEN EXEC")
	for i, r := range runs {
		b := bench[i]
		if b == nil {
			table.Append(r.ShortID(), r.CreatedAt.Local().Format("2006-01-02"), r.DataDir, "0", NoData, NoData, NoData, NoData)
			continue
		}
		exec := NoData
		if b.OpeningScored > 0 {
			exec = fmt.Sprintf("%.2f", b.OpeningExecution)
		}
		table.Append(
			r.ShortID(),
			r.CreatedAt.Local().Format("2006-01-02"),
			r.DataDir,
			strconv.Itoa(b.Ends),
			fmt.Sprintf("%.2f", b.AvgPoints),
			pct(b.P2Plus),
			pct(b.Steals),
			exec,
		)
	}
	table.Render()
}
