package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/pable/go-curling-metrics/internal/report"
	"github.com/pable/go-curling-metrics/internal/storage"
)

var (
	cPrompt   = color.New(color.FgCyan, color.Bold)
	cMuted    = color.New(color.Faint)
	cError    = color.New(color.FgRed, color.Bold)
	cWarn     = color.New(color.FgYellow)
	cCmd      = color.New(color.FgYellow, color.Bold)
	cGreeting = color.New(color.Bold)
)

// shellAnalyses maps shell commands onto the analysis printers.
var shellAnalyses = map[string]analysisFunc{
	"powerplay":   printPowerPlay,
	"timing":      printTiming,
	"traffic":     printTraffic,
	"execution":   printExecution,
	"firststrike": printFirstStrike,
	"scripts":     printScripts,
	"side":        printSide,
	"ev":          printEV,
}

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Start an interactive REPL session",
	Long:  "Open a persistent session against the database. Type 'help' for available commands.",
	Args:  cobra.NoArgs,
	RunE:  runShell,
}

// shellSession holds the selected run; its analysis is loaded on first use.
type shellSession struct {
	db     *storage.DB
	prefix string
	loaded *analysis
}

func runShell(cmd *cobra.Command, _ []string) error {
	db, err := storage.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer db.Close()

	s := &shellSession{db: db, prefix: runPrefix}
	ctx := cmd.Context()

	cGreeting.Println("curlmetrics shell")
	cMuted.Println("type 'help' or 'exit'")
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		cPrompt.Print("curlmetrics")
		if s.loaded != nil {
			cMuted.Printf("[%s]", s.loaded.run.ShortID())
		}
		cMuted.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		tokens := strings.Fields(line)
		name, args := tokens[0], tokens[1:]

		switch name {
		case "exit", "quit":
			return nil
		case "help":
			shellHelp()
		case "list":
			s.list()
		case "use":
			if len(args) != 1 {
				cError.Fprintln(os.Stderr, "usage: use <run-prefix>")
				continue
			}
			s.use(args[0])
		case "show":
			s.show(args)
		case "summary":
			if err := runSummary(cmd, nil); err != nil {
				cError.Fprintf(os.Stderr, "error: %v\n", err)
			}
		case "sql":
			if len(args) == 0 {
				cError.Fprintln(os.Stderr, "usage: sql <query>")
				continue
			}
			if err := runSQL(cmd, args); err != nil {
				cError.Fprintf(os.Stderr, "error: %v\n", err)
			}
		default:
			fn, ok := shellAnalyses[name]
			if !ok {
				cWarn.Fprintf(os.Stderr, "unknown command %q, type 'help'\n", name)
				continue
			}
			s.analyze(ctx, fn)
		}
	}
	return nil
}

func shellHelp() {
	fmt.Println()
	type entry struct{ cmd, desc string }
	rows := []entry{
		{"list", "list all stored runs"},
		{"use <run-prefix>", "select the run analyses read from"},
		{"show [run-prefix]", "show a run (default: the selected run)"},
		{"summary", "database overview"},
		{"powerplay | timing | traffic", "power play analyses"},
		{"execution | firststrike", "shot execution and first-end margin"},
		{"scripts | side | ev", "opening scripts, side and leverage"},
		{"sql <query>", "run a raw SQL query"},
		{"help", "show this message"},
		{"exit / quit", "close the session"},
	}
	for _, r := range rows {
		fmt.Print("  ")
		cCmd.Printf("%-32s", r.cmd)
		fmt.Println(r.desc)
	}
	fmt.Println()
}

func (s *shellSession) list() {
	runs, err := s.db.ListRuns()
	if err != nil {
		cError.Fprintf(os.Stderr, "error: %v\n", err)
		return
	}
	if len(runs) == 0 {
		cMuted.Println("No runs stored yet.")
		return
	}
	report.PrintRunList(os.Stdout, runs)
}

func (s *shellSession) use(prefix string) {
	a, err := loadAnalysis(s.db, prefix)
	if err != nil {
		cError.Fprintf(os.Stderr, "error: %v\n", err)
		return
	}
	s.prefix, s.loaded = prefix, a
	report.PrintRunHeader(os.Stdout, a.run)
}

func (s *shellSession) show(args []string) {
	prefix := s.prefix
	if len(args) > 0 {
		prefix = args[0]
	}
	run, err := s.db.GetRunByPrefix(prefix)
	if err != nil {
		cError.Fprintf(os.Stderr, "error: %v\n", err)
		return
	}
	if run == nil {
		cWarn.Fprintf(os.Stderr, "no run found with prefix %q\n", prefix)
		return
	}
	if err := showRun(os.Stdout, s.db, *run); err != nil {
		cError.Fprintf(os.Stderr, "error: %v\n", err)
	}
}

func (s *shellSession) analyze(ctx context.Context, fn analysisFunc) {
	if s.loaded == nil {
		a, err := loadAnalysis(s.db, s.prefix)
		if err != nil {
			cError.Fprintf(os.Stderr, "error: %v\n", err)
			return
		}
		s.loaded = a
	}
	if err := fn(ctx, os.Stdout, s.loaded); err != nil {
		cError.Fprintf(os.Stderr, "error: %v\n", err)
	}
}
