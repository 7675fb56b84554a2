package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/BlagoCuljak/ApiPosture/internal/discovery"
	"github.com/BlagoCuljak/ApiPosture/internal/scanner"
	"github.com/BlagoCuljak/ApiPosture/internal/source"
	"github.com/BlagoCuljak/ApiPosture/pkg/types"
)

var scanCmd = &cobra.Command{
	Use:   "scan [path]",
	Short: "Analyze a project tree for endpoint authorization posture",
	Long: `Scan walks the given directory, discovers every route handler it can
see, resolves each handler's effective authorization posture, and reports
rule findings. The exit code is 0 unless --fail-on matches a finding.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().StringP("output", "o", "text", "output format (text, json)")
	scanCmd.Flags().String("fail-on", "", "exit non-zero when a finding at or above this severity exists")
	scanCmd.Flags().String("suppressions", "", "YAML suppression file")
	scanCmd.Flags().String("provider", "", "source provider (default from config)")
	scanCmd.Flags().Int("parallelism", 0, "max concurrent file parses (0 = GOMAXPROCS)")
	scanCmd.Flags().Bool("endpoints", false, "include the full endpoint inventory in text output")
	scanCmd.Flags().Bool("save", false, "persist the run to the result store")
}

func runScan(cmd *cobra.Command, args []string) error {
	root := "."
	if len(args) == 1 {
		root = args[0]
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("failed to resolve path %q: %w", root, err)
	}
	if info, err := os.Stat(absRoot); err != nil {
		return fmt.Errorf("cannot scan %q: %w", root, err)
	} else if !info.IsDir() {
		return fmt.Errorf("cannot scan %q: not a directory", root)
	}

	output, _ := cmd.Flags().GetString("output")
	failOn, _ := cmd.Flags().GetString("fail-on")
	showEndpoints, _ := cmd.Flags().GetBool("endpoints")
	save, _ := cmd.Flags().GetBool("save")

	if v, _ := cmd.Flags().GetString("suppressions"); v != "" {
		cfg.Scan.SuppressionFile = v
	}
	if v, _ := cmd.Flags().GetString("provider"); v != "" {
		cfg.Scan.Provider = v
	}
	if v, _ := cmd.Flags().GetInt("parallelism"); v > 0 {
		cfg.Scan.Parallelism = v
	}

	var failThreshold types.Severity
	if failOn != "" {
		sev, ok := types.ParseSeverity(failOn)
		if !ok {
			return fmt.Errorf("invalid --fail-on severity: %s", failOn)
		}
		failThreshold = sev
	}

	provider, err := source.NewProvider(cfg.Scan.Provider)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startedAt := time.Now().UTC()
	sc := scanner.New(cfg, log, provider, discovery.NewDefaultRegistry(), tel)
	report, err := sc.Run(ctx, absRoot)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	if save {
		if err := persistRun(cmd, report, startedAt); err != nil {
			return err
		}
	}

	switch output {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return fmt.Errorf("failed to encode report: %w", err)
		}
	case "text":
		printReport(report, showEndpoints)
	default:
		return fmt.Errorf("unsupported output format: %s", output)
	}

	if failThreshold != "" {
		for _, f := range report.Findings {
			if f.Severity.AtLeast(failThreshold) {
				return fmt.Errorf("findings at or above %s severity", failThreshold)
			}
		}
	}
	return nil
}

func persistRun(cmd *cobra.Command, report *scanner.Report, startedAt time.Time) error {
	if store == nil {
		return fmt.Errorf("--save requires database.enabled in the configuration")
	}
	run := &types.ScanRun{
		ID:           uuid.NewString(),
		ProjectRoot:  report.ProjectRoot,
		StartedAt:    startedAt,
		FinishedAt:   startedAt.Add(report.Elapsed),
		FilesScanned: report.FilesScanned,
		FilesFailed:  report.FilesFailed,
		Endpoints:    len(report.Endpoints),
		Findings:     len(report.Findings),
	}
	ctx := cmd.Context()
	if err := store.SaveRun(ctx, run); err != nil {
		return fmt.Errorf("failed to persist run: %w", err)
	}
	if err := store.SaveFindings(ctx, run.ID, report.Findings); err != nil {
		return fmt.Errorf("failed to persist findings: %w", err)
	}
	log.Infow("Run persisted", "run_id", run.ID)
	return nil
}

var severityColors = map[types.Severity]*color.Color{
	types.SeverityCritical: color.New(color.FgRed, color.Bold),
	types.SeverityHigh:     color.New(color.FgRed),
	types.SeverityMedium:   color.New(color.FgYellow),
	types.SeverityLow:      color.New(color.FgCyan),
	types.SeverityInfo:     color.New(color.FgWhite),
}

var postureColors = map[types.PostureClass]*color.Color{
	types.PosturePublic:           color.New(color.FgRed),
	types.PostureAuthenticated:    color.New(color.FgGreen),
	types.PostureRoleRestricted:   color.New(color.FgGreen, color.Bold),
	types.PosturePolicyRestricted: color.New(color.FgGreen, color.Bold),
}

func printReport(report *scanner.Report, showEndpoints bool) {
	bold := color.New(color.Bold)

	bold.Printf("\nScanned %s\n", report.ProjectRoot)
	fmt.Printf("  %d files analyzed, %d failed, %d endpoints, %s elapsed\n",
		report.FilesScanned, report.FilesFailed, len(report.Endpoints),
		report.Elapsed.Round(time.Millisecond))
	if report.GlobalPolicy.Protective() {
		fmt.Println("  Project-wide fallback policy protects undecorated handlers")
	}
	if report.Suppressed > 0 {
		fmt.Printf("  %d findings suppressed\n", report.Suppressed)
	}

	if showEndpoints && len(report.Endpoints) > 0 {
		bold.Println("\nEndpoints")
		for _, ep := range report.Endpoints {
			pc, ok := postureColors[ep.Posture]
			if !ok {
				pc = color.New(color.FgWhite)
			}
			fmt.Printf("  %-8s %-45s %s  %s\n",
				ep.MethodList, ep.Route, pc.Sprint(string(ep.Posture)), ep.Location())
		}
	}

	if len(report.Findings) == 0 {
		color.New(color.FgGreen).Println("\nNo findings")
		return
	}

	bold.Printf("\nFindings (%d)\n", len(report.Findings))
	for _, f := range report.Findings {
		sc, ok := severityColors[f.Severity]
		if !ok {
			sc = color.New(color.FgWhite)
		}
		fmt.Printf("  %s %s %s\n", sc.Sprintf("[%s]", f.Severity), f.RuleID, f.Message)
		fmt.Printf("      at %s\n", f.Endpoint.Location())
		if f.Recommendation != "" {
			fmt.Printf("      fix: %s\n", f.Recommendation)
		}
	}

	bold.Println("\nSummary")
	printSeverityCounts(report.Summary)
}

func printSeverityCounts(summary types.Summary) {
	order := []types.Severity{
		types.SeverityCritical, types.SeverityHigh, types.SeverityMedium,
		types.SeverityLow, types.SeverityInfo,
	}
	for _, sev := range order {
		if n := summary.BySeverity[sev]; n > 0 {
			sc := severityColors[sev]
			fmt.Printf("  %s %d\n", sc.Sprintf("%-8s", sev), n)
		}
	}
	ruleIDs := make([]string, 0, len(summary.ByRule))
	for id := range summary.ByRule {
		ruleIDs = append(ruleIDs, id)
	}
	sort.Strings(ruleIDs)
	for _, id := range ruleIDs {
		fmt.Printf("  %-8s %d\n", id, summary.ByRule[id])
	}
}
