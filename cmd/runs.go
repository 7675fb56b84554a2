package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Show persisted scan runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		if store == nil {
			return fmt.Errorf("persistence is disabled; set database.enabled in the configuration")
		}
		limit, _ := cmd.Flags().GetInt("limit")
		runs, err := store.ListRuns(cmd.Context(), limit)
		if err != nil {
			return fmt.Errorf("failed to list runs: %w", err)
		}
		if len(runs) == 0 {
			fmt.Println("No persisted runs")
			return nil
		}

		bold := color.New(color.Bold)
		bold.Printf("%-38s %-20s %10s %10s %9s\n", "RUN", "STARTED", "ENDPOINTS", "FINDINGS", "FILES")
		for _, run := range runs {
			fmt.Printf("%-38s %-20s %10d %10d %9d\n",
				run.ID, run.StartedAt.Format(time.RFC3339),
				run.Endpoints, run.Findings, run.FilesScanned)
		}
		return nil
	},
}

var runsFindingsCmd = &cobra.Command{
	Use:   "findings [run-id]",
	Short: "Show the findings persisted for one run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if store == nil {
			return fmt.Errorf("persistence is disabled; set database.enabled in the configuration")
		}
		findings, err := store.GetFindings(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("failed to load findings: %w", err)
		}
		if output, _ := cmd.Flags().GetString("output"); output == "json" {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(findings)
		}
		for _, f := range findings {
			sc, ok := severityColors[f.Severity]
			if !ok {
				sc = color.New(color.FgWhite)
			}
			fmt.Printf("%s %s %s\n", sc.Sprintf("[%s]", f.Severity), f.RuleID, f.Message)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.AddCommand(runsFindingsCmd)

	runsCmd.Flags().Int("limit", 20, "max runs to list")
	runsFindingsCmd.Flags().StringP("output", "o", "text", "output format (text, json)")
}
