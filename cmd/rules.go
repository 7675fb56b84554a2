package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/BlagoCuljak/ApiPosture/internal/authz"
	"github.com/BlagoCuljak/ApiPosture/internal/rules"
	"github.com/BlagoCuljak/ApiPosture/internal/source"
	"github.com/BlagoCuljak/ApiPosture/pkg/types"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "List the posture rules and their effective severities",
	RunE: func(cmd *cobra.Command, args []string) error {
		classifier := authz.NewMarkerClassifier("", func(string) *source.Class { return nil },
			cfg.Rules.HeuristicVocabulary)
		engine := rules.NewDefaultEngine(configuredOverrides(), classifier,
			cfg.Rules.SensitiveKeywords, cfg.Rules.MaxRoles)

		bold := color.New(color.Bold)
		bold.Println("Posture rules")
		for _, rule := range engine.List() {
			sev := engine.EffectiveSeverity(rule)
			sc, ok := severityColors[sev]
			if !ok {
				sc = color.New(color.FgWhite)
			}
			fmt.Printf("  %-7s %s %s\n", rule.ID(), sc.Sprintf("%-8s", sev), rule.Name())
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rulesCmd)
}

// configuredOverrides translates the raw config overrides into engine form,
// silently dropping unparseable severities.
func configuredOverrides() map[string]rules.Override {
	out := make(map[string]rules.Override, len(cfg.Rules.Overrides))
	for id, o := range cfg.Rules.Overrides {
		override := rules.Override{Enabled: o.Enabled}
		if o.Severity != "" {
			if sev, ok := types.ParseSeverity(o.Severity); ok {
				override.Severity = sev
			}
		}
		out[id] = override
	}
	return out
}
