// Package scanner orchestrates one analysis run: walk the project tree,
// parse files in parallel, then push the units through the strictly forward
// pipeline of discovery, correlation, resolution, classification, rule
// evaluation and suppression.
package scanner

import (
	"context"
	"io/fs"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/BlagoCuljak/ApiPosture/internal/authz"
	"github.com/BlagoCuljak/ApiPosture/internal/config"
	"github.com/BlagoCuljak/ApiPosture/internal/core"
	"github.com/BlagoCuljak/ApiPosture/internal/discovery"
	"github.com/BlagoCuljak/ApiPosture/internal/logger"
	"github.com/BlagoCuljak/ApiPosture/internal/rules"
	"github.com/BlagoCuljak/ApiPosture/internal/source"
	"github.com/BlagoCuljak/ApiPosture/internal/suppress"
	"github.com/BlagoCuljak/ApiPosture/pkg/types"
)

// Report is the outcome of one run, handed to output formatting.
type Report struct {
	ProjectRoot  string              `json:"project_root"`
	Endpoints    []types.Endpoint    `json:"endpoints"`
	Findings     []types.Finding     `json:"findings"`
	Suppressed   int                 `json:"suppressed"`
	FilesScanned int                 `json:"files_scanned"`
	FilesFailed  int                 `json:"files_failed"`
	FailedFiles  []string            `json:"failed_files,omitempty"`
	Elapsed      time.Duration       `json:"elapsed"`
	Summary      types.Summary       `json:"summary"`
	GlobalPolicy types.GlobalPolicyInfo `json:"global_policy"`
}

// Scanner runs the analysis pipeline. Safe to reuse across runs; all
// per-run state (units, classifier cache, engine) is scoped to Run.
type Scanner struct {
	cfg         *config.Config
	log         *logger.Logger
	provider    source.Provider
	discoverers *discovery.Registry
	telemetry   core.Telemetry
	extraRules  []core.Rule
}

func New(cfg *config.Config, log *logger.Logger, provider source.Provider, discoverers *discovery.Registry, telemetry core.Telemetry) *Scanner {
	return &Scanner{
		cfg:         cfg,
		log:         log.WithComponent("scanner"),
		provider:    provider,
		discoverers: discoverers,
		telemetry:   telemetry,
	}
}

// AddRule folds an additional rule into the evaluation loop, after the
// built-ins. This is the extension point host processes use for plugin
// rules.
func (s *Scanner) AddRule(rule core.Rule) {
	s.extraRules = append(s.extraRules, rule)
}

// Run analyzes the project rooted at root.
func (s *Scanner) Run(ctx context.Context, root string) (*Report, error) {
	start := time.Now()
	ctx, span := s.log.StartOperation(ctx, "scanner.Run", "root", root)
	var runErr error
	defer func() { s.log.FinishOperation(ctx, span, "scanner.Run", start, runErr) }()

	paths, err := s.collectFiles(root)
	if err != nil {
		runErr = err
		return nil, err
	}
	s.log.WithContext(ctx).Infow("Starting scan", "root", root, "files", len(paths))

	units, failed := s.parseAll(ctx, paths)
	if err := ctx.Err(); err != nil {
		runErr = err
		return nil, err
	}

	report := s.analyze(ctx, root, units)
	report.FilesScanned = len(units)
	report.FilesFailed = len(failed)
	report.FailedFiles = failed
	report.Elapsed = time.Since(start)

	s.telemetry.RecordScan(report.Elapsed.Seconds(), report.FilesScanned, report.FilesFailed)
	s.log.WithContext(ctx).Infow("Scan finished",
		"files_scanned", report.FilesScanned,
		"files_failed", report.FilesFailed,
		"endpoints", len(report.Endpoints),
		"findings", len(report.Findings),
		"suppressed", report.Suppressed,
		"elapsed", report.Elapsed.String(),
	)
	return report, nil
}

func (s *Scanner) collectFiles(root string) ([]string, error) {
	excluded := make(map[string]struct{}, len(s.cfg.Scan.ExcludeDirs))
	for _, dir := range s.cfg.Scan.ExcludeDirs {
		excluded[dir] = struct{}{}
	}
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable directory entries degrade the scan, never abort it.
			s.log.Warnw("Skipping unreadable path", "path", path, "error", err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if _, skip := excluded[d.Name()]; skip {
				return filepath.SkipDir
			}
			return nil
		}
		if s.provider.Match(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

// parseAll parses files in parallel with a bounded errgroup. Results merge
// deterministically: units come back in path order regardless of completion
// order. A failing file is recorded and excluded, never retried.
// Cancellation is honored between files.
func (s *Scanner) parseAll(ctx context.Context, paths []string) ([]*source.Unit, []string) {
	parallelism := s.cfg.Scan.Parallelism
	if parallelism <= 0 {
		parallelism = runtime.GOMAXPROCS(0)
	}

	slots := make([]*source.Unit, len(paths))
	var mu sync.Mutex
	var failed []string

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			unit, err := s.provider.Parse(gctx, path)
			if err != nil {
				s.log.Debugw("Failed to parse file", "path", path, "error", err)
				mu.Lock()
				failed = append(failed, path)
				mu.Unlock()
				return nil
			}
			slots[i] = unit
			return nil
		})
	}
	// The only group error is cancellation; the caller checks ctx.
	_ = g.Wait()

	units := make([]*source.Unit, 0, len(paths))
	for _, unit := range slots {
		if unit != nil {
			units = append(units, unit)
		}
	}
	sort.Strings(failed)
	return units, failed
}

func (s *Scanner) analyze(ctx context.Context, root string, units []*source.Unit) *Report {
	global := authz.AnalyzeGlobalPolicy(units)

	classIndex := buildClassIndex(units)
	classifier := authz.NewMarkerClassifier(root, func(name string) *source.Class {
		return classIndex[name]
	}, s.cfg.Rules.HeuristicVocabulary)

	engine := rules.NewDefaultEngine(s.ruleOverrides(), classifier, s.cfg.Rules.SensitiveKeywords, s.cfg.Rules.MaxRoles)
	for _, rule := range s.extraRules {
		if err := engine.Register(rule); err != nil {
			s.log.Warnw("Skipping extension rule", "rule", rule.ID(), "error", err)
		}
	}

	var direct []types.Endpoint
	for _, unit := range units {
		for _, d := range s.discoverers.List() {
			direct = append(direct, d.Discover(unit)...)
		}
	}
	correlator := discovery.NewCorrelator(units)
	endpoints := discovery.Merge(direct, correlator.Endpoints())

	for i := range endpoints {
		endpoints[i].Auth = authz.ApplyGlobalFallback(endpoints[i].Auth, global)
		endpoints[i].Posture = authz.Classify(endpoints[i].Auth)
		s.telemetry.RecordEndpoint(endpoints[i].Posture)
	}

	findings := engine.Evaluate(endpoints)

	entries := append([]suppress.Entry(nil), s.cfg.Suppressions...)
	if s.cfg.Scan.SuppressionFile != "" {
		fileEntries, err := config.LoadSuppressionFile(s.cfg.Scan.SuppressionFile)
		if err != nil {
			s.log.Warnw("Ignoring suppression file", "path", s.cfg.Scan.SuppressionFile, "error", err)
		} else {
			entries = append(entries, fileEntries...)
		}
	}
	findings, suppressed := suppress.NewFilter(entries).Apply(findings)

	for _, f := range findings {
		s.telemetry.RecordFinding(f.Severity)
	}

	return &Report{
		ProjectRoot:  root,
		Endpoints:    endpoints,
		Findings:     findings,
		Suppressed:   suppressed,
		Summary:      types.Summarize(findings),
		GlobalPolicy: global,
	}
}

func (s *Scanner) ruleOverrides() map[string]rules.Override {
	out := make(map[string]rules.Override, len(s.cfg.Rules.Overrides))
	for id, o := range s.cfg.Rules.Overrides {
		override := rules.Override{Enabled: o.Enabled}
		if o.Severity != "" {
			sev, ok := types.ParseSeverity(o.Severity)
			if !ok {
				s.log.Warnw("Ignoring invalid severity override", "rule", id, "severity", o.Severity)
			} else {
				override.Severity = sev
			}
		}
		out[id] = override
	}
	return out
}

// buildClassIndex maps class names to declarations across the workspace.
// The first declaration in path order wins, keeping lookups deterministic.
func buildClassIndex(units []*source.Unit) map[string]*source.Class {
	index := make(map[string]*source.Class)
	for _, unit := range units {
		for i := range unit.Classes {
			cls := &unit.Classes[i]
			if _, exists := index[cls.Name]; !exists {
				index[cls.Name] = cls
			}
		}
	}
	return index
}
