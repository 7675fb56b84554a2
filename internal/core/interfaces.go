package core

import (
	"context"

	"github.com/BlagoCuljak/ApiPosture/internal/source"
	"github.com/BlagoCuljak/ApiPosture/pkg/types"
)

// Discoverer turns one syntax unit into candidate endpoints carrying
// scope-local authorization data. Additional discoverers register through
// the same registry as the built-ins.
type Discoverer interface {
	Name() string
	Discover(unit *source.Unit) []types.Endpoint
}

// Rule evaluates one classified endpoint and returns a finding or nil.
// Rules are pure, independent, and may overlap; the engine never merges or
// deduplicates their output.
type Rule interface {
	ID() string
	Name() string
	DefaultSeverity() types.Severity
	Evaluate(ep types.Endpoint) *types.Finding
}

// RuleRegistry is the extension point for third-party rules.
type RuleRegistry interface {
	Register(rule Rule) error
	Get(id string) (Rule, error)
	List() []Rule
}

// DiscovererRegistry is the extension point for third-party discoverers.
type DiscovererRegistry interface {
	Register(d Discoverer) error
	List() []Discoverer
}

// ResultStore persists scan runs and their findings.
type ResultStore interface {
	SaveRun(ctx context.Context, run *types.ScanRun) error
	SaveFindings(ctx context.Context, runID string, findings []types.Finding) error
	GetFindings(ctx context.Context, runID string) ([]types.Finding, error)
	ListRuns(ctx context.Context, limit int) ([]*types.ScanRun, error)
	Close() error
}

// Telemetry records scan metrics.
type Telemetry interface {
	RecordScan(duration float64, filesScanned, filesFailed int)
	RecordEndpoint(posture types.PostureClass)
	RecordFinding(severity types.Severity)
	Close(ctx context.Context) error
}
