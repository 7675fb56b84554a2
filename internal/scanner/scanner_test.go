package scanner

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BlagoCuljak/ApiPosture/internal/config"
	"github.com/BlagoCuljak/ApiPosture/internal/discovery"
	"github.com/BlagoCuljak/ApiPosture/internal/logger"
	"github.com/BlagoCuljak/ApiPosture/internal/source"
	"github.com/BlagoCuljak/ApiPosture/internal/suppress"
	"github.com/BlagoCuljak/ApiPosture/internal/telemetry"
	"github.com/BlagoCuljak/ApiPosture/pkg/types"
)

func writeUnit(t *testing.T, dir, name string, unit source.Unit) {
	t.Helper()
	data, err := json.Marshal(unit)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o644))
}

func newTestScanner(t *testing.T, cfg *config.Config) *Scanner {
	t.Helper()
	log, err := logger.New(config.LoggerConfig{Level: "error", Format: "json"})
	require.NoError(t, err)
	tel, err := telemetry.New(context.Background(), config.TelemetryConfig{})
	require.NoError(t, err)
	provider, err := source.NewProvider("json")
	require.NoError(t, err)
	return New(cfg, log, provider, discovery.NewDefaultRegistry(), tel)
}

func accountControllerUnit() source.Unit {
	return source.Unit{
		Path: "Controllers/AccountController.cs",
		Classes: []source.Class{{
			Name: "AccountController",
			Markers: []source.Marker{
				{Name: "ApiController"},
				{Name: "Route", Args: []string{"account"}},
				{Name: "Authorize"},
			},
			Methods: []source.Method{
				{Name: "Login", Public: true, Markers: []source.Marker{
					{Name: "HttpGet", Args: []string{"login"}},
					{Name: "AllowAnonymous"},
				}, Pos: source.Position{Line: 14}},
				{Name: "Profile", Public: true, Markers: []source.Marker{
					{Name: "HttpGet", Args: []string{"profile"}},
				}, Pos: source.Position{Line: 21}},
			},
		}},
	}
}

func TestRunAnonymousOverrideScenario(t *testing.T) {
	dir := t.TempDir()
	writeUnit(t, dir, "AccountController.cs.json", accountControllerUnit())

	sc := newTestScanner(t, config.DefaultConfig())
	report, err := sc.Run(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 1, report.FilesScanned)
	assert.Zero(t, report.FilesFailed)
	require.Len(t, report.Endpoints, 2)

	login := report.Endpoints[0]
	assert.Equal(t, "/account/login", login.Route)
	assert.Equal(t, types.PosturePublic, login.Posture)

	profile := report.Endpoints[1]
	assert.Equal(t, "/account/profile", profile.Route)
	assert.Equal(t, types.PostureAuthenticated, profile.Posture)

	// The anonymous override on the protected controller yields exactly one
	// finding; the undecorated sibling inherits protection and yields none.
	require.Len(t, report.Findings, 1)
	assert.Equal(t, "AP003", report.Findings[0].RuleID)
	assert.Equal(t, "/account/login", report.Findings[0].Endpoint.Route)
}

func TestRunCrossFileCorrelation(t *testing.T) {
	dir := t.TempDir()
	writeUnit(t, dir, "OrderEndpoints.cs.json", source.Unit{
		Path: "Endpoints/OrderEndpoints.cs",
		Functions: []source.Function{{
			Name:   "MapOrderEndpoints",
			Params: []source.Parameter{{Name: "app", TypeName: "IEndpointRouteBuilder", IsReceiver: true}},
			Body: []source.Statement{
				{Receiver: "app", Calls: []source.Call{
					{Name: "MapGet", Args: []string{"/orders"}, Pos: source.Position{Line: 7}},
				}},
			},
		}},
	})
	writeUnit(t, dir, "Program.cs.json", source.Unit{
		Path: "Program.cs",
		Statements: []source.Statement{
			{Assign: "api", Receiver: "app", Calls: []source.Call{
				{Name: "MapGroup", Args: []string{"/api"}},
				{Name: "RequireAuthorization"},
			}},
			{Receiver: "api", Calls: []source.Call{{Name: "MapOrderEndpoints"}}},
		},
	})

	sc := newTestScanner(t, config.DefaultConfig())
	report, err := sc.Run(context.Background(), dir)
	require.NoError(t, err)

	require.Len(t, report.Endpoints, 1)
	ep := report.Endpoints[0]
	assert.Equal(t, "/api/orders", ep.Route)
	assert.Equal(t, types.PostureAuthenticated, ep.Posture)
	assert.Empty(t, report.Findings)
}

func TestRunGlobalFallbackProtectsUndecorated(t *testing.T) {
	dir := t.TempDir()
	writeUnit(t, dir, "Program.cs.json", source.Unit{
		Path: "Program.cs",
		Statements: []source.Statement{
			{Calls: []source.Call{{
				Name: "AddAuthorization",
				Nested: []source.Statement{{
					Assign: "options.FallbackPolicy",
					Calls: []source.Call{
						{Name: "AuthorizationPolicyBuilder"},
						{Name: "RequireAuthenticatedUser"},
						{Name: "Build"},
					},
				}},
			}}},
			{Receiver: "app", Calls: []source.Call{
				{Name: "MapPost", Args: []string{"/orders"}, Pos: source.Position{Line: 20}},
			}},
		},
	})

	sc := newTestScanner(t, config.DefaultConfig())
	report, err := sc.Run(context.Background(), dir)
	require.NoError(t, err)

	require.Len(t, report.Endpoints, 1)
	assert.Equal(t, types.PostureAuthenticated, report.Endpoints[0].Posture)
	assert.True(t, report.GlobalPolicy.Protective())

	// The fallback defuses the exposure rules; only the missing-metadata
	// advisory on the bare registration remains.
	require.Len(t, report.Findings, 1)
	assert.Equal(t, "AP008", report.Findings[0].RuleID)
}

func TestRunRecordsFailedFiles(t *testing.T) {
	dir := t.TempDir()
	writeUnit(t, dir, "Good.cs.json", accountControllerUnit())
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Broken.cs.json"), []byte("{not json"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignored.txt"), []byte("x"), 0o644))

	sc := newTestScanner(t, config.DefaultConfig())
	report, err := sc.Run(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 1, report.FilesScanned)
	assert.Equal(t, 1, report.FilesFailed)
	require.Len(t, report.FailedFiles, 1)
	assert.Contains(t, report.FailedFiles[0], "Broken.cs.json")
	assert.Len(t, report.Endpoints, 2)
}

func TestRunSkipsExcludedDirs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "obj"), 0o755))
	writeUnit(t, dir, filepath.Join("obj", "Gen.cs.json"), accountControllerUnit())

	sc := newTestScanner(t, config.DefaultConfig())
	report, err := sc.Run(context.Background(), dir)
	require.NoError(t, err)
	assert.Zero(t, report.FilesScanned)
	assert.Empty(t, report.Endpoints)
}

func TestRunAppliesSuppressions(t *testing.T) {
	dir := t.TempDir()
	writeUnit(t, dir, "AccountController.cs.json", accountControllerUnit())

	cfg := config.DefaultConfig()
	cfg.Suppressions = []suppress.Entry{{Route: "/account/*", Rules: []string{"AP003"}}}

	sc := newTestScanner(t, cfg)
	report, err := sc.Run(context.Background(), dir)
	require.NoError(t, err)

	assert.Empty(t, report.Findings)
	assert.Equal(t, 1, report.Suppressed)
	assert.Zero(t, report.Summary.Total)
}

func TestRunHonorsCancellation(t *testing.T) {
	dir := t.TempDir()
	writeUnit(t, dir, "AccountController.cs.json", accountControllerUnit())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sc := newTestScanner(t, config.DefaultConfig())
	_, err := sc.Run(ctx, dir)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunIsDeterministic(t *testing.T) {
	dir := t.TempDir()
	writeUnit(t, dir, "AccountController.cs.json", accountControllerUnit())
	writeUnit(t, dir, "Program.cs.json", source.Unit{
		Path: "Program.cs",
		Statements: []source.Statement{
			{Receiver: "app", Calls: []source.Call{
				{Name: "MapPost", Args: []string{"/api/webhooks/pay"}, Pos: source.Position{Line: 3}},
				{Name: "AllowAnonymous"},
			}},
		},
	})

	sc := newTestScanner(t, config.DefaultConfig())
	first, err := sc.Run(context.Background(), dir)
	require.NoError(t, err)
	second, err := sc.Run(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, first.Endpoints, second.Endpoints)
	require.Equal(t, len(first.Findings), len(second.Findings))
	for i := range first.Findings {
		assert.Equal(t, first.Findings[i].RuleID, second.Findings[i].RuleID)
		assert.Equal(t, first.Findings[i].Endpoint.Route, second.Findings[i].Endpoint.Route)
		assert.Equal(t, first.Findings[i].Severity, second.Findings[i].Severity)
	}
}
