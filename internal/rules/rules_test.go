package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BlagoCuljak/ApiPosture/internal/authz"
	"github.com/BlagoCuljak/ApiPosture/internal/source"
	"github.com/BlagoCuljak/ApiPosture/pkg/types"
)

func heuristicClassifier() *authz.MarkerClassifier {
	return authz.NewMarkerClassifier("", func(string) *source.Class { return nil }, nil)
}

func publicWrite(route string) types.Endpoint {
	return types.Endpoint{
		Route:      route,
		Methods:    types.MethodPost,
		MethodList: "POST",
		Style:      types.StyleMinimalAPI,
		Posture:    types.PosturePublic,
	}
}

func anonymousWrite(route string) types.Endpoint {
	ep := publicWrite(route)
	ep.Auth = &types.AuthorizationState{AllowAnonymous: true}
	ep.HasAuthCall = true
	return ep
}

func TestAccidentalPublicRule(t *testing.T) {
	rule := NewAccidentalPublicRule()

	f := rule.Evaluate(publicWrite("/orders"))
	require.NotNil(t, f)
	assert.Equal(t, "AP001", f.RuleID)
	assert.Equal(t, types.SeverityHigh, f.Severity)

	// The explicit anonymous marker documents the exposure.
	assert.Nil(t, rule.Evaluate(anonymousWrite("/orders")))

	protected := publicWrite("/orders")
	protected.Posture = types.PostureAuthenticated
	assert.Nil(t, rule.Evaluate(protected))
}

func TestAnonymousOnWriteSeverityGrading(t *testing.T) {
	rule := NewAnonymousOnWriteRule(heuristicClassifier())

	tests := []struct {
		route string
		want  types.Severity
	}{
		{"/orders", types.SeverityHigh},
		{"/api/webhooks/stripe", types.SeverityMedium},
		{"/api/payment-callback", types.SeverityMedium},
		{"/api/analytics/events", types.SeverityLow},
		{"/metrics", types.SeverityLow},
		{"/api/devices/register", types.SeverityHigh},
		{"/push/subscribe", types.SeverityHigh},
	}
	for _, tt := range tests {
		f := rule.Evaluate(anonymousWrite(tt.route))
		require.NotNil(t, f, tt.route)
		assert.Equal(t, tt.want, f.Severity, tt.route)
	}

	// Read methods never trigger.
	read := anonymousWrite("/orders")
	read.Methods = types.MethodGet
	assert.Nil(t, rule.Evaluate(read))
}

func TestAnonymousOnWriteSuppressedByAuthorizingMarker(t *testing.T) {
	rule := NewAnonymousOnWriteRule(heuristicClassifier())

	ep := anonymousWrite("/api/webhooks/stripe")
	ep.CustomMarkers = []string{"RequireHmacSignature"}
	assert.Nil(t, rule.Evaluate(ep))

	ep.CustomMarkers = []string{"AuditLog"}
	assert.NotNil(t, rule.Evaluate(ep))
}

func TestAnonymousOverrideRule(t *testing.T) {
	rule := NewAnonymousOverrideRule()

	ep := publicWrite("/account/login")
	ep.Auth = &types.AuthorizationState{
		AllowAnonymous: true,
		Outer:          &types.AuthorizationState{RequireAuth: true},
	}
	f := rule.Evaluate(ep)
	require.NotNil(t, f)
	assert.Equal(t, "AP003", f.RuleID)
	assert.Equal(t, types.SeverityMedium, f.Severity)

	// Anonymous without a protected container is not an override.
	assert.Nil(t, rule.Evaluate(anonymousWrite("/status")))
}

func TestUnmarkedWriteEscalatesOneTier(t *testing.T) {
	anon := NewAnonymousOnWriteRule(heuristicClassifier())
	unmarked := NewUnmarkedWriteRule(heuristicClassifier())

	// The undocumented gap always lands one tier above the documented one on
	// the same route.
	routes := []string{"/orders", "/api/webhooks/github", "/api/analytics/events", "/devices/register"}
	for _, route := range routes {
		documented := anon.Evaluate(anonymousWrite(route))
		silent := unmarked.Evaluate(publicWrite(route))
		require.NotNil(t, documented, route)
		require.NotNil(t, silent, route)
		assert.Equal(t, documented.Severity.Escalate(), silent.Severity, route)
	}

	f := unmarked.Evaluate(publicWrite("/orders"))
	assert.Equal(t, types.SeverityCritical, f.Severity)

	// Any declaration in scope defuses the rule.
	declared := publicWrite("/orders")
	declared.HasAuthCall = true
	assert.Nil(t, unmarked.Evaluate(declared))
}

func TestExcessiveRolesRule(t *testing.T) {
	rule := NewExcessiveRolesRule(3)

	ep := types.Endpoint{
		Route: "/api/reports", MethodList: "GET",
		Auth:    &types.AuthorizationState{Roles: []string{"A", "B", "C", "D"}},
		Posture: types.PostureRoleRestricted,
	}
	f := rule.Evaluate(ep)
	require.NotNil(t, f)
	assert.Equal(t, "AP005", f.RuleID)

	ep.Auth = &types.AuthorizationState{Roles: []string{"A", "B", "C"}}
	assert.Nil(t, rule.Evaluate(ep))

	// The union across scopes counts, not a single declaration.
	ep.Auth = &types.AuthorizationState{
		Roles: []string{"A", "B"},
		Outer: &types.AuthorizationState{Roles: []string{"C", "D"}},
	}
	assert.NotNil(t, rule.Evaluate(ep))
}

func TestGenericRoleNameRule(t *testing.T) {
	rule := NewGenericRoleNameRule()

	ep := types.Endpoint{
		Route: "/api/users", MethodList: "GET",
		Auth: &types.AuthorizationState{Roles: []string{"Admin", "OrdersManager"}},
	}
	f := rule.Evaluate(ep)
	require.NotNil(t, f)
	assert.Contains(t, f.Message, "Admin")

	ep.Auth = &types.AuthorizationState{Roles: []string{"OrdersManager"}}
	assert.Nil(t, rule.Evaluate(ep))
}

func TestSensitiveRouteSegmentMatching(t *testing.T) {
	rule := NewSensitiveRouteRule(nil)

	tests := []struct {
		route string
		hit   bool
	}{
		{"/api/admin/users", true},
		{"/API/Admin", true},
		{"/api/administration/users", false}, // whole segment only
		{"/debug", true},
		{"/debugging", false},
		{"/api/orders", false},
	}
	for _, tt := range tests {
		ep := publicWrite(tt.route)
		got := rule.Evaluate(ep)
		if tt.hit {
			assert.NotNil(t, got, tt.route)
		} else {
			assert.Nil(t, got, tt.route)
		}
	}

	// Protected endpoints are exempt regardless of route.
	ep := publicWrite("/api/admin/users")
	ep.Posture = types.PostureRoleRestricted
	assert.Nil(t, rule.Evaluate(ep))
}

func TestMissingAuthMetadataRule(t *testing.T) {
	rule := NewMissingAuthMetadataRule()

	ep := publicWrite("/orders")
	require.NotNil(t, rule.Evaluate(ep))

	// Any explicit call, even AllowAnonymous, satisfies the rule.
	assert.Nil(t, rule.Evaluate(anonymousWrite("/orders")))

	controller := publicWrite("/orders")
	controller.Style = types.StyleController
	assert.Nil(t, rule.Evaluate(controller))
}

func TestEngineOverrides(t *testing.T) {
	enabled := false
	overrides := map[string]Override{
		"ap001": {Severity: types.SeverityLow},
		"AP008": {Enabled: &enabled},
	}
	engine := NewDefaultEngine(overrides, heuristicClassifier(), nil, 0)

	findings := engine.Evaluate([]types.Endpoint{publicWrite("/orders")})

	byRule := make(map[string]types.Finding)
	for _, f := range findings {
		byRule[f.RuleID] = f
	}
	// Overridden severity applied (rule reported its default).
	require.Contains(t, byRule, "AP001")
	assert.Equal(t, types.SeverityLow, byRule["AP001"].Severity)
	// Disabled rule emitted nothing.
	assert.NotContains(t, byRule, "AP008")
	// Route-graded severities stay untouched by overrides.
	require.Contains(t, byRule, "AP004")
	assert.Equal(t, types.SeverityCritical, byRule["AP004"].Severity)
}

func TestEngineSeverityOverrideKeepsGradedValues(t *testing.T) {
	overrides := map[string]Override{"AP002": {Severity: types.SeverityInfo}}
	engine := NewDefaultEngine(overrides, heuristicClassifier(), nil, 0)

	findings := engine.Evaluate([]types.Endpoint{anonymousWrite("/api/webhooks/pay")})
	for _, f := range findings {
		if f.RuleID == "AP002" {
			// The rule graded the webhook route to medium, below its default;
			// the override must not clobber the graded value.
			assert.Equal(t, types.SeverityMedium, f.Severity)
			return
		}
	}
	t.Fatal("expected an AP002 finding")
}

func TestEngineRejectsDuplicateRuleIDs(t *testing.T) {
	engine := NewDefaultEngine(nil, heuristicClassifier(), nil, 0)
	err := engine.Register(NewAccidentalPublicRule())
	require.Error(t, err)
	assert.Len(t, engine.List(), 8)
}

func TestFindingsCarryIdentity(t *testing.T) {
	engine := NewDefaultEngine(nil, heuristicClassifier(), nil, 0)
	findings := engine.Evaluate([]types.Endpoint{publicWrite("/orders")})
	require.NotEmpty(t, findings)
	for _, f := range findings {
		assert.NotEmpty(t, f.ID)
		assert.NotEmpty(t, f.RuleName)
		assert.False(t, f.CreatedAt.IsZero())
	}
}
