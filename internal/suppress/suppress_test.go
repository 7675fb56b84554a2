package suppress

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/BlagoCuljak/ApiPosture/pkg/types"
)

func TestMatchRoute(t *testing.T) {
	tests := []struct {
		pattern string
		route   string
		want    bool
	}{
		{"/api/orders", "/api/orders", true},
		{"/api/orders", "/API/Orders", true},
		{"/api/orders", "/api/orders/1", false},
		{"/api/admin/*", "/api/admin/users", true},
		{"/api/admin/*", "/api/admin/", true},
		{"/api/admin/*", "/api/admins", false},
		{"*/health", "/internal/health", true},
		{"*/health", "/healthcheck", false},
		{"/api/*/status", "/api/v2/status", true},
		{"/api/*/status", "/api/status", false},
		{"", "/anything", false},
		{"*", "/anything", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MatchRoute(tt.pattern, tt.route),
			"pattern %q route %q", tt.pattern, tt.route)
	}
}

func TestFilterApply(t *testing.T) {
	findings := []types.Finding{
		{RuleID: "AP001", Endpoint: types.Endpoint{Route: "/api/admin/users"}},
		{RuleID: "AP007", Endpoint: types.Endpoint{Route: "/api/admin/users"}},
		{RuleID: "AP001", Endpoint: types.Endpoint{Route: "/api/orders"}},
	}

	t.Run("rule-scoped entry", func(t *testing.T) {
		f := NewFilter([]Entry{{Route: "/api/admin/*", Rules: []string{"ap007"}}})
		kept, suppressed := f.Apply(findings)
		assert.Equal(t, 1, suppressed)
		assert.Len(t, kept, 2)
		for _, k := range kept {
			assert.NotEqual(t, "AP007", k.RuleID)
		}
	})

	t.Run("empty rule list covers all rules", func(t *testing.T) {
		f := NewFilter([]Entry{{Route: "/api/admin/*"}})
		kept, suppressed := f.Apply(findings)
		assert.Equal(t, 2, suppressed)
		assert.Len(t, kept, 1)
		assert.Equal(t, "/api/orders", kept[0].Endpoint.Route)
	})

	t.Run("no entries is a no-op", func(t *testing.T) {
		kept, suppressed := NewFilter(nil).Apply(findings)
		assert.Equal(t, 0, suppressed)
		assert.Equal(t, findings, kept)
	})
}
