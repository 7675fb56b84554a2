package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/BlagoCuljak/ApiPosture/internal/source"
	"github.com/BlagoCuljak/ApiPosture/pkg/types"
)

func startupUnit(stmts ...source.Statement) []*source.Unit {
	return []*source.Unit{{Path: "Program.cs", Statements: stmts}}
}

func TestAnalyzeGlobalPolicyFallbackAssignment(t *testing.T) {
	units := startupUnit(source.Statement{
		Receiver: "builder.Services",
		Calls: []source.Call{{
			Name: "AddAuthorization",
			Nested: []source.Statement{{
				Assign: "options.FallbackPolicy",
				Calls: []source.Call{
					{Name: "AuthorizationPolicyBuilder"},
					{Name: "RequireAuthenticatedUser"},
					{Name: "RequireRole", Args: []string{"Employee"}},
					{Name: "Build"},
				},
			}},
		}},
	})

	info := AnalyzeGlobalPolicy(units)
	assert.True(t, info.HasFallbackPolicy)
	assert.True(t, info.FallbackRequiresAuth)
	assert.Equal(t, []string{"Employee"}, info.FallbackRoles)
	assert.False(t, info.HasDefaultPolicy)
	assert.True(t, info.Protective())
}

func TestAnalyzeGlobalPolicyDefaultPolicyIsNotProtective(t *testing.T) {
	units := startupUnit(source.Statement{
		Calls: []source.Call{{
			Name: "AddAuthorization",
			Nested: []source.Statement{{
				Assign: "options.DefaultPolicy",
				Calls: []source.Call{
					{Name: "AuthorizationPolicyBuilder"},
					{Name: "RequireAuthenticatedUser"},
					{Name: "Build"},
				},
			}},
		}},
	})

	info := AnalyzeGlobalPolicy(units)
	assert.True(t, info.HasDefaultPolicy)
	assert.False(t, info.HasFallbackPolicy)
	assert.False(t, info.Protective())
}

func TestAnalyzeGlobalPolicyBuilderStyle(t *testing.T) {
	units := startupUnit(source.Statement{
		Calls: []source.Call{
			{Name: "AddAuthorizationBuilder"},
			{Name: "AddFallbackPolicy", Args: []string{"fallback"}, Nested: []source.Statement{{
				Calls: []source.Call{{Name: "RequireClaim", Args: []string{"scope"}}},
			}}},
		},
	})

	info := AnalyzeGlobalPolicy(units)
	assert.True(t, info.HasFallbackPolicy)
	assert.Equal(t, []string{"scope"}, info.FallbackClaims)
	assert.True(t, info.Protective())
}

func TestAnalyzeGlobalPolicyEmptyProject(t *testing.T) {
	info := AnalyzeGlobalPolicy(nil)
	assert.False(t, info.HasFallbackPolicy)
	assert.False(t, info.Protective())
}

func TestApplyGlobalFallback(t *testing.T) {
	protective := types.GlobalPolicyInfo{HasFallbackPolicy: true, FallbackRequiresAuth: true}

	t.Run("explicit declaration beats the fallback", func(t *testing.T) {
		state := &types.AuthorizationState{AllowAnonymous: true}
		got := ApplyGlobalFallback(state, protective)
		assert.Same(t, state, got)
		assert.True(t, got.EffectivePublic())
	})

	t.Run("undeclared chain gains a synthesized root", func(t *testing.T) {
		got := ApplyGlobalFallback(nil, protective)
		assert.True(t, got.EffectivelyAuthorized())
	})

	t.Run("shared container scope is not mutated", func(t *testing.T) {
		container := &types.AuthorizationState{}
		a := &types.AuthorizationState{Outer: container}

		got := ApplyGlobalFallback(a, protective)
		assert.True(t, got.EffectivelyAuthorized())
		// The sibling sharing the container must not see the fallback through
		// the shared node.
		assert.Nil(t, container.Outer)
		assert.Nil(t, a.Outer.Outer)
	})

	t.Run("non-protective config leaves the chain alone", func(t *testing.T) {
		state := &types.AuthorizationState{}
		got := ApplyGlobalFallback(state, types.GlobalPolicyInfo{HasDefaultPolicy: true})
		assert.Same(t, state, got)
		assert.False(t, got.EffectivelyAuthorized())
	})
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		state *types.AuthorizationState
		want  types.PostureClass
	}{
		{"nil chain", nil, types.PosturePublic},
		{"empty scope", &types.AuthorizationState{}, types.PosturePublic},
		{"innermost anonymous", &types.AuthorizationState{
			AllowAnonymous: true,
			Outer:          &types.AuthorizationState{RequireAuth: true},
		}, types.PosturePublic},
		{"bare authorize", &types.AuthorizationState{RequireAuth: true}, types.PostureAuthenticated},
		{"roles", &types.AuthorizationState{Roles: []string{"Admin"}}, types.PostureRoleRestricted},
		{"policy wins over roles", &types.AuthorizationState{
			Roles:    []string{"Admin"},
			Policies: []string{"CanManage"},
		}, types.PosturePolicyRestricted},
		{"policy on outer scope", &types.AuthorizationState{
			RequireAuth: true,
			Outer:       &types.AuthorizationState{Policies: []string{"CanManage"}},
		}, types.PosturePolicyRestricted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.state))
		})
	}
}
