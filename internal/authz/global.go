package authz

import (
	"github.com/BlagoCuljak/ApiPosture/internal/source"
	"github.com/BlagoCuljak/ApiPosture/pkg/types"
)

// AnalyzeGlobalPolicy computes the project-wide authorization configuration
// by inspecting AddAuthorization configuration lambdas across every unit.
// It runs once per project, independent of any single endpoint.
func AnalyzeGlobalPolicy(units []*source.Unit) types.GlobalPolicyInfo {
	var info types.GlobalPolicyInfo
	for _, unit := range units {
		for _, stmt := range unit.AllStatements() {
			for _, call := range stmt.Calls {
				switch call.Name {
				case "AddAuthorization", "AddAuthorizationBuilder":
					collectOptionsLambda(call.Nested, &info)
				case "AddFallbackPolicy", "SetFallbackPolicy":
					info.HasFallbackPolicy = true
					collectPolicyBuilder(call, &info)
				case "AddDefaultPolicy", "SetDefaultPolicy":
					info.HasDefaultPolicy = true
				}
			}
		}
	}
	return info
}

// collectOptionsLambda walks the statements of an options lambda looking for
// fallback and default policy assignments.
func collectOptionsLambda(stmts []source.Statement, info *types.GlobalPolicyInfo) {
	for _, stmt := range stmts {
		switch {
		case hasSuffixTarget(stmt.Assign, "FallbackPolicy"):
			info.HasFallbackPolicy = true
			collectRequirements(stmt.Calls, info)
		case hasSuffixTarget(stmt.Assign, "DefaultPolicy"):
			info.HasDefaultPolicy = true
		}
		for _, call := range stmt.Calls {
			switch call.Name {
			case "AddFallbackPolicy", "SetFallbackPolicy":
				info.HasFallbackPolicy = true
				collectPolicyBuilder(call, info)
			case "AddDefaultPolicy", "SetDefaultPolicy", "AddPolicy":
				if call.Name != "AddPolicy" {
					info.HasDefaultPolicy = true
				}
			}
		}
	}
}

// collectPolicyBuilder reads requirements out of a policy builder lambda
// passed to AddFallbackPolicy / SetFallbackPolicy.
func collectPolicyBuilder(call source.Call, info *types.GlobalPolicyInfo) {
	for _, stmt := range call.Nested {
		collectRequirements(stmt.Calls, info)
	}
}

func collectRequirements(calls []source.Call, info *types.GlobalPolicyInfo) {
	for _, call := range calls {
		switch call.Name {
		case "RequireAuthenticatedUser":
			info.FallbackRequiresAuth = true
		case "RequireRole":
			for _, role := range call.Args {
				info.FallbackRoles = appendUnique(info.FallbackRoles, role)
			}
		case "RequireClaim":
			if claim := argAt(call, 0); claim != "" {
				info.FallbackClaims = appendUnique(info.FallbackClaims, claim)
			}
		case "RequireAssertion":
			// Opaque predicate: the policy demands something, so treat it
			// as requiring authentication.
			info.FallbackRequiresAuth = true
		}
	}
}

func argAt(call source.Call, i int) string {
	if i < len(call.Args) {
		return call.Args[i]
	}
	return ""
}

// hasSuffixTarget reports whether an assignment target like
// "options.FallbackPolicy" ends in the given member name.
func hasSuffixTarget(assign, member string) bool {
	if assign == member {
		return true
	}
	n := len(assign) - len(member)
	return n > 0 && assign[n-1] == '.' && assign[n:] == member
}
