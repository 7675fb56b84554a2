package authz

import (
	"github.com/BlagoCuljak/ApiPosture/internal/source"
	"github.com/BlagoCuljak/ApiPosture/pkg/types"
)

// StateFromCalls folds the authorization-bearing fluent calls chained after a
// route registration (or grouping) call into a scope node linked to outer.
// As with StateFromMarkers, a chain with no authorization calls returns the
// outer scope unchanged.
func StateFromCalls(calls []source.Call, outer *types.AuthorizationState) *types.AuthorizationState {
	state := &types.AuthorizationState{}
	declared := false
	for _, call := range calls {
		switch call.Name {
		case "RequireAuthorization":
			declared = true
			state.RequireAuth = true
			for _, policy := range call.Args {
				if policy != "" {
					state.Policies = appendUnique(state.Policies, policy)
				}
			}
		case "RequireRole":
			declared = true
			state.RequireAuth = true
			for _, role := range call.Args {
				if role != "" {
					state.Roles = appendUnique(state.Roles, role)
				}
			}
		case "AllowAnonymous":
			declared = true
			state.AllowAnonymous = true
		}
	}
	if !declared {
		return outer
	}
	state.Outer = outer
	return state
}

// HasAuthCall reports whether the chain contains any authorization-related
// call at all, required or anonymous.
func HasAuthCall(calls []source.Call) bool {
	for _, call := range calls {
		switch call.Name {
		case "RequireAuthorization", "RequireRole", "AllowAnonymous":
			return true
		}
	}
	return false
}
