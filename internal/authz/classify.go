package authz

import "github.com/BlagoCuljak/ApiPosture/pkg/types"

// Classify maps a resolved authorization chain to its posture class.
//
// Order matters: an explicit anonymous marker at the innermost scope always
// wins, and policy restriction is checked before role restriction so an
// endpoint carrying both classifies as policy-restricted.
func Classify(state *types.AuthorizationState) types.PostureClass {
	if state != nil && state.AllowAnonymous {
		return types.PosturePublic
	}
	if !state.EffectivelyAuthorized() {
		return types.PosturePublic
	}
	if len(state.EffectivePolicies()) > 0 {
		return types.PosturePolicyRestricted
	}
	if len(state.EffectiveRoles()) > 0 {
		return types.PostureRoleRestricted
	}
	return types.PostureAuthenticated
}
