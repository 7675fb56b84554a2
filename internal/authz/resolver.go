package authz

import "github.com/BlagoCuljak/ApiPosture/pkg/types"

// maxChainClone bounds the defensive chain copy in ApplyGlobalFallback.
const maxChainClone = 8

// ApplyGlobalFallback attaches a synthesized outermost scope from the
// project-wide fallback policy when, and only when, no scope in the chain
// carries an explicit declaration. An explicit declaration anywhere beats the
// project default; a default policy alone never synthesizes protection.
//
// The input chain is never mutated: container scopes are shared between
// sibling handlers, so the chain is cloned before the root is attached.
func ApplyGlobalFallback(state *types.AuthorizationState, global types.GlobalPolicyInfo) *types.AuthorizationState {
	if state.HasExplicitDeclaration() {
		return state
	}
	if !global.Protective() {
		return state
	}

	synthesized := &types.AuthorizationState{
		RequireAuth: true,
		Roles:       append([]string(nil), global.FallbackRoles...),
		Policies:    append([]string(nil), global.FallbackClaims...),
	}
	if state == nil {
		return synthesized
	}

	cloned := cloneChain(state)
	cloned.Root().Outer = synthesized
	return cloned
}

func cloneChain(state *types.AuthorizationState) *types.AuthorizationState {
	var head, tail *types.AuthorizationState
	depth := 0
	for cur := state; cur != nil; cur = cur.Outer {
		if depth++; depth > maxChainClone {
			break
		}
		node := &types.AuthorizationState{
			RequireAuth:    cur.RequireAuth,
			AllowAnonymous: cur.AllowAnonymous,
			Roles:          append([]string(nil), cur.Roles...),
			Policies:       append([]string(nil), cur.Policies...),
			Schemes:        append([]string(nil), cur.Schemes...),
		}
		if head == nil {
			head = node
		} else {
			tail.Outer = node
		}
		tail = node
	}
	return head
}
