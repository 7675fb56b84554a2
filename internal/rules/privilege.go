package rules

import (
	"fmt"
	"strings"

	"github.com/BlagoCuljak/ApiPosture/pkg/types"
)

const defaultMaxRoles = 3

// ExcessiveRolesRule flags endpoints whose effective role union (across the
// whole scope chain) exceeds the threshold. Long role lists usually mean the
// endpoint serves too many audiences to reason about.
type ExcessiveRolesRule struct {
	maxRoles int
}

func NewExcessiveRolesRule(maxRoles int) *ExcessiveRolesRule {
	if maxRoles <= 0 {
		maxRoles = defaultMaxRoles
	}
	return &ExcessiveRolesRule{maxRoles: maxRoles}
}

func (r *ExcessiveRolesRule) ID() string   { return "AP005" }
func (r *ExcessiveRolesRule) Name() string { return "Excessive role access" }
func (r *ExcessiveRolesRule) DefaultSeverity() types.Severity {
	return types.SeverityMedium
}

func (r *ExcessiveRolesRule) Evaluate(ep types.Endpoint) *types.Finding {
	roles := ep.Auth.EffectiveRoles()
	if len(roles) <= r.maxRoles {
		return nil
	}
	msg := fmt.Sprintf("%s %s grants access to %d roles (%s)", ep.MethodList, ep.Route, len(roles), strings.Join(roles, ", "))
	return newFinding(r, r.DefaultSeverity(), msg,
		"Split the endpoint per audience or replace the role list with a named policy that captures the actual requirement.", ep)
}

// genericRoleNames are role names so broad they carry no authorization
// meaning.
var genericRoleNames = map[string]struct{}{
	"admin":     {},
	"user":      {},
	"users":     {},
	"superuser": {},
	"root":      {},
	"test":      {},
	"default":   {},
	"everyone":  {},
	"all":       {},
	"role":      {},
}

// GenericRoleNameRule flags endpoints restricted by generically named roles.
type GenericRoleNameRule struct{}

func NewGenericRoleNameRule() *GenericRoleNameRule { return &GenericRoleNameRule{} }

func (r *GenericRoleNameRule) ID() string   { return "AP006" }
func (r *GenericRoleNameRule) Name() string { return "Weakly named role" }
func (r *GenericRoleNameRule) DefaultSeverity() types.Severity {
	return types.SeverityLow
}

func (r *GenericRoleNameRule) Evaluate(ep types.Endpoint) *types.Finding {
	var weak []string
	for _, role := range ep.Auth.EffectiveRoles() {
		if _, ok := genericRoleNames[strings.ToLower(role)]; ok {
			weak = append(weak, role)
		}
	}
	if len(weak) == 0 {
		return nil
	}
	msg := fmt.Sprintf("%s %s relies on generically named roles: %s", ep.MethodList, ep.Route, strings.Join(weak, ", "))
	return newFinding(r, r.DefaultSeverity(), msg,
		"Rename roles to reflect concrete capabilities (e.g. orders:write) so reviews can judge who actually gets access.", ep)
}
