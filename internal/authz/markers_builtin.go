package authz

import (
	"strings"

	"github.com/BlagoCuljak/ApiPosture/internal/source"
	"github.com/BlagoCuljak/ApiPosture/pkg/types"
)

// Built-in authorization marker names. Everything else attached to a handler
// or container is a project-defined marker and goes through the classifier.
const (
	markerAuthorize      = "Authorize"
	markerAllowAnonymous = "AllowAnonymous"
)

// frameworkMarkers are well-known non-authorization markers that must not be
// reported as custom. Names are compared after trimming the conventional
// "Attribute" suffix.
var frameworkMarkers = map[string]struct{}{
	markerAuthorize:        {},
	markerAllowAnonymous:   {},
	"Route":                {},
	"RoutePrefix":          {},
	"HttpGet":              {},
	"HttpPost":             {},
	"HttpPut":              {},
	"HttpDelete":           {},
	"HttpPatch":            {},
	"HttpHead":             {},
	"HttpOptions":          {},
	"AcceptVerbs":          {},
	"ApiController":        {},
	"Controller":           {},
	"NonAction":            {},
	"NonController":        {},
	"ApiVersion":           {},
	"Area":                 {},
	"Produces":             {},
	"ProducesResponseType": {},
	"Consumes":             {},
	"ValidateAntiForgeryToken": {},
	"IgnoreAntiforgeryToken":   {},
}

// IsFrameworkMarker reports whether the marker name belongs to the routing
// framework itself.
func IsFrameworkMarker(name string) bool {
	_, ok := frameworkMarkers[source.TrimAttributeSuffix(name)]
	return ok
}

// CustomMarkerNames extracts the project-defined marker names from a marker
// list, preserving declaration order and dropping duplicates.
func CustomMarkerNames(markers []source.Marker) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, m := range markers {
		name := source.TrimAttributeSuffix(m.Name)
		if IsFrameworkMarker(name) {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

// StateFromMarkers folds the authorization declarations of one marker list
// into a scope node linked to outer. When the list carries no authorization
// declaration the outer scope is returned unchanged, so empty scopes never
// add chain nodes (the innermost-anonymous check depends on that).
func StateFromMarkers(markers []source.Marker, outer *types.AuthorizationState) *types.AuthorizationState {
	state := &types.AuthorizationState{}
	declared := false
	for _, m := range markers {
		switch source.TrimAttributeSuffix(m.Name) {
		case markerAuthorize:
			declared = true
			state.RequireAuth = true
			if policy := m.Arg(0); policy != "" {
				state.Policies = appendUnique(state.Policies, policy)
			}
			if policy := m.Named["Policy"]; policy != "" {
				state.Policies = appendUnique(state.Policies, policy)
			}
			for _, role := range splitList(m.Named["Roles"]) {
				state.Roles = appendUnique(state.Roles, role)
			}
			for _, scheme := range splitList(m.Named["AuthenticationSchemes"]) {
				state.Schemes = appendUnique(state.Schemes, scheme)
			}
		case markerAllowAnonymous:
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

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func appendUnique(list []string, value string) []string {
	for _, v := range list {
		if v == value {
			return list
		}
	}
	return append(list, value)
}
