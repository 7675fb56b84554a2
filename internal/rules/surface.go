package rules

import (
	"fmt"
	"strings"

	"github.com/BlagoCuljak/ApiPosture/pkg/types"
)

// DefaultSensitiveKeywords is the route vocabulary the sensitive-route rule
// matches when configuration supplies none.
func DefaultSensitiveKeywords() []string {
	return []string{
		"admin", "debug", "export", "internal", "secret", "secrets",
		"config", "settings", "backup", "migrate", "swagger", "console",
	}
}

// SensitiveRouteRule flags public endpoints whose route contains a sensitive
// keyword as a whole path segment, case-insensitively. "/api/administration"
// does not match "admin"; "/api/admin/users" does.
type SensitiveRouteRule struct {
	keywords map[string]struct{}
}

func NewSensitiveRouteRule(keywords []string) *SensitiveRouteRule {
	if len(keywords) == 0 {
		keywords = DefaultSensitiveKeywords()
	}
	set := make(map[string]struct{}, len(keywords))
	for _, kw := range keywords {
		set[strings.ToLower(kw)] = struct{}{}
	}
	return &SensitiveRouteRule{keywords: set}
}

func (r *SensitiveRouteRule) ID() string   { return "AP007" }
func (r *SensitiveRouteRule) Name() string { return "Sensitive route segment exposed" }
func (r *SensitiveRouteRule) DefaultSeverity() types.Severity {
	return types.SeverityHigh
}

func (r *SensitiveRouteRule) Evaluate(ep types.Endpoint) *types.Finding {
	if ep.Posture != types.PosturePublic {
		return nil
	}
	var hit string
	for _, seg := range routeSegments(ep.Route) {
		if _, ok := r.keywords[seg]; ok {
			hit = seg
			break
		}
	}
	if hit == "" {
		return nil
	}
	msg := fmt.Sprintf("%s %s is public and its route contains the sensitive segment %q", ep.MethodList, ep.Route, hit)
	return newFinding(r, r.DefaultSeverity(), msg,
		"Endpoints under sensitive path segments should require authorization even when the handler looks harmless.", ep)
}

// MissingAuthMetadataRule flags function-based endpoints whose declaration
// chain carries no authorization-related call at all, neither a requirement
// nor an explicit anonymous opt-out. The endpoint's posture then depends
// entirely on project-wide defaults, which is invisible at the call site.
type MissingAuthMetadataRule struct{}

func NewMissingAuthMetadataRule() *MissingAuthMetadataRule { return &MissingAuthMetadataRule{} }

func (r *MissingAuthMetadataRule) ID() string   { return "AP008" }
func (r *MissingAuthMetadataRule) Name() string { return "Route registration without authorization metadata" }
func (r *MissingAuthMetadataRule) DefaultSeverity() types.Severity {
	return types.SeverityMedium
}

func (r *MissingAuthMetadataRule) Evaluate(ep types.Endpoint) *types.Finding {
	if ep.Style != types.StyleMinimalAPI || ep.HasAuthCall {
		return nil
	}
	msg := fmt.Sprintf("%s %s is registered without any authorization-related call in its chain", ep.MethodList, ep.Route)
	return newFinding(r, r.DefaultSeverity(), msg,
		"Chain RequireAuthorization or AllowAnonymous onto the registration so the endpoint's posture is explicit.", ep)
}
