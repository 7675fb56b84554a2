package rules

import (
	"fmt"

	"github.com/BlagoCuljak/ApiPosture/internal/authz"
	"github.com/BlagoCuljak/ApiPosture/pkg/types"
)

// AnonymousOverrideRule warns when a handler-scope anonymous marker
// overrides an authorization requirement declared at an outer scope. The
// override is legal and wins, but the conflicting intent deserves a look.
type AnonymousOverrideRule struct{}

func NewAnonymousOverrideRule() *AnonymousOverrideRule { return &AnonymousOverrideRule{} }

func (r *AnonymousOverrideRule) ID() string   { return "AP003" }
func (r *AnonymousOverrideRule) Name() string { return "Anonymous marker overrides protected scope" }
func (r *AnonymousOverrideRule) DefaultSeverity() types.Severity {
	return types.SeverityMedium
}

func (r *AnonymousOverrideRule) Evaluate(ep types.Endpoint) *types.Finding {
	if !ep.Auth.OverridesAuthorizedOuter() {
		return nil
	}
	msg := fmt.Sprintf("%s %s allows anonymous access although its containing scope requires authorization", ep.MethodList, ep.Route)
	return newFinding(r, r.DefaultSeverity(), msg,
		"Confirm the override is intended; if so, move the endpoint out of the protected container so the exception is visible.", ep)
}

// UnmarkedWriteRule flags a public state-changing endpoint with no explicit
// marker at all. Worse than the documented anonymous case: intent is wholly
// undocumented, so it reports one tier above AnonymousOnWriteRule for the
// same route pattern.
type UnmarkedWriteRule struct {
	classifier *authz.MarkerClassifier
}

func NewUnmarkedWriteRule(classifier *authz.MarkerClassifier) *UnmarkedWriteRule {
	return &UnmarkedWriteRule{classifier: classifier}
}

func (r *UnmarkedWriteRule) ID() string   { return "AP004" }
func (r *UnmarkedWriteRule) Name() string { return "Unprotected write method without markers" }
func (r *UnmarkedWriteRule) DefaultSeverity() types.Severity {
	return types.SeverityCritical
}

func (r *UnmarkedWriteRule) Evaluate(ep types.Endpoint) *types.Finding {
	if !ep.Methods.IsWrite() || ep.Posture != types.PosturePublic {
		return nil
	}
	if ep.HasAuthCall {
		return nil
	}
	if r.classifier != nil && r.classifier.AnyAuthorizing(ep.CustomMarkers) {
		return nil
	}
	profile := profileWriteRoute(ep.Route)
	msg := fmt.Sprintf("%s %s accepts state-changing requests with no authorization declaration anywhere in scope", ep.MethodList, ep.Route)
	return newFinding(r, profile.AnonymousSeverity.Escalate(), msg, profile.Recommendation, ep)
}
