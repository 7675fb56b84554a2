package rules

import (
	"fmt"

	"github.com/BlagoCuljak/ApiPosture/internal/authz"
	"github.com/BlagoCuljak/ApiPosture/pkg/types"
)

// AccidentalPublicRule flags endpoints that resolved to a public posture
// without anyone writing an explicit anonymous marker: nothing in the chain
// protects them and nothing documents the exposure as intended.
type AccidentalPublicRule struct{}

func NewAccidentalPublicRule() *AccidentalPublicRule { return &AccidentalPublicRule{} }

func (r *AccidentalPublicRule) ID() string   { return "AP001" }
func (r *AccidentalPublicRule) Name() string { return "Accidental public endpoint" }
func (r *AccidentalPublicRule) DefaultSeverity() types.Severity {
	return types.SeverityHigh
}

func (r *AccidentalPublicRule) Evaluate(ep types.Endpoint) *types.Finding {
	if ep.Posture != types.PosturePublic {
		return nil
	}
	if ep.Auth != nil && ep.Auth.AllowAnonymous {
		return nil
	}
	msg := fmt.Sprintf("%s %s is publicly reachable but carries no explicit anonymous marker", ep.MethodList, ep.Route)
	return newFinding(r, r.DefaultSeverity(), msg,
		"Add an authorization directive, or mark the endpoint anonymous explicitly to record the decision.", ep)
}

// AnonymousOnWriteRule flags an explicit anonymous marker on a
// state-changing method. Severity is graded by the route's domain pattern;
// a custom marker that itself implements authorization suppresses the
// finding.
type AnonymousOnWriteRule struct {
	classifier *authz.MarkerClassifier
}

func NewAnonymousOnWriteRule(classifier *authz.MarkerClassifier) *AnonymousOnWriteRule {
	return &AnonymousOnWriteRule{classifier: classifier}
}

func (r *AnonymousOnWriteRule) ID() string   { return "AP002" }
func (r *AnonymousOnWriteRule) Name() string { return "Anonymous access on write method" }
func (r *AnonymousOnWriteRule) DefaultSeverity() types.Severity {
	return types.SeverityHigh
}

func (r *AnonymousOnWriteRule) Evaluate(ep types.Endpoint) *types.Finding {
	if !ep.Methods.IsWrite() {
		return nil
	}
	if ep.Auth == nil || !ep.Auth.AllowAnonymous {
		return nil
	}
	if r.classifier != nil && r.classifier.AnyAuthorizing(ep.CustomMarkers) {
		return nil
	}
	profile := profileWriteRoute(ep.Route)
	msg := fmt.Sprintf("%s %s explicitly allows anonymous access on a state-changing method", ep.MethodList, ep.Route)
	return newFinding(r, profile.AnonymousSeverity, msg, profile.Recommendation, ep)
}
