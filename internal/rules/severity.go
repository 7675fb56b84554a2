package rules

import (
	"strings"

	"github.com/BlagoCuljak/ApiPosture/pkg/types"
)

// writeRouteProfile grades an unauthenticated write endpoint by the domain
// pattern its route suggests. AnonymousSeverity is the severity when the
// gap is documented with an explicit anonymous marker; the undocumented
// variant always reports one tier higher.
type writeRouteProfile struct {
	Kind              string
	AnonymousSeverity types.Severity
	Recommendation    string
}

var writeRoutePatterns = []struct {
	kind     string
	terms    []string
	severity types.Severity
	advice   string
}{
	{
		kind:     "webhook",
		terms:    []string{"webhook", "callback", "hook"},
		severity: types.SeverityMedium,
		advice:   "Webhook receivers are commonly anonymous; validate a shared-secret signature (HMAC) on every request instead of relying on obscurity.",
	},
	{
		kind:     "analytics",
		terms:    []string{"analytics", "metrics", "counter", "track", "telemetry", "ping"},
		severity: types.SeverityLow,
		advice:   "Counter and analytics sinks tolerate anonymous writes, but add rate limiting and input validation to prevent poisoning.",
	},
	{
		kind:     "device-registration",
		terms:    []string{"device", "push", "subscribe", "registration", "register", "token"},
		severity: types.SeverityHigh,
		advice:   "Device and token registration endpoints mint long-lived credentials; require at least a provisional identity before accepting writes.",
	},
}

// profileWriteRoute inspects the route's path segments for known domain
// patterns. Unmatched routes get the generic profile.
func profileWriteRoute(route string) writeRouteProfile {
	segments := routeSegments(route)
	for _, p := range writeRoutePatterns {
		for _, seg := range segments {
			for _, term := range p.terms {
				if strings.Contains(seg, term) {
					return writeRouteProfile{
						Kind:              p.kind,
						AnonymousSeverity: p.severity,
						Recommendation:    p.advice,
					}
				}
			}
		}
	}
	return writeRouteProfile{
		AnonymousSeverity: types.SeverityHigh,
		Recommendation:    "Require authentication on state-changing endpoints, or document why anonymous access is intended.",
	}
}

// routeSegments splits a route into lowercase path segments with parameter
// braces stripped.
func routeSegments(route string) []string {
	raw := strings.Split(strings.ToLower(route), "/")
	out := raw[:0]
	for _, seg := range raw {
		seg = strings.Trim(seg, "{}")
		if seg != "" {
			out = append(out, seg)
		}
	}
	return out
}
