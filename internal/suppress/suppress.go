// Package suppress removes findings matching configured exemptions.
// Loading the suppression file is the configuration layer's job; only the
// matching semantics live here.
package suppress

import (
	"strings"

	"github.com/BlagoCuljak/ApiPosture/pkg/types"
)

// Entry is one configured exemption: a route pattern (exact, or with a
// single `*` wildcard) and an optional rule-id list. An empty rule list
// covers every rule.
type Entry struct {
	Route string   `mapstructure:"route" yaml:"route" json:"route"`
	Rules []string `mapstructure:"rules" yaml:"rules,omitempty" json:"rules,omitempty"`
}

// Filter applies a set of suppression entries.
type Filter struct {
	entries []Entry
}

func NewFilter(entries []Entry) *Filter {
	return &Filter{entries: entries}
}

// Apply returns the findings not covered by any entry and the count of
// suppressed ones.
func (f *Filter) Apply(findings []types.Finding) ([]types.Finding, int) {
	if len(f.entries) == 0 {
		return findings, 0
	}
	kept := make([]types.Finding, 0, len(findings))
	suppressed := 0
	for _, finding := range findings {
		if f.covers(finding) {
			suppressed++
			continue
		}
		kept = append(kept, finding)
	}
	return kept, suppressed
}

func (f *Filter) covers(finding types.Finding) bool {
	for _, e := range f.entries {
		if MatchRoute(e.Route, finding.Endpoint.Route) && ruleCovered(e.Rules, finding.RuleID) {
			return true
		}
	}
	return false
}

// MatchRoute matches a route against a pattern. `*` matches any run of
// characters; the match anchors at both ends except where the wildcard
// occupies that end. Comparison is case-insensitive, matching the routing
// framework's semantics.
func MatchRoute(pattern, route string) bool {
	p := strings.ToLower(strings.TrimSpace(pattern))
	r := strings.ToLower(route)
	if p == "" {
		return false
	}
	star := strings.IndexByte(p, '*')
	if star < 0 {
		return p == r
	}
	prefix, suffix := p[:star], p[star+1:]
	if len(r) < len(prefix)+len(suffix) {
		return false
	}
	return strings.HasPrefix(r, prefix) && strings.HasSuffix(r, suffix)
}

func ruleCovered(rules []string, id string) bool {
	if len(rules) == 0 {
		return true
	}
	for _, r := range rules {
		if strings.EqualFold(r, id) {
			return true
		}
	}
	return false
}
