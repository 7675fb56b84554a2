package types

import (
	"sort"
	"strings"
	"time"
)

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

var severityRank = map[Severity]int{
	SeverityInfo:     0,
	SeverityLow:      1,
	SeverityMedium:   2,
	SeverityHigh:     3,
	SeverityCritical: 4,
}

// Escalate returns the severity one tier above s, capped at critical.
func (s Severity) Escalate() Severity {
	switch s {
	case SeverityInfo:
		return SeverityLow
	case SeverityLow:
		return SeverityMedium
	case SeverityMedium:
		return SeverityHigh
	default:
		return SeverityCritical
	}
}

// AtLeast reports whether s is equal to or more severe than other.
func (s Severity) AtLeast(other Severity) bool {
	return severityRank[s] >= severityRank[other]
}

func ParseSeverity(s string) (Severity, bool) {
	sev := Severity(strings.ToLower(s))
	_, ok := severityRank[sev]
	return sev, ok
}

// Methods is a bitset of HTTP methods bound to an endpoint.
type Methods uint16

const (
	MethodGet Methods = 1 << iota
	MethodPost
	MethodPut
	MethodDelete
	MethodPatch
	MethodHead
	MethodOptions
)

var methodNames = []struct {
	bit  Methods
	name string
}{
	{MethodGet, "GET"},
	{MethodPost, "POST"},
	{MethodPut, "PUT"},
	{MethodDelete, "DELETE"},
	{MethodPatch, "PATCH"},
	{MethodHead, "HEAD"},
	{MethodOptions, "OPTIONS"},
}

// ParseMethod maps an HTTP verb name to its bit; unknown verbs map to zero.
func ParseMethod(name string) Methods {
	upper := strings.ToUpper(strings.TrimSpace(name))
	for _, m := range methodNames {
		if m.name == upper {
			return m.bit
		}
	}
	return 0
}

func (m Methods) Has(bit Methods) bool { return m&bit != 0 }

// IsWrite reports whether the set contains any state-changing verb.
func (m Methods) IsWrite() bool {
	return m&(MethodPost|MethodPut|MethodDelete|MethodPatch) != 0
}

func (m Methods) String() string {
	if m == 0 {
		return ""
	}
	var parts []string
	for _, mn := range methodNames {
		if m&mn.bit != 0 {
			parts = append(parts, mn.name)
		}
	}
	return strings.Join(parts, ",")
}

// DeclarationStyle distinguishes how a route handler was declared.
type DeclarationStyle string

const (
	StyleController DeclarationStyle = "controller"
	StyleMinimalAPI DeclarationStyle = "minimal-api"
)

// PostureClass is the four-way classification of an endpoint's effective
// access control.
type PostureClass string

const (
	PosturePublic           PostureClass = "public"
	PostureAuthenticated    PostureClass = "authenticated"
	PostureRoleRestricted   PostureClass = "role-restricted"
	PosturePolicyRestricted PostureClass = "policy-restricted"
)

// chainDepthCeiling bounds every walk over an AuthorizationState chain.
// Scopes nest at most three deep in real projects (handler, container,
// global); anything past the ceiling is treated as malformed input.
const chainDepthCeiling = 8

// AuthorizationState is one node in a scope chain: the authorization
// declarations attached at a single scope, linked to the next outer scope.
type AuthorizationState struct {
	RequireAuth    bool                `json:"require_auth"`
	AllowAnonymous bool                `json:"allow_anonymous"`
	Roles          []string            `json:"roles,omitempty"`
	Policies       []string            `json:"policies,omitempty"`
	Schemes        []string            `json:"schemes,omitempty"`
	Outer          *AuthorizationState `json:"outer,omitempty"`
}

// IsEmpty reports whether this scope carries no declaration of its own.
func (s *AuthorizationState) IsEmpty() bool {
	if s == nil {
		return true
	}
	return !s.RequireAuth && !s.AllowAnonymous &&
		len(s.Roles) == 0 && len(s.Policies) == 0 && len(s.Schemes) == 0
}

// EffectivelyAuthorized reports whether any scope in the chain requires
// authentication. A chain deeper than the ceiling resolves to false.
func (s *AuthorizationState) EffectivelyAuthorized() bool {
	depth := 0
	for cur := s; cur != nil; cur = cur.Outer {
		if depth++; depth > chainDepthCeiling {
			return false
		}
		if cur.RequireAuth || len(cur.Roles) > 0 || len(cur.Policies) > 0 {
			return true
		}
	}
	return false
}

// EffectivePublic reports whether the endpoint is reachable without
// authentication. Only the innermost anonymous flag is consulted: an
// anonymous marker at an outer scope does not propagate inward.
func (s *AuthorizationState) EffectivePublic() bool {
	if s != nil && s.AllowAnonymous {
		return true
	}
	return !s.EffectivelyAuthorized()
}

// HasExplicitDeclaration reports whether any scope in the chain carries an
// explicit authorization or anonymous marker.
func (s *AuthorizationState) HasExplicitDeclaration() bool {
	depth := 0
	for cur := s; cur != nil; cur = cur.Outer {
		if depth++; depth > chainDepthCeiling {
			return false
		}
		if !cur.IsEmpty() {
			return true
		}
	}
	return false
}

// OverridesAuthorizedOuter reports whether the innermost scope allows
// anonymous access while an outer scope requires authentication.
func (s *AuthorizationState) OverridesAuthorizedOuter() bool {
	if s == nil || !s.AllowAnonymous {
		return false
	}
	return s.Outer.EffectivelyAuthorized()
}

// EffectiveRoles returns the deduplicated union of roles across the chain,
// sorted for stable output. Role names are case-sensitive.
func (s *AuthorizationState) EffectiveRoles() []string {
	return s.union(func(n *AuthorizationState) []string { return n.Roles })
}

// EffectivePolicies returns the deduplicated union of named policies across
// the chain.
func (s *AuthorizationState) EffectivePolicies() []string {
	return s.union(func(n *AuthorizationState) []string { return n.Policies })
}

// EffectiveSchemes returns the deduplicated union of authentication schemes
// across the chain.
func (s *AuthorizationState) EffectiveSchemes() []string {
	return s.union(func(n *AuthorizationState) []string { return n.Schemes })
}

func (s *AuthorizationState) union(pick func(*AuthorizationState) []string) []string {
	seen := make(map[string]struct{})
	var out []string
	depth := 0
	for cur := s; cur != nil; cur = cur.Outer {
		if depth++; depth > chainDepthCeiling {
			break
		}
		for _, v := range pick(cur) {
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}

// Root returns the outermost scope of the chain, bounded by the depth
// ceiling.
func (s *AuthorizationState) Root() *AuthorizationState {
	cur := s
	depth := 0
	for cur != nil && cur.Outer != nil {
		if depth++; depth > chainDepthCeiling {
			break
		}
		cur = cur.Outer
	}
	return cur
}

// GlobalPolicyInfo is the project-wide authorization configuration: whether a
// fallback policy protects undecorated handlers, and whether a default policy
// (which never does) exists.
type GlobalPolicyInfo struct {
	HasFallbackPolicy    bool     `json:"has_fallback_policy"`
	FallbackRequiresAuth bool     `json:"fallback_requires_auth"`
	FallbackRoles        []string `json:"fallback_roles,omitempty"`
	FallbackClaims       []string `json:"fallback_claims,omitempty"`
	HasDefaultPolicy     bool     `json:"has_default_policy"`
}

// Protective reports whether the fallback policy implicitly protects
// handlers that carry no explicit declaration anywhere in their chain.
func (g GlobalPolicyInfo) Protective() bool {
	return g.HasFallbackPolicy &&
		(g.FallbackRequiresAuth || len(g.FallbackRoles) > 0 || len(g.FallbackClaims) > 0)
}

// Endpoint is one discovered route handler with its resolved authorization
// posture.
type Endpoint struct {
	Route      string           `json:"route"`
	Methods    Methods          `json:"-"`
	MethodList string           `json:"methods"`
	Style      DeclarationStyle `json:"style"`
	File       string           `json:"file"`
	Line       int              `json:"line"`
	Column     int              `json:"column"`
	Controller string           `json:"controller,omitempty"`
	Handler    string           `json:"handler,omitempty"`

	// CustomMarkers holds the names of project-defined markers attached to
	// the handler or its container (anything outside the built-in set).
	CustomMarkers []string `json:"custom_markers,omitempty"`

	// HasAuthCall records whether any authorization-related fluent call or
	// marker appeared anywhere in the endpoint's declaration chain.
	HasAuthCall bool `json:"has_auth_call"`

	Auth    *AuthorizationState `json:"auth,omitempty"`
	Posture PostureClass        `json:"posture,omitempty"`
}

// Location renders the source position as file:line.
func (e Endpoint) Location() string {
	return e.File + ":" + itoa(e.Line)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [12]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

// Finding is one rule violation on one endpoint. Findings are never merged
// or deduplicated across rules.
type Finding struct {
	ID             string    `json:"id"`
	RuleID         string    `json:"rule_id"`
	RuleName       string    `json:"rule_name"`
	Severity       Severity  `json:"severity"`
	Message        string    `json:"message"`
	Recommendation string    `json:"recommendation,omitempty"`
	Endpoint       Endpoint  `json:"endpoint"`
	CreatedAt      time.Time `json:"created_at"`
}

// Summary aggregates findings for reporting.
type Summary struct {
	Total      int              `json:"total"`
	BySeverity map[Severity]int `json:"by_severity"`
	ByRule     map[string]int   `json:"by_rule"`
}

// Summarize builds severity and rule counters over a finding set.
func Summarize(findings []Finding) Summary {
	s := Summary{
		Total:      len(findings),
		BySeverity: make(map[Severity]int),
		ByRule:     make(map[string]int),
	}
	for _, f := range findings {
		s.BySeverity[f.Severity]++
		s.ByRule[f.RuleID]++
	}
	return s
}
