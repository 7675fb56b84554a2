package rules

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/BlagoCuljak/ApiPosture/internal/authz"
	"github.com/BlagoCuljak/ApiPosture/internal/core"
	"github.com/BlagoCuljak/ApiPosture/pkg/types"
)

// Override adjusts one rule's behavior from configuration.
type Override struct {
	Enabled  *bool
	Severity types.Severity
}

// Engine evaluates every registered rule against every endpoint. Rules are
// independent; one endpoint may yield many findings and findings are never
// merged.
type Engine struct {
	mu        sync.RWMutex
	rules     []core.Rule
	byID      map[string]core.Rule
	overrides map[string]Override
}

// NewEngine builds an empty engine. Override keys are rule ids,
// case-insensitive.
func NewEngine(overrides map[string]Override) *Engine {
	normalized := make(map[string]Override, len(overrides))
	for id, o := range overrides {
		normalized[strings.ToLower(id)] = o
	}
	return &Engine{byID: make(map[string]core.Rule), overrides: normalized}
}

// NewDefaultEngine returns an engine preloaded with the eight built-in
// rules. The classifier backs the custom-marker suppression on the
// write-method rules; keywords feed the sensitive-route rule; maxRoles
// sets the role-count threshold (0 means the built-in default).
func NewDefaultEngine(overrides map[string]Override, classifier *authz.MarkerClassifier, keywords []string, maxRoles int) *Engine {
	e := NewEngine(overrides)
	for _, r := range BuiltinRules(classifier, keywords, maxRoles) {
		// Ids are unique by construction.
		_ = e.Register(r)
	}
	return e
}

// BuiltinRules constructs the eight built-in rules in evaluation order.
func BuiltinRules(classifier *authz.MarkerClassifier, keywords []string, maxRoles int) []core.Rule {
	return []core.Rule{
		NewAccidentalPublicRule(),
		NewAnonymousOnWriteRule(classifier),
		NewAnonymousOverrideRule(),
		NewUnmarkedWriteRule(classifier),
		NewExcessiveRolesRule(maxRoles),
		NewGenericRoleNameRule(),
		NewSensitiveRouteRule(keywords),
		NewMissingAuthMetadataRule(),
	}
}

func (e *Engine) Register(rule core.Rule) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := strings.ToLower(rule.ID())
	if _, dup := e.byID[id]; dup {
		return fmt.Errorf("rule already registered: %s", rule.ID())
	}
	e.byID[id] = rule
	e.rules = append(e.rules, rule)
	return nil
}

func (e *Engine) Get(id string) (core.Rule, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	rule, ok := e.byID[strings.ToLower(id)]
	if !ok {
		return nil, fmt.Errorf("rule not found: %s", id)
	}
	return rule, nil
}

func (e *Engine) List() []core.Rule {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]core.Rule, len(e.rules))
	copy(out, e.rules)
	return out
}

// EffectiveSeverity returns a rule's default severity with any configured
// override applied.
func (e *Engine) EffectiveSeverity(rule core.Rule) types.Severity {
	if o, ok := e.overrides[strings.ToLower(rule.ID())]; ok && o.Severity != "" {
		return o.Severity
	}
	return rule.DefaultSeverity()
}

func (e *Engine) enabled(rule core.Rule) bool {
	o, ok := e.overrides[strings.ToLower(rule.ID())]
	if !ok || o.Enabled == nil {
		return true
	}
	return *o.Enabled
}

// Evaluate runs every enabled rule over every endpoint, in stable order.
// A configured severity override replaces the severity a rule chose only
// when the rule reported its own default; rules that grade severity by
// route context keep their graded value.
func (e *Engine) Evaluate(endpoints []types.Endpoint) []types.Finding {
	e.mu.RLock()
	rules := make([]core.Rule, len(e.rules))
	copy(rules, e.rules)
	e.mu.RUnlock()

	var findings []types.Finding
	for _, ep := range endpoints {
		for _, rule := range rules {
			if !e.enabled(rule) {
				continue
			}
			f := rule.Evaluate(ep)
			if f == nil {
				continue
			}
			if o, ok := e.overrides[strings.ToLower(rule.ID())]; ok && o.Severity != "" && f.Severity == rule.DefaultSeverity() {
				f.Severity = o.Severity
			}
			findings = append(findings, *f)
		}
	}
	return findings
}

// newFinding stamps identity and timestamps on one rule hit.
func newFinding(rule core.Rule, severity types.Severity, message, recommendation string, ep types.Endpoint) *types.Finding {
	return &types.Finding{
		ID:             uuid.NewString(),
		RuleID:         rule.ID(),
		RuleName:       rule.Name(),
		Severity:       severity,
		Message:        message,
		Recommendation: recommendation,
		Endpoint:       ep,
		CreatedAt:      time.Now().UTC(),
	}
}
