package authz

import (
	"strings"
	"sync"

	"github.com/BlagoCuljak/ApiPosture/internal/source"
)

// Provenance records how a marker classification was obtained, so rules and
// tests can tell confident resolutions apart from guesses.
type Provenance string

const (
	ProvenanceSource    Provenance = "source"
	ProvenanceHeuristic Provenance = "heuristic"
)

// MarkerClass is the classification of one project-defined marker.
type MarkerClass struct {
	Authorizing bool
	Provenance  Provenance
}

// DefaultHeuristicVocabulary is the naming-convention fallback applied when
// a marker's declaring type cannot be located (external library, unresolved
// project). Matching is exact-or-substring, case-insensitive.
func DefaultHeuristicVocabulary() []string {
	return []string{"Auth", "Token", "Jwt", "Bearer", "OAuth", "Permission", "Hmac", "ApiKey"}
}

// authorizingBases are base types/interfaces whose presence marks a type as
// an authorization filter.
var authorizingBases = map[string]struct{}{
	"AuthorizeAttribute":        {},
	"Authorize":                 {},
	"IAuthorizationFilter":      {},
	"IAsyncAuthorizationFilter": {},
	"IAuthorizationRequirement": {},
	"AuthorizationHandler":      {},
	"IAuthorizationHandler":     {},
}

// filterIndirectionBases wrap another filter type by reference; the wrapped
// type decides the classification.
var filterIndirectionBases = map[string]struct{}{
	"TypeFilterAttribute":    {},
	"ServiceFilterAttribute": {},
}

// MarkerClassifier decides whether a project-defined marker itself
// implements authorization. Lookups go to the in-memory workspace index;
// results are cached per (marker name, workspace root) with a read-through,
// write-once concurrent map. Classification is total and pure, so a racing
// double computation converges to one cached value.
type MarkerClassifier struct {
	root   string
	lookup func(name string) *source.Class
	vocab  []string
	cache  sync.Map // string -> MarkerClass
}

// NewMarkerClassifier builds a classifier for one analysis run. lookup
// resolves a class name within the project (and broader workspace when
// available); it may be nil when no workspace root was found, which degrades
// every classification to the heuristic.
func NewMarkerClassifier(root string, lookup func(name string) *source.Class, vocab []string) *MarkerClassifier {
	if len(vocab) == 0 {
		vocab = DefaultHeuristicVocabulary()
	}
	return &MarkerClassifier{root: root, lookup: lookup, vocab: vocab}
}

// Classify resolves one marker name. Never errors: resolution failure falls
// back to the naming heuristic.
func (c *MarkerClassifier) Classify(name string) MarkerClass {
	key := c.root + "|" + source.TrimAttributeSuffix(name)
	if cached, ok := c.cache.Load(key); ok {
		return cached.(MarkerClass)
	}
	result := c.classify(source.TrimAttributeSuffix(name))
	actual, _ := c.cache.LoadOrStore(key, result)
	return actual.(MarkerClass)
}

func (c *MarkerClassifier) classify(name string) MarkerClass {
	if cls := c.resolveClass(name); cls != nil {
		return MarkerClass{
			Authorizing: c.classIsAuthorizing(cls, true),
			Provenance:  ProvenanceSource,
		}
	}
	return MarkerClass{
		Authorizing: c.matchesVocabulary(name),
		Provenance:  ProvenanceHeuristic,
	}
}

func (c *MarkerClassifier) resolveClass(name string) *source.Class {
	if c.lookup == nil {
		return nil
	}
	if cls := c.lookup(name + "Attribute"); cls != nil {
		return cls
	}
	return c.lookup(name)
}

// classIsAuthorizing inspects a class's base list. A filter-by-type base is
// followed exactly one level: recursion stops after the wrapped type.
func (c *MarkerClassifier) classIsAuthorizing(cls *source.Class, followWrapped bool) bool {
	for _, base := range cls.Bases {
		if _, ok := authorizingBases[base.Name]; ok {
			return true
		}
		if _, ok := filterIndirectionBases[base.Name]; ok && followWrapped {
			for _, wrapped := range base.Args {
				if inner := c.resolveClass(source.TrimAttributeSuffix(wrapped)); inner != nil {
					if c.classIsAuthorizing(inner, false) {
						return true
					}
				} else if c.matchesVocabulary(wrapped) {
					return true
				}
			}
		}
	}
	return false
}

func (c *MarkerClassifier) matchesVocabulary(name string) bool {
	lower := strings.ToLower(name)
	for _, term := range c.vocab {
		if strings.Contains(lower, strings.ToLower(term)) {
			return true
		}
	}
	return false
}

// AnyAuthorizing reports whether any of the given marker names classifies as
// authorization-implementing. Used by the write-method rules to suppress
// false positives on project-specific authorization mechanisms.
func (c *MarkerClassifier) AnyAuthorizing(names []string) bool {
	for _, name := range names {
		if c.Classify(name).Authorizing {
			return true
		}
	}
	return false
}
