package discovery

import (
	"sort"

	"github.com/BlagoCuljak/ApiPosture/internal/source"
	"github.com/BlagoCuljak/ApiPosture/pkg/types"
)

// regEntry is one indexed registration function.
type regEntry struct {
	fn   source.Function
	path string
}

// invocation is one call site of an indexed registration function, with the
// invoking grouping's resolved context.
type invocation struct {
	fnName string
	ctx    groupContext
}

// Correlator links route-registration functions defined in one file to the
// prefixed, authorization-bearing groupings that invoke them elsewhere.
// Resolution is two-pass: an indexing pass over the whole project, then a
// correlation pass that rediscovers each function body under its invoker's
// context. Functions nobody invokes contribute no endpoints.
type Correlator struct {
	funcs       map[string]*regEntry
	invocations []invocation
}

// NewCorrelator runs the indexing pass. The unit slice must be the complete,
// deterministically ordered project.
func NewCorrelator(units []*source.Unit) *Correlator {
	c := &Correlator{funcs: make(map[string]*regEntry)}
	for _, unit := range units {
		for _, fn := range unit.Functions {
			if isRegistrationFunc(fn) {
				c.funcs[fn.Name] = &regEntry{fn: fn, path: unit.Path}
			}
		}
	}
	for _, unit := range units {
		c.indexInvocations(unit.Statements)
		for _, fn := range unit.Functions {
			if isRegistrationFunc(fn) {
				// Nested invocations inside registration bodies are followed
				// during the correlation walk, with the correct context.
				continue
			}
			c.indexInvocations(fn.Body)
		}
	}
	return c
}

// indexInvocations records call sites of indexed registration functions,
// resolving the receiver through grouping declarations in the same scope.
func (c *Correlator) indexInvocations(stmts []source.Statement) {
	groups := collectGroups(stmts, groupContext{})
	for _, stmt := range stmts {
		if len(stmt.Calls) == 0 {
			continue
		}
		if _, ok := c.funcs[stmt.Calls[0].Name]; !ok {
			continue
		}
		ctx := groupContext{}
		if g, ok := groups[stmt.Receiver]; ok {
			ctx = g
		}
		c.invocations = append(c.invocations, invocation{fnName: stmt.Calls[0].Name, ctx: ctx})
	}
}

// Endpoints runs the correlation pass.
func (c *Correlator) Endpoints() []types.Endpoint {
	var out []types.Endpoint
	for _, inv := range c.invocations {
		entry := c.funcs[inv.fnName]
		eps := discoverBody(entry.path, entry.fn.Body, inv.ctx, c.resolve, 0)
		for i := range eps {
			if eps[i].Handler == "" {
				eps[i].Handler = inv.fnName
			}
		}
		out = append(out, eps...)
	}
	return out
}

func (c *Correlator) resolve(name string) *regEntry {
	return c.funcs[name]
}

// dedupeKey is the identity of a discovered endpoint for correlation
// de-duplication.
type dedupeKey struct {
	route   string
	methods types.Methods
	file    string
	line    int
}

// Merge combines direct and correlated endpoints. On a key collision the
// candidate with the more specific context (deeper authorization chain, then
// longer route) wins. Output order is stable: file, line, route, methods.
func Merge(direct, correlated []types.Endpoint) []types.Endpoint {
	byKey := make(map[dedupeKey]types.Endpoint)
	insert := func(ep types.Endpoint) {
		key := dedupeKey{route: ep.Route, methods: ep.Methods, file: ep.File, line: ep.Line}
		existing, ok := byKey[key]
		if !ok || moreSpecific(ep, existing) {
			byKey[key] = ep
		}
	}
	for _, ep := range direct {
		insert(ep)
	}
	for _, ep := range correlated {
		insert(ep)
	}
	out := make([]types.Endpoint, 0, len(byKey))
	for _, ep := range byKey {
		out = append(out, ep)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		if a.Route != b.Route {
			return a.Route < b.Route
		}
		return a.Methods < b.Methods
	})
	return out
}

func moreSpecific(a, b types.Endpoint) bool {
	return chainDepth(a) > chainDepth(b) ||
		(chainDepth(a) == chainDepth(b) && len(a.Route) > len(b.Route))
}

func chainDepth(ep types.Endpoint) int {
	depth := 0
	for cur := ep.Auth; cur != nil && depth <= maxBodyDepth; cur = cur.Outer {
		depth++
	}
	return depth
}
