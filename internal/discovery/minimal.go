package discovery

import (
	"strings"

	"github.com/BlagoCuljak/ApiPosture/internal/authz"
	"github.com/BlagoCuljak/ApiPosture/internal/source"
	"github.com/BlagoCuljak/ApiPosture/pkg/types"
)

// registrationVerbs maps route-registration call names to the methods they
// bind.
var registrationVerbs = map[string]types.Methods{
	"MapGet":    types.MethodGet,
	"MapPost":   types.MethodPost,
	"MapPut":    types.MethodPut,
	"MapDelete": types.MethodDelete,
	"MapPatch":  types.MethodPatch,
}

// anyMethod is what a generic Map registration binds.
const anyMethod = types.MethodGet | types.MethodPost | types.MethodPut |
	types.MethodDelete | types.MethodPatch

// builderTypes are the parameter types that mark a function as a
// registration function operating on a route builder.
var builderTypes = map[string]struct{}{
	"IEndpointRouteBuilder": {},
	"RouteGroupBuilder":     {},
	"WebApplication":        {},
	"IApplicationBuilder":   {},
}

// isRegistrationFunc reports whether a function has the route-registration
// shape: a receiver-style first parameter of a recognized builder type and a
// name following the Map*/…Endpoints convention. Such bodies are discovered
// only through correlation, with the invoking group's context.
func isRegistrationFunc(fn source.Function) bool {
	recv := fn.Receiver()
	if recv == nil {
		return false
	}
	if _, ok := builderTypes[recv.TypeName]; !ok {
		return false
	}
	name := fn.Name
	return strings.HasPrefix(name, "Map") ||
		strings.HasPrefix(name, "Register") ||
		strings.HasSuffix(name, "Endpoints") ||
		strings.HasSuffix(name, "Routes")
}

// groupContext is the accumulated route prefix and authorization scope an
// endpoint inherits from enclosing groupings.
type groupContext struct {
	prefix string
	auth   *types.AuthorizationState
}

// resolverFunc resolves a registration-function name to its indexed entry,
// letting the body walk follow nested registration calls. Nil during the
// direct pass.
type resolverFunc func(name string) *regEntry

// maxBodyDepth bounds recursion through nested registration functions.
const maxBodyDepth = 8

// MinimalAPIDiscoverer finds function-based route registrations: top-level
// statements and bodies of ordinary functions. Registration-shaped function
// bodies are skipped here; the correlator owns those.
type MinimalAPIDiscoverer struct{}

func NewMinimalAPIDiscoverer() *MinimalAPIDiscoverer { return &MinimalAPIDiscoverer{} }

func (d *MinimalAPIDiscoverer) Name() string { return "minimal-api" }

func (d *MinimalAPIDiscoverer) Discover(unit *source.Unit) []types.Endpoint {
	var out []types.Endpoint
	out = append(out, discoverBody(unit.Path, unit.Statements, groupContext{}, nil, 0)...)
	for _, fn := range unit.Functions {
		if isRegistrationFunc(fn) {
			continue
		}
		out = append(out, discoverBody(unit.Path, fn.Body, groupContext{}, nil, 0)...)
	}
	return out
}

// discoverBody walks one statement list, resolving local groupings and
// emitting endpoints for every registration call. The correlator reuses it
// with the invoking group's context and a resolver for nested registration
// functions.
func discoverBody(path string, stmts []source.Statement, outer groupContext, resolve resolverFunc, depth int) []types.Endpoint {
	if depth > maxBodyDepth {
		return nil
	}
	groups := collectGroups(stmts, outer)
	var out []types.Endpoint
	for _, stmt := range stmts {
		out = append(out, endpointsFromStatement(path, stmt, groups, outer, resolve, depth)...)
	}
	return out
}

// collectGroups resolves grouping declarations in declaration order so a
// group chained off an earlier local group inherits its context.
func collectGroups(stmts []source.Statement, outer groupContext) map[string]groupContext {
	groups := make(map[string]groupContext)
	for _, stmt := range stmts {
		if stmt.Assign == "" {
			continue
		}
		idx := -1
		for i := range stmt.Calls {
			if stmt.Calls[i].Name == "MapGroup" {
				idx = i
				break
			}
		}
		if idx < 0 {
			continue
		}
		base := outer
		if parent, ok := groups[stmt.Receiver]; ok {
			base = parent
		}
		groups[stmt.Assign] = groupContext{
			prefix: joinRoutes(base.prefix, stmt.Calls[idx].Arg(0)),
			auth:   authz.StateFromCalls(stmt.Calls[idx+1:], base.auth),
		}
	}
	return groups
}

func endpointsFromStatement(path string, stmt source.Statement, groups map[string]groupContext, outer groupContext, resolve resolverFunc, depth int) []types.Endpoint {
	idx, methods := findRegistration(stmt)
	if idx < 0 {
		// Not a registration: maybe an invocation of a nested registration
		// function on a local group.
		if resolve == nil || len(stmt.Calls) == 0 {
			return nil
		}
		entry := resolve(stmt.Calls[0].Name)
		if entry == nil {
			return nil
		}
		ctx := outer
		if g, ok := groups[stmt.Receiver]; ok {
			ctx = g
		}
		return discoverBody(entry.path, entry.fn.Body, ctx, resolve, depth+1)
	}
	if methods == 0 {
		return nil
	}
	call := stmt.Calls[idx]
	template := call.Arg(0)
	if strings.TrimSpace(template) == "" {
		return nil
	}
	ctx := outer
	if g, ok := groups[stmt.Receiver]; ok {
		ctx = g
	}
	auth := authz.StateFromCalls(stmt.After(idx), ctx.auth)
	pos := call.Pos
	if pos.Line == 0 {
		pos = stmt.Pos
	}
	return []types.Endpoint{{
		Route:       joinRoutes(ctx.prefix, template),
		Methods:     methods,
		MethodList:  methods.String(),
		Style:       types.StyleMinimalAPI,
		File:        path,
		Line:        pos.Line,
		Column:      pos.Column,
		HasAuthCall: auth.HasExplicitDeclaration(),
		Auth:        auth,
	}}
}

// findRegistration locates the registration call in a chain and the methods
// it binds. A MapMethods call with no parseable verbs yields zero methods
// and the candidate is discarded by the caller.
func findRegistration(stmt source.Statement) (int, types.Methods) {
	for i, call := range stmt.Calls {
		if m, ok := registrationVerbs[call.Name]; ok {
			return i, m
		}
		switch call.Name {
		case "MapMethods":
			var methods types.Methods
			if len(call.Args) < 2 {
				return i, 0
			}
			for _, arg := range call.Args[1:] {
				for _, verb := range strings.Split(arg, ",") {
					methods |= types.ParseMethod(verb)
				}
			}
			return i, methods
		case "Map":
			return i, anyMethod
		}
	}
	return -1, 0
}

// joinRoutes concatenates two route fragments with slash normalization and a
// guaranteed leading slash.
func joinRoutes(prefix, template string) string {
	a := strings.Trim(strings.TrimSpace(prefix), "/")
	b := strings.Trim(strings.TrimSpace(template), "/")
	switch {
	case a == "" && b == "":
		return "/"
	case a == "":
		return "/" + b
	case b == "":
		return "/" + a
	}
	return "/" + a + "/" + b
}
