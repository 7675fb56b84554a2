package discovery

import (
	"strings"

	"github.com/BlagoCuljak/ApiPosture/internal/authz"
	"github.com/BlagoCuljak/ApiPosture/internal/source"
	"github.com/BlagoCuljak/ApiPosture/pkg/types"
)

const controllerSuffix = "Controller"

// verbMarkers maps method-level verb markers to the methods they bind.
var verbMarkers = map[string]types.Methods{
	"HttpGet":     types.MethodGet,
	"HttpPost":    types.MethodPost,
	"HttpPut":     types.MethodPut,
	"HttpDelete":  types.MethodDelete,
	"HttpPatch":   types.MethodPatch,
	"HttpHead":    types.MethodHead,
	"HttpOptions": types.MethodOptions,
}

// ControllerDiscoverer finds attribute-routed handler methods grouped under
// controller classes.
type ControllerDiscoverer struct{}

func NewControllerDiscoverer() *ControllerDiscoverer { return &ControllerDiscoverer{} }

func (d *ControllerDiscoverer) Name() string { return "controller" }

func (d *ControllerDiscoverer) Discover(unit *source.Unit) []types.Endpoint {
	var out []types.Endpoint
	for i := range unit.Classes {
		out = append(out, d.discoverClass(unit.Path, &unit.Classes[i])...)
	}
	return out
}

func (d *ControllerDiscoverer) discoverClass(path string, cls *source.Class) []types.Endpoint {
	if !isController(cls) {
		return nil
	}
	short := strings.TrimSuffix(cls.Name, controllerSuffix)
	prefix := classRoutePrefix(cls, short)
	classAuth := authz.StateFromMarkers(cls.Markers, nil)
	classCustom := authz.CustomMarkerNames(cls.Markers)

	var out []types.Endpoint
	for _, m := range cls.Methods {
		if !m.Public || m.Static || hasMarker(m.Markers, "NonAction") {
			continue
		}
		methods, template := methodBinding(m)
		route := combineControllerRoute(prefix, template, short, m.Name)
		if route == "" {
			// No usable template anywhere: conventional routing, out of
			// reach for static resolution. Skip silently.
			continue
		}
		auth := authz.StateFromMarkers(m.Markers, classAuth)
		custom := append(append([]string(nil), classCustom...), authz.CustomMarkerNames(m.Markers)...)
		out = append(out, types.Endpoint{
			Route:         route,
			Methods:       methods,
			MethodList:    methods.String(),
			Style:         types.StyleController,
			File:          path,
			Line:          m.Pos.Line,
			Column:        m.Pos.Column,
			Controller:    cls.Name,
			Handler:       m.Name,
			CustomMarkers: dedupe(custom),
			HasAuthCall:   auth.HasExplicitDeclaration(),
			Auth:          auth,
		})
	}
	return out
}

// isController recognizes a handler container by name suffix or marker.
func isController(cls *source.Class) bool {
	if hasMarker(cls.Markers, "NonController") {
		return false
	}
	if strings.HasSuffix(cls.Name, controllerSuffix) && cls.Name != controllerSuffix {
		return true
	}
	return hasMarker(cls.Markers, "ApiController") || hasMarker(cls.Markers, "Controller")
}

// classRoutePrefix reads the class-level route template and substitutes the
// [controller] placeholder with the trimmed class name.
func classRoutePrefix(cls *source.Class, short string) string {
	for _, m := range cls.Markers {
		switch source.TrimAttributeSuffix(m.Name) {
		case "Route", "RoutePrefix":
			return substituteTokens(m.Arg(0), short, "")
		}
	}
	return ""
}

// methodBinding extracts the bound methods and route template from a
// method's markers. With no verb marker the method defaults to GET.
func methodBinding(m source.Method) (types.Methods, string) {
	var methods types.Methods
	template := ""
	for _, mk := range m.Markers {
		name := source.TrimAttributeSuffix(mk.Name)
		if bits, ok := verbMarkers[name]; ok {
			methods |= bits
			if template == "" {
				template = mk.Arg(0)
			}
			continue
		}
		switch name {
		case "AcceptVerbs":
			for _, arg := range mk.Args {
				for _, verb := range strings.Split(arg, ",") {
					methods |= types.ParseMethod(verb)
				}
			}
			if route := mk.Named["Route"]; route != "" && template == "" {
				template = route
			}
		case "Route":
			if template == "" {
				template = mk.Arg(0)
			}
		}
	}
	if methods == 0 {
		methods = types.MethodGet
	}
	return methods, template
}

// combineControllerRoute builds the full route. Absolute templates override
// the class prefix; the [action] placeholder is substituted with the method
// name.
func combineControllerRoute(prefix, template, controller, action string) string {
	template = substituteTokens(template, controller, action)
	if absolute(template) {
		return joinRoutes("", strings.TrimPrefix(template, "~"))
	}
	if prefix == "" && template == "" {
		return ""
	}
	return joinRoutes(prefix, template)
}

func absolute(template string) bool {
	return strings.HasPrefix(template, "/") || strings.HasPrefix(template, "~/")
}

func substituteTokens(template, controller, action string) string {
	if controller != "" {
		template = strings.ReplaceAll(template, "[controller]", controller)
	}
	if action != "" {
		template = strings.ReplaceAll(template, "[action]", action)
	}
	return template
}

func hasMarker(markers []source.Marker, name string) bool {
	for _, m := range markers {
		if source.TrimAttributeSuffix(m.Name) == name {
			return true
		}
	}
	return false
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := values[:0]
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
