// Package source defines the syntax-model contract the analysis engine
// consumes. Parsing is a collaborator concern: a Provider turns a file into
// an immutable Unit, and everything downstream queries Units without ever
// touching source text.
package source

import "strings"

// Position is a 1-based line/column source location.
type Position struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Marker is one declarative marker (attribute) attached to a class or
// method, with string-literal arguments resolved to text.
type Marker struct {
	Name  string            `json:"name"`
	Args  []string          `json:"args,omitempty"`
	Named map[string]string `json:"named,omitempty"`
	Pos   Position          `json:"pos"`
}

// Arg returns the positional argument at index i, or "" when absent.
func (m Marker) Arg(i int) string {
	if i < 0 || i >= len(m.Args) {
		return ""
	}
	return m.Args[i]
}

// Parameter is one declared function or method parameter.
type Parameter struct {
	Name       string `json:"name"`
	TypeName   string `json:"type"`
	IsReceiver bool   `json:"is_receiver"` // "this"/extension parameter
}

// Call is a single invocation within a fluent chain. Lambda arguments are
// carried as nested statements so configuration bodies stay queryable.
type Call struct {
	Name   string            `json:"name"`
	Args   []string          `json:"args,omitempty"`
	Named  map[string]string `json:"named,omitempty"`
	Nested []Statement       `json:"nested,omitempty"`
	Pos    Position          `json:"pos"`
}

// Arg returns the positional argument at index i, or "" when absent.
func (c Call) Arg(i int) string {
	if i < 0 || i >= len(c.Args) {
		return ""
	}
	return c.Args[i]
}

// Statement is one expression statement: an optional assignment target, the
// identifier the chain is invoked on, and the ordered call chain.
type Statement struct {
	Assign   string   `json:"assign,omitempty"`
	Receiver string   `json:"receiver,omitempty"`
	Calls    []Call   `json:"calls"`
	Pos      Position `json:"pos"`
}

// Find returns the first call in the chain with the given name, or nil.
func (s Statement) Find(name string) *Call {
	for i := range s.Calls {
		if s.Calls[i].Name == name {
			return &s.Calls[i]
		}
	}
	return nil
}

// After returns the calls chained after index i.
func (s Statement) After(i int) []Call {
	if i+1 >= len(s.Calls) {
		return nil
	}
	return s.Calls[i+1:]
}

// Method is one member of a class.
type Method struct {
	Name    string      `json:"name"`
	Public  bool        `json:"public"`
	Static  bool        `json:"static"`
	Markers []Marker    `json:"markers,omitempty"`
	Params  []Parameter `json:"params,omitempty"`
	Pos     Position    `json:"pos"`
}

// TypeRef is a base type reference with its constructor arguments, e.g. a
// filter-by-type base carrying the wrapped type name.
type TypeRef struct {
	Name string   `json:"name"`
	Args []string `json:"args,omitempty"`
}

// Class is one class declaration.
type Class struct {
	Name    string    `json:"name"`
	Bases   []TypeRef `json:"bases,omitempty"`
	Markers []Marker  `json:"markers,omitempty"`
	Methods []Method  `json:"methods,omitempty"`
	Pos     Position  `json:"pos"`
}

// HasBase reports whether the class directly references the named base type.
func (c Class) HasBase(name string) bool {
	for _, b := range c.Bases {
		if b.Name == name {
			return true
		}
	}
	return false
}

// Function is a standalone (or static extension) function with a queryable
// body.
type Function struct {
	Name   string      `json:"name"`
	Params []Parameter `json:"params,omitempty"`
	Body   []Statement `json:"body,omitempty"`
	Pos    Position    `json:"pos"`
}

// Receiver returns the function's receiver-style first parameter, or nil.
func (f Function) Receiver() *Parameter {
	if len(f.Params) > 0 && f.Params[0].IsReceiver {
		return &f.Params[0]
	}
	return nil
}

// Unit is the immutable syntax model of one source file.
type Unit struct {
	Path       string      `json:"path"`
	Classes    []Class     `json:"classes,omitempty"`
	Functions  []Function  `json:"functions,omitempty"`
	Statements []Statement `json:"statements,omitempty"`
}

// FindClass returns the class with the given name, or nil. Lookup is exact
// and case-sensitive, matching the declaring language's semantics.
func (u *Unit) FindClass(name string) *Class {
	if u == nil {
		return nil
	}
	for i := range u.Classes {
		if u.Classes[i].Name == name {
			return &u.Classes[i]
		}
	}
	return nil
}

// AllStatements walks every statement in the unit: top-level statements,
// function bodies, and statements nested inside lambda arguments.
func (u *Unit) AllStatements() []Statement {
	var out []Statement
	var walk func(stmts []Statement)
	walk = func(stmts []Statement) {
		for _, st := range stmts {
			out = append(out, st)
			for _, c := range st.Calls {
				if len(c.Nested) > 0 {
					walk(c.Nested)
				}
			}
		}
	}
	walk(u.Statements)
	for _, fn := range u.Functions {
		walk(fn.Body)
	}
	return out
}

// TrimAttributeSuffix normalizes a marker or class name by dropping the
// conventional "Attribute" suffix.
func TrimAttributeSuffix(name string) string {
	return strings.TrimSuffix(name, "Attribute")
}
