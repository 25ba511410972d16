package client

import "github.com/tovalang/tova/internal/compiler/ast"

// Registry is the client signal registry (spec §3 "Signal registry"): four
// name sets built before emission and consulted while lowering every
// statement and expression, so a bare identifier read/write can be
// transformed into the matching getter/setter call.
type Registry struct {
	StateNames     map[string]bool
	ComputedNames  map[string]bool
	ComponentNames map[string]bool
	StoreNames     map[string]bool
}

// BuildRegistry walks a merged client block's top-level statements and
// collects every declared signal/component/store name.
func BuildRegistry(body []ast.Statement) *Registry {
	r := &Registry{
		StateNames:     map[string]bool{},
		ComputedNames:  map[string]bool{},
		ComponentNames: map[string]bool{},
		StoreNames:     map[string]bool{},
	}
	for _, stmt := range body {
		switch s := stmt.(type) {
		case *ast.StateDeclaration:
			r.StateNames[s.Name] = true
		case *ast.ComputedDeclaration:
			r.ComputedNames[s.Name] = true
		case *ast.ComponentDeclaration:
			r.ComponentNames[s.Name] = true
		case *ast.StoreDeclaration:
			r.StoreNames[s.Name] = true
		}
	}
	return r
}

// IsSignal reports whether name reads through a getter call (state or
// computed).
func (r *Registry) IsSignal(name string) bool {
	return r.StateNames[name] || r.ComputedNames[name]
}
