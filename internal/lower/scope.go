// Package lower implements the expression/statement lowerer (§4.6), the
// built-in scope (§4.7), and the authentication & hashing driver (§4.8)
// that together turn a parsed ast.Program into instruction IR and an ABI
// descriptor.
package lower

import (
	"github.com/pkg/errors"

	"github.com/polybase/polylang-sub000/internal/ast"
	"github.com/polybase/polylang-sub000/internal/kernels"
)

// ErrUndefined is returned when an identifier has no binding in scope.
var ErrUndefined = errors.New("undefined identifier")

// ErrNotAFunction is returned when a call target does not resolve to a
// known function or built-in.
var ErrNotAFunction = errors.New("not a function")

// Scope binds identifiers to Symbols within one nested lexical block. The
// root scope additionally holds the function and built-in registries
// every nested scope can see through it, avoiding a separate registry
// type and the import it would otherwise need back into this package.
type Scope struct {
	parent *Scope
	vars   map[string]kernels.Symbol

	funcs    map[string]*ast.Function
	builtins map[string]Builtin
}

// NewRootScope creates the outermost scope for one compile call, seeded
// with the collection's functions (for intra-collection calls) and the
// process-wide built-in registry.
func NewRootScope(funcs map[string]*ast.Function) *Scope {
	return &Scope{
		vars:     map[string]kernels.Symbol{},
		funcs:    funcs,
		builtins: builtinScope,
	}
}

// Child opens a nested block scope (if/while/for bodies, inlined call
// frames) whose bindings shadow the parent's and disappear when the
// block ends.
func (s *Scope) Child() *Scope {
	return &Scope{parent: s, vars: map[string]kernels.Symbol{}}
}

// Define binds name to sym in the current block.
func (s *Scope) Define(name string, sym kernels.Symbol) {
	s.vars[name] = sym
}

// Lookup resolves name by walking outward through enclosing scopes.
func (s *Scope) Lookup(name string) (kernels.Symbol, error) {
	for sc := s; sc != nil; sc = sc.parent {
		if sym, ok := sc.vars[name]; ok {
			return sym, nil
		}
	}
	return kernels.Symbol{}, errors.Wrapf(ErrUndefined, "%q", name)
}

// LookupFunction resolves a call target against the root scope's
// function table, then the built-in registry.
func (s *Scope) LookupFunction(name string) (*ast.Function, Builtin, error) {
	root := s
	for root.parent != nil {
		root = root.parent
	}
	if fn, ok := root.funcs[name]; ok {
		return fn, nil, nil
	}
	if b, ok := root.builtins[name]; ok {
		return nil, b, nil
	}
	return nil, nil, errors.Wrapf(ErrNotAFunction, "%q", name)
}
