package lower

import (
	"github.com/pkg/errors"

	"github.com/polybase/polylang-sub000/internal/abi"
	"github.com/polybase/polylang-sub000/internal/ast"
	"github.com/polybase/polylang-sub000/internal/ir"
	"github.com/polybase/polylang-sub000/internal/kernels"
)

// root walks up to the outermost scope, the one holding the function/
// built-in registries every nested scope shares.
func (s *Scope) root() *Scope {
	r := s
	for r.parent != nil {
		r = r.parent
	}
	return r
}

// InlineCall lowers a call to a source-level function by copying each
// already-lowered argument into a fresh Symbol bound to the parameter
// name in a brand-new scope (rooted at the caller's function/built-in
// registry, not its locals), compiling the body inside an
// Abstract(InlinedFunction(...)) wrapper so its Returns are confined to
// this call, and returning the fresh return-slot Symbol (§4.6).
func InlineCall(comp *Compiler, scope *Scope, fn *ast.Function, args []kernels.Symbol) (kernels.Symbol, error) {
	if len(args) != len(fn.Parameters) {
		return kernels.Symbol{}, errors.Errorf("lower: %s expects %d arguments, got %d", fn.Name, len(fn.Parameters), len(args))
	}

	callScope := scope.root().Child()
	for i, p := range fn.Parameters {
		paramType := comp.resolveParamType(p)
		fresh := comp.Alloc(paramType)
		comp.Read(args[i])
		comp.Write(fresh, kernels.StackWords(paramType.MidenWidth()))
		callScope.Define(p.Name, fresh)
	}

	var returnSlot *kernels.Symbol
	var returnType *abi.Type
	if fn.ReturnType != nil {
		t := resolveParamTypeKind(*fn.ReturnType)
		returnType = &t
		slot := comp.Alloc(t)
		returnSlot = &slot
	}

	buf := []ir.Instruction{}
	bodyComp := comp.child(returnSlot, returnType).withBuf(&buf)
	for i := range fn.Statements {
		if err := CompileStatement(bodyComp, callScope, &fn.Statements[i]); err != nil {
			return kernels.Symbol{}, errors.Wrapf(err, "in %s", fn.Name)
		}
	}

	comp.emitRaw(ir.InlinedFunction(buf))

	if returnSlot != nil {
		return *returnSlot, nil
	}
	return kernels.Symbol{}, nil
}

// resolveParamType maps a parameter declaration's coarse source-level
// type to the ABI Type its copied-argument Symbol is allocated with.
// Record/ForeignRecord/Object parameters need the declaring collection's
// field layout to resolve fully; that resolution is the compile driver's
// job (§4.8) and is threaded in via Compiler.CollectionTypes before a
// contract's methods are lowered, so by the time InlineCall runs every
// parameter naming a collection has already been registered there.
func (c *Compiler) resolveParamType(p ast.Parameter) abi.Type {
	if t, ok := c.CollectionTypes[p.Foreign]; ok && (p.Type == ast.ParamRecord || p.Type == ast.ParamForeignRecord) {
		return t
	}
	return resolveParamTypeKind(p.Type)
}

func resolveParamTypeKind(t ast.ParamType) abi.Type {
	switch t {
	case ast.ParamString:
		return abi.String()
	case ast.ParamNumber:
		return abi.Float32()
	case ast.ParamBoolean:
		return abi.Boolean()
	case ast.ParamPublicKey:
		return abi.PublicKey()
	case ast.ParamBytes:
		return abi.Bytes()
	case ast.ParamArray:
		return abi.Array(abi.Float32())
	case ast.ParamMap:
		return abi.Map(abi.String(), abi.Float32())
	default:
		return abi.Struct("", nil)
	}
}
