package lower

import (
	"math"

	"github.com/pkg/errors"

	"github.com/polybase/polylang-sub000/internal/abi"
	"github.com/polybase/polylang-sub000/internal/ast"
	"github.com/polybase/polylang-sub000/internal/kernels"
)

// CompileExpression lowers one expression to IR and returns the Symbol
// holding its result (§4.6). Binary arithmetic/comparison dispatches by
// operand Kind, widening a UInt32 operand to UInt64 when paired with a
// UInt64 one.
func CompileExpression(comp *Compiler, scope *Scope, expr *ast.Expression) (kernels.Symbol, error) {
	switch expr.Kind {
	case ast.ExprIdent:
		if expr.Ident == "this" {
			if comp.ThisSym == nil {
				return kernels.Symbol{}, errors.New("this is not bound in this context")
			}
			return *comp.ThisSym, nil
		}
		return scope.Lookup(expr.Ident)

	case ast.ExprNumber:
		return kernels.NewFloat32(comp.Ctx, float32bits(expr.NumLit)), nil

	case ast.ExprString:
		return kernels.NewString(comp.Ctx, expr.StrLit), nil

	case ast.ExprBoolean:
		return kernels.NewBoolean(comp.Ctx, expr.BoolLit), nil

	case ast.ExprAdd, ast.ExprSub, ast.ExprMul, ast.ExprDiv, ast.ExprMod,
		ast.ExprEq, ast.ExprNeq, ast.ExprGt, ast.ExprGte, ast.ExprLt, ast.ExprLte,
		ast.ExprShl, ast.ExprShr, ast.ExprAnd, ast.ExprOr:
		return compileBinary(comp, scope, expr)

	case ast.ExprAssign:
		return compileAssign(comp, scope, expr)

	case ast.ExprDot:
		return compileDot(comp, scope, expr)

	case ast.ExprCall:
		return compileCall(comp, scope, expr)

	default:
		return kernels.Symbol{}, errors.Errorf("lower: unhandled expression kind %v", expr.Kind)
	}
}

// float32bits converts a source-level number literal (held as float64 in
// the AST) to the IEEE-754 binary32 bit pattern Float32 values use.
func float32bits(v float64) uint32 {
	return math.Float32bits(float32(v))
}

func compileBinary(comp *Compiler, scope *Scope, expr *ast.Expression) (kernels.Symbol, error) {
	a, err := CompileExpression(comp, scope, expr.A)
	if err != nil {
		return kernels.Symbol{}, err
	}
	b, err := CompileExpression(comp, scope, expr.B)
	if err != nil {
		return kernels.Symbol{}, err
	}

	if expr.Kind == ast.ExprAnd || expr.Kind == ast.ExprOr {
		if a.Type.Kind != abi.KindBoolean || b.Type.Kind != abi.KindBoolean {
			return kernels.Symbol{}, errors.Wrapf(ErrType, "%v requires Boolean operands", expr.Kind)
		}
		if expr.Kind == ast.ExprAnd {
			return kernels.And(comp.Ctx, a, b), nil
		}
		return kernels.Or(comp.Ctx, a, b), nil
	}

	a, b = widen(comp, a, b)
	if a.Type.Kind != b.Type.Kind {
		return kernels.Symbol{}, errors.Wrapf(ErrType, "mismatched operand types %v and %v", a.Type.Kind, b.Type.Kind)
	}

	switch a.Type.Kind {
	case abi.KindUInt32:
		return dispatchUInt32(comp, expr.Kind, a, b)
	case abi.KindUInt64:
		return dispatchUInt64(comp, expr.Kind, a, b)
	case abi.KindInt32:
		return dispatchInt32(comp, expr.Kind, a, b)
	case abi.KindFloat32:
		return dispatchFloat32(comp, expr.Kind, a, b)
	case abi.KindBoolean:
		return dispatchBoolean(comp, expr.Kind, a, b)
	case abi.KindString, abi.KindBytes, abi.KindContractReference:
		return dispatchByteLike(comp, expr.Kind, a, b)
	default:
		return kernels.Symbol{}, errors.Wrapf(ErrType, "no binary operator kernel for %v", a.Type.Kind)
	}
}

// widen promotes a lone UInt32 operand to UInt64 when its sibling is
// UInt64, per §4.6's "implicit unsigned-widening from u32 to u64 when
// mixed" rule.
func widen(comp *Compiler, a, b kernels.Symbol) (kernels.Symbol, kernels.Symbol) {
	if a.Type.Kind == abi.KindUInt32 && b.Type.Kind == abi.KindUInt64 {
		return kernels.CastFromUInt32(comp.Ctx, a), b
	}
	if b.Type.Kind == abi.KindUInt32 && a.Type.Kind == abi.KindUInt64 {
		return a, kernels.CastFromUInt32(comp.Ctx, b)
	}
	return a, b
}

func dispatchUInt32(comp *Compiler, op ast.ExprKind, a, b kernels.Symbol) (kernels.Symbol, error) {
	switch op {
	case ast.ExprAdd:
		return kernels.U32Add(comp.Ctx, a, b), nil
	case ast.ExprSub:
		return kernels.U32Sub(comp.Ctx, a, b), nil
	case ast.ExprMul:
		return kernels.U32Mul(comp.Ctx, a, b), nil
	case ast.ExprDiv:
		return kernels.U32Div(comp.Ctx, a, b), nil
	case ast.ExprMod:
		return kernels.U32Mod(comp.Ctx, a, b), nil
	case ast.ExprEq:
		return kernels.U32Eq(comp.Ctx, a, b), nil
	case ast.ExprNeq:
		return kernels.U32Neq(comp.Ctx, a, b), nil
	case ast.ExprGt:
		return kernels.U32Gt(comp.Ctx, a, b), nil
	case ast.ExprGte:
		return kernels.U32Gte(comp.Ctx, a, b), nil
	case ast.ExprLt:
		return kernels.U32Lt(comp.Ctx, a, b), nil
	case ast.ExprLte:
		return kernels.U32Lte(comp.Ctx, a, b), nil
	case ast.ExprShl:
		return kernels.U32Shl(comp.Ctx, a, b), nil
	case ast.ExprShr:
		return kernels.U32Shr(comp.Ctx, a, b), nil
	default:
		return kernels.Symbol{}, errors.Wrapf(ErrType, "UInt32 has no %v operator", op)
	}
}

func dispatchUInt64(comp *Compiler, op ast.ExprKind, a, b kernels.Symbol) (kernels.Symbol, error) {
	switch op {
	case ast.ExprAdd:
		return kernels.U64Add(comp.Ctx, a, b), nil
	case ast.ExprSub:
		return kernels.U64Sub(comp.Ctx, a, b), nil
	case ast.ExprEq:
		return kernels.U64Eq(comp.Ctx, a, b), nil
	case ast.ExprGte:
		return kernels.U64Gte(comp.Ctx, a, b), nil
	case ast.ExprLte:
		return kernels.U64Lte(comp.Ctx, a, b), nil
	default:
		return kernels.Symbol{}, errors.Wrapf(ErrType, "UInt64 has no %v operator", op)
	}
}

func dispatchInt32(comp *Compiler, op ast.ExprKind, a, b kernels.Symbol) (kernels.Symbol, error) {
	switch op {
	case ast.ExprAdd:
		return kernels.Add(comp.Ctx, a, b), nil
	case ast.ExprSub:
		return kernels.Sub(comp.Ctx, a, b), nil
	case ast.ExprMul:
		return kernels.Mul(comp.Ctx, a, b), nil
	case ast.ExprDiv:
		return kernels.Div(comp.Ctx, a, b), nil
	case ast.ExprMod:
		return kernels.Mod(comp.Ctx, a, b), nil
	case ast.ExprEq:
		return kernels.Int32Eq(comp.Ctx, a, b), nil
	case ast.ExprNeq:
		return kernels.Int32Neq(comp.Ctx, a, b), nil
	case ast.ExprGt:
		return kernels.Gt(comp.Ctx, a, b), nil
	case ast.ExprGte:
		return kernels.Gte(comp.Ctx, a, b), nil
	case ast.ExprLt:
		return kernels.Lt(comp.Ctx, a, b), nil
	case ast.ExprLte:
		return kernels.Lte(comp.Ctx, a, b), nil
	case ast.ExprShl:
		return kernels.ShiftLeft(comp.Ctx, a, b), nil
	case ast.ExprShr:
		return kernels.ShiftRight(comp.Ctx, a, b), nil
	default:
		return kernels.Symbol{}, errors.Wrapf(ErrType, "Int32 has no %v operator", op)
	}
}

func dispatchFloat32(comp *Compiler, op ast.ExprKind, a, b kernels.Symbol) (kernels.Symbol, error) {
	switch op {
	case ast.ExprAdd:
		return kernels.FloatAdd(comp.Ctx, a, b), nil
	case ast.ExprSub:
		return kernels.FloatSub(comp.Ctx, a, b), nil
	case ast.ExprMul:
		return kernels.FloatMul(comp.Ctx, a, b), nil
	case ast.ExprDiv:
		return kernels.FloatDiv(comp.Ctx, a, b), nil
	case ast.ExprEq:
		return kernels.FloatEq(comp.Ctx, a, b), nil
	case ast.ExprNeq:
		return kernels.FloatNeq(comp.Ctx, a, b), nil
	case ast.ExprGt:
		return kernels.FloatGt(comp.Ctx, a, b), nil
	case ast.ExprGte:
		return kernels.FloatGte(comp.Ctx, a, b), nil
	case ast.ExprLt:
		return kernels.FloatLt(comp.Ctx, a, b), nil
	case ast.ExprLte:
		return kernels.FloatLte(comp.Ctx, a, b), nil
	default:
		return kernels.Symbol{}, errors.Wrapf(ErrType, "Float32 has no %v operator", op)
	}
}

func dispatchBoolean(comp *Compiler, op ast.ExprKind, a, b kernels.Symbol) (kernels.Symbol, error) {
	switch op {
	case ast.ExprEq:
		return kernels.BoolEq(comp.Ctx, a, b), nil
	default:
		return kernels.Symbol{}, errors.Wrapf(ErrType, "Boolean has no %v operator", op)
	}
}

func dispatchByteLike(comp *Compiler, op ast.ExprKind, a, b kernels.Symbol) (kernels.Symbol, error) {
	switch op {
	case ast.ExprAdd:
		return kernels.Concat(comp.Ctx, a, b), nil
	case ast.ExprEq:
		return kernels.Eq(comp.Ctx, a, b), nil
	case ast.ExprNeq:
		return kernels.Not(comp.Ctx, kernels.Eq(comp.Ctx, a, b)), nil
	default:
		return kernels.Symbol{}, errors.Wrapf(ErrType, "%v has no %v operator", a.Type.Kind, op)
	}
}

func compileAssign(comp *Compiler, scope *Scope, expr *ast.Expression) (kernels.Symbol, error) {
	value, err := CompileExpression(comp, scope, expr.B)
	if err != nil {
		return kernels.Symbol{}, err
	}

	if expr.A.Kind == ast.ExprDot {
		target, err := CompileExpression(comp, scope, expr.A.A)
		if err != nil {
			return kernels.Symbol{}, err
		}
		if err := assignField(comp, target, expr.A.StrLit, value); err != nil {
			return kernels.Symbol{}, err
		}
		return value, nil
	}

	if expr.A.Kind != ast.ExprIdent {
		return kernels.Symbol{}, errors.New("lower: assignment target must be an identifier or field access")
	}
	dest, err := scope.Lookup(expr.A.Ident)
	if err != nil {
		// first assignment to a `let`-less name is the binding itself
		scope.Define(expr.A.Ident, value)
		return value, nil
	}
	comp.Read(value)
	comp.Write(dest, kernels.StackWords(dest.Type.MidenWidth()))
	return dest, nil
}

func assignField(comp *Compiler, structSym kernels.Symbol, field string, value kernels.Symbol) error {
	f, ok := structSym.Type.Field(field)
	if !ok {
		return errors.Wrapf(ErrStructHasNoField, "%q on %v", field, structSym.Type.Name)
	}
	addr := structSym.Addr
	for _, sf := range structSym.Type.Fields {
		if sf.Name == field {
			break
		}
		addr += sf.Type.MidenWidth()
	}
	fieldSym := kernels.Symbol{Type: f.Type, Addr: addr}
	comp.Read(value)
	comp.Write(fieldSym, kernels.StackWords(f.Type.MidenWidth()))
	return nil
}

func compileDot(comp *Compiler, scope *Scope, expr *ast.Expression) (kernels.Symbol, error) {
	obj, err := CompileExpression(comp, scope, expr.A)
	if err != nil {
		return kernels.Symbol{}, err
	}
	if obj.Type.Kind != abi.KindStruct {
		return kernels.Symbol{}, errors.Wrapf(ErrType, "field access on non-struct %v", obj.Type.Kind)
	}
	f, ok := obj.Type.Field(expr.StrLit)
	if !ok {
		return kernels.Symbol{}, errors.Wrapf(ErrStructHasNoField, "%q on %v", expr.StrLit, obj.Type.Name)
	}
	addr := obj.Addr
	for _, sf := range obj.Type.Fields {
		if sf.Name == expr.StrLit {
			break
		}
		addr += sf.Type.MidenWidth()
	}
	return kernels.Symbol{Type: f.Type, Addr: addr}, nil
}

func compileCall(comp *Compiler, scope *Scope, expr *ast.Expression) (kernels.Symbol, error) {
	if expr.CallFunc.Kind != ast.ExprIdent {
		return kernels.Symbol{}, errors.New("lower: call target must be a plain identifier")
	}
	fn, builtin, err := scope.LookupFunction(expr.CallFunc.Ident)
	if err != nil {
		return kernels.Symbol{}, err
	}

	args := make([]kernels.Symbol, len(expr.CallArgs))
	for i := range expr.CallArgs {
		a, err := CompileExpression(comp, scope, &expr.CallArgs[i])
		if err != nil {
			return kernels.Symbol{}, err
		}
		args[i] = a
	}

	if builtin != nil {
		result, err := builtin(comp, args)
		if err != nil {
			return kernels.Symbol{}, err
		}
		if result == nil {
			return kernels.Symbol{}, nil
		}
		return *result, nil
	}
	return InlineCall(comp, scope, fn, args)
}
