package lower

import (
	"github.com/pkg/errors"

	"github.com/polybase/polylang-sub000/internal/ast"
	"github.com/polybase/polylang-sub000/internal/ir"
	"github.com/polybase/polylang-sub000/internal/kernels"
	"github.com/polybase/polylang-sub000/internal/mem"
)

// CompileStatement lowers one statement, emitting into comp's current
// instruction buffer. Control-flow statements recurse with a child
// Compiler whose Ctx.Instrs points at a fresh buffer for each branch/
// loop body, matching the ir.If/ir.While shape those nodes expect
// pre-built (§4.6).
func CompileStatement(comp *Compiler, scope *Scope, stmt *ast.Statement) error {
	switch stmt.Kind {
	case ast.StmtExpr:
		_, err := CompileExpression(comp, scope, stmt.Expr)
		return err

	case ast.StmtLet:
		val, err := CompileExpression(comp, scope, stmt.LetVal)
		if err != nil {
			return err
		}
		bound := comp.Alloc(val.Type)
		comp.Read(val)
		comp.Write(bound, kernels.StackWords(val.Type.MidenWidth()))
		scope.Define(stmt.LetName, bound)
		return nil

	case ast.StmtIf:
		return compileIf(comp, scope, stmt.If)

	case ast.StmtWhile:
		return compileWhile(comp, scope, stmt.WhileCond, stmt.WhileBody)

	case ast.StmtFor:
		return compileFor(comp, scope, stmt)

	case ast.StmtReturn:
		return compileReturn(comp, scope, stmt.Expr)

	case ast.StmtBreak:
		comp.emitRaw(ir.Break())
		return nil

	case ast.StmtThrow:
		return compileThrow(comp, scope, stmt.Expr)

	default:
		return errors.Errorf("lower: unhandled statement kind %v", stmt.Kind)
	}
}

// emitRaw appends a single instruction directly, the escape hatch
// statement-level control flow needs for Break/Return markers that
// carry no operands through Ctx's Read/Write helpers.
func (c *Compiler) emitRaw(i ir.Instruction) {
	*c.Instrs = append(*c.Instrs, i)
}

func compileBlock(comp *Compiler, parentScope *Scope, body []ast.Statement) (*Compiler, *Scope, error) {
	buf := []ir.Instruction{}
	blockComp := comp.withBuf(&buf)
	blockScope := parentScope.Child()
	for i := range body {
		if err := CompileStatement(blockComp, blockScope, &body[i]); err != nil {
			return nil, nil, err
		}
	}
	return blockComp, blockScope, nil
}

func compileIf(comp *Compiler, scope *Scope, stmt *ast.IfStatement) error {
	condBuf := []ir.Instruction{}
	condComp := comp.withBuf(&condBuf)
	cond, err := CompileExpression(condComp, scope, &stmt.Cond)
	if err != nil {
		return err
	}
	condComp.Read(cond)

	thenComp, _, err := compileBlock(comp, scope, stmt.Then)
	if err != nil {
		return err
	}
	var elseInstrs []ir.Instruction
	if stmt.Else != nil {
		elseComp, _, err := compileBlock(comp, scope, stmt.Else)
		if err != nil {
			return err
		}
		elseInstrs = *elseComp.Instrs
	}

	comp.emitRaw(ir.If(condBuf, *thenComp.Instrs, elseInstrs))
	return nil
}

func compileWhile(comp *Compiler, scope *Scope, condExpr *ast.Expression, body []ast.Statement) error {
	return compileWhilePost(comp, scope, condExpr, body, nil)
}

// compileWhilePost builds a While node whose condition is recomputed
// from scratch in its own Cond buffer (condExpr is re-lowered there,
// since ir.While re-checks the condition at the top of every
// iteration) and whose body has post (a for-loop's increment) appended
// when non-nil.
func compileWhilePost(comp *Compiler, scope *Scope, condExpr *ast.Expression, body []ast.Statement, post *ast.Statement) error {
	condBuf := []ir.Instruction{}
	condComp := comp.withBuf(&condBuf)
	cond, err := CompileExpression(condComp, scope, condExpr)
	if err != nil {
		return err
	}
	condComp.Read(cond)

	bodyComp, bodyScope, err := compileBlock(comp, scope, body)
	if err != nil {
		return err
	}
	if post != nil {
		if err := CompileStatement(bodyComp, bodyScope, post); err != nil {
			return err
		}
	}

	comp.emitRaw(ir.While(condBuf, *bodyComp.Instrs))
	return nil
}

func compileFor(comp *Compiler, scope *Scope, stmt *ast.Statement) error {
	forScope := scope.Child()
	if stmt.ForInit != nil {
		if err := CompileStatement(comp, forScope, stmt.ForInit); err != nil {
			return err
		}
	}
	return compileWhilePost(comp, forScope, stmt.ForCond, stmt.ForBody, stmt.ForPost)
}

func compileReturn(comp *Compiler, scope *Scope, expr *ast.Expression) error {
	if expr != nil {
		if comp.ReturnSlot == nil {
			return errors.New("lower: return with a value in a function with no declared return type")
		}
		val, err := CompileExpression(comp, scope, expr)
		if err != nil {
			return err
		}
		comp.Read(val)
		comp.Write(*comp.ReturnSlot, kernels.StackWords(comp.ReturnType.MidenWidth()))
	}
	comp.emitRaw(ir.Return())
	return nil
}

func compileThrow(comp *Compiler, scope *Scope, expr *ast.Expression) error {
	msg, err := CompileExpression(comp, scope, expr)
	if err != nil {
		return err
	}
	comp.Write(kernels.Symbol{Addr: mem.AddrErrorStrLen}, []mem.Source{mem.FromMemory(msg.Addr)})
	comp.Write(kernels.Symbol{Addr: mem.AddrErrorStrData}, []mem.Source{mem.FromMemory(msg.Addr + 1)})
	comp.emitRaw(ir.Push(0))
	comp.emitRaw(ir.Assert())
	return nil
}
