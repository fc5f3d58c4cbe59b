package lower

import (
	"encoding/hex"
	"strings"

	"github.com/pkg/errors"

	"github.com/polybase/polylang-sub000/internal/abi"
	"github.com/polybase/polylang-sub000/internal/ast"
	"github.com/polybase/polylang-sub000/internal/digest"
	"github.com/polybase/polylang-sub000/internal/ir"
	"github.com/polybase/polylang-sub000/internal/kernels"
)

// CtxPublicKey is the caller's public key read from the advice tape's
// leading Nullable(ctx.publicKey) (§6's advice-tape protocol item 1),
// threaded through every authentication check this file performs.
type CtxPublicKey struct {
	Present kernels.Symbol // Boolean
	Key     kernels.Symbol // PublicKey, meaningful only when Present holds true
}

// ReadCtxPublicKey reads the tape's leading Nullable(ctx.publicKey). The
// driver always supplies the full five-word PublicKey shape regardless
// of presence (zeroed when absent), so the program's advice consumption
// never depends on a runtime value — only Present gates whether the
// bytes that follow mean anything.
func ReadCtxPublicKey(comp *Compiler) CtxPublicKey {
	comp.emitRaw(ir.AdvPush(1))
	present := comp.Alloc(abi.Boolean())
	comp.Write(present, kernels.StackWords(1))

	key, _ := builtinReadAdvicePublicKey(comp, nil) // never errors on zero args
	return CtxPublicKey{Present: present, Key: *key}
}

// AuthContext carries a method's per-field salts and commitment hashes
// from the prologue through to the epilogue's rehash (§4.8 steps 1, 3).
type AuthContext struct {
	Fields      []string
	Salts       map[string]kernels.Symbol
	Commitments map[string]kernels.Symbol
}

// DependentFields returns, in the collection's field-declaration order,
// every field fn's body dereferences off `this` plus any field named by
// a @call/@read/@delegate decorator on fn or the collection itself — the
// set whose commitment the authentication driver must read a salt for
// and hash before the body runs (§4.8 step 1).
func DependentFields(coll *ast.Collection, fn *ast.Function) []string {
	want := map[string]bool{}
	mark := func(name string) {
		if name == "" {
			return
		}
		if _, ok := fieldDecl(coll, name); ok {
			want[name] = true
		}
	}

	walkStmts(fn.Statements, func(e *ast.Expression) {
		if e.Kind == ast.ExprDot && e.A != nil && e.A.Kind == ast.ExprIdent && e.A.Ident == "this" {
			mark(e.StrLit)
		}
	})

	decorators := append(append([]ast.Decorator{}, coll.Decorators...), fn.Decorators...)
	for _, d := range decorators {
		if (d.Name == "call" || d.Name == "read" || d.Name == "delegate") && !strings.HasPrefix(d.Arg, "eth#") {
			mark(d.Arg)
		}
	}

	var ordered []string
	for _, f := range coll.Fields {
		if want[f.Name] {
			ordered = append(ordered, f.Name)
		}
	}
	return ordered
}

// CompilePrologue reads one advice-tape salt per dependent field and
// folds it with the field's current value into a commitment hash.
func CompilePrologue(comp *Compiler, this kernels.Symbol, dependent []string) *AuthContext {
	authCtx := &AuthContext{Fields: dependent, Salts: map[string]kernels.Symbol{}, Commitments: map[string]kernels.Symbol{}}
	dep := map[string]bool{}
	for _, name := range dependent {
		dep[name] = true
	}

	addr := this.Addr
	for _, f := range this.Type.Fields {
		if dep[f.Name] {
			comp.emitRaw(ir.AdvPush(1))
			salt := comp.Alloc(abi.UInt32())
			comp.Write(salt, kernels.StackWords(1))

			fieldSym := kernels.Symbol{Type: f.Type, Addr: addr}
			authCtx.Salts[f.Name] = salt
			authCtx.Commitments[f.Name] = saltedFieldHash(comp.Ctx, f.Type, fieldSym, salt)
		}
		addr += f.Type.MidenWidth()
	}
	return authCtx
}

// CompileEpilogue recomputes each dependent field's commitment over the
// (possibly mutated) `this` image, using the same salt the prologue
// read, and reads every hash's four words onto the stack in field
// order — the shape §4.9's decoder expects starting at output offset 1
// (§4.8 step 3).
func CompileEpilogue(comp *Compiler, this kernels.Symbol, authCtx *AuthContext) {
	addr := this.Addr
	for _, f := range this.Type.Fields {
		if salt, ok := authCtx.Salts[f.Name]; ok {
			fieldSym := kernels.Symbol{Type: f.Type, Addr: addr}
			h := saltedFieldHash(comp.Ctx, f.Type, fieldSym, salt)
			comp.Read(h)
		}
		addr += f.Type.MidenWidth()
	}
}

// leafHash computes the plain (unsalted) content hash of a value of any
// leaf or struct type, the building block both the hashBuiltin family
// and the salted field commitment fold through.
func leafHash(c kernels.Ctx, t abi.Type, sym kernels.Symbol) kernels.Symbol {
	switch t.Kind {
	case abi.KindString, abi.KindBytes, abi.KindContractReference:
		return kernels.Hash(c, sym)
	case abi.KindPublicKey:
		return kernels.PublicKeyHash(c, sym)
	case abi.KindStruct:
		return kernels.StructHash(c, sym, leafHash)
	default:
		result := c.Alloc(abi.Hash())
		acc := digest.HMergeAccumulator{Instrs: c.Instrs}
		acc.Init()
		for w := uint32(0); w < t.MidenWidth(); w++ {
			*c.Instrs = append(*c.Instrs, ir.MemLoad(ir.Addr32(sym.Addr+w)))
			acc.FoldWord()
		}
		c.Write(result, kernels.StackWords(4))
		return result
	}
}

// saltedFieldHash folds a u32 salt and then the field's plain content
// hash through a fresh accumulator, so two fields with identical values
// but distinct salts commit to different hashes (§4.5's salt note).
func saltedFieldHash(c kernels.Ctx, t abi.Type, sym, salt kernels.Symbol) kernels.Symbol {
	result := c.Alloc(abi.Hash())
	acc := digest.HMergeAccumulator{Instrs: c.Instrs}
	acc.Init()

	c.Read(salt)
	acc.FoldWord()

	h := leafHash(c, t, sym)
	for w := uint32(0); w < 4; w++ {
		*c.Instrs = append(*c.Instrs, ir.MemLoad(ir.Addr32(h.Addr+w)))
		acc.FoldWord()
	}

	c.Write(result, kernels.StackWords(4))
	return result
}

func fieldDecl(coll *ast.Collection, name string) (ast.Field, bool) {
	for _, f := range coll.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return ast.Field{}, false
}

func decoratorArg(decorators []ast.Decorator, name string) (string, bool) {
	for _, d := range decorators {
		if d.Name == name {
			return d.Arg, true
		}
	}
	return "", false
}

func hasDecorator(decorators []ast.Decorator, name string) bool {
	_, ok := decoratorArg(decorators, name)
	return ok
}

// thisField locates a struct field's Symbol by name, the same offset
// walk compileDot uses for a `this.field` expression.
func thisField(this kernels.Symbol, name string) (kernels.Symbol, bool) {
	f, ok := this.Type.Field(name)
	if !ok {
		return kernels.Symbol{}, false
	}
	addr := this.Addr
	for _, sf := range this.Type.Fields {
		if sf.Name == name {
			break
		}
		addr += sf.Type.MidenWidth()
	}
	return kernels.Symbol{Type: f.Type, Addr: addr}, true
}

// RequiresAuthorization reports whether fn needs a call-authorization
// check at all. The implicit constructor is always exempt (it runs
// before `this` exists, so there is nothing yet to authenticate
// against); a collection- or method-level bare @public/@call grants
// allow-any and is likewise exempt (§4.8 step 2).
func RequiresAuthorization(coll *ast.Collection, fn *ast.Function) bool {
	if fn.Name == "constructor" {
		return false
	}
	if hasDecorator(coll.Decorators, "public") {
		return false
	}
	if arg, ok := decoratorArg(coll.Decorators, "call"); ok && arg == "" {
		return false
	}
	if hasDecorator(fn.Decorators, "public") {
		return false
	}
	if arg, ok := decoratorArg(fn.Decorators, "call"); ok && arg == "" {
		return false
	}
	return true
}

// CompileCallAuthorization emits the method's §4.8 step 2 check: absent
// any allow annotation, the call is unconditionally denied; otherwise a
// single assert (via the existing assert() builtin) requires
// ctx.publicKey to match whatever the @call annotation names.
//
// delegateKeys supplies, for every @call(field) whose field is a
// ForeignRecord, the delegate public key the driver already resolved
// for that reference: this compiler has no advice-map load instruction,
// so it cannot itself walk into a foreign record's serialized fields to
// find its @delegate key (see DESIGN.md).
func CompileCallAuthorization(comp *Compiler, coll *ast.Collection, fn *ast.Function, this kernels.Symbol, ctxPK CtxPublicKey, delegateKeys map[string]kernels.Symbol) error {
	if !RequiresAuthorization(coll, fn) {
		return nil
	}

	deniedMsg := kernels.NewString(comp.Ctx, "You are not authorized to call this function")

	arg, ok := decoratorArg(fn.Decorators, "call")
	if !ok {
		_, err := builtinAssert(comp, []kernels.Symbol{kernels.NewBoolean(comp.Ctx, false), deniedMsg})
		return err
	}

	var authorized kernels.Symbol
	if strings.HasPrefix(arg, "eth#") {
		literal, err := literalPublicKey(comp, arg[len("eth#"):])
		if err != nil {
			return err
		}
		authorized = kernels.And(comp.Ctx, ctxPK.Present, kernels.PublicKeyPointEq(comp.Ctx, ctxPK.Key, literal))
	} else {
		f, ok := fieldDecl(coll, arg)
		if !ok {
			return errors.Errorf("lower: @call(%s) on %s names no field", arg, coll.Name)
		}
		switch f.Type {
		case ast.FieldPublicKey:
			sym, ok := thisField(this, arg)
			if !ok {
				return errors.Errorf("lower: @call(%s) field not present on this", arg)
			}
			authorized = kernels.And(comp.Ctx, ctxPK.Present, kernels.PublicKeyEq(comp.Ctx, ctxPK.Key, sym))
		case ast.FieldForeignRecord:
			dk, ok := delegateKeys[arg]
			if !ok {
				return errors.Errorf("lower: @call(%s) requires a resolved delegate public key", arg)
			}
			authorized = kernels.And(comp.Ctx, ctxPK.Present, kernels.PublicKeyEq(comp.Ctx, ctxPK.Key, dk))
		default:
			return errors.Errorf("lower: @call(%s) names a field of kind %v, want PublicKey or ForeignRecord", arg, f.Type)
		}
	}

	_, err := builtinAssert(comp, []kernels.Symbol{authorized, deniedMsg})
	return err
}

// literalPublicKey decodes an eth#<hex> decorator literal. Only the
// 64-byte raw x||y encoding is implemented; the 33-byte compressed form
// spec.md also allows would require on-chip point decompression this
// compiler does not perform (see DESIGN.md).
func literalPublicKey(comp *Compiler, hexLiteral string) (kernels.Symbol, error) {
	raw, err := hex.DecodeString(hexLiteral)
	if err != nil {
		return kernels.Symbol{}, errors.Wrapf(err, "lower: invalid eth# literal %q", hexLiteral)
	}
	if len(raw) != 64 {
		return kernels.Symbol{}, errors.Errorf("lower: eth# literal must be 64 raw point bytes, got %d (compressed points are not supported)", len(raw))
	}
	var xy [64]byte
	copy(xy[:], raw)
	return kernels.NewPublicKey(comp.Ctx, 0, 0, 0, 0, xy), nil
}

// CompileReadAuth builds the `.readAuth` pseudo-method's result (§4.8's
// closing paragraph): true iff a collection-level @public/@read, a
// @read-annotated PublicKey field equal to ctx.publicKey, or a
// @read-annotated ForeignRecord field whose resolved delegate key
// matches, would admit the caller.
func CompileReadAuth(comp *Compiler, coll *ast.Collection, this kernels.Symbol, ctxPK CtxPublicKey, delegateKeys map[string]kernels.Symbol) kernels.Symbol {
	if hasDecorator(coll.Decorators, "public") || hasDecorator(coll.Decorators, "read") {
		return kernels.NewBoolean(comp.Ctx, true)
	}

	admitted := kernels.NewBoolean(comp.Ctx, false)
	for _, f := range coll.Fields {
		if !hasDecorator(f.Decorators, "read") {
			continue
		}

		var match kernels.Symbol
		switch f.Type {
		case ast.FieldPublicKey:
			sym, ok := thisField(this, f.Name)
			if !ok {
				continue
			}
			match = kernels.And(comp.Ctx, ctxPK.Present, kernels.PublicKeyEq(comp.Ctx, ctxPK.Key, sym))
		case ast.FieldForeignRecord:
			dk, ok := delegateKeys[f.Name]
			if !ok {
				continue
			}
			match = kernels.And(comp.Ctx, ctxPK.Present, kernels.PublicKeyEq(comp.Ctx, ctxPK.Key, dk))
		default:
			continue
		}
		admitted = kernels.Or(comp.Ctx, admitted, match)
	}
	return admitted
}

// walkStmts/walkStmt/walkExpr visit every expression reachable from a
// function body, the traversal DependentFields uses to find `this.field`
// references without a full type-checking pass.
func walkStmts(stmts []ast.Statement, visit func(*ast.Expression)) {
	for i := range stmts {
		walkStmt(&stmts[i], visit)
	}
}

func walkStmt(s *ast.Statement, visit func(*ast.Expression)) {
	if s.Expr != nil {
		walkExpr(s.Expr, visit)
	}
	if s.LetVal != nil {
		walkExpr(s.LetVal, visit)
	}
	if s.If != nil {
		walkExpr(&s.If.Cond, visit)
		walkStmts(s.If.Then, visit)
		walkStmts(s.If.Else, visit)
	}
	if s.WhileCond != nil {
		walkExpr(s.WhileCond, visit)
	}
	walkStmts(s.WhileBody, visit)
	if s.ForInit != nil {
		walkStmt(s.ForInit, visit)
	}
	if s.ForCond != nil {
		walkExpr(s.ForCond, visit)
	}
	if s.ForPost != nil {
		walkStmt(s.ForPost, visit)
	}
	walkStmts(s.ForBody, visit)
}

func walkExpr(e *ast.Expression, visit func(*ast.Expression)) {
	if e == nil {
		return
	}
	visit(e)
	walkExpr(e.A, visit)
	walkExpr(e.B, visit)
	walkExpr(e.Cond, visit)
	walkExpr(e.CallFunc, visit)
	for i := range e.CallArgs {
		walkExpr(&e.CallArgs[i], visit)
	}
}
