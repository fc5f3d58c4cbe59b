package lower

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/polybase/polylang-sub000/internal/abi"
	"github.com/polybase/polylang-sub000/internal/ast"
	"github.com/polybase/polylang-sub000/internal/ir"
	"github.com/polybase/polylang-sub000/internal/kernels"
	"github.com/polybase/polylang-sub000/internal/mem"
)

// StdVersion is the ABI descriptor's producer tag (§3), checked by a
// runtime via abi.CheckVersion before it trusts a compiled program's
// ISA text.
const StdVersion = "v0.1.0"

// ReadAuthMethod is the synthetic function name Compile recognizes to
// build the `.readAuth` pseudo-method (§4.8's closing paragraph) instead
// of lowering a collection method body.
const ReadAuthMethod = ".readAuth"

var (
	// ErrCollectionNotFound is returned when Compile's collName has no
	// matching Collection node in prog.
	ErrCollectionNotFound = errors.New("collection not found")
	// ErrFunctionNotFound is returned when fnName names no method on the
	// resolved collection.
	ErrFunctionNotFound = errors.New("function not found")
)

// Output bundles everything a driver needs after a successful compile:
// the wrapped ISA text ready to hand to the VM (§6), and the ABI
// descriptor to persist alongside it.
type Output struct {
	ISA        string
	Descriptor abi.Descriptor
}

// Compile lowers one (collection, function) pair out of prog into a
// complete ISA program and its ABI descriptor. It wires together the
// scalar/composite kernels, the expression/statement lowerer, and the
// authentication & hashing driver (§4.8) around the target's body, then
// emits the std-lib program wrapper §6 requires. Passing ReadAuthMethod
// as fnName compiles the `.readAuth` pseudo-method instead.
func Compile(prog *ast.Program, collName, fnName string) (*Output, error) {
	coll, err := findCollection(prog, collName)
	if err != nil {
		return nil, err
	}

	collTypes := map[string]abi.Type{}
	for _, n := range prog.Nodes {
		if n.Collection != nil {
			collTypes[n.Collection.Name] = collectionStructType(n.Collection)
		}
	}
	thisType := collTypes[coll.Name]

	planner := mem.New()
	instrs := []ir.Instruction{}
	comp := NewCompiler(&instrs, planner)
	comp.CollectionTypes = collTypes

	ctxPK := ReadCtxPublicKey(comp)

	if fnName == ReadAuthMethod {
		return compileReadAuthProgram(comp, coll, thisType, collTypes, ctxPK)
	}

	fn, err := findFunction(coll, fnName)
	if err != nil {
		return nil, err
	}
	isConstructor := fn.Name == "constructor"

	var this kernels.Symbol
	if isConstructor {
		// The constructor runs before `this` exists; it starts from a
		// zero image it is expected to populate itself, rather than one
		// read off the tape.
		this = comp.Alloc(thisType)
		comp.Write(this, zeroSources(thisType.MidenWidth()))
	} else {
		this, err = readAdviceValue(comp, thisType)
		if err != nil {
			return nil, errors.Wrap(err, "lower: reading this off advice tape")
		}
	}
	comp.ThisSym = &this
	comp.ThisType = &thisType

	// The prologue/epilogue commitment pair runs for every method,
	// constructor included, so hashes() lands at the same output offset
	// regardless of which method produced it (§4.9). Only the
	// authorization check itself is constructor-exempt (§9's recorded
	// decision: a collection has no caller to authorize against before
	// its first record exists).
	dependent := DependentFields(coll, fn)
	authCtx := CompilePrologue(comp, this, dependent)

	if !isConstructor {
		// ForeignRecord delegate keys cannot be resolved by this
		// compiler: there is no advice-map load instruction, so
		// @call(record_field) fails to compile with an error and
		// @read(record_field) never admits a caller (see DESIGN.md).
		if err := CompileCallAuthorization(comp, coll, fn, this, ctxPK, nil); err != nil {
			return nil, err
		}
	}

	selfDestruct := comp.Alloc(abi.Boolean())
	comp.Write(selfDestruct, []mem.Source{mem.Immediate(0)})
	comp.SelfDestruct = &selfDestruct

	var returnSlot *kernels.Symbol
	var returnType *abi.Type
	if fn.ReturnType != nil {
		rt := resolveParamTypeKind(*fn.ReturnType)
		slot := comp.Alloc(rt)
		returnSlot = &slot
		returnType = &rt
	}
	bodyComp := comp.child(returnSlot, returnType)

	scope := NewRootScope(collectFunctions(coll))
	paramTypes := make([]abi.Type, len(fn.Parameters))
	for i, p := range fn.Parameters {
		pt := comp.resolveParamType(p)
		paramTypes[i] = pt
		val, err := readAdviceValue(comp, pt)
		if err != nil {
			return nil, errors.Wrapf(err, "lower: reading parameter %q off advice tape", p.Name)
		}
		scope.Define(p.Name, val)
	}

	for i := range fn.Statements {
		if err := CompileStatement(bodyComp, scope, &fn.Statements[i]); err != nil {
			return nil, errors.Wrapf(err, "lower: compiling %s.%s", coll.Name, fn.Name)
		}
	}

	CompileEpilogue(comp, this, authCtx)
	comp.Read(selfDestruct)

	var resultAddr *uint32
	if returnSlot != nil {
		h := leafHash(comp.Ctx, *returnType, *returnSlot)
		comp.Read(h)
		a := returnSlot.Addr
		resultAddr = &a
	}

	isa, err := wrapProgram(instrs, planner)
	if err != nil {
		return nil, err
	}

	desc := abi.Descriptor{
		StdVersion:             StdVersion,
		ThisType:               &thisType,
		Parameters:             paramTypes,
		ResultAddr:             resultAddr,
		ResultType:             returnType,
		DependentFields:        dependentFieldList(thisType, dependent),
		ForeignCollections:     foreignCollections(thisType),
		ForeignCollectionTypes: foreignCollectionTypes(thisType, collTypes),
	}
	thisAddr := this.Addr
	desc.ThisAddr = &thisAddr

	return &Output{ISA: isa, Descriptor: desc}, nil
}

// compileReadAuthProgram builds the `.readAuth` pseudo-method: prologue
// hashes over every @read-annotated field, a fixed placeholder where a
// normal method's self-destruct flag would sit (keeping the output
// layout's offsets uniform), and the read-admission bit itself (§4.8's
// closing paragraph, §4.9's read_auth() decoder).
func compileReadAuthProgram(comp *Compiler, coll *ast.Collection, thisType abi.Type, collTypes map[string]abi.Type, ctxPK CtxPublicKey) (*Output, error) {
	this, err := readAdviceValue(comp, thisType)
	if err != nil {
		return nil, errors.Wrap(err, "lower: reading this off advice tape")
	}
	comp.ThisSym = &this
	comp.ThisType = &thisType

	var dependent []string
	for _, f := range coll.Fields {
		if hasDecorator(f.Decorators, "read") {
			dependent = append(dependent, f.Name)
		}
	}
	authCtx := CompilePrologue(comp, this, dependent)

	comp.Read(kernels.NewBoolean(comp.Ctx, false))

	CompileEpilogue(comp, this, authCtx)

	admitted := CompileReadAuth(comp, coll, this, ctxPK, nil)
	comp.Read(admitted)

	isa, err := wrapProgram(*comp.Instrs, comp.Planner)
	if err != nil {
		return nil, err
	}

	thisAddr := this.Addr
	desc := abi.Descriptor{
		StdVersion:             StdVersion,
		ThisAddr:               &thisAddr,
		ThisType:               &thisType,
		DependentFields:        dependentFieldList(thisType, dependent),
		ForeignCollections:     foreignCollections(thisType),
		ForeignCollectionTypes: foreignCollectionTypes(thisType, collTypes),
	}
	return &Output{ISA: isa, Descriptor: desc}, nil
}

// wrapProgram runs the unabstraction pass and renders the result as the
// final ISA text, wrapped exactly as §6 specifies: the sole declared
// std-lib import, the dynamic-allocator seed derived from the planner's
// high-water mark, then the encoded body.
func wrapProgram(instrs []ir.Instruction, planner *mem.Planner) (string, error) {
	final := ir.Unabstract(instrs, planner.Allocate)

	var body strings.Builder
	if err := ir.Encode(&body, final, 1); err != nil {
		return "", errors.Wrap(err, "lower: encoding instruction body")
	}

	return fmt.Sprintf("use.std::math::u64\nbegin\n  push.%d\n  mem_store.3\n%send\n", planner.StaticEnd(), body.String()), nil
}

func findCollection(prog *ast.Program, name string) (*ast.Collection, error) {
	for _, n := range prog.Nodes {
		if n.Collection != nil && n.Collection.Name == name {
			return n.Collection, nil
		}
	}
	return nil, errors.Wrapf(ErrCollectionNotFound, "%q", name)
}

func findFunction(coll *ast.Collection, name string) (*ast.Function, error) {
	for _, fn := range coll.Functions {
		if fn.Name == name {
			return fn, nil
		}
	}
	return nil, errors.Wrapf(ErrFunctionNotFound, "%s.%s", coll.Name, name)
}

func collectFunctions(coll *ast.Collection) map[string]*ast.Function {
	out := map[string]*ast.Function{}
	for _, fn := range coll.Functions {
		out[fn.Name] = fn
	}
	return out
}

// fieldType resolves one declared ast.FieldType to its abi.Type. A
// ForeignRecord field resolves to a bare ContractReference (the id
// string), not the referenced collection's full layout: `this` may
// reach a foreign record transitively, and walking into its fields
// would need the advice-map load instruction this compiler does not
// have, so only the reference itself is kept locally readable (see
// DESIGN.md). Array/Map carry no richer element-type grammar in the
// AST, so both close over Float32 the same way resolveParamTypeKind
// already does for parameters.
func fieldType(f ast.Field) abi.Type {
	switch f.Type {
	case ast.FieldString:
		return abi.String()
	case ast.FieldNumber:
		return abi.Float32()
	case ast.FieldBoolean:
		return abi.Boolean()
	case ast.FieldBytes:
		return abi.Bytes()
	case ast.FieldPublicKey:
		return abi.PublicKey()
	case ast.FieldForeignRecord:
		return abi.ContractReference(f.Foreign)
	case ast.FieldArray:
		return abi.Array(abi.Float32())
	case ast.FieldMap:
		return abi.Map(abi.String(), abi.Float32())
	default: // ast.FieldObject
		return abi.Struct("", nil)
	}
}

func collectionStructType(coll *ast.Collection) abi.Type {
	fields := make([]abi.StructField, len(coll.Fields))
	for i, f := range coll.Fields {
		fields[i] = abi.StructField{Name: f.Name, Type: fieldType(f)}
	}
	return abi.Struct(coll.Name, fields)
}

func dependentFieldList(thisType abi.Type, dependent []string) []abi.DependentField {
	var out []abi.DependentField
	for _, name := range dependent {
		f, ok := thisType.Field(name)
		if !ok {
			continue
		}
		out = append(out, abi.DependentField{Name: f.Name, Type: f.Type})
	}
	return out
}

// foreignCollections lists, in field-declaration order, every distinct
// collection name a ContractReference field of `this` names.
func foreignCollections(thisType abi.Type) []string {
	var out []string
	seen := map[string]bool{}
	for _, f := range thisType.Fields {
		if f.Type.Kind == abi.KindContractReference && f.Type.Name != "" && !seen[f.Type.Name] {
			seen[f.Type.Name] = true
			out = append(out, f.Type.Name)
		}
	}
	return out
}

func foreignCollectionTypes(thisType abi.Type, collTypes map[string]abi.Type) map[string]abi.Type {
	out := map[string]abi.Type{}
	for _, name := range foreignCollections(thisType) {
		if t, ok := collTypes[name]; ok {
			out[name] = t
		}
	}
	return out
}

func zeroSources(n uint32) []mem.Source {
	out := make([]mem.Source, n)
	for i := range out {
		out[i] = mem.Immediate(0)
	}
	return out
}

// readAdviceValue reads one value of type t off the advice tape,
// following builtins.go's existing readAdvice* shapes for leaf kinds
// and recursing structurally for Struct/Array/Map/Nullable. Composite
// reads always consume their full declared width regardless of any
// runtime-only presence flag (mirroring ReadCtxPublicKey's fixed-shape
// read of ctx.publicKey), since the tape's consumption order has to be
// fixed at compile time.
func readAdviceValue(comp *Compiler, t abi.Type) (kernels.Symbol, error) {
	switch t.Kind {
	case abi.KindBoolean:
		sym, err := builtinReadAdviceBoolean(comp, nil)
		if err != nil {
			return kernels.Symbol{}, err
		}
		return *sym, nil

	case abi.KindUInt32:
		sym, err := builtinReadAdviceUInt32(comp, nil)
		if err != nil {
			return kernels.Symbol{}, err
		}
		return *sym, nil

	case abi.KindFloat32:
		// Float32 is a raw-bits reinterpretation of a u32 advice word; no
		// dedicated readAdviceFloat32 builtin exists because the wire
		// representation is identical to readAdviceUInt32's.
		sym, err := builtinReadAdviceUInt32(comp, nil)
		if err != nil {
			return kernels.Symbol{}, err
		}
		return kernels.Symbol{Type: abi.Float32(), Addr: sym.Addr}, nil

	case abi.KindString, abi.KindBytes, abi.KindContractReference:
		sym, err := builtinReadAdviceByteLike(t)(comp, nil)
		if err != nil {
			return kernels.Symbol{}, err
		}
		return *sym, nil

	case abi.KindPublicKey:
		sym, err := builtinReadAdvicePublicKey(comp, nil)
		if err != nil {
			return kernels.Symbol{}, err
		}
		return *sym, nil

	case abi.KindStruct:
		result := comp.Alloc(t)
		addr := result.Addr
		for _, f := range t.Fields {
			fv, err := readAdviceValue(comp, f.Type)
			if err != nil {
				return kernels.Symbol{}, err
			}
			copyInto(comp, kernels.Symbol{Type: f.Type, Addr: addr}, fv)
			addr += f.Type.MidenWidth()
		}
		return result, nil

	case abi.KindArray:
		return readAdviceArray(comp, t)

	case abi.KindMap:
		keys, err := readAdviceArray(comp, abi.Array(*t.Key))
		if err != nil {
			return kernels.Symbol{}, err
		}
		vals, err := readAdviceArray(comp, abi.Array(*t.Elem))
		if err != nil {
			return kernels.Symbol{}, err
		}
		result := comp.Alloc(t)
		copyInto(comp, kernels.Symbol{Type: keys.Type, Addr: result.Addr}, keys)
		copyInto(comp, kernels.Symbol{Type: vals.Type, Addr: result.Addr + keys.Type.MidenWidth()}, vals)
		return result, nil

	case abi.KindNullable:
		present, err := builtinReadAdviceBoolean(comp, nil)
		if err != nil {
			return kernels.Symbol{}, err
		}
		inner, err := readAdviceValue(comp, *t.Elem)
		if err != nil {
			return kernels.Symbol{}, err
		}
		result := comp.Alloc(t)
		copyInto(comp, kernels.Symbol{Type: abi.Boolean(), Addr: result.Addr}, *present)
		copyInto(comp, kernels.Symbol{Type: *t.Elem, Addr: result.Addr + 1}, inner)
		return result, nil

	default:
		return kernels.Symbol{}, errors.Errorf("lower: advice tape has no reader for %v", t.Kind)
	}
}

// readAdviceArray reads a u32 length off the tape followed by that many
// t.Elem values, pushing each onto a freshly-grown Array(t.Elem) via a
// run-time While loop (the count is only known at run time, so the
// element reads cannot be unrolled at compile time).
func readAdviceArray(comp *Compiler, t abi.Type) (kernels.Symbol, error) {
	count, err := builtinReadAdviceUInt32(comp, nil)
	if err != nil {
		return kernels.Symbol{}, err
	}
	arr := kernels.NewArray(comp.Ctx, *t.Elem, 0)

	i := kernels.NewUInt32(comp.Ctx, 0)
	bodyBuf := []ir.Instruction{}
	bodyComp := comp.withBuf(&bodyBuf)
	elem, err := readAdviceValue(bodyComp, *t.Elem)
	if err != nil {
		return kernels.Symbol{}, err
	}
	kernels.Push(bodyComp.Ctx, arr, *t.Elem, elem)
	next := kernels.U32Add(bodyComp.Ctx, i, kernels.NewUInt32(bodyComp.Ctx, 1))
	bodyComp.Read(next)
	bodyComp.Write(i, kernels.StackWords(1))

	condBuf := []ir.Instruction{}
	condComp := comp.withBuf(&condBuf)
	lt := kernels.U32Lt(condComp.Ctx, i, *count)
	condComp.Read(lt)

	comp.emitRaw(ir.While(condBuf, bodyBuf))
	return arr, nil
}

// copyInto stores dest.Type.MidenWidth() words read out of src's memory
// into dest's address range, the primitive every advice-read case above
// uses to splice a freshly-read value into the right offset of an
// enclosing struct.
func copyInto(comp *Compiler, dest, src kernels.Symbol) {
	w := dest.Type.MidenWidth()
	srcs := make([]mem.Source, w)
	for i := uint32(0); i < w; i++ {
		srcs[i] = mem.FromMemory(src.Addr + i)
	}
	comp.Write(dest, srcs)
}
