package lower

import (
	"github.com/pkg/errors"

	"github.com/polybase/polylang-sub000/internal/abi"
	"github.com/polybase/polylang-sub000/internal/ir"
	"github.com/polybase/polylang-sub000/internal/kernels"
	"github.com/polybase/polylang-sub000/internal/mem"
)

// ErrType is returned when a dispatch sees an operand combination no
// kernel handles.
var ErrType = errors.New("type error")

// ErrStructHasNoField is returned by field access/assignment against an
// unknown struct field name.
var ErrStructHasNoField = errors.New("struct has no such field")

// Builtin is a process-wide intrinsic registered in the built-in scope
// (§4.7): given the already-lowered argument Symbols, it emits whatever
// IR realizes the call and returns the result Symbol, or nil for
// statement-only intrinsics like log/assert/comment.
type Builtin func(comp *Compiler, args []kernels.Symbol) (*kernels.Symbol, error)

// Compiler threads the instruction buffer and memory planner through
// expression/statement lowering, plus the per-call state that varies
// with which function is presently being inlined: its return slot (so
// `return expr` knows where to write) and its `this` binding.
type Compiler struct {
	kernels.Ctx

	ThisSym  *kernels.Symbol
	ThisType *abi.Type

	ReturnSlot *kernels.Symbol
	ReturnType *abi.Type

	// CollectionTypes holds the resolved Struct abi.Type for every
	// collection registered so far in this compile, keyed by name, so a
	// Record/ForeignRecord parameter or `this` binding can resolve
	// without a separate type-checking pass (§4.8 populates this before
	// lowering a collection's methods).
	CollectionTypes map[string]abi.Type

	// SelfDestruct is the Boolean Symbol the built-in selfdestruct()
	// writes `true` into; nil outside a collection method body, where
	// the intrinsic has nothing to flag (§4.8 step 4).
	SelfDestruct *kernels.Symbol
}

// NewCompiler constructs a Compiler sharing the given instruction buffer
// and memory planner.
func NewCompiler(instrs *[]ir.Instruction, planner *mem.Planner) *Compiler {
	return &Compiler{Ctx: kernels.Ctx{Instrs: instrs, Planner: planner}, CollectionTypes: map[string]abi.Type{}}
}

// child returns a Compiler over the same buffer/planner/this-binding but
// a fresh return slot/type, the state an inlined function call needs
// while its body compiles (§4.6's "fresh scope... Returns confined").
func (c *Compiler) child(returnSlot *kernels.Symbol, returnType *abi.Type) *Compiler {
	return &Compiler{
		Ctx:             c.Ctx,
		ThisSym:         c.ThisSym,
		ThisType:        c.ThisType,
		ReturnSlot:      returnSlot,
		ReturnType:      returnType,
		CollectionTypes: c.CollectionTypes,
		SelfDestruct:    c.SelfDestruct,
	}
}

// withBuf returns a Compiler identical to c but writing into a fresh
// instruction buffer — the building block every structured-control
// branch (If/While/For/inlined call body) needs pre-built before it can
// be spliced into an ir.If/ir.While/ir.InlinedFunction node.
func (c *Compiler) withBuf(buf *[]ir.Instruction) *Compiler {
	cp := *c
	cp.Ctx.Instrs = buf
	return &cp
}
