// Package ir defines the instruction set emitted by the lowerer: concrete
// Miden-style stack opcodes, structured control nodes, and the abstract
// early-exit markers that the unabstraction pass rewrites before encoding.
package ir

// Op identifies a concrete, non-structured instruction.
type Op int

const (
	OpPush Op = iota
	OpDrop
	OpDup
	OpMovUp
	OpMovDown
	OpSwap

	OpAssert
	OpAssertZero

	OpU32CheckedAdd
	OpU32CheckedSub
	OpU32CheckedMul
	OpU32CheckedDiv
	OpU32CheckedMod
	OpU32CheckedAnd
	OpU32CheckedOr
	OpU32CheckedXor
	OpU32CheckedShl
	OpU32CheckedShr
	OpU32CheckedEq
	OpU32CheckedNeq
	OpU32CheckedLt
	OpU32CheckedLte
	OpU32CheckedGt
	OpU32CheckedGte

	OpU32WrappingAdd
	OpU32WrappingSub
	OpU32WrappingMul

	OpAnd
	OpOr
	OpNot

	OpEq
	OpEqz

	OpMemStore
	OpMemLoad
	OpMemLoadW
	OpMemStoreW

	OpAdvPush

	OpHMerge

	OpExec

	OpComment
)

// Instruction is a single emitted node, either a concrete leaf instruction,
// a structured control node, or (before unabstraction) an abstract marker.
type Instruction struct {
	Op Op

	// Immediate/address operands. Addr is a pointer so "no immediate
	// address" (operate purely on the stack) is representable.
	Imm     uint32
	Addr    *uint32
	ExecRef string // namespaced std-lib call, e.g. "u64::checked_add"
	Comment string

	// Structured control. Kind selects which of these is populated.
	Kind ControlKind
	Cond []Instruction
	Then []Instruction
	Else []Instruction
	Body []Instruction

	Abstract AbstractKind
	Inlined  []Instruction
}

// ControlKind distinguishes leaf instructions from structured control nodes.
type ControlKind int

const (
	ControlNone ControlKind = iota
	ControlIf
	ControlWhile
	ControlWhileTrueRaw
	ControlAbstract
)

// AbstractKind enumerates the early-exit markers the unabstraction pass
// rewrites. They must never reach the encoder directly.
type AbstractKind int

const (
	AbstractNone AbstractKind = iota
	AbstractBreak
	AbstractReturn
	AbstractInlinedFunction
)

// Push emits a literal field element.
func Push(v uint32) Instruction { return Instruction{Op: OpPush, Imm: v} }

// Drop discards the top stack element.
func Drop() Instruction { return Instruction{Op: OpDrop} }

// Dup duplicates the nth stack element (0 = top) onto the top.
func Dup(n uint32) Instruction { return Instruction{Op: OpDup, Imm: n} }

// MovUp moves the nth stack element to the top.
func MovUp(n uint32) Instruction { return Instruction{Op: OpMovUp, Imm: n} }

// MovDown moves the top stack element down to position n.
func MovDown(n uint32) Instruction { return Instruction{Op: OpMovDown, Imm: n} }

// Swap exchanges the top two stack elements.
func Swap() Instruction { return Instruction{Op: OpSwap} }

// Assert traps unless the top of stack is non-zero, consuming it.
func Assert() Instruction { return Instruction{Op: OpAssert} }

// AssertZero traps unless the top of stack is zero, consuming it.
func AssertZero() Instruction { return Instruction{Op: OpAssertZero} }

// MemStore stores the top of stack to addr (or a dynamic address popped
// from the stack when addr is nil).
func MemStore(addr *uint32) Instruction { return Instruction{Op: OpMemStore, Addr: addr} }

// MemLoad pushes the word at addr (or a dynamic address popped from the
// stack when addr is nil).
func MemLoad(addr *uint32) Instruction { return Instruction{Op: OpMemLoad, Addr: addr} }

// MemLoadW pushes the 4-word block at addr as a single word-group.
func MemLoadW(addr *uint32) Instruction { return Instruction{Op: OpMemLoadW, Addr: addr} }

// MemStoreW stores a 4-word block from the stack to addr.
func MemStoreW(addr *uint32) Instruction { return Instruction{Op: OpMemStoreW, Addr: addr} }

// AdvPush pulls n words off the advice tape onto the stack.
func AdvPush(n uint32) Instruction { return Instruction{Op: OpAdvPush, Imm: n} }

// HMerge applies the VM's 4-element Poseidon/Rescue permutation.
func HMerge() Instruction { return Instruction{Op: OpHMerge} }

// Exec invokes a namespaced standard-library procedure, e.g.
// "u64::checked_add".
func Exec(ref string) Instruction { return Instruction{Op: OpExec, ExecRef: ref} }

// Comment emits a textual comment with no runtime effect.
func Comment(s string) Instruction { return Instruction{Op: OpComment, Comment: s} }

// If builds a structured conditional. Neither branch may be empty in the
// target ISA; the encoder fills an empty branch with "push.0 drop".
func If(cond, then, els []Instruction) Instruction {
	return Instruction{Kind: ControlIf, Cond: cond, Then: then, Else: els}
}

// While builds a structured loop whose condition is re-checked at the top
// and the tail of the body.
func While(cond, body []Instruction) Instruction {
	return Instruction{Kind: ControlWhile, Cond: cond, Body: body}
}

// WhileTrueRaw builds an unconditional loop whose termination is entirely
// the responsibility of the body (used internally by the unabstracter).
func WhileTrueRaw(body []Instruction) Instruction {
	return Instruction{Kind: ControlWhileTrueRaw, Body: body}
}

// Break marks an abstract early exit from the nearest enclosing loop.
func Break() Instruction {
	return Instruction{Kind: ControlAbstract, Abstract: AbstractBreak}
}

// Return marks an abstract early exit from the enclosing function.
func Return() Instruction {
	return Instruction{Kind: ControlAbstract, Abstract: AbstractReturn}
}

// InlinedFunction marks a call-site-inlined function body whose own
// Return markers must not escape past this boundary.
func InlinedFunction(body []Instruction) Instruction {
	return Instruction{Kind: ControlAbstract, Abstract: AbstractInlinedFunction, Inlined: body}
}

// IsAbstract reports whether i is (or contains, at the top level) an
// unlowered early-exit marker.
func (i Instruction) IsAbstract() bool {
	return i.Kind == ControlAbstract
}

func addr(a uint32) *uint32 { return &a }

// Addr32 is a convenience constructor for a non-nil immediate address.
func Addr32(a uint32) *uint32 { return addr(a) }
