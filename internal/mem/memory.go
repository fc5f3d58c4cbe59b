// Package mem implements the compiler's memory planner: a monotonic bump
// allocator over the VM's word-addressed memory, plus the straight-line
// write/read instruction sequences every kernel builds on.
package mem

import "github.com/polybase/polylang-sub000/internal/ir"

// Reserved memory addresses, fixed by the ABI/runtime contract.
const (
	AddrNull          = 0
	AddrErrorStrLen   = 1
	AddrErrorStrData  = 2
	AddrDynamicAlloc  = 3
	AddrLogListTail   = 4
	AddrLogListHead   = 5
	FirstStaticAddr   = 6
)

// Source describes where one word of a write comes from: a compile-time
// immediate, a previously-written memory cell, or whatever is already on
// top of the stack.
type Source struct {
	kind sourceKind
	imm  uint32
	addr uint32
}

type sourceKind int

const (
	sourceStack sourceKind = iota
	sourceImmediate
	sourceMemory
)

// FromStack consumes whatever value is already on top of the stack.
func FromStack() Source { return Source{kind: sourceStack} }

// Immediate pushes a compile-time constant.
func Immediate(v uint32) Source { return Source{kind: sourceImmediate, imm: v} }

// FromMemory loads a previously-written word.
func FromMemory(addr uint32) Source { return Source{kind: sourceMemory, addr: addr} }

func (s Source) load(out *[]ir.Instruction) {
	switch s.kind {
	case sourceImmediate:
		*out = append(*out, ir.Push(s.imm))
	case sourceMemory:
		*out = append(*out, ir.MemLoad(ir.Addr32(s.addr)))
	case sourceStack:
		// nothing to do, value is already there
	}
}

// Planner is the compiler's static allocator. The zero value is not
// ready for use; call New.
type Planner struct {
	next uint32
}

// New returns a Planner whose bump pointer starts past the reserved
// addresses (0-5).
func New() *Planner {
	return &Planner{next: FirstStaticAddr}
}

// Allocate reserves n consecutive words and returns the address of the
// first one.
func (p *Planner) Allocate(n uint32) uint32 {
	addr := p.next
	p.next += n
	return addr
}

// StaticEnd returns the address one past the last word ever allocated —
// the value baked into the emitted program's `push.<N>; mem_store.3`
// prologue that seeds the runtime's dynamic-allocation bump pointer.
func (p *Planner) StaticEnd() uint32 {
	return p.next
}

// Write emits the instruction sequence that stores each source in
// values, in order, starting at startAddr: startAddr holds values[0],
// startAddr+1 holds values[1], and so on.
func Write(out *[]ir.Instruction, startAddr uint32, values []Source) {
	addr := startAddr
	for _, v := range values {
		v.load(out)
		a := addr
		*out = append(*out, ir.MemStore(&a))
		addr++
	}
}

// Read emits the instruction sequence that pushes count words starting
// at startAddr onto the stack, topmost-first ordered so the word at
// startAddr ends up on top.
func Read(out *[]ir.Instruction, startAddr, count uint32) {
	for i := uint32(1); i <= count; i++ {
		a := startAddr + count - i
		*out = append(*out, ir.MemLoad(&a))
	}
}

func dynAllocAddr() *uint32 {
	a := uint32(AddrDynamicAlloc)
	return &a
}

// DynamicAllocN emits the built-in dynamicAlloc(n) intrinsic (§4.7).
// Given n already on top of the stack, it bumps the run-time allocator
// at reserved address 3 by n words, via a scratch word at scratchAddr,
// and leaves the address of the first newly-reserved word on top.
func DynamicAllocN(out *[]ir.Instruction, scratchAddr uint32) {
	scratch := scratchAddr
	*out = append(*out, ir.MemStore(&scratch))        // scratch = n
	*out = append(*out, ir.MemLoad(dynAllocAddr()))    // push old ptr
	*out = append(*out, ir.MemLoad(&scratch))          // push n
	*out = append(*out, ir.MemLoad(dynAllocAddr()))    // push old ptr
	newPtrOp := ir.Instruction{Op: ir.OpU32CheckedAdd} // old ptr + n
	*out = append(*out, newPtrOp)
	*out = append(*out, ir.MemStore(dynAllocAddr())) // address 3 = old ptr + n
	// top of stack is now the old pointer, pushed first above
}
