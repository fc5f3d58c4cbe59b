// Package kernels implements the per-type constructors, arithmetic,
// comparisons, and composite value operations described in §4.4 and
// §4.5: each function appends the instruction sequence realizing one
// operation and returns the Symbol holding its result.
package kernels

import (
	"github.com/polybase/polylang-sub000/internal/abi"
	"github.com/polybase/polylang-sub000/internal/ir"
	"github.com/polybase/polylang-sub000/internal/mem"
)

// Symbol is the compile-time handle every kernel operates on: a type
// paired with the word-aligned address the memory planner assigned it.
// There is no run-time reference — the address is baked into every
// instruction the kernel emits that touches it.
type Symbol struct {
	Type abi.Type
	Addr uint32
}

// Ctx bundles the instruction buffer and memory planner every kernel
// function threads through, mirroring the Compiler{instructions, memory}
// pair the lowerer assembles.
type Ctx struct {
	Instrs  *[]ir.Instruction
	Planner *mem.Planner
}

func (c Ctx) emit(instrs ...ir.Instruction) {
	*c.Instrs = append(*c.Instrs, instrs...)
}

// Alloc allocates a fresh Symbol of type t.
func (c Ctx) Alloc(t abi.Type) Symbol {
	return Symbol{Type: t, Addr: c.Planner.Allocate(t.MidenWidth())}
}

// Read pushes sym's words onto the stack, topmost-first per mem.Read.
func (c Ctx) Read(sym Symbol) {
	mem.Read(c.Instrs, sym.Addr, sym.Type.MidenWidth())
}

// Write stores values starting at sym's address.
func (c Ctx) Write(sym Symbol, values []mem.Source) {
	mem.Write(c.Instrs, sym.Addr, values)
}

// DynamicAlloc reserves n words from the run-time bump allocator
// (reserved address 3) and returns a UInt32 symbol holding the address
// of the first one, backing the built-in dynamicAlloc(n) intrinsic.
func (c Ctx) DynamicAlloc(n Symbol) Symbol {
	scratch := c.Planner.Allocate(1)
	c.Read(n)
	mem.DynamicAllocN(c.Instrs, scratch)
	result := c.Alloc(abi.UInt32())
	c.Write(result, stackSources(1))
	return result
}

// stackSources returns n mem.Source values that each consume whatever is
// already on the stack, the idiom every kernel uses to store a result
// freshly computed there.
func stackSources(n uint32) []mem.Source {
	out := make([]mem.Source, n)
	for i := range out {
		out[i] = mem.FromStack()
	}
	return out
}

// StackWords is the exported form of stackSources, for callers outside
// this package (the lowerer) that read a value onto the stack and then
// need to write it into a Symbol's memory.
func StackWords(n uint32) []mem.Source { return stackSources(n) }
