package kernels

import (
	"github.com/polybase/polylang-sub000/internal/abi"
	"github.com/polybase/polylang-sub000/internal/digest"
	"github.com/polybase/polylang-sub000/internal/ir"
	"github.com/polybase/polylang-sub000/internal/mem"
)

// String, Bytes, and ContractReference share a (length, data-pointer)
// header; byteLikeType picks which Type tag the caller wants attached
// to an otherwise identical layout.

// NewString allocates a String literal: length words of immediate byte
// values plus the (length, data-ptr) header.
func NewString(c Ctx, s string) Symbol { return newByteLike(c, abi.String(), []byte(s)) }

// NewBytes allocates a Bytes literal the same way.
func NewBytes(c Ctx, b []byte) Symbol { return newByteLike(c, abi.Bytes(), b) }

// NewContractReference allocates a ContractReference literal (an id
// string) the same way.
func NewContractReference(c Ctx, collection, id string) Symbol {
	return newByteLike(c, abi.ContractReference(collection), []byte(id))
}

func newByteLike(c Ctx, t abi.Type, data []byte) Symbol {
	dataAddr := c.Planner.Allocate(uint32(len(data)))
	values := make([]mem.Source, len(data))
	for i, b := range data {
		values[i] = mem.Immediate(uint32(b))
	}
	mem.Write(c.Instrs, dataAddr, values)

	sym := c.Alloc(t)
	c.Write(sym, []mem.Source{mem.Immediate(uint32(len(data))), mem.Immediate(dataAddr)})
	return sym
}

func length(c Ctx, s Symbol) Symbol {
	return Symbol{Type: abi.UInt32(), Addr: s.Addr}
}

func dataPtr(c Ctx, s Symbol) Symbol {
	return Symbol{Type: abi.UInt32(), Addr: s.Addr + 1}
}

// CopyStrStack emits a straight-line "while len>0 copy" loop that copies
// n bytes from srcPtr to destPtr, one word at a time — the same shape
// concat/startsWith/includes/indexOf all build on.
func CopyStrStack(c Ctx, destPtr, srcPtr, n Symbol) {
	i := c.Alloc(abi.UInt32())
	c.Write(i, []mem.Source{mem.Immediate(0)})

	bodyCtx, bodyBuf := c.sub()
	// *destPtr[i] = *srcPtr[i]
	bodyCtx.Read(srcPtr)
	bodyCtx.Read(i)
	*bodyCtx.Instrs = append(*bodyCtx.Instrs, ir.Instruction{Op: ir.OpU32CheckedAdd})
	*bodyCtx.Instrs = append(*bodyCtx.Instrs, ir.MemLoad(nil))
	bodyCtx.Read(destPtr)
	bodyCtx.Read(i)
	*bodyCtx.Instrs = append(*bodyCtx.Instrs, ir.Instruction{Op: ir.OpU32CheckedAdd})
	*bodyCtx.Instrs = append(*bodyCtx.Instrs, ir.MemStore(nil))
	next := U32Add(bodyCtx, i, NewUInt32(bodyCtx, 1))
	bodyCtx.Read(next)
	bodyCtx.Write(i, stackSources(1))

	condCtx, condBuf := c.sub()
	lt := U32Lt(condCtx, i, n)
	condCtx.Read(lt)

	*c.Instrs = append(*c.Instrs, ir.While(*condBuf, *bodyBuf))
}

// Concat reserves len(a)+len(b) fresh words from the run-time allocator,
// copies each half in turn, and returns a fresh header of the same Type
// as a.
func Concat(c Ctx, a, b Symbol) Symbol {
	totalLen := U32Add(c, length(c, a), length(c, b))
	destPtr := c.DynamicAlloc(totalLen)

	CopyStrStack(c, destPtr, dataPtr(c, a), length(c, a))

	bOffsetDest := U32Add(c, destPtr, length(c, a))
	CopyStrStack(c, bOffsetDest, dataPtr(c, b), length(c, b))

	result := c.Alloc(a.Type)
	c.Write(result, []mem.Source{mem.FromMemory(totalLen.Addr), mem.FromMemory(destPtr.Addr)})
	return result
}

// Eq short-circuits on mismatched length, otherwise walks bytewise.
func Eq(c Ctx, a, b Symbol) Symbol {
	lenEq := U32Eq(c, length(c, a), length(c, b))
	result := c.Alloc(abi.Boolean())

	thenCtx, thenBuf := c.sub()
	bytesEq := bytewiseEqual(thenCtx, a, b)
	thenCtx.Read(bytesEq)
	thenCtx.Write(result, stackSources(1))

	elseCtx, elseBuf := c.sub()
	elseCtx.Write(result, []mem.Source{mem.Immediate(0)})

	cond, _ := c.sub()
	cond.Read(lenEq)
	*c.Instrs = append(*c.Instrs, ir.If(*cond.Instrs, *thenBuf, *elseBuf))
	return result
}

func bytewiseEqual(c Ctx, a, b Symbol) Symbol {
	result := NewBoolean(c, true)
	i := NewUInt32(c, 0)

	bodyCtx, bodyBuf := c.sub()
	bodyCtx.Read(dataPtr(bodyCtx, a))
	bodyCtx.Read(i)
	*bodyCtx.Instrs = append(*bodyCtx.Instrs, ir.Instruction{Op: ir.OpU32CheckedAdd}, ir.MemLoad(nil))
	bodyCtx.Read(dataPtr(bodyCtx, b))
	bodyCtx.Read(i)
	*bodyCtx.Instrs = append(*bodyCtx.Instrs, ir.Instruction{Op: ir.OpU32CheckedAdd}, ir.MemLoad(nil))
	*bodyCtx.Instrs = append(*bodyCtx.Instrs, ir.Instruction{Op: ir.OpU32CheckedEq})
	byteEq := bodyCtx.Alloc(abi.Boolean())
	bodyCtx.Write(byteEq, stackSources(1))

	step := And(bodyCtx, result, byteEq)
	bodyCtx.Read(step)
	bodyCtx.Write(result, stackSources(1))

	next := U32Add(bodyCtx, i, NewUInt32(bodyCtx, 1))
	bodyCtx.Read(next)
	bodyCtx.Write(i, stackSources(1))

	condCtx, condBuf := c.sub()
	lt := U32Lt(condCtx, i, length(condCtx, a))
	condCtx.Read(lt)

	*c.Instrs = append(*c.Instrs, ir.While(*condBuf, *bodyBuf))
	return result
}

// Hash folds each byte through a 4-element hmerge accumulator, per
// §4.5's byte-oriented string/bytes hasher.
func Hash(c Ctx, s Symbol) Symbol {
	result := c.Alloc(abi.Hash())
	acc := digest.HMergeAccumulator{Instrs: c.Instrs}
	acc.Init()

	i := NewUInt32(c, 0)
	bodyCtx, bodyBuf := c.sub()
	bodyCtx.Read(dataPtr(bodyCtx, s))
	bodyCtx.Read(i)
	*bodyCtx.Instrs = append(*bodyCtx.Instrs, ir.Instruction{Op: ir.OpU32CheckedAdd}, ir.MemLoad(nil))
	bodyAcc := digest.HMergeAccumulator{Instrs: bodyCtx.Instrs}
	bodyAcc.FoldWord()
	next := U32Add(bodyCtx, i, NewUInt32(bodyCtx, 1))
	bodyCtx.Read(next)
	bodyCtx.Write(i, stackSources(1))

	condCtx, condBuf := c.sub()
	lt := U32Lt(condCtx, i, length(condCtx, s))
	condCtx.Read(lt)

	*c.Instrs = append(*c.Instrs, ir.While(*condBuf, *bodyBuf))
	c.Write(result, stackSources(4))
	return result
}
