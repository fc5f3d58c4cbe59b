package kernels

import (
	"github.com/polybase/polylang-sub000/internal/abi"
	"github.com/polybase/polylang-sub000/internal/ir"
	"github.com/polybase/polylang-sub000/internal/mem"
)

// Array values are a (capacity, length, data-ptr) header; data is a run
// of capacity*elemWidth words, grown by doubling via dynamicAlloc
// whenever a push would overflow it, per §4.5.

func arrLength(s Symbol) Symbol   { return Symbol{Type: abi.UInt32(), Addr: s.Addr + 1} }
func arrCapacity(s Symbol) Symbol { return Symbol{Type: abi.UInt32(), Addr: s.Addr} }
func arrDataPtr(s Symbol) Symbol  { return Symbol{Type: abi.UInt32(), Addr: s.Addr + 2} }

// NewArray allocates an empty array of element type elem with the given
// initial capacity (which may be zero).
func NewArray(c Ctx, elem abi.Type, capacity uint32) Symbol {
	dataAddr := uint32(0)
	if capacity > 0 {
		dataAddr = c.Planner.Allocate(capacity * elem.MidenWidth())
	}
	sym := c.Alloc(abi.Array(elem))
	c.Write(sym, []mem.Source{
		mem.Immediate(capacity),
		mem.Immediate(0),
		mem.Immediate(dataAddr),
	})
	return sym
}

// elemAddr leaves the address of element index (a UInt32 symbol already
// on the stack) on the stack, given the array's data pointer and the
// element width.
func elemAddrOnStack(c Ctx, arr, index Symbol, elemWidth uint32) {
	c.Read(index)
	*c.Instrs = append(*c.Instrs, ir.Push(elemWidth), ir.Instruction{Op: ir.OpU32CheckedMul})
	c.Read(arrDataPtr(arr))
	*c.Instrs = append(*c.Instrs, ir.Instruction{Op: ir.OpU32CheckedAdd})
}

// Get reads the element at index out of arr's data segment.
func Get(c Ctx, arr Symbol, elem abi.Type, index Symbol) Symbol {
	result := c.Alloc(elem)
	width := elem.MidenWidth()
	for w := uint32(0); w < width; w++ {
		elemAddrOnStack(c, arr, index, width)
		if w > 0 {
			*c.Instrs = append(*c.Instrs, ir.Push(w), ir.Instruction{Op: ir.OpU32CheckedAdd})
		}
		*c.Instrs = append(*c.Instrs, ir.MemLoad(nil))
		a := result.Addr + w
		*c.Instrs = append(*c.Instrs, ir.MemStore(&a))
	}
	return result
}

// Set overwrites the element at index in arr's data segment with value.
func Set(c Ctx, arr Symbol, index, value Symbol) {
	width := value.Type.MidenWidth()
	for w := uint32(0); w < width; w++ {
		a := value.Addr + w
		*c.Instrs = append(*c.Instrs, ir.MemLoad(&a))
		elemAddrOnStack(c, arr, index, width)
		if w > 0 {
			*c.Instrs = append(*c.Instrs, ir.Push(w), ir.Instruction{Op: ir.OpU32CheckedAdd})
		}
		*c.Instrs = append(*c.Instrs, ir.MemStore(nil))
	}
}

// Push appends value to arr, growing the backing store by doubling
// (minimum new capacity 1) when the current one is full. arr's header
// words are updated in place at their existing address; the returned
// Symbol is the same one passed in, for chaining convenience.
func Push(c Ctx, arr Symbol, elem abi.Type, value Symbol) Symbol {
	full := U32Eq(c, arrLength(arr), arrCapacity(arr))

	grownCtx, grownBuf := c.sub()
	grown := growArray(grownCtx, arr, elem)
	grownCtx.Read(grown)
	grownCtx.Write(arr, stackSources(3))

	cond, _ := c.sub()
	cond.Read(full)
	*c.Instrs = append(*c.Instrs, ir.If(*cond.Instrs, *grownBuf, nil))

	Set(c, arr, arrLength(arr), value)

	newLen := U32Add(c, arrLength(arr), NewUInt32(c, 1))
	c.Read(newLen)
	c.Write(arrLength(arr), stackSources(1))
	return arr
}

// growArray doubles arr's capacity (or allocates capacity 1 if it was
// zero), copies the existing elements into the new segment, and returns
// a fresh header with the same length.
func growArray(c Ctx, arr Symbol, elem abi.Type) Symbol {
	width := elem.MidenWidth()

	oneCtx, oneBuf := c.sub()
	one := NewUInt32(oneCtx, 1)
	newCapSym := c.Alloc(abi.UInt32())
	oneCtx.Read(one)
	oneCtx.Write(newCapSym, stackSources(1))

	doubledCtx, doubledBuf := c.sub()
	doubled := U32Mul(doubledCtx, arrCapacity(arr), NewUInt32(doubledCtx, 2))
	doubledCtx.Read(doubled)
	doubledCtx.Write(newCapSym, stackSources(1))

	isZero := U32Eq(c, arrCapacity(arr), NewUInt32(c, 0))
	cond, _ := c.sub()
	cond.Read(isZero)
	*c.Instrs = append(*c.Instrs, ir.If(*cond.Instrs, *oneBuf, *doubledBuf))

	newWords := U32Mul(c, newCapSym, NewUInt32(c, width))
	newData := c.DynamicAlloc(newWords)

	oldLenWords := U32Mul(c, arrLength(arr), NewUInt32(c, width))
	CopyStrStack(c, newData, arrDataPtr(arr), oldLenWords)

	result := c.Alloc(abi.Array(elem))
	c.Write(result, []mem.Source{
		mem.FromMemory(newCapSym.Addr),
		mem.FromMemory(arrLength(arr).Addr),
		mem.FromMemory(newData.Addr),
	})
	return result
}
