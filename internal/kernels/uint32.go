package kernels

import (
	"github.com/polybase/polylang-sub000/internal/abi"
	"github.com/polybase/polylang-sub000/internal/ir"
	"github.com/polybase/polylang-sub000/internal/mem"
)

// NewUInt32 allocates a UInt32 symbol initialized to v.
func NewUInt32(c Ctx, v uint32) Symbol {
	sym := c.Alloc(abi.UInt32())
	c.Write(sym, []mem.Source{mem.Immediate(v)})
	return sym
}

func u32Binary(c Ctx, op ir.Op, resultType abi.Type, a, b Symbol) Symbol {
	result := c.Alloc(resultType)
	c.Read(a)
	c.Read(b)
	*c.Instrs = append(*c.Instrs, ir.Instruction{Op: op})
	c.Write(result, stackSources(resultType.MidenWidth()))
	return result
}

// U32Add, U32Sub, U32Mul, U32Div, U32Mod map directly onto the target's
// checked u32 opcodes; overflow or division-by-zero is a VM assertion
// failure, not a Go-level error.
func U32Add(c Ctx, a, b Symbol) Symbol { return u32Binary(c, ir.OpU32CheckedAdd, abi.UInt32(), a, b) }
func U32Sub(c Ctx, a, b Symbol) Symbol { return u32Binary(c, ir.OpU32CheckedSub, abi.UInt32(), a, b) }
func U32Mul(c Ctx, a, b Symbol) Symbol { return u32Binary(c, ir.OpU32CheckedMul, abi.UInt32(), a, b) }
func U32Div(c Ctx, a, b Symbol) Symbol { return u32Binary(c, ir.OpU32CheckedDiv, abi.UInt32(), a, b) }
func U32Mod(c Ctx, a, b Symbol) Symbol { return u32Binary(c, ir.OpU32CheckedMod, abi.UInt32(), a, b) }

func U32Eq(c Ctx, a, b Symbol) Symbol  { return u32Binary(c, ir.OpU32CheckedEq, abi.Boolean(), a, b) }
func U32Neq(c Ctx, a, b Symbol) Symbol { return u32Binary(c, ir.OpU32CheckedNeq, abi.Boolean(), a, b) }
func U32Lt(c Ctx, a, b Symbol) Symbol  { return u32Binary(c, ir.OpU32CheckedLt, abi.Boolean(), a, b) }
func U32Lte(c Ctx, a, b Symbol) Symbol { return u32Binary(c, ir.OpU32CheckedLte, abi.Boolean(), a, b) }
func U32Gt(c Ctx, a, b Symbol) Symbol  { return u32Binary(c, ir.OpU32CheckedGt, abi.Boolean(), a, b) }
func U32Gte(c Ctx, a, b Symbol) Symbol { return u32Binary(c, ir.OpU32CheckedGte, abi.Boolean(), a, b) }

func U32Shl(c Ctx, a, b Symbol) Symbol { return u32Binary(c, ir.OpU32CheckedShl, abi.UInt32(), a, b) }
func U32Shr(c Ctx, a, b Symbol) Symbol { return u32Binary(c, ir.OpU32CheckedShr, abi.UInt32(), a, b) }

// U32WrappingAdd, U32WrappingSub, U32WrappingMul back the built-in
// intrinsics of the same name (§4.7) — unchecked arithmetic for callers
// that want modular wraparound instead of an assertion trap.
func U32WrappingAdd(c Ctx, a, b Symbol) Symbol {
	return u32Binary(c, ir.OpU32WrappingAdd, abi.UInt32(), a, b)
}
func U32WrappingSub(c Ctx, a, b Symbol) Symbol {
	return u32Binary(c, ir.OpU32WrappingSub, abi.UInt32(), a, b)
}
func U32WrappingMul(c Ctx, a, b Symbol) Symbol {
	return u32Binary(c, ir.OpU32WrappingMul, abi.UInt32(), a, b)
}
func U32CheckedXor(c Ctx, a, b Symbol) Symbol {
	return u32Binary(c, ir.OpU32CheckedXor, abi.UInt32(), a, b)
}
