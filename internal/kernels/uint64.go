package kernels

import (
	"github.com/polybase/polylang-sub000/internal/abi"
	"github.com/polybase/polylang-sub000/internal/ir"
	"github.com/polybase/polylang-sub000/internal/mem"
)

// NewUInt64 allocates a UInt64 symbol (high word first in memory)
// initialized to v.
func NewUInt64(c Ctx, v uint64) Symbol {
	sym := c.Alloc(abi.UInt64())
	c.Write(sym, []mem.Source{mem.Immediate(uint32(v >> 32)), mem.Immediate(uint32(v))})
	return sym
}

// CastFromUInt32 zero-extends a UInt32 into a UInt64 by pushing a zero
// high word ahead of the value.
func CastFromUInt32(c Ctx, from Symbol) Symbol {
	result := c.Alloc(abi.UInt64())
	c.Read(from)
	c.Write(result, []mem.Source{mem.Immediate(0), mem.FromStack()})
	return result
}

func u64Binary(c Ctx, proc string, resultType abi.Type, a, b Symbol) Symbol {
	result := c.Alloc(resultType)
	c.Read(a)
	c.Read(b)
	*c.Instrs = append(*c.Instrs, ir.Exec(proc))
	c.Write(result, stackSources(resultType.MidenWidth()))
	return result
}

// U64Add, U64Sub delegate to the target's std::math::u64 library, since
// the u32 ISA has no native double-word arithmetic.
func U64Add(c Ctx, a, b Symbol) Symbol {
	return u64Binary(c, "u64::checked_add", abi.UInt64(), a, b)
}
func U64Sub(c Ctx, a, b Symbol) Symbol {
	return u64Binary(c, "u64::checked_sub", abi.UInt64(), a, b)
}
func U64Eq(c Ctx, a, b Symbol) Symbol {
	return u64Binary(c, "u64::checked_eq", abi.Boolean(), a, b)
}
func U64Gte(c Ctx, a, b Symbol) Symbol {
	return u64Binary(c, "u64::checked_gte", abi.Boolean(), a, b)
}
func U64Lte(c Ctx, a, b Symbol) Symbol {
	return u64Binary(c, "u64::checked_lte", abi.Boolean(), a, b)
}
