package kernels

import (
	"github.com/polybase/polylang-sub000/internal/abi"
	"github.com/polybase/polylang-sub000/internal/ir"
	"github.com/polybase/polylang-sub000/internal/mem"
)

// NewBoolean allocates a Boolean symbol initialized to v.
func NewBoolean(c Ctx, v bool) Symbol {
	sym := c.Alloc(abi.Boolean())
	imm := uint32(0)
	if v {
		imm = 1
	}
	c.Write(sym, []mem.Source{mem.Immediate(imm)})
	return sym
}

// And computes a && b natively: both cells hold 0/1, so bitwise AND is
// logical AND.
func And(c Ctx, a, b Symbol) Symbol {
	result := c.Alloc(abi.Boolean())
	c.Read(a)
	c.Read(b)
	*c.Instrs = append(*c.Instrs, ir.Instruction{Op: ir.OpAnd})
	c.Write(result, stackSources(1))
	return result
}

// Or computes a || b the same way, via native OR over 0/1.
func Or(c Ctx, a, b Symbol) Symbol {
	result := c.Alloc(abi.Boolean())
	c.Read(a)
	c.Read(b)
	*c.Instrs = append(*c.Instrs, ir.Instruction{Op: ir.OpOr})
	c.Write(result, stackSources(1))
	return result
}

// Eq compares two booleans for equality.
func BoolEq(c Ctx, a, b Symbol) Symbol {
	result := c.Alloc(abi.Boolean())
	c.Read(a)
	c.Read(b)
	*c.Instrs = append(*c.Instrs, ir.Instruction{Op: ir.OpEq})
	c.Write(result, stackSources(1))
	return result
}
