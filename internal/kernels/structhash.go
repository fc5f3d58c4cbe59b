package kernels

import (
	"github.com/polybase/polylang-sub000/internal/abi"
	"github.com/polybase/polylang-sub000/internal/digest"
	"github.com/polybase/polylang-sub000/internal/ir"
)

// StructHash computes the struct's content hash by folding each field's
// own hash through an hmerge accumulator, recursing into nested
// structs, per §4.5's "generic_hash at the leaves, hmerge at every
// composite boundary" rule. fieldHash dispatches each leaf/field to the
// scalar or composite hasher appropriate for its type, and is supplied
// by the lowerer so this package needn't know every Type kind's hasher.
func StructHash(c Ctx, s Symbol, fieldHash func(Ctx, abi.Type, Symbol) Symbol) Symbol {
	result := c.Alloc(abi.Hash())
	acc := digest.HMergeAccumulator{Instrs: c.Instrs}
	acc.Init()

	addr := s.Addr
	for _, f := range s.Type.Fields {
		fieldSym := Symbol{Type: f.Type, Addr: addr}
		h := fieldHash(c, f.Type, fieldSym)
		// h is always a 4-word Hash; fold its words in one at a time so
		// each FoldWord sees exactly the accumulator plus a single new
		// word on top, the invariant every hasher in this package relies on.
		for w := uint32(0); w < 4; w++ {
			wordAddr := h.Addr + w
			*c.Instrs = append(*c.Instrs, ir.MemLoad(ir.Addr32(wordAddr)))
			acc.FoldWord()
		}
		addr += f.Type.MidenWidth()
	}

	c.Write(result, stackSources(4))
	return result
}
