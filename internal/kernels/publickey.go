package kernels

import (
	"github.com/polybase/polylang-sub000/internal/abi"
	"github.com/polybase/polylang-sub000/internal/digest"
	"github.com/polybase/polylang-sub000/internal/ir"
	"github.com/polybase/polylang-sub000/internal/mem"
)

// PublicKey values are four scalar header words (kty, crv, alg, use)
// followed by a pointer to 64 raw x||y bytes, mirroring abi.Value's
// PublicKeyValue and abi.Type's fixed PublicKey width.

func pkKty(s Symbol) Symbol { return Symbol{Type: abi.UInt32(), Addr: s.Addr} }
func pkCrv(s Symbol) Symbol { return Symbol{Type: abi.UInt32(), Addr: s.Addr + 1} }
func pkAlg(s Symbol) Symbol { return Symbol{Type: abi.UInt32(), Addr: s.Addr + 2} }
func pkUse(s Symbol) Symbol { return Symbol{Type: abi.UInt32(), Addr: s.Addr + 3} }
func pkPtr(s Symbol) Symbol { return Symbol{Type: abi.UInt32(), Addr: s.Addr + 4} }

// NewPublicKey allocates a PublicKey literal from its four header
// scalars and the 64 raw bytes of the concatenated curve point.
func NewPublicKey(c Ctx, kty, crv, alg, use uint32, xy [64]byte) Symbol {
	dataAddr := c.Planner.Allocate(64)
	values := make([]mem.Source, 64)
	for i, b := range xy {
		values[i] = mem.Immediate(uint32(b))
	}
	mem.Write(c.Instrs, dataAddr, values)

	sym := c.Alloc(abi.PublicKey())
	c.Write(sym, []mem.Source{
		mem.Immediate(kty), mem.Immediate(crv), mem.Immediate(alg), mem.Immediate(use),
		mem.Immediate(dataAddr),
	})
	return sym
}

// PublicKeyEq compares the four header scalars and all 64 point bytes.
func PublicKeyEq(c Ctx, a, b Symbol) Symbol {
	headerEq := And(c, And(c, U32Eq(c, pkKty(a), pkKty(b)), U32Eq(c, pkCrv(a), pkCrv(b))),
		And(c, U32Eq(c, pkAlg(a), pkAlg(b)), U32Eq(c, pkUse(a), pkUse(b))))

	pointEq := bytewisePointEqual(c, pkPtr(a), pkPtr(b))
	return And(c, headerEq, pointEq)
}

// PublicKeyPointEq compares only the 64 raw x||y point bytes, ignoring
// the four header scalars — the comparison a compile-time literal public
// key (which carries no kty/crv/alg/use of its own) needs against a
// caller-supplied key.
func PublicKeyPointEq(c Ctx, a, b Symbol) Symbol {
	return bytewisePointEqual(c, pkPtr(a), pkPtr(b))
}

// bytewisePointEqual compares 64 bytes starting at the two given
// pointers, the fixed-length analogue of bytewiseEqual.
func bytewisePointEqual(c Ctx, ptrA, ptrB Symbol) Symbol {
	result := NewBoolean(c, true)
	i := NewUInt32(c, 0)

	bodyCtx, bodyBuf := c.sub()
	bodyCtx.Read(ptrA)
	bodyCtx.Read(i)
	*bodyCtx.Instrs = append(*bodyCtx.Instrs, ir.Instruction{Op: ir.OpU32CheckedAdd}, ir.MemLoad(nil))
	bodyCtx.Read(ptrB)
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
	lt := U32Lt(condCtx, i, NewUInt32(condCtx, 64))
	condCtx.Read(lt)

	*c.Instrs = append(*c.Instrs, ir.While(*condBuf, *bodyBuf))
	return result
}

// PublicKeyHash folds the four header scalars and the 64 point bytes
// through an hmerge accumulator, the same family of hasher as the
// string/bytes and struct hashers.
func PublicKeyHash(c Ctx, pk Symbol) Symbol {
	result := c.Alloc(abi.Hash())
	acc := digest.HMergeAccumulator{Instrs: c.Instrs}
	acc.Init()

	for _, field := range []Symbol{pkKty(pk), pkCrv(pk), pkAlg(pk), pkUse(pk)} {
		c.Read(field)
		acc.FoldWord()
	}

	i := NewUInt32(c, 0)
	bodyCtx, bodyBuf := c.sub()
	bodyCtx.Read(pkPtr(pk))
	bodyCtx.Read(i)
	*bodyCtx.Instrs = append(*bodyCtx.Instrs, ir.Instruction{Op: ir.OpU32CheckedAdd}, ir.MemLoad(nil))
	bodyAcc := digest.HMergeAccumulator{Instrs: bodyCtx.Instrs}
	bodyAcc.FoldWord()
	next := U32Add(bodyCtx, i, NewUInt32(bodyCtx, 1))
	bodyCtx.Read(next)
	bodyCtx.Write(i, stackSources(1))

	condCtx, condBuf := c.sub()
	lt := U32Lt(condCtx, i, NewUInt32(condCtx, 64))
	condCtx.Read(lt)

	*c.Instrs = append(*c.Instrs, ir.While(*condBuf, *bodyBuf))
	c.Write(result, stackSources(4))
	return result
}
