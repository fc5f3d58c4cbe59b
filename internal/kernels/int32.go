package kernels

import (
	"github.com/polybase/polylang-sub000/internal/abi"
	"github.com/polybase/polylang-sub000/internal/ir"
	"github.com/polybase/polylang-sub000/internal/mem"
)

const int32Min = uint32(0x80000000)

// sub returns a child Ctx sharing the same memory planner but writing
// into a fresh instruction buffer, the building block for assembling
// the Cond/Then/Else branches ir.If/ir.While need pre-built.
func (c Ctx) sub() (Ctx, *[]ir.Instruction) {
	buf := []ir.Instruction{}
	return Ctx{Instrs: &buf, Planner: c.Planner}, &buf
}

// NewInt32 allocates an Int32 symbol initialized to v, stored as its
// two's-complement bit pattern in a single u32 cell.
func NewInt32(c Ctx, v int32) Symbol {
	sym := c.Alloc(abi.Int32())
	c.Write(sym, []mem.Source{mem.Immediate(uint32(v))})
	return sym
}

func asU32(s Symbol) Symbol { return Symbol{Type: abi.UInt32(), Addr: s.Addr} }
func asI32(s Symbol) Symbol { return Symbol{Type: abi.Int32(), Addr: s.Addr} }

// signBit extracts bit 31 (0 = non-negative, 1 = negative) via a
// logical right shift, exactly as §4.4 describes.
func signBit(c Ctx, x Symbol) Symbol {
	return U32Shr(c, asU32(x), NewUInt32(c, 31))
}

// negateRaw computes the two's-complement negation of x's bit pattern,
// trapping if x is INT32_MIN (whose negation does not fit in 32 bits).
func negateRaw(c Ctx, x Symbol) Symbol {
	result := c.Alloc(abi.UInt32())
	c.Read(asU32(x))
	*c.Instrs = append(*c.Instrs, ir.Push(int32Min), ir.Instruction{Op: ir.OpU32CheckedEq}, ir.AssertZero())
	*c.Instrs = append(*c.Instrs, ir.Push(0))
	c.Read(asU32(x))
	*c.Instrs = append(*c.Instrs, ir.Instruction{Op: ir.OpU32WrappingSub})
	c.Write(result, stackSources(1))
	return result
}

// Negate is the built-in signed negation used by unary minus.
func Negate(c Ctx, x Symbol) Symbol { return asI32(negateRaw(c, x)) }

// Abs returns |x|, trapping on INT32_MIN exactly like Negate.
func Abs(c Ctx, x Symbol) Symbol {
	result := c.Alloc(abi.UInt32())
	sign := signBit(c, x)

	thenCtx, thenBuf := c.sub()
	neg := negateRaw(thenCtx, x)
	thenCtx.Read(neg)
	thenCtx.Write(result, stackSources(1))

	elseCtx, elseBuf := c.sub()
	elseCtx.Read(asU32(x))
	elseCtx.Write(result, stackSources(1))

	cond, _ := c.sub()
	cond.Read(sign)
	*c.Instrs = append(*c.Instrs, ir.If(*cond.Instrs, *thenBuf, *elseBuf))
	return asI32(result)
}

func assertSignsEqual(c Ctx, a, b Symbol) {
	c.Read(a)
	c.Read(b)
	*c.Instrs = append(*c.Instrs, ir.Instruction{Op: ir.OpEq}, ir.Assert())
}

// Add performs wrapping two's-complement addition, then asserts the
// result's sign matches the operands' shared sign whenever they agree
// (mismatched operand signs can never overflow).
func Add(c Ctx, a, b Symbol) Symbol {
	raw := c.Alloc(abi.UInt32())
	c.Read(asU32(a))
	c.Read(asU32(b))
	*c.Instrs = append(*c.Instrs, ir.Instruction{Op: ir.OpU32WrappingAdd})
	c.Write(raw, stackSources(1))

	signA, signB, signR := signBit(c, a), signBit(c, b), signBit(c, raw)
	signsEqual := U32Eq(c, signA, signB)

	thenCtx, thenBuf := c.sub()
	assertSignsEqual(thenCtx, signA, signR)

	cond, _ := c.sub()
	cond.Read(signsEqual)
	*c.Instrs = append(*c.Instrs, ir.If(*cond.Instrs, *thenBuf, nil))
	return asI32(raw)
}

// Sub performs wrapping two's-complement subtraction. When the operand
// signs differ, the result's sign is asserted to equal the minuend's.
func Sub(c Ctx, a, b Symbol) Symbol {
	raw := c.Alloc(abi.UInt32())
	c.Read(asU32(a))
	c.Read(asU32(b))
	*c.Instrs = append(*c.Instrs, ir.Instruction{Op: ir.OpU32WrappingSub})
	c.Write(raw, stackSources(1))

	signA, signB, signR := signBit(c, a), signBit(c, b), signBit(c, raw)
	signsEqual := U32Eq(c, signA, signB)

	thenCtx, thenBuf := c.sub()
	assertSignsEqual(thenCtx, signA, signR)

	cond, _ := c.sub()
	cond.Read(signsEqual)
	notEqual := append(*cond.Instrs, ir.Instruction{Op: ir.OpNot})
	*c.Instrs = append(*c.Instrs, ir.If(notEqual, *thenBuf, nil))
	return asI32(raw)
}

// Mul computes abs(a)*abs(b) with the u32 kernel (which traps on
// overflow of the magnitude) and negates the result iff exactly one
// operand was negative.
func Mul(c Ctx, a, b Symbol) Symbol {
	absA, absB := Abs(c, a), Abs(c, b)
	mag := U32Mul(c, asU32(absA), asU32(absB))
	return resign(c, a, b, mag)
}

// Div computes abs(a)/abs(b), rejecting b == 0 and the INT32_MIN / -1
// edge case (whose true quotient does not fit in 32 bits), then negates
// the quotient iff exactly one operand was negative.
func Div(c Ctx, a, b Symbol) Symbol {
	assertNotDivByZero(c, b)
	assertNotMinDivNegOne(c, a, b)
	absA, absB := Abs(c, a), Abs(c, b)
	mag := U32Div(c, asU32(absA), asU32(absB))
	return resign(c, a, b, mag)
}

// Mod computes abs(a) mod abs(b); the result takes the sign of a.
func Mod(c Ctx, a, b Symbol) Symbol {
	assertNotDivByZero(c, b)
	absA, absB := Abs(c, a), Abs(c, b)
	mag := U32Mod(c, asU32(absA), asU32(absB))

	result := c.Alloc(abi.UInt32())
	signA := signBit(c, a)

	thenCtx, thenBuf := c.sub()
	negM := negateRaw(thenCtx, asI32(mag))
	thenCtx.Read(negM)
	thenCtx.Write(result, stackSources(1))

	elseCtx, elseBuf := c.sub()
	elseCtx.Read(mag)
	elseCtx.Write(result, stackSources(1))

	cond, _ := c.sub()
	cond.Read(signA)
	*c.Instrs = append(*c.Instrs, ir.If(*cond.Instrs, *thenBuf, *elseBuf))
	return asI32(result)
}

func resign(c Ctx, a, b, mag Symbol) Symbol {
	signA, signB := signBit(c, a), signBit(c, b)
	exactlyOneNegative := U32Neq(c, signA, signB)

	result := c.Alloc(abi.UInt32())
	thenCtx, thenBuf := c.sub()
	neg := negateRaw(thenCtx, asI32(mag))
	thenCtx.Read(neg)
	thenCtx.Write(result, stackSources(1))

	elseCtx, elseBuf := c.sub()
	elseCtx.Read(mag)
	elseCtx.Write(result, stackSources(1))

	cond, _ := c.sub()
	cond.Read(exactlyOneNegative)
	*c.Instrs = append(*c.Instrs, ir.If(*cond.Instrs, *thenBuf, *elseBuf))
	return asI32(result)
}

func assertNotDivByZero(c Ctx, b Symbol) {
	c.Read(asU32(b))
	*c.Instrs = append(*c.Instrs, ir.Instruction{Op: ir.OpEqz}, ir.AssertZero())
}

func assertNotMinDivNegOne(c Ctx, a, b Symbol) {
	aIsMin := U32Eq(c, asU32(a), NewUInt32(c, int32Min))
	bIsNegOne := U32Eq(c, asU32(b), NewUInt32(c, 0xFFFFFFFF))
	both := And(c, aIsMin, bIsNegOne)
	c.Read(both)
	*c.Instrs = append(*c.Instrs, ir.AssertZero())
}

// signAwareCompare implements the combined comparison rule: equal signs
// compare unsigned magnitudes; differing signs make the negative operand
// smaller regardless of magnitude.
func signAwareCompare(c Ctx, a, b Symbol, uOp ir.Op, negativeIsSmaller bool) Symbol {
	signA, signB := signBit(c, a), signBit(c, b)
	signsEqual := U32Eq(c, signA, signB)
	result := c.Alloc(abi.Boolean())

	thenCtx, thenBuf := c.sub()
	thenCtx.Read(asU32(a))
	thenCtx.Read(asU32(b))
	*thenCtx.Instrs = append(*thenCtx.Instrs, ir.Instruction{Op: uOp})
	thenCtx.Write(result, stackSources(1))

	elseCtx, elseBuf := c.sub()
	elseCtx.Read(signA)
	if !negativeIsSmaller {
		*elseCtx.Instrs = append(*elseCtx.Instrs, ir.Instruction{Op: ir.OpNot})
	}
	elseCtx.Write(result, stackSources(1))

	cond, _ := c.sub()
	cond.Read(signsEqual)
	*c.Instrs = append(*c.Instrs, ir.If(*cond.Instrs, *thenBuf, *elseBuf))
	return result
}

func Int32Eq(c Ctx, a, b Symbol) Symbol  { return u32Binary(c, ir.OpU32CheckedEq, abi.Boolean(), asU32(a), asU32(b)) }
func Int32Neq(c Ctx, a, b Symbol) Symbol { return u32Binary(c, ir.OpU32CheckedNeq, abi.Boolean(), asU32(a), asU32(b)) }
func Lt(c Ctx, a, b Symbol) Symbol       { return signAwareCompare(c, a, b, ir.OpU32CheckedLt, true) }
func Lte(c Ctx, a, b Symbol) Symbol      { return signAwareCompare(c, a, b, ir.OpU32CheckedLte, true) }
func Gt(c Ctx, a, b Symbol) Symbol       { return signAwareCompare(c, a, b, ir.OpU32CheckedGt, false) }
func Gte(c Ctx, a, b Symbol) Symbol      { return signAwareCompare(c, a, b, ir.OpU32CheckedGte, false) }

// ShiftLeft and ShiftRight require a non-negative count and preserve
// sign: left shift is identical to the unsigned bit pattern shift;
// right shift operates on the magnitude and reapplies the sign.
func ShiftLeft(c Ctx, a, count Symbol) Symbol {
	assertNonNegative(c, count)
	return asI32(U32Shl(c, asU32(a), count))
}

func assertNonNegative(c Ctx, count Symbol) {
	c.Read(signBit(c, asI32(count)))
	*c.Instrs = append(*c.Instrs, ir.AssertZero())
}

func ShiftRight(c Ctx, a, count Symbol) Symbol {
	assertNonNegative(c, count)
	sign := signBit(c, a)
	mag := Abs(c, a)
	shifted := U32Shr(c, asU32(mag), count)

	result := c.Alloc(abi.UInt32())
	thenCtx, thenBuf := c.sub()
	neg := negateRaw(thenCtx, asI32(shifted))
	thenCtx.Read(neg)
	thenCtx.Write(result, stackSources(1))

	elseCtx, elseBuf := c.sub()
	elseCtx.Read(shifted)
	elseCtx.Write(result, stackSources(1))

	cond, _ := c.sub()
	cond.Read(sign)
	*c.Instrs = append(*c.Instrs, ir.If(*cond.Instrs, *thenBuf, *elseBuf))
	return asI32(result)
}
