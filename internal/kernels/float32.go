package kernels

import (
	"github.com/polybase/polylang-sub000/internal/abi"
	"github.com/polybase/polylang-sub000/internal/ir"
	"github.com/polybase/polylang-sub000/internal/mem"
)

// Float32 values are stored as their raw IEEE-754 bit pattern in a
// single u32 cell. The target ISA has no native float support and no
// std-lib float namespace (§6 declares only `std::math::u64`), so every
// operation here — classification, addition, multiplication, division —
// is built directly out of u32/u64 integer ops: operand decomposition
// into sign/exponent/significand, shift-and-add multiplication,
// restoring division, and CLZ-style renormalization after a cancelling
// add. Subnormals are flushed to zero and NaN payloads collapse to a
// single canonical quiet NaN; both are noted as open-question decisions
// rather than full IEEE-754 conformance.

const (
	f32SignMask = uint32(0x80000000)
	f32ExpMask  = uint32(0x7F800000)
	f32ManMask  = uint32(0x007FFFFF)
	f32Bias     = uint32(127)
	f32QuietNaN = uint32(0x7FC00000)
)

// NewFloat32 allocates a Float32 symbol holding the IEEE-754 bit pattern
// bits.
func NewFloat32(c Ctx, bits uint32) Symbol {
	sym := c.Alloc(abi.Float32())
	c.Write(sym, []mem.Source{mem.Immediate(bits)})
	return sym
}

func f32AsU32(s Symbol) Symbol { return Symbol{Type: abi.UInt32(), Addr: s.Addr} }

func f32Sign(c Ctx, x Symbol) Symbol {
	return U32Shr(c, f32AsU32(x), NewUInt32(c, 31))
}

func f32Exponent(c Ctx, x Symbol) Symbol {
	shifted := U32Shr(c, f32AsU32(x), NewUInt32(c, 23))
	return u32Binary(c, ir.OpU32CheckedAnd, abi.UInt32(), shifted, NewUInt32(c, 0xFF))
}

func f32Mantissa(c Ctx, x Symbol) Symbol {
	return u32Binary(c, ir.OpU32CheckedAnd, abi.UInt32(), f32AsU32(x), NewUInt32(c, f32ManMask))
}

// f32Significand ORs the implicit leading one into x's mantissa. Callers
// only use this once a zero/subnormal check has already routed that
// case elsewhere, so the exponent is known non-zero here.
func f32Significand(c Ctx, x Symbol) Symbol {
	return u32Binary(c, ir.OpU32CheckedOr, abi.UInt32(), f32Mantissa(c, x), NewUInt32(c, 0x800000))
}

// isZeroOrSubnormal reports exponent==0, the flush-to-zero test used
// throughout arithmetic (subnormals are treated as zero, §4.4's
// simplification recorded in DESIGN.md).
func isZeroOrSubnormal(c Ctx, x Symbol) Symbol {
	return U32Eq(c, f32Exponent(c, x), NewUInt32(c, 0))
}

// IsNaN reports whether x's bit pattern is a NaN: exponent all-ones,
// mantissa non-zero.
func IsNaN(c Ctx, x Symbol) Symbol {
	expAllOnes := U32Eq(c, f32Exponent(c, x), NewUInt32(c, 0xFF))
	manNonZero := U32Neq(c, f32Mantissa(c, x), NewUInt32(c, 0))
	return And(c, expAllOnes, manNonZero)
}

// IsZero reports whether x is +0 or -0 (exponent and mantissa both zero;
// sign is ignored).
func IsZero(c Ctx, x Symbol) Symbol {
	expZero := U32Eq(c, f32Exponent(c, x), NewUInt32(c, 0))
	manZero := U32Eq(c, f32Mantissa(c, x), NewUInt32(c, 0))
	return And(c, expZero, manZero)
}

// IsInf reports whether x is +Inf or -Inf.
func IsInf(c Ctx, x Symbol) Symbol {
	expAllOnes := U32Eq(c, f32Exponent(c, x), NewUInt32(c, 0xFF))
	manZero := U32Eq(c, f32Mantissa(c, x), NewUInt32(c, 0))
	return And(c, expAllOnes, manZero)
}

// ifElse emits cond's instructions into c, then an ir.If splicing in
// freshly built Then/Else buffers, the shape every multi-way dispatch in
// this file nests to express its special-case ladder.
func ifElse(c Ctx, cond Symbol, thenFn, elseFn func(Ctx)) {
	thenCtx, thenBuf := c.sub()
	thenFn(thenCtx)
	elseCtx, elseBuf := c.sub()
	elseFn(elseCtx)

	condCtx, condBuf := c.sub()
	condCtx.Read(cond)
	*c.Instrs = append(*c.Instrs, ir.If(*condBuf, *thenBuf, *elseBuf))
}

func writeFromSymbol(c Ctx, result, src Symbol) {
	c.Read(f32AsU32(src))
	c.Write(result, stackSources(1))
}

func writeNaN(c Ctx, result Symbol) {
	writeFromSymbol(c, result, NewFloat32(c, f32QuietNaN))
}

func writeInf(c Ctx, sign, result Symbol) {
	bits := u32Binary(c, ir.OpU32CheckedOr, abi.UInt32(), U32Shl(c, sign, NewUInt32(c, 31)), NewUInt32(c, f32ExpMask))
	writeFromSymbol(c, result, bits)
}

func writeSignedZero(c Ctx, sign, result Symbol) {
	bits := U32Shl(c, sign, NewUInt32(c, 31))
	writeFromSymbol(c, result, bits)
}

// fpPack assembles sign/exp/mantissa into result, trapping overflow to
// infinity. Callers are responsible for ensuring exp does not encode an
// underflow (see the wrapping-arithmetic prefilter in fpExpDelta) and
// that mant already carries a valid 24-bit normalized significand, or
// for routing those cases to writeSignedZero themselves.
func fpPack(c Ctx, sign, exp, mant Symbol, result Symbol) {
	overflow := U32Gte(c, exp, NewUInt32(c, 255))
	ifElse(c, overflow,
		func(c Ctx) { writeInf(c, sign, result) },
		func(c Ctx) {
			mantissa := u32Binary(c, ir.OpU32CheckedAnd, abi.UInt32(), mant, NewUInt32(c, f32ManMask))
			signBits := U32Shl(c, sign, NewUInt32(c, 31))
			expBits := U32Shl(c, exp, NewUInt32(c, 23))
			bits := u32Binary(c, ir.OpU32CheckedOr, abi.UInt32(),
				u32Binary(c, ir.OpU32CheckedOr, abi.UInt32(), signBits, expBits), mantissa)
			writeFromSymbol(c, result, bits)
		},
	)
}

// fpExpDelta computes a two-operand biased-exponent expression (e.g.
// expA+expB-127) via wrapping arithmetic so a legitimately negative
// intermediate never trips a checked-op trap, then classifies the
// wrapped result: tooSmall means the true exponent is <=0 (underflow,
// flush to zero). A true exponent >=255 is not classified here.
func fpExpDelta(c Ctx, a, b Symbol, addConst uint32, sub bool) (delta, tooSmall Symbol) {
	var raw Symbol
	if sub {
		raw = U32WrappingSub(c, a, b)
	} else {
		raw = U32WrappingAdd(c, a, b)
	}
	raw = U32WrappingAdd(c, raw, NewUInt32(c, addConst))
	tooSmall = Or(c, U32Eq(c, raw, NewUInt32(c, 0)), U32Gt(c, raw, NewUInt32(c, 0x80000000)))
	return raw, tooSmall
}

// ---- addition ----

func FloatAdd(c Ctx, a, b Symbol) Symbol {
	result := c.Alloc(abi.Float32())
	ifElse(c, Or(c, IsNaN(c, a), IsNaN(c, b)),
		func(c Ctx) { writeNaN(c, result) },
		func(c Ctx) { fpAddNoNaN(c, a, b, result) },
	)
	return result
}

func fpAddNoNaN(c Ctx, a, b Symbol, result Symbol) {
	infA := IsInf(c, a)
	infB := IsInf(c, b)
	ifElse(c, Or(c, infA, infB),
		func(c Ctx) { fpAddInf(c, a, b, infA, infB, result) },
		func(c Ctx) { fpAddFinite(c, a, b, result) },
	)
}

func fpAddInf(c Ctx, a, b, infA, infB Symbol, result Symbol) {
	bothInf := And(c, infA, infB)
	sameSign := U32Eq(c, f32Sign(c, a), f32Sign(c, b))
	ifElse(c, And(c, bothInf, Not(c, sameSign)),
		func(c Ctx) { writeNaN(c, result) },
		func(c Ctx) {
			ifElse(c, infA,
				func(c Ctx) { writeFromSymbol(c, result, a) },
				func(c Ctx) { writeFromSymbol(c, result, b) },
			)
		},
	)
}

func fpAddFinite(c Ctx, a, b Symbol, result Symbol) {
	aZero := isZeroOrSubnormal(c, a)
	bZero := isZeroOrSubnormal(c, b)
	ifElse(c, And(c, aZero, bZero),
		func(c Ctx) {
			sign := u32Binary(c, ir.OpU32CheckedAnd, abi.UInt32(), f32Sign(c, a), f32Sign(c, b))
			writeSignedZero(c, sign, result)
		},
		func(c Ctx) {
			ifElse(c, aZero,
				func(c Ctx) { writeFromSymbol(c, result, b) },
				func(c Ctx) {
					ifElse(c, bZero,
						func(c Ctx) { writeFromSymbol(c, result, a) },
						func(c Ctx) { fpAddNormal(c, a, b, result) },
					)
				},
			)
		},
	)
}

// fpAddNormal is the real algorithm: align the smaller operand's
// significand to the larger's exponent (folding shifted-out bits into a
// sticky bit), combine magnitudes respecting sign, renormalize away any
// carry-out or cancellation-induced leading zeros, and pack.
func fpAddNormal(c Ctx, a, b Symbol, result Symbol) {
	expA, expB := f32Exponent(c, a), f32Exponent(c, b)
	sigA, sigB := f32Significand(c, a), f32Significand(c, b)
	signA, signB := f32Sign(c, a), f32Sign(c, b)

	bigExp, bigSig, bigSign := c.Alloc(abi.UInt32()), c.Alloc(abi.UInt32()), c.Alloc(abi.UInt32())
	smallSig, smallSign := c.Alloc(abi.UInt32()), c.Alloc(abi.UInt32())
	diff := c.Alloc(abi.UInt32())

	ifElse(c, U32Gte(c, expA, expB),
		func(c Ctx) {
			writeFromSymbol(c, bigExp, expA)
			writeFromSymbol(c, bigSig, sigA)
			writeFromSymbol(c, bigSign, signA)
			writeFromSymbol(c, smallSig, sigB)
			writeFromSymbol(c, smallSign, signB)
			writeFromSymbol(c, diff, U32Sub(c, expA, expB))
		},
		func(c Ctx) {
			writeFromSymbol(c, bigExp, expB)
			writeFromSymbol(c, bigSig, sigB)
			writeFromSymbol(c, bigSign, signB)
			writeFromSymbol(c, smallSig, sigA)
			writeFromSymbol(c, smallSign, signA)
			writeFromSymbol(c, diff, U32Sub(c, expB, expA))
		},
	)

	clampedDiff := c.Alloc(abi.UInt32())
	ifElse(c, U32Gt(c, diff, NewUInt32(c, 24)),
		func(c Ctx) { writeFromSymbol(c, clampedDiff, NewUInt32(c, 24)) },
		func(c Ctx) { writeFromSymbol(c, clampedDiff, diff) },
	)

	mask := U32Sub(c, U32Shl(c, NewUInt32(c, 1), clampedDiff), NewUInt32(c, 1))
	shiftedOut := u32Binary(c, ir.OpU32CheckedAnd, abi.UInt32(), smallSig, mask)
	sticky := c.Alloc(abi.UInt32())
	ifElse(c, U32Neq(c, shiftedOut, NewUInt32(c, 0)),
		func(c Ctx) { writeFromSymbol(c, sticky, NewUInt32(c, 1)) },
		func(c Ctx) { writeFromSymbol(c, sticky, NewUInt32(c, 0)) },
	)
	alignedSmall := u32Binary(c, ir.OpU32CheckedOr, abi.UInt32(), U32Shr(c, smallSig, clampedDiff), sticky)

	magSig, resultSign, resultExp, isZeroResult := c.Alloc(abi.UInt32()), c.Alloc(abi.UInt32()), c.Alloc(abi.UInt32()), c.Alloc(abi.Boolean())

	ifElse(c, U32Eq(c, bigSign, smallSign),
		func(c Ctx) {
			writeFromSymbol(c, magSig, U32Add(c, bigSig, alignedSmall))
			writeFromSymbol(c, resultSign, bigSign)
			writeFromSymbol(c, resultExp, bigExp)
			c.Read(NewBoolean(c, false))
			c.Write(isZeroResult, stackSources(1))
		},
		func(c Ctx) {
			ifElse(c, U32Gte(c, bigSig, alignedSmall),
				func(c Ctx) {
					d := U32Sub(c, bigSig, alignedSmall)
					writeFromSymbol(c, magSig, d)
					writeFromSymbol(c, resultSign, bigSign)
					writeFromSymbol(c, resultExp, bigExp)
					c.Read(U32Eq(c, d, NewUInt32(c, 0)))
					c.Write(isZeroResult, stackSources(1))
				},
				func(c Ctx) {
					writeFromSymbol(c, magSig, U32Sub(c, alignedSmall, bigSig))
					writeFromSymbol(c, resultSign, smallSign)
					writeFromSymbol(c, resultExp, bigExp)
					c.Read(NewBoolean(c, false))
					c.Write(isZeroResult, stackSources(1))
				},
			)
		},
	)

	ifElse(c, isZeroResult,
		func(c Ctx) { writeFromSymbol(c, result, NewFloat32(c, 0)) },
		func(c Ctx) { fpAddFinalize(c, resultSign, resultExp, magSig, result) },
	)
}

// fpAddFinalize renormalizes magSig (which may carry a 25th bit from a
// same-sign add, or sit below the implicit leading one from a
// cancelling subtract) before packing.
func fpAddFinalize(c Ctx, sign, exp, mag Symbol, result Symbol) {
	exp2, mag2 := c.Alloc(abi.UInt32()), c.Alloc(abi.UInt32())
	ifElse(c, U32Gte(c, mag, NewUInt32(c, 0x1000000)),
		func(c Ctx) {
			writeFromSymbol(c, mag2, U32Shr(c, mag, NewUInt32(c, 1)))
			writeFromSymbol(c, exp2, U32Add(c, exp, NewUInt32(c, 1)))
		},
		func(c Ctx) {
			writeFromSymbol(c, mag2, mag)
			writeFromSymbol(c, exp2, exp)
		},
	)

	expSym, magSym := c.Alloc(abi.UInt32()), c.Alloc(abi.UInt32())
	writeFromSymbol(c, expSym, exp2)
	writeFromSymbol(c, magSym, mag2)

	condCtx, condBuf := c.sub()
	needsShift := And(condCtx, U32Lt(condCtx, magSym, NewUInt32(condCtx, 0x800000)), U32Gt(condCtx, expSym, NewUInt32(condCtx, 1)))
	condCtx.Read(needsShift)

	bodyCtx, bodyBuf := c.sub()
	writeFromSymbol(bodyCtx, magSym, U32Shl(bodyCtx, magSym, NewUInt32(bodyCtx, 1)))
	writeFromSymbol(bodyCtx, expSym, U32Sub(bodyCtx, expSym, NewUInt32(bodyCtx, 1)))

	*c.Instrs = append(*c.Instrs, ir.While(*condBuf, *bodyBuf))

	ifElse(c, U32Lt(c, magSym, NewUInt32(c, 0x800000)),
		func(c Ctx) { writeFromSymbol(c, result, NewFloat32(c, 0)) },
		func(c Ctx) { fpPack(c, sign, expSym, magSym, result) },
	)
}

// FloatSub is addition with b's sign bit flipped, per §4.4.
func FloatSub(c Ctx, a, b Symbol) Symbol {
	flipped := u32Binary(c, ir.OpU32CheckedXor, abi.UInt32(), f32AsU32(b), NewUInt32(c, f32SignMask))
	return FloatAdd(c, a, Symbol{Type: abi.Float32(), Addr: flipped.Addr})
}

// ---- multiplication ----

func FloatMul(c Ctx, a, b Symbol) Symbol {
	result := c.Alloc(abi.Float32())
	ifElse(c, Or(c, IsNaN(c, a), IsNaN(c, b)),
		func(c Ctx) { writeNaN(c, result) },
		func(c Ctx) { fpMulNoNaN(c, a, b, result) },
	)
	return result
}

func fpMulNoNaN(c Ctx, a, b Symbol, result Symbol) {
	infA, infB := IsInf(c, a), IsInf(c, b)
	zeroA, zeroB := isZeroOrSubnormal(c, a), isZeroOrSubnormal(c, b)
	invalid := Or(c, And(c, infA, zeroB), And(c, infB, zeroA))

	ifElse(c, invalid,
		func(c Ctx) { writeNaN(c, result) },
		func(c Ctx) {
			sign := u32Binary(c, ir.OpU32CheckedXor, abi.UInt32(), f32Sign(c, a), f32Sign(c, b))
			ifElse(c, Or(c, infA, infB),
				func(c Ctx) { writeInf(c, sign, result) },
				func(c Ctx) { fpMulFinite(c, a, b, sign, result) },
			)
		},
	)
}

func fpMulFinite(c Ctx, a, b Symbol, sign Symbol, result Symbol) {
	ifElse(c, Or(c, isZeroOrSubnormal(c, a), isZeroOrSubnormal(c, b)),
		func(c Ctx) { writeSignedZero(c, sign, result) },
		func(c Ctx) {
			sigA, sigB := f32Significand(c, a), f32Significand(c, b)
			expA, expB := f32Exponent(c, a), f32Exponent(c, b)
			// resultExp = expA + expB - 127 (multiplying two biased
			// exponents adds the bias twice, so one copy is removed here);
			// -127's uint32 two's-complement value lets fpExpDelta's
			// wrapping add subtract it without a dedicated sub path.
			expDelta, tooSmall := fpExpDelta(c, expA, expB, uint32(int32(-127)), false)

			product := u64ShiftAddMultiply(c, sigA, sigB)
			hi, lo := u64Words(product)

			mag, exp := c.Alloc(abi.UInt32()), c.Alloc(abi.UInt32())
			ifElse(c, U64Gte(c, product, NewUInt64(c, uint64(1)<<47)),
				func(c Ctx) {
					writeFromSymbol(c, mag, u64ShiftRightFixed(c, hi, lo, 24))
					writeFromSymbol(c, exp, U32Add(c, expDelta, NewUInt32(c, 1)))
				},
				func(c Ctx) {
					writeFromSymbol(c, mag, u64ShiftRightFixed(c, hi, lo, 23))
					writeFromSymbol(c, exp, expDelta)
				},
			)

			ifElse(c, tooSmall,
				func(c Ctx) { writeSignedZero(c, sign, result) },
				func(c Ctx) { fpPack(c, sign, exp, mag, result) },
			)
		},
	)
}

// ---- division ----

func FloatDiv(c Ctx, a, b Symbol) Symbol {
	result := c.Alloc(abi.Float32())
	ifElse(c, Or(c, IsNaN(c, a), IsNaN(c, b)),
		func(c Ctx) { writeNaN(c, result) },
		func(c Ctx) { fpDivNoNaN(c, a, b, result) },
	)
	return result
}

func fpDivNoNaN(c Ctx, a, b Symbol, result Symbol) {
	infA, infB := IsInf(c, a), IsInf(c, b)
	zeroA, zeroB := isZeroOrSubnormal(c, a), isZeroOrSubnormal(c, b)
	sign := u32Binary(c, ir.OpU32CheckedXor, abi.UInt32(), f32Sign(c, a), f32Sign(c, b))

	ifElse(c, Or(c, And(c, infA, infB), And(c, zeroA, zeroB)),
		func(c Ctx) { writeNaN(c, result) },
		func(c Ctx) {
			ifElse(c, Or(c, infA, zeroB),
				func(c Ctx) { writeInf(c, sign, result) },
				func(c Ctx) {
					ifElse(c, Or(c, infB, zeroA),
						func(c Ctx) { writeSignedZero(c, sign, result) },
						func(c Ctx) { fpDivFinite(c, a, b, sign, result) },
					)
				},
			)
		},
	)
}

// fpDivFinite runs 25 rounds of restoring division over the two
// significands (both finite and non-zero here) to produce a 25/26-bit
// quotient, then normalizes and packs it.
func fpDivFinite(c Ctx, a, b Symbol, sign Symbol, result Symbol) {
	sigA, sigB := f32Significand(c, a), f32Significand(c, b)
	expA, expB := f32Exponent(c, a), f32Exponent(c, b)

	remainder := CastFromUInt32(c, sigA)
	divisor := CastFromUInt32(c, sigB)
	quotient := NewUInt32(c, 0)

	i := NewUInt32(c, 0)
	condCtx, condBuf := c.sub()
	condCtx.Read(U32Lt(condCtx, i, NewUInt32(condCtx, 25)))

	bodyCtx, bodyBuf := c.sub()
	doubled := U64Add(bodyCtx, remainder, remainder)
	ge := U64Gte(bodyCtx, doubled, divisor)
	ifElse(bodyCtx, ge,
		func(c Ctx) {
			writeFromSymbol64(c, remainder, U64Sub(c, doubled, divisor))
			writeFromSymbol(c, quotient, u32Binary(c, ir.OpU32CheckedOr, abi.UInt32(), U32Add(c, quotient, quotient), NewUInt32(c, 1)))
		},
		func(c Ctx) {
			writeFromSymbol64(c, remainder, doubled)
			writeFromSymbol(c, quotient, U32Add(c, quotient, quotient))
		},
	)
	writeFromSymbol(bodyCtx, i, U32Add(bodyCtx, i, NewUInt32(bodyCtx, 1)))

	*c.Instrs = append(*c.Instrs, ir.While(*condBuf, *bodyBuf))

	expDelta, tooSmall := fpExpDelta(c, expA, expB, f32Bias-1, true)

	mag, exp := c.Alloc(abi.UInt32()), c.Alloc(abi.UInt32())
	ifElse(c, U32Gte(c, quotient, NewUInt32(c, 1<<25)),
		func(c Ctx) {
			writeFromSymbol(c, mag, U32Shr(c, quotient, NewUInt32(c, 2)))
			writeFromSymbol(c, exp, U32Add(c, expDelta, NewUInt32(c, 1)))
		},
		func(c Ctx) {
			writeFromSymbol(c, mag, U32Shr(c, quotient, NewUInt32(c, 1)))
			writeFromSymbol(c, exp, expDelta)
		},
	)

	ifElse(c, tooSmall,
		func(c Ctx) { writeSignedZero(c, sign, result) },
		func(c Ctx) { fpPack(c, sign, exp, mag, result) },
	)
}

func writeFromSymbol64(c Ctx, result, src Symbol) {
	c.Read(src)
	c.Write(result, stackSources(2))
}

// u64Words splits a UInt64 Symbol into its high/low UInt32 words,
// mirroring NewUInt64's "high word first" memory layout.
func u64Words(v Symbol) (hi, lo Symbol) {
	return Symbol{Type: abi.UInt32(), Addr: v.Addr}, Symbol{Type: abi.UInt32(), Addr: v.Addr + 1}
}

// u64ShiftRightFixed computes (hi<<32|lo) >> k for a compile-time-fixed
// 23<=k<=24, entirely with u32 ops (the only shift amounts multiply's
// normalization needs, so a full variable-width 64-bit shifter is
// unnecessary).
func u64ShiftRightFixed(c Ctx, hi, lo Symbol, k uint32) Symbol {
	upper := U32Shl(c, hi, NewUInt32(c, 32-k))
	lower := U32Shr(c, lo, NewUInt32(c, k))
	return u32Binary(c, ir.OpU32CheckedOr, abi.UInt32(), upper, lower)
}

// u64ShiftAddMultiply computes a*b (both UInt32 significands, at most
// 24 bits each) as a UInt64 product via the standard shift-and-add
// algorithm: 24 iterations testing one bit of b and conditionally
// accumulating a doubling copy of a.
func u64ShiftAddMultiply(c Ctx, a, b Symbol) Symbol {
	acc := NewUInt64(c, 0)
	shifted := CastFromUInt32(c, a)
	i := NewUInt32(c, 0)

	condCtx, condBuf := c.sub()
	condCtx.Read(U32Lt(condCtx, i, NewUInt32(condCtx, 24)))

	bodyCtx, bodyBuf := c.sub()
	bit := u32Binary(bodyCtx, ir.OpU32CheckedAnd, abi.UInt32(), U32Shr(bodyCtx, b, i), NewUInt32(bodyCtx, 1))
	ifElse(bodyCtx, U32Eq(bodyCtx, bit, NewUInt32(bodyCtx, 1)),
		func(c Ctx) { writeFromSymbol64(c, acc, U64Add(c, acc, shifted)) },
		func(c Ctx) {},
	)
	writeFromSymbol64(bodyCtx, shifted, U64Add(bodyCtx, shifted, shifted))
	writeFromSymbol(bodyCtx, i, U32Add(bodyCtx, i, NewUInt32(bodyCtx, 1)))

	*c.Instrs = append(*c.Instrs, ir.While(*condBuf, *bodyBuf))
	return acc
}

// ---- comparisons ----

// floatCompareBits computes the non-NaN comparison bit used by Lt/Lte/
// Gt/Gte. Each operand is mapped to an order-preserving u32 key: a
// negative non-zero value has all its bits inverted, anything else
// (including -0) has its sign bit set, so ±0 share one key. The keys are
// then compared with the unsigned op uOp.
func floatCompareBits(c Ctx, a, b Symbol, uOp ir.Op) Symbol {
	key := func(x Symbol) Symbol {
		k := c.Alloc(abi.UInt32())
		neg := And(c, f32Sign(c, x), Not(c, IsZero(c, x)))
		ifElse(c, neg,
			func(c Ctx) { writeFromSymbol(c, k, U32CheckedXor(c, f32AsU32(x), NewUInt32(c, 0xFFFFFFFF))) },
			func(c Ctx) {
				writeFromSymbol(c, k, u32Binary(c, ir.OpU32CheckedOr, abi.UInt32(), f32AsU32(x), NewUInt32(c, f32SignMask)))
			},
		)
		return k
	}
	keyA, keyB := key(a), key(b)
	result := c.Alloc(abi.Boolean())
	c.Read(keyA)
	c.Read(keyB)
	*c.Instrs = append(*c.Instrs, ir.Instruction{Op: uOp})
	c.Write(result, stackSources(1))
	return result
}

func anyNaN(c Ctx, a, b Symbol) Symbol { return Or(c, IsNaN(c, a), IsNaN(c, b)) }

// FloatEq treats +0 == -0 and any NaN comparison as false.
func FloatEq(c Ctx, a, b Symbol) Symbol {
	bothZero := And(c, IsZero(c, a), IsZero(c, b))
	bitsEq := U32Eq(c, f32AsU32(a), f32AsU32(b))
	eq := Or(c, bothZero, bitsEq)
	return And(c, eq, Not(c, anyNaN(c, a, b)))
}

// FloatNeq is the complement of FloatEq: true whenever either operand is
// NaN, and false for +0 against -0.
func FloatNeq(c Ctx, a, b Symbol) Symbol {
	return Not(c, FloatEq(c, a, b))
}

func floatOrdered(c Ctx, a, b Symbol, uOp ir.Op) Symbol {
	ordered := floatCompareBits(c, a, b, uOp)
	return And(c, ordered, Not(c, anyNaN(c, a, b)))
}

func FloatLt(c Ctx, a, b Symbol) Symbol  { return floatOrdered(c, a, b, ir.OpU32CheckedLt) }
func FloatLte(c Ctx, a, b Symbol) Symbol { return floatOrdered(c, a, b, ir.OpU32CheckedLte) }
func FloatGt(c Ctx, a, b Symbol) Symbol  { return floatOrdered(c, a, b, ir.OpU32CheckedGt) }
func FloatGte(c Ctx, a, b Symbol) Symbol { return floatOrdered(c, a, b, ir.OpU32CheckedGte) }

// Not computes logical negation of a Boolean symbol.
func Not(c Ctx, x Symbol) Symbol {
	result := c.Alloc(abi.Boolean())
	c.Read(x)
	*c.Instrs = append(*c.Instrs, ir.Instruction{Op: ir.OpNot})
	c.Write(result, stackSources(1))
	return result
}
