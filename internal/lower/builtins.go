package lower

import (
	"github.com/pkg/errors"

	"github.com/polybase/polylang-sub000/internal/abi"
	"github.com/polybase/polylang-sub000/internal/ir"
	"github.com/polybase/polylang-sub000/internal/kernels"
	"github.com/polybase/polylang-sub000/internal/mem"
)

// builtinScope is the process-wide registry of intrinsics (§4.7),
// installed once as the outermost fallback every root Scope shares.
var builtinScope = map[string]Builtin{
	"dynamicAlloc": builtinDynamicAlloc,
	"writeMemory":  builtinWriteMemory,
	"deref":        builtinDeref,
	"addressOf":    builtinAddressOf,

	"readAdvice":                  builtinReadAdvice,
	"readAdviceBoolean":           builtinReadAdviceBoolean,
	"readAdviceUInt32":            builtinReadAdviceUInt32,
	"readAdviceString":            builtinReadAdviceByteLike(abi.String()),
	"readAdviceBytes":             builtinReadAdviceByteLike(abi.Bytes()),
	"readAdviceContractReference": builtinReadAdviceByteLike(abi.ContractReference("")),
	"readAdvicePublicKey":         builtinReadAdvicePublicKey,

	"unsafeToString": builtinUnsafeToByteLike(abi.String()),
	"unsafeToBytes":  builtinUnsafeToByteLike(abi.Bytes()),

	"hashString":            builtinHashByteLike,
	"hashBytes":              builtinHashByteLike,
	"hashContractReference": builtinHashByteLike,
	"hashPublicKey":          builtinHashPublicKey,

	"assert":         builtinAssert,
	"log":             builtinLog,
	"uint32ToString": builtinUint32ToString,
	"selfdestruct":   builtinSelfdestruct,

	"uint32WrappingAdd": builtinUint32Binary("uint32WrappingAdd", kernels.U32WrappingAdd),
	"uint32WrappingSub": builtinUint32Binary("uint32WrappingSub", kernels.U32WrappingSub),
	"uint32WrappingMul": builtinUint32Binary("uint32WrappingMul", kernels.U32WrappingMul),
	"uint32CheckedXor":  builtinUint32Binary("uint32CheckedXor", kernels.U32CheckedXor),

	"comment": builtinComment,
}

func requireArgs(name string, args []kernels.Symbol, n int) error {
	if len(args) != n {
		return errors.Errorf("lower: %s expects %d argument(s), got %d", name, n, len(args))
	}
	return nil
}

func requireKind(name string, sym kernels.Symbol, kind abi.Kind) error {
	if sym.Type.Kind != kind {
		return errors.Wrapf(ErrType, "%s expects %v, got %v", name, kind, sym.Type.Kind)
	}
	return nil
}

// builtinDynamicAlloc backs dynamicAlloc(n): reserve n words from the
// run-time bump allocator and return the address of the first one.
func builtinDynamicAlloc(comp *Compiler, args []kernels.Symbol) (*kernels.Symbol, error) {
	if err := requireArgs("dynamicAlloc", args, 1); err != nil {
		return nil, err
	}
	if err := requireKind("dynamicAlloc", args[0], abi.KindUInt32); err != nil {
		return nil, err
	}
	result := comp.DynamicAlloc(args[0])
	return &result, nil
}

// dynWrite stores value's word to the run-time address held in addr (a
// UInt32 symbol, not a compile-time constant), the primitive every
// dynamically-addressed store — writeMemory itself, and the log list
// splice below — reduces to.
func dynWrite(comp *Compiler, addr, value kernels.Symbol) {
	comp.Read(value)
	comp.Read(addr)
	comp.emitRaw(ir.MemStore(nil))
	comp.emitRaw(ir.Drop())
}

// builtinWriteMemory backs writeMemory(addr, val): an unchecked store to
// a run-time address, the escape hatch every composite kernel's header
// mutation ultimately rests on.
func builtinWriteMemory(comp *Compiler, args []kernels.Symbol) (*kernels.Symbol, error) {
	if err := requireArgs("writeMemory", args, 2); err != nil {
		return nil, err
	}
	if err := requireKind("writeMemory", args[0], abi.KindUInt32); err != nil {
		return nil, err
	}
	if err := requireKind("writeMemory", args[1], abi.KindUInt32); err != nil {
		return nil, err
	}
	dynWrite(comp, args[0], args[1])
	return nil, nil
}

// builtinDeref backs deref(addr): load the single word at a dynamic
// address held in a UInt32 symbol.
func builtinDeref(comp *Compiler, args []kernels.Symbol) (*kernels.Symbol, error) {
	if err := requireArgs("deref", args, 1); err != nil {
		return nil, err
	}
	if err := requireKind("deref", args[0], abi.KindUInt32); err != nil {
		return nil, err
	}
	comp.Read(args[0])
	comp.emitRaw(ir.MemLoad(nil))
	result := comp.Alloc(abi.UInt32())
	comp.Write(result, kernels.StackWords(1))
	return &result, nil
}

// builtinAddressOf backs addressOf(x): every Symbol already carries its
// compile-time address, so this is a pure compile-time rewrap.
func builtinAddressOf(comp *Compiler, args []kernels.Symbol) (*kernels.Symbol, error) {
	if err := requireArgs("addressOf", args, 1); err != nil {
		return nil, err
	}
	result := kernels.NewUInt32(comp.Ctx, args[0].Addr)
	return &result, nil
}

// builtinReadAdvice backs readAdvice(): pull one raw word off the advice
// tape into a fresh UInt32 symbol.
func builtinReadAdvice(comp *Compiler, args []kernels.Symbol) (*kernels.Symbol, error) {
	if err := requireArgs("readAdvice", args, 0); err != nil {
		return nil, err
	}
	comp.emitRaw(ir.AdvPush(1))
	result := comp.Alloc(abi.UInt32())
	comp.Write(result, kernels.StackWords(1))
	return &result, nil
}

func builtinReadAdviceUInt32(comp *Compiler, args []kernels.Symbol) (*kernels.Symbol, error) {
	if err := requireArgs("readAdviceUInt32", args, 0); err != nil {
		return nil, err
	}
	comp.emitRaw(ir.AdvPush(1))
	result := comp.Alloc(abi.UInt32())
	comp.Write(result, kernels.StackWords(1))
	return &result, nil
}

func builtinReadAdviceBoolean(comp *Compiler, args []kernels.Symbol) (*kernels.Symbol, error) {
	if err := requireArgs("readAdviceBoolean", args, 0); err != nil {
		return nil, err
	}
	comp.emitRaw(ir.AdvPush(1))
	result := comp.Alloc(abi.Boolean())
	comp.Write(result, kernels.StackWords(1))
	return &result, nil
}

// builtinReadAdviceByteLike returns a readAdviceString/readAdviceBytes/
// readAdviceContractReference Builtin: read the length off the advice
// tape, dynamic-alloc that many words, then pull each byte off the tape
// in turn into the newly-reserved buffer.
func builtinReadAdviceByteLike(t abi.Type) Builtin {
	return func(comp *Compiler, args []kernels.Symbol) (*kernels.Symbol, error) {
		if err := requireArgs("readAdvice"+t.Kind.String(), args, 0); err != nil {
			return nil, err
		}
		comp.emitRaw(ir.AdvPush(1))
		length := comp.Alloc(abi.UInt32())
		comp.Write(length, kernels.StackWords(1))

		dataPtr := comp.DynamicAlloc(length)

		i := kernels.NewUInt32(comp.Ctx, 0)
		bodyBuf := []ir.Instruction{}
		bodyComp := comp.withBuf(&bodyBuf)
		bodyComp.emitRaw(ir.AdvPush(1))
		bodyComp.Read(dataPtr)
		bodyComp.Read(i)
		bodyComp.emitRaw(ir.Instruction{Op: ir.OpU32CheckedAdd})
		bodyComp.emitRaw(ir.MemStore(nil))
		next := kernels.U32Add(bodyComp.Ctx, i, kernels.NewUInt32(bodyComp.Ctx, 1))
		bodyComp.Read(next)
		bodyComp.Write(i, kernels.StackWords(1))

		condBuf := []ir.Instruction{}
		condComp := comp.withBuf(&condBuf)
		lt := kernels.U32Lt(condComp.Ctx, i, length)
		condComp.Read(lt)

		comp.emitRaw(ir.While(condBuf, bodyBuf))

		result := comp.Alloc(t)
		comp.Write(result, []mem.Source{mem.FromMemory(length.Addr), mem.FromMemory(dataPtr.Addr)})
		return &result, nil
	}
}

// builtinReadAdvicePublicKey reads the four header scalars then the 64
// raw x||y bytes off the advice tape, mirroring readAdviceByteLike's
// length-then-bytes shape but with a fixed-size payload and no length
// word on the tape.
func builtinReadAdvicePublicKey(comp *Compiler, args []kernels.Symbol) (*kernels.Symbol, error) {
	if err := requireArgs("readAdvicePublicKey", args, 0); err != nil {
		return nil, err
	}
	// Each header scalar is read and stored to its own address before the
	// next AdvPush runs — batching all four pushes first would leave them
	// on the stack in reverse order relative to a single Write call.
	header := make([]kernels.Symbol, 4)
	for i := range header {
		comp.emitRaw(ir.AdvPush(1))
		sym := comp.Alloc(abi.UInt32())
		comp.Write(sym, kernels.StackWords(1))
		header[i] = sym
	}

	extraPtr := comp.DynamicAlloc(kernels.NewUInt32(comp.Ctx, 64))

	i := kernels.NewUInt32(comp.Ctx, 0)
	bodyBuf := []ir.Instruction{}
	bodyComp := comp.withBuf(&bodyBuf)
	bodyComp.emitRaw(ir.AdvPush(1))
	bodyComp.Read(extraPtr)
	bodyComp.Read(i)
	bodyComp.emitRaw(ir.Instruction{Op: ir.OpU32CheckedAdd})
	bodyComp.emitRaw(ir.MemStore(nil))
	next := kernels.U32Add(bodyComp.Ctx, i, kernels.NewUInt32(bodyComp.Ctx, 1))
	bodyComp.Read(next)
	bodyComp.Write(i, kernels.StackWords(1))

	condBuf := []ir.Instruction{}
	condComp := comp.withBuf(&condBuf)
	lt := kernels.U32Lt(condComp.Ctx, i, kernels.NewUInt32(condComp.Ctx, 64))
	condComp.Read(lt)

	comp.emitRaw(ir.While(condBuf, bodyBuf))

	result := comp.Alloc(abi.PublicKey())
	comp.Write(result, []mem.Source{
		mem.FromMemory(header[0].Addr), mem.FromMemory(header[1].Addr),
		mem.FromMemory(header[2].Addr), mem.FromMemory(header[3].Addr),
		mem.FromMemory(extraPtr.Addr),
	})
	return &result, nil
}

// builtinUnsafeToByteLike backs unsafeToString/unsafeToBytes: reinterpret
// an existing (length, data-ptr) pair as a fresh header of type t without
// copying the underlying bytes.
func builtinUnsafeToByteLike(t abi.Type) Builtin {
	return func(comp *Compiler, args []kernels.Symbol) (*kernels.Symbol, error) {
		if err := requireArgs("unsafeTo"+t.Kind.String(), args, 2); err != nil {
			return nil, err
		}
		if err := requireKind("unsafeTo", args[0], abi.KindUInt32); err != nil {
			return nil, err
		}
		if err := requireKind("unsafeTo", args[1], abi.KindUInt32); err != nil {
			return nil, err
		}
		result := comp.Alloc(t)
		comp.Write(result, []mem.Source{mem.FromMemory(args[0].Addr), mem.FromMemory(args[1].Addr)})
		return &result, nil
	}
}

// builtinHashByteLike backs hashString/hashBytes/hashContractReference,
// which all share String's (length, data-ptr) layout.
func builtinHashByteLike(comp *Compiler, args []kernels.Symbol) (*kernels.Symbol, error) {
	if err := requireArgs("hashByteLike", args, 1); err != nil {
		return nil, err
	}
	switch args[0].Type.Kind {
	case abi.KindString, abi.KindBytes, abi.KindContractReference:
	default:
		return nil, errors.Wrapf(ErrType, "hash has no kernel for %v", args[0].Type.Kind)
	}
	result := kernels.Hash(comp.Ctx, args[0])
	return &result, nil
}

func builtinHashPublicKey(comp *Compiler, args []kernels.Symbol) (*kernels.Symbol, error) {
	if err := requireArgs("hashPublicKey", args, 1); err != nil {
		return nil, err
	}
	if err := requireKind("hashPublicKey", args[0], abi.KindPublicKey); err != nil {
		return nil, err
	}
	result := kernels.PublicKeyHash(comp.Ctx, args[0])
	return &result, nil
}

// builtinAssert backs assert(cond, msg): on a false condition, write msg
// into the reserved error-string slots and force a VM trap, the same
// Assert(Push(0)) idiom compileThrow uses.
func builtinAssert(comp *Compiler, args []kernels.Symbol) (*kernels.Symbol, error) {
	if err := requireArgs("assert", args, 2); err != nil {
		return nil, err
	}
	if err := requireKind("assert", args[0], abi.KindBoolean); err != nil {
		return nil, err
	}
	if err := requireKind("assert", args[1], abi.KindString); err != nil {
		return nil, err
	}

	failBuf := []ir.Instruction{}
	failComp := comp.withBuf(&failBuf)
	failComp.Write(kernels.Symbol{Type: abi.UInt32(), Addr: mem.AddrErrorStrLen}, []mem.Source{mem.FromMemory(args[1].Addr)})
	failComp.Write(kernels.Symbol{Type: abi.UInt32(), Addr: mem.AddrErrorStrData}, []mem.Source{mem.FromMemory(args[1].Addr + 1)})
	failComp.emitRaw(ir.Push(0))
	failComp.emitRaw(ir.Assert())

	condBuf := []ir.Instruction{ir.MemLoad(ir.Addr32(args[0].Addr))}
	comp.emitRaw(ir.If(condBuf, nil, failBuf))
	return nil, nil
}

// builtinLog backs log(...): for now each argument must already be a
// String (callers coerce via uint32ToString first, matching the
// original driver's own root-scope re-entry for numeric/boolean args);
// it copies the message into a fresh 2-word node and links it onto the
// singly-linked list rooted at addresses 4 (tail) and 5 (head).
func builtinLog(comp *Compiler, args []kernels.Symbol) (*kernels.Symbol, error) {
	for _, a := range args {
		if err := requireKind("log", a, abi.KindString); err != nil {
			return nil, err
		}
		lenWord := kernels.Symbol{Type: abi.UInt32(), Addr: a.Addr}
		dataWord := kernels.Symbol{Type: abi.UInt32(), Addr: a.Addr + 1}

		currentLog := comp.DynamicAlloc(kernels.NewUInt32(comp.Ctx, 2))
		currentLogNext := kernels.U32Add(comp.Ctx, currentLog, kernels.NewUInt32(comp.Ctx, 1))
		dynWrite(comp, currentLog, lenWord)
		dynWrite(comp, currentLogNext, dataWord)

		tail := kernels.Symbol{Type: abi.UInt32(), Addr: mem.AddrLogListTail}
		head := kernels.Symbol{Type: abi.UInt32(), Addr: mem.AddrLogListHead}

		newLog := comp.DynamicAlloc(kernels.NewUInt32(comp.Ctx, 2))
		newLogNext := kernels.U32Add(comp.Ctx, newLog, kernels.NewUInt32(comp.Ctx, 1))
		dynWrite(comp, newLog, tail)
		dynWrite(comp, newLogNext, head)

		comp.Write(tail, []mem.Source{mem.FromMemory(newLog.Addr)})
		comp.Write(head, []mem.Source{mem.FromMemory(currentLog.Addr)})
	}
	return nil, nil
}

// builtinUint32ToString backs uint32ToString(value): repeated divmod-by-10
// into a reversed digit buffer, with a dedicated "0" case.
func builtinUint32ToString(comp *Compiler, args []kernels.Symbol) (*kernels.Symbol, error) {
	if err := requireArgs("uint32ToString", args, 1); err != nil {
		return nil, err
	}
	if err := requireKind("uint32ToString", args[0], abi.KindUInt32); err != nil {
		return nil, err
	}

	const maxDigits = 10
	scratch := comp.DynamicAlloc(kernels.NewUInt32(comp.Ctx, maxDigits))

	value := comp.Alloc(abi.UInt32())
	comp.Read(args[0])
	comp.Write(value, kernels.StackWords(1))
	count := comp.Alloc(abi.UInt32())
	comp.Write(count, []mem.Source{mem.Immediate(0)})

	bodyBuf := []ir.Instruction{}
	bodyComp := comp.withBuf(&bodyBuf)
	digit := kernels.U32Mod(bodyComp.Ctx, value, kernels.NewUInt32(bodyComp.Ctx, 10))
	bodyComp.Read(digit)
	bodyComp.emitRaw(ir.Push(48))
	bodyComp.emitRaw(ir.Instruction{Op: ir.OpU32CheckedAdd})
	bodyComp.Read(scratch)
	bodyComp.Read(count)
	bodyComp.emitRaw(ir.Instruction{Op: ir.OpU32CheckedAdd})
	bodyComp.emitRaw(ir.MemStore(nil))

	newValue := kernels.U32Div(bodyComp.Ctx, value, kernels.NewUInt32(bodyComp.Ctx, 10))
	bodyComp.Read(newValue)
	bodyComp.Write(value, kernels.StackWords(1))
	newCount := kernels.U32Add(bodyComp.Ctx, count, kernels.NewUInt32(bodyComp.Ctx, 1))
	bodyComp.Read(newCount)
	bodyComp.Write(count, kernels.StackWords(1))

	condBuf := []ir.Instruction{}
	condComp := comp.withBuf(&condBuf)
	gt := kernels.U32Gt(condComp.Ctx, value, kernels.NewUInt32(condComp.Ctx, 0))
	condComp.Read(gt)
	comp.emitRaw(ir.While(condBuf, bodyBuf))

	zeroBuf := []ir.Instruction{}
	zeroComp := comp.withBuf(&zeroBuf)
	zeroComp.emitRaw(ir.Push(48))
	zeroComp.Read(scratch)
	zeroComp.emitRaw(ir.MemStore(nil))
	zeroComp.emitRaw(ir.Push(1))
	zeroComp.Write(count, kernels.StackWords(1))

	isZeroBuf := []ir.Instruction{}
	isZeroComp := comp.withBuf(&isZeroBuf)
	isZero := kernels.U32Eq(isZeroComp.Ctx, count, kernels.NewUInt32(isZeroComp.Ctx, 0))
	isZeroComp.Read(isZero)
	comp.emitRaw(ir.If(isZeroBuf, zeroBuf, nil))

	dest := comp.DynamicAlloc(count)
	i := kernels.NewUInt32(comp.Ctx, 0)
	revBuf := []ir.Instruction{}
	revComp := comp.withBuf(&revBuf)
	srcIndex := kernels.U32Sub(revComp.Ctx, kernels.U32Sub(revComp.Ctx, count, kernels.NewUInt32(revComp.Ctx, 1)), i)
	revComp.Read(scratch)
	revComp.Read(srcIndex)
	revComp.emitRaw(ir.Instruction{Op: ir.OpU32CheckedAdd})
	revComp.emitRaw(ir.MemLoad(nil))
	revComp.Read(dest)
	revComp.Read(i)
	revComp.emitRaw(ir.Instruction{Op: ir.OpU32CheckedAdd})
	revComp.emitRaw(ir.MemStore(nil))
	revNext := kernels.U32Add(revComp.Ctx, i, kernels.NewUInt32(revComp.Ctx, 1))
	revComp.Read(revNext)
	revComp.Write(i, kernels.StackWords(1))

	revCondBuf := []ir.Instruction{}
	revCondComp := comp.withBuf(&revCondBuf)
	revLt := kernels.U32Lt(revCondComp.Ctx, i, count)
	revCondComp.Read(revLt)
	comp.emitRaw(ir.While(revCondBuf, revBuf))

	result := comp.Alloc(abi.String())
	comp.Write(result, []mem.Source{mem.FromMemory(count.Addr), mem.FromMemory(dest.Addr)})
	return &result, nil
}

// builtinUint32Binary wraps an existing two-operand UInt32 kernel (the
// wrapping-arithmetic and checked-xor intrinsics all share this shape)
// as a Builtin, checking argument count/type the way every other
// intrinsic here does.
func builtinUint32Binary(name string, kernel func(kernels.Ctx, kernels.Symbol, kernels.Symbol) kernels.Symbol) Builtin {
	return func(comp *Compiler, args []kernels.Symbol) (*kernels.Symbol, error) {
		if err := requireArgs(name, args, 2); err != nil {
			return nil, err
		}
		if err := requireKind(name, args[0], abi.KindUInt32); err != nil {
			return nil, err
		}
		if err := requireKind(name, args[1], abi.KindUInt32); err != nil {
			return nil, err
		}
		result := kernel(comp.Ctx, args[0], args[1])
		return &result, nil
	}
}

// builtinComment is a debugging no-op; it emits a textual Comment node
// carrying no runtime effect instead of discarding the argument outright,
// so a comment(...) call still shows up in the emitted program.
func builtinComment(comp *Compiler, args []kernels.Symbol) (*kernels.Symbol, error) {
	if err := requireArgs("comment", args, 1); err != nil {
		return nil, err
	}
	comp.emitRaw(ir.Comment("comment()"))
	return nil, nil
}

// builtinSelfdestruct flips the method's self-destruct flag (§4.8 step
// 4). Only meaningful inside a collection method, where the driver (not
// this scope) allocated the flag before the body compiled.
func builtinSelfdestruct(comp *Compiler, args []kernels.Symbol) (*kernels.Symbol, error) {
	if err := requireArgs("selfdestruct", args, 0); err != nil {
		return nil, err
	}
	if comp.SelfDestruct == nil {
		return nil, errors.New("lower: selfdestruct() is only available inside a collection method")
	}
	flag := kernels.NewBoolean(comp.Ctx, true)
	comp.Read(flag)
	comp.Write(*comp.SelfDestruct, kernels.StackWords(1))
	return nil, nil
}
