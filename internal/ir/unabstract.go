package ir

// funcState tracks the single, function-wide "return flag" memory word.
// It is allocated lazily on the first Return encountered so functions that
// never return early never pay for the word.
type funcState struct {
	returnFlagAddr *uint32
}

func (fs *funcState) flag(alloc func(uint32) uint32) uint32 {
	if fs.returnFlagAddr == nil {
		a := alloc(1)
		fs.returnFlagAddr = &a
	}
	return *fs.returnFlagAddr
}

// loopState tracks the single "break flag" memory word for one enclosing
// loop. A nil *loopState means "not currently inside a loop"; a bare Break
// there is a lowering bug upstream, and is treated as a Return instead so
// unabstraction never silently drops control flow.
type loopState struct {
	breakFlagAddr *uint32
}

func (ls *loopState) flag(alloc func(uint32) uint32) uint32 {
	if ls.breakFlagAddr == nil {
		a := alloc(1)
		ls.breakFlagAddr = &a
	}
	return *ls.breakFlagAddr
}

// Unabstract rewrites every Abstract(Break|Return|InlinedFunction) node in
// instrs into structured control over flag memory, using alloc to reserve
// the flag words it needs. The result contains only concrete instructions
// and If/While/WhileTrueRaw nodes and is safe to pass to Encode.
func Unabstract(instrs []Instruction, alloc func(uint32) uint32) []Instruction {
	out, _, _ := unabstractBlock(instrs, alloc, &funcState{}, nil)
	return out
}

// unabstractBlock processes one straight-line block. broke/returned report
// whether, after running this block, execution may have taken a Break or
// Return path — the caller uses that to decide whether sibling statements
// after a nested If/While must also be guarded.
func unabstractBlock(instrs []Instruction, alloc func(uint32) uint32, fn *funcState, loop *loopState) (out []Instruction, broke, returned bool) {
	for i := 0; i < len(instrs); i++ {
		instr := instrs[i]

		if instr.Kind == ControlAbstract {
			if instr.Abstract == AbstractBreak && loop == nil {
				instr.Abstract = AbstractReturn
			}
			switch instr.Abstract {
			case AbstractBreak:
				addr := loop.flag(alloc)
				out = append(out, Push(1), MemStore(Addr32(addr)), Drop())
				rest, _, restReturned := unabstractBlock(instrs[i+1:], alloc, fn, loop)
				out = append(out, If([]Instruction{MemLoad(Addr32(addr))}, nil, rest))
				return out, true, restReturned
			case AbstractReturn:
				addr := fn.flag(alloc)
				out = append(out, Push(1), MemStore(Addr32(addr)), Drop())
				rest, restBroke, _ := unabstractBlock(instrs[i+1:], alloc, fn, loop)
				out = append(out, If([]Instruction{MemLoad(Addr32(addr))}, nil, rest))
				return out, restBroke, true
			case AbstractInlinedFunction:
				inner, _, _ := unabstractBlock(instr.Inlined, alloc, &funcState{}, nil)
				out = append(out, inner...)
				continue
			}
		}

		switch instr.Kind {
		case ControlIf:
			condUn, _, _ := unabstractBlock(instr.Cond, alloc, fn, loop)
			thenUn, thenBroke, thenReturned := unabstractBlock(instr.Then, alloc, fn, loop)
			elseUn, elseBroke, elseReturned := unabstractBlock(instr.Else, alloc, fn, loop)
			out = append(out, If(condUn, thenUn, elseUn))

			if thenBroke || elseBroke || thenReturned || elseReturned {
				rest, restBroke, restReturned := unabstractBlock(instrs[i+1:], alloc, fn, loop)
				guarded := rest
				if thenBroke || elseBroke {
					baddr := (orLoop(loop)).flag(alloc)
					guarded = []Instruction{If([]Instruction{MemLoad(Addr32(baddr))}, nil, guarded)}
				}
				if thenReturned || elseReturned {
					raddr := fn.flag(alloc)
					guarded = []Instruction{If([]Instruction{MemLoad(Addr32(raddr))}, nil, guarded)}
				}
				out = append(out, guarded...)
				return out, thenBroke || elseBroke || restBroke, thenReturned || elseReturned || restReturned
			}
			continue

		case ControlWhile, ControlWhileTrueRaw:
			innerLoop := &loopState{}
			bodyUn, _, bodyReturned := unabstractBlock(instr.Body, alloc, fn, innerLoop)

			var newNode Instruction
			if instr.Kind == ControlWhile {
				condUn, _, _ := unabstractBlock(instr.Cond, alloc, fn, loop)
				if innerLoop.breakFlagAddr != nil {
					baddr := *innerLoop.breakFlagAddr
					notBroken := []Instruction{MemLoad(Addr32(baddr)), {Op: OpEqz}}
					effective := append(append([]Instruction{}, notBroken...), condUn...)
					effective = append(effective, Instruction{Op: OpAnd})
					newNode = While(effective, bodyUn)
				} else {
					newNode = While(condUn, bodyUn)
				}
			} else {
				newNode = WhileTrueRaw(bodyUn)
			}
			out = append(out, newNode)

			if bodyReturned {
				raddr := fn.flag(alloc)
				rest, restBroke, restReturned := unabstractBlock(instrs[i+1:], alloc, fn, loop)
				out = append(out, If([]Instruction{MemLoad(Addr32(raddr))}, nil, rest))
				return out, restBroke, true || restReturned
			}
			continue

		default:
			out = append(out, instr)
		}
	}
	return out, false, false
}

func orLoop(l *loopState) *loopState {
	if l == nil {
		return &loopState{}
	}
	return l
}
