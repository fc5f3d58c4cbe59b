package ir

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ErrAbstractInstruction is returned when Encode encounters an Abstract
// node that unabstraction should have already rewritten.
var ErrAbstractInstruction = errors.New("ir: abstract instruction reached the encoder, unabstract() was not run")

const indentUnit = "  "

// Encode renders a straight-line instruction sequence as Miden-style text,
// one instruction per line, indented two spaces per nesting level.
func Encode(w *strings.Builder, instrs []Instruction, level int) error {
	for _, instr := range instrs {
		if err := encodeOne(w, instr, level); err != nil {
			return err
		}
	}
	return nil
}

func indent(w *strings.Builder, level int) {
	for i := 0; i < level; i++ {
		w.WriteString(indentUnit)
	}
}

func encodeOne(w *strings.Builder, instr Instruction, level int) error {
	switch instr.Kind {
	case ControlAbstract:
		return errors.Wrapf(ErrAbstractInstruction, "kind=%d", instr.Abstract)
	case ControlIf:
		return encodeIf(w, instr, level)
	case ControlWhile:
		return encodeWhile(w, instr, level)
	case ControlWhileTrueRaw:
		return encodeWhileTrueRaw(w, instr, level)
	}

	indent(w, level)
	switch instr.Op {
	case OpPush:
		fmt.Fprintf(w, "push.%d", instr.Imm)
	case OpDrop:
		w.WriteString("drop")
	case OpDup:
		fmt.Fprintf(w, "dup.%d", instr.Imm)
	case OpMovUp:
		fmt.Fprintf(w, "movup.%d", instr.Imm)
	case OpMovDown:
		fmt.Fprintf(w, "movdn.%d", instr.Imm)
	case OpSwap:
		w.WriteString("swap")
	case OpAssert:
		w.WriteString("assert")
	case OpAssertZero:
		w.WriteString("assertz")
	case OpU32CheckedAdd:
		w.WriteString("u32checked_add")
	case OpU32CheckedSub:
		w.WriteString("u32checked_sub")
	case OpU32CheckedMul:
		w.WriteString("u32checked_mul")
	case OpU32CheckedDiv:
		w.WriteString("u32checked_div")
	case OpU32CheckedMod:
		w.WriteString("u32checked_mod")
	case OpU32CheckedAnd:
		w.WriteString("u32checked_and")
	case OpU32CheckedOr:
		w.WriteString("u32checked_or")
	case OpU32CheckedXor:
		w.WriteString("u32checked_xor")
	case OpU32CheckedShl:
		w.WriteString("u32checked_shl")
	case OpU32CheckedShr:
		w.WriteString("u32checked_shr")
	case OpU32CheckedEq:
		w.WriteString("u32checked_eq")
	case OpU32CheckedNeq:
		w.WriteString("u32checked_neq")
	case OpU32CheckedLt:
		w.WriteString("u32checked_lt")
	case OpU32CheckedLte:
		w.WriteString("u32checked_lte")
	case OpU32CheckedGt:
		w.WriteString("u32checked_gt")
	case OpU32CheckedGte:
		w.WriteString("u32checked_gte")
	case OpU32WrappingAdd:
		w.WriteString("u32wrapping_add")
	case OpU32WrappingSub:
		w.WriteString("u32wrapping_sub")
	case OpU32WrappingMul:
		w.WriteString("u32wrapping_mul")
	case OpAnd:
		w.WriteString("and")
	case OpOr:
		w.WriteString("or")
	case OpNot:
		w.WriteString("not")
	case OpEq:
		w.WriteString("eq")
	case OpEqz:
		w.WriteString("eqz")
	case OpMemStore:
		writeMemOp(w, "mem_store", instr.Addr)
	case OpMemLoad:
		writeMemOp(w, "mem_load", instr.Addr)
	case OpMemLoadW:
		writeMemOp(w, "mem_loadw", instr.Addr)
	case OpMemStoreW:
		writeMemOp(w, "mem_storew", instr.Addr)
	case OpAdvPush:
		fmt.Fprintf(w, "adv_push.%d", instr.Imm)
	case OpHMerge:
		w.WriteString("hmerge")
	case OpExec:
		fmt.Fprintf(w, "exec.%s", instr.ExecRef)
	case OpComment:
		w.WriteString("# ")
		w.WriteString(instr.Comment)
	default:
		return errors.Errorf("ir: unknown op %d", instr.Op)
	}
	w.WriteString("\n")
	return nil
}

func writeMemOp(w *strings.Builder, mnemonic string, addr *uint32) {
	if addr == nil {
		w.WriteString(mnemonic)
		return
	}
	w.WriteString(mnemonic)
	w.WriteString(".")
	w.WriteString(strconv.FormatUint(uint64(*addr), 10))
}

// emptyBranch is what the encoder substitutes for a structurally-required
// but semantically-empty branch: the target ISA forbids empty blocks.
func emptyBranch() []Instruction {
	return []Instruction{Push(0), Drop()}
}

// Drop0 returns a single push.0 tagged with the __empty_branch__
// comment. On its own it leaves the 0 on the stack; emptyBranch does not
// use it.
func Drop0() Instruction {
	return Instruction{Op: OpPush, Imm: 0, Comment: "__empty_branch__"}
}

func encodeIf(w *strings.Builder, instr Instruction, level int) error {
	if err := Encode(w, instr.Cond, level); err != nil {
		return err
	}
	indent(w, level)
	w.WriteString("if.true\n")

	then := instr.Then
	if len(then) == 0 {
		then = emptyBranch()
	}
	if err := Encode(w, then, level+1); err != nil {
		return err
	}

	if len(instr.Else) > 0 {
		indent(w, level)
		w.WriteString("else\n")
		if err := Encode(w, instr.Else, level+1); err != nil {
			return err
		}
	}

	indent(w, level)
	w.WriteString("end\n")
	return nil
}

func encodeWhile(w *strings.Builder, instr Instruction, level int) error {
	if err := Encode(w, instr.Cond, level); err != nil {
		return err
	}
	indent(w, level)
	w.WriteString("while.true\n")
	if err := Encode(w, instr.Body, level+1); err != nil {
		return err
	}
	if err := Encode(w, instr.Cond, level+1); err != nil {
		return err
	}
	indent(w, level)
	w.WriteString("end\n")
	return nil
}

func encodeWhileTrueRaw(w *strings.Builder, instr Instruction, level int) error {
	indent(w, level)
	w.WriteString("push.1\n")
	indent(w, level)
	w.WriteString("while.true\n")
	if err := Encode(w, instr.Body, level+1); err != nil {
		return err
	}
	indent(w, level)
	w.WriteString("end\n")
	return nil
}
