package ir

import (
	"strings"
	"testing"
)

func TestEncodeLeafInstructions(t *testing.T) {
	instrs := []Instruction{
		Push(7),
		Dup(0),
		Assert(),
		MemStore(Addr32(3)),
		MemLoad(nil),
		AdvPush(2),
		Exec("u64::checked_add"),
		Comment("scratch"),
	}

	var b strings.Builder
	if err := Encode(&b, instrs, 1); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	out := b.String()

	for _, want := range []string{"push.7", "dup.0", "assert", "mem_store.3", "mem_load", "adv_push.2", "exec.u64::checked_add", "# scratch"} {
		if !strings.Contains(out, want) {
			t.Errorf("Encode output missing %q, got:\n%s", want, out)
		}
	}
}

func TestEncodeRejectsAbstractInstruction(t *testing.T) {
	var b strings.Builder
	err := Encode(&b, []Instruction{Return()}, 1)
	if err == nil {
		t.Fatal("expected Encode to reject an unabstracted Return marker")
	}
}

func TestUnabstractReturnUsesAllocatedFlag(t *testing.T) {
	var nextAddr uint32 = 100
	alloc := func(n uint32) uint32 {
		a := nextAddr
		nextAddr += n
		return a
	}

	instrs := []Instruction{
		Push(1),
		Return(),
		Push(2), // dead after the return, but still emitted; If wrapping gates it
	}

	out := Unabstract(instrs, alloc)

	var b strings.Builder
	if err := Encode(&b, out, 1); err != nil {
		t.Fatalf("Encode after Unabstract: %v", err)
	}
	if strings.Contains(b.String(), "<") {
		t.Errorf("encoded output should contain no unresolved markers, got:\n%s", b.String())
	}
	for _, want := range []string{"mem_store.100", "mem_load.100"} {
		if !strings.Contains(b.String(), want) {
			t.Errorf("return flag at the allocated address 100 not used, missing %q in:\n%s", want, b.String())
		}
	}
}

func TestUnabstractBreakAllocatesPerLoop(t *testing.T) {
	var nextAddr uint32 = 200
	alloc := func(n uint32) uint32 {
		a := nextAddr
		nextAddr += n
		return a
	}

	loop := While([]Instruction{Push(1)}, []Instruction{
		Push(1),
		Break(),
	})

	out := Unabstract([]Instruction{loop}, alloc)
	var b strings.Builder
	if err := Encode(&b, out, 1); err != nil {
		t.Fatalf("Encode after Unabstract: %v", err)
	}
	for _, want := range []string{"mem_store.200", "mem_load.200"} {
		if !strings.Contains(b.String(), want) {
			t.Errorf("loop's break flag at the allocated address 200 not used, missing %q in:\n%s", want, b.String())
		}
	}
}

func TestInlinedFunctionReturnDoesNotEscape(t *testing.T) {
	var nextAddr uint32 = 300
	alloc := func(n uint32) uint32 {
		a := nextAddr
		nextAddr += n
		return a
	}

	instrs := []Instruction{
		InlinedFunction([]Instruction{
			Push(1),
			Return(),
		}),
		Push(2),
	}

	out := Unabstract(instrs, alloc)
	var b strings.Builder
	if err := Encode(&b, out, 1); err != nil {
		t.Fatalf("Encode after Unabstract: %v", err)
	}
	if !strings.HasSuffix(b.String(), "  end\n  push.2\n") {
		t.Errorf("push.2 after the inlined call should follow its guard unguarded, got:\n%s", b.String())
	}
}
