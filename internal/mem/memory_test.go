package mem

import (
	"testing"

	"github.com/polybase/polylang-sub000/internal/ir"
)

func TestPlannerAllocateIsMonotonicPastReserved(t *testing.T) {
	p := New()
	if got := p.StaticEnd(); got != FirstStaticAddr {
		t.Fatalf("fresh planner StaticEnd = %d, want %d", got, FirstStaticAddr)
	}

	a := p.Allocate(3)
	if a != FirstStaticAddr {
		t.Fatalf("first Allocate(3) = %d, want %d", a, FirstStaticAddr)
	}
	b := p.Allocate(2)
	if b != FirstStaticAddr+3 {
		t.Fatalf("second Allocate(2) = %d, want %d", b, FirstStaticAddr+3)
	}
	if got, want := p.StaticEnd(), FirstStaticAddr+5; got != want {
		t.Fatalf("StaticEnd = %d, want %d", got, want)
	}
}

func TestWriteEmitsOneStorePerSource(t *testing.T) {
	var instrs []ir.Instruction
	Write(&instrs, 10, []Source{Immediate(5), FromMemory(2), FromStack()})

	wantOps := []ir.Op{ir.OpPush, ir.OpMemStore, ir.OpMemLoad, ir.OpMemStore, ir.OpMemStore}
	if len(instrs) != len(wantOps) {
		t.Fatalf("got %d instructions, want %d", len(instrs), len(wantOps))
	}
	for i, op := range wantOps {
		if instrs[i].Op != op {
			t.Errorf("instr[%d].Op = %v, want %v", i, instrs[i].Op, op)
		}
	}
}

func TestReadIsTopmostFirst(t *testing.T) {
	var instrs []ir.Instruction
	Read(&instrs, 20, 3)
	if len(instrs) != 3 {
		t.Fatalf("got %d instructions, want 3", len(instrs))
	}
	if *instrs[0].Addr != 22 {
		t.Errorf("first load addr = %d, want 22 (deepest)", *instrs[0].Addr)
	}
	if *instrs[2].Addr != 20 {
		t.Errorf("last load addr = %d, want 20 (ends on top)", *instrs[2].Addr)
	}
}
