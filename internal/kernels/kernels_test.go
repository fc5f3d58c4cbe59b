package kernels

import (
	"testing"

	"github.com/polybase/polylang-sub000/internal/abi"
	"github.com/polybase/polylang-sub000/internal/ir"
	"github.com/polybase/polylang-sub000/internal/mem"
)

func newCtx() Ctx {
	instrs := []ir.Instruction{}
	return Ctx{Instrs: &instrs, Planner: mem.New()}
}

func TestAllocAddressesDoNotOverlap(t *testing.T) {
	c := newCtx()
	a := c.Alloc(abi.UInt32())
	b := c.Alloc(abi.Hash())
	if b.Addr < a.Addr+a.Type.MidenWidth() {
		t.Fatalf("second Alloc at %d overlaps first Alloc's %d-word region at %d", b.Addr, a.Type.MidenWidth(), a.Addr)
	}
}

func TestNewArrayHeaderStartsEmpty(t *testing.T) {
	c := newCtx()
	arr := NewArray(c, abi.UInt32(), 0)
	if arr.Type.Kind != abi.KindArray {
		t.Fatalf("NewArray symbol has kind %v, want Array", arr.Type.Kind)
	}
	if got := arrLength(arr); got.Addr != arr.Addr+1 {
		t.Errorf("length word address = %d, want %d", got.Addr, arr.Addr+1)
	}
	stored := false
	for i, in := range *c.Instrs {
		if in.Op == ir.OpMemStore && in.Addr != nil && *in.Addr == arr.Addr+1 {
			stored = true
			if i == 0 || (*c.Instrs)[i-1].Op != ir.OpPush || (*c.Instrs)[i-1].Imm != 0 {
				t.Errorf("length word is not initialised to 0")
			}
		}
	}
	if !stored {
		t.Error("NewArray never writes the length word")
	}
}

func TestPushGrowsCapacityByDoubling(t *testing.T) {
	c := newCtx()
	arr := NewArray(c, abi.UInt32(), 1)
	before := len(*c.Instrs)

	one := NewUInt32(c, 1)
	Push(c, arr, abi.UInt32(), one)

	if len(*c.Instrs) <= before {
		t.Fatal("Push did not emit any instructions")
	}

	var pushesTwo func([]ir.Instruction) bool
	pushesTwo = func(is []ir.Instruction) bool {
		for _, in := range is {
			if (in.Kind == ir.ControlNone && in.Op == ir.OpPush && in.Imm == 2) ||
				pushesTwo(in.Cond) || pushesTwo(in.Then) || pushesTwo(in.Else) || pushesTwo(in.Body) {
				return true
			}
		}
		return false
	}
	if !pushesTwo((*c.Instrs)[before:]) {
		t.Error("Push emitted no multiply-by-2 of the capacity for its growth path")
	}
}

func TestNewMapPairsTwoArrays(t *testing.T) {
	c := newCtx()
	m := NewMap(c, abi.String(), abi.UInt32(), 0)
	keys := mapKeys(m, abi.String())
	vals := mapValues(m, abi.UInt32())
	if keys.Addr == vals.Addr {
		t.Fatal("map keys and values arrays must not share an address")
	}
}

func TestNewBooleanWritesZeroOrOne(t *testing.T) {
	c := newCtx()
	f := NewBoolean(c, false)
	tr := NewBoolean(c, true)
	if f.Type.Kind != abi.KindBoolean || tr.Type.Kind != abi.KindBoolean {
		t.Fatal("NewBoolean must produce a Boolean-kinded symbol")
	}
}

func TestU32ComparisonOpsProduceBooleanSymbols(t *testing.T) {
	c := newCtx()
	a := NewUInt32(c, 3)
	b := NewUInt32(c, 4)
	for _, sym := range []Symbol{U32Eq(c, a, b), U32Lt(c, a, b), U32Gte(c, a, b)} {
		if sym.Type.Kind != abi.KindBoolean {
			t.Errorf("comparison result kind = %v, want Boolean", sym.Type.Kind)
		}
	}
}
