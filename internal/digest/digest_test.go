package digest

import (
	"testing"

	"github.com/polybase/polylang-sub000/internal/ir"
)

func TestMapKeyIsDeterministicAndPartBoundary(t *testing.T) {
	a := MapKey([]byte("Collection"), []byte("id-1"))
	b := MapKey([]byte("Collection"), []byte("id-1"))
	if a != b {
		t.Fatal("MapKey is not deterministic for identical input")
	}

	// The length prefix on each part must prevent "ab","c" from colliding
	// with "a","bc" — otherwise two distinct (collection, id) pairs could
	// key the same advice-map entry.
	c := MapKey([]byte("ab"), []byte("c"))
	d := MapKey([]byte("a"), []byte("bc"))
	if c == d {
		t.Fatal("MapKey collided across a part boundary")
	}
}

func TestHMergeAccumulatorInitPushesFourZeros(t *testing.T) {
	instrs := []ir.Instruction{}
	acc := HMergeAccumulator{Instrs: &instrs}
	acc.Init()
	if len(instrs) != 4 {
		t.Fatalf("Init emitted %d instructions, want 4", len(instrs))
	}
	for i, instr := range instrs {
		if instr.Op != ir.OpPush {
			t.Errorf("instr[%d].Op = %v, want OpPush", i, instr.Op)
		}
	}
}

func TestHMergeAccumulatorFoldWordEmitsHMerge(t *testing.T) {
	instrs := []ir.Instruction{}
	acc := HMergeAccumulator{Instrs: &instrs}
	acc.FoldWord()
	if len(instrs) != 1 || instrs[0].Op != ir.OpHMerge {
		t.Fatalf("FoldWord did not emit a single OpHMerge instruction, got %+v", instrs)
	}
}
