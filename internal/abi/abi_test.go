package abi

import (
	"encoding/json"
	"testing"
)

func TestParseRoundTripScalars(t *testing.T) {
	cases := []struct {
		name string
		typ  Type
		json string
	}{
		{"boolean", Boolean(), `true`},
		{"uint32", UInt32(), `42`},
		{"string", String(), `"hello"`},
		{"bytes", Bytes(), `"aGVsbG8="`},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			v, err := Parse(c.typ, json.RawMessage(c.json))
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			out, err := v.ToJSON()
			if err != nil {
				t.Fatalf("ToJSON: %v", err)
			}
			reencoded, err := json.Marshal(out)
			if err != nil {
				t.Fatalf("re-marshal: %v", err)
			}
			// Compare via decoded-JSON equality rather than byte equality,
			// since map/array key and whitespace order can differ.
			var want, got any
			if err := json.Unmarshal([]byte(c.json), &want); err != nil {
				t.Fatalf("unmarshal want: %v", err)
			}
			if err := json.Unmarshal(reencoded, &got); err != nil {
				t.Fatalf("unmarshal got: %v", err)
			}
			if toComparable(want) != toComparable(got) {
				t.Errorf("round trip mismatch: want %v, got %v", want, got)
			}
		})
	}
}

// toComparable normalizes json.Unmarshal's any-typed output (where
// numbers are always float64) into a string key, good enough for this
// test's scalar-only cases.
func toComparable(v any) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func TestParseStructRequiresEveryField(t *testing.T) {
	st := Struct("Point", []StructField{
		{Name: "x", Type: UInt32()},
		{Name: "y", Type: UInt32()},
	})
	_, err := Parse(st, json.RawMessage(`{"x": 1}`))
	if err == nil {
		t.Fatal("expected an error for a struct literal missing field y")
	}
}

func TestReaderMatchesCompilerMemoryLayout(t *testing.T) {
	// This mirrors how internal/mem.Write lays out a Struct{Boolean,
	// UInt32} at a base address: fields back to back, in declaration
	// order, at MidenWidth()-spaced offsets.
	st := Struct("Pair", []StructField{
		{Name: "flag", Type: Boolean()},
		{Name: "n", Type: UInt32()},
	})
	mem := Memory{10: 1, 11: 99}

	v, err := (Reader{Mem: mem}).Read(st, 10)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !v.Struct[0].Bool {
		t.Errorf("flag = %v, want true", v.Struct[0].Bool)
	}
	if v.Struct[1].U32 != 99 {
		t.Errorf("n = %d, want 99", v.Struct[1].U32)
	}
}

func TestReaderByteLikeFollowsDataPointer(t *testing.T) {
	// length=3 at addr, dataPtr=50 at addr+1, bytes "abc" at 50..52 —
	// the layout kernels.newByteLike's Write calls produce.
	mem := Memory{
		0: 3, 1: 50,
		50: 'a', 51: 'b', 52: 'c',
	}
	v, err := (Reader{Mem: mem}).Read(String(), 0)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if v.Str != "abc" {
		t.Errorf("Str = %q, want %q", v.Str, "abc")
	}
}

func TestSerializeByteLikeIsLengthPrefixed(t *testing.T) {
	v := Value{Type: String(), Str: "ab"}
	words, err := v.Serialize()
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	want := []uint64{2, 'a', 'b'}
	if len(words) != len(want) {
		t.Fatalf("got %v, want %v", words, want)
	}
	for i := range want {
		if words[i] != want[i] {
			t.Errorf("word[%d] = %d, want %d", i, words[i], want[i])
		}
	}
}

func TestCheckVersionRejectsMajorMismatch(t *testing.T) {
	if err := CheckVersion("v1.2.0", "v2.0.0"); err == nil {
		t.Fatal("expected a major-version mismatch to be rejected")
	}
	if err := CheckVersion("v1.2.0", "v1.9.0"); err != nil {
		t.Errorf("expected same-major versions to be compatible, got %v", err)
	}
}
