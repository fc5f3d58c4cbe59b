package lower

import (
	"strings"
	"testing"

	"github.com/polybase/polylang-sub000/internal/ast"
)

// simpleProgram builds a one-collection program: a Counter record with a
// single Float32-shaped "count" field (declared as ast.FieldNumber, the
// only numeric field shape the AST has), a constructor that leaves the
// field at its zero image, and a no-op getter that returns nothing.
func simpleProgram() *ast.Program {
	return &ast.Program{
		Nodes: []ast.RootNode{
			{
				Collection: &ast.Collection{
					Name: "Counter",
					Fields: []ast.Field{
						{Name: "count", Type: ast.FieldNumber, Required: true},
					},
					Functions: []*ast.Function{
						{Name: "constructor"},
						{Name: "touch"},
					},
				},
			},
		},
	}
}

func TestCompileWrapsISAWithStdHeader(t *testing.T) {
	out, err := Compile(simpleProgram(), "Counter", "constructor")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !strings.HasPrefix(out.ISA, "use.std::math::u64\nbegin\n  push.") {
		t.Fatalf("ISA missing std header, got:\n%s", out.ISA[:min(80, len(out.ISA))])
	}
	if !strings.Contains(out.ISA, "mem_store.3") {
		t.Error("ISA missing the dynamic-allocator seed store")
	}
	if !strings.HasSuffix(out.ISA, "end\n") {
		t.Error("ISA missing closing end")
	}
}

func TestCompileConstructorPopulatesThisAddr(t *testing.T) {
	out, err := Compile(simpleProgram(), "Counter", "constructor")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if out.Descriptor.ThisAddr == nil {
		t.Fatal("constructor descriptor has no ThisAddr")
	}
	if out.Descriptor.ThisType == nil || out.Descriptor.ThisType.Name != "Counter" {
		t.Errorf("ThisType = %v, want Counter", out.Descriptor.ThisType)
	}
}

func TestCompileUnknownCollectionErrors(t *testing.T) {
	_, err := Compile(simpleProgram(), "NoSuchCollection", "constructor")
	if err == nil {
		t.Fatal("expected an error for an unknown collection")
	}
}

func TestCompileUnknownFunctionErrors(t *testing.T) {
	_, err := Compile(simpleProgram(), "Counter", "noSuchMethod")
	if err == nil {
		t.Fatal("expected an error for an unknown function")
	}
}

func TestCompileNonConstructorMethodProducesDescriptor(t *testing.T) {
	out, err := Compile(simpleProgram(), "Counter", "touch")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if out.Descriptor.ThisAddr == nil {
		t.Fatal("touch's descriptor has no ThisAddr")
	}
	if out.Descriptor.ResultAddr != nil {
		t.Error("touch declares no return type, ResultAddr should be nil")
	}
}

func TestCompileReadAuthProgram(t *testing.T) {
	out, err := Compile(simpleProgram(), "Counter", ReadAuthMethod)
	if err != nil {
		t.Fatalf("Compile(.readAuth): %v", err)
	}
	if !strings.Contains(out.ISA, "use.std::math::u64") {
		t.Error(".readAuth ISA missing std header")
	}
}
