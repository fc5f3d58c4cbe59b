// Package abi defines the type/value model shared between the compiler
// and its runtime driver: the Type sum, its wire width in field elements,
// the Value sum that mirrors it, and the serialization used for the
// advice tape, advice map, and input stack.
package abi

import "fmt"

// Kind discriminates the Type sum. It is a closed set by design — see
// the lowerer's dispatch in package lower, which matches over Kind
// exhaustively rather than through an open interface.
type Kind int

const (
	KindBoolean Kind = iota
	KindUInt32
	KindUInt64
	KindInt32
	KindInt64
	KindFloat32
	KindFloat64
	KindString
	KindBytes
	KindContractReference
	KindArray
	KindMap
	KindHash
	KindHash8
	KindPublicKey
	KindStruct
	KindNullable
)

func (k Kind) String() string {
	switch k {
	case KindBoolean:
		return "Boolean"
	case KindUInt32:
		return "UInt32"
	case KindUInt64:
		return "UInt64"
	case KindInt32:
		return "Int32"
	case KindInt64:
		return "Int64"
	case KindFloat32:
		return "Float32"
	case KindFloat64:
		return "Float64"
	case KindString:
		return "String"
	case KindBytes:
		return "Bytes"
	case KindContractReference:
		return "ContractReference"
	case KindArray:
		return "Array"
	case KindMap:
		return "Map"
	case KindHash:
		return "Hash"
	case KindHash8:
		return "Hash8"
	case KindPublicKey:
		return "PublicKey"
	case KindStruct:
		return "Struct"
	case KindNullable:
		return "Nullable"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// StructField is one (name, Type) pair of a Struct, in declaration order.
type StructField struct {
	Name string
	Type Type
}

// Type is the compiler's closed type sum. Composite kinds use the
// relevant optional fields: Elem for Array/Nullable, Key+Elem for Map,
// Name+Fields for Struct, Name for ContractReference.
type Type struct {
	Kind   Kind
	Name   string // ContractReference collection name, or Struct name
	Key    *Type  // Map key type
	Elem   *Type  // Array element type, Map value type, Nullable inner type
	Fields []StructField
}

func Boolean() Type           { return Type{Kind: KindBoolean} }
func UInt32() Type            { return Type{Kind: KindUInt32} }
func UInt64() Type            { return Type{Kind: KindUInt64} }
func Int32() Type             { return Type{Kind: KindInt32} }
func Int64() Type             { return Type{Kind: KindInt64} }
func Float32() Type           { return Type{Kind: KindFloat32} }
func Float64() Type           { return Type{Kind: KindFloat64} }
func String() Type            { return Type{Kind: KindString} }
func Bytes() Type             { return Type{Kind: KindBytes} }
func Hash() Type               { return Type{Kind: KindHash} }
func Hash8() Type              { return Type{Kind: KindHash8} }
func PublicKey() Type          { return Type{Kind: KindPublicKey} }

func ContractReference(collection string) Type {
	return Type{Kind: KindContractReference, Name: collection}
}

func Array(elem Type) Type {
	return Type{Kind: KindArray, Elem: &elem}
}

func Map(key, val Type) Type {
	return Type{Kind: KindMap, Key: &key, Elem: &val}
}

func Struct(name string, fields []StructField) Type {
	return Type{Kind: KindStruct, Name: name, Fields: fields}
}

func Nullable(inner Type) Type {
	return Type{Kind: KindNullable, Elem: &inner}
}

// MidenWidth returns t's fixed width in field elements, the invariant
// shared by the compiler's memory planner and the runtime's ABI reader.
func (t Type) MidenWidth() uint32 {
	switch t.Kind {
	case KindBoolean, KindUInt32, KindInt32, KindFloat32:
		return 1
	case KindUInt64, KindInt64, KindFloat64:
		return 2
	case KindString, KindBytes, KindContractReference:
		return 2 // length, data-pointer
	case KindArray:
		return 3 // capacity, length, data-pointer
	case KindMap:
		return 6 // two array headers back-to-back
	case KindHash:
		return 4
	case KindHash8:
		return 8
	case KindPublicKey:
		return 5 // kty, crv, alg, use, extra-pointer
	case KindStruct:
		var w uint32
		for _, f := range t.Fields {
			w += f.Type.MidenWidth()
		}
		return w
	case KindNullable:
		return 1 + t.Elem.MidenWidth()
	default:
		panic(fmt.Sprintf("abi: unknown kind %v", t.Kind))
	}
}

// Field looks up a struct field by name, grounded on mod.rs's
// struct_field helper.
func (t Type) Field(name string) (StructField, bool) {
	for _, f := range t.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return StructField{}, false
}

// Equal reports structural equality of two types (ignoring Struct field
// order semantics beyond name+type match, since layout is positional
// elsewhere).
func (t Type) Equal(o Type) bool {
	if t.Kind != o.Kind {
		return false
	}
	switch t.Kind {
	case KindContractReference:
		return t.Name == o.Name
	case KindArray:
		return t.Elem.Equal(*o.Elem)
	case KindMap:
		return t.Key.Equal(*o.Key) && t.Elem.Equal(*o.Elem)
	case KindNullable:
		return t.Elem.Equal(*o.Elem)
	case KindStruct:
		if t.Name != o.Name || len(t.Fields) != len(o.Fields) {
			return false
		}
		for i := range t.Fields {
			if t.Fields[i].Name != o.Fields[i].Name || !t.Fields[i].Type.Equal(o.Fields[i].Type) {
				return false
			}
		}
		return true
	default:
		return true
	}
}
