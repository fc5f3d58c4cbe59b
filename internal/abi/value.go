package abi

import (
	"encoding/json"
	"math"

	"github.com/pkg/errors"
)

// ErrType is returned when a Value does not match the Type an operation
// expected it to have.
var ErrType = errors.New("abi: value does not match expected type")

// PublicKeyValue is the runtime payload of a PublicKey: four small
// header scalars plus the 64 raw x‖y bytes.
type PublicKeyValue struct {
	KTY   uint32
	CRV   uint32
	Alg   uint32
	Use   uint32
	Bytes [64]byte
}

// Value is the runtime-side mirror of Type: a tagged sum of concrete
// data produced by executing a program and decoding its output.
type Value struct {
	Type Type

	Bool   bool
	U32    uint32
	U64    uint64
	I32    int32
	I64    int64
	F32    float32
	F64    float64
	Str    string
	Bytes  []byte
	Ref    string // ContractReference id
	Arr    []Value
	MapKV  []MapEntry
	Hash   [4]uint64
	Hash8  [8]uint64
	PubKey PublicKeyValue
	Struct []Value // positional, matching Type.Fields order
	Null   bool    // Nullable: true means "absent"
	Inner  *Value  // Nullable: present value
}

// MapEntry is one key/value pair of a Map value, insertion ordered.
type MapEntry struct {
	Key Value
	Val Value
}

// Serialize flattens v into the advice-tape wire format: a sequence of
// u64 field elements. Variable-length leaves are prefixed with their
// length; arrays and maps are prefixed with their element count.
func (v Value) Serialize() ([]uint64, error) {
	if v.Type.Kind == KindNullable {
		if v.Null || v.Inner == nil {
			out := []uint64{0}
			zeros := make([]uint64, v.Type.Elem.MidenWidth())
			return append(out, zeros...), nil
		}
		inner, err := v.Inner.Serialize()
		if err != nil {
			return nil, err
		}
		return append([]uint64{1}, inner...), nil
	}

	switch v.Type.Kind {
	case KindBoolean:
		if v.Bool {
			return []uint64{1}, nil
		}
		return []uint64{0}, nil
	case KindUInt32:
		return []uint64{uint64(v.U32)}, nil
	case KindUInt64:
		return []uint64{v.U64 >> 32, v.U64 & 0xFFFFFFFF}, nil
	case KindInt32:
		return []uint64{uint64(uint32(v.I32))}, nil
	case KindInt64:
		u := uint64(v.I64)
		return []uint64{u >> 32, u & 0xFFFFFFFF}, nil
	case KindFloat32:
		return []uint64{uint64(math.Float32bits(v.F32))}, nil
	case KindFloat64:
		return []uint64{math.Float64bits(v.F64) >> 32, math.Float64bits(v.F64) & 0xFFFFFFFF}, nil
	case KindString:
		return serializeBytes([]byte(v.Str)), nil
	case KindBytes:
		return serializeBytes(v.Bytes), nil
	case KindContractReference:
		return serializeBytes([]byte(v.Ref)), nil
	case KindHash:
		out := make([]uint64, 4)
		copy(out, v.Hash[:])
		return out, nil
	case KindHash8:
		out := make([]uint64, 8)
		copy(out, v.Hash8[:])
		return out, nil
	case KindPublicKey:
		out := []uint64{uint64(v.PubKey.KTY), uint64(v.PubKey.CRV), uint64(v.PubKey.Alg), uint64(v.PubKey.Use)}
		for _, b := range v.PubKey.Bytes {
			out = append(out, uint64(b))
		}
		return out, nil
	case KindArray:
		out := []uint64{uint64(len(v.Arr))}
		for _, e := range v.Arr {
			enc, err := e.Serialize()
			if err != nil {
				return nil, err
			}
			out = append(out, enc...)
		}
		return out, nil
	case KindMap:
		out := []uint64{uint64(len(v.MapKV))}
		for _, kv := range v.MapKV {
			ek, err := kv.Key.Serialize()
			if err != nil {
				return nil, err
			}
			ev, err := kv.Val.Serialize()
			if err != nil {
				return nil, err
			}
			out = append(out, ek...)
			out = append(out, ev...)
		}
		return out, nil
	case KindStruct:
		var out []uint64
		for _, f := range v.Struct {
			enc, err := f.Serialize()
			if err != nil {
				return nil, err
			}
			out = append(out, enc...)
		}
		return out, nil
	default:
		return nil, errors.Wrapf(ErrType, "serialize: unhandled kind %v", v.Type.Kind)
	}
}

func serializeBytes(b []byte) []uint64 {
	out := make([]uint64, 0, 1+len(b))
	out = append(out, uint64(len(b)))
	for _, c := range b {
		out = append(out, uint64(c))
	}
	return out
}

// ToJSON lossily converts v to a JSON-encodable Go value, following the
// driver's "lossy conversion to JSON" contract: hashes become arrays of
// their word values, public keys become a JWK-ish object, and NaN/Inf floats
// become JSON null since the format has no literal for them.
func (v Value) ToJSON() (any, error) {
	switch v.Type.Kind {
	case KindBoolean:
		return v.Bool, nil
	case KindUInt32:
		return v.U32, nil
	case KindUInt64:
		return v.U64, nil
	case KindInt32:
		return v.I32, nil
	case KindInt64:
		return v.I64, nil
	case KindFloat32:
		if math.IsNaN(float64(v.F32)) || math.IsInf(float64(v.F32), 0) {
			return nil, nil
		}
		return v.F32, nil
	case KindFloat64:
		if math.IsNaN(v.F64) || math.IsInf(v.F64, 0) {
			return nil, nil
		}
		return v.F64, nil
	case KindString:
		return v.Str, nil
	case KindBytes:
		return v.Bytes, nil
	case KindContractReference:
		return map[string]any{"collection": v.Type.Name, "id": v.Ref}, nil
	case KindHash:
		return v.Hash, nil
	case KindHash8:
		return v.Hash8, nil
	case KindPublicKey:
		return map[string]any{
			"kty": v.PubKey.KTY,
			"crv": v.PubKey.CRV,
			"alg": v.PubKey.Alg,
			"use": v.PubKey.Use,
			"x":   v.PubKey.Bytes[:32],
			"y":   v.PubKey.Bytes[32:],
		}, nil
	case KindArray:
		out := make([]any, len(v.Arr))
		for i, e := range v.Arr {
			j, err := e.ToJSON()
			if err != nil {
				return nil, err
			}
			out[i] = j
		}
		return out, nil
	case KindMap:
		out := make(map[string]any, len(v.MapKV))
		for _, kv := range v.MapKV {
			k, err := kv.Key.ToJSON()
			if err != nil {
				return nil, err
			}
			val, err := kv.Val.ToJSON()
			if err != nil {
				return nil, err
			}
			if ks, ok := k.(string); ok {
				out[ks] = val
			} else {
				b, _ := json.Marshal(k)
				out[string(b)] = val
			}
		}
		return out, nil
	case KindNullable:
		if v.Null || v.Inner == nil {
			return nil, nil
		}
		return v.Inner.ToJSON()
	case KindStruct:
		out := make(map[string]any, len(v.Struct))
		for i, f := range v.Type.Fields {
			j, err := v.Struct[i].ToJSON()
			if err != nil {
				return nil, err
			}
			out[f.Name] = j
		}
		return out, nil
	default:
		return nil, errors.Wrapf(ErrType, "toJSON: unhandled kind %v", v.Type.Kind)
	}
}
