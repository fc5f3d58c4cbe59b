package abi

import (
	"encoding/base64"
	"encoding/json"
	"encoding/hex"

	"github.com/pkg/errors"
)

// ErrMissingField is returned by Parse when a required JSON field of a
// Struct is absent.
var ErrMissingField = errors.New("abi: missing required field in json")

// Parse converts a JSON document into a Value of the given type,
// following the ABI's lossy-but-invertible text convention: numbers
// decode straight into their numeric kind, strings/bytes decode from
// UTF-8 / base64 respectively, and public keys accept either a JWK-ish
// object or a "0x"-prefixed hex string of the raw 64-byte x‖y encoding
// (a 33-byte compressed key is rejected with an error).
func Parse(t Type, raw json.RawMessage) (Value, error) {
	switch t.Kind {
	case KindBoolean:
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return Value{}, errors.Wrap(err, "abi: parse boolean")
		}
		return Value{Type: t, Bool: b}, nil
	case KindUInt32:
		var n uint32
		if err := json.Unmarshal(raw, &n); err != nil {
			return Value{}, errors.Wrap(err, "abi: parse uint32")
		}
		return Value{Type: t, U32: n}, nil
	case KindUInt64:
		var n uint64
		if err := json.Unmarshal(raw, &n); err != nil {
			return Value{}, errors.Wrap(err, "abi: parse uint64")
		}
		return Value{Type: t, U64: n}, nil
	case KindInt32:
		var n int32
		if err := json.Unmarshal(raw, &n); err != nil {
			return Value{}, errors.Wrap(err, "abi: parse int32")
		}
		return Value{Type: t, I32: n}, nil
	case KindInt64:
		var n int64
		if err := json.Unmarshal(raw, &n); err != nil {
			return Value{}, errors.Wrap(err, "abi: parse int64")
		}
		return Value{Type: t, I64: n}, nil
	case KindFloat32:
		var f float64
		if err := json.Unmarshal(raw, &f); err != nil {
			return Value{}, errors.Wrap(err, "abi: parse float32")
		}
		return Value{Type: t, F32: float32(f)}, nil
	case KindFloat64:
		var f float64
		if err := json.Unmarshal(raw, &f); err != nil {
			return Value{}, errors.Wrap(err, "abi: parse float64")
		}
		return Value{Type: t, F64: f}, nil
	case KindString:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return Value{}, errors.Wrap(err, "abi: parse string")
		}
		return Value{Type: t, Str: s}, nil
	case KindBytes:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return Value{}, errors.Wrap(err, "abi: parse bytes")
		}
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return Value{}, errors.Wrap(err, "abi: bytes is not valid base64")
		}
		return Value{Type: t, Bytes: b}, nil
	case KindContractReference:
		var obj struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(raw, &obj); err != nil {
			return Value{}, errors.Wrap(err, "abi: parse contract reference")
		}
		return Value{Type: t, Ref: obj.ID}, nil
	case KindPublicKey:
		return parsePublicKey(t, raw)
	case KindArray:
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return Value{}, errors.Wrap(err, "abi: parse array")
		}
		out := make([]Value, len(items))
		for i, item := range items {
			v, err := Parse(*t.Elem, item)
			if err != nil {
				return Value{}, err
			}
			out[i] = v
		}
		return Value{Type: t, Arr: out}, nil
	case KindMap:
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err != nil {
			return Value{}, errors.Wrap(err, "abi: parse map")
		}
		entries := make([]MapEntry, 0, len(obj))
		for k, v := range obj {
			kv, err := Parse(*t.Key, json.RawMessage(`"`+k+`"`))
			if err != nil {
				return Value{}, err
			}
			vv, err := Parse(*t.Elem, v)
			if err != nil {
				return Value{}, err
			}
			entries = append(entries, MapEntry{Key: kv, Val: vv})
		}
		return Value{Type: t, MapKV: entries}, nil
	case KindNullable:
		if string(raw) == "null" {
			return Value{Type: t, Null: true}, nil
		}
		inner, err := Parse(*t.Elem, raw)
		if err != nil {
			return Value{}, err
		}
		return Value{Type: t, Inner: &inner}, nil
	case KindStruct:
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err != nil {
			return Value{}, errors.Wrap(err, "abi: parse struct")
		}
		fields := make([]Value, len(t.Fields))
		for i, f := range t.Fields {
			raw, ok := obj[f.Name]
			if !ok {
				return Value{}, errors.Wrapf(ErrMissingField, "struct %s field %s", t.Name, f.Name)
			}
			v, err := Parse(f.Type, raw)
			if err != nil {
				return Value{}, err
			}
			fields[i] = v
		}
		return Value{Type: t, Struct: fields}, nil
	default:
		return Value{}, errors.Wrapf(ErrType, "parse: unhandled kind %v", t.Kind)
	}
}

func parsePublicKey(t Type, raw json.RawMessage) (Value, error) {
	var asHex string
	if err := json.Unmarshal(raw, &asHex); err == nil {
		return parsePublicKeyHex(t, asHex)
	}

	var obj struct {
		KTY uint32 `json:"kty"`
		CRV uint32 `json:"crv"`
		Alg uint32 `json:"alg"`
		Use uint32 `json:"use"`
		X   string `json:"x"`
		Y   string `json:"y"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return Value{}, errors.Wrap(err, "abi: parse public key")
	}
	x, err := base64.RawURLEncoding.DecodeString(obj.X)
	if err != nil {
		return Value{}, errors.Wrap(err, "abi: public key x is not base64url")
	}
	y, err := base64.RawURLEncoding.DecodeString(obj.Y)
	if err != nil {
		return Value{}, errors.Wrap(err, "abi: public key y is not base64url")
	}
	pk := PublicKeyValue{KTY: obj.KTY, CRV: obj.CRV, Alg: obj.Alg, Use: obj.Use}
	copy(pk.Bytes[0:32], x)
	copy(pk.Bytes[32:64], y)
	return Value{Type: t, PubKey: pk}, nil
}

// parsePublicKeyHex accepts the 64-byte raw (x‖y) "0x"-prefixed
// encoding referenced by the @call(eth#<literal>) form in §4.8 of the
// compiler's contract. A 33-byte compressed key is rejected with an
// error; no point decompression is performed.
func parsePublicKeyHex(t Type, s string) (Value, error) {
	if len(s) >= 2 && (s[0:2] == "0x" || s[0:2] == "0X") {
		s = s[2:]
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return Value{}, errors.Wrap(err, "abi: public key hex literal is malformed")
	}
	pk := PublicKeyValue{KTY: 2, CRV: 1, Alg: 0, Use: 1}
	switch len(b) {
	case 64:
		copy(pk.Bytes[:], b)
	case 33:
		return Value{}, errors.New("abi: compressed public key decompression is not implemented by this compiler; supply raw x||y bytes")
	default:
		return Value{}, errors.Errorf("abi: public key literal must be 64 raw or 33 compressed bytes, got %d", len(b))
	}
	return Value{Type: t, PubKey: pk}, nil
}
