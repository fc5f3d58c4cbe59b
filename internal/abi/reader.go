package abi

import (
	"math"
	"unicode/utf8"

	"github.com/pkg/errors"
)

// ErrInvalidAddress is returned when a reader dereferences an address the
// memory snapshot has no data for.
var ErrInvalidAddress = errors.New("abi: invalid memory address")

// ErrInvalidUTF8 is returned when a String read does not decode as UTF-8.
var ErrInvalidUTF8 = errors.New("abi: invalid utf-8 in string read")

// Memory is the read side of the runtime's word-addressed memory: a
// snapshot taken after the last successful VM step. Reads of
// never-written addresses return 0, matching the VM's zero-initialized
// semantics.
type Memory map[uint32]uint64

func (m Memory) word(addr uint32) uint64 { return m[addr] }

// Reader reconstructs a Value tree from a Memory snapshot by walking the
// Type the same way the compiler laid it out: the in-memory layout of a
// composite equals the concatenation of its parts in declaration order.
type Reader struct {
	Mem Memory
}

// Read reconstructs the Value of type t stored starting at addr.
func (r Reader) Read(t Type, addr uint32) (Value, error) {
	switch t.Kind {
	case KindBoolean:
		w := r.Mem.word(addr)
		if w != 0 && w != 1 {
			return Value{}, errors.Wrapf(ErrType, "boolean cell at %d holds %d", addr, w)
		}
		return Value{Type: t, Bool: w == 1}, nil
	case KindUInt32:
		return Value{Type: t, U32: uint32(r.Mem.word(addr))}, nil
	case KindInt32:
		return Value{Type: t, I32: int32(uint32(r.Mem.word(addr)))}, nil
	case KindFloat32:
		return Value{Type: t, F32: math.Float32frombits(uint32(r.Mem.word(addr)))}, nil
	case KindUInt64:
		hi := r.Mem.word(addr)
		lo := r.Mem.word(addr + 1)
		return Value{Type: t, U64: hi<<32 | lo}, nil
	case KindInt64:
		hi := r.Mem.word(addr)
		lo := r.Mem.word(addr + 1)
		return Value{Type: t, I64: int64(hi<<32 | lo)}, nil
	case KindFloat64:
		hi := r.Mem.word(addr)
		lo := r.Mem.word(addr + 1)
		return Value{Type: t, F64: math.Float64frombits(hi<<32 | lo)}, nil
	case KindString, KindBytes, KindContractReference:
		return r.readBytesLike(t, addr)
	case KindHash:
		var h [4]uint64
		for i := range h {
			h[i] = r.Mem.word(addr + uint32(i))
		}
		return Value{Type: t, Hash: h}, nil
	case KindHash8:
		var h [8]uint64
		for i := range h {
			h[i] = r.Mem.word(addr + uint32(i))
		}
		return Value{Type: t, Hash8: h}, nil
	case KindPublicKey:
		pk := PublicKeyValue{
			KTY: uint32(r.Mem.word(addr)),
			CRV: uint32(r.Mem.word(addr + 1)),
			Alg: uint32(r.Mem.word(addr + 2)),
			Use: uint32(r.Mem.word(addr + 3)),
		}
		dataPtr := uint32(r.Mem.word(addr + 4))
		for i := 0; i < 64; i++ {
			pk.Bytes[i] = byte(r.Mem.word(dataPtr + uint32(i)))
		}
		return Value{Type: t, PubKey: pk}, nil
	case KindArray:
		length := uint32(r.Mem.word(addr + 1))
		dataPtr := uint32(r.Mem.word(addr + 2))
		elemW := t.Elem.MidenWidth()
		arr := make([]Value, length)
		for i := uint32(0); i < length; i++ {
			v, err := r.Read(*t.Elem, dataPtr+i*elemW)
			if err != nil {
				return Value{}, err
			}
			arr[i] = v
		}
		return Value{Type: t, Arr: arr}, nil
	case KindMap:
		keys, err := r.Read(Array(*t.Key), addr)
		if err != nil {
			return Value{}, err
		}
		vals, err := r.Read(Array(*t.Elem), addr+3)
		if err != nil {
			return Value{}, err
		}
		entries := make([]MapEntry, len(keys.Arr))
		for i := range entries {
			entries[i] = MapEntry{Key: keys.Arr[i], Val: vals.Arr[i]}
		}
		return Value{Type: t, MapKV: entries}, nil
	case KindNullable:
		tag := r.Mem.word(addr)
		if tag == 0 {
			return Value{Type: t, Null: true}, nil
		}
		inner, err := r.Read(*t.Elem, addr+1)
		if err != nil {
			return Value{}, err
		}
		return Value{Type: t, Inner: &inner}, nil
	case KindStruct:
		fields := make([]Value, len(t.Fields))
		cur := addr
		for i, f := range t.Fields {
			v, err := r.Read(f.Type, cur)
			if err != nil {
				return Value{}, err
			}
			fields[i] = v
			cur += f.Type.MidenWidth()
		}
		return Value{Type: t, Struct: fields}, nil
	default:
		return Value{}, errors.Wrapf(ErrType, "read: unhandled kind %v", t.Kind)
	}
}

func (r Reader) readBytesLike(t Type, addr uint32) (Value, error) {
	length := uint32(r.Mem.word(addr))
	dataPtr := uint32(r.Mem.word(addr + 1))
	buf := make([]byte, length)
	for i := uint32(0); i < length; i++ {
		buf[i] = byte(r.Mem.word(dataPtr + i))
	}
	switch t.Kind {
	case KindString:
		if !utf8.Valid(buf) {
			return Value{}, errors.Wrapf(ErrInvalidUTF8, "string at %d", addr)
		}
		return Value{Type: t, Str: string(buf)}, nil
	case KindContractReference:
		return Value{Type: t, Ref: string(buf)}, nil
	default:
		return Value{Type: t, Bytes: buf}, nil
	}
}
