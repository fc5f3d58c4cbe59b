package kernels

import (
	"github.com/polybase/polylang-sub000/internal/abi"
	"github.com/polybase/polylang-sub000/internal/ir"
	"github.com/polybase/polylang-sub000/internal/mem"
)

// Map values are two back-to-back Array headers — keys then values —
// kept in parallel insertion order. Lookup walks the keys array
// forward and keeps the last match, so a shadowed duplicate key
// resolves to its most recently set value, matching the JSON object
// semantics §4.5 describes maps as modelling.

func mapKeys(m Symbol, keyType abi.Type) Symbol {
	return Symbol{Type: abi.Array(keyType), Addr: m.Addr}
}

func mapValues(m Symbol, valType abi.Type) Symbol {
	return Symbol{Type: abi.Array(valType), Addr: m.Addr + 3}
}

// NewMap allocates an empty map over the given key/value types.
func NewMap(c Ctx, keyType, valType abi.Type, capacity uint32) Symbol {
	keys := NewArray(c, keyType, capacity)
	values := NewArray(c, valType, capacity)

	sym := c.Alloc(abi.Map(keyType, valType))
	c.Write(sym, []mem.Source{
		mem.FromMemory(keys.Addr), mem.FromMemory(keys.Addr + 1), mem.FromMemory(keys.Addr + 2),
		mem.FromMemory(values.Addr), mem.FromMemory(values.Addr + 1), mem.FromMemory(values.Addr + 2),
	})
	return sym
}

// MapSet appends (key, value) to m's parallel arrays, shadowing any
// earlier entry for an equal key (MapGet keeps the last match, so the
// most recent one wins). m's header words are rewritten in place and m
// itself is returned, the same convention Push uses.
func MapSet(c Ctx, m Symbol, keyType, valType abi.Type, key, value Symbol) Symbol {
	keys := mapKeys(m, keyType)
	values := mapValues(m, valType)

	keys = Push(c, keys, keyType, key)
	values = Push(c, values, valType, value)

	c.Write(m, []mem.Source{
		mem.FromMemory(keys.Addr), mem.FromMemory(keys.Addr + 1), mem.FromMemory(keys.Addr + 2),
		mem.FromMemory(values.Addr), mem.FromMemory(values.Addr + 1), mem.FromMemory(values.Addr + 2),
	})
	return m
}

// MapGet scans all of m's keys for ones equal to key (by eqFn, which
// callers supply per key type — scalar eq or bytewise Eq), keeping the
// last match so a shadowed duplicate key resolves to its most recent
// value, and returns (value, found).
func MapGet(c Ctx, m Symbol, keyType, valType abi.Type, key Symbol, eqFn func(Ctx, Symbol, Symbol) Symbol) (Symbol, Symbol) {
	keys := mapKeys(m, keyType)
	values := mapValues(m, valType)

	found := NewBoolean(c, false)
	result := c.Alloc(valType)
	i := NewUInt32(c, 0)

	bodyCtx, bodyBuf := c.sub()
	candidate := Get(bodyCtx, keys, keyType, i)
	eq := eqFn(bodyCtx, candidate, key)

	matchCtx, matchBuf := bodyCtx.sub()
	v := Get(matchCtx, values, valType, i)
	matchCtx.Read(v)
	matchCtx.Write(result, stackSources(valType.MidenWidth()))
	matchCtx.Write(found, []mem.Source{mem.Immediate(1)})

	guard, _ := bodyCtx.sub()
	guard.Read(eq)
	*bodyCtx.Instrs = append(*bodyCtx.Instrs, ir.If(*guard.Instrs, *matchBuf, nil))

	next := U32Add(bodyCtx, i, NewUInt32(bodyCtx, 1))
	bodyCtx.Read(next)
	bodyCtx.Write(i, stackSources(1))

	condCtx, condBuf := c.sub()
	lt := U32Lt(condCtx, i, arrLength(keys))
	condCtx.Read(lt)

	*c.Instrs = append(*c.Instrs, ir.While(*condBuf, *bodyBuf))
	return result, found
}
