// Package digest implements the two distinct hashes this system needs:
// the in-circuit hmerge accumulator that kernel code emits as IR (and
// that must match the target VM's Poseidon/Rescue permutation exactly),
// and a host-side digest used only to key advice-map entries, which
// never runs inside the VM and therefore has no bit-exactness
// requirement against it.
package digest

import (
	"encoding/binary"

	"golang.org/x/crypto/sha3"

	"github.com/polybase/polylang-sub000/internal/ir"
)

// HMergeAccumulator builds the instruction sequence for folding a stream
// of words through the VM's 4-element hmerge primitive, the same
// accumulate-as-you-go shape every composite hasher in package kernels
// uses (string/bytes byte-by-byte, public key scalar-then-byte-groups,
// struct field-by-field).
type HMergeAccumulator struct {
	Instrs *[]ir.Instruction
}

// Init seeds the accumulator with four zero words, the hasher's initial
// state per §4.5.
func (h HMergeAccumulator) Init() {
	*h.Instrs = append(*h.Instrs,
		ir.Push(0), ir.Push(0), ir.Push(0), ir.Push(0),
	)
}

// FoldWord merges one more word (already on top of the stack) into the
// accumulator via hmerge.
func (h HMergeAccumulator) FoldWord() {
	*h.Instrs = append(*h.Instrs, ir.HMerge())
}

// MapKey is the host-side, 32-byte big-endian digest used exclusively
// to key advice-map entries (§6). It intentionally does not reuse the
// VM's in-circuit hmerge: this key is looked up by the driver before
// the VM ever runs, never recomputed inside the proof, so a standard
// library digest is sufficient and considerably cheaper on the host.
func MapKey(parts ...[]byte) [32]byte {
	h := sha3.New256()
	for _, p := range parts {
		var lenBuf [8]byte
		binary.BigEndian.PutUint64(lenBuf[:], uint64(len(p)))
		h.Write(lenBuf[:])
		h.Write(p)
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
