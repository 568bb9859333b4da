// Package multiproof implements the Merkle-Patricia multi-proof engine:
// nibble paths, the node model, the content-addressed multiproof store,
// traversal with intent, and the mutation engine.
package multiproof

import "fmt"

// terminatorNibble marks the end of a leaf key in the expanded nibble form,
// matching the Yellow Paper's hex-prefix terminator value.
const terminatorNibble = 16

// Path is a sequence of nibbles (0-15), optionally ending in
// terminatorNibble to mark a leaf key. Branch and extension node keys never
// carry the terminator; only leaf keys do.
type Path []byte

// NewPathFromKey expands a raw byte key (e.g. keccak256(address) or
// keccak256(storage slot)) into its nibble form, terminated.
func NewPathFromKey(key []byte) Path {
	p := make(Path, len(key)*2+1)
	for i, b := range key {
		p[i*2] = b >> 4
		p[i*2+1] = b & 0x0f
	}
	p[len(p)-1] = terminatorNibble
	return p
}

// HasTerm reports whether p ends with the leaf terminator.
func (p Path) HasTerm() bool {
	return len(p) > 0 && p[len(p)-1] == terminatorNibble
}

// WithoutTerm strips a trailing terminator nibble, if present.
func (p Path) WithoutTerm() Path {
	if p.HasTerm() {
		return p[:len(p)-1]
	}
	return p
}

// Keybytes packs a non-terminated, even-length nibble path back into bytes.
// It panics on an odd-length path, mirroring the teacher's hexToKeybytes,
// since callers only ever invoke this on a path known to be byte-aligned.
func (p Path) Keybytes() []byte {
	np := p.WithoutTerm()
	if len(np)%2 != 0 {
		panic("multiproof: odd-length nibble path has no byte representation")
	}
	out := make([]byte, len(np)/2)
	for i := 0; i < len(out); i++ {
		out[i] = np[2*i]<<4 | np[2*i+1]
	}
	return out
}

// HexPrefix returns the compact hex-prefix (HP) encoding of p, as stored in
// extension and leaf node keys on the wire.
func (p Path) HexPrefix() []byte {
	leaf := p.HasTerm()
	nibbles := p.WithoutTerm()

	buf := make([]byte, len(nibbles)/2+1)
	if leaf {
		buf[0] = 0x20
	}
	if len(nibbles)%2 == 1 {
		buf[0] |= 0x10
		buf[0] |= nibbles[0]
		nibbles = nibbles[1:]
	}
	for bi, ni := 0, 0; ni < len(nibbles); bi, ni = bi+1, ni+2 {
		buf[bi+1] = nibbles[ni]<<4 | nibbles[ni+1]
	}
	return buf
}

// DecodeHexPrefix parses a compact hex-prefix encoded key (as found in a
// decoded extension or leaf node) into a Path. The returned Path carries the
// terminator nibble if the HP flag marked the node as a leaf.
func DecodeHexPrefix(compact []byte) (Path, error) {
	if len(compact) == 0 {
		return nil, fmt.Errorf("%w: empty hex-prefix key", ErrInputMalformed)
	}
	flags := compact[0] >> 4
	if flags > 3 {
		return nil, fmt.Errorf("%w: invalid hex-prefix flag nibble %#x", ErrInputMalformed, flags)
	}
	leaf := flags&0x2 != 0
	odd := flags&0x1 != 0

	nibbles := make([]byte, 0, len(compact)*2)
	if odd {
		nibbles = append(nibbles, compact[0]&0x0f)
	}
	for _, b := range compact[1:] {
		nibbles = append(nibbles, b>>4, b&0x0f)
	}
	if leaf {
		nibbles = append(nibbles, terminatorNibble)
	}
	return Path(nibbles), nil
}

// CommonPrefixLen returns the length of the shared nibble prefix of a and b.
func CommonPrefixLen(a, b Path) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return i
}

// Equal reports whether two paths contain the same nibbles.
func (p Path) Equal(o Path) bool {
	if len(p) != len(o) {
		return false
	}
	for i := range p {
		if p[i] != o[i] {
			return false
		}
	}
	return true
}

// String renders the path as a sequence of hex digits, with a trailing "T"
// if terminated, for use in debug logging.
func (p Path) String() string {
	b := make([]byte, 0, len(p)+1)
	for _, n := range p.WithoutTerm() {
		b = append(b, "0123456789abcdef"[n])
	}
	if p.HasTerm() {
		b = append(b, 'T')
	}
	return string(b)
}
