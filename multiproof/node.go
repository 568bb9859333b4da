package multiproof

import (
	"fmt"

	"github.com/eth2030/multiproof-engine/crypto"
	"github.com/eth2030/multiproof-engine/core/types"
	"github.com/eth2030/multiproof-engine/rlp"
)

// Kind identifies which of the three Merkle-Patricia node shapes a decoded
// node is. Kind is never carried on the wire -- it is deduced purely from
// the RLP item count (2 vs 17) and, for the 2-item case, the hex-prefix
// flag nibble of the first item.
type Kind int

const (
	KindBranch Kind = iota
	KindExtension
	KindLeaf
)

func (k Kind) String() string {
	switch k {
	case KindBranch:
		return "branch"
	case KindExtension:
		return "extension"
	case KindLeaf:
		return "leaf"
	default:
		return "unknown"
	}
}

// Ref is a reference to a child node as it appears inside a parent's RLP
// encoding: either a 32-byte keccak256 hash (the child is stored separately
// in the multiproof store) or the child's own raw RLP bytes inlined because
// they encode to fewer than 32 bytes.
type Ref struct {
	Hash   types.Hash
	Inline []byte
}

// Empty reports whether the ref points to nothing (an absent branch child).
func (r Ref) Empty() bool {
	return r.Hash.IsZero() && len(r.Inline) == 0
}

// IsHash reports whether this ref is an out-of-line hash reference.
func (r Ref) IsHash() bool {
	return !r.Hash.IsZero()
}

func refFromHash(h types.Hash) Ref { return Ref{Hash: h} }

// refFromEncoding builds the ref a parent node would carry for a freshly
// encoded child: inline if the encoding is under 32 bytes, else a hash.
func refFromEncoding(enc []byte) Ref {
	if len(enc) < 32 {
		return Ref{Inline: append([]byte(nil), enc...)}
	}
	return Ref{Hash: types.BytesToHash(crypto.Keccak256(enc))}
}

// rlpValue returns the bytes this ref contributes to a parent's RLP list:
// the 32-byte hash as an RLP string, the inline node's raw encoding as-is,
// or the empty string for an absent ref.
func (r Ref) rlpValue() ([]byte, error) {
	switch {
	case r.Empty():
		return []byte{0x80}, nil
	case r.IsHash():
		return rlp.EncodeToBytes(r.Hash.Bytes())
	default:
		return r.Inline, nil
	}
}

// Node is a decoded Merkle-Patricia trie node. Exactly one of the
// kind-specific field groups is meaningful, selected by Kind.
type Node struct {
	Kind Kind

	// Branch: up to 16 children, one per nibble. Slot 16 (the value slot
	// of the Yellow Paper's full node) is never populated by this engine
	// -- see DESIGN.md's Open Question #2 -- and decoding asserts it is
	// empty rather than modeling a 17th live slot.
	Children [16]Ref

	// Extension / Leaf: Path is the expanded (non hex-prefix) nibble
	// sequence from the node's first RLP item. For a Leaf, Path carries
	// the terminator nibble; for an Extension, it does not.
	Path Path

	// Extension only: reference to the child subtree.
	Child Ref

	// Leaf only: the raw account/storage value bytes.
	Value []byte
}

// Hash returns the keccak256 hash of n's canonical RLP encoding, regardless
// of whether the node would be small enough to inline in a parent.
func (n *Node) Hash() (types.Hash, error) {
	enc, err := n.Encode()
	if err != nil {
		return types.Hash{}, err
	}
	return types.BytesToHash(crypto.Keccak256(enc)), nil
}

// Ref returns the reference a parent node would store for n: inline if n's
// encoding is under 32 bytes, a hash otherwise.
func (n *Node) Ref() (Ref, error) {
	enc, err := n.Encode()
	if err != nil {
		return Ref{}, err
	}
	return refFromEncoding(enc), nil
}

// Encode RLP-encodes n in its canonical on-the-wire form.
func (n *Node) Encode() ([]byte, error) {
	switch n.Kind {
	case KindBranch:
		return n.encodeBranch()
	case KindExtension, KindLeaf:
		return n.encodeShort()
	default:
		return nil, fmt.Errorf("%w: node has unknown kind %d", ErrInputMalformed, n.Kind)
	}
}

func (n *Node) encodeBranch() ([]byte, error) {
	var payload []byte
	for i := 0; i < 16; i++ {
		v, err := n.Children[i].rlpValue()
		if err != nil {
			return nil, err
		}
		payload = append(payload, v...)
	}
	// Slot 16 is always the empty string; see DESIGN.md Open Question #2.
	payload = append(payload, 0x80)
	return rlp.WrapList(payload), nil
}

func (n *Node) encodeShort() ([]byte, error) {
	keyEnc, err := rlp.EncodeToBytes(n.Path.HexPrefix())
	if err != nil {
		return nil, err
	}
	var valEnc []byte
	if n.Kind == KindLeaf {
		valEnc, err = rlp.EncodeToBytes(n.Value)
	} else {
		valEnc, err = n.Child.rlpValue()
	}
	if err != nil {
		return nil, err
	}
	return rlp.WrapList(append(keyEnc, valEnc...)), nil
}

// DecodeNode parses the RLP encoding of a single trie node. The node kind
// is deduced, never read from an explicit tag: a 17-item list is a Branch;
// a 2-item list is an Extension or a Leaf depending on the hex-prefix flag
// nibble of its first item.
func DecodeNode(data []byte) (*Node, error) {
	items, err := decodeRLPItems(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInputMalformed, err)
	}
	switch len(items) {
	case 17:
		return decodeBranch(items)
	case 2:
		return decodeShort(items)
	default:
		return nil, fmt.Errorf("%w: node has %d RLP items, want 2 or 17", ErrInputMalformed, len(items))
	}
}

func decodeBranch(items [][]byte) (*Node, error) {
	if len(items[16]) != 0 {
		return nil, fmt.Errorf("%w: branch slot 16 is non-empty", ErrInputMalformed)
	}
	n := &Node{Kind: KindBranch}
	for i := 0; i < 16; i++ {
		ref, err := decodeRef(items[i])
		if err != nil {
			return nil, err
		}
		n.Children[i] = ref
	}
	return n, nil
}

func decodeShort(items [][]byte) (*Node, error) {
	path, err := DecodeHexPrefix(items[0])
	if err != nil {
		return nil, err
	}
	if path.HasTerm() {
		return &Node{Kind: KindLeaf, Path: path, Value: append([]byte(nil), items[1]...)}, nil
	}
	ref, err := decodeRef(items[1])
	if err != nil {
		return nil, err
	}
	return &Node{Kind: KindExtension, Path: path, Child: ref}, nil
}

func decodeRef(item []byte) (Ref, error) {
	switch {
	case len(item) == 0:
		return Ref{}, nil
	case len(item) == 32:
		return refFromHash(types.BytesToHash(item)), nil
	default:
		// A shorter-than-32-byte item in a child slot is itself the raw
		// RLP encoding of an inlined child node, not a hash -- keep it
		// verbatim; the traversal decodes it lazily if it descends there.
		return Ref{Inline: append([]byte(nil), item...)}, nil
	}
}
