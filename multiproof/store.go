package multiproof

import (
	"fmt"

	"github.com/VictoriaMetrics/fastcache"
	"github.com/eth2030/multiproof-engine/core/types"
	"github.com/eth2030/multiproof-engine/crypto"
	"github.com/eth2030/multiproof-engine/log"
)

// Store is the content-addressed multiproof: a map from keccak256(node RLP)
// to the node's raw RLP bytes, plus a single mutable root hash. It holds
// exactly the nodes a caller supplied (via one or more EIP-1186 proofs),
// nothing more -- lookups outside that set return ErrMissingNode.
//
// Grounded on crates/multiproof/src/proof.rs's MultiProof{data, root} and
// the node-lookup-by-hash pattern in trie/proof.go's VerifyProof.
type Store struct {
	nodes map[types.Hash][]byte
	root  types.Hash

	decodeCache *fastcache.Cache // optional; nil unless WithDecodeCache is used
	log         *log.Logger
}

// NewStore creates an empty multiproof store rooted at root.
func NewStore(root types.Hash) *Store {
	return &Store{
		nodes: make(map[types.Hash][]byte),
		root:  root,
		log:   log.Default().Module("multiproof"),
	}
}

// WithDecodeCache enables a bounded in-memory cache, sized in bytes, that
// keeps a copy of each resolved node's raw bytes keyed by hash. ResolveHash
// still runs DecodeNode on every lookup, cached or not; decoded *Node values
// are not cached. Grounded on fastcache's role as go-ethereum's own trie
// node cache.
func (s *Store) WithDecodeCache(maxBytes int) *Store {
	s.decodeCache = fastcache.New(maxBytes)
	return s
}

// Root returns the store's current root hash.
func (s *Store) Root() types.Hash { return s.root }

// SetRoot updates the store's root hash, used after a mutation sequence
// rehashes up to a new root.
func (s *Store) SetRoot(h types.Hash) { s.root = h }

// Insert adds a node's raw RLP bytes to the store, keyed by its own
// keccak256 hash. It is idempotent: inserting the same bytes twice is a
// no-op. Returns the node's hash.
func (s *Store) Insert(raw []byte) types.Hash {
	h := hashOf(raw)
	if _, ok := s.nodes[h]; !ok {
		cp := append([]byte(nil), raw...)
		s.nodes[h] = cp
	}
	return h
}

// InsertProof inserts a root-to-leaf list of proof nodes, as produced by an
// EIP-1186 proof. If the store has no declared root yet (the zero Hash),
// the first node's hash becomes the root. Otherwise the first node's hash
// must equal the store's current root; on divergence InsertProof returns
// ErrProofRootMismatch and leaves the store untouched -- no node from nodes
// is inserted.
//
// Grounded on spec.md's insert_proof operation and scenario S5.
func (s *Store) InsertProof(nodes [][]byte) error {
	if len(nodes) == 0 {
		return nil
	}
	computed := hashOf(nodes[0])
	if s.root.IsZero() {
		s.root = computed
	} else if computed != s.root {
		return fmt.Errorf("%w: expected %s, computed %s", ErrProofRootMismatch, s.root.Hex(), computed.Hex())
	}
	for _, n := range nodes {
		s.Insert(n)
	}
	return nil
}

// InsertNode encodes n and inserts it, returning its hash.
func (s *Store) InsertNode(n *Node) (types.Hash, error) {
	enc, err := n.Encode()
	if err != nil {
		return types.Hash{}, err
	}
	return s.Insert(enc), nil
}

// Raw returns the raw RLP bytes stored for hash h.
func (s *Store) Raw(h types.Hash) ([]byte, bool) {
	raw, ok := s.nodes[h]
	return raw, ok
}

// Resolve decodes the node referenced by ref: an inline ref decodes its own
// bytes directly; a hash ref is looked up in the store first. Returns
// ErrMissingNode if a hash ref is not present.
func (s *Store) Resolve(ref Ref) (*Node, error) {
	if ref.Empty() {
		return nil, fmt.Errorf("%w: attempted to resolve an empty ref", ErrInputMalformed)
	}
	if !ref.IsHash() {
		return DecodeNode(ref.Inline)
	}
	return s.ResolveHash(ref.Hash)
}

// ResolveHash decodes the node stored under h, using the decode cache if
// one is configured.
func (s *Store) ResolveHash(h types.Hash) (*Node, error) {
	if s.decodeCache != nil {
		if cached, ok := s.decodeCache.HasGet(nil, h.Bytes()); ok {
			return DecodeNode(cached)
		}
	}
	raw, ok := s.nodes[h]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingNode, h.Hex())
	}
	if s.decodeCache != nil {
		s.decodeCache.Set(h.Bytes(), raw)
	}
	return DecodeNode(raw)
}

// Len reports the number of distinct nodes held by the store.
func (s *Store) Len() int { return len(s.nodes) }

// Prune removes every node not reachable from the current root, returning
// the number of nodes removed. Use after a sequence of mutations to drop
// stale pre-image bytes that rehashing has made unreachable.
func (s *Store) Prune() int {
	reachable := make(map[types.Hash]struct{})
	s.markReachable(s.root, reachable)

	removed := 0
	for h := range s.nodes {
		if _, ok := reachable[h]; !ok {
			delete(s.nodes, h)
			removed++
		}
	}
	if removed > 0 {
		s.log.Debug("pruned unreachable nodes", "count", removed, "remaining", len(s.nodes))
	}
	return removed
}

func (s *Store) markReachable(h types.Hash, seen map[types.Hash]struct{}) {
	if h.IsZero() {
		return
	}
	if _, ok := seen[h]; ok {
		return
	}
	raw, ok := s.nodes[h]
	if !ok {
		return
	}
	seen[h] = struct{}{}
	n, err := DecodeNode(raw)
	if err != nil {
		return
	}
	switch n.Kind {
	case KindBranch:
		for _, c := range n.Children {
			if c.IsHash() {
				s.markReachable(c.Hash, seen)
			}
		}
	case KindExtension:
		if n.Child.IsHash() {
			s.markReachable(n.Child.Hash, seen)
		}
	}
}

func hashOf(raw []byte) types.Hash {
	return crypto.Keccak256Hash(raw)
}
