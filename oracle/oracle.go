// Package oracle supplies trie nodes that a multiproof cannot derive on its
// own: when a branch collapses during removal, the surviving sibling's
// bytes are needed to merge a nibble into it, but a single-key EIP-1186
// proof never includes that sibling. The oracle is built once, offline, by
// diffing a block's pre- and post-state proofs, and is consulted only at
// the handful of (address, path-prefix) points collapse actually visits.
package oracle

import (
	"math/big"
	"sort"

	"github.com/eth2030/multiproof-engine/core/types"
	"github.com/eth2030/multiproof-engine/log"
	"github.com/eth2030/multiproof-engine/metrics"
)

// Key identifies a point in a specific account's storage trie (or, with an
// empty Prefix, the account trie itself) at which an oracle-supplied node
// sequence is registered.
type Key struct {
	Address types.Address
	Prefix  string // nibble path rendered as hex digits by nibblesToString, used as a map key
}

// Oracle maps (address, path-prefix) to the ordered sequence of raw node
// RLPs a traversal needs beyond what its own single-key proof contains.
//
// Grounded on crates/inventory/src/oracle.rs's TrieNodeOracle/insert_nodes.
type Oracle struct {
	nodes map[Key][][]byte
	log   *log.Logger
}

// New creates an empty oracle.
func New() *Oracle {
	return &Oracle{
		nodes: make(map[Key][][]byte),
		log:   log.Default().Module("oracle"),
	}
}

// InsertNodes registers nodes (outermost first) as available at the given
// address and nibble-path prefix.
func (o *Oracle) InsertNodes(address types.Address, prefix []byte, nodes [][]byte) {
	key := Key{Address: address, Prefix: nibblesToString(prefix)}
	o.nodes[key] = nodes
	metrics.DefaultRegistry.Counter("oracle_nodes_registered").Add(int64(len(nodes)))
}

// Lookup returns the node sequence registered for address/prefix, if any.
func (o *Oracle) Lookup(address types.Address, prefix []byte) ([][]byte, bool) {
	nodes, ok := o.nodes[Key{Address: address, Prefix: nibblesToString(prefix)}]
	return nodes, ok
}

func nibblesToString(nibbles []byte) string {
	b := make([]byte, len(nibbles))
	for i, n := range nibbles {
		b[i] = "0123456789abcdef"[n&0x0f]
	}
	return string(b)
}

// StorageValue pairs a storage key with its pre- or post-block value.
type StorageValue struct {
	Key   types.Hash
	Value *big.Int
}

// AccountProofSnapshot is the minimal per-account shape the oracle diff
// needs from an EIP-1186 proof: the set of storage values known at a given
// block, keyed by storage slot.
type AccountProofSnapshot struct {
	Address types.Address
	Storage map[types.Hash]*big.Int
}

// interestingUpdate is a storage slot that flipped between present and
// absent across a block, the only case that can force a trie collapse.
//
// Grounded on crates/inventory/src/oracle.rs's InterestingUpdate.
type interestingUpdate struct {
	address types.Address
	key     types.Hash
	postVal *big.Int
}

// BuildFromDiff scans pre- and post-block account snapshots for storage
// slots that were created (zero -> non-zero) or destroyed (non-zero ->
// zero), the only transitions that can force a branch collapse. It does
// not itself resolve which nodes are required -- an applier that detects a
// collapse mid-traversal is expected to call InsertNodes directly with the
// nodes it needed, once it has them from the wider block proof set. This
// function only flags which slots deserve that attention, keeping the
// expensive path-resolution work lazy: it returns one Key per flagged slot,
// ordered by slot key, and each Key carries only the account address (its
// Prefix is empty), so the slot key itself is not part of the result.
//
// Grounded on crates/inventory/src/oracle.rs's oracle_from_simulated_state_update.
func BuildFromDiff(pre, post []AccountProofSnapshot) []Key {
	preByAddr := make(map[types.Address]AccountProofSnapshot, len(pre))
	for _, a := range pre {
		preByAddr[a.Address] = a
	}

	var updates []interestingUpdate
	for _, postAcct := range post {
		preAcct, ok := preByAddr[postAcct.Address]
		if !ok {
			continue
		}
		for key, postVal := range postAcct.Storage {
			preVal, ok := preAcct.Storage[key]
			if !ok {
				preVal = new(big.Int)
			}
			if storageCreatedOrDestroyed(preVal, postVal) {
				updates = append(updates, interestingUpdate{address: postAcct.Address, key: key, postVal: postVal})
			}
		}
	}
	sort.Slice(updates, func(i, j int) bool {
		return updates[i].key.Hex() < updates[j].key.Hex()
	})

	keys := make([]Key, 0, len(updates))
	for _, u := range updates {
		keys = append(keys, Key{Address: u.address})
	}
	return keys
}

// storageCreatedOrDestroyed reports whether a slot went from absent to
// present or vice versa across a block.
//
// Grounded on crates/inventory/src/oracle.rs's storage_created_or_destroyed.
func storageCreatedOrDestroyed(pre, post *big.Int) bool {
	preZero := pre.Sign() == 0
	postZero := post.Sign() == 0
	return (preZero && !postZero) || (!preZero && postZero)
}
