package multiproof

import (
	"fmt"
	"math/big"

	"github.com/eth2030/multiproof-engine/core/types"
	"github.com/eth2030/multiproof-engine/rlp"
)

// ChangeKind selects which terminus transition a mutation performs.
//
// Grounded on crates/multiproof/src/proof.rs's Change enum.
type ChangeKind int

const (
	ChangeBranchExclusionToInclusion ChangeKind = iota
	ChangeExtensionExclusionToInclusion
	ChangeLeafExclusionToInclusion
	ChangeLeafInclusionModify
	ChangeLeafInclusionToExclusion
)

// Change is the concrete instruction produced once a traversal reaches its
// terminus with a mutating intent. DivergeIndex is meaningful only for the
// Extension/Leaf exclusion-to-inclusion kinds: the nibble index (within
// the terminus node's own path, 0-based) at which the new key's path
// diverges from the existing node's path.
type Change struct {
	Kind         ChangeKind
	NewValue     []byte
	DivergeIndex int

	// NewKeySuffix is the remaining nibble path of the key being written,
	// measured from the point at which the terminus was reached: for a
	// branch exclusion, the nibbles after the consumed branch slot; for an
	// extension/leaf divergence, the full remaining path as it stood when
	// that node was reached. Already includes the terminator nibble, since
	// NewPathFromKey appends it at construction. Used to build the new
	// leaf's own Path when an exclusion terminus turns into an inclusion.
	NewKeySuffix Path
}

// applyChange performs change starting from the terminal (leafmost)
// visited node and rehashes upward to store.root.
//
// Grounded on crates/multiproof/src/proof.rs's apply_changes.
func applyChange(store *Store, change Change, visited []VisitedNode) error {
	if len(visited) == 0 {
		return fmt.Errorf("%w: no visited nodes recorded for mutation", ErrInputMalformed)
	}
	last := visited[len(visited)-1]

	switch change.Kind {
	case ChangeBranchExclusionToInclusion:
		if IsEmptyValue(change.NewValue) {
			return nil // modifying an absent key to "empty" is a no-op
		}
		branch, err := store.ResolveHash(last.NodeHash)
		if err != nil {
			return err
		}
		leaf := &Node{Kind: KindLeaf, Path: change.NewKeySuffix, Value: change.NewValue}
		leafHash, err := store.InsertNode(leaf)
		if err != nil {
			return err
		}
		branch = branch.withChild(last.ItemIndex, refFromHash(leafHash))
		updatedHash, err := store.InsertNode(branch)
		if err != nil {
			return err
		}
		return rehashUpward(store, visited[:len(visited)-1], updatedHash)

	case ChangeExtensionExclusionToInclusion, ChangeLeafExclusionToInclusion:
		if IsEmptyValue(change.NewValue) {
			return nil
		}
		updatedHash, err := addBranchForNewLeaf(store, last, change.DivergeIndex, change.NewValue, change.NewKeySuffix)
		if err != nil {
			return err
		}
		return rehashUpward(store, visited[:len(visited)-1], updatedHash)

	case ChangeLeafInclusionModify:
		leafNode, err := store.ResolveHash(last.NodeHash)
		if err != nil {
			return err
		}
		newLeaf := &Node{Kind: KindLeaf, Path: leafNode.Path, Value: change.NewValue}
		if IsEmptyValue(change.NewValue) {
			return applyChange(store, Change{Kind: ChangeLeafInclusionToExclusion}, visited)
		}
		newHash, err := store.InsertNode(newLeaf)
		if err != nil {
			return err
		}
		return rehashUpward(store, visited[:len(visited)-1], newHash)

	case ChangeLeafInclusionToExclusion:
		highestHash, remaining, err := processChildRemoval(store, visited, len(visited)-1)
		if err != nil {
			return err
		}
		return rehashUpward(store, remaining, highestHash)

	default:
		return fmt.Errorf("%w: unknown change kind", ErrInputMalformed)
	}
}

// rehashUpward re-encodes every ancestor in remaining (closest-to-leaf
// last) with childHash spliced in at its recorded slot, finishing by
// setting store's root to the final hash. If remaining is empty, childHash
// directly becomes the new root -- this is also how DESIGN.md's Open
// Question #1 (collapse at the root) is resolved: there is no ancestor
// left to splice into, so the surviving node becomes the root outright.
func rehashUpward(store *Store, remaining []VisitedNode, childHash types.Hash) error {
	hash := childHash
	for i := len(remaining) - 1; i >= 0; i-- {
		updated, err := updateNodeWithChildHash(store, remaining[i], hash)
		if err != nil {
			return err
		}
		hash = updated
	}
	store.SetRoot(hash)
	return nil
}

// updateNodeWithChildHash re-encodes the node recorded by visited with
// childHash spliced in at its recorded slot/child position.
//
// Grounded on crates/multiproof/src/proof.rs's update_node_with_child_hash.
func updateNodeWithChildHash(store *Store, visited VisitedNode, childHash types.Hash) (types.Hash, error) {
	node, err := store.ResolveHash(visited.NodeHash)
	if err != nil {
		return types.Hash{}, err
	}
	switch visited.Kind {
	case KindBranch:
		updated := node.withChild(visited.ItemIndex, refFromHash(childHash))
		return store.InsertNode(updated)
	case KindExtension:
		updated := &Node{Kind: KindExtension, Path: node.Path, Child: refFromHash(childHash)}
		return store.InsertNode(updated)
	default:
		return types.Hash{}, fmt.Errorf("%w: a visited leaf should never need a child-hash update", ErrInputMalformed)
	}
}

// withChild returns a copy of a branch node with slot i replaced by ref.
func (n *Node) withChild(i int, ref Ref) *Node {
	cp := *n
	cp.Children[i] = ref
	return &cp
}

// addBranchForNewLeaf turns an extension- or leaf-exclusion terminus into
// an inclusion by inserting a new branch (and, if the two paths share any
// remaining nibbles, a new extension above it) holding both the new leaf
// and the original node's remaining content.
//
// Grounded on crates/multiproof/src/proof.rs's add_branch_for_new_leaf.
func addBranchForNewLeaf(store *Store, terminus VisitedNode, divergeIndex int, newValue []byte, newKeySuffix Path) (types.Hash, error) {
	old, err := store.ResolveHash(terminus.NodeHash)
	if err != nil {
		return types.Hash{}, err
	}

	fullOldPath := old.Path // non-terminated for extension, terminated for leaf
	if divergeIndex > len(fullOldPath) {
		return types.Hash{}, fmt.Errorf("%w: divergence index exceeds node path length", ErrInputMalformed)
	}
	common := fullOldPath[:divergeIndex]
	oldBranchNibble := fullOldPath[divergeIndex]
	oldRemainder := fullOldPath[divergeIndex+1:]

	var branch Node
	branch.Kind = KindBranch

	switch old.Kind {
	case KindExtension:
		if len(oldRemainder) == 0 {
			branch.Children[oldBranchNibble] = old.Child
		} else {
			shrunk := &Node{Kind: KindExtension, Path: oldRemainder, Child: old.Child}
			h, err := store.InsertNode(shrunk)
			if err != nil {
				return types.Hash{}, err
			}
			branch.Children[oldBranchNibble] = refFromHash(h)
		}
	case KindLeaf:
		shrunk := &Node{Kind: KindLeaf, Path: oldRemainder, Value: old.Value}
		h, err := store.InsertNode(shrunk)
		if err != nil {
			return types.Hash{}, err
		}
		branch.Children[oldBranchNibble] = refFromHash(h)
	default:
		return types.Hash{}, fmt.Errorf("%w: addBranchForNewLeaf called on a non-extension/leaf terminus", ErrInputMalformed)
	}

	// The new key's path, beyond the common prefix, starts with the nibble
	// that takes the other branch slot.
	if divergeIndex > len(newKeySuffix) {
		return types.Hash{}, fmt.Errorf("%w: divergence index exceeds new key path length", ErrInputMalformed)
	}
	newRemainder := newKeySuffix[divergeIndex:]
	if len(newRemainder) == 0 {
		return types.Hash{}, fmt.Errorf("%w: new key path does not diverge from existing node", ErrInputMalformed)
	}
	newLeafNibble := newRemainder[0]
	if newLeafNibble == oldBranchNibble {
		return types.Hash{}, fmt.Errorf("%w: new key shares the old node's branch nibble", ErrInputMalformed)
	}

	newLeaf := &Node{Kind: KindLeaf, Path: newRemainder[1:], Value: newValue}
	newLeafHash, err := store.InsertNode(newLeaf)
	if err != nil {
		return types.Hash{}, err
	}
	branch.Children[newLeafNibble] = refFromHash(newLeafHash)

	branchHash, err := store.InsertNode(&branch)
	if err != nil {
		return types.Hash{}, err
	}

	if len(common) == 0 {
		return branchHash, nil
	}
	ext := &Node{Kind: KindExtension, Path: common, Child: refFromHash(branchHash)}
	return store.InsertNode(ext)
}

// IsEmptyValue reports whether value is the RLP encoding of a default,
// content-free leaf value: a zero uint256 (storage slots) or a zero
// Account (nonce 0, balance 0, empty storage root, empty code hash). A
// Modify intent whose new value is empty degenerates into removal rather
// than writing a node that only encodes zero.
//
// Grounded on crates/multiproof/src/proof.rs's is_empty_value.
func IsEmptyValue(rlpValue []byte) bool {
	if len(rlpValue) == 0 {
		return true
	}
	zeroU256, _ := rlp.EncodeToBytes(new(big.Int))
	if string(rlpValue) == string(zeroU256) {
		return true
	}
	zeroAccount, _ := rlp.EncodeToBytes(types.NewAccount())
	return string(rlpValue) == string(zeroAccount)
}
