package multiproof

import (
	"fmt"

	"github.com/eth2030/multiproof-engine/core/types"
)

// processChildRemoval drops the leaf at visited[leafIndex] and repairs the
// branch that held it. If the branch still has two or more children it is
// simply re-encoded with the slot cleared. If it is left with exactly one
// child, the branch itself cannot survive -- its one remaining nibble and
// surviving child are merged into a single node and spliced into (or
// absorbed by) its own parent, per collapseBranch.
//
// Returns the hash of the highest node it produced and the slice of
// visited entries that still need the ordinary rehash-upward treatment
// (everything above whatever this call already folded into that hash).
//
// Grounded on crates/multiproof/src/proof.rs's process_child_removal --
// unlike that source (which leaves every branch of this function as
// todo!()), this is a from-scratch, uniform resolution of the collapse
// table described in resolve_child_and_grandparent_paths's doc comment.
func processChildRemoval(store *Store, visited []VisitedNode, leafIndex int) (types.Hash, []VisitedNode, error) {
	if leafIndex == 0 {
		// The removed leaf was the trie's only node; the trie becomes empty.
		return types.EmptyRootHash, nil, nil
	}

	branchIdx := leafIndex - 1
	branchVisited := visited[branchIdx]
	if branchVisited.Kind != KindBranch {
		return types.Hash{}, nil, fmt.Errorf("%w: a leaf's parent must be a branch", ErrInputMalformed)
	}
	branchNode, err := store.ResolveHash(branchVisited.NodeHash)
	if err != nil {
		return types.Hash{}, nil, err
	}
	cleared := branchNode.withChild(branchVisited.ItemIndex, Ref{})

	remainingNibble, remainingCount := -1, 0
	for i := 0; i < 16; i++ {
		if !cleared.Children[i].Empty() {
			remainingCount++
			remainingNibble = i
		}
	}

	switch remainingCount {
	case 0:
		return types.Hash{}, nil, fmt.Errorf("%w: branch has no children left after removal", ErrStructuralMutation)
	case 1:
		return collapseBranch(store, visited, branchIdx, byte(remainingNibble), cleared)
	default:
		h, err := store.InsertNode(cleared)
		if err != nil {
			return types.Hash{}, nil, err
		}
		return h, visited[:branchIdx], nil
	}
}

// collapseBranch merges branchIdx's single remaining nibble and surviving
// child into one node (an Extension if the child is itself a Branch, else
// the child's own kind with the nibble prepended to its path), then either
// splices that merged node into a surviving Branch grandparent's slot, or
// lets it fully absorb an Extension grandparent -- which then disappears
// itself, climbing one further level toward the great-grandparent. If
// branchIdx has no grandparent (it is itself the trie root), the merged
// node becomes the new root directly, which is how DESIGN.md's Open
// Question #1 (collapse when the grandparent is the root) resolves without
// any special-casing.
func collapseBranch(store *Store, visited []VisitedNode, branchIdx int, nibble byte, cleared *Node) (types.Hash, []VisitedNode, error) {
	childRef := cleared.Children[nibble]
	child, err := store.Resolve(childRef)
	if err != nil {
		return types.Hash{}, nil, err
	}

	merged, err := mergeNibbleIntoChild(nibble, childRef, child)
	if err != nil {
		return types.Hash{}, nil, err
	}

	if branchIdx == 0 {
		h, err := store.InsertNode(merged)
		if err != nil {
			return types.Hash{}, nil, err
		}
		return h, nil, nil
	}

	grandparentIdx := branchIdx - 1
	grandparentVisited := visited[grandparentIdx]
	grandparent, err := store.ResolveHash(grandparentVisited.NodeHash)
	if err != nil {
		return types.Hash{}, nil, err
	}

	switch grandparent.Kind {
	case KindBranch:
		mergedHash, err := store.InsertNode(merged)
		if err != nil {
			return types.Hash{}, nil, err
		}
		spliced := grandparent.withChild(grandparentVisited.ItemIndex, refFromHash(mergedHash))
		splicedHash, err := store.InsertNode(spliced)
		if err != nil {
			return types.Hash{}, nil, err
		}
		return splicedHash, visited[:grandparentIdx], nil

	case KindExtension:
		combined, err := prependPath(grandparent.Path, merged)
		if err != nil {
			return types.Hash{}, nil, err
		}
		combinedHash, err := store.InsertNode(combined)
		if err != nil {
			return types.Hash{}, nil, err
		}
		return combinedHash, visited[:grandparentIdx], nil

	default:
		return types.Hash{}, nil, fmt.Errorf("%w: a branch's grandparent cannot be a leaf", ErrUnsupportedCollapse)
	}
}

// mergeNibbleIntoChild folds a branch's single surviving (nibble, child)
// pair into one node: prepending nibble to the child's own path if the
// child is an Extension or Leaf, or turning the pair into a fresh
// single-nibble Extension if the child is itself a Branch.
func mergeNibbleIntoChild(nibble byte, childRef Ref, child *Node) (*Node, error) {
	switch child.Kind {
	case KindBranch:
		return &Node{Kind: KindExtension, Path: Path{nibble}, Child: childRef}, nil
	case KindExtension:
		path := append(Path{nibble}, child.Path...)
		return &Node{Kind: KindExtension, Path: path, Child: child.Child}, nil
	case KindLeaf:
		path := append(Path{nibble}, child.Path...)
		return &Node{Kind: KindLeaf, Path: path, Value: child.Value}, nil
	default:
		return nil, fmt.Errorf("%w: child has unknown kind", ErrInputMalformed)
	}
}

// prependPath folds an absorbed Extension grandparent's own path onto the
// front of merged's path, keeping merged's kind (Extension or Leaf) and
// child/value.
func prependPath(prefix Path, merged *Node) (*Node, error) {
	path := append(append(Path{}, prefix...), merged.Path...)
	switch merged.Kind {
	case KindExtension:
		return &Node{Kind: KindExtension, Path: path, Child: merged.Child}, nil
	case KindLeaf:
		return &Node{Kind: KindLeaf, Path: path, Value: merged.Value}, nil
	default:
		return nil, fmt.Errorf("%w: merged node must be an extension or leaf", ErrInputMalformed)
	}
}
