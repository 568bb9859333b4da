package multiproof

import (
	"fmt"

	"github.com/eth2030/multiproof-engine/core/types"
)

// IntentKind selects what a traversal is trying to accomplish at its
// terminus: confirm a value is present, confirm a key is absent, write a
// new value (possibly turning an exclusion proof into an inclusion proof,
// or vice versa if the new value is empty), or delete a key outright.
//
// Grounded on crates/multiproof/src/proof.rs's Intent enum.
type IntentKind int

const (
	IntentVerifyInclusion IntentKind = iota
	IntentVerifyExclusion
	IntentModify
	IntentRemove
)

// Intent describes the caller's purpose for a single traversal. Value is
// meaningful only for IntentVerifyInclusion (the expected RLP-encoded leaf
// value) and IntentModify (the new RLP-encoded leaf value to write).
type Intent struct {
	Kind  IntentKind
	Value []byte
}

// VerifyInclusion builds an intent asserting that path resolves to value.
func VerifyInclusion(value []byte) Intent { return Intent{Kind: IntentVerifyInclusion, Value: value} }

// VerifyExclusion builds an intent asserting that path is absent.
func VerifyExclusion() Intent { return Intent{Kind: IntentVerifyExclusion} }

// Modify builds an intent to write value at path, converting between
// inclusion and exclusion as needed.
func Modify(value []byte) Intent { return Intent{Kind: IntentModify, Value: value} }

// Remove builds an intent to delete path from the trie, a no-op if the key
// is already absent.
func Remove() Intent { return Intent{Kind: IntentRemove} }

// VisitedNode records one step of a root-to-terminus traversal: the kind of
// node found, its content hash, and the slot/sub-path index at which the
// traversal proceeded. It is the trail the mutation engine rehashes
// upward along. Inline children (RLP under 32 bytes) are canonicalized
// into the store under their own keccak256 hash the moment traversal
// reaches them, so every VisitedNode always refers to a real store entry
// -- the mutation engine never needs a separate inline-node code path.
//
// Grounded on crates/multiproof/src/proof.rs's VisitedNode.
type VisitedNode struct {
	Kind         Kind
	NodeHash     types.Hash
	ItemIndex    int // branch: child slot index (0-15); extension/leaf: always 1
	PathConsumed Path
}

// Terminus classifies how a traversal ended.
type Terminus int

const (
	TerminusBranchExclusion Terminus = iota
	TerminusExtensionExclusion
	TerminusLeafExclusion
	TerminusLeafInclusion
)

// Traverse walks path from store's root toward a leaf, verifying or
// mutating according to intent. On a verify intent it returns nil on
// success and a wrapped ErrProofSemantic on mismatch. On a modify/remove
// intent it mutates store in place (inserting/removing nodes and updating
// store.root) and returns nil on success.
//
// Grounded on crates/multiproof/src/proof.rs's traverse/apply_changes.
func Traverse(store *Store, path Path, intent Intent) error {
	current := store.Root()
	if current == types.EmptyRootHash || current.IsZero() {
		return finishAtEmptyTrie(store, path, intent)
	}
	var visited []VisitedNode
	consumed := Path{}

	for {
		node, err := resolveCanonical(store, current)
		if err != nil {
			return err
		}

		switch node.Kind {
		case KindBranch:
			if len(path) == 0 {
				return fmt.Errorf("%w: branch reached with no remaining path nibble", ErrInputMalformed)
			}
			nibble := path[0]
			consumed = appendPath(consumed, nibble)
			visited = append(visited, VisitedNode{
				Kind:         KindBranch,
				NodeHash:     current,
				ItemIndex:    int(nibble),
				PathConsumed: consumed,
			})
			child := node.Children[nibble]
			if child.Empty() {
				return finishAtExclusion(TerminusBranchExclusion, intent, visited, store, path[1:])
			}
			path = path[1:]
			current, err = canonicalHash(store, child)
			if err != nil {
				return err
			}
			continue

		case KindExtension:
			visited = append(visited, VisitedNode{
				Kind:         KindExtension,
				NodeHash:     current,
				ItemIndex:    1,
				PathConsumed: append(append(Path{}, consumed...), node.Path...),
			})
			n := CommonPrefixLen(node.Path, path)
			if n == len(node.Path) {
				consumed = append(consumed, node.Path...)
				path = path[n:]
				current, err = canonicalHash(store, node.Child)
				if err != nil {
					return err
				}
				continue
			}
			return finishAtDivergence(TerminusExtensionExclusion, n, intent, visited, store, path)

		case KindLeaf:
			visited = append(visited, VisitedNode{
				Kind:         KindLeaf,
				NodeHash:     current,
				ItemIndex:    1,
				PathConsumed: append(append(Path{}, consumed...), node.Path...),
			})
			n := CommonPrefixLen(node.Path, path)
			if n == len(node.Path) && n == len(path) {
				return finishAtInclusion(node, intent, visited, store)
			}
			return finishAtDivergence(TerminusLeafExclusion, n, intent, visited, store, path)

		default:
			return fmt.Errorf("%w: node has unknown kind", ErrInputMalformed)
		}
	}
}

// finishAtEmptyTrie handles a traversal whose store root is the canonical
// empty-trie hash: every key is vacuously absent. A Modify intent plants a
// single fresh leaf as the new root.
func finishAtEmptyTrie(store *Store, path Path, intent Intent) error {
	switch intent.Kind {
	case IntentVerifyExclusion, IntentRemove:
		return nil
	case IntentVerifyInclusion:
		return fmt.Errorf("%w: expected inclusion, found exclusion", ErrProofSemantic)
	case IntentModify:
		if IsEmptyValue(intent.Value) {
			return nil
		}
		leaf := &Node{Kind: KindLeaf, Path: path, Value: intent.Value}
		h, err := store.InsertNode(leaf)
		if err != nil {
			return err
		}
		store.SetRoot(h)
		return nil
	default:
		return fmt.Errorf("%w: unknown intent", ErrInputMalformed)
	}
}

func appendPath(p Path, n byte) Path {
	out := make(Path, len(p)+1)
	copy(out, p)
	out[len(p)] = n
	return out
}

// resolveCanonical decodes the node stored under h.
func resolveCanonical(store *Store, h types.Hash) (*Node, error) {
	return store.ResolveHash(h)
}

// canonicalHash returns a hash under which ref's node is guaranteed to be
// present in store, inserting inline node bytes under their own content
// hash on first encounter.
func canonicalHash(store *Store, ref Ref) (types.Hash, error) {
	if ref.IsHash() {
		return ref.Hash, nil
	}
	if ref.Empty() {
		return types.Hash{}, fmt.Errorf("%w: attempted to descend into an empty ref", ErrInputMalformed)
	}
	return store.Insert(ref.Inline), nil
}

func finishAtExclusion(terminus Terminus, intent Intent, visited []VisitedNode, store *Store, newKeySuffix Path) error {
	switch intent.Kind {
	case IntentModify:
		if terminus != TerminusBranchExclusion {
			return fmt.Errorf("%w: exclusion terminus kind mismatch", ErrInputMalformed)
		}
		return applyChange(store, Change{Kind: ChangeBranchExclusionToInclusion, NewValue: intent.Value, NewKeySuffix: newKeySuffix}, visited)
	case IntentRemove:
		return nil
	case IntentVerifyExclusion:
		return nil
	case IntentVerifyInclusion:
		return fmt.Errorf("%w: expected inclusion, found exclusion", ErrProofSemantic)
	default:
		return fmt.Errorf("%w: unknown intent", ErrInputMalformed)
	}
}

func finishAtDivergence(terminus Terminus, divergenceIndex int, intent Intent, visited []VisitedNode, store *Store, newKeySuffix Path) error {
	switch intent.Kind {
	case IntentModify:
		switch terminus {
		case TerminusExtensionExclusion:
			return applyChange(store, Change{Kind: ChangeExtensionExclusionToInclusion, NewValue: intent.Value, DivergeIndex: divergenceIndex, NewKeySuffix: newKeySuffix}, visited)
		case TerminusLeafExclusion:
			return applyChange(store, Change{Kind: ChangeLeafExclusionToInclusion, NewValue: intent.Value, DivergeIndex: divergenceIndex, NewKeySuffix: newKeySuffix}, visited)
		default:
			return fmt.Errorf("%w: divergence terminus kind mismatch", ErrInputMalformed)
		}
	case IntentRemove:
		return nil
	case IntentVerifyExclusion:
		return nil
	case IntentVerifyInclusion:
		return fmt.Errorf("%w: expected inclusion, found exclusion", ErrProofSemantic)
	default:
		return fmt.Errorf("%w: unknown intent", ErrInputMalformed)
	}
}

func finishAtInclusion(leaf *Node, intent Intent, visited []VisitedNode, store *Store) error {
	switch intent.Kind {
	case IntentModify:
		return applyChange(store, Change{Kind: ChangeLeafInclusionModify, NewValue: intent.Value}, visited)
	case IntentRemove:
		return applyChange(store, Change{Kind: ChangeLeafInclusionToExclusion}, visited)
	case IntentVerifyExclusion:
		return fmt.Errorf("%w: expected exclusion, found inclusion", ErrProofSemantic)
	case IntentVerifyInclusion:
		if string(leaf.Value) != string(intent.Value) {
			return fmt.Errorf("%w: leaf value does not match expected value", ErrProofSemantic)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown intent", ErrInputMalformed)
	}
}
