package multiproof

import (
	"errors"
	"fmt"
)

// The five error families from the engine's error taxonomy. Every error
// returned across a package boundary wraps exactly one of these via
// fmt.Errorf's %w, so callers can classify failures with errors.Is without
// depending on message text.
var (
	// ErrInputMalformed covers inputs that are structurally invalid before
	// any semantic check is possible: bad RLP, wrong item counts, a
	// malformed hex-prefix flag nibble, or a populated branch slot 16.
	ErrInputMalformed = errors.New("multiproof: input malformed")

	// ErrProofSemantic covers inputs that decode fine but are inconsistent
	// with the claimed intent: an inclusion proof terminating short of the
	// target leaf, an exclusion proof that in fact contains the key, or a
	// value mismatch at the terminus.
	ErrProofSemantic = errors.New("multiproof: proof semantically invalid")

	// ErrStructuralMutation covers mutation requests the engine cannot
	// carry out because the resulting trie shape is unsupported or
	// unresolvable from the data on hand, including every collapse
	// grandparent/sibling combination not covered by the table.
	ErrStructuralMutation = errors.New("multiproof: structural mutation unsupported")

	// ErrMissingNode covers a reference (by hash) to a node that is not
	// present in the multiproof store -- the traversal ran off the edge of
	// what the caller supplied.
	ErrMissingNode = errors.New("multiproof: referenced node not found in store")

	// ErrRootMismatch covers a root computed after a sequence of mutations
	// that does not match an expected root supplied by the caller. A proof
	// whose first node does not hash to the store's root is reported with
	// ErrProofRootMismatch instead.
	ErrRootMismatch = errors.New("multiproof: root mismatch")
)

// ErrUnsupportedCollapse wraps ErrStructuralMutation for the specific case
// of a Grandparent/Sibling shape combination the collapse table does not
// resolve. It is returned rather than silently succeeding, matching the
// open questions recorded in DESIGN.md.
var ErrUnsupportedCollapse = fmt.Errorf("%w: unsupported collapse grandparent/sibling shape", ErrStructuralMutation)

// ErrProofRootMismatch wraps ErrInputMalformed for InsertProof's root check:
// a supplied proof's first node did not hash to the store's declared root.
// The store is left untouched when this is returned.
var ErrProofRootMismatch = fmt.Errorf("%w: proof root mismatch", ErrInputMalformed)
