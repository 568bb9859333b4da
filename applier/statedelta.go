// Package applier drives the multiproof mutation engine over a single
// block's worth of already-computed state changes, producing the
// post-block root and erroring if it disagrees with the block header.
//
// It deliberately does not embed an EVM: the caller (a stateless block
// replayer) executes transactions and supplies the resulting per-account
// and per-slot deltas. Grounded on trie/trie.go's insert/delete
// orchestration shape, generalized from a single trie to the engine's
// content-addressed multiproof.
package applier

import "github.com/eth2030/multiproof-engine/core/types"

// StorageSlotDelta is one storage slot's value after a block.
type StorageSlotDelta struct {
	Key      types.Hash
	PostRLP  []byte // RLP-encoded uint256; empty/zero means the slot is cleared
}

// AccountDelta is one account's changes across a block: a new account RLP
// value (nil if the account is destroyed) plus any storage slots it
// touched.
type AccountDelta struct {
	Address types.Address
	PostRLP []byte // RLP-encoded Account; nil means the account is destroyed
	Storage []StorageSlotDelta
}

// StateDelta is the complete set of account/storage changes a block
// applies, plus the recent block hashes needed to resolve BLOCKHASH should
// any touched contract call it (carried for parity with the wire Parcel;
// the applier itself does not interpret them).
type StateDelta struct {
	Accounts    []AccountDelta
	BlockHashes map[uint64]types.Hash
}
