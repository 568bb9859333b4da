// Package parcel implements the transferable wire format for a block's
// worth of stateless-execution inputs: EIP-1186 proofs with their trie
// nodes deduplicated into shared tables and referenced by index, contract
// bytecode, and recent block hashes for the BLOCKHASH opcode.
//
// Grounded on crates/types/src/state.rs's RequiredBlockState and
// crates/inventory/src/transferrable.rs's node-deduplication helpers.
package parcel

import (
	"fmt"

	"github.com/eth2030/multiproof-engine/core/types"
)

// NodeIndices is an ordered list of indices into a Parcel's shared node
// table, used to deduplicate trie nodes that recur across proofs in the
// same block.
type NodeIndices []uint16

// CompactStorageProof is a single storage slot's proof with its trie nodes
// replaced by indices into the parcel's StorageNodes table.
type CompactStorageProof struct {
	Key   types.Hash
	Value []byte // RLP-encoded uint256
	Proof NodeIndices
}

// CompactEip1186Proof is an EIP-1186 account proof with its trie nodes
// replaced by indices into the parcel's AccountNodes table, and its storage
// proofs compacted the same way against StorageNodes.
type CompactEip1186Proof struct {
	Address      types.Address
	Balance      []byte // big-endian, minimal encoding
	CodeHash     types.Hash
	Nonce        uint64
	StorageHash  types.Hash
	AccountProof NodeIndices
	Storage      []CompactStorageProof
}

// RecentBlockHash is one entry of the BLOCKHASH opcode's lookback window.
type RecentBlockHash struct {
	BlockNumber uint64
	BlockHash   types.Hash
}

// Parcel is the complete, node-deduplicated set of inputs needed to replay
// one block statelessly: every touched account/storage proof (compacted),
// the shared node tables those proofs index into, touched contract code,
// and enough recent block hashes to answer BLOCKHASH.
//
// Grounded on crates/types/src/state.rs's RequiredBlockState.
type Parcel struct {
	Proofs       []CompactEip1186Proof
	AccountNodes [][]byte // RLP-encoded trie nodes, account trie
	StorageNodes [][]byte // RLP-encoded trie nodes, all storage tries
	Contracts    [][]byte // contract bytecode, touched this block
	BlockHashes  []RecentBlockHash
}

// Validate checks every list against its capacity ceiling.
func (p *Parcel) Validate() error {
	if len(p.Proofs) > MaxAccountProofsPerBlock {
		return fmt.Errorf("%w: %d account proofs exceeds limit %d", ErrCapacityExceeded, len(p.Proofs), MaxAccountProofsPerBlock)
	}
	if len(p.AccountNodes) > MaxAccountNodesPerBlock {
		return fmt.Errorf("%w: %d account nodes exceeds limit %d", ErrCapacityExceeded, len(p.AccountNodes), MaxAccountNodesPerBlock)
	}
	if len(p.StorageNodes) > MaxStorageNodesPerBlock {
		return fmt.Errorf("%w: %d storage nodes exceeds limit %d", ErrCapacityExceeded, len(p.StorageNodes), MaxStorageNodesPerBlock)
	}
	if len(p.Contracts) > MaxContractsPerBlock {
		return fmt.Errorf("%w: %d contracts exceeds limit %d", ErrCapacityExceeded, len(p.Contracts), MaxContractsPerBlock)
	}
	if len(p.BlockHashes) > MaxRecentBlockHashes {
		return fmt.Errorf("%w: %d block hashes exceeds limit %d", ErrCapacityExceeded, len(p.BlockHashes), MaxRecentBlockHashes)
	}
	for _, c := range p.Contracts {
		if len(c) > MaxBytesPerContract {
			return fmt.Errorf("%w: contract of %d bytes exceeds limit %d", ErrCapacityExceeded, len(c), MaxBytesPerContract)
		}
	}
	for _, proof := range p.Proofs {
		if len(proof.Storage) > MaxStorageProofsPerAcct {
			return fmt.Errorf("%w: account %s has %d storage proofs, exceeds limit %d", ErrCapacityExceeded, proof.Address.Hex(), len(proof.Storage), MaxStorageProofsPerAcct)
		}
		if len(proof.AccountProof) > MaxNodesPerProof {
			return fmt.Errorf("%w: account %s proof has %d nodes, exceeds limit %d", ErrCapacityExceeded, proof.Address.Hex(), len(proof.AccountProof), MaxNodesPerProof)
		}
		for _, sp := range proof.Storage {
			if len(sp.Proof) > MaxNodesPerProof {
				return fmt.Errorf("%w: account %s storage proof has %d nodes, exceeds limit %d", ErrCapacityExceeded, proof.Address.Hex(), len(sp.Proof), MaxNodesPerProof)
			}
		}
	}
	return nil
}
