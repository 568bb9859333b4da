package parcel

import "github.com/eth2030/multiproof-engine/core/types"

// RawStorageProof is one storage slot's full (uncompacted) EIP-1186 proof,
// the shape returned by an eth_getProof RPC call.
type RawStorageProof struct {
	Key   types.Hash
	Value []byte
	Proof [][]byte
}

// RawEip1186Proof is a full (uncompacted) EIP-1186 account proof.
type RawEip1186Proof struct {
	Address      types.Address
	Balance      []byte
	CodeHash     types.Hash
	Nonce        uint64
	StorageHash  types.Hash
	AccountProof [][]byte
	Storage      []RawStorageProof
}

// Build assembles a Parcel from a block's raw proofs, contract bytecode,
// and recent block hashes, deduplicating trie nodes as it goes: one shared
// table for account-trie nodes, one for all storage-trie nodes combined
// (storage tries across different accounts frequently share no nodes, but
// within a single deep storage trie many do).
//
// Grounded on crates/inventory/src/transferrable.rs's get_slim_eip1186_proofs.
func Build(proofs []RawEip1186Proof, contracts [][]byte, blockHashes []RecentBlockHash) (*Parcel, error) {
	accountNodes := newNodeTable()
	storageNodes := newNodeTable()

	compact := make([]CompactEip1186Proof, 0, len(proofs))
	for _, p := range proofs {
		storage := make([]CompactStorageProof, 0, len(p.Storage))
		for _, sp := range p.Storage {
			storage = append(storage, CompactStorageProof{
				Key:   sp.Key,
				Value: sp.Value,
				Proof: storageNodes.AddAll(sp.Proof),
			})
		}
		compact = append(compact, CompactEip1186Proof{
			Address:      p.Address,
			Balance:      p.Balance,
			CodeHash:     p.CodeHash,
			Nonce:        p.Nonce,
			StorageHash:  p.StorageHash,
			AccountProof: accountNodes.AddAll(p.AccountProof),
			Storage:      storage,
		})
	}

	out := &Parcel{
		Proofs:       compact,
		AccountNodes: accountNodes.nodes,
		StorageNodes: storageNodes.nodes,
		Contracts:    contracts,
		BlockHashes:  blockHashes,
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}

// Expand reverses Build, reconstituting full per-account proofs from a
// Parcel's deduplicated node tables.
func Expand(p *Parcel) ([]RawEip1186Proof, error) {
	accountTable := &nodeTable{nodes: p.AccountNodes}
	storageTable := &nodeTable{nodes: p.StorageNodes}

	out := make([]RawEip1186Proof, 0, len(p.Proofs))
	for _, cp := range p.Proofs {
		accountProof, err := accountTable.Resolve(cp.AccountProof)
		if err != nil {
			return nil, err
		}
		storage := make([]RawStorageProof, 0, len(cp.Storage))
		for _, sp := range cp.Storage {
			proof, err := storageTable.Resolve(sp.Proof)
			if err != nil {
				return nil, err
			}
			storage = append(storage, RawStorageProof{Key: sp.Key, Value: sp.Value, Proof: proof})
		}
		out = append(out, RawEip1186Proof{
			Address:      cp.Address,
			Balance:      cp.Balance,
			CodeHash:     cp.CodeHash,
			Nonce:        cp.Nonce,
			StorageHash:  cp.StorageHash,
			AccountProof: accountProof,
			Storage:      storage,
		})
	}
	return out, nil
}
