package parcel

// Capacity ceilings for a single block's transferable parcel. Mirrors the
// list-length limits used to bound SSZ container sizes.
//
// Grounded on crates/types/src/constants.rs's MAX_* constants (referenced by
// crates/types/src/state.rs's List<T, N> type aliases).
const (
	MaxAccountProofsPerBlock  = 1 << 13 // 8192
	MaxStorageProofsPerAcct   = 1 << 13
	MaxNodesPerProof          = 1 << 10
	MaxAccountNodesPerBlock   = 1 << 16
	MaxStorageNodesPerBlock   = 1 << 18
	MaxContractsPerBlock      = 1 << 12
	MaxBytesPerContract       = 1 << 15 // 32 KiB, EIP-170 code-size cap plus slack
	MaxBytesPerNode           = 1 << 10 // a branch node RLP never exceeds ~532 bytes
	MaxRecentBlockHashes      = 256
)
