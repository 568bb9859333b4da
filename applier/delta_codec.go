package applier

import (
	"github.com/eth2030/multiproof-engine/core/types"
	"github.com/eth2030/multiproof-engine/rlp"
)

// DeltaWire is the RLP-friendly counterpart of StateDelta: the engine's
// reflection-based RLP encoder has no map support, so BlockHashes travels
// as a slice of pairs instead of a map[uint64]types.Hash.
type DeltaWire struct {
	Accounts    []AccountDelta
	BlockHashes []BlockHashEntry
}

// BlockHashEntry is one (block number, hash) pair.
type BlockHashEntry struct {
	BlockNumber uint64
	BlockHash   types.Hash
}

// ToWire converts a StateDelta to its RLP-friendly form.
func ToWire(d StateDelta) DeltaWire {
	w := DeltaWire{Accounts: d.Accounts}
	for num, hash := range d.BlockHashes {
		w.BlockHashes = append(w.BlockHashes, BlockHashEntry{BlockNumber: num, BlockHash: hash})
	}
	return w
}

// FromWire reverses ToWire.
func FromWire(w DeltaWire) StateDelta {
	d := StateDelta{Accounts: w.Accounts, BlockHashes: make(map[uint64]types.Hash, len(w.BlockHashes))}
	for _, e := range w.BlockHashes {
		d.BlockHashes[e.BlockNumber] = e.BlockHash
	}
	return d
}

// DecodeDelta RLP-decodes a StateDelta from its wire form.
func DecodeDelta(raw []byte) (StateDelta, error) {
	var w DeltaWire
	if err := rlp.DecodeBytes(raw, &w); err != nil {
		return StateDelta{}, err
	}
	return FromWire(w), nil
}

// EncodeDelta RLP-encodes a StateDelta via its wire form.
func EncodeDelta(d StateDelta) ([]byte, error) {
	return rlp.EncodeToBytes(ToWire(d))
}
