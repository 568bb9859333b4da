package parcel

import (
	"fmt"

	"github.com/golang/snappy"

	"github.com/eth2030/multiproof-engine/rlp"
)

// Encode serializes p with the teacher's own reflection-based RLP encoder
// and snappy-compresses the result, mirroring go-ethereum's snappy-framed
// devp2p payloads.
func Encode(p *Parcel) ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	raw, err := rlp.EncodeToBytes(p)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return snappy.Encode(nil, raw), nil
}

// Decode reverses Encode.
func Decode(compressed []byte) (*Parcel, error) {
	raw, err := snappy.Decode(nil, compressed)
	if err != nil {
		return nil, fmt.Errorf("%w: snappy: %v", ErrMalformed, err)
	}
	var p Parcel
	if err := rlp.DecodeBytes(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: rlp: %v", ErrMalformed, err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}
