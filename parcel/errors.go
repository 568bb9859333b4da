package parcel

import "errors"

var (
	// ErrCapacityExceeded is returned when a parcel or one of its lists
	// exceeds its fixed capacity ceiling.
	ErrCapacityExceeded = errors.New("parcel: capacity exceeded")
	// ErrMalformed is returned when decoding wire bytes fails structurally.
	ErrMalformed = errors.New("parcel: malformed wire bytes")
	// ErrNodeIndex is returned when a NodeIndices entry has no corresponding table entry.
	ErrNodeIndex = errors.New("parcel: node index out of range")
)
