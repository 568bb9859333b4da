package multiproof

import "fmt"

// decodeRLPItems parses a single top-level RLP list and returns its
// elements as raw byte slices: string items are returned as their content
// only, list items are returned with their header intact so that an inline
// child node's bytes can be handed straight to DecodeNode. Grounded on
// trie/decoder.go's decodeRLPList/decodeOneElement, generalized to a
// standalone helper since the multiproof package does not keep an in-memory
// node tree the way trie.Trie does.
func decodeRLPItems(data []byte) ([][]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty input")
	}
	prefix := data[0]
	if prefix < 0xc0 {
		return nil, fmt.Errorf("expected RLP list, got string prefix 0x%02x", prefix)
	}

	var payload []byte
	switch {
	case prefix <= 0xf7:
		length := int(prefix - 0xc0)
		if 1+length > len(data) {
			return nil, fmt.Errorf("truncated short list")
		}
		payload = data[1 : 1+length]
	default:
		lenLen := int(prefix - 0xf7)
		if 1+lenLen > len(data) {
			return nil, fmt.Errorf("truncated long list length")
		}
		length := decodeBigEndianLen(data[1 : 1+lenLen])
		if 1+lenLen+length > len(data) {
			return nil, fmt.Errorf("truncated long list payload")
		}
		payload = data[1+lenLen : 1+lenLen+length]
	}

	var items [][]byte
	for len(payload) > 0 {
		item, rest, err := decodeOneRLPItem(payload)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		payload = rest
	}
	return items, nil
}

func decodeOneRLPItem(data []byte) (item, rest []byte, err error) {
	if len(data) == 0 {
		return nil, nil, fmt.Errorf("empty item")
	}
	prefix := data[0]
	switch {
	case prefix <= 0x7f:
		return data[:1], data[1:], nil

	case prefix == 0x80:
		return nil, data[1:], nil

	case prefix <= 0xb7:
		length := int(prefix - 0x80)
		if 1+length > len(data) {
			return nil, nil, fmt.Errorf("truncated short string")
		}
		return data[1 : 1+length], data[1+length:], nil

	case prefix <= 0xbf:
		lenLen := int(prefix - 0xb7)
		if 1+lenLen > len(data) {
			return nil, nil, fmt.Errorf("truncated long string length")
		}
		length := decodeBigEndianLen(data[1 : 1+lenLen])
		end := 1 + lenLen + length
		if end > len(data) {
			return nil, nil, fmt.Errorf("truncated long string payload")
		}
		return data[1+lenLen : end], data[end:], nil

	case prefix <= 0xf7:
		length := int(prefix - 0xc0)
		end := 1 + length
		if end > len(data) {
			return nil, nil, fmt.Errorf("truncated short list item")
		}
		return data[:end], data[end:], nil

	default:
		lenLen := int(prefix - 0xf7)
		if 1+lenLen > len(data) {
			return nil, nil, fmt.Errorf("truncated long list item length")
		}
		length := decodeBigEndianLen(data[1 : 1+lenLen])
		end := 1 + lenLen + length
		if end > len(data) {
			return nil, nil, fmt.Errorf("truncated long list item payload")
		}
		return data[:end], data[end:], nil
	}
}

func decodeBigEndianLen(b []byte) int {
	n := 0
	for _, c := range b {
		n = n<<8 | int(c)
	}
	return n
}
