package kvstore

import (
	"encoding/binary"
	"fmt"
)

// lengthPrefixSize is the width of the length prefix written ahead of
// every value. The original store this cache is modeled on used a
// host-native size_t, which made its files architecture-dependent; this
// implementation pins the width and byte order instead, per spec's own
// recommendation, so that a cache built on one machine is at least
// byte-layout-compatible with another.
const lengthPrefixSize = 8

// encodeValue length-prefixes a raw byte string before it is stored,
// so that ReadString can recover the original length from the bucket's
// raw bytes without relying on a NUL terminator or other convention.
func encodeValue(v []byte) []byte {
	buf := make([]byte, lengthPrefixSize+len(v))
	binary.LittleEndian.PutUint64(buf, uint64(len(v)))
	copy(buf[lengthPrefixSize:], v)
	return buf
}

// decodeValue reverses encodeValue. The returned slice aliases raw.
func decodeValue(raw []byte) ([]byte, error) {
	if len(raw) < lengthPrefixSize {
		return nil, fmt.Errorf("kvstore: value envelope truncated: got %d bytes, need at least %d", len(raw), lengthPrefixSize)
	}
	n := binary.LittleEndian.Uint64(raw)
	rest := raw[lengthPrefixSize:]
	if n > uint64(len(rest)) {
		return nil, fmt.Errorf("kvstore: value envelope claims length %d but only %d bytes follow", n, len(rest))
	}
	return rest[:n], nil
}
