package checksum

import (
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// Sum returns the hex-encoded BLAKE3-256 digest of data.
func Sum(data []byte) string {
	h := blake3.Sum256(data)
	return hex.EncodeToString(h[:])
}

// SumString is Sum over a string.
func SumString(s string) string {
	return Sum([]byte(s))
}

// Short returns the first 16 hex characters of the digest, enough for ETags.
func Short(data []byte) string {
	return Sum(data)[:16]
}
