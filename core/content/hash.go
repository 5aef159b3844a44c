package content

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// HashResult contains both SHA-256 and BLAKE3 digests of canonical markup.
type HashResult struct {
	SHA256 string `json:"sha256"`
	BLAKE3 string `json:"blake3"`
}

// Hash computes the digests of a markup string. Callers hash canonical
// markup (the serializer's output) so equal trees hash equally.
func Hash(markup string) HashResult {
	s := sha256.Sum256([]byte(markup))
	b := blake3.Sum256([]byte(markup))
	return HashResult{
		SHA256: hex.EncodeToString(s[:]),
		BLAKE3: hex.EncodeToString(b[:]),
	}
}

// Short returns an abbreviated BLAKE3 digest for display.
func (h HashResult) Short() string {
	if len(h.BLAKE3) < 12 {
		return h.BLAKE3
	}
	return h.BLAKE3[:12]
}

// Verify reports whether markup hashes to h.
func (h HashResult) Verify(markup string) bool {
	if h.SHA256 == "" && h.BLAKE3 == "" {
		return false
	}
	got := Hash(markup)
	if h.SHA256 != "" && h.SHA256 != got.SHA256 {
		return false
	}
	if h.BLAKE3 != "" && h.BLAKE3 != got.BLAKE3 {
		return false
	}
	return true
}
