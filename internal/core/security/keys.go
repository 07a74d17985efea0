package security

import (
	"crypto/sha256"
	"crypto/subtle"
	"strings"
)

// KeyRing holds the accepted API keys as SHA-256 digests.
type KeyRing struct {
	digests [][sha256.Size]byte
}

// NewKeyRing builds a ring from the non-blank keys supplied.
func NewKeyRing(keys ...string) *KeyRing {
	ring := &KeyRing{}
	seen := make(map[[sha256.Size]byte]struct{}, len(keys))
	for _, key := range keys {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		digest := sha256.Sum256([]byte(key))
		if _, ok := seen[digest]; ok {
			continue
		}
		seen[digest] = struct{}{}
		ring.digests = append(ring.digests, digest)
	}
	return ring
}

// Valid reports whether key matches any configured key. Every digest is
// compared so timing does not reveal which key matched.
func (k *KeyRing) Valid(key string) bool {
	if k == nil || key == "" {
		return false
	}
	digest := sha256.Sum256([]byte(key))
	match := 0
	for _, candidate := range k.digests {
		match |= subtle.ConstantTimeCompare(digest[:], candidate[:])
	}
	return match == 1
}

// Len returns the number of distinct keys.
func (k *KeyRing) Len() int {
	if k == nil {
		return 0
	}
	return len(k.digests)
}
