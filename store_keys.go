package memo

import (
	"crypto/sha256"
	"encoding/hex"
)

// boundedKey returns key when it fits in limit bytes and a digest of it
// otherwise. Digests start with "#" and keys that already do are digested
// too, so a digest never equals a literal key. The key stored inside each
// memo record catches the rest.
func boundedKey(key string, limit int) string {
	if len(key) <= limit && (len(key) == 0 || key[0] != '#') {
		return key
	}
	sum := sha256.Sum256([]byte(key))
	return "#" + hex.EncodeToString(sum[:])
}
