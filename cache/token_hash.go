package cache

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashKey hashes a session id so raw ids never end up as cache keys.
func HashKey(sessionID string) string {
	sum := sha256.Sum256([]byte(sessionID))
	return hex.EncodeToString(sum[:])
}
