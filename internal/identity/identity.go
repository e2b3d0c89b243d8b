package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"
)

// delimiter separates fingerprint components so that concatenation is
// unambiguous ("ab"+"c" vs "a"+"bc").
const delimiter = "|"

// Derive computes the stable fingerprint for a story. It hashes the source
// identifier, platform tag, and publish instant (Unix seconds, UTC) and is
// independent of title or summary edits. The function is total: any strings
// and any instant produce a digest. Callers must pass a concrete instant:
// substituting a processing-time fallback for an unparsable publish time is
// an explicit caller decision, never done silently here.
func Derive(sourceID, platform string, publishedAt time.Time) string {
	payload := sourceID + delimiter + platform + delimiter +
		strconv.FormatInt(publishedAt.UTC().Unix(), 10)
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}
