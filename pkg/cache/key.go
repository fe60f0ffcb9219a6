package cache

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Key identifies a cached stats response.
type Key struct {
	// Digest is the hex-encoded SHA-256 of the canonicalized geometry bytes.
	Digest string
}

// KeyForGeometry derives a deterministic key from raw geometry JSON. The
// geometry is compacted first so formatting differences in caller input do
// not fragment the cache.
func KeyForGeometry(geometry []byte) Key {
	var buf bytes.Buffer
	if err := json.Compact(&buf, geometry); err != nil {
		// Non-JSON input still gets a stable key; the stats service will
		// reject it the same way every time.
		buf.Reset()
		buf.Write(geometry)
	}

	sum := sha256.Sum256(buf.Bytes())
	return Key{Digest: hex.EncodeToString(sum[:])}
}

// String returns the Redis key. Format: stats:geom:<digest>
func (k Key) String() string {
	return fmt.Sprintf("stats:geom:%s", k.Digest)
}
