// Package xid generates prefixed identifiers for stored records, e.g.
// "sale-1756710000000000000-a1b2c3d4e5f60718". The prefix keeps IDs
// self-describing in logs and audit trails.
package xid

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// New returns a unique identifier carrying the given prefix. An empty or
// blank prefix falls back to "id" so callers never produce a bare "-..."
// identifier.
func New(prefix string) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "id"
	}
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		// Without entropy the nanosecond clock still gives uniqueness
		// within a single process.
		return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
	}
	return fmt.Sprintf("%s-%d-%s", prefix, time.Now().UnixNano(), hex.EncodeToString(buf))
}
