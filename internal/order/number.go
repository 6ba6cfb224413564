package order

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
)

// NewOrderNumber returns a human-readable order number, ORD- followed by
// eight uppercase hex characters. Uniqueness is enforced by the database;
// callers retry on collision.
func NewOrderNumber() string {
	var buf [4]byte
	// rand.Read never fails as of Go 1.24
	_, _ = rand.Read(buf[:])
	return "ORD-" + strings.ToUpper(hex.EncodeToString(buf[:]))
}
