package eventing

import (
	"crypto/rand"
	"encoding/hex"
)

// NewEventID returns a fresh event identifier.
func NewEventID() string {
	buf := make([]byte, 12)
	_, _ = rand.Read(buf)
	return "evt-" + hex.EncodeToString(buf)
}
