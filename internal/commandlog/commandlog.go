package commandlog

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// Item is an immutable audit record of one dispatched action.
type Item struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Actor     string    `json:"actor"`
	Action    string    `json:"action"`
	Details   string    `json:"details"`
}

// NewID generates a random command log id.
func NewID() string {
	buf := make([]byte, 12)
	_, _ = rand.Read(buf)
	return "cmd-" + hex.EncodeToString(buf)
}
