package audit

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// Entry is one recorded admin or operator action.
type Entry struct {
	ID            string
	Actor         string
	Role          string
	Action        string
	ResourceType  string
	ResourceID    string
	SiteID        string
	Metadata      json.RawMessage
	PayloadDigest string
	IP            string
	UserAgent     string
	CreatedAt     time.Time
}

// Logger writes audit entries. Handlers treat audit failures as non-fatal.
type Logger interface {
	Log(ctx context.Context, entry Entry) error
}

// withDefaults fills generated fields so callers only set what they know.
func (e Entry) withDefaults() Entry {
	if e.ID == "" {
		buf := make([]byte, 12)
		_, _ = rand.Read(buf)
		e.ID = "aud-" + hex.EncodeToString(buf)
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if e.PayloadDigest == "" && len(e.Metadata) > 0 {
		sum := sha256.Sum256(e.Metadata)
		e.PayloadDigest = hex.EncodeToString(sum[:])
	}
	return e
}
