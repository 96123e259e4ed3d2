package auth

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// IngestAuthMiddleware checks the HMAC signature the external snapshot feed
// puts on each batch. The signature covers the timestamp header plus a
// newline plus the raw body.
type IngestAuthMiddleware struct {
	secret  []byte
	maxSkew time.Duration
}

// NewIngestAuthMiddleware constructs ingest auth middleware.
func NewIngestAuthMiddleware(secret []byte, maxSkew time.Duration) *IngestAuthMiddleware {
	return &IngestAuthMiddleware{secret: secret, maxSkew: maxSkew}
}

// Wrap rejects unsigned or stale requests before they reach the handler.
func (m *IngestAuthMiddleware) Wrap(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "read body error", http.StatusBadRequest)
			return
		}
		_ = r.Body.Close()

		if err := m.verify(r, body); err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}

		r.Body = io.NopCloser(bytes.NewReader(body))
		next.ServeHTTP(w, r)
	})
}

func (m *IngestAuthMiddleware) verify(r *http.Request, body []byte) error {
	if len(m.secret) == 0 {
		return errors.New("ingest auth not configured")
	}
	timestamp := strings.TrimSpace(r.Header.Get("X-Ingest-Timestamp"))
	signature := strings.ToLower(strings.TrimSpace(r.Header.Get("X-Ingest-Signature")))
	if timestamp == "" || signature == "" {
		return errors.New("missing ingest signature")
	}
	unix, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return errors.New("invalid ingest timestamp")
	}
	if m.maxSkew > 0 {
		if skew := time.Since(time.Unix(unix, 0)).Abs(); skew > m.maxSkew {
			return errors.New("ingest signature expired")
		}
	}

	mac := hmac.New(sha256.New, m.secret)
	mac.Write([]byte(timestamp))
	mac.Write([]byte("\n"))
	mac.Write(body)
	want := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(signature), []byte(want)) {
		return errors.New("invalid ingest signature")
	}
	return nil
}
