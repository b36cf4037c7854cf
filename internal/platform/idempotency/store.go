// Package idempotency shields order placement from duplicate submissions.
// A buyer retrying a checkout with the same Idempotency-Key gets the
// original response replayed instead of a second order.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"time"
)

// Status is the lifecycle state of a replay record.
type Status string

const (
	// DefaultTTL is how long replay records are retained when the caller
	// does not configure a retention window.
	DefaultTTL = 24 * time.Hour
	// StatusPending marks a key that is reserved while the first request
	// is still in flight.
	StatusPending Status = "pending"
	// StatusCompleted marks a key whose response has been captured and
	// can be replayed.
	StatusCompleted Status = "completed"
)

// ReservationState is the outcome of trying to reserve a key.
type ReservationState int

const (
	// ReservationStateNew means the key was free and the request should
	// proceed to the handler.
	ReservationStateNew ReservationState = iota
	// ReservationStateCompleted means a captured response exists and
	// should be replayed.
	ReservationStateCompleted
	// ReservationStatePending means the first request for this key has
	// not finished yet.
	ReservationStatePending
)

// Reservation is the result of a reserve attempt, carrying the stored
// record when one exists.
type Reservation struct {
	State  ReservationState
	Record Record
}

// Record is the persisted replay state for one key.
type Record struct {
	Key             string
	Fingerprint     string
	Status          Status
	ResponseStatus  int
	ResponseHeaders map[string][]string
	ResponseBody    []byte
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ExpiresAt       time.Time
}

// Response is the captured handler output stored for replays.
type Response struct {
	Status  int
	Headers http.Header
	Body    []byte
}

// Store persists key reservations and captured responses.
type Store interface {
	Reserve(ctx context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (Reservation, error)
	SaveResponse(ctx context.Context, key, fingerprint string, resp Response, now time.Time, ttl time.Duration) error
	Release(ctx context.Context, key, fingerprint string) error
	CleanupExpired(ctx context.Context, now time.Time, limit int) (int, error)
}

// ErrFingerprintMismatch signals that a key was reused for a request with
// a different method, path, body, or caller.
var ErrFingerprintMismatch = errors.New("idempotency: key reserved for different request fingerprint")

func recordID(key string) string {
	return digest([]byte(strings.TrimSpace(key)))
}

func digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// storableHeaders copies the response headers, dropping hop-by-hop and
// per-response headers that must not be replayed verbatim.
func storableHeaders(header http.Header) map[string][]string {
	if len(header) == 0 {
		return nil
	}

	kept := make(map[string][]string, len(header))
	for name, values := range header {
		canonical := http.CanonicalHeaderKey(name)
		switch strings.ToLower(canonical) {
		case "content-length", "date", "connection", "keep-alive",
			"proxy-authenticate", "proxy-authorization", "te", "trailers",
			"transfer-encoding", "upgrade":
			continue
		}
		kept[canonical] = append([]string(nil), values...)
	}
	if len(kept) == 0 {
		return nil
	}
	return kept
}

func restoreHeaders(values map[string][]string) http.Header {
	header := make(http.Header, len(values))
	for name, vals := range values {
		header[name] = append([]string(nil), vals...)
	}
	return header
}
