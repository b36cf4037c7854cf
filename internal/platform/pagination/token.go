package pagination

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// Cursor holds the StartAfter values of the last order served on the previous
// page, in the listing's sort order (createdAt desc, then document id).
type Cursor struct {
	StartAfter []any `json:"startAfter,omitempty"`
}

// EncodeToken wraps a cursor into the opaque pageToken handed to clients. An
// empty cursor yields an empty token, meaning there is no next page.
func EncodeToken(cursor Cursor) (string, error) {
	if len(cursor.StartAfter) == 0 {
		return "", nil
	}
	data, err := json.Marshal(cursor)
	if err != nil {
		return "", fmt.Errorf("pagination: encode token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

// DecodeToken unwraps a client-supplied pageToken. Tokens are not signed;
// a tampered token at worst repositions the cursor within the caller's own
// scoped query.
func DecodeToken(token string) (Cursor, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Cursor{}, nil
	}
	decoded, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", ErrInvalidPageToken, err)
	}
	var cursor Cursor
	if err := json.Unmarshal(decoded, &cursor); err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", ErrInvalidPageToken, err)
	}
	return cursor, nil
}
