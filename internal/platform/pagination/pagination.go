// Package pagination implements cursor-based paging for order listings.
// Clients page with pageSize and an opaque pageToken; the token wraps the
// Firestore cursor of the last row served so listing never needs offsets.
package pagination

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const (
	// DefaultPageSize applies when the client omits pageSize.
	DefaultPageSize = 20
	// DefaultMaxPageSize caps pageSize when Options does not set its own cap.
	DefaultMaxPageSize = 100
)

var (
	ErrInvalidPageSize  = errors.New("pagination: invalid pageSize")
	ErrInvalidPageToken = errors.New("pagination: invalid pageToken")
)

// Params carries the paging values parsed from one request.
type Params struct {
	PageSize  int
	PageToken string
	Cursor    Cursor
}

// Options sets per-endpoint bounds for Parse.
type Options struct {
	DefaultPageSize int
	MaxPageSize     int
}

// FromRequest reads pageSize and pageToken from the request query string.
func FromRequest(r *http.Request, opts Options) (Params, error) {
	if r == nil {
		return Params{}, errors.New("pagination: nil request")
	}
	return Parse(r.URL.Query(), opts)
}

// Parse validates the paging query values against the endpoint's bounds. An
// oversized pageSize is clamped rather than rejected; a malformed token is an
// error because silently restarting from the first page would re-serve rows.
func Parse(values url.Values, opts Options) (Params, error) {
	if values == nil {
		values = url.Values{}
	}

	pageSize, err := pageSizeFrom(values.Get("pageSize"), opts)
	if err != nil {
		return Params{}, err
	}
	params := Params{PageSize: pageSize}

	token := strings.TrimSpace(values.Get("pageToken"))
	if token != "" {
		cursor, err := DecodeToken(token)
		if err != nil {
			return Params{}, err
		}
		params.PageToken = token
		params.Cursor = cursor
	}
	return params, nil
}

func pageSizeFrom(raw string, opts Options) (int, error) {
	max := opts.MaxPageSize
	if max <= 0 {
		max = DefaultMaxPageSize
	}
	fallback := opts.DefaultPageSize
	if fallback <= 0 {
		fallback = DefaultPageSize
	}
	if fallback > max {
		fallback = max
	}

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	size, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: must be an integer", ErrInvalidPageSize)
	}
	if size <= 0 {
		return 0, fmt.Errorf("%w: must be greater than zero", ErrInvalidPageSize)
	}
	if size > max {
		size = max
	}
	return size, nil
}
