// Package pagination implements the opaque keyset cursor used by paper
// listing. A cursor pins the (created_at, id) position of the last row on
// the previous page so listing stays stable while papers are ingested.
package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"
)

var ErrInvalidCursor = errors.New("invalid cursor format")

// Cursor is the decoded keyset position.
type Cursor struct {
	LastID    string
	Timestamp time.Time
}

type cursorPayload struct {
	ID string `json:"id"`
	TS string `json:"ts"`
}

// EncodeCursor serializes a keyset position to an opaque URL-safe token.
// An empty id yields an empty token, meaning no further pages.
func EncodeCursor(lastID string, timestamp time.Time) string {
	if lastID == "" {
		return ""
	}
	raw, _ := json.Marshal(cursorPayload{
		ID: lastID,
		TS: timestamp.UTC().Format(time.RFC3339Nano),
	})
	return base64.RawURLEncoding.EncodeToString(raw)
}

// DecodeCursor parses a token produced by EncodeCursor. An empty token
// decodes to nil (first page). Anything unparseable is ErrInvalidCursor.
func DecodeCursor(token string) (*Cursor, error) {
	if token == "" {
		return nil, nil
	}

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, ErrInvalidCursor
	}

	var p cursorPayload
	if err := json.Unmarshal(raw, &p); err != nil || p.ID == "" {
		return nil, ErrInvalidCursor
	}

	ts, err := time.Parse(time.RFC3339Nano, p.TS)
	if err != nil {
		return nil, ErrInvalidCursor
	}

	return &Cursor{LastID: p.ID, Timestamp: ts}, nil
}
