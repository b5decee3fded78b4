package query

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Cursor marks a position inside an ordered result set for keyset
// pagination: the order-column value of the last row seen plus its primary
// key for tie-breaking. Cursors travel as opaque base64 tokens.
type Cursor struct {
	OrderValue any    `json:"order_value"`
	PK         string `json:"pk"`
}

// Encode serializes the cursor into an opaque token.
func (c Cursor) Encode() (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(data), nil
}

// DecodeCursor parses a cursor token. An empty token decodes to nil.
func DecodeCursor(token string) (*Cursor, error) {
	if token == "" {
		return nil, nil
	}

	data, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}

	var cursor Cursor
	if err := json.Unmarshal(data, &cursor); err != nil {
		return nil, fmt.Errorf("unmarshal cursor: %w", err)
	}

	return &cursor, nil
}
