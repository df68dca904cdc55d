package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 250
)

var ErrInvalidToken = errors.New("invalid page token")

type Pagination struct {
	PageToken string `form:"page_token"`
	PageSize  int    `form:"page_size"`
}

type PageInfo struct {
	NextPageToken string `json:"next_page_token"`
	HasMore       bool   `json:"has_more"`
}

// Cursor is the keyset position of the last row on a page. Rows are ordered
// newest first by (At, ID).
type Cursor struct {
	ID snowflake.ID
	At time.Time
}

type wireCursor struct {
	ID string `json:"id"`
	At string `json:"at"`
}

// Size clamps the requested page size into [1, MaxPageSize].
func (p Pagination) Size() int {
	switch {
	case p.PageSize <= 0:
		return DefaultPageSize
	case p.PageSize > MaxPageSize:
		return MaxPageSize
	default:
		return p.PageSize
	}
}

// Cursor decodes PageToken. It returns nil for the first page.
func (p Pagination) Cursor() (*Cursor, error) {
	token := strings.TrimSpace(p.PageToken)
	if token == "" {
		return nil, nil
	}
	return DecodeCursor(token)
}

// EncodeCursor renders a URL-safe page token.
func EncodeCursor(c Cursor) string {
	b, _ := json.Marshal(wireCursor{ID: c.ID.String(), At: c.At.UTC().Format(time.RFC3339Nano)})
	return base64.RawURLEncoding.EncodeToString(b)
}

func DecodeCursor(token string) (*Cursor, error) {
	b, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, ErrInvalidToken
	}
	var wire wireCursor
	if err := json.Unmarshal(b, &wire); err != nil {
		return nil, ErrInvalidToken
	}
	at, err := time.Parse(time.RFC3339Nano, wire.At)
	if err != nil {
		return nil, ErrInvalidToken
	}
	id, err := snowflake.ParseString(wire.ID)
	if err != nil || id <= 0 {
		return nil, ErrInvalidToken
	}
	return &Cursor{ID: id, At: at}, nil
}

// Page trims a result fetched with limit size+1 down to size rows and builds
// the token for the next page from the last row kept.
func Page[T any](rows []*T, size int, key func(*T) Cursor) ([]T, PageInfo) {
	var info PageInfo
	if len(rows) > size {
		rows = rows[:size]
		info.HasMore = true
	}

	out := make([]T, 0, len(rows))
	for _, row := range rows {
		if row != nil {
			out = append(out, *row)
		}
	}
	if info.HasMore && len(rows) > 0 {
		info.NextPageToken = EncodeCursor(key(rows[len(rows)-1]))
	}
	return out, info
}
