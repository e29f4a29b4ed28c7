package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
)

const (
	DefaultPageSize = 12
	MaxPageSize     = 120
)

var ErrInvalidPageToken = errors.New("invalid_page_token")

type Pagination struct {
	PageToken string `form:"page_token"`
	PageSize  int    `form:"page_size"`
}

// Cursor points at the last row of the previous page in keyset order.
type Cursor struct {
	ID string `json:"id,omitempty"`
}

type PageInfo struct {
	NextPageToken string `json:"next_page_token"`
	HasMore       bool   `json:"has_more"`
}

// NormalizePageSize clamps a requested size into [1, MaxPageSize].
func NormalizePageSize(size int) int {
	switch {
	case size <= 0:
		return DefaultPageSize
	case size > MaxPageSize:
		return MaxPageSize
	default:
		return size
	}
}

func EncodeCursor(data Cursor) (string, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func DecodeCursor(data string) (*Cursor, error) {
	data = strings.TrimSpace(data)
	if data == "" {
		return nil, nil
	}
	b, err := base64.RawURLEncoding.DecodeString(data)
	if err != nil {
		return nil, ErrInvalidPageToken
	}

	var cursor Cursor
	if err := json.Unmarshal(b, &cursor); err != nil {
		return nil, ErrInvalidPageToken
	}
	return &cursor, nil
}

// TrimPage expects data fetched with limit+1 rows. It drops the probe row and
// returns the page info pointing after the last kept row.
func TrimPage[T any](data []T, limit int, extractID func(T) string) ([]T, PageInfo, error) {
	if len(data) <= limit {
		return data, PageInfo{}, nil
	}

	data = data[:limit]
	token, err := EncodeCursor(Cursor{ID: extractID(data[len(data)-1])})
	if err != nil {
		return nil, PageInfo{}, err
	}
	return data, PageInfo{NextPageToken: token, HasMore: true}, nil
}
