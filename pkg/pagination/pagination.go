package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

const (
	DefaultLimit = 25
	MaxLimit     = 100
)

// Params is the raw page request as received from a client.
type Params struct {
	Limit  int
	Cursor string
}

// Cursor marks the last row of the previous page. ID breaks ties between rows
// sharing a timestamp, so it must be the row's unique key.
type Cursor struct {
	At time.Time `json:"at"`
	ID string    `json:"id"`
}

// Encode renders the cursor as an opaque URL-safe token.
func (c Cursor) Encode() string {
	raw, _ := json.Marshal(Cursor{At: c.At.UTC(), ID: c.ID})
	return base64.RawURLEncoding.EncodeToString(raw)
}

// DecodeCursor parses a token produced by Encode. A blank token yields nil.
func DecodeCursor(token string) (*Cursor, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}
	var c Cursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}
	if c.ID == "" || c.At.IsZero() {
		return nil, errors.New("cursor is missing its position")
	}
	return &c, nil
}

// Window is a validated page request.
type Window struct {
	Size  int
	After *Cursor
}

// Open clamps the limit into [1, MaxLimit] and decodes the cursor.
func Open(p Params) (Window, error) {
	size := p.Limit
	switch {
	case size <= 0:
		size = DefaultLimit
	case size > MaxLimit:
		size = MaxLimit
	}
	after, err := DecodeCursor(p.Cursor)
	if err != nil {
		return Window{}, err
	}
	return Window{Size: size, After: after}, nil
}

// Scope orders rows newest first by (timeCol, idCol), resumes after the
// cursor, and fetches one extra row so Collect can tell if a next page exists.
func (w Window) Scope(timeCol, idCol string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if w.After != nil {
			db = db.Where(
				fmt.Sprintf("(%[1]s < ?) OR (%[1]s = ? AND %[2]s < ?)", timeCol, idCol),
				w.After.At, w.After.At, w.After.ID,
			)
		}
		return db.Order(timeCol + " DESC").Order(idCol + " DESC").Limit(w.Size + 1)
	}
}

// Page is one slice of a cursor-paginated listing. Cursor is empty on the last page.
type Page[T any] struct {
	Items  []T    `json:"items"`
	Cursor string `json:"cursor"`
}

// Collect trims rows fetched through Scope to the window size and maps them
// with view. position must return the same columns Scope ordered by.
func Collect[R, T any](rows []R, w Window, position func(R) Cursor, view func(R) T) Page[T] {
	page := Page[T]{Items: make([]T, 0, min(len(rows), w.Size))}
	if len(rows) > w.Size {
		rows = rows[:w.Size]
		page.Cursor = position(rows[len(rows)-1]).Encode()
	}
	for _, row := range rows {
		page.Items = append(page.Items, view(row))
	}
	return page
}
