package reqid

import (
	"context"

	"github.com/google/uuid"
)

// key is the context key for the request ID.
type key struct{}

// Header carries a caller-supplied request ID.
const Header = "X-Request-Id"

// NewContext returns a copy of parent with a new random request ID stored.
// It also returns the generated ID.
func NewContext(parent context.Context) (context.Context, string) {
	id := uuid.NewString()
	return context.WithValue(parent, key{}, id), id
}

// WithID stores a caller-supplied ID. Values that are not UUIDs are replaced
// by a fresh one.
func WithID(parent context.Context, id string) (context.Context, string) {
	if _, err := uuid.Parse(id); err != nil {
		return NewContext(parent)
	}
	return context.WithValue(parent, key{}, id), id
}

// FromContext extracts the request ID from ctx.
// It returns the ID and whether it was present.
func FromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(key{})
	id, ok := v.(string)
	return id, ok
}
