// Package repo defines the generic Repository interface and list options.
package repo

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no entity matches the requested id.
var ErrNotFound = errors.New("not found")

// Repository is the generic read and append interface over stored entities.
type Repository[T any, ID comparable] interface {
	Get(ctx context.Context, id ID) (T, error)
	List(ctx context.Context, opts ListOpts) ([]T, error)
	Create(ctx context.Context, entity T) (T, error)
}

// ListOpts controls pagination, filtering and ordering for List operations.
type ListOpts struct {
	Offset int
	Limit  int
	// Filter matches properties by equality.
	Filter map[string]any
	// OrderBy names the property to sort on; Desc reverses the order.
	OrderBy string
	Desc    bool
}
