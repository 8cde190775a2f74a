package resource

import "context"

// Collection is a List whose members are wrapped into a domain type.
type Collection[T any] struct {
	list *List
	wrap func(*Resource) T
}

// NewCollection wraps l.
func NewCollection[T any](l *List, wrap func(*Resource) T) *Collection[T] {
	return &Collection[T]{list: l, wrap: wrap}
}

// List exposes the underlying untyped collection.
func (c *Collection[T]) List() *List { return c.list }

// Items returns a handle per object.
func (c *Collection[T]) Items(ctx context.Context) ([]T, error) {
	items, err := c.list.Items(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(items))
	for _, r := range items {
		out = append(out, c.wrap(r))
	}
	return out, nil
}

// Len returns the number of objects.
func (c *Collection[T]) Len(ctx context.Context) (int, error) {
	return c.list.Len(ctx)
}

// At returns the handle at index i.
func (c *Collection[T]) At(ctx context.Context, i int) (T, error) {
	var zero T
	r, err := c.list.At(ctx, i)
	if err != nil {
		return zero, err
	}
	return c.wrap(r), nil
}

// First returns the first member and whether one exists.
func (c *Collection[T]) First(ctx context.Context) (T, bool, error) {
	var zero T
	r, err := c.list.First(ctx)
	if err != nil || r == nil {
		return zero, false, err
	}
	return c.wrap(r), true, nil
}

// IDs returns the object ids in array order.
func (c *Collection[T]) IDs(ctx context.Context) ([]string, error) {
	return c.list.IDs(ctx)
}

// Table fetches the given fields of every object as rows.
func (c *Collection[T]) Table(ctx context.Context, fields ...string) (*Table, error) {
	return c.list.Table(ctx, fields...)
}
