package directory

import (
	"context"
	"net/url"
)

// Collection is one REST resource collection, e.g. "records/".
type Collection[T any] struct {
	c    *Client
	path string
}

func NewCollection[T any](c *Client, path string) *Collection[T] {
	return &Collection[T]{c: c, path: path}
}

func (col *Collection[T]) Path() string { return col.path }

// Find runs a filtered read and returns the first page of matches
// together with the total count reported by the server.
func (col *Collection[T]) Find(ctx context.Context, filter url.Values) ([]T, int, error) {
	var resp listResponse[T]
	if err := col.c.get(ctx, col.path, filter, &resp); err != nil {
		return nil, 0, err
	}
	return resp.Results, resp.Count, nil
}

func (col *Collection[T]) Create(ctx context.Context, payload any) (*T, error) {
	v := new(T)
	if err := col.c.post(ctx, col.path, payload, v); err != nil {
		return nil, err
	}
	return v, nil
}

// GetOrCreate returns the first entity matching filter as is. Only when
// nothing matches is payload posted. created reports which one happened.
// Existing entities are never compared with payload or modified.
func (col *Collection[T]) GetOrCreate(ctx context.Context, filter url.Values, payload any) (v *T, created bool, err error) {
	found, count, err := col.Find(ctx, filter)
	if err != nil {
		return nil, false, err
	}
	if count > 0 && len(found) > 0 {
		return &found[0], false, nil
	}
	v, err = col.Create(ctx, payload)
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

// Repository binds a Collection to the way a key of type K is turned
// into a lookup filter and a creation payload.
type Repository[K, T any] struct {
	col     *Collection[T]
	filter  func(K) url.Values
	payload func(K) any
}

func NewRepository[K, T any](col *Collection[T], filter func(K) url.Values, payload func(K) any) *Repository[K, T] {
	return &Repository[K, T]{col: col, filter: filter, payload: payload}
}

// Ensure is GetOrCreate for key.
func (r *Repository[K, T]) Ensure(ctx context.Context, key K) (*T, bool, error) {
	return r.col.GetOrCreate(ctx, r.filter(key), r.payload(key))
}
