// Package cacheaside implements the cache-aside read path.
//
// A Load consults the cache first and returns a hit without touching the
// authoritative source. On a miss, or on any cache failure, it fetches from
// the source and populates the cache on a best-effort basis. Cache failures
// are reported to a Recorder and never returned to the caller; fetch
// failures always are.
package cacheaside

import (
	"context"
	"reflect"
)

// Loader bundles the steps of one cache-aside read.
type Loader[T any] struct {
	// Name identifies the read in logs and metrics, e.g. "product_list".
	Name string
	// Get reports (value, true, nil) on a hit. A nil Get is always a miss.
	Get func(ctx context.Context) (T, bool, error)
	// Fetch reads the authoritative value. Required.
	Fetch func(ctx context.Context) (T, error)
	// Set stores a fetched value. A nil Set disables population.
	Set func(ctx context.Context, v T) error
	// Empty reports values that must not be cached. Defaults to IsEmpty.
	Empty func(v T) bool
}

// Load runs l against the cache and the authoritative source.
func Load[T any](ctx context.Context, rec Recorder, l Loader[T]) (T, error) {
	if rec == nil {
		rec = NopRecorder{}
	}

	if l.Get != nil {
		v, ok, err := l.Get(ctx)
		switch {
		case err != nil:
			rec.Failure(ctx, l.Name, OpGet, err)
		case ok:
			rec.Hit(ctx, l.Name)
			return v, nil
		default:
			rec.Miss(ctx, l.Name)
		}
	}

	v, err := l.Fetch(ctx)
	if err != nil {
		var zero T
		return zero, err
	}

	empty := l.Empty
	if empty == nil {
		empty = IsEmpty[T]
	}
	if l.Set != nil && !empty(v) {
		if err := l.Set(ctx, v); err != nil {
			rec.Failure(ctx, l.Name, OpSet, err)
		}
	}

	return v, nil
}

// IsEmpty reports whether v is the zero value of its type, or a slice, map
// or string of length zero.
func IsEmpty[T any](v T) bool {
	rv := reflect.ValueOf(any(v))
	if !rv.IsValid() {
		return true
	}
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.String:
		return rv.Len() == 0
	default:
		return rv.IsZero()
	}
}
