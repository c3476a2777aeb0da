package hosted

import (
	"context"
)

var storeCtxKey = &contextKey{"store"}

type contextKey struct {
	name string
}

// WithContext sets the Store in the given context.
func WithContext(ctx context.Context, store *Store) context.Context {
	return context.WithValue(ctx, storeCtxKey, store)
}

// FromContext finds the Store in the context.
func FromContext(ctx context.Context) (*Store, bool) {
	raw, ok := ctx.Value(storeCtxKey).(*Store)
	return raw, ok
}

// MustFromContext returns the Store or panics. Reaching for the store outside
// a context that carries one is programmer misuse, not a runtime condition.
func MustFromContext(ctx context.Context) *Store {
	store, ok := FromContext(ctx)
	if !ok {
		panic("hosted: no Store in context; wrap the context with hosted.WithContext at the application root")
	}
	return store
}
