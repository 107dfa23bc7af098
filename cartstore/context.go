package cartstore

import "context"

type storeKey struct{}

// WithStore returns a copy of ctx in which s is the active store.
func WithStore(ctx context.Context, s *Store) context.Context {
	return context.WithValue(ctx, storeKey{}, s)
}

// Lookup returns the store bound to ctx, if any.
func Lookup(ctx context.Context) (*Store, bool) {
	s, ok := ctx.Value(storeKey{}).(*Store)
	return s, ok && s != nil
}

// FromContext returns the store bound to ctx. It panics when called outside
// a WithStore scope.
func FromContext(ctx context.Context) *Store {
	s, ok := Lookup(ctx)
	if !ok {
		panic("cartstore: FromContext must be used within a store provider scope")
	}
	return s
}
