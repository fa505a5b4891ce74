package resourcecache

import "context"

// refreshMarkerKey is the context key for the refresh marker. An unexported
// struct type guarantees no collision with keys from other packages.
type refreshMarkerKey struct{}

// WithRefresh marks ctx so that Get calls made with it upgrade to a forced
// refresh. It lets a caller several layers above the resource request fresh
// data without threading resolve options through intermediate signatures.
//
// Example:
//
//	ctx := resourcecache.WithRefresh(ctx)
//	user, err := users.Get(ctx, "user-123") // fetches even when fresh
func WithRefresh(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, refreshMarkerKey{}, true)
}

// RefreshRequested reports whether ctx carries the WithRefresh marker.
func RefreshRequested(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	marked, ok := ctx.Value(refreshMarkerKey{}).(bool)
	return ok && marked
}
