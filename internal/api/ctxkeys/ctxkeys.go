// Package ctxkeys holds the typed context keys shared by middleware and handlers.
// It is a leaf package so api and api/handlers can both import it.
package ctxkeys

import "context"

// Key is the named type for all API context keys, so string keys set elsewhere
// never collide with ours.
type Key string

const (
	// WorkspaceID is the workspace the authenticated client acts in.
	WorkspaceID Key = "workspace_id"

	// ClientID is the authenticated API client.
	ClientID Key = "client_id"
)

// WithValue adds a ctxkeys.Key value to the context.
func WithValue(ctx context.Context, key Key, value string) context.Context {
	return context.WithValue(ctx, key, value)
}

// Value returns the string stored under key, or "" when absent.
func Value(ctx context.Context, key Key) string {
	v, _ := ctx.Value(key).(string)
	return v
}
