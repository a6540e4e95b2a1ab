/*Package access provides utilities for access control
 */
package access

import (
	"context"
	"net/http"
)

// contextKey is the type for context keys. Go linter does not like plain strings
type contextKey string

// the predefined context key
const (
	contextKeyRole contextKey = "_role_"
)

// ContextWithRole returns a new context with the caller's role added to it
func ContextWithRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, contextKeyRole, role)
}

// RoleFromContext retrieves the caller's role from the context; it returns
// the empty string when no role was established.
func RoleFromContext(ctx context.Context) string {
	role, ok := ctx.Value(contextKeyRole).(string)
	if ok {
		return role
	}
	return ""
}

// RoleFromRequest retrieves the caller's role from the request context. This
// is the default role resolver of the permission gate.
func RoleFromRequest(r *http.Request) string {
	return RoleFromContext(r.Context())
}
