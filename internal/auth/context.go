package auth

import (
	"context"
	"strings"
)

// Role names recognised across the service.
const (
	RoleAdmin      = "admin"
	RoleSuperadmin = "superadmin"
)

type operatorContextKey struct{}

type operatorInfo struct {
	id    string
	roles []string
}

// ContextWithOperator attaches the authenticated operator to the context.
func ContextWithOperator(ctx context.Context, operatorID string, roles []string) context.Context {
	return context.WithValue(ctx, operatorContextKey{}, &operatorInfo{
		id:    operatorID,
		roles: dedupeRoles(roles),
	})
}

// OperatorFromContext extracts the authenticated operator id.
func OperatorFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	v, ok := ctx.Value(operatorContextKey{}).(*operatorInfo)
	if !ok || v == nil || v.id == "" {
		return "", false
	}
	return v.id, true
}

// RolesFromContext returns the operator's deduplicated roles.
func RolesFromContext(ctx context.Context) []string {
	if ctx == nil {
		return nil
	}
	v, ok := ctx.Value(operatorContextKey{}).(*operatorInfo)
	if !ok || v == nil {
		return nil
	}
	return v.roles
}

// HasRole reports whether the operator in ctx carries the role.
func HasRole(ctx context.Context, role string) bool {
	role = strings.TrimSpace(strings.ToLower(role))
	for _, r := range RolesFromContext(ctx) {
		if r == role {
			return true
		}
	}
	return false
}
