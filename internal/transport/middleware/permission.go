package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/frahmantamala/payroll-engine/internal/auth"
)

// RequirePermissions creates a middleware that checks if user has any of the
// required permissions. Admin implies all.
func RequirePermissions(permissions ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := auth.UserFromContext(r.Context())
			if !ok || user == nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			hasPermission := false
			for _, requiredPerm := range permissions {
				if user.HasPermission(requiredPerm) {
					hasPermission = true
					break
				}
			}

			if !hasPermission {
				slog.Warn("Access denied: user lacks required permissions",
					"user_id", user.ID,
					"required_permissions", permissions,
					"user_permissions", user.Permissions)
				http.Error(w, "Forbidden: insufficient permissions", http.StatusForbidden)
				return
			}

			// Add permissions to context for service layer use
			ctx := context.WithValue(r.Context(), "user_permissions", user.Permissions)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// HasApproverPermissions checks if user may approve or process payroll runs.
func HasApproverPermissions(user *auth.User) bool {
	approverPerms := []string{auth.PermissionApprovePayroll, auth.PermissionProcessPayroll, auth.PermissionAdmin}
	for _, perm := range approverPerms {
		if user.HasPermission(perm) {
			return true
		}
	}
	return false
}
