package auth

import "context"

// User is the authenticated principal the enclosing auth service resolved for
// this request. Token issuance lives outside this repo; we only verify.
type User struct {
	ID             int64    `json:"id"`
	Email          string   `json:"email"`
	OrganizationID int64    `json:"organization_id"`
	Permissions    []string `json:"permissions,omitempty"`
}

func (u *User) HasPermission(permission string) bool {
	for _, p := range u.Permissions {
		if p == permission || p == PermissionAdmin {
			return true
		}
	}
	return false
}

type ctxKey string

const userContextKey ctxKey = "authUser"

func ContextWithUser(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

func UserFromContext(ctx context.Context) (*User, bool) {
	user, ok := ctx.Value(userContextKey).(*User)
	return user, ok
}
