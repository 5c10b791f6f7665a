package authctx

import (
	"context"
)

// Role представляет роль вызывающего
type Role string

const (
	RoleCustomer   Role = "customer"
	RoleRestaurant Role = "restaurant"
	RoleDriver     Role = "driver"
	RoleAdmin      Role = "admin"
)

// User представляет аутентифицированного вызывающего
type User struct {
	ID   string
	Role Role
}

type ctxKeyUser struct{}

var userKey = ctxKeyUser{}

// WithUser сохраняет пользователя в контексте (используется HTTP middleware)
func WithUser(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

// UserFromContext возвращает пользователя из контекста, если он был установлен
func UserFromContext(ctx context.Context) (User, bool) {
	u, ok := ctx.Value(userKey).(User)
	return u, ok
}
