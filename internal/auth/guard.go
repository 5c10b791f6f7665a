package auth

import (
	"context"

	"github.com/shestoi/GoFoodSaga/internal/auth/authctx"
	"github.com/shestoi/GoFoodSaga/platform/apperr"
)

// RequireOwner — единая проверка владения ресурсом для всех сервисов.
// Возвращает UnauthorizedError, если вызывающий не владелец и не admin.
// Каждый handler использует этот guard вместо собственной проверки.
func RequireOwner(ctx context.Context, ownerID string) error {
	user, ok := authctx.UserFromContext(ctx)
	if !ok {
		return apperr.Unauthorized("authentication required")
	}
	if user.Role == authctx.RoleAdmin {
		return nil
	}
	if user.ID != ownerID {
		return apperr.Unauthorized("caller %s does not own the resource", user.ID)
	}
	return nil
}

// Caller возвращает аутентифицированного вызывающего или UnauthorizedError
func Caller(ctx context.Context) (authctx.User, error) {
	user, ok := authctx.UserFromContext(ctx)
	if !ok {
		return authctx.User{}, apperr.Unauthorized("authentication required")
	}
	return user, nil
}
