package middleware

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/shestoi/GoFoodSaga/internal/auth/authctx"
)

// WithUser — HTTP middleware: читает Authorization: Bearer <jwt>, проверяет подпись (HS256),
// извлекает claims sub (user id) и role и кладёт пользователя в context.
// При отсутствии или невалидности токена возвращает 401.
// Выпуск токенов — зона ответственности IAM сервиса, здесь только проверка.
func WithUser(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				http.Error(w, "authorization token is required", http.StatusUnauthorized)
				return
			}
			tokenString := strings.TrimPrefix(authHeader, "Bearer ")

			token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
				// Принимаем только HMAC: токен с alg=none или RS256 от чужого issuer не пройдёт
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				http.Error(w, "invalid token claims", http.StatusUnauthorized)
				return
			}

			sub, _ := claims["sub"].(string)
			role, _ := claims["role"].(string)
			if sub == "" {
				http.Error(w, "token subject is required", http.StatusUnauthorized)
				return
			}
			if role == "" {
				role = string(authctx.RoleCustomer)
			}

			ctx := authctx.WithUser(r.Context(), authctx.User{ID: sub, Role: authctx.Role(role)})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole — HTTP middleware: пропускает только вызывающих с одной из указанных ролей.
// Должен стоять после WithUser. Возвращает 403 при несовпадении роли.
func RequireRole(roles ...authctx.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := authctx.UserFromContext(r.Context())
			if !ok {
				http.Error(w, "authentication required", http.StatusUnauthorized)
				return
			}
			for _, role := range roles {
				if user.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			http.Error(w, "insufficient role", http.StatusForbidden)
		})
	}
}

// WithInternalToken — HTTP middleware для internal-only endpoints (создание заказа из корзины,
// отметка оплаты). Запрос обязан нести заголовок x-internal-token с общим сервисным секретом —
// endpoint недостижим для внешних вызывающих, только для саг соседних сервисов.
func WithInternalToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get("x-internal-token")
			if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				http.Error(w, "internal endpoint", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
