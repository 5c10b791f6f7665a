package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shestoi/GoFoodSaga/internal/auth/authctx"
	authmw "github.com/shestoi/GoFoodSaga/internal/auth/middleware"
)

func TestRequireRole(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	protected := authmw.RequireRole(authctx.RoleAdmin)(next)

	requestAs := func(user *authctx.User) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/deliveries/d-1/assign", nil)
		if user != nil {
			req = req.WithContext(authctx.WithUser(req.Context(), *user))
		}
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)
		return rec
	}

	t.Run("admin passes through", func(t *testing.T) {
		rec := requestAs(&authctx.User{ID: "root", Role: authctx.RoleAdmin})
		require.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("customer is forbidden", func(t *testing.T) {
		rec := requestAs(&authctx.User{ID: "user-1", Role: authctx.RoleCustomer})
		require.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("missing user is unauthorized", func(t *testing.T) {
		rec := requestAs(nil)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
