package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/shestoi/GoFoodSaga/internal/auth/authctx"
	authmw "github.com/shestoi/GoFoodSaga/internal/auth/middleware"
	platformhealth "github.com/shestoi/GoFoodSaga/platform/health/http"
	platformobservability "github.com/shestoi/GoFoodSaga/platform/observability"
)

// NewRouter создаёт и настраивает HTTP роутер Payment Service
func NewRouter(handler *Handler, jwtSecret string, readiness func() bool, logger *zap.Logger) chi.Router {
	router := chi.NewRouter()

	if logger != nil {
		router.Use(platformobservability.HTTPMiddleware("payment", logger))
	}

	router.Route("/payments", func(r chi.Router) {
		r.Use(authmw.WithUser(jwtSecret))
		r.Post("/", handler.PostPayments)
		r.Get("/{id}", func(w http.ResponseWriter, r *http.Request) {
			handler.GetPaymentsID(w, r, chi.URLParam(r, "id"))
		})
		r.Post("/{id}/confirm", func(w http.ResponseWriter, r *http.Request) {
			handler.PostPaymentsIDConfirm(w, r, chi.URLParam(r, "id"))
		})
		r.Post("/{id}/cancel", func(w http.ResponseWriter, r *http.Request) {
			handler.PostPaymentsIDCancel(w, r, chi.URLParam(r, "id"))
		})
		r.Post("/{id}/fail", func(w http.ResponseWriter, r *http.Request) {
			handler.PostPaymentsIDFail(w, r, chi.URLParam(r, "id"))
		})
		// Ручной возврат доступен только admin, роль отсекается уже на роутере
		r.With(authmw.RequireRole(authctx.RoleAdmin)).Post("/{id}/refund", func(w http.ResponseWriter, r *http.Request) {
			handler.PostPaymentsIDRefund(w, r, chi.URLParam(r, "id"))
		})
	})

	// Health без middleware (не требует токена)
	router.Get("/health", platformhealth.Handler(readiness))

	return router
}
