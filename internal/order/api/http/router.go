package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	authmw "github.com/shestoi/GoFoodSaga/internal/auth/middleware"
	platformhealth "github.com/shestoi/GoFoodSaga/platform/health/http"
	platformobservability "github.com/shestoi/GoFoodSaga/platform/observability"
)

// NewRouter создаёт и настраивает HTTP роутер Order Service.
// /orders* требуют JWT пользователя, /internal/* — internal token
// (доступны только другим сервисам), /health открыт для проб
func NewRouter(handler *Handler, jwtSecret, internalToken string, readiness func() bool, logger *zap.Logger) chi.Router {
	router := chi.NewRouter()

	if logger != nil {
		router.Use(platformobservability.HTTPMiddleware("order", logger))
	}

	router.Route("/orders", func(r chi.Router) {
		r.Use(authmw.WithUser(jwtSecret))
		r.Post("/", handler.PostOrders)
		r.Get("/", handler.GetOrders)
		r.Get("/{id}", func(w http.ResponseWriter, r *http.Request) {
			handler.GetOrdersID(w, r, chi.URLParam(r, "id"))
		})
		r.Patch("/{id}/status", func(w http.ResponseWriter, r *http.Request) {
			handler.PatchOrdersIDStatus(w, r, chi.URLParam(r, "id"))
		})
	})

	router.Route("/internal/orders", func(r chi.Router) {
		r.Use(authmw.WithInternalToken(internalToken))
		r.Post("/", handler.PostInternalOrders)
		r.Get("/{id}", func(w http.ResponseWriter, r *http.Request) {
			handler.GetInternalOrdersID(w, r, chi.URLParam(r, "id"))
		})
		r.Post("/{id}/paid", func(w http.ResponseWriter, r *http.Request) {
			handler.PostInternalOrdersIDPaid(w, r, chi.URLParam(r, "id"))
		})
	})

	// Health без middleware (не требует токена)
	router.Get("/health", platformhealth.Handler(readiness))

	return router
}
