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

// NewRouter создаёт и настраивает HTTP роутер Delivery Service
func NewRouter(handler *Handler, jwtSecret string, readiness func() bool, logger *zap.Logger) chi.Router {
	router := chi.NewRouter()

	if logger != nil {
		router.Use(platformobservability.HTTPMiddleware("delivery", logger))
	}

	router.Route("/deliveries", func(r chi.Router) {
		r.Use(authmw.WithUser(jwtSecret))
		r.Get("/{id}", func(w http.ResponseWriter, r *http.Request) {
			handler.GetDeliveriesID(w, r, chi.URLParam(r, "id"))
		})
		// Назначение курьера доступно только admin, роль отсекается уже на роутере
		r.With(authmw.RequireRole(authctx.RoleAdmin)).Post("/{id}/assign", func(w http.ResponseWriter, r *http.Request) {
			handler.PostDeliveriesIDAssign(w, r, chi.URLParam(r, "id"))
		})
		r.Post("/{id}/pickup", func(w http.ResponseWriter, r *http.Request) {
			handler.PostDeliveriesIDPickup(w, r, chi.URLParam(r, "id"))
		})
		r.Post("/{id}/transit", func(w http.ResponseWriter, r *http.Request) {
			handler.PostDeliveriesIDTransit(w, r, chi.URLParam(r, "id"))
		})
		r.Post("/{id}/delivered", func(w http.ResponseWriter, r *http.Request) {
			handler.PostDeliveriesIDDelivered(w, r, chi.URLParam(r, "id"))
		})
		r.Post("/{id}/location", func(w http.ResponseWriter, r *http.Request) {
			handler.PostDeliveriesIDLocation(w, r, chi.URLParam(r, "id"))
		})
	})

	// Health без middleware (не требует токена)
	router.Get("/health", platformhealth.Handler(readiness))

	return router
}
