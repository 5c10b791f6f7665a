package httpapi

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	authmw "github.com/shestoi/GoFoodSaga/internal/auth/middleware"
	platformhealth "github.com/shestoi/GoFoodSaga/platform/health/http"
	platformobservability "github.com/shestoi/GoFoodSaga/platform/observability"
)

// NewRouter создаёт и настраивает HTTP роутер Notification Service
func NewRouter(handler *Handler, jwtSecret string, readiness func() bool, logger *zap.Logger) chi.Router {
	router := chi.NewRouter()

	if logger != nil {
		router.Use(platformobservability.HTTPMiddleware("notification", logger))
	}

	router.Route("/notifications", func(r chi.Router) {
		r.Use(authmw.WithUser(jwtSecret))
		r.Get("/", handler.GetNotifications)
	})

	// Health без middleware (не требует токена)
	router.Get("/health", platformhealth.Handler(readiness))

	return router
}
