package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	authmw "github.com/shestoi/GoFoodSaga/internal/auth/middleware"
	platformhealth "github.com/shestoi/GoFoodSaga/platform/health/http"
	platformobservability "github.com/shestoi/GoFoodSaga/platform/observability"
)

// NewRouter создаёт и настраивает HTTP роутер Cart Service.
// Все операции с корзиной требуют JWT пользователя, /health открыт для проб
func NewRouter(handler *Handler, jwtSecret string, readiness func() bool, logger *zap.Logger) chi.Router {
	router := chi.NewRouter()

	if logger != nil {
		router.Use(platformobservability.HTTPMiddleware("cart", logger))
	}

	router.Route("/cart", func(r chi.Router) {
		r.Use(authmw.WithUser(jwtSecret))
		r.Get("/", handler.GetCart)
		r.Delete("/", handler.DeleteCart)
		r.Post("/items", handler.PostCartItems)
		r.Patch("/items/{menuItemID}", func(w http.ResponseWriter, r *http.Request) {
			handler.PatchCartItemsID(w, r, chi.URLParam(r, "menuItemID"))
		})
		r.Delete("/items/{menuItemID}", func(w http.ResponseWriter, r *http.Request) {
			handler.DeleteCartItemsID(w, r, chi.URLParam(r, "menuItemID"))
		})
		r.Post("/checkout", handler.PostCartCheckout)
	})

	// Health без middleware (не требует токена)
	router.Get("/health", platformhealth.Handler(readiness))

	return router
}
