package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/shestoi/GoFoodSaga/internal/notification/domain"
	"github.com/shestoi/GoFoodSaga/internal/notification/service"
	"github.com/shestoi/GoFoodSaga/platform/apperr"
)

// Handler содержит HTTP-обработчики Notification Service
type Handler struct {
	notificationService *service.NotificationService
	logger              *zap.Logger
}

// NewHandler создаёт новый HTTP handler
func NewHandler(notificationService *service.NotificationService, logger *zap.Logger) *Handler {
	return &Handler{
		notificationService: notificationService,
		logger:              logger,
	}
}

// NotificationResponse — представление уведомления в API
type NotificationResponse struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	OrderID   string    `json:"order_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// GetNotifications обрабатывает GET /notifications?limit=N
func (h *Handler) GetNotifications(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			h.writeError(w, r, apperr.Validation("limit must be a positive integer"))
			return
		}
		limit = parsed
	}

	notifications, err := h.notificationService.ListNotifications(r.Context(), limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	response := make([]NotificationResponse, 0, len(notifications))
	for _, n := range notifications {
		response = append(response, toNotificationResponse(n))
	}
	h.writeJSON(w, http.StatusOK, response)
}

// errorResponse — унифицированный формат ошибки API
type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err))
	}
	h.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("failed to encode response", zap.Error(err))
	}
}

// toNotificationResponse преобразует доменную модель в HTTP DTO
func toNotificationResponse(n domain.Notification) NotificationResponse {
	return NotificationResponse{
		ID:        n.ID,
		Type:      n.Type,
		Title:     n.Title,
		Message:   n.Message,
		OrderID:   n.OrderID,
		CreatedAt: n.CreatedAt,
	}
}
