package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/shestoi/GoFoodSaga/internal/delivery/domain"
	"github.com/shestoi/GoFoodSaga/internal/delivery/service"
	"github.com/shestoi/GoFoodSaga/platform/apperr"
)

// Handler содержит HTTP-обработчики Delivery Service
type Handler struct {
	deliveryService *service.DeliveryService
	logger          *zap.Logger
}

// NewHandler создаёт новый HTTP handler
func NewHandler(deliveryService *service.DeliveryService, logger *zap.Logger) *Handler {
	return &Handler{
		deliveryService: deliveryService,
		logger:          logger,
	}
}

// AssignDriverRequest — тело POST /deliveries/{id}/assign
type AssignDriverRequest struct {
	DriverID string `json:"driver_id"`
}

// UpdateLocationRequest — тело POST /deliveries/{id}/location
type UpdateLocationRequest struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// LocationResponse — позиция водителя в API
type LocationResponse struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DeliveryResponse — представление доставки в API
type DeliveryResponse struct {
	ID                string            `json:"id"`
	OrderID           string            `json:"order_id"`
	CustomerID        string            `json:"customer_id"`
	RestaurantID      string            `json:"restaurant_id"`
	DeliveryAddressID string            `json:"delivery_address_id"`
	DriverID          *string           `json:"driver_id,omitempty"`
	DriverName        string            `json:"driver_name,omitempty"`
	Status            string            `json:"status"`
	Location          *LocationResponse `json:"location,omitempty"`
	PickupTime        *time.Time        `json:"pickup_time,omitempty"`
	DeliveryTime      *time.Time        `json:"delivery_time,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// GetDeliveriesID обрабатывает GET /deliveries/{id}
func (h *Handler) GetDeliveriesID(w http.ResponseWriter, r *http.Request, id string) {
	delivery, err := h.deliveryService.GetDelivery(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toDeliveryResponse(delivery))
}

// PostDeliveriesIDAssign обрабатывает POST /deliveries/{id}/assign (admin)
func (h *Handler) PostDeliveriesIDAssign(w http.ResponseWriter, r *http.Request, id string) {
	var req AssignDriverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, apperr.Validation("invalid JSON body: %v", err))
		return
	}

	delivery, err := h.deliveryService.AssignDriver(r.Context(), id, req.DriverID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toDeliveryResponse(delivery))
}

// PostDeliveriesIDPickup обрабатывает POST /deliveries/{id}/pickup (водитель)
func (h *Handler) PostDeliveriesIDPickup(w http.ResponseWriter, r *http.Request, id string) {
	delivery, err := h.deliveryService.ConfirmPickup(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toDeliveryResponse(delivery))
}

// PostDeliveriesIDTransit обрабатывает POST /deliveries/{id}/transit (водитель)
func (h *Handler) PostDeliveriesIDTransit(w http.ResponseWriter, r *http.Request, id string) {
	delivery, err := h.deliveryService.StartTransit(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toDeliveryResponse(delivery))
}

// PostDeliveriesIDDelivered обрабатывает POST /deliveries/{id}/delivered (водитель)
func (h *Handler) PostDeliveriesIDDelivered(w http.ResponseWriter, r *http.Request, id string) {
	delivery, err := h.deliveryService.ConfirmDelivery(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toDeliveryResponse(delivery))
}

// PostDeliveriesIDLocation обрабатывает POST /deliveries/{id}/location (водитель)
func (h *Handler) PostDeliveriesIDLocation(w http.ResponseWriter, r *http.Request, id string) {
	var req UpdateLocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, apperr.Validation("invalid JSON body: %v", err))
		return
	}

	delivery, err := h.deliveryService.UpdateLocation(r.Context(), service.UpdateLocationInput{
		DeliveryID: id,
		Latitude:   req.Latitude,
		Longitude:  req.Longitude,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toDeliveryResponse(delivery))
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

// toDeliveryResponse преобразует доменную модель в HTTP DTO
func toDeliveryResponse(delivery domain.Delivery) DeliveryResponse {
	resp := DeliveryResponse{
		ID:                delivery.ID,
		OrderID:           delivery.OrderID,
		CustomerID:        delivery.CustomerID,
		RestaurantID:      delivery.RestaurantID,
		DeliveryAddressID: delivery.DeliveryAddressID,
		DriverID:          delivery.DriverID,
		DriverName:        delivery.DriverName,
		Status:            string(delivery.Status),
		PickupTime:        delivery.PickupTime,
		DeliveryTime:      delivery.DeliveryTime,
		CreatedAt:         delivery.CreatedAt,
		UpdatedAt:         delivery.UpdatedAt,
	}
	if delivery.Location != nil {
		resp.Location = &LocationResponse{
			Latitude:  delivery.Location.Latitude,
			Longitude: delivery.Location.Longitude,
			UpdatedAt: delivery.Location.UpdatedAt,
		}
	}
	return resp
}
