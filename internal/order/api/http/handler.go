package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/shestoi/GoFoodSaga/internal/order/domain"
	"github.com/shestoi/GoFoodSaga/internal/order/service"
	"github.com/shestoi/GoFoodSaga/platform/apperr"
)

// Handler содержит HTTP-обработчики Order Service.
// Зависит от service слоя и не знает о деталях хранения
type Handler struct {
	orderService *service.OrderService
	logger       *zap.Logger
}

// NewHandler создаёт новый HTTP handler
func NewHandler(orderService *service.OrderService, logger *zap.Logger) *Handler {
	return &Handler{
		orderService: orderService,
		logger:       logger,
	}
}

// OrderItemRequest — позиция заказа в запросе на создание.
// Клиент передаёт только id и количество: цены и названия сервер берёт сам
type OrderItemRequest struct {
	MenuItemID    string `json:"menu_item_id"`
	Quantity      int32  `json:"quantity"`
	Customization string `json:"customization,omitempty"`
}

// CreateOrderRequest — тело POST /orders
type CreateOrderRequest struct {
	RestaurantID        string             `json:"restaurant_id"`
	DeliveryAddressID   string             `json:"delivery_address_id"`
	Items               []OrderItemRequest `json:"items"`
	SpecialInstructions string             `json:"special_instructions,omitempty"`
}

// OrderItemResponse — позиция заказа в ответе
type OrderItemResponse struct {
	MenuItemID    string `json:"menu_item_id"`
	Name          string `json:"name"`
	Quantity      int32  `json:"quantity"`
	UnitPrice     string `json:"unit_price"`
	Customization string `json:"customization,omitempty"`
}

// OrderResponse — представление заказа в API
type OrderResponse struct {
	ID                    string              `json:"id"`
	CustomerID            string              `json:"customer_id"`
	RestaurantID          string              `json:"restaurant_id"`
	DeliveryAddressID     string              `json:"delivery_address_id"`
	Items                 []OrderItemResponse `json:"items"`
	Subtotal              string              `json:"subtotal"`
	Tax                   string              `json:"tax"`
	DeliveryFee           string              `json:"delivery_fee"`
	Total                 string              `json:"total"`
	Status                string              `json:"status"`
	PaymentStatus         string              `json:"payment_status"`
	SpecialInstructions   string              `json:"special_instructions,omitempty"`
	CreatedAt             time.Time           `json:"created_at"`
	UpdatedAt             time.Time           `json:"updated_at"`
	EstimatedDeliveryTime *time.Time          `json:"estimated_delivery_time,omitempty"`
	ActualDeliveryTime    *time.Time          `json:"actual_delivery_time,omitempty"`
}

// PostOrders обрабатывает POST /orders - создание заказа покупателем
func (h *Handler) PostOrders(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, apperr.Validation("invalid JSON body: %v", err))
		return
	}

	items := make([]service.CreateOrderItemInput, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, service.CreateOrderItemInput{
			MenuItemID:    item.MenuItemID,
			Quantity:      item.Quantity,
			Customization: item.Customization,
		})
	}

	order, err := h.orderService.CreateOrder(r.Context(), service.CreateOrderInput{
		RestaurantID:        req.RestaurantID,
		DeliveryAddressID:   req.DeliveryAddressID,
		Items:               items,
		SpecialInstructions: req.SpecialInstructions,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, toOrderResponse(order))
}

// GetOrdersID обрабатывает GET /orders/{id}
func (h *Handler) GetOrdersID(w http.ResponseWriter, r *http.Request, id string) {
	order, err := h.orderService.GetOrder(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toOrderResponse(order))
}

// GetOrders обрабатывает GET /orders - список заказов текущего покупателя
func (h *Handler) GetOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orderService.ListOrders(r.Context(), 20)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := make([]OrderResponse, 0, len(orders))
	for _, order := range orders {
		resp = append(resp, toOrderResponse(order))
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// UpdateStatusRequest — тело PATCH /orders/{id}/status
type UpdateStatusRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// PatchOrdersIDStatus обрабатывает PATCH /orders/{id}/status
func (h *Handler) PatchOrdersIDStatus(w http.ResponseWriter, r *http.Request, id string) {
	var req UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, apperr.Validation("invalid JSON body: %v", err))
		return
	}
	if req.Status == "" {
		h.writeError(w, r, apperr.Validation("status is required"))
		return
	}

	order, err := h.orderService.UpdateStatus(r.Context(), service.UpdateStatusInput{
		OrderID: id,
		Status:  domain.Status(req.Status),
		Reason:  req.Reason,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toOrderResponse(order))
}

// InternalCreateOrderRequest — тело POST /internal/orders (вызов из Cart Service).
// Позиции без цен: ценообразование остаётся на стороне Order Service
type InternalCreateOrderRequest struct {
	CustomerID          string             `json:"customer_id"`
	RestaurantID        string             `json:"restaurant_id"`
	DeliveryAddressID   string             `json:"delivery_address_id"`
	Items               []OrderItemRequest `json:"items"`
	SpecialInstructions string             `json:"special_instructions,omitempty"`
}

// PostInternalOrders обрабатывает POST /internal/orders - создание заказа из корзины
func (h *Handler) PostInternalOrders(w http.ResponseWriter, r *http.Request) {
	var req InternalCreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, apperr.Validation("invalid JSON body: %v", err))
		return
	}

	items := make([]service.CreateOrderItemInput, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, service.CreateOrderItemInput{
			MenuItemID:    item.MenuItemID,
			Quantity:      item.Quantity,
			Customization: item.Customization,
		})
	}

	order, err := h.orderService.CreateOrderFromCart(r.Context(), service.CreateOrderFromCartInput{
		CustomerID:          req.CustomerID,
		RestaurantID:        req.RestaurantID,
		DeliveryAddressID:   req.DeliveryAddressID,
		Items:               items,
		SpecialInstructions: req.SpecialInstructions,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, toOrderResponse(order))
}

// PostInternalOrdersIDPaid обрабатывает POST /internal/orders/{id}/paid - синхронный
// вызов из Payment Service после подтверждения оплаты. Идемпотентен
func (h *Handler) PostInternalOrdersIDPaid(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.orderService.MarkPaid(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetInternalOrdersID обрабатывает GET /internal/orders/{id} - чтение заказа
// другим сервисом без пользовательского токена
func (h *Handler) GetInternalOrdersID(w http.ResponseWriter, r *http.Request, id string) {
	order, err := h.orderService.GetOrderInternal(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toOrderResponse(order))
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

// toOrderResponse преобразует доменную модель в HTTP DTO
func toOrderResponse(order domain.Order) OrderResponse {
	items := make([]OrderItemResponse, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, OrderItemResponse{
			MenuItemID:    item.MenuItemID,
			Name:          item.Name,
			Quantity:      item.Quantity,
			UnitPrice:     item.UnitPrice.StringFixed(2),
			Customization: item.Customization,
		})
	}
	return OrderResponse{
		ID:                    order.ID,
		CustomerID:            order.CustomerID,
		RestaurantID:          order.RestaurantID,
		DeliveryAddressID:     order.DeliveryAddressID,
		Items:                 items,
		Subtotal:              order.Subtotal.StringFixed(2),
		Tax:                   order.Tax.StringFixed(2),
		DeliveryFee:           order.DeliveryFee.StringFixed(2),
		Total:                 order.Total.StringFixed(2),
		Status:                string(order.Status),
		PaymentStatus:         string(order.PaymentStatus),
		SpecialInstructions:   order.SpecialInstructions,
		CreatedAt:             order.CreatedAt,
		UpdatedAt:             order.UpdatedAt,
		EstimatedDeliveryTime: order.EstimatedDeliveryTime,
		ActualDeliveryTime:    order.ActualDeliveryTime,
	}
}
