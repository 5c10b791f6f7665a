// Package httpapi содержит HTTP слой Cart Service
package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/shestoi/GoFoodSaga/internal/cart/domain"
	"github.com/shestoi/GoFoodSaga/internal/cart/service"
	"github.com/shestoi/GoFoodSaga/platform/apperr"
)

// Handler содержит HTTP-обработчики Cart Service
type Handler struct {
	cartService *service.CartService
	logger      *zap.Logger
}

// NewHandler создаёт новый HTTP handler
func NewHandler(cartService *service.CartService, logger *zap.Logger) *Handler {
	return &Handler{
		cartService: cartService,
		logger:      logger,
	}
}

// AddItemRequest — тело POST /cart/items
type AddItemRequest struct {
	RestaurantID  string `json:"restaurant_id"`
	MenuItemID    string `json:"menu_item_id"`
	Quantity      int32  `json:"quantity"`
	Customization string `json:"customization,omitempty"`
}

// UpdateItemRequest — тело PATCH /cart/items/{menuItemID}
type UpdateItemRequest struct {
	Quantity int32 `json:"quantity"`
}

// CheckoutRequest — тело POST /cart/checkout
type CheckoutRequest struct {
	DeliveryAddressID   string `json:"delivery_address_id"`
	SpecialInstructions string `json:"special_instructions,omitempty"`
}

// CartItemResponse — позиция корзины в ответе
type CartItemResponse struct {
	MenuItemID    string `json:"menu_item_id"`
	Name          string `json:"name"`
	Quantity      int32  `json:"quantity"`
	UnitPrice     string `json:"unit_price"`
	Customization string `json:"customization,omitempty"`
}

// CartResponse — корзина в ответе
type CartResponse struct {
	CustomerID   string             `json:"customer_id"`
	RestaurantID string             `json:"restaurant_id,omitempty"`
	Items        []CartItemResponse `json:"items"`
	Subtotal     string             `json:"subtotal"`
	ExpiresAt    *time.Time         `json:"expires_at,omitempty"`
}

// CheckoutResponse — созданный заказ в ответе checkout
type CheckoutResponse struct {
	OrderID               string     `json:"order_id"`
	Status                string     `json:"status"`
	Subtotal              string     `json:"subtotal"`
	Tax                   string     `json:"tax"`
	DeliveryFee           string     `json:"delivery_fee"`
	Total                 string     `json:"total"`
	EstimatedDeliveryTime *time.Time `json:"estimated_delivery_time,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// GetCart обрабатывает GET /cart
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	cart, err := h.cartService.GetCart(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toCartResponse(cart))
}

// DeleteCart обрабатывает DELETE /cart
func (h *Handler) DeleteCart(w http.ResponseWriter, r *http.Request) {
	if err := h.cartService.ClearCart(r.Context()); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PostCartItems обрабатывает POST /cart/items
func (h *Handler) PostCartItems(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, apperr.Validation("invalid JSON body: %v", err))
		return
	}

	cart, err := h.cartService.AddItem(r.Context(), service.AddItemInput{
		RestaurantID:  req.RestaurantID,
		MenuItemID:    req.MenuItemID,
		Quantity:      req.Quantity,
		Customization: req.Customization,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toCartResponse(cart))
}

// PatchCartItemsID обрабатывает PATCH /cart/items/{menuItemID}
func (h *Handler) PatchCartItemsID(w http.ResponseWriter, r *http.Request, menuItemID string) {
	var req UpdateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, apperr.Validation("invalid JSON body: %v", err))
		return
	}

	cart, err := h.cartService.UpdateQuantity(r.Context(), menuItemID, req.Quantity)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toCartResponse(cart))
}

// DeleteCartItemsID обрабатывает DELETE /cart/items/{menuItemID}
func (h *Handler) DeleteCartItemsID(w http.ResponseWriter, r *http.Request, menuItemID string) {
	cart, err := h.cartService.RemoveItem(r.Context(), menuItemID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toCartResponse(cart))
}

// PostCartCheckout обрабатывает POST /cart/checkout
func (h *Handler) PostCartCheckout(w http.ResponseWriter, r *http.Request) {
	var req CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, apperr.Validation("invalid JSON body: %v", err))
		return
	}

	order, err := h.cartService.Checkout(r.Context(), service.CheckoutInput{
		DeliveryAddressID:   req.DeliveryAddressID,
		SpecialInstructions: req.SpecialInstructions,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, CheckoutResponse{
		OrderID:               order.ID,
		Status:                order.Status,
		Subtotal:              order.Subtotal.StringFixed(2),
		Tax:                   order.Tax.StringFixed(2),
		DeliveryFee:           order.DeliveryFee.StringFixed(2),
		Total:                 order.Total.StringFixed(2),
		EstimatedDeliveryTime: order.EstimatedDeliveryTime,
	})
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

// toCartResponse преобразует доменную модель в HTTP DTO
func toCartResponse(cart domain.Cart) CartResponse {
	items := make([]CartItemResponse, 0, len(cart.Items))
	for _, item := range cart.Items {
		items = append(items, CartItemResponse{
			MenuItemID:    item.MenuItemID,
			Name:          item.Name,
			Quantity:      item.Quantity,
			UnitPrice:     item.UnitPrice.StringFixed(2),
			Customization: item.Customization,
		})
	}

	resp := CartResponse{
		CustomerID:   cart.CustomerID,
		RestaurantID: cart.RestaurantID,
		Items:        items,
		Subtotal:     cart.Subtotal().StringFixed(2),
	}
	if !cart.ExpiresAt.IsZero() {
		expiresAt := cart.ExpiresAt
		resp.ExpiresAt = &expiresAt
	}
	return resp
}
