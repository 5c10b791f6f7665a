package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/shestoi/GoFoodSaga/internal/payment/domain"
	"github.com/shestoi/GoFoodSaga/internal/payment/service"
	"github.com/shestoi/GoFoodSaga/platform/apperr"
)

// Handler содержит HTTP-обработчики Payment Service
type Handler struct {
	paymentService *service.PaymentService
	logger         *zap.Logger
}

// NewHandler создаёт новый HTTP handler
func NewHandler(paymentService *service.PaymentService, logger *zap.Logger) *Handler {
	return &Handler{
		paymentService: paymentService,
		logger:         logger,
	}
}

// CreatePaymentRequest — тело POST /payments
type CreatePaymentRequest struct {
	OrderID string `json:"order_id"`
	Method  string `json:"method"`
}

// FailPaymentRequest — тело POST /payments/{id}/fail
type FailPaymentRequest struct {
	Reason string `json:"reason"`
}

// PaymentResponse — представление платежа в API
type PaymentResponse struct {
	ID        string    `json:"id"`
	OrderID   string    `json:"order_id"`
	UserID    string    `json:"user_id"`
	Amount    string    `json:"amount"`
	Method    string    `json:"method"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PostPayments обрабатывает POST /payments
func (h *Handler) PostPayments(w http.ResponseWriter, r *http.Request) {
	var req CreatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, apperr.Validation("invalid JSON body: %v", err))
		return
	}

	payment, err := h.paymentService.CreatePayment(r.Context(), service.CreatePaymentInput{
		OrderID: req.OrderID,
		Method:  domain.Method(req.Method),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, toPaymentResponse(payment))
}

// GetPaymentsID обрабатывает GET /payments/{id}
func (h *Handler) GetPaymentsID(w http.ResponseWriter, r *http.Request, id string) {
	payment, err := h.paymentService.GetPayment(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toPaymentResponse(payment))
}

// PostPaymentsIDConfirm обрабатывает POST /payments/{id}/confirm
func (h *Handler) PostPaymentsIDConfirm(w http.ResponseWriter, r *http.Request, id string) {
	payment, err := h.paymentService.ConfirmPayment(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toPaymentResponse(payment))
}

// PostPaymentsIDCancel обрабатывает POST /payments/{id}/cancel
func (h *Handler) PostPaymentsIDCancel(w http.ResponseWriter, r *http.Request, id string) {
	payment, err := h.paymentService.CancelPayment(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toPaymentResponse(payment))
}

// PostPaymentsIDFail обрабатывает POST /payments/{id}/fail
func (h *Handler) PostPaymentsIDFail(w http.ResponseWriter, r *http.Request, id string) {
	var req FailPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, apperr.Validation("invalid JSON body: %v", err))
		return
	}

	payment, err := h.paymentService.FailPayment(r.Context(), service.FailPaymentInput{
		PaymentID: id,
		Reason:    req.Reason,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toPaymentResponse(payment))
}

// PostPaymentsIDRefund обрабатывает POST /payments/{id}/refund (admin)
func (h *Handler) PostPaymentsIDRefund(w http.ResponseWriter, r *http.Request, id string) {
	payment, err := h.paymentService.RefundPayment(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toPaymentResponse(payment))
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

// toPaymentResponse преобразует доменную модель в HTTP DTO
func toPaymentResponse(payment domain.Payment) PaymentResponse {
	return PaymentResponse{
		ID:        payment.ID,
		OrderID:   payment.OrderID,
		UserID:    payment.UserID,
		Amount:    payment.Amount.StringFixed(2),
		Method:    string(payment.Method),
		Status:    string(payment.Status),
		CreatedAt: payment.CreatedAt,
		UpdatedAt: payment.UpdatedAt,
	}
}
