// Package kafka содержит обработчики входящих событий Payment Service.
package kafka

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/shestoi/GoFoodSaga/internal/events"
	"github.com/shestoi/GoFoodSaga/internal/payment/repository"
	"github.com/shestoi/GoFoodSaga/internal/payment/service"
	platformkafka "github.com/shestoi/GoFoodSaga/platform/kafka"
)

// Handlers связывает события шины с операциями PaymentService
type Handlers struct {
	service     *service.PaymentService
	paymentRepo repository.PaymentRepository
	logger      *zap.Logger
}

// NewHandlers создаёт обработчики событий Payment Service
func NewHandlers(service *service.PaymentService, paymentRepo repository.PaymentRepository, logger *zap.Logger) *Handlers {
	return &Handlers{
		service:     service,
		paymentRepo: paymentRepo,
		logger:      logger,
	}
}

// HandleOrderCancelled обрабатывает order.cancelled: компенсация саги.
// Подтверждённый платёж отменённого заказа возвращается (REFUNDED +
// payment.refunded). RefundByOrder идемпотентен, inbox маркер вставляется
// после успешной обработки
func (h *Handlers) HandleOrderCancelled(ctx context.Context, m kafka.Message) error {
	var event events.OrderCancelled
	if err := json.Unmarshal(m.Value, &event); err != nil {
		return &platformkafka.ParseError{Err: err}
	}

	if err := h.service.RefundByOrder(ctx, event.OrderID); err != nil {
		return err
	}

	inserted, err := h.paymentRepo.InsertInboxEvent(ctx, event.EventID, event.EventType, event.OrderID, m.Topic, m.Partition, m.Offset)
	if err != nil {
		return err
	}
	if !inserted {
		h.logger.Info("event already processed (duplicate)",
			zap.String("event_id", event.EventID),
			zap.String("event_type", event.EventType))
	}
	return nil
}
