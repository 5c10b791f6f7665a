// Package kafka содержит обработчики входящих событий Order Service:
// подтверждения оплаты от Payment Service и статусы доставки от Delivery Service.
package kafka

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/shestoi/GoFoodSaga/internal/events"
	"github.com/shestoi/GoFoodSaga/internal/order/domain"
	"github.com/shestoi/GoFoodSaga/internal/order/repository"
	"github.com/shestoi/GoFoodSaga/internal/order/service"
	platformkafka "github.com/shestoi/GoFoodSaga/platform/kafka"
)

// Handlers связывает события шины с операциями OrderService.
//
// Inbox маркер вставляется ПОСЛЕ успешной обработки: если вставить его до,
// упавший handler при повторе увидит "duplicate" и событие потеряется.
// Сами операции (MarkPaid, ApplyDeliveryStatus) идемпотентны, поэтому
// повторная доставка до вставки маркера безопасна.
type Handlers struct {
	service   *service.OrderService
	orderRepo repository.OrderRepository
	logger    *zap.Logger
}

// NewHandlers создаёт обработчики событий Order Service
func NewHandlers(service *service.OrderService, orderRepo repository.OrderRepository, logger *zap.Logger) *Handlers {
	return &Handlers{
		service:   service,
		orderRepo: orderRepo,
		logger:    logger,
	}
}

// HandlePaymentConfirmed обрабатывает payment.confirmed: заказ становится оплаченным
func (h *Handlers) HandlePaymentConfirmed(ctx context.Context, m kafka.Message) error {
	var event events.PaymentConfirmed
	if err := json.Unmarshal(m.Value, &event); err != nil {
		return &platformkafka.ParseError{Err: err}
	}

	if err := h.service.MarkPaid(ctx, event.OrderID); err != nil {
		return err
	}

	return h.markProcessed(ctx, event.EventID, event.EventType, event.OrderID, m)
}

// HandleDeliveryPickedUp обрабатывает delivery.picked_up
func (h *Handlers) HandleDeliveryPickedUp(ctx context.Context, m kafka.Message) error {
	var event events.DeliveryPickedUp
	if err := json.Unmarshal(m.Value, &event); err != nil {
		return &platformkafka.ParseError{Err: err}
	}
	return h.applyDeliveryStatus(ctx, event.Meta, event.OrderID, m, domain.StatusPickedUp)
}

// HandleDeliveryInTransit обрабатывает delivery.in_transit
func (h *Handlers) HandleDeliveryInTransit(ctx context.Context, m kafka.Message) error {
	var event events.DeliveryInTransit
	if err := json.Unmarshal(m.Value, &event); err != nil {
		return &platformkafka.ParseError{Err: err}
	}
	return h.applyDeliveryStatus(ctx, event.Meta, event.OrderID, m, domain.StatusOnTheWay)
}

// HandleDeliveryDelivered обрабатывает delivery.delivered
func (h *Handlers) HandleDeliveryDelivered(ctx context.Context, m kafka.Message) error {
	var event events.DeliveryDelivered
	if err := json.Unmarshal(m.Value, &event); err != nil {
		return &platformkafka.ParseError{Err: err}
	}
	return h.applyDeliveryStatus(ctx, event.Meta, event.OrderID, m, domain.StatusDelivered)
}

// applyDeliveryStatus — общий путь статусов доставки.
// Конфликт перехода отдаётся наверх как retryable: событие могло прийти
// раньше предшественника из другой partition, retry с backoff даёт шанс догнать
func (h *Handlers) applyDeliveryStatus(ctx context.Context, meta events.Meta, orderID string, m kafka.Message, status domain.Status) error {
	if err := h.service.ApplyDeliveryStatus(ctx, orderID, status); err != nil {
		return err
	}
	return h.markProcessed(ctx, meta.EventID, meta.EventType, orderID, m)
}

// markProcessed вставляет inbox маркер обработанного события
func (h *Handlers) markProcessed(ctx context.Context, eventID, eventType, entityID string, m kafka.Message) error {
	inserted, err := h.orderRepo.InsertInboxEvent(ctx, eventID, eventType, entityID, m.Topic, m.Partition, m.Offset)
	if err != nil {
		return err
	}
	if !inserted {
		h.logger.Info("event already processed (duplicate)",
			zap.String("event_id", eventID),
			zap.String("event_type", eventType))
	}
	return nil
}
