// Package kafka содержит обработчики входящих событий Delivery Service.
package kafka

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/shestoi/GoFoodSaga/internal/delivery/repository"
	"github.com/shestoi/GoFoodSaga/internal/delivery/service"
	"github.com/shestoi/GoFoodSaga/internal/events"
	"github.com/shestoi/GoFoodSaga/platform/apperr"
	platformkafka "github.com/shestoi/GoFoodSaga/platform/kafka"
)

// Handlers связывает события шины с операциями DeliveryService
type Handlers struct {
	service      *service.DeliveryService
	deliveryRepo repository.DeliveryRepository
	logger       *zap.Logger
}

// NewHandlers создаёт обработчики событий Delivery Service
func NewHandlers(service *service.DeliveryService, deliveryRepo repository.DeliveryRepository, logger *zap.Logger) *Handlers {
	return &Handlers{
		service:      service,
		deliveryRepo: deliveryRepo,
		logger:       logger,
	}
}

// HandleOrderReady обрабатывает order.ready: собранный заказ получает
// доставку в статусе PENDING. Повторную доставку того же заказа ловит
// unique constraint, Conflict трактуется как уже сделанная работа;
// inbox маркер вставляется после успешной обработки
func (h *Handlers) HandleOrderReady(ctx context.Context, m kafka.Message) error {
	var event events.OrderReady
	if err := json.Unmarshal(m.Value, &event); err != nil {
		return &platformkafka.ParseError{Err: err}
	}

	_, err := h.service.CreateDelivery(ctx, service.CreateDeliveryInput{
		OrderID:           event.OrderID,
		CustomerID:        event.CustomerID,
		RestaurantID:      event.RestaurantID,
		DeliveryAddressID: event.DeliveryAddressID,
	})
	if err != nil {
		if apperr.IsConflict(err) {
			h.logger.Info("delivery already exists for order",
				zap.String("order_id", event.OrderID))
		} else {
			return err
		}
	}

	return h.markProcessed(ctx, event.Meta, event.OrderID, m)
}

// HandleOrderCancelled обрабатывает order.cancelled: ещё не завершённая
// доставка отменённого заказа отменяется. CancelByOrder идемпотентен
func (h *Handlers) HandleOrderCancelled(ctx context.Context, m kafka.Message) error {
	var event events.OrderCancelled
	if err := json.Unmarshal(m.Value, &event); err != nil {
		return &platformkafka.ParseError{Err: err}
	}

	if err := h.service.CancelByOrder(ctx, event.OrderID); err != nil {
		return err
	}

	return h.markProcessed(ctx, event.Meta, event.OrderID, m)
}

// markProcessed вставляет inbox маркер обработанного события
func (h *Handlers) markProcessed(ctx context.Context, meta events.Meta, entityID string, m kafka.Message) error {
	inserted, err := h.deliveryRepo.InsertInboxEvent(ctx, meta.EventID, meta.EventType, entityID, m.Topic, m.Partition, m.Offset)
	if err != nil {
		return err
	}
	if !inserted {
		h.logger.Info("event already processed (duplicate)",
			zap.String("event_id", meta.EventID),
			zap.String("event_type", meta.EventType))
	}
	return nil
}
