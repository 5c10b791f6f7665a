// Package kafka содержит обработчики входящих событий Notification Service.
// Каждый топик каталога превращается в строку ленты уведомлений покупателя.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/shestoi/GoFoodSaga/internal/events"
	"github.com/shestoi/GoFoodSaga/internal/notification/repository"
	"github.com/shestoi/GoFoodSaga/internal/notification/service"
	platformkafka "github.com/shestoi/GoFoodSaga/platform/kafka"
)

// Handlers связывает события шины с операциями NotificationService
type Handlers struct {
	service *service.NotificationService
	logger  *zap.Logger
}

// NewHandlers создаёт обработчики событий Notification Service
func NewHandlers(service *service.NotificationService, logger *zap.Logger) *Handlers {
	return &Handlers{
		service: service,
		logger:  logger,
	}
}

// HandleOrderCreated обрабатывает order.created
func (h *Handlers) HandleOrderCreated(ctx context.Context, m kafka.Message) error {
	var event events.OrderCreated
	if err := json.Unmarshal(m.Value, &event); err != nil {
		return &platformkafka.ParseError{Err: err}
	}
	return h.service.Record(ctx, service.RecordInput{
		UserID:  event.CustomerID,
		Type:    event.EventType,
		Title:   "Order placed",
		Message: fmt.Sprintf("Your order has been placed, total %s.", event.Total),
		OrderID: event.OrderID,
		Marker:  marker(event.Meta, event.OrderID, m),
	})
}

// HandleOrderConfirmed обрабатывает order.confirmed
func (h *Handlers) HandleOrderConfirmed(ctx context.Context, m kafka.Message) error {
	var event events.OrderConfirmed
	if err := json.Unmarshal(m.Value, &event); err != nil {
		return &platformkafka.ParseError{Err: err}
	}
	return h.service.Record(ctx, service.RecordInput{
		UserID:  event.CustomerID,
		Type:    event.EventType,
		Title:   "Order confirmed",
		Message: "Your order is confirmed and the restaurant is preparing it.",
		OrderID: event.OrderID,
		Marker:  marker(event.Meta, event.OrderID, m),
	})
}

// HandleOrderReady обрабатывает order.ready
func (h *Handlers) HandleOrderReady(ctx context.Context, m kafka.Message) error {
	var event events.OrderReady
	if err := json.Unmarshal(m.Value, &event); err != nil {
		return &platformkafka.ParseError{Err: err}
	}
	return h.service.Record(ctx, service.RecordInput{
		UserID:  event.CustomerID,
		Type:    event.EventType,
		Title:   "Order ready",
		Message: "Your order is packed and waiting for a driver.",
		OrderID: event.OrderID,
		Marker:  marker(event.Meta, event.OrderID, m),
	})
}

// HandleOrderCancelled обрабатывает order.cancelled
func (h *Handlers) HandleOrderCancelled(ctx context.Context, m kafka.Message) error {
	var event events.OrderCancelled
	if err := json.Unmarshal(m.Value, &event); err != nil {
		return &platformkafka.ParseError{Err: err}
	}
	message := "Your order has been cancelled."
	if event.Reason != "" {
		message = fmt.Sprintf("Your order has been cancelled: %s.", event.Reason)
	}
	if event.Refunded {
		message += " The payment will be refunded."
	}
	return h.service.Record(ctx, service.RecordInput{
		UserID:  event.CustomerID,
		Type:    event.EventType,
		Title:   "Order cancelled",
		Message: message,
		OrderID: event.OrderID,
		Marker:  marker(event.Meta, event.OrderID, m),
	})
}

// HandlePaymentConfirmed обрабатывает payment.confirmed
func (h *Handlers) HandlePaymentConfirmed(ctx context.Context, m kafka.Message) error {
	var event events.PaymentConfirmed
	if err := json.Unmarshal(m.Value, &event); err != nil {
		return &platformkafka.ParseError{Err: err}
	}
	return h.service.Record(ctx, service.RecordInput{
		UserID:  event.CustomerID,
		Type:    event.EventType,
		Title:   "Payment confirmed",
		Message: fmt.Sprintf("Payment of %s accepted.", event.Amount),
		OrderID: event.OrderID,
		Marker:  marker(event.Meta, event.OrderID, m),
	})
}

// HandlePaymentFailed обрабатывает payment.failed
func (h *Handlers) HandlePaymentFailed(ctx context.Context, m kafka.Message) error {
	var event events.PaymentFailed
	if err := json.Unmarshal(m.Value, &event); err != nil {
		return &platformkafka.ParseError{Err: err}
	}
	message := "Payment failed, please try again."
	if event.Reason != "" {
		message = fmt.Sprintf("Payment failed: %s.", event.Reason)
	}
	return h.service.Record(ctx, service.RecordInput{
		UserID:  event.CustomerID,
		Type:    event.EventType,
		Title:   "Payment failed",
		Message: message,
		OrderID: event.OrderID,
		Marker:  marker(event.Meta, event.OrderID, m),
	})
}

// HandlePaymentRefunded обрабатывает payment.refunded
func (h *Handlers) HandlePaymentRefunded(ctx context.Context, m kafka.Message) error {
	var event events.PaymentRefunded
	if err := json.Unmarshal(m.Value, &event); err != nil {
		return &platformkafka.ParseError{Err: err}
	}
	return h.service.Record(ctx, service.RecordInput{
		UserID:  event.CustomerID,
		Type:    event.EventType,
		Title:   "Payment refunded",
		Message: fmt.Sprintf("Refund of %s is on its way.", event.Amount),
		OrderID: event.OrderID,
		Marker:  marker(event.Meta, event.OrderID, m),
	})
}

// HandleDeliveryAssigned обрабатывает delivery.assigned
func (h *Handlers) HandleDeliveryAssigned(ctx context.Context, m kafka.Message) error {
	var event events.DeliveryAssigned
	if err := json.Unmarshal(m.Value, &event); err != nil {
		return &platformkafka.ParseError{Err: err}
	}
	return h.service.Record(ctx, service.RecordInput{
		UserID:  event.CustomerID,
		Type:    event.EventType,
		Title:   "Driver assigned",
		Message: fmt.Sprintf("%s will deliver your order.", event.DriverName),
		OrderID: event.OrderID,
		Marker:  marker(event.Meta, event.OrderID, m),
	})
}

// HandleDeliveryPickedUp обрабатывает delivery.picked_up
func (h *Handlers) HandleDeliveryPickedUp(ctx context.Context, m kafka.Message) error {
	var event events.DeliveryPickedUp
	if err := json.Unmarshal(m.Value, &event); err != nil {
		return &platformkafka.ParseError{Err: err}
	}
	return h.service.Record(ctx, service.RecordInput{
		UserID:  event.CustomerID,
		Type:    event.EventType,
		Title:   "Order picked up",
		Message: "The driver has picked up your order from the restaurant.",
		OrderID: event.OrderID,
		Marker:  marker(event.Meta, event.OrderID, m),
	})
}

// HandleDeliveryInTransit обрабатывает delivery.in_transit
func (h *Handlers) HandleDeliveryInTransit(ctx context.Context, m kafka.Message) error {
	var event events.DeliveryInTransit
	if err := json.Unmarshal(m.Value, &event); err != nil {
		return &platformkafka.ParseError{Err: err}
	}
	return h.service.Record(ctx, service.RecordInput{
		UserID:  event.CustomerID,
		Type:    event.EventType,
		Title:   "Order on the way",
		Message: "Your order is on the way.",
		OrderID: event.OrderID,
		Marker:  marker(event.Meta, event.OrderID, m),
	})
}

// HandleDeliveryDelivered обрабатывает delivery.delivered
func (h *Handlers) HandleDeliveryDelivered(ctx context.Context, m kafka.Message) error {
	var event events.DeliveryDelivered
	if err := json.Unmarshal(m.Value, &event); err != nil {
		return &platformkafka.ParseError{Err: err}
	}
	return h.service.Record(ctx, service.RecordInput{
		UserID:  event.CustomerID,
		Type:    event.EventType,
		Title:   "Order delivered",
		Message: "Your order has been delivered. Enjoy!",
		OrderID: event.OrderID,
		Marker:  marker(event.Meta, event.OrderID, m),
	})
}

// marker собирает inbox маркер из метаданных события и позиции сообщения
func marker(meta events.Meta, entityID string, m kafka.Message) repository.InboxMarker {
	return repository.InboxMarker{
		EventID:       meta.EventID,
		EventType:     meta.EventType,
		EntityID:      entityID,
		Topic:         m.Topic,
		Partition:     m.Partition,
		MessageOffset: m.Offset,
	}
}
