// Package events содержит контракты доменных событий: имена топиков и
// структуры payload. Все сервисы публикуют и читают события через эти типы,
// чтобы producer и consumer не разъезжались по форматам.
package events

import (
	"time"

	"github.com/google/uuid"
)

// Имена Kafka топиков. Ключ сообщения — id связанной сущности,
// что даёт упорядоченность в рамках одной сущности.
const (
	TopicOrderCreated   = "order.created"
	TopicOrderConfirmed = "order.confirmed"
	TopicOrderReady     = "order.ready"
	TopicOrderCancelled = "order.cancelled"

	TopicPaymentConfirmed = "payment.confirmed"
	TopicPaymentFailed    = "payment.failed"
	TopicPaymentRefunded  = "payment.refunded"

	TopicDeliveryAssigned  = "delivery.assigned"
	TopicDeliveryPickedUp  = "delivery.picked_up"
	TopicDeliveryInTransit = "delivery.in_transit"
	TopicDeliveryDelivered = "delivery.delivered"
)

// Meta — общие поля любого события. Встраивается в payload первой,
// чтобы consumer мог прочитать метаданные не зная конкретного типа.
type Meta struct {
	EventID      string    `json:"event_id"`
	EventType    string    `json:"event_type"`
	EventVersion int       `json:"event_version"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// NewMeta генерирует метаданные нового события
func NewMeta(eventType string) Meta {
	return Meta{
		EventID:      uuid.NewString(),
		EventType:    eventType,
		EventVersion: 1,
		OccurredAt:   time.Now().UTC(),
	}
}

// OrderCreated публикуется Order Service после успешного создания заказа
type OrderCreated struct {
	Meta
	OrderID      string `json:"order_id"`
	CustomerID   string `json:"customer_id"`
	RestaurantID string `json:"restaurant_id"`
	Total        string `json:"total"`
}

// OrderConfirmed публикуется после оплаты, когда заказ подтверждён
type OrderConfirmed struct {
	Meta
	OrderID      string `json:"order_id"`
	CustomerID   string `json:"customer_id"`
	RestaurantID string `json:"restaurant_id"`
}

// OrderReady публикуется, когда ресторан собрал заказ.
// Delivery Service по этому событию создаёт доставку.
type OrderReady struct {
	Meta
	OrderID           string `json:"order_id"`
	CustomerID        string `json:"customer_id"`
	RestaurantID      string `json:"restaurant_id"`
	DeliveryAddressID string `json:"delivery_address_id"`
}

// OrderCancelled публикуется при отмене заказа (покупателем или рестораном)
type OrderCancelled struct {
	Meta
	OrderID    string `json:"order_id"`
	CustomerID string `json:"customer_id"`
	Reason     string `json:"reason"`
	Refunded   bool   `json:"refunded"`
}

// PaymentConfirmed публикуется Payment Service при успешной оплате
type PaymentConfirmed struct {
	Meta
	PaymentID  string `json:"payment_id"`
	OrderID    string `json:"order_id"`
	CustomerID string `json:"customer_id"`
	Amount     string `json:"amount"`
	Method     string `json:"method"`
}

// PaymentFailed публикуется при неуспешной попытке оплаты
type PaymentFailed struct {
	Meta
	PaymentID  string `json:"payment_id"`
	OrderID    string `json:"order_id"`
	CustomerID string `json:"customer_id"`
	Reason     string `json:"reason"`
}

// PaymentRefunded публикуется при возврате средств
type PaymentRefunded struct {
	Meta
	PaymentID  string `json:"payment_id"`
	OrderID    string `json:"order_id"`
	CustomerID string `json:"customer_id"`
	Amount     string `json:"amount"`
}

// DeliveryAssigned публикуется, когда курьер назначен на доставку
type DeliveryAssigned struct {
	Meta
	DeliveryID string `json:"delivery_id"`
	OrderID    string `json:"order_id"`
	CustomerID string `json:"customer_id"`
	DriverID   string `json:"driver_id"`
	DriverName string `json:"driver_name"`
}

// DeliveryPickedUp публикуется, когда курьер забрал заказ из ресторана
type DeliveryPickedUp struct {
	Meta
	DeliveryID string `json:"delivery_id"`
	OrderID    string `json:"order_id"`
	CustomerID string `json:"customer_id"`
	DriverID   string `json:"driver_id"`
}

// DeliveryInTransit публикуется, когда курьер выехал к покупателю
type DeliveryInTransit struct {
	Meta
	DeliveryID string `json:"delivery_id"`
	OrderID    string `json:"order_id"`
	CustomerID string `json:"customer_id"`
	DriverID   string `json:"driver_id"`
}

// DeliveryDelivered публикуется при вручении заказа покупателю
type DeliveryDelivered struct {
	Meta
	DeliveryID  string    `json:"delivery_id"`
	OrderID     string    `json:"order_id"`
	CustomerID  string    `json:"customer_id"`
	DriverID    string    `json:"driver_id"`
	DeliveredAt time.Time `json:"delivered_at"`
}
