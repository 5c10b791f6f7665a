// Package repository определяет интерфейс хранилища доставок.
package repository

import (
	"context"
	"errors"

	"github.com/shestoi/GoFoodSaga/internal/delivery/domain"
	platformkafka "github.com/shestoi/GoFoodSaga/platform/kafka"
)

var (
	// ErrNotFound возвращается, когда доставка не найдена
	ErrNotFound = errors.New("delivery not found")
	// ErrDuplicate возвращается при попытке создать вторую доставку для заказа
	ErrDuplicate = errors.New("delivery for this order already exists")
	// ErrVersionConflict возвращается, когда конкурирующее изменение успело первым
	ErrVersionConflict = errors.New("delivery version conflict")
)

//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name=DeliveryRepository --dir=. --output=./mocks --outpkg=mocks

// DeliveryRepository определяет интерфейс для работы с хранилищем доставок.
// Инвариант "не более одной доставки на заказ" держит unique constraint
// по order_id: Create обязан возвращать ErrDuplicate при нарушении
type DeliveryRepository interface {
	// Create сохраняет новую доставку вместе с outbox событиями
	Create(ctx context.Context, delivery domain.Delivery, events []platformkafka.OutboxEvent) error

	// GetByID получает доставку по id. Возвращает ErrNotFound если не найдена
	GetByID(ctx context.Context, id string) (domain.Delivery, error)

	// GetByOrderID получает доставку по id заказа. Возвращает ErrNotFound если не найдена
	GetByOrderID(ctx context.Context, orderID string) (domain.Delivery, error)

	// Update сохраняет изменённую доставку вместе с outbox событиями в одной
	// транзакции. Optimistic lock по delivery.Version: при несовпадении
	// версии возвращает ErrVersionConflict
	Update(ctx context.Context, delivery domain.Delivery, events []platformkafka.OutboxEvent) error

	// InsertInboxEvent вставляет маркер обработанного входящего события.
	// Возвращает inserted=false при дубликате event_id
	InsertInboxEvent(ctx context.Context, eventID, eventType, entityID, topic string, partition int, messageOffset int64) (bool, error)

	// Outbox методы для dispatcher-а
	platformkafka.OutboxSource
}
