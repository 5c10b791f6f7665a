// Package repository определяет интерфейс хранилища платежей.
package repository

import (
	"context"
	"errors"

	"github.com/shestoi/GoFoodSaga/internal/payment/domain"
	platformkafka "github.com/shestoi/GoFoodSaga/platform/kafka"
)

var (
	// ErrNotFound возвращается, когда платёж не найден
	ErrNotFound = errors.New("payment not found")
	// ErrDuplicate возвращается при попытке создать второй платёж для заказа
	ErrDuplicate = errors.New("payment for this order already exists")
	// ErrVersionConflict возвращается, когда конкурирующее изменение успело первым
	ErrVersionConflict = errors.New("payment version conflict")
)

//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name=PaymentRepository --dir=. --output=./mocks --outpkg=mocks

// PaymentRepository определяет интерфейс для работы с хранилищем платежей.
// Инвариант "не более одного платежа на заказ" держит unique constraint
// по order_id: Create обязан возвращать ErrDuplicate при нарушении
type PaymentRepository interface {
	// Create сохраняет новый платёж
	Create(ctx context.Context, payment domain.Payment) error

	// GetByID получает платёж по id. Возвращает ErrNotFound если не найден
	GetByID(ctx context.Context, id string) (domain.Payment, error)

	// GetByOrderID получает платёж по id заказа. Возвращает ErrNotFound если не найден
	GetByOrderID(ctx context.Context, orderID string) (domain.Payment, error)

	// Update сохраняет изменённый платёж вместе с outbox событиями в одной
	// транзакции. Optimistic lock по payment.Version: при несовпадении
	// версии возвращает ErrVersionConflict
	Update(ctx context.Context, payment domain.Payment, events []platformkafka.OutboxEvent) error

	// InsertInboxEvent вставляет маркер обработанного входящего события.
	// Возвращает inserted=false при дубликате event_id
	InsertInboxEvent(ctx context.Context, eventID, eventType, entityID, topic string, partition int, messageOffset int64) (bool, error)

	// Outbox методы для dispatcher-а
	platformkafka.OutboxSource
}
