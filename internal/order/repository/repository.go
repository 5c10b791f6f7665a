package repository

import (
	"context"
	"errors"

	"github.com/shestoi/GoFoodSaga/internal/order/domain"
	platformkafka "github.com/shestoi/GoFoodSaga/platform/kafka"
)

//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name=OrderRepository --dir=. --output=./mocks --outpkg=mocks

// OrderRepository определяет интерфейс для работы с хранилищем заказов.
// Помимо заказов реализация ведёт outbox (исходящие события пишутся в одной
// транзакции с изменением заказа) и inbox (маркеры обработанных входящих событий).
type OrderRepository interface {
	// Create сохраняет новый заказ и outbox события атомарно.
	// Возвращает ErrDuplicate, если заказ с таким id уже существует.
	Create(ctx context.Context, order domain.Order, events []platformkafka.OutboxEvent) error

	// GetByID получает заказ по id.
	// Возвращает ErrNotFound, если заказ не найден.
	GetByID(ctx context.Context, id string) (domain.Order, error)

	// ListByCustomer возвращает заказы покупателя, новые первыми
	ListByCustomer(ctx context.Context, customerID string, limit int) ([]domain.Order, error)

	// Update сохраняет изменённый заказ и outbox события атомарно.
	// order.Version должен содержать версию, прочитанную перед изменением:
	// optimistic lock — при несовпадении версии в хранилище возвращается
	// ErrVersionConflict и ничего не записывается.
	Update(ctx context.Context, order domain.Order, events []platformkafka.OutboxEvent) error

	// InsertInboxEvent вставляет маркер обработанного входящего события.
	// Возвращает inserted=false, если событие с таким event_id уже было обработано
	// (идемпотентность consumer-а при повторной доставке).
	InsertInboxEvent(ctx context.Context, eventID, eventType, entityID, topic string, partition int, messageOffset int64) (inserted bool, err error)

	// Outbox методы для platform/kafka.OutboxDispatcher
	platformkafka.OutboxSource
}

// ErrNotFound возвращается, когда заказ не найден в хранилище
var ErrNotFound = errors.New("order not found")

// ErrDuplicate возвращается при попытке создать заказ с существующим id
var ErrDuplicate = errors.New("order already exists")

// ErrVersionConflict возвращается, когда конкурирующее изменение успело
// обновить заказ первым (проигранная гонка optimistic lock)
var ErrVersionConflict = errors.New("order was modified concurrently")
