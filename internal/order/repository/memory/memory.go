package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shestoi/GoFoodSaga/internal/order/domain"
	"github.com/shestoi/GoFoodSaga/internal/order/repository"
	platformkafka "github.com/shestoi/GoFoodSaga/platform/kafka"
)

// outboxRecord — запись outbox с состоянием публикации
type outboxRecord struct {
	event     platformkafka.OutboxEvent
	sent      bool
	lastError string
	createdAt time.Time
}

// Repository — in-memory реализация OrderRepository для локальной разработки и тестов.
// Семантика version conflict и дубликатов идентична PostgreSQL реализации.
type Repository struct {
	mu     sync.RWMutex
	orders map[string]domain.Order
	outbox []*outboxRecord
	inbox  map[string]struct{}
}

// NewRepository создаёт новый in-memory репозиторий
func NewRepository() *Repository {
	return &Repository{
		orders: make(map[string]domain.Order),
		outbox: make([]*outboxRecord, 0),
		inbox:  make(map[string]struct{}),
	}
}

// Create сохраняет заказ и outbox события атомарно под мьютексом
func (r *Repository) Create(_ context.Context, order domain.Order, events []platformkafka.OutboxEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.orders[order.ID]; exists {
		return repository.ErrDuplicate
	}

	r.orders[order.ID] = cloneOrder(order)
	r.appendOutbox(events)
	return nil
}

// GetByID получает заказ по id
func (r *Repository) GetByID(_ context.Context, id string) (domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, exists := r.orders[id]
	if !exists {
		return domain.Order{}, repository.ErrNotFound
	}
	return cloneOrder(order), nil
}

// ListByCustomer возвращает заказы покупателя, новые первыми
func (r *Repository) ListByCustomer(_ context.Context, customerID string, limit int) ([]domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}

	orders := make([]domain.Order, 0)
	for _, order := range r.orders {
		if order.CustomerID == customerID {
			orders = append(orders, cloneOrder(order))
		}
	}
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
	if len(orders) > limit {
		orders = orders[:limit]
	}
	return orders, nil
}

// Update применяет изменение по схеме compare-and-swap: если version в хранилище
// не совпадает с version переданного заказа, изменение отклоняется
func (r *Repository) Update(_ context.Context, order domain.Order, events []platformkafka.OutboxEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, exists := r.orders[order.ID]
	if !exists {
		return repository.ErrNotFound
	}
	if stored.Version != order.Version {
		return repository.ErrVersionConflict
	}

	updated := cloneOrder(order)
	updated.Version = order.Version + 1
	r.orders[order.ID] = updated
	r.appendOutbox(events)
	return nil
}

// InsertInboxEvent отмечает событие обработанным; false — уже видели
func (r *Repository) InsertInboxEvent(_ context.Context, eventID, _, _, _ string, _ int, _ int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.inbox[eventID]; exists {
		return false, nil
	}
	r.inbox[eventID] = struct{}{}
	return true, nil
}

// GetPendingOutboxEvents возвращает неопубликованные события в порядке создания
func (r *Repository) GetPendingOutboxEvents(_ context.Context, limit int) ([]platformkafka.OutboxEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	events := make([]platformkafka.OutboxEvent, 0)
	for _, record := range r.outbox {
		if record.sent {
			continue
		}
		events = append(events, record.event)
		if len(events) >= limit {
			break
		}
	}
	return events, nil
}

// MarkOutboxEventSent отмечает событие как опубликованное
func (r *Repository) MarkOutboxEventSent(_ context.Context, eventID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, record := range r.outbox {
		if record.event.EventID == eventID {
			record.sent = true
			return nil
		}
	}
	return nil
}

// MarkOutboxEventFailed сохраняет текст последней ошибки публикации
func (r *Repository) MarkOutboxEventFailed(_ context.Context, eventID string, errMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, record := range r.outbox {
		if record.event.EventID == eventID {
			record.lastError = errMsg
			return nil
		}
	}
	return nil
}

// appendOutbox добавляет события; вызывать под мьютексом
func (r *Repository) appendOutbox(events []platformkafka.OutboxEvent) {
	now := time.Now().UTC()
	for _, event := range events {
		r.outbox = append(r.outbox, &outboxRecord{event: event, createdAt: now})
	}
}

// cloneOrder делает глубокую копию, чтобы вызывающий код не мутировал хранилище
func cloneOrder(order domain.Order) domain.Order {
	clone := order
	clone.Items = make([]domain.OrderItem, len(order.Items))
	copy(clone.Items, order.Items)
	if order.EstimatedDeliveryTime != nil {
		t := *order.EstimatedDeliveryTime
		clone.EstimatedDeliveryTime = &t
	}
	if order.ActualDeliveryTime != nil {
		t := *order.ActualDeliveryTime
		clone.ActualDeliveryTime = &t
	}
	return clone
}
