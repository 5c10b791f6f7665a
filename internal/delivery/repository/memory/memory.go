package memory

import (
	"context"
	"sync"
	"time"

	"github.com/shestoi/GoFoodSaga/internal/delivery/domain"
	"github.com/shestoi/GoFoodSaga/internal/delivery/repository"
	platformkafka "github.com/shestoi/GoFoodSaga/platform/kafka"
)

// outboxRecord — запись outbox с состоянием публикации
type outboxRecord struct {
	event     platformkafka.OutboxEvent
	sent      bool
	lastError string
	createdAt time.Time
}

// Repository — in-memory реализация DeliveryRepository.
// Воспроизводит семантику PostgreSQL: unique по order_id и version CAS,
// поэтому на нём честно работают property тесты гонок
type Repository struct {
	mu         sync.RWMutex
	deliveries map[string]domain.Delivery
	byOrder    map[string]string
	outbox     []*outboxRecord
	inbox      map[string]struct{}
}

// NewRepository создаёт новый in-memory репозиторий
func NewRepository() *Repository {
	return &Repository{
		deliveries: make(map[string]domain.Delivery),
		byOrder:    make(map[string]string),
		outbox:     make([]*outboxRecord, 0),
		inbox:      make(map[string]struct{}),
	}
}

// Create сохраняет доставку; вторая доставка на тот же заказ — ErrDuplicate
func (r *Repository) Create(_ context.Context, delivery domain.Delivery, events []platformkafka.OutboxEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byOrder[delivery.OrderID]; exists {
		return repository.ErrDuplicate
	}
	if _, exists := r.deliveries[delivery.ID]; exists {
		return repository.ErrDuplicate
	}

	r.deliveries[delivery.ID] = delivery
	r.byOrder[delivery.OrderID] = delivery.ID
	r.appendOutbox(events)
	return nil
}

// GetByID получает доставку по id
func (r *Repository) GetByID(_ context.Context, id string) (domain.Delivery, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	delivery, exists := r.deliveries[id]
	if !exists {
		return domain.Delivery{}, repository.ErrNotFound
	}
	return delivery, nil
}

// GetByOrderID получает доставку по id заказа
func (r *Repository) GetByOrderID(_ context.Context, orderID string) (domain.Delivery, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, exists := r.byOrder[orderID]
	if !exists {
		return domain.Delivery{}, repository.ErrNotFound
	}
	return r.deliveries[id], nil
}

// Update применяет изменение по схеме compare-and-swap по version
func (r *Repository) Update(_ context.Context, delivery domain.Delivery, events []platformkafka.OutboxEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, exists := r.deliveries[delivery.ID]
	if !exists {
		return repository.ErrNotFound
	}
	if stored.Version != delivery.Version {
		return repository.ErrVersionConflict
	}

	delivery.Version++
	r.deliveries[delivery.ID] = delivery
	r.appendOutbox(events)
	return nil
}

func (r *Repository) appendOutbox(events []platformkafka.OutboxEvent) {
	now := time.Now().UTC()
	for _, event := range events {
		r.outbox = append(r.outbox, &outboxRecord{event: event, createdAt: now})
	}
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

// GetPendingOutboxEvents возвращает неопубликованные события
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
