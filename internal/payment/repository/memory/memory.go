package memory

import (
	"context"
	"sync"
	"time"

	"github.com/shestoi/GoFoodSaga/internal/payment/domain"
	"github.com/shestoi/GoFoodSaga/internal/payment/repository"
	platformkafka "github.com/shestoi/GoFoodSaga/platform/kafka"
)

// outboxRecord — запись outbox с состоянием публикации
type outboxRecord struct {
	event     platformkafka.OutboxEvent
	sent      bool
	lastError string
	createdAt time.Time
}

// Repository — in-memory реализация PaymentRepository.
// Воспроизводит семантику PostgreSQL: unique по order_id и version CAS,
// поэтому на нём честно работают property тесты гонок
type Repository struct {
	mu       sync.RWMutex
	payments map[string]domain.Payment
	byOrder  map[string]string
	outbox   []*outboxRecord
	inbox    map[string]struct{}
}

// NewRepository создаёт новый in-memory репозиторий
func NewRepository() *Repository {
	return &Repository{
		payments: make(map[string]domain.Payment),
		byOrder:  make(map[string]string),
		outbox:   make([]*outboxRecord, 0),
		inbox:    make(map[string]struct{}),
	}
}

// Create сохраняет платёж; второй платёж на тот же заказ — ErrDuplicate
func (r *Repository) Create(_ context.Context, payment domain.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byOrder[payment.OrderID]; exists {
		return repository.ErrDuplicate
	}
	if _, exists := r.payments[payment.ID]; exists {
		return repository.ErrDuplicate
	}

	r.payments[payment.ID] = payment
	r.byOrder[payment.OrderID] = payment.ID
	return nil
}

// GetByID получает платёж по id
func (r *Repository) GetByID(_ context.Context, id string) (domain.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	payment, exists := r.payments[id]
	if !exists {
		return domain.Payment{}, repository.ErrNotFound
	}
	return payment, nil
}

// GetByOrderID получает платёж по id заказа
func (r *Repository) GetByOrderID(_ context.Context, orderID string) (domain.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, exists := r.byOrder[orderID]
	if !exists {
		return domain.Payment{}, repository.ErrNotFound
	}
	return r.payments[id], nil
}

// Update применяет изменение по схеме compare-and-swap по version
func (r *Repository) Update(_ context.Context, payment domain.Payment, events []platformkafka.OutboxEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, exists := r.payments[payment.ID]
	if !exists {
		return repository.ErrNotFound
	}
	if stored.Version != payment.Version {
		return repository.ErrVersionConflict
	}

	payment.Version++
	r.payments[payment.ID] = payment

	now := time.Now().UTC()
	for _, event := range events {
		r.outbox = append(r.outbox, &outboxRecord{event: event, createdAt: now})
	}
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
