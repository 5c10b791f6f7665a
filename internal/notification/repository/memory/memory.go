package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/shestoi/GoFoodSaga/internal/notification/domain"
	"github.com/shestoi/GoFoodSaga/internal/notification/repository"
)

// Repository — in-memory реализация NotificationRepository.
// Воспроизводит семантику PostgreSQL: дубликат event_id не записывает
// уведомление
type Repository struct {
	mu            sync.RWMutex
	notifications []domain.Notification
	inbox         map[string]struct{}
}

// NewRepository создаёт новый in-memory репозиторий
func NewRepository() *Repository {
	return &Repository{
		notifications: make([]domain.Notification, 0),
		inbox:         make(map[string]struct{}),
	}
}

// CreateWithInbox сохраняет уведомление, если событие ещё не видели
func (r *Repository) CreateWithInbox(_ context.Context, notification domain.Notification, marker repository.InboxMarker) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.inbox[marker.EventID]; exists {
		return false, nil
	}
	r.inbox[marker.EventID] = struct{}{}
	r.notifications = append(r.notifications, notification)
	return true, nil
}

// ListByUser возвращает уведомления пользователя, новые первыми
func (r *Repository) ListByUser(_ context.Context, userID string, limit int) ([]domain.Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Notification, 0)
	for _, n := range r.notifications {
		if n.UserID == userID {
			result = append(result, n)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}
