// Package repository определяет интерфейс хранилища уведомлений.
package repository

import (
	"context"

	"github.com/shestoi/GoFoodSaga/internal/notification/domain"
)

// InboxMarker — маркер обработанного входящего события
type InboxMarker struct {
	EventID       string
	EventType     string
	EntityID      string
	Topic         string
	Partition     int
	MessageOffset int64
}

//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name=NotificationRepository --dir=. --output=./mocks --outpkg=mocks

// NotificationRepository определяет интерфейс для работы с хранилищем
// уведомлений. Запись уведомления не идемпотентна сама по себе, поэтому
// строка и inbox маркер вставляются в одной транзакции: дубликат события
// откатывает обе вставки
type NotificationRepository interface {
	// CreateWithInbox сохраняет уведомление вместе с inbox маркером.
	// Возвращает inserted=false при дубликате event_id, уведомление
	// при этом не записывается
	CreateWithInbox(ctx context.Context, notification domain.Notification, marker InboxMarker) (bool, error)

	// ListByUser возвращает уведомления пользователя, новые первыми
	ListByUser(ctx context.Context, userID string, limit int) ([]domain.Notification, error)
}
