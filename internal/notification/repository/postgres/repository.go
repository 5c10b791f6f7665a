package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shestoi/GoFoodSaga/internal/notification/domain"
	"github.com/shestoi/GoFoodSaga/internal/notification/repository"
)

// pgUniqueViolation — код ошибки unique constraint в PostgreSQL
const pgUniqueViolation = "23505"

// Repository реализует NotificationRepository используя PostgreSQL
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository создаёт новый PostgreSQL репозиторий
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{
		pool: pool,
	}
}

// CreateWithInbox сохраняет уведомление и inbox маркер в одной транзакции.
// Primary key по event_id превращает повторную доставку события в чистый
// rollback: уведомление не задваивается
func (r *Repository) CreateWithInbox(ctx context.Context, notification domain.Notification, marker repository.InboxMarker) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO notification_inbox_events (event_id, event_type, entity_id, topic, partition, message_offset, processed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		marker.EventID, marker.EventType, marker.EntityID, marker.Topic,
		marker.Partition, marker.MessageOffset, time.Now().UTC())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return false, nil
		}
		return false, err
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO notifications (id, user_id, type, title, message, order_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		notification.ID, notification.UserID, notification.Type, notification.Title,
		notification.Message, notification.OrderID, notification.CreatedAt)
	if err != nil {
		return false, err
	}

	return true, tx.Commit(ctx)
}

// ListByUser возвращает уведомления пользователя, новые первыми
func (r *Repository) ListByUser(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, type, title, message, order_id, created_at
		 FROM notifications
		 WHERE user_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	notifications := make([]domain.Notification, 0)
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message, &n.OrderID, &n.CreatedAt); err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}
