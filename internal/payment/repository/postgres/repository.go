package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/shestoi/GoFoodSaga/internal/payment/domain"
	"github.com/shestoi/GoFoodSaga/internal/payment/repository"
	platformkafka "github.com/shestoi/GoFoodSaga/platform/kafka"
)

// pgUniqueViolation — код ошибки unique constraint в PostgreSQL
const pgUniqueViolation = "23505"

// Repository реализует PaymentRepository используя PostgreSQL
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository создаёт новый PostgreSQL репозиторий
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{
		pool: pool,
	}
}

// Create сохраняет новый платёж. Unique constraint по order_id — настоящий
// барьер против гонки двух одновременных созданий
func (r *Repository) Create(ctx context.Context, payment domain.Payment) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO payments (id, order_id, user_id, amount, method, status, version, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		payment.ID, payment.OrderID, payment.UserID, payment.Amount.String(),
		string(payment.Method), string(payment.Status), payment.Version,
		payment.CreatedAt, payment.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return repository.ErrDuplicate
		}
		return err
	}
	return nil
}

// GetByID получает платёж по id
func (r *Repository) GetByID(ctx context.Context, id string) (domain.Payment, error) {
	return r.getBy(ctx, `WHERE id = $1`, id)
}

// GetByOrderID получает платёж по id заказа
func (r *Repository) GetByOrderID(ctx context.Context, orderID string) (domain.Payment, error) {
	return r.getBy(ctx, `WHERE order_id = $1`, orderID)
}

func (r *Repository) getBy(ctx context.Context, where string, arg any) (domain.Payment, error) {
	var payment domain.Payment
	var amount, method, status string

	err := r.pool.QueryRow(ctx,
		`SELECT id, order_id, user_id, amount, method, status, version, created_at, updated_at
		 FROM payments `+where, arg).
		Scan(&payment.ID, &payment.OrderID, &payment.UserID, &amount, &method, &status,
			&payment.Version, &payment.CreatedAt, &payment.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Payment{}, repository.ErrNotFound
		}
		return domain.Payment{}, err
	}

	payment.Method = domain.Method(method)
	payment.Status = domain.Status(status)
	if payment.Amount, err = decimal.NewFromString(amount); err != nil {
		return domain.Payment{}, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	return payment, nil
}

// Update сохраняет изменённый платёж с optimistic lock по version
func (r *Repository) Update(ctx context.Context, payment domain.Payment, events []platformkafka.OutboxEvent) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE payments
		 SET status = $1, version = version + 1, updated_at = $2
		 WHERE id = $3 AND version = $4`,
		string(payment.Status), payment.UpdatedAt, payment.ID, payment.Version)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM payments WHERE id = $1)`, payment.ID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return repository.ErrNotFound
		}
		return repository.ErrVersionConflict
	}

	for _, event := range events {
		_, err := tx.Exec(ctx,
			`INSERT INTO payment_outbox_events (event_id, topic, aggregate_id, payload, status, created_at)
			 VALUES ($1, $2, $3, $4, 'pending', $5)`,
			event.EventID, event.Topic, event.AggregateID, event.Payload, time.Now().UTC())
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// InsertInboxEvent вставляет маркер обработанного входящего события
func (r *Repository) InsertInboxEvent(ctx context.Context, eventID, eventType, entityID, topic string, partition int, messageOffset int64) (bool, error) {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO payment_inbox_events (event_id, event_type, entity_id, topic, partition, message_offset, processed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		eventID, eventType, entityID, topic, partition, messageOffset, time.Now().UTC())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// GetPendingOutboxEvents возвращает неопубликованные события в порядке создания
func (r *Repository) GetPendingOutboxEvents(ctx context.Context, limit int) ([]platformkafka.OutboxEvent, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT event_id, topic, aggregate_id, payload
		 FROM payment_outbox_events
		 WHERE status = 'pending'
		 ORDER BY created_at
		 LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]platformkafka.OutboxEvent, 0)
	for rows.Next() {
		var event platformkafka.OutboxEvent
		if err := rows.Scan(&event.EventID, &event.Topic, &event.AggregateID, &event.Payload); err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// MarkOutboxEventSent отмечает событие как опубликованное
func (r *Repository) MarkOutboxEventSent(ctx context.Context, eventID string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE payment_outbox_events SET status = 'sent', sent_at = $1 WHERE event_id = $2`,
		time.Now().UTC(), eventID)
	return err
}

// MarkOutboxEventFailed сохраняет last_error; событие остаётся pending
func (r *Repository) MarkOutboxEventFailed(ctx context.Context, eventID string, errMsg string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE payment_outbox_events SET last_error = $1 WHERE event_id = $2`,
		errMsg, eventID)
	return err
}
