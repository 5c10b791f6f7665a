package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shestoi/GoFoodSaga/internal/delivery/domain"
	"github.com/shestoi/GoFoodSaga/internal/delivery/repository"
	platformkafka "github.com/shestoi/GoFoodSaga/platform/kafka"
)

// pgUniqueViolation — код ошибки unique constraint в PostgreSQL
const pgUniqueViolation = "23505"

// Repository реализует DeliveryRepository используя PostgreSQL
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository создаёт новый PostgreSQL репозиторий
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{
		pool: pool,
	}
}

// Create сохраняет новую доставку вместе с outbox событиями. Unique
// constraint по order_id — настоящий барьер против повторной обработки
// одного order.ready
func (r *Repository) Create(ctx context.Context, delivery domain.Delivery, events []platformkafka.OutboxEvent) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO deliveries (id, order_id, customer_id, restaurant_id, delivery_address_id,
		                         driver_id, driver_name, status, version, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		delivery.ID, delivery.OrderID, delivery.CustomerID, delivery.RestaurantID,
		delivery.DeliveryAddressID, delivery.DriverID, delivery.DriverName,
		string(delivery.Status), delivery.Version, delivery.CreatedAt, delivery.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return repository.ErrDuplicate
		}
		return err
	}

	if err := insertOutboxEvents(ctx, tx, events); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// GetByID получает доставку по id
func (r *Repository) GetByID(ctx context.Context, id string) (domain.Delivery, error) {
	return r.getBy(ctx, `WHERE id = $1`, id)
}

// GetByOrderID получает доставку по id заказа
func (r *Repository) GetByOrderID(ctx context.Context, orderID string) (domain.Delivery, error) {
	return r.getBy(ctx, `WHERE order_id = $1`, orderID)
}

func (r *Repository) getBy(ctx context.Context, where string, arg any) (domain.Delivery, error) {
	var delivery domain.Delivery
	var status string
	var latitude, longitude *float64
	var locationUpdatedAt *time.Time

	err := r.pool.QueryRow(ctx,
		`SELECT id, order_id, customer_id, restaurant_id, delivery_address_id,
		        driver_id, driver_name, status,
		        latitude, longitude, location_updated_at,
		        pickup_time, delivery_time, version, created_at, updated_at
		 FROM deliveries `+where, arg).
		Scan(&delivery.ID, &delivery.OrderID, &delivery.CustomerID, &delivery.RestaurantID,
			&delivery.DeliveryAddressID, &delivery.DriverID, &delivery.DriverName, &status,
			&latitude, &longitude, &locationUpdatedAt,
			&delivery.PickupTime, &delivery.DeliveryTime,
			&delivery.Version, &delivery.CreatedAt, &delivery.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Delivery{}, repository.ErrNotFound
		}
		return domain.Delivery{}, err
	}

	delivery.Status = domain.Status(status)
	if latitude != nil && longitude != nil && locationUpdatedAt != nil {
		delivery.Location = &domain.Location{
			Latitude:  *latitude,
			Longitude: *longitude,
			UpdatedAt: *locationUpdatedAt,
		}
	}
	return delivery, nil
}

// Update сохраняет изменённую доставку с optimistic lock по version
func (r *Repository) Update(ctx context.Context, delivery domain.Delivery, events []platformkafka.OutboxEvent) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var latitude, longitude *float64
	var locationUpdatedAt *time.Time
	if delivery.Location != nil {
		latitude = &delivery.Location.Latitude
		longitude = &delivery.Location.Longitude
		locationUpdatedAt = &delivery.Location.UpdatedAt
	}

	tag, err := tx.Exec(ctx,
		`UPDATE deliveries
		 SET driver_id = $1, driver_name = $2, status = $3,
		     latitude = $4, longitude = $5, location_updated_at = $6,
		     pickup_time = $7, delivery_time = $8,
		     version = version + 1, updated_at = $9
		 WHERE id = $10 AND version = $11`,
		delivery.DriverID, delivery.DriverName, string(delivery.Status),
		latitude, longitude, locationUpdatedAt,
		delivery.PickupTime, delivery.DeliveryTime,
		delivery.UpdatedAt, delivery.ID, delivery.Version)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM deliveries WHERE id = $1)`, delivery.ID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return repository.ErrNotFound
		}
		return repository.ErrVersionConflict
	}

	if err := insertOutboxEvents(ctx, tx, events); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func insertOutboxEvents(ctx context.Context, tx pgx.Tx, events []platformkafka.OutboxEvent) error {
	for _, event := range events {
		_, err := tx.Exec(ctx,
			`INSERT INTO delivery_outbox_events (event_id, topic, aggregate_id, payload, status, created_at)
			 VALUES ($1, $2, $3, $4, 'pending', $5)`,
			event.EventID, event.Topic, event.AggregateID, event.Payload, time.Now().UTC())
		if err != nil {
			return err
		}
	}
	return nil
}

// InsertInboxEvent вставляет маркер обработанного входящего события
func (r *Repository) InsertInboxEvent(ctx context.Context, eventID, eventType, entityID, topic string, partition int, messageOffset int64) (bool, error) {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO delivery_inbox_events (event_id, event_type, entity_id, topic, partition, message_offset, processed_at)
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
		 FROM delivery_outbox_events
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
		`UPDATE delivery_outbox_events SET status = 'sent', sent_at = $1 WHERE event_id = $2`,
		time.Now().UTC(), eventID)
	return err
}

// MarkOutboxEventFailed сохраняет last_error; событие остаётся pending
func (r *Repository) MarkOutboxEventFailed(ctx context.Context, eventID string, errMsg string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE delivery_outbox_events SET last_error = $1 WHERE event_id = $2`,
		errMsg, eventID)
	return err
}
