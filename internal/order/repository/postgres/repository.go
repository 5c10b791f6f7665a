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

	"github.com/shestoi/GoFoodSaga/internal/order/domain"
	"github.com/shestoi/GoFoodSaga/internal/order/repository"
	platformkafka "github.com/shestoi/GoFoodSaga/platform/kafka"
)

// pgUniqueViolation — код ошибки unique constraint в PostgreSQL
const pgUniqueViolation = "23505"

// Repository реализует OrderRepository используя PostgreSQL
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository создаёт новый PostgreSQL репозиторий
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{
		pool: pool,
	}
}

// Create сохраняет заказ, его позиции и outbox события в одной транзакции
func (r *Repository) Create(ctx context.Context, order domain.Order, events []platformkafka.OutboxEvent) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO orders (id, customer_id, restaurant_id, delivery_address_id,
		                     subtotal, tax, delivery_fee, total,
		                     status, payment_status, special_instructions,
		                     version, created_at, updated_at, estimated_delivery_time)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		order.ID, order.CustomerID, order.RestaurantID, order.DeliveryAddressID,
		order.Subtotal.String(), order.Tax.String(), order.DeliveryFee.String(), order.Total.String(),
		string(order.Status), string(order.PaymentStatus), order.SpecialInstructions,
		order.Version, order.CreatedAt, order.UpdatedAt, order.EstimatedDeliveryTime)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return repository.ErrDuplicate
		}
		return err
	}

	for _, item := range order.Items {
		_, err = tx.Exec(ctx,
			`INSERT INTO order_items (order_id, menu_item_id, name, quantity, unit_price, customization)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			order.ID, item.MenuItemID, item.Name, item.Quantity, item.UnitPrice.String(), item.Customization)
		if err != nil {
			return err
		}
	}

	if err := insertOutboxEvents(ctx, tx, events); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// GetByID получает заказ и его позиции по id
func (r *Repository) GetByID(ctx context.Context, id string) (domain.Order, error) {
	order, err := scanOrder(r.pool.QueryRow(ctx,
		`SELECT id, customer_id, restaurant_id, delivery_address_id,
		        subtotal, tax, delivery_fee, total,
		        status, payment_status, special_instructions,
		        version, created_at, updated_at, estimated_delivery_time, actual_delivery_time
		 FROM orders
		 WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Order{}, repository.ErrNotFound
		}
		return domain.Order{}, err
	}

	items, err := r.loadItems(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	order.Items = items

	return order, nil
}

// ListByCustomer возвращает заказы покупателя, новые первыми
func (r *Repository) ListByCustomer(ctx context.Context, customerID string, limit int) ([]domain.Order, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, customer_id, restaurant_id, delivery_address_id,
		        subtotal, tax, delivery_fee, total,
		        status, payment_status, special_instructions,
		        version, created_at, updated_at, estimated_delivery_time, actual_delivery_time
		 FROM orders
		 WHERE customer_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`, customerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := make([]domain.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Позиции подгружаем отдельным запросом на заказ: списки короткие,
	// страница ограничена limit-ом
	for i := range orders {
		items, err := r.loadItems(ctx, orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].Items = items
	}

	return orders, nil
}

// Update сохраняет изменённый заказ с optimistic lock по version.
// Позиции заказа заморожены при создании и здесь не трогаются.
func (r *Repository) Update(ctx context.Context, order domain.Order, events []platformkafka.OutboxEvent) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE orders
		 SET status = $1,
		     payment_status = $2,
		     version = version + 1,
		     updated_at = $3,
		     estimated_delivery_time = $4,
		     actual_delivery_time = $5
		 WHERE id = $6 AND version = $7`,
		string(order.Status), string(order.PaymentStatus), order.UpdatedAt,
		order.EstimatedDeliveryTime, order.ActualDeliveryTime,
		order.ID, order.Version)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		// Либо заказ исчез, либо конкурирующее изменение успело первым
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, order.ID).Scan(&exists); err != nil {
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

// InsertInboxEvent вставляет маркер обработанного входящего события.
// Возвращает inserted=false при дубликате event_id (unique violation).
func (r *Repository) InsertInboxEvent(ctx context.Context, eventID, eventType, entityID, topic string, partition int, messageOffset int64) (bool, error) {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO order_inbox_events (event_id, event_type, entity_id, topic, partition, message_offset, processed_at)
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
		 FROM order_outbox_events
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
		`UPDATE order_outbox_events SET status = 'sent', sent_at = $1 WHERE event_id = $2`,
		time.Now().UTC(), eventID)
	return err
}

// MarkOutboxEventFailed сохраняет last_error; событие остаётся pending для следующего батча
func (r *Repository) MarkOutboxEventFailed(ctx context.Context, eventID string, errMsg string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE order_outbox_events SET last_error = $1 WHERE event_id = $2`,
		errMsg, eventID)
	return err
}

// insertOutboxEvents вставляет outbox события в рамках открытой транзакции
func insertOutboxEvents(ctx context.Context, tx pgx.Tx, events []platformkafka.OutboxEvent) error {
	for _, event := range events {
		_, err := tx.Exec(ctx,
			`INSERT INTO order_outbox_events (event_id, topic, aggregate_id, payload, status, created_at)
			 VALUES ($1, $2, $3, $4, 'pending', $5)`,
			event.EventID, event.Topic, event.AggregateID, event.Payload, time.Now().UTC())
		if err != nil {
			return err
		}
	}
	return nil
}

// rowScanner покрывает pgx.Row и pgx.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

// scanOrder читает строку orders в доменную модель
// NUMERIC колонки сканируем в string и конвертируем в decimal
func scanOrder(row rowScanner) (domain.Order, error) {
	var order domain.Order
	var subtotal, tax, fee, total string
	var status, paymentStatus string

	err := row.Scan(&order.ID, &order.CustomerID, &order.RestaurantID, &order.DeliveryAddressID,
		&subtotal, &tax, &fee, &total,
		&status, &paymentStatus, &order.SpecialInstructions,
		&order.Version, &order.CreatedAt, &order.UpdatedAt,
		&order.EstimatedDeliveryTime, &order.ActualDeliveryTime)
	if err != nil {
		return domain.Order{}, err
	}

	order.Status = domain.Status(status)
	order.PaymentStatus = domain.PaymentStatus(paymentStatus)

	if order.Subtotal, err = decimal.NewFromString(subtotal); err != nil {
		return domain.Order{}, fmt.Errorf("invalid subtotal %q: %w", subtotal, err)
	}
	if order.Tax, err = decimal.NewFromString(tax); err != nil {
		return domain.Order{}, fmt.Errorf("invalid tax %q: %w", tax, err)
	}
	if order.DeliveryFee, err = decimal.NewFromString(fee); err != nil {
		return domain.Order{}, fmt.Errorf("invalid delivery_fee %q: %w", fee, err)
	}
	if order.Total, err = decimal.NewFromString(total); err != nil {
		return domain.Order{}, fmt.Errorf("invalid total %q: %w", total, err)
	}

	return order, nil
}

// loadItems подгружает позиции заказа
func (r *Repository) loadItems(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT menu_item_id, name, quantity, unit_price, customization
		 FROM order_items
		 WHERE order_id = $1
		 ORDER BY menu_item_id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.OrderItem, 0)
	for rows.Next() {
		var item domain.OrderItem
		var price string
		if err := rows.Scan(&item.MenuItemID, &item.Name, &item.Quantity, &price, &item.Customization); err != nil {
			return nil, err
		}
		if item.UnitPrice, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("invalid unit_price %q: %w", price, err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
