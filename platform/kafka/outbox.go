package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// OutboxEvent представляет строку outbox таблицы, готовую к публикации.
// Payload — плоский versioned JSON, сформированный при записи события в outbox
// в той же транзакции, что и изменение состояния сущности.
type OutboxEvent struct {
	EventID     string
	Topic       string
	AggregateID string // id связанной сущности, используется как Kafka key
	Payload     []byte
}

// OutboxSource определяет доступ к outbox таблице сервиса.
// Каждый сервис реализует его в своём репозитории: события пишутся в outbox
// в одной транзакции с доменным изменением, dispatcher публикует их асинхронно.
type OutboxSource interface {
	// GetPendingOutboxEvents возвращает до limit неопубликованных событий в порядке создания
	GetPendingOutboxEvents(ctx context.Context, limit int) ([]OutboxEvent, error)
	// MarkOutboxEventSent отмечает событие как опубликованное
	MarkOutboxEventSent(ctx context.Context, eventID string) error
	// MarkOutboxEventFailed отмечает событие как неопубликованное с текстом ошибки
	MarkOutboxEventFailed(ctx context.Context, eventID string, errMsg string) error
}

// OutboxDispatcher обрабатывает события из outbox таблицы и публикует их в Kafka
type OutboxDispatcher struct {
	logger     *zap.Logger
	source     OutboxSource
	writer     *kafka.Writer
	batchSize  int
	interval   time.Duration
	maxRetries int
	backoff    time.Duration
}

// NewOutboxDispatcher создаёт новый outbox dispatcher
func NewOutboxDispatcher(
	logger *zap.Logger,
	source OutboxSource,
	brokers []string,
	batchSize int,
	interval time.Duration,
	maxRetries int,
	backoff time.Duration,
) *OutboxDispatcher {
	// Safety defaults на случай кривого env/config
	if batchSize <= 0 {
		batchSize = 100
	}
	if interval <= 0 {
		interval = 1 * time.Second
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}

	writer := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Balancer: &kafka.LeastBytes{},
	}

	return &OutboxDispatcher{
		logger:     logger,
		source:     source,
		writer:     writer,
		batchSize:  batchSize,
		interval:   interval,
		maxRetries: maxRetries,
		backoff:    backoff,
	}
}

// Start запускает dispatcher в фоновом режиме до отмены контекста
func (d *OutboxDispatcher) Start(ctx context.Context) error {
	d.logger.Info("starting outbox dispatcher",
		zap.Int("batch_size", d.batchSize),
		zap.Duration("interval", d.interval),
		zap.Int("max_retries", d.maxRetries),
	)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	// Обрабатываем сразу при старте dispatcher
	if err := d.processBatch(ctx); err != nil && ctx.Err() == nil {
		d.logger.Error("failed to process initial batch", zap.Error(err))
	}

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("outbox dispatcher context cancelled, stopping")
			return nil
		case <-ticker.C:
			if err := d.processBatch(ctx); err != nil && ctx.Err() == nil {
				d.logger.Error("failed to process batch", zap.Error(err))
			}
		}
	}
}

// processBatch обрабатывает батч pending событий
func (d *OutboxDispatcher) processBatch(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	events, err := d.source.GetPendingOutboxEvents(ctx, d.batchSize)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("failed to get pending events: %w", err)
	}

	if len(events) == 0 {
		return nil
	}

	d.logger.Debug("processing outbox batch",
		zap.Int("count", len(events)),
	)

	for _, event := range events {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if err := d.processEvent(ctx, event); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			d.logger.Error("failed to process event",
				zap.Error(err),
				zap.String("event_id", event.EventID),
				zap.String("topic", event.Topic),
			)
			// Продолжаем обработку следующих событий
		}
	}

	return nil
}

// processEvent публикует одно событие с retry
func (d *OutboxDispatcher) processEvent(ctx context.Context, event OutboxEvent) error {
	var lastErr error

	for attempt := 1; attempt <= d.maxRetries; attempt++ {
		msg := kafka.Message{
			Topic: event.Topic,
			Key:   []byte(event.AggregateID), // per-entity ordering: key = id сущности
			Value: event.Payload,
		}

		err := d.writer.WriteMessages(ctx, msg)
		if err == nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			// Успешно опубликовано - отмечаем как sent
			if markErr := d.source.MarkOutboxEventSent(ctx, event.EventID); markErr != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				d.logger.Error("failed to mark event as sent",
					zap.Error(markErr),
					zap.String("event_id", event.EventID),
				)
				return markErr
			}

			d.logger.Info("outbox event published",
				zap.String("event_id", event.EventID),
				zap.String("topic", event.Topic),
				zap.String("aggregate_id", event.AggregateID),
				zap.Int("attempt", attempt),
			)
			return nil
		}

		lastErr = err
		d.logger.Warn("failed to publish outbox event",
			zap.Error(err),
			zap.String("event_id", event.EventID),
			zap.String("topic", event.Topic),
			zap.Int("attempt", attempt),
			zap.Int("max_retries", d.maxRetries),
		)

		if attempt < d.maxRetries {
			backoff := d.backoff * time.Duration(attempt)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
				// Продолжаем retry
			}
		}
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}

	// Все попытки исчерпаны - событие останется pending до следующего батча,
	// last_error сохраняем для диагностики
	errMsg := fmt.Sprintf("failed after %d attempts: %v", d.maxRetries, lastErr)
	if markErr := d.source.MarkOutboxEventFailed(ctx, event.EventID, errMsg); markErr != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		d.logger.Error("failed to mark event as failed",
			zap.Error(markErr),
			zap.String("event_id", event.EventID),
		)
		return markErr
	}

	return fmt.Errorf("publish failed: %w", lastErr)
}

// Close закрывает Kafka writer
func (d *OutboxDispatcher) Close() error {
	return d.writer.Close()
}
