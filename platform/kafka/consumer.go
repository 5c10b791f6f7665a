package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// ParseError представляет ошибку разбора события.
// Consumer трактует её как poison pill: сообщение уходит в DLQ и коммитится,
// retry для него бессмысленен.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse event: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// MessageHandler обрабатывает одно сообщение из Kafka.
// Возврат *ParseError (в том числе обёрнутого) означает некорректное сообщение —
// оно уходит в DLQ без retry. Любая другая ошибка ретраится с backoff,
// после исчерпания попыток сообщение также уходит в DLQ.
// Handler обязан быть идемпотентным: доставка at-least-once.
type MessageHandler func(ctx context.Context, m kafka.Message) error

// Consumer читает сообщения одного топика в рамках consumer group
// и передаёт их в handler с retry и DLQ семантикой.
// At-least-once: FetchMessage + CommitMessages после успешной обработки.
type Consumer struct {
	logger      *zap.Logger
	reader      *kafka.Reader
	handler     MessageHandler
	dlq         *DLQPublisher
	maxAttempts int
	backoffBase time.Duration
}

// NewConsumer создаёт новый consumer для указанного топика и consumer group
func NewConsumer(
	logger *zap.Logger,
	brokers []string,
	groupID, topic string,
	handler MessageHandler,
	dlq *DLQPublisher,
	maxAttempts int,
	backoffBase time.Duration,
) *Consumer {
	// Safety defaults на случай кривого env/config
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if backoffBase <= 0 {
		backoffBase = 1 * time.Second
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		GroupID:  groupID,
		Topic:    topic,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})

	return &Consumer{
		logger:      logger,
		reader:      reader,
		handler:     handler,
		dlq:         dlq,
		maxAttempts: maxAttempts,
		backoffBase: backoffBase,
	}
}

// Start запускает consumer и блокируется до отмены контекста
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("starting kafka consumer",
		zap.String("topic", c.reader.Config().Topic),
		zap.String("group_id", c.reader.Config().GroupID),
		zap.Int("max_retry_attempts", c.maxAttempts),
		zap.Duration("retry_backoff_base", c.backoffBase),
	)

	for {
		// FetchMessage вместо ReadMessage для ручного контроля commit
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("consumer context cancelled, stopping")
				return nil
			}
			c.logger.Error("failed to fetch message from kafka",
				zap.Error(err),
			)
			// Пауза перед повторным fetch: при недоступном брокере
			// не крутим цикл вхолостую
			select {
			case <-ctx.Done():
				c.logger.Info("consumer context cancelled, stopping")
				return nil
			case <-time.After(c.backoffBase):
			}
			continue
		}

		shouldCommit := c.processMessage(ctx, m)

		// Коммитим offset только после успешной обработки (или после DLQ)
		if shouldCommit {
			if err := c.reader.CommitMessages(ctx, m); err != nil {
				c.logger.Error("failed to commit message offset",
					zap.Error(err),
					zap.String("topic", m.Topic),
					zap.Int("partition", m.Partition),
					zap.Int64("offset", m.Offset),
				)
				continue
			}

			c.logger.Debug("message offset committed",
				zap.String("topic", m.Topic),
				zap.Int("partition", m.Partition),
				zap.Int64("offset", m.Offset),
			)
		}
	}
}

// processMessage обрабатывает одно сообщение
// Возвращает true, если нужно закоммитить offset
func (c *Consumer) processMessage(ctx context.Context, m kafka.Message) bool {
	err := c.handleWithRetry(ctx, m)
	if err == nil {
		return true
	}

	if ctx.Err() != nil {
		// Shutdown посреди обработки: не коммитим, Kafka доставит повторно
		return false
	}

	// Poison pill или исчерпанные retry - отправляем в DLQ и коммитим
	eventType, eventID, entityID := extractEventMeta(m)
	c.logger.Error("failed to handle message, sending to DLQ",
		zap.Error(err),
		zap.String("topic", m.Topic),
		zap.Int("partition", m.Partition),
		zap.Int64("offset", m.Offset),
		zap.String("event_id", eventID),
	)

	if c.dlq == nil {
		// Без DLQ не коммитим: Kafka доставит сообщение повторно
		return false
	}

	if dlqErr := c.dlq.Publish(context.Background(), m, err, eventType, eventID, entityID); dlqErr != nil {
		c.logger.Error("failed to publish to DLQ, not committing",
			zap.Error(dlqErr),
		)
		return false
	}

	return true
}

// handleWithRetry вызывает handler с retry и экспоненциальным backoff (1s, 2s, 4s)
// ParseError не ретраится
func (c *Consumer) handleWithRetry(ctx context.Context, m kafka.Message) error {
	var lastErr error

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			backoff := c.backoffBase * time.Duration(1<<uint(attempt-2))
			c.logger.Info("retrying message",
				zap.String("topic", m.Topic),
				zap.Int64("offset", m.Offset),
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", c.maxAttempts),
				zap.Duration("backoff", backoff),
			)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
				// Продолжаем retry
			}
		}

		err := c.handler(ctx, m)
		if err == nil {
			if attempt > 1 {
				c.logger.Info("message processed successfully after retry",
					zap.String("topic", m.Topic),
					zap.Int64("offset", m.Offset),
					zap.Int("attempt", attempt),
				)
			}
			return nil
		}

		// Некорректное сообщение ретраить бессмысленно
		var parseErr *ParseError
		if errors.As(err, &parseErr) {
			return err
		}

		lastErr = err
		c.logger.Warn("failed to handle message",
			zap.Error(err),
			zap.String("topic", m.Topic),
			zap.Int64("offset", m.Offset),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", c.maxAttempts),
		)
	}

	return fmt.Errorf("exhausted %d retry attempts: %w", c.maxAttempts, lastErr)
}

// extractEventMeta достаёт метаданные события из payload для DLQ (best effort)
func extractEventMeta(m kafka.Message) (eventType, eventID, entityID string) {
	entityID = string(m.Key)

	var payload map[string]interface{}
	if err := json.Unmarshal(m.Value, &payload); err != nil {
		return "", "", entityID
	}
	eventType, _ = payload["event_type"].(string)
	eventID, _ = payload["event_id"].(string)
	return eventType, eventID, entityID
}

// Close закрывает Kafka reader
func (c *Consumer) Close() error {
	c.logger.Info("closing kafka consumer")
	return c.reader.Close()
}
