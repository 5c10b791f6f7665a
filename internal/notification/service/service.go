// Package service содержит бизнес-логику Notification Service: запись
// уведомлений по событиям саги и выдача ленты уведомлений пользователю.
package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shestoi/GoFoodSaga/internal/auth"
	"github.com/shestoi/GoFoodSaga/internal/notification/domain"
	"github.com/shestoi/GoFoodSaga/internal/notification/repository"
	"github.com/shestoi/GoFoodSaga/platform/apperr"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// NotificationService содержит бизнес-логику работы с уведомлениями
type NotificationService struct {
	notificationRepo repository.NotificationRepository
	logger           *zap.Logger
}

// NewNotificationService создаёт новый экземпляр NotificationService
func NewNotificationService(notificationRepo repository.NotificationRepository, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		notificationRepo: notificationRepo,
		logger:           logger,
	}
}

// RecordInput содержит входные данные записи уведомления
type RecordInput struct {
	UserID  string
	Type    string
	Title   string
	Message string
	OrderID string
	Marker  repository.InboxMarker
}

// Record записывает уведомление пользователю. Идемпотентность держится
// на inbox маркере: повторное событие не порождает второй строки
func (s *NotificationService) Record(ctx context.Context, input RecordInput) error {
	if input.UserID == "" {
		return apperr.Validation("user id is required")
	}
	if input.Marker.EventID == "" {
		return apperr.Validation("event id is required")
	}

	notification := domain.Notification{
		ID:        uuid.NewString(),
		UserID:    input.UserID,
		Type:      input.Type,
		Title:     input.Title,
		Message:   input.Message,
		OrderID:   input.OrderID,
		CreatedAt: time.Now().UTC(),
	}

	inserted, err := s.notificationRepo.CreateWithInbox(ctx, notification, input.Marker)
	if err != nil {
		return err
	}
	if !inserted {
		s.logger.Info("event already processed (duplicate)",
			zap.String("event_id", input.Marker.EventID),
			zap.String("event_type", input.Marker.EventType))
		return nil
	}

	s.logger.Info("notification recorded",
		zap.String("notification_id", notification.ID),
		zap.String("user_id", notification.UserID),
		zap.String("type", notification.Type))
	return nil
}

// ListNotifications возвращает уведомления вызывающего, новые первыми
func (s *NotificationService) ListNotifications(ctx context.Context, limit int) ([]domain.Notification, error) {
	caller, err := auth.Caller(ctx)
	if err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	return s.notificationRepo.ListByUser(ctx, caller.ID, limit)
}
