package service_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shestoi/GoFoodSaga/internal/auth/authctx"
	"github.com/shestoi/GoFoodSaga/internal/notification/repository"
	"github.com/shestoi/GoFoodSaga/internal/notification/repository/memory"
	"github.com/shestoi/GoFoodSaga/internal/notification/service"
	"github.com/shestoi/GoFoodSaga/platform/apperr"
)

// customerCtx возвращает контекст с аутентифицированным покупателем
func customerCtx(userID string) context.Context {
	return authctx.WithUser(context.Background(), authctx.User{ID: userID, Role: authctx.RoleCustomer})
}

func recordInput(userID, eventID, title string) service.RecordInput {
	return service.RecordInput{
		UserID:  userID,
		Type:    "order.confirmed",
		Title:   title,
		Message: "Your order is confirmed.",
		OrderID: "order-1",
		Marker: repository.InboxMarker{
			EventID:   eventID,
			EventType: "order.confirmed",
			EntityID:  "order-1",
			Topic:     "order.confirmed",
		},
	}
}

func TestNotificationService_Record(t *testing.T) {
	t.Run("success: notification lands in the user's feed", func(t *testing.T) {
		// Arrange
		repo := memory.NewRepository()
		svc := service.NewNotificationService(repo, zap.NewNop())

		// Act
		err := svc.Record(context.Background(), recordInput("user-1", "evt-1", "Order confirmed"))

		// Assert
		require.NoError(t, err)
		stored, err := repo.ListByUser(context.Background(), "user-1", 10)
		require.NoError(t, err)
		require.Len(t, stored, 1)
		require.Equal(t, "Order confirmed", stored[0].Title)
		require.Equal(t, "order-1", stored[0].OrderID)
	})

	t.Run("duplicate event does not create a second row", func(t *testing.T) {
		// Arrange
		repo := memory.NewRepository()
		svc := service.NewNotificationService(repo, zap.NewNop())
		require.NoError(t, svc.Record(context.Background(), recordInput("user-1", "evt-1", "Order confirmed")))

		// Act
		err := svc.Record(context.Background(), recordInput("user-1", "evt-1", "Order confirmed"))

		// Assert
		require.NoError(t, err)
		stored, err := repo.ListByUser(context.Background(), "user-1", 10)
		require.NoError(t, err)
		require.Len(t, stored, 1)
	})

	t.Run("error: user id is required", func(t *testing.T) {
		// Arrange
		svc := service.NewNotificationService(memory.NewRepository(), zap.NewNop())

		// Act
		err := svc.Record(context.Background(), recordInput("", "evt-1", "Order confirmed"))

		// Assert
		require.Error(t, err)
		require.True(t, apperr.IsValidation(err))
	})

	t.Run("error: event id is required", func(t *testing.T) {
		// Arrange
		svc := service.NewNotificationService(memory.NewRepository(), zap.NewNop())

		// Act
		err := svc.Record(context.Background(), recordInput("user-1", "", "Order confirmed"))

		// Assert
		require.Error(t, err)
		require.True(t, apperr.IsValidation(err))
	})
}

func TestNotificationService_ListNotifications(t *testing.T) {
	t.Run("caller sees only their own notifications, newest first", func(t *testing.T) {
		// Arrange
		repo := memory.NewRepository()
		svc := service.NewNotificationService(repo, zap.NewNop())
		require.NoError(t, svc.Record(context.Background(), recordInput("user-1", "evt-1", "First")))
		require.NoError(t, svc.Record(context.Background(), recordInput("user-1", "evt-2", "Second")))
		require.NoError(t, svc.Record(context.Background(), recordInput("user-2", "evt-3", "Foreign")))

		// Act
		notifications, err := svc.ListNotifications(customerCtx("user-1"), 0)

		// Assert
		require.NoError(t, err)
		require.Len(t, notifications, 2)
		for _, n := range notifications {
			require.Equal(t, "user-1", n.UserID)
		}
		require.False(t, notifications[0].CreatedAt.Before(notifications[1].CreatedAt))
	})

	t.Run("limit caps the feed", func(t *testing.T) {
		// Arrange
		repo := memory.NewRepository()
		svc := service.NewNotificationService(repo, zap.NewNop())
		for i := 0; i < 5; i++ {
			eventID := fmt.Sprintf("evt-%d", i)
			require.NoError(t, svc.Record(context.Background(), recordInput("user-1", eventID, "Order confirmed")))
		}

		// Act
		notifications, err := svc.ListNotifications(customerCtx("user-1"), 3)

		// Assert
		require.NoError(t, err)
		require.Len(t, notifications, 3)
	})

	t.Run("error: authentication required", func(t *testing.T) {
		// Arrange
		svc := service.NewNotificationService(memory.NewRepository(), zap.NewNop())

		// Act
		_, err := svc.ListNotifications(context.Background(), 0)

		// Assert
		require.Error(t, err)
		require.True(t, apperr.IsUnauthorized(err))
	})
}
