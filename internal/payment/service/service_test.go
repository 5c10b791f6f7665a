package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shestoi/GoFoodSaga/internal/auth/authctx"
	"github.com/shestoi/GoFoodSaga/internal/events"
	"github.com/shestoi/GoFoodSaga/internal/payment/domain"
	"github.com/shestoi/GoFoodSaga/internal/payment/repository/memory"
	"github.com/shestoi/GoFoodSaga/internal/payment/service"
	"github.com/shestoi/GoFoodSaga/internal/payment/service/mocks"
	"github.com/shestoi/GoFoodSaga/platform/apperr"
)

// customerCtx возвращает контекст с аутентифицированным покупателем
func customerCtx(userID string) context.Context {
	return authctx.WithUser(context.Background(), authctx.User{ID: userID, Role: authctx.RoleCustomer})
}

func adminCtx(userID string) context.Context {
	return authctx.WithUser(context.Background(), authctx.User{ID: userID, Role: authctx.RoleAdmin})
}

func price(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func summary(orderID, customerID, total string) service.OrderSummary {
	return service.OrderSummary{
		OrderID:    orderID,
		CustomerID: customerID,
		Total:      price(total),
		Status:     "PENDING",
	}
}

func TestPaymentService_CreatePayment(t *testing.T) {
	t.Run("success: amount comes from the order, not from the client", func(t *testing.T) {
		// Arrange
		repo := memory.NewRepository()
		orderClient := mocks.NewOrderClient(t)
		orderClient.On("GetOrderSummary", mock.Anything, "order-1").
			Return(summary("order-1", "user-1", "129.00"), nil)
		svc := service.NewPaymentService(repo, orderClient, zap.NewNop())

		// Act
		payment, err := svc.CreatePayment(customerCtx("user-1"), service.CreatePaymentInput{
			OrderID: "order-1",
			Method:  domain.MethodCard,
		})

		// Assert
		require.NoError(t, err)
		require.Equal(t, domain.StatusPending, payment.Status)
		require.Equal(t, "user-1", payment.UserID)
		require.True(t, payment.Amount.Equal(price("129.00")))

		stored, err := repo.GetByID(context.Background(), payment.ID)
		require.NoError(t, err)
		require.Equal(t, "order-1", stored.OrderID)
	})

	t.Run("error: stranger cannot pay for someone else's order", func(t *testing.T) {
		// Arrange
		repo := memory.NewRepository()
		orderClient := mocks.NewOrderClient(t)
		orderClient.On("GetOrderSummary", mock.Anything, "order-1").
			Return(summary("order-1", "user-1", "129.00"), nil)
		svc := service.NewPaymentService(repo, orderClient, zap.NewNop())

		// Act
		_, err := svc.CreatePayment(customerCtx("intruder"), service.CreatePaymentInput{
			OrderID: "order-1",
			Method:  domain.MethodCard,
		})

		// Assert
		require.Error(t, err)
		require.True(t, apperr.IsUnauthorized(err))
	})

	t.Run("error: order service down rejects the payment", func(t *testing.T) {
		// Arrange
		repo := memory.NewRepository()
		orderClient := mocks.NewOrderClient(t)
		orderClient.On("GetOrderSummary", mock.Anything, "order-1").
			Return(service.OrderSummary{}, errors.New("connection refused"))
		svc := service.NewPaymentService(repo, orderClient, zap.NewNop())

		// Act
		_, err := svc.CreatePayment(customerCtx("user-1"), service.CreatePaymentInput{
			OrderID: "order-1",
			Method:  domain.MethodCard,
		})

		// Assert
		require.Error(t, err)
		require.True(t, apperr.IsUnavailable(err))
	})

	t.Run("error: unknown payment method", func(t *testing.T) {
		// Arrange
		repo := memory.NewRepository()
		svc := service.NewPaymentService(repo, mocks.NewOrderClient(t), zap.NewNop())

		// Act
		_, err := svc.CreatePayment(customerCtx("user-1"), service.CreatePaymentInput{
			OrderID: "order-1",
			Method:  domain.Method("BARTER"),
		})

		// Assert
		require.Error(t, err)
		require.True(t, apperr.IsValidation(err))
	})

	t.Run("error: second payment for the same order is a conflict", func(t *testing.T) {
		// Arrange
		repo := memory.NewRepository()
		orderClient := mocks.NewOrderClient(t)
		orderClient.On("GetOrderSummary", mock.Anything, "order-1").
			Return(summary("order-1", "user-1", "129.00"), nil)
		svc := service.NewPaymentService(repo, orderClient, zap.NewNop())

		_, err := svc.CreatePayment(customerCtx("user-1"), service.CreatePaymentInput{
			OrderID: "order-1", Method: domain.MethodCard,
		})
		require.NoError(t, err)

		// Act
		_, err = svc.CreatePayment(customerCtx("user-1"), service.CreatePaymentInput{
			OrderID: "order-1", Method: domain.MethodCash,
		})

		// Assert
		require.Error(t, err)
		require.True(t, apperr.IsConflict(err))
	})
}

// TestPaymentService_CreatePayment_Race проверяет, что из N одновременных
// созданий платежа на один заказ выигрывает ровно одно
func TestPaymentService_CreatePayment_Race(t *testing.T) {
	// Arrange
	const goroutines = 16

	repo := memory.NewRepository()
	orderClient := mocks.NewOrderClient(t)
	orderClient.On("GetOrderSummary", mock.Anything, "order-1").
		Return(summary("order-1", "user-1", "129.00"), nil)
	svc := service.NewPaymentService(repo, orderClient, zap.NewNop())

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		created   int
		conflicts int
	)

	// Act
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.CreatePayment(customerCtx("user-1"), service.CreatePaymentInput{
				OrderID: "order-1",
				Method:  domain.MethodCard,
			})

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case apperr.IsConflict(err):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	// Assert
	require.Equal(t, 1, created)
	require.Equal(t, goroutines-1, conflicts)
}

// createPending создаёт PENDING платёж напрямую в репозитории
func createPending(t *testing.T, repo *memory.Repository, orderID, userID string) domain.Payment {
	t.Helper()

	now := time.Now().UTC()
	payment := domain.Payment{
		ID:        uuid.NewString(),
		OrderID:   orderID,
		UserID:    userID,
		Amount:    price("129.00"),
		Method:    domain.MethodCard,
		Status:    domain.StatusPending,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, repo.Create(context.Background(), payment))
	return payment
}

func TestPaymentService_ConfirmPayment(t *testing.T) {
	t.Run("success: publishes exactly one payment.confirmed and notifies order service", func(t *testing.T) {
		// Arrange
		repo := memory.NewRepository()
		pending := createPending(t, repo, "order-1", "user-1")

		orderClient := mocks.NewOrderClient(t)
		orderClient.On("MarkOrderPaid", mock.Anything, "order-1").Return(nil).Once()
		svc := service.NewPaymentService(repo, orderClient, zap.NewNop())

		// Act
		payment, err := svc.ConfirmPayment(customerCtx("user-1"), pending.ID)

		// Assert
		require.NoError(t, err)
		require.Equal(t, domain.StatusConfirmed, payment.Status)

		outbox, err := repo.GetPendingOutboxEvents(context.Background(), 10)
		require.NoError(t, err)
		require.Len(t, outbox, 1)
		require.Equal(t, events.TopicPaymentConfirmed, outbox[0].Topic)
		require.Equal(t, "order-1", outbox[0].AggregateID)
	})

	t.Run("sync mark-paid failure does not roll back the confirmation", func(t *testing.T) {
		// Arrange
		repo := memory.NewRepository()
		pending := createPending(t, repo, "order-1", "user-1")

		orderClient := mocks.NewOrderClient(t)
		orderClient.On("MarkOrderPaid", mock.Anything, "order-1").
			Return(errors.New("order service timeout"))
		svc := service.NewPaymentService(repo, orderClient, zap.NewNop())

		// Act
		payment, err := svc.ConfirmPayment(customerCtx("user-1"), pending.ID)

		// Assert: платёж подтверждён, событие в outbox доведёт заказ
		require.NoError(t, err)
		require.Equal(t, domain.StatusConfirmed, payment.Status)

		stored, err := repo.GetByID(context.Background(), pending.ID)
		require.NoError(t, err)
		require.Equal(t, domain.StatusConfirmed, stored.Status)

		outbox, err := repo.GetPendingOutboxEvents(context.Background(), 10)
		require.NoError(t, err)
		require.Len(t, outbox, 1)
	})

	t.Run("error: stranger cannot confirm someone else's payment", func(t *testing.T) {
		// Arrange
		repo := memory.NewRepository()
		pending := createPending(t, repo, "order-1", "user-1")
		svc := service.NewPaymentService(repo, mocks.NewOrderClient(t), zap.NewNop())

		// Act
		_, err := svc.ConfirmPayment(customerCtx("intruder"), pending.ID)

		// Assert
		require.Error(t, err)
		require.True(t, apperr.IsUnauthorized(err))
	})

	t.Run("error: cancelled payment cannot be confirmed", func(t *testing.T) {
		// Arrange
		repo := memory.NewRepository()
		pending := createPending(t, repo, "order-1", "user-1")
		svc := service.NewPaymentService(repo, mocks.NewOrderClient(t), zap.NewNop())

		_, err := svc.CancelPayment(customerCtx("user-1"), pending.ID)
		require.NoError(t, err)

		// Act
		_, err = svc.ConfirmPayment(customerCtx("user-1"), pending.ID)

		// Assert
		require.Error(t, err)
		require.True(t, apperr.IsConflict(err))
	})
}

func TestPaymentService_CancelPayment(t *testing.T) {
	// Arrange
	repo := memory.NewRepository()
	pending := createPending(t, repo, "order-1", "user-1")
	svc := service.NewPaymentService(repo, mocks.NewOrderClient(t), zap.NewNop())

	// Act
	payment, err := svc.CancelPayment(customerCtx("user-1"), pending.ID)

	// Assert: отмена не публикует событий
	require.NoError(t, err)
	require.Equal(t, domain.StatusCancelled, payment.Status)

	outbox, err := repo.GetPendingOutboxEvents(context.Background(), 10)
	require.NoError(t, err)
	require.Empty(t, outbox)
}

func TestPaymentService_FailPayment(t *testing.T) {
	// Arrange
	repo := memory.NewRepository()
	pending := createPending(t, repo, "order-1", "user-1")
	svc := service.NewPaymentService(repo, mocks.NewOrderClient(t), zap.NewNop())

	// Act
	payment, err := svc.FailPayment(customerCtx("user-1"), service.FailPaymentInput{
		PaymentID: pending.ID,
		Reason:    "insufficient funds",
	})

	// Assert
	require.NoError(t, err)
	require.Equal(t, domain.StatusFailed, payment.Status)

	outbox, err := repo.GetPendingOutboxEvents(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, outbox, 1)
	require.Equal(t, events.TopicPaymentFailed, outbox[0].Topic)
}

func TestPaymentService_RefundPayment(t *testing.T) {
	confirm := func(t *testing.T, repo *memory.Repository, svc *service.PaymentService, paymentID string) {
		t.Helper()
		_, err := svc.ConfirmPayment(customerCtx("user-1"), paymentID)
		require.NoError(t, err)
	}

	t.Run("success: admin refunds a confirmed payment", func(t *testing.T) {
		// Arrange
		repo := memory.NewRepository()
		pending := createPending(t, repo, "order-1", "user-1")

		orderClient := mocks.NewOrderClient(t)
		orderClient.On("MarkOrderPaid", mock.Anything, "order-1").Return(nil)
		svc := service.NewPaymentService(repo, orderClient, zap.NewNop())
		confirm(t, repo, svc, pending.ID)

		// Act
		payment, err := svc.RefundPayment(adminCtx("admin-1"), pending.ID)

		// Assert
		require.NoError(t, err)
		require.Equal(t, domain.StatusRefunded, payment.Status)

		outbox, err := repo.GetPendingOutboxEvents(context.Background(), 10)
		require.NoError(t, err)
		require.Len(t, outbox, 2)
		require.Equal(t, events.TopicPaymentRefunded, outbox[1].Topic)
	})

	t.Run("error: owner is not allowed to refund", func(t *testing.T) {
		// Arrange
		repo := memory.NewRepository()
		pending := createPending(t, repo, "order-1", "user-1")

		orderClient := mocks.NewOrderClient(t)
		orderClient.On("MarkOrderPaid", mock.Anything, "order-1").Return(nil)
		svc := service.NewPaymentService(repo, orderClient, zap.NewNop())
		confirm(t, repo, svc, pending.ID)

		// Act
		_, err := svc.RefundPayment(customerCtx("user-1"), pending.ID)

		// Assert
		require.Error(t, err)
		require.True(t, apperr.IsUnauthorized(err))
	})

	t.Run("error: pending payment cannot be refunded", func(t *testing.T) {
		// Arrange
		repo := memory.NewRepository()
		pending := createPending(t, repo, "order-1", "user-1")
		svc := service.NewPaymentService(repo, mocks.NewOrderClient(t), zap.NewNop())

		// Act
		_, err := svc.RefundPayment(adminCtx("admin-1"), pending.ID)

		// Assert
		require.Error(t, err)
		require.True(t, apperr.IsConflict(err))
	})
}

func TestPaymentService_RefundByOrder(t *testing.T) {
	t.Run("confirmed payment gets refunded with exactly one event", func(t *testing.T) {
		// Arrange
		repo := memory.NewRepository()
		pending := createPending(t, repo, "order-1", "user-1")

		orderClient := mocks.NewOrderClient(t)
		orderClient.On("MarkOrderPaid", mock.Anything, "order-1").Return(nil)
		svc := service.NewPaymentService(repo, orderClient, zap.NewNop())

		_, err := svc.ConfirmPayment(customerCtx("user-1"), pending.ID)
		require.NoError(t, err)

		// Act: первый refund возвращает деньги, второй — no-op
		require.NoError(t, svc.RefundByOrder(context.Background(), "order-1"))
		require.NoError(t, svc.RefundByOrder(context.Background(), "order-1"))

		// Assert
		stored, err := repo.GetByID(context.Background(), pending.ID)
		require.NoError(t, err)
		require.Equal(t, domain.StatusRefunded, stored.Status)

		refunded := 0
		outbox, err := repo.GetPendingOutboxEvents(context.Background(), 10)
		require.NoError(t, err)
		for _, event := range outbox {
			if event.Topic == events.TopicPaymentRefunded {
				refunded++
			}
		}
		require.Equal(t, 1, refunded)
	})

	t.Run("no payment for the order is a no-op", func(t *testing.T) {
		// Arrange
		repo := memory.NewRepository()
		svc := service.NewPaymentService(repo, mocks.NewOrderClient(t), zap.NewNop())

		// Act & Assert
		require.NoError(t, svc.RefundByOrder(context.Background(), "order-unknown"))
	})

	t.Run("pending payment stays pending", func(t *testing.T) {
		// Arrange
		repo := memory.NewRepository()
		pending := createPending(t, repo, "order-1", "user-1")
		svc := service.NewPaymentService(repo, mocks.NewOrderClient(t), zap.NewNop())

		// Act
		require.NoError(t, svc.RefundByOrder(context.Background(), "order-1"))

		// Assert
		stored, err := repo.GetByID(context.Background(), pending.ID)
		require.NoError(t, err)
		require.Equal(t, domain.StatusPending, stored.Status)
	})
}
