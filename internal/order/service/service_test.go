package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shestoi/GoFoodSaga/internal/auth/authctx"
	"github.com/shestoi/GoFoodSaga/internal/events"
	"github.com/shestoi/GoFoodSaga/internal/order/domain"
	"github.com/shestoi/GoFoodSaga/internal/order/repository/memory"
	"github.com/shestoi/GoFoodSaga/internal/order/service"
	"github.com/shestoi/GoFoodSaga/internal/order/service/mocks"
	"github.com/shestoi/GoFoodSaga/platform/apperr"
)

// customerCtx возвращает контекст с аутентифицированным покупателем
func customerCtx(userID string) context.Context {
	return authctx.WithUser(context.Background(), authctx.User{ID: userID, Role: authctx.RoleCustomer})
}

func restaurantCtx(userID string) context.Context {
	return authctx.WithUser(context.Background(), authctx.User{ID: userID, Role: authctx.RoleRestaurant})
}

func price(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestOrderService_CreateOrder(t *testing.T) {
	input := service.CreateOrderInput{
		RestaurantID:      "rest-1",
		DeliveryAddressID: "addr-1",
		Items: []service.CreateOrderItemInput{
			{MenuItemID: "item-1", Quantity: 2},
		},
	}

	t.Run("success: prices come from restaurant, not from client", func(t *testing.T) {
		// Arrange
		repo := memory.NewRepository()
		restaurantClient := mocks.NewRestaurantClient(t)
		restaurantClient.On("GetMenuItems", mock.Anything, "rest-1", []string{"item-1"}).
			Return(map[string]service.MenuItem{
				"item-1": {ID: "item-1", Name: "Pad Thai", Price: price("50.00"), Available: true},
			}, nil)
		svc := service.NewOrderService(repo, restaurantClient, zap.NewNop())

		// Act
		order, err := svc.CreateOrder(customerCtx("user-1"), input)

		// Assert
		require.NoError(t, err)
		require.Equal(t, domain.StatusPending, order.Status)
		require.Equal(t, domain.PaymentPending, order.PaymentStatus)
		require.True(t, order.Subtotal.Equal(price("100.00")))
		require.True(t, order.Tax.Equal(price("14.00")))
		require.True(t, order.Total.Equal(price("129.00")))
		require.Equal(t, "Pad Thai", order.Items[0].Name)

		// Заказ сохранён, outbox содержит ровно одно order.created
		stored, err := repo.GetByID(context.Background(), order.ID)
		require.NoError(t, err)
		require.Equal(t, "user-1", stored.CustomerID)

		pending, err := repo.GetPendingOutboxEvents(context.Background(), 10)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		require.Equal(t, events.TopicOrderCreated, pending[0].Topic)
		require.Equal(t, order.ID, pending[0].AggregateID)
	})

	t.Run("error: restaurant unavailable rejects the order", func(t *testing.T) {
		// Arrange
		repo := memory.NewRepository()
		restaurantClient := mocks.NewRestaurantClient(t)
		restaurantClient.On("GetMenuItems", mock.Anything, "rest-1", []string{"item-1"}).
			Return(nil, errors.New("connection refused"))
		svc := service.NewOrderService(repo, restaurantClient, zap.NewNop())

		// Act
		_, err := svc.CreateOrder(customerCtx("user-1"), input)

		// Assert: fail-closed, заказ не создан
		require.Error(t, err)
		require.True(t, apperr.IsUnavailable(err))
		orders, listErr := repo.ListByCustomer(context.Background(), "user-1", 10)
		require.NoError(t, listErr)
		require.Empty(t, orders)
	})

	t.Run("error: unknown menu item", func(t *testing.T) {
		// Arrange
		repo := memory.NewRepository()
		restaurantClient := mocks.NewRestaurantClient(t)
		restaurantClient.On("GetMenuItems", mock.Anything, "rest-1", []string{"item-1"}).
			Return(map[string]service.MenuItem{}, nil)
		svc := service.NewOrderService(repo, restaurantClient, zap.NewNop())

		// Act
		_, err := svc.CreateOrder(customerCtx("user-1"), input)

		// Assert
		require.True(t, apperr.IsValidation(err))
	})

	t.Run("error: empty order", func(t *testing.T) {
		repo := memory.NewRepository()
		svc := service.NewOrderService(repo, mocks.NewRestaurantClient(t), zap.NewNop())

		_, err := svc.CreateOrder(customerCtx("user-1"), service.CreateOrderInput{
			RestaurantID:      "rest-1",
			DeliveryAddressID: "addr-1",
		})

		require.True(t, apperr.IsValidation(err))
	})

	t.Run("error: unauthenticated caller", func(t *testing.T) {
		repo := memory.NewRepository()
		svc := service.NewOrderService(repo, mocks.NewRestaurantClient(t), zap.NewNop())

		_, err := svc.CreateOrder(context.Background(), input)

		require.True(t, apperr.IsUnauthorized(err))
	})
}

// menuClient возвращает мок Restaurant Service с фиксированным меню
func menuClient(t *testing.T, items map[string]service.MenuItem) *mocks.RestaurantClient {
	t.Helper()
	client := mocks.NewRestaurantClient(t)
	client.On("GetMenuItems", mock.Anything, mock.Anything, mock.Anything).
		Return(items, nil).Maybe()
	return client
}

// singleItemMenu — меню из одной доступной позиции за 10.00
func singleItemMenu(t *testing.T) *mocks.RestaurantClient {
	return menuClient(t, map[string]service.MenuItem{
		"i": {ID: "i", Name: "n", Price: price("10.00"), Available: true},
	})
}

func TestOrderService_CreateOrderFromCart(t *testing.T) {
	// Arrange: состав корзины без цен, цены запрашиваются у ресторана
	repo := memory.NewRepository()
	restaurantClient := menuClient(t, map[string]service.MenuItem{
		"item-1": {ID: "item-1", Name: "Tom Yum", Price: price("30.00"), Available: true},
		"item-2": {ID: "item-2", Name: "Rice", Price: price("10.00"), Available: true},
	})
	svc := service.NewOrderService(repo, restaurantClient, zap.NewNop())

	// Act
	order, err := svc.CreateOrderFromCart(context.Background(), service.CreateOrderFromCartInput{
		CustomerID:        "user-7",
		RestaurantID:      "rest-1",
		DeliveryAddressID: "addr-1",
		Items: []service.CreateOrderItemInput{
			{MenuItemID: "item-1", Quantity: 1},
			{MenuItemID: "item-2", Quantity: 2},
		},
	})

	// Assert: subtotal 50.00, tax 7.00, fee 15.00
	require.NoError(t, err)
	require.True(t, order.Total.Equal(price("72.00")))
	require.Equal(t, "user-7", order.CustomerID)
	require.Len(t, order.Items, 2)
	require.Equal(t, "Tom Yum", order.Items[0].Name)
}

func TestOrderService_GetOrder_Ownership(t *testing.T) {
	repo := memory.NewRepository()
	svc := service.NewOrderService(repo, singleItemMenu(t), zap.NewNop())

	order, err := svc.CreateOrderFromCart(context.Background(), service.CreateOrderFromCartInput{
		CustomerID:        "owner",
		RestaurantID:      "rest-1",
		DeliveryAddressID: "addr-1",
		Items:             []service.CreateOrderItemInput{{MenuItemID: "i", Quantity: 1}},
	})
	require.NoError(t, err)

	t.Run("owner reads own order", func(t *testing.T) {
		got, err := svc.GetOrder(customerCtx("owner"), order.ID)
		require.NoError(t, err)
		require.Equal(t, order.ID, got.ID)
	})

	t.Run("foreign customer gets unauthorized", func(t *testing.T) {
		_, err := svc.GetOrder(customerCtx("stranger"), order.ID)
		require.True(t, apperr.IsUnauthorized(err))
	})

	t.Run("admin reads any order", func(t *testing.T) {
		ctx := authctx.WithUser(context.Background(), authctx.User{ID: "root", Role: authctx.RoleAdmin})
		_, err := svc.GetOrder(ctx, order.ID)
		require.NoError(t, err)
	})

	t.Run("unknown order is not found", func(t *testing.T) {
		_, err := svc.GetOrder(customerCtx("owner"), "missing")
		require.True(t, apperr.IsNotFound(err))
	})
}

func TestOrderService_MarkPaid(t *testing.T) {
	newPendingOrder := func(t *testing.T, svc *service.OrderService) domain.Order {
		t.Helper()
		order, err := svc.CreateOrderFromCart(context.Background(), service.CreateOrderFromCartInput{
			CustomerID:        "user-1",
			RestaurantID:      "rest-1",
			DeliveryAddressID: "addr-1",
			Items:             []service.CreateOrderItemInput{{MenuItemID: "i", Quantity: 1}},
		})
		require.NoError(t, err)
		return order
	}

	t.Run("marks paid, confirms order, publishes exactly one order.confirmed", func(t *testing.T) {
		// Arrange
		repo := memory.NewRepository()
		svc := service.NewOrderService(repo, singleItemMenu(t), zap.NewNop())
		order := newPendingOrder(t, svc)

		// Act
		require.NoError(t, svc.MarkPaid(context.Background(), order.ID))

		// Assert
		stored, err := repo.GetByID(context.Background(), order.ID)
		require.NoError(t, err)
		require.Equal(t, domain.StatusConfirmed, stored.Status)
		require.Equal(t, domain.PaymentPaid, stored.PaymentStatus)

		pending, err := repo.GetPendingOutboxEvents(context.Background(), 10)
		require.NoError(t, err)
		confirmed := 0
		for _, event := range pending {
			if event.Topic == events.TopicOrderConfirmed {
				confirmed++
			}
		}
		require.Equal(t, 1, confirmed)
	})

	t.Run("second call is a no-op", func(t *testing.T) {
		// Arrange
		repo := memory.NewRepository()
		svc := service.NewOrderService(repo, singleItemMenu(t), zap.NewNop())
		order := newPendingOrder(t, svc)
		require.NoError(t, svc.MarkPaid(context.Background(), order.ID))

		// Act: повторная доставка payment.confirmed
		require.NoError(t, svc.MarkPaid(context.Background(), order.ID))

		// Assert: order.confirmed опубликовано ровно один раз
		pending, err := repo.GetPendingOutboxEvents(context.Background(), 10)
		require.NoError(t, err)
		confirmed := 0
		for _, event := range pending {
			if event.Topic == events.TopicOrderConfirmed {
				confirmed++
			}
		}
		require.Equal(t, 1, confirmed)
	})

	t.Run("mark paid after refund is a no-op", func(t *testing.T) {
		// Arrange: оплатили и отменили (оплата ушла в REFUNDED)
		repo := memory.NewRepository()
		svc := service.NewOrderService(repo, singleItemMenu(t), zap.NewNop())
		order := newPendingOrder(t, svc)
		require.NoError(t, svc.MarkPaid(context.Background(), order.ID))
		adminCtx := authctx.WithUser(context.Background(), authctx.User{ID: "root", Role: authctx.RoleAdmin})
		_, err := svc.UpdateStatus(adminCtx, service.UpdateStatusInput{OrderID: order.ID, Status: domain.StatusCancelled, Reason: "test"})
		require.NoError(t, err)

		// Act: запоздалый retry payment.confirmed
		err = svc.MarkPaid(context.Background(), order.ID)

		// Assert
		require.NoError(t, err)
		stored, err := repo.GetByID(context.Background(), order.ID)
		require.NoError(t, err)
		require.Equal(t, domain.PaymentRefunded, stored.PaymentStatus)
	})

	t.Run("payment confirmed after cancellation converges without conflict", func(t *testing.T) {
		// Arrange: покупатель отменил заказ между созданием платежа
		// и подтверждением оплаты
		repo := memory.NewRepository()
		svc := service.NewOrderService(repo, singleItemMenu(t), zap.NewNop())
		order := newPendingOrder(t, svc)
		_, err := svc.UpdateStatus(customerCtx("user-1"), service.UpdateStatusInput{OrderID: order.ID, Status: domain.StatusCancelled, Reason: "changed my mind"})
		require.NoError(t, err)

		// Act: payment.confirmed догоняет уже отменённый заказ
		err = svc.MarkPaid(context.Background(), order.ID)

		// Assert: оплата зафиксирована к возврату, заказ остаётся CANCELLED,
		// order.confirmed не публикуется; retry тоже сходится без ошибки
		require.NoError(t, err)
		stored, err := repo.GetByID(context.Background(), order.ID)
		require.NoError(t, err)
		require.Equal(t, domain.StatusCancelled, stored.Status)
		require.Equal(t, domain.PaymentRefunded, stored.PaymentStatus)

		pending, err := repo.GetPendingOutboxEvents(context.Background(), 10)
		require.NoError(t, err)
		for _, event := range pending {
			require.NotEqual(t, events.TopicOrderConfirmed, event.Topic)
		}

		require.NoError(t, svc.MarkPaid(context.Background(), order.ID))
	})
}

func TestOrderService_UpdateStatus(t *testing.T) {
	setup := func(t *testing.T) (*memory.Repository, *service.OrderService, domain.Order) {
		t.Helper()
		repo := memory.NewRepository()
		svc := service.NewOrderService(repo, singleItemMenu(t), zap.NewNop())
		order, err := svc.CreateOrderFromCart(context.Background(), service.CreateOrderFromCartInput{
			CustomerID:        "user-1",
			RestaurantID:      "rest-1",
			DeliveryAddressID: "addr-1",
			Items:             []service.CreateOrderItemInput{{MenuItemID: "i", Quantity: 1}},
		})
		require.NoError(t, err)
		return repo, svc, order
	}

	t.Run("restaurant walks kitchen statuses, READY_FOR_PICKUP emits order.ready", func(t *testing.T) {
		// Arrange
		repo, svc, order := setup(t)
		require.NoError(t, svc.MarkPaid(context.Background(), order.ID))
		ctx := restaurantCtx("rest-staff")

		// Act
		_, err := svc.UpdateStatus(ctx, service.UpdateStatusInput{OrderID: order.ID, Status: domain.StatusPreparing})
		require.NoError(t, err)
		updated, err := svc.UpdateStatus(ctx, service.UpdateStatusInput{OrderID: order.ID, Status: domain.StatusReadyForPickup})

		// Assert
		require.NoError(t, err)
		require.Equal(t, domain.StatusReadyForPickup, updated.Status)

		pending, err := repo.GetPendingOutboxEvents(context.Background(), 10)
		require.NoError(t, err)
		ready := 0
		for _, event := range pending {
			if event.Topic == events.TopicOrderReady {
				ready++
			}
		}
		require.Equal(t, 1, ready)
	})

	t.Run("illegal transition is a conflict", func(t *testing.T) {
		_, svc, order := setup(t)

		// PENDING -> READY_FOR_PICKUP вне таблицы переходов
		_, err := svc.UpdateStatus(restaurantCtx("rest-staff"), service.UpdateStatusInput{
			OrderID: order.ID, Status: domain.StatusReadyForPickup,
		})

		require.True(t, apperr.IsConflict(err))
	})

	t.Run("customer cancels own pending order", func(t *testing.T) {
		repo, svc, order := setup(t)

		updated, err := svc.UpdateStatus(customerCtx("user-1"), service.UpdateStatusInput{
			OrderID: order.ID, Status: domain.StatusCancelled, Reason: "changed my mind",
		})

		require.NoError(t, err)
		require.Equal(t, domain.StatusCancelled, updated.Status)

		pending, err := repo.GetPendingOutboxEvents(context.Background(), 10)
		require.NoError(t, err)
		found := false
		for _, event := range pending {
			if event.Topic == events.TopicOrderCancelled {
				found = true
			}
		}
		require.True(t, found)
	})

	t.Run("customer cannot confirm order", func(t *testing.T) {
		_, svc, order := setup(t)

		_, err := svc.UpdateStatus(customerCtx("user-1"), service.UpdateStatusInput{
			OrderID: order.ID, Status: domain.StatusConfirmed,
		})

		require.True(t, apperr.IsUnauthorized(err))
	})

	t.Run("foreign customer cannot cancel", func(t *testing.T) {
		_, svc, order := setup(t)

		_, err := svc.UpdateStatus(customerCtx("stranger"), service.UpdateStatusInput{
			OrderID: order.ID, Status: domain.StatusCancelled,
		})

		require.True(t, apperr.IsUnauthorized(err))
	})

	t.Run("cancelling a paid order refunds payment status", func(t *testing.T) {
		repo, svc, order := setup(t)
		require.NoError(t, svc.MarkPaid(context.Background(), order.ID))

		_, err := svc.UpdateStatus(restaurantCtx("rest-staff"), service.UpdateStatusInput{
			OrderID: order.ID, Status: domain.StatusCancelled, Reason: "out of stock",
		})
		require.NoError(t, err)

		stored, err := repo.GetByID(context.Background(), order.ID)
		require.NoError(t, err)
		require.Equal(t, domain.PaymentRefunded, stored.PaymentStatus)
	})
}

func TestOrderService_ApplyDeliveryStatus(t *testing.T) {
	repo := memory.NewRepository()
	svc := service.NewOrderService(repo, singleItemMenu(t), zap.NewNop())
	order, err := svc.CreateOrderFromCart(context.Background(), service.CreateOrderFromCartInput{
		CustomerID:        "user-1",
		RestaurantID:      "rest-1",
		DeliveryAddressID: "addr-1",
		Items:             []service.CreateOrderItemInput{{MenuItemID: "i", Quantity: 1}},
	})
	require.NoError(t, err)
	require.NoError(t, svc.MarkPaid(context.Background(), order.ID))

	ctx := restaurantCtx("rest-staff")
	_, err = svc.UpdateStatus(ctx, service.UpdateStatusInput{OrderID: order.ID, Status: domain.StatusPreparing})
	require.NoError(t, err)
	_, err = svc.UpdateStatus(ctx, service.UpdateStatusInput{OrderID: order.ID, Status: domain.StatusReadyForPickup})
	require.NoError(t, err)

	// События доставки двигают заказ до DELIVERED
	require.NoError(t, svc.ApplyDeliveryStatus(context.Background(), order.ID, domain.StatusPickedUp))
	require.NoError(t, svc.ApplyDeliveryStatus(context.Background(), order.ID, domain.StatusOnTheWay))
	require.NoError(t, svc.ApplyDeliveryStatus(context.Background(), order.ID, domain.StatusDelivered))

	stored, err := repo.GetByID(context.Background(), order.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusDelivered, stored.Status)
	require.NotNil(t, stored.ActualDeliveryTime)

	// Дубликат события - no-op
	require.NoError(t, svc.ApplyDeliveryStatus(context.Background(), order.ID, domain.StatusDelivered))

	require.True(t, apperr.IsNotFound(svc.ApplyDeliveryStatus(context.Background(), "missing", domain.StatusPickedUp)))
}
