package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shestoi/GoFoodSaga/internal/auth/authctx"
	"github.com/shestoi/GoFoodSaga/internal/cart/domain"
	"github.com/shestoi/GoFoodSaga/internal/cart/repository/memory"
	"github.com/shestoi/GoFoodSaga/internal/cart/service"
	"github.com/shestoi/GoFoodSaga/internal/cart/service/mocks"
	"github.com/shestoi/GoFoodSaga/platform/apperr"
)

const cartTTL = 24 * time.Hour

// customerCtx возвращает контекст с аутентифицированным покупателем
func customerCtx(userID string) context.Context {
	return authctx.WithUser(context.Background(), authctx.User{ID: userID, Role: authctx.RoleCustomer})
}

func price(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// deps — зависимости CartService с моками клиентов
type deps struct {
	repo       *memory.Repository
	profile    *mocks.ProfileClient
	restaurant *mocks.RestaurantClient
	order      *mocks.OrderClient
}

func newService(t *testing.T) (*service.CartService, deps) {
	t.Helper()
	d := deps{
		repo:       memory.NewRepository(),
		profile:    mocks.NewProfileClient(t),
		restaurant: mocks.NewRestaurantClient(t),
		order:      mocks.NewOrderClient(t),
	}
	svc := service.NewCartService(d.repo, d.profile, d.restaurant, d.order, cartTTL, zap.NewNop())
	return svc, d
}

// menuOf настраивает мок ресторана на выдачу указанных позиций
func menuOf(d deps, items map[string]service.MenuItem) {
	d.restaurant.On("GetMenuItems", mock.Anything, mock.Anything, mock.Anything).
		Return(items, nil).Maybe()
}

func TestCartService_AddItem(t *testing.T) {
	t.Run("first item creates the cart with cached name and price", func(t *testing.T) {
		// Arrange
		svc, d := newService(t)
		menuOf(d, map[string]service.MenuItem{
			"i1": {ID: "i1", Name: "Pad Thai", Price: price("50.00"), Available: true},
		})

		// Act
		cart, err := svc.AddItem(customerCtx("user-1"), service.AddItemInput{
			RestaurantID: "rest-7", MenuItemID: "i1", Quantity: 2,
		})

		// Assert
		require.NoError(t, err)
		require.Equal(t, "rest-7", cart.RestaurantID)
		require.Equal(t, "Pad Thai", cart.Items[0].Name)
		require.True(t, cart.Subtotal().Equal(price("100.00")))

		stored, err := d.repo.Get(context.Background(), "user-1")
		require.NoError(t, err)
		require.Len(t, stored.Items, 1)
		require.False(t, stored.ExpiresAt.IsZero())
	})

	t.Run("foreign restaurant item leaves the cart unchanged", func(t *testing.T) {
		// Arrange
		svc, d := newService(t)
		menuOf(d, map[string]service.MenuItem{
			"i1": {ID: "i1", Name: "Pad Thai", Price: price("50.00"), Available: true},
			"i2": {ID: "i2", Name: "Burger", Price: price("30.00"), Available: true},
		})
		_, err := svc.AddItem(customerCtx("user-1"), service.AddItemInput{
			RestaurantID: "rest-7", MenuItemID: "i1", Quantity: 1,
		})
		require.NoError(t, err)

		// Act
		_, err = svc.AddItem(customerCtx("user-1"), service.AddItemInput{
			RestaurantID: "rest-8", MenuItemID: "i2", Quantity: 1,
		})

		// Assert
		require.True(t, apperr.IsConflict(err))
		stored, err := d.repo.Get(context.Background(), "user-1")
		require.NoError(t, err)
		require.Equal(t, "rest-7", stored.RestaurantID)
		require.Len(t, stored.Items, 1)
	})

	t.Run("unavailable item is rejected at add time", func(t *testing.T) {
		// Arrange
		svc, d := newService(t)
		menuOf(d, map[string]service.MenuItem{
			"i1": {ID: "i1", Name: "Pad Thai", Price: price("50.00"), Available: false},
		})

		// Act
		_, err := svc.AddItem(customerCtx("user-1"), service.AddItemInput{
			RestaurantID: "rest-7", MenuItemID: "i1", Quantity: 1,
		})

		// Assert
		require.True(t, apperr.IsValidation(err))
	})

	t.Run("restaurant outage rejects the add", func(t *testing.T) {
		// Arrange
		svc, d := newService(t)
		d.restaurant.On("GetMenuItems", mock.Anything, mock.Anything, mock.Anything).
			Return(nil, errors.New("connection refused"))

		// Act
		_, err := svc.AddItem(customerCtx("user-1"), service.AddItemInput{
			RestaurantID: "rest-7", MenuItemID: "i1", Quantity: 1,
		})

		// Assert
		require.True(t, apperr.IsUnavailable(err))
	})
}

func TestCartService_RemoveItem(t *testing.T) {
	// Arrange: две позиции в корзине
	svc, d := newService(t)
	menuOf(d, map[string]service.MenuItem{
		"i1": {ID: "i1", Name: "Pad Thai", Price: price("50.00"), Available: true},
		"i2": {ID: "i2", Name: "Rice", Price: price("10.00"), Available: true},
	})
	ctx := customerCtx("user-1")
	_, err := svc.AddItem(ctx, service.AddItemInput{RestaurantID: "rest-7", MenuItemID: "i1", Quantity: 1})
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, service.AddItemInput{RestaurantID: "rest-7", MenuItemID: "i2", Quantity: 1})
	require.NoError(t, err)

	// Act: удаляем обе
	_, err = svc.RemoveItem(ctx, "i1")
	require.NoError(t, err)
	cart, err := svc.RemoveItem(ctx, "i2")
	require.NoError(t, err)

	// Assert: пустая корзина не хранится
	require.True(t, cart.IsEmpty())
	_, err = d.repo.Get(context.Background(), "user-1")
	require.Error(t, err)
}

func TestCartService_GetCart_LazyExpiry(t *testing.T) {
	// Arrange: корзина с истёкшим сроком прямо в репозитории
	svc, d := newService(t)
	require.NoError(t, d.repo.Save(context.Background(), domain.Cart{
		CustomerID:   "user-1",
		RestaurantID: "rest-7",
		Items:        []domain.CartItem{{MenuItemID: "i1", Quantity: 1, UnitPrice: price("50.00")}},
		ExpiresAt:    time.Now().UTC().Add(-time.Minute),
	}))

	// Act
	cart, err := svc.GetCart(customerCtx("user-1"))

	// Assert: протухшая корзина удалена, наружу уходит пустая
	require.NoError(t, err)
	require.True(t, cart.IsEmpty())
	_, err = d.repo.Get(context.Background(), "user-1")
	require.Error(t, err)
}

// fillCart кладёт в корзину 2 x 50.00 из ресторана rest-7
func fillCart(t *testing.T, svc *service.CartService, d deps, userID string) {
	t.Helper()
	menuOf(d, map[string]service.MenuItem{
		"i1": {ID: "i1", Name: "Pad Thai", Price: price("50.00"), Available: true},
	})
	_, err := svc.AddItem(customerCtx(userID), service.AddItemInput{
		RestaurantID: "rest-7", MenuItemID: "i1", Quantity: 2,
	})
	require.NoError(t, err)
}

func TestCartService_Checkout(t *testing.T) {
	t.Run("success: order created, cart deleted", func(t *testing.T) {
		// Arrange
		svc, d := newService(t)
		fillCart(t, svc, d, "user-1")
		d.profile.On("VerifyAddressOwnership", mock.Anything, "user-1", "addr-3").Return(true, nil)
		d.order.On("CreateOrderFromCart", mock.Anything, mock.MatchedBy(func(req service.CreateOrderRequest) bool {
			return req.CustomerID == "user-1" &&
				req.RestaurantID == "rest-7" &&
				req.DeliveryAddressID == "addr-3" &&
				len(req.Items) == 1 &&
				req.Items[0].MenuItemID == "i1" &&
				req.Items[0].Quantity == 2
		})).Return(service.CreatedOrder{
			ID:          "order-42",
			Status:      "PENDING",
			Subtotal:    price("100.00"),
			Tax:         price("14.00"),
			DeliveryFee: price("15.00"),
			Total:       price("129.00"),
		}, nil)

		// Act
		order, err := svc.Checkout(customerCtx("user-1"), service.CheckoutInput{DeliveryAddressID: "addr-3"})

		// Assert
		require.NoError(t, err)
		require.Equal(t, "order-42", order.ID)
		require.True(t, order.Total.Equal(price("129.00")))

		// Корзина после checkout не находится
		_, err = d.repo.Get(context.Background(), "user-1")
		require.Error(t, err)
	})

	t.Run("order creation failure leaves the cart intact", func(t *testing.T) {
		// Arrange
		svc, d := newService(t)
		fillCart(t, svc, d, "user-1")
		d.profile.On("VerifyAddressOwnership", mock.Anything, "user-1", "addr-3").Return(true, nil)
		d.order.On("CreateOrderFromCart", mock.Anything, mock.Anything).
			Return(service.CreatedOrder{}, errors.New("order service exploded"))

		// Act
		_, err := svc.Checkout(customerCtx("user-1"), service.CheckoutInput{DeliveryAddressID: "addr-3"})

		// Assert: корзина доступна с прежним содержимым
		require.Error(t, err)
		stored, err := d.repo.Get(context.Background(), "user-1")
		require.NoError(t, err)
		require.Len(t, stored.Items, 1)
		require.Equal(t, int32(2), stored.Items[0].Quantity)
	})

	t.Run("address verification outage fails closed", func(t *testing.T) {
		// Arrange
		svc, d := newService(t)
		fillCart(t, svc, d, "user-1")
		d.profile.On("VerifyAddressOwnership", mock.Anything, "user-1", "addr-3").
			Return(false, errors.New("profile timeout"))

		// Act
		_, err := svc.Checkout(customerCtx("user-1"), service.CheckoutInput{DeliveryAddressID: "addr-3"})

		// Assert
		require.True(t, apperr.IsUnavailable(err))
	})

	t.Run("foreign address is unauthorized", func(t *testing.T) {
		// Arrange
		svc, d := newService(t)
		fillCart(t, svc, d, "user-1")
		d.profile.On("VerifyAddressOwnership", mock.Anything, "user-1", "addr-3").Return(false, nil)

		// Act
		_, err := svc.Checkout(customerCtx("user-1"), service.CheckoutInput{DeliveryAddressID: "addr-3"})

		// Assert
		require.True(t, apperr.IsUnauthorized(err))
	})

	t.Run("item gone unavailable since add time blocks checkout", func(t *testing.T) {
		// Arrange: позиция была доступна при добавлении, пропала к checkout
		svc, d := newService(t)
		d.restaurant.On("GetMenuItems", mock.Anything, mock.Anything, mock.Anything).
			Return(map[string]service.MenuItem{
				"i1": {ID: "i1", Name: "Pad Thai", Price: price("50.00"), Available: true},
			}, nil).Once()
		_, err := svc.AddItem(customerCtx("user-1"), service.AddItemInput{
			RestaurantID: "rest-7", MenuItemID: "i1", Quantity: 2,
		})
		require.NoError(t, err)

		d.restaurant.On("GetMenuItems", mock.Anything, mock.Anything, mock.Anything).
			Return(map[string]service.MenuItem{
				"i1": {ID: "i1", Name: "Pad Thai", Price: price("50.00"), Available: false},
			}, nil)
		d.profile.On("VerifyAddressOwnership", mock.Anything, "user-1", "addr-3").Return(true, nil)

		// Act
		_, err = svc.Checkout(customerCtx("user-1"), service.CheckoutInput{DeliveryAddressID: "addr-3"})

		// Assert: конфликт, корзина не тронута
		require.True(t, apperr.IsConflict(err))
		_, err = d.repo.Get(context.Background(), "user-1")
		require.NoError(t, err)
	})

	t.Run("expired cart is deleted and checkout fails", func(t *testing.T) {
		// Arrange
		svc, d := newService(t)
		require.NoError(t, d.repo.Save(context.Background(), domain.Cart{
			CustomerID:   "user-1",
			RestaurantID: "rest-7",
			Items:        []domain.CartItem{{MenuItemID: "i1", Quantity: 1, UnitPrice: price("50.00")}},
			ExpiresAt:    time.Now().UTC().Add(-time.Minute),
		}))

		// Act
		_, err := svc.Checkout(customerCtx("user-1"), service.CheckoutInput{DeliveryAddressID: "addr-3"})

		// Assert
		require.True(t, apperr.IsConflict(err))
		_, err = d.repo.Get(context.Background(), "user-1")
		require.Error(t, err)
	})

	t.Run("missing cart is not found", func(t *testing.T) {
		svc, _ := newService(t)

		_, err := svc.Checkout(customerCtx("user-1"), service.CheckoutInput{DeliveryAddressID: "addr-3"})

		require.True(t, apperr.IsNotFound(err))
	})
}
