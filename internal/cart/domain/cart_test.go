package domain_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/shestoi/GoFoodSaga/internal/cart/domain"
	"github.com/shestoi/GoFoodSaga/platform/apperr"
)

func item(id string, qty int32, unitPrice string) domain.CartItem {
	return domain.CartItem{
		MenuItemID: id,
		Name:       "item " + id,
		Quantity:   qty,
		UnitPrice:  decimal.RequireFromString(unitPrice),
	}
}

func TestCart_AddItem(t *testing.T) {
	t.Run("first item binds the cart to the restaurant", func(t *testing.T) {
		cart := domain.Cart{CustomerID: "user-1"}

		require.NoError(t, cart.AddItem("rest-7", item("i1", 2, "50.00")))

		require.Equal(t, "rest-7", cart.RestaurantID)
		require.True(t, cart.Subtotal().Equal(decimal.RequireFromString("100.00")))
	})

	t.Run("foreign restaurant item is rejected before any mutation", func(t *testing.T) {
		cart := domain.Cart{CustomerID: "user-1"}
		require.NoError(t, cart.AddItem("rest-7", item("i1", 1, "50.00")))

		err := cart.AddItem("rest-8", item("i2", 1, "30.00"))

		require.True(t, apperr.IsConflict(err))
		require.Equal(t, "rest-7", cart.RestaurantID)
		require.Len(t, cart.Items, 1)
	})

	t.Run("same item merges quantities", func(t *testing.T) {
		cart := domain.Cart{CustomerID: "user-1"}
		require.NoError(t, cart.AddItem("rest-7", item("i1", 1, "50.00")))

		require.NoError(t, cart.AddItem("rest-7", item("i1", 2, "50.00")))

		require.Len(t, cart.Items, 1)
		require.Equal(t, int32(3), cart.Items[0].Quantity)
	})

	t.Run("non-positive quantity is a validation error", func(t *testing.T) {
		cart := domain.Cart{CustomerID: "user-1"}

		err := cart.AddItem("rest-7", item("i1", 0, "50.00"))

		require.True(t, apperr.IsValidation(err))
		require.True(t, cart.IsEmpty())
	})
}

func TestCart_UpdateQuantity(t *testing.T) {
	cart := domain.Cart{CustomerID: "user-1"}
	require.NoError(t, cart.AddItem("rest-7", item("i1", 1, "50.00")))

	require.NoError(t, cart.UpdateQuantity("i1", 5))
	require.Equal(t, int32(5), cart.Items[0].Quantity)

	require.True(t, apperr.IsValidation(cart.UpdateQuantity("i1", 0)))
	require.True(t, apperr.IsNotFound(cart.UpdateQuantity("missing", 2)))
}

func TestCart_RemoveItem(t *testing.T) {
	cart := domain.Cart{CustomerID: "user-1"}
	require.NoError(t, cart.AddItem("rest-7", item("i1", 1, "50.00")))
	require.NoError(t, cart.AddItem("rest-7", item("i2", 1, "30.00")))

	require.NoError(t, cart.RemoveItem("i1"))
	require.Len(t, cart.Items, 1)
	require.Equal(t, "i2", cart.Items[0].MenuItemID)

	require.True(t, apperr.IsNotFound(cart.RemoveItem("i1")))
}

func TestCart_IsExpired(t *testing.T) {
	now := time.Now().UTC()

	fresh := domain.Cart{ExpiresAt: now.Add(time.Hour)}
	require.False(t, fresh.IsExpired(now))

	stale := domain.Cart{ExpiresAt: now.Add(-time.Minute)}
	require.True(t, stale.IsExpired(now))
}
