package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/shestoi/GoFoodSaga/platform/apperr"
)

// allStatuses — все статусы заказа для полного перебора пар
var allStatuses = []Status{
	StatusPending,
	StatusConfirmed,
	StatusPreparing,
	StatusReadyForPickup,
	StatusPickedUp,
	StatusOnTheWay,
	StatusDelivered,
	StatusCancelled,
	StatusRejected,
}

// allowedEdges — эталонная таблица переходов
var allowedEdges = map[Status][]Status{
	StatusPending:        {StatusConfirmed, StatusRejected, StatusCancelled},
	StatusConfirmed:      {StatusPreparing, StatusCancelled},
	StatusPreparing:      {StatusReadyForPickup, StatusCancelled},
	StatusReadyForPickup: {StatusPickedUp, StatusCancelled},
	StatusPickedUp:       {StatusOnTheWay},
	StatusOnTheWay:       {StatusDelivered},
}

func isAllowed(from, to Status) bool {
	for _, s := range allowedEdges[from] {
		if s == to {
			return true
		}
	}
	return false
}

func TestTransition_AllPairs(t *testing.T) {
	// Перебираем все пары (current, requested): разрешённые проходят,
	// все остальные возвращают ConflictError с обоими статусами в сообщении
	for _, from := range allStatuses {
		for _, to := range allStatuses {
			err := Transition(from, to)
			if isAllowed(from, to) {
				require.NoError(t, err, "transition %s -> %s must be allowed", from, to)
				continue
			}
			require.Error(t, err, "transition %s -> %s must be rejected", from, to)
			require.True(t, apperr.IsConflict(err))
			require.Contains(t, err.Error(), string(from))
			require.Contains(t, err.Error(), string(to))
		}
	}
}

func TestTransition_UnknownStatus(t *testing.T) {
	err := Transition(Status("GARBAGE"), StatusConfirmed)
	require.Error(t, err)
	require.True(t, apperr.IsConflict(err))
}

func TestOrder_Apply(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	t.Run("illegal transition leaves order unchanged", func(t *testing.T) {
		order := Order{Status: StatusDelivered, PaymentStatus: PaymentPaid}

		err := order.Apply(StatusCancelled, now)

		require.Error(t, err)
		require.True(t, apperr.IsConflict(err))
		require.Equal(t, StatusDelivered, order.Status)
		require.Equal(t, PaymentPaid, order.PaymentStatus)
		require.Nil(t, order.ActualDeliveryTime)
	})

	t.Run("entering DELIVERED stamps actual delivery time", func(t *testing.T) {
		order := Order{Status: StatusOnTheWay, PaymentStatus: PaymentPaid}

		err := order.Apply(StatusDelivered, now)

		require.NoError(t, err)
		require.Equal(t, StatusDelivered, order.Status)
		require.NotNil(t, order.ActualDeliveryTime)
		require.Equal(t, now, *order.ActualDeliveryTime)
	})

	t.Run("cancelling a paid order flips payment status to REFUNDED", func(t *testing.T) {
		order := Order{Status: StatusConfirmed, PaymentStatus: PaymentPaid}

		err := order.Apply(StatusCancelled, now)

		require.NoError(t, err)
		require.Equal(t, StatusCancelled, order.Status)
		require.Equal(t, PaymentRefunded, order.PaymentStatus)
	})

	t.Run("cancelling an unpaid order keeps payment status", func(t *testing.T) {
		order := Order{Status: StatusPending, PaymentStatus: PaymentPending}

		err := order.Apply(StatusCancelled, now)

		require.NoError(t, err)
		require.Equal(t, PaymentPending, order.PaymentStatus)
	})
}

func TestOrder_MarkPaid(t *testing.T) {
	now := time.Now().UTC()

	t.Run("pending becomes paid", func(t *testing.T) {
		order := Order{ID: "order-1", Status: StatusPending, PaymentStatus: PaymentPending}

		changed := order.MarkPaid(now)

		require.True(t, changed)
		require.Equal(t, PaymentPaid, order.PaymentStatus)
	})

	t.Run("already paid is an idempotent no-op", func(t *testing.T) {
		order := Order{ID: "order-1", Status: StatusConfirmed, PaymentStatus: PaymentPaid}

		changed := order.MarkPaid(now)

		require.False(t, changed)
		require.Equal(t, PaymentPaid, order.PaymentStatus)
	})

	t.Run("refunded order stays refunded", func(t *testing.T) {
		order := Order{ID: "order-1", Status: StatusCancelled, PaymentStatus: PaymentRefunded}

		changed := order.MarkPaid(now)

		require.False(t, changed)
		require.Equal(t, PaymentRefunded, order.PaymentStatus)
	})

	t.Run("payment confirmed after cancellation goes straight to refund", func(t *testing.T) {
		order := Order{ID: "order-1", Status: StatusCancelled, PaymentStatus: PaymentPending}

		changed := order.MarkPaid(now)

		require.True(t, changed)
		require.Equal(t, PaymentRefunded, order.PaymentStatus)
	})
}

func TestComputeTotals(t *testing.T) {
	t.Run("example: two items of 50.00", func(t *testing.T) {
		items := []OrderItem{
			{MenuItemID: "item-1", Name: "Margherita", Quantity: 2, UnitPrice: decimal.RequireFromString("50.00")},
		}

		totals, err := ComputeTotals(items)

		require.NoError(t, err)
		require.True(t, totals.Subtotal.Equal(decimal.RequireFromString("100.00")), "subtotal = %s", totals.Subtotal)
		require.True(t, totals.Tax.Equal(decimal.RequireFromString("14.00")), "tax = %s", totals.Tax)
		require.True(t, totals.DeliveryFee.Equal(decimal.RequireFromString("15.00")))
		require.True(t, totals.Total.Equal(decimal.RequireFromString("129.00")), "total = %s", totals.Total)
	})

	t.Run("total always equals subtotal+tax+fee", func(t *testing.T) {
		cases := [][]OrderItem{
			{{MenuItemID: "a", Quantity: 1, UnitPrice: decimal.RequireFromString("0.01")}},
			{{MenuItemID: "a", Quantity: 3, UnitPrice: decimal.RequireFromString("33.33")}},
			{
				{MenuItemID: "a", Quantity: 2, UnitPrice: decimal.RequireFromString("12.50")},
				{MenuItemID: "b", Quantity: 5, UnitPrice: decimal.RequireFromString("7.99")},
			},
		}

		for _, items := range cases {
			totals, err := ComputeTotals(items)
			require.NoError(t, err)
			sum := totals.Subtotal.Add(totals.Tax).Add(totals.DeliveryFee)
			require.True(t, totals.Total.Equal(sum), "total %s != %s", totals.Total, sum)
		}
	})

	t.Run("empty items rejected", func(t *testing.T) {
		_, err := ComputeTotals(nil)
		require.Error(t, err)
		require.True(t, apperr.IsValidation(err))
	})

	t.Run("non-positive quantity rejected", func(t *testing.T) {
		_, err := ComputeTotals([]OrderItem{{MenuItemID: "a", Quantity: 0, UnitPrice: decimal.NewFromInt(1)}})
		require.Error(t, err)
		require.True(t, apperr.IsValidation(err))
	})
}
