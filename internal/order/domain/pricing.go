package domain

import (
	"github.com/shopspring/decimal"

	"github.com/shestoi/GoFoodSaga/platform/apperr"
)

// Ставка налога и фиксированная стоимость доставки.
// Суммы считаются в decimal c банковским округлением до 2 знаков.
var (
	taxRate     = decimal.RequireFromString("0.14")
	deliveryFee = decimal.RequireFromString("15.00")
)

// Totals содержит вычисленные суммы заказа
type Totals struct {
	Subtotal    decimal.Decimal
	Tax         decimal.Decimal
	DeliveryFee decimal.Decimal
	Total       decimal.Decimal
}

// ComputeTotals считает суммы по позициям заказа.
// Инвариант: Total = Subtotal + Tax + DeliveryFee.
// Вызывается ровно один раз при создании заказа — позиции после создания заморожены.
func ComputeTotals(items []OrderItem) (Totals, error) {
	if len(items) == 0 {
		return Totals{}, apperr.Validation("order must contain at least one item")
	}

	subtotal := decimal.Zero
	for _, item := range items {
		if item.Quantity <= 0 {
			return Totals{}, apperr.Validation("item %s quantity must be positive", item.MenuItemID)
		}
		if item.UnitPrice.IsNegative() {
			return Totals{}, apperr.Validation("item %s price must not be negative", item.MenuItemID)
		}
		line := item.UnitPrice.Mul(decimal.NewFromInt32(item.Quantity))
		subtotal = subtotal.Add(line)
	}

	subtotal = subtotal.Round(2)
	tax := subtotal.Mul(taxRate).Round(2)
	total := subtotal.Add(tax).Add(deliveryFee)

	return Totals{
		Subtotal:    subtotal,
		Tax:         tax,
		DeliveryFee: deliveryFee,
		Total:       total,
	}, nil
}
