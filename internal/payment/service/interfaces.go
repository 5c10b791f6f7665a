package service

import (
	"context"

	"github.com/shopspring/decimal"
)

//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name=OrderClient --dir=. --output=./mocks --outpkg=mocks

// OrderSummary — сводка заказа по данным Order Service
type OrderSummary struct {
	OrderID    string
	CustomerID string
	Total      decimal.Decimal
	Status     string
}

// OrderClient определяет интерфейс для обращения к Order Service.
// Сумма платежа всегда берётся из заказа, никогда от клиента
type OrderClient interface {
	// GetOrderSummary возвращает владельца и сумму заказа
	GetOrderSummary(ctx context.Context, orderID string) (OrderSummary, error)

	// MarkOrderPaid синхронно помечает заказ оплаченным (идемпотентный
	// internal endpoint Order Service)
	MarkOrderPaid(ctx context.Context, orderID string) error
}
