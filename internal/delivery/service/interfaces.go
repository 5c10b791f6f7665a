package service

import "context"

//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name=OrderClient --dir=. --output=./mocks --outpkg=mocks
//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name=ProfileClient --dir=. --output=./mocks --outpkg=mocks

// OrderSummary — сводка заказа по данным Order Service
type OrderSummary struct {
	OrderID    string
	CustomerID string
	Status     string
}

// OrderClient определяет интерфейс для обращения к Order Service.
// Доставка создаётся только для существующего заказа
type OrderClient interface {
	// GetOrderSummary возвращает владельца и статус заказа.
	// NotFoundError, если заказа нет
	GetOrderSummary(ctx context.Context, orderID string) (OrderSummary, error)
}

// Driver — профиль водителя по данным Profile Service
type Driver struct {
	ID   string
	Name string
}

// ProfileClient определяет интерфейс для обращения к Profile Service
type ProfileClient interface {
	// GetDriver возвращает профиль водителя. NotFoundError, если
	// пользователя нет или он не водитель
	GetDriver(ctx context.Context, driverID string) (Driver, error)
}
