package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name=ProfileClient --dir=. --output=./mocks --outpkg=mocks
//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name=RestaurantClient --dir=. --output=./mocks --outpkg=mocks
//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name=OrderClient --dir=. --output=./mocks --outpkg=mocks

// ProfileClient определяет интерфейс для обращения к Profile Service
type ProfileClient interface {
	// VerifyAddressOwnership проверяет, что адрес принадлежит пользователю.
	// Ошибка вызова - это НЕ отрицательный ответ: вызывающий обязан
	// трактовать её как отказ (fail-closed)
	VerifyAddressOwnership(ctx context.Context, userID, addressID string) (bool, error)
}

// MenuItem - позиция меню по данным Restaurant Service
type MenuItem struct {
	ID        string
	Name      string
	Price     decimal.Decimal
	Available bool
}

// RestaurantClient определяет интерфейс для обращения к Restaurant Service
type RestaurantClient interface {
	// GetMenuItems возвращает запрошенные позиции меню ресторана
	GetMenuItems(ctx context.Context, restaurantID string, itemIDs []string) (map[string]MenuItem, error)
}

// CreateOrderItem - позиция заказа в запросе на создание.
// Без цены и названия: заказ переценивается на стороне Order Service
type CreateOrderItem struct {
	MenuItemID    string
	Quantity      int32
	Customization string
}

// CreateOrderRequest - запрос создания заказа из корзины
type CreateOrderRequest struct {
	CustomerID          string
	RestaurantID        string
	DeliveryAddressID   string
	Items               []CreateOrderItem
	SpecialInstructions string
}

// CreatedOrder - публичное представление созданного заказа
type CreatedOrder struct {
	ID                    string
	Status                string
	Subtotal              decimal.Decimal
	Tax                   decimal.Decimal
	DeliveryFee           decimal.Decimal
	Total                 decimal.Decimal
	EstimatedDeliveryTime *time.Time
}

// OrderClient определяет интерфейс для обращения к Order Service
type OrderClient interface {
	// CreateOrderFromCart создаёт заказ через внутренний endpoint
	// Order Service (недоступный внешним вызовам)
	CreateOrderFromCart(ctx context.Context, req CreateOrderRequest) (CreatedOrder, error)
}
