package service

import (
	"context"

	"github.com/shopspring/decimal"
)

//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name=RestaurantClient --dir=. --output=./mocks --outpkg=mocks

// MenuItem — каноническая позиция меню по данным Restaurant Service
type MenuItem struct {
	ID        string
	Name      string
	Price     decimal.Decimal
	Available bool
}

// RestaurantClient определяет интерфейс для обращения к Restaurant Service.
// Использует доменные типы, а не транспортные - это позволяет подменять
// реализацию в тестах моками
type RestaurantClient interface {
	// GetMenuItems возвращает позиции меню ресторана по их id.
	// Ошибка транспорта означает недоступность сервиса - вызывающий код
	// обязан отклонить операцию, а не продолжать с ценами клиента
	GetMenuItems(ctx context.Context, restaurantID string, itemIDs []string) (map[string]MenuItem, error)
}
