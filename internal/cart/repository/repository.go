// Package repository определяет контракт хранения корзин
package repository

import (
	"context"
	"errors"

	"github.com/shestoi/GoFoodSaga/internal/cart/domain"
)

// ErrNotFound - корзина не найдена (или истёк TTL ключа)
var ErrNotFound = errors.New("cart not found")

//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name=CartRepository --dir=. --output=./mocks --outpkg=mocks

// CartRepository определяет интерфейс хранилища корзин.
// У покупателя не больше одной корзины, ключ - customer id
type CartRepository interface {
	// Get возвращает корзину покупателя
	Get(ctx context.Context, customerID string) (domain.Cart, error)

	// Save сохраняет корзину целиком и обновляет её TTL
	Save(ctx context.Context, cart domain.Cart) error

	// Delete удаляет корзину покупателя. Отсутствующая корзина - не ошибка
	Delete(ctx context.Context, customerID string) error
}
