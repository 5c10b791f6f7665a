// Package memory - in-memory реализация CartRepository для тестов
package memory

import (
	"context"
	"sync"

	"github.com/shestoi/GoFoodSaga/internal/cart/domain"
	"github.com/shestoi/GoFoodSaga/internal/cart/repository"
)

// Repository - in-memory реализация CartRepository.
// Семантику TTL не воспроизводит: ленивую проверку ExpiresAt делает service
type Repository struct {
	mu    sync.RWMutex
	carts map[string]domain.Cart
}

// NewRepository создаёт новый in-memory репозиторий
func NewRepository() *Repository {
	return &Repository{
		carts: make(map[string]domain.Cart),
	}
}

// Get возвращает корзину покупателя
func (r *Repository) Get(_ context.Context, customerID string) (domain.Cart, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cart, exists := r.carts[customerID]
	if !exists {
		return domain.Cart{}, repository.ErrNotFound
	}
	return cloneCart(cart), nil
}

// Save сохраняет корзину целиком
func (r *Repository) Save(_ context.Context, cart domain.Cart) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.carts[cart.CustomerID] = cloneCart(cart)
	return nil
}

// Delete удаляет корзину покупателя
func (r *Repository) Delete(_ context.Context, customerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.carts, customerID)
	return nil
}

func cloneCart(cart domain.Cart) domain.Cart {
	clone := cart
	clone.Items = make([]domain.CartItem, len(cart.Items))
	copy(clone.Items, cart.Items)
	return clone
}
