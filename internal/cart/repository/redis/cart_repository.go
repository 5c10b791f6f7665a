// Package redis хранит корзины в Redis: одна корзина - один JSON ключ с TTL.
// TTL ключа совпадает с ExpiresAt корзины, протухшие корзины Redis удаляет сам
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/shestoi/GoFoodSaga/internal/cart/domain"
	"github.com/shestoi/GoFoodSaga/internal/cart/repository"
)

// CartRepository реализует CartRepository используя Redis
type CartRepository struct {
	client *redis.Client
	logger *zap.Logger
}

// NewCartRepository создаёт новый Redis cart repository
func NewCartRepository(client *redis.Client, logger *zap.Logger) *CartRepository {
	return &CartRepository{
		client: client,
		logger: logger,
	}
}

func cartKey(customerID string) string {
	return fmt.Sprintf("cart:%s", customerID)
}

// Get возвращает корзину покупателя
func (r *CartRepository) Get(ctx context.Context, customerID string) (domain.Cart, error) {
	data, err := r.client.Get(ctx, cartKey(customerID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return domain.Cart{}, repository.ErrNotFound
		}
		r.logger.Error("failed to get cart from redis",
			zap.Error(err),
			zap.String("customer_id", customerID),
		)
		return domain.Cart{}, fmt.Errorf("failed to get cart: %w", err)
	}

	var cart domain.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return domain.Cart{}, fmt.Errorf("failed to unmarshal cart: %w", err)
	}
	return cart, nil
}

// Save сохраняет корзину. TTL ключа выставляется до ExpiresAt корзины
func (r *CartRepository) Save(ctx context.Context, cart domain.Cart) error {
	data, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("failed to marshal cart: %w", err)
	}

	ttl := time.Until(cart.ExpiresAt)
	if ttl <= 0 {
		return r.Delete(ctx, cart.CustomerID)
	}

	if err := r.client.Set(ctx, cartKey(cart.CustomerID), data, ttl).Err(); err != nil {
		r.logger.Error("failed to save cart in redis",
			zap.Error(err),
			zap.String("customer_id", cart.CustomerID),
		)
		return fmt.Errorf("failed to save cart: %w", err)
	}
	return nil
}

// Delete удаляет корзину покупателя
func (r *CartRepository) Delete(ctx context.Context, customerID string) error {
	if err := r.client.Del(ctx, cartKey(customerID)).Err(); err != nil {
		r.logger.Error("failed to delete cart from redis",
			zap.Error(err),
			zap.String("customer_id", customerID),
		)
		return fmt.Errorf("failed to delete cart: %w", err)
	}
	return nil
}
