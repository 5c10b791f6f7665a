// Package domain описывает корзину покупателя.
// Корзина целиком принадлежит одному ресторану: позиция чужого ресторана
// отклоняется до любой мутации. Пустая корзина не хранится
package domain

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/shestoi/GoFoodSaga/platform/apperr"
)

// CartItem — позиция корзины. Название и цена — кэш для отображения,
// при checkout заказ переценивается по данным ресторана
type CartItem struct {
	MenuItemID    string          `json:"menu_item_id"`
	Name          string          `json:"name"`
	Quantity      int32           `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	Customization string          `json:"customization,omitempty"`
}

// Cart — корзина покупателя
type Cart struct {
	CustomerID   string     `json:"customer_id"`
	RestaurantID string     `json:"restaurant_id"`
	Items        []CartItem `json:"items"`
	ExpiresAt    time.Time  `json:"expires_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// IsEmpty сообщает, пуста ли корзина
func (c Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// IsExpired сообщает, истёк ли срок жизни корзины
func (c Cart) IsExpired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}

// Subtotal возвращает сумму позиций по кэшированным ценам
func (c Cart) Subtotal() decimal.Decimal {
	subtotal := decimal.Zero
	for _, item := range c.Items {
		subtotal = subtotal.Add(item.UnitPrice.Mul(decimal.NewFromInt32(item.Quantity)))
	}
	return subtotal
}

// AddItem добавляет позицию. Позиция чужого ресторана - конфликт до мутации;
// повторное добавление той же позиции увеличивает количество
func (c *Cart) AddItem(restaurantID string, item CartItem) error {
	if item.Quantity <= 0 {
		return apperr.Validation("quantity must be positive")
	}
	if !c.IsEmpty() && c.RestaurantID != restaurantID {
		return apperr.Conflict("cart already contains items from restaurant %s", c.RestaurantID)
	}

	c.RestaurantID = restaurantID
	for i := range c.Items {
		if c.Items[i].MenuItemID == item.MenuItemID {
			c.Items[i].Quantity += item.Quantity
			if item.Customization != "" {
				c.Items[i].Customization = item.Customization
			}
			return nil
		}
	}
	c.Items = append(c.Items, item)
	return nil
}

// UpdateQuantity меняет количество существующей позиции
func (c *Cart) UpdateQuantity(menuItemID string, quantity int32) error {
	if quantity <= 0 {
		return apperr.Validation("quantity must be positive, use remove to delete the item")
	}
	for i := range c.Items {
		if c.Items[i].MenuItemID == menuItemID {
			c.Items[i].Quantity = quantity
			return nil
		}
	}
	return apperr.NotFound("item %s is not in the cart", menuItemID)
}

// RemoveItem удаляет позицию из корзины
func (c *Cart) RemoveItem(menuItemID string) error {
	for i := range c.Items {
		if c.Items[i].MenuItemID == menuItemID {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
			return nil
		}
	}
	return apperr.NotFound("item %s is not in the cart", menuItemID)
}
