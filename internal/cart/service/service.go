// Package service содержит бизнес-логику Cart Service: ведение корзины
// с инвариантом одного ресторана и checkout сагу корзина -> заказ.
package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/shestoi/GoFoodSaga/internal/auth"
	"github.com/shestoi/GoFoodSaga/internal/cart/domain"
	"github.com/shestoi/GoFoodSaga/internal/cart/repository"
	"github.com/shestoi/GoFoodSaga/platform/apperr"
)

// CartService содержит бизнес-логику работы с корзиной
type CartService struct {
	cartRepo         repository.CartRepository
	profileClient    ProfileClient
	restaurantClient RestaurantClient
	orderClient      OrderClient
	ttl              time.Duration
	logger           *zap.Logger
}

// NewCartService создаёт новый экземпляр CartService
func NewCartService(
	cartRepo repository.CartRepository,
	profileClient ProfileClient,
	restaurantClient RestaurantClient,
	orderClient OrderClient,
	ttl time.Duration,
	logger *zap.Logger,
) *CartService {
	return &CartService{
		cartRepo:         cartRepo,
		profileClient:    profileClient,
		restaurantClient: restaurantClient,
		orderClient:      orderClient,
		ttl:              ttl,
		logger:           logger,
	}
}

// GetCart возвращает корзину вызывающего. Отсутствующая или протухшая
// корзина - пустая корзина, а не ошибка
func (s *CartService) GetCart(ctx context.Context) (domain.Cart, error) {
	caller, err := auth.Caller(ctx)
	if err != nil {
		return domain.Cart{}, err
	}
	return s.loadCart(ctx, caller.ID)
}

// AddItemInput содержит входные данные добавления позиции
type AddItemInput struct {
	RestaurantID  string
	MenuItemID    string
	Quantity      int32
	Customization string
}

// AddItem добавляет позицию меню в корзину вызывающего.
// Доступность позиции проверяется в момент добавления; при checkout
// будет повторная проверка - цены и доступность могли измениться
func (s *CartService) AddItem(ctx context.Context, input AddItemInput) (domain.Cart, error) {
	caller, err := auth.Caller(ctx)
	if err != nil {
		return domain.Cart{}, err
	}

	if input.RestaurantID == "" {
		return domain.Cart{}, apperr.Validation("restaurant id is required")
	}
	if input.MenuItemID == "" {
		return domain.Cart{}, apperr.Validation("menu item id is required")
	}

	cart, err := s.loadCart(ctx, caller.ID)
	if err != nil {
		return domain.Cart{}, err
	}

	// Инвариант одного ресторана проверяем до похода в Restaurant Service
	if !cart.IsEmpty() && cart.RestaurantID != input.RestaurantID {
		return domain.Cart{}, apperr.Conflict("cart already contains items from restaurant %s", cart.RestaurantID)
	}

	menu, err := s.restaurantClient.GetMenuItems(ctx, input.RestaurantID, []string{input.MenuItemID})
	if err != nil {
		s.logger.Error("restaurant service unavailable",
			zap.String("restaurant_id", input.RestaurantID),
			zap.Error(err))
		return domain.Cart{}, apperr.Unavailable(err, "restaurant service unavailable")
	}
	menuItem, found := menu[input.MenuItemID]
	if !found {
		return domain.Cart{}, apperr.Validation("menu item %s not found in restaurant %s", input.MenuItemID, input.RestaurantID)
	}
	if !menuItem.Available {
		return domain.Cart{}, apperr.Validation("menu item %s is not available", input.MenuItemID)
	}

	if err := cart.AddItem(input.RestaurantID, domain.CartItem{
		MenuItemID:    input.MenuItemID,
		Name:          menuItem.Name,
		Quantity:      input.Quantity,
		UnitPrice:     menuItem.Price,
		Customization: input.Customization,
	}); err != nil {
		return domain.Cart{}, err
	}

	if err := s.saveCart(ctx, &cart); err != nil {
		return domain.Cart{}, err
	}

	s.logger.Info("item added to cart",
		zap.String("customer_id", caller.ID),
		zap.String("menu_item_id", input.MenuItemID),
		zap.Int32("quantity", input.Quantity))

	return cart, nil
}

// UpdateQuantity меняет количество позиции в корзине вызывающего
func (s *CartService) UpdateQuantity(ctx context.Context, menuItemID string, quantity int32) (domain.Cart, error) {
	caller, err := auth.Caller(ctx)
	if err != nil {
		return domain.Cart{}, err
	}

	cart, err := s.loadCart(ctx, caller.ID)
	if err != nil {
		return domain.Cart{}, err
	}

	if err := cart.UpdateQuantity(menuItemID, quantity); err != nil {
		return domain.Cart{}, err
	}

	if err := s.saveCart(ctx, &cart); err != nil {
		return domain.Cart{}, err
	}
	return cart, nil
}

// RemoveItem удаляет позицию из корзины вызывающего.
// Последняя позиция удаляет и саму корзину: пустая корзина не хранится
func (s *CartService) RemoveItem(ctx context.Context, menuItemID string) (domain.Cart, error) {
	caller, err := auth.Caller(ctx)
	if err != nil {
		return domain.Cart{}, err
	}

	cart, err := s.loadCart(ctx, caller.ID)
	if err != nil {
		return domain.Cart{}, err
	}

	if err := cart.RemoveItem(menuItemID); err != nil {
		return domain.Cart{}, err
	}

	if cart.IsEmpty() {
		if err := s.cartRepo.Delete(ctx, caller.ID); err != nil {
			return domain.Cart{}, err
		}
		return domain.Cart{CustomerID: caller.ID}, nil
	}

	if err := s.saveCart(ctx, &cart); err != nil {
		return domain.Cart{}, err
	}
	return cart, nil
}

// ClearCart удаляет корзину вызывающего
func (s *CartService) ClearCart(ctx context.Context) error {
	caller, err := auth.Caller(ctx)
	if err != nil {
		return err
	}
	return s.cartRepo.Delete(ctx, caller.ID)
}

// CheckoutInput содержит входные данные checkout
type CheckoutInput struct {
	DeliveryAddressID   string
	SpecialInstructions string
}

// Checkout превращает корзину в заказ:
//  1. корзина загружается и проверяется на срок жизни (протухшая удаляется);
//  2. владение адресом доставки проверяется синхронно, fail-closed;
//  3. каждая позиция повторно проверяется на доступность;
//  4. состав (без цен) отправляется во внутренний endpoint Order Service;
//  5. корзина удаляется только после успешного создания заказа.
//
// При любой ошибке корзина остаётся нетронутой и checkout можно повторить
func (s *CartService) Checkout(ctx context.Context, input CheckoutInput) (CreatedOrder, error) {
	caller, err := auth.Caller(ctx)
	if err != nil {
		return CreatedOrder{}, err
	}

	if input.DeliveryAddressID == "" {
		return CreatedOrder{}, apperr.Validation("delivery address id is required")
	}

	cart, err := s.cartRepo.Get(ctx, caller.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return CreatedOrder{}, apperr.NotFound("cart is empty")
		}
		return CreatedOrder{}, err
	}

	if cart.IsExpired(time.Now().UTC()) {
		if err := s.cartRepo.Delete(ctx, caller.ID); err != nil {
			s.logger.Warn("failed to delete expired cart", zap.String("customer_id", caller.ID), zap.Error(err))
		}
		return CreatedOrder{}, apperr.Conflict("cart has expired, add items again")
	}

	owned, err := s.profileClient.VerifyAddressOwnership(ctx, caller.ID, input.DeliveryAddressID)
	if err != nil {
		s.logger.Error("address ownership verification failed",
			zap.String("customer_id", caller.ID),
			zap.String("address_id", input.DeliveryAddressID),
			zap.Error(err))
		return CreatedOrder{}, apperr.Unavailable(err, "profile service unavailable")
	}
	if !owned {
		return CreatedOrder{}, apperr.Unauthorized("address %s does not belong to the caller", input.DeliveryAddressID)
	}

	if err := s.verifyItemsAvailable(ctx, cart); err != nil {
		return CreatedOrder{}, err
	}

	orderItems := make([]CreateOrderItem, 0, len(cart.Items))
	for _, item := range cart.Items {
		orderItems = append(orderItems, CreateOrderItem{
			MenuItemID:    item.MenuItemID,
			Quantity:      item.Quantity,
			Customization: item.Customization,
		})
	}

	order, err := s.orderClient.CreateOrderFromCart(ctx, CreateOrderRequest{
		CustomerID:          caller.ID,
		RestaurantID:        cart.RestaurantID,
		DeliveryAddressID:   input.DeliveryAddressID,
		Items:               orderItems,
		SpecialInstructions: input.SpecialInstructions,
	})
	if err != nil {
		s.logger.Error("order creation failed, cart left intact",
			zap.String("customer_id", caller.ID),
			zap.Error(err))
		return CreatedOrder{}, err
	}

	// Заказ создан, корзина больше не нужна. Ошибка удаления не отменяет
	// checkout: TTL ключа доделает работу
	if err := s.cartRepo.Delete(ctx, caller.ID); err != nil {
		s.logger.Warn("failed to delete cart after checkout",
			zap.String("customer_id", caller.ID),
			zap.String("order_id", order.ID),
			zap.Error(err))
	}

	s.logger.Info("checkout completed",
		zap.String("customer_id", caller.ID),
		zap.String("order_id", order.ID),
		zap.String("total", order.Total.StringFixed(2)))

	return order, nil
}

// verifyItemsAvailable повторно проверяет доступность всех позиций корзины
func (s *CartService) verifyItemsAvailable(ctx context.Context, cart domain.Cart) error {
	itemIDs := make([]string, 0, len(cart.Items))
	for _, item := range cart.Items {
		itemIDs = append(itemIDs, item.MenuItemID)
	}

	menu, err := s.restaurantClient.GetMenuItems(ctx, cart.RestaurantID, itemIDs)
	if err != nil {
		s.logger.Error("restaurant service unavailable",
			zap.String("restaurant_id", cart.RestaurantID),
			zap.Error(err))
		return apperr.Unavailable(err, "restaurant service unavailable")
	}

	for _, item := range cart.Items {
		menuItem, found := menu[item.MenuItemID]
		if !found {
			return apperr.Conflict("menu item %s is no longer on the menu", item.MenuItemID)
		}
		if !menuItem.Available {
			return apperr.Conflict("menu item %s is no longer available", item.MenuItemID)
		}
	}
	return nil
}

// loadCart загружает корзину с ленивой проверкой срока жизни.
// Отсутствующая или протухшая корзина - свежая пустая
func (s *CartService) loadCart(ctx context.Context, customerID string) (domain.Cart, error) {
	cart, err := s.cartRepo.Get(ctx, customerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Cart{CustomerID: customerID}, nil
		}
		return domain.Cart{}, err
	}

	if cart.IsExpired(time.Now().UTC()) {
		if err := s.cartRepo.Delete(ctx, customerID); err != nil {
			s.logger.Warn("failed to delete expired cart", zap.String("customer_id", customerID), zap.Error(err))
		}
		return domain.Cart{CustomerID: customerID}, nil
	}
	return cart, nil
}

// saveCart сохраняет корзину, продлевая её срок жизни
func (s *CartService) saveCart(ctx context.Context, cart *domain.Cart) error {
	now := time.Now().UTC()
	cart.UpdatedAt = now
	cart.ExpiresAt = now.Add(s.ttl)
	return s.cartRepo.Save(ctx, *cart)
}
