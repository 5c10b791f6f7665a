// Package service содержит бизнес-логику Order Service: создание заказа,
// машину статусов и публикацию доменных событий через outbox.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shestoi/GoFoodSaga/internal/auth"
	"github.com/shestoi/GoFoodSaga/internal/auth/authctx"
	"github.com/shestoi/GoFoodSaga/internal/events"
	"github.com/shestoi/GoFoodSaga/internal/order/domain"
	"github.com/shestoi/GoFoodSaga/internal/order/repository"
	"github.com/shestoi/GoFoodSaga/platform/apperr"
	platformkafka "github.com/shestoi/GoFoodSaga/platform/kafka"
)

// estimatedDeliveryWindow — оценка времени доставки с момента создания заказа
const estimatedDeliveryWindow = 45 * time.Minute

// OrderService содержит бизнес-логику работы с заказами.
// Зависит от интерфейсов, а не от конкретных клиентов и репозиториев
type OrderService struct {
	orderRepo        repository.OrderRepository
	restaurantClient RestaurantClient
	logger           *zap.Logger
}

// NewOrderService создаёт новый экземпляр OrderService
func NewOrderService(
	orderRepo repository.OrderRepository,
	restaurantClient RestaurantClient,
	logger *zap.Logger,
) *OrderService {
	return &OrderService{
		orderRepo:        orderRepo,
		restaurantClient: restaurantClient,
		logger:           logger,
	}
}

// CreateOrderItemInput — позиция заказа во входных данных
type CreateOrderItemInput struct {
	MenuItemID    string
	Quantity      int32
	Customization string
}

// CreateOrderInput содержит входные данные для создания заказа покупателем
type CreateOrderInput struct {
	RestaurantID        string
	DeliveryAddressID   string
	Items               []CreateOrderItemInput
	SpecialInstructions string
}

// CreateOrder создаёт заказ напрямую (минуя корзину).
// Цены и названия позиций берутся из Restaurant Service, а не от клиента:
// ценообразование на стороне сервера
func (s *OrderService) CreateOrder(ctx context.Context, input CreateOrderInput) (domain.Order, error) {
	caller, err := auth.Caller(ctx)
	if err != nil {
		return domain.Order{}, err
	}

	if err := validateCreateInput(input); err != nil {
		return domain.Order{}, err
	}

	orderItems, err := s.priceItems(ctx, input.RestaurantID, input.Items)
	if err != nil {
		return domain.Order{}, err
	}

	return s.createOrder(ctx, caller.ID, input.RestaurantID, input.DeliveryAddressID, orderItems, input.SpecialInstructions)
}

// CreateOrderFromCartInput содержит снимок корзины от Cart Service.
// Позиции приходят без цен: checkout передаёт только состав, ценообразование
// всегда происходит здесь
type CreateOrderFromCartInput struct {
	CustomerID          string
	RestaurantID        string
	DeliveryAddressID   string
	Items               []CreateOrderItemInput
	SpecialInstructions string
}

// CreateOrderFromCart создаёт заказ из состава корзины. Вызывается только
// Cart Service через внутренний endpoint; цены и названия позиций, как и в
// CreateOrder, запрашиваются у Restaurant Service
func (s *OrderService) CreateOrderFromCart(ctx context.Context, input CreateOrderFromCartInput) (domain.Order, error) {
	if input.CustomerID == "" {
		return domain.Order{}, apperr.Validation("customer id is required")
	}
	if err := validateCreateInput(CreateOrderInput{
		RestaurantID:      input.RestaurantID,
		DeliveryAddressID: input.DeliveryAddressID,
		Items:             input.Items,
	}); err != nil {
		return domain.Order{}, err
	}

	orderItems, err := s.priceItems(ctx, input.RestaurantID, input.Items)
	if err != nil {
		return domain.Order{}, err
	}

	return s.createOrder(ctx, input.CustomerID, input.RestaurantID, input.DeliveryAddressID, orderItems, input.SpecialInstructions)
}

// priceItems запрашивает у Restaurant Service цены, названия и доступность
// позиций и собирает снимки для заказа
func (s *OrderService) priceItems(ctx context.Context, restaurantID string, items []CreateOrderItemInput) ([]domain.OrderItem, error) {
	itemIDs := make([]string, 0, len(items))
	for _, item := range items {
		itemIDs = append(itemIDs, item.MenuItemID)
	}

	menu, err := s.restaurantClient.GetMenuItems(ctx, restaurantID, itemIDs)
	if err != nil {
		s.logger.Error("restaurant service unavailable",
			zap.String("restaurant_id", restaurantID),
			zap.Error(err))
		return nil, apperr.Unavailable(err, "restaurant service unavailable")
	}

	orderItems := make([]domain.OrderItem, 0, len(items))
	for _, item := range items {
		menuItem, found := menu[item.MenuItemID]
		if !found {
			return nil, apperr.Validation("menu item %s not found in restaurant %s", item.MenuItemID, restaurantID)
		}
		if !menuItem.Available {
			return nil, apperr.Validation("menu item %s is not available", item.MenuItemID)
		}
		orderItems = append(orderItems, domain.OrderItem{
			MenuItemID:    item.MenuItemID,
			Name:          menuItem.Name,
			Quantity:      item.Quantity,
			UnitPrice:     menuItem.Price,
			Customization: item.Customization,
		})
	}
	return orderItems, nil
}

// createOrder — общий путь создания: totals, доменная модель, outbox событие
func (s *OrderService) createOrder(ctx context.Context, customerID, restaurantID, addressID string, items []domain.OrderItem, instructions string) (domain.Order, error) {
	totals, err := domain.ComputeTotals(items)
	if err != nil {
		return domain.Order{}, err
	}

	now := time.Now().UTC()
	estimated := now.Add(estimatedDeliveryWindow)
	order := domain.Order{
		ID:                    uuid.NewString(),
		CustomerID:            customerID,
		RestaurantID:          restaurantID,
		DeliveryAddressID:     addressID,
		Items:                 items,
		Subtotal:              totals.Subtotal,
		Tax:                   totals.Tax,
		DeliveryFee:           totals.DeliveryFee,
		Total:                 totals.Total,
		Status:                domain.StatusPending,
		PaymentStatus:         domain.PaymentPending,
		SpecialInstructions:   instructions,
		Version:               1,
		CreatedAt:             now,
		UpdatedAt:             now,
		EstimatedDeliveryTime: &estimated,
	}

	event, err := marshalEvent(events.OrderCreated{
		Meta:         events.NewMeta(events.TopicOrderCreated),
		OrderID:      order.ID,
		CustomerID:   order.CustomerID,
		RestaurantID: order.RestaurantID,
		Total:        order.Total.StringFixed(2),
	}, events.TopicOrderCreated, order.ID)
	if err != nil {
		return domain.Order{}, err
	}

	if err := s.orderRepo.Create(ctx, order, []platformkafka.OutboxEvent{event}); err != nil {
		s.logger.Error("failed to create order", zap.String("order_id", order.ID), zap.Error(err))
		return domain.Order{}, err
	}

	s.logger.Info("order created",
		zap.String("order_id", order.ID),
		zap.String("customer_id", order.CustomerID),
		zap.String("restaurant_id", order.RestaurantID),
		zap.String("total", order.Total.StringFixed(2)))

	return order, nil
}

// GetOrder возвращает заказ. Покупатель видит только свои заказы, admin - любые
func (s *OrderService) GetOrder(ctx context.Context, orderID string) (domain.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Order{}, apperr.NotFound("order %s not found", orderID)
		}
		return domain.Order{}, err
	}

	caller, err := auth.Caller(ctx)
	if err != nil {
		return domain.Order{}, err
	}
	// Ресторан видит адресованные ему заказы
	if caller.Role == authctx.RoleRestaurant {
		return order, nil
	}
	if err := auth.RequireOwner(ctx, order.CustomerID); err != nil {
		return domain.Order{}, err
	}

	return order, nil
}

// GetOrderInternal возвращает заказ без проверки владельца. Используется
// внутренними вызовами других сервисов (Payment берёт отсюда сумму заказа),
// доступ ограничен internal token на уровне HTTP
func (s *OrderService) GetOrderInternal(ctx context.Context, orderID string) (domain.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Order{}, apperr.NotFound("order %s not found", orderID)
		}
		return domain.Order{}, err
	}
	return order, nil
}

// ListOrders возвращает заказы текущего покупателя, новые первыми
func (s *OrderService) ListOrders(ctx context.Context, limit int) ([]domain.Order, error) {
	caller, err := auth.Caller(ctx)
	if err != nil {
		return nil, err
	}
	return s.orderRepo.ListByCustomer(ctx, caller.ID, limit)
}

// MarkPaid фиксирует оплату заказа. Заказ в PENDING переводится в CONFIRMED
// с публикацией order.confirmed; заказ, уже ушедший из PENDING (например
// отменённый до подтверждения оплаты), не трогается — фиксируется только
// факт оплаты, фактический возврат денег Payment Service запускает сам
// по событию order.cancelled.
// Идемпотентна: повторный вызов для уже оплаченного заказа - no-op.
// Вызывается Payment Service синхронно и consumer-ом payment.confirmed
func (s *OrderService) MarkPaid(ctx context.Context, orderID string) error {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("order %s not found", orderID)
		}
		return err
	}

	now := time.Now().UTC()
	if !order.MarkPaid(now) {
		s.logger.Info("order already paid", zap.String("order_id", orderID))
		return nil
	}

	var outbox []platformkafka.OutboxEvent
	if order.Status == domain.StatusPending {
		if err := order.Apply(domain.StatusConfirmed, now); err != nil {
			return err
		}

		event, err := marshalEvent(events.OrderConfirmed{
			Meta:         events.NewMeta(events.TopicOrderConfirmed),
			OrderID:      order.ID,
			CustomerID:   order.CustomerID,
			RestaurantID: order.RestaurantID,
		}, events.TopicOrderConfirmed, order.ID)
		if err != nil {
			return err
		}
		outbox = append(outbox, event)
	} else {
		s.logger.Warn("payment confirmed for non-pending order",
			zap.String("order_id", orderID),
			zap.String("status", string(order.Status)))
	}

	if err := s.orderRepo.Update(ctx, order, outbox); err != nil {
		return mapUpdateErr(err, orderID)
	}

	s.logger.Info("order marked paid", zap.String("order_id", orderID))
	return nil
}

// UpdateStatusInput содержит входные данные смены статуса заказа
type UpdateStatusInput struct {
	OrderID string
	Status  domain.Status
	Reason  string
}

// UpdateStatus переводит заказ в новый статус по команде пользователя.
// Ресторан ведёт заказ по кухонным статусам, покупатель может отменить
// свой неоплаченный заказ, admin может всё. Статусы этапа доставки
// приходят только из событий Delivery Service, не через этот метод
func (s *OrderService) UpdateStatus(ctx context.Context, input UpdateStatusInput) (domain.Order, error) {
	caller, err := auth.Caller(ctx)
	if err != nil {
		return domain.Order{}, err
	}

	order, err := s.orderRepo.GetByID(ctx, input.OrderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Order{}, apperr.NotFound("order %s not found", input.OrderID)
		}
		return domain.Order{}, err
	}

	if err := s.authorizeStatusChange(caller, order, input.Status); err != nil {
		return domain.Order{}, err
	}

	now := time.Now().UTC()
	if err := order.Apply(input.Status, now); err != nil {
		return domain.Order{}, err
	}

	outboxEvents, err := s.statusEvents(order, input)
	if err != nil {
		return domain.Order{}, err
	}

	if err := s.orderRepo.Update(ctx, order, outboxEvents); err != nil {
		return domain.Order{}, mapUpdateErr(err, input.OrderID)
	}

	s.logger.Info("order status updated",
		zap.String("order_id", order.ID),
		zap.String("status", string(order.Status)),
		zap.String("actor_role", string(caller.Role)))

	return order, nil
}

// ApplyDeliveryStatus применяет статус, пришедший из события Delivery Service.
// Авторизация не нужна: источник - внутренняя шина событий
func (s *OrderService) ApplyDeliveryStatus(ctx context.Context, orderID string, status domain.Status) error {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("order %s not found", orderID)
		}
		return err
	}

	// События доставки могут дублироваться; заказ уже в целевом статусе - no-op
	if order.Status == status {
		return nil
	}

	now := time.Now().UTC()
	if err := order.Apply(status, now); err != nil {
		return err
	}

	if err := s.orderRepo.Update(ctx, order, nil); err != nil {
		return mapUpdateErr(err, orderID)
	}

	s.logger.Info("order status updated from delivery event",
		zap.String("order_id", orderID),
		zap.String("status", string(status)))
	return nil
}

// authorizeStatusChange проверяет, что вызывающий имеет право на этот переход
func (s *OrderService) authorizeStatusChange(caller authctx.User, order domain.Order, requested domain.Status) error {
	switch caller.Role {
	case authctx.RoleAdmin:
		return nil
	case authctx.RoleRestaurant:
		switch requested {
		case domain.StatusPreparing, domain.StatusReadyForPickup, domain.StatusRejected, domain.StatusCancelled:
			return nil
		}
		return apperr.Unauthorized("restaurant cannot set status %s", requested)
	case authctx.RoleCustomer:
		if requested == domain.StatusCancelled && caller.ID == order.CustomerID {
			return nil
		}
		return apperr.Unauthorized("customer cannot set status %s", requested)
	default:
		return apperr.Unauthorized("role %s cannot change order status", caller.Role)
	}
}

// statusEvents собирает outbox события для применённого перехода
func (s *OrderService) statusEvents(order domain.Order, input UpdateStatusInput) ([]platformkafka.OutboxEvent, error) {
	switch order.Status {
	case domain.StatusReadyForPickup:
		event, err := marshalEvent(events.OrderReady{
			Meta:              events.NewMeta(events.TopicOrderReady),
			OrderID:           order.ID,
			CustomerID:        order.CustomerID,
			RestaurantID:      order.RestaurantID,
			DeliveryAddressID: order.DeliveryAddressID,
		}, events.TopicOrderReady, order.ID)
		if err != nil {
			return nil, err
		}
		return []platformkafka.OutboxEvent{event}, nil
	case domain.StatusCancelled, domain.StatusRejected:
		event, err := marshalEvent(events.OrderCancelled{
			Meta:       events.NewMeta(events.TopicOrderCancelled),
			OrderID:    order.ID,
			CustomerID: order.CustomerID,
			Reason:     input.Reason,
			Refunded:   order.PaymentStatus == domain.PaymentRefunded,
		}, events.TopicOrderCancelled, order.ID)
		if err != nil {
			return nil, err
		}
		return []platformkafka.OutboxEvent{event}, nil
	default:
		return nil, nil
	}
}

// validateCreateInput проверяет входные данные создания заказа
func validateCreateInput(input CreateOrderInput) error {
	if input.RestaurantID == "" {
		return apperr.Validation("restaurant id is required")
	}
	if input.DeliveryAddressID == "" {
		return apperr.Validation("delivery address id is required")
	}
	if len(input.Items) == 0 {
		return apperr.Validation("order must contain at least one item")
	}
	for _, item := range input.Items {
		if item.MenuItemID == "" {
			return apperr.Validation("menu item id is required")
		}
		if item.Quantity <= 0 {
			return apperr.Validation("quantity for item %s must be positive", item.MenuItemID)
		}
	}
	return nil
}

// marshalEvent сериализует payload в outbox событие
func marshalEvent(payload any, topic, aggregateID string) (platformkafka.OutboxEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return platformkafka.OutboxEvent{}, err
	}
	return platformkafka.OutboxEvent{
		EventID:     extractEventID(data),
		Topic:       topic,
		AggregateID: aggregateID,
		Payload:     data,
	}, nil
}

// extractEventID достаёт event_id из уже сериализованного payload
func extractEventID(data []byte) string {
	var meta struct {
		EventID string `json:"event_id"`
	}
	_ = json.Unmarshal(data, &meta)
	return meta.EventID
}

// mapUpdateErr переводит ошибки репозитория в ошибки уровня API
func mapUpdateErr(err error, orderID string) error {
	switch {
	case errors.Is(err, repository.ErrVersionConflict):
		return apperr.Conflict("order %s was modified concurrently, retry", orderID)
	case errors.Is(err, repository.ErrNotFound):
		return apperr.NotFound("order %s not found", orderID)
	default:
		return err
	}
}
