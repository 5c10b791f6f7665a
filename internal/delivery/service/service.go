// Package service содержит бизнес-логику Delivery Service: создание доставки
// по событию order.ready, назначение водителя и проведение доставки по
// маршруту ASSIGNED -> PICKED_UP -> IN_TRANSIT -> DELIVERED.
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
	"github.com/shestoi/GoFoodSaga/internal/delivery/domain"
	"github.com/shestoi/GoFoodSaga/internal/delivery/repository"
	"github.com/shestoi/GoFoodSaga/internal/events"
	"github.com/shestoi/GoFoodSaga/platform/apperr"
	platformkafka "github.com/shestoi/GoFoodSaga/platform/kafka"
)

// DeliveryService содержит бизнес-логику работы с доставками
type DeliveryService struct {
	deliveryRepo  repository.DeliveryRepository
	orderClient   OrderClient
	profileClient ProfileClient
	logger        *zap.Logger
}

// NewDeliveryService создаёт новый экземпляр DeliveryService
func NewDeliveryService(
	deliveryRepo repository.DeliveryRepository,
	orderClient OrderClient,
	profileClient ProfileClient,
	logger *zap.Logger,
) *DeliveryService {
	return &DeliveryService{
		deliveryRepo:  deliveryRepo,
		orderClient:   orderClient,
		profileClient: profileClient,
		logger:        logger,
	}
}

// CreateDeliveryInput содержит входные данные создания доставки
type CreateDeliveryInput struct {
	OrderID           string
	CustomerID        string
	RestaurantID      string
	DeliveryAddressID string
}

// CreateDelivery создаёт доставку в статусе PENDING. Вызывается
// consumer-ом order.ready; заказ проверяется в Order Service, а unique
// constraint по order_id ловит повторную доставку того же события
func (s *DeliveryService) CreateDelivery(ctx context.Context, input CreateDeliveryInput) (domain.Delivery, error) {
	if input.OrderID == "" {
		return domain.Delivery{}, apperr.Validation("order id is required")
	}
	if input.CustomerID == "" || input.DeliveryAddressID == "" {
		return domain.Delivery{}, apperr.Validation("customer id and delivery address id are required")
	}

	if _, err := s.orderClient.GetOrderSummary(ctx, input.OrderID); err != nil {
		if apperr.IsNotFound(err) {
			return domain.Delivery{}, err
		}
		s.logger.Error("order service unavailable", zap.String("order_id", input.OrderID), zap.Error(err))
		return domain.Delivery{}, apperr.Unavailable(err, "order service unavailable")
	}

	now := time.Now().UTC()
	delivery := domain.Delivery{
		ID:                uuid.NewString(),
		OrderID:           input.OrderID,
		CustomerID:        input.CustomerID,
		RestaurantID:      input.RestaurantID,
		DeliveryAddressID: input.DeliveryAddressID,
		Status:            domain.StatusPending,
		Version:           1,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := s.deliveryRepo.Create(ctx, delivery, nil); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return domain.Delivery{}, apperr.Conflict("delivery for order %s already exists", input.OrderID)
		}
		return domain.Delivery{}, err
	}

	s.logger.Info("delivery created",
		zap.String("delivery_id", delivery.ID),
		zap.String("order_id", delivery.OrderID))

	return delivery, nil
}

// GetDelivery возвращает доставку. Видят её покупатель заказа,
// назначенный водитель и admin
func (s *DeliveryService) GetDelivery(ctx context.Context, deliveryID string) (domain.Delivery, error) {
	caller, err := auth.Caller(ctx)
	if err != nil {
		return domain.Delivery{}, err
	}

	delivery, err := s.getDelivery(ctx, deliveryID)
	if err != nil {
		return domain.Delivery{}, err
	}

	if caller.Role == authctx.RoleAdmin ||
		caller.ID == delivery.CustomerID ||
		delivery.IsAssignedDriver(caller.ID) {
		return delivery, nil
	}
	return domain.Delivery{}, apperr.Unauthorized("caller %s has no access to this delivery", caller.ID)
}

// AssignDriver назначает водителя на доставку. Только admin и только из
// PENDING; optimistic lock гарантирует единственного победителя при гонке
func (s *DeliveryService) AssignDriver(ctx context.Context, deliveryID, driverID string) (domain.Delivery, error) {
	caller, err := auth.Caller(ctx)
	if err != nil {
		return domain.Delivery{}, err
	}
	if caller.Role != authctx.RoleAdmin {
		return domain.Delivery{}, apperr.Unauthorized("only admin can assign drivers")
	}
	if driverID == "" {
		return domain.Delivery{}, apperr.Validation("driver id is required")
	}

	driver, err := s.profileClient.GetDriver(ctx, driverID)
	if err != nil {
		if apperr.IsNotFound(err) {
			return domain.Delivery{}, err
		}
		s.logger.Error("profile service unavailable", zap.String("driver_id", driverID), zap.Error(err))
		return domain.Delivery{}, apperr.Unavailable(err, "profile service unavailable")
	}

	delivery, err := s.getDelivery(ctx, deliveryID)
	if err != nil {
		return domain.Delivery{}, err
	}

	now := time.Now().UTC()
	if err := delivery.Assign(driver.ID, driver.Name, now); err != nil {
		return domain.Delivery{}, err
	}

	event, err := marshalEvent(events.DeliveryAssigned{
		Meta:       events.NewMeta(events.TopicDeliveryAssigned),
		DeliveryID: delivery.ID,
		OrderID:    delivery.OrderID,
		CustomerID: delivery.CustomerID,
		DriverID:   driver.ID,
		DriverName: driver.Name,
	}, events.TopicDeliveryAssigned, delivery.OrderID)
	if err != nil {
		return domain.Delivery{}, err
	}

	if err := s.deliveryRepo.Update(ctx, delivery, []platformkafka.OutboxEvent{event}); err != nil {
		return domain.Delivery{}, mapUpdateErr(err, deliveryID)
	}

	s.logger.Info("driver assigned",
		zap.String("delivery_id", delivery.ID),
		zap.String("driver_id", driver.ID))

	return delivery, nil
}

// ConfirmPickup подтверждает забор заказа из ресторана назначенным водителем
func (s *DeliveryService) ConfirmPickup(ctx context.Context, deliveryID string) (domain.Delivery, error) {
	return s.driverTransition(ctx, deliveryID, domain.StatusPickedUp)
}

// StartTransit отмечает выезд водителя к покупателю
func (s *DeliveryService) StartTransit(ctx context.Context, deliveryID string) (domain.Delivery, error) {
	return s.driverTransition(ctx, deliveryID, domain.StatusInTransit)
}

// ConfirmDelivery подтверждает вручение заказа покупателю
func (s *DeliveryService) ConfirmDelivery(ctx context.Context, deliveryID string) (domain.Delivery, error) {
	return s.driverTransition(ctx, deliveryID, domain.StatusDelivered)
}

// driverTransition выполняет переход статуса от имени назначенного водителя
// и публикует соответствующее событие
func (s *DeliveryService) driverTransition(ctx context.Context, deliveryID string, requested domain.Status) (domain.Delivery, error) {
	delivery, err := s.getAssigned(ctx, deliveryID)
	if err != nil {
		return domain.Delivery{}, err
	}

	now := time.Now().UTC()
	if err := delivery.Apply(requested, now); err != nil {
		return domain.Delivery{}, err
	}

	event, err := s.transitionEvent(delivery, requested, now)
	if err != nil {
		return domain.Delivery{}, err
	}

	if err := s.deliveryRepo.Update(ctx, delivery, []platformkafka.OutboxEvent{event}); err != nil {
		return domain.Delivery{}, mapUpdateErr(err, deliveryID)
	}

	s.logger.Info("delivery status changed",
		zap.String("delivery_id", delivery.ID),
		zap.String("order_id", delivery.OrderID),
		zap.String("status", string(requested)))

	return delivery, nil
}

// transitionEvent собирает событие для перехода водителя
func (s *DeliveryService) transitionEvent(delivery domain.Delivery, requested domain.Status, now time.Time) (platformkafka.OutboxEvent, error) {
	driverID := ""
	if delivery.DriverID != nil {
		driverID = *delivery.DriverID
	}

	switch requested {
	case domain.StatusPickedUp:
		return marshalEvent(events.DeliveryPickedUp{
			Meta:       events.NewMeta(events.TopicDeliveryPickedUp),
			DeliveryID: delivery.ID,
			OrderID:    delivery.OrderID,
			CustomerID: delivery.CustomerID,
			DriverID:   driverID,
		}, events.TopicDeliveryPickedUp, delivery.OrderID)
	case domain.StatusInTransit:
		return marshalEvent(events.DeliveryInTransit{
			Meta:       events.NewMeta(events.TopicDeliveryInTransit),
			DeliveryID: delivery.ID,
			OrderID:    delivery.OrderID,
			CustomerID: delivery.CustomerID,
			DriverID:   driverID,
		}, events.TopicDeliveryInTransit, delivery.OrderID)
	case domain.StatusDelivered:
		return marshalEvent(events.DeliveryDelivered{
			Meta:        events.NewMeta(events.TopicDeliveryDelivered),
			DeliveryID:  delivery.ID,
			OrderID:     delivery.OrderID,
			CustomerID:  delivery.CustomerID,
			DriverID:    driverID,
			DeliveredAt: now,
		}, events.TopicDeliveryDelivered, delivery.OrderID)
	default:
		return platformkafka.OutboxEvent{}, apperr.Validation("no event for delivery status %s", requested)
	}
}

// UpdateLocationInput содержит позицию водителя
type UpdateLocationInput struct {
	DeliveryID string
	Latitude   float64
	Longitude  float64
}

// UpdateLocation обновляет позицию водителя. Позиция не порождает событий
func (s *DeliveryService) UpdateLocation(ctx context.Context, input UpdateLocationInput) (domain.Delivery, error) {
	if input.Latitude < -90 || input.Latitude > 90 || input.Longitude < -180 || input.Longitude > 180 {
		return domain.Delivery{}, apperr.Validation("coordinates out of range")
	}

	delivery, err := s.getAssigned(ctx, input.DeliveryID)
	if err != nil {
		return domain.Delivery{}, err
	}

	if err := delivery.UpdateLocation(input.Latitude, input.Longitude, time.Now().UTC()); err != nil {
		return domain.Delivery{}, err
	}

	if err := s.deliveryRepo.Update(ctx, delivery, nil); err != nil {
		return domain.Delivery{}, mapUpdateErr(err, input.DeliveryID)
	}
	return delivery, nil
}

// CancelByOrder отменяет доставку отменённого заказа. Вызывается
// consumer-ом order.cancelled, поэтому идемпотентен: отсутствующая или
// уже завершённая доставка - no-op
func (s *DeliveryService) CancelByOrder(ctx context.Context, orderID string) error {
	delivery, err := s.deliveryRepo.GetByOrderID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return err
	}

	if delivery.IsTerminal() {
		return nil
	}

	if err := delivery.Apply(domain.StatusCancelled, time.Now().UTC()); err != nil {
		// IN_TRANSIT отменить нельзя: заказ уже едет к покупателю
		s.logger.Warn("delivery cannot be cancelled",
			zap.String("delivery_id", delivery.ID),
			zap.String("status", string(delivery.Status)))
		return nil
	}

	if err := s.deliveryRepo.Update(ctx, delivery, nil); err != nil {
		return mapUpdateErr(err, delivery.ID)
	}

	s.logger.Info("delivery cancelled",
		zap.String("delivery_id", delivery.ID),
		zap.String("order_id", orderID))
	return nil
}

// getAssigned загружает доставку и проверяет, что вызывающий — её водитель
func (s *DeliveryService) getAssigned(ctx context.Context, deliveryID string) (domain.Delivery, error) {
	caller, err := auth.Caller(ctx)
	if err != nil {
		return domain.Delivery{}, err
	}

	delivery, err := s.getDelivery(ctx, deliveryID)
	if err != nil {
		return domain.Delivery{}, err
	}

	if caller.Role != authctx.RoleAdmin && !delivery.IsAssignedDriver(caller.ID) {
		return domain.Delivery{}, apperr.Unauthorized("caller %s is not the assigned driver", caller.ID)
	}
	return delivery, nil
}

func (s *DeliveryService) getDelivery(ctx context.Context, deliveryID string) (domain.Delivery, error) {
	delivery, err := s.deliveryRepo.GetByID(ctx, deliveryID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Delivery{}, apperr.NotFound("delivery %s not found", deliveryID)
		}
		return domain.Delivery{}, err
	}
	return delivery, nil
}

// marshalEvent сериализует payload в outbox событие
func marshalEvent(payload any, topic, aggregateID string) (platformkafka.OutboxEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return platformkafka.OutboxEvent{}, err
	}
	var meta struct {
		EventID string `json:"event_id"`
	}
	_ = json.Unmarshal(data, &meta)
	return platformkafka.OutboxEvent{
		EventID:     meta.EventID,
		Topic:       topic,
		AggregateID: aggregateID,
		Payload:     data,
	}, nil
}

// mapUpdateErr переводит ошибки репозитория в ошибки уровня API
func mapUpdateErr(err error, deliveryID string) error {
	switch {
	case errors.Is(err, repository.ErrVersionConflict):
		return apperr.Conflict("delivery %s was modified concurrently, retry", deliveryID)
	case errors.Is(err, repository.ErrNotFound):
		return apperr.NotFound("delivery %s not found", deliveryID)
	default:
		return err
	}
}
