// Package domain описывает доставку и её машину статусов.
// Используется строгий вариант маршрута: PICKED_UP -> IN_TRANSIT -> DELIVERED
package domain

import (
	"time"

	"github.com/shestoi/GoFoodSaga/platform/apperr"
)

// Status представляет статус доставки
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusAssigned  Status = "ASSIGNED"
	StatusPickedUp  Status = "PICKED_UP"
	StatusInTransit Status = "IN_TRANSIT"
	StatusDelivered Status = "DELIVERED"
	StatusCancelled Status = "CANCELLED"
)

// Location - позиция водителя
type Location struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Delivery представляет доставку заказа. На заказ не больше одной доставки
type Delivery struct {
	ID                string
	OrderID           string
	CustomerID        string
	RestaurantID      string
	DeliveryAddressID string
	DriverID          *string
	DriverName        string
	Status            Status
	Location          *Location
	PickupTime        *time.Time
	DeliveryTime      *time.Time
	Version           int64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Transition проверяет допустимость перехода статуса доставки.
// Единственный источник правды - этот switch; для пары вне таблицы
// возвращается конфликт с указанием обоих статусов
func Transition(current, requested Status) error {
	allowed := false
	switch current {
	case StatusPending:
		allowed = requested == StatusAssigned || requested == StatusCancelled
	case StatusAssigned:
		allowed = requested == StatusPickedUp || requested == StatusCancelled
	case StatusPickedUp:
		allowed = requested == StatusInTransit || requested == StatusCancelled
	case StatusInTransit:
		allowed = requested == StatusDelivered
	case StatusDelivered, StatusCancelled:
		// терминальные статусы
	default:
		return apperr.Conflict("unknown delivery status %s", current)
	}

	if !allowed {
		return apperr.Conflict("illegal delivery transition from %s to %s", current, requested)
	}
	return nil
}

// IsTerminal сообщает, завершена ли доставка
func (d Delivery) IsTerminal() bool {
	return d.Status == StatusDelivered || d.Status == StatusCancelled
}

// Apply выполняет переход и его побочные эффекты: PICKED_UP ставит время
// забора, DELIVERED - время вручения
func (d *Delivery) Apply(requested Status, now time.Time) error {
	if err := Transition(d.Status, requested); err != nil {
		return err
	}

	d.Status = requested
	d.UpdatedAt = now

	switch requested {
	case StatusPickedUp:
		pickupTime := now
		d.PickupTime = &pickupTime
	case StatusDelivered:
		deliveryTime := now
		d.DeliveryTime = &deliveryTime
	}
	return nil
}

// Assign закрепляет водителя за доставкой. Только из PENDING
func (d *Delivery) Assign(driverID, driverName string, now time.Time) error {
	if err := Transition(d.Status, StatusAssigned); err != nil {
		return err
	}

	d.Status = StatusAssigned
	d.DriverID = &driverID
	d.DriverName = driverName
	d.UpdatedAt = now
	return nil
}

// UpdateLocation обновляет позицию водителя. Только в активных статусах
func (d *Delivery) UpdateLocation(latitude, longitude float64, now time.Time) error {
	if d.Status != StatusAssigned && d.Status != StatusPickedUp && d.Status != StatusInTransit {
		return apperr.Conflict("cannot update location of a delivery in status %s", d.Status)
	}
	d.Location = &Location{
		Latitude:  latitude,
		Longitude: longitude,
		UpdatedAt: now,
	}
	d.UpdatedAt = now
	return nil
}

// IsAssignedDriver проверяет, что водитель закреплён за этой доставкой
func (d Delivery) IsAssignedDriver(driverID string) bool {
	return d.DriverID != nil && *d.DriverID == driverID
}
