package domain

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/shestoi/GoFoodSaga/platform/apperr"
)

// Status представляет статус заказа
type Status string

const (
	StatusPending        Status = "PENDING"
	StatusConfirmed      Status = "CONFIRMED"
	StatusPreparing      Status = "PREPARING"
	StatusReadyForPickup Status = "READY_FOR_PICKUP"
	StatusPickedUp       Status = "PICKED_UP"
	StatusOnTheWay       Status = "ON_THE_WAY"
	StatusDelivered      Status = "DELIVERED"
	StatusCancelled      Status = "CANCELLED"
	StatusRejected       Status = "REJECTED"
)

// PaymentStatus представляет статус оплаты заказа (локальное поле заказа,
// не путать с сущностью Payment в payment сервисе)
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "PENDING"
	PaymentPaid     PaymentStatus = "PAID"
	PaymentRefunded PaymentStatus = "REFUNDED"
)

// OrderItem представляет позицию заказа.
// Name и UnitPrice — snapshot на момент создания заказа: после создания
// позиции не перечитываются из меню и не изменяются.
type OrderItem struct {
	MenuItemID    string
	Name          string
	Quantity      int32
	UnitPrice     decimal.Decimal
	Customization string
}

// Order представляет доменную модель заказа
// Позиции заморожены на момент создания; суммы считаются один раз и больше не пересчитываются
type Order struct {
	ID                  string
	CustomerID          string
	RestaurantID        string
	DeliveryAddressID   string
	Items               []OrderItem
	Subtotal            decimal.Decimal
	Tax                 decimal.Decimal
	DeliveryFee         decimal.Decimal
	Total               decimal.Decimal
	Status              Status
	PaymentStatus       PaymentStatus
	SpecialInstructions string
	// Version — счётчик optimistic lock: каждое изменение статуса инкрементирует его,
	// конкурирующее изменение с устаревшей версией получает конфликт
	Version               int64
	CreatedAt             time.Time
	UpdatedAt             time.Time
	EstimatedDeliveryTime *time.Time
	ActualDeliveryTime    *time.Time
}

// Transition проверяет допустимость перехода статуса заказа.
// Чистая функция: единственный exhaustive switch по таблице переходов,
// любое ребро вне таблицы — ConflictError с обоими статусами в сообщении.
// DELIVERED, CANCELLED, REJECTED терминальны.
func Transition(current, requested Status) error {
	var allowed bool
	switch current {
	case StatusPending:
		allowed = requested == StatusConfirmed || requested == StatusRejected || requested == StatusCancelled
	case StatusConfirmed:
		allowed = requested == StatusPreparing || requested == StatusCancelled
	case StatusPreparing:
		allowed = requested == StatusReadyForPickup || requested == StatusCancelled
	case StatusReadyForPickup:
		allowed = requested == StatusPickedUp || requested == StatusCancelled
	case StatusPickedUp:
		allowed = requested == StatusOnTheWay
	case StatusOnTheWay:
		allowed = requested == StatusDelivered
	case StatusDelivered, StatusCancelled, StatusRejected:
		allowed = false
	default:
		return apperr.Conflict("unknown order status %q", current)
	}

	if !allowed {
		return apperr.Conflict("illegal order status transition from %s to %s", current, requested)
	}
	return nil
}

// Apply выполняет переход статуса вместе с побочными эффектами:
//   - вход в DELIVERED проставляет ActualDeliveryTime
//   - вход в CANCELLED при PaymentStatus=PAID переводит оплату в REFUNDED
//     (только локальное состояние, payment сервис узнаёт об отмене по событию)
//
// Состояние заказа не меняется, если переход недопустим.
func (o *Order) Apply(requested Status, now time.Time) error {
	if err := Transition(o.Status, requested); err != nil {
		return err
	}

	o.Status = requested
	o.UpdatedAt = now

	switch requested {
	case StatusDelivered:
		t := now
		o.ActualDeliveryTime = &t
	case StatusCancelled:
		if o.PaymentStatus == PaymentPaid {
			o.PaymentStatus = PaymentRefunded
		}
	}

	return nil
}

// MarkPaid фиксирует факт оплаты заказа.
// Идемпотентна: для уже оплаченного или возвращённого заказа — no-op без
// ошибки, поэтому internal endpoint "mark paid" и consumer payment.confirmed
// можно безопасно ретраить. Подтверждение оплаты, пришедшее после отмены
// заказа, сразу помечается к возврату — то же правило компенсации, что и
// отмена уже оплаченного заказа в Apply.
// Возвращает changed=false, если состояние не изменилось.
func (o *Order) MarkPaid(now time.Time) (changed bool) {
	if o.PaymentStatus != PaymentPending {
		return false
	}
	o.PaymentStatus = PaymentPaid
	if o.Status == StatusCancelled {
		o.PaymentStatus = PaymentRefunded
	}
	o.UpdatedAt = now
	return true
}
